// Package prefs persists per-service preferences: credentials and the pause flag.
package prefs

import (
	"context"
	"errors"
	"maps"
	"strings"
	"sync"
)

// ErrClosed is returned by backends after Close.
var ErrClosed = errors.New("preference backend closed")

// Preference is the record stored for a single service.
type Preference struct {
	Paused      bool              `json:"paused" yaml:"paused"`
	Credentials map[string]string `json:"credentials,omitempty" yaml:"credentials,omitempty"`
}

// Get returns the trimmed credential stored under key.
func (p Preference) Get(key string) string {
	if p.Credentials == nil {
		return ""
	}
	return strings.TrimSpace(p.Credentials[key])
}

// Clone copies the credential map.
func (p Preference) Clone() Preference {
	p.Credentials = maps.Clone(p.Credentials)
	return p
}

// Backend is the durable key/value layer keyed by service name.
type Backend interface {
	Get(ctx context.Context, service string) (Preference, bool, error)
	Put(ctx context.Context, service string, pref Preference) error
	Close() error
}

// Store is the handle for one service's preference. Load must succeed before
// Snapshot reports loaded data.
type Store struct {
	service string
	backend Backend

	// serial is a one-slot semaphore ordering pause toggles against
	// in-flight posts for this service.
	serial chan struct{}

	mu     sync.RWMutex
	data   Preference
	loaded bool
}

// Service returns the service this store is addressed by.
func (s *Store) Service() string { return s.service }

// Load reads the record from the backend. A missing record loads as the zero Preference.
func (s *Store) Load(ctx context.Context) (Preference, error) {
	pref, _, err := s.backend.Get(ctx, s.service)
	if err != nil {
		return Preference{}, err
	}
	s.mu.Lock()
	s.data = pref
	s.loaded = true
	s.mu.Unlock()
	return pref.Clone(), nil
}

// Snapshot returns the last loaded record and whether a load has completed.
func (s *Store) Snapshot() (Preference, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Clone(), s.loaded
}

// SetPaused persists the pause flag. It waits for any in-flight Exclusive
// call, giving up with ctx.Err() if ctx ends first.
func (s *Store) SetPaused(ctx context.Context, paused bool) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()
	return s.update(ctx, func(p *Preference) { p.Paused = paused })
}

// SetCredentials replaces the credential map, keeping the pause flag.
func (s *Store) SetCredentials(ctx context.Context, creds map[string]string) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()
	return s.update(ctx, func(p *Preference) { p.Credentials = maps.Clone(creds) })
}

// Exclusive loads the freshest record and runs fn while holding the service lock.
func (s *Store) Exclusive(ctx context.Context, fn func(Preference) error) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()
	pref, err := s.Load(ctx)
	if err != nil {
		return err
	}
	return fn(pref)
}

func (s *Store) lock(ctx context.Context) error {
	select {
	case s.serial <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) unlock() { <-s.serial }

func (s *Store) update(ctx context.Context, mutate func(*Preference)) error {
	pref, err := s.Load(ctx)
	if err != nil {
		return err
	}
	mutate(&pref)
	if err := s.backend.Put(ctx, s.service, pref); err != nil {
		return err
	}
	s.mu.Lock()
	s.data = pref.Clone()
	s.loaded = true
	s.mu.Unlock()
	return nil
}

// Stores hands out one Store per service so every caller shares the same lock.
type Stores struct {
	backend Backend

	mu     sync.Mutex
	stores map[string]*Store
}

// NewStores wraps a backend.
func NewStores(backend Backend) *Stores {
	return &Stores{backend: backend, stores: map[string]*Store{}}
}

// Get returns the store addressed by service, creating it on first use.
func (s *Stores) Get(service string) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.stores[service]; ok {
		return st
	}
	st := &Store{service: service, backend: s.backend, serial: make(chan struct{}, 1)}
	s.stores[service] = st
	return st
}

// LoadAll loads every listed service and returns the first error encountered.
func (s *Stores) LoadAll(ctx context.Context, services []string) error {
	var errs []error
	for _, service := range services {
		if _, err := s.Get(service).Load(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes the backend.
func (s *Stores) Close() error {
	return s.backend.Close()
}
