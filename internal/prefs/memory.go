package prefs

import (
	"context"
	"sync"
)

type memoryBackend struct {
	mu     sync.RWMutex
	data   map[string]Preference
	closed bool
}

// NewMemory returns a backend that keeps preferences in process memory.
func NewMemory(seed map[string]Preference) Backend {
	m := &memoryBackend{data: make(map[string]Preference, len(seed))}
	for k, v := range seed {
		m.data[k] = v.Clone()
	}
	return m
}

func (m *memoryBackend) Get(_ context.Context, service string) (Preference, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return Preference{}, false, ErrClosed
	}
	p, ok := m.data[service]
	return p.Clone(), ok, nil
}

func (m *memoryBackend) Put(_ context.Context, service string, pref Preference) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.data[service] = pref.Clone()
	return nil
}

func (m *memoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
