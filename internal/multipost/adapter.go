package multipost

import (
	"context"
	"fmt"
	"sync"

	"github.com/blacktop/multipost/internal/prefs"
)

// Adapter is the capability set every API-driven service implements.
type Adapter interface {
	Name() ServiceName
	Icon() string
	Status(draft *Draft) Status
	SwitchPausing(ctx context.Context, paused bool) error
	Post(ctx context.Context, post *Post, pref prefs.Preference) (string, error)
}

// Base implements Status and SwitchPausing on top of an owned preference store.
// Service adapters embed it and add Post.
type Base struct {
	Service ServiceName
	Store   *prefs.Store
	Limits  Limits
}

// Name identifies the service.
func (b Base) Name() ServiceName { return b.Service }

// Icon returns the static icon reference for the service.
func (b Base) Icon() string { return IconPath(b.Service) }

// Status computes the eligibility of the service for draft.
func (b Base) Status(draft *Draft) Status {
	pref, loaded := b.Store.Snapshot()
	return EvaluateStatus(b.Service, pref, loaded, draft, func(d *Draft) error {
		return b.Limits.Validate(b.Service, d)
	})
}

// SwitchPausing persists the pause flag for the service.
func (b Base) SwitchPausing(ctx context.Context, paused bool) error {
	if err := b.Store.SetPaused(ctx, paused); err != nil {
		return fmt.Errorf("%s: switch pausing: %w", b.Service, err)
	}
	return nil
}

// IconPath is the icon asset reference used for service.
func IconPath(service ServiceName) string {
	return fmt.Sprintf("icons/%s.svg", service)
}

// Factory builds an adapter around the store it owns.
type Factory func(store *prefs.Store) Adapter

// Registry maps service names to adapter factories. A service is added by
// registering a factory; dispatch never switches on names.
type Registry struct {
	mu        sync.RWMutex
	factories map[ServiceName]Factory
	order     []ServiceName
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[ServiceName]Factory{}}
}

// Register adds or replaces the factory for a service.
func (r *Registry) Register(name ServiceName, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[name]; !ok {
		r.order = append(r.order, name)
	}
	r.factories[name] = factory
}

// Adapter resolves the adapter for name bound to store.
func (r *Registry) Adapter(name ServiceName, store *prefs.Store) (Adapter, bool) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return factory(store), true
}

// Has reports whether name has a registered factory.
func (r *Registry) Has(name ServiceName) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Names lists registered services in registration order.
func (r *Registry) Names() []ServiceName {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]ServiceName(nil), r.order...)
}

// Adapters binds every registered service to its store from stores.
func (r *Registry) Adapters(stores *prefs.Stores) []Adapter {
	names := r.Names()
	out := make([]Adapter, 0, len(names))
	for _, name := range names {
		if a, ok := r.Adapter(name, stores.Get(string(name))); ok {
			out = append(out, a)
		}
	}
	return out
}
