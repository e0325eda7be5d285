// Package app wires configuration, preference storage, adapters and dispatch together.
package app

import (
	"context"
	"fmt"

	"github.com/blacktop/multipost/internal/config"
	"github.com/blacktop/multipost/internal/dispatch"
	"github.com/blacktop/multipost/internal/linkcard"
	"github.com/blacktop/multipost/internal/media"
	"github.com/blacktop/multipost/internal/multipost"
	"github.com/blacktop/multipost/internal/multipost/bluesky"
	"github.com/blacktop/multipost/internal/multipost/mastodon"
	"github.com/blacktop/multipost/internal/multipost/taittsuu"
	"github.com/blacktop/multipost/internal/multipost/x"
	"github.com/blacktop/multipost/internal/prefs"
	"github.com/prometheus/client_golang/prometheus"
)

// App holds the long-lived components shared by every command.
type App struct {
	Config     config.Config
	Registry   *multipost.Registry
	Stores     *prefs.Stores
	Dispatcher *dispatch.Dispatcher
	Metrics    *prometheus.Registry
}

// NewRegistry registers every supported API-driven service.
func NewRegistry(cfg config.Config) *multipost.Registry {
	r := multipost.NewRegistry()
	r.Register(multipost.Bluesky, bluesky.Factory(bluesky.Config{PDSURL: cfg.Bluesky.PDSURL}))
	r.Register(multipost.Mastodon, mastodon.Factory())
	r.Register(multipost.X, x.Factory())
	r.Register(multipost.Taittsuu, taittsuu.Factory())
	return r
}

// Open opens the preference database, seeds configured credentials and builds the dispatcher.
func Open(ctx context.Context, cfg config.Config) (*App, error) {
	backend, err := prefs.OpenSQLite(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open preferences: %w", err)
	}
	return New(ctx, cfg, backend)
}

// New builds an App on top of an already opened backend.
func New(ctx context.Context, cfg config.Config, backend prefs.Backend) (*App, error) {
	stores := prefs.NewStores(backend)
	if err := cfg.Seed(ctx, stores); err != nil {
		_ = stores.Close()
		return nil, err
	}

	registry := NewRegistry(cfg)
	metrics := prometheus.NewRegistry()
	converter := multipost.NewConverter(media.NewFetcher(nil), linkcard.NewFetcher(nil))

	return &App{
		Config:     cfg,
		Registry:   registry,
		Stores:     stores,
		Dispatcher: dispatch.New(registry, stores, converter, dispatch.WithMetrics(dispatch.NewMetrics(metrics))),
		Metrics:    metrics,
	}, nil
}

// Adapter returns the adapter for name bound to its store.
func (a *App) Adapter(name multipost.ServiceName) (multipost.Adapter, bool) {
	return a.Registry.Adapter(name, a.Stores.Get(string(name)))
}

// Close releases the preference database.
func (a *App) Close() error {
	return a.Stores.Close()
}
