// Package dispatch fans one submitted draft out to the selected services.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blacktop/multipost/internal/logutil"
	"github.com/blacktop/multipost/internal/multipost"
	"github.com/blacktop/multipost/internal/prefs"
)

// Sink delivers messages back to the context that submitted the draft.
type Sink interface {
	Send(ctx context.Context, msg multipost.Message) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, msg multipost.Message) error

// Send calls f.
func (f SinkFunc) Send(ctx context.Context, msg multipost.Message) error { return f(ctx, msg) }

// Converter turns a Draft into the Post shared by every service.
type Converter interface {
	Convert(ctx context.Context, draft *multipost.Draft) (*multipost.Post, error)
}

// Dispatcher posts to services one at a time, in selection order.
type Dispatcher struct {
	registry  *multipost.Registry
	stores    *prefs.Stores
	converter Converter
	metrics   *Metrics
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMetrics records per-service outcomes.
func WithMetrics(m *Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// New builds a Dispatcher.
func New(registry *multipost.Registry, stores *prefs.Stores, converter Converter, opts ...Option) *Dispatcher {
	d := &Dispatcher{registry: registry, stores: stores, converter: converter}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch converts draft once, then for each API-driven service sends exactly
// one Success or Error message to sink, in the order given. A failing service
// never stops the ones after it. When the deep-link service is selected a
// single Tweet message follows the API-driven results. The returned error only
// reports messages that could not be delivered.
func (d *Dispatcher) Dispatch(ctx context.Context, draft *multipost.Draft, services []multipost.ServiceName, sink Sink) error {
	post, convErr := d.converter.Convert(ctx, draft)
	if convErr != nil {
		logutil.Errorf("convert draft: %v", convErr)
	}

	var (
		deepLink bool
		sendErrs []error
	)
	for _, service := range services {
		if service == multipost.DeepLinkService {
			deepLink = true
			continue
		}

		msg := d.dispatchOne(ctx, service, post, convErr)
		if err := sink.Send(ctx, msg); err != nil {
			logutil.Errorf("deliver %s result: %v", service, err)
			sendErrs = append(sendErrs, fmt.Errorf("%s: %w", service, err))
		}
	}

	if deepLink {
		if err := sink.Send(ctx, multipost.TweetMessage()); err != nil {
			logutil.Errorf("deliver tweet message: %v", err)
			sendErrs = append(sendErrs, fmt.Errorf("%s: %w", multipost.DeepLinkService, err))
		}
	}

	return errors.Join(sendErrs...)
}

func (d *Dispatcher) dispatchOne(ctx context.Context, service multipost.ServiceName, post *multipost.Post, convErr error) multipost.Message {
	log := logutil.With("service", service)
	start := time.Now()
	url, err := d.post(ctx, service, post, convErr)
	took := time.Since(start)
	d.metrics.observe(service, err, took)

	if err != nil {
		log.Error("post failed", "err", err, "took", took)
		return multipost.ErrorMessage(service, err)
	}
	if url == "" {
		log.Warn("posted without a canonical url", "took", took)
	} else {
		log.Info("posted", "url", url, "took", took)
	}
	return multipost.SuccessMessage(service, url)
}

func (d *Dispatcher) post(ctx context.Context, service multipost.ServiceName, post *multipost.Post, convErr error) (string, error) {
	if convErr != nil {
		return "", convErr
	}

	store := d.stores.Get(string(service))
	adapter, ok := d.registry.Adapter(service, store)
	if !ok {
		return "", fmt.Errorf("unsupported service %q", service)
	}

	var url string
	err := store.Exclusive(ctx, func(pref prefs.Preference) error {
		var err error
		url, err = invoke(ctx, adapter, post.Clone(), pref)
		return err
	})
	return url, err
}

// invoke shields the dispatch loop from a panicking adapter.
func invoke(ctx context.Context, adapter multipost.Adapter, post *multipost.Post, pref prefs.Preference) (url string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s adapter panic: %v", adapter.Name(), r)
		}
	}()
	logutil.Debugf("posting to %s", adapter.Name())
	return adapter.Post(ctx, post, pref)
}
