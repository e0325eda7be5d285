// Package server exposes the dispatch message contract to a browser extension over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/blacktop/multipost/internal/config"
	"github.com/blacktop/multipost/internal/dispatch"
	"github.com/blacktop/multipost/internal/logutil"
	"github.com/blacktop/multipost/internal/multipost"
	"github.com/blacktop/multipost/internal/prefs"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 10 * time.Second

// Deps are the collaborators the server routes requests to.
type Deps struct {
	Registry   *multipost.Registry
	Stores     *prefs.Stores
	Dispatcher *dispatch.Dispatcher
	// Registerer and Gatherer back /metrics; both default to a private registry.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

// Server handles extension requests.
type Server struct {
	cfg      config.Server
	registry *multipost.Registry
	stores   *prefs.Stores
	dispatch *dispatch.Dispatcher
	validate *validator.Validate
	metrics  *httpMetrics
	gatherer prometheus.Gatherer
}

// New builds a Server.
func New(cfg config.Server, deps Deps) *Server {
	if deps.Registerer == nil || deps.Gatherer == nil {
		reg := prometheus.NewRegistry()
		deps.Registerer, deps.Gatherer = reg, reg
	}
	return &Server{
		cfg:      cfg,
		registry: deps.Registry,
		stores:   deps.Stores,
		dispatch: deps.Dispatcher,
		validate: validator.New(),
		metrics:  newHTTPMetrics(deps.Registerer),
		gatherer: deps.Gatherer,
	}
}

// Router returns the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(s.metrics.middleware)
	origins := cors.New(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", sessionHeader},
		ExposedHeaders:   []string{sessionHeader},
		AllowCredentials: false,
		MaxAge:           300,
	})
	r.Use(origins.Handler)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Use(originGuard(origins))
		// Non-JSON bodies would skip the CORS preflight.
		r.Use(middleware.AllowContentType("application/json"))
		r.Use(bearerAuth(s.cfg.TokenSecret))
		r.Post("/post", s.handlePost)
		r.Post("/status", s.handleStatus)
		r.Get("/services", s.handleServices)
		r.Put("/services/{service}/pause", s.handlePause)
		r.Get("/compose", s.handleCompose)
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logutil.Infof("listening on %s", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

// originGuard rejects requests from origins outside the CORS policy; the CORS
// handler itself only withholds response headers. Requests without an Origin
// header (CLI, curl) pass.
func originGuard(c *cors.Cors) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); origin != "" && !c.OriginAllowed(r) {
				logutil.Warnf("rejected request from origin %q", origin)
				writeError(w, http.StatusForbidden, fmt.Errorf("origin %q is not allowed", origin))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logutil.Debugf("%s %s status=%d took=%s", r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}
