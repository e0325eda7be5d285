package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/blacktop/multipost/internal/deeplink"
	"github.com/blacktop/multipost/internal/logutil"
	"github.com/blacktop/multipost/internal/multipost"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	sessionHeader = "X-Session-ID"
	maxBodyBytes  = 1 << 20
)

type postRequest struct {
	Type     multipost.MessageType   `json:"type" validate:"omitempty,eq=Post"`
	Draft    string                  `json:"draft" validate:"required"`
	Services []multipost.ServiceName `json:"services" validate:"required,min=1,dive,required"`
}

type statusRequest struct {
	Draft    *multipost.Draft        `json:"draft"`
	Services []multipost.ServiceName `json:"services" validate:"dive,required"`
}

type pauseRequest struct {
	Paused *bool `json:"paused" validate:"required"`
}

type serviceInfo struct {
	Service    multipost.ServiceName `json:"service"`
	Icon       string                `json:"icon"`
	DeepLink   bool                  `json:"deepLink"`
	Loaded     bool                  `json:"loaded"`
	Paused     bool                  `json:"paused"`
	Configured bool                  `json:"configured"`
}

// handlePost runs a dispatch and streams one NDJSON line per outbound message.
func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	draft, err := multipost.ParseDraft(req.Draft)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	session := r.Header.Get(sessionHeader)
	if session == "" {
		session = uuid.NewString()
	}
	services := Dedup(req.Services)
	log := logutil.With("session", session)
	log.Info("dispatching", "services", services)

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set(sessionHeader, session)
	w.WriteHeader(http.StatusOK)

	sink := newStreamSink(w)
	// A started dispatch is not cancelled by a disconnecting client.
	ctx := context.WithoutCancel(r.Context())
	if err := s.dispatch.Dispatch(ctx, draft, services, sink); err != nil {
		log.Warn("stream interrupted", "err", err)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	services := req.Services
	if len(services) == 0 {
		services = s.registry.Names()
	}

	statuses := make([]multipost.Status, 0, len(services))
	for _, service := range services {
		if !s.registry.Has(service) {
			continue
		}
		store := s.stores.Get(string(service))
		adapter, _ := s.registry.Adapter(service, store)
		if _, loaded := store.Snapshot(); !loaded {
			if _, err := store.Load(r.Context()); err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
		}
		statuses = append(statuses, adapter.Status(req.Draft))
	}
	writeJSON(w, http.StatusOK, statuses)
}

func (s *Server) handleServices(w http.ResponseWriter, r *http.Request) {
	out := []serviceInfo{{
		Service:  multipost.DeepLinkService,
		Icon:     multipost.IconPath(multipost.DeepLinkService),
		DeepLink: true,
		Loaded:   true,
	}}
	for _, name := range s.registry.Names() {
		store := s.stores.Get(string(name))
		adapter, _ := s.registry.Adapter(name, store)
		pref, err := store.Load(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		out = append(out, serviceInfo{
			Service:    name,
			Icon:       adapter.Icon(),
			Loaded:     true,
			Paused:     pref.Paused,
			Configured: len(pref.Credentials) > 0,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	name := multipost.ServiceName(chi.URLParam(r, "service"))
	adapter, ok := s.registry.Adapter(name, s.stores.Get(string(name)))
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown service %q", name))
		return
	}

	var req pauseRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := adapter.SwitchPausing(r.Context(), *req.Paused); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"service": name, "paused": *req.Paused})
}

func (s *Server) handleCompose(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	writeJSON(w, http.StatusOK, deeplink.Compose(q.Get("text"), q.Get("url")))
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	if err := s.validate.Struct(v); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	return nil
}

// Dedup trims names and drops repeats, keeping first-seen order.
func Dedup(services []multipost.ServiceName) []multipost.ServiceName {
	seen := make(map[multipost.ServiceName]struct{}, len(services))
	out := make([]multipost.ServiceName, 0, len(services))
	for _, s := range services {
		s = multipost.ServiceName(strings.TrimSpace(string(s)))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// streamSink writes each message as a JSON line and flushes it immediately.
type streamSink struct {
	mu  sync.Mutex
	rc  *http.ResponseController
	enc *json.Encoder
}

func newStreamSink(w http.ResponseWriter) *streamSink {
	return &streamSink{rc: http.NewResponseController(w), enc: json.NewEncoder(w)}
}

func (s *streamSink) Send(_ context.Context, msg multipost.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(msg); err != nil {
		return err
	}
	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logutil.Errorf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
