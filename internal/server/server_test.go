package server_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/blacktop/multipost/internal/config"
	"github.com/blacktop/multipost/internal/dispatch"
	"github.com/blacktop/multipost/internal/multipost"
	"github.com/blacktop/multipost/internal/multipost/taittsuu"
	"github.com/blacktop/multipost/internal/prefs"
	"github.com/blacktop/multipost/internal/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoAdapter struct {
	multipost.Base
}

func (e echoAdapter) Post(_ context.Context, post *multipost.Post, _ prefs.Preference) (string, error) {
	return "https://example.social/" + post.Text, nil
}

type passthrough struct{}

func (passthrough) Convert(_ context.Context, d *multipost.Draft) (*multipost.Post, error) {
	return &multipost.Post{Text: d.Text}, nil
}

func newTestServer(t *testing.T, secret string) http.Handler {
	t.Helper()
	registry := multipost.NewRegistry()
	registry.Register(multipost.Bluesky, func(store *prefs.Store) multipost.Adapter {
		return echoAdapter{multipost.Base{Service: multipost.Bluesky, Store: store, Limits: multipost.Limits{MaxChars: 10}}}
	})
	registry.Register(multipost.Taittsuu, taittsuu.Factory())

	stores := prefs.NewStores(prefs.NewMemory(map[string]prefs.Preference{
		"Bluesky": {Credentials: map[string]string{"username": "alice"}},
	}))
	t.Cleanup(func() { _ = stores.Close() })

	srv := server.New(config.Server{AllowedOrigins: []string{"*"}, TokenSecret: secret}, server.Deps{
		Registry:   registry,
		Stores:     stores,
		Dispatcher: dispatch.New(registry, stores, passthrough{}),
	})
	return srv.Router()
}

func do(t *testing.T, h http.Handler, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func postBody(t *testing.T, draft multipost.Draft, services ...multipost.ServiceName) string {
	t.Helper()
	msg, err := multipost.PostMessage(&draft, services)
	require.NoError(t, err)
	b, err := json.Marshal(msg)
	require.NoError(t, err)
	return string(b)
}

func decodeStream(t *testing.T, body string) []multipost.Message {
	t.Helper()
	var out []multipost.Message
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		var m multipost.Message
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		out = append(out, m)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestPostStreamsResultsInOrder(t *testing.T) {
	h := newTestServer(t, "")
	rec := do(t, h, http.MethodPost, "/v1/post",
		postBody(t, multipost.Draft{Text: "hi"}, multipost.Taittsuu, multipost.Twitter, multipost.Bluesky, multipost.Bluesky),
		http.Header{"X-Session-Id": {"tab-1"}})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))
	assert.Equal(t, "tab-1", rec.Header().Get("X-Session-ID"))

	msgs := decodeStream(t, rec.Body.String())
	require.Len(t, msgs, 3)
	assert.Equal(t, multipost.MessageError, msgs[0].Type)
	assert.Equal(t, multipost.Taittsuu, msgs[0].Service)
	assert.Equal(t, multipost.SuccessMessage(multipost.Bluesky, "https://example.social/hi"), msgs[1])
	assert.Equal(t, multipost.MessageTweet, msgs[2].Type)
}

func TestPostAssignsSession(t *testing.T) {
	h := newTestServer(t, "")
	rec := do(t, h, http.MethodPost, "/v1/post", postBody(t, multipost.Draft{Text: "hi"}, multipost.Twitter), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Session-ID"))
}

func TestPostValidation(t *testing.T) {
	h := newTestServer(t, "")
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: "{"},
		{name: "no services", body: `{"type":"Post","draft":"{\"text\":\"hi\"}","services":[]}`},
		{name: "blank service", body: `{"type":"Post","draft":"{\"text\":\"hi\"}","services":[""]}`},
		{name: "wrong type", body: `{"type":"Tweet","draft":"{\"text\":\"hi\"}","services":["Bluesky"]}`},
		{name: "no draft", body: `{"type":"Post","services":["Bluesky"]}`},
		{name: "bad draft", body: `{"type":"Post","draft":"nope","services":["Bluesky"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/v1/post", tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func statuses(t *testing.T, h http.Handler, body string) map[multipost.ServiceName]multipost.Status {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/v1/status", body, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []multipost.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	out := make(map[multipost.ServiceName]multipost.Status, len(list))
	for _, s := range list {
		out[s.Service] = s
	}
	return out
}

func TestStatusAndPause(t *testing.T) {
	h := newTestServer(t, "")

	got := statuses(t, h, `{"draft":{"text":"","imageURLs":[],"linkDomain":""}}`)
	require.Len(t, got, 2)
	for _, s := range got {
		assert.Equal(t, multipost.StatusInvalid, s.Kind)
	}

	got = statuses(t, h, `{"draft":{"text":"hi"},"services":["Bluesky","Myspace"]}`)
	require.Len(t, got, 1)
	assert.Equal(t, multipost.StatusValid, got[multipost.Bluesky].Kind)

	got = statuses(t, h, `{"draft":{"text":"far too long for it"},"services":["Bluesky"]}`)
	assert.Equal(t, multipost.StatusInvalid, got[multipost.Bluesky].Kind)

	rec := do(t, h, http.MethodPut, "/v1/services/Bluesky/pause", `{"paused":true}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got = statuses(t, h, `{"draft":{"text":"hi"},"services":["Bluesky"]}`)
	assert.Equal(t, multipost.StatusPaused, got[multipost.Bluesky].Kind)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPut, "/v1/services/Myspace/pause", `{"paused":true}`, nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPut, "/v1/services/Bluesky/pause", `{}`, nil).Code)
}

func TestServices(t *testing.T) {
	h := newTestServer(t, "")
	rec := do(t, h, http.MethodGet, "/v1/services", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list []struct {
		Service    multipost.ServiceName `json:"service"`
		Icon       string                `json:"icon"`
		DeepLink   bool                  `json:"deepLink"`
		Configured bool                  `json:"configured"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 3)
	assert.Equal(t, multipost.Twitter, list[0].Service)
	assert.True(t, list[0].DeepLink)
	assert.Equal(t, multipost.Bluesky, list[1].Service)
	assert.True(t, list[1].Configured)
	assert.Equal(t, "icons/Bluesky.svg", list[1].Icon)
	assert.False(t, list[2].Configured)
}

func TestCompose(t *testing.T) {
	h := newTestServer(t, "")
	rec := do(t, h, http.MethodGet, "/v1/compose?text=Title&url=https%3A%2F%2Fexample.com", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var popup struct {
		URL    string `json:"url"`
		Type   string `json:"type"`
		Width  int    `json:"width"`
		Height int    `json:"height"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &popup))
	assert.Equal(t, "https://twitter.com/intent/tweet?text=Title&url=https%3A%2F%2Fexample.com", popup.URL)
	assert.Equal(t, "popup", popup.Type)
	assert.Equal(t, 600, popup.Width)
	assert.Equal(t, 400, popup.Height)
}

func TestBearerAuth(t *testing.T) {
	h := newTestServer(t, "secret")

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/v1/services", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/v1/services", "",
		http.Header{"Authorization": {"Bearer garbage"}}).Code)

	wrong, err := server.IssueToken("other", "extension", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/v1/services", "",
		http.Header{"Authorization": {"Bearer " + wrong}}).Code)

	expired, err := server.IssueToken("secret", "extension", -time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/v1/services", "",
		http.Header{"Authorization": {"Bearer " + expired}}).Code, "non-positive ttl issues a token without expiry")

	token, err := server.IssueToken("secret", "extension", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/v1/services", "",
		http.Header{"Authorization": {"Bearer " + token}}).Code)

	_, err = server.IssueToken("", "extension", time.Hour)
	assert.Error(t, err)
}

type countingAdapter struct {
	multipost.Base
	calls *atomic.Int32
}

func (c countingAdapter) Post(context.Context, *multipost.Post, prefs.Preference) (string, error) {
	c.calls.Add(1)
	return "https://example.social/ok", nil
}

func TestPostRejectsForeignPages(t *testing.T) {
	var calls atomic.Int32
	registry := multipost.NewRegistry()
	registry.Register(multipost.Bluesky, func(store *prefs.Store) multipost.Adapter {
		return countingAdapter{Base: multipost.Base{Service: multipost.Bluesky, Store: store}, calls: &calls}
	})
	stores := prefs.NewStores(prefs.NewMemory(nil))
	t.Cleanup(func() { _ = stores.Close() })

	h := server.New(config.Default().Server, server.Deps{
		Registry:   registry,
		Stores:     stores,
		Dispatcher: dispatch.New(registry, stores, passthrough{}),
	}).Router()
	body := postBody(t, multipost.Draft{Text: "hi"}, multipost.Bluesky)

	tests := []struct {
		name   string
		header http.Header
		code   int
	}{
		{
			name:   "text/plain from another site",
			header: http.Header{"Content-Type": {"text/plain"}, "Origin": {"https://evil.example"}},
			code:   http.StatusForbidden,
		},
		{
			name:   "json from another site",
			header: http.Header{"Origin": {"https://evil.example"}},
			code:   http.StatusForbidden,
		},
		{
			name:   "text/plain without origin",
			header: http.Header{"Content-Type": {"text/plain;charset=UTF-8"}},
			code:   http.StatusUnsupportedMediaType,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/v1/post", body, tt.header)
			assert.Equal(t, tt.code, rec.Code)
		})
	}
	assert.Zero(t, calls.Load(), "no adapter runs for a rejected request")

	rec := do(t, h, http.MethodPost, "/v1/post", body, http.Header{"Origin": {"chrome-extension://abcdefghijklmnop"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "chrome-extension://abcdefghijklmnop", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, int32(1), calls.Load())
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(t, "")
	do(t, h, http.MethodGet, "/healthz", "", nil)
	rec := do(t, h, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestDedup(t *testing.T) {
	got := server.Dedup([]multipost.ServiceName{" Bluesky", "X", "Bluesky", "", "Twitter"})
	assert.Equal(t, []multipost.ServiceName{multipost.Bluesky, multipost.X, multipost.Twitter}, got)
}
