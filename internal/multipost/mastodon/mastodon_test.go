package mastodon

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/blacktop/multipost/internal/multipost"
	"github.com/blacktop/multipost/internal/prefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeServer struct {
	mu        sync.Mutex
	uploads   int
	status    string
	mediaIDs  []string
	badToken  bool
	statusURL string
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/api/v1/accounts/verify_credentials":
		if f.badToken || r.Header.Get("Authorization") != "Bearer token" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":"The access token is invalid"}`)
			return
		}
		_, _ = io.WriteString(w, `{"id":"1","username":"alice","acct":"alice"}`)

	case r.URL.Path == "/api/v1/media" || r.URL.Path == "/api/v2/media":
		f.uploads++
		_, _ = io.WriteString(w, `{"id":"m`+strings.Repeat("1", f.uploads)+`","type":"image"}`)

	case r.URL.Path == "/api/v1/statuses":
		_ = r.ParseForm()
		f.status = r.PostForm.Get("status")
		f.mediaIDs = r.PostForm["media_ids[]"]
		_, _ = io.WriteString(w, `{"id":"42","url":"`+f.statusURL+`"}`)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func setup(t *testing.T, f *fakeServer) (*Adapter, prefs.Preference) {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	f.statusURL = srv.URL + "/@alice/42"

	a := New(prefs.NewStores(prefs.NewMemory(nil)).Get(string(multipost.Mastodon)))
	pref := prefs.Preference{Credentials: map[string]string{keyServer: srv.URL + "/", keyAccessToken: "token"}}
	return a, pref
}

func TestPostWithImages(t *testing.T) {
	f := &fakeServer{}
	a, pref := setup(t, f)

	url, err := a.Post(context.Background(), &multipost.Post{
		Text:   "hello",
		Images: []multipost.PostImage{{Binary: []byte("a"), MimeType: "image/png"}, {Binary: []byte("b"), MimeType: "image/png"}},
	}, pref)
	require.NoError(t, err)
	assert.Equal(t, f.statusURL, url)
	assert.Equal(t, 2, f.uploads)
	assert.Equal(t, "hello", f.status)
	assert.Equal(t, []string{"m1", "m11"}, f.mediaIDs)
}

func TestPostLinkCardAppendsURL(t *testing.T) {
	f := &fakeServer{}
	a, pref := setup(t, f)

	_, err := a.Post(context.Background(), &multipost.Post{
		Text:     "look",
		Images:   []multipost.PostImage{{Binary: []byte("a")}},
		LinkCard: &multipost.LinkCard{URL: "https://example.com"},
	}, pref)
	require.NoError(t, err)
	assert.Zero(t, f.uploads)
	assert.Equal(t, "look\n\nhttps://example.com", f.status)

	_, err = a.Post(context.Background(), &multipost.Post{
		Text:     "look https://example.com",
		LinkCard: &multipost.LinkCard{URL: "https://example.com"},
	}, pref)
	require.NoError(t, err)
	assert.Equal(t, "look https://example.com", f.status)
}

func TestPostInvalidToken(t *testing.T) {
	f := &fakeServer{badToken: true}
	a, pref := setup(t, f)

	_, err := a.Post(context.Background(), &multipost.Post{Text: "x"}, pref)
	var authErr multipost.AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Empty(t, f.status)
}

func TestLoadConfig(t *testing.T) {
	_, err := loadConfig(prefs.Preference{})
	var missing multipost.MissingCredentialError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{keyServer, keyAccessToken}, missing.Keys)

	cfg, err := loadConfig(prefs.Preference{Credentials: map[string]string{keyServer: "mastodon.social/", keyAccessToken: "t"}})
	require.NoError(t, err)
	assert.Equal(t, "https://mastodon.social", cfg.Server)
}
