package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/blacktop/multipost/internal/config"
	"github.com/blacktop/multipost/internal/prefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `database: /tmp/multipost.db
debounce: 500ms
server:
  addr: 127.0.0.1:9999
  allowed_origins: ["chrome-extension://abc"]
bluesky:
  pds_url: https://pds.example.com
services:
  Bluesky:
    credentials:
      username: alice.bsky.social
      password: app-password
  Mastodon:
    paused: true
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, sample))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/multipost.db", cfg.Database)
	assert.Equal(t, 500*time.Millisecond, cfg.Debounce)
	assert.Equal(t, "127.0.0.1:9999", cfg.Server.Addr)
	assert.Equal(t, []string{"chrome-extension://abc"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "https://pds.example.com", cfg.Bluesky.PDSURL)
	assert.Equal(t, "alice.bsky.social", cfg.Services["Bluesky"].Get("username"))
	assert.True(t, cfg.Services["Mastodon"].Paused)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MULTIPOST_DB", "/var/lib/multipost.db")
	t.Setenv("MULTIPOST_ADDR", ":8080")
	t.Setenv("MULTIPOST_TOKEN_SECRET", "s3cret")
	t.Setenv("MULTIPOST_BLUESKY_PDS_URL", "https://other.example.com")

	cfg, err := config.Load(writeConfig(t, sample))
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/multipost.db", cfg.Database)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "s3cret", cfg.Server.TokenSecret)
	assert.Equal(t, "https://other.example.com", cfg.Bluesky.PDSURL)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)
	def := config.Default()
	assert.Equal(t, def.Server.Addr, cfg.Server.Addr)
	assert.Equal(t, def.Debounce, cfg.Debounce)
	assert.NotEmpty(t, cfg.Server.AllowedOrigins)
}

func TestLoadErrors(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err, "an explicit path must exist")

	_, err = config.Load(writeConfig(t, "server: [1, 2"))
	assert.Error(t, err)
}

func TestSeedKeepsPauseFlag(t *testing.T) {
	ctx := context.Background()
	stores := prefs.NewStores(prefs.NewMemory(map[string]prefs.Preference{"Bluesky": {Paused: true}}))

	cfg, err := config.Load(writeConfig(t, sample))
	require.NoError(t, err)
	require.NoError(t, cfg.Seed(ctx, stores))

	pref, err := stores.Get("Bluesky").Load(ctx)
	require.NoError(t, err)
	assert.True(t, pref.Paused)
	assert.Equal(t, "app-password", pref.Get("password"))

	mastodon, err := stores.Get("Mastodon").Load(ctx)
	require.NoError(t, err)
	assert.False(t, mastodon.Paused, "pause flags are never seeded from config")
}
