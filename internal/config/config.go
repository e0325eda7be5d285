// Package config loads multipost settings from YAML and MULTIPOST_* environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/blacktop/multipost/internal/prefs"
	yaml "go.yaml.in/yaml/v3"
)

const (
	envDatabase    = "MULTIPOST_DB"
	envAddr        = "MULTIPOST_ADDR"
	envTokenSecret = "MULTIPOST_TOKEN_SECRET"
	envPDSURL      = "MULTIPOST_BLUESKY_PDS_URL"

	defaultAddr     = "127.0.0.1:7878"
	defaultDebounce = 200 * time.Millisecond
)

// Config is the complete on-disk configuration.
type Config struct {
	Database string        `yaml:"database"`
	Debounce time.Duration `yaml:"debounce"`
	Server   Server        `yaml:"server"`
	Bluesky  Bluesky       `yaml:"bluesky"`
	// Services seeds credentials per service name (e.g. "Bluesky").
	Services map[string]prefs.Preference `yaml:"services"`
}

// Server configures the HTTP endpoint used by the browser extension.
type Server struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	// TokenSecret enables HS256 bearer authentication when set.
	TokenSecret string `yaml:"token_secret"`
}

// Bluesky holds defaults for Bluesky adapters.
type Bluesky struct {
	PDSURL string `yaml:"pds_url"`
}

// Dir is the per-user configuration directory.
func Dir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "multipost")
	}
	return ".multipost"
}

// DefaultPath is where Load looks when no path is given.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Database: filepath.Join(Dir(), "preferences.db"),
		Debounce: defaultDebounce,
		Server: Server{
			Addr:           defaultAddr,
			AllowedOrigins: []string{"chrome-extension://*", "moz-extension://*"},
		},
	}
}

// Load reads path (or DefaultPath when empty) over the defaults and applies
// environment overrides. A missing default file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	applyEnv(&cfg)
	if cfg.Debounce <= 0 {
		cfg.Debounce = defaultDebounce
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(envDatabase)); v != "" {
		cfg.Database = v
	}
	if v := strings.TrimSpace(os.Getenv(envAddr)); v != "" {
		cfg.Server.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv(envTokenSecret)); v != "" {
		cfg.Server.TokenSecret = v
	}
	if v := strings.TrimSpace(os.Getenv(envPDSURL)); v != "" {
		cfg.Bluesky.PDSURL = v
	}
}

// Seed writes credentials from the config into the stores. The stored pause
// flag is kept.
func (c Config) Seed(ctx context.Context, stores *prefs.Stores) error {
	var errs []error
	for service, pref := range c.Services {
		if len(pref.Credentials) == 0 {
			continue
		}
		if err := stores.Get(service).SetCredentials(ctx, pref.Credentials); err != nil {
			errs = append(errs, fmt.Errorf("seed %s: %w", service, err))
		}
	}
	return errors.Join(errs...)
}
