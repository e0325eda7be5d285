package prefs

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrations string

type sqliteBackend struct {
	db *sql.DB
}

// OpenSQLite opens (and migrates) a preference database at path.
// The special path ":memory:" keeps everything in memory.
func OpenSQLite(ctx context.Context, path string) (Backend, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite prefers a single writer; this also keeps ":memory:" on one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, _ = db.ExecContext(ctx, "PRAGMA busy_timeout = 5000")
	_, _ = db.ExecContext(ctx, "PRAGMA journal_mode = WAL")

	if _, err := db.ExecContext(ctx, migrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &sqliteBackend{db: db}, nil
}

func (s *sqliteBackend) Get(ctx context.Context, service string) (Preference, bool, error) {
	var (
		paused bool
		creds  sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT paused, credentials FROM preferences WHERE service = ?`, service,
	).Scan(&paused, &creds)
	if errors.Is(err, sql.ErrNoRows) {
		return Preference{}, false, nil
	}
	if err != nil {
		return Preference{}, false, fmt.Errorf("load %s preference: %w", service, err)
	}

	pref := Preference{Paused: paused}
	if creds.Valid && creds.String != "" {
		if err := json.Unmarshal([]byte(creds.String), &pref.Credentials); err != nil {
			return Preference{}, false, fmt.Errorf("decode %s credentials: %w", service, err)
		}
	}
	return pref, true, nil
}

func (s *sqliteBackend) Put(ctx context.Context, service string, pref Preference) error {
	var creds any
	if len(pref.Credentials) > 0 {
		buf, err := json.Marshal(pref.Credentials)
		if err != nil {
			return fmt.Errorf("encode %s credentials: %w", service, err)
		}
		creds = string(buf)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO preferences(service, paused, credentials, updated_at) VALUES(?,?,?,?)
		 ON CONFLICT(service) DO UPDATE SET paused=excluded.paused, credentials=excluded.credentials, updated_at=excluded.updated_at`,
		service, pref.Paused, creds, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save %s preference: %w", service, err)
	}
	return nil
}

func (s *sqliteBackend) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
