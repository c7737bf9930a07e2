// Package store persists conjunction events and sweep run bookkeeping in a
// SQLite database. The event log is append-only: nothing here updates or
// deletes an event once written.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("sweep run not found")

// timestampLayout is the ISO-8601 UTC form stored in TEXT columns. It is
// fixed width, so lexical order matches chronological order.
const timestampLayout = "2006-01-02T15:04:05Z"

// Store is a SQLite-backed event store.
type Store struct {
	db   *sql.DB
	path string
}

// Open connects to the database at path, creating the file if needed. Call
// Initialize before first use.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("store path is empty")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection serialises step commits and keeps pragmas in effect.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database location.
func (s *Store) Path() string { return s.path }

// Close releases the database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Initialize creates the schema. It is safe to call on an existing store.
func (s *Store) Initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sweep_runs (
		id TEXT PRIMARY KEY,
		window_start TEXT NOT NULL,
		window_end TEXT NOT NULL,
		step_ns INTEGER NOT NULL CHECK (step_ns > 0),
		threshold_km REAL NOT NULL CHECK (threshold_km > 0),
		object_count INTEGER NOT NULL,
		status TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		last_instant TEXT
	);

	-- Conjunction events (append-only)
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT REFERENCES sweep_runs(id),
		timestamp TEXT NOT NULL,
		sat1 TEXT NOT NULL,
		sat2 TEXT NOT NULL,
		distance_km REAL NOT NULL CHECK (distance_km >= 0),
		CHECK (sat1 < sat2)
	);

	CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);
	CREATE INDEX IF NOT EXISTS idx_events_run ON events(run_id);
	CREATE INDEX IF NOT EXISTS idx_events_sat1 ON events(sat1);
	CREATE INDEX IF NOT EXISTS idx_events_sat2 ON events(sat2);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// parseTimestamp accepts the stored layout and the looser forms SQLite
// tooling tends to write.
func parseTimestamp(s string) time.Time {
	formats := []string{
		timestampLayout,
		time.RFC3339Nano,
		"2006-01-02 15:04:05",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func nullTimestamp(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTimestamp(t), Valid: true}
}
