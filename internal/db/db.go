// Package db opens the telemetry database and owns its schema.
package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps the sqlite handle used by the telemetry store.
type DB struct {
	*sql.DB
}

// NewDB opens (or creates) the telemetry database at path and ensures the
// schema exists. Use ":memory:" for tests.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening telemetry db %q: %w", path, err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS render_tier_changes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			from_tier TEXT NOT NULL,
			to_tier TEXT NOT NULL,
			fps DOUBLE NOT NULL,
			changed_at TIMESTAMP NOT NULL
		);
		CREATE TABLE IF NOT EXISTS render_fps_samples (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			fps DOUBLE NOT NULL,
			tier TEXT NOT NULL,
			sampled_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_fps_samples_time
			ON render_fps_samples(sampled_at);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating telemetry schema: %w", err)
	}

	return &DB{db}, nil
}
