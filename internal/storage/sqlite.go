package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteLocation stores the license blob in a single-row table inside the
// application's embedded SQLite database, keyed by a fixed literal and
// overwritten in place.
type SQLiteLocation struct {
	db  *sql.DB
	key string
}

// NewSQLiteLocation opens (creating if needed) the SQLite database at path.
func NewSQLiteLocation(path, key string) (*SQLiteLocation, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	// Single writer; the license record is one row.
	db.SetMaxOpenConns(1)
	return &SQLiteLocation{db: db, key: key}, nil
}

func (s *SQLiteLocation) Name() string { return "sqlite" }

// Prepare ensures the license table exists.
func (s *SQLiteLocation) Prepare(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS license_state (
			key        TEXT PRIMARY KEY,
			blob       TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create license_state table: %w", err)
	}
	return nil
}

func (s *SQLiteLocation) Read(ctx context.Context) ([]byte, error) {
	var blob string
	err := s.db.QueryRowContext(ctx,
		`SELECT blob FROM license_state WHERE key = ?`, s.key).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read license row: %w", err)
	}
	return []byte(blob), nil
}

func (s *SQLiteLocation) Write(ctx context.Context, blob []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO license_state (key, blob, updated_at) VALUES (?, ?, ?)`,
		s.key, string(blob), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to write license row: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteLocation) Close() error {
	return s.db.Close()
}
