// Package sqlite mirrors planner collections into a SQLite file, one JSON
// payload per collection.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"mvpplanner/internal/source/core"
	"mvpplanner/pkg/domain"
)

// Store reads and writes the collections table.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates the database file and collections table when missing.
func Open(path string) (*Store, error) {
	if path == "" {
		path = "mvpplanner.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS collections (
		name TEXT PRIMARY KEY,
		payload BLOB NOT NULL,
		updated_at TEXT NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create collections table: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Fetch returns the mirrored rows, or core.ErrNotFound when the collection
// was never stored.
func (s *Store) Fetch(ctx context.Context, name domain.CollectionName) ([]domain.Record, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM collections WHERE name = ?`, string(name)).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", name, err)
	}
	records := []domain.Record{}
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return records, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Store upserts the collection payload.
func (s *Store) Store(ctx context.Context, name domain.CollectionName, records []domain.Record) error {
	return upsert(ctx, s.db, name, records)
}

// StoreAll upserts every collection of the snapshot in one transaction.
func (s *Store) StoreAll(ctx context.Context, snapshot domain.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	for _, name := range domain.Collections() {
		records, ok := snapshot[name]
		if !ok {
			continue
		}
		if err := upsert(ctx, tx, name, records); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func upsert(ctx context.Context, db execer, name domain.CollectionName, records []domain.Record) error {
	if records == nil {
		records = []domain.Record{}
	}
	payload, err := json.Marshal(records)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO collections(name, payload, updated_at) VALUES(?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		string(name), payload, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upsert %s: %w", name, err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for tests.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the database file path.
func (s *Store) Path() string { return s.path }
