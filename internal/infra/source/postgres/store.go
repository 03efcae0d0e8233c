// Package postgres mirrors planner collections into PostgreSQL as JSONB
// payloads keyed by collection name.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"mvpplanner/internal/source/core"
	"mvpplanner/pkg/domain"
)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/mvpplanner?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// OverrideSQLOpen swaps the sql.Open hook and returns a restore func.
func OverrideSQLOpen(fn func(driverName, dsn string) (*sql.DB, error)) func() {
	openMu.Lock()
	prev := sqlOpen
	sqlOpen = fn
	openMu.Unlock()
	return func() {
		openMu.Lock()
		sqlOpen = prev
		openMu.Unlock()
	}
}

// Store reads and writes the collections table.
type Store struct {
	db *sql.DB
}

// Open connects with dsn (a local default when empty), pings the server and
// ensures the collections table exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureTable(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func ensureTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS collections (
		name TEXT PRIMARY KEY,
		payload JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure collections table: %w", err)
	}
	return nil
}

// Fetch returns the mirrored rows, or core.ErrNotFound when the collection
// was never stored.
func (s *Store) Fetch(ctx context.Context, name domain.CollectionName) ([]domain.Record, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM collections WHERE name = $1`, string(name)).Scan(&payload)
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
		`INSERT INTO collections(name, payload, updated_at) VALUES($1, $2, now())
		ON CONFLICT(name) DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()`,
		string(name), payload)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", name, err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration hooks.
func (s *Store) DB() *sql.DB { return s.db }
