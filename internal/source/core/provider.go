// Package core defines the collection source abstractions implemented by the
// drivers under internal/infra/source.
package core

import (
	"context"
	"errors"

	"mvpplanner/pkg/domain"
)

// Driver identifies a concrete collection source.
type Driver string

const (
	// DriverSheets reads CSV exports of a Google spreadsheet.
	DriverSheets Driver = "sheets"
	// DriverWorkbook reads a local .xlsx workbook.
	DriverWorkbook Driver = "workbook"
	// DriverSQLite reads collections mirrored into a SQLite file.
	DriverSQLite Driver = "sqlite"
	// DriverPostgres reads collections mirrored into PostgreSQL.
	DriverPostgres Driver = "postgres"
	// DriverMemory serves a fixed in-process snapshot.
	DriverMemory Driver = "memory"
)

// Provider fetches one collection's rows in source order.
type Provider interface {
	Fetch(ctx context.Context, name domain.CollectionName) ([]domain.Record, error)
}

// Writer replaces one collection's rows.
type Writer interface {
	Store(ctx context.Context, name domain.CollectionName, records []domain.Record) error
}

// SnapshotWriter replaces every collection of a snapshot in one commit, so a
// failure leaves the previous contents untouched.
type SnapshotWriter interface {
	StoreAll(ctx context.Context, snapshot domain.Snapshot) error
}

// ErrNotFound reports a collection the source does not hold at all.
var ErrNotFound = errors.New("collection not found in source")
