// Package source loads the planner collections from the configured backend.
package source

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"mvpplanner/internal/source/core"
	"mvpplanner/pkg/domain"
)

type (
	// Driver identifies a collection source backend.
	Driver = core.Driver
	// Provider fetches one collection.
	Provider = core.Provider
	// Writer replaces one collection.
	Writer = core.Writer
	// SnapshotWriter replaces every collection in one commit.
	SnapshotWriter = core.SnapshotWriter
)

// Driver names.
const (
	DriverSheets   = core.DriverSheets
	DriverWorkbook = core.DriverWorkbook
	DriverSQLite   = core.DriverSQLite
	DriverPostgres = core.DriverPostgres
	DriverMemory   = core.DriverMemory
)

// ErrNotFound reports a collection the source does not hold.
var ErrNotFound = core.ErrNotFound

// FetchAll fetches every collection concurrently. A collection the source
// does not hold loads as empty; any other failure aborts the whole fetch.
func FetchAll(ctx context.Context, p Provider) (domain.Snapshot, error) {
	names := domain.Collections()
	results := make([][]domain.Record, len(names))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			records, err := p.Fetch(gctx, name)
			if errors.Is(err, ErrNotFound) {
				records, err = []domain.Record{}, nil
			}
			if err != nil {
				return fmt.Errorf("fetch %s: %w", name, err)
			}
			results[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	snapshot := make(domain.Snapshot, len(names))
	for i, name := range names {
		snapshot[name] = results[i]
	}
	return snapshot, nil
}

// Mirror copies every collection from src into dst and returns the row count
// written per collection. A dst that is a SnapshotWriter is written in one
// commit; otherwise collections are stored one by one and a failure leaves
// the earlier ones already replaced.
func Mirror(ctx context.Context, src Provider, dst Writer) (map[domain.CollectionName]int, error) {
	snapshot, err := FetchAll(ctx, src)
	if err != nil {
		return nil, err
	}
	counts := make(map[domain.CollectionName]int, len(snapshot))
	if sw, ok := dst.(SnapshotWriter); ok {
		if err := sw.StoreAll(ctx, snapshot); err != nil {
			return nil, fmt.Errorf("store snapshot: %w", err)
		}
		for _, name := range domain.Collections() {
			counts[name] = len(snapshot[name])
		}
		return counts, nil
	}
	for _, name := range domain.Collections() {
		if err := dst.Store(ctx, name, snapshot[name]); err != nil {
			return counts, fmt.Errorf("store %s: %w", name, err)
		}
		counts[name] = len(snapshot[name])
	}
	return counts, nil
}
