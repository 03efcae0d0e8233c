package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"mvpplanner/internal/source/core"
	"mvpplanner/pkg/domain"
)

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "mirror.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	if _, err := store.Fetch(ctx, domain.CollectionClinicians); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound before mirror, got %v", err)
	}

	rows := []domain.Record{{"clinician_id": "1", "is_active": "Y"}, {"clinician_id": "2"}}
	if err := store.Store(ctx, domain.CollectionClinicians, rows); err != nil {
		t.Fatalf("store: %v", err)
	}
	if err := store.Store(ctx, domain.CollectionClinicians, rows[:1]); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := store.Fetch(ctx, domain.CollectionClinicians)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(got) != 1 || got[0]["clinician_id"] != "1" || got[0]["is_active"] != "Y" {
		t.Fatalf("unexpected rows %v", got)
	}
}

func TestStoreNilCollectionIsEmpty(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "mirror.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	if err := store.Store(ctx, domain.CollectionWork, nil); err != nil {
		t.Fatalf("store: %v", err)
	}
	got, err := store.Fetch(ctx, domain.CollectionWork)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestStoreReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mirror.db")
	first, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := first.Store(context.Background(), domain.CollectionConfig, []domain.Record{{"setting": "organization_name", "value": "Converse"}}); err != nil {
		t.Fatalf("store: %v", err)
	}
	_ = first.Close()

	second, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = second.Close() }()
	got, err := second.Fetch(context.Background(), domain.CollectionConfig)
	if err != nil || len(got) != 1 {
		t.Fatalf("expected persisted config row, got %v (%v)", got, err)
	}
	if second.Path() != path {
		t.Fatalf("unexpected path %s", second.Path())
	}
}

func TestStoreAllWritesSnapshot(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "mirror.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	err = store.StoreAll(ctx, domain.Snapshot{
		domain.CollectionMVPs:   {{"mvp_id": "G1"}, {"mvp_id": "G2"}},
		domain.CollectionConfig: nil,
	})
	if err != nil {
		t.Fatalf("store all: %v", err)
	}
	if got, err := store.Fetch(ctx, domain.CollectionMVPs); err != nil || len(got) != 2 {
		t.Fatalf("mvps: %v %v", got, err)
	}
	if got, err := store.Fetch(ctx, domain.CollectionConfig); err != nil || len(got) != 0 {
		t.Fatalf("config: %v %v", got, err)
	}
	if _, err := store.Fetch(ctx, domain.CollectionWork); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("collections outside the snapshot stay unwritten, got %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := store.StoreAll(cancelled, domain.Snapshot{domain.CollectionMVPs: nil}); err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if got, _ := store.Fetch(ctx, domain.CollectionMVPs); len(got) != 2 {
		t.Fatalf("failed snapshot must not replace mvps, got %v", got)
	}
}
