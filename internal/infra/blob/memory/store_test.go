package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"mvpplanner/internal/blob/core"
)

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := New()
	if store.Driver() != core.DriverMemory {
		t.Fatalf("unexpected driver %s", store.Driver())
	}

	meta := map[string]string{"format": "json"}
	info, err := store.Put(ctx, "exports/1/plan.json", bytes.NewReader([]byte(`{}`)), core.PutOptions{ContentType: "application/json", Metadata: meta})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	meta["format"] = "mutated"
	if info.Size != 2 || info.ETag == "" {
		t.Fatalf("unexpected info %+v", info)
	}

	head, err := store.Head(ctx, "exports/1/plan.json")
	if err != nil || head.Metadata["format"] != "json" {
		t.Fatalf("metadata not isolated from caller: %v %+v", err, head)
	}

	_, rc, err := store.Get(ctx, "exports/1/plan.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	if string(body) != "{}" {
		t.Fatalf("unexpected body %q", body)
	}

	if _, err := store.Put(ctx, "exports/1/plan.json", bytes.NewReader(nil), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if _, err := store.Put(ctx, " ", bytes.NewReader(nil), core.PutOptions{}); err == nil {
		t.Fatalf("expected empty key error")
	}
}

func TestStoreMissingAndDelete(t *testing.T) {
	ctx := context.Background()
	store := New()
	if _, err := store.Head(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("head: %v", err)
	}
	if _, _, err := store.Get(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("get: %v", err)
	}
	if ok, err := store.Delete(ctx, "missing"); err != nil || ok {
		t.Fatalf("delete missing: %v %v", ok, err)
	}
	_, _ = store.Put(ctx, "k", bytes.NewReader([]byte("v")), core.PutOptions{})
	if ok, err := store.Delete(ctx, "k"); err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if _, err := store.PresignURL(ctx, "k", core.SignedURLOptions{}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("presign: %v", err)
	}
}

func TestStoreListPrefix(t *testing.T) {
	ctx := context.Background()
	store := New()
	for _, key := range []string{"z", "exports/b", "exports/a"} {
		_, _ = store.Put(ctx, key, bytes.NewReader([]byte(key)), core.PutOptions{})
	}
	list, err := store.List(ctx, "exports/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Key != "exports/a" || list[1].Key != "exports/b" {
		t.Fatalf("unexpected list %+v", list)
	}
}

func TestStoreConcurrentPutsKeepOneWinner(t *testing.T) {
	ctx := context.Background()
	store := New()
	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Put(ctx, "same", bytes.NewReader([]byte("x")), core.PutOptions{})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	var ok int
	for err := range errs {
		if err == nil {
			ok++
		} else if !errors.Is(err, core.ErrExists) {
			t.Fatalf("unexpected error %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("expected exactly one successful put, got %d", ok)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("fail") }

func TestStorePutReadError(t *testing.T) {
	if _, err := New().Put(context.Background(), "bad", failingReader{}, core.PutOptions{}); err == nil {
		t.Fatalf("expected read error")
	}
}
