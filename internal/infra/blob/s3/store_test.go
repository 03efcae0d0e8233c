package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"mvpplanner/internal/blob/core"
)

// fakeBucket serves the path-style subset of the S3 API the store uses.
type fakeBucket struct {
	mu      sync.Mutex
	name    string
	objects map[string]fakeObject
	fail    bool
}

type fakeObject struct {
	body        []byte
	contentType string
	meta        map[string]string
}

const pageSize = 2

func newFakeBucket(name string) *fakeBucket {
	return &fakeBucket{name: name, objects: make(map[string]fakeObject)}
}

func (f *fakeBucket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/"+f.name)
	key := strings.TrimPrefix(rest, "/")

	if r.Method == http.MethodGet && r.URL.Query().Get("list-type") == "2" {
		f.list(w, r)
		return
	}
	obj, ok := f.objects[key]
	switch r.Method {
	case http.MethodHead, http.MethodGet:
		if !ok {
			if r.Method == http.MethodHead {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, "<Error><Code>NoSuchKey</Code><Message>missing</Message></Error>")
			return
		}
		h := w.Header()
		h.Set("Content-Length", strconv.Itoa(len(obj.body)))
		h.Set("Content-Type", obj.contentType)
		h.Set("ETag", `"`+fmt.Sprintf("%x", len(obj.body))+`"`)
		h.Set("Last-Modified", time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC).Format(http.TimeFormat))
		for k, v := range obj.meta {
			h.Set("X-Amz-Meta-"+k, v)
		}
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = w.Write(obj.body)
		}
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		meta := map[string]string{}
		for k, v := range r.Header {
			if strings.HasPrefix(strings.ToLower(k), "x-amz-meta-") {
				meta[strings.ToLower(strings.TrimPrefix(strings.ToLower(k), "x-amz-meta-"))] = v[0]
			}
		}
		f.objects[key] = fakeObject{body: body, contentType: r.Header.Get("Content-Type"), meta: meta}
		w.Header().Set("ETag", `"put"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func (f *fakeBucket) list(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	start, _ := strconv.Atoi(r.URL.Query().Get("continuation-token"))
	end := start + pageSize
	if end > len(keys) {
		end = len(keys)
	}
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult>`)
	if end < len(keys) {
		fmt.Fprintf(&b, "<IsTruncated>true</IsTruncated><NextContinuationToken>%d</NextContinuationToken>", end)
	} else {
		b.WriteString("<IsTruncated>false</IsTruncated>")
	}
	for _, k := range keys[start:end] {
		fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size><ETag>&quot;e&quot;</ETag><LastModified>2026-10-19T09:30:00Z</LastModified></Contents>", k, len(f.objects[k].body))
	}
	b.WriteString("</ListBucketResult>")
	w.Header().Set("Content-Type", "application/xml")
	_, _ = io.WriteString(w, b.String())
}

func newTestStore(t *testing.T) (*Store, *fakeBucket) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(dir, "credentials"))
	bucket := newFakeBucket("mvp-exports")
	srv := httptest.NewServer(bucket)
	t.Cleanup(srv.Close)
	store, err := New(context.Background(), Config{
		Bucket:          bucket.name,
		Endpoint:        srv.URL,
		PathStyle:       true,
		AccessKeyID:     "AKIDTEST",
		SecretAccessKey: "secret",
		HTTPClient:      srv.Client(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store, bucket
}

func TestStorePutHeadGet(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	if store.Driver() != core.DriverS3 || store.Bucket() != "mvp-exports" {
		t.Fatalf("unexpected store %s %s", store.Driver(), store.Bucket())
	}

	info, err := store.Put(ctx, "exports/1/mvp_plan.txt", bytes.NewReader([]byte("MVP Plan")), core.PutOptions{
		ContentType: "text/plain",
		Metadata:    map[string]string{"format": "txt"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 8 || info.ContentType != "text/plain" || info.Metadata["format"] != "txt" {
		t.Fatalf("unexpected info %+v", info)
	}
	if strings.Contains(info.ETag, `"`) {
		t.Fatalf("etag should be unquoted: %s", info.ETag)
	}

	if _, err := store.Put(ctx, "exports/1/mvp_plan.txt", bytes.NewReader(nil), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}

	got, rc, err := store.Get(ctx, "exports/1/mvp_plan.txt")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = rc.Close() }()
	body, _ := io.ReadAll(rc)
	if string(body) != "MVP Plan" || got.Key != "exports/1/mvp_plan.txt" {
		t.Fatalf("unexpected get %q %+v", body, got)
	}
}

func TestStoreMissingObjectsMapToErrNotFound(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	if _, err := store.Head(ctx, "nope"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("head: %v", err)
	}
	if _, _, err := store.Get(ctx, "nope"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("get: %v", err)
	}
	if ok, err := store.Delete(ctx, "nope"); err != nil || ok {
		t.Fatalf("delete missing: %v %v", ok, err)
	}
}

func TestStoreDeleteAndPaginatedList(t *testing.T) {
	ctx := context.Background()
	store, bucket := newTestStore(t)
	for _, key := range []string{"exports/c", "exports/a", "other/x", "exports/b"} {
		if _, err := store.Put(ctx, key, bytes.NewReader([]byte(key)), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	list, err := store.List(ctx, "exports/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 || list[0].Key != "exports/a" || list[2].Key != "exports/c" {
		t.Fatalf("unexpected list %+v", list)
	}

	ok, err := store.Delete(ctx, "exports/a")
	if err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	bucket.mu.Lock()
	_, exists := bucket.objects["exports/a"]
	bucket.mu.Unlock()
	if exists {
		t.Fatalf("object still present after delete")
	}
}

func TestStoreServerErrorsAreNotNotFound(t *testing.T) {
	ctx := context.Background()
	store, bucket := newTestStore(t)
	bucket.mu.Lock()
	bucket.fail = true
	bucket.mu.Unlock()
	_, err := store.Head(ctx, "k")
	if err == nil || errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected non-notfound error, got %v", err)
	}
	if _, err := store.Put(ctx, "k", bytes.NewReader([]byte("x")), core.PutOptions{}); err == nil {
		t.Fatalf("expected put to fail when head fails")
	}
}

func TestStorePresign(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	url, err := store.PresignURL(ctx, "exports/1/mvp_plan.xlsx", core.SignedURLOptions{Expiry: time.Minute})
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if !strings.Contains(url, "X-Amz-Expires=60") || !strings.Contains(url, "/mvp-exports/exports/1/mvp_plan.xlsx") {
		t.Fatalf("unexpected url %s", url)
	}
	if _, err := store.PresignURL(ctx, "k", core.SignedURLOptions{Method: http.MethodPut}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected missing bucket error")
	}
}
