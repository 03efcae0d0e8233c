// Package core defines the artifact store abstraction implemented by the
// drivers under internal/infra/blob.
package core

import (
	"context"
	"errors"
	"io"
	"time"
)

// Driver identifies a concrete artifact store backend.
type Driver string

const (
	// DriverFilesystem writes artifacts under a local directory.
	DriverFilesystem Driver = "fs"
	// DriverS3 writes artifacts to an S3 or MinIO bucket.
	DriverS3 Driver = "s3"
	// DriverMemory keeps artifacts in process memory.
	DriverMemory Driver = "memory"
)

// PutOptions describes an artifact being written.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// SignedURLOptions configures a download link.
type SignedURLOptions struct {
	Method string        // only GET is supported
	Expiry time.Duration // default 15m
}

// Info describes a stored artifact.
type Info struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size_bytes"`
	ContentType  string            `json:"content_type,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastModified time.Time         `json:"last_modified"`
	URL          string            `json:"url,omitempty"`
}

// Store is a create-only key/object store for rendered plan exports.
type Store interface {
	// Put writes a new artifact and fails with ErrExists when key is taken.
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	// Get opens an artifact or returns ErrNotFound.
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	// Head returns artifact metadata or ErrNotFound.
	Head(ctx context.Context, key string) (Info, error)
	// Delete removes an artifact and reports whether it existed.
	Delete(ctx context.Context, key string) (bool, error)
	// List returns artifacts under prefix ordered by key.
	List(ctx context.Context, prefix string) ([]Info, error)
	// PresignURL returns a time-limited download link, or ErrUnsupported.
	PresignURL(ctx context.Context, key string, opts SignedURLOptions) (string, error)
	Driver() Driver
}

var (
	// ErrUnsupported is returned when a driver lacks an optional capability.
	ErrUnsupported = errors.New("blob: unsupported operation")
	// ErrNotFound is returned for missing artifacts.
	ErrNotFound = errors.New("blob: artifact not found")
	// ErrExists is returned when Put targets an existing key.
	ErrExists = errors.New("blob: artifact already exists")
	// ErrInvalidKey is returned for keys a driver cannot address.
	ErrInvalidKey = errors.New("blob: invalid artifact key")
)

// CloneMetadata copies a metadata map; nil stays nil.
func CloneMetadata(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
