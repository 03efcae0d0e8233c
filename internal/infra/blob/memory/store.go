// Package memory keeps plan export artifacts in process memory.
package memory

import (
	"bytes"
	"context"
	"crypto/md5" //nolint:gosec // etag only
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"mvpplanner/internal/blob/core"
)

type artifact struct {
	info core.Info
	body []byte
}

// Store implements core.Store over a mutex-guarded map.
type Store struct {
	mu        sync.RWMutex
	artifacts map[string]artifact
}

// New returns an empty in-memory store.
func New() *Store { return &Store{artifacts: make(map[string]artifact)} }

// Driver reports core.DriverMemory.
func (s *Store) Driver() core.Driver { return core.DriverMemory }

// Put buffers r and stores it under key when key is unused.
func (s *Store) Put(_ context.Context, key string, r io.Reader, opts core.PutOptions) (core.Info, error) {
	if strings.TrimSpace(key) == "" {
		return core.Info{}, fmt.Errorf("artifact key is empty")
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return core.Info{}, err
	}
	sum := md5.Sum(body) //nolint:gosec
	info := core.Info{
		Key:          key,
		Size:         int64(len(body)),
		ContentType:  opts.ContentType,
		ETag:         hex.EncodeToString(sum[:]),
		Metadata:     core.CloneMetadata(opts.Metadata),
		LastModified: time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.artifacts[key]; taken {
		return core.Info{}, fmt.Errorf("%w: %s", core.ErrExists, key)
	}
	s.artifacts[key] = artifact{info: info, body: body}
	return copyInfo(info), nil
}

// Get returns a reader over a copy of the stored bytes.
func (s *Store) Get(_ context.Context, key string) (core.Info, io.ReadCloser, error) {
	s.mu.RLock()
	a, ok := s.artifacts[key]
	s.mu.RUnlock()
	if !ok {
		return core.Info{}, nil, fmt.Errorf("%w: %s", core.ErrNotFound, key)
	}
	return copyInfo(a.info), io.NopCloser(bytes.NewReader(bytes.Clone(a.body))), nil
}

// Head returns the stored metadata.
func (s *Store) Head(_ context.Context, key string) (core.Info, error) {
	s.mu.RLock()
	a, ok := s.artifacts[key]
	s.mu.RUnlock()
	if !ok {
		return core.Info{}, fmt.Errorf("%w: %s", core.ErrNotFound, key)
	}
	return copyInfo(a.info), nil
}

// Delete removes key and reports whether it was present.
func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.artifacts[key]; !ok {
		return false, nil
	}
	delete(s.artifacts, key)
	return true, nil
}

// List returns artifacts whose key starts with prefix, ordered by key.
func (s *Store) List(_ context.Context, prefix string) ([]core.Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Info, 0, len(s.artifacts))
	for key, a := range s.artifacts {
		if strings.HasPrefix(key, prefix) {
			out = append(out, copyInfo(a.info))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// PresignURL is not available in memory.
func (s *Store) PresignURL(context.Context, string, core.SignedURLOptions) (string, error) {
	return "", core.ErrUnsupported
}

func copyInfo(in core.Info) core.Info {
	in.Metadata = core.CloneMetadata(in.Metadata)
	return in
}
