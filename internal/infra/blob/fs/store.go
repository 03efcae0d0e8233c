// Package fs stores plan export artifacts in a local directory. Each artifact
// has a JSON sidecar (<key>.meta.json) holding its content type, digest and
// user metadata.
package fs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"mvpplanner/internal/blob/core"
)

const (
	sidecarSuffix = ".meta.json"
	defaultRoot   = "./exports"
)

// Store implements core.Store on the local filesystem.
type Store struct {
	root string
	now  func() time.Time
}

// New returns a store rooted at dir, creating the directory when missing.
func New(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		dir = defaultRoot
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	return &Store{root: dir, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Root returns the directory artifacts are written under.
func (s *Store) Root() string { return s.root }

// Driver reports core.DriverFilesystem.
func (s *Store) Driver() core.Driver { return core.DriverFilesystem }

type sidecar struct {
	ContentType string            `json:"content_type,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	SHA256      string            `json:"sha256"`
	Size        int64             `json:"size"`
	WrittenAt   time.Time         `json:"written_at"`
}

func (m sidecar) info(key string) core.Info {
	return core.Info{
		Key:          key,
		Size:         m.Size,
		ContentType:  m.ContentType,
		ETag:         m.SHA256,
		Metadata:     core.CloneMetadata(m.Metadata),
		LastModified: m.WrittenAt,
		URL:          fileURL(key),
	}
}

// cleanKey rejects keys that are empty, absolute or escape the root.
func cleanKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("%w: empty", core.ErrInvalidKey)
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", fmt.Errorf("%w: %q must be a relative slash path", core.ErrInvalidKey, key)
	}
	cleaned := path.Clean(key)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") || strings.Contains(key, "..") {
		return "", fmt.Errorf("%w: %q escapes the export dir", core.ErrInvalidKey, key)
	}
	if strings.HasSuffix(cleaned, sidecarSuffix) {
		return "", fmt.Errorf("%w: %q uses the reserved %s suffix", core.ErrInvalidKey, key, sidecarSuffix)
	}
	return cleaned, nil
}

func (s *Store) paths(key string) (string, string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", "", err
	}
	data := filepath.Join(s.root, filepath.FromSlash(k))
	return data, data + sidecarSuffix, nil
}

// Put writes the artifact through a temp file and renames it into place.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, opts core.PutOptions) (core.Info, error) {
	dataPath, metaPath, err := s.paths(key)
	if err != nil {
		return core.Info{}, err
	}
	if err := ctx.Err(); err != nil {
		return core.Info{}, err
	}
	if _, err := os.Stat(dataPath); err == nil {
		return core.Info{}, fmt.Errorf("%w: %s", core.ErrExists, key)
	}
	if err := os.MkdirAll(filepath.Dir(dataPath), 0o755); err != nil {
		return core.Info{}, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dataPath), ".partial-*")
	if err != nil {
		return core.Info{}, err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	digest := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, digest), r)
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return core.Info{}, fmt.Errorf("write artifact %s: %w", key, err)
	}
	if err := os.Rename(tmpName, dataPath); err != nil {
		return core.Info{}, err
	}

	meta := sidecar{
		ContentType: opts.ContentType,
		Metadata:    core.CloneMetadata(opts.Metadata),
		SHA256:      hex.EncodeToString(digest.Sum(nil)),
		Size:        size,
		WrittenAt:   s.now(),
	}
	payload, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return core.Info{}, err
	}
	if err := os.WriteFile(metaPath, payload, 0o644); err != nil {
		_ = os.Remove(dataPath)
		return core.Info{}, err
	}
	return meta.info(key), nil
}

// Get opens the artifact for reading; the caller closes the reader.
func (s *Store) Get(ctx context.Context, key string) (core.Info, io.ReadCloser, error) {
	info, err := s.Head(ctx, key)
	if err != nil {
		return core.Info{}, nil, err
	}
	dataPath, _, _ := s.paths(key)
	f, err := os.Open(dataPath)
	if errors.Is(err, iofs.ErrNotExist) {
		return core.Info{}, nil, fmt.Errorf("%w: %s", core.ErrNotFound, key)
	}
	if err != nil {
		return core.Info{}, nil, err
	}
	return info, f, nil
}

// Head reads the sidecar only.
func (s *Store) Head(_ context.Context, key string) (core.Info, error) {
	_, metaPath, err := s.paths(key)
	if err != nil {
		return core.Info{}, err
	}
	meta, err := readSidecar(metaPath)
	if errors.Is(err, iofs.ErrNotExist) {
		return core.Info{}, fmt.Errorf("%w: %s", core.ErrNotFound, key)
	}
	if err != nil {
		return core.Info{}, err
	}
	return meta.info(key), nil
}

// Delete removes the artifact and its sidecar.
func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	dataPath, metaPath, err := s.paths(key)
	if err != nil {
		return false, err
	}
	if err := os.Remove(dataPath); err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if err := os.Remove(metaPath); err != nil && !errors.Is(err, iofs.ErrNotExist) {
		return true, err
	}
	return true, nil
}

// List walks the export dir for sidecars whose key starts with prefix.
func (s *Store) List(_ context.Context, prefix string) ([]core.Info, error) {
	var out []core.Info
	err := filepath.WalkDir(s.root, func(p string, d iofs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.HasSuffix(p, sidecarSuffix) {
			return nil
		}
		rel, err := filepath.Rel(s.root, strings.TrimSuffix(p, sidecarSuffix))
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		meta, err := readSidecar(p)
		if err != nil {
			return fmt.Errorf("read sidecar %s: %w", key, err)
		}
		out = append(out, meta.info(key))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// PresignURL returns the relative download path served by the HTTP API.
func (s *Store) PresignURL(ctx context.Context, key string, opts core.SignedURLOptions) (string, error) {
	if opts.Method != "" && !strings.EqualFold(opts.Method, "GET") {
		return "", core.ErrUnsupported
	}
	if _, err := s.Head(ctx, key); err != nil {
		return "", err
	}
	return fileURL(key), nil
}

func fileURL(key string) string {
	return (&url.URL{Path: "/api/v1/artifacts/" + key}).String()
}

func readSidecar(p string) (sidecar, error) {
	raw, err := os.ReadFile(p)
	if err != nil {
		return sidecar{}, err
	}
	var meta sidecar
	if err := json.Unmarshal(raw, &meta); err != nil {
		return sidecar{}, err
	}
	return meta, nil
}
