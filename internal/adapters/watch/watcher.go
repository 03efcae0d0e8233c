// Package watch reloads the planner when the source workbook changes on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"mvpplanner/internal/core"
)

// DefaultDebounce collapses the burst of events a single spreadsheet save emits.
const DefaultDebounce = 500 * time.Millisecond

// ReloadFunc performs one destructive reload.
type ReloadFunc func(ctx context.Context) (core.LoadResult, error)

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the watcher logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// Watcher triggers a reload after the watched file settles.
type Watcher struct {
	path     string
	reload   ReloadFunc
	debounce time.Duration
	logger   *zap.Logger
}

// New watches path. The parent directory is watched so editors that replace
// the file through a rename are still seen.
func New(path string, reload ReloadFunc, opts ...Option) *Watcher {
	w := &Watcher{
		path:     filepath.Clean(path),
		reload:   reload,
		debounce: DefaultDebounce,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run blocks until ctx is cancelled. Reload failures are logged and do not
// stop the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	if w.reload == nil {
		return errors.New("watch: reload function required")
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer func() { _ = fw.Close() }()
	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.logger.Info("watching workbook", zap.String("path", w.path))

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			w.logger.Debug("workbook event", zap.String("op", ev.Op.String()))
			timer.Reset(w.debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))
		case <-timer.C:
			w.fire(ctx)
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != w.path {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)
}

func (w *Watcher) fire(ctx context.Context) {
	res, err := w.reload(ctx)
	if err != nil {
		w.logger.Error("workbook reload failed", zap.String("path", w.path), zap.Error(err))
		return
	}
	if res.DiscardedChanges {
		w.logger.Warn("workbook reload discarded unsaved changes", zap.String("path", w.path))
		return
	}
	w.logger.Info("workbook reloaded", zap.String("path", w.path))
}
