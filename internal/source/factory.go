package source

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"mvpplanner/internal/cache"
	"mvpplanner/internal/config"
	"mvpplanner/internal/infra/source/memory"
	"mvpplanner/internal/infra/source/postgres"
	"mvpplanner/internal/infra/source/sheets"
	"mvpplanner/internal/infra/source/sqlite"
	"mvpplanner/internal/infra/source/workbook"
	"mvpplanner/pkg/domain"
)

// Handle is an opened provider plus the resources backing it.
type Handle struct {
	Provider Provider
	Driver   Driver
	closers  []func() error
}

// Close releases database connections and cache clients.
func (h *Handle) Close() error {
	var first error
	for i := len(h.closers) - 1; i >= 0; i-- {
		if err := h.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	h.closers = nil
	return first
}

// Open builds the provider selected by cfg.Source.Driver and wraps it with
// the configured collection cache.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Handle, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handle{Driver: Driver(cfg.Source.Driver)}
	base, err := openBase(ctx, cfg.Source, h)
	if err != nil {
		_ = h.Close()
		return nil, err
	}
	h.Provider = base

	var store cache.Store
	switch cfg.Cache.Driver {
	case config.CacheMemory:
		store = cache.NewMemoryStore()
	case config.CacheRedis:
		client, err := cache.DialRedis(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisDB)
		if err != nil {
			_ = h.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		h.closers = append(h.closers, client.Close)
		store = cache.NewRedisStore(client, "mvpplan:")
	}
	if store != nil {
		h.Provider = NewCached(base, store, cfg.Cache.TTL, logger.Named("source_cache"))
	}
	logger.Info("collection source opened",
		zap.String("driver", cfg.Source.Driver),
		zap.String("cache", cfg.Cache.Driver),
	)
	return h, nil
}

func openBase(ctx context.Context, cfg config.SourceConfig, h *Handle) (Provider, error) {
	switch Driver(cfg.Driver) {
	case DriverSheets:
		return sheets.New(sheets.Config{
			BaseURL: cfg.SheetBaseURL,
			SheetID: cfg.SheetID,
			GIDs:    cfg.SheetGIDs,
			Timeout: cfg.Timeout,
			Retries: cfg.Retries,
		}, nil)
	case DriverWorkbook:
		return workbook.New(cfg.WorkbookPath), nil
	case DriverSQLite:
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		h.closers = append(h.closers, store.Close)
		return store, nil
	case DriverPostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		h.closers = append(h.closers, store.Close)
		return store, nil
	case DriverMemory:
		return memory.New(domain.Snapshot{}), nil
	default:
		return nil, fmt.Errorf("unknown source driver %s", cfg.Driver)
	}
}

// OpenWriter opens a mirror destination: sqlite, postgres or workbook.
func OpenWriter(ctx context.Context, driver Driver, target string) (Writer, func() error, error) {
	noop := func() error { return nil }
	switch driver {
	case DriverSQLite:
		store, err := sqlite.Open(target)
		if err != nil {
			return nil, noop, err
		}
		return store, store.Close, nil
	case DriverPostgres:
		store, err := postgres.Open(ctx, target)
		if err != nil {
			return nil, noop, err
		}
		return store, store.Close, nil
	case DriverWorkbook:
		return workbook.New(target), noop, nil
	default:
		return nil, noop, fmt.Errorf("cannot mirror to %s", driver)
	}
}

// NewStatic serves a fixed snapshot from memory.
func NewStatic(snapshot domain.Snapshot) *memory.Provider {
	return memory.New(snapshot)
}
