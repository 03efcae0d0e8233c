package source

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"mvpplanner/internal/cache"
	"mvpplanner/pkg/domain"
)

// Cached serves collections from a cache.Store and falls through to the
// wrapped provider on a miss. Cache failures are logged and never fail a fetch.
type Cached struct {
	next   Provider
	store  cache.Store
	ttl    time.Duration
	logger *zap.Logger
}

// NewCached wraps next with store; entries live for ttl.
func NewCached(next Provider, store cache.Store, ttl time.Duration, logger *zap.Logger) *Cached {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cached{next: next, store: store, ttl: ttl, logger: logger}
}

func cacheKey(name domain.CollectionName) string {
	return "collection:" + string(name)
}

// Fetch implements Provider.
func (c *Cached) Fetch(ctx context.Context, name domain.CollectionName) ([]domain.Record, error) {
	raw, err := c.store.Get(ctx, cacheKey(name))
	switch {
	case err == nil:
		var records []domain.Record
		if jsonErr := json.Unmarshal([]byte(raw), &records); jsonErr == nil {
			return records, nil
		}
		c.logger.Warn("discarding undecodable cache entry", zap.String("collection", string(name)))
	case !errors.Is(err, cache.ErrCacheMiss):
		c.logger.Warn("collection cache read failed", zap.String("collection", string(name)), zap.Error(err))
	}

	records, err := c.next.Fetch(ctx, name)
	if err != nil {
		return nil, err
	}
	if encoded, jsonErr := json.Marshal(records); jsonErr == nil {
		if setErr := c.store.Set(ctx, cacheKey(name), string(encoded), c.ttl); setErr != nil {
			c.logger.Warn("collection cache write failed", zap.String("collection", string(name)), zap.Error(setErr))
		}
	}
	return records, nil
}
