// Package cache stores fetched collections for a bounded time so repeated
// loads do not hit the upstream spreadsheet.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrCacheMiss reports a missing or expired key.
var ErrCacheMiss = errors.New("cache miss")

// Store is a string key/value store with per-key expiry.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// RedisStore is a Store backed by go-redis.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore wraps client; keys are namespaced with prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// DialRedis builds a client for addr/db and verifies it with PING.
func DialRedis(ctx context.Context, addr string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// Get returns the stored value or ErrCacheMiss.
func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, s.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrCacheMiss
		}
		return "", err
	}
	return val, nil
}

// Set stores value for ttl. A zero ttl never expires.
func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, s.prefix+key, value, ttl).Err()
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memoryItem
	now   func() time.Time
}

type memoryItem struct {
	value   string
	expires time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]memoryItem), now: time.Now}
}

// Get returns the stored value or ErrCacheMiss once it expired.
func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[key]
	if !ok {
		return "", ErrCacheMiss
	}
	if !item.expires.IsZero() && !s.now().Before(item.expires) {
		delete(s.items, key)
		return "", ErrCacheMiss
	}
	return item.value, nil
}

// Set stores value for ttl. A zero ttl never expires.
func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := memoryItem{value: value}
	if ttl > 0 {
		item.expires = s.now().Add(ttl)
	}
	s.items[key] = item
	return nil
}
