package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned by Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

const (
	defaultCacheNamespace = "ledger:cache:"
	defaultCacheTTL       = 10 * time.Minute
)

// CacheOption customizes a Cache.
type CacheOption func(*Cache)

// WithNamespace sets the key prefix shared by every cached entry.
func WithNamespace(ns string) CacheOption {
	return func(c *Cache) { c.namespace = ns }
}

// WithDefaultTTL sets the expiry applied when Set is given a non-positive TTL.
func WithDefaultTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) {
		if ttl > 0 {
			c.defaultTTL = ttl
		}
	}
}

// Cache holds code to entity id mappings for the reference resolver.
// Entries are hints only; the resolver always falls back to storage.
type Cache struct {
	client     *redis.Client
	namespace  string
	defaultTTL time.Duration
}

// NewCache creates a new Cache.
func NewCache(client *redis.Client, opts ...CacheOption) *Cache {
	c := &Cache{
		client:     client,
		namespace:  defaultCacheNamespace,
		defaultTTL: defaultCacheTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) key(k string) string { return c.namespace + k }

// Get returns the cached value or ErrCacheMiss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrCacheMiss, key)
	}
	if err != nil {
		return nil, fmt.Errorf("cache get %s: %w", key, err)
	}
	return val, nil
}

// Set stores value under key. A non-positive ttl uses the default expiry so
// entries never outlive a missed invalidation indefinitely.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	if err := c.client.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Delete removes a key. Deleting a missing key is not an error.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("cache delete %s: %w", key, err)
	}
	return nil
}
