package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Cache keeps JSON snapshots of store documents in Redis. Concurrent misses
// for one key share a single store call. A nil Cache, or one without a
// client, always loads from the store.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewCache returns a cache writing entries with ttl (5m when unset).
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) enabled() bool { return c != nil && c.client != nil }

// Invalidate drops key.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	if !c.enabled() {
		return nil
	}
	return c.client.Del(ctx, key).Err()
}

// readThrough returns the cached value for key or calls load and stores its
// result. Redis failures are logged and never fail the read.
func readThrough[T any](ctx context.Context, c *Cache, key string, logger zerolog.Logger, load func(context.Context) (T, error)) (T, error) {
	if !c.enabled() {
		return load(ctx)
	}
	var hit T
	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if jsonErr := json.Unmarshal(data, &hit); jsonErr == nil {
			return hit, nil
		}
		logger.Warn().Str("key", key).Msg("discarding undecodable cache entry")
	case !errors.Is(err, redis.Nil):
		logger.Warn().Err(err).Str("key", key).Msg("cache read failed")
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		fresh, err := load(context.WithoutCancel(ctx))
		if err != nil {
			return fresh, err
		}
		if raw, err := json.Marshal(fresh); err == nil {
			if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
				logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
			}
		}
		return fresh, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
