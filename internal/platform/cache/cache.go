// Package cache is a small JSON read-through cache on Redis. A nil *JSONCache
// is valid and caches nothing.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Connect builds a Redis client from a redis:// URL. An empty URL or an
// unreachable server yields nil and a warning, so callers run uncached.
func Connect(ctx context.Context, redisURL string, logger zerolog.Logger) *redis.Client {
	if strings.TrimSpace(redisURL) == "" {
		return nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("invalid REDIS_URL, caching disabled")
		return nil
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("redis not available, caching disabled")
		_ = client.Close()
		return nil
	}
	return client
}

type JSONCache struct {
	client    *redis.Client
	namespace string
	logger    zerolog.Logger
}

// New returns nil when client is nil.
func New(client *redis.Client, namespace string, logger zerolog.Logger) *JSONCache {
	if client == nil {
		return nil
	}
	return &JSONCache{client: client, namespace: namespace, logger: logger}
}

func (c *JSONCache) key(k string) string {
	return c.namespace + ":" + k
}

// Get decodes the cached value for key into dst and reports whether it was found.
func (c *JSONCache) Get(ctx context.Context, key string, dst interface{}) (bool, error) {
	if c == nil {
		return false, nil
	}
	raw, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return true, nil
}

func (c *JSONCache) Set(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	if c == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if err := c.client.Set(ctx, c.key(key), raw, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Fetch returns the cached value for key, or calls load and caches its
// result. Cache errors are logged and bypassed.
func Fetch[T any](ctx context.Context, c *JSONCache, key string, ttl time.Duration, load func(ctx context.Context) (T, error)) (T, error) {
	var cached T
	if c != nil {
		found, err := c.Get(ctx, key, &cached)
		if err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("cache read failed")
		} else if found {
			return cached, nil
		}
	}

	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	if c != nil {
		if err := c.Set(ctx, key, v, ttl); err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
		}
	}
	return v, nil
}
