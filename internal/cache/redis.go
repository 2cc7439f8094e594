package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is the networked backend. Values are stored JSON-encoded, so Get
// returns the decoded JSON shape (maps, slices, strings, float64 numbers)
// rather than the original Go type. Backend failures propagate as errors;
// there is no automatic fallback to the in-process backend.
type Redis struct {
	client     *redis.Client
	defaultTTL time.Duration
	logger     *slog.Logger
}

// NewRedis creates a Redis-backed cache for the given address.
func NewRedis(addr string, defaultTTL time.Duration, logger *slog.Logger) *Redis {
	return &Redis{
		client:     redis.NewClient(&redis.Options{Addr: addr}),
		defaultTTL: defaultTTL,
		logger:     logger.With(slog.String("component", "redis_cache")),
	}
}

// Ping verifies connectivity to the cache service.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Get returns the decoded value for key, reporting absence for unknown or
// expired keys.
func (r *Redis) Get(ctx context.Context, key string) (any, bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %q: %w", key, err)
	}

	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		// A corrupt entry is treated as absent so the caller refetches and
		// overwrites it.
		r.logger.WarnContext(ctx, "dropping undecodable cache entry",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return nil, false, nil
	}

	return value, true, nil
}

// Set stores value under key. A non-positive ttl falls back to the default.
func (r *Redis) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = r.defaultTTL
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("redis set %q: encode: %w", key, err)
	}

	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}

	return nil
}

// Close closes the connection to the cache service.
func (r *Redis) Close() error {
	return r.client.Close()
}
