// Package cache provides the key/value store with TTL used to memoize
// operation results. Three backends implement the same interface: an
// in-process map, a Redis-backed store and a no-op store for deployments
// where caching is administratively disabled.
//
// The cache is TTL-policy-agnostic: call sites pick the tier (the default
// minutes-scale TTL for slow-changing data, the volatile seconds-scale TTL
// for near-real-time data) and pass it to Set. Concurrent misses for the
// same key are not coalesced; last write wins.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fintools/internal/config"
)

// Cache is the unified interface over all backends. Get reports absence via
// the second return value; an error means the backend itself failed, which
// only the networked backend can.
type Cache interface {
	Get(ctx context.Context, key string) (any, bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Close() error
}

// New builds a cache backend from configuration.
func New(cfg config.CacheConfig, logger *slog.Logger) (Cache, error) {
	switch cfg.Mode {
	case config.CacheModeMemory:
		return NewMemory(cfg.DefaultTTL, cfg.SweepInterval), nil
	case config.CacheModeRedis:
		return NewRedis(cfg.Addr, cfg.DefaultTTL, logger), nil
	case config.CacheModeDisabled:
		return NewNoop(), nil
	default:
		return nil, fmt.Errorf("unknown cache mode: %q", cfg.Mode)
	}
}
