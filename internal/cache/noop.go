package cache

import (
	"context"
	"time"
)

// Noop is the backend used when caching is administratively disabled: every
// Get reports absent and every Set is a discard.
type Noop struct{}

// NewNoop creates a no-op cache.
func NewNoop() Noop { return Noop{} }

func (Noop) Get(ctx context.Context, key string) (any, bool, error) { return nil, false, nil }

func (Noop) Set(ctx context.Context, key string, value any, ttl time.Duration) error { return nil }

func (Noop) Close() error { return nil }
