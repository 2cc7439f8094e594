package infrastructure

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the instruments shared across dispatchers, the batch
// aggregator and the cache. A nil *Metrics is valid and records nothing,
// which keeps tests free of metric plumbing.
type Metrics struct {
	invocations      metric.Int64Counter
	invocationTime   metric.Float64Histogram
	cacheHits        metric.Int64Counter
	cacheMisses      metric.Int64Counter
	batchKeysFetched metric.Int64Counter
}

// NewMetrics creates the module's instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	invocations, err := meter.Int64Counter("fintools.invocations.total",
		metric.WithDescription("Operation invocations by operation, protocol and outcome"))
	if err != nil {
		return nil, err
	}

	invocationTime, err := meter.Float64Histogram("fintools.invocation.duration",
		metric.WithDescription("Operation invocation duration"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	cacheHits, err := meter.Int64Counter("fintools.cache.hits.total",
		metric.WithDescription("Cache lookups answered without an upstream call"))
	if err != nil {
		return nil, err
	}

	cacheMisses, err := meter.Int64Counter("fintools.cache.misses.total",
		metric.WithDescription("Cache lookups that fell through to the upstream provider"))
	if err != nil {
		return nil, err
	}

	batchKeysFetched, err := meter.Int64Counter("fintools.batch.fetches.total",
		metric.WithDescription("Per-key upstream fetches issued by the batch aggregator"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		invocations:      invocations,
		invocationTime:   invocationTime,
		cacheHits:        cacheHits,
		cacheMisses:      cacheMisses,
		batchKeysFetched: batchKeysFetched,
	}, nil
}

// RecordInvocation counts one invocation and its duration.
func (m *Metrics) RecordInvocation(ctx context.Context, operation, protocol, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("protocol", protocol),
		attribute.String("outcome", outcome),
	)
	m.invocations.Add(ctx, 1, attrs)
	m.invocationTime.Record(ctx, float64(elapsed.Milliseconds()), attrs)
}

// RecordCacheHit counts a cache hit for the given operation.
func (m *Metrics) RecordCacheHit(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	m.cacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
}

// RecordCacheMiss counts a cache miss for the given operation.
func (m *Metrics) RecordCacheMiss(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	m.cacheMisses.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
}

// RecordBatchFetch counts upstream fetches issued for batch misses.
func (m *Metrics) RecordBatchFetch(ctx context.Context, operation string, n int64) {
	if m == nil || n == 0 {
		return
	}
	m.batchKeysFetched.Add(ctx, n, metric.WithAttributes(attribute.String("operation", operation)))
}
