// Package batch implements cache-first fan-out over an ordered list of keys
// with per-key failure isolation: every miss is fetched concurrently, one
// key's failure never blocks or cancels another key's fetch, and the
// assembled outcome preserves the input key order regardless of completion
// order.
package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"fintools/internal/cache"
	"fintools/internal/infrastructure"
)

// Result is the per-key outcome: either a value or a terminal error.
// Failures are never cached, so a transient upstream error is retried on the
// next call instead of being served stale.
type Result struct {
	Value any
	Err   error
}

// Success wraps a fetched value.
func Success(value any) Result { return Result{Value: value} }

// Failure wraps a per-key error.
func Failure(err error) Result { return Result{Err: err} }

// OK reports whether the key resolved to a value.
func (r Result) OK() bool { return r.Err == nil }

// KeyResult pairs a key with its result.
type KeyResult struct {
	Key string
	Result
}

// Outcome is the ordered collection of per-key results for one batch
// invocation. Its JSON form is an object whose property order matches the
// input key order; failed keys serialize as {"error": <message>}.
type Outcome struct {
	results []KeyResult
}

// Results returns the per-key results in input order.
func (o *Outcome) Results() []KeyResult { return o.results }

// Len returns the number of keys in the outcome.
func (o *Outcome) Len() int { return len(o.results) }

// Failed reports how many keys resolved to an error.
func (o *Outcome) Failed() int {
	n := 0
	for _, kr := range o.results {
		if !kr.OK() {
			n++
		}
	}
	return n
}

// MarshalJSON emits an ordered JSON object, one property per input key.
func (o *Outcome) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, kr := range o.results {
		if i > 0 {
			buf.WriteByte(',')
		}

		name, err := json.Marshal(kr.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')

		var value []byte
		if kr.OK() {
			value, err = json.Marshal(kr.Value)
		} else {
			value, err = json.Marshal(map[string]string{"error": kr.Err.Error()})
		}
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// FetchFunc resolves one key against the upstream data provider.
type FetchFunc func(ctx context.Context, key string) (any, error)

// Options configures one batch invocation.
type Options struct {
	// Operation names the calling operation for logs and metrics.
	Operation string
	// Cache is consulted per key before fetching; successful fetches are
	// written back under the same key and TTL.
	Cache cache.Cache
	// CacheKey builds the cache key for an input key.
	CacheKey func(key string) string
	// TTL is the tier chosen by the call site (default or volatile).
	TTL time.Duration
	// Fetch resolves a miss against the upstream provider.
	Fetch FetchFunc
	// Concurrency bounds in-flight fetches; zero means 8.
	Concurrency int

	Logger  *slog.Logger
	Metrics *infrastructure.Metrics
}

// Fetch runs the aggregation. Keys are processed independently (duplicates
// included, no deduplication); an empty key list returns an empty outcome
// without contacting the cache or the provider. The returned error is
// non-nil only when the cache backend itself fails, which aborts the batch
// (per-key fetch failures are recorded in their slots instead).
func Fetch(ctx context.Context, keys []string, opts Options) (*Outcome, error) {
	if opts.Fetch == nil {
		return nil, fmt.Errorf("batch: fetch function is required")
	}
	if opts.CacheKey == nil {
		opts.CacheKey = func(key string) string { return key }
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	outcome := &Outcome{results: make([]KeyResult, len(keys))}
	if len(keys) == 0 {
		return outcome, nil
	}

	// Phase 1: partition into hits and misses.
	var missIdx []int
	for i, key := range keys {
		outcome.results[i].Key = key

		if opts.Cache == nil {
			missIdx = append(missIdx, i)
			continue
		}

		value, ok, err := opts.Cache.Get(ctx, opts.CacheKey(key))
		if err != nil {
			return nil, fmt.Errorf("batch: cache lookup for %q: %w", key, err)
		}
		if ok {
			outcome.results[i].Result = Success(value)
			opts.Metrics.RecordCacheHit(ctx, opts.Operation)
			continue
		}
		opts.Metrics.RecordCacheMiss(ctx, opts.Operation)
		missIdx = append(missIdx, i)
	}

	opts.Metrics.RecordBatchFetch(ctx, opts.Operation, int64(len(missIdx)))

	// Phase 2: fetch every miss concurrently. The semaphore bounds in-flight
	// upstream calls; it never cancels a sibling on failure.
	sem := semaphore.NewWeighted(int64(opts.Concurrency))
	var wg sync.WaitGroup

	for _, idx := range missIdx {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			key := outcome.results[i].Key
			if err := sem.Acquire(ctx, 1); err != nil {
				outcome.results[i].Result = Failure(err)
				return
			}
			defer sem.Release(1)

			outcome.results[i].Result = resolve(ctx, key, opts, logger)
		}(idx)
	}

	wg.Wait()
	return outcome, nil
}

// resolve fetches one key and writes the value back to the cache. A fetch
// failure stays isolated to this key's slot and is not cached; a write-back
// failure is subordinate, the fetched value is still the key's result.
func resolve(ctx context.Context, key string, opts Options, logger *slog.Logger) Result {
	value, err := opts.Fetch(ctx, key)
	if err != nil {
		logger.WarnContext(ctx, "batch fetch failed",
			slog.String("operation", opts.Operation),
			slog.String("key", key),
			slog.String("error", err.Error()))
		return Failure(err)
	}

	if opts.Cache != nil {
		if err := opts.Cache.Set(ctx, opts.CacheKey(key), value, opts.TTL); err != nil {
			logger.WarnContext(ctx, "cache write-back failed",
				slog.String("operation", opts.Operation),
				slog.String("key", key),
				slog.String("error", err.Error()))
		}
	}

	return Success(value)
}

// SplitKeys turns a comma-separated key list into trimmed keys. Empty
// fragments are dropped; duplicates are preserved.
func SplitKeys(csv string) []string {
	parts := strings.Split(csv, ",")
	keys := make([]string, 0, len(parts))
	for _, part := range parts {
		if key := strings.TrimSpace(part); key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}
