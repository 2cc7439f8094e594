package cache

import (
	"context"
	"sync"
	"time"
)

// entry is a stored value with its expiry metadata.
type entry struct {
	value      any
	insertedAt time.Time
	ttl        time.Duration
}

func (e entry) expired(now time.Time) bool {
	return now.Sub(e.insertedAt) >= e.ttl
}

// Memory is the in-process backend. Entries expire lazily on read and are
// additionally evicted by a background sweep. Safe for concurrent use.
type Memory struct {
	mu         sync.RWMutex
	entries    map[string]entry
	defaultTTL time.Duration

	now  func() time.Time
	done chan struct{}
	once sync.Once
}

// NewMemory creates a memory cache. defaultTTL applies when Set is called
// with a non-positive TTL. A sweepInterval of zero disables the sweeper;
// entries then expire lazily only.
func NewMemory(defaultTTL, sweepInterval time.Duration) *Memory {
	m := &Memory{
		entries:    make(map[string]entry),
		defaultTTL: defaultTTL,
		now:        time.Now,
		done:       make(chan struct{}),
	}

	if sweepInterval > 0 {
		go m.sweep(sweepInterval)
	}

	return m
}

// Get returns the value for key, reporting absence for unknown or expired
// keys. Expired entries are removed on read.
func (m *Memory) Get(ctx context.Context, key string) (any, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}

	if e.expired(m.now()) {
		m.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have refreshed it.
		if current, still := m.entries[key]; still && current.expired(m.now()) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, false, nil
	}

	return e.value, true, nil
}

// Set stores value under key. A non-positive ttl falls back to the default.
func (m *Memory) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}

	m.mu.Lock()
	m.entries[key] = entry{value: value, insertedAt: m.now(), ttl: ttl}
	m.mu.Unlock()

	return nil
}

// Len reports the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close stops the background sweeper.
func (m *Memory) Close() error {
	m.once.Do(func() { close(m.done) })
	return nil
}

func (m *Memory) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			now := m.now()
			m.mu.Lock()
			for key, e := range m.entries {
				if e.expired(now) {
					delete(m.entries, key)
				}
			}
			m.mu.Unlock()
		}
	}
}
