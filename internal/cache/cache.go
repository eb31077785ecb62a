// Package cache implements a concurrency-safe key/value store with
// per-entry expiry, lazy eviction on read and a periodic sweep.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/arview/product-crawler/internal/metrics"
	"github.com/arview/product-crawler/internal/product"
)

type entry struct {
	value     any
	expiresAt time.Time
}

// Config controls cache defaults.
type Config struct {
	DefaultTTL    time.Duration
	SweepInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = time.Hour
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 5 * time.Minute
	}
	return c
}

// Cache is a TTL map. A background janitor bounds growth from keys that
// are written once and never re-read.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry

	cfg    Config
	clock  product.Clock
	logger *zap.Logger

	stop     chan struct{}
	stopOnce sync.Once
}

// New builds a Cache and starts its sweep goroutine. Callers must Close
// it when done.
func New(cfg Config, clock product.Clock, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Cache{
		entries: make(map[string]entry),
		cfg:     cfg.withDefaults(),
		clock:   clock,
		logger:  logger,
		stop:    make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

// DefaultTTL returns the TTL applied when callers pass a non-positive one.
func (c *Cache) DefaultTTL() time.Duration {
	return c.cfg.DefaultTTL
}

// Get returns the unexpired value for key. Expired entries are removed
// on the spot.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		metrics.CacheEventsTotal.WithLabelValues("miss").Inc()
		return nil, false
	}
	if c.clock.Now().After(e.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; another reader may have
		// already evicted or a writer may have refreshed the entry.
		if cur, still := c.entries[key]; still && c.clock.Now().After(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		metrics.CacheEventsTotal.WithLabelValues("expired").Inc()
		return nil, false
	}
	metrics.CacheEventsTotal.WithLabelValues("hit").Inc()
	return e.value, true
}

// Set stores value under key for ttl (the default TTL when ttl <= 0).
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.cfg.DefaultTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, expiresAt: c.clock.Now().Add(ttl)}
}

// GetOrCompute returns the cached value for key, or invokes compute and
// stores its result for ttl. A compute failure is propagated and nothing
// is cached.
func (c *Cache) GetOrCompute(
	ctx context.Context,
	key string,
	ttl time.Duration,
	compute func(ctx context.Context) (any, error),
) (any, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := compute(ctx)
	if err != nil {
		return nil, fmt.Errorf("compute %q: %w", key, err)
	}
	c.Set(key, v, ttl)
	return v, nil
}

// Invalidate removes key unconditionally. Idempotent on missing keys.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// SetTTL rebases the expiry of an existing entry to now+ttl without
// touching the stored value. Returns false if the key is absent.
func (c *Cache) SetTTL(key string, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = c.cfg.DefaultTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return false
	}
	e.expiresAt = c.clock.Now().Add(ttl)
	c.entries[key] = e
	return true
}

// Len reports the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the sweep goroutine.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Cache) sweepLoop() {
	ticker := time.NewTicker(c.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			removed := c.sweep()
			if removed > 0 {
				c.logger.Debug("cache sweep", zap.Int("removed", removed))
			}
		}
	}
}

// sweep removes every expired entry and returns how many were dropped.
func (c *Cache) sweep() int {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}
