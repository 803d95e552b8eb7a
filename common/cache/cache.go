// Package cache is a process-wide key/value store with time-based expiry.
// There is no size bound and no eviction other than expiry.
package cache

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

type entry[V any] struct {
	value V
	until time.Time
}

// Cache represents a TTL keyed store safe for concurrent use.
type Cache[V any] struct {
	defaultTTL time.Duration
	now        func() time.Time

	mu    sync.RWMutex
	items map[string]entry[V]
}

// Option configures a Cache.
type Option[V any] func(*Cache[V])

// WithClock replaces time.Now.
func WithClock[V any](now func() time.Time) Option[V] {
	return func(c *Cache[V]) {
		c.now = now
	}
}

// New returns an empty Cache whose entries live defaultTTL unless Set says otherwise.
func New[V any](defaultTTL time.Duration, opts ...Option[V]) *Cache[V] {
	c := &Cache[V]{
		defaultTTL: defaultTTL,
		now:        time.Now,
		items:      make(map[string]entry[V]),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key joins a prefix and the parts that make a cached value distinct.
func Key(prefix string, parts ...string) string {
	return prefix + ":" + strings.Join(parts, ":")
}

// Get returns the value for key if it has not expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()
	if !ok || !c.now().Before(e.until) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key for ttl, or for the default TTL when ttl <= 0.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.mu.Lock()
	c.items[key] = entry[V]{value: value, until: c.now().Add(ttl)}
	c.mu.Unlock()
}

// Delete removes key.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// Len counts stored entries, expired ones included until they are purged.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Purge drops expired entries and returns how many were removed.
func (c *Cache[V]) Purge() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.items {
		if !now.Before(e.until) {
			delete(c.items, k)
			n++
		}
	}
	return n
}

// Sweeper runs Purge on a cron schedule.
type Sweeper struct {
	cron *cron.Cron
}

// StartSweeper purges c on schedule (standard cron spec or "@every <duration>").
func StartSweeper[V any](c *Cache[V], schedule string, logger *slog.Logger) (*Sweeper, error) {
	cr := cron.New()
	_, err := cr.AddFunc(schedule, func() {
		if n := c.Purge(); n > 0 {
			logger.Debug("purged expired cache entries", "count", n)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("cache sweep schedule %q: %w", schedule, err)
	}
	cr.Start()
	return &Sweeper{cron: cr}, nil
}

// Stop halts the schedule and waits for a running purge to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}
