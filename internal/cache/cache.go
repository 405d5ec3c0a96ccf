// Package cache provides the shared response cache: a bounded LRU whose
// entries also expire after a per-entry TTL.
//
// Recency is tracked by hashicorp/golang-lru's simplelru under a single
// mutex. Expired entries are removed lazily on Get and by a background
// sweeper started with Start.
package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/prometheus/client_golang/prometheus"
)

// Config holds cache sizing and expiry settings.
type Config struct {
	// Capacity is the maximum number of entries.
	Capacity int `mapstructure:"capacity" yaml:"capacity" validate:"min=1"`
	// TTL is the default entry lifetime.
	TTL time.Duration `mapstructure:"ttl" yaml:"ttl" validate:"min=1ms"`
	// SweepInterval is how often the background sweeper runs. Zero disables it.
	SweepInterval time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval" validate:"min=0"`
	// CacheEmptyResults controls whether zero-record results are stored.
	CacheEmptyResults bool `mapstructure:"cache_empty_results" yaml:"cache_empty_results"`
}

// DefaultConfig returns sensible cache defaults.
func DefaultConfig() Config {
	return Config{
		Capacity:      1000,
		TTL:           time.Hour,
		SweepInterval: time.Minute,
	}
}

type entry[V any] struct {
	value          V
	insertedAt     time.Time
	lastAccessedAt time.Time
	expiresAt      time.Time
}

// Stats reports cache activity since construction.
type Stats struct {
	Size        int     `json:"size"`
	Capacity    int     `json:"capacity"`
	Hits        uint64  `json:"hits"`
	Misses      uint64  `json:"misses"`
	Evictions   uint64  `json:"evictions"`
	Expirations uint64  `json:"expirations"`
	HitRate     float64 `json:"hit_rate"`
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	now        func() time.Time
	registerer prometheus.Registerer
	namespace  string
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithMetrics exports cache activity as prometheus metrics under namespace.
func WithMetrics(reg prometheus.Registerer, namespace string) Option {
	return func(o *options) {
		o.registerer = reg
		o.namespace = namespace
	}
}

// Cache is a thread-safe LRU cache with per-entry TTL.
type Cache[V any] struct {
	cfg     Config
	now     func() time.Time
	metrics *metrics

	mu  sync.Mutex
	lru *simplelru.LRU[string, *entry[V]]

	hits        atomic.Uint64
	misses      atomic.Uint64
	evictions   atomic.Uint64
	expirations atomic.Uint64

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// New creates a cache. The sweeper is not running until Start.
func New[V any](cfg Config, opts ...Option) (*Cache[V], error) {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}

	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	lru, err := simplelru.NewLRU[string, *entry[V]](cfg.Capacity, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid cache capacity %d: %w", cfg.Capacity, err)
	}

	c := &Cache[V]{
		cfg:  cfg,
		now:  o.now,
		lru:  lru,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	if o.registerer != nil {
		c.metrics, err = newMetrics(o.registerer, o.namespace, c.Len)
		if err != nil {
			return nil, fmt.Errorf("failed to register cache metrics: %w", err)
		}
	}
	return c, nil
}

// Config returns the cache configuration.
func (c *Cache[V]) Config() Config {
	return c.cfg
}

// Get returns the value for key if present and unexpired, marking it most
// recently used. An expired entry is removed and reported as a miss.
func (c *Cache[V]) Get(key string) (V, bool) {
	now := c.now()

	c.mu.Lock()
	e, ok := c.lru.Get(key)
	if ok && !now.Before(e.expiresAt) {
		c.lru.Remove(key)
		c.mu.Unlock()
		c.recordExpired(1)
		ok = false
	} else {
		if ok {
			e.lastAccessedAt = now
		}
		c.mu.Unlock()
	}

	if !ok {
		c.misses.Add(1)
		c.metrics.miss()
		var zero V
		return zero, false
	}

	c.hits.Add(1)
	c.metrics.hit()
	return e.value, true
}

// Put stores value under key for ttl, or the configured TTL when ttl is zero.
// Storing past capacity evicts the least recently used entry.
func (c *Cache[V]) Put(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.cfg.TTL
	}
	now := c.now()
	e := &entry[V]{
		value:          value,
		insertedAt:     now,
		lastAccessedAt: now,
		expiresAt:      now.Add(ttl),
	}

	c.mu.Lock()
	evicted := c.lru.Add(key, e)
	c.mu.Unlock()

	if evicted {
		c.evictions.Add(1)
		c.metrics.evict("capacity")
	}
}

// Delete removes key, reporting whether it was present.
func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Remove(key)
}

// Purge removes every entry.
func (c *Cache[V]) Purge() {
	c.mu.Lock()
	c.lru.Purge()
	c.mu.Unlock()
}

// Len returns the number of entries, including expired ones not yet swept.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Sweep removes all expired entries and returns how many were removed.
// Recency of live entries is not touched.
func (c *Cache[V]) Sweep() int {
	now := c.now()

	c.mu.Lock()
	removed := 0
	for _, key := range c.lru.Keys() {
		e, ok := c.lru.Peek(key)
		if ok && !now.Before(e.expiresAt) {
			c.lru.Remove(key)
			removed++
		}
	}
	c.mu.Unlock()

	c.recordExpired(removed)
	return removed
}

// Stats returns a snapshot of cache activity.
func (c *Cache[V]) Stats() Stats {
	hits, misses := c.hits.Load(), c.misses.Load()
	s := Stats{
		Size:        c.Len(),
		Capacity:    c.cfg.Capacity,
		Hits:        hits,
		Misses:      misses,
		Evictions:   c.evictions.Load(),
		Expirations: c.expirations.Load(),
	}
	if total := hits + misses; total > 0 {
		s.HitRate = float64(hits) / float64(total)
	}
	return s
}

// Start launches the background sweeper. It stops when ctx is done or Close
// is called. Calling Start more than once has no effect.
func (c *Cache[V]) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		if c.cfg.SweepInterval <= 0 {
			close(c.done)
			return
		}
		go c.sweepLoop(ctx)
	})
}

// Close stops the sweeper and waits for it to exit.
func (c *Cache[V]) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	// Never started: nothing to wait for.
	c.startOnce.Do(func() { close(c.done) })

	select {
	case <-c.done:
		return nil
	case <-time.After(5 * time.Second):
		return fmt.Errorf("timeout waiting for cache sweeper to stop")
	}
}

func (c *Cache[V]) sweepLoop(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(c.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}

func (c *Cache[V]) recordExpired(n int) {
	if n == 0 {
		return
	}
	c.expirations.Add(uint64(n))
	for i := 0; i < n; i++ {
		c.metrics.evict("expired")
	}
}
