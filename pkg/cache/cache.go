// Package cache implements a read-through cache for view calls with a fixed TTL and
// explicit prefix invalidation.
package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	cache "github.com/Code-Hex/go-generics-cache"
	"github.com/Code-Hex/go-generics-cache/policy/lru"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var cacheMetrics = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "view_cache_requests_total",
		Help: "View call cache lookups by result",
	},
	[]string{
		"name",
		"result",
	},
)

const (
	DefaultTTL      = 10 * time.Second
	DefaultCapacity = 4096
)

type entry struct {
	data      []byte
	fetchedAt time.Time
}

// FetchFunc performs the underlying query on a cache miss.
type FetchFunc func(ctx context.Context) ([]byte, error)

// Cache memoizes raw view call results. Values are copied on the way in and out,
// so a caller can never modify what other callers observe.
//
// A Cache is meant to be created once per client session and shared by reference.
type Cache struct {
	entries    *cache.Cache[string, entry]
	group      singleflight.Group
	ttl        time.Duration
	now        func() time.Time
	metricName string
	logger     *zap.Logger

	// mu protects generation. Every invalidation bumps generation,
	// fetches started under an older generation don't store their results.
	mu         sync.Mutex
	generation uint64
}

type Options struct {
	ttl        time.Duration
	capacity   int
	now        func() time.Time
	metricName string
	logger     *zap.Logger
}

type Option func(o *Options)

func WithTTL(ttl time.Duration) Option {
	return func(o *Options) {
		o.ttl = ttl
	}
}

// WithCapacity limits the number of entries, least recently used ones are evicted first.
func WithCapacity(n int) Option {
	return func(o *Options) {
		o.capacity = n
	}
}

// WithClock replaces time.Now as the source of fetch timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Options) {
		o.now = now
	}
}

func WithMetricName(name string) Option {
	return func(o *Options) {
		o.metricName = name
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		o.logger = logger
	}
}

func New(opts ...Option) *Cache {
	o := &Options{
		ttl:        DefaultTTL,
		capacity:   DefaultCapacity,
		now:        time.Now,
		metricName: "view_calls",
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return &Cache{
		entries:    cache.New(cache.AsLRU[string, entry](lru.WithCapacity(o.capacity))),
		ttl:        o.ttl,
		now:        o.now,
		metricName: o.metricName,
		logger:     o.logger,
	}
}

// Get returns the cached value for key if it was fetched less than TTL ago.
// Otherwise it calls fetch, stores the result with the current timestamp and returns it.
// Concurrent misses for the same key share a single fetch. The shared fetch is not cancelled
// when ctx is, ctx only bounds how long this caller waits for it.
func (c *Cache) Get(ctx context.Context, key string, fetch FetchFunc) ([]byte, error) {
	if data, ok := c.lookup(key); ok {
		cacheMetrics.WithLabelValues(c.metricName, "hit").Inc()
		return data, nil
	}
	cacheMetrics.WithLabelValues(c.metricName, "miss").Inc()

	generation := c.currentGeneration()
	flightKey := fmt.Sprintf("%d/%s", generation, key)
	ch := c.group.DoChan(flightKey, func() (any, error) {
		data, err := fetch(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.store(key, data, generation)
		return data, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			cacheMetrics.WithLabelValues(c.metricName, "coalesced").Inc()
		}
		return clone(res.Val.([]byte)), nil
	}
}

// Set stores data under key with the current timestamp.
func (c *Cache) Set(key string, data []byte) {
	c.store(key, data, c.currentGeneration())
}

// Invalidate removes every entry whose key starts with prefix. An empty prefix clears the cache.
func (c *Cache) Invalidate(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	removed := 0
	for _, key := range c.entries.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.entries.Delete(key)
			removed++
		}
	}
	c.logger.Debug("view cache invalidated", zap.String("prefix", prefix), zap.Int("removed", removed))
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.Invalidate("")
}

// Len returns the number of stored entries, stale ones included.
func (c *Cache) Len() int {
	return len(c.entries.Keys())
}

func (c *Cache) lookup(key string) ([]byte, bool) {
	e, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.fetchedAt) >= c.ttl {
		return nil, false
	}
	return clone(e.data), true
}

func (c *Cache) store(key string, data []byte, generation uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.generation {
		return
	}
	c.entries.Set(key, entry{data: clone(data), fetchedAt: c.now()}, cache.WithExpiration(c.ttl))
}

func (c *Cache) currentGeneration() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append(make([]byte, 0, len(b)), b...)
}
