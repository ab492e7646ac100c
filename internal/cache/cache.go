package cache

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/dmitrijs2005/ballotkeeper/internal/logging"
)

const DefaultCapacity = 100

// Entry is one cached result.
type Entry struct {
	Key            string
	Value          any
	CreatedAt      time.Time
	LastAccessedAt time.Time
	AccessCount    int
	Class          DataClass
}

// Stats is a point-in-time view of the cache counters.
type Stats struct {
	Len           int    `json:"len"`
	Capacity      int    `json:"capacity"`
	Hits          uint64 `json:"hits"`
	Misses        uint64 `json:"misses"`
	Evictions     uint64 `json:"evictions"`
	Expirations   uint64 `json:"expirations"`
	Invalidations uint64 `json:"invalidations"`
}

// QueryCache is a fixed-capacity LRU of query results with per-class TTLs.
// All operations are guarded by one mutex; it is safe for concurrent use.
type QueryCache struct {
	mu       sync.Mutex
	lru      *simplelru.LRU[string, *Entry]
	capacity int
	ttls     TTLs
	now      func() time.Time
	log      logging.Logger

	set           *metrics.Set
	hits          *metrics.Counter
	misses        *metrics.Counter
	evictions     *metrics.Counter
	expirations   *metrics.Counter
	invalidations *metrics.Counter
}

type Option func(*QueryCache)

// WithTTLs overrides the TTL of the given classes.
func WithTTLs(t TTLs) Option {
	return func(c *QueryCache) {
		for k, v := range t {
			if v > 0 {
				c.ttls[k] = v
			}
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *QueryCache) { c.now = now }
}

func WithLogger(l logging.Logger) Option {
	return func(c *QueryCache) { c.log = l }
}

// New returns a cache holding at most capacity entries; a non-positive
// capacity selects DefaultCapacity.
func New(capacity int, opts ...Option) *QueryCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	// simplelru only fails on a non-positive size
	lru, _ := simplelru.NewLRU[string, *Entry](capacity, nil)

	set := metrics.NewSet()
	c := &QueryCache{
		lru:           lru,
		capacity:      capacity,
		ttls:          DefaultTTLs(),
		now:           time.Now,
		log:           logging.Nop(),
		set:           set,
		hits:          set.NewCounter(`ballotkeeper_cache_hits_total`),
		misses:        set.NewCounter(`ballotkeeper_cache_misses_total`),
		evictions:     set.NewCounter(`ballotkeeper_cache_evictions_total`),
		expirations:   set.NewCounter(`ballotkeeper_cache_expirations_total`),
		invalidations: set.NewCounter(`ballotkeeper_cache_invalidations_total`),
	}
	set.NewGauge(`ballotkeeper_cache_entries`, func() float64 {
		return float64(c.Len())
	})
	for _, o := range opts {
		o(c)
	}
	return c
}

// TTL returns the time to live applied to class.
func (c *QueryCache) TTL(class DataClass) time.Duration {
	return c.ttls.of(class)
}

// Get returns the value stored under key if it has not outlived its class
// TTL. Expired entries are dropped and reported as misses.
func (c *QueryCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Peek(key)
	if !ok {
		c.misses.Inc()
		return nil, false
	}

	now := c.now()
	if now.Sub(e.CreatedAt) > c.ttls.of(e.Class) {
		c.lru.Remove(key)
		c.expirations.Inc()
		c.misses.Inc()
		return nil, false
	}

	c.lru.Get(key) // mark as most recently used
	e.LastAccessedAt = now
	e.AccessCount++
	c.hits.Inc()
	return e.Value, true
}

// Set inserts or replaces the value under key. At capacity the least
// recently accessed entry is evicted first.
func (c *QueryCache) Set(key string, value any, class DataClass) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if evicted := c.lru.Add(key, &Entry{
		Key:            key,
		Value:          value,
		CreatedAt:      now,
		LastAccessedAt: now,
		Class:          class,
	}); evicted {
		c.evictions.Inc()
	}
}

// Entry returns a copy of the entry under key without touching recency or
// expiry; it is meant for inspection.
func (c *QueryCache) Entry(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Peek(key)
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Invalidate removes every entry whose key contains pattern and returns how
// many were removed.
func (c *QueryCache) Invalidate(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, k := range c.lru.Keys() {
		if strings.Contains(k, pattern) {
			c.lru.Remove(k)
			removed++
		}
	}
	c.invalidations.Add(removed)
	if removed > 0 {
		c.log.Debug(context.Background(), "cache invalidated", "pattern", pattern, "removed", removed)
	}
	return removed
}

// Purge drops every entry.
func (c *QueryCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidations.Add(c.lru.Len())
	c.lru.Purge()
}

func (c *QueryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func (c *QueryCache) Stats() Stats {
	return Stats{
		Len:           c.Len(),
		Capacity:      c.capacity,
		Hits:          c.hits.Get(),
		Misses:        c.misses.Get(),
		Evictions:     c.evictions.Get(),
		Expirations:   c.expirations.Get(),
		Invalidations: c.invalidations.Get(),
	}
}

// WritePrometheus writes the cache metrics in Prometheus text format.
func (c *QueryCache) WritePrometheus(w io.Writer) {
	c.set.WritePrometheus(w)
}
