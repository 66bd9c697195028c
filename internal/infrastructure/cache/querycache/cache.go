// Package querycache keeps recently built query graphs in a bounded,
// strictly least-recently-used cache keyed by the query text.
//
// Cached graphs are in the Query state and therefore immutable; the cache
// and every caller share the same pointer. An evicted graph stays valid for
// callers that still hold it and is reclaimed by the garbage collector once
// the last reference is dropped.
package querycache

import (
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"golang.org/x/sync/singleflight"

	"github.com/turtacn/molcore/internal/domain/molecule"
	"github.com/turtacn/molcore/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molcore/pkg/errors"
)

// DefaultCapacity is the number of query graphs kept when no capacity is
// configured.
const DefaultCapacity = 3

// Builder turns query text into a Query-state graph.
type Builder func(text string) (*molecule.Graph, error)

// Recorder receives cache events. prometheus.ChemMetrics implements it.
type Recorder interface {
	CacheHit()
	CacheMiss()
	CacheEviction()
	CacheEntries(n int)
}

type nopRecorder struct{}

func (nopRecorder) CacheHit()        {}
func (nopRecorder) CacheMiss()       {}
func (nopRecorder) CacheEviction()   {}
func (nopRecorder) CacheEntries(int) {}

// Cache is safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	lru      *simplelru.LRU[string, *molecule.Graph]
	capacity int
	build    Builder
	group    singleflight.Group
	logger   logging.Logger
	recorder Recorder
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger used for build failures and evictions.
func WithLogger(l logging.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// WithRecorder sets the metrics sink.
func WithRecorder(r Recorder) Option {
	return func(c *Cache) { c.recorder = r }
}

// New creates a cache holding at most capacity graphs. The capacity is
// fixed for the lifetime of the cache.
func New(capacity int, build Builder, opts ...Option) (*Cache, error) {
	if capacity < 1 {
		return nil, errors.InvalidParam("query cache capacity must be at least 1")
	}
	if build == nil {
		return nil, errors.InvalidParam("query cache needs a builder")
	}
	c := &Cache{
		capacity: capacity,
		build:    build,
		logger:   logging.NewNopLogger(),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}
	lru, err := simplelru.NewLRU[string, *molecule.Graph](capacity, c.onEvict)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCacheError, "create query cache")
	}
	c.lru = lru
	return c, nil
}

// onEvict runs with c.mu held.
func (c *Cache) onEvict(key string, _ *molecule.Graph) {
	c.recorder.CacheEviction()
	c.logger.Debug("query cache eviction", logging.Input(key))
}

// GetOrBuild returns the cached graph for text, promoting it to most
// recently used, or builds, stores and returns it. Failed builds are
// returned to the caller and never stored. Concurrent misses for the same
// text share a single build.
func (c *Cache) GetOrBuild(text string) (*molecule.Graph, error) {
	if g, ok := c.get(text); ok {
		c.recorder.CacheHit()
		return g, nil
	}
	c.recorder.CacheMiss()

	v, err, _ := c.group.Do(text, func() (interface{}, error) {
		// A flight that finished just before this one may have stored it.
		if g, ok := c.get(text); ok {
			return g, nil
		}
		g, err := c.build(text)
		if err != nil {
			c.logger.Debug("query build failed", logging.Input(text), logging.Err(err))
			return nil, err
		}
		if g == nil {
			return nil, errors.New(errors.ErrCodeQueryCacheBuildFailed, "query builder returned no graph")
		}
		c.mu.Lock()
		c.lru.Add(text, g)
		n := c.lru.Len()
		c.mu.Unlock()
		c.recorder.CacheEntries(n)
		return g, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*molecule.Graph), nil
}

func (c *Cache) get(text string) (*molecule.Graph, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Get(text)
}

// Contains reports whether text is cached without touching its recency.
func (c *Cache) Contains(text string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Contains(text)
}

// Len returns the number of cached graphs.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Keys returns the cached query texts from least to most recently used.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Keys()
}

// Capacity returns the fixed capacity.
func (c *Cache) Capacity() int { return c.capacity }

// Purge drops every entry. Graphs already handed out stay valid.
func (c *Cache) Purge() {
	c.mu.Lock()
	c.lru.Purge()
	c.mu.Unlock()
	c.recorder.CacheEntries(0)
}
