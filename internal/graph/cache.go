package graph

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agentic-research/contentgraph/internal/content"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Cache owns the built graphs of one content store, keyed by options
// fingerprint. Concurrent requests for the same options share one build.
// Graphs are only dropped by Rebuild or Invalidate; the store is assumed
// static for the life of the process.
type Cache struct {
	store   content.Store
	logger  *zap.Logger
	metrics *cacheMetrics

	mu     sync.RWMutex
	graphs map[string]*RelationshipGraph
	gen    uint64 // bumped by Invalidate; stale builds are not stored
	flight singleflight.Group
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithLogger sets the logger used for builds.
func WithLogger(logger *zap.Logger) CacheOption {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewCache(store content.Store, opts ...CacheOption) *Cache {
	c := &Cache{
		store:   store,
		logger:  zap.NewNop(),
		metrics: newCacheMetrics(),
		graphs:  make(map[string]*RelationshipGraph),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store returns the content store the cache builds from.
func (c *Cache) Store() content.Store {
	return c.store
}

// RegisterMetrics registers the cache metrics with reg.
func (c *Cache) RegisterMetrics(reg prometheus.Registerer) error {
	for _, col := range c.metrics.collectors() {
		if err := reg.Register(col); err != nil {
			return fmt.Errorf("register graph metrics: %w", err)
		}
	}
	return nil
}

// Get returns the graph for opts, building it on a miss. A caller whose ctx
// ends first gets ctx.Err(); the build itself runs on and is cached.
func (c *Cache) Get(ctx context.Context, opts Options) (*RelationshipGraph, error) {
	opts = opts.withDefaults()
	key := opts.Fingerprint()

	if g, ok := c.lookup(key); ok {
		c.metrics.hits.Inc()
		return g, nil
	}
	c.metrics.misses.Inc()

	gen := c.generation()
	buildCtx := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(flightKey(gen, key), func() (any, error) {
		if g, ok := c.lookup(key); ok {
			return g, nil
		}
		return c.build(buildCtx, gen, key, opts)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.logger.Debug("joined in-flight graph build", zap.String("options", key))
		}
		return res.Val.(*RelationshipGraph), nil
	}
}

func flightKey(gen uint64, key string) string {
	return fmt.Sprintf("%d/%s", gen, key)
}

func (c *Cache) generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

// GetOrBuild returns the graph for DefaultOptions.
func (c *Cache) GetOrBuild(ctx context.Context) (*RelationshipGraph, error) {
	return c.Get(ctx, DefaultOptions())
}

// Rebuild discards any cached graph for opts and builds a fresh one.
func (c *Cache) Rebuild(ctx context.Context, opts Options) (*RelationshipGraph, error) {
	key := opts.withDefaults().Fingerprint()
	c.mu.Lock()
	delete(c.graphs, key)
	gen := c.gen
	c.mu.Unlock()
	c.flight.Forget(flightKey(gen, key))
	return c.Get(ctx, opts)
}

// Invalidate drops every cached graph. Builds already in flight still
// answer their callers but are not cached.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.graphs = make(map[string]*RelationshipGraph)
	c.gen++
	c.mu.Unlock()
}

// Len returns the number of cached graphs.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.graphs)
}

func (c *Cache) lookup(key string) (*RelationshipGraph, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	g, ok := c.graphs[key]
	return g, ok
}

// build runs one graph build. Failed builds are not cached.
func (c *Cache) build(ctx context.Context, gen uint64, key string, opts Options) (*RelationshipGraph, error) {
	start := time.Now()
	g, err := Build(ctx, c.store, opts, c.logger)
	c.metrics.buildTime.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.buildErrors.Inc()
		c.logger.Error("graph build failed", zap.String("options", key), zap.Error(err))
		return nil, fmt.Errorf("build relationship graph: %w", err)
	}
	c.metrics.builds.Inc()
	c.metrics.entries.Set(float64(g.TotalEntries))

	c.mu.Lock()
	stale := c.gen != gen
	if !stale {
		c.graphs[key] = g
	}
	c.mu.Unlock()
	if stale {
		c.logger.Debug("discarding graph built before invalidation", zap.String("options", key))
		return g, nil
	}

	c.logger.Info("relationship graph ready",
		zap.String("options", key),
		zap.Int("entries", g.TotalEntries),
		zap.Duration("took", time.Since(start)))
	return g, nil
}
