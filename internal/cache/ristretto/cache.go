package ristretto

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/joshdurbin/ns-shortener/internal/cache"
	"github.com/joshdurbin/ns-shortener/internal/domain"
	"github.com/joshdurbin/ns-shortener/internal/metrics"
)

// Options configures the ristretto cache. Every entry costs 1, so MaxEntries
// is the cache's capacity.
type Options struct {
	MaxEntries int64
	Metrics    *metrics.Metrics
}

// Cache implements cache.Cache on ristretto's admission-controlled store
type Cache struct {
	store   *ristretto.Cache
	metrics *metrics.Metrics
}

// New creates a new ristretto cache
func New(opts Options) (*Cache, error) {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = 10000
	}

	m := opts.Metrics
	store, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: opts.MaxEntries * 10,
		MaxCost:     opts.MaxEntries,
		BufferItems: 64,
		OnEvict: func(item *ristretto.Item) {
			m.CacheEviction(cache.BackendRistretto)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ristretto cache: %w", err)
	}

	return &Cache{store: store, metrics: m}, nil
}

// Get retrieves a cache entry
func (c *Cache) Get(ctx context.Context, namespaceID, shortcode string) (*domain.CacheEntry, bool) {
	val, found := c.store.Get(cache.Key(namespaceID, shortcode))
	if !found {
		c.metrics.CacheMiss(cache.BackendRistretto)
		return nil, false
	}
	c.metrics.CacheHit(cache.BackendRistretto)
	return val.(*domain.CacheEntry).Clone(), true
}

// Put stores a copy of the entry. The write is flushed before returning so a
// following Invalidate cannot be overtaken by it; the admission policy may
// still decline to keep the entry.
func (c *Cache) Put(ctx context.Context, namespaceID, shortcode string, entry *domain.CacheEntry, ttl time.Duration) error {
	if ttl <= 0 {
		return c.Invalidate(ctx, namespaceID, shortcode)
	}
	c.store.SetWithTTL(cache.Key(namespaceID, shortcode), entry.Clone(), 1, ttl)
	c.store.Wait()
	return nil
}

// Invalidate removes a cache entry
func (c *Cache) Invalidate(ctx context.Context, namespaceID, shortcode string) error {
	c.store.Del(cache.Key(namespaceID, shortcode))
	return nil
}

// Close stops ristretto's goroutines
func (c *Cache) Close() error {
	c.store.Close()
	return nil
}

// Ensure Cache implements the interface
var _ cache.Cache = (*Cache)(nil)
