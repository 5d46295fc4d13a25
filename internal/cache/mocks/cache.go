package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/joshdurbin/ns-shortener/internal/cache"
	"github.com/joshdurbin/ns-shortener/internal/domain"
)

// Cache is a mock implementation of cache.Cache
type Cache struct {
	mock.Mock
}

// Get retrieves a cache entry
func (m *Cache) Get(ctx context.Context, namespaceID, shortcode string) (*domain.CacheEntry, bool) {
	args := m.Called(ctx, namespaceID, shortcode)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).(*domain.CacheEntry), args.Bool(1)
}

// Put stores a cache entry
func (m *Cache) Put(ctx context.Context, namespaceID, shortcode string, entry *domain.CacheEntry, ttl time.Duration) error {
	args := m.Called(ctx, namespaceID, shortcode, entry, ttl)
	return args.Error(0)
}

// Invalidate removes a cache entry
func (m *Cache) Invalidate(ctx context.Context, namespaceID, shortcode string) error {
	args := m.Called(ctx, namespaceID, shortcode)
	return args.Error(0)
}

// Close closes the cache
func (m *Cache) Close() error {
	args := m.Called()
	return args.Error(0)
}

// Ensure Cache implements the interface
var _ cache.Cache = (*Cache)(nil)
