package cache

import (
	"context"
	"time"

	"github.com/joshdurbin/ns-shortener/internal/domain"
)

// Backend names
const (
	BackendMemory    = "memory"
	BackendRedis     = "redis"
	BackendRistretto = "ristretto"
)

// Cache defines the hot cache in front of the store. Implementations are safe
// for concurrent use; a failed or missing entry is always a miss, never an error.
type Cache interface {
	// Get retrieves the entry for a namespaced shortcode
	Get(ctx context.Context, namespaceID, shortcode string) (*domain.CacheEntry, bool)

	// Put stores the entry for at most ttl; a non-positive ttl removes it instead
	Put(ctx context.Context, namespaceID, shortcode string, entry *domain.CacheEntry, ttl time.Duration) error

	// Invalidate removes the entry
	Invalidate(ctx context.Context, namespaceID, shortcode string) error

	// Close releases the cache's resources
	Close() error
}

// EffectiveTTL clamps maxTTL to the time left before expiresAt. It returns 0
// when the record is already expired, meaning it must not be cached.
func EffectiveTTL(maxTTL time.Duration, expiresAt *time.Time, now time.Time) time.Duration {
	if expiresAt == nil {
		return maxTTL
	}
	remaining := expiresAt.Sub(now)
	if remaining <= 0 {
		return 0
	}
	if remaining < maxTTL {
		return remaining
	}
	return maxTTL
}

// Key joins a namespace and shortcode into a single cache key
func Key(namespaceID, shortcode string) string {
	return namespaceID + ":" + shortcode
}
