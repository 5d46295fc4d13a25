package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/joshdurbin/ns-shortener/internal/cache"
	"github.com/joshdurbin/ns-shortener/internal/domain"
	"github.com/joshdurbin/ns-shortener/internal/metrics"
)

// DefaultPrefix namespaces every key this cache writes
const DefaultPrefix = "url_cache"

// Options configures the Redis cache
type Options struct {
	URL     string
	Prefix  string
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// Cache implements cache.Cache on a shared Redis instance so several
// server processes see the same hot set
type Cache struct {
	client  goredis.UniversalClient
	prefix  string
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// New connects to Redis and verifies the connection
func New(ctx context.Context, opts Options) (*Cache, error) {
	redisOpts, err := goredis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := goredis.NewClient(redisOpts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return NewWithClient(client, opts), nil
}

// NewWithClient wraps an existing client
func NewWithClient(client goredis.UniversalClient, opts Options) *Cache {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Cache{
		client:  client,
		prefix:  opts.Prefix,
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}
}

func (c *Cache) key(namespaceID, shortcode string) string {
	return c.prefix + ":" + cache.Key(namespaceID, shortcode)
}

// Get retrieves a cache entry; any Redis failure is reported as a miss
func (c *Cache) Get(ctx context.Context, namespaceID, shortcode string) (*domain.CacheEntry, bool) {
	data, err := c.client.Get(ctx, c.key(namespaceID, shortcode)).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			c.logger.Warn("redis cache get failed",
				zap.String("namespace", namespaceID),
				zap.String("shortcode", shortcode),
				zap.Error(err))
		}
		c.metrics.CacheMiss(cache.BackendRedis)
		return nil, false
	}

	var entry domain.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.Warn("discarding undecodable cache entry",
			zap.String("namespace", namespaceID),
			zap.String("shortcode", shortcode),
			zap.Error(err))
		_ = c.client.Del(ctx, c.key(namespaceID, shortcode)).Err()
		c.metrics.CacheMiss(cache.BackendRedis)
		return nil, false
	}

	c.metrics.CacheHit(cache.BackendRedis)
	return &entry, true
}

// Put stores a cache entry with SET EX
func (c *Cache) Put(ctx context.Context, namespaceID, shortcode string, entry *domain.CacheEntry, ttl time.Duration) error {
	if ttl <= 0 {
		return c.Invalidate(ctx, namespaceID, shortcode)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	if err := c.client.Set(ctx, c.key(namespaceID, shortcode), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache entry: %w", err)
	}
	return nil
}

// Invalidate removes a cache entry
func (c *Cache) Invalidate(ctx context.Context, namespaceID, shortcode string) error {
	if err := c.client.Del(ctx, c.key(namespaceID, shortcode)).Err(); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (c *Cache) Close() error {
	return c.client.Close()
}

// Ensure Cache implements the interface
var _ cache.Cache = (*Cache)(nil)
