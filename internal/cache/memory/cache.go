package memory

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/joshdurbin/ns-shortener/internal/cache"
	"github.com/joshdurbin/ns-shortener/internal/domain"
	"github.com/joshdurbin/ns-shortener/internal/metrics"
	"github.com/joshdurbin/ns-shortener/internal/partition"
)

const (
	// DefaultMaxEntries bounds the cache when no size is configured
	DefaultMaxEntries = 10000
	// DefaultShards is the number of independently locked LRU segments
	DefaultShards = 16
)

// Options configures the in-memory cache
type Options struct {
	MaxEntries int
	Shards     int
	Clock      domain.Clock
	Metrics    *metrics.Metrics
}

// Cache implements cache.Cache as a sharded LRU with per-entry deadlines.
// Keys are spread across shards by their partition key.
type Cache struct {
	shards      []*shard
	partitioner partition.Partitioner
	clock       domain.Clock
	metrics     *metrics.Metrics

	mutex    sync.RWMutex
	stopChan chan struct{}
	running  bool
}

type shard struct {
	mu       sync.Mutex
	items    map[string]*list.Element
	order    *list.List
	capacity int
}

type item struct {
	key      string
	entry    *domain.CacheEntry
	deadline time.Time
}

// New creates a new in-memory cache
func New(opts Options) *Cache {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.Shards <= 0 {
		opts.Shards = DefaultShards
	}
	if opts.Shards > opts.MaxEntries {
		opts.Shards = opts.MaxEntries
	}
	if opts.Clock == nil {
		opts.Clock = domain.RealClock{}
	}

	perShard := (opts.MaxEntries + opts.Shards - 1) / opts.Shards
	shards := make([]*shard, opts.Shards)
	for i := range shards {
		shards[i] = &shard{
			items:    make(map[string]*list.Element),
			order:    list.New(),
			capacity: perShard,
		}
	}

	return &Cache{
		shards:      shards,
		partitioner: partition.New(uint32(opts.Shards)),
		clock:       opts.Clock,
		metrics:     opts.Metrics,
		stopChan:    make(chan struct{}),
	}
}

func (c *Cache) shardFor(namespaceID, shortcode string) *shard {
	return c.shards[c.partitioner.Of(namespaceID, shortcode)]
}

// Get retrieves a cache entry, dropping it if its deadline has passed
func (c *Cache) Get(ctx context.Context, namespaceID, shortcode string) (*domain.CacheEntry, bool) {
	key := cache.Key(namespaceID, shortcode)
	s := c.shardFor(namespaceID, shortcode)
	now := c.clock.Now()

	s.mu.Lock()
	el, ok := s.items[key]
	if !ok {
		s.mu.Unlock()
		c.metrics.CacheMiss(cache.BackendMemory)
		return nil, false
	}
	it := el.Value.(*item)
	if !now.Before(it.deadline) {
		s.remove(el)
		s.mu.Unlock()
		c.metrics.CacheEviction(cache.BackendMemory)
		c.metrics.CacheMiss(cache.BackendMemory)
		return nil, false
	}
	s.order.MoveToFront(el)
	// Return a copy to prevent external modification
	entry := it.entry.Clone()
	s.mu.Unlock()

	c.metrics.CacheHit(cache.BackendMemory)
	return entry, true
}

// Put stores a copy of the entry for ttl, evicting the least recently used
// entry of the shard when it is full
func (c *Cache) Put(ctx context.Context, namespaceID, shortcode string, entry *domain.CacheEntry, ttl time.Duration) error {
	if ttl <= 0 {
		return c.Invalidate(ctx, namespaceID, shortcode)
	}

	key := cache.Key(namespaceID, shortcode)
	s := c.shardFor(namespaceID, shortcode)
	deadline := c.clock.Now().Add(ttl)

	s.mu.Lock()
	if el, ok := s.items[key]; ok {
		it := el.Value.(*item)
		it.entry = entry.Clone()
		it.deadline = deadline
		s.order.MoveToFront(el)
		s.mu.Unlock()
		return nil
	}

	s.items[key] = s.order.PushFront(&item{key: key, entry: entry.Clone(), deadline: deadline})
	evicted := 0
	for s.order.Len() > s.capacity {
		s.remove(s.order.Back())
		evicted++
	}
	s.mu.Unlock()

	for i := 0; i < evicted; i++ {
		c.metrics.CacheEviction(cache.BackendMemory)
	}
	return nil
}

// Invalidate removes a cache entry
func (c *Cache) Invalidate(ctx context.Context, namespaceID, shortcode string) error {
	key := cache.Key(namespaceID, shortcode)
	s := c.shardFor(namespaceID, shortcode)

	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.items[key]; ok {
		s.remove(el)
	}
	return nil
}

// Len returns the number of entries held, including ones not yet reaped
func (c *Cache) Len() int {
	n := 0
	for _, s := range c.shards {
		s.mu.Lock()
		n += s.order.Len()
		s.mu.Unlock()
	}
	return n
}

// RemoveExpired drops every entry whose deadline has passed and returns the count
func (c *Cache) RemoveExpired() int {
	now := c.clock.Now()
	removed := 0
	for _, s := range c.shards {
		s.mu.Lock()
		for el := s.order.Back(); el != nil; {
			prev := el.Prev()
			if !now.Before(el.Value.(*item).deadline) {
				s.remove(el)
				removed++
			}
			el = prev
		}
		s.mu.Unlock()
	}
	for i := 0; i < removed; i++ {
		c.metrics.CacheEviction(cache.BackendMemory)
	}
	return removed
}

// StartReaper periodically removes expired entries until stopped
func (c *Cache) StartReaper(ctx context.Context, interval time.Duration) {
	c.mutex.Lock()
	if c.running {
		c.mutex.Unlock()
		return
	}
	c.running = true
	stopChan := c.stopChan
	c.mutex.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.RemoveExpired()
			case <-stopChan:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// StopReaper stops the background reaper
func (c *Cache) StopReaper() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.running {
		return
	}
	c.running = false
	close(c.stopChan)

	// Create new channel for potential restart
	c.stopChan = make(chan struct{})
}

// Close stops the reaper and drops all entries
func (c *Cache) Close() error {
	c.StopReaper()
	for _, s := range c.shards {
		s.mu.Lock()
		s.items = make(map[string]*list.Element)
		s.order.Init()
		s.mu.Unlock()
	}
	return nil
}

func (s *shard) remove(el *list.Element) {
	s.order.Remove(el)
	delete(s.items, el.Value.(*item).key)
}

// Ensure Cache implements the interface
var _ cache.Cache = (*Cache)(nil)
