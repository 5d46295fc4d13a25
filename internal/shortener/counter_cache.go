package shortener

import (
	"context"
	"fmt"
	"sync"
)

// CounterCache hands out counter values from blocks reserved in a CounterStore.
// A block's high-water mark is persisted before any value from it is returned,
// so a restart resumes past every value that may already have been used.
type CounterCache struct {
	mu        sync.Mutex
	store     CounterStore
	counters  map[string]*cacheEntry
	jumpAhead int64
}

type cacheEntry struct {
	current   int64
	allocated int64
}

// NewCounterCache creates a new counter cache reserving jumpAhead values at a time
func NewCounterCache(store CounterStore, jumpAhead int64) *CounterCache {
	if jumpAhead < 1 {
		jumpAhead = 1
	}
	return &CounterCache{
		store:     store,
		counters:  make(map[string]*cacheEntry),
		jumpAhead: jumpAhead,
	}
}

// GetNextCounter returns the next counter value, reserving another block if needed
func (c *CounterCache) GetNextCounter(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.counters[key]
	if !exists {
		stored, err := c.store.GetCounter(ctx, key)
		if err != nil {
			return 0, fmt.Errorf("failed to get counter from store: %w", err)
		}
		entry = &cacheEntry{current: stored, allocated: stored}
		c.counters[key] = entry
	}

	if entry.current >= entry.allocated {
		next := entry.allocated + c.jumpAhead
		if err := c.store.SetCounter(ctx, key, next); err != nil {
			return 0, fmt.Errorf("failed to reserve counter block: %w", err)
		}
		entry.allocated = next
	}

	entry.current++
	return entry.current, nil
}

// SetCounter sets a counter value; the next value handed out is value+1
func (c *CounterCache) SetCounter(ctx context.Context, key string, value int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.SetCounter(ctx, key, value); err != nil {
		return fmt.Errorf("failed to set counter: %w", err)
	}
	c.counters[key] = &cacheEntry{current: value, allocated: value}
	return nil
}

// Close drops the in-memory blocks; unused reserved values are skipped on restart
func (c *CounterCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters = make(map[string]*cacheEntry)
	return nil
}

// Ensure CounterCache implements CounterProvider
var _ CounterProvider = (*CounterCache)(nil)
