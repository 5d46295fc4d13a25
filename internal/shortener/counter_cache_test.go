package shortener

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nextCounter(t *testing.T, c *CounterCache, key string) int64 {
	t.Helper()
	v, err := c.GetNextCounter(context.Background(), key)
	require.NoError(t, err)
	return v
}

func TestCounterCache(t *testing.T) {
	ctx := context.Background()
	store := newMemCounterStore()
	c := NewCounterCache(store, 10)
	defer c.Close()

	assert.Equal(t, int64(1), nextCounter(t, c, "codes"))

	// the block's high-water mark is persisted before 1 is handed out
	stored, err := store.GetCounter(ctx, "codes")
	require.NoError(t, err)
	assert.Equal(t, int64(10), stored)

	for want := int64(2); want <= 12; want++ {
		assert.Equal(t, want, nextCounter(t, c, "codes"))
	}
	stored, _ = store.GetCounter(ctx, "codes")
	assert.Equal(t, int64(20), stored, "second block reserved at 11")

	// keys are independent
	assert.Equal(t, int64(1), nextCounter(t, c, "other"))
	assert.Equal(t, int64(13), nextCounter(t, c, "codes"))

	require.NoError(t, c.SetCounter(ctx, "seeded", 100))
	assert.Equal(t, int64(101), nextCounter(t, c, "seeded"))
}

func TestCounterCache_NonPositiveStep(t *testing.T) {
	c := NewCounterCache(newMemCounterStore(), 0)
	assert.Equal(t, int64(1), nextCounter(t, c, "k"))
	assert.Equal(t, int64(2), nextCounter(t, c, "k"))
}

func TestCounterCache_ResumesAfterRestart(t *testing.T) {
	store := newMemCounterStore()

	first := NewCounterCache(store, 10)
	for i := 0; i < 3; i++ {
		nextCounter(t, first, "k")
	}
	require.NoError(t, first.Close())

	// 4..10 of the first block are abandoned, never reused
	second := NewCounterCache(store, 10)
	assert.Equal(t, int64(11), nextCounter(t, second, "k"))
}

func TestCounterCache_ReserveFailure(t *testing.T) {
	store := newMemCounterStore()
	store.failSet = true

	_, err := NewCounterCache(store, 5).GetNextCounter(context.Background(), "k")
	assert.ErrorContains(t, err, "failed to reserve counter block")
}

func TestCounterCache_Concurrent(t *testing.T) {
	store := newMemCounterStore()
	c := NewCounterCache(store, 5)
	defer c.Close()

	const workers, each = 10, 50

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		seen = make(map[int64]struct{})
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < each; j++ {
				v, err := c.GetNextCounter(context.Background(), "shared")
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				seen[v] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*each)
	assert.Equal(t, workers*each/5, store.sets, "one reservation per block")
}
