package ristretto

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshdurbin/ns-shortener/internal/domain"
)

func TestCache_PutGetInvalidate(t *testing.T) {
	c, err := New(Options{MaxEntries: 100})
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()

	entry := &domain.CacheEntry{TargetURL: "https://example.com", CreatedBy: "bob", IsActive: true}
	require.NoError(t, c.Put(ctx, "mktg", "abc", entry, time.Minute))

	got, ok := c.Get(ctx, "mktg", "abc")
	require.True(t, ok)
	assert.Equal(t, "https://example.com", got.TargetURL)

	// Verify it's a copy
	got.TargetURL = "https://changed.example"
	again, ok := c.Get(ctx, "mktg", "abc")
	require.True(t, ok)
	assert.Equal(t, "https://example.com", again.TargetURL)

	_, ok = c.Get(ctx, "sales", "abc")
	assert.False(t, ok)

	require.NoError(t, c.Invalidate(ctx, "mktg", "abc"))
	_, ok = c.Get(ctx, "mktg", "abc")
	assert.False(t, ok)
}

func TestCache_NonPositiveTTLRemoves(t *testing.T) {
	c, err := New(Options{MaxEntries: 100})
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()

	entry := &domain.CacheEntry{TargetURL: "https://example.com", IsActive: true}
	require.NoError(t, c.Put(ctx, "ns", "k", entry, time.Minute))
	require.NoError(t, c.Put(ctx, "ns", "k", entry, -time.Second))

	_, ok := c.Get(ctx, "ns", "k")
	assert.False(t, ok)
}
