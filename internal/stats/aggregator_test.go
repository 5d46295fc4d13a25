package stats

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/joshdurbin/ns-shortener/internal/domain"
	"github.com/joshdurbin/ns-shortener/internal/partition"
	"github.com/joshdurbin/ns-shortener/internal/repository/mocks"
	"github.com/joshdurbin/ns-shortener/internal/repository/sqlite"
)

var start = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

func setupAggregator(t *testing.T) (*Aggregator, *sqlite.Repository, *domain.MockClock) {
	t.Helper()
	repo, err := sqlite.New(filepath.Join(t.TempDir(), "stats.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	clock := domain.NewMockClock(start)
	return NewAggregator(repo, clock, nil), repo, clock
}

func insert(t *testing.T, repo *sqlite.Repository, ns, code string, mutate func(*domain.ShortURL)) *domain.ShortURL {
	t.Helper()
	u := &domain.ShortURL{
		ID:           uuid.New(),
		NamespaceID:  ns,
		Shortcode:    code,
		PartitionKey: partition.New(64).Of(ns, code),
		TargetURL:    "https://example.com/" + code,
		CreatedBy:    "alice",
		CreatedAt:    start,
		UpdatedAt:    start,
		IsActive:     true,
		Tags:         []string{},
	}
	if mutate != nil {
		mutate(u)
	}
	require.NoError(t, repo.CreateIfAbsent(context.Background(), u))
	return u
}

func TestClassify(t *testing.T) {
	past := start.Add(-time.Hour)
	future := start.Add(time.Hour)

	tests := []struct {
		name     string
		record   domain.ShortURL
		expected domain.StatsDelta
	}{
		{"active", domain.ShortURL{IsActive: true}, domain.StatsDelta{TotalURLs: 1, ActiveURLs: 1}},
		{"active with future expiry", domain.ShortURL{IsActive: true, ExpiresAt: &future}, domain.StatsDelta{TotalURLs: 1, ActiveURLs: 1}},
		{"expired", domain.ShortURL{IsActive: true, ExpiresAt: &past}, domain.StatsDelta{TotalURLs: 1, ExpiredURLs: 1}},
		{"inactive expired", domain.ShortURL{ExpiresAt: &past}, domain.StatsDelta{TotalURLs: 1, ExpiredURLs: 1}},
		{"inactive", domain.ShortURL{}, domain.StatsDelta{TotalURLs: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(&tt.record, start))
		})
	}
}

func TestAggregator_ApplyRecomputesWhenMissing(t *testing.T) {
	agg, repo, _ := setupAggregator(t)
	ctx := context.Background()

	u := insert(t, repo, "mktg", "abc", nil)
	require.NoError(t, agg.Apply(ctx, "mktg", Classify(u, start)))

	stats, err := repo.GetNamespaceStats(ctx, "mktg")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalURLs)
	assert.Equal(t, int64(1), stats.ActiveURLs)
}

func TestAggregator_ApplyIncrements(t *testing.T) {
	agg, repo, _ := setupAggregator(t)
	ctx := context.Background()

	a := insert(t, repo, "mktg", "a", nil)
	require.NoError(t, agg.Apply(ctx, "mktg", Classify(a, start)))

	b := insert(t, repo, "mktg", "b", nil)
	require.NoError(t, agg.Apply(ctx, "mktg", Classify(b, start)))
	require.NoError(t, agg.Apply(ctx, "mktg", domain.StatsDelta{TotalClicks: 1}))
	require.NoError(t, agg.Apply(ctx, "mktg", domain.StatsDelta{TotalClicks: 1}))

	// Deleting b
	require.NoError(t, agg.Apply(ctx, "mktg", Classify(b, start).Negate()))

	stats, err := agg.Get(ctx, "mktg")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalURLs)
	assert.Equal(t, int64(1), stats.ActiveURLs)
	assert.Equal(t, int64(2), stats.TotalClicks)
}

func TestAggregator_ApplyZeroDeltaIsNoop(t *testing.T) {
	store := new(mocks.Store)
	agg := NewAggregator(store, domain.NewMockClock(start), nil)

	require.NoError(t, agg.Apply(context.Background(), "mktg", domain.StatsDelta{}))
	store.AssertNotCalled(t, "ApplyNamespaceStatsDelta", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAggregator_ApplyStoreError(t *testing.T) {
	store := new(mocks.Store)
	store.On("ApplyNamespaceStatsDelta", mock.Anything, "mktg", domain.StatsDelta{TotalClicks: 1}, start).
		Return(false, errors.New("database is locked"))
	agg := NewAggregator(store, domain.NewMockClock(start), nil)

	err := agg.Apply(context.Background(), "mktg", domain.StatsDelta{TotalClicks: 1})
	assert.Error(t, err)
	store.AssertExpectations(t)
}

func TestAggregator_RecomputeIsIdempotent(t *testing.T) {
	agg, repo, clock := setupAggregator(t)
	ctx := context.Background()

	expiry := start.Add(time.Hour)
	insert(t, repo, "mktg", "soon", func(u *domain.ShortURL) { u.ExpiresAt = &expiry })
	insert(t, repo, "mktg", "off", func(u *domain.ShortURL) { u.IsActive = false })
	insert(t, repo, "mktg", "on", nil)

	first, err := agg.Recompute(ctx, "mktg")
	require.NoError(t, err)
	second, err := agg.Recompute(ctx, "mktg")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(3), first.TotalURLs)
	assert.Equal(t, int64(2), first.ActiveURLs)
	assert.Equal(t, int64(0), first.ExpiredURLs)

	// Records expire without any mutation; recompute picks that up
	clock.Advance(2 * time.Hour)
	later, err := agg.Recompute(ctx, "mktg")
	require.NoError(t, err)
	assert.Equal(t, int64(1), later.ActiveURLs)
	assert.Equal(t, int64(1), later.ExpiredURLs)
}

func TestAggregator_GetComputesOnFirstAccess(t *testing.T) {
	agg, repo, _ := setupAggregator(t)
	ctx := context.Background()

	insert(t, repo, "sales", "x", nil)

	_, err := repo.GetNamespaceStats(ctx, "sales")
	require.ErrorIs(t, err, domain.ErrNotFound)

	stats, err := agg.Get(ctx, "sales")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalURLs)

	saved, err := repo.GetNamespaceStats(ctx, "sales")
	require.NoError(t, err)
	assert.Equal(t, stats.TotalURLs, saved.TotalURLs)
}

func TestAggregator_ReconcileHealsDrift(t *testing.T) {
	agg, repo, _ := setupAggregator(t)
	ctx := context.Background()

	insert(t, repo, "a", "one", nil)
	insert(t, repo, "b", "two", nil)
	insert(t, repo, "b", "three", nil)

	// Drifted row
	require.NoError(t, repo.SaveNamespaceStats(ctx, &domain.NamespaceStats{NamespaceID: "b", TotalURLs: 40, LastUpdated: start}))

	n, err := agg.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	stats, err := repo.GetNamespaceStats(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalURLs)
}

func TestAggregator_StartStop(t *testing.T) {
	agg, _, _ := setupAggregator(t)

	agg.Start(context.Background(), 10*time.Millisecond)
	assert.True(t, agg.running)

	// Starting again is a no-op
	agg.Start(context.Background(), 10*time.Millisecond)

	agg.Stop()
	assert.False(t, agg.running)
	agg.Stop()
}
