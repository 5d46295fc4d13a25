package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/joshdurbin/ns-shortener/internal/domain"
	"github.com/joshdurbin/ns-shortener/internal/repository"
)

// Store is a mock implementation of repository.Store
type Store struct {
	mock.Mock
}

func (m *Store) CreateIfAbsent(ctx context.Context, u *domain.ShortURL) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *Store) Get(ctx context.Context, namespaceID, shortcode string) (*domain.ShortURL, error) {
	args := m.Called(ctx, namespaceID, shortcode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ShortURL), args.Error(1)
}

func (m *Store) Update(ctx context.Context, namespaceID, shortcode string, changes domain.URLChanges, updatedAt time.Time) (*domain.ShortURL, *domain.ShortURL, error) {
	args := m.Called(ctx, namespaceID, shortcode, changes, updatedAt)
	var before, after *domain.ShortURL
	if v := args.Get(0); v != nil {
		before = v.(*domain.ShortURL)
	}
	if v := args.Get(1); v != nil {
		after = v.(*domain.ShortURL)
	}
	return before, after, args.Error(2)
}

func (m *Store) Delete(ctx context.Context, namespaceID, shortcode string) (*domain.ShortURL, error) {
	args := m.Called(ctx, namespaceID, shortcode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ShortURL), args.Error(1)
}

func (m *Store) ListRecent(ctx context.Context, namespaceID string, after *domain.Cursor, limit int) ([]*domain.ShortURL, error) {
	args := m.Called(ctx, namespaceID, after, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ShortURL), args.Error(1)
}

func (m *Store) ListByCreator(ctx context.Context, namespaceID, createdBy string, limit int) ([]*domain.ShortURL, error) {
	args := m.Called(ctx, namespaceID, createdBy, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ShortURL), args.Error(1)
}

func (m *Store) ListExpiring(ctx context.Context, namespaceID string, t time.Time, limit int) ([]*domain.ShortURL, error) {
	args := m.Called(ctx, namespaceID, t, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ShortURL), args.Error(1)
}

func (m *Store) ListPrivate(ctx context.Context, namespaceID string, limit int) ([]*domain.ShortURL, error) {
	args := m.Called(ctx, namespaceID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ShortURL), args.Error(1)
}

func (m *Store) RecordClick(ctx context.Context, e *domain.ClickEvent) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *Store) DailyClicks(ctx context.Context, scope domain.ClickScope, window domain.TimeWindow) ([]domain.DailyCount, error) {
	args := m.Called(ctx, scope, window)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DailyCount), args.Error(1)
}

func (m *Store) CountryClicks(ctx context.Context, scope domain.ClickScope, window domain.TimeWindow) (map[string]int64, error) {
	args := m.Called(ctx, scope, window)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int64), args.Error(1)
}

func (m *Store) ReferrerClicks(ctx context.Context, scope domain.ClickScope, window domain.TimeWindow) (map[string]int64, error) {
	args := m.Called(ctx, scope, window)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int64), args.Error(1)
}

func (m *Store) UniqueVisitors(ctx context.Context, scope domain.ClickScope, window domain.TimeWindow) (int64, error) {
	args := m.Called(ctx, scope, window)
	return args.Get(0).(int64), args.Error(1)
}

func (m *Store) PruneClicks(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

func (m *Store) ComputeNamespaceStats(ctx context.Context, namespaceID string, now time.Time) (*domain.NamespaceStats, error) {
	args := m.Called(ctx, namespaceID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.NamespaceStats), args.Error(1)
}

func (m *Store) GetNamespaceStats(ctx context.Context, namespaceID string) (*domain.NamespaceStats, error) {
	args := m.Called(ctx, namespaceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.NamespaceStats), args.Error(1)
}

func (m *Store) SaveNamespaceStats(ctx context.Context, stats *domain.NamespaceStats) error {
	args := m.Called(ctx, stats)
	return args.Error(0)
}

func (m *Store) ApplyNamespaceStatsDelta(ctx context.Context, namespaceID string, delta domain.StatsDelta, at time.Time) (bool, error) {
	args := m.Called(ctx, namespaceID, delta, at)
	return args.Bool(0), args.Error(1)
}

func (m *Store) ListNamespaces(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *Store) MarkNamespaceDeleted(ctx context.Context, namespaceID string, at time.Time) error {
	args := m.Called(ctx, namespaceID, at)
	return args.Error(0)
}

func (m *Store) ListDeletedNamespaces(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *Store) PurgeNamespaceBatch(ctx context.Context, namespaceID string, limit int) ([]string, error) {
	args := m.Called(ctx, namespaceID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *Store) FinishNamespacePurge(ctx context.Context, namespaceID string) error {
	args := m.Called(ctx, namespaceID)
	return args.Error(0)
}

func (m *Store) GetCounter(ctx context.Context, key string) (int64, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(int64), args.Error(1)
}

func (m *Store) SetCounter(ctx context.Context, key string, value int64) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *Store) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Close closes the repository connection
func (m *Store) Close() error {
	args := m.Called()
	return args.Error(0)
}

// Ensure Store implements the interface
var _ repository.Store = (*Store)(nil)
