package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/joshdurbin/ns-shortener/internal/domain"
	"github.com/joshdurbin/ns-shortener/internal/service"
)

// URLService is a mock implementation of service.URLService
type URLService struct {
	mock.Mock
}

// CreateShortURL creates a new short URL
func (m *URLService) CreateShortURL(ctx context.Context, req service.CreateRequest) (*domain.ShortURL, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ShortURL), args.Error(1)
}

// BulkCreate creates many short URLs
func (m *URLService) BulkCreate(ctx context.Context, req service.BulkRequest) ([]domain.BulkResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.BulkResult), args.Error(1)
}

// Resolve returns the target URL
func (m *URLService) Resolve(ctx context.Context, req service.ResolveRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// GetShortURL retrieves a record
func (m *URLService) GetShortURL(ctx context.Context, caller domain.Caller, namespaceID, shortcode string) (*domain.ShortURL, error) {
	args := m.Called(ctx, caller, namespaceID, shortcode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ShortURL), args.Error(1)
}

// ListShortURLs pages through a namespace
func (m *URLService) ListShortURLs(ctx context.Context, caller domain.Caller, namespaceID string, opts service.ListOptions) (*service.ListPage, error) {
	args := m.Called(ctx, caller, namespaceID, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListPage), args.Error(1)
}

// ListByCreator lists a creator's records
func (m *URLService) ListByCreator(ctx context.Context, caller domain.Caller, namespaceID, createdBy string, limit int) ([]*domain.ShortURL, error) {
	args := m.Called(ctx, caller, namespaceID, createdBy, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ShortURL), args.Error(1)
}

// ListExpired lists expired records
func (m *URLService) ListExpired(ctx context.Context, caller domain.Caller, namespaceID string, limit int) ([]*domain.ShortURL, error) {
	args := m.Called(ctx, caller, namespaceID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ShortURL), args.Error(1)
}

// ListPrivate lists private records
func (m *URLService) ListPrivate(ctx context.Context, caller domain.Caller, namespaceID string, limit int) ([]*domain.ShortURL, error) {
	args := m.Called(ctx, caller, namespaceID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ShortURL), args.Error(1)
}

// UpdateShortURL applies changes
func (m *URLService) UpdateShortURL(ctx context.Context, caller domain.Caller, namespaceID, shortcode string, changes domain.URLChanges) (*domain.ShortURL, error) {
	args := m.Called(ctx, caller, namespaceID, shortcode, changes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ShortURL), args.Error(1)
}

// DeleteShortURL removes a short URL
func (m *URLService) DeleteShortURL(ctx context.Context, caller domain.Caller, namespaceID, shortcode string) error {
	args := m.Called(ctx, caller, namespaceID, shortcode)
	return args.Error(0)
}

// DeleteNamespace marks a namespace deleted
func (m *URLService) DeleteNamespace(ctx context.Context, caller domain.Caller, namespaceID string) error {
	args := m.Called(ctx, caller, namespaceID)
	return args.Error(0)
}

// GetURLAnalytics reports on a short URL
func (m *URLService) GetURLAnalytics(ctx context.Context, caller domain.Caller, namespaceID, shortcode, window string) (*domain.ClickReport, error) {
	args := m.Called(ctx, caller, namespaceID, shortcode, window)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ClickReport), args.Error(1)
}

// GetNamespaceAnalytics reports on a namespace
func (m *URLService) GetNamespaceAnalytics(ctx context.Context, caller domain.Caller, namespaceID, window string) (*domain.ClickReport, error) {
	args := m.Called(ctx, caller, namespaceID, window)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ClickReport), args.Error(1)
}

// GetNamespaceStats returns namespace totals
func (m *URLService) GetNamespaceStats(ctx context.Context, caller domain.Caller, namespaceID string) (*domain.NamespaceStats, error) {
	args := m.Called(ctx, caller, namespaceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.NamespaceStats), args.Error(1)
}

// Sweep purges deleted namespaces
func (m *URLService) Sweep(ctx context.Context) (service.SweepResult, error) {
	args := m.Called(ctx)
	return args.Get(0).(service.SweepResult), args.Error(1)
}

// StartSweeper starts the background sweeper
func (m *URLService) StartSweeper(ctx context.Context, interval time.Duration) {
	m.Called(ctx, interval)
}

// StopSweeper stops the background sweeper
func (m *URLService) StopSweeper() {
	m.Called()
}

// Close closes the service
func (m *URLService) Close() error {
	args := m.Called()
	return args.Error(0)
}

// Ensure URLService implements the interface
var _ service.URLService = (*URLService)(nil)
