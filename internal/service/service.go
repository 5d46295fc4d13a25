package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/joshdurbin/ns-shortener/internal/cache"
	"github.com/joshdurbin/ns-shortener/internal/domain"
	"github.com/joshdurbin/ns-shortener/internal/metrics"
	"github.com/joshdurbin/ns-shortener/internal/repository"
	"github.com/joshdurbin/ns-shortener/internal/shortener"
)

// Config tunes the service
type Config struct {
	StoreTimeout   time.Duration `yaml:"store-timeout"`
	CacheTTL       time.Duration `yaml:"cache-ttl"`
	CreateRetries  uint64        `yaml:"create-retries"`
	RetryBase      time.Duration `yaml:"retry-base"`
	SweepInterval  time.Duration `yaml:"sweep-interval"`
	SweepBatchSize int           `yaml:"sweep-batch-size"`
	MaxBulkItems   int           `yaml:"max-bulk-items"`
}

// DefaultConfig returns the default service configuration
func DefaultConfig() Config {
	return Config{
		StoreTimeout:   2 * time.Second,
		CacheTTL:       time.Hour,
		CreateRetries:  3,
		RetryBase:      50 * time.Millisecond,
		SweepInterval:  time.Minute,
		SweepBatchSize: 500,
		MaxBulkItems:   1000,
	}
}

const (
	// DefaultListLimit applies when a list request sets no limit
	DefaultListLimit = 50
	// MaxListLimit bounds list requests
	MaxListLimit = 1000
)

// Deps are the long-lived handles the service is built from. Clicks, Stats,
// Clock, Metrics and Logger are optional.
type Deps struct {
	Store       repository.Store
	Cache       cache.Cache
	Allocator   *shortener.Allocator
	Clicks      ClickRecorder
	Reporter    AnalyticsReporter
	Stats       StatsKeeper
	Permissions Permissions
	Clock       domain.Clock
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
}

// urlService implements URLService
type urlService struct {
	cfg         Config
	store       repository.Store
	cache       cache.Cache
	allocator   *shortener.Allocator
	clicks      ClickRecorder
	reporter    AnalyticsReporter
	keeper      StatsKeeper
	permissions Permissions
	clock       domain.Clock
	metrics     *metrics.Metrics
	logger      *zap.Logger

	// namespaces deleted but not yet purged; consulted on cache hits
	tombstones sync.Map

	mutex    sync.Mutex
	stopChan chan struct{}
	running  bool
}

// NewURLService creates a new URL service
func NewURLService(cfg Config, deps Deps) (URLService, error) {
	if deps.Store == nil || deps.Cache == nil || deps.Allocator == nil {
		return nil, fmt.Errorf("store, cache and allocator are required")
	}
	if deps.Permissions == nil {
		return nil, fmt.Errorf("permissions are required")
	}

	defaults := DefaultConfig()
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = defaults.StoreTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaults.CacheTTL
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = defaults.RetryBase
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaults.SweepInterval
	}
	if cfg.SweepBatchSize <= 0 {
		cfg.SweepBatchSize = defaults.SweepBatchSize
	}
	if cfg.MaxBulkItems <= 0 {
		cfg.MaxBulkItems = defaults.MaxBulkItems
	}
	if deps.Clock == nil {
		deps.Clock = domain.RealClock{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	return &urlService{
		cfg:         cfg,
		store:       deps.Store,
		cache:       deps.Cache,
		allocator:   deps.Allocator,
		clicks:      deps.Clicks,
		reporter:    deps.Reporter,
		keeper:      deps.Stats,
		permissions: deps.Permissions,
		clock:       deps.Clock,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		stopChan:    make(chan struct{}),
	}, nil
}

// storeCtx bounds a single store call
func (s *urlService) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.StoreTimeout)
}

// mapStoreErr keeps domain errors and turns everything else into a
// retryable timeout or unavailability error
func mapStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrShortcodeTaken),
		errors.Is(err, domain.ErrGenerationExhausted),
		errors.Is(err, domain.ErrInvalidShortcode),
		errors.Is(err, domain.ErrInvalidURL),
		errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrTimeout),
		errors.Is(err, domain.ErrStoreUnavailable):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
}

type permissionCheck func(ctx context.Context, caller domain.Caller, namespaceID string) (bool, error)

// authorize validates the namespace and runs a permission check, returning
// ErrForbidden when it denies
func (s *urlService) authorize(ctx context.Context, check permissionCheck, caller domain.Caller, namespaceID string) error {
	if err := ValidateNamespace(namespaceID); err != nil {
		return err
	}
	allowed, err := check(ctx, caller, namespaceID)
	if err != nil {
		return fmt.Errorf("failed to check permissions: %w", err)
	}
	if !allowed {
		return domain.ErrForbidden
	}
	return nil
}

// requireNamespace returns ErrNotFound for namespaces the collaborator does not know
func (s *urlService) requireNamespace(ctx context.Context, namespaceID string) error {
	exists, err := s.permissions.NamespaceExists(ctx, namespaceID)
	if err != nil {
		return fmt.Errorf("failed to check namespace: %w", err)
	}
	if !exists {
		return fmt.Errorf("namespace %s: %w", namespaceID, domain.ErrNotFound)
	}
	if _, deleted := s.tombstones.Load(namespaceID); deleted {
		return fmt.Errorf("namespace %s: %w", namespaceID, domain.ErrNotFound)
	}
	return nil
}

// cacheRecord writes the record through to the cache; failures only degrade latency
func (s *urlService) cacheRecord(ctx context.Context, u *domain.ShortURL, now time.Time) {
	ttl := cache.EffectiveTTL(s.cfg.CacheTTL, u.ExpiresAt, now)
	if err := s.cache.Put(ctx, u.NamespaceID, u.Shortcode, domain.NewCacheEntry(u), ttl); err != nil {
		s.logger.Warn("failed to cache entry",
			zap.String("namespace", u.NamespaceID),
			zap.String("shortcode", u.Shortcode),
			zap.Error(err))
	}
}

// invalidate drops the cached entry after a successful store write
func (s *urlService) invalidate(ctx context.Context, namespaceID, shortcode string) {
	if err := s.cache.Invalidate(ctx, namespaceID, shortcode); err != nil {
		s.logger.Error("failed to invalidate cache entry",
			zap.String("namespace", namespaceID),
			zap.String("shortcode", shortcode),
			zap.Error(err))
	}
}

// applyStats pushes a delta to the stats keeper; failures heal on reconcile
func (s *urlService) applyStats(ctx context.Context, namespaceID string, delta domain.StatsDelta) {
	if s.keeper == nil || delta.IsZero() {
		return
	}
	if err := s.keeper.Apply(ctx, namespaceID, delta); err != nil {
		s.logger.Warn("failed to apply namespace stats delta",
			zap.String("namespace", namespaceID),
			zap.Error(err))
	}
}

// Close closes the service and its dependencies
func (s *urlService) Close() error {
	s.StopSweeper()
	return multierr.Combine(
		wrapClose("generator", s.allocator.Close()),
		wrapClose("cache", s.cache.Close()),
		wrapClose("repository", s.store.Close()),
	)
}

func wrapClose(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("failed to close %s: %w", what, err)
}

// Ensure urlService implements URLService interface
var _ URLService = (*urlService)(nil)
