package main

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/joshdurbin/ns-shortener/internal/analytics"
	"github.com/joshdurbin/ns-shortener/internal/cache"
	"github.com/joshdurbin/ns-shortener/internal/cache/memory"
	"github.com/joshdurbin/ns-shortener/internal/cache/redis"
	"github.com/joshdurbin/ns-shortener/internal/cache/ristretto"
	"github.com/joshdurbin/ns-shortener/internal/config"
	"github.com/joshdurbin/ns-shortener/internal/metrics"
	"github.com/joshdurbin/ns-shortener/internal/partition"
	"github.com/joshdurbin/ns-shortener/internal/repository"
	"github.com/joshdurbin/ns-shortener/internal/repository/postgres"
	"github.com/joshdurbin/ns-shortener/internal/repository/sqlite"
	"github.com/joshdurbin/ns-shortener/internal/service"
	"github.com/joshdurbin/ns-shortener/internal/shortener"
	"github.com/joshdurbin/ns-shortener/internal/stats"
)

// app is the wired set of long-lived components
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    repository.Store
	memory   *memory.Cache
	geo      *analytics.MaxMindResolver
	pipeline *analytics.Pipeline
	stats    *stats.Aggregator
	service  service.URLService
}

func openStore(ctx context.Context, cfg *config.Config, partitioner partition.Partitioner, logger *zap.Logger) (repository.Store, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		repo, err := postgres.New(ctx, postgres.Config{DSN: cfg.Database.DSN, MaxConns: cfg.Database.MaxConns}, partitioner, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		logger.Info("using postgres store", zap.Int32("max_conns", cfg.Database.MaxConns))
		return repo, nil
	default:
		repo, err := sqlite.New(cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		logger.Info("using sqlite store", zap.String("path", cfg.Database.Path))
		return repo, nil
	}
}

func (a *app) openCache(ctx context.Context, m *metrics.Metrics) (cache.Cache, error) {
	cfg := a.cfg.Cache
	switch cfg.Backend {
	case cache.BackendRedis:
		c, err := redis.New(ctx, redis.Options{URL: cfg.RedisURL, Prefix: cfg.RedisPrefix, Metrics: m, Logger: a.logger})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis cache: %w", err)
		}
		return c, nil
	case cache.BackendRistretto:
		c, err := ristretto.New(ristretto.Options{MaxEntries: int64(cfg.MaxEntries), Metrics: m})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ristretto cache: %w", err)
		}
		return c, nil
	default:
		a.memory = memory.New(memory.Options{MaxEntries: cfg.MaxEntries, Metrics: m})
		return a.memory, nil
	}
}

// newApp opens the store and cache and builds the service around them.
// Background loops are not running until start.
func newApp(ctx context.Context, cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger}
	partitioner := partition.New(cfg.Shortener.Partitions)

	a.store, err = openStore(ctx, cfg, partitioner, logger)
	if err != nil {
		return nil, err
	}
	// closers run in reverse when construction fails part way
	var closers []func() error
	closers = append(closers, a.store.Close)
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				_ = closers[i]()
			}
		}
	}()

	generator, err := shortener.NewGenerator(cfg.Shortener.Config, a.store)
	if err != nil {
		return nil, fmt.Errorf("failed to create shortener generator: %w", err)
	}
	closers = append(closers, generator.Close)
	logger.Info("using shortener generator", zap.String("type", generator.Type()))

	c, err := a.openCache(ctx, m)
	if err != nil {
		return nil, err
	}
	closers = append(closers, c.Close)
	logger.Info("using cache backend", zap.String("backend", cfg.Cache.Backend))

	a.geo, err = analytics.NewGeoResolver(cfg.Analytics.GeoIPDatabase)
	if err != nil {
		return nil, err
	}
	closers = append(closers, a.geo.Close)

	a.stats = stats.NewAggregator(a.store, nil, logger)
	a.pipeline, err = analytics.NewPipeline(cfg.Analytics, analytics.Deps{
		Store:   a.store,
		Stats:   a.stats,
		Geo:     a.geo,
		Metrics: m,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create click pipeline: %w", err)
	}

	a.service, err = service.NewURLService(cfg.Service, service.Deps{
		Store:       a.store,
		Cache:       c,
		Allocator:   shortener.NewAllocator(a.store, generator, partitioner, cfg.Shortener.MaxAttempts, m, logger),
		Clicks:      a.pipeline,
		Reporter:    analytics.NewReporter(a.store),
		Stats:       a.stats,
		Permissions: cfg.PermissionSet(),
		Metrics:     m,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}
	return a, nil
}

// start launches the background loops; the pipeline starts its own janitor
func (a *app) start(ctx context.Context) {
	a.pipeline.Start(ctx)
	a.stats.Start(ctx, a.cfg.Stats.ReconcileInterval)
	a.service.StartSweeper(ctx, a.cfg.Service.SweepInterval)
	if a.memory != nil {
		a.memory.StartReaper(ctx, a.cfg.Cache.ReapInterval)
	}
}

// shutdown drains queued clicks before closing the service and its store
func (a *app) shutdown(ctx context.Context) error {
	err := a.pipeline.Close(ctx)
	a.stats.Stop()
	return multierr.Combine(err, a.service.Close(), a.geo.Close())
}
