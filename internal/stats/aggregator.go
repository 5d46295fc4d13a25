// Package stats maintains the derived per-namespace totals.
//
// Mutations push incremental deltas; a periodic reconcile recomputes every
// namespace from its records so drift (records expiring silently, deltas
// lost to a crash) heals on its own.
package stats

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/joshdurbin/ns-shortener/internal/domain"
	"github.com/joshdurbin/ns-shortener/internal/repository"
)

// Aggregator applies stats deltas and recomputes namespace stats
type Aggregator struct {
	store  repository.StatsStore
	clock  domain.Clock
	logger *zap.Logger

	mutex    sync.Mutex
	stopChan chan struct{}
	running  bool
}

// NewAggregator creates a new Aggregator
func NewAggregator(store repository.StatsStore, clock domain.Clock, logger *zap.Logger) *Aggregator {
	if clock == nil {
		clock = domain.RealClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		store:    store,
		clock:    clock,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Classify returns the contribution of a single record to its namespace stats
func Classify(u *domain.ShortURL, now time.Time) domain.StatsDelta {
	d := domain.StatsDelta{TotalURLs: 1}
	switch {
	case u.IsExpired(now):
		d.ExpiredURLs = 1
	case u.IsActive:
		d.ActiveURLs = 1
	}
	return d
}

// Apply adds delta to the namespace stats, recomputing them when none are saved yet
func (a *Aggregator) Apply(ctx context.Context, namespaceID string, delta domain.StatsDelta) error {
	if delta.IsZero() {
		return nil
	}

	applied, err := a.store.ApplyNamespaceStatsDelta(ctx, namespaceID, delta, a.clock.Now())
	if err != nil {
		return fmt.Errorf("failed to apply stats delta: %w", err)
	}
	if applied {
		return nil
	}

	_, err = a.Recompute(ctx, namespaceID)
	return err
}

// Recompute rebuilds the namespace stats from its records and saves them
func (a *Aggregator) Recompute(ctx context.Context, namespaceID string) (*domain.NamespaceStats, error) {
	stats, err := a.store.ComputeNamespaceStats(ctx, namespaceID, a.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to recompute stats for %s: %w", namespaceID, err)
	}
	if err := a.store.SaveNamespaceStats(ctx, stats); err != nil {
		return nil, fmt.Errorf("failed to save stats for %s: %w", namespaceID, err)
	}
	return stats, nil
}

// Get returns the saved stats, computing them on first access
func (a *Aggregator) Get(ctx context.Context, namespaceID string) (*domain.NamespaceStats, error) {
	stats, err := a.store.GetNamespaceStats(ctx, namespaceID)
	if err == nil {
		return stats, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("failed to get stats for %s: %w", namespaceID, err)
	}
	return a.Recompute(ctx, namespaceID)
}

// Reconcile recomputes every known namespace and returns how many succeeded
func (a *Aggregator) Reconcile(ctx context.Context) (int, error) {
	namespaces, err := a.store.ListNamespaces(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list namespaces: %w", err)
	}

	var (
		errs error
		done int
	)
	for _, ns := range namespaces {
		if ctx.Err() != nil {
			return done, multierr.Append(errs, ctx.Err())
		}
		if _, err := a.Recompute(ctx, ns); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		done++
	}
	return done, errs
}

// Start runs Reconcile on the given interval until stopped
func (a *Aggregator) Start(ctx context.Context, interval time.Duration) {
	a.mutex.Lock()
	if a.running {
		a.mutex.Unlock()
		return
	}
	a.running = true
	stopChan := a.stopChan
	a.mutex.Unlock()

	go a.reconcileLoop(ctx, interval, stopChan)
}

// Stop stops the reconcile loop
func (a *Aggregator) Stop() {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if !a.running {
		return
	}
	a.running = false
	close(a.stopChan)

	// Create new channel for potential restart
	a.stopChan = make(chan struct{})
}

func (a *Aggregator) reconcileLoop(ctx context.Context, interval time.Duration, stopChan <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := a.Reconcile(ctx)
			if err != nil {
				a.logger.Warn("namespace stats reconcile incomplete", zap.Int("reconciled", n), zap.Error(err))
				continue
			}
			a.logger.Debug("namespace stats reconciled", zap.Int("namespaces", n))
		case <-stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}
