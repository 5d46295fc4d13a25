package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Sweep purges every namespace marked deleted, invalidating the cache entry
// of each removed record
func (s *urlService) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	namespaces, err := s.store.ListDeletedNamespaces(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to list deleted namespaces: %w", mapStoreErr(err))
	}

	var errs error
	for _, ns := range namespaces {
		s.tombstones.Store(ns, struct{}{})

		n, err := s.purgeNamespace(ctx, ns)
		result.Records += n
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		s.tombstones.Delete(ns)
		result.Namespaces++

		s.logger.Info("namespace purged",
			zap.String("namespace", ns),
			zap.Int("records", n))
	}
	return result, errs
}

func (s *urlService) purgeNamespace(ctx context.Context, namespaceID string) (int, error) {
	purged := 0
	for {
		codes, err := s.store.PurgeNamespaceBatch(ctx, namespaceID, s.cfg.SweepBatchSize)
		if err != nil {
			return purged, fmt.Errorf("failed to purge namespace %s: %w", namespaceID, mapStoreErr(err))
		}
		for _, code := range codes {
			s.invalidate(ctx, namespaceID, code)
		}
		purged += len(codes)
		s.metrics.NamespaceRecordsPurged(len(codes))

		if len(codes) < s.cfg.SweepBatchSize {
			break
		}
	}

	if err := s.store.FinishNamespacePurge(ctx, namespaceID); err != nil {
		return purged, fmt.Errorf("failed to finish purge of %s: %w", namespaceID, mapStoreErr(err))
	}
	return purged, nil
}

// StartSweeper runs Sweep on the given interval until stopped
func (s *urlService) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = s.cfg.SweepInterval
	}

	s.mutex.Lock()
	if s.running {
		s.mutex.Unlock()
		return
	}
	s.running = true
	stopChan := s.stopChan
	s.mutex.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := s.Sweep(ctx); err != nil {
					s.logger.Warn("namespace sweep incomplete", zap.Error(err))
				}
			case <-stopChan:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// StopSweeper stops the background sweeper
func (s *urlService) StopSweeper() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.running {
		return
	}
	s.running = false
	close(s.stopChan)

	// Create new channel for potential restart
	s.stopChan = make(chan struct{})
}
