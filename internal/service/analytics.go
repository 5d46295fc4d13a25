package service

import (
	"context"
	"fmt"

	"github.com/joshdurbin/ns-shortener/internal/analytics"
	"github.com/joshdurbin/ns-shortener/internal/domain"
)

// GetURLAnalytics reports on one short URL over a window such as "7days"
func (s *urlService) GetURLAnalytics(ctx context.Context, caller domain.Caller, namespaceID, shortcode, window string) (*domain.ClickReport, error) {
	if err := s.authorize(ctx, s.permissions.CanView, caller, namespaceID); err != nil {
		return nil, err
	}
	if s.reporter == nil {
		return nil, fmt.Errorf("analytics are not configured")
	}
	w, err := analytics.ParseWindow(window, s.clock.Now())
	if err != nil {
		return nil, err
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	if _, err := s.store.Get(sctx, namespaceID, shortcode); err != nil {
		return nil, mapStoreErr(err)
	}
	report, err := s.reporter.URLAnalytics(sctx, namespaceID, shortcode, w)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return report, nil
}

// GetNamespaceAnalytics reports on every short URL of a namespace
func (s *urlService) GetNamespaceAnalytics(ctx context.Context, caller domain.Caller, namespaceID, window string) (*domain.ClickReport, error) {
	if err := s.authorize(ctx, s.permissions.CanView, caller, namespaceID); err != nil {
		return nil, err
	}
	if err := s.requireNamespace(ctx, namespaceID); err != nil {
		return nil, err
	}
	if s.reporter == nil {
		return nil, fmt.Errorf("analytics are not configured")
	}
	w, err := analytics.ParseWindow(window, s.clock.Now())
	if err != nil {
		return nil, err
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	report, err := s.reporter.NamespaceAnalytics(sctx, namespaceID, w)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return report, nil
}

// GetNamespaceStats returns the namespace totals
func (s *urlService) GetNamespaceStats(ctx context.Context, caller domain.Caller, namespaceID string) (*domain.NamespaceStats, error) {
	if err := s.authorize(ctx, s.permissions.CanView, caller, namespaceID); err != nil {
		return nil, err
	}
	if err := s.requireNamespace(ctx, namespaceID); err != nil {
		return nil, err
	}
	if s.keeper == nil {
		return nil, fmt.Errorf("namespace stats are not configured")
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	st, err := s.keeper.Get(sctx, namespaceID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return st, nil
}
