package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/joshdurbin/ns-shortener/internal/domain"
	"github.com/joshdurbin/ns-shortener/internal/stats"
)

// GetShortURL retrieves a record regardless of expiry
func (s *urlService) GetShortURL(ctx context.Context, caller domain.Caller, namespaceID, shortcode string) (*domain.ShortURL, error) {
	if err := s.authorize(ctx, s.permissions.CanView, caller, namespaceID); err != nil {
		return nil, err
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	rec, err := s.store.Get(sctx, namespaceID, shortcode)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return rec, nil
}

// ListShortURLs pages through a namespace newest first
func (s *urlService) ListShortURLs(ctx context.Context, caller domain.Caller, namespaceID string, opts ListOptions) (*ListPage, error) {
	if err := s.authorize(ctx, s.permissions.CanView, caller, namespaceID); err != nil {
		return nil, err
	}
	limit := clampLimit(opts.Limit)

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	// One extra row tells whether another page exists
	urls, err := s.store.ListRecent(sctx, namespaceID, opts.After, limit+1)
	if err != nil {
		return nil, mapStoreErr(err)
	}

	page := &ListPage{URLs: urls}
	if len(urls) > limit {
		page.URLs = urls[:limit]
		page.NextCursor = domain.CursorAfter(urls[limit-1])
	}
	return page, nil
}

// ListByCreator lists a creator's records newest first
func (s *urlService) ListByCreator(ctx context.Context, caller domain.Caller, namespaceID, createdBy string, limit int) ([]*domain.ShortURL, error) {
	if err := s.authorize(ctx, s.permissions.CanView, caller, namespaceID); err != nil {
		return nil, err
	}
	if createdBy == "" {
		return nil, fmt.Errorf("%w: creator is required", domain.ErrInvalidRequest)
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	urls, err := s.store.ListByCreator(sctx, namespaceID, createdBy, clampLimit(limit))
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return urls, nil
}

// ListExpired lists records whose expiry has passed
func (s *urlService) ListExpired(ctx context.Context, caller domain.Caller, namespaceID string, limit int) ([]*domain.ShortURL, error) {
	if err := s.authorize(ctx, s.permissions.CanView, caller, namespaceID); err != nil {
		return nil, err
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	urls, err := s.store.ListExpiring(sctx, namespaceID, s.clock.Now(), clampLimit(limit))
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return urls, nil
}

// ListPrivate lists private records
func (s *urlService) ListPrivate(ctx context.Context, caller domain.Caller, namespaceID string, limit int) ([]*domain.ShortURL, error) {
	if err := s.authorize(ctx, s.permissions.CanView, caller, namespaceID); err != nil {
		return nil, err
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	urls, err := s.store.ListPrivate(sctx, namespaceID, clampLimit(limit))
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return urls, nil
}

// UpdateShortURL applies changes, then invalidates the cached entry before returning
func (s *urlService) UpdateShortURL(ctx context.Context, caller domain.Caller, namespaceID, shortcode string, changes domain.URLChanges) (*domain.ShortURL, error) {
	if err := s.authorize(ctx, s.permissions.CanUpdate, caller, namespaceID); err != nil {
		return nil, err
	}
	if err := validateChanges(changes); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	sctx, cancel := s.storeCtx(ctx)
	before, after, err := s.store.Update(sctx, namespaceID, shortcode, changes, now)
	cancel()
	if err != nil {
		return nil, mapStoreErr(err)
	}

	s.invalidate(ctx, namespaceID, shortcode)
	s.applyStats(ctx, namespaceID, stats.Classify(after, now).Sub(stats.Classify(before, now)))

	s.logger.Debug("short URL updated",
		zap.String("namespace", namespaceID),
		zap.String("shortcode", shortcode))
	return after, nil
}

// DeleteShortURL removes a record, then invalidates the cached entry before returning
func (s *urlService) DeleteShortURL(ctx context.Context, caller domain.Caller, namespaceID, shortcode string) error {
	if err := s.authorize(ctx, s.permissions.CanUpdate, caller, namespaceID); err != nil {
		return err
	}

	now := s.clock.Now()
	sctx, cancel := s.storeCtx(ctx)
	removed, err := s.store.Delete(sctx, namespaceID, shortcode)
	cancel()
	if err != nil {
		return mapStoreErr(err)
	}

	s.invalidate(ctx, namespaceID, shortcode)

	delta := stats.Classify(removed, now)
	delta.TotalClicks = removed.ClickCount
	s.applyStats(ctx, namespaceID, delta.Negate())

	s.logger.Debug("short URL deleted",
		zap.String("namespace", namespaceID),
		zap.String("shortcode", shortcode))
	return nil
}

// DeleteNamespace hides every record of the namespace; the sweeper purges them
func (s *urlService) DeleteNamespace(ctx context.Context, caller domain.Caller, namespaceID string) error {
	if err := s.authorize(ctx, s.permissions.CanAdmin, caller, namespaceID); err != nil {
		return err
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.store.MarkNamespaceDeleted(sctx, namespaceID, s.clock.Now()); err != nil {
		return mapStoreErr(err)
	}
	s.tombstones.Store(namespaceID, struct{}{})

	s.logger.Info("namespace marked for deletion", zap.String("namespace", namespaceID))
	return nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}
