package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/joshdurbin/ns-shortener/internal/domain"
	"github.com/joshdurbin/ns-shortener/internal/metrics"
)

// Resolve returns the target URL of a namespaced shortcode. Private records
// the caller may not view yield ErrPrivate, distinct from ErrNotFound.
func (s *urlService) Resolve(ctx context.Context, req ResolveRequest) (string, error) {
	begin := time.Now()
	target, err := s.resolve(ctx, req)
	s.metrics.Resolution(resolutionOutcome(err), time.Since(begin))
	if err != nil {
		return "", err
	}

	if s.clicks != nil && !s.clicks.RecordClick(req.NamespaceID, req.Shortcode, req.Meta) {
		s.logger.Debug("click dropped",
			zap.String("namespace", req.NamespaceID),
			zap.String("shortcode", req.Shortcode))
	}
	return target, nil
}

func (s *urlService) resolve(ctx context.Context, req ResolveRequest) (string, error) {
	if req.NamespaceID == "" || req.Shortcode == "" {
		return "", domain.ErrNotFound
	}
	if _, deleted := s.tombstones.Load(req.NamespaceID); deleted {
		return "", domain.ErrNotFound
	}

	now := s.clock.Now()
	if entry, ok := s.cache.Get(ctx, req.NamespaceID, req.Shortcode); ok {
		return s.admit(ctx, req, entry, now)
	}

	sctx, cancel := s.storeCtx(ctx)
	rec, err := s.store.Get(sctx, req.NamespaceID, req.Shortcode)
	cancel()
	if err != nil {
		err = mapStoreErr(err)
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("store lookup failed during resolve",
				zap.String("namespace", req.NamespaceID),
				zap.String("shortcode", req.Shortcode),
				zap.Error(err))
		}
		return "", err
	}

	s.cacheRecord(ctx, rec, now)
	return s.admit(ctx, req, domain.NewCacheEntry(rec), now)
}

// admit validates an entry against the caller and the clock
func (s *urlService) admit(ctx context.Context, req ResolveRequest, entry *domain.CacheEntry, now time.Time) (string, error) {
	if !entry.IsActive {
		return "", domain.ErrNotFound
	}
	if entry.IsPrivate {
		allowed, err := s.canViewPrivate(ctx, req.Caller, req.NamespaceID, entry.CreatedBy)
		if err != nil {
			return "", err
		}
		if !allowed {
			return "", domain.ErrPrivate
		}
	}
	if entry.IsExpired(now) {
		return "", domain.ErrExpired
	}
	return entry.TargetURL, nil
}

// canViewPrivate allows the creator and anyone with view rights on the namespace
func (s *urlService) canViewPrivate(ctx context.Context, caller domain.Caller, namespaceID, createdBy string) (bool, error) {
	if caller.IsAnonymous() {
		return false, nil
	}
	if caller.UserID == createdBy {
		return true, nil
	}
	return s.permissions.CanView(ctx, caller, namespaceID)
}

func resolutionOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeResolved
	case errors.Is(err, domain.ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, domain.ErrExpired):
		return metrics.OutcomeExpired
	case errors.Is(err, domain.ErrPrivate):
		return metrics.OutcomePrivate
	case errors.Is(err, domain.ErrTimeout):
		return metrics.OutcomeTimeout
	default:
		return metrics.OutcomeUnavailable
	}
}
