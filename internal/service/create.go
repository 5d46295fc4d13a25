package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/joshdurbin/ns-shortener/internal/domain"
	"github.com/joshdurbin/ns-shortener/internal/metrics"
	"github.com/joshdurbin/ns-shortener/internal/shortener"
	"github.com/joshdurbin/ns-shortener/internal/stats"
)

// CreateShortURL creates a new short URL
func (s *urlService) CreateShortURL(ctx context.Context, req CreateRequest) (*domain.ShortURL, error) {
	if err := s.authorize(ctx, s.permissions.CanUpdate, req.Caller, req.NamespaceID); err != nil {
		return nil, err
	}
	if err := s.requireNamespace(ctx, req.NamespaceID); err != nil {
		return nil, err
	}

	item := validateItem(BulkEntry{Shortcode: req.Shortcode, TargetURL: req.TargetURL, Options: req.Options})
	valid, ok := item.(domain.ValidItem)
	if !ok {
		err := item.(domain.RejectedItem).Reason
		s.metrics.Creation(metrics.OutcomeInvalid)
		return nil, err
	}
	return s.create(ctx, req.NamespaceID, req.Caller, valid)
}

// BulkCreate creates each item independently; a failed item never affects the others
func (s *urlService) BulkCreate(ctx context.Context, req BulkRequest) ([]domain.BulkResult, error) {
	if err := s.authorize(ctx, s.permissions.CanUpdate, req.Caller, req.NamespaceID); err != nil {
		return nil, err
	}
	if err := s.requireNamespace(ctx, req.NamespaceID); err != nil {
		return nil, err
	}
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: no items supplied", domain.ErrInvalidRequest)
	}
	if len(req.Items) > s.cfg.MaxBulkItems {
		return nil, fmt.Errorf("%w: at most %d items per request", domain.ErrInvalidRequest, s.cfg.MaxBulkItems)
	}

	// Validation pass
	items := make([]domain.BulkItem, len(req.Items))
	for i, entry := range req.Items {
		items[i] = validateItem(entry)
	}

	results := make([]domain.BulkResult, len(items))
	created := 0
	for i, item := range items {
		results[i].Index = i
		switch v := item.(type) {
		case domain.ValidItem:
			rec, err := s.create(ctx, req.NamespaceID, req.Caller, v)
			results[i].Record, results[i].Err = rec, err
			if err == nil {
				created++
			}
		case domain.RejectedItem:
			s.metrics.Creation(metrics.OutcomeInvalid)
			results[i].Err = v.Reason
		}
	}

	s.logger.Info("bulk create finished",
		zap.String("namespace", req.NamespaceID),
		zap.Int("items", len(items)),
		zap.Int("created", created))
	return results, nil
}

// validateItem turns a raw input into a ValidItem or a RejectedItem
func validateItem(entry BulkEntry) domain.BulkItem {
	if err := ValidateURL(entry.TargetURL); err != nil {
		return domain.RejectedItem{Reason: err}
	}
	if entry.Shortcode != "" {
		if err := shortener.ValidateShortcode(entry.Shortcode); err != nil {
			return domain.RejectedItem{Reason: err}
		}
	}
	if err := validateTags(entry.Options.Tags); err != nil {
		return domain.RejectedItem{Reason: err}
	}
	return domain.ValidItem{Shortcode: entry.Shortcode, TargetURL: entry.TargetURL, Options: entry.Options}
}

// create allocates and stores one validated item, then writes it through to the cache
func (s *urlService) create(ctx context.Context, namespaceID string, caller domain.Caller, item domain.ValidItem) (*domain.ShortURL, error) {
	now := s.clock.Now()
	rec := &domain.ShortURL{
		ID:          uuid.New(),
		NamespaceID: namespaceID,
		Shortcode:   item.Shortcode,
		TargetURL:   item.TargetURL,
		CreatedBy:   caller.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
		IsPrivate:   item.Options.IsPrivate,
		IsActive:    true,
		Tags:        domain.NormalizeTags(item.Options.Tags),
	}
	if item.Options.ExpiresAt != nil {
		exp := item.Options.ExpiresAt.UTC()
		rec.ExpiresAt = &exp
	}

	backoff := retry.WithMaxRetries(s.cfg.CreateRetries, retry.NewExponential(s.cfg.RetryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		sctx, cancel := s.storeCtx(ctx)
		defer cancel()

		err := mapStoreErr(s.allocator.Allocate(sctx, rec))
		if domain.IsRetryable(err) {
			s.logger.Debug("retrying create",
				zap.String("namespace", namespaceID),
				zap.Error(err))
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		s.metrics.Creation(creationOutcome(err))
		return nil, err
	}
	s.metrics.Creation(metrics.OutcomeCreated)

	s.cacheRecord(ctx, rec, now)
	s.applyStats(ctx, namespaceID, stats.Classify(rec, now))

	s.logger.Debug("short URL created",
		zap.String("namespace", namespaceID),
		zap.String("shortcode", rec.Shortcode),
		zap.String("created_by", rec.CreatedBy))
	return rec, nil
}

func creationOutcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrShortcodeTaken):
		return metrics.OutcomeTaken
	case errors.Is(err, domain.ErrGenerationExhausted):
		return metrics.OutcomeExhausted
	case errors.Is(err, domain.ErrInvalidShortcode), errors.Is(err, domain.ErrInvalidURL):
		return metrics.OutcomeInvalid
	default:
		return metrics.OutcomeError
	}
}

