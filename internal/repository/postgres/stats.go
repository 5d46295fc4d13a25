package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/joshdurbin/ns-shortener/internal/domain"
)

// ComputeNamespaceStats derives the namespace totals from its records
func (r *Repository) ComputeNamespaceStats(ctx context.Context, namespaceID string, now time.Time) (*domain.NamespaceStats, error) {
	stats := &domain.NamespaceStats{NamespaceID: namespaceID, LastUpdated: now.UTC()}
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE is_active AND (expires_at IS NULL OR expires_at > $2)),
			COUNT(*) FILTER (WHERE expires_at IS NOT NULL AND expires_at <= $2),
			COALESCE(SUM(click_count), 0)::bigint
		FROM short_urls
		WHERE namespace_id = $1 AND `+visible,
		namespaceID, now).Scan(&stats.TotalURLs, &stats.ActiveURLs, &stats.ExpiredURLs, &stats.TotalClicks)
	if err != nil {
		return nil, fmt.Errorf("failed to compute namespace stats: %w", err)
	}
	return stats, nil
}

// GetNamespaceStats returns the saved stats
func (r *Repository) GetNamespaceStats(ctx context.Context, namespaceID string) (*domain.NamespaceStats, error) {
	stats := &domain.NamespaceStats{NamespaceID: namespaceID}
	err := r.pool.QueryRow(ctx, `
		SELECT total_urls, active_urls, expired_urls, total_clicks, last_updated
		FROM namespace_stats WHERE namespace_id = $1`, namespaceID).
		Scan(&stats.TotalURLs, &stats.ActiveURLs, &stats.ExpiredURLs, &stats.TotalClicks, &stats.LastUpdated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get namespace stats: %w", err)
	}
	stats.LastUpdated = stats.LastUpdated.UTC()
	return stats, nil
}

// SaveNamespaceStats overwrites the saved stats
func (r *Repository) SaveNamespaceStats(ctx context.Context, stats *domain.NamespaceStats) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO namespace_stats (namespace_id, total_urls, active_urls, expired_urls, total_clicks, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (namespace_id) DO UPDATE SET
			total_urls = EXCLUDED.total_urls,
			active_urls = EXCLUDED.active_urls,
			expired_urls = EXCLUDED.expired_urls,
			total_clicks = EXCLUDED.total_clicks,
			last_updated = EXCLUDED.last_updated`,
		stats.NamespaceID, stats.TotalURLs, stats.ActiveURLs, stats.ExpiredURLs, stats.TotalClicks, stats.LastUpdated)
	if err != nil {
		return fmt.Errorf("failed to save namespace stats: %w", err)
	}
	return nil
}

// ApplyNamespaceStatsDelta adds delta to an existing stats row
func (r *Repository) ApplyNamespaceStatsDelta(ctx context.Context, namespaceID string, delta domain.StatsDelta, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE namespace_stats SET
			total_urls = total_urls + $2,
			active_urls = active_urls + $3,
			expired_urls = expired_urls + $4,
			total_clicks = total_clicks + $5,
			last_updated = $6
		WHERE namespace_id = $1`,
		namespaceID, delta.TotalURLs, delta.ActiveURLs, delta.ExpiredURLs, delta.TotalClicks, at)
	if err != nil {
		return false, fmt.Errorf("failed to apply namespace stats delta: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListNamespaces returns the visible namespaces that have records or saved stats
func (r *Repository) ListNamespaces(ctx context.Context) ([]string, error) {
	return r.queryStrings(ctx, `
		(SELECT namespace_id FROM short_urls
		 UNION
		 SELECT namespace_id FROM namespace_stats)
		EXCEPT
		SELECT namespace_id FROM deleted_namespaces
		ORDER BY 1`)
}

// MarkNamespaceDeleted records the namespace as deleted; its records become invisible
func (r *Repository) MarkNamespaceDeleted(ctx context.Context, namespaceID string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO deleted_namespaces (namespace_id, deleted_at) VALUES ($1, $2)
		ON CONFLICT (namespace_id) DO NOTHING`, namespaceID, at)
	if err != nil {
		return fmt.Errorf("failed to mark namespace deleted: %w", err)
	}
	return nil
}

// ListDeletedNamespaces returns namespaces awaiting purge, oldest deletion first
func (r *Repository) ListDeletedNamespaces(ctx context.Context) ([]string, error) {
	return r.queryStrings(ctx, `SELECT namespace_id FROM deleted_namespaces ORDER BY deleted_at, namespace_id`)
}

// PurgeNamespaceBatch removes up to limit records of the namespace
func (r *Repository) PurgeNamespaceBatch(ctx context.Context, namespaceID string, limit int) ([]string, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		DELETE FROM short_urls
		WHERE (partition_key, namespace_id, shortcode) IN (
			SELECT partition_key, namespace_id, shortcode FROM short_urls
			WHERE namespace_id = $1 ORDER BY shortcode LIMIT $2)
		RETURNING shortcode`, namespaceID, pgLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to purge namespace batch: %w", err)
	}
	codes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to purge namespace batch: %w", err)
	}

	if len(codes) > 0 {
		if err := deleteClickRows(ctx, tx, namespaceID, codes); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit purge: %w", err)
	}
	return codes, nil
}

// FinishNamespacePurge drops the namespace's remaining click data, stats and deletion mark
func (r *Repository) FinishNamespacePurge(ctx context.Context, namespaceID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, table := range []string{
		"short_urls", "click_events", "click_daily", "click_country_daily", "click_referrer_daily",
		"namespace_click_daily", "namespace_stats", "deleted_namespaces",
	} {
		if _, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE namespace_id = $1`, namespaceID); err != nil {
			return fmt.Errorf("failed to purge %s: %w", table, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit purge: %w", err)
	}
	return nil
}

func (r *Repository) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return out, nil
}
