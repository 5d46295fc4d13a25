package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/joshdurbin/ns-shortener/internal/domain"
)

// ComputeNamespaceStats derives the namespace totals from its records
func (r *Repository) ComputeNamespaceStats(ctx context.Context, namespaceID string, now time.Time) (*domain.NamespaceStats, error) {
	n := toNanos(now)
	stats := &domain.NamespaceStats{NamespaceID: namespaceID, LastUpdated: now.UTC()}
	err := r.reads.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN is_active = 1 AND (expires_at IS NULL OR expires_at > ?) THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN expires_at IS NOT NULL AND expires_at <= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(click_count), 0)
		FROM short_urls
		WHERE namespace_id = ? AND `+visible,
		n, n, namespaceID).Scan(&stats.TotalURLs, &stats.ActiveURLs, &stats.ExpiredURLs, &stats.TotalClicks)
	if err != nil {
		return nil, fmt.Errorf("failed to compute namespace stats: %w", err)
	}
	return stats, nil
}

// GetNamespaceStats returns the saved stats
func (r *Repository) GetNamespaceStats(ctx context.Context, namespaceID string) (*domain.NamespaceStats, error) {
	var (
		stats       = &domain.NamespaceStats{NamespaceID: namespaceID}
		lastUpdated int64
	)
	err := r.reads.QueryRowContext(ctx, `
		SELECT total_urls, active_urls, expired_urls, total_clicks, last_updated
		FROM namespace_stats WHERE namespace_id = ?`, namespaceID).
		Scan(&stats.TotalURLs, &stats.ActiveURLs, &stats.ExpiredURLs, &stats.TotalClicks, &lastUpdated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get namespace stats: %w", err)
	}
	stats.LastUpdated = fromNanos(lastUpdated)
	return stats, nil
}

// SaveNamespaceStats overwrites the saved stats
func (r *Repository) SaveNamespaceStats(ctx context.Context, stats *domain.NamespaceStats) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO namespace_stats (namespace_id, total_urls, active_urls, expired_urls, total_clicks, last_updated)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (namespace_id) DO UPDATE SET
			total_urls = excluded.total_urls,
			active_urls = excluded.active_urls,
			expired_urls = excluded.expired_urls,
			total_clicks = excluded.total_clicks,
			last_updated = excluded.last_updated`,
		stats.NamespaceID, stats.TotalURLs, stats.ActiveURLs, stats.ExpiredURLs, stats.TotalClicks,
		toNanos(stats.LastUpdated))
	if err != nil {
		return fmt.Errorf("failed to save namespace stats: %w", err)
	}
	return nil
}

// ApplyNamespaceStatsDelta adds delta to an existing stats row
func (r *Repository) ApplyNamespaceStatsDelta(ctx context.Context, namespaceID string, delta domain.StatsDelta, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE namespace_stats SET
			total_urls = total_urls + ?,
			active_urls = active_urls + ?,
			expired_urls = expired_urls + ?,
			total_clicks = total_clicks + ?,
			last_updated = ?
		WHERE namespace_id = ?`,
		delta.TotalURLs, delta.ActiveURLs, delta.ExpiredURLs, delta.TotalClicks, toNanos(at), namespaceID)
	if err != nil {
		return false, fmt.Errorf("failed to apply namespace stats delta: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to apply namespace stats delta: %w", err)
	}
	return n > 0, nil
}

// ListNamespaces returns the visible namespaces that have records or saved stats
func (r *Repository) ListNamespaces(ctx context.Context) ([]string, error) {
	rows, err := r.reads.QueryContext(ctx, `
		SELECT namespace_id FROM short_urls
		UNION
		SELECT namespace_id FROM namespace_stats
		EXCEPT
		SELECT namespace_id FROM deleted_namespaces
		ORDER BY 1`)
	if err != nil {
		return nil, fmt.Errorf("failed to list namespaces: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var ns string
		if err := rows.Scan(&ns); err != nil {
			return nil, fmt.Errorf("failed to scan namespace: %w", err)
		}
		out = append(out, ns)
	}
	return out, rows.Err()
}

// MarkNamespaceDeleted records the namespace as deleted; its records become invisible
func (r *Repository) MarkNamespaceDeleted(ctx context.Context, namespaceID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO deleted_namespaces (namespace_id, deleted_at) VALUES (?, ?)
		ON CONFLICT (namespace_id) DO NOTHING`, namespaceID, toNanos(at))
	if err != nil {
		return fmt.Errorf("failed to mark namespace deleted: %w", err)
	}
	return nil
}

// ListDeletedNamespaces returns namespaces awaiting purge, oldest deletion first
func (r *Repository) ListDeletedNamespaces(ctx context.Context) ([]string, error) {
	rows, err := r.reads.QueryContext(ctx, `SELECT namespace_id FROM deleted_namespaces ORDER BY deleted_at, namespace_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list deleted namespaces: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var ns string
		if err := rows.Scan(&ns); err != nil {
			return nil, fmt.Errorf("failed to scan namespace: %w", err)
		}
		out = append(out, ns)
	}
	return out, rows.Err()
}

// PurgeNamespaceBatch removes up to limit records of the namespace
func (r *Repository) PurgeNamespaceBatch(ctx context.Context, namespaceID string, limit int) ([]string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT shortcode FROM short_urls WHERE namespace_id = ? ORDER BY shortcode LIMIT ?`,
		namespaceID, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to select namespace batch: %w", err)
	}
	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan shortcode: %w", err)
		}
		codes = append(codes, code)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to select namespace batch: %w", err)
	}

	for _, code := range codes {
		if err := deleteURLRows(ctx, tx, namespaceID, code); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit purge: %w", err)
	}
	return codes, nil
}

// FinishNamespacePurge drops the namespace's remaining click data, stats and deletion mark
func (r *Repository) FinishNamespacePurge(ctx context.Context, namespaceID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{
		"short_urls", "click_events", "click_daily", "click_country_daily", "click_referrer_daily",
		"namespace_click_daily", "namespace_stats", "deleted_namespaces",
	} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE namespace_id = ?`, namespaceID); err != nil {
			return fmt.Errorf("failed to purge %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit purge: %w", err)
	}
	return nil
}
