package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/joshdurbin/ns-shortener/internal/domain"
)

// RecordClick appends the event and bumps every counter derived from it in one transaction
func (r *Repository) RecordClick(ctx context.Context, e *domain.ClickEvent) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE short_urls SET click_count = click_count + 1
		WHERE partition_key = $1 AND namespace_id = $2 AND shortcode = $3 AND `+visible,
		r.key(e.NamespaceID, e.Shortcode), e.NamespaceID, e.Shortcode)
	if err != nil {
		return fmt.Errorf("failed to increment click count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}

	day := e.Day()
	batch := &pgx.Batch{}
	batch.Queue(`
		INSERT INTO click_events
			(namespace_id, shortcode, clicked_at, sequence, day, ip_address, user_agent, referrer, country, city)
		VALUES ($1, $2, $3, $4, $5::date, $6, $7, $8, $9, $10)`,
		e.NamespaceID, e.Shortcode, e.Timestamp, e.Sequence, day,
		e.IPAddress, e.UserAgent, e.Referrer, e.Country, e.City)
	batch.Queue(`
		INSERT INTO click_daily (namespace_id, shortcode, day, clicks) VALUES ($1, $2, $3::date, 1)
		ON CONFLICT (namespace_id, shortcode, day) DO UPDATE SET clicks = click_daily.clicks + 1`,
		e.NamespaceID, e.Shortcode, day)
	batch.Queue(`
		INSERT INTO click_country_daily (namespace_id, shortcode, day, country, clicks) VALUES ($1, $2, $3::date, $4, 1)
		ON CONFLICT (namespace_id, shortcode, day, country) DO UPDATE SET clicks = click_country_daily.clicks + 1`,
		e.NamespaceID, e.Shortcode, day, e.Country)
	batch.Queue(`
		INSERT INTO click_referrer_daily (namespace_id, shortcode, day, referrer, clicks) VALUES ($1, $2, $3::date, $4, 1)
		ON CONFLICT (namespace_id, shortcode, day, referrer) DO UPDATE SET clicks = click_referrer_daily.clicks + 1`,
		e.NamespaceID, e.Shortcode, day, e.Referrer)
	batch.Queue(`
		INSERT INTO namespace_click_daily (namespace_id, day, clicks) VALUES ($1, $2::date, 1)
		ON CONFLICT (namespace_id, day) DO UPDATE SET clicks = namespace_click_daily.clicks + 1`,
		e.NamespaceID, day)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to write click rollups: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit click: %w", err)
	}
	return nil
}

// DailyClicks returns per-day clicks in ascending day order
func (r *Repository) DailyClicks(ctx context.Context, scope domain.ClickScope, window domain.TimeWindow) ([]domain.DailyCount, error) {
	var (
		query string
		args  []any
	)
	if scope.IsNamespace() {
		query = `SELECT to_char(day, 'YYYY-MM-DD'), clicks FROM namespace_click_daily
			WHERE namespace_id = $1 AND day BETWEEN $2::date AND $3::date ORDER BY day`
		args = []any{scope.NamespaceID, window.StartDay(), window.EndDay()}
	} else {
		query = `SELECT to_char(day, 'YYYY-MM-DD'), clicks FROM click_daily
			WHERE namespace_id = $1 AND shortcode = $2 AND day BETWEEN $3::date AND $4::date ORDER BY day`
		args = []any{scope.NamespaceID, scope.Shortcode, window.StartDay(), window.EndDay()}
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily clicks: %w", err)
	}
	defer rows.Close()

	var out []domain.DailyCount
	for rows.Next() {
		var d domain.DailyCount
		if err := rows.Scan(&d.Day, &d.Clicks); err != nil {
			return nil, fmt.Errorf("failed to scan daily clicks: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// CountryClicks sums clicks per country over the window
func (r *Repository) CountryClicks(ctx context.Context, scope domain.ClickScope, window domain.TimeWindow) (map[string]int64, error) {
	return r.distribution(ctx, "click_country_daily", "country", scope, window)
}

// ReferrerClicks sums clicks per referrer over the window
func (r *Repository) ReferrerClicks(ctx context.Context, scope domain.ClickScope, window domain.TimeWindow) (map[string]int64, error) {
	return r.distribution(ctx, "click_referrer_daily", "referrer", scope, window)
}

func (r *Repository) distribution(ctx context.Context, table, column string, scope domain.ClickScope, window domain.TimeWindow) (map[string]int64, error) {
	query := `SELECT ` + column + `, SUM(clicks)::bigint FROM ` + table + `
		WHERE namespace_id = $1 AND ($2 = '' OR shortcode = $2) AND day BETWEEN $3::date AND $4::date
		GROUP BY ` + column

	rows, err := r.pool.Query(ctx, query, scope.NamespaceID, scope.Shortcode, window.StartDay(), window.EndDay())
	if err != nil {
		return nil, fmt.Errorf("failed to get %s distribution: %w", column, err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var (
			key    string
			clicks int64
		)
		if err := rows.Scan(&key, &clicks); err != nil {
			return nil, fmt.Errorf("failed to scan %s distribution: %w", column, err)
		}
		out[key] = clicks
	}
	return out, rows.Err()
}

// UniqueVisitors counts distinct non-empty IPs among retained events in the window
func (r *Repository) UniqueVisitors(ctx context.Context, scope domain.ClickScope, window domain.TimeWindow) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(DISTINCT ip_address) FROM click_events
		WHERE namespace_id = $1 AND ($2 = '' OR shortcode = $2)
		  AND day BETWEEN $3::date AND $4::date AND ip_address <> ''`,
		scope.NamespaceID, scope.Shortcode, window.StartDay(), window.EndDay()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count unique visitors: %w", err)
	}
	return n, nil
}

// PruneClicks deletes raw events older than before
func (r *Repository) PruneClicks(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM click_events WHERE clicked_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune click events: %w", err)
	}
	return tag.RowsAffected(), nil
}
