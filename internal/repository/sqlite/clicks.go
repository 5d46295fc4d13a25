package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/joshdurbin/ns-shortener/internal/domain"
)

// RecordClick appends the event and bumps every counter derived from it in one transaction
func (r *Repository) RecordClick(ctx context.Context, e *domain.ClickEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE short_urls SET click_count = click_count + 1
		WHERE namespace_id = ? AND shortcode = ? AND `+visible,
		e.NamespaceID, e.Shortcode)
	if err != nil {
		return fmt.Errorf("failed to increment click count: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to increment click count: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}

	day := e.Day()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO click_events
			(namespace_id, shortcode, clicked_at, sequence, day, ip_address, user_agent, referrer, country, city)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.NamespaceID, e.Shortcode, toNanos(e.Timestamp), e.Sequence, day,
		e.IPAddress, e.UserAgent, e.Referrer, e.Country, e.City); err != nil {
		return fmt.Errorf("failed to insert click event: %w", err)
	}

	rollups := []struct {
		query string
		args  []any
	}{
		{`INSERT INTO click_daily (namespace_id, shortcode, day, clicks) VALUES (?, ?, ?, 1)
			ON CONFLICT (namespace_id, shortcode, day) DO UPDATE SET clicks = clicks + 1`,
			[]any{e.NamespaceID, e.Shortcode, day}},
		{`INSERT INTO click_country_daily (namespace_id, shortcode, day, country, clicks) VALUES (?, ?, ?, ?, 1)
			ON CONFLICT (namespace_id, shortcode, day, country) DO UPDATE SET clicks = clicks + 1`,
			[]any{e.NamespaceID, e.Shortcode, day, e.Country}},
		{`INSERT INTO click_referrer_daily (namespace_id, shortcode, day, referrer, clicks) VALUES (?, ?, ?, ?, 1)
			ON CONFLICT (namespace_id, shortcode, day, referrer) DO UPDATE SET clicks = clicks + 1`,
			[]any{e.NamespaceID, e.Shortcode, day, e.Referrer}},
		{`INSERT INTO namespace_click_daily (namespace_id, day, clicks) VALUES (?, ?, 1)
			ON CONFLICT (namespace_id, day) DO UPDATE SET clicks = clicks + 1`,
			[]any{e.NamespaceID, day}},
	}
	for _, q := range rollups {
		if _, err := tx.ExecContext(ctx, q.query, q.args...); err != nil {
			return fmt.Errorf("failed to update click rollup: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
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
		query = `SELECT day, clicks FROM namespace_click_daily
			WHERE namespace_id = ? AND day BETWEEN ? AND ? ORDER BY day`
		args = []any{scope.NamespaceID, window.StartDay(), window.EndDay()}
	} else {
		query = `SELECT day, clicks FROM click_daily
			WHERE namespace_id = ? AND shortcode = ? AND day BETWEEN ? AND ? ORDER BY day`
		args = []any{scope.NamespaceID, scope.Shortcode, window.StartDay(), window.EndDay()}
	}

	rows, err := r.reads.QueryContext(ctx, query, args...)
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
	query := `SELECT ` + column + `, SUM(clicks) FROM ` + table + ` WHERE namespace_id = ?`
	args := []any{scope.NamespaceID}
	if !scope.IsNamespace() {
		query += ` AND shortcode = ?`
		args = append(args, scope.Shortcode)
	}
	query += ` AND day BETWEEN ? AND ? GROUP BY ` + column
	args = append(args, window.StartDay(), window.EndDay())

	rows, err := r.reads.QueryContext(ctx, query, args...)
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
	query := `SELECT COUNT(DISTINCT ip_address) FROM click_events WHERE namespace_id = ?`
	args := []any{scope.NamespaceID}
	if !scope.IsNamespace() {
		query += ` AND shortcode = ?`
		args = append(args, scope.Shortcode)
	}
	query += ` AND day BETWEEN ? AND ? AND ip_address <> ''`
	args = append(args, window.StartDay(), window.EndDay())

	var n int64
	if err := r.reads.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count unique visitors: %w", err)
	}
	return n, nil
}

// PruneClicks deletes raw events older than before
func (r *Repository) PruneClicks(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM click_events WHERE clicked_at < ?`, toNanos(before))
	if err != nil {
		return 0, fmt.Errorf("failed to prune click events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to prune click events: %w", err)
	}
	return n, nil
}
