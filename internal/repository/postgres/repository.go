// Package postgres implements repository.Store on PostgreSQL. short_urls is
// hash-partitioned on partition_key, so every point query carries the key.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/joshdurbin/ns-shortener/internal/domain"
	"github.com/joshdurbin/ns-shortener/internal/partition"
	"github.com/joshdurbin/ns-shortener/internal/repository"
)

const urlColumns = `id, namespace_id, shortcode, partition_key, target_url, created_by,
	created_at, updated_at, expires_at, click_count, is_private, is_active, tags`

const visible = `NOT EXISTS (SELECT 1 FROM deleted_namespaces d WHERE d.namespace_id = short_urls.namespace_id)`

// Repository implements repository.Store using a pgx connection pool
type Repository struct {
	pool        *pgxpool.Pool
	partitioner partition.Partitioner
	logger      *zap.Logger
}

// Config holds pool settings
type Config struct {
	DSN      string
	MaxConns int32
	MinConns int32
}

// New migrates the schema and opens a connection pool
func New(ctx context.Context, cfg Config, partitioner partition.Partitioner, logger *zap.Logger) (*Repository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := Migrate(cfg.DSN, logger); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	repo := &Repository{pool: pool, partitioner: partitioner, logger: logger}
	if err := repo.pinPartitions(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return repo, nil
}

// partitionCountKey holds the partition count the stored keys were computed with
const partitionCountKey = "meta:partition_count"

// ErrPartitionMismatch is returned by New when the configured partition count
// differs from the one the database was first opened with
var ErrPartitionMismatch = errors.New("partition count mismatch")

// pinPartitions records the partition count on first open and refuses a
// different count afterwards, since stored partition keys cannot be recomputed
func (r *Repository) pinPartitions(ctx context.Context) error {
	configured := int64(r.partitioner.Partitions)
	if configured == 0 {
		configured = partition.DefaultPartitions
	}

	var stored int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO counters (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET key = excluded.key
		RETURNING value`,
		partitionCountKey, configured).Scan(&stored)
	if err != nil {
		return fmt.Errorf("failed to read partition count: %w", err)
	}
	return checkPartitionCount(stored, configured)
}

func checkPartitionCount(stored, configured int64) error {
	if stored != configured {
		return fmt.Errorf("%w: database uses %d partitions, configured %d", ErrPartitionMismatch, stored, configured)
	}
	return nil
}

func (r *Repository) key(namespaceID, shortcode string) int32 {
	return int32(r.partitioner.Of(namespaceID, shortcode))
}

// CreateIfAbsent inserts u unless the shortcode is taken in its namespace
func (r *Repository) CreateIfAbsent(ctx context.Context, u *domain.ShortURL) error {
	u.PartitionKey = r.partitioner.Of(u.NamespaceID, u.Shortcode)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var deleted bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM deleted_namespaces WHERE namespace_id = $1)`, u.NamespaceID).Scan(&deleted); err != nil {
		return fmt.Errorf("failed to check namespace: %w", err)
	}
	if deleted {
		return domain.ErrNotFound
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO short_urls (`+urlColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (partition_key, namespace_id, shortcode) DO NOTHING`,
		u.ID, u.NamespaceID, u.Shortcode, int32(u.PartitionKey), u.TargetURL, u.CreatedBy,
		u.CreatedAt, u.UpdatedAt, u.ExpiresAt, u.ClickCount, u.IsPrivate, u.IsActive, nonNilTags(u.Tags))
	if err != nil {
		return fmt.Errorf("failed to create URL: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrShortcodeTaken
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit URL: %w", err)
	}
	return nil
}

// Get retrieves a record by namespace and shortcode
func (r *Repository) Get(ctx context.Context, namespaceID, shortcode string) (*domain.ShortURL, error) {
	u, err := scanURL(r.pool.QueryRow(ctx, `
		SELECT `+urlColumns+` FROM short_urls
		WHERE partition_key = $1 AND namespace_id = $2 AND shortcode = $3 AND `+visible,
		r.key(namespaceID, shortcode), namespaceID, shortcode))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get URL: %w", err)
	}
	return u, nil
}

// Update applies changes to a record under a row lock
func (r *Repository) Update(ctx context.Context, namespaceID, shortcode string, changes domain.URLChanges, updatedAt time.Time) (*domain.ShortURL, *domain.ShortURL, error) {
	key := r.key(namespaceID, shortcode)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	before, err := scanURL(tx.QueryRow(ctx, `
		SELECT `+urlColumns+` FROM short_urls
		WHERE partition_key = $1 AND namespace_id = $2 AND shortcode = $3 AND `+visible+`
		FOR UPDATE`,
		key, namespaceID, shortcode))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, domain.ErrNotFound
		}
		return nil, nil, fmt.Errorf("failed to get URL: %w", err)
	}

	after := changes.Apply(before, updatedAt.UTC())
	_, err = tx.Exec(ctx, `
		UPDATE short_urls
		SET target_url = $4, expires_at = $5, is_private = $6, is_active = $7, tags = $8, updated_at = $9
		WHERE partition_key = $1 AND namespace_id = $2 AND shortcode = $3`,
		key, namespaceID, shortcode,
		after.TargetURL, after.ExpiresAt, after.IsPrivate, after.IsActive, nonNilTags(after.Tags), after.UpdatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to update URL: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit update: %w", err)
	}
	return before, after, nil
}

// Delete removes a record and its per-URL click data
func (r *Repository) Delete(ctx context.Context, namespaceID, shortcode string) (*domain.ShortURL, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	existing, err := scanURL(tx.QueryRow(ctx, `
		DELETE FROM short_urls
		WHERE partition_key = $1 AND namespace_id = $2 AND shortcode = $3 AND `+visible+`
		RETURNING `+urlColumns,
		r.key(namespaceID, shortcode), namespaceID, shortcode))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to delete URL: %w", err)
	}

	if err := deleteClickRows(ctx, tx, namespaceID, []string{shortcode}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit delete: %w", err)
	}
	return existing, nil
}

// deleteClickRows drops the per-URL click data of shortcodes and takes their
// clicks back out of the namespace daily rollup
func deleteClickRows(ctx context.Context, tx pgx.Tx, namespaceID string, shortcodes []string) error {
	if _, err := tx.Exec(ctx, `
		UPDATE namespace_click_daily n SET clicks = n.clicks - c.total
		FROM (SELECT day, SUM(clicks) AS total FROM click_daily
			WHERE namespace_id = $1 AND shortcode = ANY($2) GROUP BY day) c
		WHERE n.namespace_id = $1 AND n.day = c.day`,
		namespaceID, shortcodes); err != nil {
		return fmt.Errorf("failed to update namespace rollup: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM namespace_click_daily WHERE namespace_id = $1 AND clicks <= 0`, namespaceID); err != nil {
		return fmt.Errorf("failed to update namespace rollup: %w", err)
	}

	for _, table := range []string{"click_events", "click_daily", "click_country_daily", "click_referrer_daily"} {
		if _, err := tx.Exec(ctx,
			`DELETE FROM `+table+` WHERE namespace_id = $1 AND shortcode = ANY($2)`, namespaceID, shortcodes); err != nil {
			return fmt.Errorf("failed to delete from %s: %w", table, err)
		}
	}
	return nil
}

// ListRecent scans a namespace by creation time descending
func (r *Repository) ListRecent(ctx context.Context, namespaceID string, after *domain.Cursor, limit int) ([]*domain.ShortURL, error) {
	if after == nil {
		return r.queryURLs(ctx, `
			SELECT `+urlColumns+` FROM short_urls
			WHERE namespace_id = $1 AND `+visible+`
			ORDER BY created_at DESC, id DESC LIMIT $2`,
			namespaceID, pgLimit(limit))
	}
	return r.queryURLs(ctx, `
		SELECT `+urlColumns+` FROM short_urls
		WHERE namespace_id = $1 AND `+visible+`
		  AND (created_at, id) < ($2, $3)
		ORDER BY created_at DESC, id DESC LIMIT $4`,
		namespaceID, after.CreatedAt, after.ID, pgLimit(limit))
}

// ListByCreator lists a creator's records newest first
func (r *Repository) ListByCreator(ctx context.Context, namespaceID, createdBy string, limit int) ([]*domain.ShortURL, error) {
	return r.queryURLs(ctx, `
		SELECT `+urlColumns+` FROM short_urls
		WHERE namespace_id = $1 AND created_by = $2 AND `+visible+`
		ORDER BY created_at DESC, id DESC LIMIT $3`,
		namespaceID, createdBy, pgLimit(limit))
}

// ListExpiring lists records with expires_at <= t, soonest first
func (r *Repository) ListExpiring(ctx context.Context, namespaceID string, t time.Time, limit int) ([]*domain.ShortURL, error) {
	return r.queryURLs(ctx, `
		SELECT `+urlColumns+` FROM short_urls
		WHERE namespace_id = $1 AND expires_at IS NOT NULL AND expires_at <= $2 AND `+visible+`
		ORDER BY expires_at ASC, id ASC LIMIT $3`,
		namespaceID, t, pgLimit(limit))
}

// ListPrivate lists private records newest first
func (r *Repository) ListPrivate(ctx context.Context, namespaceID string, limit int) ([]*domain.ShortURL, error) {
	return r.queryURLs(ctx, `
		SELECT `+urlColumns+` FROM short_urls
		WHERE namespace_id = $1 AND is_private AND `+visible+`
		ORDER BY created_at DESC, id DESC LIMIT $2`,
		namespaceID, pgLimit(limit))
}

func (r *Repository) queryURLs(ctx context.Context, query string, args ...any) ([]*domain.ShortURL, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list URLs: %w", err)
	}
	defer rows.Close()

	urls := make([]*domain.ShortURL, 0)
	for rows.Next() {
		u, err := scanURL(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan URL: %w", err)
		}
		urls = append(urls, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list URLs: %w", err)
	}
	return urls, nil
}

// GetCounter returns the stored counter value, 0 when absent
func (r *Repository) GetCounter(ctx context.Context, key string) (int64, error) {
	var value int64
	err := r.pool.QueryRow(ctx, `SELECT value FROM counters WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get counter: %w", err)
	}
	return value, nil
}

// SetCounter stores the counter value
func (r *Repository) SetCounter(ctx context.Context, key string, value int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO counters (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		key, value)
	if err != nil {
		return fmt.Errorf("failed to set counter: %w", err)
	}
	return nil
}

// Ping checks the pool
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the connection pool
func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

func scanURL(row pgx.Row) (*domain.ShortURL, error) {
	var (
		u            domain.ShortURL
		partitionKey int32
	)
	err := row.Scan(&u.ID, &u.NamespaceID, &u.Shortcode, &partitionKey, &u.TargetURL, &u.CreatedBy,
		&u.CreatedAt, &u.UpdatedAt, &u.ExpiresAt, &u.ClickCount, &u.IsPrivate, &u.IsActive, &u.Tags)
	if err != nil {
		return nil, err
	}
	u.PartitionKey = uint32(partitionKey)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	if u.ExpiresAt != nil {
		exp := u.ExpiresAt.UTC()
		u.ExpiresAt = &exp
	}
	u.Tags = nonNilTags(u.Tags)
	return &u, nil
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

// pgLimit maps a non-positive limit to LIMIT ALL
func pgLimit(limit int) *int {
	if limit <= 0 {
		return nil
	}
	return &limit
}

// Ensure Repository implements the interface
var _ repository.Store = (*Repository)(nil)
