package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/multierr"

	"github.com/joshdurbin/ns-shortener/internal/domain"
	"github.com/joshdurbin/ns-shortener/internal/repository"
)

const urlColumns = `id, namespace_id, shortcode, partition_key, target_url, created_by,
	created_at, updated_at, expires_at, click_count, is_private, is_active, tags`

// records of a namespace marked deleted are invisible until purged
const visible = `NOT EXISTS (SELECT 1 FROM deleted_namespaces d WHERE d.namespace_id = short_urls.namespace_id)`

// readConns bounds the read-only pool; WAL lets these run beside the writer
const readConns = 8

// Repository implements repository.Store using SQLite. Writes go through a
// single connection; lookups, scans and analytics queries use a separate
// read-only pool so they never queue behind a write transaction.
type Repository struct {
	db    *sql.DB
	reads *sql.DB
}

// New opens (creating if needed) the database at databasePath and applies migrations
func New(databasePath string) (*Repository, error) {
	db, err := sql.Open("sqlite3", dsn(databasePath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// a single connection serializes writers
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	repo := &Repository{db: db, reads: db}

	if _, err := repo.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// a caller-supplied URI (shared memory, custom flags) keeps one handle
	if strings.HasPrefix(databasePath, "file:") {
		return repo, nil
	}

	reads, err := sql.Open("sqlite3", readDSN(databasePath))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open read pool: %w", err)
	}
	reads.SetMaxOpenConns(readConns)
	reads.SetMaxIdleConns(readConns)
	if err := reads.Ping(); err != nil {
		reads.Close()
		db.Close()
		return nil, fmt.Errorf("failed to connect read pool: %w", err)
	}
	repo.reads = reads

	return repo, nil
}

func dsn(databasePath string) string {
	if strings.HasPrefix(databasePath, "file:") {
		return databasePath
	}
	return fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on&_txlock=immediate&_synchronous=NORMAL", databasePath)
}

func readDSN(databasePath string) string {
	return fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000&_query_only=true", databasePath)
}

// CreateIfAbsent inserts u unless the shortcode is taken in its namespace
func (r *Repository) CreateIfAbsent(ctx context.Context, u *domain.ShortURL) error {
	tags, err := json.Marshal(nonNilTags(u.Tags))
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var deleted int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM deleted_namespaces WHERE namespace_id = ?`, u.NamespaceID).Scan(&deleted)
	if err != nil {
		return fmt.Errorf("failed to check namespace: %w", err)
	}
	if deleted > 0 {
		return domain.ErrNotFound
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO short_urls (`+urlColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (namespace_id, shortcode) DO NOTHING`,
		u.ID.String(), u.NamespaceID, u.Shortcode, int64(u.PartitionKey), u.TargetURL, u.CreatedBy,
		toNanos(u.CreatedAt), toNanos(u.UpdatedAt), nullableNanos(u.ExpiresAt), u.ClickCount,
		u.IsPrivate, u.IsActive, string(tags))
	if err != nil {
		return fmt.Errorf("failed to create URL: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to create URL: %w", err)
	}
	if n == 0 {
		return domain.ErrShortcodeTaken
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit URL: %w", err)
	}
	return nil
}

// Get retrieves a record by namespace and shortcode
func (r *Repository) Get(ctx context.Context, namespaceID, shortcode string) (*domain.ShortURL, error) {
	row := r.reads.QueryRowContext(ctx, `
		SELECT `+urlColumns+` FROM short_urls
		WHERE namespace_id = ? AND shortcode = ? AND `+visible,
		namespaceID, shortcode)

	u, err := scanURL(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get URL: %w", err)
	}
	return u, nil
}

// Update applies changes to a record
func (r *Repository) Update(ctx context.Context, namespaceID, shortcode string, changes domain.URLChanges, updatedAt time.Time) (*domain.ShortURL, *domain.ShortURL, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	before, err := scanURL(tx.QueryRowContext(ctx, `
		SELECT `+urlColumns+` FROM short_urls
		WHERE namespace_id = ? AND shortcode = ? AND `+visible,
		namespaceID, shortcode))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, domain.ErrNotFound
		}
		return nil, nil, fmt.Errorf("failed to get URL: %w", err)
	}

	after := changes.Apply(before, updatedAt.UTC())
	tags, err := json.Marshal(nonNilTags(after.Tags))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode tags: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE short_urls
		SET target_url = ?, expires_at = ?, is_private = ?, is_active = ?, tags = ?, updated_at = ?
		WHERE namespace_id = ? AND shortcode = ?`,
		after.TargetURL, nullableNanos(after.ExpiresAt), after.IsPrivate, after.IsActive, string(tags),
		toNanos(after.UpdatedAt), namespaceID, shortcode)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to update URL: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit update: %w", err)
	}
	return before, after, nil
}

// Delete removes a record and its per-URL click data
func (r *Repository) Delete(ctx context.Context, namespaceID, shortcode string) (*domain.ShortURL, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := scanURL(tx.QueryRowContext(ctx, `
		SELECT `+urlColumns+` FROM short_urls
		WHERE namespace_id = ? AND shortcode = ? AND `+visible,
		namespaceID, shortcode))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get URL: %w", err)
	}

	if err := deleteURLRows(ctx, tx, namespaceID, shortcode); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit delete: %w", err)
	}
	return existing, nil
}

// deleteURLRows removes the record and its click data inside tx, taking its
// clicks back out of the namespace daily rollup
func deleteURLRows(ctx context.Context, tx *sql.Tx, namespaceID, shortcode string) error {
	if _, err := tx.ExecContext(ctx, `
		UPDATE namespace_click_daily
		SET clicks = clicks - (SELECT c.clicks FROM click_daily c
			WHERE c.namespace_id = namespace_click_daily.namespace_id
			  AND c.shortcode = ? AND c.day = namespace_click_daily.day)
		WHERE namespace_id = ?
		  AND day IN (SELECT day FROM click_daily WHERE namespace_id = ? AND shortcode = ?)`,
		shortcode, namespaceID, namespaceID, shortcode); err != nil {
		return fmt.Errorf("failed to update namespace rollup: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM namespace_click_daily WHERE namespace_id = ? AND clicks <= 0`, namespaceID); err != nil {
		return fmt.Errorf("failed to update namespace rollup: %w", err)
	}

	for _, table := range []string{"short_urls", "click_events", "click_daily", "click_country_daily", "click_referrer_daily"} {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE namespace_id = ? AND shortcode = ?`, namespaceID, shortcode); err != nil {
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
			WHERE namespace_id = ? AND `+visible+`
			ORDER BY created_at DESC, id DESC LIMIT ?`,
			namespaceID, sqlLimit(limit))
	}

	createdAt := toNanos(after.CreatedAt)
	return r.queryURLs(ctx, `
		SELECT `+urlColumns+` FROM short_urls
		WHERE namespace_id = ? AND `+visible+`
		  AND (created_at < ? OR (created_at = ? AND id < ?))
		ORDER BY created_at DESC, id DESC LIMIT ?`,
		namespaceID, createdAt, createdAt, after.ID.String(), sqlLimit(limit))
}

// ListByCreator lists a creator's records newest first
func (r *Repository) ListByCreator(ctx context.Context, namespaceID, createdBy string, limit int) ([]*domain.ShortURL, error) {
	return r.queryURLs(ctx, `
		SELECT `+urlColumns+` FROM short_urls
		WHERE namespace_id = ? AND created_by = ? AND `+visible+`
		ORDER BY created_at DESC, id DESC LIMIT ?`,
		namespaceID, createdBy, sqlLimit(limit))
}

// ListExpiring lists records with expires_at <= t, soonest first
func (r *Repository) ListExpiring(ctx context.Context, namespaceID string, t time.Time, limit int) ([]*domain.ShortURL, error) {
	return r.queryURLs(ctx, `
		SELECT `+urlColumns+` FROM short_urls
		WHERE namespace_id = ? AND expires_at IS NOT NULL AND expires_at <= ? AND `+visible+`
		ORDER BY expires_at ASC, id ASC LIMIT ?`,
		namespaceID, toNanos(t), sqlLimit(limit))
}

// ListPrivate lists private records newest first
func (r *Repository) ListPrivate(ctx context.Context, namespaceID string, limit int) ([]*domain.ShortURL, error) {
	return r.queryURLs(ctx, `
		SELECT `+urlColumns+` FROM short_urls
		WHERE namespace_id = ? AND is_private = 1 AND `+visible+`
		ORDER BY created_at DESC, id DESC LIMIT ?`,
		namespaceID, sqlLimit(limit))
}

func (r *Repository) queryURLs(ctx context.Context, query string, args ...any) ([]*domain.ShortURL, error) {
	rows, err := r.reads.QueryContext(ctx, query, args...)
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
	err := r.db.QueryRowContext(ctx, `SELECT value FROM counters WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get counter: %w", err)
	}
	return value, nil
}

// SetCounter stores the counter value
func (r *Repository) SetCounter(ctx context.Context, key string, value int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO counters (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, toNanos(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to set counter: %w", err)
	}
	return nil
}

// Ping checks both database handles
func (r *Repository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return err
	}
	return r.reads.PingContext(ctx)
}

// Close closes the repository connections
func (r *Repository) Close() error {
	if r.reads == r.db {
		return r.db.Close()
	}
	return multierr.Combine(r.reads.Close(), r.db.Close())
}

type scanner interface {
	Scan(dest ...any) error
}

func scanURL(s scanner) (*domain.ShortURL, error) {
	var (
		u            domain.ShortURL
		id           string
		partitionKey int64
		createdAt    int64
		updatedAt    int64
		expiresAt    sql.NullInt64
		tags         string
	)
	err := s.Scan(&id, &u.NamespaceID, &u.Shortcode, &partitionKey, &u.TargetURL, &u.CreatedBy,
		&createdAt, &updatedAt, &expiresAt, &u.ClickCount, &u.IsPrivate, &u.IsActive, &tags)
	if err != nil {
		return nil, err
	}

	if u.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("failed to parse id %q: %w", id, err)
	}
	if err := json.Unmarshal([]byte(tags), &u.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	u.Tags = nonNilTags(u.Tags)
	u.PartitionKey = uint32(partitionKey)
	u.CreatedAt = fromNanos(createdAt)
	u.UpdatedAt = fromNanos(updatedAt)
	if expiresAt.Valid {
		exp := fromNanos(expiresAt.Int64)
		u.ExpiresAt = &exp
	}
	return &u, nil
}

func toNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func nullableNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toNanos(*t), Valid: true}
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

// sqlLimit maps a non-positive limit to SQLite's "no limit"
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

// Ensure Repository implements the interface
var _ repository.Store = (*Repository)(nil)
