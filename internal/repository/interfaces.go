package repository

import (
	"context"
	"time"

	"github.com/joshdurbin/ns-shortener/internal/domain"
)

// URLStore defines the short URL record operations
type URLStore interface {
	// CreateIfAbsent inserts u unless (namespace, shortcode) exists, in which
	// case it returns domain.ErrShortcodeTaken
	CreateIfAbsent(ctx context.Context, u *domain.ShortURL) error

	// Get retrieves a record; expiry is not evaluated
	Get(ctx context.Context, namespaceID, shortcode string) (*domain.ShortURL, error)

	// Update applies field-level changes and returns the record before and after
	Update(ctx context.Context, namespaceID, shortcode string, changes domain.URLChanges, updatedAt time.Time) (before, after *domain.ShortURL, err error)

	// Delete removes a record with its click data and returns what was removed
	Delete(ctx context.Context, namespaceID, shortcode string) (*domain.ShortURL, error)

	// ListRecent scans a namespace newest first, starting after the cursor when set
	ListRecent(ctx context.Context, namespaceID string, after *domain.Cursor, limit int) ([]*domain.ShortURL, error)

	// ListByCreator lists a creator's records newest first
	ListByCreator(ctx context.Context, namespaceID, createdBy string, limit int) ([]*domain.ShortURL, error)

	// ListExpiring lists records whose expiry is at or before t
	ListExpiring(ctx context.Context, namespaceID string, t time.Time, limit int) ([]*domain.ShortURL, error)

	// ListPrivate lists private records newest first
	ListPrivate(ctx context.Context, namespaceID string, limit int) ([]*domain.ShortURL, error)
}

// ClickStore defines click event persistence and rollup queries
type ClickStore interface {
	// RecordClick appends the event, increments the record's click_count and
	// updates the daily, country, referrer and namespace rollups atomically.
	// It returns domain.ErrNotFound when the record no longer exists.
	RecordClick(ctx context.Context, e *domain.ClickEvent) error

	// DailyClicks returns the non-zero days of the window in ascending order
	DailyClicks(ctx context.Context, scope domain.ClickScope, window domain.TimeWindow) ([]domain.DailyCount, error)

	// CountryClicks returns clicks per country over the window
	CountryClicks(ctx context.Context, scope domain.ClickScope, window domain.TimeWindow) (map[string]int64, error)

	// ReferrerClicks returns clicks per referrer over the window
	ReferrerClicks(ctx context.Context, scope domain.ClickScope, window domain.TimeWindow) (map[string]int64, error)

	// UniqueVisitors counts distinct IP addresses among retained raw events
	UniqueVisitors(ctx context.Context, scope domain.ClickScope, window domain.TimeWindow) (int64, error)

	// PruneClicks removes raw events older than before; rollups are kept
	PruneClicks(ctx context.Context, before time.Time) (int64, error)
}

// StatsStore defines NamespaceStats persistence
type StatsStore interface {
	// ComputeNamespaceStats derives the stats from the records, classifying expiry at now
	ComputeNamespaceStats(ctx context.Context, namespaceID string, now time.Time) (*domain.NamespaceStats, error)

	// GetNamespaceStats returns the saved stats or domain.ErrNotFound
	GetNamespaceStats(ctx context.Context, namespaceID string) (*domain.NamespaceStats, error)

	// SaveNamespaceStats overwrites the saved stats
	SaveNamespaceStats(ctx context.Context, stats *domain.NamespaceStats) error

	// ApplyNamespaceStatsDelta adds delta to the saved stats; applied is false when no row exists
	ApplyNamespaceStatsDelta(ctx context.Context, namespaceID string, delta domain.StatsDelta, at time.Time) (applied bool, err error)

	// ListNamespaces returns every visible namespace with records or saved stats
	ListNamespaces(ctx context.Context) ([]string, error)
}

// NamespaceStore defines namespace deletion
type NamespaceStore interface {
	// MarkNamespaceDeleted hides every record of the namespace immediately
	MarkNamespaceDeleted(ctx context.Context, namespaceID string, at time.Time) error

	// ListDeletedNamespaces returns namespaces awaiting purge
	ListDeletedNamespaces(ctx context.Context) ([]string, error)

	// PurgeNamespaceBatch removes up to limit records of a deleted namespace and returns their shortcodes
	PurgeNamespaceBatch(ctx context.Context, namespaceID string, limit int) ([]string, error)

	// FinishNamespacePurge removes the remaining click data, stats and the deletion mark
	FinishNamespacePurge(ctx context.Context, namespaceID string) error
}

// CounterStore persists generator counters
type CounterStore interface {
	// GetCounter returns the stored value, or 0 when none exists
	GetCounter(ctx context.Context, key string) (int64, error)

	// SetCounter stores the value for key
	SetCounter(ctx context.Context, key string, value int64) error
}

// Store is the durable store used by the service
type Store interface {
	URLStore
	ClickStore
	StatsStore
	NamespaceStore
	CounterStore

	// Ping checks connectivity
	Ping(ctx context.Context) error

	// Close closes the repository connection
	Close() error
}
