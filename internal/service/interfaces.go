package service

import (
	"context"
	"time"

	"github.com/joshdurbin/ns-shortener/internal/domain"
)

// URLService defines the namespaced short URL operations
type URLService interface {
	// CreateShortURL creates a short URL, generating the shortcode when none is supplied
	CreateShortURL(ctx context.Context, req CreateRequest) (*domain.ShortURL, error)

	// BulkCreate creates every item independently; results follow input order
	BulkCreate(ctx context.Context, req BulkRequest) ([]domain.BulkResult, error)

	// Resolve returns the target URL and records a click without blocking
	Resolve(ctx context.Context, req ResolveRequest) (string, error)

	// GetShortURL retrieves a record for management
	GetShortURL(ctx context.Context, caller domain.Caller, namespaceID, shortcode string) (*domain.ShortURL, error)

	// ListShortURLs pages through a namespace newest first
	ListShortURLs(ctx context.Context, caller domain.Caller, namespaceID string, opts ListOptions) (*ListPage, error)

	// ListByCreator lists the records created by a user
	ListByCreator(ctx context.Context, caller domain.Caller, namespaceID, createdBy string, limit int) ([]*domain.ShortURL, error)

	// ListExpired lists records already past their expiry
	ListExpired(ctx context.Context, caller domain.Caller, namespaceID string, limit int) ([]*domain.ShortURL, error)

	// ListPrivate lists private records
	ListPrivate(ctx context.Context, caller domain.Caller, namespaceID string, limit int) ([]*domain.ShortURL, error)

	// UpdateShortURL applies field-level changes and invalidates the cached entry
	UpdateShortURL(ctx context.Context, caller domain.Caller, namespaceID, shortcode string, changes domain.URLChanges) (*domain.ShortURL, error)

	// DeleteShortURL removes a record and invalidates the cached entry
	DeleteShortURL(ctx context.Context, caller domain.Caller, namespaceID, shortcode string) error

	// DeleteNamespace hides a namespace at once and leaves the purge to the sweeper
	DeleteNamespace(ctx context.Context, caller domain.Caller, namespaceID string) error

	// GetURLAnalytics reports on one short URL over a window
	GetURLAnalytics(ctx context.Context, caller domain.Caller, namespaceID, shortcode, window string) (*domain.ClickReport, error)

	// GetNamespaceAnalytics reports on a whole namespace over a window
	GetNamespaceAnalytics(ctx context.Context, caller domain.Caller, namespaceID, window string) (*domain.ClickReport, error)

	// GetNamespaceStats returns the namespace totals
	GetNamespaceStats(ctx context.Context, caller domain.Caller, namespaceID string) (*domain.NamespaceStats, error)

	// Sweep purges deleted namespaces once
	Sweep(ctx context.Context) (SweepResult, error)

	// StartSweeper runs Sweep on the given interval
	StartSweeper(ctx context.Context, interval time.Duration)

	// StopSweeper stops the background sweeper
	StopSweeper()

	// Close closes the service and its dependencies
	Close() error
}

// Permissions is the external authorization collaborator
type Permissions interface {
	CanView(ctx context.Context, caller domain.Caller, namespaceID string) (bool, error)
	CanUpdate(ctx context.Context, caller domain.Caller, namespaceID string) (bool, error)
	CanAdmin(ctx context.Context, caller domain.Caller, namespaceID string) (bool, error)
	NamespaceExists(ctx context.Context, namespaceID string) (bool, error)
}

// ClickRecorder accepts click events from successful resolutions
type ClickRecorder interface {
	// RecordClick must not block; it reports whether the event was accepted
	RecordClick(namespaceID, shortcode string, meta domain.RequestMeta) bool
}

// AnalyticsReporter builds click reports
type AnalyticsReporter interface {
	URLAnalytics(ctx context.Context, namespaceID, shortcode string, window domain.TimeWindow) (*domain.ClickReport, error)
	NamespaceAnalytics(ctx context.Context, namespaceID string, window domain.TimeWindow) (*domain.ClickReport, error)
}

// StatsKeeper maintains namespace stats
type StatsKeeper interface {
	Apply(ctx context.Context, namespaceID string, delta domain.StatsDelta) error
	Get(ctx context.Context, namespaceID string) (*domain.NamespaceStats, error)
}

// CreateRequest describes a single create
type CreateRequest struct {
	NamespaceID string
	Shortcode   string
	TargetURL   string
	Caller      domain.Caller
	Options     domain.CreateOptions
}

// BulkEntry is one raw bulk input
type BulkEntry struct {
	Shortcode string               `json:"shortcode,omitempty"`
	TargetURL string               `json:"target_url"`
	Options   domain.CreateOptions `json:"options"`
}

// BulkRequest describes a bulk create
type BulkRequest struct {
	NamespaceID string
	Caller      domain.Caller
	Items       []BulkEntry
}

// ResolveRequest describes a resolution on the hot path
type ResolveRequest struct {
	NamespaceID string
	Shortcode   string
	Caller      domain.Caller
	Meta        domain.RequestMeta
}

// ListOptions selects a page of a namespace scan
type ListOptions struct {
	After *domain.Cursor
	Limit int
}

// ListPage is a page of records; NextCursor is nil on the last page
type ListPage struct {
	URLs       []*domain.ShortURL
	NextCursor *domain.Cursor
}

// SweepResult summarizes a namespace purge pass
type SweepResult struct {
	Namespaces int
	Records    int
}
