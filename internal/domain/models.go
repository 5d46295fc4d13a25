package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ShortURL represents a shortened URL scoped to a namespace
type ShortURL struct {
	ID           uuid.UUID  `json:"id"`
	NamespaceID  string     `json:"namespace_id"`
	Shortcode    string     `json:"shortcode"`
	PartitionKey uint32     `json:"partition_key"`
	TargetURL    string     `json:"target_url"`
	CreatedBy    string     `json:"created_by"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	ClickCount   int64      `json:"click_count"`
	IsPrivate    bool       `json:"is_private"`
	IsActive     bool       `json:"is_active"`
	Tags         []string   `json:"tags"`
}

// IsExpired reports whether the record is past its expiry at the given time
func (u *ShortURL) IsExpired(now time.Time) bool {
	return u.ExpiresAt != nil && !u.ExpiresAt.After(now)
}

// Clone returns a deep copy of the record
func (u *ShortURL) Clone() *ShortURL {
	c := *u
	if u.ExpiresAt != nil {
		exp := *u.ExpiresAt
		c.ExpiresAt = &exp
	}
	c.Tags = append([]string(nil), u.Tags...)
	return &c
}

// URLChanges holds a field-level update; nil fields are left untouched
type URLChanges struct {
	TargetURL   *string
	ExpiresAt   *time.Time
	ClearExpiry bool
	IsPrivate   *bool
	IsActive    *bool
	Tags        *[]string
}

// IsEmpty reports whether the change set modifies nothing
func (c URLChanges) IsEmpty() bool {
	return c.TargetURL == nil && c.ExpiresAt == nil && !c.ClearExpiry &&
		c.IsPrivate == nil && c.IsActive == nil && c.Tags == nil
}

// Apply returns a copy of u with the changes applied
func (c URLChanges) Apply(u *ShortURL, updatedAt time.Time) *ShortURL {
	out := u.Clone()
	if c.TargetURL != nil {
		out.TargetURL = *c.TargetURL
	}
	if c.ClearExpiry {
		out.ExpiresAt = nil
	} else if c.ExpiresAt != nil {
		exp := c.ExpiresAt.UTC()
		out.ExpiresAt = &exp
	}
	if c.IsPrivate != nil {
		out.IsPrivate = *c.IsPrivate
	}
	if c.IsActive != nil {
		out.IsActive = *c.IsActive
	}
	if c.Tags != nil {
		out.Tags = NormalizeTags(*c.Tags)
	}
	out.UpdatedAt = updatedAt
	return out
}

// NormalizeTags trims, de-duplicates and sorts a tag set
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Cursor is a keyset position in the (created_at DESC, id DESC) clustering order
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// CursorAfter returns the cursor positioned after the given record
func CursorAfter(u *ShortURL) *Cursor {
	return &Cursor{CreatedAt: u.CreatedAt, ID: u.ID}
}

// CacheEntry is the hot-cache projection of a ShortURL
type CacheEntry struct {
	TargetURL string     `json:"target_url"`
	CreatedBy string     `json:"created_by"`
	IsPrivate bool       `json:"is_private"`
	IsActive  bool       `json:"is_active"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// NewCacheEntry projects a record into a cache entry
func NewCacheEntry(u *ShortURL) *CacheEntry {
	e := &CacheEntry{
		TargetURL: u.TargetURL,
		CreatedBy: u.CreatedBy,
		IsPrivate: u.IsPrivate,
		IsActive:  u.IsActive,
		UpdatedAt: u.UpdatedAt,
	}
	if u.ExpiresAt != nil {
		exp := *u.ExpiresAt
		e.ExpiresAt = &exp
	}
	return e
}

// IsExpired reports whether the cached record is past its expiry
func (e *CacheEntry) IsExpired(now time.Time) bool {
	return e.ExpiresAt != nil && !e.ExpiresAt.After(now)
}

// Clone returns a copy safe from external modification
func (e *CacheEntry) Clone() *CacheEntry {
	c := *e
	if e.ExpiresAt != nil {
		exp := *e.ExpiresAt
		c.ExpiresAt = &exp
	}
	return &c
}

// ClickEvent is a single recorded resolution of a shortcode
type ClickEvent struct {
	NamespaceID string    `json:"namespace_id"`
	Shortcode   string    `json:"shortcode"`
	Timestamp   time.Time `json:"timestamp"`
	Sequence    int64     `json:"sequence"`
	IPAddress   string    `json:"ip_address"`
	UserAgent   string    `json:"user_agent"`
	Referrer    string    `json:"referrer"`
	Country     string    `json:"country"`
	City        string    `json:"city"`
}

// Day returns the UTC calendar day the click falls in (YYYY-MM-DD)
func (e *ClickEvent) Day() string {
	return DayOf(e.Timestamp)
}

// DayOf formats t as a UTC calendar day
func DayOf(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

// RequestMeta is the request metadata attached to a click
type RequestMeta struct {
	IPAddress string
	UserAgent string
	Referrer  string
}

// NamespaceStats holds derived per-namespace totals
type NamespaceStats struct {
	NamespaceID string    `json:"namespace_id"`
	TotalURLs   int64     `json:"total_urls"`
	ActiveURLs  int64     `json:"active_urls"`
	ExpiredURLs int64     `json:"expired_urls"`
	TotalClicks int64     `json:"total_clicks"`
	LastUpdated time.Time `json:"last_updated"`
}

// StatsDelta is an incremental change to NamespaceStats
type StatsDelta struct {
	TotalURLs   int64
	ActiveURLs  int64
	ExpiredURLs int64
	TotalClicks int64
}

// IsZero reports whether the delta changes nothing
func (d StatsDelta) IsZero() bool {
	return d == StatsDelta{}
}

// Sub returns d - o
func (d StatsDelta) Sub(o StatsDelta) StatsDelta {
	return StatsDelta{
		TotalURLs:   d.TotalURLs - o.TotalURLs,
		ActiveURLs:  d.ActiveURLs - o.ActiveURLs,
		ExpiredURLs: d.ExpiredURLs - o.ExpiredURLs,
		TotalClicks: d.TotalClicks - o.TotalClicks,
	}
}

// Negate returns -d
func (d StatsDelta) Negate() StatsDelta {
	return StatsDelta{}.Sub(d)
}

// Caller identifies who is acting on the core; an empty UserID is anonymous
type Caller struct {
	UserID string
}

// IsAnonymous reports whether no identity was supplied
func (c Caller) IsAnonymous() bool {
	return c.UserID == ""
}

// CreateOptions holds the optional attributes of a new record
type CreateOptions struct {
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	IsPrivate bool       `json:"is_private"`
	Tags      []string   `json:"tags,omitempty"`
}
