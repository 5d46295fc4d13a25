package domain

import (
	"errors"
	"time"
)

// CreateURLRequest is the body of a create call
type CreateURLRequest struct {
	URL       string     `json:"url"`
	Shortcode string     `json:"shortcode,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	IsPrivate bool       `json:"is_private,omitempty"`
	Tags      []string   `json:"tags,omitempty"`
}

// Options returns the optional attributes of the request
func (r CreateURLRequest) Options() CreateOptions {
	return CreateOptions{ExpiresAt: r.ExpiresAt, IsPrivate: r.IsPrivate, Tags: r.Tags}
}

// CreateURLResponse is returned for a created short URL
type CreateURLResponse struct {
	NamespaceID string     `json:"namespace_id"`
	ShortCode   string     `json:"short_code"`
	ShortURL    string     `json:"short_url"`
	OriginalURL string     `json:"original_url"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// UpdateURLRequest is the body of a partial update; absent fields are untouched
type UpdateURLRequest struct {
	URL         *string    `json:"url,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	ClearExpiry bool       `json:"clear_expiry,omitempty"`
	IsPrivate   *bool      `json:"is_private,omitempty"`
	IsActive    *bool      `json:"is_active,omitempty"`
	Tags        *[]string  `json:"tags,omitempty"`
}

// Changes converts the request into a URLChanges
func (r UpdateURLRequest) Changes() URLChanges {
	return URLChanges{
		TargetURL:   r.URL,
		ExpiresAt:   r.ExpiresAt,
		ClearExpiry: r.ClearExpiry,
		IsPrivate:   r.IsPrivate,
		IsActive:    r.IsActive,
		Tags:        r.Tags,
	}
}

// BulkCreateRequest is the body of a bulk create
type BulkCreateRequest struct {
	Items []CreateURLRequest `json:"items"`
}

// BulkItemResult is the per-item outcome of a bulk create
type BulkItemResult struct {
	Index     int    `json:"index"`
	ShortCode string `json:"short_code,omitempty"`
	ShortURL  string `json:"short_url,omitempty"`
	Error     string `json:"error,omitempty"`
	Code      string `json:"code,omitempty"`
}

// BulkCreateResponse reports every item of a bulk create in input order
type BulkCreateResponse struct {
	Created int              `json:"created"`
	Failed  int              `json:"failed"`
	Results []BulkItemResult `json:"results"`
}

// ListURLsResponse is a page of records
type ListURLsResponse struct {
	URLs       []*ShortURL `json:"urls"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

// ErrorResponse is the body of every failed API call
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Machine-readable error codes carried in ErrorResponse.Code
const (
	CodeNotFound            = "not_found"
	CodeShortcodeTaken      = "shortcode_taken"
	CodeGenerationExhausted = "generation_exhausted"
	CodeInvalidURL          = "invalid_url"
	CodeInvalidShortcode    = "invalid_shortcode"
	CodeInvalidRequest      = "invalid_request"
	CodeExpired             = "expired"
	CodePrivate             = "private"
	CodeForbidden           = "forbidden"
	CodeStoreUnavailable    = "store_unavailable"
	CodeTimeout             = "timeout"
	CodeRateLimited         = "rate_limited"
	CodeInternal            = "internal"
)

var codeErrors = []struct {
	code string
	err  error
}{
	{CodeNotFound, ErrNotFound},
	{CodeShortcodeTaken, ErrShortcodeTaken},
	{CodeGenerationExhausted, ErrGenerationExhausted},
	{CodeInvalidURL, ErrInvalidURL},
	{CodeInvalidShortcode, ErrInvalidShortcode},
	{CodeInvalidRequest, ErrInvalidRequest},
	{CodeExpired, ErrExpired},
	{CodePrivate, ErrPrivate},
	{CodeForbidden, ErrForbidden},
	{CodeStoreUnavailable, ErrStoreUnavailable},
	{CodeTimeout, ErrTimeout},
}

// ErrorCode returns the code of the first sentinel err wraps
func ErrorCode(err error) string {
	for _, ce := range codeErrors {
		if errors.Is(err, ce.err) {
			return ce.code
		}
	}
	return CodeInternal
}

// ErrorForCode returns the sentinel error for a code, or nil if it has none
func ErrorForCode(code string) error {
	for _, ce := range codeErrors {
		if ce.code == code {
			return ce.err
		}
	}
	return nil
}
