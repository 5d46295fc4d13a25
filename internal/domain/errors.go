package domain

import (
	"errors"
)

var (
	// ErrNotFound indicates the record or namespace does not exist.
	ErrNotFound = errors.New("short code not found")

	// ErrShortcodeTaken indicates a conditional insert lost to an existing record.
	ErrShortcodeTaken = errors.New("shortcode already taken in namespace")

	// ErrGenerationExhausted indicates every generated candidate collided.
	ErrGenerationExhausted = errors.New("shortcode generation exhausted")

	// ErrInvalidURL indicates the target is not an absolute http(s) URL.
	ErrInvalidURL = errors.New("invalid URL")

	// ErrInvalidShortcode indicates the shortcode violates the format rules.
	ErrInvalidShortcode = errors.New("invalid shortcode format")

	// ErrInvalidRequest indicates malformed input other than URL or shortcode.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrExpired indicates the record exists but is past its expiry.
	ErrExpired = errors.New("short URL has expired")

	// ErrPrivate indicates the record exists but the caller may not view it.
	ErrPrivate = errors.New("short URL is private")

	// ErrForbidden indicates the caller may not perform the operation.
	ErrForbidden = errors.New("operation not permitted")

	// ErrStoreUnavailable indicates a transient durable store failure.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrTimeout indicates the durable store did not answer in time.
	ErrTimeout = errors.New("store timeout")
)

// IsRetryable reports whether err is transient and safe to retry
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrTimeout)
}
