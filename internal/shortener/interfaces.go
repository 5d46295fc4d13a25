package shortener

import (
	"context"

	"github.com/joshdurbin/ns-shortener/internal/domain"
)

// Generator produces candidate shortcodes
type Generator interface {
	// GenerateShortCode returns the next candidate; uniqueness is not guaranteed
	GenerateShortCode(ctx context.Context) (string, error)

	// Type returns the type identifier of the generator
	Type() string

	// Close performs cleanup when the generator is no longer needed
	Close() error
}

// CounterProvider defines the interface for managing counters used by generators
type CounterProvider interface {
	// GetNextCounter returns the next counter value for a given key
	GetNextCounter(ctx context.Context, key string) (int64, error)

	// SetCounter sets the counter value for a given key
	SetCounter(ctx context.Context, key string, value int64) error

	// Close performs cleanup when the provider is no longer needed
	Close() error
}

// CounterStore persists counter high-water marks
type CounterStore interface {
	// GetCounter returns the stored value for key, or 0 when none exists
	GetCounter(ctx context.Context, key string) (int64, error)

	// SetCounter stores value for key
	SetCounter(ctx context.Context, key string, value int64) error
}

// Inserter performs the conditional create-if-absent write. It must return
// domain.ErrShortcodeTaken when (namespace, shortcode) already exists.
type Inserter interface {
	CreateIfAbsent(ctx context.Context, u *domain.ShortURL) error
}

// Config holds configuration for shortener generators
type Config struct {
	Strategy    string `json:"strategy" yaml:"strategy"`         // random or counter
	Length      int    `json:"length" yaml:"length"`             // Length of generated codes
	MaxAttempts int    `json:"max_attempts" yaml:"max-attempts"` // Candidates tried before giving up
	CounterStep int64  `json:"counter_step" yaml:"counter-step"` // Block size reserved per counter allocation
}

// GeneratorType constants
const (
	TypeRandom  = "random"
	TypeCounter = "counter"
)

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Strategy:    TypeRandom,
		Length:      7,
		MaxAttempts: 5,
		CounterStep: 100,
	}
}
