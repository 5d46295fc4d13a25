package shortener

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/joshdurbin/ns-shortener/internal/domain"
	"github.com/joshdurbin/ns-shortener/internal/metrics"
	"github.com/joshdurbin/ns-shortener/internal/partition"
)

// Allocator assigns a namespace-unique shortcode to a record and inserts it.
// Uniqueness comes solely from the store's conditional insert.
type Allocator struct {
	inserter    Inserter
	generator   Generator
	partitioner partition.Partitioner
	maxAttempts int
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewAllocator creates an allocator
func NewAllocator(inserter Inserter, generator Generator, partitioner partition.Partitioner, maxAttempts int, m *metrics.Metrics, logger *zap.Logger) *Allocator {
	if maxAttempts < 1 {
		maxAttempts = DefaultConfig().MaxAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Allocator{
		inserter:    inserter,
		generator:   generator,
		partitioner: partitioner,
		maxAttempts: maxAttempts,
		metrics:     m,
		logger:      logger,
	}
}

// Allocate inserts u. A caller-supplied shortcode is validated and tried once;
// otherwise up to maxAttempts generated candidates are tried.
func (a *Allocator) Allocate(ctx context.Context, u *domain.ShortURL) error {
	if u.Shortcode != "" {
		if err := ValidateShortcode(u.Shortcode); err != nil {
			return err
		}
		u.PartitionKey = a.partitioner.Of(u.NamespaceID, u.Shortcode)
		return a.inserter.CreateIfAbsent(ctx, u)
	}

	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		code, err := a.generator.GenerateShortCode(ctx)
		if err != nil {
			return fmt.Errorf("failed to generate short code: %w", err)
		}
		if err := ValidateShortcode(code); err != nil {
			a.logger.Debug("discarding generated candidate", zap.String("shortcode", code), zap.Error(err))
			continue
		}

		u.Shortcode = code
		u.PartitionKey = a.partitioner.Of(u.NamespaceID, code)
		err = a.inserter.CreateIfAbsent(ctx, u)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrShortcodeTaken) {
			u.Shortcode = ""
			return err
		}

		a.metrics.GeneratorCollision()
		a.logger.Debug("generated shortcode collided",
			zap.String("namespace", u.NamespaceID),
			zap.String("shortcode", code),
			zap.Int("attempt", attempt))
	}

	u.Shortcode = ""
	return fmt.Errorf("%w after %d attempts", domain.ErrGenerationExhausted, a.maxAttempts)
}

// Close closes the underlying generator
func (a *Allocator) Close() error {
	return a.generator.Close()
}
