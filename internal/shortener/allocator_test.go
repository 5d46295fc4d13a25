package shortener

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshdurbin/ns-shortener/internal/domain"
	"github.com/joshdurbin/ns-shortener/internal/partition"
)

func TestAllocator_SuppliedShortcode(t *testing.T) {
	ins := newMemInserter()
	p := partition.New(64)
	a := NewAllocator(ins, &sequenceGenerator{}, p, 5, nil, nil)
	ctx := context.Background()

	u := &domain.ShortURL{NamespaceID: "mktg", Shortcode: "abc123", TargetURL: "https://example.com"}
	require.NoError(t, a.Allocate(ctx, u))
	assert.Equal(t, p.Of("mktg", "abc123"), u.PartitionKey)

	dup := &domain.ShortURL{NamespaceID: "mktg", Shortcode: "abc123", TargetURL: "https://other.com"}
	err := a.Allocate(ctx, dup)
	assert.ErrorIs(t, err, domain.ErrShortcodeTaken)
	assert.Equal(t, 2, ins.calls, "supplied shortcodes are never retried")

	other := &domain.ShortURL{NamespaceID: "sales", Shortcode: "abc123", TargetURL: "https://other.com"}
	assert.NoError(t, a.Allocate(ctx, other), "uniqueness is per namespace")
}

func TestAllocator_InvalidSuppliedShortcode(t *testing.T) {
	ins := newMemInserter()
	a := NewAllocator(ins, &sequenceGenerator{}, partition.New(0), 5, nil, nil)

	err := a.Allocate(context.Background(), &domain.ShortURL{NamespaceID: "ns", Shortcode: "api"})
	assert.ErrorIs(t, err, domain.ErrInvalidShortcode)
	assert.Zero(t, ins.calls)
}

func TestAllocator_RetriesCollisions(t *testing.T) {
	ins := newMemInserter()
	ctx := context.Background()
	require.NoError(t, ins.CreateIfAbsent(ctx, &domain.ShortURL{NamespaceID: "ns", Shortcode: "taken1"}))
	require.NoError(t, ins.CreateIfAbsent(ctx, &domain.ShortURL{NamespaceID: "ns", Shortcode: "taken2"}))

	gen := &sequenceGenerator{codes: []string{"taken1", "admin", "taken2", "fresh1"}}
	a := NewAllocator(ins, gen, partition.New(0), 5, nil, nil)

	u := &domain.ShortURL{NamespaceID: "ns"}
	require.NoError(t, a.Allocate(ctx, u))
	assert.Equal(t, "fresh1", u.Shortcode)
}

func TestAllocator_Exhausted(t *testing.T) {
	ins := newMemInserter()
	ctx := context.Background()
	require.NoError(t, ins.CreateIfAbsent(ctx, &domain.ShortURL{NamespaceID: "ns", Shortcode: "same1"}))

	gen := &sequenceGenerator{codes: []string{"same1", "same1", "same1", "same1", "same1", "fresh"}}
	a := NewAllocator(ins, gen, partition.New(0), 5, nil, nil)

	u := &domain.ShortURL{NamespaceID: "ns"}
	err := a.Allocate(ctx, u)
	assert.ErrorIs(t, err, domain.ErrGenerationExhausted)
	assert.Empty(t, u.Shortcode)
	assert.Equal(t, 5, gen.next, "the attempt bound is respected")
}

func TestAllocator_StoreErrorStopsLoop(t *testing.T) {
	ins := newMemInserter()
	ins.err = domain.ErrStoreUnavailable
	gen := &sequenceGenerator{codes: []string{"one11", "two22"}}
	a := NewAllocator(ins, gen, partition.New(0), 5, nil, nil)

	err := a.Allocate(context.Background(), &domain.ShortURL{NamespaceID: "ns"})
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.Equal(t, 1, ins.calls)
}

func TestAllocator_GeneratorError(t *testing.T) {
	a := NewAllocator(newMemInserter(), &sequenceGenerator{}, partition.New(0), 5, nil, nil)

	err := a.Allocate(context.Background(), &domain.ShortURL{NamespaceID: "ns"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrGenerationExhausted))
}

func TestAllocator_RandomCandidatesAreDistinct(t *testing.T) {
	ins := newMemInserter()
	a := NewAllocator(ins, NewRandomGenerator(7), partition.New(0), 5, nil, nil)
	ctx := context.Background()

	first := &domain.ShortURL{NamespaceID: "mktg", TargetURL: "https://x.com"}
	second := &domain.ShortURL{NamespaceID: "mktg", TargetURL: "https://x.com"}
	require.NoError(t, a.Allocate(ctx, first))
	require.NoError(t, a.Allocate(ctx, second))
	assert.NotEqual(t, first.Shortcode, second.Shortcode)
}
