package shortener

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomGenerator_Format(t *testing.T) {
	g := NewRandomGenerator(9)
	ctx := context.Background()

	for i := 0; i < 200; i++ {
		code, err := g.GenerateShortCode(ctx)
		require.NoError(t, err)
		assert.Len(t, code, 9)
		for _, c := range code {
			assert.True(t, strings.ContainsRune(base62Chars, c), "unexpected %q in %s", c, code)
		}
	}
}

func TestRandomGenerator_Distinct(t *testing.T) {
	g := NewRandomGenerator(7)
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		code, err := g.GenerateShortCode(context.Background())
		require.NoError(t, err)
		assert.False(t, seen[code], "duplicate %s", code)
		seen[code] = true
	}
}

func TestRandomGenerator_LengthFallback(t *testing.T) {
	assert.Equal(t, 7, NewRandomGenerator(0).length)
	assert.Equal(t, 7, NewRandomGenerator(50).length)
	assert.Equal(t, TypeRandom, NewRandomGenerator(7).Type())
}

func TestRandomGenerator_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRandomGenerator(7).GenerateShortCode(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
