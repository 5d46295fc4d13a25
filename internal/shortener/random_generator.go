package shortener

import (
	"context"
	"crypto/rand"
	"fmt"
)

// RandomGenerator draws shortcodes uniformly from the base62 alphabet
type RandomGenerator struct {
	length int
}

// NewRandomGenerator creates a random generator producing codes of the given length
func NewRandomGenerator(length int) *RandomGenerator {
	if length < MinLength || length > MaxLength {
		length = DefaultConfig().Length
	}
	return &RandomGenerator{length: length}
}

// GenerateShortCode returns a random candidate
func (g *RandomGenerator) GenerateShortCode(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	out := make([]byte, 0, g.length)
	buf := make([]byte, g.length*2)
	for len(out) < g.length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for _, b := range buf {
			// 248 is the largest multiple of 62 below 256
			if b >= 248 {
				continue
			}
			out = append(out, base62Chars[b%62])
			if len(out) == g.length {
				break
			}
		}
	}
	return string(out), nil
}

// Type returns the generator type
func (g *RandomGenerator) Type() string {
	return TypeRandom
}

// Close performs cleanup
func (g *RandomGenerator) Close() error {
	return nil
}

// Ensure RandomGenerator implements Generator interface
var _ Generator = (*RandomGenerator)(nil)
