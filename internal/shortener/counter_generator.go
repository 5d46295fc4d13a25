package shortener

import (
	"context"
	"math/bits"
	"strings"
)

const (
	// Base62 characters: 0-9, a-z, A-Z (case sensitive)
	base62Chars = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

	// 62^10 still fits in an int64, which the inverse computation needs
	maxCounterLength = 10

	counterKey = "shortcode_counter"

	// permutation constants; the multiplier shares no factor with 2, 31 or 61,
	// the only primes dividing any code space size 61*62^(n-1)
	counterMultiplier = 0x5DEECE66D
	counterOffset     = 0x9E3779B97F4A7C15
)

// CounterGenerator maps a monotonic counter onto fixed-length base62 codes
// through a keyed permutation of the code space, so consecutive counters give
// unrelated-looking codes and distinct counters never give the same code
// until the space wraps.
type CounterGenerator struct {
	counterProvider CounterProvider
	counterKey      string
	length          int
	minVal          uint64 // smallest value with length digits: 62^(length-1)
	space           uint64 // count of length-digit values
	mult            uint64
	inverse         uint64
	offset          uint64
}

// NewCounterGenerator creates a new counter-based generator producing codes of the given length
func NewCounterGenerator(counterProvider CounterProvider, length int) *CounterGenerator {
	if length < MinLength || length > maxCounterLength {
		length = DefaultConfig().Length
	}
	minVal := pow62(length - 1)
	space := pow62(length) - minVal
	mult := counterMultiplier % space

	return &CounterGenerator{
		counterProvider: counterProvider,
		counterKey:      counterKey,
		length:          length,
		minVal:          minVal,
		space:           space,
		mult:            mult,
		inverse:         modInverse(mult, space),
		offset:          counterOffset % space,
	}
}

// GenerateShortCode draws the next counter value and encodes it
func (g *CounterGenerator) GenerateShortCode(ctx context.Context) (string, error) {
	counter, err := g.counterProvider.GetNextCounter(ctx, g.counterKey)
	if err != nil {
		return "", err
	}

	return g.GenerateShortCodeForID(uint64(counter)), nil
}

// GenerateShortCodeForID encodes a specific counter value
func (g *CounterGenerator) GenerateShortCodeForID(id uint64) string {
	permuted := (mulMod(id%g.space, g.mult, g.space) + g.offset) % g.space
	return toBase62(permuted + g.minVal)
}

// CounterForCode inverts GenerateShortCodeForID for counters below the code space size
func (g *CounterGenerator) CounterForCode(code string) (uint64, bool) {
	if len(code) != g.length {
		return 0, false
	}
	v, ok := fromBase62(code)
	if !ok || v < g.minVal {
		return 0, false
	}
	permuted := v - g.minVal
	return mulMod((permuted+g.space-g.offset)%g.space, g.inverse, g.space), true
}

// Type returns the generator type
func (g *CounterGenerator) Type() string {
	return TypeCounter
}

// Close performs cleanup
func (g *CounterGenerator) Close() error {
	if g.counterProvider != nil {
		return g.counterProvider.Close()
	}
	return nil
}

func toBase62(num uint64) string {
	if num == 0 {
		return "0"
	}

	var buf [11]byte
	i := len(buf)
	for num > 0 {
		i--
		buf[i] = base62Chars[num%62]
		num /= 62
	}
	return string(buf[i:])
}

func fromBase62(s string) (uint64, bool) {
	var result uint64
	for _, char := range s {
		digit := strings.IndexRune(base62Chars, char)
		if digit < 0 {
			return 0, false
		}
		hi, lo := bits.Mul64(result, 62)
		if hi != 0 {
			return 0, false
		}
		result = lo + uint64(digit)
	}
	return result, true
}

// mulMod returns a*b mod m without overflow
func mulMod(a, b, m uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	return bits.Rem64(hi, lo, m)
}

// modInverse returns x with a*x = 1 (mod m); a and m must be coprime
func modInverse(a, m uint64) uint64 {
	t, newT := int64(0), int64(1)
	r, newR := int64(m), int64(a)
	for newR != 0 {
		q := r / newR
		t, newT = newT, t-q*newT
		r, newR = newR, r-q*newR
	}
	if t < 0 {
		t += int64(m)
	}
	return uint64(t)
}

func pow62(n int) uint64 {
	v := uint64(1)
	for i := 0; i < n; i++ {
		v *= 62
	}
	return v
}

// Ensure CounterGenerator implements Generator interface
var _ Generator = (*CounterGenerator)(nil)
