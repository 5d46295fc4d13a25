package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEffectiveTTL(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		v := now.Add(d)
		return &v
	}

	tests := []struct {
		name      string
		maxTTL    time.Duration
		expiresAt *time.Time
		expected  time.Duration
	}{
		{"no expiry uses max", time.Hour, nil, time.Hour},
		{"far expiry uses max", time.Hour, at(48 * time.Hour), time.Hour},
		{"near expiry clamps", time.Hour, at(10 * time.Minute), 10 * time.Minute},
		{"exactly now", time.Hour, at(0), 0},
		{"already expired", time.Hour, at(-time.Second), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, EffectiveTTL(tt.maxTTL, tt.expiresAt, now))
		})
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "mktg:abc123", Key("mktg", "abc123"))
}
