package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestShortURL_IsExpired(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Second)
	future := now.Add(time.Hour)

	tests := []struct {
		name      string
		expiresAt *time.Time
		expected  bool
	}{
		{name: "no expiry", expiresAt: nil, expected: false},
		{name: "expired", expiresAt: &past, expected: true},
		{name: "exactly now", expiresAt: &now, expected: true},
		{name: "in the future", expiresAt: &future, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &ShortURL{ExpiresAt: tt.expiresAt}
			assert.Equal(t, tt.expected, u.IsExpired(now))
			assert.Equal(t, tt.expected, NewCacheEntry(u).IsExpired(now))
		})
	}
}

func TestShortURL_Clone(t *testing.T) {
	exp := time.Now().UTC()
	u := &ShortURL{ID: uuid.New(), Shortcode: "abc", ExpiresAt: &exp, Tags: []string{"a"}}

	c := u.Clone()
	c.Tags[0] = "b"
	*c.ExpiresAt = exp.Add(time.Hour)

	assert.Equal(t, "a", u.Tags[0])
	assert.Equal(t, exp, *u.ExpiresAt)
}

func TestURLChanges_Apply(t *testing.T) {
	exp := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	base := &ShortURL{
		TargetURL: "https://old.example.com",
		ExpiresAt: &exp,
		IsActive:  true,
		Tags:      []string{"x"},
	}
	updatedAt := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	target := "https://new.example.com"
	inactive := false
	tags := []string{" b ", "a", "b", ""}
	out := URLChanges{
		TargetURL:   &target,
		ClearExpiry: true,
		IsActive:    &inactive,
		Tags:        &tags,
	}.Apply(base, updatedAt)

	assert.Equal(t, target, out.TargetURL)
	assert.Nil(t, out.ExpiresAt)
	assert.False(t, out.IsActive)
	assert.Equal(t, []string{"a", "b"}, out.Tags)
	assert.Equal(t, updatedAt, out.UpdatedAt)

	// original untouched
	assert.Equal(t, "https://old.example.com", base.TargetURL)
	assert.NotNil(t, base.ExpiresAt)
}

func TestURLChanges_IsEmpty(t *testing.T) {
	assert.True(t, URLChanges{}.IsEmpty())

	private := true
	assert.False(t, URLChanges{IsPrivate: &private}.IsEmpty())
	assert.False(t, URLChanges{ClearExpiry: true}.IsEmpty())
}

func TestStatsDelta(t *testing.T) {
	a := StatsDelta{TotalURLs: 1, ActiveURLs: 1}
	b := StatsDelta{TotalURLs: 1, ExpiredURLs: 1}

	assert.Equal(t, StatsDelta{ActiveURLs: 1, ExpiredURLs: -1}, a.Sub(b))
	assert.Equal(t, StatsDelta{TotalURLs: -1, ActiveURLs: -1}, a.Negate())
	assert.True(t, a.Sub(a).IsZero())
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrTimeout))
	assert.True(t, IsRetryable(ErrStoreUnavailable))
	assert.False(t, IsRetryable(ErrNotFound))
	assert.False(t, IsRetryable(ErrShortcodeTaken))
}

func TestMockClock(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	c := NewMockClock(start)
	c.Advance(time.Hour)
	assert.Equal(t, start.Add(time.Hour), c.Now())

	c.Set(start)
	assert.Equal(t, start, c.Now())
}
