package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshdurbin/ns-shortener/internal/domain"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"valid HTTP URL", "http://example.com", false},
		{"valid HTTPS URL", "https://example.com/path?query=value", false},
		{"empty URL", "", true},
		{"invalid URL", "not-a-url", true},
		{"FTP scheme", "ftp://example.com", true},
		{"javascript scheme", "javascript:alert(1)", true},
		{"missing host", "https:///path", true},
		{"too long", "https://example.com/" + strings.Repeat("a", 2048), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidURL)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateNamespace(t *testing.T) {
	tests := []struct {
		namespace string
		wantErr   bool
	}{
		{"mktg", false},
		{"team_a-2", false},
		{"", true},
		{"has space", true},
		{"a/b", true},
		{strings.Repeat("n", 65), true},
	}

	for _, tt := range tests {
		t.Run(tt.namespace, func(t *testing.T) {
			err := ValidateNamespace(tt.namespace)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidRequest)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateChanges(t *testing.T) {
	bad := "nope"
	tooMany := make([]string, 21)
	for i := range tooMany {
		tooMany[i] = strings.Repeat("t", i+1)
	}

	assert.ErrorIs(t, validateChanges(domain.URLChanges{}), domain.ErrInvalidRequest)
	assert.ErrorIs(t, validateChanges(domain.URLChanges{TargetURL: &bad}), domain.ErrInvalidURL)
	assert.ErrorIs(t, validateChanges(domain.URLChanges{Tags: &tooMany}), domain.ErrInvalidRequest)

	active := true
	assert.NoError(t, validateChanges(domain.URLChanges{IsActive: &active}))
}

func TestCursor_RoundTrip(t *testing.T) {
	c := &domain.Cursor{
		CreatedAt: time.Date(2026, 6, 15, 12, 0, 0, 123456789, time.UTC),
		ID:        uuid.New(),
	}

	token := EncodeCursor(c)
	assert.NotContains(t, token, "=")

	decoded, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.True(t, c.CreatedAt.Equal(decoded.CreatedAt))
	assert.Equal(t, c.ID, decoded.ID)

	assert.Empty(t, EncodeCursor(nil))
	empty, err := DecodeCursor("")
	assert.NoError(t, err)
	assert.Nil(t, empty)
}

func TestDecodeCursor_Malformed(t *testing.T) {
	for _, token := range []string{"!!!", "bm9kb3Q", "YWJjLmRlZg"} {
		_, err := DecodeCursor(token)
		assert.ErrorIs(t, err, domain.ErrInvalidRequest, token)
	}
}

func TestStaticPermissions(t *testing.T) {
	ctx := context.Background()
	perms := NewStaticPermissions(map[string]NamespaceACL{
		"mktg": {Admins: []string{"alice"}, Editors: []string{"bob"}, Viewers: []string{"carol"}},
	})

	tests := []struct {
		caller                   domain.Caller
		view, update, administer bool
	}{
		{alice, true, true, true},
		{bob, true, true, false},
		{carol, true, false, false},
		{domain.Caller{UserID: "dave"}, false, false, false},
		{anon, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.caller.UserID, func(t *testing.T) {
			view, _ := perms.CanView(ctx, tt.caller, "mktg")
			update, _ := perms.CanUpdate(ctx, tt.caller, "mktg")
			administer, _ := perms.CanAdmin(ctx, tt.caller, "mktg")
			assert.Equal(t, tt.view, view)
			assert.Equal(t, tt.update, update)
			assert.Equal(t, tt.administer, administer)
		})
	}

	exists, _ := perms.NamespaceExists(ctx, "mktg")
	assert.True(t, exists)
	exists, _ = perms.NamespaceExists(ctx, "other")
	assert.False(t, exists)
}

func TestAllowAll(t *testing.T) {
	ctx := context.Background()
	var perms AllowAll

	ok, _ := perms.CanAdmin(ctx, alice, "anything")
	assert.True(t, ok)
	ok, _ = perms.CanView(ctx, anon, "anything")
	assert.False(t, ok)
	ok, _ = perms.NamespaceExists(ctx, "anything")
	assert.True(t, ok)
}
