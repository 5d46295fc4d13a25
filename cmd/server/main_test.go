package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/joshdurbin/ns-shortener/internal/config"
	"github.com/joshdurbin/ns-shortener/internal/domain"
	"github.com/joshdurbin/ns-shortener/internal/service"
)

func TestParseExpiry(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{name: "duration", input: "72h", want: now.Add(72 * time.Hour)},
		{name: "RFC3339", input: "2027-01-01T00:00:00Z", want: time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)},
		{name: "garbage", input: "next tuesday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseExpiry(tt.input, now)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(*got))
		})
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestMigrateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "migrate.db")

	out, err := execute(t, "migrate", "--db-path", path)
	require.NoError(t, err)
	assert.Contains(t, out, "SQLite schema at "+path+" is up to date")

	// a second run is a no-op
	_, err = execute(t, "migrate", "--db-path", path)
	assert.NoError(t, err)
}

func TestNewApp_SweepPurgesDeletedNamespace(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "app.db")

	a, err := newApp(ctx, cfg, nil, zap.NewNop())
	require.NoError(t, err)

	admin := domain.Caller{UserID: "admin"}
	for _, code := range []string{"one", "two", "three"} {
		_, err := a.service.CreateShortURL(ctx, service.CreateRequest{
			NamespaceID: "temp", Shortcode: code, TargetURL: "https://example.com/" + code, Caller: admin,
		})
		require.NoError(t, err)
	}
	require.NoError(t, a.service.DeleteNamespace(ctx, admin, "temp"))
	require.NoError(t, a.shutdown(ctx))

	out, err := execute(t, "sweep", "--db-path", cfg.Database.Path)
	require.NoError(t, err)
	assert.Contains(t, out, "Purged 3 records from 1 namespaces")

	// the purged namespace is reusable
	a, err = newApp(ctx, cfg, nil, zap.NewNop())
	require.NoError(t, err)
	defer a.shutdown(ctx)

	_, err = a.service.CreateShortURL(ctx, service.CreateRequest{
		NamespaceID: "temp", Shortcode: "one", TargetURL: "https://example.com/again", Caller: admin,
	})
	assert.NoError(t, err)
}

func TestNewApp_CacheBackends(t *testing.T) {
	ctx := context.Background()

	for _, backend := range []string{"memory", "ristretto"} {
		t.Run(backend, func(t *testing.T) {
			cfg := config.Default()
			cfg.Database.Path = filepath.Join(t.TempDir(), "app.db")
			cfg.Cache.Backend = backend

			a, err := newApp(ctx, cfg, nil, zap.NewNop())
			require.NoError(t, err)
			a.start(ctx)

			created, err := a.service.CreateShortURL(ctx, service.CreateRequest{
				NamespaceID: "mktg", TargetURL: "https://example.com", Caller: domain.Caller{UserID: "admin"},
			})
			require.NoError(t, err)

			target, err := a.service.Resolve(ctx, service.ResolveRequest{NamespaceID: "mktg", Shortcode: created.Shortcode})
			require.NoError(t, err)
			assert.Equal(t, "https://example.com", target)

			assert.Equal(t, backend == "memory", a.memory != nil)
			require.NoError(t, a.shutdown(ctx))
		})
	}
}

func TestNewApp_InvalidGenerator(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "app.db")
	cfg.Shortener.Strategy = "sequential"

	_, err := newApp(context.Background(), cfg, nil, zap.NewNop())
	assert.ErrorContains(t, err, "unknown generator strategy")
}
