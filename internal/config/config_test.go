package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshdurbin/ns-shortener/internal/cache"
	"github.com/joshdurbin/ns-shortener/internal/service"
	"github.com/joshdurbin/ns-shortener/internal/shortener"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, cache.BackendMemory, cfg.Cache.Backend)
	assert.Equal(t, shortener.TypeRandom, cfg.Shortener.Strategy)
	assert.Equal(t, 5, cfg.Shortener.MaxAttempts)
	assert.Equal(t, time.Hour, cfg.Service.CacheTTL)
	assert.Equal(t, 10000, cfg.Analytics.QueueSize)
	assert.IsType(t, service.AllowAll{}, cfg.PermissionSet())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9090"
database:
  driver: postgres
  dsn: postgres://localhost/shortener
cache:
  backend: ristretto
  max-entries: 500
shortener:
  strategy: counter
  length: 8
  partitions: 128
service:
  store-timeout: 500ms
  cache-ttl: 10m
analytics:
  workers: 8
  retention: 720h
permissions:
  mktg:
    admins: [alice]
    viewers: [bob]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "http://localhost:8080", cfg.Server.ServerURL, "unset keys keep defaults")
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "postgres://localhost/shortener", cfg.Database.DSN)
	assert.Equal(t, cache.BackendRistretto, cfg.Cache.Backend)
	assert.Equal(t, 500, cfg.Cache.MaxEntries)
	assert.Equal(t, shortener.TypeCounter, cfg.Shortener.Strategy)
	assert.Equal(t, 8, cfg.Shortener.Length)
	assert.Equal(t, uint32(128), cfg.Shortener.Partitions)
	assert.Equal(t, 500*time.Millisecond, cfg.Service.StoreTimeout)
	assert.Equal(t, 10*time.Minute, cfg.Service.CacheTTL)
	assert.Equal(t, 8, cfg.Analytics.Workers)
	assert.Equal(t, 720*time.Hour, cfg.Analytics.Retention)

	require.Contains(t, cfg.Permissions, "mktg")
	assert.Equal(t, []string{"alice"}, cfg.Permissions["mktg"].Admins)
	assert.IsType(t, &service.StaticPermissions{}, cfg.PermissionSet())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  port: \"9090\"\n")
	t.Setenv("SHORTENER_PORT", "7070")
	t.Setenv("SHORTENER_CACHE_BACKEND", "redis")
	t.Setenv("SHORTENER_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("SHORTENER_CACHE_TTL", "30s")
	t.Setenv("SHORTENER_VERBOSE", "true")
	t.Setenv("SHORTENER_TRUST_PROXY", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, cache.BackendRedis, cfg.Cache.Backend)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Cache.RedisURL)
	assert.Equal(t, 30*time.Second, cfg.Service.CacheTTL)
	assert.True(t, cfg.Logging.Verbose)
	assert.True(t, cfg.Server.TrustProxy)
}

func TestLoad_OverridesWin(t *testing.T) {
	t.Setenv("SHORTENER_PORT", "7070")

	cfg, err := Load("", func(c *Config) { c.Server.Port = "6060" })
	require.NoError(t, err)
	assert.Equal(t, "6060", cfg.Server.Port)
}

func TestLoad_InvalidEnv(t *testing.T) {
	t.Setenv("SHORTENER_QUEUE_SIZE", "lots")

	_, err := Load("")
	assert.ErrorContains(t, err, "SHORTENER_QUEUE_SIZE")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestLoad_MalformedFile(t *testing.T) {
	path := writeConfig(t, "server: [unterminated")
	_, err := Load(path)
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty port", func(c *Config) { c.Server.Port = "" }, "server port cannot be empty"},
		{"empty server URL", func(c *Config) { c.Server.ServerURL = "" }, "server URL cannot be empty"},
		{"empty sqlite path", func(c *Config) { c.Database.Path = "" }, "database path cannot be empty"},
		{"postgres without DSN", func(c *Config) { c.Database.Driver = DriverPostgres }, "DSN is required"},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, "unknown database driver"},
		{"redis without URL", func(c *Config) { c.Cache.Backend = cache.BackendRedis }, "redis URL is required"},
		{"unknown backend", func(c *Config) { c.Cache.Backend = "disk" }, "unknown cache backend"},
		{"zero cache entries", func(c *Config) { c.Cache.MaxEntries = 0 }, "cache max entries must be positive"},
		{"unknown strategy", func(c *Config) { c.Shortener.Strategy = "sequential" }, "unknown generator strategy"},
		{"short codes", func(c *Config) { c.Shortener.Length = 2 }, "code length must be between"},
		{"no partitions", func(c *Config) { c.Shortener.Partitions = 0 }, "partition count must be positive"},
		{"zero cache TTL", func(c *Config) { c.Service.CacheTTL = 0 }, "cache TTL must be positive"},
		{"zero workers", func(c *Config) { c.Analytics.Workers = 0 }, "queue size and workers must be positive"},
		{"zero reconcile interval", func(c *Config) { c.Stats.ReconcileInterval = 0 }, "reconcile interval must be positive"},
		{"negative rate", func(c *Config) { c.RateLimit.RPS = -1 }, "rate limit values cannot be negative"},
		{"bad permission namespace", func(c *Config) {
			c.Permissions = map[string]service.NamespaceACL{"bad ns": {}}
		}, "permissions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	assert.NoError(t, Default().validate())
}
