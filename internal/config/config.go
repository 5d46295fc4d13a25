package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/joshdurbin/ns-shortener/internal/analytics"
	"github.com/joshdurbin/ns-shortener/internal/cache"
	"github.com/joshdurbin/ns-shortener/internal/partition"
	"github.com/joshdurbin/ns-shortener/internal/service"
	"github.com/joshdurbin/ns-shortener/internal/shortener"
)

// Database drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// EnvPrefix prefixes every environment variable the config reads
const EnvPrefix = "SHORTENER_"

// Config holds the application configuration
type Config struct {
	Server      ServerConfig                    `yaml:"server"`
	Database    DatabaseConfig                  `yaml:"database"`
	Cache       CacheConfig                     `yaml:"cache"`
	Shortener   ShortenerConfig                 `yaml:"shortener"`
	Service     service.Config                  `yaml:"service"`
	Analytics   analytics.Config                `yaml:"analytics"`
	Stats       StatsConfig                     `yaml:"stats"`
	Logging     LoggingConfig                   `yaml:"logging"`
	RateLimit   RateLimitConfig                 `yaml:"rate-limit"`
	Permissions map[string]service.NamespaceACL `yaml:"permissions"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            string        `yaml:"port"`
	ServerURL       string        `yaml:"server-url"`
	ShutdownTimeout time.Duration `yaml:"shutdown-timeout"`

	// TrustProxy takes client addresses from X-Forwarded-For/X-Real-IP;
	// enable only behind a proxy that sets them
	TrustProxy bool `yaml:"trust-proxy"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"`
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"max-conns"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Backend      string        `yaml:"backend"`
	MaxEntries   int           `yaml:"max-entries"`
	ReapInterval time.Duration `yaml:"reap-interval"`
	RedisURL     string        `yaml:"redis-url"`
	RedisPrefix  string        `yaml:"redis-prefix"`
}

// ShortenerConfig holds the generator settings plus the partition count
type ShortenerConfig struct {
	shortener.Config `yaml:",inline"`
	Partitions       uint32 `yaml:"partitions"`
}

// StatsConfig holds namespace stats configuration
type StatsConfig struct {
	ReconcileInterval time.Duration `yaml:"reconcile-interval"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Verbose bool `yaml:"verbose"`
}

// RateLimitConfig bounds mutating requests per client; zero RPS disables it
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			ServerURL:       "http://localhost:8080",
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			Path:   "shortener.db",
		},
		Cache: CacheConfig{
			Backend:      cache.BackendMemory,
			MaxEntries:   10000,
			ReapInterval: time.Minute,
		},
		Shortener: ShortenerConfig{
			Config:     shortener.DefaultConfig(),
			Partitions: partition.DefaultPartitions,
		},
		Service:   service.DefaultConfig(),
		Analytics: analytics.DefaultConfig(),
		Stats: StatsConfig{
			ReconcileInterval: 5 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			RPS:   20,
			Burst: 40,
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at path,
// .env and SHORTENER_* environment variables, then the overrides in order
func Load(path string, overrides ...func(*Config)) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := cfg.loadEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	for _, override := range overrides {
		override(cfg)
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// loadEnv applies SHORTENER_* variables found through lookup
func (c *Config) loadEnv(lookup func(string) (string, bool)) error {
	env := envReader{lookup: lookup}

	env.str("PORT", &c.Server.Port)
	env.str("SERVER_URL", &c.Server.ServerURL)
	env.str("DB_DRIVER", &c.Database.Driver)
	env.str("DB_PATH", &c.Database.Path)
	env.str("DATABASE_URL", &c.Database.DSN)
	env.str("CACHE_BACKEND", &c.Cache.Backend)
	env.integer("CACHE_MAX_ENTRIES", &c.Cache.MaxEntries)
	env.str("REDIS_URL", &c.Cache.RedisURL)
	env.str("GENERATOR", &c.Shortener.Strategy)
	env.integer("CODE_LENGTH", &c.Shortener.Length)
	env.duration("CACHE_TTL", &c.Service.CacheTTL)
	env.duration("STORE_TIMEOUT", &c.Service.StoreTimeout)
	env.integer("QUEUE_SIZE", &c.Analytics.QueueSize)
	env.integer("WORKERS", &c.Analytics.Workers)
	env.str("GEOIP_DB", &c.Analytics.GeoIPDatabase)
	env.boolean("VERBOSE", &c.Logging.Verbose)
	env.boolean("TRUST_PROXY", &c.Server.TrustProxy)
	env.float("RATE_LIMIT_RPS", &c.RateLimit.RPS)
	env.integer("RATE_LIMIT_BURST", &c.RateLimit.Burst)

	return env.err
}

// envReader collects the first parse failure so loadEnv reads as a flat list
type envReader struct {
	lookup func(string) (string, bool)
	err    error
}

func (r *envReader) get(name string) (string, bool) {
	if r.err != nil {
		return "", false
	}
	v, ok := r.lookup(EnvPrefix + name)
	return v, ok && v != ""
}

func (r *envReader) fail(name string, err error) {
	r.err = fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
}

func (r *envReader) str(name string, dst *string) {
	if v, ok := r.get(name); ok {
		*dst = v
	}
}

func (r *envReader) integer(name string, dst *int) {
	if v, ok := r.get(name); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			r.fail(name, err)
			return
		}
		*dst = n
	}
}

func (r *envReader) float(name string, dst *float64) {
	if v, ok := r.get(name); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			r.fail(name, err)
			return
		}
		*dst = f
	}
}

func (r *envReader) boolean(name string, dst *bool) {
	if v, ok := r.get(name); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			r.fail(name, err)
			return
		}
		*dst = b
	}
}

func (r *envReader) duration(name string, dst *time.Duration) {
	if v, ok := r.get(name); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			r.fail(name, err)
			return
		}
		*dst = d
	}
}

// PermissionSet returns the static ACL when one is configured, else AllowAll
func (c *Config) PermissionSet() service.Permissions {
	if len(c.Permissions) == 0 {
		return service.AllowAll{}
	}
	return service.NewStaticPermissions(c.Permissions)
}

// validate validates the configuration values
func (c *Config) validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}

	if c.Server.ServerURL == "" {
		return fmt.Errorf("server URL cannot be empty")
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database path cannot be empty")
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database DSN is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown database driver: %q", c.Database.Driver)
	}

	switch c.Cache.Backend {
	case cache.BackendMemory, cache.BackendRistretto:
	case cache.BackendRedis:
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("redis URL is required for the redis cache backend")
		}
	default:
		return fmt.Errorf("unknown cache backend: %q", c.Cache.Backend)
	}
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache max entries must be positive, got: %d", c.Cache.MaxEntries)
	}

	switch c.Shortener.Strategy {
	case shortener.TypeRandom, shortener.TypeCounter:
	default:
		return fmt.Errorf("unknown generator strategy: %q", c.Shortener.Strategy)
	}
	if c.Shortener.Length < shortener.MinLength || c.Shortener.Length > shortener.MaxLength {
		return fmt.Errorf("code length must be between %d and %d, got: %d",
			shortener.MinLength, shortener.MaxLength, c.Shortener.Length)
	}
	if c.Shortener.Partitions == 0 {
		return fmt.Errorf("partition count must be positive")
	}

	if c.Service.CacheTTL <= 0 {
		return fmt.Errorf("cache TTL must be positive, got: %v", c.Service.CacheTTL)
	}
	if c.Service.StoreTimeout <= 0 {
		return fmt.Errorf("store timeout must be positive, got: %v", c.Service.StoreTimeout)
	}

	if c.Analytics.QueueSize <= 0 || c.Analytics.Workers <= 0 {
		return fmt.Errorf("analytics queue size and workers must be positive")
	}

	if c.Stats.ReconcileInterval <= 0 {
		return fmt.Errorf("stats reconcile interval must be positive, got: %v", c.Stats.ReconcileInterval)
	}

	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate limit values cannot be negative")
	}

	for ns := range c.Permissions {
		if err := service.ValidateNamespace(ns); err != nil {
			return fmt.Errorf("permissions: %w", err)
		}
	}

	return nil
}
