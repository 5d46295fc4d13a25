package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/joshdurbin/ns-shortener/internal/config"
	"github.com/joshdurbin/ns-shortener/internal/logging"
	"github.com/joshdurbin/ns-shortener/internal/metrics"
	httpTransport "github.com/joshdurbin/ns-shortener/internal/transport/http"
)

var rootCmd = &cobra.Command{
	Use:   "ns-shortener",
	Short: "A namespaced URL shortening service written in Go",
	Long: "A multi-tenant URL shortening service with SQLite or PostgreSQL storage, " +
		"a memory, ristretto or Redis hot cache, and asynchronous click analytics",
	SilenceUsage: true,
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the URL shortening server",
	RunE:  runServer,
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML configuration file")

	// Server command flags
	serverCmd.Flags().StringP("port", "p", "", "Server port")
	serverCmd.Flags().String("server-url", "", "Public base URL used to build short URLs")
	serverCmd.Flags().BoolP("verbose", "v", false, "Enable verbose logging (HTTP request and error bodies)")
	serverCmd.Flags().Bool("trust-proxy", false, "Take client addresses from X-Forwarded-For (only behind a trusted proxy)")
	addStoreFlags(serverCmd)
	serverCmd.Flags().String("cache", "", "Cache backend (memory, ristretto or redis)")
	serverCmd.Flags().String("redis-url", "", "Redis URL for the redis cache backend")
	serverCmd.Flags().String("generator", "", "Shortcode generator (random or counter)")
	serverCmd.Flags().String("geoip-db", "", "Path to a MaxMind GeoLite2/GeoIP2 City database")

	rootCmd.AddCommand(serverCmd, clientCmd, sweepCmd, migrateCmd)
}

func addStoreFlags(cmd *cobra.Command) {
	cmd.Flags().String("db-driver", "", "Database driver (sqlite or postgres)")
	cmd.Flags().String("db-path", "", "SQLite database file path")
	cmd.Flags().String("database-url", "", "PostgreSQL connection string")
}

// loadConfig reads --config and applies the flags the user set on cmd
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	flags := cmd.Flags()

	str := func(name string, dst *string) {
		if flags.Lookup(name) != nil && flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}

	return config.Load(path, func(cfg *config.Config) {
		str("port", &cfg.Server.Port)
		str("server-url", &cfg.Server.ServerURL)
		str("db-driver", &cfg.Database.Driver)
		str("db-path", &cfg.Database.Path)
		str("database-url", &cfg.Database.DSN)
		str("cache", &cfg.Cache.Backend)
		str("redis-url", &cfg.Cache.RedisURL)
		str("generator", &cfg.Shortener.Strategy)
		str("geoip-db", &cfg.Analytics.GeoIPDatabase)
		boolean := func(name string, dst *bool) {
			if flags.Lookup(name) != nil && flags.Changed(name) {
				*dst, _ = flags.GetBool(name)
			}
		}
		boolean("verbose", &cfg.Logging.Verbose)
		boolean("trust-proxy", &cfg.Server.TrustProxy)
	})
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to create configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, metrics.New(registry), logger)
	if err != nil {
		return err
	}
	a.start(ctx)

	server := httpTransport.NewServer(a.service, httpTransport.Options{
		Port:           cfg.Server.Port,
		ServerURL:      cfg.Server.ServerURL,
		Verbose:        cfg.Logging.Verbose,
		RateLimitRPS:   cfg.RateLimit.RPS,
		RateLimitBurst: cfg.RateLimit.Burst,
		TrustProxy:     cfg.Server.TrustProxy,
		Gatherer:       registry,
		Health:         a.store.Ping,
		Logger:         logger,
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()

	var serveErr error
	select {
	case serveErr = <-errChan:
	case <-ctx.Done():
		logger.Info("received shutdown signal, shutting down gracefully")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", zap.Error(err))
	}
	if err := a.shutdown(shutdownCtx); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
	}

	if serveErr != nil {
		return fmt.Errorf("server error: %w", serveErr)
	}
	logger.Info("server stopped")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
