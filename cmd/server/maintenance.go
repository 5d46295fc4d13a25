package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/joshdurbin/ns-shortener/internal/config"
	"github.com/joshdurbin/ns-shortener/internal/logging"
	"github.com/joshdurbin/ns-shortener/internal/repository/postgres"
	"github.com/joshdurbin/ns-shortener/internal/repository/sqlite"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Purge deleted namespaces and reconcile namespace statistics once",
	Args:  cobra.NoArgs,
	RunE:  runSweep,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func init() {
	addStoreFlags(sweepCmd)
	addStoreFlags(migrateCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to create configuration: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, nil, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Error("error during shutdown", zap.Error(err))
		}
	}()

	result, err := a.service.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}
	reconciled, err := a.stats.Reconcile(ctx)
	if err != nil {
		return fmt.Errorf("reconcile failed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Purged %d records from %d namespaces\n", result.Records, result.Namespaces)
	fmt.Fprintf(cmd.OutOrStdout(), "Reconciled %d namespaces\n", reconciled)
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to create configuration: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Database.Driver == config.DriverPostgres {
		if err := postgres.Migrate(cfg.Database.DSN, logger); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "PostgreSQL schema is up to date")
		return nil
	}

	// sqlite.New applies pending migrations as it opens
	repo, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := repo.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "SQLite schema at %s is up to date\n", cfg.Database.Path)
	return nil
}
