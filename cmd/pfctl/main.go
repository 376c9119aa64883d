package main

import (
	"context"
	"fmt"
	"os"

	"projectflow/config"
	"projectflow/internal/notify"
	"projectflow/internal/repository"
	"projectflow/internal/workflow"
	"projectflow/pkg/db"
	"projectflow/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var Version = "dev"

var (
	configEnv string
	configDir string
	verbose   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "pfctl",
		Short:         "pfctl - operator tool for projectflow",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configEnv, "env", "", "config environment (default $CONFIG_ENV or local)")
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "config", "directory holding base.yaml and the env overlays")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(boardCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(activityCmd)
	rootCmd.AddCommand(outboxCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configEnv, configDir)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	level := "warn"
	if verbose {
		level = "debug"
	}
	return cfg, logger.NewLogger(level), nil
}

// openPostgres connects to the configured database. The caller closes the
// pool.
func openPostgres(ctx context.Context, cfg *config.Config, log *zap.Logger) (*pgxpool.Pool, error) {
	if cfg.Store != config.StorePostgres {
		return nil, fmt.Errorf("store %q has no database to connect to", cfg.Store)
	}
	pool, err := db.NewConnection(ctx, cfg.DB, log)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return pool, nil
}

// controllerFor builds a one-off session for owner against the database.
// Notifications land in a private queue the command can print.
func controllerFor(cfg *config.Config, pool *pgxpool.Pool, owner string, log *zap.Logger) *workflow.Controller {
	store := repository.NewGuarded(repository.NewPostgres(pool, log), cfg.Breaker, log)
	q := notify.NewQueue(
		notify.WithDefaults(cfg.Notify.DefaultDuration, notify.Position(cfg.Notify.DefaultPosition)),
		notify.WithLogger(log),
	)
	return workflow.New(store, q, owner,
		workflow.WithLogger(log),
		workflow.WithUpcomingDays(cfg.Workflow.UpcomingDays),
	)
}
