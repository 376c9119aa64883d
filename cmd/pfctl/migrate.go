package main

import (
	"fmt"

	"projectflow/internal/repository"

	"github.com/spf13/cobra"
)

var migrateDryRun bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	Long: `Apply every pending schema migration to the configured database.

Pending migrations run in order inside a single transaction and are recorded
in schema_migrations, so running migrate twice is a no-op.

Examples:
  pfctl migrate
  pfctl migrate --env production --dry-run`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "print the target schema version without connecting")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if migrateDryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "Target schema version: %d\n", repository.SchemaVersion())
		fmt.Fprintln(cmd.OutOrStdout(), "Dry run - no changes made")
		return nil
	}

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx := cmd.Context()
	pool, err := openPostgres(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	version, err := repository.Migrate(ctx, pool, log)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Schema is at version %d\n", version)
	return nil
}
