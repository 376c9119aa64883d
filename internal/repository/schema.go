package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// migrations are applied in order; the index+1 is the schema version.
// Append only.
var migrations = []string{
	`
	CREATE TABLE IF NOT EXISTS projects (
		id          UUID PRIMARY KEY,
		owner_id    TEXT NOT NULL,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status      TEXT NOT NULL DEFAULT 'active',
		deadline    DATE,
		version     INTEGER NOT NULL DEFAULT 1,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_projects_owner_created ON projects (owner_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS milestones (
		id          UUID PRIMARY KEY,
		project_id  UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		deadline    DATE,
		status      TEXT NOT NULL DEFAULT 'pending',
		version     INTEGER NOT NULL DEFAULT 1,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_milestones_project ON milestones (project_id);

	CREATE TABLE IF NOT EXISTS tasks (
		id           UUID PRIMARY KEY,
		project_id   UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		milestone_id UUID REFERENCES milestones(id) ON DELETE SET NULL,
		assignee_id  TEXT,
		title        TEXT NOT NULL,
		description  TEXT NOT NULL DEFAULT '',
		status       TEXT NOT NULL DEFAULT 'todo',
		priority     TEXT NOT NULL DEFAULT 'medium',
		deadline     DATE,
		completed_at TIMESTAMPTZ,
		version      INTEGER NOT NULL DEFAULT 1,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks (project_id);
	CREATE INDEX IF NOT EXISTS idx_tasks_milestone ON tasks (milestone_id) WHERE milestone_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_tasks_open_deadline ON tasks (deadline) WHERE status <> 'completed';
	`,
	`
	CREATE TABLE IF NOT EXISTS activity_log (
		event_id    UUID PRIMARY KEY,
		kind        TEXT NOT NULL,
		action      TEXT NOT NULL,
		entity_id   TEXT NOT NULL,
		project_id  TEXT NOT NULL DEFAULT '',
		status      TEXT NOT NULL DEFAULT '',
		message     TEXT NOT NULL DEFAULT '',
		trace_id    TEXT NOT NULL DEFAULT '',
		occurred_at TIMESTAMPTZ NOT NULL,
		recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_activity_project ON activity_log (project_id, occurred_at DESC);
	`,
	`
	CREATE TABLE IF NOT EXISTS outbox_events (
		id            BIGSERIAL PRIMARY KEY,
		event_id      TEXT NOT NULL DEFAULT '',
		routing_key   TEXT NOT NULL,
		payload       JSONB NOT NULL,
		status        TEXT NOT NULL DEFAULT 'pending',
		retry_count   INTEGER NOT NULL DEFAULT 0,
		next_retry_at TIMESTAMPTZ,
		last_error    TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox_events (created_at) WHERE status = 'pending';
	`,
}

// SchemaVersion is the version Migrate brings the database to.
func SchemaVersion() int { return len(migrations) }

// Migrate applies every pending migration inside one transaction and
// returns the resulting schema version.
func Migrate(ctx context.Context, db *pgxpool.Pool, logger *zap.Logger) (int, error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS schema_migrations (
            version    INTEGER PRIMARY KEY,
            applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )
    `); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}
	// Serialise concurrent migrators.
	if _, err := tx.Exec(ctx, `LOCK TABLE schema_migrations IN EXCLUSIVE MODE`); err != nil {
		return 0, fmt.Errorf("lock schema_migrations: %w", err)
	}

	var current int
	if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}

	for v := current + 1; v <= len(migrations); v++ {
		logger.Info("Applying migration", zap.Int("version", v))
		if err := applyMigration(ctx, tx, v); err != nil {
			logger.Error("Migration failed", zap.Int("version", v), zap.Error(err))
			return current, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return current, fmt.Errorf("commit migration: %w", err)
	}
	if current == len(migrations) {
		logger.Info("Schema is up to date", zap.Int("version", current))
	} else {
		logger.Info("Schema migrated", zap.Int("from", current), zap.Int("to", len(migrations)))
	}
	return len(migrations), nil
}

func applyMigration(ctx context.Context, tx pgx.Tx, version int) error {
	if _, err := tx.Exec(ctx, migrations[version-1]); err != nil {
		return fmt.Errorf("migration %d: %w", version, err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, version); err != nil {
		return fmt.Errorf("record migration %d: %w", version, err)
	}
	return nil
}
