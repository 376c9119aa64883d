package repository

import (
	"context"
	"fmt"
	"time"

	"projectflow/internal/model"
	"projectflow/pkg/metrics"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Postgres is the Store backed by a pgx pool.
type Postgres struct {
	*ProjectRepository
	*MilestoneRepository
	*TaskRepository
	*ActivityRepository

	db *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool, logger *zap.Logger) *Postgres {
	return &Postgres{
		ProjectRepository:   NewProjectRepository(db, logger),
		MilestoneRepository: NewMilestoneRepository(db, logger),
		TaskRepository:      NewTaskRepository(db, logger),
		ActivityRepository:  NewActivityRepository(db, logger),
		db:                  db,
	}
}

func (p *Postgres) Ping(ctx context.Context) error {
	if err := p.db.Ping(ctx); err != nil {
		return model.Unavailable("", err)
	}
	return nil
}

// observe records the duration of one query.
func observe(operation, table string, start time.Time) {
	metrics.RecordDBQueryDuration(operation, table, time.Since(start))
}

// checkID rejects ids that can never match a UUID primary key, so a typo
// reads as NotFound instead of a driver error.
func checkID(kind model.Kind, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return model.NotFound(kind, id)
	}
	return nil
}

// missOrConflict explains an UPDATE that matched no row: the row is either
// gone or its version moved on.
func missOrConflict(ctx context.Context, db *pgxpool.Pool, table string, kind model.Kind, id string) error {
	var exists bool
	q := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, table)
	if err := db.QueryRow(ctx, q, id).Scan(&exists); err != nil {
		return classify(kind, id, err)
	}
	if !exists {
		return model.NotFound(kind, id)
	}
	return model.Conflict(kind, id)
}
