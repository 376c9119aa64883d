package repository

import (
	"context"
	"time"

	"projectflow/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ActivityStore keeps the workflow event log written by the worker.
type ActivityStore interface {
	// RecordActivity stores a; recording the same EventID twice is a no-op
	// and reports false.
	RecordActivity(ctx context.Context, a model.Activity) (bool, error)
	ListActivity(ctx context.Context, projectID string, limit int) ([]model.Activity, error)
}

type ActivityRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewActivityRepository(db *pgxpool.Pool, logger *zap.Logger) *ActivityRepository {
	return &ActivityRepository{db: db, logger: logger}
}

func (r *ActivityRepository) RecordActivity(ctx context.Context, a model.Activity) (bool, error) {
	r.logger.Debug("Recording activity",
		zap.String("event_id", a.EventID),
		zap.String("kind", string(a.Kind)),
		zap.String("action", a.Action),
	)
	query := `
        INSERT INTO activity_log (event_id, kind, action, entity_id, project_id, status, message, trace_id, occurred_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (event_id) DO NOTHING
    `
	defer observe("insert", "activity_log", time.Now())
	result, err := r.db.Exec(ctx, query,
		a.EventID,
		string(a.Kind),
		a.Action,
		a.EntityID,
		a.ProjectID,
		a.Status,
		a.Message,
		a.TraceID,
		a.OccurredAt,
	)
	if err != nil {
		r.logger.Error("Failed to record activity", zap.Error(err), zap.String("event_id", a.EventID))
		return false, err
	}
	return result.RowsAffected() == 1, nil
}

func (r *ActivityRepository) ListActivity(ctx context.Context, projectID string, limit int) ([]model.Activity, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
        SELECT event_id::text, kind, action, entity_id, project_id, status, message, trace_id, occurred_at, recorded_at
        FROM activity_log
        WHERE project_id = $1
        ORDER BY occurred_at DESC
        LIMIT $2
    `
	defer observe("select", "activity_log", time.Now())
	rows, err := r.db.Query(ctx, query, projectID, limit)
	if err != nil {
		r.logger.Error("Failed to list activity", zap.Error(err), zap.String("project_id", projectID))
		return nil, classify("", "", err)
	}
	defer rows.Close()

	out := []model.Activity{}
	for rows.Next() {
		var a model.Activity
		if err := rows.Scan(
			&a.EventID,
			&a.Kind,
			&a.Action,
			&a.EntityID,
			&a.ProjectID,
			&a.Status,
			&a.Message,
			&a.TraceID,
			&a.OccurredAt,
			&a.RecordedAt,
		); err != nil {
			return nil, classify("", "", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
