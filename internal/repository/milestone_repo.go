package repository

import (
	"context"
	"fmt"
	"time"

	"projectflow/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const milestoneColumns = `id::text, project_id::text, name, description, deadline, status, version, created_at, updated_at`

type MilestoneRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewMilestoneRepository(db *pgxpool.Pool, logger *zap.Logger) *MilestoneRepository {
	return &MilestoneRepository{
		db:     db,
		logger: logger,
	}
}

func scanMilestone(row pgx.Row) (model.Milestone, error) {
	var m model.Milestone
	err := row.Scan(
		&m.ID,
		&m.ProjectID,
		&m.Name,
		&m.Description,
		&m.Deadline,
		&m.Status,
		&m.Version,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	return m, err
}

func (r *MilestoneRepository) ListMilestones(ctx context.Context, q model.MilestoneQuery) ([]model.Milestone, error) {
	milestones := []model.Milestone{}
	if q.Priority != "" {
		return milestones, nil
	}
	var w where
	if q.ProjectID != "" {
		if checkID(model.KindProject, q.ProjectID) != nil {
			return milestones, nil
		}
		w.add("project_id = ?", q.ProjectID)
	}
	w.filter(q.Filter, "name")
	query := fmt.Sprintf(`SELECT %s FROM milestones %s %s`, milestoneColumns, w.String(), orderBy(q.Sort, "name"))

	defer observe("select", "milestones", time.Now())
	rows, err := r.db.Query(ctx, query, w.args...)
	if err != nil {
		r.logger.Error("Failed to find milestones", zap.Error(err), zap.String("project_id", q.ProjectID))
		return nil, classify(model.KindMilestone, "", err)
	}
	defer rows.Close()

	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			r.logger.Error("Failed to scan milestone", zap.Error(err))
			return nil, classify(model.KindMilestone, "", err)
		}
		milestones = append(milestones, m)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(model.KindMilestone, "", err)
	}
	return milestones, nil
}

func (r *MilestoneRepository) GetMilestone(ctx context.Context, id string) (model.Milestone, error) {
	if err := checkID(model.KindMilestone, id); err != nil {
		return model.Milestone{}, err
	}
	defer observe("select", "milestones", time.Now())
	query := fmt.Sprintf(`SELECT %s FROM milestones WHERE id = $1`, milestoneColumns)
	m, err := scanMilestone(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err != pgx.ErrNoRows {
			r.logger.Error("Failed to get milestone", zap.Error(err), zap.String("milestone_id", id))
		}
		return model.Milestone{}, classify(model.KindMilestone, id, err)
	}
	return m, nil
}

func (r *MilestoneRepository) CreateMilestone(ctx context.Context, m model.Milestone) (model.Milestone, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if err := checkID(model.KindProject, m.ProjectID); err != nil {
		return model.Milestone{}, err
	}
	r.logger.Debug("Inserting milestone",
		zap.String("project_id", m.ProjectID),
		zap.String("name", m.Name),
	)

	query := fmt.Sprintf(`
        INSERT INTO milestones (id, project_id, name, description, deadline, status)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING %s
    `, milestoneColumns)
	defer observe("insert", "milestones", time.Now())
	created, err := scanMilestone(r.db.QueryRow(ctx, query,
		m.ID,
		m.ProjectID,
		m.Name,
		m.Description,
		m.Deadline,
		string(m.Status),
	))
	if err != nil {
		r.logger.Error("Failed to insert milestone", zap.Error(err), zap.String("project_id", m.ProjectID))
		if isForeignKeyViolation(err) {
			return model.Milestone{}, model.NotFound(model.KindProject, m.ProjectID)
		}
		return model.Milestone{}, classify(model.KindMilestone, m.ID, err)
	}

	r.logger.Info("Milestone inserted successfully",
		zap.String("milestone_id", created.ID),
		zap.String("project_id", created.ProjectID),
	)
	return created, nil
}

func (r *MilestoneRepository) UpdateMilestone(ctx context.Context, m model.Milestone, ifVersion int) (model.Milestone, error) {
	if err := checkID(model.KindMilestone, m.ID); err != nil {
		return model.Milestone{}, err
	}
	r.logger.Debug("Updating milestone",
		zap.String("milestone_id", m.ID),
		zap.String("status", string(m.Status)),
		zap.Int("if_version", ifVersion),
	)

	query := fmt.Sprintf(`
        UPDATE milestones
        SET name = $2, description = $3, deadline = $4, status = $5,
            version = version + 1, updated_at = NOW()
        WHERE id = $1 AND ($6::int = 0 OR version = $6::int)
        RETURNING %s
    `, milestoneColumns)
	defer observe("update", "milestones", time.Now())
	updated, err := scanMilestone(r.db.QueryRow(ctx, query,
		m.ID,
		m.Name,
		m.Description,
		m.Deadline,
		string(m.Status),
		ifVersion,
	))
	if err == pgx.ErrNoRows {
		return model.Milestone{}, missOrConflict(ctx, r.db, "milestones", model.KindMilestone, m.ID)
	}
	if err != nil {
		r.logger.Error("Failed to update milestone", zap.Error(err), zap.String("milestone_id", m.ID))
		return model.Milestone{}, classify(model.KindMilestone, m.ID, err)
	}

	r.logger.Info("Milestone updated successfully",
		zap.String("milestone_id", updated.ID),
		zap.Int("version", updated.Version),
	)
	return updated, nil
}

// DeleteMilestone detaches the milestone's tasks and deletes it in one
// transaction. ON DELETE SET NULL alone would not bump the tasks' version.
func (r *MilestoneRepository) DeleteMilestone(ctx context.Context, id string) (int, error) {
	if err := checkID(model.KindMilestone, id); err != nil {
		return 0, err
	}
	r.logger.Debug("Deleting milestone", zap.String("milestone_id", id))
	defer observe("delete", "milestones", time.Now())

	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.logger.Error("Failed to begin transaction", zap.Error(err), zap.String("milestone_id", id))
		return 0, classify(model.KindMilestone, id, err)
	}
	defer tx.Rollback(ctx)

	cleared, err := tx.Exec(ctx, `
        UPDATE tasks
        SET milestone_id = NULL, version = version + 1, updated_at = NOW()
        WHERE milestone_id = $1
    `, id)
	if err != nil {
		r.logger.Error("Failed to clear milestone from tasks", zap.Error(err), zap.String("milestone_id", id))
		return 0, classify(model.KindMilestone, id, err)
	}
	result, err := tx.Exec(ctx, `DELETE FROM milestones WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete milestone", zap.Error(err), zap.String("milestone_id", id))
		return 0, classify(model.KindMilestone, id, err)
	}
	if result.RowsAffected() == 0 {
		return 0, model.NotFound(model.KindMilestone, id)
	}
	if err := tx.Commit(ctx); err != nil {
		r.logger.Error("Failed to commit milestone delete", zap.Error(err), zap.String("milestone_id", id))
		return 0, classify(model.KindMilestone, id, err)
	}

	r.logger.Info("Milestone deleted",
		zap.String("milestone_id", id),
		zap.Int64("tasks_detached", cleared.RowsAffected()),
	)
	return int(cleared.RowsAffected()), nil
}
