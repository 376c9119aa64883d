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

const taskColumns = `id::text, project_id::text, milestone_id::text, assignee_id, title, description,
        status, priority, deadline, completed_at, version, created_at, updated_at`

type TaskRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewTaskRepository(db *pgxpool.Pool, logger *zap.Logger) *TaskRepository {
	return &TaskRepository{db: db, logger: logger}
}

func scanTask(row pgx.Row) (model.Task, error) {
	var t model.Task
	err := row.Scan(
		&t.ID,
		&t.ProjectID,
		&t.MilestoneID,
		&t.AssigneeID,
		&t.Title,
		&t.Description,
		&t.Status,
		&t.Priority,
		&t.Deadline,
		&t.CompletedAt,
		&t.Version,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	return t, err
}

func (r *TaskRepository) ListTasks(ctx context.Context, q model.TaskQuery) ([]model.Task, error) {
	r.logger.Debug("Listing tasks",
		zap.String("owner_id", q.OwnerID),
		zap.String("project_id", q.ProjectID),
		zap.String("milestone_id", q.MilestoneID),
		zap.String("status", q.Status),
		zap.String("priority", q.Priority),
		zap.String("sort", string(q.Sort)),
	)
	tasks := []model.Task{}

	var w where
	if q.OwnerID != "" {
		w.add("project_id IN (SELECT id FROM projects WHERE owner_id = ?)", q.OwnerID)
	}
	if q.ProjectID != "" {
		if checkID(model.KindProject, q.ProjectID) != nil {
			return tasks, nil
		}
		w.add("project_id = ?", q.ProjectID)
	}
	if q.MilestoneID != "" {
		if checkID(model.KindMilestone, q.MilestoneID) != nil {
			return tasks, nil
		}
		w.add("milestone_id = ?", q.MilestoneID)
	}
	if q.AssigneeID != "" {
		w.add("assignee_id = ?", q.AssigneeID)
	}
	if q.Priority != "" {
		w.add("priority = ?", q.Priority)
	}
	w.filter(q.Filter, "title")
	query := fmt.Sprintf(`SELECT %s FROM tasks %s %s %s`,
		taskColumns, w.String(), orderBy(q.Sort, "title"), limitClause(q.Limit))

	defer observe("select", "tasks", time.Now())
	rows, err := r.db.Query(ctx, query, w.args...)
	if err != nil {
		r.logger.Error("Failed to query tasks",
			zap.Error(err),
			zap.String("project_id", q.ProjectID),
		)
		return nil, classify(model.KindTask, "", err)
	}
	defer rows.Close()

	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			r.logger.Error("Failed to scan task row",
				zap.Error(err),
				zap.String("project_id", q.ProjectID),
			)
			return nil, classify(model.KindTask, "", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(model.KindTask, "", err)
	}
	r.logger.Debug("Tasks listed successfully",
		zap.String("project_id", q.ProjectID),
		zap.Int("count", len(tasks)),
	)
	return tasks, nil
}

func (r *TaskRepository) GetTask(ctx context.Context, id string) (model.Task, error) {
	if err := checkID(model.KindTask, id); err != nil {
		return model.Task{}, err
	}
	defer observe("select", "tasks", time.Now())
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE id = $1`, taskColumns)
	t, err := scanTask(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err != pgx.ErrNoRows {
			r.logger.Error("Failed to get task", zap.Error(err), zap.String("task_id", id))
		}
		return model.Task{}, classify(model.KindTask, id, err)
	}
	return t, nil
}

func (r *TaskRepository) CreateTask(ctx context.Context, t model.Task) (model.Task, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if err := checkID(model.KindProject, t.ProjectID); err != nil {
		return model.Task{}, err
	}
	r.logger.Debug("Inserting task",
		zap.String("project_id", t.ProjectID),
		zap.String("title", t.Title),
		zap.String("status", string(t.Status)),
	)
	query := fmt.Sprintf(`
        INSERT INTO tasks (id, project_id, milestone_id, assignee_id, title, description,
                           status, priority, deadline, completed_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING %s
    `, taskColumns)
	defer observe("insert", "tasks", time.Now())
	created, err := scanTask(r.db.QueryRow(ctx, query,
		t.ID,
		t.ProjectID,
		t.MilestoneID,
		t.AssigneeID,
		t.Title,
		t.Description,
		string(t.Status),
		string(t.Priority),
		t.Deadline,
		t.CompletedAt,
	))
	if err != nil {
		r.logger.Error("Failed to insert task",
			zap.Error(err),
			zap.String("project_id", t.ProjectID),
		)
		if isForeignKeyViolation(err) {
			return model.Task{}, model.NotFound(model.KindProject, t.ProjectID)
		}
		return model.Task{}, classify(model.KindTask, t.ID, err)
	}
	r.logger.Info("Task inserted successfully",
		zap.String("task_id", created.ID),
		zap.String("project_id", created.ProjectID),
	)
	return created, nil
}

func (r *TaskRepository) UpdateTask(ctx context.Context, t model.Task, ifVersion int) (model.Task, error) {
	if err := checkID(model.KindTask, t.ID); err != nil {
		return model.Task{}, err
	}
	r.logger.Debug("Updating task",
		zap.String("task_id", t.ID),
		zap.String("status", string(t.Status)),
		zap.Int("if_version", ifVersion),
	)
	query := fmt.Sprintf(`
        UPDATE tasks
        SET project_id = $2, milestone_id = $3, assignee_id = $4, title = $5, description = $6,
            status = $7, priority = $8, deadline = $9, completed_at = $10,
            version = version + 1, updated_at = NOW()
        WHERE id = $1 AND ($11::int = 0 OR version = $11::int)
        RETURNING %s
    `, taskColumns)
	defer observe("update", "tasks", time.Now())
	updated, err := scanTask(r.db.QueryRow(ctx, query,
		t.ID,
		t.ProjectID,
		t.MilestoneID,
		t.AssigneeID,
		t.Title,
		t.Description,
		string(t.Status),
		string(t.Priority),
		t.Deadline,
		t.CompletedAt,
		ifVersion,
	))
	if err == pgx.ErrNoRows {
		return model.Task{}, missOrConflict(ctx, r.db, "tasks", model.KindTask, t.ID)
	}
	if err != nil {
		r.logger.Error("Failed to update task",
			zap.Error(err),
			zap.String("task_id", t.ID),
		)
		return model.Task{}, classify(model.KindTask, t.ID, err)
	}
	r.logger.Info("Task updated successfully",
		zap.String("task_id", updated.ID),
		zap.String("status", string(updated.Status)),
		zap.Int("version", updated.Version),
	)
	return updated, nil
}

func (r *TaskRepository) DeleteTask(ctx context.Context, id string) error {
	if err := checkID(model.KindTask, id); err != nil {
		return err
	}
	r.logger.Debug("Deleting task", zap.String("task_id", id))
	defer observe("delete", "tasks", time.Now())
	result, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete task", zap.Error(err), zap.String("task_id", id))
		return classify(model.KindTask, id, err)
	}
	if result.RowsAffected() == 0 {
		return model.NotFound(model.KindTask, id)
	}
	r.logger.Info("Task deleted", zap.String("task_id", id))
	return nil
}
