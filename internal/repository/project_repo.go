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

const projectColumns = `id::text, owner_id, name, description, status, deadline, version, created_at, updated_at`

type ProjectRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewProjectRepository(db *pgxpool.Pool, logger *zap.Logger) *ProjectRepository {
	return &ProjectRepository{
		db:     db,
		logger: logger,
	}
}

func scanProject(row pgx.Row) (model.Project, error) {
	var p model.Project
	err := row.Scan(
		&p.ID,
		&p.OwnerID,
		&p.Name,
		&p.Description,
		&p.Status,
		&p.Deadline,
		&p.Version,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}

func (r *ProjectRepository) ListProjects(ctx context.Context, q model.ProjectQuery) ([]model.Project, error) {
	r.logger.Debug("Listing projects",
		zap.String("owner_id", q.OwnerID),
		zap.String("status", q.Status),
		zap.String("search", q.Search),
		zap.String("sort", string(q.Sort)),
	)
	projects := []model.Project{}
	// Projects carry no priority, so a priority filter matches nothing.
	if q.Priority != "" {
		return projects, nil
	}

	var w where
	if q.OwnerID != "" {
		w.add("owner_id = ?", q.OwnerID)
	}
	w.filter(q.Filter, "name")
	query := fmt.Sprintf(`SELECT %s FROM projects %s %s %s`,
		projectColumns, w.String(), orderBy(q.Sort, "name"), limitClause(q.Limit))

	defer observe("select", "projects", time.Now())
	rows, err := r.db.Query(ctx, query, w.args...)
	if err != nil {
		r.logger.Error("Failed to query projects", zap.Error(err), zap.String("owner_id", q.OwnerID))
		return nil, classify(model.KindProject, "", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			r.logger.Error("Failed to scan project row", zap.Error(err))
			return nil, classify(model.KindProject, "", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error("Failed to iterate projects", zap.Error(err))
		return nil, classify(model.KindProject, "", err)
	}

	r.logger.Debug("Listed projects",
		zap.String("owner_id", q.OwnerID),
		zap.Int("count", len(projects)),
	)
	return projects, nil
}

func (r *ProjectRepository) GetProject(ctx context.Context, id string) (model.Project, error) {
	if err := checkID(model.KindProject, id); err != nil {
		return model.Project{}, err
	}
	defer observe("select", "projects", time.Now())
	query := fmt.Sprintf(`SELECT %s FROM projects WHERE id = $1`, projectColumns)
	p, err := scanProject(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err != pgx.ErrNoRows {
			r.logger.Error("Failed to get project", zap.Error(err), zap.String("project_id", id))
		}
		return model.Project{}, classify(model.KindProject, id, err)
	}
	return p, nil
}

func (r *ProjectRepository) CreateProject(ctx context.Context, p model.Project) (model.Project, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	r.logger.Debug("Inserting project",
		zap.String("owner_id", p.OwnerID),
		zap.String("name", p.Name),
	)

	query := fmt.Sprintf(`
        INSERT INTO projects (id, owner_id, name, description, status, deadline)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING %s
    `, projectColumns)
	defer observe("insert", "projects", time.Now())
	created, err := scanProject(r.db.QueryRow(ctx, query,
		p.ID,
		p.OwnerID,
		p.Name,
		p.Description,
		string(p.Status),
		p.Deadline,
	))
	if err != nil {
		r.logger.Error("Failed to insert project", zap.Error(err), zap.String("owner_id", p.OwnerID))
		return model.Project{}, classify(model.KindProject, p.ID, err)
	}

	r.logger.Info("Project inserted successfully",
		zap.String("project_id", created.ID),
		zap.String("owner_id", created.OwnerID),
	)
	return created, nil
}

func (r *ProjectRepository) UpdateProject(ctx context.Context, p model.Project, ifVersion int) (model.Project, error) {
	if err := checkID(model.KindProject, p.ID); err != nil {
		return model.Project{}, err
	}
	r.logger.Debug("Updating project",
		zap.String("project_id", p.ID),
		zap.String("status", string(p.Status)),
		zap.Int("if_version", ifVersion),
	)

	query := fmt.Sprintf(`
        UPDATE projects
        SET name = $2, description = $3, status = $4, deadline = $5,
            version = version + 1, updated_at = NOW()
        WHERE id = $1 AND ($6::int = 0 OR version = $6::int)
        RETURNING %s
    `, projectColumns)
	defer observe("update", "projects", time.Now())
	updated, err := scanProject(r.db.QueryRow(ctx, query,
		p.ID,
		p.Name,
		p.Description,
		string(p.Status),
		p.Deadline,
		ifVersion,
	))
	if err == pgx.ErrNoRows {
		return model.Project{}, missOrConflict(ctx, r.db, "projects", model.KindProject, p.ID)
	}
	if err != nil {
		r.logger.Error("Failed to update project", zap.Error(err), zap.String("project_id", p.ID))
		return model.Project{}, classify(model.KindProject, p.ID, err)
	}

	r.logger.Info("Project updated successfully",
		zap.String("project_id", updated.ID),
		zap.Int("version", updated.Version),
	)
	return updated, nil
}

// DeleteProject relies on ON DELETE CASCADE for milestones and tasks.
func (r *ProjectRepository) DeleteProject(ctx context.Context, id string) error {
	if err := checkID(model.KindProject, id); err != nil {
		return err
	}
	r.logger.Debug("Deleting project", zap.String("project_id", id))
	defer observe("delete", "projects", time.Now())
	result, err := r.db.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete project", zap.Error(err), zap.String("project_id", id))
		return classify(model.KindProject, id, err)
	}
	if result.RowsAffected() == 0 {
		return model.NotFound(model.KindProject, id)
	}
	r.logger.Info("Project deleted", zap.String("project_id", id))
	return nil
}
