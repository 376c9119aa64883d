// Package repository is the entity store: every read and write of projects,
// milestones and tasks goes through the Store interface. Postgres is the
// production implementation, Memory backs tests and the --memory dev mode,
// and Guarded wraps either one with a circuit breaker.
//
// Implementations report failures as *model.Error so callers can branch with
// errors.Is on model.ErrNotFound, model.ErrConcurrentModification,
// model.ErrStoreUnavailable and model.ErrStore.
package repository

import (
	"context"

	"projectflow/internal/model"
)

// AnyVersion disables the compare-and-swap check on Update calls.
const AnyVersion = 0

type ProjectStore interface {
	ListProjects(ctx context.Context, q model.ProjectQuery) ([]model.Project, error)
	GetProject(ctx context.Context, id string) (model.Project, error)
	// CreateProject assigns id, version and timestamps and returns the
	// stored row.
	CreateProject(ctx context.Context, p model.Project) (model.Project, error)
	// UpdateProject replaces the editable fields of p.ID. When ifVersion is
	// not AnyVersion the write only happens if the stored version matches.
	UpdateProject(ctx context.Context, p model.Project, ifVersion int) (model.Project, error)
	// DeleteProject also removes the project's milestones and tasks.
	DeleteProject(ctx context.Context, id string) error
}

type MilestoneStore interface {
	ListMilestones(ctx context.Context, q model.MilestoneQuery) ([]model.Milestone, error)
	GetMilestone(ctx context.Context, id string) (model.Milestone, error)
	CreateMilestone(ctx context.Context, m model.Milestone) (model.Milestone, error)
	UpdateMilestone(ctx context.Context, m model.Milestone, ifVersion int) (model.Milestone, error)
	// DeleteMilestone removes the milestone and unsets milestone_id on every
	// task referencing it in the same write. It returns how many tasks were
	// detached.
	DeleteMilestone(ctx context.Context, id string) (int, error)
}

type TaskStore interface {
	ListTasks(ctx context.Context, q model.TaskQuery) ([]model.Task, error)
	GetTask(ctx context.Context, id string) (model.Task, error)
	CreateTask(ctx context.Context, t model.Task) (model.Task, error)
	UpdateTask(ctx context.Context, t model.Task, ifVersion int) (model.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

type Store interface {
	ProjectStore
	MilestoneStore
	TaskStore
	Ping(ctx context.Context) error
}
