package workflow

import (
	"context"
	"fmt"

	mqcontracts "projectflow/contracts/mq"
	"projectflow/internal/model"
	"projectflow/internal/statemachine"
)

func (c *Controller) CreateProject(ctx context.Context, in model.ProjectInput) (model.Project, error) {
	const op = "create"
	in, err := projectFields(in, model.ProjectActive)
	if err != nil {
		return model.Project{}, c.rejected(ctx, model.KindProject, op, err)
	}

	created, err := c.store.CreateProject(write(ctx), model.Project{
		OwnerID:     c.owner,
		Name:        in.Name,
		Description: in.Description,
		Status:      in.Status,
		Deadline:    in.Deadline,
	})
	if err != nil {
		return model.Project{}, c.failed(ctx, model.KindProject, op, "", err, "")
	}

	ev := c.event(ctx, model.KindProject, mqcontracts.ActionCreated, created.ID, created.ID)
	ev.Name, ev.Status = created.Name, string(created.Status)
	c.succeeded(ctx, op, createdMessage(model.KindProject), ev)
	return created, nil
}

// UpdateProject replaces the editable fields. A non-zero in.Version must
// match the stored version.
func (c *Controller) UpdateProject(ctx context.Context, id string, in model.ProjectInput) (model.Project, error) {
	const op = "update"
	if err := requireID(model.KindProject, "id", id); err != nil {
		return model.Project{}, c.rejected(ctx, model.KindProject, op, err)
	}
	in, err := projectFields(in, "")
	if err != nil {
		return model.Project{}, c.rejected(ctx, model.KindProject, op, err)
	}

	current, err := c.store.GetProject(ctx, id)
	if err != nil {
		return model.Project{}, c.failed(ctx, model.KindProject, op, id, err, "")
	}
	next := current
	if in.Status != "" {
		if err := statemachine.TransitionProject(&next, in.Status); err != nil {
			return model.Project{}, c.rejected(ctx, model.KindProject, op, err)
		}
	}
	next.Name = in.Name
	next.Description = in.Description
	next.Deadline = in.Deadline

	updated, err := c.store.UpdateProject(write(ctx), next, in.Version)
	if err != nil {
		return model.Project{}, c.failed(ctx, model.KindProject, op, id, err, "")
	}

	ev := c.event(ctx, model.KindProject, mqcontracts.ActionUpdated, updated.ID, updated.ID)
	ev.Name, ev.Status, ev.PrevStatus = updated.Name, string(updated.Status), string(current.Status)
	c.succeeded(ctx, op, updatedMessage(model.KindProject), ev)
	return updated, nil
}

// DeleteProject removes the project with its milestones and tasks.
// Confirmation is the caller's job.
func (c *Controller) DeleteProject(ctx context.Context, id string) error {
	const op = "delete"
	if err := requireID(model.KindProject, "id", id); err != nil {
		return c.rejected(ctx, model.KindProject, op, err)
	}
	if err := c.store.DeleteProject(write(ctx), id); err != nil {
		return c.failed(ctx, model.KindProject, op, id, err, "")
	}
	c.succeeded(ctx, op, deletedMessage(model.KindProject),
		c.event(ctx, model.KindProject, mqcontracts.ActionDeleted, id, id))
	return nil
}

func (c *Controller) ChangeProjectStatus(ctx context.Context, id string, status model.ProjectStatus) (model.Project, error) {
	const op = "status"
	if err := requireID(model.KindProject, "id", id); err != nil {
		return model.Project{}, c.rejected(ctx, model.KindProject, op, err)
	}
	if !statemachine.Project.Valid(status) {
		return model.Project{}, c.rejected(ctx, model.KindProject, op,
			model.Validation(model.KindProject, "status", fmt.Sprintf("unknown project status %q", status)))
	}

	current, err := c.store.GetProject(ctx, id)
	if err != nil {
		return model.Project{}, c.failed(ctx, model.KindProject, op, id, err, statusFailure(model.KindProject))
	}
	next := current
	if err := statemachine.TransitionProject(&next, status); err != nil {
		return model.Project{}, c.rejected(ctx, model.KindProject, op, err)
	}
	updated, err := c.store.UpdateProject(write(ctx), next, current.Version)
	if err != nil {
		return model.Project{}, c.failed(ctx, model.KindProject, op, id, err, statusFailure(model.KindProject))
	}

	ev := c.event(ctx, model.KindProject, mqcontracts.ActionStatusChanged, updated.ID, updated.ID)
	ev.Name, ev.Status, ev.PrevStatus = updated.Name, string(updated.Status), string(current.Status)
	c.succeeded(ctx, op, statusMessage(model.KindProject, string(updated.Status)), ev)
	return updated, nil
}
