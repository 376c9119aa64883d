package workflow

import (
	"context"
	"fmt"

	mqcontracts "projectflow/contracts/mq"
	"projectflow/internal/model"
	"projectflow/internal/statemachine"
)

// checkMilestone enforces that a task's milestone belongs to the task's
// project. A missing milestone surfaces as the store's NotFound.
func (c *Controller) checkMilestone(ctx context.Context, projectID string, milestoneID *string) error {
	if milestoneID == nil {
		return nil
	}
	m, err := c.store.GetMilestone(ctx, *milestoneID)
	if err != nil {
		return err
	}
	if m.ProjectID != projectID {
		return model.Validation(model.KindTask, "milestone_id",
			fmt.Sprintf("milestone %s belongs to another project", m.ID))
	}
	return nil
}

func (c *Controller) CreateTask(ctx context.Context, in model.TaskInput) (model.Task, error) {
	const op = "create"
	in, err := taskFields(in, model.TaskTodo, model.PriorityMedium)
	if err == nil {
		err = requireID(model.KindTask, "project_id", in.ProjectID)
	}
	if err != nil {
		return model.Task{}, c.rejected(ctx, model.KindTask, op, err)
	}
	if err := c.checkMilestone(ctx, in.ProjectID, in.MilestoneID); err != nil {
		return model.Task{}, c.failed(ctx, model.KindTask, op, "", err, "")
	}

	t := model.Task{
		ProjectID:   in.ProjectID,
		MilestoneID: in.MilestoneID,
		AssigneeID:  in.AssigneeID,
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
		Deadline:    in.Deadline,
	}
	statemachine.SyncCompletion("", &t, c.now())

	created, err := c.store.CreateTask(write(ctx), t)
	if err != nil {
		return model.Task{}, c.failed(ctx, model.KindTask, op, "", err, "")
	}

	ev := c.event(ctx, model.KindTask, mqcontracts.ActionCreated, created.ID, created.ProjectID)
	ev.Name, ev.Status = created.Title, string(created.Status)
	c.succeeded(ctx, op, createdMessage(model.KindTask), ev)
	return created, nil
}

// UpdateTask replaces the editable fields of a task. Empty status, priority
// and project keep their stored values; a nil milestone detaches the task.
func (c *Controller) UpdateTask(ctx context.Context, id string, in model.TaskInput) (model.Task, error) {
	const op = "update"
	if err := requireID(model.KindTask, "id", id); err != nil {
		return model.Task{}, c.rejected(ctx, model.KindTask, op, err)
	}
	in, err := taskFields(in, "", "")
	if err != nil {
		return model.Task{}, c.rejected(ctx, model.KindTask, op, err)
	}

	current, err := c.store.GetTask(ctx, id)
	if err != nil {
		return model.Task{}, c.failed(ctx, model.KindTask, op, id, err, "")
	}
	next := current
	if in.ProjectID != "" {
		next.ProjectID = in.ProjectID
	}
	if in.Status != "" {
		if err := statemachine.TransitionTask(&next, in.Status, c.now()); err != nil {
			return model.Task{}, c.rejected(ctx, model.KindTask, op, err)
		}
	}
	if in.Priority != "" {
		next.Priority = in.Priority
	}
	if err := c.checkMilestone(ctx, next.ProjectID, in.MilestoneID); err != nil {
		return model.Task{}, c.failed(ctx, model.KindTask, op, id, err, "")
	}
	next.MilestoneID = in.MilestoneID
	next.AssigneeID = in.AssigneeID
	next.Title = in.Title
	next.Description = in.Description
	next.Deadline = in.Deadline

	updated, err := c.store.UpdateTask(write(ctx), next, in.Version)
	if err != nil {
		return model.Task{}, c.failed(ctx, model.KindTask, op, id, err, "")
	}

	if current.ProjectID != updated.ProjectID {
		c.refresh(ctx, current.ProjectID)
	}
	ev := c.event(ctx, model.KindTask, mqcontracts.ActionUpdated, updated.ID, updated.ProjectID)
	ev.Name, ev.Status, ev.PrevStatus = updated.Title, string(updated.Status), string(current.Status)
	c.succeeded(ctx, op, updatedMessage(model.KindTask), ev)
	return updated, nil
}

func (c *Controller) DeleteTask(ctx context.Context, id string) error {
	const op = "delete"
	if err := requireID(model.KindTask, "id", id); err != nil {
		return c.rejected(ctx, model.KindTask, op, err)
	}
	current, err := c.store.GetTask(ctx, id)
	if err != nil {
		return c.failed(ctx, model.KindTask, op, id, err, "")
	}
	if err := c.store.DeleteTask(write(ctx), id); err != nil {
		return c.failed(ctx, model.KindTask, op, id, err, "")
	}

	ev := c.event(ctx, model.KindTask, mqcontracts.ActionDeleted, id, current.ProjectID)
	ev.Name = current.Title
	c.succeeded(ctx, op, deletedMessage(model.KindTask), ev)
	return nil
}

// ChangeTaskStatus moves a task through the task state machine and keeps
// completed_at in step with the new status.
func (c *Controller) ChangeTaskStatus(ctx context.Context, id string, status model.TaskStatus) (model.Task, error) {
	const op = "status"
	if err := requireID(model.KindTask, "id", id); err != nil {
		return model.Task{}, c.rejected(ctx, model.KindTask, op, err)
	}
	if !statemachine.Task.Valid(status) {
		return model.Task{}, c.rejected(ctx, model.KindTask, op,
			model.Validation(model.KindTask, "status", fmt.Sprintf("unknown task status %q", status)))
	}

	current, err := c.store.GetTask(ctx, id)
	if err != nil {
		return model.Task{}, c.failed(ctx, model.KindTask, op, id, err, statusFailure(model.KindTask))
	}
	next := current
	if err := statemachine.TransitionTask(&next, status, c.now()); err != nil {
		return model.Task{}, c.rejected(ctx, model.KindTask, op, err)
	}
	updated, err := c.store.UpdateTask(write(ctx), next, current.Version)
	if err != nil {
		return model.Task{}, c.failed(ctx, model.KindTask, op, id, err, statusFailure(model.KindTask))
	}

	ev := c.event(ctx, model.KindTask, mqcontracts.ActionStatusChanged, updated.ID, updated.ProjectID)
	ev.Name, ev.Status, ev.PrevStatus = updated.Title, string(updated.Status), string(current.Status)
	c.succeeded(ctx, op, statusMessage(model.KindTask, string(updated.Status)), ev)
	return updated, nil
}
