package workflow

import (
	"context"
	"fmt"

	mqcontracts "projectflow/contracts/mq"
	"projectflow/internal/model"
	"projectflow/internal/statemachine"

	"go.uber.org/zap"
)

func (c *Controller) CreateMilestone(ctx context.Context, in model.MilestoneInput) (model.Milestone, error) {
	const op = "create"
	in, err := milestoneFields(in, model.MilestonePending)
	if err == nil {
		err = requireID(model.KindMilestone, "project_id", in.ProjectID)
	}
	if err != nil {
		return model.Milestone{}, c.rejected(ctx, model.KindMilestone, op, err)
	}

	created, err := c.store.CreateMilestone(write(ctx), model.Milestone{
		ProjectID:   in.ProjectID,
		Name:        in.Name,
		Description: in.Description,
		Deadline:    in.Deadline,
		Status:      in.Status,
	})
	if err != nil {
		return model.Milestone{}, c.failed(ctx, model.KindMilestone, op, "", err, "")
	}

	ev := c.event(ctx, model.KindMilestone, mqcontracts.ActionCreated, created.ID, created.ProjectID)
	ev.Name, ev.Status = created.Name, string(created.Status)
	c.succeeded(ctx, op, createdMessage(model.KindMilestone), ev)
	return created, nil
}

// UpdateMilestone edits a milestone in place. Milestones never move between
// projects; a different in.ProjectID is rejected.
func (c *Controller) UpdateMilestone(ctx context.Context, id string, in model.MilestoneInput) (model.Milestone, error) {
	const op = "update"
	if err := requireID(model.KindMilestone, "id", id); err != nil {
		return model.Milestone{}, c.rejected(ctx, model.KindMilestone, op, err)
	}
	in, err := milestoneFields(in, "")
	if err != nil {
		return model.Milestone{}, c.rejected(ctx, model.KindMilestone, op, err)
	}

	current, err := c.store.GetMilestone(ctx, id)
	if err != nil {
		return model.Milestone{}, c.failed(ctx, model.KindMilestone, op, id, err, "")
	}
	if in.ProjectID != "" && in.ProjectID != current.ProjectID {
		return model.Milestone{}, c.rejected(ctx, model.KindMilestone, op,
			model.Validation(model.KindMilestone, "project_id", "a milestone cannot move to another project"))
	}
	next := current
	if in.Status != "" {
		if err := statemachine.TransitionMilestone(&next, in.Status); err != nil {
			return model.Milestone{}, c.rejected(ctx, model.KindMilestone, op, err)
		}
	}
	next.Name = in.Name
	next.Description = in.Description
	next.Deadline = in.Deadline

	updated, err := c.store.UpdateMilestone(write(ctx), next, in.Version)
	if err != nil {
		return model.Milestone{}, c.failed(ctx, model.KindMilestone, op, id, err, "")
	}

	ev := c.event(ctx, model.KindMilestone, mqcontracts.ActionUpdated, updated.ID, updated.ProjectID)
	ev.Name, ev.Status, ev.PrevStatus = updated.Name, string(updated.Status), string(current.Status)
	c.succeeded(ctx, op, updatedMessage(model.KindMilestone), ev)
	return updated, nil
}

// DeleteMilestone deletes the milestone. Tasks referencing it survive with
// no milestone; the store detaches them in the same write.
func (c *Controller) DeleteMilestone(ctx context.Context, id string) error {
	const op = "delete"
	if err := requireID(model.KindMilestone, "id", id); err != nil {
		return c.rejected(ctx, model.KindMilestone, op, err)
	}
	current, err := c.store.GetMilestone(ctx, id)
	if err != nil {
		return c.failed(ctx, model.KindMilestone, op, id, err, "")
	}

	cleared, err := c.store.DeleteMilestone(write(ctx), id)
	if err != nil {
		return c.failed(ctx, model.KindMilestone, op, id, err, "")
	}
	c.log(ctx).Debug("Milestone detached from tasks",
		zap.String("milestone_id", id),
		zap.Int("tasks", cleared),
	)

	ev := c.event(ctx, model.KindMilestone, mqcontracts.ActionDeleted, id, current.ProjectID)
	ev.Name = current.Name
	c.succeeded(ctx, op, deletedMessage(model.KindMilestone), ev)
	return nil
}

func (c *Controller) ChangeMilestoneStatus(ctx context.Context, id string, status model.MilestoneStatus) (model.Milestone, error) {
	const op = "status"
	if err := requireID(model.KindMilestone, "id", id); err != nil {
		return model.Milestone{}, c.rejected(ctx, model.KindMilestone, op, err)
	}
	if !statemachine.Milestone.Valid(status) {
		return model.Milestone{}, c.rejected(ctx, model.KindMilestone, op,
			model.Validation(model.KindMilestone, "status", fmt.Sprintf("unknown milestone status %q", status)))
	}

	current, err := c.store.GetMilestone(ctx, id)
	if err != nil {
		return model.Milestone{}, c.failed(ctx, model.KindMilestone, op, id, err, statusFailure(model.KindMilestone))
	}
	next := current
	if err := statemachine.TransitionMilestone(&next, status); err != nil {
		return model.Milestone{}, c.rejected(ctx, model.KindMilestone, op, err)
	}
	updated, err := c.store.UpdateMilestone(write(ctx), next, current.Version)
	if err != nil {
		return model.Milestone{}, c.failed(ctx, model.KindMilestone, op, id, err, statusFailure(model.KindMilestone))
	}

	ev := c.event(ctx, model.KindMilestone, mqcontracts.ActionStatusChanged, updated.ID, updated.ProjectID)
	ev.Name, ev.Status, ev.PrevStatus = updated.Name, string(updated.Status), string(current.Status)
	c.succeeded(ctx, op, statusMessage(model.KindMilestone, string(updated.Status)), ev)
	return updated, nil
}
