package workflow

import (
	"context"

	"projectflow/internal/model"
)

// Delete removes the entity of the given kind. Deleting a milestone
// detaches its tasks first.
func (c *Controller) Delete(ctx context.Context, kind model.Kind, id string) error {
	switch kind {
	case model.KindProject:
		return c.DeleteProject(ctx, id)
	case model.KindMilestone:
		return c.DeleteMilestone(ctx, id)
	case model.KindTask:
		return c.DeleteTask(ctx, id)
	}
	_, err := model.ParseKind(string(kind))
	return c.rejected(ctx, kind, "delete", err)
}

// ChangeStatus moves the entity of the given kind to status and returns the
// updated record.
func (c *Controller) ChangeStatus(ctx context.Context, kind model.Kind, id, status string) (model.Record, error) {
	switch kind {
	case model.KindProject:
		p, err := c.ChangeProjectStatus(ctx, id, model.ProjectStatus(status))
		if err != nil {
			return nil, err
		}
		return p, nil
	case model.KindMilestone:
		m, err := c.ChangeMilestoneStatus(ctx, id, model.MilestoneStatus(status))
		if err != nil {
			return nil, err
		}
		return m, nil
	case model.KindTask:
		t, err := c.ChangeTaskStatus(ctx, id, model.TaskStatus(status))
		if err != nil {
			return nil, err
		}
		return t, nil
	}
	_, err := model.ParseKind(string(kind))
	return nil, c.rejected(ctx, kind, "status", err)
}
