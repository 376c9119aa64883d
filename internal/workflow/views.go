package workflow

import (
	"context"
	"time"

	"projectflow/internal/derive"
	"projectflow/internal/model"

	"go.uber.org/zap"
)

// ProjectView fetches a fresh snapshot of the project and derives the full
// detail view. The task list and board follow q. The result is cached and
// re-derived with the same q after every mutation touching the project.
func (c *Controller) ProjectView(ctx context.Context, projectID string, q model.TaskQuery) (derive.ProjectView, error) {
	q.ProjectID = projectID
	view, err := c.buildView(ctx, projectID, q)
	if err != nil {
		return derive.ProjectView{}, err
	}
	c.mu.Lock()
	c.views[projectID] = view
	c.queries[projectID] = q
	c.mu.Unlock()
	return view, nil
}

// CachedView returns the last view derived for the project, if any. A view
// whose refresh failed is dropped rather than served stale.
func (c *Controller) CachedView(projectID string) (derive.ProjectView, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.views[projectID]
	return v, ok
}

func (c *Controller) buildView(ctx context.Context, projectID string, q model.TaskQuery) (derive.ProjectView, error) {
	if err := requireID(model.KindProject, "id", projectID); err != nil {
		return derive.ProjectView{}, err
	}
	p, err := c.store.GetProject(ctx, projectID)
	if err != nil {
		return derive.ProjectView{}, err
	}
	milestones, err := c.store.ListMilestones(ctx, model.MilestoneQuery{ProjectID: projectID})
	if err != nil {
		return derive.ProjectView{}, err
	}
	tasks, err := c.store.ListTasks(ctx, model.TaskQuery{ProjectID: projectID})
	if err != nil {
		return derive.ProjectView{}, err
	}
	return derive.BuildProjectView(p, milestones, tasks, q, c.now(), c.upcomingDays), nil
}

// refresh re-derives the project's view after a write using the query the
// view was last requested with.
func (c *Controller) refresh(ctx context.Context, projectID string) {
	if projectID == "" {
		return
	}
	c.mu.Lock()
	q, ok := c.queries[projectID]
	c.mu.Unlock()
	if !ok {
		q = model.TaskQuery{ProjectID: projectID}
	}

	view, err := c.buildView(ctx, projectID, q)
	if err != nil {
		c.log(ctx).Warn("Failed to refresh project view, dropping cached copy",
			zap.String("project_id", projectID),
			zap.Error(err),
		)
		c.forget(projectID)
		return
	}
	c.mu.Lock()
	c.views[projectID] = view
	c.queries[projectID] = q
	c.mu.Unlock()
}

func (c *Controller) forget(projectID string) {
	c.mu.Lock()
	delete(c.views, projectID)
	delete(c.queries, projectID)
	c.mu.Unlock()
}

// Board is the kanban board of the project's tasks matching q.
func (c *Controller) Board(ctx context.Context, projectID string, q model.TaskQuery) (derive.Board, error) {
	view, err := c.ProjectView(ctx, projectID, q)
	if err != nil {
		return derive.Board{}, err
	}
	return view.Board, nil
}

func (c *Controller) GetProject(ctx context.Context, id string) (model.Project, error) {
	return c.store.GetProject(ctx, id)
}

func (c *Controller) GetMilestone(ctx context.Context, id string) (model.Milestone, error) {
	return c.store.GetMilestone(ctx, id)
}

func (c *Controller) GetTask(ctx context.Context, id string) (model.Task, error) {
	return c.store.GetTask(ctx, id)
}

// ListProjects returns ownerID's projects filtered and sorted by q.
func (c *Controller) ListProjects(ctx context.Context, ownerID string, q model.ProjectQuery) ([]model.Project, error) {
	q.OwnerID = ownerID
	q.Sort = q.Sort.OrDefault()
	return c.store.ListProjects(ctx, q)
}

// ListMilestones returns the project's milestones matching q, each with its
// derived task count and progress.
func (c *Controller) ListMilestones(ctx context.Context, projectID string, q model.MilestoneQuery) ([]derive.MilestoneSummary, error) {
	q.ProjectID = projectID
	if q.Sort == "" {
		q.Sort = model.SortDeadline
	}
	milestones, err := c.store.ListMilestones(ctx, q)
	if err != nil {
		return nil, err
	}
	tasks, err := c.store.ListTasks(ctx, model.TaskQuery{ProjectID: projectID})
	if err != nil {
		return nil, err
	}
	return derive.SummarizeMilestones(milestones, tasks), nil
}

func (c *Controller) ListTasks(ctx context.Context, q model.TaskQuery) ([]model.Task, error) {
	q.Sort = q.Sort.OrDefault()
	return c.store.ListTasks(ctx, q)
}

// Dashboard summarises every project owned by ownerID as of today.
func (c *Controller) Dashboard(ctx context.Context, ownerID string, today time.Time) (derive.Dashboard, error) {
	projects, err := c.store.ListProjects(ctx, model.ProjectQuery{OwnerID: ownerID})
	if err != nil {
		return derive.Dashboard{}, err
	}
	tasks, err := c.store.ListTasks(ctx, model.TaskQuery{OwnerID: ownerID})
	if err != nil {
		return derive.Dashboard{}, err
	}
	return derive.BuildDashboard(projects, tasks, today, c.dashboard), nil
}
