package repository

import (
	"context"
	"errors"

	"projectflow/internal/model"
	"projectflow/pkg/circuitbreaker"
	"projectflow/pkg/metrics"

	"go.uber.org/zap"
)

// Guarded wraps a Store with a circuit breaker. Only infrastructure
// failures (ErrStore, ErrStoreUnavailable) count against the breaker; while
// it is open every call fails fast with ErrStoreUnavailable.
type Guarded struct {
	inner  Store
	cb     *circuitbreaker.CircuitBreaker
	logger *zap.Logger
}

func NewGuarded(inner Store, cfg circuitbreaker.Config, logger *zap.Logger, opts ...circuitbreaker.Option) *Guarded {
	g := &Guarded{inner: inner, logger: logger}
	opts = append(opts, circuitbreaker.OnStateChange(func(from, to circuitbreaker.State) {
		metrics.SetStoreBreakerState(int(to))
		g.logger.Warn("Store circuit breaker state changed",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}))
	g.cb = circuitbreaker.NewCircuitBreaker(cfg, opts...)
	metrics.SetStoreBreakerState(int(circuitbreaker.StateClosed))
	return g
}

// State exposes the breaker state for readiness checks.
func (g *Guarded) State() circuitbreaker.State { return g.cb.GetState() }

func isInfraFailure(err error) bool {
	return errors.Is(err, model.ErrStore) || errors.Is(err, model.ErrStoreUnavailable)
}

func guard[T any](g *Guarded, kind model.Kind, fn func() (T, error)) (T, error) {
	var out T
	var callErr error
	err := g.cb.Execute(func() error {
		out, callErr = fn()
		if isInfraFailure(callErr) {
			return callErr
		}
		return nil
	})
	if errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen) {
		var zero T
		return zero, model.Unavailable(kind, err)
	}
	return out, callErr
}

func guardErr(g *Guarded, kind model.Kind, fn func() error) error {
	_, err := guard(g, kind, func() (struct{}, error) { return struct{}{}, fn() })
	return err
}

func (g *Guarded) Ping(ctx context.Context) error {
	return guardErr(g, "", func() error { return g.inner.Ping(ctx) })
}

func (g *Guarded) ListProjects(ctx context.Context, q model.ProjectQuery) ([]model.Project, error) {
	return guard(g, model.KindProject, func() ([]model.Project, error) { return g.inner.ListProjects(ctx, q) })
}

func (g *Guarded) GetProject(ctx context.Context, id string) (model.Project, error) {
	return guard(g, model.KindProject, func() (model.Project, error) { return g.inner.GetProject(ctx, id) })
}

func (g *Guarded) CreateProject(ctx context.Context, p model.Project) (model.Project, error) {
	return guard(g, model.KindProject, func() (model.Project, error) { return g.inner.CreateProject(ctx, p) })
}

func (g *Guarded) UpdateProject(ctx context.Context, p model.Project, ifVersion int) (model.Project, error) {
	return guard(g, model.KindProject, func() (model.Project, error) { return g.inner.UpdateProject(ctx, p, ifVersion) })
}

func (g *Guarded) DeleteProject(ctx context.Context, id string) error {
	return guardErr(g, model.KindProject, func() error { return g.inner.DeleteProject(ctx, id) })
}

func (g *Guarded) ListMilestones(ctx context.Context, q model.MilestoneQuery) ([]model.Milestone, error) {
	return guard(g, model.KindMilestone, func() ([]model.Milestone, error) { return g.inner.ListMilestones(ctx, q) })
}

func (g *Guarded) GetMilestone(ctx context.Context, id string) (model.Milestone, error) {
	return guard(g, model.KindMilestone, func() (model.Milestone, error) { return g.inner.GetMilestone(ctx, id) })
}

func (g *Guarded) CreateMilestone(ctx context.Context, m model.Milestone) (model.Milestone, error) {
	return guard(g, model.KindMilestone, func() (model.Milestone, error) { return g.inner.CreateMilestone(ctx, m) })
}

func (g *Guarded) UpdateMilestone(ctx context.Context, m model.Milestone, ifVersion int) (model.Milestone, error) {
	return guard(g, model.KindMilestone, func() (model.Milestone, error) { return g.inner.UpdateMilestone(ctx, m, ifVersion) })
}

func (g *Guarded) DeleteMilestone(ctx context.Context, id string) (int, error) {
	return guard(g, model.KindMilestone, func() (int, error) { return g.inner.DeleteMilestone(ctx, id) })
}

func (g *Guarded) ListTasks(ctx context.Context, q model.TaskQuery) ([]model.Task, error) {
	return guard(g, model.KindTask, func() ([]model.Task, error) { return g.inner.ListTasks(ctx, q) })
}

func (g *Guarded) GetTask(ctx context.Context, id string) (model.Task, error) {
	return guard(g, model.KindTask, func() (model.Task, error) { return g.inner.GetTask(ctx, id) })
}

func (g *Guarded) CreateTask(ctx context.Context, t model.Task) (model.Task, error) {
	return guard(g, model.KindTask, func() (model.Task, error) { return g.inner.CreateTask(ctx, t) })
}

func (g *Guarded) UpdateTask(ctx context.Context, t model.Task, ifVersion int) (model.Task, error) {
	return guard(g, model.KindTask, func() (model.Task, error) { return g.inner.UpdateTask(ctx, t, ifVersion) })
}

func (g *Guarded) DeleteTask(ctx context.Context, id string) error {
	return guardErr(g, model.KindTask, func() error { return g.inner.DeleteTask(ctx, id) })
}
