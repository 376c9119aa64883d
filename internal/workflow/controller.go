// Package workflow is the orchestration layer between the UI and the entity
// store. A Controller turns user intents (create, edit, delete, change
// status) into store calls, re-derives the affected views and reports the
// outcome through the session's notification queue.
//
// Every mutating call runs in the same order: validate, write, re-fetch and
// re-derive, enqueue exactly one notification, then publish a workflow
// event. Validation failures return before the store is written and raise no
// notification; the form shows them inline.
package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	mqcontracts "projectflow/contracts/mq"
	"projectflow/internal/derive"
	"projectflow/internal/model"
	"projectflow/internal/notify"
	"projectflow/internal/repository"
	"projectflow/pkg/logger"
	"projectflow/pkg/metrics"
	"projectflow/pkg/trace"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Publisher delivers workflow events. pkg/mq.Publisher satisfies it.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// Controller is owned by one UI session. It is safe for concurrent use.
type Controller struct {
	store  repository.Store
	queue  *notify.Queue
	events Publisher
	owner  string
	now    func() time.Time
	logger *zap.Logger

	upcomingDays int
	dashboard    derive.DashboardOptions

	mu      sync.Mutex
	views   map[string]derive.ProjectView
	queries map[string]model.TaskQuery
}

type Option func(*Controller)

// WithEvents enables event publishing after successful mutations.
func WithEvents(p Publisher) Option {
	return func(c *Controller) { c.events = p }
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithUpcomingDays sets the look-ahead window for upcoming deadlines.
func WithUpcomingDays(days int) Option {
	return func(c *Controller) {
		if days >= 0 {
			c.upcomingDays = days
			c.dashboard.UpcomingDays = days
		}
	}
}

func WithDashboardOptions(o derive.DashboardOptions) Option {
	return func(c *Controller) { c.dashboard = o }
}

// New builds a controller for the session of owner. queue receives every
// outcome notification the controller raises.
func New(store repository.Store, queue *notify.Queue, owner string, opts ...Option) *Controller {
	c := &Controller{
		store:        store,
		queue:        queue,
		owner:        owner,
		now:          time.Now,
		logger:       zap.NewNop(),
		upcomingDays: derive.DefaultUpcomingDays,
		dashboard:    derive.DefaultDashboardOptions(),
		views:        make(map[string]derive.ProjectView),
		queries:      make(map[string]model.TaskQuery),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Queue returns the session's notification queue.
func (c *Controller) Queue() *notify.Queue { return c.queue }

// Owner returns the user the session belongs to.
func (c *Controller) Owner() string { return c.owner }

func (c *Controller) log(ctx context.Context) *zap.Logger {
	return logger.WithTrace(ctx, c.logger).With(zap.String("owner_id", c.owner))
}

// outcome names an error for the operations metric.
func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, model.ErrValidation):
		return "invalid"
	case errors.Is(err, model.ErrNotFound):
		return "not_found"
	case errors.Is(err, model.ErrConcurrentModification):
		return "conflict"
	case errors.Is(err, model.ErrStoreUnavailable):
		return "unavailable"
	}
	return "failed"
}

// rejected records a validation failure. No notification is raised.
func (c *Controller) rejected(ctx context.Context, kind model.Kind, op string, err error) error {
	metrics.RecordWorkflowOperation(string(kind), op, outcome(err))
	c.log(ctx).Debug("Workflow input rejected",
		zap.String("kind", string(kind)),
		zap.String("op", op),
		zap.Error(err),
	)
	return err
}

// failed raises the single error notification for a failed mutation. An
// empty message shows the error text itself.
func (c *Controller) failed(ctx context.Context, kind model.Kind, op, id string, err error, message string) error {
	if model.IsValidation(err) {
		return c.rejected(ctx, kind, op, err)
	}
	metrics.RecordWorkflowOperation(string(kind), op, outcome(err))
	c.log(ctx).Error("Workflow operation failed",
		zap.String("kind", string(kind)),
		zap.String("op", op),
		zap.String("id", id),
		zap.Error(err),
	)
	if message == "" {
		message = err.Error()
	}
	c.queue.Error(message)
	return err
}

// succeeded runs the tail of a successful mutation: re-derive the project
// view, raise the success notification, publish the event.
func (c *Controller) succeeded(ctx context.Context, op, message string, ev mqcontracts.WorkflowEventPayload) {
	metrics.RecordWorkflowOperation(ev.Kind, op, "success")
	c.log(ctx).Info("Workflow operation succeeded",
		zap.String("kind", ev.Kind),
		zap.String("op", op),
		zap.String("id", ev.ID),
		zap.String("project_id", ev.ProjectID),
	)
	if ev.Kind == string(model.KindProject) && ev.Action == mqcontracts.ActionDeleted {
		c.forget(ev.ProjectID)
	} else {
		c.refresh(ctx, ev.ProjectID)
	}
	c.queue.Success(message)
	c.publish(ctx, ev)
}

func (c *Controller) event(ctx context.Context, kind model.Kind, action, id, projectID string) mqcontracts.WorkflowEventPayload {
	return mqcontracts.WorkflowEventPayload{
		EventID:    uuid.NewString(),
		Kind:       string(kind),
		Action:     action,
		ID:         id,
		ProjectID:  projectID,
		ActorID:    c.owner,
		TraceID:    trace.FromContext(ctx),
		OccurredAt: c.now().UTC(),
	}
}

// publish is best effort: the mutation already happened and was reported.
func (c *Controller) publish(ctx context.Context, ev mqcontracts.WorkflowEventPayload) {
	if c.events == nil {
		return
	}
	if err := c.events.Publish(context.WithoutCancel(ctx), ev.RoutingKey(), ev); err != nil {
		c.log(ctx).Warn("Failed to publish workflow event",
			zap.String("routing_key", ev.RoutingKey()),
			zap.String("event_id", ev.EventID),
			zap.Error(err),
		)
	}
}

// write detaches a mutating store call from the caller's cancellation so an
// issued write is never abandoned halfway.
func write(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
