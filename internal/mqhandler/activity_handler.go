// Package mqhandler holds the worker's message handlers.
package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	mqcontracts "projectflow/contracts/mq"
	"projectflow/internal/model"
	"projectflow/internal/repository"
	"projectflow/pkg/logger"
	"projectflow/pkg/metrics"
	"projectflow/pkg/mq"
	"projectflow/pkg/util"

	"go.uber.org/zap"
)

const activityScope = "activity"

// DefaultMaxRetries is how often a retryable failure is redelivered before
// the message is dead-lettered.
const DefaultMaxRetries = 5

// DeadLetterer is satisfied by *mq.Publisher.
type DeadLetterer interface {
	PublishToDLQ(ctx context.Context, routingKey string, payload []byte, originalError string) error
}

// OnceGuard is satisfied by *util.Deduper.
type OnceGuard interface {
	AcquireOnce(ctx context.Context, scope, id string) bool
	Release(ctx context.Context, scope, id string)
}

// RetryTracker is satisfied by *util.RetryCounter.
type RetryTracker interface {
	IncrementAndGet(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
}

var errBadPayload = errors.New("bad_payload")

// ActivityHandler records every workflow event into the activity log.
type ActivityHandler struct {
	store      repository.ActivityStore
	dlq        DeadLetterer
	deduper    OnceGuard
	retries    RetryTracker
	maxRetries int64
	logger     *zap.Logger
}

func NewActivityHandler(store repository.ActivityStore, dlq DeadLetterer, deduper OnceGuard, retries RetryTracker, logger *zap.Logger) *ActivityHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityHandler{
		store:      store,
		dlq:        dlq,
		deduper:    deduper,
		retries:    retries,
		maxRetries: DefaultMaxRetries,
		logger:     logger,
	}
}

// WithMaxRetries overrides DefaultMaxRetries.
func (h *ActivityHandler) WithMaxRetries(n int64) *ActivityHandler {
	if n > 0 {
		h.maxRetries = n
	}
	return h
}

// Handle is an mq.MessageHandler. It acks duplicates and poison messages
// (after dead-lettering them) and nacks retryable store failures until the
// retry budget runs out.
func (h *ActivityHandler) Handle(ctx context.Context, msg mq.Message) error {
	log := logger.WithTrace(ctx, h.logger).With(zap.String("routing_key", msg.RoutingKey))

	ev, err := decodeEvent(msg.Body)
	if err != nil {
		log.Error("Invalid workflow event, sending to DLQ",
			zap.Error(err),
			zap.String("raw_payload", string(msg.Body)),
		)
		return h.deadLetter(ctx, log, msg, err)
	}
	log = log.With(zap.String("event_id", ev.EventID))

	// Step 1: dedup
	if h.deduper != nil && !h.deduper.AcquireOnce(ctx, activityScope, ev.EventID) {
		metrics.RecordWorkflowEventConsumed(msg.RoutingKey, "duplicate")
		return nil
	}

	// Step 2: record
	inserted, err := h.store.RecordActivity(ctx, activityFromEvent(ev))
	if err != nil {
		return h.handleStoreError(ctx, log, msg, ev, err)
	}
	h.resetRetries(ctx, ev.EventID)

	if !inserted {
		log.Info("Workflow event already recorded")
		metrics.RecordWorkflowEventConsumed(msg.RoutingKey, "duplicate")
		return nil
	}
	log.Info("Workflow event recorded",
		zap.String("kind", ev.Kind),
		zap.String("action", ev.Action),
		zap.String("id", ev.ID),
	)
	metrics.RecordWorkflowEventConsumed(msg.RoutingKey, "recorded")
	return nil
}

func (h *ActivityHandler) handleStoreError(ctx context.Context, log *zap.Logger, msg mq.Message, ev mqcontracts.WorkflowEventPayload, err error) error {
	isRetryable, errType := util.IsRetryableError(err)
	if errors.Is(err, model.ErrStoreUnavailable) {
		isRetryable, errType = true, "store_unavailable"
	}

	var retry int64
	if h.retries != nil {
		retry, _ = h.retries.IncrementAndGet(ctx, util.FormatRetryKey(activityScope, ev.EventID))
	}
	log.Error("Failed to record workflow event",
		zap.String("error_type", errType),
		zap.Bool("retryable", isRetryable),
		zap.Int64("retry", retry),
		zap.Error(err),
	)

	if !isRetryable || retry > h.maxRetries {
		h.resetRetries(ctx, ev.EventID)
		return h.deadLetter(ctx, log, msg, fmt.Errorf("%s: %w", errType, err))
	}

	// 释放去重锁，让重投的消息可以再次处理
	if h.deduper != nil {
		h.deduper.Release(ctx, activityScope, ev.EventID)
	}
	metrics.RecordWorkflowEventConsumed(msg.RoutingKey, "failed")
	return err // nack → 重试
}

// deadLetter acks the message after parking it on the DLQ. If the DLQ
// publish fails the message is nacked instead so it is not lost.
func (h *ActivityHandler) deadLetter(ctx context.Context, log *zap.Logger, msg mq.Message, cause error) error {
	if h.dlq != nil {
		if err := h.dlq.PublishToDLQ(ctx, msg.RoutingKey, msg.Body, cause.Error()); err != nil {
			log.Error("Failed to publish to DLQ", zap.Error(err))
			metrics.RecordWorkflowEventConsumed(msg.RoutingKey, "failed")
			return fmt.Errorf("dead letter: %w", err)
		}
	}
	metrics.RecordWorkflowEventConsumed(msg.RoutingKey, "dead_lettered")
	return nil
}

func (h *ActivityHandler) resetRetries(ctx context.Context, eventID string) {
	if h.retries != nil {
		_ = h.retries.Reset(ctx, util.FormatRetryKey(activityScope, eventID))
	}
}

func decodeEvent(raw json.RawMessage) (mqcontracts.WorkflowEventPayload, error) {
	var ev mqcontracts.WorkflowEventPayload
	if err := json.Unmarshal(raw, &ev); err != nil {
		return ev, fmt.Errorf("%w: %w", errBadPayload, err)
	}
	switch {
	case ev.EventID == "":
		return ev, fmt.Errorf("%w: missing event_id", errBadPayload)
	case !model.Kind(ev.Kind).Valid():
		return ev, fmt.Errorf("%w: unknown kind %q", errBadPayload, ev.Kind)
	case !slices.Contains(mqcontracts.Actions, ev.Action):
		return ev, fmt.Errorf("%w: unknown action %q", errBadPayload, ev.Action)
	case ev.ID == "":
		return ev, fmt.Errorf("%w: missing id", errBadPayload)
	}
	return ev, nil
}

func activityFromEvent(ev mqcontracts.WorkflowEventPayload) model.Activity {
	return model.Activity{
		EventID:    ev.EventID,
		Kind:       model.Kind(ev.Kind),
		Action:     ev.Action,
		EntityID:   ev.ID,
		ProjectID:  ev.ProjectID,
		Status:     ev.Status,
		Message:    describe(ev),
		TraceID:    ev.TraceID,
		OccurredAt: ev.OccurredAt,
	}
}

// describe renders e.g. `Task "Ship it" marked as in progress`.
func describe(ev mqcontracts.WorkflowEventPayload) string {
	subject := model.Kind(ev.Kind).Title()
	if ev.Name != "" {
		subject = fmt.Sprintf("%s %q", subject, ev.Name)
	}
	switch ev.Action {
	case mqcontracts.ActionStatusChanged:
		if ev.PrevStatus != "" && ev.PrevStatus != ev.Status {
			return fmt.Sprintf("%s moved from %s to %s", subject,
				model.HumanStatus(ev.PrevStatus), model.HumanStatus(ev.Status))
		}
		return fmt.Sprintf("%s marked as %s", subject, model.HumanStatus(ev.Status))
	default:
		return fmt.Sprintf("%s %s", subject, ev.Action)
	}
}
