package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"projectflow/pkg/logger"
	"projectflow/pkg/metrics"

	"go.uber.org/zap"
)

// Publisher is satisfied by *mq.Publisher.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// Spool publishes directly and falls back to the outbox when the broker
// refuses. A spooled event counts as delivered for the caller; the
// Dispatcher owns it from then on.
type Spool struct {
	direct Publisher
	store  Store
	logger *zap.Logger
}

// NewSpool wraps direct. A nil direct publisher spools every event.
func NewSpool(direct Publisher, store Store, logger *zap.Logger) *Spool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Spool{direct: direct, store: store, logger: logger}
}

func (s *Spool) Publish(ctx context.Context, routingKey string, payload any) error {
	var cause error
	if s.direct != nil {
		if cause = s.direct.Publish(ctx, routingKey, payload); cause == nil {
			return nil
		}
	} else {
		cause = errors.New("no broker connection")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event for outbox: %w", err)
	}
	e := &Event{
		EventID:    eventID(body),
		RoutingKey: routingKey,
		Payload:    body,
		Status:     StatusPending,
		LastError:  cause.Error(),
	}
	if err := s.store.Insert(ctx, e); err != nil {
		return errors.Join(cause, fmt.Errorf("spool event: %w", err))
	}

	metrics.RecordOutboxEvent("spooled")
	logger.WithTrace(ctx, s.logger).Warn("Publish failed, event spooled to outbox",
		zap.Int64("outbox_id", e.ID),
		zap.String("event_id", e.EventID),
		zap.String("routing_key", routingKey),
		zap.NamedError("cause", cause),
	)
	return nil
}

func eventID(body []byte) string {
	var head struct {
		EventID string `json:"event_id"`
	}
	_ = json.Unmarshal(body, &head)
	return head.EventID
}
