package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"projectflow/pkg/metrics"
	"projectflow/pkg/trace"

	"go.uber.org/zap"
)

// Dispatcher 负责从 outbox 中读取事件并发布到 MQ
type Dispatcher struct {
	store      Store
	publisher  Publisher
	logger     *zap.Logger
	maxRetries int
	interval   time.Duration
	batchSize  int
}

func NewDispatcher(store Store, publisher Publisher, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		store:      store,
		publisher:  publisher,
		logger:     logger,
		maxRetries: 5,               // 默认最大重试5次
		interval:   5 * time.Second, // 默认每5秒扫描一次
		batchSize:  100,             // 默认每次处理100个事件
	}
}

// WithMaxRetries 设置最大重试次数
func (d *Dispatcher) WithMaxRetries(maxRetries int) *Dispatcher {
	if maxRetries > 0 {
		d.maxRetries = maxRetries
	}
	return d
}

// WithInterval 设置扫描间隔
func (d *Dispatcher) WithInterval(interval time.Duration) *Dispatcher {
	if interval > 0 {
		d.interval = interval
	}
	return d
}

// WithBatchSize 设置批次大小
func (d *Dispatcher) WithBatchSize(batchSize int) *Dispatcher {
	if batchSize > 0 {
		d.batchSize = batchSize
	}
	return d
}

// Start 启动 Dispatcher，阻塞直到 ctx 取消（在 goroutine 中运行）
func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info("Starting Outbox Dispatcher",
		zap.Int("max_retries", d.maxRetries),
		zap.Duration("interval", d.interval),
		zap.Int("batch_size", d.batchSize),
	)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Outbox Dispatcher stopped")
			return
		case <-ticker.C:
			if _, err := d.DispatchOnce(ctx); err != nil {
				d.logger.Error("Failed to get pending events", zap.Error(err))
			}
		}
	}
}

// DispatchOnce publishes one batch of due events and returns how many were
// sent. Per-event failures are recorded on the event, not returned.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (int, error) {
	events, err := d.store.Pending(ctx, d.batchSize)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil // 没有待处理的事件
	}

	d.logger.Debug("Processing pending events", zap.Int("count", len(events)))

	sent := 0
	for _, event := range events {
		if err := d.publishEvent(ctx, event); err != nil {
			d.logger.Warn("Failed to publish outbox event",
				zap.Int64("outbox_id", event.ID),
				zap.String("routing_key", event.RoutingKey),
				zap.Int("retry_count", event.RetryCount+1),
				zap.Error(err),
			)
			outcome := "retry"
			if event.RetryCount+1 >= d.maxRetries {
				outcome = "failed"
			}
			metrics.RecordOutboxEvent(outcome)
			if err := d.store.MarkFailed(ctx, event.ID, d.maxRetries, err.Error()); err != nil {
				d.logger.Error("Failed to mark event as failed",
					zap.Int64("outbox_id", event.ID),
					zap.Error(err),
				)
			}
			continue
		}

		metrics.RecordOutboxEvent("sent")
		sent++
		if err := d.store.MarkSent(ctx, event.ID); err != nil {
			// 事件会被再次发布，消费端按 event_id 去重
			d.logger.Error("Failed to mark event as sent",
				zap.Int64("outbox_id", event.ID),
				zap.Error(err),
			)
		}
	}
	return sent, nil
}

// publishEvent 发布单个事件到 MQ，沿用事件自带的 trace_id
func (d *Dispatcher) publishEvent(ctx context.Context, event *Event) error {
	ctx = withPayloadTrace(ctx, event.Payload)
	if err := d.publisher.Publish(ctx, event.RoutingKey, event.Payload); err != nil {
		return fmt.Errorf("failed to publish to MQ: %w", err)
	}
	return nil
}

func withPayloadTrace(ctx context.Context, payload json.RawMessage) context.Context {
	var head struct {
		TraceID string `json:"trace_id"`
	}
	if err := json.Unmarshal(payload, &head); err != nil || head.TraceID == "" {
		return ctx
	}
	return trace.WithContext(ctx, head.TraceID)
}
