package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"projectflow/pkg/metrics"
	"projectflow/pkg/trace"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Message is one delivery handed to a MessageHandler.
type Message struct {
	RoutingKey  string
	MessageID   string
	Redelivered bool
	Body        json.RawMessage
}

// MessageHandler processes one message. A nil return acks it; an error
// nacks it back onto the queue. Handlers dead-letter poison messages
// themselves and return nil.
type MessageHandler func(ctx context.Context, msg Message) error

type Consumer struct {
	channel *amqp091.Channel
	queue   amqp091.Queue
	binding string
	handler MessageHandler
	conn    *amqp091.Connection
	logger  *zap.Logger
}

// NewConsumer creates a consumer whose queue is bound to the events
// exchange with binding, which may use topic wildcards. The matching dead
// letter queue is declared alongside.
func NewConsumer(url, queueName, binding string, prefetch int, logger *zap.Logger) (*Consumer, error) {
	conn, err := NewConnection(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	fail := func(format string, err error) (*Consumer, error) {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf(format, err)
	}

	if err := DeclareExchange(ch); err != nil {
		return fail("failed to declare exchange: %w", err)
	}
	if err := DeclareDLQExchange(ch); err != nil {
		return fail("failed to declare DLQ exchange: %w", err)
	}
	if _, err := DeclareDLQQueue(ch, queueName, binding); err != nil {
		return fail("%w", err)
	}

	q, err := ch.QueueDeclare(
		queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fail("failed to declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, binding, ExchangeName, false, nil); err != nil {
		return fail("failed to bind queue: %w", err)
	}

	if prefetch > 0 {
		if err := ch.Qos(prefetch, 0, false); err != nil {
			return fail("failed to set qos: %w", err)
		}
	}

	logger.Info("Consumer initialized",
		zap.String("binding", binding),
		zap.String("queue", queueName),
		zap.String("exchange", ExchangeName),
		zap.Int("prefetch", prefetch),
	)

	return &Consumer{
		conn:    conn,
		channel: ch,
		queue:   q,
		binding: binding,
		logger:  logger,
	}, nil
}

func (c *Consumer) SetHandler(h MessageHandler) {
	c.handler = h
}

func (c *Consumer) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// StartConsuming consumes until ctx is cancelled or the channel closes.
// This method blocks and should be called in a goroutine.
func (c *Consumer) StartConsuming(ctx context.Context) error {
	if c.handler == nil {
		return fmt.Errorf("consumer handler not set")
	}

	deliveries, err := c.channel.Consume(
		c.queue.Name,
		"",
		false, // 手动ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("Consumer started consuming messages",
		zap.String("binding", c.binding),
		zap.String("queue", c.queue.Name),
	)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Consumer stopping", zap.String("queue", c.queue.Name))
			return nil
		case msg, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed for queue %s", c.queue.Name)
			}
			c.handle(ctx, msg)
		}
	}
}

// handle 保证每条消息都会被 ack 或 nack
func (c *Consumer) handle(ctx context.Context, msg amqp091.Delivery) {
	start := time.Now()
	if traceID, ok := msg.Headers[TraceHeader].(string); ok && traceID != "" {
		ctx = trace.WithContext(ctx, traceID)
	} else {
		ctx, _ = trace.Ensure(ctx)
	}
	log := c.logger.With(
		zap.String("routing_key", msg.RoutingKey),
		zap.String("queue", c.queue.Name),
		zap.String("trace_id", trace.FromContext(ctx)),
	)

	log.Debug("Received message",
		zap.String("message_id", msg.MessageId),
		zap.Int("message_size", len(msg.Body)),
	)

	// Panic 恢复：确保即使 handler panic 也能正确处理消息
	defer func() {
		if r := recover(); r != nil {
			log.Error("Handler panic recovered", zap.Any("panic", r))
			if err := msg.Nack(false, !msg.Redelivered); err != nil {
				log.Error("Failed to nack message after panic", zap.Error(err))
			}
		}
	}()

	err := c.handler(ctx, Message{
		RoutingKey:  msg.RoutingKey,
		MessageID:   msg.MessageId,
		Redelivered: msg.Redelivered,
		Body:        msg.Body,
	})
	metrics.RecordMQConsumeLatency(msg.RoutingKey, c.queue.Name, time.Since(start))

	if err != nil {
		// 业务失败 → 拒绝消息并重新入队，让 MQ 重试
		log.Error("Handler error", zap.Error(err))
		if err := msg.Nack(false, true); err != nil {
			log.Error("Failed to nack message", zap.Error(err))
		}
		return
	}

	if err := msg.Ack(false); err != nil {
		log.Error("Failed to ack message", zap.Error(err))
		return
	}
	log.Debug("Message processed successfully")
}
