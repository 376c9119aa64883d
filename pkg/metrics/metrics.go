package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 工作流操作计数
	WorkflowOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_operations_total",
			Help: "Workflow controller operations by entity kind, operation and outcome",
		},
		[]string{"kind", "op", "outcome"}, // outcome: success, invalid, not_found, conflict, unavailable, failed
	)

	// 通知入队计数
	NotificationsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_enqueued_total",
			Help: "Notifications enqueued by severity",
		},
		[]string{"severity"},
	)

	// 当前活跃通知数（所有会话）
	NotificationsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notifications_active",
			Help: "Notifications currently displayed across all sessions",
		},
	)

	// 数据库查询延迟（秒）
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation", "table"},
	)

	// 慢查询
	SlowQueries = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_slow_query_duration_seconds",
			Help:    "Duration of queries slower than the configured threshold",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 8), // 100ms to ~12s
		},
		[]string{"command"},
	)

	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// MQ 消费延迟（毫秒）
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"routing_key", "queue"},
	)

	// 工作流事件消费计数
	WorkflowEventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_events_consumed_total",
			Help: "Workflow events handled by the worker",
		},
		[]string{"routing_key", "outcome"}, // outcome: recorded, duplicate, dead_lettered, failed
	)

	// Outbox 事件计数
	OutboxEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_events_total",
			Help: "Workflow events that went through the outbox",
		},
		[]string{"outcome"}, // outcome: spooled, sent, retry, failed
	)

	// 存储熔断器状态 0=closed 1=open 2=half-open
	StoreBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "store_circuit_breaker_state",
			Help: "Entity store circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
	)
)

// RecordWorkflowOperation 记录工作流操作结果
func RecordWorkflowOperation(kind, op, outcome string) {
	WorkflowOperations.WithLabelValues(kind, op, outcome).Inc()
}

// RecordNotificationEnqueued 记录通知入队
func RecordNotificationEnqueued(severity string) {
	NotificationsEnqueued.WithLabelValues(severity).Inc()
	NotificationsActive.Inc()
}

// RecordNotificationsRemoved 记录通知移除（过期、关闭或清空）
func RecordNotificationsRemoved(n int) {
	if n > 0 {
		NotificationsActive.Sub(float64(n))
	}
}

// RecordDBQueryDuration 记录数据库查询延迟
func RecordDBQueryDuration(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// IncrementSlowQuery 记录慢查询
func IncrementSlowQuery(command string, duration time.Duration) {
	SlowQueries.WithLabelValues(command).Observe(duration.Seconds())
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordMQConsumeLatency 记录 MQ 消费延迟
func RecordMQConsumeLatency(routingKey, queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue).Observe(float64(duration.Milliseconds()))
}

// RecordWorkflowEventConsumed 记录事件消费结果
func RecordWorkflowEventConsumed(routingKey, outcome string) {
	WorkflowEventsConsumed.WithLabelValues(routingKey, outcome).Inc()
}

// SetStoreBreakerState 记录熔断器状态
func SetStoreBreakerState(state int) {
	StoreBreakerState.Set(float64(state))
}

// RecordOutboxEvent 记录 outbox 事件结果
func RecordOutboxEvent(outcome string) {
	OutboxEvents.WithLabelValues(outcome).Inc()
}
