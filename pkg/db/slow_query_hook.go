package db

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"projectflow/pkg/metrics"
	"projectflow/pkg/trace"
)

const defaultSlowThreshold = 100 * time.Millisecond

type queryStartKey struct{}

type queryStart struct {
	at  time.Time
	sql string
}

// SlowQueryTracer 慢查询监控 Tracer
type SlowQueryTracer struct {
	logger        *zap.Logger
	slowThreshold time.Duration
	now           func() time.Time
}

// NewSlowQueryTracer 创建慢查询 Tracer，阈值为 0 时默认 100ms
func NewSlowQueryTracer(logger *zap.Logger, slowThreshold time.Duration) *SlowQueryTracer {
	if slowThreshold <= 0 {
		slowThreshold = defaultSlowThreshold
	}
	return &SlowQueryTracer{
		logger:        logger,
		slowThreshold: slowThreshold,
		now:           time.Now,
	}
}

// TraceQueryStart 查询开始时的钩子
func (t *SlowQueryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, queryStartKey{}, queryStart{at: t.now(), sql: data.SQL})
}

// TraceQueryEnd 查询结束时的钩子
func (t *SlowQueryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	start, ok := ctx.Value(queryStartKey{}).(queryStart)
	if !ok {
		return
	}

	duration := t.now().Sub(start.at)
	if duration <= t.slowThreshold {
		return
	}

	t.logger.Warn("slow-query",
		zap.String("sql", truncateSQL(start.sql, 200)),
		zap.Duration("took", duration),
		zap.String("command_tag", data.CommandTag.String()),
		zap.String("trace_id", trace.FromContext(ctx)),
		zap.Error(data.Err),
	)
	metrics.IncrementSlowQuery(commandName(start.sql), duration)
}

// commandName 取 SQL 的首个关键字作为指标标签，避免高基数
func commandName(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "unknown"
	}
	cmd := strings.ToUpper(fields[0])
	if cmd == "WITH" {
		return "WITH"
	}
	return strings.TrimRight(cmd, "(;")
}

// truncateSQL 截断 SQL 语句（避免日志过长）
func truncateSQL(sql string, n int) string {
	sql = strings.Join(strings.Fields(sql), " ")
	if len(sql) > n {
		return sql[:n] + "..."
	}
	return sql
}
