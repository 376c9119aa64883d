package db

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestCommandName(t *testing.T) {
	cases := map[string]string{
		"SELECT id FROM tasks":        "SELECT",
		"  update tasks SET x = 1":    "UPDATE",
		"with cte as (select 1) ...":  "WITH",
		"":                            "unknown",
		"INSERT INTO projects(a) ...": "INSERT",
	}
	for sql, want := range cases {
		if got := commandName(sql); got != want {
			t.Fatalf("commandName(%q) = %q, want %q", sql, got, want)
		}
	}
}

func TestTruncateSQL(t *testing.T) {
	if got := truncateSQL("SELECT\n  id\n  FROM tasks", 200); got != "SELECT id FROM tasks" {
		t.Fatalf("unexpected collapse: %q", got)
	}
	if got := truncateSQL("SELECT 1234567890", 6); got != "SELECT..." {
		t.Fatalf("unexpected truncate: %q", got)
	}
}

func TestSlowQueryTracer_LogsOnlySlowQueries(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	tracer := NewSlowQueryTracer(zap.New(core), 50*time.Millisecond)

	clock := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	tracer.now = func() time.Time { return clock }

	ctx := tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})
	clock = clock.Add(10 * time.Millisecond)
	tracer.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{})
	if logs.Len() != 0 {
		t.Fatalf("fast query must not be logged")
	}

	ctx = tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "UPDATE tasks SET status = $1"})
	clock = clock.Add(80 * time.Millisecond)
	tracer.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{})
	if logs.Len() != 1 {
		t.Fatalf("expected one slow-query log, got %d", logs.Len())
	}
	entry := logs.All()[0]
	if entry.Message != "slow-query" || entry.ContextMap()["sql"] != "UPDATE tasks SET status = $1" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
}

func TestSlowQueryTracer_DefaultThreshold(t *testing.T) {
	if tr := NewSlowQueryTracer(zap.NewNop(), 0); tr.slowThreshold != defaultSlowThreshold {
		t.Fatalf("expected default threshold, got %v", tr.slowThreshold)
	}
}
