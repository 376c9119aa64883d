package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"projectflow/internal/model"
	"projectflow/pkg/circuitbreaker"

	"go.uber.org/zap"
)

// flakyStore fails ListProjects with a store error while down is set.
type flakyStore struct {
	*Memory
	down  bool
	calls int
}

func (f *flakyStore) ListProjects(ctx context.Context, q model.ProjectQuery) ([]model.Project, error) {
	f.calls++
	if f.down {
		return nil, model.StoreFailure(model.KindProject, "", errors.New("connection reset"))
	}
	return f.Memory.ListProjects(ctx, q)
}

func TestGuarded_OpensOnStoreFailuresOnly(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(0, 0)
	inner := &flakyStore{Memory: NewMemory()}
	g := NewGuarded(inner, circuitbreaker.Config{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Minute},
		zap.NewNop(), circuitbreaker.WithClock(func() time.Time { return now }))

	// Domain errors never trip the breaker.
	for i := 0; i < 5; i++ {
		if _, err := g.GetTask(ctx, "missing"); !errors.Is(err, model.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	}
	if g.State() != circuitbreaker.StateClosed {
		t.Fatalf("not-found must not open the breaker")
	}

	inner.down = true
	for i := 0; i < 2; i++ {
		if _, err := g.ListProjects(ctx, model.ProjectQuery{}); !errors.Is(err, model.ErrStore) {
			t.Fatalf("expected store error, got %v", err)
		}
	}
	if g.State() != circuitbreaker.StateOpen {
		t.Fatalf("expected open breaker")
	}

	calls := inner.calls
	_, err := g.ListProjects(ctx, model.ProjectQuery{})
	if !errors.Is(err, model.ErrStoreUnavailable) {
		t.Fatalf("expected unavailable while open, got %v", err)
	}
	if inner.calls != calls {
		t.Fatalf("open breaker must not reach the store")
	}

	inner.down = false
	now = now.Add(time.Minute)
	if _, err := g.ListProjects(ctx, model.ProjectQuery{}); err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if g.State() != circuitbreaker.StateClosed {
		t.Fatalf("expected closed after recovery")
	}
}

func TestGuarded_PassesResultsThrough(t *testing.T) {
	ctx := context.Background()
	g := NewGuarded(NewMemory(), circuitbreaker.DefaultConfig(), zap.NewNop())
	p, err := g.CreateProject(ctx, model.Project{OwnerID: "u1", Name: "P"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	ms, err := g.CreateMilestone(ctx, model.Milestone{ProjectID: p.ID, Name: "M"})
	if err != nil {
		t.Fatalf("create milestone: %v", err)
	}
	if _, err := g.CreateTask(ctx, model.Task{ProjectID: p.ID, MilestoneID: &ms.ID, Title: "T"}); err != nil {
		t.Fatalf("create task: %v", err)
	}
	n, err := g.DeleteMilestone(ctx, ms.ID)
	if err != nil || n != 1 {
		t.Fatalf("delete milestone: %d %v", n, err)
	}
	if err := g.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
