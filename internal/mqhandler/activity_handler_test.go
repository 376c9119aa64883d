package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	mqcontracts "projectflow/contracts/mq"
	"projectflow/internal/model"
	"projectflow/internal/repository"
	"projectflow/pkg/mq"
)

type fakeDLQ struct {
	mu      sync.Mutex
	keys    []string
	reasons []string
	err     error
}

func (f *fakeDLQ) PublishToDLQ(ctx context.Context, routingKey string, payload []byte, originalError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, routingKey)
	f.reasons = append(f.reasons, originalError)
	return nil
}

type fakeGuard struct {
	seen     map[string]bool
	released []string
}

func (g *fakeGuard) AcquireOnce(ctx context.Context, scope, id string) bool {
	key := scope + ":" + id
	if g.seen[key] {
		return false
	}
	g.seen[key] = true
	return true
}

func (g *fakeGuard) Release(ctx context.Context, scope, id string) {
	delete(g.seen, scope+":"+id)
	g.released = append(g.released, id)
}

type fakeRetries struct{ counts map[string]int64 }

func (r *fakeRetries) IncrementAndGet(ctx context.Context, key string) (int64, error) {
	r.counts[key]++
	return r.counts[key], nil
}

func (r *fakeRetries) Reset(ctx context.Context, key string) error {
	delete(r.counts, key)
	return nil
}

// failingStore fails RecordActivity with err until calls runs out.
type failingStore struct {
	*repository.Memory
	err   error
	calls int
}

func (s *failingStore) RecordActivity(ctx context.Context, a model.Activity) (bool, error) {
	if s.calls > 0 {
		s.calls--
		return false, s.err
	}
	return s.Memory.RecordActivity(ctx, a)
}

func message(t *testing.T, ev mqcontracts.WorkflowEventPayload) mq.Message {
	t.Helper()
	body, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return mq.Message{RoutingKey: ev.RoutingKey(), Body: body}
}

func statusEvent() mqcontracts.WorkflowEventPayload {
	return mqcontracts.WorkflowEventPayload{
		EventID:    "evt-1",
		Kind:       "task",
		Action:     mqcontracts.ActionStatusChanged,
		ID:         "task-1",
		ProjectID:  "proj-1",
		Status:     "in-progress",
		PrevStatus: "todo",
		Name:       "Ship it",
		OccurredAt: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC),
	}
}

type fixture struct {
	handler *ActivityHandler
	mem     *repository.Memory
	dlq     *fakeDLQ
	guard   *fakeGuard
	retries *fakeRetries
}

func newFixture(store repository.ActivityStore, mem *repository.Memory) *fixture {
	f := &fixture{
		mem:     mem,
		dlq:     &fakeDLQ{},
		guard:   &fakeGuard{seen: map[string]bool{}},
		retries: &fakeRetries{counts: map[string]int64{}},
	}
	f.handler = NewActivityHandler(store, f.dlq, f.guard, f.retries, nil)
	return f
}

func TestHandle_RecordsActivity(t *testing.T) {
	mem := repository.NewMemory()
	f := newFixture(mem, mem)

	if err := f.handler.Handle(context.Background(), message(t, statusEvent())); err != nil {
		t.Fatalf("handle: %v", err)
	}
	got, err := mem.ListActivity(context.Background(), "proj-1", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one activity, got %d", len(got))
	}
	a := got[0]
	if a.EventID != "evt-1" || a.Kind != model.KindTask || a.EntityID != "task-1" || a.Status != "in-progress" {
		t.Fatalf("unexpected activity: %+v", a)
	}
	if a.Message != `Task "Ship it" moved from todo to in progress` {
		t.Fatalf("unexpected message %q", a.Message)
	}
	if len(f.dlq.keys) != 0 {
		t.Fatalf("nothing should be dead-lettered")
	}
}

func TestHandle_DuplicateIsAcked(t *testing.T) {
	mem := repository.NewMemory()
	f := newFixture(mem, mem)
	msg := message(t, statusEvent())

	for i := 0; i < 2; i++ {
		if err := f.handler.Handle(context.Background(), msg); err != nil {
			t.Fatalf("handle #%d: %v", i, err)
		}
	}
	// Without the Redis guard the store's event_id key still de-duplicates.
	f.handler.deduper = nil
	if err := f.handler.Handle(context.Background(), msg); err != nil {
		t.Fatalf("handle without guard: %v", err)
	}
	got, _ := mem.ListActivity(context.Background(), "proj-1", 10)
	if len(got) != 1 {
		t.Fatalf("expected exactly one activity, got %d", len(got))
	}
}

func TestHandle_PoisonMessagesGoToDLQ(t *testing.T) {
	cases := map[string][]byte{
		"not json":       []byte("{"),
		"missing id":     []byte(`{"kind":"task","action":"created","id":"t"}`),
		"unknown kind":   []byte(`{"event_id":"e","kind":"habit","action":"created","id":"t"}`),
		"unknown action": []byte(`{"event_id":"e","kind":"task","action":"archived","id":"t"}`),
	}
	for name, body := range cases {
		mem := repository.NewMemory()
		f := newFixture(mem, mem)
		err := f.handler.Handle(context.Background(), mq.Message{RoutingKey: "task.created", Body: body})
		if err != nil {
			t.Fatalf("%s: poison message must be acked, got %v", name, err)
		}
		if len(f.dlq.reasons) != 1 || !strings.HasPrefix(f.dlq.reasons[0], "bad_payload") {
			t.Fatalf("%s: expected one DLQ publish, got %v", name, f.dlq.reasons)
		}
	}
}

func TestHandle_RetryableFailureIsNacked(t *testing.T) {
	mem := repository.NewMemory()
	store := &failingStore{Memory: mem, err: model.Unavailable(model.KindProject, errors.New("dial tcp: connection refused")), calls: 1}
	f := newFixture(store, mem)
	msg := message(t, statusEvent())

	if err := f.handler.Handle(context.Background(), msg); err == nil {
		t.Fatalf("expected nack on retryable failure")
	}
	if len(f.guard.released) != 1 {
		t.Fatalf("dedup lock must be released for the retry")
	}

	if err := f.handler.Handle(context.Background(), msg); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if len(f.retries.counts) != 0 {
		t.Fatalf("retry counter must reset after success: %v", f.retries.counts)
	}
	got, _ := mem.ListActivity(context.Background(), "proj-1", 10)
	if len(got) != 1 {
		t.Fatalf("expected activity after redelivery")
	}
}

func TestHandle_RetryBudgetExhausted(t *testing.T) {
	mem := repository.NewMemory()
	store := &failingStore{Memory: mem, err: model.Unavailable(model.KindProject, errors.New("timeout")), calls: 10}
	f := newFixture(store, mem)
	f.handler.WithMaxRetries(2)
	msg := message(t, statusEvent())

	for i := 0; i < 2; i++ {
		if err := f.handler.Handle(context.Background(), msg); err == nil {
			t.Fatalf("attempt %d: expected nack", i+1)
		}
	}
	if err := f.handler.Handle(context.Background(), msg); err != nil {
		t.Fatalf("third attempt must be dead-lettered and acked, got %v", err)
	}
	if len(f.dlq.keys) != 1 || f.dlq.keys[0] != "task.status_changed" {
		t.Fatalf("expected one DLQ publish, got %v", f.dlq.keys)
	}
}

func TestHandle_NonRetryableFailureIsDeadLettered(t *testing.T) {
	mem := repository.NewMemory()
	store := &failingStore{Memory: mem, err: model.StoreFailure(model.KindProject, "", errors.New("constraint")), calls: 1}
	f := newFixture(store, mem)

	if err := f.handler.Handle(context.Background(), message(t, statusEvent())); err != nil {
		t.Fatalf("expected ack after dead-lettering, got %v", err)
	}
	if len(f.dlq.keys) != 1 {
		t.Fatalf("expected DLQ publish")
	}
}

func TestHandle_DLQFailureNacks(t *testing.T) {
	mem := repository.NewMemory()
	f := newFixture(mem, mem)
	f.dlq.err = errors.New("channel closed")

	err := f.handler.Handle(context.Background(), mq.Message{RoutingKey: "task.created", Body: []byte("{")})
	if err == nil {
		t.Fatalf("message must not be acked when the DLQ publish fails")
	}
}

func TestDescribe(t *testing.T) {
	cases := []struct {
		ev   mqcontracts.WorkflowEventPayload
		want string
	}{
		{mqcontracts.WorkflowEventPayload{Kind: "project", Action: "created", Name: "Apollo"}, `Project "Apollo" created`},
		{mqcontracts.WorkflowEventPayload{Kind: "milestone", Action: "deleted"}, "Milestone deleted"},
		{mqcontracts.WorkflowEventPayload{Kind: "task", Action: "status_changed", Status: "completed"}, "Task marked as completed"},
	}
	for _, c := range cases {
		if got := describe(c.ev); got != c.want {
			t.Fatalf("describe(%+v) = %q, want %q", c.ev, got, c.want)
		}
	}
}
