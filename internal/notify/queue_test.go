package notify

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestQueue(t *testing.T) (*Queue, *ManualScheduler) {
	t.Helper()
	s := NewManualScheduler()
	seq := 0
	q := NewQueue(WithScheduler(s))
	q.newID = func() string {
		seq++
		return fmt.Sprintf("n%d", seq)
	}
	return q, s
}

func activeIDs(q *Queue) []string {
	var out []string
	for _, n := range q.Active() {
		out = append(out, n.ID)
	}
	return out
}

func TestEnqueue_ExpiresAfterDuration(t *testing.T) {
	q, s := newTestQueue(t)

	id := q.Enqueue("Task marked as completed", Success, 2000*time.Millisecond, TopRight)
	if _, ok := q.Get(id); !ok {
		t.Fatalf("expected notification present immediately")
	}

	s.Advance(1999 * time.Millisecond)
	if _, ok := q.Get(id); !ok {
		t.Fatalf("expected notification present before its duration elapsed")
	}

	s.Advance(time.Millisecond)
	if _, ok := q.Get(id); ok {
		t.Fatalf("expected notification removed after 2000ms")
	}
	if q.Len() != 0 {
		t.Fatalf("expected empty queue, got %d", q.Len())
	}
}

func TestEnqueue_RealTimerExpires(t *testing.T) {
	q := NewQueue()
	id := q.Enqueue("short", Info, 20*time.Millisecond, TopLeft)
	if _, ok := q.Get(id); !ok {
		t.Fatalf("expected notification present immediately")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if q.Len() == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("notification did not expire")
}

func TestEnqueue_ZeroDurationIsSticky(t *testing.T) {
	q, s := newTestQueue(t)
	id := q.Enqueue("sticky", Warning, 0, BottomLeft)
	if s.Pending() != 0 {
		t.Fatalf("sticky notification must not schedule a timer")
	}
	s.Advance(time.Hour)
	n, ok := q.Get(id)
	if !ok || !n.Sticky() {
		t.Fatalf("expected sticky notification to remain")
	}
}

func TestDismiss_IsIdempotent(t *testing.T) {
	q, s := newTestQueue(t)
	a := q.Enqueue("a", Info, time.Second, TopRight)
	b := q.Enqueue("b", Info, time.Second, TopRight)

	if !q.Dismiss(a) {
		t.Fatalf("expected first dismiss to remove")
	}
	if q.Dismiss(a) {
		t.Fatalf("expected second dismiss to be a no-op")
	}
	if got := activeIDs(q); !reflect.DeepEqual(got, []string{b}) {
		t.Fatalf("other entries affected: %v", got)
	}
	if s.Pending() != 1 {
		t.Fatalf("expected dismissed timer cancelled, pending=%d", s.Pending())
	}

	// The cancelled timer never fires; b still expires normally.
	s.Advance(time.Second)
	if q.Len() != 0 {
		t.Fatalf("expected b expired")
	}
}

func TestDismiss_UnknownID(t *testing.T) {
	q, _ := newTestQueue(t)
	if q.Dismiss("missing") {
		t.Fatalf("expected false for unknown id")
	}
}

func TestClearAll_CancelsTimers(t *testing.T) {
	q, s := newTestQueue(t)
	q.Enqueue("a", Info, time.Second, TopRight)
	q.Enqueue("b", Error, 0, TopRight)
	q.Enqueue("c", Success, 3*time.Second, BottomCenter)

	q.ClearAll()
	if q.Len() != 0 {
		t.Fatalf("expected empty queue")
	}
	if s.Pending() != 0 {
		t.Fatalf("expected timers cancelled, pending=%d", s.Pending())
	}

	id := q.Enqueue("after clear", Info, time.Second, TopRight)
	s.Advance(5 * time.Second)
	if _, ok := q.Get(id); ok {
		t.Fatalf("expected new notification to expire normally")
	}
}

func TestPush_DefaultsAndOptions(t *testing.T) {
	q, _ := newTestQueue(t)

	id := q.Success("saved")
	n, _ := q.Get(id)
	if n.Duration != DefaultDuration || n.Position != DefaultPosition || n.Severity != Success {
		t.Fatalf("defaults not applied: %+v", n)
	}

	id = q.Error("boom", Sticky(), At(BottomCenter))
	n, _ = q.Get(id)
	if n.Duration != 0 || n.Position != BottomCenter || n.Severity != Error {
		t.Fatalf("options not applied: %+v", n)
	}

	id = q.Enqueue("odd", "fatal", -time.Second, "middle")
	n, _ = q.Get(id)
	if n.Severity != Info || n.Position != DefaultPosition || n.Duration != 0 {
		t.Fatalf("normalisation failed: %+v", n)
	}
}

func TestWithDefaults(t *testing.T) {
	q := NewQueue(WithScheduler(NewManualScheduler()), WithDefaults(3*time.Second, BottomRight))
	n, _ := q.Get(q.Info("hello"))
	if n.Duration != 3*time.Second || n.Position != BottomRight {
		t.Fatalf("queue defaults not applied: %+v", n)
	}
}

func TestStacks_PreserveEnqueueOrderPerPosition(t *testing.T) {
	q, _ := newTestQueue(t)
	q.Enqueue("1", Info, 0, BottomLeft)
	q.Enqueue("2", Info, 0, TopRight)
	q.Enqueue("3", Info, 0, BottomLeft)
	q.Enqueue("4", Info, 0, TopRight)
	q.Enqueue("5", Info, 0, TopRight)

	stacks := q.Stacks()
	if len(stacks) != 2 {
		t.Fatalf("expected 2 stacks, got %d", len(stacks))
	}
	if stacks[0].Position != TopRight || stacks[1].Position != BottomLeft {
		t.Fatalf("unexpected stack order: %s, %s", stacks[0].Position, stacks[1].Position)
	}

	var msgs []string
	for i, p := range stacks[0].Items {
		if p.Index != i {
			t.Fatalf("index %d out of place: %d", i, p.Index)
		}
		msgs = append(msgs, p.Notification.Message)
	}
	if !reflect.DeepEqual(msgs, []string{"2", "4", "5"}) {
		t.Fatalf("top-right stack order: %v", msgs)
	}
}

func TestSubscribe_ReceivesSnapshots(t *testing.T) {
	q, s := newTestQueue(t)

	var got []Snapshot
	cancel := q.Subscribe(func(snap Snapshot) { got = append(got, snap) })

	id := q.Enqueue("a", Info, time.Second, TopRight)
	q.Enqueue("b", Info, 0, TopRight)
	s.Advance(time.Second)
	q.Dismiss(id) // already expired: no snapshot

	if len(got) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Revision <= got[i-1].Revision {
			t.Fatalf("revisions not increasing")
		}
	}
	if len(got[2].Items) != 1 || got[2].Items[0].Message != "b" {
		t.Fatalf("last snapshot wrong: %+v", got[2])
	}

	cancel()
	cancel()
	q.Enqueue("c", Info, 0, TopRight)
	if len(got) != 3 {
		t.Fatalf("cancelled subscriber still notified")
	}
}

func TestSubscribe_CallbackMayReenterQueue(t *testing.T) {
	q, _ := newTestQueue(t)
	q.Subscribe(func(snap Snapshot) {
		for _, n := range snap.Items {
			if n.Severity == Warning {
				q.Dismiss(n.ID)
			}
		}
	})
	q.Enqueue("dropped", Warning, 0, TopRight)
	if q.Len() != 0 {
		t.Fatalf("expected re-entrant dismiss to succeed")
	}
}

func TestQueue_ConcurrentUse(t *testing.T) {
	q := NewQueue(WithScheduler(NewManualScheduler()))
	var wg sync.WaitGroup
	ids := make(chan string, 200)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids <- q.Enqueue(fmt.Sprintf("m%d", i), Info, 0, TopRight)
		}(i)
	}
	wg.Wait()
	close(ids)

	if q.Len() != 100 {
		t.Fatalf("expected 100 entries, got %d", q.Len())
	}
	seen := map[string]bool{}
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
		wg.Add(2)
		go func(id string) { defer wg.Done(); q.Dismiss(id) }(id)
		go func(id string) { defer wg.Done(); q.Dismiss(id) }(id)
	}
	wg.Wait()
	if q.Len() != 0 {
		t.Fatalf("expected all dismissed, got %d", q.Len())
	}
}

func TestNotification_JSONDurationInMilliseconds(t *testing.T) {
	n := Notification{ID: "x", Message: "hi", Severity: Info, Position: TopRight, Duration: 2 * time.Second}
	b, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"duration":2000`) {
		t.Fatalf("expected duration in ms, got %s", b)
	}
}
