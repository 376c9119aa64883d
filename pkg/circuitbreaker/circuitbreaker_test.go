package circuitbreaker

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

var errBoom = errors.New("boom")

func fail() error { return errBoom }
func ok() error   { return nil }

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	var changes []string
	cb := NewCircuitBreaker(Config{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Second},
		WithClock(clock.now),
		OnStateChange(func(from, to State) { changes = append(changes, from.String()+"->"+to.String()) }),
	)

	if err := cb.Execute(fail); err != errBoom {
		t.Fatalf("expected fn error, got %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Fatalf("expected closed after one failure")
	}
	cb.Execute(fail)
	if cb.GetState() != StateOpen {
		t.Fatalf("expected open after threshold")
	}

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	if err != ErrCircuitBreakerOpen || called {
		t.Fatalf("open breaker must reject without calling fn")
	}

	clock.advance(time.Second)
	if err := cb.Execute(ok); err != nil {
		t.Fatalf("expected half-open probe to pass, got %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Fatalf("expected closed after successful probe, got %s", cb.GetState())
	}

	want := []string{"closed->open", "open->half-open", "half-open->closed"}
	if !reflect.DeepEqual(changes, want) {
		t.Fatalf("unexpected transitions: %v", changes)
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	cb := NewCircuitBreaker(Config{FailureThreshold: 1, Timeout: time.Second}, WithClock(clock.now))
	cb.Execute(fail)
	clock.advance(time.Second)
	cb.Execute(fail)
	if cb.GetState() != StateOpen {
		t.Fatalf("expected reopen, got %s", cb.GetState())
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(Config{FailureThreshold: 2})
	cb.Execute(fail)
	cb.Execute(ok)
	cb.Execute(fail)
	if cb.GetState() != StateClosed {
		t.Fatalf("non-consecutive failures must not open the breaker")
	}
	cb.Execute(fail)
	if cb.GetState() != StateOpen {
		t.Fatalf("expected open")
	}
	cb.Reset()
	if cb.GetState() != StateClosed {
		t.Fatalf("expected closed after reset")
	}
}

func TestConfig_Defaults(t *testing.T) {
	got := Config{}.withDefaults()
	if !reflect.DeepEqual(got, DefaultConfig()) {
		t.Fatalf("expected defaults, got %+v", got)
	}
}
