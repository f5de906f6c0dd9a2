package resilience

import (
	"errors"
	"testing"
	"time"
)

func newTestBreaker(threshold int, openTimeout time.Duration) (*CircuitBreaker, *time.Time) {
	b := NewCircuitBreaker("bookmaker-page", CircuitBreakerConfig{
		Enabled:          true,
		FailureThreshold: threshold,
		OpenTimeout:      openTimeout,
		HalfOpenMaxReq:   1,
	})
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }
	return b, &now
}

func TestCircuitBreaker_BasicTransitions(t *testing.T) {
	b, now := newTestBreaker(2, 5*time.Second)

	if err := b.Allow(); err != nil {
		t.Fatalf("expected allow in closed state: %v", err)
	}

	b.RecordFailure()
	if state := b.State(); state != CircuitStateClosed {
		t.Fatalf("expected closed after first failure, got %s", state)
	}

	b.RecordFailure()
	if state := b.State(); state != CircuitStateOpen {
		t.Fatalf("expected open after threshold failures, got %s", state)
	}

	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected circuit open error, got %v", err)
	}

	*now = now.Add(6 * time.Second)
	if err := b.Allow(); err != nil {
		t.Fatalf("expected half-open probe to pass, got %v", err)
	}
	if state := b.State(); state != CircuitStateHalfOpen {
		t.Fatalf("expected half-open state, got %s", state)
	}

	b.RecordSuccess()
	if state := b.State(); state != CircuitStateClosed {
		t.Fatalf("expected closed after successful half-open probe, got %s", state)
	}
}

func TestCircuitBreaker_ExecuteShortCircuitsWhenOpen(t *testing.T) {
	b, _ := newTestBreaker(1, time.Minute)
	fetchErr := errors.New("page timeout")

	if err := b.Execute(func() error { return fetchErr }); !errors.Is(err, fetchErr) {
		t.Fatalf("expected fetch error, got %v", err)
	}

	calls := 0
	err := b.Execute(func() error {
		calls++
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected open circuit, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("fn must not run while open, calls=%d", calls)
	}

	snap := b.Snapshot()
	if snap.Name != "bookmaker-page" || snap.State != CircuitStateOpen || snap.OpenedAt == nil {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestCircuitBreaker_NilExecuteRunsFn(t *testing.T) {
	var b *CircuitBreaker
	ran := false
	if err := b.Execute(func() error { ran = true; return nil }); err != nil || !ran {
		t.Fatalf("nil breaker should run fn: ran=%v err=%v", ran, err)
	}
}

func TestCircuitBreaker_TripsFiltersFailures(t *testing.T) {
	transient := errors.New("timeout")
	permanent := errors.New("404")
	b := NewCircuitBreaker("bookmaker-page", CircuitBreakerConfig{
		Enabled:          true,
		FailureThreshold: 1,
		OpenTimeout:      time.Minute,
		Trips:            func(err error) bool { return errors.Is(err, transient) },
	})

	if err := b.Execute(func() error { return permanent }); !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error returned, got %v", err)
	}
	if state := b.State(); state != CircuitStateClosed {
		t.Fatalf("permanent error must not open the breaker, got %s", state)
	}

	if err := b.Execute(func() error { return transient }); !errors.Is(err, transient) {
		t.Fatalf("expected transient error returned, got %v", err)
	}
	if state := b.State(); state != CircuitStateOpen {
		t.Fatalf("transient error should open the breaker, got %s", state)
	}
}
