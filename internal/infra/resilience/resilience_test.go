package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/fincore/internal/domain"
	"github.com/boddenberg/fincore/internal/infra/resilience"
	"github.com/sony/gobreaker"
)

var fastRetry = resilience.Config{MaxRetries: 3, InitialBackoff: time.Millisecond}

func TestRetryWithBackoff(t *testing.T) {
	tests := []struct {
		name      string
		failUntil int // calls before success; -1 never succeeds
		wantCalls int
		wantErr   bool
	}{
		{"first call succeeds", 0, 1, false},
		{"recovers after retries", 2, 3, false},
		{"exhausts retries", -1, 4, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := resilience.RetryWithBackoff(context.Background(), fastRetry, func() error {
				calls++
				if tt.failUntil < 0 || calls <= tt.failUntil {
					return errors.New("store busy")
				}
				return nil
			})
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error state: %v", err)
			}
			if calls != tt.wantCalls {
				t.Errorf("expected %d calls, got %d", tt.wantCalls, calls)
			}
		})
	}
}

func TestRetryWithBackoff_PermanentStopsImmediately(t *testing.T) {
	notFound := &domain.ErrNotFound{Resource: "budget", ID: "b1"}
	calls := 0

	err := resilience.RetryWithBackoff(context.Background(), fastRetry, func() error {
		calls++
		return resilience.Permanent(notFound)
	})

	if calls != 1 {
		t.Errorf("expected a single call, got %d", calls)
	}
	var nf *domain.ErrNotFound
	if !errors.As(err, &nf) || err != error(notFound) {
		t.Errorf("expected the unwrapped not-found error, got %v", err)
	}
}

func TestRetryWithBackoff_ZeroBackoff(t *testing.T) {
	calls := 0
	_ = resilience.RetryWithBackoff(context.Background(), resilience.Config{MaxRetries: 2}, func() error {
		calls++
		return errors.New("fail")
	})
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestRetryWithBackoff_RespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := resilience.RetryWithBackoff(ctx, resilience.Config{MaxRetries: 5, InitialBackoff: time.Second}, func() error {
		calls++
		return errors.New("error")
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
	if calls != 0 {
		t.Errorf("expected no calls on a cancelled context, got %d", calls)
	}
}

func TestCircuitBreaker_IgnoresBusinessErrors(t *testing.T) {
	cb := resilience.NewCircuitBreaker("ledger-test", func(err error) bool {
		return err == nil || domain.IsBusinessError(err)
	})

	for i := 0; i < 10; i++ {
		_, _ = cb.Execute(func() (any, error) {
			return nil, &domain.ErrNotFound{Resource: "budget", ID: "x"}
		})
	}
	if cb.State() != gobreaker.StateClosed {
		t.Fatalf("business errors must not open the breaker, state=%s", cb.State())
	}

	// 10 successes are already counted; 15 failures reach the 60% ratio.
	for i := 0; i < 20; i++ {
		_, _ = cb.Execute(func() (any, error) {
			return nil, errors.New("disk I/O error")
		})
	}
	if cb.State() != gobreaker.StateOpen {
		t.Fatalf("expected open breaker after infrastructure failures, state=%s", cb.State())
	}

	_, err := cb.Execute(func() (any, error) { return nil, nil })
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("expected ErrOpenState, got %v", err)
	}
}

func TestBulkhead_AcquireRelease(t *testing.T) {
	bh := resilience.NewBulkhead(1)

	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("expected acquire, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := bh.Acquire(ctx); err == nil {
		t.Fatal("expected second acquire to time out")
	}

	bh.Release()
	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("expected acquire after release, got %v", err)
	}
}
