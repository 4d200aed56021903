package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

var errBoom = errors.New("boom")

func fastRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "test", fastRetry(), func() error {
		calls++
		if calls < 3 {
			return errBoom
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Errorf("err = %v, calls = %d", err, calls)
	}
}

func TestRetryExhausted(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "test", fastRetry(), func() error {
		calls++
		return errBoom
	})
	if !errors.Is(err, errBoom) || calls != 3 {
		t.Errorf("err = %v, calls = %d", err, calls)
	}
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	cfg := fastRetry()
	cfg.Retryable = func(err error) bool { return !errors.Is(err, errBoom) }
	calls := 0
	err := Retry(context.Background(), "test", cfg, func() error {
		calls++
		return errBoom
	})
	if !errors.Is(err, errBoom) || calls != 1 {
		t.Errorf("err = %v, calls = %d", err, calls)
	}
}

func TestRetryHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, "test", fastRetry(), func() error { return errBoom })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
}

func TestCircuitBreakerTransitions(t *testing.T) {
	var transitions []State
	cb := NewBreaker("redis", BreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     10 * time.Millisecond,
		OnStateChange: func(_ string, _, to State) {
			transitions = append(transitions, to)
		},
	})
	fail := func() error { return errBoom }
	cb.Do(fail)
	cb.Do(fail)
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}
	if err := cb.Do(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("open breaker should reject, got %v", err)
	}
	time.Sleep(15 * time.Millisecond)
	if err := cb.Do(func() error { return nil }); err != nil {
		t.Errorf("half-open trial call should run: %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed", cb.State())
	}
	want := []State{StateOpen, StateHalfOpen, StateClosed}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transitions = %v, want %v", transitions, want)
		}
	}
}

func TestBreakerFailedTrialReopens(t *testing.T) {
	cb := NewBreaker("drive", BreakerConfig{FailureThreshold: 1, ResetTimeout: 10 * time.Millisecond})
	cb.Do(func() error { return errBoom })
	time.Sleep(15 * time.Millisecond)

	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Do(func() error {
			<-release
			return errBoom
		})
	}()
	for cb.State() != StateHalfOpen {
		time.Sleep(time.Millisecond)
	}
	if err := cb.Do(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("second call during trial should be rejected, got %v", err)
	}
	close(release)
	if err := <-done; !errors.Is(err, errBoom) {
		t.Errorf("trial err = %v", err)
	}
	if cb.State() != StateOpen {
		t.Errorf("state = %v, want open after failed trial", cb.State())
	}
}

func TestRetryBackoffIsCapped(t *testing.T) {
	cfg := RetryConfig{InitialDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond}.withDefaults()
	tests := []struct {
		attempt int
		base    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 300 * time.Millisecond},
		{10, 300 * time.Millisecond},
	}
	for _, tt := range tests {
		got := cfg.backoff(tt.attempt)
		spread := time.Duration(float64(tt.base) * jitter)
		if got < tt.base-spread || got > tt.base+spread {
			t.Errorf("backoff(%d) = %v, want %v ±%v", tt.attempt, got, tt.base, spread)
		}
	}
}

func TestWithTimeout(t *testing.T) {
	err := WithTimeout(context.Background(), 5*time.Millisecond, "fetch", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, apperrors.ErrTimeout) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v", err)
	}
	if err := WithTimeout(context.Background(), 0, "fetch", func(context.Context) error { return nil }); err != nil {
		t.Errorf("zero timeout should run fn directly: %v", err)
	}
}

func TestWithTimeoutParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WithTimeout(ctx, time.Second, "fetch", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.Canceled) || errors.Is(err, apperrors.ErrTimeout) {
		t.Errorf("err = %v, want plain cancellation", err)
	}
}
