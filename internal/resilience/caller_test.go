package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestCaller(clock *fakeClock, policy RetryPolicy, breakerCfg BreakerConfig) (*Caller, *sleepRecorder) {
	rec := &sleepRecorder{}
	retrier := NewRetrier(policy, WithSleeper(rec.sleep))
	breaker := NewBreaker(breakerCfg, WithBreakerClock(clock.Now))
	limiter := NewRateLimiter(0)
	return NewCaller(retrier, breaker, limiter, nil), rec
}

func TestCallerRetriesThroughBreaker(t *testing.T) {
	clock := newFakeClock()
	caller, rec := newTestCaller(clock, noJitterPolicy(3, time.Second, time.Minute), DefaultBreakerConfig())

	calls := 0
	got, err := Call(context.Background(), caller, func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("connection reset")
		}
		return 42, nil
	})
	if err != nil || got != 42 {
		t.Fatalf("Call = %d, %v", got, err)
	}
	if len(rec.delays) != 2 {
		t.Fatalf("expected two backoff waits, got %v", rec.delays)
	}
	if snap := caller.Breaker().Snapshot(); snap.Failures != 1 {
		t.Fatalf("expected two failures minus one success, got %d", snap.Failures)
	}
}

func TestCallerStopsRetryingWhenCircuitOpens(t *testing.T) {
	clock := newFakeClock()
	caller, _ := newTestCaller(clock, noJitterPolicy(5, time.Second, time.Minute), BreakerConfig{
		FailureThreshold: 2,
		RecoveryTimeout:  time.Minute,
		SuccessThreshold: 1,
	})

	calls := 0
	err := caller.Do(context.Background(), func(context.Context) error {
		calls++
		return errors.New("503 service unavailable")
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected circuit open error, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected the remote to be hit twice before the circuit opened, got %d", calls)
	}

	err = caller.Do(context.Background(), func(context.Context) error {
		t.Fatal("operation must not run while open")
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected fail-fast rejection, got %v", err)
	}
}

func TestCallerWithPolicySharesBreaker(t *testing.T) {
	clock := newFakeClock()
	caller, _ := newTestCaller(clock, noJitterPolicy(0, time.Second, time.Minute), BreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  time.Minute,
		SuccessThreshold: 1,
	})
	derived := caller.WithPolicy(noJitterPolicy(2, 2*time.Second, time.Minute))
	if derived.Policy().MaxRetries != 2 || caller.Policy().MaxRetries != 0 {
		t.Fatalf("unexpected policies: base %+v derived %+v", caller.Policy(), derived.Policy())
	}
	if derived.Breaker() != caller.Breaker() {
		t.Fatal("expected derived caller to share the breaker")
	}

	_ = caller.Do(context.Background(), fail)
	if err := derived.Do(context.Background(), succeed); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected shared breaker to reject derived caller, got %v", err)
	}
}

func TestCallerContentRejectionNotRetriedNorCounted(t *testing.T) {
	clock := newFakeClock()
	cfg := BreakerConfig{FailureThreshold: 1, RecoveryTimeout: time.Minute, SuccessThreshold: 1, CountsAsFailure: HealthFilter(nil)}
	caller, rec := newTestCaller(clock, noJitterPolicy(5, time.Second, time.Minute), cfg)

	calls := 0
	err := caller.Do(context.Background(), func(context.Context) error {
		calls++
		return errors.New("llm: content rejected (finish_reason=SAFETY)")
	})
	if err == nil || calls != 1 || len(rec.delays) != 0 {
		t.Fatalf("expected single fatal attempt, got err=%v calls=%d delays=%v", err, calls, rec.delays)
	}
	if caller.Breaker().State() != StateClosed {
		t.Fatal("expected content rejection to leave the breaker closed")
	}
}

func TestCallerRateLimitsEachAttempt(t *testing.T) {
	clock := newFakeClock()
	limiterSleeps := &sleepRecorder{}
	retrier := NewRetrier(noJitterPolicy(2, time.Millisecond, time.Second), WithSleeper(func(time.Duration) {}))
	limiter := NewRateLimiter(5, WithLimiterClock(clock.Now), WithLimiterSleeper(limiterSleeps.sleep))
	caller := NewCaller(retrier, nil, limiter, nil)

	_ = caller.Do(context.Background(), func(context.Context) error { return errors.New("timeout") })
	if len(limiterSleeps.delays) != 2 {
		t.Fatalf("expected the second and third attempts to wait for a slot, got %v", limiterSleeps.delays)
	}
}
