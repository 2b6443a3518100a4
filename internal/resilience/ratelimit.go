package resilience

import (
	"context"
	"sync"
	"time"
)

// DefaultRequestsPerSecond matches the pacing applied to inference calls.
const DefaultRequestsPerSecond = 5

// RateLimiter spaces call start times at least 1/rps apart across every
// caller sharing the instance.
//
// Admission is decided under the lock: each caller reserves the earliest slot
// that is one interval after the previous reservation and records it before
// releasing the lock. The wait for the reserved slot happens outside the
// lock, so a sleeping caller never blocks another caller's admission
// decision.
type RateLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time

	nowFn   func() time.Time
	sleeper func(time.Duration)
}

// LimiterOption customizes a RateLimiter.
type LimiterOption func(*RateLimiter)

// WithLimiterClock overrides the clock, primarily for tests.
func WithLimiterClock(now func() time.Time) LimiterOption {
	return func(l *RateLimiter) {
		if now != nil {
			l.nowFn = now
		}
	}
}

// WithLimiterSleeper overrides how admission waits are performed.
func WithLimiterSleeper(sleeper func(time.Duration)) LimiterOption {
	return func(l *RateLimiter) {
		l.sleeper = sleeper
	}
}

// NewRateLimiter returns a limiter admitting at most requestsPerSecond calls
// per second. A non-positive rate disables pacing.
func NewRateLimiter(requestsPerSecond float64, opts ...LimiterOption) *RateLimiter {
	l := &RateLimiter{nowFn: time.Now}
	if requestsPerSecond > 0 {
		l.interval = time.Duration(float64(time.Second) / requestsPerSecond)
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Interval returns the minimum spacing between admitted calls.
func (l *RateLimiter) Interval() time.Duration {
	if l == nil {
		return 0
	}
	return l.interval
}

// Wait blocks until the caller's reserved slot arrives. If ctx is cancelled
// first, the reservation is abandoned and ctx's error is returned.
func (l *RateLimiter) Wait(ctx context.Context) error {
	if l == nil || l.interval <= 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	wait := l.reserve()
	return sleepContext(ctx, wait, l.sleeper)
}

func (l *RateLimiter) reserve() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFn()
	slot := now
	if !l.last.IsZero() {
		if next := l.last.Add(l.interval); next.After(now) {
			slot = next
		}
	}
	l.last = slot
	return slot.Sub(now)
}
