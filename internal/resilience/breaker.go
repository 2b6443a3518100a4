package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"scenevibe/internal/logging"
)

// State represents the state of a circuit breaker.
type State int

const (
	StateClosed   State = iota // Normal operation, calls pass through.
	StateOpen                  // Calls are rejected until the recovery timeout elapses.
	StateHalfOpen              // A single trial call at a time probes recovery.
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen marks calls rejected by an open breaker.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitOpenError reports a rejected call and the remaining cooldown.
// Remaining is zero when the breaker is half-open and a trial call is
// already in flight.
type CircuitOpenError struct {
	Remaining time.Duration
	State     State
}

func (e *CircuitOpenError) Error() string {
	if e.State == StateHalfOpen {
		return "circuit breaker is open: recovery trial in progress"
	}
	return fmt.Sprintf("circuit breaker is open: too many recent failures, try again in %d seconds", int(e.Remaining.Seconds()))
}

func (e *CircuitOpenError) Unwrap() error { return ErrCircuitOpen }

const (
	defaultFailureThreshold = 10
	defaultRecoveryTimeout  = 120 * time.Second
	defaultSuccessThreshold = 3
)

// BreakerConfig tunes a Breaker.
type BreakerConfig struct {
	FailureThreshold int
	RecoveryTimeout  time.Duration
	SuccessThreshold int
	// CountsAsFailure filters which errors affect breaker health. Nil counts
	// every non-nil error.
	CountsAsFailure func(error) bool
}

// DefaultBreakerConfig opens after 10 failures, waits 2 minutes, and closes
// after 3 successful trials.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: defaultFailureThreshold,
		RecoveryTimeout:  defaultRecoveryTimeout,
		SuccessThreshold: defaultSuccessThreshold,
	}
}

// Breaker guards one remote resource. It is shared by every caller of that
// resource and must be constructed once.
//
// Closed: failures increment a counter that successes decrement (floored at
// zero); reaching FailureThreshold opens the circuit. Open: calls fail fast
// with *CircuitOpenError until RecoveryTimeout has elapsed since the last
// failure, after which the next call moves the breaker to half-open. HalfOpen:
// exactly one trial call runs at a time; concurrent callers are rejected
// until it finishes. SuccessThreshold trial successes close the circuit, one
// trial failure reopens it.
type Breaker struct {
	mu sync.Mutex

	cfg BreakerConfig

	state         State
	failures      int
	successes     int
	lastFailure   time.Time
	trialInFlight bool

	nowFn  func() time.Time
	logger *slog.Logger
}

// BreakerOption customizes a Breaker.
type BreakerOption func(*Breaker)

// WithBreakerLogger sets the logger used for state transitions.
func WithBreakerLogger(logger *slog.Logger) BreakerOption {
	return func(b *Breaker) {
		b.logger = logger
	}
}

// WithBreakerClock overrides the breaker clock, primarily for tests.
func WithBreakerClock(now func() time.Time) BreakerOption {
	return func(b *Breaker) {
		if now != nil {
			b.nowFn = now
		}
	}
}

// NewBreaker constructs a closed breaker.
func NewBreaker(cfg BreakerConfig, opts ...BreakerOption) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaultFailureThreshold
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = defaultRecoveryTimeout
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = defaultSuccessThreshold
	}
	b := &Breaker{
		cfg:   cfg,
		state: StateClosed,
		nowFn: time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = logging.NewNop()
	}
	return b
}

// Execute runs op if the breaker admits it and records the outcome. A panic
// in op is recorded as a failure, releasing any trial slot, and re-raised.
func (b *Breaker) Execute(ctx context.Context, op func(context.Context) error) (err error) {
	trial, admitErr := b.admit()
	if admitErr != nil {
		return admitErr
	}
	completed := false
	defer func() {
		if !completed {
			b.record(trial, errOperationPanicked)
		}
	}()
	err = op(ctx)
	completed = true
	b.record(trial, err)
	return err
}

var errOperationPanicked = errors.New("operation panicked")

// State returns the current state. An open breaker past its recovery timeout
// still reports open until a call arrives.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Snapshot captures breaker counters for status reporting.
type Snapshot struct {
	State            State
	Failures         int
	Successes        int
	LastFailure      time.Time
	Remaining        time.Duration
	FailureThreshold int
	SuccessThreshold int
	RecoveryTimeout  time.Duration
}

// Snapshot returns a consistent copy of the breaker state.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	snap := Snapshot{
		State:            b.state,
		Failures:         b.failures,
		Successes:        b.successes,
		LastFailure:      b.lastFailure,
		FailureThreshold: b.cfg.FailureThreshold,
		SuccessThreshold: b.cfg.SuccessThreshold,
		RecoveryTimeout:  b.cfg.RecoveryTimeout,
	}
	if b.state == StateOpen {
		snap.Remaining = max(b.cfg.RecoveryTimeout-b.nowFn().Sub(b.lastFailure), 0)
	}
	return snap
}

// Reset forces the breaker closed and clears its counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transitionLocked(StateClosed, "manual reset")
	b.lastFailure = time.Time{}
}

func (b *Breaker) admit() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		elapsed := b.nowFn().Sub(b.lastFailure)
		if elapsed < b.cfg.RecoveryTimeout {
			return false, &CircuitOpenError{Remaining: b.cfg.RecoveryTimeout - elapsed, State: StateOpen}
		}
		b.transitionLocked(StateHalfOpen, "recovery timeout elapsed")
		b.trialInFlight = true
		return true, nil
	case StateHalfOpen:
		if b.trialInFlight {
			return false, &CircuitOpenError{State: StateHalfOpen}
		}
		b.trialInFlight = true
		return true, nil
	default:
		return false, nil
	}
}

func (b *Breaker) record(trial bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if trial {
		b.trialInFlight = false
	}
	failed := err != nil
	if failed && b.cfg.CountsAsFailure != nil && !b.cfg.CountsAsFailure(err) {
		// Not a health signal; the trial slot is released without a verdict.
		return
	}

	if !failed {
		switch b.state {
		case StateHalfOpen:
			if !trial {
				return
			}
			b.successes++
			if b.successes >= b.cfg.SuccessThreshold {
				b.transitionLocked(StateClosed, "service recovered")
			}
		case StateClosed:
			if b.failures > 0 {
				b.failures--
			}
		}
		return
	}

	b.failures++
	b.lastFailure = b.nowFn()
	switch b.state {
	case StateClosed:
		if b.failures >= b.cfg.FailureThreshold {
			b.transitionLocked(StateOpen, "failure threshold reached")
		}
	case StateHalfOpen:
		b.transitionLocked(StateOpen, "recovery trial failed")
	}
}

func (b *Breaker) transitionLocked(next State, reason string) {
	prev := b.state
	b.state = next
	switch next {
	case StateClosed:
		b.failures = 0
		b.successes = 0
		b.trialInFlight = false
	case StateOpen:
		b.successes = 0
	case StateHalfOpen:
		b.successes = 0
	}
	if prev == next {
		return
	}
	attrs := []logging.Attr{
		logging.String("from", prev.String()),
		logging.String("to", next.String()),
		logging.String("reason", reason),
		logging.Int("failures", b.failures),
		logging.String(logging.FieldEventType, "circuit_state_change"),
	}
	if next == StateOpen {
		logging.WarnWithContext(b.logger, "circuit breaker opened", "circuit_open",
			append(attrs,
				logging.Duration("recovery_timeout", b.cfg.RecoveryTimeout),
				logging.String(logging.FieldErrorHint, "remote service is failing repeatedly"),
				logging.String(logging.FieldImpact, "calls fail fast until recovery"),
			)...)
		return
	}
	b.logger.Info("circuit breaker state changed", logging.Args(attrs...)...)
}
