package resilience

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"scenevibe/internal/logging"
)

const (
	defaultMaxRetries   = 5
	defaultInitialDelay = 1 * time.Second
	defaultMaxDelay     = 60 * time.Second
	defaultMultiplier   = 2.0
)

// RetryPolicy configures exponential backoff for a single operation.
type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool
}

// DefaultRetryPolicy returns five retries starting at 1s, doubling up to 60s, with jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   defaultMaxRetries,
		InitialDelay: defaultInitialDelay,
		MaxDelay:     defaultMaxDelay,
		Multiplier:   defaultMultiplier,
		Jitter:       true,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.InitialDelay < 0 {
		p.InitialDelay = 0
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = defaultMaxDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}
	return p
}

// Attempt describes one execution of a retried operation.
type Attempt struct {
	Number int
	// Delay is the backoff waited before this attempt ran; zero for the first.
	Delay time.Duration
	// NextDelay is the backoff scheduled before the next attempt; zero when no
	// further attempt follows.
	NextDelay time.Duration
	Err       error
	Class     ErrorClass
	At        time.Time
}

// RetryAfterHinter is implemented by errors that carry a server-requested
// wait, such as an HTTP Retry-After header. The hint raises the backoff for
// the next attempt up to the policy's MaxDelay.
type RetryAfterHinter interface {
	RetryAfterHint() time.Duration
}

// RetryObserver receives an Attempt after every execution. It runs on the
// retrying goroutine and must return promptly.
type RetryObserver func(Attempt)

// Retrier executes operations with classification-aware exponential backoff.
type Retrier struct {
	policy     RetryPolicy
	classifier Classifier
	observer   RetryObserver
	sleeper    func(time.Duration)
	random     func() float64
	nowFn      func() time.Time
	logger     *slog.Logger
}

// RetryOption customizes a Retrier.
type RetryOption func(*Retrier)

// WithClassifier overrides the default message classifier.
func WithClassifier(classifier Classifier) RetryOption {
	return func(r *Retrier) {
		if classifier != nil {
			r.classifier = classifier
		}
	}
}

// WithObserver registers a per-attempt observer.
func WithObserver(observer RetryObserver) RetryOption {
	return func(r *Retrier) {
		r.observer = observer
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) RetryOption {
	return func(r *Retrier) {
		r.sleeper = sleeper
	}
}

// WithRandom overrides the jitter source. The function must return values in [0,1).
func WithRandom(random func() float64) RetryOption {
	return func(r *Retrier) {
		if random != nil {
			r.random = random
		}
	}
}

// WithRetryLogger sets the logger used for retry warnings.
func WithRetryLogger(logger *slog.Logger) RetryOption {
	return func(r *Retrier) {
		r.logger = logger
	}
}

// NewRetrier constructs a Retrier for policy.
func NewRetrier(policy RetryPolicy, opts ...RetryOption) *Retrier {
	r := &Retrier{
		policy:     policy.normalized(),
		classifier: DefaultClassifier(),
		random:     rand.Float64,
		nowFn:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logging.NewNop()
	}
	return r
}

// Policy returns the effective retry policy.
func (r *Retrier) Policy() RetryPolicy {
	return r.policy
}

// WithPolicy returns a copy of r using policy and sharing every other setting.
func (r *Retrier) WithPolicy(policy RetryPolicy) *Retrier {
	clone := *r
	clone.policy = policy.normalized()
	return &clone
}

// Do runs op up to MaxRetries+1 times. Fatal errors and the final failure are
// returned unchanged; context cancellation during a backoff wait returns the
// context error joined with the last attempt's error.
func (r *Retrier) Do(ctx context.Context, op func(context.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	attempts := r.policy.MaxRetries + 1
	current := float64(r.policy.InitialDelay)
	var waited time.Duration

	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			r.observe(Attempt{Number: attempt, Delay: waited, At: r.nowFn()})
			return nil
		}

		class := r.classifier.Classify(err)
		if class == ClassFatal || attempt >= attempts {
			r.observe(Attempt{Number: attempt, Delay: waited, Err: err, Class: class, At: r.nowFn()})
			if attempt > 1 || class == ClassRetryable {
				r.logger.Warn("operation failed, giving up",
					logging.Int("attempt", attempt),
					logging.Int("max_attempts", attempts),
					logging.String("error_class", class.String()),
					logging.Error(err),
					logging.String(logging.FieldEventType, "retry_exhausted"),
				)
			}
			return err
		}

		delay := r.honorRetryAfter(r.nextDelay(current), err)
		r.observe(Attempt{Number: attempt, Delay: waited, NextDelay: delay, Err: err, Class: class, At: r.nowFn()})
		r.logger.Warn("attempt failed, retrying",
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", attempts),
			logging.Duration("retry_in", delay),
			logging.String("error_summary", summarizeError(err)),
			logging.String(logging.FieldEventType, "retry_scheduled"),
		)
		if sleepErr := r.sleep(ctx, delay); sleepErr != nil {
			return errors.Join(sleepErr, err)
		}
		waited = delay
		current *= r.policy.Multiplier
		if current > float64(r.policy.MaxDelay) {
			current = float64(r.policy.MaxDelay)
		}
	}
}

// Retry runs op through r and returns its value.
func Retry[T any](ctx context.Context, r *Retrier, op func(context.Context) (T, error)) (T, error) {
	var result T
	err := r.Do(ctx, func(ctx context.Context) error {
		value, err := op(ctx)
		if err != nil {
			return err
		}
		result = value
		return nil
	})
	return result, err
}

// nextDelay caps the base delay at MaxDelay before jitter is applied, so the
// effective ceiling with jitter is 1.5 * MaxDelay.
func (r *Retrier) nextDelay(current float64) time.Duration {
	delay := min(current, float64(r.policy.MaxDelay))
	if r.policy.Jitter {
		delay *= 0.5 + r.random()
	}
	if delay < 0 {
		return 0
	}
	return time.Duration(delay)
}

// honorRetryAfter raises delay to the error's retry-after hint, capped at
// MaxDelay. A hint never shortens the computed backoff.
func (r *Retrier) honorRetryAfter(delay time.Duration, err error) time.Duration {
	var hinter RetryAfterHinter
	if !errors.As(err, &hinter) {
		return delay
	}
	hint := min(hinter.RetryAfterHint(), r.policy.MaxDelay)
	return max(delay, hint)
}

func (r *Retrier) observe(attempt Attempt) {
	if r.observer != nil {
		r.observer(attempt)
	}
}

func (r *Retrier) sleep(ctx context.Context, delay time.Duration) error {
	return sleepContext(ctx, delay, r.sleeper)
}

func sleepContext(ctx context.Context, delay time.Duration, sleeper func(time.Duration)) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if delay <= 0 {
		return nil
	}
	if sleeper != nil {
		sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func summarizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	const limit = 200
	runes := []rune(msg)
	if len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return msg
}
