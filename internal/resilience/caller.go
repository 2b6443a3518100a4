package resilience

import (
	"context"
	"errors"
	"log/slog"

	"scenevibe/internal/logging"
)

// Caller wraps every remote call in retry, circuit breaker, and rate limit
// protection. The breaker and limiter are shared by all Callers derived from
// the same root so they gate the remote service as a whole.
type Caller struct {
	retrier *Retrier
	breaker *Breaker
	limiter *RateLimiter
	logger  *slog.Logger
}

// NewCaller composes the three primitives. A nil breaker or limiter disables
// that gate.
func NewCaller(retrier *Retrier, breaker *Breaker, limiter *RateLimiter, logger *slog.Logger) *Caller {
	if retrier == nil {
		retrier = NewRetrier(DefaultRetryPolicy())
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Caller{retrier: retrier, breaker: breaker, limiter: limiter, logger: logger}
}

// WithPolicy returns a Caller using policy for retries while sharing the
// breaker and limiter.
func (c *Caller) WithPolicy(policy RetryPolicy) *Caller {
	clone := *c
	clone.retrier = c.retrier.WithPolicy(policy)
	return &clone
}

// Breaker exposes the shared breaker for status reporting.
func (c *Caller) Breaker() *Breaker { return c.breaker }

// Limiter exposes the shared limiter for status reporting.
func (c *Caller) Limiter() *RateLimiter { return c.limiter }

// Policy returns the retry policy used by Do.
func (c *Caller) Policy() RetryPolicy { return c.retrier.Policy() }

// Do runs op as retry(breaker(limiter(op))). Each attempt passes through the
// breaker and waits for a rate slot before touching the remote service. A
// circuit-open rejection is fatal and ends the retry loop immediately.
func (c *Caller) Do(ctx context.Context, op func(context.Context) error) error {
	err := c.retrier.Do(ctx, func(ctx context.Context) error {
		return c.attempt(ctx, op)
	})
	if errors.Is(err, ErrCircuitOpen) {
		logging.WithContext(ctx, c.logger).Warn("remote call rejected by open circuit",
			logging.Error(err),
			logging.String(logging.FieldEventType, "circuit_rejected"),
		)
	}
	return err
}

func (c *Caller) attempt(ctx context.Context, op func(context.Context) error) error {
	guarded := func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		return op(ctx)
	}
	if c.breaker == nil {
		return guarded(ctx)
	}
	return c.breaker.Execute(ctx, guarded)
}

// Call runs op through c and returns its value.
func Call[T any](ctx context.Context, c *Caller, op func(context.Context) (T, error)) (T, error) {
	var result T
	err := c.Do(ctx, func(ctx context.Context) error {
		value, err := op(ctx)
		if err != nil {
			return err
		}
		result = value
		return nil
	})
	return result, err
}

// HealthFilter returns a breaker failure filter that ignores content
// rejections and caller cancellation, neither of which says anything about
// the remote service's health.
func HealthFilter(classifier *MessageClassifier) func(error) bool {
	if classifier == nil {
		classifier = DefaultClassifier()
	}
	return func(err error) bool {
		if errors.Is(err, context.Canceled) {
			return false
		}
		return classifier.Kind(err) != KindContentRejected
	}
}
