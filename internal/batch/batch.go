// Package batch runs per-item work on a bounded worker pool and always
// produces one output per input, in input order.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"scenevibe/internal/logging"
	"scenevibe/internal/resilience"
	"scenevibe/internal/services"
)

// DefaultWorkers is the pool size used when none is configured.
const DefaultWorkers = 3

// Func produces the output for one item.
type Func[I, O any] func(ctx context.Context, index int, item I) (O, error)

// Fallback produces a placeholder output for an item whose Func failed.
type Fallback[I, O any] func(index int, item I, err error) O

// Report summarizes a finished batch.
type Report struct {
	Total      int
	Succeeded  int
	FellBack   int
	CircuitHit int
	Elapsed    time.Duration
}

type settings struct {
	workers   int
	logger    *slog.Logger
	operation string
}

// Option customizes Process.
type Option func(*settings)

// WithWorkers sets the pool size. Values below 1 keep the default.
func WithWorkers(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithLogger sets the logger for per-item failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithOperation names the batch in logs and item contexts.
func WithOperation(name string) Option {
	return func(s *settings) {
		s.operation = name
	}
}

// PanicError reports a panic recovered from a Func.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("batch item panicked: %v", e.Value)
}

// Process runs fn for every item on a fixed pool of workers and returns a
// slice of the same length and order as items. Every failure, including a
// panic and a circuit-open rejection, is replaced by fallback's output; the
// batch itself never fails. Items not yet started when ctx is cancelled fall
// back with ctx's error.
func Process[I, O any](ctx context.Context, items []I, fn Func[I, O], fallback Fallback[I, O], opts ...Option) ([]O, Report) {
	cfg := settings{workers: DefaultWorkers, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	started := time.Now()
	results := make([]O, len(items))
	report := Report{Total: len(items)}
	if len(items) == 0 {
		return results, report
	}

	workers := min(cfg.workers, len(items))
	indexes := make(chan int)
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range indexes {
				out, err := runItem(ctx, cfg.operation, idx, items[idx], fn)
				if err != nil {
					out = fallback(idx, items[idx], err)
					logFailure(ctx, cfg, idx, err)
				}
				results[idx] = out

				mu.Lock()
				switch {
				case err == nil:
					report.Succeeded++
				case errors.Is(err, resilience.ErrCircuitOpen):
					report.CircuitHit++
					report.FellBack++
				default:
					report.FellBack++
				}
				mu.Unlock()
			}
		}()
	}

	for idx := range items {
		indexes <- idx
	}
	close(indexes)
	wg.Wait()

	report.Elapsed = time.Since(started)
	return results, report
}

func runItem[I, O any](ctx context.Context, operation string, idx int, item I, fn Func[I, O]) (out O, err error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return out, ctxErr
	}
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	itemCtx := services.WithItemIndex(services.WithOperation(ctx, operation), idx)
	return fn(itemCtx, idx, item)
}

func logFailure(ctx context.Context, cfg settings, idx int, err error) {
	logger := logging.WithContext(services.WithOperation(ctx, cfg.operation), cfg.logger)
	if errors.Is(err, resilience.ErrCircuitOpen) {
		logging.WarnWithContext(logger, "item skipped, circuit open", "batch_item_circuit_open",
			logging.ItemIndex(idx),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remote service is failing; wait for the recovery timeout"),
			logging.String(logging.FieldImpact, "placeholder output used for this item"),
		)
		return
	}
	logging.ErrorWithContext(logger, "item failed, using fallback", "batch_item_failed",
		logging.ItemIndex(idx),
		logging.Error(err),
		logging.String(logging.FieldImpact, "placeholder output used for this item"),
	)
}
