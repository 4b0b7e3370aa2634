package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

type ErrorClassification struct {
	Retryable     bool
	RecordFailure bool
}

type ErrorClassifier func(err error) ErrorClassification

// Executor applies retry and circuit breaking per named operation. Settings
// and breakers are resolved once, on the first call for an operation.
type Executor struct {
	cfg    Config
	logger *slog.Logger

	mu         sync.Mutex
	operations map[string]*guardedOperation
}

type guardedOperation struct {
	cfg     Config
	breaker *gobreaker.CircuitBreaker[any] // nil when breaking is disabled
}

func NewExecutor(cfg Config) *Executor {
	return NewExecutorWithLogger(cfg, nil)
}

func NewExecutorWithLogger(cfg Config, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		cfg:        cfg.normalize(),
		logger:     logger,
		operations: make(map[string]*guardedOperation),
	}
}

// BreakerStates reports the state of every breaker created so far, keyed by
// operation.
func (e *Executor) BreakerStates() map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]string, len(e.operations))
	for name, op := range e.operations {
		if op.breaker != nil {
			out[name] = op.breaker.State().String()
		}
	}
	return out
}

func (e *Executor) Execute(
	ctx context.Context,
	operation string,
	fn func(context.Context) error,
	classifier ErrorClassifier,
) error {
	if fn == nil {
		return fmt.Errorf("resilience: operation callback is nil")
	}
	name := strings.TrimSpace(operation)
	if name == "" {
		name = "unknown"
	}
	if classifier == nil {
		classifier = defaultClassifier
	}

	op := e.operation(name, classifier)
	if op.breaker == nil {
		return e.retry(ctx, name, op.cfg, fn, classifier)
	}
	_, err := op.breaker.Execute(func() (any, error) {
		return nil, e.retry(ctx, name, op.cfg, fn, classifier)
	})
	return err
}

func (e *Executor) retry(
	ctx context.Context,
	operation string,
	cfg Config,
	fn func(context.Context) error,
	classifier ErrorClassifier,
) error {
	backoff := cfg.RetryInitialBackoff
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= cfg.RetryMaxAttempts || !classifier(err).Retryable {
			return err
		}

		wait := min(backoff, cfg.RetryMaxBackoff)
		e.logger.Warn("retry_attempt",
			"operation", operation,
			"attempt", attempt,
			"max_attempts", cfg.RetryMaxAttempts,
			"backoff_ms", float64(wait.Microseconds())/1000.0,
			"error", err,
		)
		if !sleep(ctx, wait) {
			return err
		}
		backoff = min(time.Duration(float64(backoff)*cfg.RetryMultiplier), cfg.RetryMaxBackoff)
	}
}

func (e *Executor) operation(name string, classifier ErrorClassifier) *guardedOperation {
	e.mu.Lock()
	defer e.mu.Unlock()

	if op, ok := e.operations[name]; ok {
		return op
	}

	op := &guardedOperation{cfg: e.cfg.forOperation(name)}
	if op.cfg.BreakerEnabled {
		op.breaker = e.newBreaker(name, op.cfg, classifier)
	}
	e.operations[name] = op
	return op
}

func (e *Executor) newBreaker(name string, cfg Config, classifier ErrorClassifier) *gobreaker.CircuitBreaker[any] {
	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.BreakerHalfOpenMaxCalls,
		Interval:    cfg.BreakerWindow,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.BreakerMinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !classifier(err).RecordFailure
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			e.logger.Warn("circuit_breaker_state_change",
				"operation", name,
				"from", from.String(),
				"to", to.String(),
				"open_timeout_ms", cfg.BreakerOpenTimeout.Milliseconds(),
			)
		},
	})
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func defaultClassifier(error) ErrorClassification {
	return ErrorClassification{
		Retryable:     false,
		RecordFailure: true,
	}
}
