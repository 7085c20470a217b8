// Package retry runs a single blocking gateway operation with bounded
// retries and exponential backoff, while keeping the calling goroutine
// free to poll a user-interrupt flag between short sleeps. The host
// runtime exposes interruption as a flag to poll, not a channel, so the
// executor cannot simply block on the operation.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrInterrupted is returned when the user-interrupt flag was observed.
// Interruption short-circuits retries and is never itself retried.
var ErrInterrupted = errors.New("operation interrupted by user")

// ExhaustedError reports that every attempt in the budget failed
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("operation failed after %d attempts. Last error: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Config holds retry configuration
type Config struct {
	MaxAttempts    int           // Attempt budget, minimum 1
	InitialDelay   time.Duration // Delay before the second attempt
	BackoffFactor  float64       // Delay multiplier between attempts
	AttemptTimeout time.Duration // Per-attempt deadline; the worker is abandoned, not killed
	PollInterval   time.Duration // How often the interrupt flag is checked
}

// DefaultConfig returns sensible defaults for gateway calls
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialDelay:   2 * time.Second,
		BackoffFactor:  1.5,
		AttemptTimeout: 120 * time.Second,
		PollInterval:   100 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}
	if c.BackoffFactor <= 0 {
		c.BackoffFactor = 1.5
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = 120 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 100 * time.Millisecond
	}
	return c
}

// outcome is the per-attempt result container. Each attempt gets a fresh
// one so a worker that finishes after its attempt timed out cannot
// corrupt a later attempt.
type outcome[T any] struct {
	result T
	err    error
}

// Do executes op with bounded retries. Each attempt runs op on its own
// goroutine while Do polls the interrupted flag at cfg.PollInterval.
// Interruption observed at any poll, during a backoff sleep, or after
// the worker finished but before its outcome is processed, returns
// ErrInterrupted immediately. A timed-out attempt is abandoned (its
// context is cancelled so an in-flight HTTP request aborts client-side)
// and counted against the budget. When the budget is exhausted Do
// returns an ExhaustedError wrapping the last attempt's error.
func Do[T any](ctx context.Context, cfg Config, interrupted func() bool, op func(context.Context) (T, error)) (T, error) {
	var zero T
	cfg = cfg.withDefaults()
	if interrupted == nil {
		interrupted = func() bool { return false }
	}

	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if interrupted() {
			return zero, ErrInterrupted
		}
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("retry cancelled: %w", err)
		}

		attemptCtx, cancel := context.WithCancel(ctx)
		done := make(chan outcome[T], 1)
		go func() {
			r, err := op(attemptCtx)
			done <- outcome[T]{result: r, err: err}
		}()

		out, attemptErr := waitAttempt(attemptCtx, cfg, interrupted, done)
		cancel()
		if attemptErr != nil {
			if errors.Is(attemptErr, ErrInterrupted) ||
				errors.Is(attemptErr, context.Canceled) ||
				errors.Is(attemptErr, context.DeadlineExceeded) {
				return zero, attemptErr
			}
			lastErr = attemptErr
		} else if out.err != nil {
			lastErr = out.err
		} else {
			return out.result, nil
		}

		// One final interrupt check before committing to a retry
		if interrupted() {
			return zero, ErrInterrupted
		}

		if attempt < cfg.MaxAttempts {
			if err := sleepInterruptible(ctx, cfg, interrupted, delay); err != nil {
				return zero, err
			}
			delay = time.Duration(float64(delay) * cfg.BackoffFactor)
		}
	}

	return zero, &ExhaustedError{Attempts: cfg.MaxAttempts, Last: lastErr}
}

// waitAttempt polls until the worker finishes, the attempt times out,
// or an interrupt is observed. A non-nil error means the attempt did
// not produce an outcome worth reading.
func waitAttempt[T any](ctx context.Context, cfg Config, interrupted func() bool, done <-chan outcome[T]) (outcome[T], error) {
	deadline := time.Now().Add(cfg.AttemptTimeout)
	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case out := <-done:
			// Interruption detected after the worker finished still wins
			// over reporting a stale success
			if interrupted() {
				return outcome[T]{}, ErrInterrupted
			}
			return out, nil
		case <-ticker.C:
			if interrupted() {
				return outcome[T]{}, ErrInterrupted
			}
			if err := ctx.Err(); err != nil {
				return outcome[T]{}, fmt.Errorf("retry cancelled: %w", err)
			}
			if time.Now().After(deadline) {
				return outcome[T]{}, fmt.Errorf("attempt timed out after %s", cfg.AttemptTimeout)
			}
		}
	}
}

// sleepInterruptible sleeps for the retry delay in PollInterval slices
// so interruption stays responsive during backoff.
func sleepInterruptible(ctx context.Context, cfg Config, interrupted func() bool, d time.Duration) error {
	end := time.Now().Add(d)
	for time.Now().Before(end) {
		if interrupted() {
			return ErrInterrupted
		}
		remaining := time.Until(end)
		step := cfg.PollInterval
		if remaining < step {
			step = remaining
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(step):
		}
	}
	return nil
}
