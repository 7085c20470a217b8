package retry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func fastConfig(maxAttempts int) Config {
	return Config{
		MaxAttempts:    maxAttempts,
		InitialDelay:   10 * time.Millisecond,
		BackoffFactor:  1.5,
		AttemptTimeout: time.Second,
		PollInterval:   5 * time.Millisecond,
	}
}

// TestDo_Success verifies a successful operation returns immediately
func TestDo_Success(t *testing.T) {
	var calls int32
	result, err := Do(context.Background(), fastConfig(3), nil, func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if result != "ok" {
		t.Errorf("Expected result ok, got %s", result)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("Expected 1 call, got %d", got)
	}
}

// TestDo_ExhaustsBudget verifies the operation runs exactly MaxAttempts
// times and the last error is preserved in the failure
func TestDo_ExhaustsBudget(t *testing.T) {
	var calls int32
	_, err := Do(context.Background(), fastConfig(4), nil, func(ctx context.Context) (string, error) {
		n := atomic.AddInt32(&calls, 1)
		return "", fmt.Errorf("boom %d", n)
	})
	if err == nil {
		t.Fatal("Expected error after exhausting retries")
	}
	if got := atomic.LoadInt32(&calls); got != 4 {
		t.Errorf("Expected 4 calls, got %d", got)
	}
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("Expected ExhaustedError, got %T: %v", err, err)
	}
	if exhausted.Attempts != 4 {
		t.Errorf("Expected 4 recorded attempts, got %d", exhausted.Attempts)
	}
	if !strings.Contains(err.Error(), "boom 4") {
		t.Errorf("Expected last error message preserved, got %q", err.Error())
	}
}

// TestDo_SuccessAfterFailures verifies retries stop at the first success
func TestDo_SuccessAfterFailures(t *testing.T) {
	var calls int32
	result, err := Do(context.Background(), fastConfig(5), nil, func(ctx context.Context) (int, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if result != 42 {
		t.Errorf("Expected 42, got %d", result)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("Expected 3 calls, got %d", got)
	}
}

// TestDo_InterruptPreemptsRetries verifies an interrupt observed during
// the first attempt's poll loop stops everything without a second attempt
func TestDo_InterruptPreemptsRetries(t *testing.T) {
	var calls int32
	var interrupt atomic.Bool

	_, err := Do(context.Background(), fastConfig(5), interrupt.Load, func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		interrupt.Store(true)
		time.Sleep(100 * time.Millisecond)
		return "", errors.New("should not matter")
	})
	if !errors.Is(err, ErrInterrupted) {
		t.Fatalf("Expected ErrInterrupted, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("Expected 1 call before interrupt, got %d", got)
	}
}

// TestDo_InterruptSupersedesStaleSuccess verifies an interrupt raised
// while the worker finishes still wins over reporting the result
func TestDo_InterruptSupersedesStaleSuccess(t *testing.T) {
	var interrupt atomic.Bool
	_, err := Do(context.Background(), fastConfig(1), interrupt.Load, func(ctx context.Context) (string, error) {
		interrupt.Store(true)
		return "stale", nil
	})
	if !errors.Is(err, ErrInterrupted) {
		t.Fatalf("Expected ErrInterrupted over stale success, got %v", err)
	}
}

// TestDo_InterruptDuringBackoff verifies the retry delay sleep is
// interruptible
func TestDo_InterruptDuringBackoff(t *testing.T) {
	var calls int32
	var interrupt atomic.Bool
	cfg := fastConfig(3)
	cfg.InitialDelay = 500 * time.Millisecond

	start := time.Now()
	_, err := Do(context.Background(), cfg, interrupt.Load, func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		// Fail fast, then flip the flag so it lands inside the backoff sleep
		go func() {
			time.Sleep(50 * time.Millisecond)
			interrupt.Store(true)
		}()
		return "", errors.New("transient")
	})
	if !errors.Is(err, ErrInterrupted) {
		t.Fatalf("Expected ErrInterrupted, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("Expected 1 call, got %d", got)
	}
	if elapsed := time.Since(start); elapsed > 400*time.Millisecond {
		t.Errorf("Backoff sleep not interrupted promptly, took %s", elapsed)
	}
}

// TestDo_AttemptTimeoutCountsAgainstBudget verifies a hung worker is
// abandoned and the attempt counted as failed
func TestDo_AttemptTimeoutCountsAgainstBudget(t *testing.T) {
	var calls int32
	cfg := fastConfig(2)
	cfg.AttemptTimeout = 30 * time.Millisecond

	_, err := Do(context.Background(), cfg, nil, func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		<-ctx.Done() // hang until abandoned
		return "", ctx.Err()
	})
	if err == nil {
		t.Fatal("Expected timeout failure")
	}
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("Expected ExhaustedError, got %T: %v", err, err)
	}
	if !strings.Contains(exhausted.Last.Error(), "timed out") {
		t.Errorf("Expected timeout as last error, got %v", exhausted.Last)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("Expected 2 attempts, got %d", got)
	}
}

// TestDo_LateWorkerDoesNotCorruptNextAttempt verifies a worker that
// completes after its attempt timed out cannot leak its result into a
// later attempt
func TestDo_LateWorkerDoesNotCorruptNextAttempt(t *testing.T) {
	var calls int32
	cfg := fastConfig(2)
	cfg.AttemptTimeout = 30 * time.Millisecond
	cfg.InitialDelay = 5 * time.Millisecond

	result, err := Do(context.Background(), cfg, nil, func(ctx context.Context) (string, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			time.Sleep(80 * time.Millisecond) // outlives the attempt timeout
			return "stale", nil
		}
		return "fresh", nil
	})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if result != "fresh" {
		t.Errorf("Expected result from second attempt, got %q", result)
	}
}

// TestDo_ContextCancellation verifies parent context cancellation stops
// the loop without retrying
func TestDo_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int32

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := Do(ctx, fastConfig(5), nil, func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(200 * time.Millisecond)
		return "", errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("Expected 1 call, got %d", got)
	}
}
