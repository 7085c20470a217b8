package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nodeforge/livegen/pkg/logging"
	"github.com/nodeforge/livegen/pkg/retry"
)

// fakeProjector treats the raw result as a plain string and caches it
// under a single "text" field
type fakeProjector struct {
	types    []Type
	projects atomic.Int32
	fail     error
}

func (p *fakeProjector) Accepts(t Type) bool {
	for _, want := range p.types {
		if t == want {
			return true
		}
	}
	return false
}

func (p *fakeProjector) Project(_ context.Context, rec Record) (string, map[string]any, error) {
	p.projects.Add(1)
	if p.fail != nil {
		return "", nil, p.fail
	}
	text := fmt.Sprint(rec.Result)
	return text, map[string]any{"text": text}, nil
}

func (p *fakeProjector) Restore(cache map[string]any) (string, bool) {
	text, ok := cache["text"].(string)
	return text, ok
}

func testRetryConfig() retry.Config {
	return retry.Config{
		MaxAttempts:    3,
		InitialDelay:   time.Millisecond,
		BackoffFactor:  1.5,
		AttemptTimeout: time.Second,
		PollInterval:   time.Millisecond,
	}
}

func newLifecycle(t Type) (*Store, *Submitter, *fakeProjector, *Getter[string]) {
	logger := logging.NewLogger(logging.ERROR, false)
	store := NewStore(logger)
	sub := NewSubmitter(store, logger, nil)
	proj := &fakeProjector{types: []Type{t}}
	get := NewGetter[string](store, proj, "node-1", logger)
	return store, sub, proj, get
}

func TestSyncSubmitThenFetch(t *testing.T) {
	store, sub, proj, get := newLifecycle(TypeTextToImage)

	id, err := sub.Submit(context.Background(), func(ctx context.Context) (any, error) {
		return "hello", nil
	}, TypeTextToImage, false, testRetryConfig())
	if err != nil {
		t.Fatalf("sync submit failed: %v", err)
	}

	// The raw result must be in the store before Submit returns
	if got := store.StatusOf(id); got != StatusCompletedPendingDelivery {
		t.Fatalf("expected completed_pending_delivery, got %s", got)
	}

	res := get.Fetch(context.Background(), id)
	if !res.Delivered || res.Status != StatusDelivered {
		t.Fatalf("expected delivered, got %+v", res)
	}
	if res.Outputs != "hello" {
		t.Errorf("expected projected output, got %q", res.Outputs)
	}
	if n := proj.projects.Load(); n != 1 {
		t.Errorf("expected exactly one projection, got %d", n)
	}
}

func TestFetchDeliveredIsIdempotent(t *testing.T) {
	_, sub, proj, get := newLifecycle(TypeTextToImage)

	id, _ := sub.Submit(context.Background(), func(ctx context.Context) (any, error) {
		return "hello", nil
	}, TypeTextToImage, false, testRetryConfig())

	first := get.Fetch(context.Background(), id)
	for i := 0; i < 3; i++ {
		res := get.Fetch(context.Background(), id)
		if !res.Delivered || res.Outputs != first.Outputs {
			t.Fatalf("repeated fetch diverged: %+v", res)
		}
		if res.Message != "Results previously delivered." {
			t.Errorf("expected cached-delivery message, got %q", res.Message)
		}
	}
	if n := proj.projects.Load(); n != 1 {
		t.Errorf("repeated fetches must not re-project, got %d projections", n)
	}
}

func TestAsyncSubmitPendingThenDelivered(t *testing.T) {
	store, sub, proj, get := newLifecycle(TypeTextToImage)

	release := make(chan struct{})
	id, err := sub.Submit(context.Background(), func(ctx context.Context) (any, error) {
		<-release
		return "slow result", nil
	}, TypeTextToImage, true, testRetryConfig())
	if err != nil {
		t.Fatalf("async submit failed: %v", err)
	}

	res := get.Fetch(context.Background(), id)
	if res.Status != StatusPending {
		t.Fatalf("expected pending before completion, got %s", res.Status)
	}
	if proj.projects.Load() != 0 {
		t.Error("nothing to project while pending")
	}

	close(release)
	deadline := time.Now().Add(2 * time.Second)
	for store.StatusOf(id) == StatusPending {
		if time.Now().After(deadline) {
			t.Fatal("background job never completed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	res = get.Fetch(context.Background(), id)
	if !res.Delivered || res.Outputs != "slow result" {
		t.Fatalf("expected delivered result, got %+v", res)
	}
}

func TestSyncSubmitFailureRecordedBeforeReturn(t *testing.T) {
	store, sub, _, get := newLifecycle(TypeTextToImage)

	var calls atomic.Int32
	id, err := sub.Submit(context.Background(), func(ctx context.Context) (any, error) {
		calls.Add(1)
		return nil, errors.New("gateway 500")
	}, TypeTextToImage, false, testRetryConfig())
	if err == nil {
		t.Fatal("expected submit error")
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("expected 3 attempts, got %d", n)
	}
	if got := store.StatusOf(id); got != StatusFailed {
		t.Fatalf("failure must be recorded in the store, got %s", got)
	}

	res := get.Fetch(context.Background(), id)
	if res.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", res.Status)
	}
	if !strings.Contains(res.Message, "gateway 500") {
		t.Errorf("expected underlying error preserved, got %q", res.Message)
	}
	// A reported terminal failure is evicted; the next read is not_found
	if res := get.Fetch(context.Background(), id); res.Status != StatusNotFound {
		t.Errorf("expected not_found after eviction, got %s", res.Status)
	}
}

func TestInterruptedSubmitNeverRetries(t *testing.T) {
	logger := logging.NewLogger(logging.ERROR, false)
	store := NewStore(logger)
	sub := NewSubmitter(store, logger, func() bool { return true })

	var calls atomic.Int32
	id, err := sub.Submit(context.Background(), func(ctx context.Context) (any, error) {
		calls.Add(1)
		return nil, errors.New("boom")
	}, TypeTextToImage, false, testRetryConfig())
	if !errors.Is(err, retry.ErrInterrupted) {
		t.Fatalf("expected interruption error, got %v", err)
	}
	if n := calls.Load(); n > 1 {
		t.Errorf("interruption must preempt retries, got %d attempts", n)
	}
	if got := store.StatusOf(id); got != StatusFailed {
		t.Errorf("interrupted job should be marked failed, got %s", got)
	}
}

func TestProjectionFailureBecomesProcessingError(t *testing.T) {
	store, sub, proj, get := newLifecycle(TypeImageToVideo)
	proj.fail = errors.New("download failed: 404")

	id, _ := sub.Submit(context.Background(), func(ctx context.Context) (any, error) {
		return "raw video payload", nil
	}, TypeImageToVideo, false, testRetryConfig())

	res := get.Fetch(context.Background(), id)
	if res.Delivered {
		t.Fatal("projection failure must not deliver outputs")
	}
	if res.Status != StatusProcessingError {
		t.Fatalf("expected processing_error, got %s", res.Status)
	}
	if !strings.Contains(res.Message, "download failed") {
		t.Errorf("expected underlying cause in message, got %q", res.Message)
	}
	if got := store.StatusOf(id); got != StatusProcessingError {
		t.Errorf("processing_error must be persisted, got %s", got)
	}

	// Reported once, then evicted
	if res := get.Fetch(context.Background(), id); res.Status != StatusProcessingError {
		t.Fatalf("expected processing_error on second read, got %s", res.Status)
	}
	if res := get.Fetch(context.Background(), id); res.Status != StatusNotFound {
		t.Errorf("expected eviction after report, got %s", res.Status)
	}
	if n := proj.projects.Load(); n != 1 {
		t.Errorf("failed projection must not be re-attempted, got %d", n)
	}
}

func TestFailedRepairOfDeliveredJobEvicts(t *testing.T) {
	store, sub, proj, get := newLifecycle(TypeTextToImage)

	id, _ := sub.Submit(context.Background(), func(ctx context.Context) (any, error) {
		return "hello", nil
	}, TypeTextToImage, false, testRetryConfig())

	// Delivered with no usable cache fields, as a synchronously stored
	// job looks before any getter has seen it. Delivery drops the raw
	// result, so a failed repair has nothing left to project from.
	if !store.StoreProcessed(id, map[string]any{}, StatusDelivered, "") {
		t.Fatal("could not mark job delivered")
	}
	proj.fail = errors.New("raw result gone")

	res := get.Fetch(context.Background(), id)
	if res.Delivered {
		t.Fatal("failed repair must not deliver outputs")
	}
	if res.Status != StatusProcessingError {
		t.Fatalf("expected processing_error, got %s", res.Status)
	}

	if _, ok := store.Get(id); ok {
		t.Error("unrepairable delivered job must be evicted")
	}
	if res := get.Fetch(context.Background(), id); res.Status != StatusNotFound {
		t.Errorf("expected not_found after eviction, got %s", res.Status)
	}

	// With the record gone the signal settles; no evaluation loop keeps
	// spinning on a job that can never produce outputs
	a := get.Signal(id)
	time.Sleep(time.Millisecond)
	b := get.Signal(id)
	if a != b {
		t.Errorf("signal must be stable after eviction: %q vs %q", a, b)
	}
}

func TestTypeMismatchEvicts(t *testing.T) {
	store, sub, _, _ := newLifecycle(TypeTextToImage)

	id, _ := sub.Submit(context.Background(), func(ctx context.Context) (any, error) {
		return "a video", nil
	}, TypeImageToVideo, false, testRetryConfig())

	logger := logging.NewLogger(logging.ERROR, false)
	imageGetter := NewGetter[string](store, &fakeProjector{types: []Type{TypeTextToImage, TypeImageToImage}}, "node-2", logger)

	res := imageGetter.Fetch(context.Background(), id)
	if res.Status != StatusTypeMismatch {
		t.Fatalf("expected type_mismatch, got %s", res.Status)
	}
	if _, ok := store.Get(id); ok {
		t.Error("mismatched job must be evicted")
	}
	if res := imageGetter.Fetch(context.Background(), id); res.Status != StatusNotFound {
		t.Errorf("expected not_found after eviction, got %s", res.Status)
	}
}

func TestFetchUnknownID(t *testing.T) {
	_, _, _, get := newLifecycle(TypeTextToImage)

	res := get.Fetch(context.Background(), "deadbeef")
	if res.Status != StatusNotFound {
		t.Fatalf("expected not_found, got %s", res.Status)
	}
	if !strings.Contains(res.Message, "deadbeef") {
		t.Errorf("message should name the id, got %q", res.Message)
	}

	res = get.Fetch(context.Background(), "")
	if res.Status != StatusNotFound {
		t.Errorf("empty id should be not_found, got %s", res.Status)
	}
}

func TestSupplantedDeliveredEviction(t *testing.T) {
	store, sub, _, get := newLifecycle(TypeTextToImage)

	first, _ := sub.Submit(context.Background(), func(ctx context.Context) (any, error) {
		return "one", nil
	}, TypeTextToImage, false, testRetryConfig())
	if res := get.Fetch(context.Background(), first); !res.Delivered {
		t.Fatalf("first job not delivered: %+v", res)
	}

	second, _ := sub.Submit(context.Background(), func(ctx context.Context) (any, error) {
		return "two", nil
	}, TypeTextToImage, false, testRetryConfig())
	if res := get.Fetch(context.Background(), second); !res.Delivered {
		t.Fatalf("second job not delivered: %+v", res)
	}

	if _, ok := store.Get(first); ok {
		t.Error("tracking a new id must evict the previously delivered job")
	}
	if _, ok := store.Get(second); !ok {
		t.Error("current job must survive")
	}
}

func TestSignalVolatileUntilSettled(t *testing.T) {
	_, sub, _, get := newLifecycle(TypeTextToImage)

	release := make(chan struct{})
	id, _ := sub.Submit(context.Background(), func(ctx context.Context) (any, error) {
		<-release
		return "done", nil
	}, TypeTextToImage, true, testRetryConfig())

	a := get.Signal(id)
	time.Sleep(time.Millisecond)
	b := get.Signal(id)
	if a == b {
		t.Error("signal must stay volatile while the job is pending")
	}

	close(release)
	deadline := time.Now().Add(2 * time.Second)
	for get.Fetch(context.Background(), id).Status == StatusPending {
		if time.Now().After(deadline) {
			t.Fatal("job never completed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Delivered and projected: stable across reads
	a = get.Signal(id)
	time.Sleep(time.Millisecond)
	b = get.Signal(id)
	if a != b {
		t.Errorf("signal must be stable once delivered: %q vs %q", a, b)
	}
}

func TestSignalStableWhenGone(t *testing.T) {
	_, _, _, get := newLifecycle(TypeTextToImage)

	a := get.Signal("vanished")
	time.Sleep(time.Millisecond)
	b := get.Signal("vanished")
	if a != b {
		t.Errorf("signal for an unknown id must be stable: %q vs %q", a, b)
	}

	// No id at all means the upstream submit has not run yet
	a = get.Signal("")
	time.Sleep(time.Millisecond)
	b = get.Signal("")
	if a == b {
		t.Error("signal with no id must stay volatile")
	}
}
