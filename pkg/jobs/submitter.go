package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nodeforge/livegen/pkg/logging"
	"github.com/nodeforge/livegen/pkg/metrics"
	"github.com/nodeforge/livegen/pkg/retry"
)

// Operation is one outbound gateway call, opaque to the lifecycle
// layer. The retry executor may invoke it zero or more times; each
// invocation receives a context that is cancelled when the attempt is
// abandoned or interrupted.
type Operation func(ctx context.Context) (any, error)

// Submitter creates job records and drives the outbound call, either
// inline (synchronous mode) or on a background goroutine. Either way
// the raw result lands in the store as completed_pending_delivery and
// delivery itself is left to a getter on a later evaluation pass: the
// host graph expects exactly one return value per node evaluation and
// cannot await a background result.
type Submitter struct {
	store       *Store
	logger      *logging.Logger
	interrupted func() bool
}

// NewSubmitter creates a submitter over the given store. interrupted
// is the host's "has the user requested this run stop" probe; nil
// means never interrupted.
func NewSubmitter(store *Store, logger *logging.Logger, interrupted func() bool) *Submitter {
	if logger == nil {
		logger = logging.NewLogger(logging.INFO, false)
	}
	return &Submitter{
		store:       store,
		logger:      logger,
		interrupted: interrupted,
	}
}

// Submit creates a fresh job and runs op under the retry policy.
//
// In synchronous mode the call happens inline: on success the raw
// result is stored before the id is returned; on failure the record is
// marked failed first, preserving observability for any getter still
// watching, and the error is returned for the host's node-failure UI.
//
// In asynchronous mode a background goroutine runs the call and the id
// returns immediately; the goroutine's outcome is only ever reported
// through the store.
func (s *Submitter) Submit(ctx context.Context, op Operation, t Type, runAsync bool, cfg retry.Config) (string, error) {
	id := uuid.NewString()
	s.store.Create(id, t)

	mode := "sync"
	if runAsync {
		mode = "async"
	}
	metrics.JobsSubmitted.WithLabelValues(string(t), mode).Inc()
	s.logger.Info("Job triggered", map[string]interface{}{
		"job_id": id, "type": string(t), "mode": mode,
	})

	if !runAsync {
		result, err := retry.Do(ctx, cfg, s.interrupted, op)
		if err != nil {
			s.recordFailure(id, t, err)
			return id, fmt.Errorf("job %s (%s): %w", id, t, err)
		}
		s.store.SetCompleted(id, result)
		metrics.JobsCompleted.WithLabelValues(string(t)).Inc()
		s.logger.Info("Job stored for getter", map[string]interface{}{"job_id": id, "type": string(t)})
		return id, nil
	}

	go s.runAsync(id, t, op, cfg)
	return id, nil
}

// runAsync executes the operation on a background goroutine. The
// goroutine must never crash the process: a panic is recorded as a job
// failure. An error that somehow escapes recording leaves the record
// pending forever, which surfaces to the user as an indefinite pending
// status rather than a crash.
func (s *Submitter) runAsync(id string, t Type, op Operation, cfg retry.Config) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic in background job", map[string]interface{}{"job_id": id, "panic": fmt.Sprint(r)})
			s.store.SetFailed(id, fmt.Sprintf("internal error: %v", r))
			metrics.JobsFailed.WithLabelValues(string(t)).Inc()
		}
	}()

	s.logger.Info("Background job starting", map[string]interface{}{"job_id": id, "type": string(t)})

	// The submitting evaluation pass is long gone by the time this
	// finishes; the goroutine owns its own lifetime.
	result, err := retry.Do(context.Background(), cfg, s.interrupted, op)
	if err != nil {
		s.recordFailure(id, t, err)
		return
	}

	s.store.SetCompleted(id, result)
	metrics.JobsCompleted.WithLabelValues(string(t)).Inc()
	s.logger.Info("Background job successful", map[string]interface{}{"job_id": id, "type": string(t)})
}

func (s *Submitter) recordFailure(id string, t Type, err error) {
	s.store.SetFailed(id, err.Error())
	if errors.Is(err, retry.ErrInterrupted) {
		metrics.JobsInterrupted.WithLabelValues(string(t)).Inc()
		s.logger.Info("Job interrupted", map[string]interface{}{"job_id": id, "type": string(t)})
		return
	}
	metrics.JobsFailed.WithLabelValues(string(t)).Inc()
	s.logger.Error("Job failed", map[string]interface{}{
		"job_id": id, "type": string(t), "error": err.Error(),
	})
}
