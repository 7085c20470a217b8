package jobs

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/nodeforge/livegen/pkg/logging"
	"github.com/nodeforge/livegen/pkg/metrics"
)

// Projector converts a raw gateway result into host-native outputs for
// one modality. Implementations perform network fetches and file
// writes but never touch the store: they return cache fields for the
// getter to persist.
type Projector[O any] interface {
	// Accepts reports whether this modality handles the given job type
	Accepts(t Type) bool

	// Project converts the raw result into outputs plus the cache
	// fields worth persisting. An error signals a response-shape
	// mismatch or a failed fetch/decode; the getter maps it to
	// processing_error and it never propagates to the host.
	Project(ctx context.Context, rec Record) (O, map[string]any, error)

	// Restore rebuilds outputs from previously persisted cache fields.
	// ok is false when required fields are missing, which forces one
	// repair projection.
	Restore(cache map[string]any) (O, bool)
}

// Result is what a getter node hands back to the host graph. Outputs
// is only meaningful when Delivered is true; otherwise the node
// substitutes its modality placeholders. Status and Message map onto
// the trailing two elements of every getter node's output tuple.
type Result[O any] struct {
	Outputs   O
	Delivered bool
	Status    Status
	Message   string
}

// Getter reads a job record on each host evaluation pass, triages by
// status, projects the raw result exactly once, and serves the cached
// projection thereafter. One Getter belongs to one node instance.
type Getter[O any] struct {
	store     *Store
	projector Projector[O]
	logger    *logging.Logger

	// consumerID identifies the owning node instance for reference
	// tracking in the store; empty disables tracking.
	consumerID string

	mu            sync.Mutex
	lastDelivered string
}

// NewGetter creates a getter bound to a projector strategy
func NewGetter[O any](store *Store, projector Projector[O], consumerID string, logger *logging.Logger) *Getter[O] {
	if logger == nil {
		logger = logging.NewLogger(logging.INFO, false)
	}
	return &Getter[O]{
		store:      store,
		projector:  projector,
		logger:     logger,
		consumerID: consumerID,
	}
}

// Fetch runs the per-evaluation triage for a job id. It never blocks
// on the outbound call and never returns an error to the host: every
// failure mode is folded into Result.Status and Result.Message.
func (g *Getter[O]) Fetch(ctx context.Context, jobID string) Result[O] {
	g.evictSupplanted(jobID)

	if jobID == "" {
		return Result[O]{Status: StatusNotFound, Message: "No job ID provided."}
	}

	rec, ok := g.store.Get(jobID)
	if !ok {
		return Result[O]{Status: StatusNotFound, Message: fmt.Sprintf("Job ID %s not found in store.", jobID)}
	}

	if g.consumerID != "" {
		g.store.AddConsumer(jobID, g.consumerID)
	}

	if !g.projector.Accepts(rec.Type) {
		msg := fmt.Sprintf("Job type %q does not match the types expected by this getter.", rec.Type)
		g.logger.Warn(msg, map[string]interface{}{"job_id": jobID})
		g.store.Remove(jobID)
		return Result[O]{Status: StatusTypeMismatch, Message: msg}
	}

	switch rec.Status {
	case StatusFailed:
		msg := rec.Error
		if msg == "" {
			msg = "Unknown failure reason."
		}
		g.logger.Error("Job failed", map[string]interface{}{"job_id": jobID, "error": msg})
		g.store.Remove(jobID)
		return Result[O]{Status: StatusFailed, Message: msg}

	case StatusProcessingError:
		msg := rec.Error
		if msg == "" {
			msg = "Unknown processing error."
		}
		g.store.Remove(jobID)
		return Result[O]{Status: StatusProcessingError, Message: msg}

	case StatusPending:
		return Result[O]{Status: StatusPending, Message: "Job is pending."}

	case StatusDelivered:
		if outputs, restored := g.projector.Restore(rec.Processed); restored {
			g.rememberDelivered(jobID)
			return Result[O]{
				Outputs:   outputs,
				Delivered: true,
				Status:    StatusDelivered,
				Message:   "Results previously delivered.",
			}
		}
		// Delivered but missing cache fields: a synchronously stored job
		// reaching this getter for the first time. Repair with one
		// projection.
		g.logger.Info("Delivered job missing cache fields, projecting", map[string]interface{}{"job_id": jobID})
		return g.project(ctx, rec)

	case StatusCompletedPendingDelivery:
		return g.project(ctx, rec)

	default:
		return Result[O]{Status: rec.Status, Message: fmt.Sprintf("Unexpected status %q.", rec.Status)}
	}
}

// project performs the exactly-once conversion of a raw result and
// persists the outcome
func (g *Getter[O]) project(ctx context.Context, rec Record) Result[O] {
	start := time.Now()
	outputs, cache, err := g.projector.Project(ctx, rec)
	metrics.ProjectionSeconds.WithLabelValues(string(rec.Type)).Observe(time.Since(start).Seconds())

	if err != nil {
		msg := fmt.Sprintf("Failed to process result for job %s (%s): %v", rec.ID, rec.Type, err)
		g.logger.Error(msg)
		metrics.Projections.WithLabelValues(string(rec.Type), "processing_error").Inc()
		if rec.Status == StatusDelivered {
			// A failed repair cannot retry: the raw result was dropped
			// at delivery. Evict the record so its signal settles.
			g.store.Remove(rec.ID)
			g.forgetDelivered(rec.ID)
			return Result[O]{Status: StatusProcessingError, Message: msg}
		}
		g.store.StoreProcessed(rec.ID, nil, StatusProcessingError, msg)
		return Result[O]{Status: StatusProcessingError, Message: msg}
	}

	g.store.StoreProcessed(rec.ID, cache, StatusDelivered, "")
	g.rememberDelivered(rec.ID)
	metrics.Projections.WithLabelValues(string(rec.Type), "delivered").Inc()
	g.logger.Info("Job delivered", map[string]interface{}{"job_id": rec.ID, "type": string(rec.Type)})
	return Result[O]{Outputs: outputs, Delivered: true, Status: StatusDelivered}
}

// evictSupplanted removes the previously delivered record once this
// node instance starts tracking a different job. Best-effort: skipped
// when the old record already moved on or vanished.
func (g *Getter[O]) evictSupplanted(currentID string) {
	g.mu.Lock()
	last := g.lastDelivered
	if last != "" && last != currentID {
		g.lastDelivered = ""
	}
	g.mu.Unlock()

	if last == "" || last == currentID {
		return
	}
	if g.consumerID != "" {
		g.store.RemoveConsumer(last, g.consumerID)
	}
	if g.store.RemoveIf(last, StatusDelivered) {
		g.logger.Info("Evicted supplanted job", map[string]interface{}{"job_id": last})
	}
}

func (g *Getter[O]) rememberDelivered(jobID string) {
	g.mu.Lock()
	g.lastDelivered = jobID
	g.mu.Unlock()
}

func (g *Getter[O]) forgetDelivered(jobID string) {
	g.mu.Lock()
	if g.lastDelivered == jobID {
		g.lastDelivered = ""
	}
	g.mu.Unlock()
}

// Release drops this node instance's reference to the job it last
// delivered, letting the sweeper reclaim it
func (g *Getter[O]) Release() {
	g.mu.Lock()
	last := g.lastDelivered
	g.lastDelivered = ""
	g.mu.Unlock()

	if last != "" && g.consumerID != "" {
		g.store.RemoveConsumer(last, g.consumerID)
	}
}

// Signal is the host's re-execution probe. It must stay cheap and
// side-effect free: it reads the store and nothing else. The host
// equality-compares the returned value across ticks, so the value is
// volatile while the job is unsettled and stable once the job is
// settled and fully projected (or definitively gone).
func (g *Getter[O]) Signal(jobID string) string {
	if jobID == "" {
		return volatileSignal()
	}

	rec, ok := g.store.Get(jobID)
	if !ok {
		// Ids are never reused, so an absent record will not reappear
		return "gone:" + jobID
	}

	switch rec.Status {
	case StatusDelivered:
		if _, restored := g.projector.Restore(rec.Processed); restored {
			return jobID
		}
		// Needs one repair projection pass
		return volatileSignal()
	case StatusFailed, StatusProcessingError, StatusTypeMismatch:
		return jobID
	default:
		// pending / completed_pending_delivery: keep re-running
		return volatileSignal()
	}
}

func volatileSignal() string {
	return strconv.FormatInt(time.Now().UnixNano(), 10)
}
