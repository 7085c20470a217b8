package jobs

import (
	"time"
)

// Type tags a job with the generation modality that produced it.
// Getter nodes use it to reject jobs routed to the wrong modality.
type Type string

const (
	TypeTextToImage      Type = "t2i"
	TypeImageToImage     Type = "i2i"
	TypeImageToVideo     Type = "i2v"
	TypeImageToText      Type = "i2t"
	TypeUpscale          Type = "upscale"
	TypeSegment          Type = "segment"
	TypeAudioToText      Type = "a2t"
	TypeTextToSpeech     Type = "t2s"
	TypeLiveVideoToVideo Type = "live2v"
	TypeLLM              Type = "llm"
)

// Status represents the lifecycle state of a job
type Status string

const (
	// StatusPending - submitted, result not yet available
	StatusPending Status = "pending"
	// StatusCompletedPendingDelivery - the gateway call succeeded; the raw
	// result is stored and waits for a getter to project it
	StatusCompletedPendingDelivery Status = "completed_pending_delivery"
	// StatusDelivered - a getter projected the result; cache fields hold
	// the host-native outputs
	StatusDelivered Status = "delivered"
	// StatusFailed - the gateway call failed after exhausting retries
	StatusFailed Status = "failed"
	// StatusProcessingError - the raw result could not be projected
	StatusProcessingError Status = "processing_error"
	// StatusTypeMismatch - synthesized when a getter's expected modality
	// set does not contain the job's type
	StatusTypeMismatch Status = "type_mismatch"
	// StatusNotFound - synthesized for unknown job ids, never stored
	StatusNotFound Status = "not_found"
)

// Terminal returns true when no further transition is expected
func (s Status) Terminal() bool {
	switch s {
	case StatusDelivered, StatusFailed, StatusProcessingError, StatusTypeMismatch:
		return true
	}
	return false
}

// validTransitions maps from-status to allowed to-statuses. Transitions
// are monotonic: a record never regresses.
var validTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusCompletedPendingDelivery: true, // execution thread stored the result
		StatusFailed:                   true, // execution thread exhausted retries
	},
	StatusCompletedPendingDelivery: {
		StatusDelivered:       true, // getter projected successfully
		StatusProcessingError: true, // getter could not interpret the result
	},
	// A delivered record may be re-written with its own status to repair
	// missing cache fields (sync jobs reaching the getter for the first time)
	StatusDelivered: {
		StatusDelivered: true,
	},
	StatusFailed:          {},
	StatusProcessingError: {},
	StatusTypeMismatch:    {},
}

// CanTransition reports whether moving a record from one status to
// another respects the monotonic state machine
func CanTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	return allowed[to]
}

// Record is one tracked generation job. The store hands out copies;
// only the store mutates the canonical record, under its lock.
type Record struct {
	ID     string `json:"id"`
	Type   Type   `json:"type"`
	Status Status `json:"status"`

	// Result holds the raw gateway response while the job is in
	// completed_pending_delivery. Once delivered, Processed is the
	// source of truth and Result is no longer consulted.
	Result any `json:"-"`

	Error string `json:"error,omitempty"`

	// Processed holds the modality-specific cache fields written exactly
	// once, at the completed_pending_delivery -> delivered transition.
	Processed map[string]any `json:"-"`

	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`

	// Consumers tracks node instances currently holding a reference,
	// keeping the sweeper from evicting records still in use.
	Consumers map[string]struct{} `json:"-"`
}

// clone returns a defensive copy safe to hand to callers
func (r *Record) clone() Record {
	out := *r
	if r.Processed != nil {
		out.Processed = make(map[string]any, len(r.Processed))
		for k, v := range r.Processed {
			out.Processed[k] = v
		}
	}
	if r.Consumers != nil {
		out.Consumers = make(map[string]struct{}, len(r.Consumers))
		for k := range r.Consumers {
			out.Consumers[k] = struct{}{}
		}
	}
	return out
}
