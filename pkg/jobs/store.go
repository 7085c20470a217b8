package jobs

import (
	"sync"
	"time"

	"github.com/nodeforge/livegen/pkg/logging"
)

// Store is the process-wide source of truth for job state. One mutex
// guards the whole map; no method holds it across network calls or
// sleeps, so background execution goroutines and graph evaluation
// threads can interleave freely.
type Store struct {
	mu     sync.Mutex
	jobs   map[string]*Record
	logger *logging.Logger
}

// NewStore creates an empty in-memory job store
func NewStore(logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.NewLogger(logging.INFO, false)
	}
	return &Store{
		jobs:   make(map[string]*Record),
		logger: logger,
	}
}

// Create inserts a pending record. Creating an id twice is a
// programming error and is ignored with a warning; ids are never reused.
func (s *Store) Create(id string, t Type) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[id]; exists {
		s.logger.Warn("Job already exists, ignoring duplicate create", map[string]interface{}{"job_id": id})
		return
	}
	now := time.Now()
	s.jobs[id] = &Record{
		ID:          id,
		Type:        t,
		Status:      StatusPending,
		CreatedAt:   now,
		LastUpdated: now,
		Consumers:   make(map[string]struct{}),
	}
}

// Get retrieves a defensive copy of a job record
func (s *Store) Get(id string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.jobs[id]
	if !ok {
		return Record{}, false
	}
	return rec.clone(), true
}

// StatusOf returns the job status, or StatusNotFound for unknown ids.
// Cheap enough for the re-execution probe to call every tick.
func (s *Store) StatusOf(id string) Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.jobs[id]
	if !ok {
		return StatusNotFound
	}
	return rec.Status
}

// SetCompleted transitions a pending job to completed_pending_delivery,
// attaching the raw gateway result. Returns false if the job is absent
// or the transition would regress the state machine.
func (s *Store) SetCompleted(id string, result any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.jobs[id]
	if !ok {
		return false
	}
	if !CanTransition(rec.Status, StatusCompletedPendingDelivery) {
		s.logger.Warn("Rejected status transition", map[string]interface{}{
			"job_id": id, "from": string(rec.Status), "to": string(StatusCompletedPendingDelivery),
		})
		return false
	}
	rec.Status = StatusCompletedPendingDelivery
	rec.Result = result
	rec.LastUpdated = time.Now()
	return true
}

// SetFailed transitions a pending job to failed with a description of
// the last underlying error
func (s *Store) SetFailed(id string, errMsg string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.jobs[id]
	if !ok {
		return false
	}
	if !CanTransition(rec.Status, StatusFailed) {
		s.logger.Warn("Rejected status transition", map[string]interface{}{
			"job_id": id, "from": string(rec.Status), "to": string(StatusFailed),
		})
		return false
	}
	rec.Status = StatusFailed
	rec.Error = errMsg
	rec.LastUpdated = time.Now()
	return true
}

// StoreProcessed persists projection cache fields and moves the record
// to the given terminal status (delivered or processing_error). The raw
// result is dropped at this point: once projected it is never consulted
// again.
func (s *Store) StoreProcessed(id string, cache map[string]any, status Status, errMsg string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.jobs[id]
	if !ok {
		s.logger.Warn("Job disappeared before processed results could be saved", map[string]interface{}{"job_id": id})
		return false
	}
	if !CanTransition(rec.Status, status) {
		s.logger.Warn("Rejected status transition", map[string]interface{}{
			"job_id": id, "from": string(rec.Status), "to": string(status),
		})
		return false
	}
	if rec.Processed == nil {
		rec.Processed = make(map[string]any, len(cache))
	}
	for k, v := range cache {
		rec.Processed[k] = v
	}
	rec.Status = status
	rec.Error = errMsg
	rec.Result = nil
	rec.LastUpdated = time.Now()
	return true
}

// Remove deletes a record unconditionally
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return false
	}
	delete(s.jobs, id)
	return true
}

// RemoveIf deletes a record only when it is still in the given status.
// Used for best-effort eviction of supplanted delivered jobs.
func (s *Store) RemoveIf(id string, status Status) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.jobs[id]
	if !ok || rec.Status != status {
		return false
	}
	delete(s.jobs, id)
	return true
}

// AddConsumer records a node instance as holding a reference to the job
func (s *Store) AddConsumer(id, consumer string) bool {
	if consumer == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.jobs[id]
	if !ok {
		return false
	}
	rec.Consumers[consumer] = struct{}{}
	return true
}

// RemoveConsumer drops a node instance's reference
func (s *Store) RemoveConsumer(id, consumer string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.jobs[id]
	if !ok {
		return false
	}
	delete(rec.Consumers, consumer)
	return true
}

// All returns defensive copies of every record
func (s *Store) All() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Record, 0, len(s.jobs))
	for _, rec := range s.jobs {
		out = append(out, rec.clone())
	}
	return out
}

// Len returns the number of tracked jobs
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// StatusCounts returns job counts keyed by status string, for the
// metrics exporter
func (s *Store) StatusCounts() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]int)
	for _, rec := range s.jobs {
		out[string(rec.Status)]++
	}
	return out
}

// sweepExpired removes records that are terminal, unreferenced, and
// older than ttl. Returns how many were removed.
func (s *Store) sweepExpired(ttl time.Duration) int {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, rec := range s.jobs {
		if !rec.Status.Terminal() {
			continue
		}
		if len(rec.Consumers) > 0 {
			continue
		}
		if now.Sub(rec.LastUpdated) <= ttl {
			continue
		}
		delete(s.jobs, id)
		removed++
	}
	return removed
}
