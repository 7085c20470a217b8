// Package metrics instruments the job lifecycle with Prometheus
// counters and exposes a /metrics handler that combines live job store
// state with the default registry.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

var (
	// JobsSubmitted counts jobs created, labeled by modality and
	// sync/async mode
	JobsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livegen_jobs_submitted_total",
		Help: "Total jobs submitted to the gateway",
	}, []string{"type", "mode"})

	// JobsCompleted counts gateway calls that produced a raw result
	JobsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livegen_jobs_completed_total",
		Help: "Total jobs whose gateway call succeeded",
	}, []string{"type"})

	// JobsFailed counts jobs that exhausted their retry budget
	JobsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livegen_jobs_failed_total",
		Help: "Total jobs that failed after exhausting retries",
	}, []string{"type"})

	// JobsInterrupted counts jobs stopped by user interruption
	JobsInterrupted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livegen_jobs_interrupted_total",
		Help: "Total jobs interrupted by the user before completion",
	}, []string{"type"})

	// Projections counts projector runs, labeled by outcome
	// (delivered or processing_error)
	Projections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livegen_projections_total",
		Help: "Total raw-result projections performed by getters",
	}, []string{"type", "outcome"})

	// ProjectionSeconds observes how long projection (including media
	// download and decode) takes per modality
	ProjectionSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "livegen_projection_duration_seconds",
		Help:    "Duration of raw-result projection including media download",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"type"})
)

// StoreSnapshot is the read-only view of the job store the exporter
// needs. Satisfied by *jobs.Store.
type StoreSnapshot interface {
	StatusCounts() map[string]int
}

// Exporter serves Prometheus-format metrics: live store gauges first,
// then everything registered with the default registry.
type Exporter struct {
	store     StoreSnapshot
	startTime time.Time
}

// NewExporter creates an exporter over the given store
func NewExporter(store StoreSnapshot) *Exporter {
	return &Exporter{
		store:     store,
		startTime: time.Now(),
	}
}

// ServeHTTP implements the /metrics endpoint
func (e *Exporter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	fmt.Fprintf(w, "# HELP livegen_uptime_seconds Time since the node host started\n")
	fmt.Fprintf(w, "# TYPE livegen_uptime_seconds gauge\n")
	fmt.Fprintf(w, "livegen_uptime_seconds %d\n", int64(time.Since(e.startTime).Seconds()))

	counts := e.store.StatusCounts()
	statuses := make([]string, 0, len(counts))
	total := 0
	for status, n := range counts {
		statuses = append(statuses, status)
		total += n
	}
	sort.Strings(statuses)

	fmt.Fprintf(w, "\n# HELP livegen_jobs_in_store Jobs currently tracked by the store\n")
	fmt.Fprintf(w, "# TYPE livegen_jobs_in_store gauge\n")
	fmt.Fprintf(w, "livegen_jobs_in_store %d\n", total)

	fmt.Fprintf(w, "\n# HELP livegen_jobs_by_status Jobs in the store by status\n")
	fmt.Fprintf(w, "# TYPE livegen_jobs_by_status gauge\n")
	for _, status := range statuses {
		fmt.Fprintf(w, "livegen_jobs_by_status{status=%q} %d\n", status, counts[status])
	}

	// Append the default registry (counters and histograms above)
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return
	}
	fmt.Fprintln(w)
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return
		}
	}
}
