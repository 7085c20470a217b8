// Package server exposes the generation nodes over HTTP for headless
// use: submit a job, poll it, and fetch projected results without a
// graph runtime in front.
package server

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"

	"github.com/nodeforge/livegen/pkg/auth"
	"github.com/nodeforge/livegen/pkg/jobs"
	"github.com/nodeforge/livegen/pkg/logging"
	"github.com/nodeforge/livegen/pkg/metrics"
	"github.com/nodeforge/livegen/pkg/nodes"
	"github.com/nodeforge/livegen/pkg/tracing"
)

// Server is the HTTP facade over the node environment
type Server struct {
	env    *nodes.Env
	logger *logging.Logger
	start  time.Time
}

// New creates a server over an existing node environment
func New(env *nodes.Env, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewLogger(logging.INFO, false)
	}
	return &Server{env: env, logger: logger, start: time.Now()}
}

// Router builds the route table. The tracing provider is optional.
func (s *Server) Router(provider *tracing.Provider) *mux.Router {
	r := mux.NewRouter()
	if provider != nil {
		r.Use(mux.MiddlewareFunc(tracing.HTTPMiddleware(provider)))
	}
	if key := s.env.Config.ServerAPIKey; key != "" {
		r.Use(mux.MiddlewareFunc(auth.Middleware(key, "/healthz", "/metrics")))
	}

	r.HandleFunc("/api/v1/generate/{type}", s.handleGenerate).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/jobs", s.handleListJobs).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/jobs/{id}", s.handleGetJob).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/jobs/{id}", s.handleDeleteJob).Methods(http.MethodDelete)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.NewExporter(s.env.Store)).Methods(http.MethodGet)
	return r
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Failed to encode response", map[string]interface{}{"error": err.Error()})
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// jobView is the API representation of a job record
type jobView struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
}

func viewOf(rec jobs.Record) jobView {
	return jobView{
		ID:          rec.ID,
		Type:        string(rec.Type),
		Status:      string(rec.Status),
		Error:       rec.Error,
		CreatedAt:   rec.CreatedAt,
		LastUpdated: rec.LastUpdated,
	}
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	records := s.env.Store.All()
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})

	statusFilter := r.URL.Query().Get("status")
	views := make([]jobView, 0, len(records))
	for _, rec := range records {
		if statusFilter != "" && string(rec.Status) != statusFilter {
			continue
		}
		views = append(views, viewOf(rec))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"jobs": views, "count": len(views)})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rec, ok := s.env.Store.Get(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, viewOf(rec))
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !s.env.Store.Remove(id) {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	s.logger.Info("Job removed via API", map[string]interface{}{"job_id": id})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": int(time.Since(s.start).Seconds()),
		"jobs_in_store":  s.env.Store.Len(),
	})
}
