package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mimir-aip/activelearn/pkg/models"
	"github.com/mimir-aip/activelearn/pkg/observability"
	"github.com/mimir-aip/activelearn/pkg/scheduler"
)

// RunStore is the run history the API serves
type RunStore interface {
	GetRun(id string) (*models.ExperimentRun, error)
	ListRuns(limit int) ([]*models.ExperimentRun, error)
	DeleteRun(id string) error
}

// Server provides HTTP API endpoints over stored experiment runs
type Server struct {
	runs       RunStore
	schedules  *scheduler.Service
	metrics    *observability.Metrics
	logger     *zap.Logger
	port       string
	mux        *http.ServeMux
	httpServer *http.Server
}

// NewServer creates a new API server. schedules and metrics may be nil,
// in which case their routes are not registered.
func NewServer(runs RunStore, schedules *scheduler.Service, metrics *observability.Metrics, logger *zap.Logger, port string) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		runs:      runs,
		schedules: schedules,
		metrics:   metrics,
		logger:    logger,
		port:      port,
		mux:       http.NewServeMux(),
	}

	s.registerRoutes()
	return s
}

// registerRoutes sets up the HTTP routes
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/ready", s.handleReady)

	runs := NewRunHandler(s.runs)
	s.mux.HandleFunc("/api/runs", runs.HandleRuns)
	s.mux.HandleFunc("/api/runs/", runs.HandleRun)

	if s.schedules != nil {
		schedules := NewScheduleHandler(s.schedules)
		s.mux.HandleFunc("/api/schedules", schedules.HandleSchedules)
		s.mux.HandleFunc("/api/schedules/", schedules.HandleSchedule)
	}

	if s.metrics != nil {
		s.mux.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))
	}
}

// Handler returns the routed handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%s", s.port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting API server", zap.String("addr", addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleReady reports ready once the run store answers
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.runs.ListRuns(1); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
