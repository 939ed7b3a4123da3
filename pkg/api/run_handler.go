package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/mimir-aip/activelearn/pkg/models"
	"github.com/mimir-aip/activelearn/pkg/report"
	"github.com/mimir-aip/activelearn/pkg/store"
)

// RunHandler serves the experiment run history
type RunHandler struct {
	runs RunStore
}

// NewRunHandler creates a new run handler
func NewRunHandler(runs RunStore) *RunHandler {
	return &RunHandler{runs: runs}
}

// HandleRuns lists runs, newest first. ?limit=N caps the list.
func (h *RunHandler) HandleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := h.runs.ListRuns(limit)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to list runs: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// HandleRun handles /api/runs/{id} and /api/runs/{id}/curve
func (h *RunHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	runID, sub, _ := strings.Cut(path, "/")
	if runID == "" {
		http.Error(w, "Run ID is required", http.StatusBadRequest)
		return
	}

	switch {
	case sub == "curve" && r.Method == http.MethodGet:
		h.handleCurve(w, r, runID)
	case sub != "":
		http.NotFound(w, r)
	case r.Method == http.MethodGet:
		h.handleGet(w, runID)
	case r.Method == http.MethodDelete:
		h.handleDelete(w, runID)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *RunHandler) handleGet(w http.ResponseWriter, runID string) {
	run, err := h.runs.GetRun(runID)
	if err != nil {
		writeStoreError(w, "run", err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (h *RunHandler) handleDelete(w http.ResponseWriter, runID string) {
	if err := h.runs.DeleteRun(runID); err != nil {
		writeStoreError(w, "run", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCurve renders the learning curve of one metric as a text table
// followed by an ascii plot
func (h *RunHandler) handleCurve(w http.ResponseWriter, r *http.Request, runID string) {
	run, err := h.runs.GetRun(runID)
	if err != nil {
		writeStoreError(w, "run", err)
		return
	}

	metric := r.URL.Query().Get("metric")
	if metric == "" && len(run.Config.Metrics) > 0 {
		metric = run.Config.Metrics[0]
	}
	if !hasMetric(run, metric) {
		http.Error(w, fmt.Sprintf("Run %s has no metric %q", runID, metric), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	report.LearningCurve(w, run, metric)
	fmt.Fprintln(w)
	fmt.Fprintln(w, report.Plot(run, metric, 10))
}

func hasMetric(run *models.ExperimentRun, metric string) bool {
	for _, m := range run.Config.Metrics {
		if m == metric {
			return true
		}
	}
	return false
}

func writeStoreError(w http.ResponseWriter, kind string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, fmt.Sprintf("%s not found", kind), http.StatusNotFound)
		return
	}
	http.Error(w, fmt.Sprintf("Failed to access %s: %v", kind, err), http.StatusInternalServerError)
}
