package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mimir-aip/activelearn/pkg/models"
	"github.com/mimir-aip/activelearn/pkg/scheduler"
)

// ScheduleHandler handles schedule-related HTTP requests
type ScheduleHandler struct {
	service *scheduler.Service
}

// NewScheduleHandler creates a new schedule handler
func NewScheduleHandler(service *scheduler.Service) *ScheduleHandler {
	return &ScheduleHandler{
		service: service,
	}
}

// HandleSchedules handles schedule list and create operations
func (h *ScheduleHandler) HandleSchedules(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleList(w)
	case http.MethodPost:
		h.handleCreate(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleSchedule handles /api/schedules/{id} and /api/schedules/{id}/trigger
func (h *ScheduleHandler) HandleSchedule(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/schedules/")
	scheduleID, sub, _ := strings.Cut(path, "/")
	if scheduleID == "" {
		http.Error(w, "Schedule ID is required", http.StatusBadRequest)
		return
	}

	switch {
	case sub == "trigger" && r.Method == http.MethodPost:
		h.handleTrigger(w, r, scheduleID)
	case sub != "":
		http.NotFound(w, r)
	case r.Method == http.MethodGet:
		h.handleGet(w, scheduleID)
	case r.Method == http.MethodDelete:
		h.handleDelete(w, scheduleID)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleList lists all schedules
func (h *ScheduleHandler) handleList(w http.ResponseWriter) {
	schedules, err := h.service.List()
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to list schedules: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, schedules)
}

// handleCreate creates a new schedule
func (h *ScheduleHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req scheduler.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	schedule, err := h.service.Create(&req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, models.ErrConfiguration) || errors.Is(err, models.ErrInvalidBatchSize) {
			status = http.StatusBadRequest
		}
		http.Error(w, fmt.Sprintf("Failed to create schedule: %v", err), status)
		return
	}
	writeJSON(w, http.StatusCreated, schedule)
}

// handleGet retrieves a schedule
func (h *ScheduleHandler) handleGet(w http.ResponseWriter, scheduleID string) {
	schedule, err := h.service.Get(scheduleID)
	if err != nil {
		writeStoreError(w, "schedule", err)
		return
	}
	writeJSON(w, http.StatusOK, schedule)
}

// handleDelete deletes a schedule
func (h *ScheduleHandler) handleDelete(w http.ResponseWriter, scheduleID string) {
	if err := h.service.Delete(scheduleID); err != nil {
		writeStoreError(w, "schedule", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleTrigger runs a schedule now and returns the stored run
func (h *ScheduleHandler) handleTrigger(w http.ResponseWriter, r *http.Request, scheduleID string) {
	run, err := h.service.Trigger(r.Context(), scheduleID)
	if err != nil && run == nil {
		writeStoreError(w, "schedule", err)
		return
	}
	// A failed experiment still produced a run record
	writeJSON(w, http.StatusOK, run)
}
