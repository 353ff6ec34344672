package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hunt/internal/interfaces"
)

// SchedulerHandler serves the admin scheduler endpoints.
type SchedulerHandler struct {
	scheduler interfaces.SchedulerService
	logger    arbor.ILogger
}

// NewSchedulerHandler creates a new scheduler handler
func NewSchedulerHandler(schedulerSvc interfaces.SchedulerService, logger arbor.ILogger) *SchedulerHandler {
	return &SchedulerHandler{scheduler: schedulerSvc, logger: logger}
}

// StartHandler handles POST /api/admin/scheduler/start?interval_hours=
func (h *SchedulerHandler) StartHandler(w http.ResponseWriter, r *http.Request) {
	intervalHours := QueryInt(r, "interval_hours", 0)

	if err := h.scheduler.Start(intervalHours); err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, h.scheduler.Status())
}

// StopHandler handles POST /api/admin/scheduler/stop
func (h *SchedulerHandler) StopHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.scheduler.Stop(); err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, h.scheduler.Status())
}

// StatusHandler handles GET /api/admin/scheduler/status
func (h *SchedulerHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.scheduler.Status())
}
