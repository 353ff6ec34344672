package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hunt/internal/pipeline"
	"github.com/ternarybob/hunt/internal/services/discovery"
)

// DiscoveryHandler serves the admin discovery endpoints.
type DiscoveryHandler struct {
	orchestrator *pipeline.Orchestrator
	discovery    *discovery.Service
	logger       arbor.ILogger
}

// NewDiscoveryHandler creates a new discovery handler
func NewDiscoveryHandler(orchestrator *pipeline.Orchestrator, discoverySvc *discovery.Service, logger arbor.ILogger) *DiscoveryHandler {
	return &DiscoveryHandler{orchestrator: orchestrator, discovery: discoverySvc, logger: logger}
}

// RunHandler handles POST /api/admin/discovery/run with optional source_names
func (h *DiscoveryHandler) RunHandler(w http.ResponseWriter, r *http.Request) {
	var params struct {
		SourceNames []string `json:"source_names"`
		Limit       int      `json:"limit"`
	}
	if err := DecodeBody(r, &params); err != nil {
		WriteError(w, err)
		return
	}

	runID, err := h.orchestrator.StartDiscovery(params.SourceNames, params.Limit)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"run_id":  runID,
		"sources": params.SourceNames,
	})
}

// ProcessQueueHandler handles POST /api/admin/discovery/process-queue?limit=
// synchronously: the queue drain is bounded and the caller wants the counts.
func (h *DiscoveryHandler) ProcessQueueHandler(w http.ResponseWriter, r *http.Request) {
	limit := QueryInt(r, "limit", 50)

	stats, err := h.discovery.ProcessQueue(r.Context(), limit)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, stats)
}

// SourcesHandler handles GET /api/admin/discovery/sources
func (h *DiscoveryHandler) SourcesHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"sources": h.discovery.Registry().Names(),
	})
}
