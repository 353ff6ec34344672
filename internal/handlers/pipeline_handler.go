package handlers

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hunt/internal/interfaces"
	"github.com/ternarybob/hunt/internal/models"
	"github.com/ternarybob/hunt/internal/pipeline"
)

// PipelineHandler serves the admin pipeline endpoints: status, full runs,
// single-stage triggers, and analytics.
type PipelineHandler struct {
	orchestrator *pipeline.Orchestrator
	scheduler    interfaces.SchedulerService
	storage      interfaces.StorageManager
	logger       arbor.ILogger
}

// NewPipelineHandler creates a new pipeline handler
func NewPipelineHandler(
	orchestrator *pipeline.Orchestrator,
	schedulerSvc interfaces.SchedulerService,
	storage interfaces.StorageManager,
	logger arbor.ILogger,
) *PipelineHandler {
	return &PipelineHandler{
		orchestrator: orchestrator,
		scheduler:    schedulerSvc,
		storage:      storage,
		logger:       logger,
	}
}

// StatusHandler handles GET /api/admin/pipeline/status
func (h *PipelineHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	running := h.orchestrator.Registry().Running()

	var runningRun *models.PipelineRun
	for _, op := range running {
		if op.Parent == "" {
			run, err := h.storage.PipelineRunStorage().GetRun(ctx, op.RunID)
			if err == nil && run != nil {
				runningRun = run
				break
			}
		}
	}

	companies, _ := h.storage.CompanyStorage().CountCompanies(ctx)
	activeJobs, _ := h.storage.JobStorage().CountActiveJobs(ctx)
	pendingQueue, _ := h.storage.DiscoveryQueueStorage().CountByStatus(ctx, models.QueueItemPending)

	latest, _ := h.storage.PipelineRunStorage().GetLatestRunByStage(ctx, pipeline.OpFullPipeline)

	payload := map[string]interface{}{
		"pipeline": map[string]interface{}{
			"full_pipeline_running": h.orchestrator.IsFullPipelineRunning(),
			"latest_full_run":       latest,
		},
		"scheduler": h.scheduler.Status(),
		"stats": map[string]interface{}{
			"companies":               companies,
			"active_jobs":             activeJobs,
			"pending_discovery_queue": pendingQueue,
		},
		"running_operations": running,
	}
	if runningRun != nil {
		payload["running_run"] = runningRun
	}

	WriteJSON(w, http.StatusOK, payload)
}

// RunHandler handles POST /api/admin/pipeline/run with skip flags
func (h *PipelineHandler) RunHandler(w http.ResponseWriter, r *http.Request) {
	var skips pipeline.Skips
	if err := DecodeBody(r, &skips); err != nil {
		WriteError(w, err)
		return
	}

	runID, err := h.orchestrator.StartFullPipeline(skips)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"run_id": runID,
		"stage":  pipeline.OpFullPipeline,
		"skips":  skips,
	})
}

// CrawlHandler handles POST /api/admin/pipeline/crawl with optional ats_type
func (h *PipelineHandler) CrawlHandler(w http.ResponseWriter, r *http.Request) {
	var params struct {
		ATSType string `json:"ats_type"`
	}
	if err := DecodeBody(r, &params); err != nil {
		WriteError(w, err)
		return
	}
	if params.ATSType == "" {
		params.ATSType = r.URL.Query().Get("ats_type")
	}

	runID, err := h.orchestrator.StartCrawl(models.ATSType(params.ATSType))
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

// EnrichHandler handles POST /api/admin/pipeline/enrich with optional limit
func (h *PipelineHandler) EnrichHandler(w http.ResponseWriter, r *http.Request) {
	runID, err := h.orchestrator.StartEnrich(QueryInt(r, "limit", 0))
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

// EmbeddingsHandler handles POST /api/admin/pipeline/embeddings
func (h *PipelineHandler) EmbeddingsHandler(w http.ResponseWriter, r *http.Request) {
	runID, err := h.orchestrator.StartEmbeddings(QueryInt(r, "limit", 0))
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

// MaintenanceHandler handles POST /api/admin/pipeline/maintenance
func (h *PipelineHandler) MaintenanceHandler(w http.ResponseWriter, r *http.Request) {
	runID, err := h.orchestrator.StartMaintenance()
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

// CancelHandler handles POST /api/admin/pipeline/cancel?operation=
func (h *PipelineHandler) CancelHandler(w http.ResponseWriter, r *http.Request) {
	operation := r.URL.Query().Get("operation")
	if operation == "" {
		WriteDetail(w, http.StatusBadRequest, "operation is required")
		return
	}
	if err := h.orchestrator.Cancel(operation); err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}

// AnalyticsHandler handles GET /api/admin/analytics?days=: per-day counts of
// jobs ingested, companies discovered, and matches created over the window.
func (h *PipelineHandler) AnalyticsHandler(w http.ResponseWriter, r *http.Request) {
	days := QueryInt(r, "days", 30)
	if days <= 0 || days > 365 {
		days = 30
	}

	db, ok := h.storage.DB().(*sql.DB)
	if !ok || db == nil {
		WriteDetail(w, http.StatusInternalServerError, "analytics unavailable")
		return
	}

	since := time.Now().AddDate(0, 0, -days).Unix()

	series := func(table, column string) ([]map[string]interface{}, error) {
		rows, err := db.QueryContext(r.Context(),
			`SELECT date(`+column+`, 'unixepoch') AS day, COUNT(*)
			 FROM `+table+` WHERE `+column+` >= ? GROUP BY day ORDER BY day`, since)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var out []map[string]interface{}
		for rows.Next() {
			var day string
			var count int
			if err := rows.Scan(&day, &count); err != nil {
				return nil, err
			}
			out = append(out, map[string]interface{}{"day": day, "count": count})
		}
		return out, rows.Err()
	}

	jobs, err := series("jobs", "created_at")
	if err != nil {
		WriteError(w, err)
		return
	}
	companies, err := series("companies", "created_at")
	if err != nil {
		WriteError(w, err)
		return
	}
	matches, err := series("matches", "created_at")
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"days":               days,
		"jobs_ingested":      jobs,
		"companies_created":  companies,
		"matches_created":    matches,
	})
}
