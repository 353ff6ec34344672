package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hunt/internal/interfaces"
	"github.com/ternarybob/hunt/internal/models"
)

// JobHandler serves the public canonical-job endpoints.
type JobHandler struct {
	jobs      interfaces.JobStorage
	companies interfaces.CompanyStorage
	matches   interfaces.MatchStorage
	logger    arbor.ILogger
}

// NewJobHandler creates a new job handler
func NewJobHandler(jobs interfaces.JobStorage, companies interfaces.CompanyStorage, matches interfaces.MatchStorage, logger arbor.ILogger) *JobHandler {
	return &JobHandler{jobs: jobs, companies: companies, matches: matches, logger: logger}
}

// ListJobsHandler handles GET /api/jobs with filters and pagination
func (h *JobHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	page, pageSize := GetPaginationParams(r)
	active := true

	opts := &interfaces.JobListOptions{
		RoleFamily:   models.RoleFamily(r.URL.Query().Get("role_family")),
		Seniority:    models.Seniority(r.URL.Query().Get("seniority")),
		LocationType: models.LocationType(r.URL.Query().Get("location_type")),
		IsActive:     &active,
		Limit:        pageSize,
		Offset:       (page - 1) * pageSize,
	}

	jobs, err := h.jobs.ListJobs(r.Context(), opts)
	if err != nil {
		WriteError(w, err)
		return
	}
	total, err := h.jobs.CountJobs(r.Context(), opts)
	if err != nil {
		WriteError(w, err)
		return
	}

	if jobs == nil {
		jobs = []*models.Job{}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":      jobs,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
		"has_more":  page*pageSize < total,
	})
}

// GetJobHandler handles GET /api/jobs/{id}: one canonical job plus its company
func (h *JobHandler) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	job, err := h.jobs.GetJob(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}
	if job == nil {
		WriteDetail(w, http.StatusNotFound, "job not found")
		return
	}

	company, err := h.companies.GetCompany(r.Context(), job.CompanyID)
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"job":     job,
		"company": company,
	})
}

// ClickHandler handles POST /api/jobs/{id}/click?candidate_id=, recording
// clicked_at on the corresponding match.
func (h *JobHandler) ClickHandler(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	candidateID := r.URL.Query().Get("candidate_id")
	if candidateID == "" {
		WriteDetail(w, http.StatusBadRequest, "candidate_id is required")
		return
	}

	if err := h.matches.RecordClicked(r.Context(), candidateID, jobID); err != nil {
		WriteError(w, err)
		return
	}

	h.logger.Debug().
		Str("job_id", jobID).
		Str("candidate_id", candidateID).
		Msg("Match click recorded")

	WriteJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}
