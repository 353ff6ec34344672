package handlers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hunt/internal/interfaces"
	"github.com/ternarybob/hunt/internal/models"
	"github.com/ternarybob/hunt/internal/services/matcher"
)

// CandidateHandler serves the candidate-facing endpoints: profile reads and
// partial updates, waitlist sync, and the match list.
type CandidateHandler struct {
	candidates interfaces.CandidateStorage
	matches    interfaces.MatchStorage
	jobs       interfaces.JobStorage
	matcher    *matcher.Service
	validate   *validator.Validate
	logger     arbor.ILogger
}

// NewCandidateHandler creates a new candidate handler
func NewCandidateHandler(
	candidates interfaces.CandidateStorage,
	matches interfaces.MatchStorage,
	jobs interfaces.JobStorage,
	matcherSvc *matcher.Service,
	logger arbor.ILogger,
) *CandidateHandler {
	return &CandidateHandler{
		candidates: candidates,
		matches:    matches,
		jobs:       jobs,
		matcher:    matcherSvc,
		validate:   validator.New(),
		logger:     logger,
	}
}

// GetCandidateHandler handles GET /api/candidates/{id}
func (h *CandidateHandler) GetCandidateHandler(w http.ResponseWriter, r *http.Request) {
	candidate, err := h.candidates.GetCandidate(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteError(w, err)
		return
	}
	if candidate == nil {
		WriteDetail(w, http.StatusNotFound, "candidate not found")
		return
	}
	WriteJSON(w, http.StatusOK, candidate)
}

// candidatePatch is the partial-update request body; nil fields are untouched
type candidatePatch struct {
	Name          *string                `json:"name"`
	RoleFamilies  *[]models.RoleFamily   `json:"role_families"`
	Seniority     *models.Seniority      `json:"seniority"`
	MinSalary     *float64               `json:"min_salary"`
	Locations     *[]string              `json:"locations"`
	LocationTypes *[]models.LocationType `json:"location_types"`
	RoleTypes     *[]string              `json:"role_types"`
	Skills        *[]string              `json:"skills"`
	Exclusions    *[]string              `json:"exclusions"`
	IsActive      *bool                  `json:"is_active"`
}

// PatchCandidateHandler handles PATCH /api/candidates/{id}. Preference
// changes clear the embedding so the next embeddings stage regenerates it.
func (h *CandidateHandler) PatchCandidateHandler(w http.ResponseWriter, r *http.Request) {
	candidate, err := h.candidates.GetCandidate(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteError(w, err)
		return
	}
	if candidate == nil {
		WriteDetail(w, http.StatusNotFound, "candidate not found")
		return
	}

	var patch candidatePatch
	if err := DecodeBody(r, &patch); err != nil {
		WriteError(w, err)
		return
	}

	embeddingInputsChanged := false
	if patch.Name != nil {
		candidate.Name = *patch.Name
	}
	if patch.RoleFamilies != nil {
		candidate.RoleFamilies = *patch.RoleFamilies
		embeddingInputsChanged = true
	}
	if patch.Seniority != nil {
		candidate.Seniority = *patch.Seniority
		embeddingInputsChanged = true
	}
	if patch.MinSalary != nil {
		candidate.MinSalary = patch.MinSalary
	}
	if patch.Locations != nil {
		candidate.Locations = *patch.Locations
	}
	if patch.LocationTypes != nil {
		candidate.LocationTypes = *patch.LocationTypes
	}
	if patch.RoleTypes != nil {
		candidate.RoleTypes = *patch.RoleTypes
	}
	if patch.Skills != nil {
		candidate.Skills = *patch.Skills
		embeddingInputsChanged = true
	}
	if patch.Exclusions != nil {
		candidate.Exclusions = *patch.Exclusions
	}
	if patch.IsActive != nil {
		candidate.IsActive = *patch.IsActive
	}

	if embeddingInputsChanged {
		candidate.Embedding = nil
	}

	if err := candidate.Validate(); err != nil {
		WriteError(w, err)
		return
	}
	if err := h.candidates.UpdateCandidate(r.Context(), candidate); err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, candidate)
}

// waitlistSyncRequest is the upsert payload from the waitlist collaborator
type waitlistSyncRequest struct {
	Email         string                `json:"email" validate:"required,email"`
	Name          string                `json:"name"`
	RoleFamilies  []models.RoleFamily   `json:"role_families"`
	Seniority     models.Seniority      `json:"seniority"`
	MinSalary     *float64              `json:"min_salary"`
	Locations     []string              `json:"locations"`
	LocationTypes []models.LocationType `json:"location_types"`
	RoleTypes     []string              `json:"role_types"`
	Skills        []string              `json:"skills"`
}

// SyncFromWaitlistHandler handles POST /api/candidates/sync-from-waitlist
func (h *CandidateHandler) SyncFromWaitlistHandler(w http.ResponseWriter, r *http.Request) {
	var req waitlistSyncRequest
	if err := DecodeBody(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		WriteDetail(w, http.StatusBadRequest, "invalid waitlist record: "+err.Error())
		return
	}

	existing, err := h.candidates.GetCandidateByEmail(r.Context(), req.Email)
	if err != nil {
		WriteError(w, err)
		return
	}

	candidate := existing
	if candidate == nil {
		candidate = &models.CandidateProfile{
			ID:       models.NewCandidateID(),
			Email:    req.Email,
			IsActive: true,
		}
	}
	candidate.Name = req.Name
	candidate.RoleFamilies = req.RoleFamilies
	candidate.Seniority = req.Seniority
	candidate.MinSalary = req.MinSalary
	candidate.Locations = req.Locations
	candidate.LocationTypes = req.LocationTypes
	candidate.RoleTypes = req.RoleTypes
	candidate.Skills = req.Skills

	if err := h.candidates.SaveCandidate(r.Context(), candidate); err != nil {
		WriteError(w, err)
		return
	}

	h.logger.Info().Str("candidate_id", candidate.ID).Msg("Candidate synced from waitlist")

	status := http.StatusOK
	if existing == nil {
		status = http.StatusCreated
	}
	WriteJSON(w, status, candidate)
}

// GetMatchesHandler handles GET /api/candidates/{id}/matches with min_score
// and pagination. An empty result carries the structured no_matches_reason.
func (h *CandidateHandler) GetMatchesHandler(w http.ResponseWriter, r *http.Request) {
	candidate, err := h.candidates.GetCandidate(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteError(w, err)
		return
	}
	if candidate == nil {
		WriteDetail(w, http.StatusNotFound, "candidate not found")
		return
	}

	page, pageSize := GetPaginationParams(r)
	minScore := QueryFloat(r, "min_score", 0)

	all, err := h.matches.ListMatchesForCandidate(r.Context(), candidate.ID, 1000)
	if err != nil {
		WriteError(w, err)
		return
	}

	var filtered []*models.Match
	for _, match := range all {
		if match.Score >= minScore {
			filtered = append(filtered, match)
		}
	}

	if len(filtered) == 0 {
		// Explain the silence instead of returning a bare empty list
		outcome, matchErr := h.matcher.Match(r.Context(), candidate, matcher.Options{})
		reason := models.NoMatchExplanation{Reason: models.NoMatchAllFilteredScore}
		if matchErr == nil && outcome.NoMatch != nil {
			reason = *outcome.NoMatch
		} else if matchErr == nil && len(outcome.Results) > 0 {
			// Fresh matches appeared; serve them
			fresh, err := h.matches.ListMatchesForCandidate(r.Context(), candidate.ID, 1000)
			if err == nil {
				for _, match := range fresh {
					if match.Score >= minScore {
						filtered = append(filtered, match)
					}
				}
			}
		}
		if len(filtered) == 0 {
			WriteJSON(w, http.StatusOK, map[string]interface{}{
				"matches":           []*models.Match{},
				"total":             0,
				"page":              page,
				"page_size":         pageSize,
				"has_more":          false,
				"no_matches_reason": reason.Reason,
				"no_matches_detail": reason,
			})
			return
		}
	}

	total := len(filtered)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"matches":   filtered[start:end],
		"total":     total,
		"page":      page,
		"page_size": pageSize,
		"has_more":  end < total,
	})
}
