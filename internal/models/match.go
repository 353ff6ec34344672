package models

import (
	"time"

	"github.com/google/uuid"
)

// MatchReasonDimension records one scoring dimension's signal and
// human-readable explanation. Dimensions with a zero weight contribution are
// omitted from the stored reasons.
type MatchReasonDimension struct {
	Dimension string  `json:"dimension"`
	Weight    float64 `json:"weight"`
	Signal    float64 `json:"signal"`
	Detail    string  `json:"detail"`
}

// MatchReasons is the structured explanation persisted alongside a match
// score, consumed verbatim by the UI.
type MatchReasons struct {
	Dimensions []MatchReasonDimension `json:"dimensions"`
}

// Match is the unique (candidate, job) scoring relationship. Usage events
// mutate the timestamps but never the score itself.
type Match struct {
	ID          string       `json:"id" db:"id"`
	CandidateID string       `json:"candidate_id" db:"candidate_id"`
	JobID       string       `json:"job_id" db:"job_id"`
	Score       float64      `json:"score" db:"score"`
	HardMatch   bool         `json:"hard_match" db:"hard_match"`
	Reasons     MatchReasons `json:"match_reasons" db:"match_reasons"`

	ShownAt    *time.Time `json:"shown_at" db:"shown_at"`
	ClickedAt  *time.Time `json:"clicked_at" db:"clicked_at"`
	AppliedAt  *time.Time `json:"applied_at" db:"applied_at"`
	DismissedAt *time.Time `json:"dismissed_at" db:"dismissed_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NewMatchID generates a unique match identifier.
func NewMatchID() string {
	return "match_" + uuid.New().String()
}

// NoMatchExplanation is returned instead of a match list when retrieval or
// filtering leaves nothing to score. Surfaced verbatim by the API.
type NoMatchExplanation struct {
	Reason           NoMatchReason `json:"reason"`
	CatalogSize      int           `json:"catalog_size"`
	VectorCandidates int           `json:"vector_candidates"`
	AfterHardFilter  int           `json:"after_hard_filter"`
	AfterScoreFilter int           `json:"after_score_filter"`
}
