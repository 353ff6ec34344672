package models

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Job is the canonical, normalized job derived from a RawJob. Uniqueness is
// (company, source_url), mirrored from its raw counterpart.
type Job struct {
	ID                 string         `json:"id" db:"id"`
	CompanyID          string         `json:"company_id" db:"company_id"`
	RawJobID           string         `json:"raw_job_id" db:"raw_job_id"`
	SourceURL          string         `json:"source_url" db:"source_url"`
	Title              string         `json:"title" db:"title"`
	RoleFamily         RoleFamily     `json:"role_family" db:"role_family"`
	RoleSpecialization string         `json:"role_specialization" db:"role_specialization"`
	Seniority          Seniority      `json:"seniority" db:"seniority"`
	LocationType       LocationType   `json:"location_type" db:"location_type"`
	Locations          []string       `json:"locations" db:"locations"`
	Skills             []string       `json:"skills" db:"skills"`
	MinSalary          *float64       `json:"min_salary" db:"min_salary"`
	MaxSalary          *float64       `json:"max_salary" db:"max_salary"`
	EmploymentType     EmploymentType `json:"employment_type" db:"employment_type"`
	PostedAt           *time.Time     `json:"posted_at" db:"posted_at"`
	FreshnessScore     float64        `json:"freshness_score" db:"freshness_score"`
	Embedding          []float32      `json:"embedding,omitempty" db:"embedding"`

	IsActive       bool         `json:"is_active" db:"is_active"`
	LastVerifiedAt *time.Time   `json:"last_verified_at" db:"last_verified_at"`
	DelistedAt     *time.Time   `json:"delisted_at" db:"delisted_at"`
	DelistReason   DelistReason `json:"delist_reason,omitempty" db:"delist_reason"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NewJobID generates a unique canonical job identifier.
func NewJobID() string {
	return "job_" + uuid.New().String()
}

// Validate checks the salary range invariant.
func (j *Job) Validate() error {
	if j.MinSalary != nil && j.MaxSalary != nil && *j.MinSalary > *j.MaxSalary {
		return NewValidationError("job", "min_salary must be <= max_salary")
	}
	return nil
}

// ComputeFreshness returns the freshness decay curve value for a job posted
// postedAt days before now, defaulting to 0.5 when postedAt is nil.
// freshness = 0.5 ^ (age_days / half_life_days)
func ComputeFreshness(postedAt *time.Time, now time.Time) float64 {
	if postedAt == nil {
		return 0.5
	}
	ageDays := now.Sub(*postedAt).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	return math.Pow(0.5, ageDays/FreshnessHalfLifeDays)
}

// Delist marks the job inactive with a reason, recording the transition time.
func (j *Job) Delist(reason DelistReason, now time.Time) {
	j.IsActive = false
	j.DelistedAt = &now
	j.DelistReason = reason
}

// HasEmbedding reports whether the job carries a usable vector.
func (j *Job) HasEmbedding() bool {
	return len(j.Embedding) == EmbeddingDimension
}

// SkillSet returns the job's skills as a lookup set for overlap scoring.
func (j *Job) SkillSet() map[string]struct{} {
	set := make(map[string]struct{}, len(j.Skills))
	for _, s := range j.Skills {
		set[s] = struct{}{}
	}
	return set
}
