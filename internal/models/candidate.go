package models

import (
	"time"

	"github.com/google/uuid"
)

// CandidateProfile is a waitlisted job seeker's preferences and derived
// embedding. It is created from a waitlist record and updated by the
// candidate-facing API (outside this pipeline's scope).
type CandidateProfile struct {
	ID             string         `json:"id" db:"id"`
	Email          string         `json:"email" db:"email"`
	Name           string         `json:"name" db:"name"`
	RoleFamilies   []RoleFamily   `json:"role_families" db:"role_families"`
	Seniority      Seniority      `json:"seniority" db:"seniority"`
	MinSalary      *float64       `json:"min_salary" db:"min_salary"`
	Locations      []string       `json:"locations" db:"locations"`
	LocationTypes  []LocationType `json:"location_types" db:"location_types"`
	RoleTypes      []string       `json:"role_types" db:"role_types"` // "permanent", "contract", "freelance"
	Skills         []string       `json:"skills" db:"skills"`
	Exclusions     []string       `json:"exclusions" db:"exclusions"` // excluded company names
	Embedding      []float32      `json:"embedding,omitempty" db:"embedding"`
	LastMatchedAt  *time.Time     `json:"last_matched_at" db:"last_matched_at"`
	LastNotifiedAt *time.Time     `json:"last_notified_at" db:"last_notified_at"`
	IsActive       bool           `json:"is_active" db:"is_active"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NewCandidateID generates a unique candidate identifier.
func NewCandidateID() string {
	return "cand_" + uuid.New().String()
}

// Validate checks that a candidate has the minimum identity required to persist.
func (c *CandidateProfile) Validate() error {
	if c.Email == "" {
		return NewValidationError("candidate", "email is required")
	}
	return nil
}

// HasEmbedding reports whether the candidate carries a usable vector.
func (c *CandidateProfile) HasEmbedding() bool {
	return len(c.Embedding) == EmbeddingDimension
}

// AllowsRoleFamily reports whether family satisfies the candidate's role
// family preference. An empty preference list allows every family.
func (c *CandidateProfile) AllowsRoleFamily(family RoleFamily) bool {
	if len(c.RoleFamilies) == 0 {
		return true
	}
	for _, f := range c.RoleFamilies {
		if f == family {
			return true
		}
	}
	return false
}

// AllowsLocationType reports whether locType satisfies the candidate's
// location type preference. An empty preference list allows every type.
func (c *CandidateProfile) AllowsLocationType(locType LocationType) bool {
	if len(c.LocationTypes) == 0 {
		return true
	}
	for _, t := range c.LocationTypes {
		if t == locType {
			return true
		}
	}
	return false
}

// Excludes reports whether companyName is on the candidate's exclusion list
// (case-sensitive exact match against the stored company name).
func (c *CandidateProfile) Excludes(companyName string) bool {
	for _, name := range c.Exclusions {
		if name == companyName {
			return true
		}
	}
	return false
}

// SkillSet returns the candidate's skills as a lookup set for overlap scoring.
func (c *CandidateProfile) SkillSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.Skills))
	for _, s := range c.Skills {
		set[s] = struct{}{}
	}
	return set
}
