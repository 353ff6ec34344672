package models

import (
	"time"

	"github.com/google/uuid"
)

// Company is a prospective or confirmed employer tracked by the pipeline.
// ATS fields are owned exclusively by the ATS detector; every other writer
// must leave them untouched.
type Company struct {
	ID                string     `json:"id" db:"id"`
	Name              string     `json:"name" db:"name"`
	Domain            string     `json:"domain" db:"domain"`
	CareersURL        string     `json:"careers_url" db:"careers_url"`
	ATSType           ATSType    `json:"ats_type" db:"ats_type"`
	ATSIdentifier     string     `json:"ats_identifier" db:"ats_identifier"`
	CrawlPriority     int        `json:"crawl_priority" db:"crawl_priority"`
	IsActive          bool       `json:"is_active" db:"is_active"`
	LastCrawledAt     *time.Time `json:"last_crawled_at" db:"last_crawled_at"`
	LastMaintenanceAt *time.Time `json:"last_maintenance_at" db:"last_maintenance_at"`
	CrawlAttempts     int        `json:"crawl_attempts" db:"crawl_attempts"`
	NotFoundStreak    int        `json:"not_found_streak" db:"not_found_streak"`

	// Discovery metadata, enriched by whichever discovery source last touched this row.
	Source        string `json:"source" db:"source"`
	Country       string `json:"country" db:"country"`
	Industry      string `json:"industry" db:"industry"`
	EmployeeCount int    `json:"employee_count" db:"employee_count"`
	FundingStage  string `json:"funding_stage" db:"funding_stage"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NewCompanyID generates a unique company identifier.
func NewCompanyID() string {
	return "cmp_" + uuid.New().String()
}

// HasKnownATS reports whether the company has been matched to a known vendor.
func (c *Company) HasKnownATS() bool {
	switch c.ATSType {
	case ATSGreenhouse, ATSLever, ATSAshby, ATSWorkday:
		return true
	default:
		return false
	}
}

// Validate checks the company invariant: a known ATS type requires a non-empty identifier.
func (c *Company) Validate() error {
	if c.Name == "" {
		return NewValidationError("company", "name is required")
	}
	if c.HasKnownATS() && c.ATSIdentifier == "" {
		return NewValidationError("company", "ats_identifier is required when ats_type is known")
	}
	return nil
}

// DueForMaintenance reports whether the company has gone unchecked for at
// least window since its last maintenance pass.
func (c *Company) DueForMaintenance(window time.Duration, now time.Time) bool {
	if c.LastMaintenanceAt == nil {
		return true
	}
	return now.Sub(*c.LastMaintenanceAt) >= window
}
