package models

import (
	"time"

	"github.com/google/uuid"
)

// RawJob holds the untouched strings observed from an extractor, keyed
// uniquely by (company, source_url). Re-extraction overwrites fields but
// preserves the row's ID.
type RawJob struct {
	ID              string    `json:"id" db:"id"`
	CompanyID       string    `json:"company_id" db:"company_id"`
	SourceURL       string    `json:"source_url" db:"source_url"`
	TitleRaw        string    `json:"title_raw" db:"title_raw"`
	DescriptionRaw  string    `json:"description_raw" db:"description_raw"`
	LocationRaw     string    `json:"location_raw" db:"location_raw"`
	DepartmentRaw   string    `json:"department_raw" db:"department_raw"`
	EmploymentRaw   string    `json:"employment_raw" db:"employment_raw"`
	SalaryRaw       string    `json:"salary_raw" db:"salary_raw"`
	PostedAtRaw     string    `json:"posted_at_raw" db:"posted_at_raw"`
	ExternalID      string    `json:"external_id" db:"external_id"`
	CanonicalJobID  string    `json:"canonical_job_id" db:"canonical_job_id"`
	EnrichFailedAt  *time.Time `json:"enrich_failed_at" db:"enrich_failed_at"`
	ExtractedAt     time.Time `json:"extracted_at" db:"extracted_at"`
}

// NewRawJobID generates a unique raw job identifier.
func NewRawJobID() string {
	return "rawjob_" + uuid.New().String()
}

// NeedsEnrichment reports whether the raw job is missing a description and
// has not already failed enrichment within the given skip window.
func (r *RawJob) NeedsEnrichment(skipWindow time.Duration, now time.Time) bool {
	if r.DescriptionRaw != "" {
		return false
	}
	if r.EnrichFailedAt == nil {
		return true
	}
	return now.Sub(*r.EnrichFailedAt) >= skipWindow
}
