package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DiscoveryQueueItem is a staged, deduplicated company candidate produced by
// a discovery source, awaiting ATS detection and company intake.
type DiscoveryQueueItem struct {
	ID            string          `json:"id" db:"id"`
	DedupeKey     string          `json:"dedupe_key" db:"dedupe_key"`
	Name          string          `json:"name" db:"name"`
	Domain        string          `json:"domain" db:"domain"`
	CareersURL    string          `json:"careers_url" db:"careers_url"`
	WebsiteURL    string          `json:"website_url" db:"website_url"`
	Country       string          `json:"country" db:"country"`
	Industry      string          `json:"industry" db:"industry"`
	EmployeeCount int             `json:"employee_count" db:"employee_count"`
	FundingStage  string          `json:"funding_stage" db:"funding_stage"`
	Source        string          `json:"source" db:"source"`
	Status        QueueItemStatus `json:"status" db:"status"`
	Attempts      int             `json:"attempts" db:"attempts"`
	LastError     string          `json:"last_error,omitempty" db:"last_error"`
	CompanyID     string          `json:"company_id,omitempty" db:"company_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// MaxQueueRetries is the default retry cap before an item is marked failed.
const MaxQueueRetries = 3

// DedupeKeyFor computes the normalized domain-fallback-name deduplication
// key used to merge discovery candidates across sources.
func DedupeKeyFor(domain, name string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	d = strings.TrimPrefix(d, "www.")
	if d != "" {
		return "domain:" + d
	}
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.Join(strings.Fields(n), " ")
	return "name:" + n
}

// NewDiscoveryQueueItemID generates a unique discovery queue item identifier.
func NewDiscoveryQueueItemID() string {
	return "dq_" + uuid.New().String()
}

// ExhaustedRetries reports whether the item has used up its retry budget.
func (d *DiscoveryQueueItem) ExhaustedRetries() bool {
	return d.Attempts >= MaxQueueRetries
}

// MergeFrom enriches d's nullable metadata fields with non-empty values from
// other, used when a newer discovery candidate collides with an existing
// queue entry on the same dedupe key. Existing non-empty values are kept.
func (d *DiscoveryQueueItem) MergeFrom(other *DiscoveryQueueItem) {
	if d.Domain == "" && other.Domain != "" {
		d.Domain = other.Domain
	}
	if d.CareersURL == "" && other.CareersURL != "" {
		d.CareersURL = other.CareersURL
	}
	if d.WebsiteURL == "" && other.WebsiteURL != "" {
		d.WebsiteURL = other.WebsiteURL
	}
	if d.Country == "" && other.Country != "" {
		d.Country = other.Country
	}
	if d.Industry == "" && other.Industry != "" {
		d.Industry = other.Industry
	}
	if d.EmployeeCount == 0 && other.EmployeeCount != 0 {
		d.EmployeeCount = other.EmployeeCount
	}
	if d.FundingStage == "" && other.FundingStage != "" {
		d.FundingStage = other.FundingStage
	}
}
