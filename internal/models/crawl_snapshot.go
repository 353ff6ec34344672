package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// CrawlSnapshot is one immutable capture of a fetched URL: one row per
// (company, url, crawled_at). The most recent snapshot per URL is retained
// while the owning company is active; older ones may be garbage-collected.
type CrawlSnapshot struct {
	ID          string    `json:"id" db:"id"`
	CompanyID   string    `json:"company_id" db:"company_id"`
	URL         string    `json:"url" db:"url"`
	HTMLContent string    `json:"html_content" db:"html_content"`
	HTMLHash    string    `json:"html_hash" db:"html_hash"`
	StatusCode  int       `json:"status_code" db:"status_code"`
	Rendered    bool      `json:"rendered" db:"rendered"`
	CrawledAt   time.Time `json:"crawled_at" db:"crawled_at"`
}

// NewSnapshotID generates a unique crawl snapshot identifier.
func NewSnapshotID() string {
	return "snap_" + uuid.New().String()
}

// HashContent computes the canonical digest used for change detection.
// HTMLHash must always be the output of this function applied to HTMLContent.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// NewCrawlSnapshot builds a snapshot with its hash computed from content.
func NewCrawlSnapshot(companyID, url, content string, statusCode int, rendered bool) *CrawlSnapshot {
	return &CrawlSnapshot{
		ID:          NewSnapshotID(),
		CompanyID:   companyID,
		URL:         url,
		HTMLContent: content,
		HTMLHash:    HashContent(content),
		StatusCode:  statusCode,
		Rendered:    rendered,
		CrawledAt:   time.Now(),
	}
}

// Unchanged reports whether this snapshot's content digest matches a
// previously observed digest for the same URL.
func (s *CrawlSnapshot) Unchanged(previousHash string) bool {
	return previousHash != "" && s.HTMLHash == previousHash
}
