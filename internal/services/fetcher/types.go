package fetcher

import (
	"net/http"

	"github.com/ternarybob/hunt/internal/models"
)

// Result is one completed URL acquisition: the content, how it was acquired,
// and whether it matched the previously stored digest for the same URL.
type Result struct {
	URL        string
	Content    string
	StatusCode int
	Headers    http.Header
	Rendered   bool
	Hash       string

	// Unchanged is true when the content digest matches the most recent
	// snapshot for this URL. The caller can skip re-extraction; no new
	// snapshot row was written.
	Unchanged bool

	// SnapshotID is the id of the snapshot row written for this fetch, empty
	// when Unchanged or when the caller requested no persistence.
	SnapshotID string
}

// Options controls a single fetch.
type Options struct {
	// CompanyID attributes the resulting snapshot to a company. When empty no
	// snapshot is persisted (probe-only fetches).
	CompanyID string

	// Render acquires the page via the headless browser pool instead of plain
	// HTTP.
	Render bool

	// WaitSelector, when rendering, waits for the selector to be visible
	// instead of network idle.
	WaitSelector string

	// APIEndpoint marks vendor-published API URLs, which bypass robots.txt
	// (ATS vendors publish these for programmatic access).
	APIEndpoint bool

	// SkipChangeDetection forces a snapshot write even when the digest is
	// unchanged.
	SkipChangeDetection bool
}

// Fatal classifies errors the retry loop must not retry: client errors other
// than 429, robots denials, and missing pages.
func Fatal(err error) bool {
	switch models.KindOf(err) {
	case models.KindHTTPClientError, models.KindRobotsDenied, models.KindNotFound:
		return true
	default:
		return false
	}
}
