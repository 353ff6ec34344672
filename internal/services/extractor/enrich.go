package extractor

import (
	"context"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hunt/internal/common"
	"github.com/ternarybob/hunt/internal/interfaces"
	"github.com/ternarybob/hunt/internal/models"
	"github.com/ternarybob/hunt/internal/services/fetcher"
)

// Enricher fills in descriptions for raw jobs inserted by list-only
// endpoints (Workday search, sparse custom listings). Failures are soft: the
// job is stamped with enrich_failed_at and skipped for the rest of the
// current run window. A new full pipeline run clears the stamps (see the
// orchestrator's ResetEnrichFailures call) and re-attempts those jobs.
type Enricher struct {
	fetcher   *fetcher.Service
	rawJobs   interfaces.RawJobStorage
	config    *common.ExtractorConfig
	converter *md.Converter
	logger    arbor.ILogger
}

// EnrichStats summarizes one enrichment pass.
type EnrichStats struct {
	Attempted int `json:"attempted"`
	Enriched  int `json:"enriched"`
	Failed    int `json:"failed"`
}

// NewEnricher creates the enrichment sub-stage
func NewEnricher(fetchSvc *fetcher.Service, rawJobs interfaces.RawJobStorage, config *common.ExtractorConfig, logger arbor.ILogger) *Enricher {
	return &Enricher{
		fetcher:   fetchSvc,
		rawJobs:   rawJobs,
		config:    config,
		converter: md.NewConverter("", true, nil),
		logger:    logger,
	}
}

// Run enriches up to limit description-less raw jobs that have not already
// failed within the current run window. Per-job failures never abort the
// batch.
func (e *Enricher) Run(ctx context.Context, limit int, progress func(done, failed int)) (*EnrichStats, error) {
	jobs, err := e.rawJobs.ListRawJobsNeedingEnrichment(ctx, e.config.EnrichSkipWindowMin, limit)
	if err != nil {
		return nil, err
	}

	stats := &EnrichStats{}
	for _, job := range jobs {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		stats.Attempted++
		if err := e.enrichOne(ctx, job); err != nil {
			stats.Failed++
			e.logger.Debug().
				Err(err).
				Str("raw_job_id", job.ID).
				Str("source_url", job.SourceURL).
				Msg("Enrichment failed for job, marking skip window")
			if markErr := e.rawJobs.MarkEnrichFailed(ctx, job.ID); markErr != nil {
				e.logger.Warn().Err(markErr).Str("raw_job_id", job.ID).Msg("Failed to record enrichment failure")
			}
		} else {
			stats.Enriched++
		}

		if progress != nil {
			progress(stats.Enriched, stats.Failed)
		}
	}

	e.logger.Info().
		Int("attempted", stats.Attempted).
		Int("enriched", stats.Enriched).
		Int("failed", stats.Failed).
		Msg("Enrichment pass complete")

	return stats, nil
}

// enrichOne fetches the job's detail page and writes back the description
func (e *Enricher) enrichOne(ctx context.Context, job *models.RawJob) error {
	page, err := e.fetcher.Fetch(ctx, job.SourceURL, fetcher.Options{CompanyID: job.CompanyID})
	if err != nil {
		return err
	}

	description := e.extractDescription(page.Content)
	if description == "" {
		return models.NewError(models.KindParseError, "detail page yielded no description text")
	}

	job.DescriptionRaw = description
	job.ExtractedAt = time.Now()
	_, err = e.rawJobs.UpsertRawJob(ctx, job)
	return err
}

// extractDescription pulls the main content region of a detail page and
// converts it to markdown text. Falls back to the whole body.
func (e *Enricher) extractDescription(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	// Common detail-page content containers, most specific first
	selectors := []string{
		"[data-automation-id='jobPostingDescription']", // workday
		".job-description",
		".posting-description",
		"article",
		"main",
		"body",
	}

	for _, selector := range selectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		inner, err := sel.Html()
		if err != nil || strings.TrimSpace(inner) == "" {
			continue
		}
		text, err := e.converter.ConvertString(inner)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if len(text) > 40 { // too short to be a real description
			return text
		}
	}
	return ""
}
