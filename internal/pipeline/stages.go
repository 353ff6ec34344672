package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ternarybob/hunt/internal/models"
	"github.com/ternarybob/hunt/internal/services/embeddings"
	"github.com/ternarybob/hunt/internal/services/normalizer"
)

// crawlATSOrder fixes the cascade's sub-operation order.
var crawlATSOrder = []models.ATSType{
	models.ATSGreenhouse,
	models.ATSLever,
	models.ATSAshby,
	models.ATSWorkday,
	models.ATSCustom,
}

// discoveryStage is the cascade's discovery body: intake from all enabled
// sources, then queue processing.
func (o *Orchestrator) discoveryStage(ctx context.Context, run *models.PipelineRun, tracker *progressTracker) error {
	return o.discoveryStageWithSources(ctx, run, tracker, nil, 0)
}

func (o *Orchestrator) discoveryStageWithSources(ctx context.Context, run *models.PipelineRun, tracker *progressTracker, sourceNames []string, limit int) error {
	tracker.Update(ctx, 0, 0, "discovery intake")
	intake, err := o.discovery.RunIntake(ctx, sourceNames, limit)
	if err != nil {
		return err
	}
	o.appendRunLog(ctx, run.ID, "info", "discovery intake complete", map[string]interface{}{
		"produced": intake.Produced,
		"inserted": intake.Inserted,
		"merged":   intake.Merged,
	})

	tracker.Update(ctx, intake.Produced, intake.Invalid, "processing discovery queue")
	processed, err := o.discovery.ProcessQueue(ctx, limit)
	if err != nil {
		return err
	}
	o.appendRunLog(ctx, run.ID, "info", "discovery queue processed", map[string]interface{}{
		"completed": processed.Completed,
		"skipped":   processed.Skipped,
		"failed":    processed.Failed,
	})

	tracker.Update(ctx, intake.Produced+processed.Processed, intake.Invalid+processed.Failed, "discovery complete")
	return nil
}

// crawlAllStage runs one crawl sub-operation per ATS type, sequentially in
// the fixed order. A failing vendor does not abort the remaining vendors.
func (o *Orchestrator) crawlAllStage(ctx context.Context, run *models.PipelineRun, tracker *progressTracker) error {
	for _, ats := range crawlATSOrder {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if _, err := o.extractors.Get(ats); err != nil {
			continue // vendor not wired in this deployment
		}

		tracker.Update(ctx, 0, 0, "crawl "+string(ats))
		err := o.startChild(ctx, run, OpCrawl(ats), OpCrawl(ats), func(childCtx context.Context, childRun *models.PipelineRun, childTracker *progressTracker) error {
			return o.crawlATS(childCtx, childRun, childTracker, ats)
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			// Per-vendor failures are terminal outcomes, not a stage failure
			o.appendRunLog(ctx, run.ID, "warn", fmt.Sprintf("crawl_%s finished with failure", ats), map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	return nil
}

// crawlATS crawls every active company on one ATS with the stage-local
// worker pool. Within a company, crawl and extract are sequenced; across
// companies there is no ordering.
func (o *Orchestrator) crawlATS(ctx context.Context, run *models.PipelineRun, tracker *progressTracker, ats models.ATSType) error {
	companies, err := o.storage.CompanyStorage().ListCompaniesByATS(ctx, ats)
	if err != nil {
		return err
	}
	if len(companies) == 0 {
		tracker.Update(ctx, 0, 0, "no companies for "+string(ats))
		return nil
	}

	var processed, failed atomic.Int64
	err = o.forEachParallel(ctx, len(companies), func(i int) {
		company := companies[i]
		if crawlErr := o.crawlCompany(ctx, company, ats); crawlErr != nil {
			failed.Add(1)
			o.appendRunLog(ctx, run.ID, "warn", "company crawl failed", map[string]interface{}{
				"company_id": company.ID,
				"company":    company.Name,
				"error":      crawlErr.Error(),
			})
		}
		processed.Add(1)
		tracker.Update(ctx, int(processed.Load()), int(failed.Load()), company.Name)
	})

	tracker.Update(ctx, int(processed.Load()), int(failed.Load()), "crawl complete")
	return err
}

// crawlCompany is one unit of crawl work: extract the listing, upsert raw
// jobs, normalize each into its canonical row, and stamp the company.
func (o *Orchestrator) crawlCompany(ctx context.Context, company *models.Company, ats models.ATSType) error {
	companyCtx := ctx
	if secs := o.config.Pipeline.CompanyCrawlSecs; secs > 0 {
		var cancel context.CancelFunc
		companyCtx, cancel = context.WithTimeout(ctx, time.Duration(secs)*time.Second)
		defer cancel()
	}

	ext, err := o.extractors.Get(ats)
	if err != nil {
		return err
	}

	now := time.Now()
	company.CrawlAttempts++
	company.LastCrawledAt = &now
	defer func() {
		if err := o.storage.CompanyStorage().UpdateCompany(context.Background(), company); err != nil {
			o.logger.Warn().Err(err).Str("company_id", company.ID).Msg("Failed to stamp company crawl time")
		}
	}()

	rawJobs, err := ext.List(companyCtx, company)
	if err != nil {
		return err
	}

	for _, raw := range rawJobs {
		stored, err := o.storage.RawJobStorage().UpsertRawJob(companyCtx, raw)
		if err != nil {
			return err
		}

		canonical := normalizer.Normalize(stored, now)
		if err := canonical.Validate(); err != nil {
			// Normalizer output violating its own invariants is a bug; skip
			// the job, never the stage
			o.logger.Error().Err(err).Str("raw_job_id", stored.ID).Msg("Normalized job failed validation, skipping")
			continue
		}

		persisted, err := o.storage.JobStorage().UpsertJob(companyCtx, canonical)
		if err != nil {
			return err
		}
		if stored.CanonicalJobID == "" {
			if err := o.storage.RawJobStorage().SetCanonicalJobID(companyCtx, stored.ID, persisted.ID); err != nil {
				return err
			}
		}
	}

	return nil
}

// enrichStage is the cascade's enrichment body
func (o *Orchestrator) enrichStage(ctx context.Context, run *models.PipelineRun, tracker *progressTracker) error {
	return o.enrichStageWithLimit(ctx, run, tracker, 0)
}

func (o *Orchestrator) enrichStageWithLimit(ctx context.Context, run *models.PipelineRun, tracker *progressTracker, limit int) error {
	if limit <= 0 {
		limit = 500
	}
	stats, err := o.enricher.Run(ctx, limit, func(done, failed int) {
		tracker.Update(ctx, done, failed, "enriching descriptions")
	})
	if stats != nil {
		tracker.Update(ctx, stats.Enriched, stats.Failed, "enrichment complete")
		o.appendRunLog(ctx, run.ID, "info", "enrichment complete", map[string]interface{}{
			"attempted": stats.Attempted,
			"enriched":  stats.Enriched,
			"failed":    stats.Failed,
		})
	}
	return err
}

// embeddingsStage is the cascade's embeddings body
func (o *Orchestrator) embeddingsStage(ctx context.Context, run *models.PipelineRun, tracker *progressTracker) error {
	return o.embeddingsStageWithLimit(ctx, run, tracker, 0)
}

// embeddingsStageWithLimit embeds jobs missing vectors, then active
// candidates missing vectors, in backend-sized batches.
func (o *Orchestrator) embeddingsStageWithLimit(ctx context.Context, run *models.PipelineRun, tracker *progressTracker, limit int) error {
	if limit <= 0 {
		limit = 1000
	}

	jobs, err := o.storage.JobStorage().ListJobsMissingEmbedding(ctx, limit)
	if err != nil {
		return err
	}

	processed, failed := 0, 0
	batchSize := o.config.Embeddings.BatchSize
	if batchSize <= 0 {
		batchSize = 32
	}

	for start := 0; start < len(jobs); start += batchSize {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		end := start + batchSize
		if end > len(jobs) {
			end = len(jobs)
		}
		batch := jobs[start:end]

		texts := make([]string, len(batch))
		for i, job := range batch {
			description := ""
			if raw, err := o.storage.RawJobStorage().GetRawJob(ctx, job.RawJobID); err == nil && raw != nil {
				description = raw.DescriptionRaw
			}
			texts[i] = embeddings.JobText(job.Title, job.Locations, job.Skills, description)
		}

		vectors, err := o.embedder.GenerateEmbeddings(ctx, texts)
		if err != nil {
			failed += len(batch)
			o.appendRunLog(ctx, run.ID, "warn", "embedding batch failed", map[string]interface{}{"error": err.Error()})
			tracker.Update(ctx, processed, failed, "embedding jobs")
			continue
		}

		for i, job := range batch {
			if err := o.storage.JobStorage().SetEmbedding(ctx, job.ID, vectors[i]); err != nil {
				failed++
				continue
			}
			processed++
		}
		tracker.Update(ctx, processed, failed, "embedding jobs")
	}

	// Candidates missing embeddings
	candidates, err := o.storage.CandidateStorage().ListActiveCandidates(ctx)
	if err != nil {
		return err
	}
	for _, candidate := range candidates {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if candidate.HasEmbedding() {
			continue
		}

		families := make([]string, len(candidate.RoleFamilies))
		for i, family := range candidate.RoleFamilies {
			families[i] = string(family)
		}
		text := embeddings.CandidateText(families, string(candidate.Seniority), candidate.Skills, "")

		vector, err := o.embedder.GenerateEmbedding(ctx, text)
		if err != nil {
			failed++
			continue
		}
		if err := o.storage.CandidateStorage().SetCandidateEmbedding(ctx, candidate.ID, vector); err != nil {
			failed++
			continue
		}
		processed++
		tracker.Update(ctx, processed, failed, "embedding candidates")
	}

	tracker.Update(ctx, processed, failed, "embeddings complete")
	return nil
}

// forEachParallel runs fn(i) for i in [0, count) on the stage-local worker
// pool, honoring cancellation between items.
func (o *Orchestrator) forEachParallel(ctx context.Context, count int, fn func(i int)) error {
	workers := o.config.Pipeline.Workers
	if workers <= 0 {
		workers = 8
	}
	if workers > count {
		workers = count
	}

	indexes := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				fn(i)
			}
		}()
	}

	var err error
feed:
	for i := 0; i < count; i++ {
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break feed
		case indexes <- i:
		}
	}
	close(indexes)
	wg.Wait()
	return err
}
