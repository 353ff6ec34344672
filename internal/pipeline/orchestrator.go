package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hunt/internal/common"
	"github.com/ternarybob/hunt/internal/interfaces"
	"github.com/ternarybob/hunt/internal/models"
	"github.com/ternarybob/hunt/internal/services/discovery"
	"github.com/ternarybob/hunt/internal/services/extractor"
	"github.com/ternarybob/hunt/internal/services/maintenance"
)

// Skips are the stage-level skip flags for a full pipeline run.
type Skips struct {
	Discovery  bool `json:"skip_discovery"`
	Crawl      bool `json:"skip_crawl"`
	Enrichment bool `json:"skip_enrichment"`
	Embeddings bool `json:"skip_embeddings"`
}

// Orchestrator composes the pipeline stages, tracks each as a registry
// operation with a durable pipeline_runs row, and enforces the concurrency
// policy.
type Orchestrator struct {
	config      *common.Config
	storage     interfaces.StorageManager
	discovery   *discovery.Service
	extractors  *extractor.Registry
	enricher    *extractor.Enricher
	embedder    interfaces.EmbeddingService
	maintenance *maintenance.Service
	registry    *Registry
	events      interfaces.EventService
	logger      arbor.ILogger
}

// NewOrchestrator wires the pipeline. events may be nil.
func NewOrchestrator(
	config *common.Config,
	storage interfaces.StorageManager,
	discoverySvc *discovery.Service,
	extractors *extractor.Registry,
	enricher *extractor.Enricher,
	embedder interfaces.EmbeddingService,
	maintenanceSvc *maintenance.Service,
	events interfaces.EventService,
	logger arbor.ILogger,
) *Orchestrator {
	return &Orchestrator{
		config:      config,
		storage:     storage,
		discovery:   discoverySvc,
		extractors:  extractors,
		enricher:    enricher,
		embedder:    embedder,
		maintenance: maintenanceSvc,
		registry:    NewRegistry(),
		events:      events,
		logger:      logger,
	}
}

// Registry exposes the live operation view for the status API.
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// ReconcileOrphans marks every database run left in running state by a prior
// process as failed with reason orphaned. Called once at startup before any
// new run begins.
func (o *Orchestrator) ReconcileOrphans(ctx context.Context) error {
	count, err := o.storage.PipelineRunStorage().MarkOrphanedRunsFailed(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		o.logger.Warn().Int("count", count).Msg("Marked orphaned pipeline runs as failed")
	}
	return nil
}

// StartFullPipeline launches the cascade: discovery -> crawl (each ATS a
// sub-operation) -> enrichment -> embeddings. Returns the parent run id
// immediately; the stages execute in the background.
func (o *Orchestrator) StartFullPipeline(skips Skips) (string, error) {
	return o.start(OpFullPipeline, OpFullPipeline, true, func(ctx context.Context, run *models.PipelineRun, tracker *progressTracker) error {
		// A new full run re-attempts jobs whose enrichment failed during a
		// prior run: the failure stamp only skips retries within one run
		cleared, err := o.storage.RawJobStorage().ResetEnrichFailures(ctx)
		if err != nil {
			return fmt.Errorf("reset enrichment skip window: %w", err)
		}
		if cleared > 0 {
			o.appendRunLog(ctx, run.ID, "info", "enrichment skip window reset", map[string]interface{}{
				"jobs_cleared": cleared,
			})
		}

		type stage struct {
			name string
			skip bool
			fn   func(context.Context, *models.PipelineRun, *progressTracker) error
		}
		stages := []stage{
			{"discovery", skips.Discovery, o.discoveryStage},
			{"crawl", skips.Crawl, func(ctx context.Context, run *models.PipelineRun, tracker *progressTracker) error {
				return o.crawlAllStage(ctx, run, tracker)
			}},
			{"enrichment", skips.Enrichment, o.enrichStage},
			{"embeddings", skips.Embeddings, o.embeddingsStage},
		}

		for _, s := range stages {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if s.skip {
				o.appendRunLog(ctx, run.ID, "info", fmt.Sprintf("stage %s skipped", s.name), nil)
				continue
			}
			tracker.Update(ctx, 0, 0, s.name)
			o.appendRunLog(ctx, run.ID, "info", fmt.Sprintf("stage %s starting", s.name), nil)
			if err := s.fn(ctx, run, tracker); err != nil {
				return fmt.Errorf("stage %s: %w", s.name, err)
			}
			o.appendRunLog(ctx, run.ID, "info", fmt.Sprintf("stage %s complete", s.name), nil)
		}
		return nil
	})
}

// StartDiscovery launches discovery intake plus queue processing.
func (o *Orchestrator) StartDiscovery(sourceNames []string, limit int) (string, error) {
	return o.start(OpDiscovery, "discovery", false, func(ctx context.Context, run *models.PipelineRun, tracker *progressTracker) error {
		return o.discoveryStageWithSources(ctx, run, tracker, sourceNames, limit)
	})
}

// StartCrawl launches a crawl of one ATS type, or all when ats is empty.
func (o *Orchestrator) StartCrawl(ats models.ATSType) (string, error) {
	if ats == "" {
		return o.start(OpCrawlAll, "crawl", false, func(ctx context.Context, run *models.PipelineRun, tracker *progressTracker) error {
			return o.crawlAllStage(ctx, run, tracker)
		})
	}
	if _, err := o.extractors.Get(ats); err != nil {
		return "", models.WrapError(models.KindInvalidArgument, "crawl", err)
	}
	return o.start(OpCrawl(ats), OpCrawl(ats), false, func(ctx context.Context, run *models.PipelineRun, tracker *progressTracker) error {
		return o.crawlATS(ctx, run, tracker, ats)
	})
}

// StartEnrich launches the enrichment sub-stage on its own.
func (o *Orchestrator) StartEnrich(limit int) (string, error) {
	return o.start(OpEnrich, "enrich", false, func(ctx context.Context, run *models.PipelineRun, tracker *progressTracker) error {
		return o.enrichStageWithLimit(ctx, run, tracker, limit)
	})
}

// StartEmbeddings launches the embeddings stage on its own.
func (o *Orchestrator) StartEmbeddings(limit int) (string, error) {
	return o.start(OpEmbeddings, "embeddings", false, func(ctx context.Context, run *models.PipelineRun, tracker *progressTracker) error {
		return o.embeddingsStageWithLimit(ctx, run, tracker, limit)
	})
}

// StartMaintenance launches the catalog re-verification pass.
func (o *Orchestrator) StartMaintenance() (string, error) {
	return o.start(OpMaintenance, "maintenance", false, func(ctx context.Context, run *models.PipelineRun, tracker *progressTracker) error {
		stats, err := o.maintenance.Run(ctx, func(done, failed int) {
			tracker.Update(ctx, done, failed, "verifying companies")
		})
		if stats != nil {
			tracker.Update(ctx, stats.CompaniesChecked, stats.Errors, "maintenance complete")
		}
		return err
	})
}

// IsFullPipelineRunning reports whether a full pipeline cascade is in flight
func (o *Orchestrator) IsFullPipelineRunning() bool {
	return o.registry.IsRunning(OpFullPipeline)
}

// Cancel cancels a running operation by type.
func (o *Orchestrator) Cancel(opType string) error {
	return o.registry.Cancel(opType)
}

// start is the shared operation lifecycle: database row first (status
// running), then the registry entry, then the stage body in a background
// goroutine; terminal transitions mirror in the opposite order.
func (o *Orchestrator) start(opType, stage string, cascade bool, fn func(context.Context, *models.PipelineRun, *progressTracker) error) (string, error) {
	run := models.NewPipelineRun(stage, cascade, "")

	ctx, cancel := context.WithCancel(context.Background())

	if err := o.storage.PipelineRunStorage().CreateRun(context.Background(), run); err != nil {
		cancel()
		return "", err
	}
	if err := o.registry.Begin(opType, run.ID, cancel); err != nil {
		cancel()
		o.closeRun(run.ID, models.RunStatusFailed, err.Error())
		return "", err
	}

	runLogger := o.logger.WithCorrelationId(run.ID)
	tracker := newProgressTracker(o.storage.PipelineRunStorage(), o.events, run.ID, stage,
		time.Duration(o.config.Pipeline.ProgressIntervalMS)*time.Millisecond, runLogger)

	o.publishRunEvent(interfaces.EventRunCreated, map[string]interface{}{
		"run_id":    run.ID,
		"stage":     stage,
		"cascade":   cascade,
		"timestamp": run.StartedAt,
	})

	common.SafeGo(runLogger, opType, func() {
		defer cancel()

		err := fn(ctx, run, tracker)
		tracker.Flush(context.Background())

		// Registry cleared first, then the durable row finalized
		o.registry.End(opType)

		status := models.RunStatusCompleted
		message := ""
		switch {
		case ctx.Err() != nil:
			status = models.RunStatusFailed
			message = "cancelled"
		case err == nil:
		default:
			status = models.RunStatusFailed
			message = err.Error()
		}
		o.closeRun(run.ID, status, message)

		duration := time.Since(run.StartedAt)
		o.publishRunEvent(interfaces.EventRunCompleted, map[string]interface{}{
			"run_id":           run.ID,
			"stage":            stage,
			"status":           string(status),
			"duration_seconds": duration.Seconds(),
			"timestamp":        time.Now(),
		})

		if err != nil {
			runLogger.Warn().Err(err).Str("stage", stage).Msg("Pipeline operation finished with failure")
		} else {
			runLogger.Info().Str("stage", stage).Dur("duration", duration).Msg("Pipeline operation complete")
		}
	})

	return run.ID, nil
}

// startChild runs a sub-operation synchronously inside a parent cascade,
// with its own run row and registry entry.
func (o *Orchestrator) startChild(ctx context.Context, parent *models.PipelineRun, opType, stage string, fn func(context.Context, *models.PipelineRun, *progressTracker) error) error {
	run := models.NewPipelineRun(stage, false, parent.ID)

	if err := o.storage.PipelineRunStorage().CreateRun(ctx, run); err != nil {
		return err
	}

	childCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := o.registry.BeginChild(opType, run.ID, OpFullPipeline, cancel); err != nil {
		o.closeRun(run.ID, models.RunStatusFailed, err.Error())
		return err
	}

	runLogger := o.logger.WithCorrelationId(run.ID)
	tracker := newProgressTracker(o.storage.PipelineRunStorage(), o.events, run.ID, stage,
		time.Duration(o.config.Pipeline.ProgressIntervalMS)*time.Millisecond, runLogger)

	err := fn(childCtx, run, tracker)
	tracker.Flush(context.Background())
	o.registry.End(opType)

	status := models.RunStatusCompleted
	message := ""
	if err != nil || childCtx.Err() != nil {
		status = models.RunStatusFailed
		if childCtx.Err() != nil {
			message = "cancelled"
		} else {
			message = err.Error()
		}
	}
	o.closeRun(run.ID, status, message)
	return err
}

// closeRun finalizes the durable run row
func (o *Orchestrator) closeRun(runID string, status models.RunStatus, message string) {
	if err := o.storage.PipelineRunStorage().CompleteRun(context.Background(), runID, status, message); err != nil {
		o.logger.Error().Err(err).Str("run_id", runID).Msg("Failed to finalize pipeline run row")
	}
}

// appendRunLog appends one entry to the run's durable log sequence
func (o *Orchestrator) appendRunLog(ctx context.Context, runID, level, message string, data map[string]interface{}) {
	entry := models.RunLogEntry{
		Timestamp: time.Now(),
		Level:     level,
		Message:   message,
		Data:      data,
	}
	if err := o.storage.PipelineRunStorage().AppendRunLog(ctx, runID, entry); err != nil {
		o.logger.Warn().Err(err).Str("run_id", runID).Msg("Failed to append run log entry")
	}
}

func (o *Orchestrator) publishRunEvent(eventType interfaces.EventType, payload map[string]interface{}) {
	if o.events == nil {
		return
	}
	common.SafeGo(o.logger, string(eventType), func() {
		o.events.Publish(context.Background(), interfaces.Event{Type: eventType, Payload: payload})
	})
}
