package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hunt/internal/common"
	"github.com/ternarybob/hunt/internal/handlers"
	"github.com/ternarybob/hunt/internal/interfaces"
	"github.com/ternarybob/hunt/internal/pipeline"
	"github.com/ternarybob/hunt/internal/services/detector"
	"github.com/ternarybob/hunt/internal/services/discovery"
	"github.com/ternarybob/hunt/internal/services/embeddings"
	"github.com/ternarybob/hunt/internal/services/events"
	"github.com/ternarybob/hunt/internal/services/extractor"
	"github.com/ternarybob/hunt/internal/services/fetcher"
	"github.com/ternarybob/hunt/internal/services/llm"
	"github.com/ternarybob/hunt/internal/services/maintenance"
	"github.com/ternarybob/hunt/internal/services/matcher"
	"github.com/ternarybob/hunt/internal/services/scheduler"
	"github.com/ternarybob/hunt/internal/storage"
)

// App wires the full service graph: storage, events, fetcher, pipeline
// services, orchestrator, scheduler, and the HTTP handlers.
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	Storage      interfaces.StorageManager
	Events       interfaces.EventService
	Fetcher      *fetcher.Service
	BrowserPool  *fetcher.BrowserPool
	Orchestrator *pipeline.Orchestrator
	Scheduler    *scheduler.Service
	Matcher      *matcher.Service

	JobHandler       *handlers.JobHandler
	CandidateHandler *handlers.CandidateHandler
	PipelineHandler  *handlers.PipelineHandler
	DiscoveryHandler *handlers.DiscoveryHandler
	SchedulerHandler *handlers.SchedulerHandler
	WSHandler        *handlers.WSHandler
}

// New builds the application. Startup order: storage, variable load, events,
// fetcher (plus browser pool), domain services, orchestrator (with orphan
// reconciliation), scheduler resume, handlers.
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	ctx := context.Background()

	storageManager, err := storage.NewStorageManager(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Secrets and variables from the keys directory feed config references
	if err := storageManager.LoadVariablesFromFiles(ctx, config.Keys.Dir); err != nil {
		logger.Warn().Err(err).Msg("Failed to load variables from key files")
	}

	eventService := events.NewService(logger)

	// Browser pool is optional: a failed init degrades rendered fetches, not
	// the whole service
	poolConfig := fetcher.BrowserPoolConfig{
		MaxInstances:   config.Fetcher.BrowserPoolSize,
		UserAgent:      firstUserAgent(config),
		Headless:       config.Fetcher.BrowserHeadless,
		NoSandbox:      config.Fetcher.BrowserNoSandbox,
		RequestTimeout: time.Duration(config.Fetcher.RenderTimeoutSecs) * time.Second,
	}
	browserPool := fetcher.NewBrowserPool(poolConfig, logger)
	if config.Fetcher.BrowserPoolSize > 0 {
		if err := browserPool.Init(poolConfig); err != nil {
			logger.Warn().Err(err).Msg("Browser pool unavailable, rendered fetches disabled")
		}
	}

	fetchService := fetcher.NewService(&config.Fetcher, browserPool, storageManager.CrawlSnapshotStorage(), logger)

	detectorService := detector.NewService(fetchService, logger)

	// Discovery sources from config; each is a registry entry
	sourceRegistry := discovery.NewRegistry()
	sourceRegistry.Register(discovery.NewSeedSource(
		config.Discovery.SeedFile,
		sourceEnabled(config, "seed"),
		logger,
	))
	sourceRegistry.Register(discovery.NewCatalogSource(
		config.Discovery.CatalogURL,
		sourceEnabled(config, "catalog"),
		fetchService,
		logger,
	))

	discoveryService := discovery.NewService(
		&config.Discovery,
		sourceRegistry,
		storageManager.DiscoveryQueueStorage(),
		storageManager.CompanyStorage(),
		detectorService,
		eventService,
		logger,
	)

	// LLM provider factory backs the custom-ATS extractor
	providerFactory := llm.NewProviderFactory(
		&config.Gemini,
		&config.Claude,
		&config.LLM,
		storageManager.KeyValueStorage(),
		logger,
	)

	extractorRegistry := extractor.NewRegistry()
	extractorRegistry.Register(extractor.NewGreenhouseExtractor(fetchService, logger))
	extractorRegistry.Register(extractor.NewLeverExtractor(fetchService, logger))
	extractorRegistry.Register(extractor.NewAshbyExtractor(fetchService, logger))
	extractorRegistry.Register(extractor.NewWorkdayExtractor(fetchService, config.Extractor.WorkdayPageSize, logger))
	extractorRegistry.Register(extractor.NewCustomExtractor(fetchService, providerFactory, &config.Extractor, logger))

	enricher := extractor.NewEnricher(fetchService, storageManager.RawJobStorage(), &config.Extractor, logger)

	embeddingService := embeddings.NewService(&config.Embeddings, logger)

	maintenanceService := maintenance.NewService(
		&config.Maintenance,
		storageManager.CompanyStorage(),
		storageManager.JobStorage(),
		extractorRegistry,
		eventService,
		logger,
	)
	maintenanceService.EnableSnapshotGC(storageManager.CrawlSnapshotStorage(), config.Pipeline.SnapshotRetentionDays)

	matcherService := matcher.NewService(
		&config.Matcher,
		storageManager.JobStorage(),
		storageManager.CandidateStorage(),
		storageManager.MatchStorage(),
		storageManager.CompanyStorage(),
		eventService,
		logger,
	)

	orchestrator := pipeline.NewOrchestrator(
		config,
		storageManager,
		discoveryService,
		extractorRegistry,
		enricher,
		embeddingService,
		maintenanceService,
		eventService,
		logger,
	)

	// Runs left open by a prior process become failed/orphaned before any
	// new run starts
	if err := orchestrator.ReconcileOrphans(ctx); err != nil {
		logger.Warn().Err(err).Msg("Failed to reconcile orphaned pipeline runs")
	}

	schedulerService := scheduler.NewService(orchestrator, storageManager.KeyValueStorage(), logger)
	if config.Scheduler.Enabled {
		if err := schedulerService.Start(config.Scheduler.IntervalHours); err != nil {
			logger.Warn().Err(err).Msg("Failed to start scheduler from config")
		}
	} else {
		schedulerService.Resume(ctx)
	}

	application := &App{
		Config:       config,
		Logger:       logger,
		Storage:      storageManager,
		Events:       eventService,
		Fetcher:      fetchService,
		BrowserPool:  browserPool,
		Orchestrator: orchestrator,
		Scheduler:    schedulerService,
		Matcher:      matcherService,

		JobHandler: handlers.NewJobHandler(
			storageManager.JobStorage(),
			storageManager.CompanyStorage(),
			storageManager.MatchStorage(),
			logger,
		),
		CandidateHandler: handlers.NewCandidateHandler(
			storageManager.CandidateStorage(),
			storageManager.MatchStorage(),
			storageManager.JobStorage(),
			matcherService,
			logger,
		),
		PipelineHandler:  handlers.NewPipelineHandler(orchestrator, schedulerService, storageManager, logger),
		DiscoveryHandler: handlers.NewDiscoveryHandler(orchestrator, discoveryService, logger),
		SchedulerHandler: handlers.NewSchedulerHandler(schedulerService, logger),
		WSHandler:        handlers.NewWSHandler(eventService, logger),
	}

	logger.Info().Msg("Application initialized")
	return application, nil
}

// Close tears down the service graph in reverse dependency order
func (a *App) Close() {
	if a.Scheduler != nil {
		if err := a.Scheduler.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler")
		}
	}
	if a.BrowserPool != nil {
		if err := a.BrowserPool.Shutdown(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to shut down browser pool")
		}
	}
	if a.Events != nil {
		a.Events.Close()
	}
	if a.Storage != nil {
		if err := a.Storage.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage")
		}
	}
	a.Logger.Info().Msg("Application closed")
}

// firstUserAgent returns the first configured crawl user agent
func firstUserAgent(config *common.Config) string {
	if len(config.Fetcher.UserAgents) > 0 {
		return config.Fetcher.UserAgents[0]
	}
	return "HuntBot/1.0"
}

// sourceEnabled reports whether a discovery source name is in the enabled list
func sourceEnabled(config *common.Config, name string) bool {
	for _, enabled := range config.Discovery.EnabledSources {
		if enabled == name {
			return true
		}
	}
	return false
}
