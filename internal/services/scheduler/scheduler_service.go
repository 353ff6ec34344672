package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hunt/internal/common"
	"github.com/ternarybob/hunt/internal/interfaces"
	"github.com/ternarybob/hunt/internal/pipeline"
)

// KV keys persisting scheduler state across restarts.
const (
	kvKeyEnabled       = "scheduler_enabled"
	kvKeyIntervalHours = "scheduler_interval_hours"
)

// PipelineDriver is the slice of the orchestrator the scheduler drives.
type PipelineDriver interface {
	StartFullPipeline(skips pipeline.Skips) (string, error)
	IsFullPipelineRunning() bool
}

// Service is the single periodic driver: one schedule, one target (a full
// pipeline run). Ticks landing while a full run is in flight are skipped and
// logged.
type Service struct {
	driver PipelineDriver
	kv     interfaces.KeyValueStorage
	logger arbor.ILogger

	mu            sync.Mutex
	cron          *cron.Cron
	entryID       cron.EntryID
	intervalHours int
	lastRun       *time.Time
	running       bool
}

// NewService creates the scheduler. kv may be nil (state is not persisted).
func NewService(driver PipelineDriver, kv interfaces.KeyValueStorage, logger arbor.ILogger) *Service {
	return &Service{
		driver: driver,
		kv:     kv,
		logger: logger,
	}
}

// Resume restores the persisted scheduler state at startup.
func (s *Service) Resume(ctx context.Context) {
	if s.kv == nil {
		return
	}
	enabled, err := s.kv.Get(ctx, kvKeyEnabled)
	if err != nil || enabled != "true" {
		return
	}
	hours := 6
	if raw, err := s.kv.Get(ctx, kvKeyIntervalHours); err == nil {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			hours = parsed
		}
	}
	if err := s.Start(hours); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to resume scheduler from persisted state")
		return
	}
	s.logger.Info().Int("interval_hours", hours).Msg("Scheduler resumed from persisted state")
}

// Start begins ticking every intervalHours. Starting while already running
// is a no-op.
func (s *Service) Start(intervalHours int) error {
	if intervalHours <= 0 {
		intervalHours = 6
	}
	if err := common.ValidateIntervalHours(intervalHours); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Debug().Msg("Scheduler already running, start is a no-op")
		return nil
	}

	c := cron.New()
	entryID, err := c.AddFunc(fmt.Sprintf("@every %dh", intervalHours), s.tick)
	if err != nil {
		return fmt.Errorf("failed to schedule pipeline tick: %w", err)
	}
	c.Start()

	s.cron = c
	s.entryID = entryID
	s.intervalHours = intervalHours
	s.running = true

	s.persistState(true, intervalHours)

	s.logger.Info().Int("interval_hours", intervalHours).Msg("Scheduler started")
	return nil
}

// Stop halts ticking. Stopping while stopped is a no-op.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		s.logger.Debug().Msg("Scheduler already stopped, stop is a no-op")
		return nil
	}

	stopCtx := s.cron.Stop()
	// Bounded wait for an in-flight tick body (the tick itself only launches
	// a background run, so this is fast)
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
		s.logger.Warn().Msg("Timed out waiting for scheduler tick to finish")
	}

	s.cron = nil
	s.running = false

	s.persistState(false, s.intervalHours)

	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

// IsRunning returns true if the scheduler is active
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Status reports the scheduler state including next and last run times
func (s *Service) Status() interfaces.SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := interfaces.SchedulerStatus{
		Running:       s.running,
		IntervalHours: s.intervalHours,
		LastRun:       s.lastRun,
	}
	if s.running && s.cron != nil {
		next := s.cron.Entry(s.entryID).Next
		if !next.IsZero() {
			status.NextRun = &next
		}
	}
	return status
}

// tick launches one full pipeline run unless one is already in flight.
func (s *Service) tick() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", common.GetStackTrace()).
				Msg("Recovered from panic in scheduler tick")
		}
	}()

	now := time.Now()
	s.mu.Lock()
	s.lastRun = &now
	s.mu.Unlock()

	if s.driver.IsFullPipelineRunning() {
		s.logger.Info().Msg("Scheduler tick skipped, full pipeline already in flight")
		return
	}

	runID, err := s.driver.StartFullPipeline(pipeline.Skips{})
	if err != nil {
		s.logger.Warn().Err(err).Msg("Scheduled pipeline run failed to start")
		return
	}
	s.logger.Info().Str("run_id", runID).Msg("Scheduled pipeline run started")
}

// persistState writes the enabled flag and interval to the KV store (caller
// holds the mutex)
func (s *Service) persistState(enabled bool, intervalHours int) {
	if s.kv == nil {
		return
	}
	ctx := context.Background()
	value := "false"
	if enabled {
		value = "true"
	}
	if err := s.kv.Set(ctx, kvKeyEnabled, value, "scheduler enabled flag"); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to persist scheduler enabled flag")
	}
	if err := s.kv.Set(ctx, kvKeyIntervalHours, strconv.Itoa(intervalHours), "scheduler interval in hours"); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to persist scheduler interval")
	}
}
