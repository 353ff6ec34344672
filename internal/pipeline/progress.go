package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hunt/internal/common"
	"github.com/ternarybob/hunt/internal/interfaces"
)

// progressTracker throttles run-row progress writes to at most one per
// interval, bounding write amplification from per-item checkpoints. The
// terminal flush is never throttled.
type progressTracker struct {
	runs     interfaces.PipelineRunStorage
	events   interfaces.EventService
	runID    string
	stage    string
	interval time.Duration
	logger   arbor.ILogger

	mu          sync.Mutex
	processed   int
	failed      int
	currentStep string
	lastWrite   time.Time
}

func newProgressTracker(runs interfaces.PipelineRunStorage, events interfaces.EventService, runID, stage string, interval time.Duration, logger arbor.ILogger) *progressTracker {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	return &progressTracker{
		runs:     runs,
		events:   events,
		runID:    runID,
		stage:    stage,
		interval: interval,
		logger:   logger,
	}
}

// Update records the latest counters and writes them through when the
// throttle window has elapsed.
func (p *progressTracker) Update(ctx context.Context, processed, failed int, currentStep string) {
	p.mu.Lock()
	p.processed = processed
	p.failed = failed
	if currentStep != "" {
		p.currentStep = currentStep
	}
	due := time.Since(p.lastWrite) >= p.interval
	if due {
		p.lastWrite = time.Now()
	}
	p.mu.Unlock()

	if due {
		p.write(ctx)
	}
}

// Flush writes the final counters unconditionally
func (p *progressTracker) Flush(ctx context.Context) {
	p.mu.Lock()
	p.lastWrite = time.Now()
	p.mu.Unlock()
	p.write(ctx)
}

func (p *progressTracker) write(ctx context.Context) {
	p.mu.Lock()
	processed, failed, step := p.processed, p.failed, p.currentStep
	p.mu.Unlock()

	if err := p.runs.UpdateRunProgress(ctx, p.runID, processed, failed, step); err != nil {
		p.logger.Warn().Err(err).Str("run_id", p.runID).Msg("Failed to persist run progress")
	}

	if p.events != nil {
		payload := map[string]interface{}{
			"run_id":       p.runID,
			"stage":        p.stage,
			"processed":    processed,
			"failed":       failed,
			"current_step": step,
			"timestamp":    time.Now(),
		}
		common.SafeGo(p.logger, "publishRunProgress", func() {
			p.events.Publish(context.Background(), interfaces.Event{
				Type:    interfaces.EventRunProgress,
				Payload: payload,
			})
		})
	}
}
