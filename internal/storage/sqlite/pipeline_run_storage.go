package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hunt/internal/interfaces"
	"github.com/ternarybob/hunt/internal/models"
)

// PipelineRunStorage implements interfaces.PipelineRunStorage. The logs
// column is an append-only JSON array; entries are appended in wall-clock
// order under the write mutex.
type PipelineRunStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
	mu     sync.Mutex
}

// NewPipelineRunStorage creates a new pipeline run storage instance
func NewPipelineRunStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.PipelineRunStorage {
	return &PipelineRunStorage{db: db, logger: logger}
}

const runColumns = `id, stage, status, processed, failed, current_step, is_cascade, parent_run_id,
	error, logs, started_at, completed_at`

// CreateRun writes a new run row with status running
func (p *PipelineRunStorage) CreateRun(ctx context.Context, run *models.PipelineRun) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	run.Status = models.RunStatusRunning

	query := `
		INSERT INTO pipeline_runs (` + runColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
	`
	_, err := p.db.db.ExecContext(ctx, query,
		run.ID,
		run.Stage,
		string(run.Status),
		run.Processed,
		run.Failed,
		run.CurrentStep,
		run.Cascade,
		run.ParentRunID,
		run.Error,
		marshalJSON(run.Logs),
		run.StartedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to create pipeline run: %w", err)
	}
	return nil
}

// GetRun retrieves one run by id, nil when absent
func (p *PipelineRunStorage) GetRun(ctx context.Context, id string) (*models.PipelineRun, error) {
	query := `SELECT ` + runColumns + ` FROM pipeline_runs WHERE id = ?`
	run, err := scanRun(p.db.db.QueryRowContext(ctx, query, id).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

// UpdateRunProgress writes the run's counters and current step
func (p *PipelineRunStorage) UpdateRunProgress(ctx context.Context, id string, processed, failed int, currentStep string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, err := p.db.db.ExecContext(ctx,
		`UPDATE pipeline_runs SET processed = ?, failed = ?, current_step = ? WHERE id = ?`,
		processed, failed, currentStep, id)
	return err
}

// AppendRunLog appends one entry to the run's JSON log array
func (p *PipelineRunStorage) AppendRunLog(ctx context.Context, id string, entry models.RunLogEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	entryJSON, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal log entry: %w", err)
	}

	// json_insert with '$[#]' appends without rewriting the whole array in Go
	_, err = p.db.db.ExecContext(ctx,
		`UPDATE pipeline_runs SET logs = json_insert(logs, '$[#]', json(?)) WHERE id = ?`,
		string(entryJSON), id)
	if err != nil {
		return fmt.Errorf("failed to append run log: %w", err)
	}
	return nil
}

// CompleteRun transitions the run to a terminal state, stamping completed_at
func (p *PipelineRunStorage) CompleteRun(ctx context.Context, id string, status models.RunStatus, errMsg string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if status == models.RunStatusRunning {
		return models.NewError(models.KindInvalidArgument, "cannot complete a run into the running state")
	}

	_, err := p.db.db.ExecContext(ctx,
		`UPDATE pipeline_runs SET status = ?, error = ?, completed_at = ? WHERE id = ?`,
		string(status), errMsg, time.Now().Unix(), id)
	return err
}

// ListRuns returns runs newest-first with pagination
func (p *PipelineRunStorage) ListRuns(ctx context.Context, opts *interfaces.ListOptions) ([]*models.PipelineRun, error) {
	limit, offset := 20, 0
	if opts != nil {
		if opts.Limit > 0 {
			limit = opts.Limit
		}
		if opts.Offset > 0 {
			offset = opts.Offset
		}
	}
	query := `SELECT ` + runColumns + ` FROM pipeline_runs ORDER BY started_at DESC LIMIT ? OFFSET ?`
	return p.scanMany(ctx, query, limit, offset)
}

// ListRunsByStage returns a stage's runs newest-first
func (p *PipelineRunStorage) ListRunsByStage(ctx context.Context, stage string, limit int) ([]*models.PipelineRun, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + runColumns + ` FROM pipeline_runs WHERE stage = ? ORDER BY started_at DESC LIMIT ?`
	return p.scanMany(ctx, query, stage, limit)
}

// GetLatestRunByStage returns a stage's most recent run, nil when none
func (p *PipelineRunStorage) GetLatestRunByStage(ctx context.Context, stage string) (*models.PipelineRun, error) {
	query := `SELECT ` + runColumns + ` FROM pipeline_runs WHERE stage = ? ORDER BY started_at DESC LIMIT 1`
	run, err := scanRun(p.db.db.QueryRowContext(ctx, query, stage).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

// ListRunningRuns returns every run still in the running state
func (p *PipelineRunStorage) ListRunningRuns(ctx context.Context) ([]*models.PipelineRun, error) {
	query := `SELECT ` + runColumns + ` FROM pipeline_runs WHERE status = 'running' ORDER BY started_at`
	return p.scanMany(ctx, query)
}

// MarkOrphanedRunsFailed closes every running run as failed with reason
// orphaned. Called once at process startup before any new run begins.
func (p *PipelineRunStorage) MarkOrphanedRunsFailed(ctx context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	result, err := p.db.db.ExecContext(ctx,
		`UPDATE pipeline_runs SET status = 'failed', error = 'orphaned', completed_at = ? WHERE status = 'running'`,
		time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to mark orphaned runs: %w", err)
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}

func (p *PipelineRunStorage) scanMany(ctx context.Context, query string, args ...interface{}) ([]*models.PipelineRun, error) {
	rows, err := p.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pipeline runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.PipelineRun
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanRun(scan func(...interface{}) error) (*models.PipelineRun, error) {
	var run models.PipelineRun
	var status, logs string
	var completedAt sql.NullInt64
	var startedAt int64

	err := scan(
		&run.ID,
		&run.Stage,
		&status,
		&run.Processed,
		&run.Failed,
		&run.CurrentStep,
		&run.Cascade,
		&run.ParentRunID,
		&run.Error,
		&logs,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	run.Status = models.RunStatus(status)
	if err := json.Unmarshal([]byte(logs), &run.Logs); err != nil {
		run.Logs = nil
	}
	run.StartedAt = time.Unix(startedAt, 0)
	run.CompletedAt = timeFromNull(completedAt)
	return &run, nil
}
