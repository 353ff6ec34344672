package models

import (
	"time"

	"github.com/google/uuid"
)

// RunLogEntry is one append-only entry in a pipeline run's log sequence.
type RunLogEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"` // "debug", "info", "warn", "error"
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// PipelineRun tracks one stage execution: a discovery pass, a per-ATS crawl,
// enrichment, embeddings, ATS detection, maintenance, or a full_pipeline
// cascade of all of the above.
type PipelineRun struct {
	ID          string      `json:"id" db:"id"`
	Stage       string      `json:"stage" db:"stage"`
	Status      RunStatus   `json:"status" db:"status"`
	Processed   int         `json:"processed" db:"processed"`
	Failed      int         `json:"failed" db:"failed"`
	CurrentStep string      `json:"current_step" db:"current_step"`
	Cascade     bool        `json:"cascade" db:"cascade"`
	ParentRunID string      `json:"parent_run_id,omitempty" db:"parent_run_id"`
	Error       string      `json:"error,omitempty" db:"error"`
	Logs        []RunLogEntry `json:"logs" db:"logs"`

	StartedAt   time.Time  `json:"started_at" db:"started_at"`
	CompletedAt *time.Time `json:"completed_at" db:"completed_at"`
}

// NewRunID generates a unique pipeline run identifier.
func NewRunID() string {
	return "run_" + uuid.New().String()
}

// NewPipelineRun starts a run in the running state with no completion time,
// satisfying the completed_at-iff-terminal invariant.
func NewPipelineRun(stage string, cascade bool, parentRunID string) *PipelineRun {
	return &PipelineRun{
		ID:          NewRunID(),
		Stage:       stage,
		Status:      RunStatusRunning,
		Cascade:     cascade,
		ParentRunID: parentRunID,
		StartedAt:   time.Now(),
	}
}

// AppendLog appends a log entry to the run, stamping it with the current time.
func (r *PipelineRun) AppendLog(level, message string, data map[string]interface{}) {
	r.Logs = append(r.Logs, RunLogEntry{
		Timestamp: time.Now(),
		Level:     level,
		Message:   message,
		Data:      data,
	})
}

// Complete transitions the run to a terminal status, stamping CompletedAt.
// status must be RunStatusCompleted or RunStatusFailed.
func (r *PipelineRun) Complete(status RunStatus, errMsg string) {
	r.Status = status
	r.Error = errMsg
	now := time.Now()
	r.CompletedAt = &now
}

// IsTerminal reports whether the run has reached a completed or failed state.
func (r *PipelineRun) IsTerminal() bool {
	return r.Status != RunStatusRunning
}
