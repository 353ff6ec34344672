package interfaces

import "time"

// SchedulerStatus is the externally visible state of the periodic driver.
type SchedulerStatus struct {
	Running       bool       `json:"running"`
	IntervalHours int        `json:"interval_hours"`
	LastRun       *time.Time `json:"last_run,omitempty"`
	NextRun       *time.Time `json:"next_run,omitempty"`
}

// SchedulerService drives periodic full-pipeline runs.
type SchedulerService interface {
	// Start begins ticking every intervalHours. Starting while already
	// running is a no-op.
	Start(intervalHours int) error

	// Stop halts ticking. Stopping while stopped is a no-op.
	Stop() error

	// IsRunning returns true if the scheduler is active
	IsRunning() bool

	// Status reports the current scheduler state including next/last run times
	Status() SchedulerStatus
}
