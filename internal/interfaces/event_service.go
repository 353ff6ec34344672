package interfaces

import "context"

// EventType represents different event types in the system
type EventType string

const (
	// EventRunCreated is published when a pipeline run row is created and
	// persisted (status=running).
	// Payload: map[string]interface{} with keys: run_id, stage, cascade, timestamp.
	EventRunCreated EventType = "run_created"

	// EventRunProgress is published periodically during a pipeline run with
	// a progress snapshot. Published no more often than once per 200ms per run.
	// Payload: map[string]interface{} with keys:
	//   run_id, stage, processed, failed, current_step, timestamp.
	EventRunProgress EventType = "run_progress"

	// EventRunCompleted is published when a run reaches a terminal state.
	// Payload: map[string]interface{} with keys:
	//   run_id, stage, status, processed, failed, duration_seconds, timestamp.
	EventRunCompleted EventType = "run_completed"

	// EventCompanyDiscovered is published when a discovery queue item is
	// promoted to a company record.
	// Payload: map[string]interface{} with keys: company_id, name, source, timestamp.
	EventCompanyDiscovered EventType = "company_discovered"

	// EventATSDetected is published when the ATS detector classifies a company.
	// Payload: map[string]interface{} with keys: company_id, ats_type, timestamp.
	EventATSDetected EventType = "ats_detected"

	// EventJobDelisted is published when maintenance delists a canonical job.
	// Payload: map[string]interface{} with keys: job_id, company_id, reason, timestamp.
	EventJobDelisted EventType = "job_delisted"

	// EventMatchCreated is published when the matcher upserts a candidate-job match.
	// Payload: map[string]interface{} with keys: candidate_id, job_id, score, timestamp.
	EventMatchCreated EventType = "match_created"
)

// Event represents a system event
type Event struct {
	Type    EventType
	Payload interface{}
}

// EventHandler is a function that handles events
type EventHandler func(ctx context.Context, event Event) error

// EventService manages pub/sub event bus
type EventService interface {
	// Subscribe to an event type
	Subscribe(eventType EventType, handler EventHandler) error

	// Unsubscribe from an event type
	Unsubscribe(eventType EventType, handler EventHandler) error

	// Publish an event to all subscribers
	Publish(ctx context.Context, event Event) error

	// PublishSync publishes event and waits for all handlers to complete
	PublishSync(ctx context.Context, event Event) error

	// Close shuts down the event service
	Close() error
}
