package orchestrator

import (
	"time"

	"github.com/railops/rakeplan/core/model"
)

// EventKind labels a job lifecycle event.
type EventKind string

const (
	EventSubmitted  EventKind = "submitted"
	EventProgress   EventKind = "progress"
	EventPollFailed EventKind = "poll_failed"
	EventCompleted  EventKind = "completed"
	EventFailed     EventKind = "failed"
	EventCancelled  EventKind = "cancelled"
)

// JobEvent is published on the orchestrator's event bus for every
// observed change of an in-flight job.
type JobEvent struct {
	Kind     EventKind
	HandleID string
	JobID    string
	Scenario string
	Status   model.JobStatus
	Progress int
	PlanID   string
	Err      error
	Time     time.Time
}
