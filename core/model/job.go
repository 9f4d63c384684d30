package model

import (
	"fmt"
	"time"
)

// JobStatus is the Planning Engine's view of a job.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status is final. Jobs never leave a
// terminal status.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Valid reports whether the status is one of the known values.
func (s JobStatus) Valid() bool {
	switch s {
	case StatusQueued, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// PlanningJob is one asynchronous invocation of the Planning Engine.
// The engine owns all fields; the client only ever requests cancellation.
type PlanningJob struct {
	ID           string         `json:"job_id"`
	ScenarioName string         `json:"scenario_name"`
	Config       map[string]any `json:"config,omitempty"`
	Notes        string         `json:"notes,omitempty"`
	Status       JobStatus      `json:"status"`
	Progress     int            `json:"progress"`
	Logs         string         `json:"logs"`
	PlanID       string         `json:"plan_id,omitempty"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}

// Validate checks the structural invariants of a job snapshot as
// received from the engine.
func (j PlanningJob) Validate() error {
	if !j.Status.Valid() {
		return fmt.Errorf("unknown job status %q", j.Status)
	}
	if j.Progress < 0 || j.Progress > 100 {
		return fmt.Errorf("progress %d out of range", j.Progress)
	}
	if j.Status == StatusCompleted && j.PlanID == "" {
		return fmt.Errorf("completed job %s has no plan id", j.ID)
	}
	if j.Status != StatusCompleted && j.PlanID != "" {
		return fmt.Errorf("job %s has plan id %s but status %s", j.ID, j.PlanID, j.Status)
	}
	return nil
}
