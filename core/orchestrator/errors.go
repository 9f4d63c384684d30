package orchestrator

import (
	"errors"
	"fmt"
)

// ErrValidation marks bad caller input. It is never retried.
var ErrValidation = errors.New("validation error")

// ErrConcurrentJob is returned when a submit is attempted while the
// owner already has a non-terminal job in flight.
var ErrConcurrentJob = errors.New("a planning job is already active")

// ErrEngineUnreachable marks a job locally failed after the maximum
// number of consecutive poll failures.
var ErrEngineUnreachable = errors.New("planning engine unreachable")

// EngineFailureError carries the diagnostic logs of a job the engine
// itself reported as failed.
type EngineFailureError struct {
	JobID string
	Logs  string
}

func (e *EngineFailureError) Error() string {
	return fmt.Sprintf("planning job %s failed on the engine", e.JobID)
}

// UnreachableError wraps ErrEngineUnreachable with poll attempt context.
type UnreachableError struct {
	JobID    string
	Failures int
	Last     error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("job %s: %d consecutive poll failures, last: %v", e.JobID, e.Failures, e.Last)
}

func (e *UnreachableError) Unwrap() error { return ErrEngineUnreachable }
