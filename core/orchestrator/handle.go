package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/railops/rakeplan/core/model"
)

// State is the handle's own lifecycle, layered over the job status
// reported by the engine.
type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StatePolling    State = "polling"
	StateTerminal   State = "terminal"
)

// Result is delivered exactly once on a handle's Done channel when the
// job reaches a terminal state.
type Result struct {
	Status model.JobStatus
	PlanID string
	Err    error
}

// Handle tracks one in-flight planning job. Each handle owns its own
// polling loop and cached snapshot; handles share nothing with each
// other.
type Handle struct {
	id       string
	owner    string
	scenario string

	orc *Orchestrator

	mu        sync.Mutex
	state     State
	job       model.PlanningJob
	issuedSeq uint64
	cachedSeq uint64
	failures  int
	started   time.Time

	done      chan Result
	signalled bool
	stop      context.CancelFunc
}

// ID returns the client-side handle identifier.
func (h *Handle) ID() string { return h.id }

// Owner returns the caller key the handle was registered under.
func (h *Handle) Owner() string { return h.owner }

// State returns the handle's lifecycle state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Snapshot returns a copy of the last observed job.
func (h *Handle) Snapshot() model.PlanningJob {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.job
}

// Done returns the channel on which the terminal Result is delivered
// exactly once. The channel is closed after delivery.
func (h *Handle) Done() <-chan Result { return h.done }

// Poll issues a one-shot status query and applies the snapshot. It is
// safe to call concurrently with the polling loop and has no side
// effects beyond updating the cached snapshot.
func (h *Handle) Poll(ctx context.Context) (model.PlanningJob, error) {
	h.mu.Lock()
	if h.state == StateTerminal {
		job := h.job
		h.mu.Unlock()
		return job, nil
	}
	jobID := h.job.ID
	seq := h.nextSeqLocked()
	h.mu.Unlock()

	job, err := h.orc.engine.Status(ctx, jobID)
	if err != nil {
		return h.Snapshot(), err
	}
	h.apply(seq, job)
	return h.Snapshot(), nil
}

// Cancel requests cancellation while the job is queued or running. The
// engine may legitimately finish the job before the cancel is observed;
// whatever terminal state it reports is accepted. Cancelling an already
// terminal job is an idempotent no-op.
func (h *Handle) Cancel(ctx context.Context) (model.PlanningJob, error) {
	h.mu.Lock()
	if h.state == StateTerminal {
		job := h.job
		h.mu.Unlock()
		return job, nil
	}
	jobID := h.job.ID
	h.mu.Unlock()

	if _, err := h.orc.engine.Cancel(ctx, jobID); err != nil {
		return h.Snapshot(), err
	}

	// Re-query for the authoritative post-cancel state. If a terminal
	// status was observed in the meantime, apply discards this response
	// and the earlier observation wins.
	h.mu.Lock()
	seq := h.nextSeqLocked()
	h.mu.Unlock()
	job, err := h.orc.engine.Status(ctx, jobID)
	if err != nil {
		return h.Snapshot(), err
	}
	h.apply(seq, job)
	return h.Snapshot(), nil
}

// nextSeqLocked reserves a sequence number for a status request about to
// be issued. Must be called with h.mu held.
func (h *Handle) nextSeqLocked() uint64 {
	h.issuedSeq++
	return h.issuedSeq
}

// apply installs a job snapshot received for the request with the given
// sequence. Stale responses and regressions out of a terminal state are
// discarded. It returns true when this call moved the handle into its
// terminal state.
func (h *Handle) apply(seq uint64, job model.PlanningJob) bool {
	h.mu.Lock()
	if h.state == StateTerminal || seq < h.cachedSeq {
		h.mu.Unlock()
		return false
	}
	h.cachedSeq = seq
	h.failures = 0

	// Logs are append-only and progress is monotonic while running; a
	// buggy engine response never shrinks either.
	if len(job.Logs) < len(h.job.Logs) {
		job.Logs = h.job.Logs
	}
	if !job.Status.Terminal() && job.Progress < h.job.Progress {
		job.Progress = h.job.Progress
	}
	h.job = job

	if !job.Status.Terminal() {
		h.mu.Unlock()
		h.orc.publishProgress(h, job)
		return false
	}

	h.state = StateTerminal
	res := Result{Status: job.Status, PlanID: job.PlanID}
	switch job.Status {
	case model.StatusFailed:
		res.Err = &EngineFailureError{JobID: job.ID, Logs: job.Logs}
	}
	h.signalLocked(res)
	stop := h.stop
	h.mu.Unlock()

	if stop != nil {
		stop()
	}
	h.orc.finish(h, res)
	return true
}

// failLocally marks the job failed after exhausting consecutive poll
// attempts, without any engine confirmation.
func (h *Handle) failLocally(err error) {
	h.mu.Lock()
	if h.state == StateTerminal {
		h.mu.Unlock()
		return
	}
	h.state = StateTerminal
	h.job.Status = model.StatusFailed
	h.job.Logs += "planning engine unreachable, giving up\n"
	res := Result{Status: model.StatusFailed, Err: err}
	h.signalLocked(res)
	stop := h.stop
	h.mu.Unlock()

	if stop != nil {
		stop()
	}
	h.orc.finish(h, res)
}

// signalLocked delivers the terminal result exactly once. Must be called
// with h.mu held.
func (h *Handle) signalLocked(res Result) {
	if h.signalled {
		return
	}
	h.signalled = true
	h.done <- res
	close(h.done)
}
