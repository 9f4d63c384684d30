// Package orchestrator owns the lifecycle of planning jobs submitted to
// the external Planning Engine: submission, fixed-interval polling to a
// terminal state, and cooperative cancellation. One handle is created
// per in-flight job; handles are looked up by id and share no state.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/railops/rakeplan/core/model"
	"github.com/railops/rakeplan/infra/logger"
	"github.com/railops/rakeplan/internal/eventbus"
)

// Engine is the subset of the Planning Engine contract the orchestrator
// depends on.
type Engine interface {
	Generate(ctx context.Context, scenario string, config map[string]any, notes string) (string, model.JobStatus, error)
	Status(ctx context.Context, jobID string) (model.PlanningJob, error)
	Cancel(ctx context.Context, jobID string) (model.PlanningJob, error)
}

// DefaultOwner is the owner key used when a submit request names none.
const DefaultOwner = "default"

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock substitutes the polling clock. Tests use a fake.
func WithClock(c Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// WithLogger substitutes the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// Orchestrator manages job handles against one Planning Engine.
type Orchestrator struct {
	engine      Engine
	clock       Clock
	log         logger.Logger
	interval    time.Duration
	maxFailures int

	bus *eventbus.Bus[JobEvent]

	mu      sync.Mutex
	handles map[string]*Handle
	active  map[string]string // owner -> handle id of the non-terminal job
}

// New creates an Orchestrator polling at the given interval and giving
// up on a job after maxFailures consecutive poll errors.
func New(engine Engine, interval time.Duration, maxFailures int, opts ...Option) *Orchestrator {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if maxFailures <= 0 {
		maxFailures = 5
	}
	o := &Orchestrator{
		engine:      engine,
		clock:       SystemClock(),
		log:         logger.New("orchestrator"),
		interval:    interval,
		maxFailures: maxFailures,
		bus:         eventbus.New[JobEvent](),
		handles:     make(map[string]*Handle),
		active:      make(map[string]string),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SubmitRequest describes a job submission.
type SubmitRequest struct {
	Owner        string
	ScenarioName string
	Config       map[string]any
	Notes        string
}

// Submit sends a planning job to the engine and starts its polling
// loop. It rejects an empty scenario name with ErrValidation and a
// second active job for the same owner with ErrConcurrentJob.
func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) (*Handle, error) {
	if strings.TrimSpace(req.ScenarioName) == "" {
		return nil, fmt.Errorf("%w: scenario name must not be empty", ErrValidation)
	}
	owner := req.Owner
	if owner == "" {
		owner = DefaultOwner
	}

	h := &Handle{
		id:       uuid.NewString(),
		owner:    owner,
		scenario: req.ScenarioName,
		orc:      o,
		state:    StateSubmitting,
		started:  o.clock.Now(),
		done:     make(chan Result, 1),
	}

	o.mu.Lock()
	if prev, ok := o.active[owner]; ok {
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: handle %s is not terminal", ErrConcurrentJob, prev)
	}
	o.active[owner] = h.id
	o.handles[h.id] = h
	o.mu.Unlock()

	jobID, status, err := o.engine.Generate(ctx, req.ScenarioName, req.Config, req.Notes)
	if err != nil {
		o.mu.Lock()
		delete(o.active, owner)
		delete(o.handles, h.id)
		o.mu.Unlock()
		return nil, err
	}

	pollCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	h.mu.Lock()
	h.job = model.PlanningJob{
		ID:           jobID,
		ScenarioName: req.ScenarioName,
		Config:       req.Config,
		Notes:        req.Notes,
		Status:       status,
	}
	h.state = StatePolling
	h.stop = stop
	h.mu.Unlock()

	o.log.Infof("submitted job %s (scenario %q), polling every %s", jobID, req.ScenarioName, o.interval)
	o.bus.Publish(JobEvent{
		Kind:     EventSubmitted,
		HandleID: h.id,
		JobID:    jobID,
		Scenario: req.ScenarioName,
		Status:   status,
		Time:     o.clock.Now(),
	})

	// The engine can, in principle, acknowledge a submission that is
	// already terminal. The acknowledgment carries no plan id, so one
	// status query fetches the authoritative snapshot before the
	// terminal result is delivered. No polling loop is started.
	if status.Terminal() {
		h.mu.Lock()
		seq := h.nextSeqLocked()
		h.mu.Unlock()
		if job, serr := o.engine.Status(ctx, jobID); serr == nil {
			h.apply(seq, job)
		} else {
			o.log.Warnf("status after terminal acknowledgment of job %s: %v", jobID, serr)
			h.apply(seq, h.Snapshot())
		}
		stop()
		return h, nil
	}

	go o.pollLoop(pollCtx, h)
	return h, nil
}

// Get looks up a handle by id.
func (o *Orchestrator) Get(id string) (*Handle, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	h, ok := o.handles[id]
	return h, ok
}

// Release drops a terminal handle from the arena. Releasing a live
// handle is refused.
func (o *Orchestrator) Release(id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	h, ok := o.handles[id]
	if !ok {
		return nil
	}
	if h.State() != StateTerminal {
		return fmt.Errorf("handle %s still has a job in flight", id)
	}
	delete(o.handles, id)
	return nil
}

// Events returns a subscription to job lifecycle events.
func (o *Orchestrator) Events() <-chan JobEvent { return o.bus.Subscribe() }

// Unsubscribe releases an event subscription.
func (o *Orchestrator) Unsubscribe(ch <-chan JobEvent) { o.bus.Unsubscribe(ch) }

// Close stops event delivery. In-flight polling loops wind down on
// their own contexts.
func (o *Orchestrator) Close() { o.bus.Close() }

// pollLoop queries job status on the fixed interval until a terminal
// state is observed or the context is cancelled. Each tick waits for
// the previous reply, so responses arrive in order; the sequence guard
// in apply protects against interleaved one-shot Poll calls.
func (o *Orchestrator) pollLoop(ctx context.Context, h *Handle) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-o.clock.After(o.interval):
		}

		h.mu.Lock()
		if h.state == StateTerminal {
			h.mu.Unlock()
			return
		}
		jobID := h.job.ID
		seq := h.nextSeqLocked()
		h.mu.Unlock()

		job, err := o.engine.Status(ctx, jobID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			h.mu.Lock()
			h.failures++
			n := h.failures
			h.mu.Unlock()
			o.log.Warnf("poll %d/%d for job %s failed: %v", n, o.maxFailures, jobID, err)
			o.bus.Publish(JobEvent{
				Kind:     EventPollFailed,
				HandleID: h.id,
				JobID:    jobID,
				Scenario: h.scenario,
				Status:   h.Snapshot().Status,
				Err:      err,
				Time:     o.clock.Now(),
			})
			if n >= o.maxFailures {
				h.failLocally(&UnreachableError{JobID: jobID, Failures: n, Last: err})
				return
			}
			continue
		}
		if h.apply(seq, job) {
			return
		}
	}
}

func (o *Orchestrator) publishProgress(h *Handle, job model.PlanningJob) {
	o.bus.Publish(JobEvent{
		Kind:     EventProgress,
		HandleID: h.id,
		JobID:    job.ID,
		Scenario: h.scenario,
		Status:   job.Status,
		Progress: job.Progress,
		Time:     o.clock.Now(),
	})
}

// finish records the terminal outcome: it frees the owner slot so a new
// job may be submitted and publishes the terminal event.
func (o *Orchestrator) finish(h *Handle, res Result) {
	o.mu.Lock()
	if o.active[h.owner] == h.id {
		delete(o.active, h.owner)
	}
	o.mu.Unlock()

	kind := EventFailed
	switch res.Status {
	case model.StatusCompleted:
		kind = EventCompleted
	case model.StatusCancelled:
		kind = EventCancelled
	}
	job := h.Snapshot()
	o.log.Infof("job %s terminal: %s (plan %q)", job.ID, res.Status, res.PlanID)
	o.bus.Publish(JobEvent{
		Kind:     kind,
		HandleID: h.id,
		JobID:    job.ID,
		Scenario: h.scenario,
		Status:   res.Status,
		Progress: job.Progress,
		PlanID:   res.PlanID,
		Err:      res.Err,
		Time:     o.clock.Now(),
	})
}
