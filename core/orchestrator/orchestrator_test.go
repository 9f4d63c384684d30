package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/railops/rakeplan/core/model"
	"github.com/railops/rakeplan/infra/logger"
)

// fakeClock delivers ticks only when the test asks for them.
type fakeClock struct {
	ch chan time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{ch: make(chan time.Time)} }

func (c *fakeClock) After(time.Duration) <-chan time.Time { return c.ch }
func (c *fakeClock) Now() time.Time                       { return time.Unix(1700000000, 0) }

// tick unblocks one pending After. It fails the test if no loop is
// waiting within the deadline.
func (c *fakeClock) tick(t *testing.T) {
	t.Helper()
	select {
	case c.ch <- time.Now():
	case <-time.After(2 * time.Second):
		t.Fatalf("no polling loop waiting for a tick")
	}
}

// tryTick reports whether any loop consumed a tick.
func (c *fakeClock) tryTick() bool {
	select {
	case c.ch <- time.Now():
		return true
	case <-time.After(50 * time.Millisecond):
		return false
	}
}

type fakeEngine struct {
	mu          sync.Mutex
	jobID       string
	initial     model.JobStatus
	responses   []model.PlanningJob
	statusErrs  []error
	statusCalls int
	cancelled   bool
	cancelCalls int
}

func (f *fakeEngine) Generate(_ context.Context, scenario string, config map[string]any, notes string) (string, model.JobStatus, error) {
	st := f.initial
	if st == "" {
		st = model.StatusQueued
	}
	return f.jobID, st, nil
}

func (f *fakeEngine) Status(context.Context, string) (model.PlanningJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if len(f.statusErrs) > 0 {
		err := f.statusErrs[0]
		f.statusErrs = f.statusErrs[1:]
		if err != nil {
			return model.PlanningJob{}, err
		}
	}
	job := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return job, nil
}

func (f *fakeEngine) Cancel(context.Context, string) (model.PlanningJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelCalls++
	f.cancelled = true
	return f.responses[0], nil
}

func (f *fakeEngine) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls
}

func job(id string, st model.JobStatus, progress int, planID string) model.PlanningJob {
	return model.PlanningJob{ID: id, Status: st, Progress: progress, PlanID: planID}
}

func newTestOrchestrator(eng Engine, clock Clock) *Orchestrator {
	return New(eng, 2*time.Second, 5, WithClock(clock), WithLogger(logger.NopLogger{}))
}

func TestSubmitEmptyScenario(t *testing.T) {
	o := newTestOrchestrator(&fakeEngine{}, newFakeClock())
	for _, name := range []string{"", "   ", "\t\n"} {
		_, err := o.Submit(context.Background(), SubmitRequest{ScenarioName: name})
		require.ErrorIs(t, err, ErrValidation)
	}
}

func TestSubmitPollComplete(t *testing.T) {
	eng := &fakeEngine{
		jobID: "j1",
		responses: []model.PlanningJob{
			job("j1", model.StatusRunning, 40, ""),
			job("j1", model.StatusCompleted, 100, "p1"),
		},
	}
	clock := newFakeClock()
	o := newTestOrchestrator(eng, clock)

	h, err := o.Submit(context.Background(), SubmitRequest{
		ScenarioName: "W2",
		Config:       map[string]any{"mode": "greedy"},
	})
	require.NoError(t, err)
	require.Equal(t, StatePolling, h.State())
	require.Equal(t, model.StatusQueued, h.Snapshot().Status)

	clock.tick(t)
	clock.tick(t)

	select {
	case res := <-h.Done():
		require.NoError(t, res.Err)
		require.Equal(t, model.StatusCompleted, res.Status)
		require.Equal(t, "p1", res.PlanID)
	case <-time.After(2 * time.Second):
		t.Fatalf("no terminal result delivered")
	}

	// The done channel closes after the single delivery.
	_, open := <-h.Done()
	require.False(t, open)

	// Polling must cease: no loop consumes further ticks and no extra
	// status query is issued.
	require.False(t, clock.tryTick())
	require.Equal(t, 2, eng.calls())
	require.Equal(t, StateTerminal, h.State())
	require.Equal(t, "p1", h.Snapshot().PlanID)
}

func TestSubmitTerminalAcknowledgment(t *testing.T) {
	// An already-completed acknowledgment carries no plan id; the
	// snapshot must come from a status query, not the acknowledgment.
	eng := &fakeEngine{
		jobID:     "j1",
		initial:   model.StatusCompleted,
		responses: []model.PlanningJob{job("j1", model.StatusCompleted, 100, "p1")},
	}
	clock := newFakeClock()
	o := newTestOrchestrator(eng, clock)

	h, err := o.Submit(context.Background(), SubmitRequest{ScenarioName: "instant"})
	require.NoError(t, err)

	res := <-h.Done()
	require.NoError(t, res.Err)
	require.Equal(t, model.StatusCompleted, res.Status)
	require.Equal(t, "p1", res.PlanID)
	require.Equal(t, 1, eng.calls())

	// No polling loop was started.
	require.False(t, clock.tryTick())
}

func TestConcurrentSubmitRejected(t *testing.T) {
	eng := &fakeEngine{
		jobID: "j1",
		responses: []model.PlanningJob{
			job("j1", model.StatusRunning, 10, ""),
			job("j1", model.StatusCompleted, 100, "p1"),
		},
	}
	clock := newFakeClock()
	o := newTestOrchestrator(eng, clock)

	h, err := o.Submit(context.Background(), SubmitRequest{ScenarioName: "first"})
	require.NoError(t, err)

	_, err = o.Submit(context.Background(), SubmitRequest{ScenarioName: "second"})
	require.ErrorIs(t, err, ErrConcurrentJob)

	clock.tick(t)
	clock.tick(t)
	<-h.Done()

	// After the first job turns terminal the owner slot frees up. The
	// slot is released just after the done signal, so retry briefly.
	eng.mu.Lock()
	eng.jobID = "j2"
	eng.responses = []model.PlanningJob{job("j2", model.StatusCompleted, 100, "p2")}
	eng.mu.Unlock()
	var h2 *Handle
	require.Eventually(t, func() bool {
		h2, err = o.Submit(context.Background(), SubmitRequest{ScenarioName: "third"})
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	clock.tick(t)
	res := <-h2.Done()
	require.Equal(t, "p2", res.PlanID)
}

func TestEngineReportedFailure(t *testing.T) {
	eng := &fakeEngine{
		jobID: "j1",
		responses: []model.PlanningJob{
			{ID: "j1", Status: model.StatusFailed, Progress: 60, Logs: "ERROR: no rakes available\n"},
		},
	}
	clock := newFakeClock()
	o := newTestOrchestrator(eng, clock)

	h, err := o.Submit(context.Background(), SubmitRequest{ScenarioName: "fails"})
	require.NoError(t, err)
	clock.tick(t)

	res := <-h.Done()
	var ef *EngineFailureError
	require.ErrorAs(t, res.Err, &ef)
	require.Equal(t, "j1", ef.JobID)
	require.Contains(t, ef.Logs, "no rakes available")
}

func TestPollFailuresMarkJobUnreachable(t *testing.T) {
	eng := &fakeEngine{
		jobID:      "j1",
		responses:  []model.PlanningJob{job("j1", model.StatusRunning, 10, "")},
		statusErrs: []error{errDown, errDown, errDown},
	}
	clock := newFakeClock()
	o := New(eng, time.Second, 3, WithClock(clock), WithLogger(logger.NopLogger{}))

	h, err := o.Submit(context.Background(), SubmitRequest{ScenarioName: "unreachable"})
	require.NoError(t, err)

	clock.tick(t)
	clock.tick(t)
	clock.tick(t)

	res := <-h.Done()
	require.ErrorIs(t, res.Err, ErrEngineUnreachable)
	var ue *UnreachableError
	require.ErrorAs(t, res.Err, &ue)
	require.Equal(t, 3, ue.Failures)
	require.Equal(t, model.StatusFailed, h.Snapshot().Status)
}

var errDown = fmt.Errorf("connection refused")

func TestPollFailureCounterResets(t *testing.T) {
	eng := &fakeEngine{
		jobID: "j1",
		responses: []model.PlanningJob{
			job("j1", model.StatusRunning, 10, ""),
			job("j1", model.StatusRunning, 20, ""),
			job("j1", model.StatusCompleted, 100, "p1"),
		},
		statusErrs: []error{errDown, nil, errDown, nil, nil},
	}
	clock := newFakeClock()
	o := New(eng, time.Second, 2, WithClock(clock), WithLogger(logger.NopLogger{}))

	h, err := o.Submit(context.Background(), SubmitRequest{ScenarioName: "flaky"})
	require.NoError(t, err)

	// fail, ok, fail, ok, ok(completed): never two consecutive failures.
	for i := 0; i < 5; i++ {
		clock.tick(t)
	}
	res := <-h.Done()
	require.NoError(t, res.Err)
	require.Equal(t, "p1", res.PlanID)
}

func TestPollFailurePublishesEvent(t *testing.T) {
	eng := &fakeEngine{
		jobID: "j1",
		responses: []model.PlanningJob{
			job("j1", model.StatusCompleted, 100, "p1"),
		},
		statusErrs: []error{errDown, errDown, nil},
	}
	clock := newFakeClock()
	o := New(eng, time.Second, 5, WithClock(clock), WithLogger(logger.NopLogger{}))
	events := o.Events()
	defer o.Unsubscribe(events)

	h, err := o.Submit(context.Background(), SubmitRequest{ScenarioName: "flaky"})
	require.NoError(t, err)
	clock.tick(t)
	clock.tick(t)
	clock.tick(t)
	<-h.Done()

	failed := 0
drain:
	for {
		select {
		case ev := <-events:
			if ev.Kind == EventPollFailed {
				failed++
				require.Equal(t, "j1", ev.JobID)
				require.Error(t, ev.Err)
			}
		case <-time.After(500 * time.Millisecond):
			break drain
		}
	}
	require.Equal(t, 2, failed)
}

func TestCancelRunningJob(t *testing.T) {
	eng := &fakeEngine{
		jobID: "j1",
		responses: []model.PlanningJob{
			job("j1", model.StatusCancelled, 30, ""),
		},
	}
	clock := newFakeClock()
	o := newTestOrchestrator(eng, clock)

	h, err := o.Submit(context.Background(), SubmitRequest{ScenarioName: "tocancel"})
	require.NoError(t, err)

	got, err := h.Cancel(context.Background())
	require.NoError(t, err)
	require.Equal(t, model.StatusCancelled, got.Status)
	require.Equal(t, 1, eng.cancelCalls)

	res := <-h.Done()
	require.NoError(t, res.Err)
	require.Equal(t, model.StatusCancelled, res.Status)
	require.Equal(t, 1, eng.calls())
}

func TestCancelCompletedJobIsNoop(t *testing.T) {
	eng := &fakeEngine{
		jobID: "j1",
		responses: []model.PlanningJob{
			job("j1", model.StatusCompleted, 100, "p1"),
		},
	}
	clock := newFakeClock()
	o := newTestOrchestrator(eng, clock)

	h, err := o.Submit(context.Background(), SubmitRequest{ScenarioName: "done"})
	require.NoError(t, err)
	clock.tick(t)
	<-h.Done()

	got, err := h.Cancel(context.Background())
	require.NoError(t, err)
	require.Equal(t, model.StatusCompleted, got.Status)
	require.Equal(t, "p1", got.PlanID)
	require.Equal(t, 0, eng.cancelCalls)
}

func TestCancelRaceCompletedWins(t *testing.T) {
	// The engine finishes the job before observing the cancel; the
	// post-cancel status query reports completed, which is accepted.
	eng := &fakeEngine{
		jobID: "j1",
		responses: []model.PlanningJob{
			job("j1", model.StatusCompleted, 100, "p1"),
		},
	}
	clock := newFakeClock()
	o := newTestOrchestrator(eng, clock)

	h, err := o.Submit(context.Background(), SubmitRequest{ScenarioName: "race"})
	require.NoError(t, err)

	got, err := h.Cancel(context.Background())
	require.NoError(t, err)
	require.Equal(t, model.StatusCompleted, got.Status)

	res := <-h.Done()
	require.Equal(t, model.StatusCompleted, res.Status)
	require.Equal(t, "p1", res.PlanID)
}

func TestStaleSnapshotDiscarded(t *testing.T) {
	eng := &fakeEngine{
		jobID: "j1",
		responses: []model.PlanningJob{
			job("j1", model.StatusRunning, 50, ""),
		},
	}
	clock := newFakeClock()
	o := newTestOrchestrator(eng, clock)

	h, err := o.Submit(context.Background(), SubmitRequest{ScenarioName: "stale"})
	require.NoError(t, err)
	clock.tick(t)

	// Wait for the poll response to land.
	require.Eventually(t, func() bool { return h.Snapshot().Progress == 50 },
		2*time.Second, 10*time.Millisecond)

	// A response issued before the cached one must not regress the
	// snapshot.
	h.apply(0, job("j1", model.StatusQueued, 5, ""))
	require.Equal(t, model.StatusRunning, h.Snapshot().Status)
	require.Equal(t, 50, h.Snapshot().Progress)
}

func TestLogsNeverShrink(t *testing.T) {
	eng := &fakeEngine{
		jobID: "j1",
		responses: []model.PlanningJob{
			{ID: "j1", Status: model.StatusRunning, Progress: 20, Logs: "line one\nline two\n"},
			{ID: "j1", Status: model.StatusRunning, Progress: 40, Logs: "line one\n"},
		},
	}
	clock := newFakeClock()
	o := newTestOrchestrator(eng, clock)

	h, err := o.Submit(context.Background(), SubmitRequest{ScenarioName: "logs"})
	require.NoError(t, err)
	clock.tick(t)
	require.Eventually(t, func() bool { return h.Snapshot().Progress == 20 },
		2*time.Second, 10*time.Millisecond)
	clock.tick(t)
	require.Eventually(t, func() bool { return h.Snapshot().Progress == 40 },
		2*time.Second, 10*time.Millisecond)
	require.Equal(t, "line one\nline two\n", h.Snapshot().Logs)
}

func TestTerminalEventPublishedOnce(t *testing.T) {
	eng := &fakeEngine{
		jobID: "j1",
		responses: []model.PlanningJob{
			job("j1", model.StatusRunning, 40, ""),
			job("j1", model.StatusCompleted, 100, "p1"),
		},
	}
	clock := newFakeClock()
	o := newTestOrchestrator(eng, clock)
	events := o.Events()
	defer o.Unsubscribe(events)

	h, err := o.Submit(context.Background(), SubmitRequest{ScenarioName: "W2"})
	require.NoError(t, err)
	clock.tick(t)
	clock.tick(t)
	<-h.Done()

	// The terminal event is published just after the done signal; keep
	// draining until the bus goes quiet.
	completed := 0
drain:
	for {
		select {
		case ev := <-events:
			if ev.Kind == EventCompleted {
				completed++
				require.Equal(t, "p1", ev.PlanID)
			}
		case <-time.After(500 * time.Millisecond):
			break drain
		}
	}
	require.Equal(t, 1, completed)
}

func TestReleaseRefusesLiveHandle(t *testing.T) {
	eng := &fakeEngine{
		jobID:     "j1",
		responses: []model.PlanningJob{job("j1", model.StatusCompleted, 100, "p1")},
	}
	clock := newFakeClock()
	o := newTestOrchestrator(eng, clock)

	h, err := o.Submit(context.Background(), SubmitRequest{ScenarioName: "arena"})
	require.NoError(t, err)

	got, ok := o.Get(h.ID())
	require.True(t, ok)
	require.Same(t, h, got)
	require.Error(t, o.Release(h.ID()))

	clock.tick(t)
	<-h.Done()
	require.NoError(t, o.Release(h.ID()))
	_, ok = o.Get(h.ID())
	require.False(t, ok)

	require.NoError(t, o.Release("missing"))
}
