package metrics

import (
	"time"

	"github.com/railops/rakeplan/core/model"
)

// JobOutcome represents one job reaching a terminal state.
type JobOutcome struct {
	JobID    string
	Scenario string
	Status   model.JobStatus
	Duration time.Duration
	Time     time.Time
}

// MetricsSink records job lifecycle outcomes for observability purposes.
type MetricsSink interface {
	RecordJobOutcome(ev JobOutcome) error
}

// PollEvent captures one status query against the engine.
type PollEvent struct {
	JobID    string
	Status   model.JobStatus
	Progress int
	Failed   bool
	Time     time.Time
}

// PollRecorder is implemented by sinks that track per-poll granularity.
type PollRecorder interface {
	RecordPoll(ev PollEvent) error
}

// PlanMetrics is a snapshot of a fetched plan's rollup figures.
type PlanMetrics struct {
	PlanID          string
	TotalCost       float64
	FreightCost     float64
	UtilizationPct  float64
	FulfillmentPct  float64
	RakeCount       int
	OrdersFulfilled int
	Time            time.Time
}

// PlanRecorder records plan-level figures.
type PlanRecorder interface {
	RecordPlan(ev PlanMetrics) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordJobOutcome(JobOutcome) error { return nil }
func (NopSink) RecordPoll(PollEvent) error        { return nil }
func (NopSink) RecordPlan(PlanMetrics) error      { return nil }
