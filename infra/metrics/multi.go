package metrics

import (
	"errors"

	coremetrics "github.com/railops/rakeplan/core/metrics"
)

// MultiSink fans events out to several sinks.
type MultiSink struct {
	sinks []coremetrics.MetricsSink
}

// NewMultiSink combines the given sinks.
func NewMultiSink(sinks ...coremetrics.MetricsSink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// RecordJobOutcome forwards to every sink, collecting errors.
func (m *MultiSink) RecordJobOutcome(ev coremetrics.JobOutcome) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.RecordJobOutcome(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordPoll forwards to sinks that implement PollRecorder.
func (m *MultiSink) RecordPoll(ev coremetrics.PollEvent) error {
	var errs []error
	for _, s := range m.sinks {
		if r, ok := s.(coremetrics.PollRecorder); ok {
			if err := r.RecordPoll(ev); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// RecordPlan forwards to sinks that implement PlanRecorder.
func (m *MultiSink) RecordPlan(ev coremetrics.PlanMetrics) error {
	var errs []error
	for _, s := range m.sinks {
		if r, ok := s.(coremetrics.PlanRecorder); ok {
			if err := r.RecordPlan(ev); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
