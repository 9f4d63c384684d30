package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/railops/rakeplan/core/metrics"
)

// PromSink records job lifecycle events in Prometheus metrics.
type PromSink struct {
	outcomes    *prometheus.CounterVec
	duration    prometheus.Histogram
	polls       *prometheus.CounterVec
	utilization prometheus.Gauge
	fulfillment prometheus.Gauge
}

// NewPromSink registers job metrics on the default Prometheus
// registerer. The Prometheus server is started separately.
func NewPromSink(cfg coremetrics.Config) (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(_ coremetrics.Config, reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "planning_jobs_total",
		Help: "Total number of planning jobs by terminal status",
	}, []string{"status"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "planning_job_duration_seconds",
		Help:    "Time from submission to terminal state",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})
	polls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "planning_job_polls_total",
		Help: "Total number of status polls against the engine",
	}, []string{"failed"})
	utilization := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "plan_utilization_pct",
		Help: "Utilization percentage of the most recently fetched plan",
	})
	fulfillment := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "plan_fulfillment_pct",
		Help: "Fulfillment ratio of the most recently fetched plan",
	})

	collectors := map[string]prometheus.Collector{
		"outcomes":    outcomes,
		"duration":    duration,
		"polls":       polls,
		"utilization": utilization,
		"fulfillment": fulfillment,
	}
	for name, c := range collectors {
		if err := reg.Register(c); err != nil {
			are, ok := err.(prometheus.AlreadyRegisteredError)
			if !ok {
				return nil, err
			}
			switch name {
			case "outcomes":
				outcomes = are.ExistingCollector.(*prometheus.CounterVec)
			case "duration":
				duration = are.ExistingCollector.(prometheus.Histogram)
			case "polls":
				polls = are.ExistingCollector.(*prometheus.CounterVec)
			case "utilization":
				utilization = are.ExistingCollector.(prometheus.Gauge)
			case "fulfillment":
				fulfillment = are.ExistingCollector.(prometheus.Gauge)
			}
		}
	}

	return &PromSink{
		outcomes:    outcomes,
		duration:    duration,
		polls:       polls,
		utilization: utilization,
		fulfillment: fulfillment,
	}, nil
}

// RecordJobOutcome counts the terminal status and observes the duration.
func (s *PromSink) RecordJobOutcome(ev coremetrics.JobOutcome) error {
	s.outcomes.WithLabelValues(string(ev.Status)).Inc()
	if ev.Duration > 0 {
		s.duration.Observe(ev.Duration.Seconds())
	}
	return nil
}

// RecordPoll counts one status poll.
func (s *PromSink) RecordPoll(ev coremetrics.PollEvent) error {
	s.polls.WithLabelValues(strconv.FormatBool(ev.Failed)).Inc()
	return nil
}

// RecordPlan exposes the latest plan's rollup figures.
func (s *PromSink) RecordPlan(ev coremetrics.PlanMetrics) error {
	s.utilization.Set(ev.UtilizationPct)
	s.fulfillment.Set(ev.FulfillmentPct)
	return nil
}
