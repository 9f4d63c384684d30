// Package app wires configuration into the engine client, orchestrator,
// metrics sinks and notifier, and exposes the high-level operations the
// CLI drives.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/railops/rakeplan/config"
	"github.com/railops/rakeplan/core/aggregate"
	coremetrics "github.com/railops/rakeplan/core/metrics"
	"github.com/railops/rakeplan/core/model"
	"github.com/railops/rakeplan/core/orchestrator"
	"github.com/railops/rakeplan/core/snapshot"
	"github.com/railops/rakeplan/dataset"
	"github.com/railops/rakeplan/engine"
	"github.com/railops/rakeplan/infra/logger"
	"github.com/railops/rakeplan/infra/metrics"
	"github.com/railops/rakeplan/infra/notify"
)

// Service bundles the wired subsystems.
type Service struct {
	Engine       *engine.Client
	Orchestrator *orchestrator.Orchestrator
	Snapshots    *snapshot.Service
	Bands        aggregate.Bands

	notifier    *notify.MQTTNotifier
	sink        coremetrics.MetricsSink
	log         logger.Logger
	promEnabled bool
	promPort    string
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	eng := engine.NewClient(cfg.Engine)
	orc := orchestrator.New(eng, cfg.Engine.PollInterval(), cfg.Engine.MaxPollFailures)

	dsCfg := cfg.Dataset
	if dsCfg.BaseURL == "" {
		dsCfg.BaseURL = cfg.Engine.BaseURL
	}
	snaps := snapshot.NewService(dataset.NewClient(dsCfg))

	svc := &Service{
		Engine:       eng,
		Orchestrator: orc,
		Snapshots:    snaps,
		Bands:        cfg.Bands,
		log:          logg,
		promEnabled:  cfg.Metrics.PrometheusEnabled,
		promPort:     cfg.Metrics.PrometheusPort,
	}

	var sinks []coremetrics.MetricsSink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(cfg.Metrics)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(
			cfg.Metrics.InfluxURL, cfg.Metrics.InfluxToken,
			cfg.Metrics.InfluxOrg, cfg.Metrics.InfluxBucket))
	}
	var sink coremetrics.MetricsSink
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = metrics.NewMultiSink(sinks...)
	}
	svc.sink = sink

	if cfg.Notify.Enabled {
		n, err := notify.NewMQTTNotifier(cfg.Notify)
		if err != nil {
			return nil, fmt.Errorf("mqtt notifier: %w", err)
		}
		svc.notifier = n
	}
	return svc, nil
}

// Start launches the background consumers (metrics collector, notifier,
// Prometheus server).
func (s *Service) Start(ctx context.Context) {
	if s.sink != nil {
		metrics.StartEventCollector(ctx, s.Orchestrator, s.sink)
	}
	if s.notifier != nil {
		s.notifier.Start(ctx, s.Orchestrator)
	}
	if s.promEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
}

// RunResult is the outcome of RunScenario.
type RunResult struct {
	Job      model.PlanningJob
	Plan     model.Plan
	Warnings []string
}

// ProgressFunc receives the job snapshot after each applied poll and the
// log lines appended since the previous one.
type ProgressFunc func(job model.PlanningJob, newLogs string)

// RunScenario submits a planning job, waits for its terminal state and
// fetches the resulting plan. maxWait of zero means wait indefinitely;
// otherwise the job is cancelled once the deadline passes, and whatever
// terminal state the engine reports is returned.
func (s *Service) RunScenario(ctx context.Context, scenario string, planConfig map[string]any, notes string, maxWait time.Duration, progress ProgressFunc) (*RunResult, error) {
	h, err := s.Orchestrator.Submit(ctx, orchestrator.SubmitRequest{
		ScenarioName: scenario,
		Config:       planConfig,
		Notes:        notes,
	})
	if err != nil {
		return nil, err
	}

	events := s.Orchestrator.Events()
	defer s.Orchestrator.Unsubscribe(events)

	var deadline <-chan time.Time
	if maxWait > 0 {
		t := time.NewTimer(maxWait)
		defer t.Stop()
		deadline = t.C
	}

	seenLogs := 0
	var res orchestrator.Result
wait:
	for {
		select {
		case <-ctx.Done():
			if _, cerr := h.Cancel(context.WithoutCancel(ctx)); cerr != nil {
				s.log.Warnf("cancel after interrupt: %v", cerr)
			}
			return nil, ctx.Err()
		case <-deadline:
			s.log.Warnf("job %s exceeded %s, cancelling", h.Snapshot().ID, maxWait)
			if _, cerr := h.Cancel(ctx); cerr != nil {
				s.log.Warnf("cancel: %v", cerr)
			}
			deadline = nil
		case ev, ok := <-events:
			if ok && ev.HandleID == h.ID() && ev.Kind == orchestrator.EventProgress && progress != nil {
				job := h.Snapshot()
				progress(job, appendedLogs(job.Logs, &seenLogs))
			}
		case res = <-h.Done():
			break wait
		}
	}

	job := h.Snapshot()
	if progress != nil {
		progress(job, appendedLogs(job.Logs, &seenLogs))
	}
	if res.Err != nil {
		return &RunResult{Job: job}, res.Err
	}
	if res.Status != model.StatusCompleted {
		return &RunResult{Job: job}, nil
	}

	plan, err := s.Engine.Plan(ctx, res.PlanID)
	if err != nil {
		return &RunResult{Job: job}, fmt.Errorf("fetch plan %s: %w", res.PlanID, err)
	}
	warns := aggregate.NormalizePlan(&plan)
	for _, w := range warns {
		s.log.Warnf("plan %s: %s", plan.ID, w)
	}
	if r, ok := s.sink.(coremetrics.PlanRecorder); ok {
		_ = r.RecordPlan(coremetrics.PlanMetrics{
			PlanID:          plan.ID,
			TotalCost:       plan.TotalCost,
			FreightCost:     plan.FreightCost,
			UtilizationPct:  plan.UtilizationPct,
			FulfillmentPct:  aggregate.FulfillmentRatio(plan.OrdersFulfilled, plan.TotalOrders),
			RakeCount:       len(plan.Rakes),
			OrdersFulfilled: plan.OrdersFulfilled,
			Time:            time.Now(),
		})
	}
	return &RunResult{Job: job, Plan: plan, Warnings: warns}, nil
}

// appendedLogs returns the portion of logs beyond *seen and advances it.
func appendedLogs(logs string, seen *int) string {
	if len(logs) <= *seen {
		return ""
	}
	out := logs[*seen:]
	*seen = len(logs)
	return strings.TrimRight(out, "\n")
}

// Close releases resources held by the service.
func (s *Service) Close() {
	if s.notifier != nil {
		s.notifier.Close()
	}
	s.Orchestrator.Close()
}
