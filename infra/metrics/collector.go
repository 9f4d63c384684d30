package metrics

import (
	"context"
	"time"

	coremetrics "github.com/railops/rakeplan/core/metrics"
	"github.com/railops/rakeplan/core/orchestrator"
)

// StartEventCollector subscribes to the orchestrator's event stream and
// translates job events into sink records. It stops when the context is
// cancelled or the bus closes.
func StartEventCollector(ctx context.Context, orc *orchestrator.Orchestrator, sink coremetrics.MetricsSink) {
	if orc == nil || sink == nil {
		return
	}
	sub := orc.Events()
	go func() {
		defer orc.Unsubscribe(sub)
		submitted := make(map[string]time.Time)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				switch ev.Kind {
				case orchestrator.EventSubmitted:
					submitted[ev.HandleID] = ev.Time
				case orchestrator.EventProgress, orchestrator.EventPollFailed:
					if r, ok := sink.(coremetrics.PollRecorder); ok {
						_ = r.RecordPoll(coremetrics.PollEvent{
							JobID:    ev.JobID,
							Status:   ev.Status,
							Progress: ev.Progress,
							Failed:   ev.Kind == orchestrator.EventPollFailed,
							Time:     ev.Time,
						})
					}
				case orchestrator.EventCompleted, orchestrator.EventFailed, orchestrator.EventCancelled:
					var dur time.Duration
					if t0, ok := submitted[ev.HandleID]; ok {
						dur = ev.Time.Sub(t0)
						delete(submitted, ev.HandleID)
					}
					_ = sink.RecordJobOutcome(coremetrics.JobOutcome{
						JobID:    ev.JobID,
						Scenario: ev.Scenario,
						Status:   ev.Status,
						Duration: dur,
						Time:     ev.Time,
					})
				}
			}
		}
	}()
}
