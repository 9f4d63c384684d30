package metrics

import (
	"context"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/railops/rakeplan/core/metrics"
	"github.com/railops/rakeplan/infra/logger"
)

// InfluxSink writes job lifecycle events to an InfluxDB instance using
// the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a sink for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	client := influxdb2.NewClient(url, token)
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a
// NopSink when the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordJobOutcome writes the terminal job event as a point.
func (s *InfluxSink) RecordJobOutcome(ev coremetrics.JobOutcome) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("planning_job").
		AddTag("job_id", ev.JobID).
		AddTag("scenario", ev.Scenario).
		AddTag("status", string(ev.Status)).
		AddField("duration_seconds", ev.Duration.Seconds()).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordPlan writes the plan rollup figures as a point.
func (s *InfluxSink) RecordPlan(ev coremetrics.PlanMetrics) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("plan").
		AddTag("plan_id", ev.PlanID).
		AddField("total_cost", ev.TotalCost).
		AddField("freight_cost", ev.FreightCost).
		AddField("utilization_pct", ev.UtilizationPct).
		AddField("fulfillment_pct", ev.FulfillmentPct).
		AddField("rake_count", ev.RakeCount).
		AddField("orders_fulfilled", ev.OrdersFulfilled).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }
