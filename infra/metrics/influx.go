package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/haulplan/core/metrics"
	"github.com/kilianp07/haulplan/infra/logger"
)

// InfluxSink writes planning runs to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
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

// RecordPlanRun writes one plan_run point.
func (s *InfluxSink) RecordPlanRun(ev coremetrics.PlanRunEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("plan_run").
		AddTag("run_id", ev.RunID).
		AddTag("season", ev.Season).
		AddTag("objective", ev.Objective).
		AddTag("status", ev.Status.String()).
		AddField("trips", ev.Trips).
		AddField("volume", round3(ev.Volume)).
		AddField("profit", round3(ev.Profit)).
		AddField("whole_trip_volume", round3(ev.WholeTripVolume)).
		AddField("half_trip_volume", round3(ev.HalfTripVolume)).
		AddField("idle_trucks", ev.IdleTrucks).
		AddField("nodes", ev.Nodes).
		AddField("solve_ms", round3(ev.SolveTime.Seconds()*1000)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordSiteVolumes writes one site_volume point per site.
func (s *InfluxSink) RecordSiteVolumes(vols []coremetrics.SiteVolume) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, v := range vols {
		p := write.NewPointWithMeasurement("site_volume").
			AddTag("run_id", v.RunID).
			AddTag("site_id", v.SiteID).
			AddField("planned", round3(v.Planned)).
			AddField("top_up", round3(v.TopUp)).
			AddField("remaining", round3(v.Remaining)).
			SetTime(v.Time)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// RecordOrderPublish records the result of publishing a truck order.
func (s *InfluxSink) RecordOrderPublish(ev coremetrics.OrderPublishEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("order_published").
		AddTag("run_id", ev.RunID).
		AddTag("truck_id", ev.TruckID).
		AddField("published", ev.Published).
		AddField("errors", ev.Error).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the underlying client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
