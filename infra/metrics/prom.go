package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/haulplan/core/metrics"
)

// PromSink records planning runs in Prometheus metrics.
type PromSink struct {
	runs      *prometheus.CounterVec
	volume    *prometheus.GaugeVec
	idle      prometheus.Gauge
	solve     prometheus.Histogram
	remaining *prometheus.GaugeVec
	orders    *prometheus.CounterVec
}

// NewPromSink registers plan metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using StartPromServer.
func NewPromSink() (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "haulplan_runs_total",
		Help: "Total number of planning runs",
	}, []string{"season", "objective", "status"})
	volume := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "haulplan_last_run_volume",
		Help: "Volume delivered by the last run, per stage",
	}, []string{"stage"})
	idle := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "haulplan_last_run_idle_trucks",
		Help: "Trucks with hours left after the last run",
	})
	solve := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "haulplan_run_solve_seconds",
		Help:    "Primary solve time per run",
		Buckets: prometheus.DefBuckets,
	})
	remaining := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "haulplan_site_remaining_volume",
		Help: "Volume left at each site after the last run",
	}, []string{"site_id"})
	orders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "haulplan_orders_published_total",
		Help: "Truck orders published, by result",
	}, []string{"published"})

	var err error
	if runs, err = register(reg, runs); err != nil {
		return nil, err
	}
	if volume, err = register(reg, volume); err != nil {
		return nil, err
	}
	if idle, err = register(reg, idle); err != nil {
		return nil, err
	}
	if solve, err = register(reg, solve); err != nil {
		return nil, err
	}
	if remaining, err = register(reg, remaining); err != nil {
		return nil, err
	}
	if orders, err = register(reg, orders); err != nil {
		return nil, err
	}
	return &PromSink{runs: runs, volume: volume, idle: idle, solve: solve, remaining: remaining, orders: orders}, nil
}

// register returns the already registered collector when c was registered
// before, so several sinks can share one registry.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordPlanRun updates the run counters and last-run gauges.
func (s *PromSink) RecordPlanRun(ev coremetrics.PlanRunEvent) error {
	s.runs.WithLabelValues(ev.Season, ev.Objective, ev.Status.String()).Inc()
	s.volume.WithLabelValues("plan").Set(ev.Volume)
	s.volume.WithLabelValues("whole_trip").Set(ev.WholeTripVolume)
	s.volume.WithLabelValues("half_trip").Set(ev.HalfTripVolume)
	s.idle.Set(float64(ev.IdleTrucks))
	s.solve.Observe(ev.SolveTime.Seconds())
	return nil
}

// RecordSiteVolumes sets the remaining volume gauge of every site.
func (s *PromSink) RecordSiteVolumes(vols []coremetrics.SiteVolume) error {
	for _, v := range vols {
		s.remaining.WithLabelValues(v.SiteID).Set(v.Remaining)
	}
	return nil
}

// RecordOrderPublish counts published and failed orders.
func (s *PromSink) RecordOrderPublish(ev coremetrics.OrderPublishEvent) error {
	s.orders.WithLabelValues(strconv.FormatBool(ev.Published)).Inc()
	return nil
}
