package allocation

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/haulplan/core/model"
)

const (
	passWhole = model.KindWholeTrip
	passHalf  = model.KindHalfTrip
)

var (
	solveDuration *prometheus.HistogramVec
	searchNodes   prometheus.Histogram
	plannedTrips  prometheus.Counter
	topUpVolume   *prometheus.CounterVec
	droppedPairs  *prometheus.CounterVec
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.HistogramVec, prometheus.Histogram, prometheus.Counter, *prometheus.CounterVec, *prometheus.CounterVec) {
	dur := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "haulplan_primary_solve_seconds",
			Help:    "Time spent solving the primary allocation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)
	nodes := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "haulplan_primary_search_nodes",
			Help:    "Branch-and-bound nodes explored per primary allocation",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)
	trips := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "haulplan_primary_trips_total",
			Help: "Whole trips planned by the primary allocation",
		},
	)
	vol := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "haulplan_topup_volume_total",
			Help: "Volume assigned by the top-up passes",
		},
		[]string{"pass"},
	)
	dropped := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "haulplan_topup_dropped_pairs_total",
			Help: "Flow-decoded pairs discarded because the candidate table does not know them",
		},
		[]string{"pass"},
	)
	return dur, nodes, trips, vol, dropped
}

func init() {
	solveDuration, searchNodes, plannedTrips, topUpVolume, droppedPairs = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers allocation metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(solveDuration, searchNodes, plannedTrips, topUpVolume, droppedPairs)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	solveDuration, searchNodes, plannedTrips, topUpVolume, droppedPairs = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}

func observePrimary(res PrimaryResult) {
	solveDuration.WithLabelValues(res.Status.String()).Observe(res.Elapsed.Seconds())
	searchNodes.Observe(float64(res.Nodes))
	plannedTrips.Add(float64(res.Plan.TotalTrips()))
}

func observeTopUp(pass string, out []model.Assignment) {
	var v float64
	for _, a := range out {
		v += a.Volume
	}
	topUpVolume.WithLabelValues(pass).Add(v)
}
