package metrics

import (
	"time"

	"github.com/kilianp07/haulplan/core/model"
)

// PlanRunEvent summarises one planning run.
type PlanRunEvent struct {
	RunID     string
	Season    string
	Objective string
	Status    model.Status
	// Trips and Volume cover the primary plan only.
	Trips           int
	Volume          float64
	Profit          float64
	WholeTripVolume float64
	HalfTripVolume  float64
	IdleTrucks      int
	Nodes           int
	SolveTime       time.Duration
	Time            time.Time
}

// NewPlanRunEvent builds the event of a finished run.
func NewPlanRunEvent(runID, season, objective string, out *model.Outcome, at time.Time) PlanRunEvent {
	ev := PlanRunEvent{RunID: runID, Season: season, Objective: objective, Time: at}
	if out == nil {
		return ev
	}
	ev.Status = out.Status
	ev.Nodes = out.Nodes
	ev.SolveTime = out.SolveTime
	ev.IdleTrucks = len(out.Remaining.Trucks)
	for _, e := range out.Plan.Entries() {
		ev.Trips += e.Trips
		ev.Volume += e.Volume
		ev.Profit += e.Profit
	}
	for _, a := range out.WholeTrip {
		ev.WholeTripVolume += a.Volume
		ev.Profit += a.Profit
	}
	for _, a := range out.HalfTrip {
		ev.HalfTripVolume += a.Volume
		ev.Profit += a.Profit
	}
	return ev
}

// MetricsSink records planning runs for observability purposes.
type MetricsSink interface {
	RecordPlanRun(ev PlanRunEvent) error
}

// SiteVolume is the volume a run took from one site.
type SiteVolume struct {
	RunID     string
	SiteID    string
	Planned   float64
	TopUp     float64
	Remaining float64
	Time      time.Time
}

// SiteVolumeRecorder records per-site volumes.
type SiteVolumeRecorder interface {
	RecordSiteVolumes(v []SiteVolume) error
}

// OrderPublishEvent records the outcome of publishing one truck order.
type OrderPublishEvent struct {
	RunID     string
	TruckID   string
	Published bool
	Error     string
	Time      time.Time
}

// OrderPublishRecorder records order publication results.
type OrderPublishRecorder interface {
	RecordOrderPublish(ev OrderPublishEvent) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordPlanRun(PlanRunEvent) error           { return nil }
func (NopSink) RecordSiteVolumes([]SiteVolume) error       { return nil }
func (NopSink) RecordOrderPublish(OrderPublishEvent) error { return nil }
