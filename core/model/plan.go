package model

import (
	"sort"
	"time"
)

// Status tells how much the caller can trust a primary plan.
type Status int

const (
	// StatusOptimal means the solver proved optimality.
	StatusOptimal Status = iota
	// StatusDegraded means the search stopped on a time or node limit and the
	// best feasible plan found so far was returned.
	StatusDegraded
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// PlanEntry is the number of whole trips one truck makes to one site.
type PlanEntry struct {
	TruckID string  `json:"truck_id"`
	SiteID  string  `json:"site_id"`
	Trips   int     `json:"trips_planned"`
	Volume  float64 `json:"volume"`
	Hours   float64 `json:"hours"`
	Profit  float64 `json:"profit"`
}

// Plan is the immutable result of the primary allocation.
type Plan struct {
	entries []PlanEntry
	trips   map[Pair]int
	hours   map[string]float64
	volume  map[string]float64
}

// NewPlan builds a plan from per-pair trip counts. Pairs with zero trips are
// dropped and entries are sorted by truck then site.
func NewPlan(table *CandidateTable, trips map[Pair]int) *Plan {
	p := &Plan{
		trips:  make(map[Pair]int),
		hours:  make(map[string]float64),
		volume: make(map[string]float64),
	}
	for pair, n := range trips {
		if n <= 0 {
			continue
		}
		c, ok := table.Lookup(pair.TruckID, pair.SiteID)
		if !ok {
			continue
		}
		e := PlanEntry{
			TruckID: pair.TruckID,
			SiteID:  pair.SiteID,
			Trips:   n,
			Volume:  float64(n) * c.LoadPerTrip,
			Hours:   float64(n) * c.RoundTripHours,
			Profit:  float64(n) * c.TripProfit(),
		}
		p.entries = append(p.entries, e)
		p.trips[pair] = n
		p.hours[e.TruckID] += e.Hours
		p.volume[e.SiteID] += e.Volume
	}
	sort.Slice(p.entries, func(i, j int) bool {
		if p.entries[i].TruckID != p.entries[j].TruckID {
			return p.entries[i].TruckID < p.entries[j].TruckID
		}
		return p.entries[i].SiteID < p.entries[j].SiteID
	})
	return p
}

// Entries returns a copy of the plan rows.
func (p *Plan) Entries() []PlanEntry {
	if p == nil {
		return nil
	}
	return append([]PlanEntry(nil), p.entries...)
}

// Trips returns the trips planned for the pair.
func (p *Plan) Trips(truckID, siteID string) int {
	if p == nil {
		return 0
	}
	return p.trips[Pair{TruckID: truckID, SiteID: siteID}]
}

// HoursUsed returns the hours committed for a truck.
func (p *Plan) HoursUsed(truckID string) float64 {
	if p == nil {
		return 0
	}
	return p.hours[truckID]
}

// VolumeUsed returns the volume committed at a site.
func (p *Plan) VolumeUsed(siteID string) float64 {
	if p == nil {
		return 0
	}
	return p.volume[siteID]
}

// HasTruck reports whether the truck received at least one trip.
func (p *Plan) HasTruck(truckID string) bool {
	if p == nil {
		return false
	}
	_, ok := p.hours[truckID]
	return ok
}

// TotalTrips returns the number of trips in the plan.
func (p *Plan) TotalTrips() int {
	var n int
	for _, e := range p.Entries() {
		n += e.Trips
	}
	return n
}

// TotalVolume returns the delivered volume of the plan.
func (p *Plan) TotalVolume() float64 {
	var v float64
	for _, e := range p.Entries() {
		v += e.Volume
	}
	return v
}

// Allocation kinds, used wherever plan rows and top-ups are listed together.
const (
	KindPlan      = "plan"
	KindWholeTrip = "whole_trip"
	KindHalfTrip  = "half_trip"
)

// Assignment is an extra allocation produced by a top-up pass. Trips is a
// whole number for the whole-trip pass and 0.5 for the half-trip pass.
type Assignment struct {
	TruckID string  `json:"truck_id"`
	SiteID  string  `json:"site_id"`
	Trips   float64 `json:"trips"`
	Volume  float64 `json:"volume"`
	Hours   float64 `json:"hours_used"`
	Profit  float64 `json:"profit"`
}

// IdleTruck is a truck with hours left after a pass.
type IdleTruck struct {
	TruckID string  `json:"truck_id"`
	Hours   float64 `json:"hours"`
}

// OpenSite is a site with volume left after a pass.
type OpenSite struct {
	SiteID         string   `json:"site_id"`
	Volume         float64  `json:"volume"`
	RoundTripHours float64  `json:"round_trip_hours"`
	LoadPerTrip    float64  `json:"load_per_trip"`
	ProfitPerUnit  *float64 `json:"profit_per_unit,omitempty"`
}

// Residual is the truck time and site volume left unused.
type Residual struct {
	Trucks []IdleTruck `json:"trucks"`
	Sites  []OpenSite  `json:"sites"`
}

// Empty reports whether no top-up is possible at all.
func (r Residual) Empty() bool { return len(r.Trucks) == 0 || len(r.Sites) == 0 }

// Outcome is the combined result of a planning run.
type Outcome struct {
	Plan      *Plan         `json:"-"`
	Status    Status        `json:"status"`
	Objective float64       `json:"objective"`
	Profit    bool          `json:"profit_objective"`
	Nodes     int           `json:"nodes"`
	SolveTime time.Duration `json:"solve_time"`
	WholeTrip []Assignment  `json:"whole_trip"`
	HalfTrip  []Assignment  `json:"half_trip"`
	// Remaining is the capacity left after the half-trip pass.
	Remaining Residual `json:"remaining"`
}

// Degraded reports whether the primary plan is not proven optimal.
func (o *Outcome) Degraded() bool { return o != nil && o.Status == StatusDegraded }
