package allocation

import (
	"github.com/kilianp07/haulplan/core/logger"
	"github.com/kilianp07/haulplan/core/model"
)

// HalfTripAllocator squeezes remaining volume out of trucks and sites that
// cannot support another whole trip. Every truck receives at most one half
// trip and arcs are weighted by volume only.
type HalfTripAllocator struct {
	table *model.CandidateTable
	log   logger.Logger
}

// NewHalfTripAllocator returns an allocator bound to the candidate table.
func NewHalfTripAllocator(table *model.CandidateTable, log logger.Logger) *HalfTripAllocator {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &HalfTripAllocator{table: table, log: log}
}

// HalfTripEligible reports whether a truck with hours left can make half a
// round trip to a site holding volume. Both bounds are inclusive.
func HalfTripEligible(hours, roundTrip, volume, load float64) bool {
	if roundTrip <= 0 || load <= 0 || hours <= 0 {
		return false
	}
	return hours >= roundTrip/2 && volume >= load/2
}

// Allocate returns the half-trip assignments, possibly none.
func (a *HalfTripAllocator) Allocate(res model.Residual) []model.Assignment {
	if res.Empty() {
		return nil
	}
	var sites []model.OpenSite
	for _, s := range res.Sites {
		if s.RoundTripHours > 0 && s.LoadPerTrip > 0 && s.Volume > 0 {
			sites = append(sites, s)
		}
	}
	if len(sites) == 0 {
		return nil
	}

	truckNode := func(i int) int { return 2 + i }
	siteNode := func(k int) int { return 2 + len(res.Trucks) + k }
	net := newFlowNetwork(2 + len(res.Trucks) + len(sites))
	for i, t := range res.Trucks {
		if t.Hours > 0 {
			if err := net.addArc(sourceNode, truckNode(i), 1, 0); err != nil {
				a.log.Errorf("half-trip network: %v", err)
			}
		}
	}
	for k, s := range sites {
		if err := net.addArc(siteNode(k), sinkNode, floorDiv(s.Volume, s.LoadPerTrip/2), 0); err != nil {
			a.log.Errorf("half-trip network: %v", err)
		}
	}
	for i, t := range res.Trucks {
		for k, s := range sites {
			load := s.LoadPerTrip
			if c, ok := a.table.Lookup(t.TruckID, s.SiteID); ok {
				load = c.LoadPerTrip
			}
			if !HalfTripEligible(t.Hours, s.RoundTripHours, s.Volume, load) {
				continue
			}
			if err := net.addArc(truckNode(i), siteNode(k), 1, -scaledCost(0.5*load)); err != nil {
				a.log.Errorf("half-trip network: %v", err)
			}
		}
	}

	flow, _, err := net.minCostMaxFlow(sourceNode, sinkNode)
	if err != nil {
		a.log.Errorf("half-trip flow stopped early: %v", err)
	}
	a.log.Debugw("half-trip flow", map[string]any{"trucks": len(res.Trucks), "sites": len(sites), "flow": flow})

	var out []model.Assignment
	for i, t := range res.Trucks {
		for k, s := range sites {
			if net.flowOn(truckNode(i), siteNode(k)) <= 0 {
				continue
			}
			c, ok := a.table.Lookup(t.TruckID, s.SiteID)
			if !ok {
				a.log.Warnf("half-trip: dropping decoded pair %s/%s unknown to the candidate table", t.TruckID, s.SiteID)
				droppedPairs.WithLabelValues(passHalf).Inc()
				continue
			}
			out = append(out, model.Assignment{
				TruckID: t.TruckID,
				SiteID:  s.SiteID,
				Trips:   0.5,
				Volume:  0.5 * c.LoadPerTrip,
				Hours:   0.5 * s.RoundTripHours,
				Profit:  0.5 * c.TripProfit(),
			})
		}
	}
	sortAssignments(out)
	observeTopUp(passHalf, out)
	return out
}
