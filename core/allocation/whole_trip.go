package allocation

import (
	"math"
	"sort"

	"github.com/kilianp07/haulplan/core/logger"
	"github.com/kilianp07/haulplan/core/model"
)

const (
	sourceNode = 0
	sinkNode   = 1
)

// WholeTripAllocator hands idle truck hours extra whole round trips to sites
// with volume left, solving a min-cost max-flow from a source through trucks
// and sites to a sink.
type WholeTripAllocator struct {
	table  *model.CandidateTable
	profit bool
	log    logger.Logger
}

// NewWholeTripAllocator returns an allocator bound to the candidate table.
// When profit is true arcs are weighted by profit per trip instead of volume.
func NewWholeTripAllocator(table *model.CandidateTable, profit bool, log logger.Logger) *WholeTripAllocator {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &WholeTripAllocator{table: table, profit: profit, log: log}
}

// tripArc describes the parameters of one truck->site arc.
type tripArc struct {
	truck, site int
	rt          float64
	load        float64
	value       float64
}

// Allocate returns the extra trips. It never fails: without idle trucks or open
// sites the list is empty. The flow is re-solved on what is left until it
// assigns nothing, so a second call on the resulting residual is a no-op.
func (a *WholeTripAllocator) Allocate(res model.Residual) []model.Assignment {
	left := model.Residual{
		Trucks: append([]model.IdleTruck(nil), res.Trucks...),
		Sites:  append([]model.OpenSite(nil), res.Sites...),
	}
	merged := make(map[model.Pair]*model.Assignment)
	for round := 1; ; round++ {
		got := a.solve(left)
		if len(got) == 0 {
			break
		}
		a.log.Debugw("whole-trip round", map[string]any{"round": round, "assignments": len(got)})
		hours := make(map[string]float64)
		volume := make(map[string]float64)
		for _, g := range got {
			hours[g.TruckID] += g.Hours
			volume[g.SiteID] += g.Volume
			key := model.Pair{TruckID: g.TruckID, SiteID: g.SiteID}
			if m, ok := merged[key]; ok {
				m.Trips += g.Trips
				m.Volume += g.Volume
				m.Hours += g.Hours
				m.Profit += g.Profit
				continue
			}
			g := g
			merged[key] = &g
		}
		for i := range left.Trucks {
			left.Trucks[i].Hours -= hours[left.Trucks[i].TruckID]
		}
		for k := range left.Sites {
			left.Sites[k].Volume -= volume[left.Sites[k].SiteID]
		}
	}

	out := make([]model.Assignment, 0, len(merged))
	for _, m := range merged {
		out = append(out, *m)
	}
	if len(out) == 0 {
		out = nil
	}
	sortAssignments(out)
	observeTopUp(passWhole, out)
	return out
}

// solve runs one min-cost max-flow round and decodes it into trips that fit
// every truck's hours. Any positive flow decodes to at least one trip.
func (a *WholeTripAllocator) solve(res model.Residual) []model.Assignment {
	sites := a.eligibleSites(res.Sites)
	if len(res.Trucks) == 0 || len(sites) == 0 {
		return nil
	}
	minRT := math.Inf(1)
	for _, s := range sites {
		minRT = math.Min(minRT, s.RoundTripHours)
	}

	truckNode := func(i int) int { return 2 + i }
	siteNode := func(k int) int { return 2 + len(res.Trucks) + k }
	net := newFlowNetwork(2 + len(res.Trucks) + len(sites))

	for i, t := range res.Trucks {
		if err := net.addArc(sourceNode, truckNode(i), floorDiv(t.Hours, minRT), 0); err != nil {
			a.log.Errorf("whole-trip network: %v", err)
		}
	}
	for k, s := range sites {
		if err := net.addArc(siteNode(k), sinkNode, floorDiv(s.Volume, s.LoadPerTrip), 0); err != nil {
			a.log.Errorf("whole-trip network: %v", err)
		}
	}
	var arcs []tripArc
	for i, t := range res.Trucks {
		for k, s := range sites {
			arc := tripArc{truck: i, site: k, rt: s.RoundTripHours, load: s.LoadPerTrip, value: siteTripValue(s, a.profit)}
			if c, ok := a.table.Lookup(t.TruckID, s.SiteID); ok {
				arc.load = c.LoadPerTrip
				arc.value = c.TripValue(a.profit)
			}
			if arc.load <= 0 || arc.value <= 0 {
				continue
			}
			capacity := int(math.Min(float64(floorDiv(t.Hours, arc.rt)), float64(floorDiv(s.Volume, arc.load))))
			if capacity <= 0 {
				continue
			}
			if err := net.addArc(truckNode(i), siteNode(k), capacity, -scaledCost(arc.value)); err != nil {
				a.log.Errorf("whole-trip network: %v", err)
				continue
			}
			arcs = append(arcs, arc)
		}
	}

	flow, cost, err := net.minCostMaxFlow(sourceNode, sinkNode)
	if err != nil {
		a.log.Errorf("whole-trip flow stopped early: %v", err)
	}
	a.log.Debugw("whole-trip flow", map[string]any{
		"trucks": len(res.Trucks), "sites": len(sites), "flow": flow, "value": -float64(cost) / costScale,
	})

	byTruck := make(map[int][]packItem)
	for _, arc := range arcs {
		f := net.flowOn(truckNode(arc.truck), siteNode(arc.site))
		if f <= 0 {
			continue
		}
		t, s := res.Trucks[arc.truck], sites[arc.site]
		if _, ok := a.table.Lookup(t.TruckID, s.SiteID); !ok {
			a.log.Warnf("whole-trip: dropping decoded pair %s/%s unknown to the candidate table", t.TruckID, s.SiteID)
			droppedPairs.WithLabelValues(passWhole).Inc()
			continue
		}
		byTruck[arc.truck] = append(byTruck[arc.truck], packItem{tripArc: arc, count: f})
	}

	var out []model.Assignment
	for i, items := range byTruck {
		t := res.Trucks[i]
		// Source arcs are sized by the shortest round trip, so the flow can
		// overrun a truck's hours when destinations differ.
		sort.Slice(items, func(x, y int) bool {
			vx, vy := items[x].value/items[x].rt, items[y].value/items[y].rt
			if vx != vy {
				return vx > vy
			}
			return sites[items[x].site].SiteID < sites[items[y].site].SiteID
		})
		keep := packTrips(items, t.Hours)
		for j, it := range items {
			n := keep[j]
			if n < it.count {
				a.log.Warnf("whole-trip: truck %s limited to %d of %d trips at %s", t.TruckID, n, it.count, sites[it.site].SiteID)
			}
			if n <= 0 {
				continue
			}
			c, _ := a.table.Lookup(t.TruckID, sites[it.site].SiteID)
			out = append(out, model.Assignment{
				TruckID: t.TruckID,
				SiteID:  sites[it.site].SiteID,
				Trips:   float64(n),
				Volume:  float64(n) * it.load,
				Hours:   float64(n) * it.rt,
				Profit:  float64(n) * c.TripProfit(),
			})
		}
	}
	return out
}

// packItem is a flow-selected arc with the trips the flow routed over it.
type packItem struct {
	tripArc
	count int
}

// packNodeLimit caps the knapsack search; the first leaf reached is the
// greedy packing, so stopping early never does worse than greedy.
const packNodeLimit = 100000

// packTrips picks how many of each item's trips to keep so that the value is
// maximal and the hours fit. Items must be sorted by value per hour,
// best first, for the bound to hold.
func packTrips(items []packItem, hours float64) []int {
	best := make([]int, len(items))
	cur := make([]int, len(items))
	bestVal := -1.0
	nodes := 0
	var search func(i int, left, val float64)
	search = func(i int, left, val float64) {
		nodes++
		if val > bestVal+1e-9 {
			bestVal = val
			copy(best, cur)
		}
		if i == len(items) || nodes > packNodeLimit {
			return
		}
		it := items[i]
		if val+left*it.value/it.rt <= bestVal+1e-9 {
			return
		}
		n := it.count
		if fit := floorDiv(left, it.rt); fit < n {
			n = fit
		}
		for x := n; x >= 0; x-- {
			cur[i] = x
			search(i+1, left-float64(x)*it.rt, val+float64(x)*it.value)
		}
		cur[i] = 0
	}
	search(0, hours, 0)
	return best
}

func (a *WholeTripAllocator) eligibleSites(in []model.OpenSite) []model.OpenSite {
	var out []model.OpenSite
	for _, s := range in {
		if s.Volume <= 0 || s.RoundTripHours <= 0 || s.LoadPerTrip <= 0 {
			continue
		}
		if a.profit && siteTripValue(s, true) <= 0 {
			continue
		}
		out = append(out, s)
	}
	return out
}

func siteTripValue(s model.OpenSite, profit bool) float64 {
	if profit && s.ProfitPerUnit != nil {
		return s.LoadPerTrip * *s.ProfitPerUnit
	}
	return s.LoadPerTrip
}

// floorDiv returns floor(a/b) for positive b, 0 otherwise.
func floorDiv(a, b float64) int {
	if b <= 0 || a <= 0 || math.IsNaN(a) || math.IsNaN(b) {
		return 0
	}
	q := math.Floor(a/b + 1e-9)
	if q > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(q)
}

func sortAssignments(out []model.Assignment) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].TruckID != out[j].TruckID {
			return out[i].TruckID < out[j].TruckID
		}
		return out[i].SiteID < out[j].SiteID
	})
}
