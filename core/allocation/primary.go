package allocation

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/haulplan/core/logger"
	"github.com/kilianp07/haulplan/core/model"
)

// PrimaryResult is the output of the primary allocator.
type PrimaryResult struct {
	Plan      *model.Plan
	Status    model.Status
	Objective float64
	// Profit is true when the objective weighted trips by profit.
	Profit  bool
	Nodes   int
	Elapsed time.Duration
}

// PrimaryAllocator solves the weekly bounded integer program: one variable
// per truck/site pair, one hour row per truck and one volume row per site.
type PrimaryAllocator struct {
	cfg Config
	log logger.Logger
	now func() time.Time
}

// NewPrimaryAllocator returns an allocator using cfg. A nil logger discards
// log output.
func NewPrimaryAllocator(cfg Config, log logger.Logger) *PrimaryAllocator {
	cfg.SetDefaults()
	if log == nil {
		log = logger.NopLogger{}
	}
	return &PrimaryAllocator{cfg: cfg, log: log, now: time.Now}
}

// UsesProfit reports whether the objective for table is profit based.
func (a *PrimaryAllocator) UsesProfit(table *model.CandidateTable) bool {
	return a.cfg.Objective == ObjectiveProfit && table.HasProfit()
}

// Allocate builds and solves the program. It returns ErrInfeasible when no
// plan satisfies the constraints and ErrSolver when the root relaxation cannot
// be solved. Hitting the time or node limit is not an error: the best plan
// found is returned with model.StatusDegraded.
func (a *PrimaryAllocator) Allocate(ctx context.Context, table *model.CandidateTable) (PrimaryResult, error) {
	start := a.now()
	if err := table.Validate(); err != nil {
		return PrimaryResult{}, fmt.Errorf("%w: %v", ErrInfeasible, err)
	}
	profit := a.UsesProfit(table)
	if a.cfg.Objective == ObjectiveProfit && !profit {
		a.log.Warnf("profit objective requested but profit data is missing, maximising volume")
	}

	prog, pairs := buildProgram(table, profit, a.cfg.MaxTripsPerPair)
	a.log.Infof("primary allocation: %d trucks, %d sites, %d candidates, %d variables",
		len(table.TruckIDs()), len(table.SiteIDs()), table.Len(), prog.size())

	lim := searchLimits{maxNodes: a.cfg.MaxNodes, now: a.now}
	if a.cfg.TimeLimitMS > 0 {
		lim.deadline = start.Add(a.cfg.TimeLimit())
	}
	res, err := prog.search(ctx, lim)
	if err != nil {
		return PrimaryResult{}, err
	}

	trips := make(map[model.Pair]int, len(pairs))
	for j, n := range res.x {
		if n > 0 {
			trips[pairs[j]] = n
		}
	}
	plan := model.NewPlan(table, trips)
	if err := CheckPlan(table, plan); err != nil {
		return PrimaryResult{}, fmt.Errorf("%w: %v", ErrSolver, err)
	}

	out := PrimaryResult{
		Plan:      plan,
		Status:    model.StatusOptimal,
		Objective: res.value,
		Profit:    profit,
		Nodes:     res.nodes,
		Elapsed:   a.now().Sub(start),
	}
	if !res.proven {
		out.Status = model.StatusDegraded
		a.log.Warnf("search limit reached after %d nodes: returning best feasible plan (objective %.2f)", res.nodes, res.value)
	}
	a.log.Infof("primary allocation %s: %d trips, objective %.2f, %d nodes in %s",
		out.Status, plan.TotalTrips(), out.Objective, out.Nodes, out.Elapsed)
	observePrimary(out)
	return out, nil
}

// buildProgram keeps only pairs that can carry at least one valuable trip.
func buildProgram(table *model.CandidateTable, profit bool, maxTrips int) (*program, []model.Pair) {
	prog := &program{}
	truckIdx := make(map[string]int)
	for _, id := range table.TruckIDs() {
		truckIdx[id] = len(prog.truckCap)
		prog.truckCap = append(prog.truckCap, table.TruckHours(id))
	}
	siteIdx := make(map[string]int)
	for _, id := range table.SiteIDs() {
		siteIdx[id] = len(prog.siteCap)
		prog.siteCap = append(prog.siteCap, table.SiteStockpile(id))
	}

	var pairs []model.Pair
	for _, c := range table.Candidates() {
		ub := c.TripBound(maxTrips)
		v := c.TripValue(profit)
		if ub <= 0 || v <= 0 || c.LoadPerTrip < 0 {
			continue
		}
		prog.value = append(prog.value, v)
		prog.hours = append(prog.hours, c.RoundTripHours)
		prog.load = append(prog.load, c.LoadPerTrip)
		prog.truck = append(prog.truck, truckIdx[c.TruckID])
		prog.site = append(prog.site, siteIdx[c.SiteID])
		prog.bound = append(prog.bound, ub)
		pairs = append(pairs, c.Pair())
	}
	prog.finish()
	return prog, pairs
}

// CheckPlan verifies that no truck is over-committed and no site is
// over-depleted.
func CheckPlan(table *model.CandidateTable, plan *model.Plan) error {
	for _, id := range table.TruckIDs() {
		if used, budget := plan.HoursUsed(id), table.TruckHours(id); used > budget+feasTol {
			return fmt.Errorf("truck %s over-committed: %.3f h > %.3f h", id, used, budget)
		}
	}
	for _, id := range table.SiteIDs() {
		if used, stock := plan.VolumeUsed(id), table.SiteStockpile(id); used > stock+feasTol {
			return fmt.Errorf("site %s over-depleted: %.3f > %.3f", id, used, stock)
		}
	}
	return nil
}
