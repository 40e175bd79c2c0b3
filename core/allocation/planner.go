package allocation

import (
	"context"
	"fmt"

	"github.com/kilianp07/haulplan/core/logger"
	"github.com/kilianp07/haulplan/core/model"
)

// Planner chains the three allocation stages. Each stage consumes the
// capacity the previous one left, so they run strictly in order.
type Planner struct {
	cfg     Config
	log     logger.Logger
	primary *PrimaryAllocator
}

// NewPlanner validates cfg and returns a planner.
func NewPlanner(cfg Config, log logger.Logger) (*Planner, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("allocation config: %w", err)
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Planner{cfg: cfg, log: log, primary: NewPrimaryAllocator(cfg, log)}, nil
}

// Run computes the weekly plan and both top-up lists. Fatal primary failures
// are returned as errors with no outcome; a degraded primary plan is reported
// through Outcome.Status.
func (p *Planner) Run(ctx context.Context, table *model.CandidateTable) (*model.Outcome, error) {
	prim, err := p.primary.Allocate(ctx, table)
	if err != nil {
		p.log.Errorf("primary allocation failed: %v", err)
		return nil, err
	}

	idle := Residual(table, prim.Plan, p.cfg.IdlePolicy)
	p.log.Infof("top-up: %d idle trucks, %d sites with volume left", len(idle.Trucks), len(idle.Sites))
	whole := NewWholeTripAllocator(table, prim.Profit, p.log).Allocate(idle)

	idle = Residual(table, prim.Plan, p.cfg.IdlePolicy, whole)
	half := NewHalfTripAllocator(table, p.log).Allocate(idle)

	out := &model.Outcome{
		Plan:      prim.Plan,
		Status:    prim.Status,
		Objective: prim.Objective,
		Profit:    prim.Profit,
		Nodes:     prim.Nodes,
		SolveTime: prim.Elapsed,
		WholeTrip: whole,
		HalfTrip:  half,
		Remaining: Residual(table, prim.Plan, p.cfg.IdlePolicy, whole, half),
	}
	p.log.Infof("plan ready (%s): %d trips, %d whole-trip and %d half-trip top-ups",
		out.Status, prim.Plan.TotalTrips(), len(whole), len(half))
	return out, nil
}
