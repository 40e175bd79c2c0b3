package allocation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/haulplan/core/model"
)

func TestNewPlannerRejectsBadConfig(t *testing.T) {
	_, err := NewPlanner(Config{Objective: "tonnage"}, nil)
	assert.Error(t, err)
	_, err = NewPlanner(Config{IdlePolicy: "never"}, nil)
	assert.Error(t, err)
}

func TestPlannerSingleTruck(t *testing.T) {
	table := newTable(t, cand("t1", 10, "s1", 5, 100, 8))
	p, err := NewPlanner(Config{}, nil)
	require.NoError(t, err)

	out, err := p.Run(context.Background(), table)
	require.NoError(t, err)
	assert.False(t, out.Degraded())
	assert.Equal(t, 2, out.Plan.Trips("t1", "s1"))
	assert.Empty(t, out.WholeTrip)
	assert.Empty(t, out.HalfTrip)
	assert.Empty(t, out.Remaining.Trucks)
	require.Len(t, out.Remaining.Sites, 1)
	assert.InDelta(t, 84, out.Remaining.Sites[0].Volume, 1e-9)
	assertWithinCapacity(t, table, out)
}

func TestPlannerShortTruckStaysIdle(t *testing.T) {
	table := newTable(t,
		cand("t1", 8, "s1", 4, 6, 5),
		cand("t2", 3, "s1", 4, 6, 5),
	)
	p, err := NewPlanner(Config{}, nil)
	require.NoError(t, err)

	out, err := p.Run(context.Background(), table)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Plan.Trips("t1", "s1"))
	assert.False(t, out.Plan.HasTruck("t2"))
	// one unit left is below half a load
	assert.Empty(t, out.WholeTrip)
	assert.Empty(t, out.HalfTrip)
	assert.ElementsMatch(t, []model.IdleTruck{{TruckID: "t1", Hours: 4}, {TruckID: "t2", Hours: 3}}, out.Remaining.Trucks)
	assertWithinCapacity(t, table, out)
}

func TestPlannerHalfTripFromRemainder(t *testing.T) {
	table := newTable(t,
		cand("t1", 8, "s1", 4, 8, 5),
		cand("t2", 3, "s1", 4, 8, 5),
	)
	for _, policy := range []IdlePolicy{IdleSlack, IdleAbsent} {
		t.Run(string(policy), func(t *testing.T) {
			p, err := NewPlanner(Config{IdlePolicy: policy}, nil)
			require.NoError(t, err)
			out, err := p.Run(context.Background(), table)
			require.NoError(t, err)

			require.Len(t, out.HalfTrip, 1)
			h := out.HalfTrip[0]
			assert.Equal(t, "s1", h.SiteID)
			assert.Equal(t, 0.5, h.Trips)
			assert.InDelta(t, 2.5, h.Volume, 1e-9)
			assert.InDelta(t, 2, h.Hours, 1e-9)
			if policy == IdleAbsent {
				assert.Equal(t, "t2", h.TruckID)
			}
			assertWithinCapacity(t, table, out)
		})
	}
}

func TestPlannerSkipsEmptySite(t *testing.T) {
	trucks := []model.Truck{{ID: "t1", AvailableHours: 20}, {ID: "t2", AvailableHours: 9}}
	sites := []model.Site{
		{ID: "full", StockpileVolume: 30, RoundTripHours: 4},
		{ID: "empty", StockpileVolume: 0, RoundTripHours: 1},
	}
	table, err := model.CrossJoin(trucks, sites, func(model.Truck, model.Site) float64 { return 6 })
	require.NoError(t, err)

	p, err := NewPlanner(Config{}, nil)
	require.NoError(t, err)
	out, err := p.Run(context.Background(), table)
	require.NoError(t, err)

	for _, e := range out.Plan.Entries() {
		assert.NotEqual(t, "empty", e.SiteID)
	}
	for _, a := range append(out.WholeTrip, out.HalfTrip...) {
		assert.NotEqual(t, "empty", a.SiteID)
	}
	for _, s := range out.Remaining.Sites {
		assert.NotEqual(t, "empty", s.SiteID)
	}
	assertWithinCapacity(t, table, out)
}

func TestPlannerDegradedPlanIsFeasible(t *testing.T) {
	table := newTable(t,
		cand("t1", 10, "s1", 3, 100, 5),
		cand("t1", 10, "s2", 4, 100, 6),
		cand("t2", 7, "s1", 3, 100, 5),
		cand("t2", 7, "s2", 4, 100, 6),
	)
	p, err := NewPlanner(Config{MaxNodes: 1}, nil)
	require.NoError(t, err)

	out, err := p.Run(context.Background(), table)
	require.NoError(t, err)
	assert.True(t, out.Degraded())
	assert.Positive(t, out.Plan.TotalTrips())
	assertWithinCapacity(t, table, out)
}

func TestPlannerFatalErrorHasNoOutcome(t *testing.T) {
	table := newTable(t, cand("t1", -4, "s1", 5, 100, 8))
	p, err := NewPlanner(Config{}, nil)
	require.NoError(t, err)

	out, err := p.Run(context.Background(), table)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInfeasible))
	assert.Nil(t, out)
}
