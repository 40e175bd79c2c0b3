package allocation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/haulplan/core/model"
)

func TestWholeTripFillsIdleTruck(t *testing.T) {
	table := newTable(t, cand("t1", 10, "s1", 5, 20, 8))
	alloc := NewWholeTripAllocator(table, false, nil)

	out := alloc.Allocate(Residual(table, nil, IdleSlack))
	require.Len(t, out, 1)
	assert.Equal(t, model.Assignment{TruckID: "t1", SiteID: "s1", Trips: 2, Volume: 16, Hours: 10}, out[0])
}

func TestWholeTripSecondPassIsNoOp(t *testing.T) {
	table := newTable(t,
		cand("t1", 12, "s1", 4, 30, 6),
		cand("t1", 12, "s2", 4, 13, 6),
		cand("t2", 9, "s1", 4, 30, 6),
		cand("t2", 9, "s2", 4, 13, 6),
	)
	alloc := NewWholeTripAllocator(table, false, nil)

	first := alloc.Allocate(Residual(table, nil, IdleSlack))
	require.NotEmpty(t, first)
	var trips float64
	for _, a := range first {
		trips += a.Trips
	}
	// t1 has room for 3 trips and t2 for 2
	assert.Equal(t, 5.0, trips)

	second := alloc.Allocate(Residual(table, nil, IdleSlack, first))
	assert.Empty(t, second)
}

func TestWholeTripMixedRoundTripsStayWithinHours(t *testing.T) {
	table := newTable(t,
		cand("t1", 10, "near", 4, 100, 1),
		cand("t1", 10, "far", 7, 100, 10),
	)
	out := NewWholeTripAllocator(table, false, nil).Allocate(Residual(table, nil, IdleSlack))

	var hours float64
	for _, a := range out {
		hours += a.Hours
	}
	assert.LessOrEqual(t, hours, 10.0)
	require.Len(t, out, 1)
	assert.Equal(t, "far", out[0].SiteID)
}

func TestWholeTripRefillsHoursLeftByDecode(t *testing.T) {
	table := newTable(t,
		cand("t1", 10, "a", 6, 10, 10),
		cand("t1", 10, "b", 5, 9, 9),
		cand("t1", 10, "c", 4, 50, 5),
	)
	log := &errorCounter{}
	alloc := NewWholeTripAllocator(table, false, log)

	first := alloc.Allocate(Residual(table, nil, IdleSlack))
	assert.Equal(t, []model.Assignment{
		{TruckID: "t1", SiteID: "a", Trips: 1, Volume: 10, Hours: 6},
		{TruckID: "t1", SiteID: "c", Trips: 1, Volume: 5, Hours: 4},
	}, first)
	assert.Zero(t, log.errors)

	second := alloc.Allocate(Residual(table, nil, IdleSlack, first))
	assert.Empty(t, second)
}

func TestPackTrips(t *testing.T) {
	items := []packItem{
		{tripArc: tripArc{site: 0, rt: 5, value: 9}, count: 1},
		{tripArc: tripArc{site: 1, rt: 6, value: 10}, count: 1},
	}
	assert.Equal(t, []int{0, 1}, packTrips(items, 10))
	assert.Equal(t, []int{1, 1}, packTrips(items, 11))
	assert.Equal(t, []int{0, 0}, packTrips(items, 4))
}

func TestWholeTripDropsUnknownPairs(t *testing.T) {
	table := newTable(t, cand("t1", 10, "s1", 5, 20, 8))
	res := Residual(table, nil, IdleSlack)
	res.Trucks = []model.IdleTruck{{TruckID: "ghost", Hours: 10}}

	out := NewWholeTripAllocator(table, false, nil).Allocate(res)
	assert.Empty(t, out)
}

func TestWholeTripProfitSkipsLossMakingSites(t *testing.T) {
	table := newTable(t,
		model.Candidate{TruckID: "t1", SiteID: "loss", AvailableHours: 10, RoundTripHours: 5, Stockpile: 50, LoadPerTrip: 8, ProfitPerUnit: ptr(-2)},
		model.Candidate{TruckID: "t1", SiteID: "gain", AvailableHours: 10, RoundTripHours: 5, Stockpile: 8, LoadPerTrip: 8, ProfitPerUnit: ptr(3)},
	)
	out := NewWholeTripAllocator(table, true, nil).Allocate(Residual(table, nil, IdleSlack))
	require.Len(t, out, 1)
	assert.Equal(t, "gain", out[0].SiteID)
	assert.Equal(t, 1.0, out[0].Trips)
	assert.InDelta(t, 24, out[0].Profit, 1e-9)
}

func TestWholeTripEmptyResidual(t *testing.T) {
	table := newTable(t, cand("t1", 10, "s1", 5, 20, 8))
	assert.Empty(t, NewWholeTripAllocator(table, false, nil).Allocate(model.Residual{}))
}

func TestFloorDiv(t *testing.T) {
	assert.Equal(t, 2, floorDiv(10, 5))
	assert.Equal(t, 3, floorDiv(0.3*3, 0.3))
	assert.Equal(t, 0, floorDiv(4, 5))
	assert.Equal(t, 0, floorDiv(4, 0))
	assert.Equal(t, 0, floorDiv(-4, 2))
}
