package allocation

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kilianp07/haulplan/core/logger"
	"github.com/kilianp07/haulplan/core/model"
)

func ptr(v float64) *float64 { return &v }

func cand(truck string, hours float64, site string, rt, stock, load float64) model.Candidate {
	return model.Candidate{
		TruckID:        truck,
		SiteID:         site,
		AvailableHours: hours,
		RoundTripHours: rt,
		Stockpile:      stock,
		LoadPerTrip:    load,
	}
}

func newTable(t *testing.T, cands ...model.Candidate) *model.CandidateTable {
	t.Helper()
	table, err := model.NewCandidateTable(cands)
	require.NoError(t, err)
	return table
}

// assertWithinCapacity checks the plan and every top-up together never exceed
// a truck budget or a site stockpile.
func assertWithinCapacity(t *testing.T, table *model.CandidateTable, out *model.Outcome) {
	t.Helper()
	require.NoError(t, CheckPlan(table, out.Plan))
	hours := make(map[string]float64)
	volume := make(map[string]float64)
	for _, list := range [][]model.Assignment{out.WholeTrip, out.HalfTrip} {
		for _, a := range list {
			hours[a.TruckID] += a.Hours
			volume[a.SiteID] += a.Volume
		}
	}
	for _, id := range table.TruckIDs() {
		used := out.Plan.HoursUsed(id) + hours[id]
		require.LessOrEqualf(t, used, table.TruckHours(id)+1e-6, "truck %s over-committed", id)
	}
	for _, id := range table.SiteIDs() {
		used := out.Plan.VolumeUsed(id) + volume[id]
		require.LessOrEqualf(t, used, table.SiteStockpile(id)+1e-6, "site %s over-depleted", id)
	}
}

// errorCounter counts Errorf calls and discards the rest.
type errorCounter struct {
	logger.NopLogger
	errors int
}

func (e *errorCounter) Errorf(string, ...any) { e.errors++ }
