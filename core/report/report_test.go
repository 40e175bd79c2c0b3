package report

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/haulplan/core/model"
)

func ptr(v float64) *float64 { return &v }

// fixture: T1 plans 2 trips to S1, T2 gets a whole trip top-up at S2 and T1 a
// half trip at S2. T3 stays idle.
func fixture(t *testing.T) (*model.CandidateTable, *model.Outcome) {
	t.Helper()
	var cands []model.Candidate
	for _, tr := range []struct {
		id    string
		hours float64
	}{{"T1", 10}, {"T2", 8}, {"T3", 2}} {
		cands = append(cands,
			model.Candidate{TruckID: tr.id, SiteID: "S1", AvailableHours: tr.hours, RoundTripHours: 3, Stockpile: 20, LoadPerTrip: 5, ProfitPerUnit: ptr(2)},
			model.Candidate{TruckID: tr.id, SiteID: "S2", AvailableHours: tr.hours, RoundTripHours: 4, Stockpile: 30, LoadPerTrip: 6, ProfitPerUnit: ptr(1.5)},
		)
	}
	table, err := model.NewCandidateTable(cands)
	require.NoError(t, err)
	plan := model.NewPlan(table, map[model.Pair]int{{TruckID: "T1", SiteID: "S1"}: 2})
	out := &model.Outcome{
		Plan:      plan,
		Status:    model.StatusOptimal,
		WholeTrip: []model.Assignment{{TruckID: "T2", SiteID: "S2", Trips: 2, Volume: 12, Hours: 8, Profit: 18}},
		HalfTrip:  []model.Assignment{{TruckID: "T1", SiteID: "S2", Trips: 0.5, Volume: 3, Hours: 2, Profit: 4.5}},
	}
	return table, out
}

func TestSummarize(t *testing.T) {
	table, out := fixture(t)
	s := Summarize(table, out)

	require.Len(t, s.Sites, 2)
	s1 := s.Sites[0]
	assert.Equal(t, "S1", s1.SiteID)
	assert.InDelta(t, 10, s1.Planned, 1e-9)
	assert.InDelta(t, 10, s1.Remaining, 1e-9)
	assert.InDelta(t, 2, s1.Trips, 1e-9)
	assert.InDelta(t, 10.0/6, s1.Efficiency, 1e-9)
	assert.Equal(t, "20", s1.Profit.String())
	assert.Equal(t, []string{"T1"}, s1.Trucks)

	s2 := s.Sites[1]
	assert.InDelta(t, 12, s2.WholeTrip, 1e-9)
	assert.InDelta(t, 3, s2.HalfTrip, 1e-9)
	assert.InDelta(t, 15, s2.Remaining, 1e-9)
	assert.InDelta(t, 2.5, s2.Trips, 1e-9)
	assert.Equal(t, []string{"T1", "T2"}, s2.Trucks)

	require.Len(t, s.Trucks, 3)
	assert.InDelta(t, 8, s.Trucks[0].Used, 1e-9)
	assert.InDelta(t, 2, s.Trucks[0].Idle, 1e-9)
	assert.InDelta(t, 0, s.Trucks[1].Idle, 1e-9)
	assert.InDelta(t, 2, s.Trucks[2].Idle, 1e-9)

	assert.Equal(t, "optimal", s.Totals.Status)
	assert.InDelta(t, 4.5, s.Totals.Trips, 1e-9)
	assert.Equal(t, "25", s.Totals.Volume.String())
	assert.Equal(t, "42.5", s.Totals.Profit.String())
	assert.Equal(t, 2, s.Totals.TrucksUsed)
	assert.Equal(t, []string{"T3"}, s.Totals.Unassigned)
}

func TestSummarizeNil(t *testing.T) {
	assert.Empty(t, Summarize(nil, nil).Sites)
}

func TestDailySchedule(t *testing.T) {
	_, out := fixture(t)
	days := DailySchedule(out, 0)
	require.Len(t, days, 5)

	// T1: 3h + 3h + 2h fits one 10.5h day.
	for _, d := range days[:3] {
		assert.Equal(t, "T1", d.TruckID)
		assert.Equal(t, 1, d.Day)
		assert.Equal(t, 3, d.Of)
	}
	assert.Equal(t, model.KindPlan, days[0].Kind)
	assert.Equal(t, model.KindHalfTrip, days[2].Kind)
	assert.Equal(t, 3, days[2].Number)

	// T2: two 4h trips fit one day.
	assert.Equal(t, 1, days[3].Day)
	assert.Equal(t, 1, days[4].Day)
	assert.InDelta(t, 6, days[4].Volume, 1e-9)

	short := DailySchedule(out, 5)
	var t1 []DailyTrip
	for _, d := range short {
		if d.TruckID == "T1" {
			t1 = append(t1, d)
		}
	}
	require.Len(t, t1, 3)
	assert.Equal(t, []int{1, 2, 2}, []int{t1[0].Day, t1[1].Day, t1[2].Day})
}

func TestRender(t *testing.T) {
	table, out := fixture(t)
	out.Status = model.StatusDegraded
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, Summarize(table, out)))
	text := buf.String()
	assert.Contains(t, text, "warning")
	assert.Contains(t, text, "Sites")
	assert.Contains(t, text, "S2")
	assert.Contains(t, text, "42.50")
	assert.Contains(t, text, "T3")
}
