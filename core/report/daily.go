package report

import (
	"sort"

	"github.com/kilianp07/haulplan/core/model"
)

// DefaultDailyHours is the length of a driving day.
const DefaultDailyHours = 10.5

// DailyTrip is one trip of a truck placed on a day of the week.
type DailyTrip struct {
	Day     int     `json:"day" yaml:"day"`
	TruckID string  `json:"truck_id" yaml:"truck_id"`
	SiteID  string  `json:"site_id" yaml:"site_id"`
	Kind    string  `json:"kind" yaml:"kind"`
	Number  int     `json:"trip_number" yaml:"trip_number"`
	Of      int     `json:"total_trips_for_truck" yaml:"total_trips_for_truck"`
	Hours   float64 `json:"hours" yaml:"hours"`
	Volume  float64 `json:"volume" yaml:"volume"`
	Profit  float64 `json:"profit" yaml:"profit"`
}

// DailySchedule expands every truck's trips into days. Trips are taken in plan
// order then whole then half trips, and a new day starts when the next trip
// would exceed dailyHours. A trip longer than a day gets a day of its own.
func DailySchedule(out *model.Outcome, dailyHours float64) []DailyTrip {
	if out == nil {
		return nil
	}
	if dailyHours <= 0 {
		dailyHours = DefaultDailyHours
	}
	type unit struct {
		site, kind            string
		hours, volume, profit float64
	}
	var order []string
	units := make(map[string][]unit)
	push := func(truck string, u unit) {
		if _, ok := units[truck]; !ok {
			order = append(order, truck)
		}
		units[truck] = append(units[truck], u)
	}
	for _, e := range out.Plan.Entries() {
		n := float64(e.Trips)
		for i := 0; i < e.Trips; i++ {
			push(e.TruckID, unit{e.SiteID, model.KindPlan, e.Hours / n, e.Volume / n, e.Profit / n})
		}
	}
	for _, a := range out.WholeTrip {
		n := int(a.Trips)
		for i := 0; i < n; i++ {
			push(a.TruckID, unit{a.SiteID, model.KindWholeTrip, a.Hours / a.Trips, a.Volume / a.Trips, a.Profit / a.Trips})
		}
	}
	for _, a := range out.HalfTrip {
		push(a.TruckID, unit{a.SiteID, model.KindHalfTrip, a.Hours, a.Volume, a.Profit})
	}

	sort.Strings(order)
	var days []DailyTrip
	for _, truck := range order {
		list := units[truck]
		day, used := 1, 0.0
		for i, u := range list {
			if used > 0 && used+u.hours > dailyHours+1e-9 {
				day++
				used = 0
			}
			used += u.hours
			days = append(days, DailyTrip{
				Day:     day,
				TruckID: truck,
				SiteID:  u.site,
				Kind:    u.kind,
				Number:  i + 1,
				Of:      len(list),
				Hours:   u.hours,
				Volume:  u.volume,
				Profit:  u.profit,
			})
		}
	}
	return days
}
