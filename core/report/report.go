// Package report aggregates a planning outcome into per-site and per-truck
// views and renders them for the terminal.
package report

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/kilianp07/haulplan/core/model"
)

// SiteRow describes what happens to one site's stockpile during the week.
type SiteRow struct {
	SiteID    string          `json:"site_id"`
	Stockpile float64         `json:"stockpile"`
	Planned   float64         `json:"planned"`
	WholeTrip float64         `json:"whole_trip"`
	HalfTrip  float64         `json:"half_trip"`
	Remaining float64         `json:"remaining"`
	Trips     float64         `json:"trips"`
	Hours     float64         `json:"hours"`
	Profit    decimal.Decimal `json:"profit"`
	// Efficiency is delivered volume per truck hour.
	Efficiency float64  `json:"efficiency"`
	Trucks     []string `json:"trucks"`
}

// Delivered returns the volume hauled from the site by every pass.
func (r SiteRow) Delivered() float64 { return r.Planned + r.WholeTrip + r.HalfTrip }

// TruckRow describes how one truck spends its week.
type TruckRow struct {
	TruckID   string  `json:"truck_id"`
	Available float64 `json:"available_hours"`
	Used      float64 `json:"used_hours"`
	Idle      float64 `json:"idle_hours"`
	Trips     float64 `json:"trips"`
	Volume    float64 `json:"volume"`
}

// Totals are the fleet-wide figures of a run.
type Totals struct {
	Status     string          `json:"status"`
	Trips      float64         `json:"trips"`
	Volume     decimal.Decimal `json:"volume"`
	Profit     decimal.Decimal `json:"profit"`
	TrucksUsed int             `json:"trucks_used"`
	Unassigned []string        `json:"unassigned_trucks"`
}

// Summary is the aggregated view of an outcome.
type Summary struct {
	Sites  []SiteRow  `json:"sites"`
	Trucks []TruckRow `json:"trucks"`
	Totals Totals     `json:"totals"`
}

// Summarize aggregates the plan and both top-up passes.
func Summarize(table *model.CandidateTable, out *model.Outcome) Summary {
	var s Summary
	if table == nil || out == nil {
		return s
	}
	s.Totals.Status = out.Status.String()

	sites := make(map[string]*SiteRow)
	siteTrucks := make(map[string]map[string]bool)
	for _, id := range table.SiteIDs() {
		sites[id] = &SiteRow{SiteID: id, Stockpile: table.SiteStockpile(id), Profit: decimal.Zero}
		siteTrucks[id] = make(map[string]bool)
	}
	trucks := make(map[string]*TruckRow)
	for _, id := range table.TruckIDs() {
		trucks[id] = &TruckRow{TruckID: id, Available: table.TruckHours(id)}
	}
	totalVol, totalProfit := decimal.Zero, decimal.Zero

	add := func(kind, truckID, siteID string, trips, volume, hours, profit float64) {
		sr, ok := sites[siteID]
		tr, tok := trucks[truckID]
		if !ok || !tok {
			return
		}
		switch kind {
		case model.KindPlan:
			sr.Planned += volume
		case model.KindWholeTrip:
			sr.WholeTrip += volume
		case model.KindHalfTrip:
			sr.HalfTrip += volume
		}
		sr.Trips += trips
		sr.Hours += hours
		p := decimal.NewFromFloat(profit)
		sr.Profit = sr.Profit.Add(p)
		siteTrucks[siteID][truckID] = true

		tr.Used += hours
		tr.Trips += trips
		tr.Volume += volume

		s.Totals.Trips += trips
		totalVol = totalVol.Add(decimal.NewFromFloat(volume))
		totalProfit = totalProfit.Add(p)
	}
	for _, e := range out.Plan.Entries() {
		add(model.KindPlan, e.TruckID, e.SiteID, float64(e.Trips), e.Volume, e.Hours, e.Profit)
	}
	for _, a := range out.WholeTrip {
		add(model.KindWholeTrip, a.TruckID, a.SiteID, a.Trips, a.Volume, a.Hours, a.Profit)
	}
	for _, a := range out.HalfTrip {
		add(model.KindHalfTrip, a.TruckID, a.SiteID, a.Trips, a.Volume, a.Hours, a.Profit)
	}

	for _, id := range table.SiteIDs() {
		r := sites[id]
		r.Remaining = math.Max(0, r.Stockpile-r.Delivered())
		if r.Hours > 0 {
			r.Efficiency = r.Delivered() / r.Hours
		}
		r.Trucks = sortedKeys(siteTrucks[id])
		s.Sites = append(s.Sites, *r)
	}
	for _, id := range table.TruckIDs() {
		r := trucks[id]
		r.Idle = math.Max(0, r.Available-r.Used)
		if r.Trips > 0 {
			s.Totals.TrucksUsed++
		} else {
			s.Totals.Unassigned = append(s.Totals.Unassigned, id)
		}
		s.Trucks = append(s.Trucks, *r)
	}
	s.Totals.Volume = totalVol.Round(3)
	s.Totals.Profit = totalProfit.Round(2)
	return s
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
