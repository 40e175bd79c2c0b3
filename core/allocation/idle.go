package allocation

import "github.com/kilianp07/haulplan/core/model"

const residualEps = 1e-9

// Residual derives the capacity left once the plan and the given top-up
// assignments are accounted for. With IdleAbsent a truck that appears in the
// plan is never offered again, whatever its slack.
func Residual(table *model.CandidateTable, plan *model.Plan, policy IdlePolicy, extra ...[]model.Assignment) model.Residual {
	usedHours := make(map[string]float64)
	usedVolume := make(map[string]float64)
	for _, list := range extra {
		for _, a := range list {
			usedHours[a.TruckID] += a.Hours
			usedVolume[a.SiteID] += a.Volume
		}
	}

	var res model.Residual
	for _, id := range table.TruckIDs() {
		if policy == IdleAbsent && plan.HasTruck(id) {
			continue
		}
		h := table.TruckHours(id) - plan.HoursUsed(id) - usedHours[id]
		if h > residualEps {
			res.Trucks = append(res.Trucks, model.IdleTruck{TruckID: id, Hours: h})
		}
	}
	for _, id := range table.SiteIDs() {
		v := table.SiteStockpile(id) - plan.VolumeUsed(id) - usedVolume[id]
		if v <= residualEps {
			continue
		}
		prof, ok := table.SiteProfile(id)
		if !ok {
			continue
		}
		res.Sites = append(res.Sites, model.OpenSite{
			SiteID:         id,
			Volume:         v,
			RoundTripHours: prof.RoundTripHours,
			LoadPerTrip:    prof.LoadPerTrip,
			ProfitPerUnit:  prof.ProfitPerUnit,
		})
	}
	return res
}
