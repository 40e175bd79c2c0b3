package mqtt

import (
	"sort"
	"time"

	"github.com/kilianp07/haulplan/core/model"
)

// TripOrder is one line of a truck's weekly order.
type TripOrder struct {
	SiteID string  `json:"site_id"`
	Kind   string  `json:"kind"`
	Trips  float64 `json:"trips"`
	Volume float64 `json:"volume"`
	Hours  float64 `json:"hours"`
}

// TruckOrder is the weekly plan of one truck.
type TruckOrder struct {
	OrderID    string      `json:"order_id"`
	RunID      string      `json:"run_id"`
	TruckID    string      `json:"truck_id"`
	Trips      []TripOrder `json:"trips"`
	TotalHours float64     `json:"total_hours"`
	Timestamp  int64       `json:"timestamp"`
}

// Summary is published once per run.
type Summary struct {
	RunID     string   `json:"run_id"`
	Status    string   `json:"status"`
	Trucks    []string `json:"trucks"`
	Idle      []string `json:"idle_trucks"`
	Trips     int      `json:"trips"`
	Volume    float64  `json:"volume"`
	Timestamp int64    `json:"timestamp"`
}

// BuildOrders groups the plan and both top-up lists by truck. Trucks without
// work get no order. Orders are sorted by truck.
func BuildOrders(runID string, out *model.Outcome, at time.Time) []TruckOrder {
	if out == nil {
		return nil
	}
	byTruck := make(map[string]*TruckOrder)
	get := func(id string) *TruckOrder {
		o, ok := byTruck[id]
		if !ok {
			o = &TruckOrder{RunID: runID, TruckID: id, Timestamp: at.UnixMilli()}
			byTruck[id] = o
		}
		return o
	}
	if out.Plan != nil {
		for _, e := range out.Plan.Entries() {
			o := get(e.TruckID)
			o.Trips = append(o.Trips, TripOrder{SiteID: e.SiteID, Kind: model.KindPlan, Trips: float64(e.Trips), Volume: e.Volume, Hours: e.Hours})
			o.TotalHours += e.Hours
		}
	}
	for kind, list := range map[string][]model.Assignment{model.KindWholeTrip: out.WholeTrip, model.KindHalfTrip: out.HalfTrip} {
		for _, a := range list {
			o := get(a.TruckID)
			o.Trips = append(o.Trips, TripOrder{SiteID: a.SiteID, Kind: kind, Trips: a.Trips, Volume: a.Volume, Hours: a.Hours})
			o.TotalHours += a.Hours
		}
	}
	rank := map[string]int{model.KindPlan: 0, model.KindWholeTrip: 1, model.KindHalfTrip: 2}
	orders := make([]TruckOrder, 0, len(byTruck))
	for _, o := range byTruck {
		sort.Slice(o.Trips, func(i, j int) bool {
			if rank[o.Trips[i].Kind] != rank[o.Trips[j].Kind] {
				return rank[o.Trips[i].Kind] < rank[o.Trips[j].Kind]
			}
			return o.Trips[i].SiteID < o.Trips[j].SiteID
		})
		orders = append(orders, *o)
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].TruckID < orders[j].TruckID })
	return orders
}

// BuildSummary describes the run for dispatchers listening on the summary topic.
func BuildSummary(runID string, out *model.Outcome, orders []TruckOrder, at time.Time) Summary {
	s := Summary{RunID: runID, Timestamp: at.UnixMilli(), Trucks: []string{}, Idle: []string{}}
	if out == nil {
		return s
	}
	s.Status = out.Status.String()
	for _, o := range orders {
		s.Trucks = append(s.Trucks, o.TruckID)
		for _, t := range o.Trips {
			if t.Kind == model.KindPlan {
				s.Trips += int(t.Trips)
			}
			s.Volume += t.Volume
		}
	}
	for _, t := range out.Remaining.Trucks {
		s.Idle = append(s.Idle, t.TruckID)
	}
	return s
}
