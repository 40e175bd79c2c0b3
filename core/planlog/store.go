package planlog

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/haulplan/core/model"
)

// Record captures one planning run and its result.
type Record struct {
	RunID      string             `json:"run_id"`
	Timestamp  time.Time          `json:"timestamp"`
	Season     string             `json:"season"`
	Objective  string             `json:"objective"`
	Status     string             `json:"status"`
	Trips      int                `json:"trips"`
	Volume     float64            `json:"volume"`
	Profit     float64            `json:"profit"`
	Plan       []model.PlanEntry  `json:"plan"`
	WholeTrip  []model.Assignment `json:"whole_trip,omitempty"`
	HalfTrip   []model.Assignment `json:"half_trip,omitempty"`
	IdleTrucks []model.IdleTruck  `json:"idle_trucks,omitempty"`
}

// NewRecord builds the log record of a finished run. Volume and Profit include
// both top-up passes.
func NewRecord(runID, season, objective string, out *model.Outcome, at time.Time) Record {
	r := Record{RunID: runID, Timestamp: at, Season: season, Objective: objective}
	if out == nil {
		return r
	}
	r.Status = out.Status.String()
	r.Plan = out.Plan.Entries()
	r.WholeTrip = out.WholeTrip
	r.HalfTrip = out.HalfTrip
	r.IdleTrucks = out.Remaining.Trucks
	for _, e := range r.Plan {
		r.Trips += e.Trips
		r.Volume += e.Volume
		r.Profit += e.Profit
	}
	for _, list := range [][]model.Assignment{out.WholeTrip, out.HalfTrip} {
		for _, a := range list {
			r.Volume += a.Volume
			r.Profit += a.Profit
		}
	}
	return r
}

// Involves reports whether the truck received any trip in the run.
func (r Record) Involves(truckID string) bool {
	for _, e := range r.Plan {
		if e.TruckID == truckID {
			return true
		}
	}
	for _, list := range [][]model.Assignment{r.WholeTrip, r.HalfTrip} {
		for _, a := range list {
			if a.TruckID == truckID {
				return true
			}
		}
	}
	return false
}

// Query defines filters for retrieving records.
type Query struct {
	Start   time.Time
	End     time.Time
	Status  string
	TruckID string
	// Limit keeps the most recent records; 0 returns everything.
	Limit int
}

func (q Query) matches(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.Status != "" && r.Status != q.Status {
		return false
	}
	if q.TruckID != "" && !r.Involves(q.TruckID) {
		return false
	}
	return true
}

func (q Query) trim(res []Record) []Record {
	if q.Limit > 0 && len(res) > q.Limit {
		return res[len(res)-q.Limit:]
	}
	return res
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// Open returns the store for backend. target is a file path for jsonl and
// sqlite and a DSN for postgres.
func Open(ctx context.Context, backend, target string) (Store, error) {
	switch backend {
	case "", "jsonl":
		return NewJSONLStore(target)
	case "sqlite":
		return NewSQLiteStore(target)
	case "postgres":
		return NewPostgresStore(ctx, target)
	default:
		return nil, fmt.Errorf("unknown plan log backend %s", backend)
	}
}
