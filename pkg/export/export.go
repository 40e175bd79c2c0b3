package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/haulplan/core/model"
	"github.com/kilianp07/haulplan/core/report"
)

// Record is one row of the combined weekly plan.
type Record struct {
	Kind    string  `json:"kind" yaml:"kind"`
	TruckID string  `json:"truck_id" yaml:"truck_id"`
	SiteID  string  `json:"site_id" yaml:"site_id"`
	Trips   float64 `json:"trips" yaml:"trips"`
	Volume  float64 `json:"volume" yaml:"volume"`
	Hours   float64 `json:"hours" yaml:"hours"`
	Profit  float64 `json:"profit" yaml:"profit"`
}

// Records flattens the plan and both top-up passes, in that order.
func Records(out *model.Outcome) []Record {
	if out == nil {
		return nil
	}
	var recs []Record
	for _, e := range out.Plan.Entries() {
		recs = append(recs, Record{Kind: model.KindPlan, TruckID: e.TruckID, SiteID: e.SiteID,
			Trips: float64(e.Trips), Volume: e.Volume, Hours: e.Hours, Profit: e.Profit})
	}
	for _, a := range out.WholeTrip {
		recs = append(recs, fromAssignment(model.KindWholeTrip, a))
	}
	for _, a := range out.HalfTrip {
		recs = append(recs, fromAssignment(model.KindHalfTrip, a))
	}
	return recs
}

func fromAssignment(kind string, a model.Assignment) Record {
	return Record{Kind: kind, TruckID: a.TruckID, SiteID: a.SiteID, Trips: a.Trips, Volume: a.Volume, Hours: a.Hours, Profit: a.Profit}
}

// WriteJSON writes the records to w in JSON format.
func WriteJSON(w io.Writer, recs []Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(recs)
}

// WriteYAML writes the records to w in YAML format.
func WriteYAML(w io.Writer, recs []Record) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(recs); err != nil {
		return err
	}
	return enc.Close()
}

func ftoa(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// WriteCSV writes the records to w in CSV format.
func WriteCSV(w io.Writer, recs []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"kind", "truck_id", "forest_id", "trips", "volume", "hours", "profit"}); err != nil {
		return err
	}
	for _, r := range recs {
		rec := []string{r.Kind, r.TruckID, r.SiteID, ftoa(r.Trips), ftoa(r.Volume), ftoa(r.Hours), ftoa(r.Profit)}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteDailyCSV writes the day-by-day schedule.
func WriteDailyCSV(w io.Writer, trips []report.DailyTrip) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"day", "truck_id", "forest_id", "kind", "trip_number", "total_trips_for_truck", "hours", "volume", "profit"}); err != nil {
		return err
	}
	for _, d := range trips {
		rec := []string{strconv.Itoa(d.Day), d.TruckID, d.SiteID, d.Kind, strconv.Itoa(d.Number), strconv.Itoa(d.Of),
			ftoa(d.Hours), ftoa(d.Volume), ftoa(d.Profit)}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Write stores the records in dir as plan.<format> and returns the file path.
func Write(dir, format string, recs []Record) (string, error) {
	var fn func(io.Writer, []Record) error
	switch format {
	case "csv":
		fn = WriteCSV
	case "json":
		fn = WriteJSON
	case "yaml":
		fn = WriteYAML
	default:
		return "", fmt.Errorf("unsupported export format %q", format)
	}
	path := filepath.Join(dir, "plan."+format)
	return path, writeFile(path, func(w io.Writer) error { return fn(w, recs) })
}

// WriteDaily stores the daily schedule in dir as daily_plan.csv.
func WriteDaily(dir string, trips []report.DailyTrip) (string, error) {
	path := filepath.Join(dir, "daily_plan.csv")
	return path, writeFile(path, func(w io.Writer) error { return WriteDailyCSV(w, trips) })
}

func writeFile(path string, fn func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
