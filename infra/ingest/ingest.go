// Package ingest reads the weekly forest and truck CSV files and turns them
// into the candidate table consumed by the allocators.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/kilianp07/haulplan/core/model"
)

// DefaultDriveHours is the weekly drive budget used when trucks.csv has no
// drive_hours column (5 days of 10.5 hours).
const DefaultDriveHours = 52.5

var (
	// ErrUnknownSeason is returned for a season other than dry or rain.
	ErrUnknownSeason = errors.New("unknown season")
	// ErrMissingColumn is returned when a required CSV column is absent.
	ErrMissingColumn = errors.New("missing column")
)

// Options tunes how raw rows are interpreted.
type Options struct {
	Season string
	// DriveHours replaces DefaultDriveHours when positive.
	DriveHours float64
	// CostPerUnit is subtracted from sale_price_per_cbm when a forest has no
	// explicit profit_per_cbm_euros.
	CostPerUnit float64
}

// Builder loads forests and trucks and joins them.
type Builder struct {
	opts Options
}

// NewBuilder returns a builder for the given options.
func NewBuilder(opts Options) *Builder {
	if opts.DriveHours <= 0 {
		opts.DriveHours = DefaultDriveHours
	}
	opts.Season = strings.ToLower(strings.TrimSpace(opts.Season))
	return &Builder{opts: opts}
}

// BuildFiles reads both CSV files and returns the candidate table.
func (b *Builder) BuildFiles(forestsPath, trucksPath string) (*model.CandidateTable, error) {
	ff, err := os.Open(forestsPath)
	if err != nil {
		return nil, fmt.Errorf("open forests: %w", err)
	}
	defer ff.Close()
	tf, err := os.Open(trucksPath)
	if err != nil {
		return nil, fmt.Errorf("open trucks: %w", err)
	}
	defer tf.Close()
	return b.Build(ff, tf)
}

// Build reads forests and trucks from the readers and cross joins them. Forests
// without stockpile are dropped.
func (b *Builder) Build(forests, trucks io.Reader) (*model.CandidateTable, error) {
	sites, err := b.ReadSites(forests)
	if err != nil {
		return nil, err
	}
	fleet, loads, err := b.ReadTrucks(trucks)
	if err != nil {
		return nil, err
	}
	return model.CrossJoin(fleet, sites, func(t model.Truck, _ model.Site) float64 { return loads[t.ID] })
}

// ReadSites parses forests.csv.
func (b *Builder) ReadSites(r io.Reader) ([]model.Site, error) {
	tripCol, err := seasonColumn(b.opts.Season)
	if err != nil {
		return nil, err
	}
	rows, err := readTable(r)
	if err != nil {
		return nil, fmt.Errorf("forests: %w", err)
	}
	if err := rows.require("forest_id", "volume", tripCol); err != nil {
		return nil, fmt.Errorf("forests: %w", err)
	}

	var sites []model.Site
	for i, rec := range rows.records {
		line := i + 2
		vol, err := rows.float(rec, "volume")
		if err != nil {
			return nil, fmt.Errorf("forests line %d: %w", line, err)
		}
		if vol <= 0 {
			continue
		}
		rt, err := rows.float(rec, tripCol)
		if err != nil {
			return nil, fmt.Errorf("forests line %d: %w", line, err)
		}
		s := model.Site{ID: rows.get(rec, "forest_id"), StockpileVolume: vol, RoundTripHours: rt}
		if s.ProfitPerUnit, err = b.profit(rows, rec); err != nil {
			return nil, fmt.Errorf("forests line %d: %w", line, err)
		}
		sites = append(sites, s)
	}
	return sites, nil
}

func (b *Builder) profit(rows *table, rec []string) (*float64, error) {
	if rows.has("profit_per_cbm_euros") && rows.get(rec, "profit_per_cbm_euros") != "" {
		p, err := rows.float(rec, "profit_per_cbm_euros")
		if err != nil {
			return nil, err
		}
		return &p, nil
	}
	if rows.has("sale_price_per_cbm") && rows.get(rec, "sale_price_per_cbm") != "" {
		price, err := rows.float(rec, "sale_price_per_cbm")
		if err != nil {
			return nil, err
		}
		p := price - b.opts.CostPerUnit
		return &p, nil
	}
	return nil, nil
}

// ReadTrucks parses trucks.csv and returns the fleet with each truck's load
// per trip.
func (b *Builder) ReadTrucks(r io.Reader) ([]model.Truck, map[string]float64, error) {
	rows, err := readTable(r)
	if err != nil {
		return nil, nil, fmt.Errorf("trucks: %w", err)
	}
	if err := rows.require("truck_id", "cbm_per_truck"); err != nil {
		return nil, nil, fmt.Errorf("trucks: %w", err)
	}

	var fleet []model.Truck
	loads := make(map[string]float64)
	for i, rec := range rows.records {
		line := i + 2
		load, err := rows.float(rec, "cbm_per_truck")
		if err != nil {
			return nil, nil, fmt.Errorf("trucks line %d: %w", line, err)
		}
		drive := b.opts.DriveHours
		if rows.has("drive_hours") && rows.get(rec, "drive_hours") != "" {
			if drive, err = rows.float(rec, "drive_hours"); err != nil {
				return nil, nil, fmt.Errorf("trucks line %d: %w", line, err)
			}
		}
		var maint float64
		if rows.has("maintenance_hours") && rows.get(rec, "maintenance_hours") != "" {
			if maint, err = rows.float(rec, "maintenance_hours"); err != nil {
				return nil, nil, fmt.Errorf("trucks line %d: %w", line, err)
			}
		}
		hours := drive - maint
		if hours < 0 {
			hours = 0
		}
		t := model.Truck{ID: rows.get(rec, "truck_id"), AvailableHours: hours, Category: rows.get(rec, "type")}
		if _, dup := loads[t.ID]; dup {
			return nil, nil, fmt.Errorf("trucks line %d: %w: %s", line, model.ErrDuplicateCandidate, t.ID)
		}
		loads[t.ID] = load
		fleet = append(fleet, t)
	}
	return fleet, loads, nil
}

func seasonColumn(season string) (string, error) {
	switch season {
	case "dry":
		return "turn_around_time_dry", nil
	case "rain":
		return "turn_around_time_rain", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSeason, season)
	}
}

// table is a header-indexed CSV body.
type table struct {
	cols    map[string]int
	records [][]string
}

func readTable(r io.Reader) (*table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	all, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("empty file")
	}
	t := &table{cols: make(map[string]int)}
	for i, h := range all[0] {
		t.cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	t.records = all[1:]
	return t, nil
}

func (t *table) has(col string) bool {
	_, ok := t.cols[col]
	return ok
}

func (t *table) require(cols ...string) error {
	for _, c := range cols {
		if !t.has(c) {
			return fmt.Errorf("%w %q", ErrMissingColumn, c)
		}
	}
	return nil
}

func (t *table) get(rec []string, col string) string {
	i, ok := t.cols[col]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func (t *table) float(rec []string, col string) (float64, error) {
	v := t.get(rec, col)
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("column %s: invalid number %q", col, v)
	}
	return f, nil
}
