package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kilianp07/haulplan/core/allocation"
)

// PlanningConfig selects the season and the solver settings of a run.
type PlanningConfig struct {
	// Season picks the turnaround column: "dry" or "rain".
	Season          string `json:"season"`
	Objective       string `json:"objective"`
	TimeLimitMS     int    `json:"time_limit_ms"`
	MaxNodes        int    `json:"max_nodes"`
	IdlePolicy      string `json:"idle_policy"`
	MaxTripsPerPair int    `json:"max_trips_per_pair"`
}

// SetDefaults applies sane defaults.
func (c *PlanningConfig) SetDefaults() {
	if c.Season == "" {
		c.Season = "dry"
	}
	c.Season = strings.ToLower(c.Season)
	a := c.Allocation()
	a.SetDefaults()
	c.Objective = string(a.Objective)
	c.TimeLimitMS = a.TimeLimitMS
	c.IdlePolicy = string(a.IdlePolicy)
	c.MaxTripsPerPair = a.MaxTripsPerPair
}

// Validate checks the season and the solver settings.
func (c PlanningConfig) Validate() error {
	if c.Season != "dry" && c.Season != "rain" {
		return fmt.Errorf("unknown season %q", c.Season)
	}
	return c.Allocation().Validate()
}

// Allocation converts the section into the allocator configuration.
func (c PlanningConfig) Allocation() allocation.Config {
	return allocation.Config{
		Objective:       allocation.Objective(strings.ToLower(c.Objective)),
		TimeLimitMS:     c.TimeLimitMS,
		MaxNodes:        c.MaxNodes,
		IdlePolicy:      allocation.IdlePolicy(strings.ToLower(c.IdlePolicy)),
		MaxTripsPerPair: c.MaxTripsPerPair,
	}
}

// InputConfig locates the weekly input tables.
type InputConfig struct {
	ForestsCSV string `json:"forests_csv"`
	TrucksCSV  string `json:"trucks_csv"`
	// DefaultDriveHours applies to trucks without a drive_hours column.
	DefaultDriveHours float64 `json:"default_drive_hours"`
	// CostPerUnit is subtracted from sale_price_per_cbm when a forest has no
	// explicit profit column.
	CostPerUnit float64 `json:"cost_per_cbm"`
}

// SetDefaults applies sane defaults.
func (c *InputConfig) SetDefaults() {
	if c.ForestsCSV == "" {
		c.ForestsCSV = "forests.csv"
	}
	if c.TrucksCSV == "" {
		c.TrucksCSV = "trucks.csv"
	}
	if c.DefaultDriveHours == 0 {
		c.DefaultDriveHours = 52.5
	}
}

// Validate checks mandatory fields.
func (c InputConfig) Validate() error {
	if c.DefaultDriveHours < 0 {
		return fmt.Errorf("default_drive_hours must not be negative")
	}
	if c.CostPerUnit < 0 {
		return fmt.Errorf("cost_per_cbm must not be negative")
	}
	return nil
}

// OutputConfig controls where exports are written.
type OutputConfig struct {
	Dir    string `json:"dir"`
	Format string `json:"format"`
	// Daily also writes the per-day schedule.
	Daily bool `json:"daily"`
	// DailyHours is the driving limit of one day in the daily schedule.
	DailyHours float64 `json:"daily_hours"`
}

// SetDefaults applies sane defaults.
func (c *OutputConfig) SetDefaults() {
	if c.Dir == "" {
		c.Dir = "out"
	}
	if c.Format == "" {
		c.Format = "csv"
	}
	c.Format = strings.ToLower(c.Format)
	if c.DailyHours == 0 {
		c.DailyHours = 10.5
	}
}

// Validate checks mandatory fields.
func (c OutputConfig) Validate() error {
	switch c.Format {
	case "csv", "json", "yaml":
	default:
		return fmt.Errorf("unknown format %s", c.Format)
	}
	if c.DailyHours <= 0 {
		return fmt.Errorf("daily_hours must be positive")
	}
	return nil
}

// ScheduleConfig drives the weekly service.
type ScheduleConfig struct {
	Interval   string `json:"interval"`
	RunOnStart bool   `json:"run_on_start"`
}

// SetDefaults applies sane defaults.
func (c *ScheduleConfig) SetDefaults() {
	if c.Interval == "" {
		c.Interval = "168h"
	}
}

// Validate checks the interval parses.
func (c ScheduleConfig) Validate() error {
	d, err := time.ParseDuration(c.Interval)
	if err != nil {
		return fmt.Errorf("interval: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	return nil
}

// Every returns the parsed interval, one week when unset or invalid.
func (c ScheduleConfig) Every() time.Duration {
	d, err := time.ParseDuration(c.Interval)
	if err != nil || d <= 0 {
		return 7 * 24 * time.Hour
	}
	return d
}
