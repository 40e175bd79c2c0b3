package model

import "fmt"

// Truck is one vehicle of the weekly fleet.
type Truck struct {
	ID string
	// AvailableHours is the weekly drive budget once maintenance has been
	// deducted.
	AvailableHours float64
	// Category is informational only (e.g. "grumier", "semi").
	Category string
}

// Validate checks the truck can take part in a planning run.
func (t Truck) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("truck id is required")
	}
	if !finiteNonNegative(t.AvailableHours) {
		return fmt.Errorf("truck %s: available hours must be a non-negative number, got %v", t.ID, t.AvailableHours)
	}
	return nil
}

// Site is a harvest site (forest) holding a weekly stockpile.
type Site struct {
	ID              string
	StockpileVolume float64
	// RoundTripHours is the season-specific turnaround time.
	RoundTripHours float64
	// ProfitPerUnit is nil when no profit data exists for the site.
	ProfitPerUnit *float64
}

// Validate checks the site can take part in a planning run.
func (s Site) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("site id is required")
	}
	if !finiteNonNegative(s.StockpileVolume) {
		return fmt.Errorf("site %s: stockpile must be a non-negative number, got %v", s.ID, s.StockpileVolume)
	}
	return nil
}
