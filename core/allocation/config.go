package allocation

import (
	"fmt"
	"time"

	"github.com/kilianp07/haulplan/core/model"
)

// Objective selects what the primary allocator maximises.
type Objective string

const (
	ObjectiveVolume Objective = "volume"
	ObjectiveProfit Objective = "profit"
)

// IdlePolicy decides which trucks the top-up passes may use.
type IdlePolicy string

const (
	// IdleSlack offers every truck with hours left, including partially used ones.
	IdleSlack IdlePolicy = "slack"
	// IdleAbsent only offers trucks that received no trip at all.
	IdleAbsent IdlePolicy = "absent"
)

// Config defines allocation settings.
type Config struct {
	Objective       Objective  `json:"objective"`
	TimeLimitMS     int        `json:"time_limit_ms"`
	MaxNodes        int        `json:"max_nodes"`
	IdlePolicy      IdlePolicy `json:"idle_policy"`
	MaxTripsPerPair int        `json:"max_trips_per_pair"`
}

// SetDefaults applies the default solver settings.
func (c *Config) SetDefaults() {
	if c.Objective == "" {
		c.Objective = ObjectiveVolume
	}
	if c.TimeLimitMS == 0 {
		c.TimeLimitMS = 5000
	}
	if c.IdlePolicy == "" {
		c.IdlePolicy = IdleSlack
	}
	if c.MaxTripsPerPair == 0 {
		c.MaxTripsPerPair = model.MaxTripsPerPair
	}
}

// Validate checks the settings.
func (c Config) Validate() error {
	switch c.Objective {
	case ObjectiveVolume, ObjectiveProfit:
	default:
		return fmt.Errorf("unknown objective %q", c.Objective)
	}
	switch c.IdlePolicy {
	case IdleSlack, IdleAbsent:
	default:
		return fmt.Errorf("unknown idle policy %q", c.IdlePolicy)
	}
	if c.TimeLimitMS < 0 {
		return fmt.Errorf("time_limit_ms must be positive")
	}
	if c.MaxNodes < 0 {
		return fmt.Errorf("max_nodes must not be negative")
	}
	if c.MaxTripsPerPair < 0 {
		return fmt.Errorf("max_trips_per_pair must not be negative")
	}
	return nil
}

// TimeLimit returns the solve time limit.
func (c Config) TimeLimit() time.Duration {
	return time.Duration(c.TimeLimitMS) * time.Millisecond
}
