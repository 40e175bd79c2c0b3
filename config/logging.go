package config

import (
	"fmt"
)

// LoggingConfig defines settings for the plan-run log store.
type LoggingConfig struct {
	// Backend selects the log store type: "jsonl", "sqlite" or "postgres".
	Backend string `json:"backend"`
	// Path is the file location of the jsonl and sqlite stores.
	Path string `json:"path"`
	// DSN is the connection string of the postgres store.
	DSN string `json:"dsn"`
}

// SetDefaults applies sane defaults.
func (c *LoggingConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "jsonl"
	}
	if c.Path == "" && c.Backend != "postgres" {
		c.Path = "planruns.log"
	}
}

// Validate checks mandatory fields.
func (c LoggingConfig) Validate() error {
	switch c.Backend {
	case "jsonl", "sqlite":
		if c.Path == "" {
			return fmt.Errorf("path is required")
		}
	case "postgres":
		if c.DSN == "" {
			return fmt.Errorf("dsn is required")
		}
	default:
		return fmt.Errorf("unknown backend %s", c.Backend)
	}
	return nil
}

// Target returns the DSN for postgres and the file path otherwise.
func (c LoggingConfig) Target() string {
	if c.Backend == "postgres" {
		return c.DSN
	}
	return c.Path
}
