package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/haulplan/config"
)

func writeInputs(t *testing.T) (dir string) {
	t.Helper()
	dir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "forests.csv"),
		[]byte("forest_id,volume,turn_around_time_dry,turn_around_time_rain\nF1,20,3,5\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "trucks.csv"),
		[]byte("truck_id,cbm_per_truck,drive_hours\nT1,5,10\n"), 0o644))
	cfg := "logging:\n  backend: jsonl\n  path: " + filepath.Join(dir, "runs.log") + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(cfg), 0o644))
	return dir
}

func TestPlanFlagsApply(t *testing.T) {
	cfg := config.Default()
	cfg.MQTT.Enabled = true
	cfg.MQTT.Broker = "tcp://localhost:1883"
	p := planFlags{season: "RAIN", objective: "profit", timeLimit: 250, format: "yaml", daily: true}
	require.NoError(t, p.apply(cfg))
	assert.Equal(t, "rain", cfg.Planning.Season)
	assert.Equal(t, "profit", cfg.Planning.Objective)
	assert.Equal(t, 250, cfg.Planning.TimeLimitMS)
	assert.Equal(t, "yaml", cfg.Output.Format)
	assert.True(t, cfg.Output.Daily)
	assert.False(t, cfg.MQTT.Enabled)

	assert.Error(t, planFlags{season: "winter"}.apply(config.Default()))
}

func TestPlanAndRunsCommands(t *testing.T) {
	dir := writeInputs(t)
	out := filepath.Join(dir, "out")

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"plan", "-c", filepath.Join(dir, "config.yaml"),
		"--forests", filepath.Join(dir, "forests.csv"), "--trucks", filepath.Join(dir, "trucks.csv"),
		"--out", out, "--daily"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "Totals")
	assert.FileExists(t, filepath.Join(out, "plan.csv"))
	assert.FileExists(t, filepath.Join(out, "daily_plan.csv"))

	buf.Reset()
	rootCmd.SetArgs([]string{"runs", "-c", filepath.Join(dir, "config.yaml")})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "trips=3")
}

func TestPlanMissingInput(t *testing.T) {
	dir := writeInputs(t)
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"plan", "-c", filepath.Join(dir, "config.yaml"),
		"--forests", filepath.Join(dir, "nope.csv"), "--trucks", filepath.Join(dir, "trucks.csv"),
		"--out", filepath.Join(dir, "out")})
	assert.Error(t, rootCmd.Execute())
}
