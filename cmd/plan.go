package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/haulplan/app"
	"github.com/kilianp07/haulplan/config"
	"github.com/kilianp07/haulplan/core/report"
)

type planFlags struct {
	season    string
	objective string
	timeLimit int
	forests   string
	trucks    string
	out       string
	format    string
	daily     bool
	publish   bool
}

var planOpts planFlags

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Plan the week once and write the exports",
	RunE:  runPlan,
}

func init() {
	f := planCmd.Flags()
	f.StringVar(&planOpts.season, "season", "", "season: dry or rain")
	f.StringVar(&planOpts.objective, "objective", "", "objective: volume or profit")
	f.IntVar(&planOpts.timeLimit, "time-limit", 0, "primary solve time limit in milliseconds")
	f.StringVar(&planOpts.forests, "forests", "", "forests CSV file")
	f.StringVar(&planOpts.trucks, "trucks", "", "trucks CSV file")
	f.StringVar(&planOpts.out, "out", "", "export directory")
	f.StringVar(&planOpts.format, "format", "", "export format: csv, json or yaml")
	f.BoolVar(&planOpts.daily, "daily", false, "also write the daily schedule")
	f.BoolVar(&planOpts.publish, "publish", false, "publish truck orders over MQTT when configured")
	rootCmd.AddCommand(planCmd)
}

// apply overrides cfg with the flags that were set and validates the result.
func (p planFlags) apply(cfg *config.Config) error {
	if p.season != "" {
		cfg.Planning.Season = p.season
	}
	if p.objective != "" {
		cfg.Planning.Objective = p.objective
	}
	if p.timeLimit > 0 {
		cfg.Planning.TimeLimitMS = p.timeLimit
	}
	if p.forests != "" {
		cfg.Input.ForestsCSV = p.forests
	}
	if p.trucks != "" {
		cfg.Input.TrucksCSV = p.trucks
	}
	if p.out != "" {
		cfg.Output.Dir = p.out
	}
	if p.format != "" {
		cfg.Output.Format = p.format
	}
	if p.daily {
		cfg.Output.Daily = true
	}
	if !p.publish {
		cfg.MQTT.Enabled = false
	}
	cfg.SetDefaults()
	return cfg.Validate()
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := planOpts.apply(cfg); err != nil {
		return err
	}
	svc, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	res, err := svc.RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("plan: %w", err)
	}
	w := cmd.OutOrStdout()
	if err := report.Render(w, res.Summary); err != nil {
		return err
	}
	for _, f := range res.Files {
		fmt.Fprintf(w, "wrote %s\n", f)
	}
	fmt.Fprintf(w, "run %s\n", res.RunID)
	return nil
}
