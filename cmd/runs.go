package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/haulplan/core/planlog"
)

var runsQuery struct {
	since  time.Duration
	status string
	truck  string
	limit  int
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List past planning runs from the plan log",
	RunE:  listRuns,
}

func init() {
	f := runsCmd.Flags()
	f.DurationVar(&runsQuery.since, "since", 0, "only runs newer than this, e.g. 720h")
	f.StringVar(&runsQuery.status, "status", "", "only runs with this status (optimal or degraded)")
	f.StringVar(&runsQuery.truck, "truck", "", "only runs that gave this truck work")
	f.IntVar(&runsQuery.limit, "limit", 10, "maximum number of runs, 0 for all")
	rootCmd.AddCommand(runsCmd)
}

func listRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := planlog.Open(ctx, cfg.Logging.Backend, cfg.Logging.Target())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	q := planlog.Query{Status: runsQuery.status, TruckID: runsQuery.truck, Limit: runsQuery.limit}
	if runsQuery.since > 0 {
		q.Start = time.Now().Add(-runsQuery.since)
	}
	recs, err := store.Query(ctx, q)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	for _, r := range recs {
		fmt.Fprintf(w, "%s  %s  %-8s %-4s %-6s trips=%d volume=%.2f profit=%.2f\n",
			r.Timestamp.Format(time.RFC3339), r.RunID, r.Status, r.Season, r.Objective, r.Trips, r.Volume, r.Profit)
	}
	if len(recs) == 0 {
		fmt.Fprintln(w, "no runs")
	}
	return nil
}
