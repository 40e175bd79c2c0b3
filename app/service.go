package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/haulplan/config"
	"github.com/kilianp07/haulplan/core/allocation"
	coremetrics "github.com/kilianp07/haulplan/core/metrics"
	"github.com/kilianp07/haulplan/core/model"
	coremqtt "github.com/kilianp07/haulplan/core/mqtt"
	"github.com/kilianp07/haulplan/core/planlog"
	"github.com/kilianp07/haulplan/core/report"
	"github.com/kilianp07/haulplan/infra/ingest"
	"github.com/kilianp07/haulplan/infra/logger"
	"github.com/kilianp07/haulplan/infra/metrics"
	"github.com/kilianp07/haulplan/infra/mqtt"
	"github.com/kilianp07/haulplan/pkg/export"
)

// ErrInputMissing is returned when a weekly input file does not exist yet.
var ErrInputMissing = errors.New("input file missing")

// Deps are the outer collaborators of the service. Nil fields get defaults:
// a NopSink and no publisher. Store is required.
type Deps struct {
	Store     planlog.Store
	Sink      coremetrics.MetricsSink
	Publisher coremqtt.Publisher
	Logger    logger.Logger
}

// Service runs the weekly planning pipeline.
type Service struct {
	cfg     *config.Config
	planner *allocation.Planner
	builder *ingest.Builder
	store   planlog.Store
	sink    coremetrics.MetricsSink
	pub     coremqtt.Publisher
	log     logger.Logger
	now     func() time.Time
	newID   func() string
}

// RunResult is everything a single run produced.
type RunResult struct {
	RunID   string
	Table   *model.CandidateTable
	Outcome *model.Outcome
	Summary report.Summary
	Files   []string
	Orders  []coremqtt.OrderResult
}

// New creates a Service from the configuration, opening the plan log, the
// metrics sinks and, when enabled, the MQTT publisher.
func New(ctx context.Context, cfg *config.Config) (svc *Service, err error) {
	store, err := planlog.Open(ctx, cfg.Logging.Backend, cfg.Logging.Target())
	if err != nil {
		return nil, fmt.Errorf("plan log: %w", err)
	}
	deps := Deps{Store: store}
	defer func() {
		if err != nil {
			releaseDeps(deps)
		}
	}()
	deps.Sink, err = coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	if cfg.MQTT.Enabled {
		client, cerr := mqtt.NewPahoClient(cfg.MQTT)
		if cerr != nil {
			return nil, fmt.Errorf("mqtt client: %w", cerr)
		}
		deps.Publisher = client
	}
	return NewWithDeps(cfg, deps)
}

// releaseDeps closes whatever collaborators were opened.
func releaseDeps(deps Deps) {
	if deps.Publisher != nil {
		deps.Publisher.Disconnect()
	}
	if c, ok := deps.Sink.(interface{ Close() }); ok {
		c.Close()
	}
	if deps.Store != nil {
		_ = deps.Store.Close()
	}
}

// NewWithDeps creates a Service with explicit collaborators.
func NewWithDeps(cfg *config.Config, deps Deps) (*Service, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("plan log store is required")
	}
	if deps.Sink == nil {
		deps.Sink = coremetrics.NopSink{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.New("service")
	}
	planner, err := allocation.NewPlanner(cfg.Planning.Allocation(), logger.New("allocation"))
	if err != nil {
		return nil, err
	}
	return &Service{
		cfg:     cfg,
		planner: planner,
		builder: ingest.NewBuilder(ingest.Options{
			Season:      cfg.Planning.Season,
			DriveHours:  cfg.Input.DefaultDriveHours,
			CostPerUnit: cfg.Input.CostPerUnit,
		}),
		store: deps.Store,
		sink:  deps.Sink,
		pub:   deps.Publisher,
		log:   deps.Logger,
		now:   time.Now,
		newID: uuid.NewString,
	}, nil
}

// Run executes the pipeline on every interval tick, and at start when
// configured, until ctx is cancelled. Missing inputs only skip the run.
func (s *Service) Run(ctx context.Context) error {
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, addr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	if s.cfg.Schedule.RunOnStart {
		s.tick(ctx)
	}
	ticker := time.NewTicker(s.cfg.Schedule.Every())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Service) tick(ctx context.Context) {
	res, err := s.RunOnce(ctx)
	switch {
	case errors.Is(err, ErrInputMissing):
		s.log.Warnf("weekly plan skipped, upload this week's files: %v", err)
	case err != nil:
		s.log.Errorf("weekly plan failed: %v", err)
	default:
		s.log.Infof("weekly plan %s done: %s", res.RunID, res.Outcome.Status)
	}
}

// RunOnce loads the inputs, plans the week and hands the result to every
// collaborator. Failures of the collaborators are logged and do not fail the
// run; only missing or invalid inputs and fatal allocation errors do.
func (s *Service) RunOnce(ctx context.Context) (*RunResult, error) {
	for _, p := range []string{s.cfg.Input.ForestsCSV, s.cfg.Input.TrucksCSV} {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrInputMissing, p)
		}
	}
	table, err := s.builder.BuildFiles(s.cfg.Input.ForestsCSV, s.cfg.Input.TrucksCSV)
	if err != nil {
		return nil, fmt.Errorf("build input: %w", err)
	}

	res := &RunResult{RunID: s.newID(), Table: table}
	out, err := s.planner.Run(ctx, table)
	if err != nil {
		return nil, err
	}
	res.Outcome = out
	res.Summary = report.Summarize(table, out)
	if out.Degraded() {
		s.log.Warnf("run %s: plan is feasible but not proven optimal", res.RunID)
	}
	at := s.now()

	res.Files = s.export(out)
	s.record(ctx, res.RunID, out, at)
	s.observe(res, at)
	if s.pub != nil {
		res.Orders = s.publish(ctx, res.RunID, out)
	}
	return res, nil
}

func (s *Service) export(out *model.Outcome) []string {
	var files []string
	path, err := export.Write(s.cfg.Output.Dir, s.cfg.Output.Format, export.Records(out))
	if err != nil {
		s.log.Errorf("export plan: %v", err)
	} else {
		files = append(files, path)
	}
	if s.cfg.Output.Daily {
		path, err := export.WriteDaily(s.cfg.Output.Dir, report.DailySchedule(out, s.cfg.Output.DailyHours))
		if err != nil {
			s.log.Errorf("export daily plan: %v", err)
		} else {
			files = append(files, path)
		}
	}
	return files
}

func (s *Service) record(ctx context.Context, runID string, out *model.Outcome, at time.Time) {
	rec := planlog.NewRecord(runID, s.cfg.Planning.Season, s.cfg.Planning.Objective, out, at)
	if err := s.store.Append(ctx, rec); err != nil {
		s.log.Errorf("plan log: %v", err)
	}
}

func (s *Service) observe(res *RunResult, at time.Time) {
	ev := coremetrics.NewPlanRunEvent(res.RunID, s.cfg.Planning.Season, s.cfg.Planning.Objective, res.Outcome, at)
	if err := s.sink.RecordPlanRun(ev); err != nil {
		s.log.Errorf("metrics: %v", err)
	}
	rec, ok := s.sink.(coremetrics.SiteVolumeRecorder)
	if !ok {
		return
	}
	vols := make([]coremetrics.SiteVolume, 0, len(res.Summary.Sites))
	for _, r := range res.Summary.Sites {
		vols = append(vols, coremetrics.SiteVolume{
			RunID:     res.RunID,
			SiteID:    r.SiteID,
			Planned:   r.Planned,
			TopUp:     r.WholeTrip + r.HalfTrip,
			Remaining: r.Remaining,
			Time:      at,
		})
	}
	if err := rec.RecordSiteVolumes(vols); err != nil {
		s.log.Errorf("metrics: %v", err)
	}
}

func (s *Service) publish(ctx context.Context, runID string, out *model.Outcome) []coremqtt.OrderResult {
	results, err := s.pub.PublishPlan(ctx, runID, out)
	if err != nil {
		s.log.Errorf("publish plan: %v", err)
	}
	rec, _ := s.sink.(coremetrics.OrderPublishRecorder)
	for _, r := range results {
		if r.Err != nil {
			s.log.Errorf("order for truck %s not delivered: %v", r.TruckID, r.Err)
		}
		if rec == nil {
			continue
		}
		ev := coremetrics.OrderPublishEvent{RunID: runID, TruckID: r.TruckID, Published: r.Err == nil, Time: s.now()}
		if r.Err != nil {
			ev.Error = r.Err.Error()
		}
		if err := rec.RecordOrderPublish(ev); err != nil {
			s.log.Errorf("metrics: %v", err)
		}
	}
	return results
}

// Close releases the plan log and the MQTT connection.
func (s *Service) Close() error {
	if s.pub != nil {
		s.pub.Disconnect()
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	return s.store.Close()
}
