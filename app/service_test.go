package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/haulplan/config"
	coremetrics "github.com/kilianp07/haulplan/core/metrics"
	coremqtt "github.com/kilianp07/haulplan/core/mqtt"
	"github.com/kilianp07/haulplan/core/planlog"
	"github.com/kilianp07/haulplan/infra/logger"
	"github.com/kilianp07/haulplan/infra/mqtt"
)

const forests = `forest_id,volume,turn_around_time_dry,turn_around_time_rain,profit_per_cbm_euros
F1,20,3,5,4
F2,12,4,6,2
F3,0,2,2,1
`

const trucks = `truck_id,type,cbm_per_truck,drive_hours,maintenance_hours
T1,semi,5,10,0
T2,semi,6,8,0
T3,grumier,4,2,0
`

type recordingSink struct {
	mu     sync.Mutex
	runs   []coremetrics.PlanRunEvent
	sites  []coremetrics.SiteVolume
	orders []coremetrics.OrderPublishEvent
}

func (r *recordingSink) RecordPlanRun(ev coremetrics.PlanRunEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, ev)
	return nil
}

func (r *recordingSink) RecordSiteVolumes(v []coremetrics.SiteVolume) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sites = append(r.sites, v...)
	return nil
}

func (r *recordingSink) RecordOrderPublish(ev coremetrics.OrderPublishEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = append(r.orders, ev)
	return nil
}

func testConfig(t *testing.T, withInputs bool) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Input.ForestsCSV = filepath.Join(dir, "forests.csv")
	cfg.Input.TrucksCSV = filepath.Join(dir, "trucks.csv")
	cfg.Output.Dir = filepath.Join(dir, "out")
	cfg.Output.Daily = true
	cfg.Logging.Path = filepath.Join(dir, "planruns.log")
	if withInputs {
		require.NoError(t, os.WriteFile(cfg.Input.ForestsCSV, []byte(forests), 0o644))
		require.NoError(t, os.WriteFile(cfg.Input.TrucksCSV, []byte(trucks), 0o644))
	}
	return cfg
}

func newTestService(t *testing.T, cfg *config.Config, pub coremqtt.Publisher) (*Service, *recordingSink, planlog.Store) {
	t.Helper()
	store, err := planlog.NewJSONLStore(cfg.Logging.Path)
	require.NoError(t, err)
	sink := &recordingSink{}
	svc, err := NewWithDeps(cfg, Deps{Store: store, Sink: sink, Publisher: pub, Logger: logger.NopLogger{}})
	require.NoError(t, err)
	svc.newID = func() string { return "run-1" }
	svc.now = func() time.Time { return time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { _ = svc.Close() })
	return svc, sink, store
}

func TestRunOnce(t *testing.T) {
	cfg := testConfig(t, true)
	pub := mqtt.NewMockPublisher()
	pub.FailIDs["T2"] = true
	svc, sink, store := newTestService(t, cfg, pub)

	res, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "run-1", res.RunID)
	assert.Equal(t, []string{"F1", "F2"}, res.Table.SiteIDs())
	require.NotNil(t, res.Outcome)
	assert.Positive(t, res.Outcome.Plan.TotalTrips())

	require.Len(t, res.Files, 2)
	assert.FileExists(t, filepath.Join(cfg.Output.Dir, "plan.csv"))
	assert.FileExists(t, filepath.Join(cfg.Output.Dir, "daily_plan.csv"))

	recs, err := store.Query(context.Background(), planlog.Query{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "run-1", recs[0].RunID)
	assert.Equal(t, "dry", recs[0].Season)
	assert.Equal(t, res.Outcome.Plan.TotalTrips(), recs[0].Trips)

	require.Len(t, sink.runs, 1)
	assert.Equal(t, "run-1", sink.runs[0].RunID)
	assert.Len(t, sink.sites, 2)

	assert.Equal(t, []string{"run-1"}, pub.Runs)
	require.Len(t, sink.orders, len(res.Orders))
	for _, ev := range sink.orders {
		assert.Equal(t, ev.TruckID != "T2", ev.Published)
	}
}

func TestRunOnceWithoutPublisher(t *testing.T) {
	cfg := testConfig(t, true)
	cfg.Output.Daily = false
	cfg.Output.Format = "json"
	svc, sink, _ := newTestService(t, cfg, nil)

	res, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(cfg.Output.Dir, "plan.json")}, res.Files)
	assert.Empty(t, res.Orders)
	assert.Empty(t, sink.orders)
}

func TestRunOnceMissingInput(t *testing.T) {
	cfg := testConfig(t, false)
	svc, sink, _ := newTestService(t, cfg, nil)
	_, err := svc.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrInputMissing)
	assert.Empty(t, sink.runs)
}

func TestRunOnceBadInput(t *testing.T) {
	cfg := testConfig(t, true)
	require.NoError(t, os.WriteFile(cfg.Input.TrucksCSV, []byte("truck_id,type\nT1,semi\n"), 0o644))
	svc, _, _ := newTestService(t, cfg, nil)
	_, err := svc.RunOnce(context.Background())
	assert.ErrorContains(t, err, "build input")
}

func TestRunOnStart(t *testing.T) {
	cfg := testConfig(t, true)
	cfg.Schedule.RunOnStart = true
	svc, _, store := newTestService(t, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, svc.Run(ctx))

	recs, err := store.Query(context.Background(), planlog.Query{})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestRunSkipsMissingInput(t *testing.T) {
	cfg := testConfig(t, false)
	cfg.Schedule.RunOnStart = true
	svc, sink, _ := newTestService(t, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, svc.Run(ctx))
	assert.Empty(t, sink.runs)
}

func TestNew(t *testing.T) {
	cfg := testConfig(t, true)
	cfg.Logging.Backend = "sqlite"
	cfg.Logging.Path = filepath.Join(t.TempDir(), "runs.db")
	svc, err := New(context.Background(), cfg)
	require.NoError(t, err)
	res, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, res.RunID)
	require.NoError(t, svc.Close())

	_, err = NewWithDeps(cfg, Deps{})
	assert.Error(t, err)
}

type mockStore struct{ mock.Mock }

func (m *mockStore) Append(ctx context.Context, rec planlog.Record) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *mockStore) Query(ctx context.Context, q planlog.Query) ([]planlog.Record, error) {
	args := m.Called(ctx, q)
	recs, _ := args.Get(0).([]planlog.Record)
	return recs, args.Error(1)
}

func (m *mockStore) Close() error { return m.Called().Error(0) }

func TestRunOnceStoreFailureIsNotFatal(t *testing.T) {
	cfg := testConfig(t, true)
	store := &mockStore{}
	store.On("Append", mock.Anything, mock.MatchedBy(func(r planlog.Record) bool { return r.RunID == "run-x" })).
		Return(errors.New("disk full")).Once()
	store.On("Close").Return(nil).Once()

	sink := &recordingSink{}
	svc, err := NewWithDeps(cfg, Deps{Store: store, Sink: sink, Logger: logger.NopLogger{}})
	require.NoError(t, err)
	svc.newID = func() string { return "run-x" }

	res, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "run-x", res.RunID)
	assert.Len(t, sink.runs, 1)
	require.NoError(t, svc.Close())
	store.AssertExpectations(t)
}

type closingSink struct {
	recordingSink
	closed bool
}

func (c *closingSink) Close() { c.closed = true }

type countingPublisher struct {
	*mqtt.MockPublisher
	disconnects int
}

func (c *countingPublisher) Disconnect() { c.disconnects++ }

func TestReleaseDeps(t *testing.T) {
	store := &mockStore{}
	store.On("Close").Return(nil).Once()
	sink := &closingSink{}
	pub := &countingPublisher{MockPublisher: mqtt.NewMockPublisher()}

	releaseDeps(Deps{Store: store, Sink: sink, Publisher: pub})
	assert.True(t, sink.closed)
	assert.Equal(t, 1, pub.disconnects)
	store.AssertExpectations(t)

	assert.NotPanics(t, func() { releaseDeps(Deps{}) })
}

func TestNewFailsOnBadMQTTConfig(t *testing.T) {
	cfg := testConfig(t, true)
	cfg.Logging.Backend = "sqlite"
	cfg.Logging.Path = filepath.Join(t.TempDir(), "runs.db")
	cfg.MQTT.Enabled = true
	cfg.MQTT.UseTLS = true

	svc, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Nil(t, svc)
	assert.Contains(t, err.Error(), "mqtt client")
}
