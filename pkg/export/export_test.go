package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/kilianp07/haulplan/core/model"
	"github.com/kilianp07/haulplan/core/report"
)

func outcome(t *testing.T) *model.Outcome {
	t.Helper()
	table, err := model.NewCandidateTable([]model.Candidate{
		{TruckID: "T1", SiteID: "S1", AvailableHours: 10, RoundTripHours: 3, Stockpile: 20, LoadPerTrip: 5},
		{TruckID: "T2", SiteID: "S1", AvailableHours: 8, RoundTripHours: 3, Stockpile: 20, LoadPerTrip: 5},
	})
	require.NoError(t, err)
	return &model.Outcome{
		Plan:      model.NewPlan(table, map[model.Pair]int{{TruckID: "T1", SiteID: "S1"}: 2}),
		WholeTrip: []model.Assignment{{TruckID: "T2", SiteID: "S1", Trips: 1, Volume: 5, Hours: 3}},
		HalfTrip:  []model.Assignment{{TruckID: "T1", SiteID: "S1", Trips: 0.5, Volume: 2.5, Hours: 1.5}},
	}
}

func TestRecords(t *testing.T) {
	recs := Records(outcome(t))
	require.Len(t, recs, 3)
	assert.Equal(t, Record{Kind: model.KindPlan, TruckID: "T1", SiteID: "S1", Trips: 2, Volume: 10, Hours: 6}, recs[0])
	assert.Equal(t, model.KindWholeTrip, recs[1].Kind)
	assert.Equal(t, model.KindHalfTrip, recs[2].Kind)
	assert.Nil(t, Records(nil))
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, Records(outcome(t))))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"kind", "truck_id", "forest_id", "trips", "volume", "hours", "profit"}, rows[0])
	assert.Equal(t, []string{"half_trip", "T1", "S1", "0.5", "2.5", "1.5", "0"}, rows[3])
}

func TestWriteJSONAndYAML(t *testing.T) {
	recs := Records(outcome(t))

	var jb bytes.Buffer
	require.NoError(t, WriteJSON(&jb, recs))
	var fromJSON []Record
	require.NoError(t, json.Unmarshal(jb.Bytes(), &fromJSON))
	assert.Equal(t, recs, fromJSON)

	var yb bytes.Buffer
	require.NoError(t, WriteYAML(&yb, recs))
	assert.Contains(t, yb.String(), "kind: whole_trip")
	var fromYAML []Record
	require.NoError(t, yaml.Unmarshal(yb.Bytes(), &fromYAML))
	assert.Equal(t, recs, fromYAML)
}

func TestWriteDailyCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDailyCSV(&buf, report.DailySchedule(outcome(t), 0)))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, "day", rows[0][0])
	assert.Equal(t, []string{"1", "T1", "S1", "plan", "1", "3"}, rows[1][:6])
}

func TestWriteFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	recs := Records(outcome(t))
	for _, format := range []string{"csv", "json", "yaml"} {
		path, err := Write(dir, format, recs)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "plan."+format), path)
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
	_, err := Write(dir, "xml", recs)
	assert.Error(t, err)

	path, err := WriteDaily(dir, report.DailySchedule(outcome(t), 0))
	require.NoError(t, err)
	assert.FileExists(t, path)
}
