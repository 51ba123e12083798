package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/reserve-cli/internal/conservation"
	"github.com/sells-group/reserve-cli/internal/model"
	"github.com/sells-group/reserve-cli/internal/solution"
)

func testReport(t *testing.T) *solution.Report {
	t.Helper()
	cons, err := conservation.New(
		[]model.PlanningUnit{
			{ID: 1, Cost: 1, X: 10, Y: 20},
			{ID: 2, Cost: 2, X: 11.5, Y: 21},
			{ID: 3, Cost: 4, X: 12, Y: 22},
		},
		nil, nil, nil,
	)
	require.NoError(t, err)
	return solution.NewReport(cons, &model.Solution{
		Selected: map[int64]bool{1: true, 3: true},
		Status:   "optimal",
	})
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestWriteSolution(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	require.NoError(t, WriteSolution(dir, testReport(t)))

	assert.Equal(t, [][]string{
		{"pu", "x", "xloc", "yloc"},
		{"1", "1", "10", "20"},
		{"2", "0", "11.5", "21"},
		{"3", "1", "12", "22"},
	}, readCSV(t, filepath.Join(dir, SolutionFile)))
}

func TestWriteTargetsAndMetrics(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	require.NoError(t, WriteTargets(dir, []solution.FeatureSummary{
		{FeatureID: 7, Total: 8, Target: 4, Reached: 4.5},
	}))
	require.NoError(t, WriteMetrics(dir, []solution.MetricSummary{{
		Dataset: "0", Metric: model.MetricInDegree,
		Total: 6, Min: 1, Max: 2, MinThreshold: 1, MaxThreshold: 2,
		Target: 3, Achieved: 4, AvgPerUnit: 2,
	}}))

	assert.Equal(t, [][]string{
		{"features", "total", "target", "reached"},
		{"7", "8", "4", "4.5"},
	}, readCSV(t, filepath.Join(dir, TargetsFile)))

	metrics := readCSV(t, filepath.Join(dir, MetricsFile))
	require.Len(t, metrics, 2)
	assert.Equal(t, "con_data", metrics[0][0])
	assert.Equal(t, "avg_per_pu", metrics[0][9])
	assert.Equal(t, []string{"0", "indegree", "6", "1", "2", "1", "2", "3", "4", "2"}, metrics[1])
}

func TestWriteRunStats(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	stats := []solution.Stat{{Name: "obj_value", Value: 5}, {Name: "gap_to_opt", Value: 0}}
	args := map[string]string{"strategy": "rsp", "gap": "0.01"}

	require.NoError(t, WriteRunStats(dir, stats, args))
	require.NoError(t, WriteRunStatsYAML(dir, stats, args))

	assert.Equal(t, [][]string{
		{"name", "value"},
		{"obj_value", "5"},
		{"gap_to_opt", "0"},
		{"gap", "0.01"},
		{"strategy", "rsp"},
	}, readCSV(t, filepath.Join(dir, RunStatsFile)))

	data, err := os.ReadFile(filepath.Join(dir, RunStatsYAML))
	require.NoError(t, err)
	var doc struct {
		Stats []solution.Stat   `yaml:"stats"`
		Args  map[string]string `yaml:"args"`
	}
	require.NoError(t, yaml.Unmarshal(data, &doc))
	assert.Equal(t, stats, doc.Stats)
	assert.Equal(t, args, doc.Args)
}

func TestWriteGeoJSON(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	require.NoError(t, WriteGeoJSON(dir, testReport(t)))

	data, err := os.ReadFile(filepath.Join(dir, GeoJSONFile))
	require.NoError(t, err)
	var doc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Type        string    `json:"type"`
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]float64 `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "FeatureCollection", doc.Type)
	require.Len(t, doc.Features, 3)
	assert.Equal(t, "Point", doc.Features[1].Geometry.Type)
	assert.Equal(t, []float64{11.5, 21}, doc.Features[1].Geometry.Coordinates)
	assert.Equal(t, map[string]float64{"pu": 2, "x": 0}, doc.Features[1].Properties)
}

func TestSelectionEWKB(t *testing.T) {
	t.Parallel()

	data, err := SelectionEWKB(testReport(t))
	require.NoError(t, err)

	g, err := ewkb.Unmarshal(data)
	require.NoError(t, err)
	mp, ok := g.(*geom.MultiPoint)
	require.True(t, ok)
	assert.Equal(t, SRID, mp.SRID())
	assert.Equal(t, 2, mp.NumPoints())
	assert.Equal(t, []float64{10, 20, 12, 22}, mp.FlatCoords())
}

func TestSelectionWKT(t *testing.T) {
	t.Parallel()

	data, err := SelectionEWKB(testReport(t))
	require.NoError(t, err)

	s, err := SelectionWKT(data)
	require.NoError(t, err)
	assert.Contains(t, s, "MULTIPOINT")
	assert.Contains(t, s, "10 20")
	assert.Contains(t, s, "12 22")

	_, err = SelectionWKT([]byte{0xff})
	assert.Error(t, err)
}

func TestWriteAll(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "out")

	err := WriteAll(dir, Outputs{
		Report: testReport(t),
		Stats:  []solution.Stat{{Name: "obj_value", Value: 5}},
		Args:   map[string]string{"strategy": "rsp"},
	}, false)
	require.NoError(t, err)

	for _, name := range []string{SolutionFile, TargetsFile, RunStatsFile, RunStatsYAML} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
	assert.NoFileExists(t, filepath.Join(dir, MetricsFile))
	assert.NoFileExists(t, filepath.Join(dir, GeoJSONFile))
}
