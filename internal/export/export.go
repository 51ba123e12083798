// Package export writes the result files of a run.
package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/reserve-cli/internal/solution"
)

// Output file names.
const (
	SolutionFile = "solution.csv"
	TargetsFile  = "targets.csv"
	MetricsFile  = "metrics.csv"
	RunStatsFile = "runstats.csv"
	RunStatsYAML = "runstats.yaml"
	GeoJSONFile  = "solution.geojson"
)

// Outputs gathers everything a run reports.
type Outputs struct {
	Report   *solution.Report
	Features []solution.FeatureSummary
	// Metrics is nil for strategies without connectivity.
	Metrics []solution.MetricSummary
	Stats   []solution.Stat
	Args    map[string]string
}

// WriteAll writes every output file into dir, creating it if needed.
func WriteAll(dir string, out Outputs, geojson bool) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "export: create %s", dir)
	}
	if err := WriteSolution(dir, out.Report); err != nil {
		return err
	}
	if err := WriteTargets(dir, out.Features); err != nil {
		return err
	}
	if out.Metrics != nil {
		if err := WriteMetrics(dir, out.Metrics); err != nil {
			return err
		}
	}
	if err := WriteRunStats(dir, out.Stats, out.Args); err != nil {
		return err
	}
	if err := WriteRunStatsYAML(dir, out.Stats, out.Args); err != nil {
		return err
	}
	if geojson {
		if err := WriteGeoJSON(dir, out.Report); err != nil {
			return err
		}
	}
	zap.L().Info("export: outputs written", zap.String("dir", dir))
	return nil
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return eris.Wrapf(err, "export: write %s", path)
	}
	if err := w.WriteAll(rows); err != nil {
		return eris.Wrapf(err, "export: write %s", path)
	}
	return f.Close()
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}

// WriteSolution writes pu, x, xloc, yloc for every planning unit.
func WriteSolution(dir string, r *solution.Report) error {
	rows := make([][]string, 0, len(r.Units))
	for _, u := range r.Units {
		x := "0"
		if u.Selected {
			x = "1"
		}
		rows = append(rows, []string{itoa(u.ID), x, ftoa(u.X), ftoa(u.Y)})
	}
	return writeCSV(filepath.Join(dir, SolutionFile), []string{"pu", "x", "xloc", "yloc"}, rows)
}

// WriteTargets writes the feature coverage table.
func WriteTargets(dir string, features []solution.FeatureSummary) error {
	rows := make([][]string, 0, len(features))
	for _, f := range features {
		rows = append(rows, []string{itoa(f.FeatureID), ftoa(f.Total), ftoa(f.Target), ftoa(f.Reached)})
	}
	return writeCSV(filepath.Join(dir, TargetsFile), []string{"features", "total", "target", "reached"}, rows)
}

// WriteMetrics writes the connectivity summary table.
func WriteMetrics(dir string, metrics []solution.MetricSummary) error {
	rows := make([][]string, 0, len(metrics))
	for _, m := range metrics {
		rows = append(rows, []string{
			m.Dataset, string(m.Metric),
			ftoa(m.Total), ftoa(m.Min), ftoa(m.Max),
			ftoa(m.MinThreshold), ftoa(m.MaxThreshold),
			ftoa(m.Target), ftoa(m.Achieved), ftoa(m.AvgPerUnit),
		})
	}
	header := []string{"con_data", "metric", "total", "min", "max", "min_threshold", "max_threshold", "target", "total_metric", "avg_per_pu"}
	return writeCSV(filepath.Join(dir, MetricsFile), header, rows)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// WriteRunStats writes run statistics followed by the run arguments.
func WriteRunStats(dir string, stats []solution.Stat, args map[string]string) error {
	rows := make([][]string, 0, len(stats)+len(args))
	for _, s := range stats {
		rows = append(rows, []string{s.Name, ftoa(s.Value)})
	}
	for _, k := range sortedKeys(args) {
		rows = append(rows, []string{k, args[k]})
	}
	return writeCSV(filepath.Join(dir, RunStatsFile), []string{"name", "value"}, rows)
}

type runStatsDoc struct {
	Stats []solution.Stat `yaml:"stats"`
	Args  yaml.Node       `yaml:"args"`
}

// WriteRunStatsYAML writes the run statistics and arguments as YAML, with
// arguments in key order.
func WriteRunStatsYAML(dir string, stats []solution.Stat, args map[string]string) error {
	doc := runStatsDoc{Stats: stats}
	doc.Args = yaml.Node{Kind: yaml.MappingNode}
	for _, k := range sortedKeys(args) {
		doc.Args.Content = append(doc.Args.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: k},
			&yaml.Node{Kind: yaml.ScalarNode, Value: args[k]},
		)
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return eris.Wrap(err, "export: marshal run stats")
	}
	path := filepath.Join(dir, RunStatsYAML)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "export: write %s", path)
	}
	return nil
}
