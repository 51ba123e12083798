package connectivity

import (
	"maps"
	"slices"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/reserve-cli/internal/metric"
	"github.com/sells-group/reserve-cli/internal/model"
)

// Dataset is one connectivity input with the metrics computed on it.
type Dataset struct {
	name    string
	graph   *metric.Graph
	attrs   map[int64]float64
	kinds   []model.MetricKind
	metrics map[model.MetricKind]*metric.Metric
}

// FromMatrix builds a dataset from a square matrix. Every unit of the matrix
// is a graph node, even when its row and column are all zero.
func FromMatrix(name string, m model.Matrix, kinds []model.MetricKind, attrs map[int64]float64) (*Dataset, error) {
	edges, err := m.Edges()
	if err != nil {
		return nil, eris.Wrapf(err, "connectivity: dataset %s", name)
	}
	return newDataset(name, metric.FromEdges(edges, m.IDs...), kinds, attrs)
}

// FromEdgeList builds a dataset from (from, to, weight) rows.
func FromEdgeList(name string, edges []model.Edge, kinds []model.MetricKind, attrs map[int64]float64) (*Dataset, error) {
	return newDataset(name, metric.FromEdges(edges), kinds, attrs)
}

// FromFeatureEdgeList builds a dataset from the edges of one feature. With a
// complete-graph mode, betweenness is computed on the sparsified graph that
// keeps only edges weighing at least the mean or median weight.
func FromFeatureEdgeList(name string, edges []model.Edge, kinds []model.MetricKind, mode model.CompleteGraphMode, attrs map[int64]float64) (*Dataset, error) {
	d, err := newDataset(name, metric.FromEdges(edges), withoutKind(kinds, model.MetricBetweenness), attrs)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(kinds, model.MetricBetweenness) {
		d.kinds = slices.Clone(kinds)
		return d, nil
	}

	bcGraph := d.graph
	if mode != model.CompleteGraphNone {
		bcGraph = sparsify(edges, mode)
		zap.L().Debug("connectivity: sparsified complete graph",
			zap.String("dataset", name),
			zap.String("mode", string(mode)),
			zap.Int("edges", len(bcGraph.Edges())),
		)
	}
	bc, err := metric.Compute(model.MetricBetweenness, bcGraph, d.attrs)
	if err != nil {
		return nil, eris.Wrapf(err, "connectivity: dataset %s", name)
	}
	d.metrics[model.MetricBetweenness] = bc
	d.kinds = slices.Clone(kinds)
	return d, nil
}

func newDataset(name string, g *metric.Graph, kinds []model.MetricKind, attrs map[int64]float64) (*Dataset, error) {
	d := &Dataset{
		name:    name,
		graph:   g,
		kinds:   slices.Clone(kinds),
		metrics: make(map[model.MetricKind]*metric.Metric, len(kinds)),
	}
	if attrs != nil {
		d.AttachNodeAttributes(attrs)
	}
	for _, kind := range kinds {
		if kind == model.MetricEC && d.attrs == nil {
			return nil, model.NewConfigError("connectivity: dataset %s: ec requires node attribute data", name)
		}
		m, err := metric.Compute(kind, g, d.attrs)
		if err != nil {
			return nil, eris.Wrapf(err, "connectivity: dataset %s", name)
		}
		d.metrics[kind] = m
	}
	return d, nil
}

func sparsify(edges []model.Edge, mode model.CompleteGraphMode) *metric.Graph {
	var weights []float64
	for _, e := range edges {
		if e.Weight != 0 {
			weights = append(weights, e.Weight)
		}
	}
	stats := metric.Summarize(weights)
	threshold := stats.Mean
	if mode == model.CompleteGraphMedian {
		threshold = stats.Median
	}

	var kept []model.Edge
	for _, e := range edges {
		if e.Weight != 0 && e.Weight >= threshold {
			kept = append(kept, e)
		}
	}
	return metric.FromEdges(kept)
}

func withoutKind(kinds []model.MetricKind, drop model.MetricKind) []model.MetricKind {
	return slices.DeleteFunc(slices.Clone(kinds), func(k model.MetricKind) bool { return k == drop })
}

// AttachNodeAttributes sets the per-unit habitat values used by pairwise metrics.
func (d *Dataset) AttachNodeAttributes(attrs map[int64]float64) {
	d.attrs = maps.Clone(attrs)
}

// Name returns the dataset name.
func (d *Dataset) Name() string { return d.name }

// Graph returns the dataset graph.
func (d *Dataset) Graph() *metric.Graph { return d.graph }

// Kinds returns the metrics computed on the dataset, in request order.
func (d *Dataset) Kinds() []model.MetricKind { return slices.Clone(d.kinds) }

// Metric returns the metric of the given kind.
func (d *Dataset) Metric(kind model.MetricKind) (*metric.Metric, error) {
	m, ok := d.metrics[kind]
	if !ok {
		return nil, model.NewLookupError("metric "+string(kind)+" on dataset", d.name, 0)
	}
	return m, nil
}

// Values returns the current values of a metric.
func (d *Dataset) Values(kind model.MetricKind) (*metric.Table, error) {
	m, err := d.Metric(kind)
	if err != nil {
		return nil, err
	}
	return m.Table(), nil
}

// NormalizedValues returns the current values of a metric min-max scaled to [0, 1].
func (d *Dataset) NormalizedValues(kind model.MetricKind) (*metric.Table, error) {
	t, err := d.Values(kind)
	if err != nil {
		return nil, err
	}
	return t.Normalize(), nil
}

// DropBelow zeroes values of kind below threshold.
func (d *Dataset) DropBelow(kind model.MetricKind, threshold float64) error {
	m, err := d.Metric(kind)
	if err != nil {
		return err
	}
	m.DropBelow(threshold)
	return nil
}

// DropAbove zeroes values of kind above threshold.
func (d *Dataset) DropAbove(kind model.MetricKind, threshold float64) error {
	m, err := d.Metric(kind)
	if err != nil {
		return err
	}
	m.DropAbove(threshold)
	return nil
}

// DropBelowOf zeroes values of kind below one of its statistics.
func (d *Dataset) DropBelowOf(kind model.MetricKind, stat model.StatKind) error {
	m, err := d.Metric(kind)
	if err != nil {
		return err
	}
	return m.DropBelowOf(stat)
}

// DropAboveOf zeroes values of kind above one of its statistics.
func (d *Dataset) DropAboveOf(kind model.MetricKind, stat model.StatKind) error {
	m, err := d.Metric(kind)
	if err != nil {
		return err
	}
	return m.DropAboveOf(stat)
}

// Binarize maps the non-zero values of kind to one.
func (d *Dataset) Binarize(kind model.MetricKind) error {
	m, err := d.Metric(kind)
	if err != nil {
		return err
	}
	m.Binarize()
	return nil
}
