package metric

import (
	"maps"

	"github.com/rotisserie/eris"

	"github.com/sells-group/reserve-cli/internal/model"
)

// Metric is a connectivity metric computed on one graph. It keeps the table
// as first computed alongside the current, possibly thresholded, table.
type Metric struct {
	kind      model.MetricKind
	graph     *Graph
	attrs     map[int64]float64
	computed  *Table
	current   *Table
	target    float64
	binarized bool
}

// Compute evaluates kind on g. attrs is required for pairwise metrics.
func Compute(kind model.MetricKind, g *Graph, attrs map[int64]float64) (*Metric, error) {
	fn, ok := registry[kind]
	if !ok {
		return nil, model.NewConfigError("unknown connectivity metric %q", kind)
	}
	rows, err := fn(g, attrs)
	if err != nil {
		return nil, eris.Wrapf(err, "metric: compute %s", kind)
	}
	t := NewTable(kind.IsPairwise(), rows)
	return &Metric{
		kind:     kind,
		graph:    g,
		attrs:    maps.Clone(attrs),
		computed: t,
		current:  t,
	}, nil
}

// Kind returns the metric kind.
func (m *Metric) Kind() model.MetricKind { return m.kind }

// Graph returns the graph the metric was computed on.
func (m *Metric) Graph() *Graph { return m.graph }

// Table returns the current values.
func (m *Metric) Table() *Table { return m.current }

// Computed returns the values as first computed, before any threshold.
func (m *Metric) Computed() *Table { return m.computed }

// Binarized reports whether Binarize has been applied.
func (m *Metric) Binarized() bool { return m.binarized }

// Target returns the connectivity target recorded by the model builder.
func (m *Metric) Target() float64 { return m.target }

// SetTarget records the connectivity target applied to this metric.
func (m *Metric) SetTarget(v float64) { m.target = v }

// DropBelow zeroes current values below threshold.
func (m *Metric) DropBelow(threshold float64) {
	m.current = m.current.DropBelow(threshold)
}

// DropAbove zeroes current values above threshold.
func (m *Metric) DropAbove(threshold float64) {
	m.current = m.current.DropAbove(threshold)
}

// DropBelowOf zeroes current values below the named statistic of the current table.
func (m *Metric) DropBelowOf(kind model.StatKind) error {
	v, err := m.current.Stats().Of(kind)
	if err != nil {
		return err
	}
	m.DropBelow(v)
	return nil
}

// DropAboveOf zeroes current values above the named statistic of the current table.
func (m *Metric) DropAboveOf(kind model.StatKind) error {
	v, err := m.current.Stats().Of(kind)
	if err != nil {
		return err
	}
	m.DropAbove(v)
	return nil
}

// Binarize maps current non-zero values to one. Computed values are kept.
func (m *Metric) Binarize() {
	m.current = m.current.Binarize()
	m.binarized = true
}

// Restrict recomputes the metric on the original graph and keeps only the
// rows covered by the selection.
func (m *Metric) Restrict(selected func(int64) bool) (*Table, error) {
	rows, err := registry[m.kind](m.graph, m.attrs)
	if err != nil {
		return nil, eris.Wrapf(err, "metric: recompute %s", m.kind)
	}
	return NewTable(m.kind.IsPairwise(), rows).Restrict(selected), nil
}
