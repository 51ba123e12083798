package connectivity

import (
	"slices"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/reserve-cli/internal/metric"
	"github.com/sells-group/reserve-cli/internal/model"
)

// Config holds the options of a connectivity model.
type Config struct {
	Strategy model.Strategy
	// Weight is the proportion of the total metric value to reach when
	// IsTarget is false, the absolute target when IsTarget is true, and the
	// connectivity weight of the RSP-CC objective.
	Weight     float64
	CostWeight float64
	IsTarget   bool
	// CompleteGraph sparsifies per-feature edge lists before betweenness.
	CompleteGraph model.CompleteGraphMode
}

// Threshold is the post-processing applied to one metric across all datasets.
// Statistic thresholds take precedence over numeric ones.
type Threshold struct {
	Kind     model.MetricKind
	Min      *float64
	MinOf    model.StatKind
	Max      *float64
	MaxOf    model.StatKind
	Binarize bool
}

// Model is an ordered collection of connectivity datasets sharing one metric list.
type Model struct {
	cfg      Config
	datasets []*Dataset
	kinds    []model.MetricKind
}

// NewModel validates cfg and returns an empty model. A zero CostWeight defaults to 1.
func NewModel(cfg Config) (*Model, error) {
	if !cfg.Strategy.UsesConnectivity() {
		return nil, model.NewConfigError("connectivity: strategy %q does not use connectivity data", cfg.Strategy)
	}
	if cfg.CostWeight == 0 {
		cfg.CostWeight = 1
	}
	if cfg.Weight < 0 {
		return nil, model.NewConfigError("connectivity: weight must be non-negative, got %g", cfg.Weight)
	}
	if !cfg.IsTarget && cfg.Strategy == model.StrategyRSPCF && cfg.Weight > 1 {
		return nil, model.NewConfigError("connectivity: proportion %g exceeds 1", cfg.Weight)
	}
	return &Model{cfg: cfg}, nil
}

// Config returns the model options.
func (m *Model) Config() Config { return m.cfg }

// Datasets returns the datasets in insertion order.
func (m *Model) Datasets() []*Dataset { return slices.Clone(m.datasets) }

// Kinds returns the metric kinds requested across datasets.
func (m *Model) Kinds() []model.MetricKind { return slices.Clone(m.kinds) }

func (m *Model) add(d *Dataset) {
	m.datasets = append(m.datasets, d)
	for _, k := range d.Kinds() {
		if !slices.Contains(m.kinds, k) {
			m.kinds = append(m.kinds, k)
		}
	}
	zap.L().Debug("connectivity: added dataset",
		zap.String("dataset", d.Name()),
		zap.Int("nodes", len(d.Graph().Nodes())),
		zap.Int("edges", len(d.Graph().Edges())),
	)
}

// AddMatrixDataset computes kinds on a connectivity matrix.
func (m *Model) AddMatrixDataset(mat model.Matrix, kinds []model.MetricKind, attrs map[int64]float64) error {
	d, err := FromMatrix(strconv.Itoa(len(m.datasets)), mat, kinds, attrs)
	if err != nil {
		return err
	}
	m.add(d)
	return nil
}

// AddEdgeListDataset computes kinds on a connectivity edge list.
func (m *Model) AddEdgeListDataset(edges []model.Edge, kinds []model.MetricKind, attrs map[int64]float64) error {
	d, err := FromEdgeList(strconv.Itoa(len(m.datasets)), edges, kinds, attrs)
	if err != nil {
		return err
	}
	m.add(d)
	return nil
}

// AddFeatureEdgeListDatasets splits a feature-tagged edge list into one
// dataset per feature, keeping only features for which hasTarget holds.
// Datasets are named by feature id and added in ascending feature order.
// Node attributes are filtered to the feature when attrs is non-nil.
func (m *Model) AddFeatureEdgeListDatasets(edges []model.FeatureEdge, kinds []model.MetricKind, attrs []model.NodeAttribute, hasTarget func(int64) bool) error {
	byFeature := make(map[int64][]model.Edge)
	for _, e := range edges {
		byFeature[e.FeatureID] = append(byFeature[e.FeatureID], e.Edge)
	}
	ids := make([]int64, 0, len(byFeature))
	for id := range byFeature {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, fid := range ids {
		if hasTarget != nil && !hasTarget(fid) {
			continue
		}
		var featureAttrs map[int64]float64
		if attrs != nil {
			var err error
			featureAttrs, err = AttributeValues(attrs, &fid)
			if err != nil {
				return err
			}
		}
		d, err := FromFeatureEdgeList(strconv.FormatInt(fid, 10), byFeature[fid], kinds, m.cfg.CompleteGraph, featureAttrs)
		if err != nil {
			return eris.Wrapf(err, "connectivity: feature %d", fid)
		}
		m.add(d)
	}
	return nil
}

// AttributeValues indexes node attributes by unit. When featureID is non-nil
// only rows of that feature are used. A unit listed twice is a LookupError.
func AttributeValues(attrs []model.NodeAttribute, featureID *int64) (map[int64]float64, error) {
	out := make(map[int64]float64)
	counts := make(map[int64]int)
	for _, a := range attrs {
		if featureID != nil && a.FeatureID != *featureID {
			continue
		}
		out[a.UnitID] = a.Value
		counts[a.UnitID]++
	}
	for id, n := range counts {
		if n > 1 {
			return nil, model.NewLookupError("node attribute for planning unit", id, n)
		}
	}
	return out, nil
}

// ValuesAcrossDatasets returns the current tables of kind, one per dataset.
func (m *Model) ValuesAcrossDatasets(kind model.MetricKind) ([]*metric.Table, error) {
	return m.collect(kind, (*Dataset).Values)
}

// NormalizedValuesAcrossDatasets returns the normalized tables of kind, one per dataset.
func (m *Model) NormalizedValuesAcrossDatasets(kind model.MetricKind) ([]*metric.Table, error) {
	return m.collect(kind, (*Dataset).NormalizedValues)
}

func (m *Model) collect(kind model.MetricKind, fn func(*Dataset, model.MetricKind) (*metric.Table, error)) ([]*metric.Table, error) {
	out := make([]*metric.Table, 0, len(m.datasets))
	for _, d := range m.datasets {
		t, err := fn(d, kind)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (m *Model) each(fn func(*Dataset) error) error {
	for _, d := range m.datasets {
		if err := fn(d); err != nil {
			return err
		}
	}
	return nil
}

// DropBelow zeroes values of kind below threshold in every dataset.
func (m *Model) DropBelow(kind model.MetricKind, threshold float64) error {
	return m.each(func(d *Dataset) error { return d.DropBelow(kind, threshold) })
}

// DropAbove zeroes values of kind above threshold in every dataset.
func (m *Model) DropAbove(kind model.MetricKind, threshold float64) error {
	return m.each(func(d *Dataset) error { return d.DropAbove(kind, threshold) })
}

// DropBelowOf zeroes values of kind below each dataset's own statistic.
func (m *Model) DropBelowOf(kind model.MetricKind, stat model.StatKind) error {
	return m.each(func(d *Dataset) error { return d.DropBelowOf(kind, stat) })
}

// DropAboveOf zeroes values of kind above each dataset's own statistic.
func (m *Model) DropAboveOf(kind model.MetricKind, stat model.StatKind) error {
	return m.each(func(d *Dataset) error { return d.DropAboveOf(kind, stat) })
}

// Binarize maps non-zero values of kind to one in every dataset.
func (m *Model) Binarize(kind model.MetricKind) error {
	return m.each(func(d *Dataset) error { return d.Binarize(kind) })
}

// ApplyThresholds applies each threshold in order: lower bound, upper bound, binarization.
func (m *Model) ApplyThresholds(ts []Threshold) error {
	for _, t := range ts {
		if !slices.Contains(m.kinds, t.Kind) {
			return model.NewConfigError("connectivity: threshold for metric %q which was not computed", t.Kind)
		}
		if err := m.applyThreshold(t); err != nil {
			return eris.Wrapf(err, "connectivity: threshold %s", t.Kind)
		}
	}
	return nil
}

func (m *Model) applyThreshold(t Threshold) error {
	switch {
	case t.MinOf != model.StatNone:
		if err := m.DropBelowOf(t.Kind, t.MinOf); err != nil {
			return err
		}
	case t.Min != nil:
		if err := m.DropBelow(t.Kind, *t.Min); err != nil {
			return err
		}
	}
	switch {
	case t.MaxOf != model.StatNone:
		if err := m.DropAboveOf(t.Kind, t.MaxOf); err != nil {
			return err
		}
	case t.Max != nil:
		if err := m.DropAbove(t.Kind, *t.Max); err != nil {
			return err
		}
	}
	if t.Binarize {
		return m.Binarize(t.Kind)
	}
	return nil
}
