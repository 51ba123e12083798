package connectivity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/reserve-cli/internal/metric"
	"github.com/sells-group/reserve-cli/internal/model"
)

func ptr(v float64) *float64 { return &v }

func newTestModel(t *testing.T, cfg Config) *Model {
	t.Helper()
	if cfg.Strategy == "" {
		cfg.Strategy = model.StrategyRSPCF
	}
	m, err := NewModel(cfg)
	require.NoError(t, err)
	return m
}

func TestNewModel_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewModel(Config{Strategy: model.StrategyRSP})
	assert.True(t, model.IsConfig(err))

	_, err = NewModel(Config{Strategy: model.StrategyRSPCF, Weight: 1.5})
	assert.True(t, model.IsConfig(err))

	m, err := NewModel(Config{Strategy: model.StrategyRSPCF, Weight: 15, IsTarget: true})
	require.NoError(t, err)
	assert.InDelta(t, 1, m.Config().CostWeight, 1e-12)
}

func TestFromMatrix_KeepsIsolatedUnits(t *testing.T) {
	t.Parallel()

	mat := model.Matrix{
		IDs: []int64{1, 2, 3},
		Cells: [][]float64{
			{0, 1, 0},
			{0, 0, 0},
			{0, 0, 0},
		},
	}
	d, err := FromMatrix("0", mat, []model.MetricKind{model.MetricInDegree}, nil)
	require.NoError(t, err)

	vals, err := d.Values(model.MetricInDegree)
	require.NoError(t, err)
	assert.Equal(t, map[int64]float64{1: 0, 2: 1, 3: 0}, vals.ByUnit())
}

func TestFromEdgeList_RequiresAttributesForEC(t *testing.T) {
	t.Parallel()

	edges := []model.Edge{{From: 1, To: 2, Weight: 0.5}}
	_, err := FromEdgeList("0", edges, []model.MetricKind{model.MetricEC}, nil)
	require.Error(t, err)
	assert.True(t, model.IsConfig(err))

	d, err := FromEdgeList("0", edges, []model.MetricKind{model.MetricEC}, map[int64]float64{1: 2, 2: 3})
	require.NoError(t, err)
	vals, err := d.Values(model.MetricEC)
	require.NoError(t, err)
	assert.Equal(t, []metric.Row{{From: 1, To: 2, Value: 3}}, vals.Rows())
}

func TestDataset_MissingMetric(t *testing.T) {
	t.Parallel()

	d, err := FromEdgeList("x", []model.Edge{{From: 1, To: 2, Weight: 1}}, []model.MetricKind{model.MetricInDegree}, nil)
	require.NoError(t, err)

	_, err = d.Values(model.MetricBetweenness)
	assert.True(t, model.IsLookup(err))
	assert.True(t, model.IsLookup(d.Binarize(model.MetricOutDegree)))
}

func TestFromFeatureEdgeList_CompleteGraphMean(t *testing.T) {
	t.Parallel()

	// Weights 1, 1, 4 have mean 2; only 2 -> 3 survives sparsification.
	edges := []model.Edge{
		{From: 1, To: 2, Weight: 1},
		{From: 1, To: 3, Weight: 1},
		{From: 2, To: 3, Weight: 4},
	}
	kinds := []model.MetricKind{model.MetricOutDegree, model.MetricBetweenness}

	d, err := FromFeatureEdgeList("7", edges, kinds, model.CompleteGraphMean, nil)
	require.NoError(t, err)
	assert.Equal(t, kinds, d.Kinds())

	out, err := d.Values(model.MetricOutDegree)
	require.NoError(t, err)
	assert.Equal(t, map[int64]float64{1: 2, 2: 1, 3: 0}, out.ByUnit())

	bc, err := d.Metric(model.MetricBetweenness)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, bc.Graph().Nodes())
	assert.Equal(t, map[int64]float64{2: 0, 3: 0}, bc.Table().ByUnit())
}

func TestFromFeatureEdgeList_FullGraphBetweenness(t *testing.T) {
	t.Parallel()

	edges := []model.Edge{
		{From: 1, To: 2, Weight: 1},
		{From: 2, To: 3, Weight: 1},
		{From: 1, To: 3, Weight: 0},
	}
	d, err := FromFeatureEdgeList("1", edges, []model.MetricKind{model.MetricBetweenness}, model.CompleteGraphNone, nil)
	require.NoError(t, err)
	vals, err := d.Values(model.MetricBetweenness)
	require.NoError(t, err)
	assert.InDelta(t, 1, vals.ByUnit()[2], 1e-12)
}

func TestAttributeValues(t *testing.T) {
	t.Parallel()

	attrs := []model.NodeAttribute{
		{FeatureID: 1, UnitID: 10, Value: 2},
		{FeatureID: 2, UnitID: 10, Value: 5},
		{FeatureID: 1, UnitID: 11, Value: 3},
	}
	fid := int64(1)
	got, err := AttributeValues(attrs, &fid)
	require.NoError(t, err)
	assert.Equal(t, map[int64]float64{10: 2, 11: 3}, got)

	_, err = AttributeValues(attrs, nil)
	assert.True(t, model.IsLookup(err))
}

func TestModel_AddFeatureEdgeListDatasets(t *testing.T) {
	t.Parallel()

	m := newTestModel(t, Config{Weight: 0.5})
	edges := []model.FeatureEdge{
		{FeatureID: 2, Edge: model.Edge{From: 1, To: 2, Weight: 0.5}},
		{FeatureID: 1, Edge: model.Edge{From: 2, To: 3, Weight: 1}},
		{FeatureID: 3, Edge: model.Edge{From: 3, To: 1, Weight: 1}},
	}
	attrs := []model.NodeAttribute{
		{FeatureID: 1, UnitID: 2, Value: 1},
		{FeatureID: 1, UnitID: 3, Value: 4},
		{FeatureID: 2, UnitID: 1, Value: 2},
		{FeatureID: 2, UnitID: 2, Value: 3},
	}
	hasTarget := func(id int64) bool { return id != 3 }

	err := m.AddFeatureEdgeListDatasets(edges, []model.MetricKind{model.MetricEC}, attrs, hasTarget)
	require.NoError(t, err)

	ds := m.Datasets()
	require.Len(t, ds, 2)
	assert.Equal(t, "1", ds[0].Name())
	assert.Equal(t, "2", ds[1].Name())

	tables, err := m.ValuesAcrossDatasets(model.MetricEC)
	require.NoError(t, err)
	assert.Equal(t, []metric.Row{{From: 2, To: 3, Value: 4}}, tables[0].Rows())
	assert.Equal(t, []metric.Row{{From: 1, To: 2, Value: 3}}, tables[1].Rows())
}

func TestModel_ApplyThresholds(t *testing.T) {
	t.Parallel()

	m := newTestModel(t, Config{Weight: 0.5})
	edges := []model.Edge{
		{From: 1, To: 2, Weight: 1},
		{From: 1, To: 3, Weight: 1},
		{From: 1, To: 4, Weight: 1},
		{From: 2, To: 3, Weight: 1},
	}
	require.NoError(t, m.AddEdgeListDataset(edges, []model.MetricKind{model.MetricOutDegree}, nil))
	require.NoError(t, m.AddEdgeListDataset(edges[:1], []model.MetricKind{model.MetricOutDegree}, nil))

	err := m.ApplyThresholds([]Threshold{{
		Kind:     model.MetricOutDegree,
		Min:      ptr(0),
		MinOf:    model.StatMean,
		Max:      ptr(2),
		Binarize: true,
	}})
	require.NoError(t, err)

	tables, err := m.ValuesAcrossDatasets(model.MetricOutDegree)
	require.NoError(t, err)
	// Dataset 0: out-degrees 3,1,0,0 with mean 1; drop below 1 then above 2.
	assert.Equal(t, map[int64]float64{1: 0, 2: 1, 3: 0, 4: 0}, tables[0].ByUnit())
	// Dataset 1: out-degrees 1,0 with mean 0.5.
	assert.Equal(t, map[int64]float64{1: 1, 2: 0}, tables[1].ByUnit())

	err = m.ApplyThresholds([]Threshold{{Kind: model.MetricEC, Min: ptr(1)}})
	assert.True(t, model.IsConfig(err))
}

func TestModel_NormalizedValuesAcrossDatasets(t *testing.T) {
	t.Parallel()

	m := newTestModel(t, Config{Strategy: model.StrategyRSPCon})
	mat := model.Matrix{
		IDs:   []int64{1, 2, 3},
		Cells: [][]float64{{0, 1, 1}, {0, 0, 1}, {0, 0, 0}},
	}
	require.NoError(t, m.AddMatrixDataset(mat, []model.MetricKind{model.MetricInDegree}, nil))
	assert.Equal(t, []model.MetricKind{model.MetricInDegree}, m.Kinds())

	tables, err := m.NormalizedValuesAcrossDatasets(model.MetricInDegree)
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, map[int64]float64{1: 0, 2: 0.5, 3: 1}, tables[0].ByUnit())
}
