package conservation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/reserve-cli/internal/model"
)

func ptr(v float64) *float64 { return &v }

func testUnits() []model.PlanningUnit {
	return []model.PlanningUnit{
		{ID: 1, Cost: 1},
		{ID: 2, Cost: 2},
		{ID: 3, Cost: 3},
	}
}

func TestNew_Lookups(t *testing.T) {
	t.Parallel()

	m, err := New(testUnits(),
		[]model.Feature{{ID: 10, Name: "owl", Target: ptr(4)}},
		[]model.Amount{{FeatureID: 10, UnitID: 1, Value: 2}, {FeatureID: 10, UnitID: 3, Value: 5}},
		[]model.Boundary{{ID1: 1, ID2: 2, Length: 3}},
	)
	require.NoError(t, err)

	u, err := m.Unit(2)
	require.NoError(t, err)
	assert.InDelta(t, 2, u.Cost, 1e-12)

	_, err = m.Unit(9)
	assert.True(t, model.IsLookup(err))
	_, err = m.Feature(11)
	assert.True(t, model.IsLookup(err))

	assert.Len(t, m.Units(), 3)
	assert.Len(t, m.Amounts(10), 2)
	assert.InDelta(t, 7, m.TotalAmount(10), 1e-12)
	assert.Len(t, m.Boundaries(), 1)
	assert.InDelta(t, 1, m.BLMWeight, 1e-12)
	assert.Nil(t, m.MaxCost)
}

func TestNew_RejectsBadInputs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		units    []model.PlanningUnit
		features []model.Feature
		amounts  []model.Amount
		bounds   []model.Boundary
		lookup   bool
	}{
		{name: "duplicate unit", units: []model.PlanningUnit{{ID: 1}, {ID: 1}}, lookup: true},
		{name: "duplicate feature", features: []model.Feature{{ID: 1}, {ID: 1}}, lookup: true},
		{name: "amount for unknown feature", units: testUnits(), amounts: []model.Amount{{FeatureID: 5, UnitID: 1}}, lookup: true},
		{name: "amount for unknown unit", units: testUnits(), features: []model.Feature{{ID: 5}}, amounts: []model.Amount{{FeatureID: 5, UnitID: 9}}, lookup: true},
		{name: "boundary for unknown unit", units: testUnits(), bounds: []model.Boundary{{ID1: 1, ID2: 8}}, lookup: true},
		{name: "target and prop", features: []model.Feature{{ID: 1, Target: ptr(1), Prop: ptr(0.5)}}},
		{name: "prop above one", features: []model.Feature{{ID: 1, Prop: ptr(1.5)}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(tt.units, tt.features, tt.amounts, tt.bounds)
			require.Error(t, err)
			if tt.lookup {
				assert.True(t, model.IsLookup(err))
			} else {
				assert.True(t, model.IsConfig(err))
			}
		})
	}
}

func TestTarget(t *testing.T) {
	t.Parallel()

	m, err := New(testUnits(),
		[]model.Feature{
			{ID: 1, Target: ptr(5)},
			{ID: 2, Prop: ptr(0.5)},
			{ID: 3},
		},
		[]model.Amount{
			{FeatureID: 2, UnitID: 1, Value: 4},
			{FeatureID: 2, UnitID: 2, Value: 6},
			{FeatureID: 3, UnitID: 2, Value: 1},
		},
		nil,
	)
	require.NoError(t, err)

	v, err := m.Target(1)
	require.NoError(t, err)
	assert.InDelta(t, 5, v, 1e-12)

	v, err = m.Target(2)
	require.NoError(t, err)
	assert.InDelta(t, 5, v, 1e-12)

	_, err = m.Target(3)
	assert.True(t, model.IsConfig(err))

	_, err = m.Target(4)
	assert.True(t, model.IsLookup(err))

	assert.True(t, m.HasTarget(1))
	assert.False(t, m.HasTarget(3))
	assert.False(t, m.HasTarget(4))

	// Feature 1 has a target but no amounts and stays targeted.
	assert.Equal(t, []int64{1, 2}, m.TargetedFeatures())
}
