package conservation

import (
	"slices"

	"go.uber.org/zap"

	"github.com/sells-group/reserve-cli/internal/model"
)

// Model holds the planning units, features, feature amounts and boundaries
// of a reserve-selection problem.
type Model struct {
	units      []model.PlanningUnit
	unitIdx    map[int64]int
	features   []model.Feature
	featureIdx map[int64]int
	amounts    map[int64][]model.Amount
	totals     map[int64]float64
	targets    map[int64]float64
	boundaries []model.Boundary

	// MaxCost bounds total cost from above for RSP-Con.
	MaxCost *float64
	// MinCost bounds total cost from below for RSP-Con.
	MinCost *float64
	// BLMWeight scales the boundary penalty of RSP-BLM.
	BLMWeight float64
}

// New indexes the inputs. Duplicate ids, and amounts or boundaries referring
// to unknown units or features, are LookupErrors.
func New(units []model.PlanningUnit, features []model.Feature, amounts []model.Amount, boundaries []model.Boundary) (*Model, error) {
	m := &Model{
		units:      slices.Clone(units),
		unitIdx:    make(map[int64]int, len(units)),
		features:   slices.Clone(features),
		featureIdx: make(map[int64]int, len(features)),
		amounts:    make(map[int64][]model.Amount),
		totals:     make(map[int64]float64),
		targets:    make(map[int64]float64),
		boundaries: slices.Clone(boundaries),
		BLMWeight:  1,
	}

	for i, u := range m.units {
		if _, dup := m.unitIdx[u.ID]; dup {
			return nil, model.NewLookupError("planning unit", u.ID, 2)
		}
		m.unitIdx[u.ID] = i
	}
	for i, f := range m.features {
		if _, dup := m.featureIdx[f.ID]; dup {
			return nil, model.NewLookupError("feature", f.ID, 2)
		}
		if f.Target != nil && f.Prop != nil {
			return nil, model.NewConfigError("conservation: feature %d has both target and prop", f.ID)
		}
		if f.Prop != nil && (*f.Prop < 0 || *f.Prop > 1) {
			return nil, model.NewConfigError("conservation: feature %d prop %g outside [0, 1]", f.ID, *f.Prop)
		}
		m.featureIdx[f.ID] = i
	}
	for _, a := range amounts {
		if _, ok := m.featureIdx[a.FeatureID]; !ok {
			return nil, model.NewLookupError("feature", a.FeatureID, 0)
		}
		if _, ok := m.unitIdx[a.UnitID]; !ok {
			return nil, model.NewLookupError("planning unit", a.UnitID, 0)
		}
		m.amounts[a.FeatureID] = append(m.amounts[a.FeatureID], a)
		m.totals[a.FeatureID] += a.Value
	}
	for _, b := range m.boundaries {
		for _, id := range []int64{b.ID1, b.ID2} {
			if _, ok := m.unitIdx[id]; !ok {
				return nil, model.NewLookupError("planning unit", id, 0)
			}
		}
	}

	zap.L().Debug("conservation: model ready",
		zap.Int("units", len(m.units)),
		zap.Int("features", len(m.features)),
		zap.Int("amounts", len(amounts)),
		zap.Int("boundaries", len(m.boundaries)),
	)
	return m, nil
}

// Units returns the planning units in input order.
func (m *Model) Units() []model.PlanningUnit { return slices.Clone(m.units) }

// Unit returns the planning unit with the given id.
func (m *Model) Unit(id int64) (model.PlanningUnit, error) {
	i, ok := m.unitIdx[id]
	if !ok {
		return model.PlanningUnit{}, model.NewLookupError("planning unit", id, 0)
	}
	return m.units[i], nil
}

// Features returns the features in input order.
func (m *Model) Features() []model.Feature { return slices.Clone(m.features) }

// Feature returns the feature with the given id.
func (m *Model) Feature(id int64) (model.Feature, error) {
	i, ok := m.featureIdx[id]
	if !ok {
		return model.Feature{}, model.NewLookupError("feature", id, 0)
	}
	return m.features[i], nil
}

// HasTarget reports whether the feature exists and carries a target or prop.
func (m *Model) HasTarget(id int64) bool {
	f, err := m.Feature(id)
	return err == nil && f.HasTarget()
}

// Amounts returns the amount rows of a feature.
func (m *Model) Amounts(featureID int64) []model.Amount {
	return slices.Clone(m.amounts[featureID])
}

// TotalAmount returns the sum of a feature's amounts across all units.
func (m *Model) TotalAmount(featureID int64) float64 {
	return m.totals[featureID]
}

// Target resolves the coverage target of a feature: the absolute target,
// or prop times the feature's total amount. Resolved values are cached.
func (m *Model) Target(featureID int64) (float64, error) {
	if v, ok := m.targets[featureID]; ok {
		return v, nil
	}
	f, err := m.Feature(featureID)
	if err != nil {
		return 0, err
	}

	var v float64
	switch {
	case f.Target != nil:
		v = *f.Target
	case f.Prop != nil:
		v = *f.Prop * m.totals[featureID]
	default:
		return 0, model.NewConfigError("conservation: feature %d has neither target nor prop", featureID)
	}
	m.targets[featureID] = v
	return v, nil
}

// TargetedFeatures returns, in ascending order, the ids of features that
// carry a target. A targeted feature without amounts is logged and kept: its
// coverage row can only hold when the target is not positive.
func (m *Model) TargetedFeatures() []int64 {
	var ids []int64
	for _, f := range m.features {
		if !f.HasTarget() {
			continue
		}
		if len(m.amounts[f.ID]) == 0 {
			zap.L().Warn("conservation: targeted feature has no amounts", zap.Int64("feature", f.ID))
		}
		ids = append(ids, f.ID)
	}
	slices.Sort(ids)
	return ids
}

// Boundaries returns the boundary rows.
func (m *Model) Boundaries() []model.Boundary { return slices.Clone(m.boundaries) }
