// Package rsp translates conservation and connectivity models into binary
// programs for the reserve-selection strategies.
package rsp

import (
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/reserve-cli/internal/connectivity"
	"github.com/sells-group/reserve-cli/internal/conservation"
	"github.com/sells-group/reserve-cli/internal/metric"
	"github.com/sells-group/reserve-cli/internal/milp"
	"github.com/sells-group/reserve-cli/internal/model"
)

// Builder assembles a reserve-selection program on a solver.
type Builder struct {
	solver   milp.Solver
	strategy model.Strategy
	cons     *conservation.Model
	conn     *connectivity.Model

	x     map[int64]milp.Var
	order []int64
	z     map[string]milp.Var
	sense milp.Sense
}

// NewBuilder validates the strategy against the supplied models.
func NewBuilder(s milp.Solver, strategy model.Strategy, cons *conservation.Model, conn *connectivity.Model) (*Builder, error) {
	if cons == nil {
		return nil, model.NewConfigError("rsp: conservation model is required")
	}
	if strategy.UsesConnectivity() {
		if conn == nil {
			return nil, model.NewConfigError("rsp: strategy %s requires connectivity data", strategy)
		}
		if conn.Config().Strategy != strategy {
			return nil, model.NewConfigError("rsp: ambiguous strategy: builder %s, connectivity model %s", strategy, conn.Config().Strategy)
		}
	}
	switch strategy {
	case model.StrategyRSP, model.StrategyRSPCF, model.StrategyRSPCC, model.StrategyRSPCon, model.StrategyRSPBLM:
	default:
		return nil, model.NewConfigError("rsp: unknown strategy %q", strategy)
	}
	return &Builder{
		solver:   s,
		strategy: strategy,
		cons:     cons,
		conn:     conn,
		x:        make(map[int64]milp.Var),
		z:        make(map[string]milp.Var),
	}, nil
}

// Strategy returns the formulation being built.
func (b *Builder) Strategy() model.Strategy { return b.strategy }

// Build creates variables, constraints and the objective for the strategy.
func (b *Builder) Build() error {
	if err := b.CreateDecisionVariables(); err != nil {
		return err
	}
	if err := b.AddFeatureCoverageConstraints(); err != nil {
		return err
	}
	switch b.strategy {
	case model.StrategyRSPCF:
		if err := b.AddConnectivityTargetConstraints(); err != nil {
			return err
		}
	case model.StrategyRSPCon:
		if err := b.AddCostBoundConstraints(); err != nil {
			return err
		}
	}
	if err := b.SetObjective(); err != nil {
		return err
	}
	zap.L().Info("rsp: model built",
		zap.String("strategy", string(b.strategy)),
		zap.Int("units", len(b.x)),
		zap.Int("conjunctions", len(b.z)),
	)
	return nil
}

// CreateDecisionVariables creates one binary x_<id> per planning unit,
// bounded by 0 <= x <= 1.
func (b *Builder) CreateDecisionVariables() error {
	for _, u := range b.cons.Units() {
		if _, ok := b.x[u.ID]; ok {
			continue
		}
		v, err := b.solver.NewBinary(fmt.Sprintf("x_%d", u.ID))
		if err != nil {
			return eris.Wrapf(err, "rsp: create variable for unit %d", u.ID)
		}
		var e milp.Expr
		e.Add(v, 1)
		if err := b.solver.AddConstraint(e, milp.LessEqual, 1); err != nil {
			return eris.Wrapf(err, "rsp: upper bound for unit %d", u.ID)
		}
		if err := b.solver.AddConstraint(e, milp.GreaterEqual, 0); err != nil {
			return eris.Wrapf(err, "rsp: lower bound for unit %d", u.ID)
		}
		b.x[u.ID] = v
		b.order = append(b.order, u.ID)
	}
	return nil
}

func (b *Builder) unitVar(id int64) (milp.Var, error) {
	v, ok := b.x[id]
	if !ok {
		return 0, model.NewLookupError("planning unit", id, 0)
	}
	return v, nil
}

// conjunction returns the variable z_<i>_<j> = x_i AND x_j, creating it once.
func (b *Builder) conjunction(i, j int64) (milp.Var, error) {
	xi, err := b.unitVar(i)
	if err != nil {
		return 0, err
	}
	if i == j {
		return xi, nil
	}
	name := fmt.Sprintf("z_%d_%d", i, j)
	if v, ok := b.z[name]; ok {
		return v, nil
	}
	xj, err := b.unitVar(j)
	if err != nil {
		return 0, err
	}
	v, err := b.solver.NewBinary(name)
	if err != nil {
		return 0, eris.Wrapf(err, "rsp: create %s", name)
	}
	if err := b.solver.AddConjunction(v, xi, xj); err != nil {
		return 0, eris.Wrapf(err, "rsp: link %s", name)
	}
	b.z[name] = v
	return v, nil
}

// AddFeatureCoverageConstraints requires the selected amount of every
// targeted feature to reach its target.
func (b *Builder) AddFeatureCoverageConstraints() error {
	for _, fid := range b.cons.TargetedFeatures() {
		target, err := b.cons.Target(fid)
		if err != nil {
			return err
		}
		var e milp.Expr
		for _, a := range b.cons.Amounts(fid) {
			v, err := b.unitVar(a.UnitID)
			if err != nil {
				return err
			}
			e.Add(v, a.Value)
		}
		if err := b.solver.AddConstraint(e, milp.GreaterEqual, target); err != nil {
			return eris.Wrapf(err, "rsp: coverage of feature %d", fid)
		}
	}
	return nil
}

// AddConnectivityTargetConstraints adds, for every dataset and metric, a
// lower bound on the selected metric value: the configured weight itself
// when it is an absolute target, otherwise weight times the metric total.
func (b *Builder) AddConnectivityTargetConstraints() error {
	cfg := b.conn.Config()
	for _, d := range b.conn.Datasets() {
		for _, kind := range d.Kinds() {
			m, err := d.Metric(kind)
			if err != nil {
				return err
			}
			table := m.Table()

			target := cfg.Weight
			if !cfg.IsTarget {
				target = cfg.Weight * table.Stats().Sum
			}
			m.SetTarget(target)

			e, err := b.metricExpr(table, 1)
			if err != nil {
				return err
			}
			if err := b.solver.AddConstraint(e, milp.GreaterEqual, target); err != nil {
				return eris.Wrapf(err, "rsp: %s target on dataset %s", kind, d.Name())
			}
		}
	}
	return nil
}

// AddCostBoundConstraints bounds total selected cost by MaxCost and, when
// set, MinCost. MaxCost is required.
func (b *Builder) AddCostBoundConstraints() error {
	if b.cons.MaxCost == nil {
		return model.NewConfigError("rsp: strategy %s requires a maximum cost", b.strategy)
	}
	cost, err := b.costExpr(1)
	if err != nil {
		return err
	}
	if err := b.solver.AddConstraint(cost, milp.LessEqual, *b.cons.MaxCost); err != nil {
		return eris.Wrap(err, "rsp: max cost")
	}
	if b.cons.MinCost != nil {
		if err := b.solver.AddConstraint(cost, milp.GreaterEqual, *b.cons.MinCost); err != nil {
			return eris.Wrap(err, "rsp: min cost")
		}
	}
	return nil
}

// SetObjective installs the strategy's objective.
//
//   - RSP, RSP-CF: minimize total cost.
//   - RSP-CC: minimize cost_weight * cost - weight * connectivity, where
//     connectivity values are pooled across datasets before normalization.
//   - RSP-Con: maximize connectivity normalized per dataset.
//   - RSP-BLM: minimize cost plus the boundary-length penalty.
func (b *Builder) SetObjective() error {
	var (
		obj milp.Expr
		err error
	)
	b.sense = milp.Minimize
	switch b.strategy {
	case model.StrategyRSP, model.StrategyRSPCF:
		obj, err = b.costExpr(1)
	case model.StrategyRSPCC:
		obj, err = b.blendedExpr()
	case model.StrategyRSPCon:
		b.sense = milp.Maximize
		obj, err = b.perDatasetExpr()
	case model.StrategyRSPBLM:
		obj, err = b.boundaryExpr()
	}
	if err != nil {
		return err
	}
	if err := b.solver.SetObjective(obj, b.sense); err != nil {
		return eris.Wrap(err, "rsp: set objective")
	}
	return nil
}

func (b *Builder) costExpr(weight float64) (milp.Expr, error) {
	var e milp.Expr
	for _, id := range b.order {
		u, err := b.cons.Unit(id)
		if err != nil {
			return e, err
		}
		e.Add(b.x[id], weight*u.Cost)
	}
	return e, nil
}

// metricExpr maps node rows to coef*value*x_u and pairwise rows to coef*value*z_ij.
func (b *Builder) metricExpr(t *metric.Table, coef float64) (milp.Expr, error) {
	var e milp.Expr
	if err := b.appendMetric(&e, t, coef); err != nil {
		return e, err
	}
	return e, nil
}

func (b *Builder) appendMetric(e *milp.Expr, t *metric.Table, coef float64) error {
	for _, r := range t.Rows() {
		if r.Value == 0 {
			continue
		}
		var (
			v   milp.Var
			err error
		)
		if t.Pairwise() {
			v, err = b.conjunction(r.From, r.To)
		} else {
			v, err = b.unitVar(r.From)
		}
		if err != nil {
			return err
		}
		e.Add(v, coef*r.Value)
	}
	return nil
}

func (b *Builder) blendedExpr() (milp.Expr, error) {
	cfg := b.conn.Config()
	obj, err := b.costExpr(cfg.CostWeight)
	if err != nil {
		return obj, err
	}
	for _, kind := range b.conn.Kinds() {
		pooled, err := b.pooled(kind)
		if err != nil {
			return obj, err
		}
		if err := b.appendMetric(&obj, pooled.Normalize(), -cfg.Weight); err != nil {
			return obj, err
		}
	}
	return obj, nil
}

// pooled sums the current values of kind per unit, or per pair, across datasets.
func (b *Builder) pooled(kind model.MetricKind) (*metric.Table, error) {
	tables, err := b.conn.ValuesAcrossDatasets(kind)
	if err != nil {
		return nil, err
	}
	sums := make(map[metric.Pair]float64)
	for _, t := range tables {
		for _, r := range t.Rows() {
			sums[metric.Pair{From: r.From, To: r.To}] += r.Value
		}
	}
	rows := make([]metric.Row, 0, len(sums))
	for p, v := range sums {
		rows = append(rows, metric.Row{From: p.From, To: p.To, Value: v})
	}
	return metric.NewTable(kind.IsPairwise(), rows), nil
}

func (b *Builder) perDatasetExpr() (milp.Expr, error) {
	var obj milp.Expr
	for _, kind := range b.conn.Kinds() {
		tables, err := b.conn.NormalizedValuesAcrossDatasets(kind)
		if err != nil {
			return obj, err
		}
		for _, t := range tables {
			if err := b.appendMetric(&obj, t, 1); err != nil {
				return obj, err
			}
		}
	}
	return obj, nil
}

func (b *Builder) boundaryExpr() (milp.Expr, error) {
	obj, err := b.costExpr(1)
	if err != nil {
		return obj, err
	}
	blm := b.cons.BLMWeight
	for _, bd := range b.cons.Boundaries() {
		xi, err := b.unitVar(bd.ID1)
		if err != nil {
			return obj, err
		}
		z, err := b.conjunction(bd.ID1, bd.ID2)
		if err != nil {
			return obj, err
		}
		obj.Add(xi, blm*bd.Length)
		obj.Add(z, -blm*bd.Length)
	}
	return obj, nil
}
