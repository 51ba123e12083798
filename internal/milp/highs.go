//go:build cgo

package milp

import (
	"context"
	"math"
	"time"

	highs "github.com/bartolsthoorn/gohighs/highs"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// integerColumn is the HiGHS integer variable type (kHighsVarTypeInteger).
const integerColumn highs.VariableType = 1

// HiGHS builds a binary program column by column and solves it with the
// HiGHS MIP solver. Every variable is an integer column bounded to [0, 1].
type HiGHS struct {
	registry
	model highs.Model
}

// NewHiGHS returns an empty model.
func NewHiGHS() *HiGHS {
	return &HiGHS{registry: newRegistry()}
}

// New returns the default solver for this build.
func New() Solver { return NewHiGHS() }

// NumConstraints returns the number of rows.
func (s *HiGHS) NumConstraints() int { return len(s.model.RowLower) }

// NewBinary implements Solver.
func (s *HiGHS) NewBinary(name string) (Var, error) {
	v, err := s.add(name)
	if err != nil {
		return 0, err
	}
	s.model.ColCosts = append(s.model.ColCosts, 0)
	s.model.ColLower = append(s.model.ColLower, 0)
	s.model.ColUpper = append(s.model.ColUpper, 1)
	s.model.VarTypes = append(s.model.VarTypes, integerColumn)
	return v, nil
}

// AddConstraint implements Solver. Each constraint is one row with a lower
// and an upper bound.
func (s *HiGHS) AddConstraint(expr Expr, rel Relation, rhs float64) error {
	if err := s.open(); err != nil {
		return err
	}
	terms, err := s.merge(expr.Terms)
	if err != nil {
		return err
	}
	rhs -= expr.Constant

	lower, upper := math.Inf(-1), math.Inf(1)
	switch rel {
	case LessEqual:
		upper = rhs
	case GreaterEqual:
		lower = rhs
	case Equal:
		lower, upper = rhs, rhs
	default:
		return eris.Errorf("milp: unknown relation %d", rel)
	}

	cols := make([]int, len(terms))
	vals := make([]float64, len(terms))
	for i, t := range terms {
		cols[i] = int(t.Var)
		vals[i] = t.Coef
	}
	s.model.AddSparseRow(lower, cols, vals, upper)
	return nil
}

// AddConjunction implements Solver with the linear fallback.
func (s *HiGHS) AddConjunction(z Var, operands ...Var) error {
	return AddConjunctionFallback(s, z, operands...)
}

// SetObjective implements Solver.
func (s *HiGHS) SetObjective(expr Expr, sense Sense) error {
	if err := s.open(); err != nil {
		return err
	}
	terms, err := s.merge(expr.Terms)
	if err != nil {
		return err
	}
	costs := make([]float64, len(s.varNames))
	for _, t := range terms {
		costs[t.Var] = t.Coef
	}
	s.model.ColCosts = costs
	s.model.Offset = expr.Constant
	s.model.Maximize = sense == Maximize
	return nil
}

// Close implements Solver.
func (s *HiGHS) Close() error {
	s.closed = true
	s.model = highs.Model{}
	return nil
}

// Optimize implements Solver. A context deadline shortens the time limit;
// HiGHS cannot be interrupted once it is running.
func (s *HiGHS) Optimize(ctx context.Context, p Params) (*Result, error) {
	if err := s.open(); err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return &Result{Status: StatusInterrupted}, nil
	}

	limit := p.TimeLimit
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); limit <= 0 || left < limit {
			limit = max(left, time.Millisecond)
		}
	}

	opts := []highs.SolveOption{
		highs.WithOutput(p.LogPath != ""),
		highs.WithMIPRelGap(p.MIPGap),
	}
	if p.LogPath != "" {
		opts = append(opts, highs.WithStringOption("log_file", p.LogPath))
	}
	if limit > 0 {
		opts = append(opts, highs.WithTimeLimit(limit.Seconds()))
	}
	if p.Threads > 0 {
		opts = append(opts, highs.WithThreads(p.Threads))
	}

	log := zap.L()
	if p.MemoryLimitGB > 0 {
		log.Debug("milp: HiGHS has no memory limit", zap.Float64("memory_limit_gb", p.MemoryLimitGB))
	}
	log.Info("milp: optimize",
		zap.String("backend", "highs"),
		zap.Int("vars", s.NumVars()),
		zap.Int("rows", s.NumConstraints()),
		zap.Bool("maximize", s.model.Maximize),
		zap.Duration("time_limit", limit),
		zap.Float64("mip_gap", p.MIPGap),
	)

	start := time.Now()
	sol, err := s.model.Solve(opts...)
	if err != nil {
		return nil, eris.Wrap(err, "milp: highs solve")
	}

	res := &Result{Status: StatusOptimal}
	switch {
	case sol.IsInfeasible():
		res.Status = StatusInfeasible
	case sol.IsUnbounded():
		return nil, eris.New("milp: highs reports an unbounded program")
	case sol.IsTimeLimit():
		res.Status = StatusTimeLimit
	case !sol.IsOptimal():
		res.Status = StatusInterrupted
	}

	if res.Status == StatusInfeasible || !sol.HasSolution() {
		if res.Status == StatusOptimal {
			res.Status = StatusInfeasible
		}
		log.Info("milp: no solution", zap.String("status", string(res.Status)))
		return res, nil
	}

	res.SolutionCount = 1
	res.Objective = sol.Objective
	res.Values = make([]float64, s.NumVars())
	for i := range res.Values {
		res.Values[i] = math.Round(sol.Value(i))
	}
	res.Gap = s.gap(res, p)

	log.Info("milp: done",
		zap.String("status", string(res.Status)),
		zap.Float64("objective", res.Objective),
		zap.Float64("gap", res.Gap),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// gap bounds the relative gap with the linear relaxation. A proven optimum
// is within the requested MIP gap.
func (s *HiGHS) gap(res *Result, p Params) float64 {
	if res.Status == StatusOptimal && p.MIPGap <= 0 {
		return 0
	}
	relaxed := s.model
	relaxed.VarTypes = nil
	lp, err := relaxed.Solve(highs.WithOutput(false))
	if err != nil || !lp.IsOptimal() {
		return math.Inf(1)
	}
	g := relGap(res.Objective, lp.Objective)
	if res.Status == StatusOptimal {
		g = math.Min(g, p.MIPGap)
	}
	return g
}
