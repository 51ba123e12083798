package milp

import (
	"context"
	"errors"
	"math"
	"slices"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

const (
	feasTol = 1e-6
	intTol  = 1e-6
	lpTol   = 1e-10
)

var errNoOperands = eris.New("milp: conjunction needs at least one operand")

// row is a constraint in sum(terms) <= rhs form.
type row struct {
	terms []Term
	rhs   float64
}

// BranchAndBound solves binary programs with depth-first branch and bound
// over gonum simplex relaxations. It is the fallback for builds without cgo,
// where HiGHS cannot be linked. It is single-threaded and ignores Threads
// and MemoryLimitGB.
type BranchAndBound struct {
	registry
	rows     []row
	obj      []float64
	objConst float64
	sense    Sense
}

// NewBranchAndBound returns an empty model.
func NewBranchAndBound() *BranchAndBound {
	return &BranchAndBound{registry: newRegistry()}
}

// NumConstraints returns the number of rows in <= form.
func (s *BranchAndBound) NumConstraints() int { return len(s.rows) }

// NewBinary implements Solver.
func (s *BranchAndBound) NewBinary(name string) (Var, error) {
	v, err := s.add(name)
	if err != nil {
		return 0, err
	}
	s.obj = append(s.obj, 0)
	return v, nil
}

// AddConstraint implements Solver. Rows are stored in <= form; equalities
// become two rows.
func (s *BranchAndBound) AddConstraint(expr Expr, rel Relation, rhs float64) error {
	if err := s.open(); err != nil {
		return err
	}
	terms, err := s.merge(expr.Terms)
	if err != nil {
		return err
	}
	rhs -= expr.Constant

	switch rel {
	case LessEqual:
		s.rows = append(s.rows, row{terms: terms, rhs: rhs})
	case GreaterEqual:
		s.rows = append(s.rows, row{terms: negate(terms), rhs: -rhs})
	case Equal:
		s.rows = append(s.rows, row{terms: terms, rhs: rhs}, row{terms: negate(terms), rhs: -rhs})
	default:
		return eris.Errorf("milp: unknown relation %d", rel)
	}
	return nil
}

// AddConjunction implements Solver with the linear fallback.
func (s *BranchAndBound) AddConjunction(z Var, operands ...Var) error {
	return AddConjunctionFallback(s, z, operands...)
}

// SetObjective implements Solver.
func (s *BranchAndBound) SetObjective(expr Expr, sense Sense) error {
	if err := s.open(); err != nil {
		return err
	}
	terms, err := s.merge(expr.Terms)
	if err != nil {
		return err
	}
	s.obj = make([]float64, len(s.varNames))
	for _, t := range terms {
		s.obj[t.Var] = t.Coef
	}
	s.objConst = expr.Constant
	s.sense = sense
	return nil
}

// Close implements Solver.
func (s *BranchAndBound) Close() error {
	s.closed = true
	s.rows = nil
	return nil
}

func negate(terms []Term) []Term {
	out := make([]Term, len(terms))
	for i, t := range terms {
		out[i] = Term{Var: t.Var, Coef: -t.Coef}
	}
	return out
}

// node is an open subproblem; fixed holds -1 for free variables.
type node struct {
	fixed []int8
	bound float64
}

// Optimize implements Solver.
func (s *BranchAndBound) Optimize(ctx context.Context, p Params) (*Result, error) {
	if err := s.open(); err != nil {
		return nil, err
	}

	log, closeLog, err := solverLogger(p.LogPath)
	if err != nil {
		return nil, err
	}
	defer closeLog()
	if p.Threads > 0 || p.MemoryLimitGB > 0 {
		log.Debug("milp: threads and memory limit are not used by branch and bound",
			zap.Int("threads", p.Threads),
			zap.Float64("memory_limit_gb", p.MemoryLimitGB),
		)
	}

	// Work in minimization form.
	c := slices.Clone(s.obj)
	if s.sense == Maximize {
		for i := range c {
			c[i] = -c[i]
		}
	}

	start := time.Now()
	n := len(s.varNames)
	root := node{fixed: make([]int8, n), bound: math.Inf(-1)}
	for i := range root.fixed {
		root.fixed[i] = -1
	}

	stack := []node{root}
	best := math.Inf(1)
	var incumbent []float64
	res := &Result{Status: StatusOptimal}

	log.Info("milp: optimize",
		zap.Int("vars", n),
		zap.Int("rows", len(s.rows)),
		zap.String("sense", s.sense.String()),
		zap.Duration("time_limit", p.TimeLimit),
		zap.Float64("mip_gap", p.MIPGap),
	)

	for len(stack) > 0 {
		if ctx.Err() != nil {
			res.Status = StatusInterrupted
			break
		}
		if p.TimeLimit > 0 && time.Since(start) > p.TimeLimit {
			res.Status = StatusTimeLimit
			break
		}
		if incumbent != nil && p.MIPGap > 0 && relGap(best, lowerBound(stack, best)) <= p.MIPGap {
			log.Info("milp: gap reached", zap.Float64("gap", relGap(best, lowerBound(stack, best))))
			break
		}

		nd := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if nd.bound >= best-pruneTol(best) {
			continue
		}
		res.Nodes++

		obj, x, feasible, err := s.relax(c, nd.fixed)
		if err != nil {
			return nil, err
		}
		if !feasible || obj >= best-pruneTol(best) {
			continue
		}

		j := mostFractional(x, nd.fixed)
		if j < 0 {
			sol := roundAll(x)
			if s.satisfies(sol) {
				val := dot(c, sol) + minConst(s)
				if val < best {
					best = val
					incumbent = sol
					res.SolutionCount++
					log.Info("milp: new incumbent",
						zap.Float64("objective", s.external(best)),
						zap.Int("nodes", res.Nodes),
						zap.Duration("elapsed", time.Since(start)),
					)
				}
				continue
			}
			// Rounding within intTol broke a row: keep branching.
			if j = leastIntegral(x, nd.fixed); j < 0 {
				continue
			}
		}

		up := slices.Clone(nd.fixed)
		up[j] = 1
		down := slices.Clone(nd.fixed)
		down[j] = 0
		// The child nearest the relaxed value is explored first.
		if x[j] >= 0.5 {
			stack = append(stack, node{fixed: down, bound: obj}, node{fixed: up, bound: obj})
		} else {
			stack = append(stack, node{fixed: up, bound: obj}, node{fixed: down, bound: obj})
		}
	}

	if incumbent == nil {
		if res.Status == StatusOptimal {
			res.Status = StatusInfeasible
		}
		log.Info("milp: no solution", zap.String("status", string(res.Status)), zap.Int("nodes", res.Nodes))
		return res, nil
	}

	res.Values = incumbent
	res.Objective = s.external(best)
	res.Gap = relGap(best, lowerBound(stack, best))
	log.Info("milp: done",
		zap.String("status", string(res.Status)),
		zap.Float64("objective", res.Objective),
		zap.Float64("gap", res.Gap),
		zap.Int("nodes", res.Nodes),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// relax solves the linear relaxation with the fixed variables substituted
// out. Every free variable gets an x <= 1 row and every row its own slack,
// so the standard-form matrix has full row rank and no zero column.
func (s *BranchAndBound) relax(c []float64, fixed []int8) (float64, []float64, bool, error) {
	n := len(fixed)
	x := make([]float64, n)
	col := make([]int, n)
	var free []int
	constObj := minConst(s)
	for j, f := range fixed {
		col[j] = -1
		if f < 0 {
			col[j] = len(free)
			free = append(free, j)
			continue
		}
		x[j] = float64(f)
		constObj += c[j] * x[j]
	}

	type active struct {
		terms []Term
		rhs   float64
	}
	var rows []active
	for _, r := range s.rows {
		rhs := r.rhs
		var terms []Term
		for _, t := range r.terms {
			if col[t.Var] < 0 {
				rhs -= t.Coef * x[t.Var]
				continue
			}
			terms = append(terms, t)
		}
		if len(terms) == 0 {
			if rhs < -feasTol {
				return 0, nil, false, nil
			}
			continue
		}
		rows = append(rows, active{terms: terms, rhs: rhs})
	}
	if len(free) == 0 {
		return constObj, x, true, nil
	}

	nf := len(free)
	m := len(rows) + nf
	A := mat.NewDense(m, nf+m, nil)
	b := make([]float64, m)
	for i, r := range rows {
		for _, t := range r.terms {
			A.Set(i, col[t.Var], t.Coef)
		}
		A.Set(i, nf+i, 1)
		b[i] = r.rhs
	}
	for k := range free {
		i := len(rows) + k
		A.Set(i, k, 1)
		A.Set(i, nf+i, 1)
		b[i] = 1
	}
	cost := make([]float64, nf+m)
	for k, j := range free {
		cost[k] = c[j]
	}

	opt, sol, err := lp.Simplex(cost, A, b, lpTol, nil)
	switch {
	case errors.Is(err, lp.ErrInfeasible):
		return 0, nil, false, nil
	case err != nil:
		return 0, nil, false, eris.Wrap(err, "milp: simplex")
	}
	for k, j := range free {
		x[j] = math.Min(1, math.Max(0, sol[k]))
	}
	return opt + constObj, x, true, nil
}

// satisfies checks every row against a 0/1 assignment.
func (s *BranchAndBound) satisfies(x []float64) bool {
	for _, r := range s.rows {
		var lhs float64
		for _, t := range r.terms {
			lhs += t.Coef * x[t.Var]
		}
		if lhs > r.rhs+feasTol*math.Max(1, math.Abs(r.rhs)) {
			return false
		}
	}
	return true
}

// external converts a minimization-form value back to the model sense.
func (s *BranchAndBound) external(v float64) float64 {
	if s.sense == Maximize {
		return -v
	}
	return v
}

func minConst(s *BranchAndBound) float64 {
	if s.sense == Maximize {
		return -s.objConst
	}
	return s.objConst
}

func mostFractional(x []float64, fixed []int8) int {
	best, idx := intTol, -1
	for j, f := range fixed {
		if f >= 0 {
			continue
		}
		if d := math.Abs(x[j] - math.Round(x[j])); d > best {
			best, idx = d, j
		}
	}
	return idx
}

// leastIntegral returns the free variable farthest from an integer, or -1
// when every variable is fixed.
func leastIntegral(x []float64, fixed []int8) int {
	best, idx := -1.0, -1
	for j, f := range fixed {
		if f >= 0 {
			continue
		}
		if d := math.Abs(x[j] - math.Round(x[j])); d > best {
			best, idx = d, j
		}
	}
	return idx
}

func roundAll(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = math.Round(v)
	}
	return out
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func pruneTol(best float64) float64 {
	if math.IsInf(best, 1) {
		return 0
	}
	return 1e-9 * math.Max(1, math.Abs(best))
}

// lowerBound is the weakest bound among open nodes, capped by the incumbent.
func lowerBound(stack []node, best float64) float64 {
	lb := best
	for _, nd := range stack {
		lb = math.Min(lb, nd.bound)
	}
	return lb
}

// relGap is |incumbent - bound| / |incumbent|.
func relGap(incumbent, bound float64) float64 {
	diff := math.Abs(incumbent - bound)
	if diff <= 1e-12 {
		return 0
	}
	if math.Abs(incumbent) < 1e-12 || math.IsInf(bound, 0) {
		return math.Inf(1)
	}
	return diff / math.Abs(incumbent)
}

// solverLogger returns the global logger, or a JSON file logger when path is set.
func solverLogger(path string) (*zap.Logger, func(), error) {
	if path == "" {
		return zap.L(), func() {}, nil
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}
	l, err := cfg.Build()
	if err != nil {
		return nil, nil, eris.Wrapf(err, "milp: open solver log %s", path)
	}
	return l, func() { _ = l.Sync() }, nil
}
