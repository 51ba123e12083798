// Package milp defines a minimal interface to binary integer programming
// solvers. HiGHS is the default backend; an in-process branch-and-bound
// solver serves builds without cgo.
package milp

import (
	"context"
	"time"
)

// Var is a handle to a decision variable, dense from zero in creation order.
type Var int

// Term is a coefficient applied to a variable.
type Term struct {
	Var  Var
	Coef float64
}

// Expr is a linear expression: the sum of its terms plus a constant.
type Expr struct {
	Terms    []Term
	Constant float64
}

// Add appends coef * v. Repeated variables are summed by the solver.
func (e *Expr) Add(v Var, coef float64) {
	e.Terms = append(e.Terms, Term{Var: v, Coef: coef})
}

// AddConstant adds c to the constant part.
func (e *Expr) AddConstant(c float64) {
	e.Constant += c
}

// Len returns the number of terms.
func (e *Expr) Len() int { return len(e.Terms) }

// Relation is the comparison of a linear constraint.
type Relation int

const (
	LessEqual Relation = iota
	GreaterEqual
	Equal
)

func (r Relation) String() string {
	switch r {
	case LessEqual:
		return "<="
	case GreaterEqual:
		return ">="
	case Equal:
		return "=="
	}
	return "?"
}

// Sense is the optimization direction.
type Sense int

const (
	Minimize Sense = iota
	Maximize
)

func (s Sense) String() string {
	if s == Maximize {
		return "maximize"
	}
	return "minimize"
}

// Status describes how an optimization ended.
type Status string

const (
	StatusOptimal     Status = "optimal"
	StatusTimeLimit   Status = "time_limit"
	StatusInterrupted Status = "interrupted"
	StatusInfeasible  Status = "infeasible"
)

// Params are solver parameters. Zero values leave the solver default.
type Params struct {
	TimeLimit     time.Duration
	MIPGap        float64
	Threads       int
	MemoryLimitGB float64
	LogPath       string
}

// Result is the outcome of Optimize.
type Result struct {
	Status        Status
	SolutionCount int
	Objective     float64
	Gap           float64
	// Values holds the incumbent, indexed by Var. Nil when SolutionCount is zero.
	Values []float64
	Nodes  int
}

// Value returns the incumbent value of v.
func (r *Result) Value(v Var) float64 {
	if r == nil || int(v) >= len(r.Values) || v < 0 {
		return 0
	}
	return r.Values[v]
}

// Solver builds and solves a binary integer program.
type Solver interface {
	// NewBinary creates a {0,1} variable with a unique name.
	NewBinary(name string) (Var, error)
	// AddConstraint adds expr rel rhs.
	AddConstraint(expr Expr, rel Relation, rhs float64) error
	// AddConjunction constrains z to equal the logical AND of operands.
	AddConjunction(z Var, operands ...Var) error
	// SetObjective replaces the objective.
	SetObjective(expr Expr, sense Sense) error
	// Optimize solves the model.
	Optimize(ctx context.Context, p Params) (*Result, error)
	// Close releases solver resources.
	Close() error
}

// AddConjunctionFallback encodes z = AND(operands) with linear inequalities:
// z <= x for every operand and z >= sum(x) - (n - 1).
func AddConjunctionFallback(s Solver, z Var, operands ...Var) error {
	if len(operands) == 0 {
		return errNoOperands
	}
	var lower Expr
	lower.Add(z, 1)
	for _, x := range operands {
		var upper Expr
		upper.Add(z, 1)
		upper.Add(x, -1)
		if err := s.AddConstraint(upper, LessEqual, 0); err != nil {
			return err
		}
		lower.Add(x, -1)
	}
	return s.AddConstraint(lower, GreaterEqual, float64(1-len(operands)))
}
