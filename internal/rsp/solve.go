package rsp

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/reserve-cli/internal/connectivity"
	"github.com/sells-group/reserve-cli/internal/conservation"
	"github.com/sells-group/reserve-cli/internal/milp"
	"github.com/sells-group/reserve-cli/internal/model"
	"github.com/sells-group/reserve-cli/internal/solution"
)

// Solve optimizes the built program. A unit is selected when its variable
// is at least 0.5. No incumbent is an InfeasibleError.
func (b *Builder) Solve(ctx context.Context, p milp.Params) (*model.Solution, error) {
	res, err := b.solver.Optimize(ctx, p)
	if err != nil {
		return nil, eris.Wrap(err, "rsp: optimize")
	}
	if res.SolutionCount < 1 {
		return nil, &model.InfeasibleError{Status: string(res.Status)}
	}

	sol := &model.Solution{
		Selected:  make(map[int64]bool, len(b.order)),
		Objective: res.Objective,
		Gap:       res.Gap,
		Status:    string(res.Status),
	}
	var n int
	for _, id := range b.order {
		on := res.Value(b.x[id]) >= 0.5
		sol.Selected[id] = on
		if on {
			n++
		}
	}
	zap.L().Info("rsp: solved",
		zap.String("strategy", string(b.strategy)),
		zap.String("status", sol.Status),
		zap.Float64("objective", sol.Objective),
		zap.Float64("gap", sol.Gap),
		zap.Int("selected", n),
	)
	return sol, nil
}

// SolverFactory creates a fresh solver for one run.
type SolverFactory func() (milp.Solver, error)

// DefaultSolver returns HiGHS, or branch and bound in builds without cgo.
func DefaultSolver() (milp.Solver, error) {
	return milp.New(), nil
}

// Run builds and solves one program on a fresh solver and closes the solver
// on every path. timer may be nil.
func Run(ctx context.Context, newSolver SolverFactory, strategy model.Strategy, cons *conservation.Model, conn *connectivity.Model, p milp.Params, timer *solution.Timer) (sol *model.Solution, err error) {
	if newSolver == nil {
		newSolver = DefaultSolver
	}
	s, err := newSolver()
	if err != nil {
		return nil, eris.Wrap(err, "rsp: create solver")
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = eris.Wrap(cerr, "rsp: close solver")
		}
	}()

	b, err := NewBuilder(s, strategy, cons, conn)
	if err != nil {
		return nil, err
	}
	if err := b.Build(); err != nil {
		return nil, err
	}

	if timer != nil {
		timer.StartSolver()
	}
	sol, err = b.Solve(ctx, p)
	if timer != nil {
		timer.StopSolver()
	}
	return sol, err
}
