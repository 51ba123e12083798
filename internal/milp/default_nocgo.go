//go:build !cgo

package milp

// New returns the default solver for this build. HiGHS needs cgo, so builds
// without it fall back to branch and bound.
func New() Solver { return NewBranchAndBound() }
