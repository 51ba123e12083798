// Package mocks provides test doubles for the milp solver.
package mocks

import (
	"context"

	milp "github.com/sells-group/reserve-cli/internal/milp"
	mock "github.com/stretchr/testify/mock"
)

// MockSolver is a mock type for the Solver interface.
type MockSolver struct {
	mock.Mock
}

// NewBinary provides a mock function with given fields: name
func (_m *MockSolver) NewBinary(name string) (milp.Var, error) {
	ret := _m.Called(name)

	if len(ret) == 0 {
		panic("no return value specified for NewBinary")
	}

	var r0 milp.Var
	var r1 error
	if rf, ok := ret.Get(0).(func(string) (milp.Var, error)); ok {
		return rf(name)
	}
	if rf, ok := ret.Get(0).(func(string) milp.Var); ok {
		r0 = rf(name)
	} else {
		r0 = ret.Get(0).(milp.Var)
	}

	if rf, ok := ret.Get(1).(func(string) error); ok {
		r1 = rf(name)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// AddConstraint provides a mock function with given fields: expr, rel, rhs
func (_m *MockSolver) AddConstraint(expr milp.Expr, rel milp.Relation, rhs float64) error {
	ret := _m.Called(expr, rel, rhs)

	if len(ret) == 0 {
		panic("no return value specified for AddConstraint")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(milp.Expr, milp.Relation, float64) error); ok {
		r0 = rf(expr, rel, rhs)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// AddConjunction provides a mock function with given fields: z, operands
func (_m *MockSolver) AddConjunction(z milp.Var, operands ...milp.Var) error {
	ret := _m.Called(z, operands)

	if len(ret) == 0 {
		panic("no return value specified for AddConjunction")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(milp.Var, ...milp.Var) error); ok {
		r0 = rf(z, operands...)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// SetObjective provides a mock function with given fields: expr, sense
func (_m *MockSolver) SetObjective(expr milp.Expr, sense milp.Sense) error {
	ret := _m.Called(expr, sense)

	if len(ret) == 0 {
		panic("no return value specified for SetObjective")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(milp.Expr, milp.Sense) error); ok {
		r0 = rf(expr, sense)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// Optimize provides a mock function with given fields: ctx, p
func (_m *MockSolver) Optimize(ctx context.Context, p milp.Params) (*milp.Result, error) {
	ret := _m.Called(ctx, p)

	if len(ret) == 0 {
		panic("no return value specified for Optimize")
	}

	var r0 *milp.Result
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, milp.Params) (*milp.Result, error)); ok {
		return rf(ctx, p)
	}
	if rf, ok := ret.Get(0).(func(context.Context, milp.Params) *milp.Result); ok {
		r0 = rf(ctx, p)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*milp.Result)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, milp.Params) error); ok {
		r1 = rf(ctx, p)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Close provides a mock function with no fields
func (_m *MockSolver) Close() error {
	ret := _m.Called()

	if len(ret) == 0 {
		panic("no return value specified for Close")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func() error); ok {
		r0 = rf()
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// NewMockSolver creates a new instance of MockSolver.
func NewMockSolver(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockSolver {
	m := &MockSolver{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
