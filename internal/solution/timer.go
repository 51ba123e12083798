package solution

import "time"

// Timer records setup and solver wall-clock spans of a run.
type Timer struct {
	now         func() time.Time
	setupStart  time.Time
	setupStop   time.Time
	solverStart time.Time
	solverStop  time.Time
}

// NewTimer returns a timer using the wall clock.
func NewTimer() *Timer {
	return &Timer{now: time.Now}
}

// StartSetup marks the beginning of input loading and model building.
func (t *Timer) StartSetup() { t.setupStart = t.now() }

// StopSetup marks the end of the run.
func (t *Timer) StopSetup() { t.setupStop = t.now() }

// StartSolver marks the beginning of optimization.
func (t *Timer) StartSolver() { t.solverStart = t.now() }

// StopSolver marks the end of optimization.
func (t *Timer) StopSolver() { t.solverStop = t.now() }

// Stop ends both spans.
func (t *Timer) Stop() {
	now := t.now()
	if t.solverStop.IsZero() && !t.solverStart.IsZero() {
		t.solverStop = now
	}
	t.setupStop = now
}

// SolverTime is the duration of optimization.
func (t *Timer) SolverTime() time.Duration {
	return span(t.solverStart, t.solverStop)
}

// TotalTime is the duration of the whole run.
func (t *Timer) TotalTime() time.Duration {
	return span(t.setupStart, t.setupStop)
}

func span(start, stop time.Time) time.Duration {
	if start.IsZero() || stop.IsZero() {
		return 0
	}
	return stop.Sub(start)
}
