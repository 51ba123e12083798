package model

import "time"

// RunStatus represents the current state of an optimization run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run represents a single optimization run recorded in the store.
type Run struct {
	ID        string            `json:"id"`
	Strategy  Strategy          `json:"strategy"`
	Args      map[string]string `json:"args,omitempty"`
	Status    RunStatus         `json:"status"`
	Result    *RunResult        `json:"result,omitempty"`
	Error     string            `json:"error,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// RunResult holds the final outcome of a run.
type RunResult struct {
	Status     string  `json:"status"`
	Objective  float64 `json:"objective"`
	Gap        float64 `json:"gap"`
	TotalCost  float64 `json:"total_cost"`
	Selected   []int64 `json:"selected"`
	SolverTime float64 `json:"solver_time"`
	TotalTime  float64 `json:"total_time"`
	OutputDir  string  `json:"output_dir,omitempty"`
}

// RunFilter narrows ListRuns results.
type RunFilter struct {
	Status   RunStatus
	Strategy Strategy
	Limit    int
	Offset   int
}
