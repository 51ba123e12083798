package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/reserve-cli/internal/model"
)

func sampleRuns() []model.Run {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return []model.Run{
		{
			ID:        "aaaaaaaa-1111-2222-3333-444444444444",
			Strategy:  model.StrategyRSP,
			Status:    model.RunStatusComplete,
			Result:    &model.RunResult{Objective: 3, Selected: []int64{1, 2}, SolverTime: 2},
			CreatedAt: base,
			UpdatedAt: base.Add(4 * time.Second),
		},
		{
			ID:        "bbbbbbbb-1111-2222-3333-444444444444",
			Strategy:  model.StrategyRSPCF,
			Status:    model.RunStatusComplete,
			Result:    &model.RunResult{Objective: 6, TotalCost: 6, Selected: []int64{2, 3}, SolverTime: 4},
			CreatedAt: base,
			UpdatedAt: base.Add(8 * time.Second),
		},
		{
			ID:        "cccccccc",
			Strategy:  model.StrategyRSPCF,
			Status:    model.RunStatusFailed,
			Error:     "model is infeasible",
			CreatedAt: base,
			UpdatedAt: base,
		},
		{
			ID:        "dddd",
			Strategy:  model.StrategyRSPBLM,
			Status:    model.RunStatusRunning,
			CreatedAt: base,
			UpdatedAt: base,
		},
	}
}

func TestComputeRunStats(t *testing.T) {
	s := computeRunStats(sampleRuns())

	assert.Equal(t, 4, s.Total)
	require.Len(t, s.ByStrategy, 3)

	cf := s.ByStrategy[model.StrategyRSPCF]
	assert.Equal(t, 2, cf.Runs)
	assert.Equal(t, 1, cf.Complete)
	assert.Equal(t, 1, cf.Failed)
	assert.InDelta(t, 6, cf.Objective, 1e-9)
	assert.InDelta(t, 2, cf.Selected, 1e-9)
	assert.InDelta(t, 4, cf.SolverSecs, 1e-9)
	assert.InDelta(t, 8, cf.WallSecs, 1e-9)

	blm := s.ByStrategy[model.StrategyRSPBLM]
	assert.Equal(t, 1, blm.Runs)
	assert.Zero(t, blm.Complete)
	assert.Zero(t, blm.Objective)
}

func TestComputeRunStats_Empty(t *testing.T) {
	s := computeRunStats(nil)
	assert.Zero(t, s.Total)
	assert.Empty(t, s.ByStrategy)
}

func TestFormatRunsList(t *testing.T) {
	var buf bytes.Buffer
	formatRunsList(&buf, sampleRuns())
	out := buf.String()

	assert.Contains(t, out, "STRATEGY")
	assert.Contains(t, out, "aaaaaaaa")
	assert.NotContains(t, out, "aaaaaaaa-1111")
	assert.Contains(t, out, "rsp-cf")
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "8s")
}

func TestFormatRunStats(t *testing.T) {
	var buf bytes.Buffer
	formatRunStats(&buf, computeRunStats(sampleRuns()))
	out := buf.String()

	assert.Contains(t, out, "4 runs")
	assert.Contains(t, out, "rsp-blm")
	assert.NotContains(t, out, "rsp-con")
	assert.Contains(t, out, "AVG OBJECTIVE")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abcdefgh", truncateID("abcdefghijkl"))
	assert.Equal(t, "abc", truncateID("abc"))
}
