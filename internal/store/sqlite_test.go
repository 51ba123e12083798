package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/reserve-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_CreateAndGetRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, model.StrategyRSP, map[string]string{"gap": "0.01"})
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, model.StrategyRSP, got.Strategy)
	assert.Equal(t, map[string]string{"gap": "0.01"}, got.Args)
	assert.Equal(t, model.RunStatusRunning, got.Status)
	assert.Nil(t, got.Result)
	assert.Empty(t, got.Error)
}

func TestSQLite_CompleteRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, model.StrategyRSPCF, nil)
	require.NoError(t, err)

	result := &model.RunResult{Status: "optimal", Objective: 6, TotalCost: 6, Selected: []int64{3, 1, 2}}
	require.NoError(t, st.CompleteRun(ctx, run.ID, result, []byte{0x01, 0x04}))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, 6.0, got.Result.Objective)
	assert.Equal(t, []int64{3, 1, 2}, got.Result.Selected)

	units, err := st.RunUnits(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, units)

	sel, err := st.Selection(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x04}, sel)

	// Completing again replaces the unit list.
	result.Selected = []int64{2}
	require.NoError(t, st.CompleteRun(ctx, run.ID, result, nil))
	units, err = st.RunUnits(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, units)
}

func TestSQLite_FailRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, model.StrategyRSPCon, nil)
	require.NoError(t, err)
	require.NoError(t, st.FailRun(ctx, run.ID, errors.New("model is infeasible")))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
	assert.Equal(t, "model is infeasible", got.Error)
}

func TestSQLite_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.GetRun(ctx, "missing")
	assert.True(t, model.IsLookup(err))

	err = st.CompleteRun(ctx, "missing", &model.RunResult{}, nil)
	assert.True(t, model.IsLookup(err))

	err = st.FailRun(ctx, "missing", nil)
	assert.True(t, model.IsLookup(err))

	_, err = st.Selection(ctx, "missing")
	assert.True(t, model.IsLookup(err))

	units, err := st.RunUnits(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, units)
}

func TestSQLite_ListRuns(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a, err := st.CreateRun(ctx, model.StrategyRSP, nil)
	require.NoError(t, err)
	_, err = st.CreateRun(ctx, model.StrategyRSP, nil)
	require.NoError(t, err)
	_, err = st.CreateRun(ctx, model.StrategyRSPBLM, nil)
	require.NoError(t, err)
	require.NoError(t, st.CompleteRun(ctx, a.ID, &model.RunResult{Status: "optimal"}, nil))

	all, err := st.ListRuns(ctx, model.RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	rsp, err := st.ListRuns(ctx, model.RunFilter{Strategy: model.StrategyRSP})
	require.NoError(t, err)
	assert.Len(t, rsp, 2)

	done, err := st.ListRuns(ctx, model.RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, a.ID, done[0].ID)

	page, err := st.ListRuns(ctx, model.RunFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, DriverSQLite, filepath.Join(t.TempDir(), "open.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck

	_, err = s.CreateRun(ctx, model.StrategyRSP, nil)
	require.NoError(t, err)

	_, err = Open(ctx, "mysql", "")
	require.Error(t, err)
	assert.True(t, model.IsConfig(err))
}
