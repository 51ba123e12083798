package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/reserve-cli/internal/connectivity"
	"github.com/sells-group/reserve-cli/internal/conservation"
	"github.com/sells-group/reserve-cli/internal/export"
	"github.com/sells-group/reserve-cli/internal/model"
	"github.com/sells-group/reserve-cli/internal/rsp"
	"github.com/sells-group/reserve-cli/internal/solution"
	"github.com/sells-group/reserve-cli/internal/store"
	"github.com/sells-group/reserve-cli/internal/tables"
)

var strategyShort = map[model.Strategy]string{
	model.StrategyRSP:    "Minimum-cost reserve meeting all feature targets",
	model.StrategyRSPCF:  "Minimum-cost reserve that also reaches connectivity targets",
	model.StrategyRSPCC:  "Reserve minimizing cost minus weighted connectivity",
	model.StrategyRSPCon: "Reserve maximizing connectivity within a cost budget",
	model.StrategyRSPBLM: "Minimum-cost reserve penalizing exposed boundary length",
}

func newStrategyCmd(s model.Strategy) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   string(s),
		Short: strategyShort[s],
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			opts, err := f.options(cmd.Flags(), s)
			if err != nil {
				return err
			}

			var st store.Store
			if opts.record {
				st, err = initStore(ctx)
				if err != nil {
					return err
				}
				defer st.Close() //nolint:errcheck
			}

			out, err := executeRun(ctx, opts, rsp.DefaultSolver, st)
			if err != nil {
				return err
			}
			formatOutcome(cmd.OutOrStdout(), out)
			return nil
		},
	}
	f.register(cmd, s)
	return cmd
}

func init() {
	for _, s := range model.Strategies {
		rootCmd.AddCommand(newStrategyCmd(s))
	}
}

// runOutcome is what a finished run reports back to the user.
type runOutcome struct {
	RunID  string
	Result *model.RunResult
}

// executeRun records the run in st (when non-nil), solves it and writes
// every output file. A failed run is marked failed in the store.
func executeRun(ctx context.Context, opts runOptions, newSolver rsp.SolverFactory, st store.Store) (*runOutcome, error) {
	var runID string
	if st != nil {
		run, err := st.CreateRun(ctx, opts.strategy, opts.args)
		if err != nil {
			return nil, err
		}
		runID = run.ID
	}

	result, selection, err := solveAndExport(ctx, opts, newSolver)
	if err != nil {
		if st != nil {
			if ferr := st.FailRun(ctx, runID, err); ferr != nil {
				zap.L().Warn("run: record failure", zap.String("run_id", runID), zap.Error(ferr))
			}
		}
		return nil, err
	}

	if st != nil {
		if err := st.CompleteRun(ctx, runID, result, selection); err != nil {
			return nil, err
		}
	}
	return &runOutcome{RunID: runID, Result: result}, nil
}

func solveAndExport(ctx context.Context, opts runOptions, newSolver rsp.SolverFactory) (*model.RunResult, []byte, error) {
	timer := solution.NewTimer()
	timer.StartSetup()

	in, err := tables.LoadInputs(ctx, opts.sources)
	if err != nil {
		return nil, nil, err
	}
	cons, err := conservation.New(in.Units, in.Features, in.Amounts, in.Boundaries)
	if err != nil {
		return nil, nil, err
	}
	cons.MaxCost = opts.maxCost
	cons.MinCost = opts.minCost
	if opts.strategy == model.StrategyRSPBLM {
		cons.BLMWeight = opts.blmWeight
	}

	var conn *connectivity.Model
	if opts.strategy.UsesConnectivity() {
		conn, err = buildConnectivity(opts, in, cons)
		if err != nil {
			return nil, nil, err
		}
	}
	timer.StopSetup()
	zap.L().Info("run: setup complete", zap.String("strategy", string(opts.strategy)))

	sol, err := rsp.Run(ctx, newSolver, opts.strategy, cons, conn, opts.params, timer)
	if err != nil {
		return nil, nil, err
	}

	report := solution.NewReport(cons, sol)
	features, err := report.FeatureCoverage(cons)
	if err != nil {
		return nil, nil, err
	}
	var metrics []solution.MetricSummary
	if conn != nil {
		metrics, err = report.ConnectivitySummary(conn)
		if err != nil {
			return nil, nil, err
		}
	}
	timer.Stop()

	err = export.WriteAll(opts.outputDir, export.Outputs{
		Report:   report,
		Features: features,
		Metrics:  metrics,
		Stats:    report.RunStatistics(timer, cons),
		Args:     opts.args,
	}, opts.geojson)
	if err != nil {
		return nil, nil, err
	}
	selection, err := export.SelectionEWKB(report)
	if err != nil {
		return nil, nil, err
	}

	return &model.RunResult{
		Status:     sol.Status,
		Objective:  sol.Objective,
		Gap:        sol.Gap,
		TotalCost:  report.TotalCost(cons),
		Selected:   report.SelectedIDs(),
		SolverTime: timer.SolverTime().Seconds(),
		TotalTime:  timer.TotalTime().Seconds(),
		OutputDir:  opts.outputDir,
	}, selection, nil
}

// buildConnectivity adds one dataset per connectivity file (one per feature
// for feature edge lists) and applies the thresholds. With a nil cons every
// feature of a feature edge list gets a dataset.
func buildConnectivity(opts runOptions, in *tables.Inputs, cons *conservation.Model) (*connectivity.Model, error) {
	conn, err := connectivity.NewModel(opts.conn)
	if err != nil {
		return nil, err
	}

	var attrs map[int64]float64
	if in.NodeAttributes != nil && len(in.FeatureEdges) == 0 {
		attrs, err = connectivity.AttributeValues(in.NodeAttributes, nil)
		if err != nil {
			return nil, err
		}
	}
	for i, m := range in.Matrices {
		if err := conn.AddMatrixDataset(m, opts.kinds, attrs); err != nil {
			return nil, eris.Wrapf(err, "run: matrix %s", opts.sources.Matrices[i])
		}
	}
	for i, edges := range in.EdgeLists {
		if err := conn.AddEdgeListDataset(edges, opts.kinds, attrs); err != nil {
			return nil, eris.Wrapf(err, "run: edge list %s", opts.sources.EdgeLists[i])
		}
	}
	var hasTarget func(int64) bool
	if cons != nil {
		hasTarget = cons.HasTarget
	}
	for i, edges := range in.FeatureEdges {
		if err := conn.AddFeatureEdgeListDatasets(edges, opts.kinds, in.NodeAttributes, hasTarget); err != nil {
			return nil, eris.Wrapf(err, "run: feature edge list %s", opts.sources.FeatureEdgeLists[i])
		}
	}
	if len(conn.Datasets()) == 0 {
		return nil, model.NewConfigError("run: no connectivity dataset for any targeted feature")
	}

	if err := conn.ApplyThresholds(activeThresholds(opts.thresholds)); err != nil {
		return nil, err
	}
	return conn, nil
}

func activeThresholds(ts []connectivity.Threshold) []connectivity.Threshold {
	var out []connectivity.Threshold
	for _, t := range ts {
		if t.Min != nil || t.Max != nil || t.MinOf != model.StatNone || t.MaxOf != model.StatNone || t.Binarize {
			out = append(out, t)
		}
	}
	return out
}

func formatOutcome(out io.Writer, o *runOutcome) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if o.RunID != "" {
		_, _ = fmt.Fprintf(w, "Run:\t%s\n", o.RunID)
	}
	r := o.Result
	_, _ = fmt.Fprintf(w, "Status:\t%s\n", r.Status)
	_, _ = fmt.Fprintf(w, "Objective:\t%g\n", r.Objective)
	_, _ = fmt.Fprintf(w, "Gap:\t%g\n", r.Gap)
	_, _ = fmt.Fprintf(w, "Total cost:\t%g\n", r.TotalCost)
	_, _ = fmt.Fprintf(w, "Selected units:\t%d\n", len(r.Selected))
	_, _ = fmt.Fprintf(w, "Solver time:\t%.2fs\n", r.SolverTime)
	_, _ = fmt.Fprintf(w, "Output:\t%s\n", r.OutputDir)
	_ = w.Flush()
}
