package main

import (
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sells-group/reserve-cli/internal/connectivity"
	"github.com/sells-group/reserve-cli/internal/milp"
	"github.com/sells-group/reserve-cli/internal/model"
	"github.com/sells-group/reserve-cli/internal/tables"
)

// runFlags holds the flag values of one strategy command.
type runFlags struct {
	input  string
	output string

	shapefile     string
	shapefileID   string
	shapefileCost string
	bound         string

	metrics       []string
	metricProp    float64
	metricTarget  float64
	metricWeight  float64
	costWeight    float64
	maxCost       float64
	minCost       float64
	blmWeight     float64
	metricMin     []float64
	metricMinType []string
	metricMax     []float64
	metricMaxType []string
	binarize      []string

	conMatrix       []string
	conEdgelist     []string
	featureEdgelist []string
	puData          string
	completeGraph   string

	gap       float64
	timeLimit float64
	threads   int
	mem       float64
	solverLog string
	noRecord  bool
}

// runOptions is everything a run needs, resolved from flags and config.
type runOptions struct {
	strategy   model.Strategy
	sources    tables.Sources
	outputDir  string
	geojson    bool
	conn       connectivity.Config
	kinds      []model.MetricKind
	thresholds []connectivity.Threshold
	maxCost    *float64
	minCost    *float64
	blmWeight  float64
	params     milp.Params
	record     bool
	args       map[string]string
}

func (f *runFlags) register(cmd *cobra.Command, s model.Strategy) {
	fs := cmd.Flags()
	fs.StringVar(&f.input, "input", "", "folder containing pu.csv, feature.csv and pvf.csv")
	fs.StringVar(&f.output, "output", "", "folder to store result files in (default output.dir)")
	fs.StringVar(&f.shapefile, "pu-shapefile", "", "read planning units from a polygon shapefile instead of pu.csv")
	fs.StringVar(&f.shapefileID, "shapefile-id-field", tables.ColUnit, "shapefile attribute holding the unit id")
	fs.StringVar(&f.shapefileCost, "shapefile-cost-field", tables.ColCost, "shapefile attribute holding the unit cost")
	fs.Float64Var(&f.gap, "gap", 0, "allowed relative gap to the optimum")
	fs.Float64Var(&f.timeLimit, "time-limit", 0, "solver time limit in seconds")
	fs.IntVar(&f.threads, "threads", 0, "number of solver threads")
	fs.Float64Var(&f.mem, "mem", 0, "solver memory limit in GB")
	fs.StringVar(&f.solverLog, "solver-log", "", "file to write the solver log to")
	fs.BoolVar(&f.noRecord, "no-record", false, "do not record the run in the store")
	_ = cmd.MarkFlagRequired("input")

	if s.UsesConnectivity() {
		fs.StringSliceVar(&f.metrics, "metric", nil, "connectivity metric: indegree, outdegree, bc or ec (repeatable)")
		fs.Float64SliceVar(&f.metricMin, "metric-min", nil, "drop values below this, paired with --metric by position")
		fs.StringSliceVar(&f.metricMinType, "metric-min-type", nil, "drop values below this statistic: min, mean or median")
		fs.Float64SliceVar(&f.metricMax, "metric-max", nil, "drop values above this, paired with --metric by position")
		fs.StringSliceVar(&f.metricMaxType, "metric-max-type", nil, "drop values above this statistic: max, mean or median")
		fs.StringSliceVar(&f.binarize, "binarize", nil, "metrics whose kept values are set to 1")
		fs.StringSliceVar(&f.conMatrix, "con-matrix", nil, "connectivity matrix file (repeatable)")
		fs.StringSliceVar(&f.conEdgelist, "con-edgelist", nil, "connectivity edge list file (repeatable)")
		fs.StringSliceVar(&f.featureEdgelist, "feature-edgelist", nil, "per-feature connectivity edge list file (repeatable)")
		fs.StringVar(&f.puData, "pu-data", "", "node attribute values per planning unit and feature")
		fs.StringVar(&f.completeGraph, "complete-graph", "", "drop edges below the mean or median weight before bc")
		_ = cmd.MarkFlagRequired("metric")
		cmd.MarkFlagsMutuallyExclusive("metric-min", "metric-min-type")
		cmd.MarkFlagsMutuallyExclusive("metric-max", "metric-max-type")
		cmd.MarkFlagsMutuallyExclusive("con-matrix", "con-edgelist", "feature-edgelist")
		cmd.MarkFlagsOneRequired("con-matrix", "con-edgelist", "feature-edgelist")
	}

	switch s {
	case model.StrategyRSPCF:
		fs.Float64Var(&f.metricProp, "metric-prop", 0, "minimal proportion of the total metric value to obtain")
		fs.Float64Var(&f.metricTarget, "metric-target", 0, "minimal absolute metric value to obtain")
		cmd.MarkFlagsMutuallyExclusive("metric-prop", "metric-target")
		cmd.MarkFlagsOneRequired("metric-prop", "metric-target")
	case model.StrategyRSPCC:
		fs.Float64Var(&f.metricWeight, "metric-weight", 0, "weight of the metric in the objective")
		fs.Float64Var(&f.costWeight, "cost-weight", 1, "weight of the cost in the objective")
		_ = cmd.MarkFlagRequired("metric-weight")
	case model.StrategyRSPCon:
		fs.Float64Var(&f.maxCost, "max-cost", 0, "maximum cost of the reserve")
		fs.Float64Var(&f.minCost, "min-cost", 0, "minimum cost of the reserve")
		_ = cmd.MarkFlagRequired("max-cost")
	case model.StrategyRSPBLM:
		fs.StringVar(&f.bound, "bound", tables.BoundariesFile, "boundary length file")
		fs.Float64Var(&f.blmWeight, "blm-weight", 1, "weight of the boundary length in the objective")
	}
}

// options resolves flags against the loaded config.
func (f *runFlags) options(fs *pflag.FlagSet, s model.Strategy) (runOptions, error) {
	opts := runOptions{
		strategy:  s,
		outputDir: f.output,
		geojson:   true,
		blmWeight: f.blmWeight,
		record:    !f.noRecord,
		args:      flagArgs(fs, s),
	}
	if f.input == "" {
		return opts, model.NewConfigError("--input is required")
	}
	if cfg != nil {
		opts.params = cfg.Solver.Params()
		opts.geojson = cfg.Output.GeoJSON
		if opts.outputDir == "" {
			opts.outputDir = cfg.Output.Dir
		}
	}
	if opts.outputDir == "" {
		opts.outputDir = "output"
	}
	opts.params = f.solverParams(fs, opts.params)

	opts.sources = tables.DefaultSources(f.input)
	opts.sources.UnitShapefile = f.shapefile
	opts.sources.ShapefileIDField = f.shapefileID
	opts.sources.ShapefileCostField = f.shapefileCost

	switch s {
	case model.StrategyRSPBLM:
		opts.sources.Boundaries = f.bound
	case model.StrategyRSPCon:
		if fs.Changed("max-cost") {
			v := f.maxCost
			opts.maxCost = &v
		}
		if fs.Changed("min-cost") {
			v := f.minCost
			opts.minCost = &v
		}
	}

	if !s.UsesConnectivity() {
		return opts, nil
	}

	opts.sources.Matrices = f.conMatrix
	opts.sources.EdgeLists = f.conEdgelist
	opts.sources.FeatureEdgeLists = f.featureEdgelist
	opts.sources.NodeAttributes = f.puData
	if !opts.sources.HasConnectivity() {
		return opts, model.NewConfigError("one of --con-matrix, --con-edgelist or --feature-edgelist is required")
	}

	kinds, err := parseKinds(f.metrics)
	if err != nil {
		return opts, err
	}
	opts.kinds = kinds
	opts.thresholds, err = buildThresholds(kinds, f.metricMin, f.metricMinType, f.metricMax, f.metricMaxType, f.binarize)
	if err != nil {
		return opts, err
	}

	mode, err := model.ParseCompleteGraphMode(f.completeGraph)
	if err != nil {
		return opts, err
	}
	opts.conn = connectivity.Config{Strategy: s, CompleteGraph: mode}
	switch s {
	case model.StrategyRSPCF:
		if fs.Changed("metric-target") {
			opts.conn.Weight = f.metricTarget
			opts.conn.IsTarget = true
		} else {
			opts.conn.Weight = f.metricProp
		}
	case model.StrategyRSPCC:
		opts.conn.Weight = f.metricWeight
		opts.conn.CostWeight = f.costWeight
	}
	return opts, nil
}

func (f *runFlags) solverParams(fs *pflag.FlagSet, p milp.Params) milp.Params {
	if fs.Changed("gap") {
		p.MIPGap = f.gap
	}
	if fs.Changed("time-limit") {
		p.TimeLimit = time.Duration(f.timeLimit * float64(time.Second))
	}
	if fs.Changed("threads") {
		p.Threads = f.threads
	}
	if fs.Changed("mem") {
		p.MemoryLimitGB = f.mem
	}
	if fs.Changed("solver-log") {
		p.LogPath = f.solverLog
	}
	return p
}

func parseKinds(names []string) ([]model.MetricKind, error) {
	if len(names) == 0 {
		return nil, model.NewConfigError("at least one --metric is required")
	}
	var kinds []model.MetricKind
	for _, n := range names {
		k, err := model.ParseMetricKind(n)
		if err != nil {
			return nil, err
		}
		if slices.Contains(kinds, k) {
			return nil, model.NewConfigError("metric %q given twice", k)
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// buildThresholds pairs threshold flags with metrics by position.
func buildThresholds(kinds []model.MetricKind, mins []float64, minTypes []string, maxs []float64, maxTypes []string, binarize []string) ([]connectivity.Threshold, error) {
	for flag, n := range map[string]int{
		"--metric-min":      len(mins),
		"--metric-min-type": len(minTypes),
		"--metric-max":      len(maxs),
		"--metric-max-type": len(maxTypes),
	} {
		if n > len(kinds) {
			return nil, model.NewConfigError("%d %s values for %d metrics", n, flag, len(kinds))
		}
	}

	ts := make([]connectivity.Threshold, len(kinds))
	for i, k := range kinds {
		ts[i].Kind = k
		if i < len(mins) {
			v := mins[i]
			ts[i].Min = &v
		}
		if i < len(maxs) {
			v := maxs[i]
			ts[i].Max = &v
		}
		if i < len(minTypes) {
			st, err := model.ParseStatKind(minTypes[i])
			if err != nil {
				return nil, err
			}
			if st == model.StatMax {
				return nil, model.NewConfigError("--metric-min-type must be min, mean or median")
			}
			ts[i].MinOf = st
		}
		if i < len(maxTypes) {
			st, err := model.ParseStatKind(maxTypes[i])
			if err != nil {
				return nil, err
			}
			if st == model.StatMin {
				return nil, model.NewConfigError("--metric-max-type must be max, mean or median")
			}
			ts[i].MaxOf = st
		}
	}
	for _, name := range binarize {
		k, err := model.ParseMetricKind(name)
		if err != nil {
			return nil, err
		}
		i := slices.Index(kinds, k)
		if i < 0 {
			return nil, model.NewConfigError("--binarize %s names a metric that is not computed", k)
		}
		ts[i].Binarize = true
	}
	return ts, nil
}

// flagArgs records the strategy and every flag set on the command line.
func flagArgs(fs *pflag.FlagSet, s model.Strategy) map[string]string {
	args := map[string]string{"strategy": string(s)}
	fs.Visit(func(fl *pflag.Flag) {
		if sv, ok := fl.Value.(pflag.SliceValue); ok {
			args[fl.Name] = strings.Join(sv.GetSlice(), ",")
			return
		}
		args[fl.Name] = fl.Value.String()
	})
	return args
}
