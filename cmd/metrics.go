package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/reserve-cli/internal/connectivity"
	"github.com/sells-group/reserve-cli/internal/metric"
	"github.com/sells-group/reserve-cli/internal/model"
	"github.com/sells-group/reserve-cli/internal/tables"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Compute connectivity metrics without solving",
	Long:  "Loads connectivity files, computes the requested metrics per dataset and prints their summary statistics.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		input, _ := cmd.Flags().GetString("input")
		names, _ := cmd.Flags().GetStringSlice("metric")
		matrices, _ := cmd.Flags().GetStringSlice("con-matrix")
		edgeLists, _ := cmd.Flags().GetStringSlice("con-edgelist")
		featureEdges, _ := cmd.Flags().GetStringSlice("feature-edgelist")
		puData, _ := cmd.Flags().GetString("pu-data")
		completeGraph, _ := cmd.Flags().GetString("complete-graph")
		normalize, _ := cmd.Flags().GetBool("normalize")

		kinds, err := parseKinds(names)
		if err != nil {
			return err
		}
		mode, err := model.ParseCompleteGraphMode(completeGraph)
		if err != nil {
			return err
		}

		src := tables.Sources{
			Dir:              input,
			Matrices:         matrices,
			EdgeLists:        edgeLists,
			FeatureEdgeLists: featureEdges,
			NodeAttributes:   puData,
		}
		in, err := tables.LoadConnectivity(cmd.Context(), src)
		if err != nil {
			return err
		}

		// Metric values do not depend on the strategy; rsp-cc accepts any weight.
		conn, err := buildConnectivity(runOptions{
			strategy: model.StrategyRSPCC,
			sources:  src,
			conn:     connectivity.Config{Strategy: model.StrategyRSPCC, CompleteGraph: mode},
			kinds:    kinds,
		}, in, nil)
		if err != nil {
			return err
		}
		return formatMetrics(cmd.OutOrStdout(), conn, normalize)
	},
}

func init() {
	metricsCmd.Flags().String("input", "", "folder the connectivity files are relative to")
	metricsCmd.Flags().StringSlice("metric", nil, "connectivity metric: indegree, outdegree, bc or ec (repeatable)")
	metricsCmd.Flags().StringSlice("con-matrix", nil, "connectivity matrix file (repeatable)")
	metricsCmd.Flags().StringSlice("con-edgelist", nil, "connectivity edge list file (repeatable)")
	metricsCmd.Flags().StringSlice("feature-edgelist", nil, "per-feature connectivity edge list file (repeatable)")
	metricsCmd.Flags().String("pu-data", "", "node attribute values per planning unit and feature")
	metricsCmd.Flags().String("complete-graph", "", "drop edges below the mean or median weight before bc")
	metricsCmd.Flags().Bool("normalize", false, "report min-max normalized values")
	_ = metricsCmd.MarkFlagRequired("metric")
	metricsCmd.MarkFlagsMutuallyExclusive("con-matrix", "con-edgelist", "feature-edgelist")
	metricsCmd.MarkFlagsOneRequired("con-matrix", "con-edgelist", "feature-edgelist")

	rootCmd.AddCommand(metricsCmd)
}

// formatMetrics writes one row per dataset and metric with summary statistics.
func formatMetrics(out io.Writer, conn *connectivity.Model, normalize bool) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "DATASET\tMETRIC\tROWS\tSUM\tMEAN\tMEDIAN\tMIN\tMAX")
	_, _ = fmt.Fprintln(w, "-------\t------\t----\t---\t----\t------\t---\t---")

	for _, d := range conn.Datasets() {
		for _, kind := range d.Kinds() {
			var (
				t   *metric.Table
				err error
			)
			if normalize {
				t, err = d.NormalizedValues(kind)
			} else {
				t, err = d.Values(kind)
			}
			if err != nil {
				return err
			}
			s := t.Stats()
			_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%g\t%g\t%g\t%g\t%g\n",
				d.Name(), kind, t.Len(), s.Sum, s.Mean, s.Median, s.Min, s.Max)
		}
	}
	return w.Flush()
}
