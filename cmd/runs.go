package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/reserve-cli/internal/export"
	"github.com/sells-group/reserve-cli/internal/model"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect optimization run history",
	Long:  "Runs are recorded in the configured store unless --no-record is given.",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List optimization runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		strategy, _ := cmd.Flags().GetString("strategy")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		filter := model.RunFilter{
			Status: model.RunStatus(status),
			Limit:  limit,
			Offset: offset,
		}
		if strategy != "" {
			s, err := model.ParseStrategy(strategy)
			if err != nil {
				return err
			}
			filter.Strategy = s
		}

		runs, err := st.ListRuns(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			_, _ = fmt.Fprintln(os.Stderr, "no runs recorded")
			return nil
		}

		formatRunsList(cmd.OutOrStdout(), runs)
		return nil
	},
}

// runDetail is the JSON document printed by runs show.
type runDetail struct {
	*model.Run
	Units     []int64 `json:"units,omitempty"`
	Selection string  `json:"selection_wkt,omitempty"`
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print a run with its selected units as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}
		detail := runDetail{Run: run}
		if run.Status == model.RunStatusComplete {
			if detail.Units, err = st.RunUnits(ctx, run.ID); err != nil {
				return eris.Wrap(err, "runs show")
			}
			sel, err := st.Selection(ctx, run.ID)
			if err != nil {
				return eris.Wrap(err, "runs show")
			}
			if detail.Selection, err = export.SelectionWKT(sel); err != nil {
				return eris.Wrap(err, "runs show")
			}
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(detail)
	},
}

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize recorded runs per strategy",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		runs, err := st.ListRuns(ctx, model.RunFilter{Limit: 10000})
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}

		formatRunStats(cmd.OutOrStdout(), computeRunStats(runs))
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (running, complete, failed)")
	runsListCmd.Flags().String("strategy", "", "filter by strategy (rsp, rsp-cf, rsp-cc, rsp-con, rsp-blm)")
	runsListCmd.Flags().Int("limit", 50, "maximum number of runs to list")
	runsListCmd.Flags().Int("offset", 0, "number of runs to skip")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsStatsCmd)
	rootCmd.AddCommand(runsCmd)
}

// strategyStats aggregates the runs of one strategy. Averages cover
// complete runs only.
type strategyStats struct {
	Runs       int
	Complete   int
	Failed     int
	Objective  float64
	Cost       float64
	Selected   float64
	SolverSecs float64
	WallSecs   float64
}

type runStats struct {
	Total      int
	ByStrategy map[model.Strategy]*strategyStats
}

func computeRunStats(runs []model.Run) runStats {
	s := runStats{Total: len(runs), ByStrategy: make(map[model.Strategy]*strategyStats)}
	for _, r := range runs {
		ss := s.ByStrategy[r.Strategy]
		if ss == nil {
			ss = &strategyStats{}
			s.ByStrategy[r.Strategy] = ss
		}
		ss.Runs++
		switch {
		case r.Status == model.RunStatusFailed:
			ss.Failed++
		case r.Status == model.RunStatusComplete && r.Result != nil:
			ss.Complete++
			ss.Objective += r.Result.Objective
			ss.Cost += r.Result.TotalCost
			ss.Selected += float64(len(r.Result.Selected))
			ss.SolverSecs += r.Result.SolverTime
			ss.WallSecs += r.UpdatedAt.Sub(r.CreatedAt).Seconds()
		}
	}
	for _, ss := range s.ByStrategy {
		if n := float64(ss.Complete); n > 0 {
			ss.Objective /= n
			ss.Cost /= n
			ss.Selected /= n
			ss.SolverSecs /= n
			ss.WallSecs /= n
		}
	}
	return s
}

// formatRunsList prints one row per run, newest first as returned by the store.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTRATEGY\tSTATUS\tOBJECTIVE\tSELECTED\tCREATED\tDURATION")
	for _, r := range runs {
		objective, selected := "-", "-"
		if r.Result != nil {
			objective = strconv.FormatFloat(r.Result.Objective, 'g', 6, 64)
			selected = strconv.Itoa(len(r.Result.Selected))
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID), r.Strategy, r.Status, objective, selected,
			r.CreatedAt.Local().Format(time.DateTime),
			r.UpdatedAt.Sub(r.CreatedAt).Round(time.Second),
		)
	}
	_ = w.Flush()
}

// formatRunStats prints one row per strategy in declaration order.
func formatRunStats(out io.Writer, s runStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "%d runs\n", s.Total)
	_, _ = fmt.Fprintln(w, "STRATEGY\tRUNS\tCOMPLETE\tFAILED\tAVG OBJECTIVE\tAVG COST\tAVG SELECTED\tAVG SOLVER\tAVG WALL")
	for _, st := range model.Strategies {
		ss, ok := s.ByStrategy[st]
		if !ok {
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%.4g\t%.4g\t%.1f\t%.2fs\t%.2fs\n",
			st, ss.Runs, ss.Complete, ss.Failed, ss.Objective, ss.Cost, ss.Selected, ss.SolverSecs, ss.WallSecs)
	}
	_ = w.Flush()
}

func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
