// Package solution summarizes an optimized selection: which units were
// chosen, how far each feature target was reached, and how connectivity
// metrics fared within the reserve.
package solution

import (
	"github.com/sells-group/reserve-cli/internal/connectivity"
	"github.com/sells-group/reserve-cli/internal/conservation"
	"github.com/sells-group/reserve-cli/internal/model"
)

// UnitSelection is one row of the solution table.
type UnitSelection struct {
	ID       int64   `json:"pu"`
	Selected bool    `json:"x"`
	X        float64 `json:"xloc"`
	Y        float64 `json:"yloc"`
}

// FeatureSummary reports coverage of one targeted feature.
type FeatureSummary struct {
	FeatureID int64   `json:"feature"`
	Total     float64 `json:"total"`
	Target    float64 `json:"target"`
	Reached   float64 `json:"reached"`
}

// MetricSummary reports one metric of one connectivity dataset.
type MetricSummary struct {
	Dataset      string           `json:"con_data"`
	Metric       model.MetricKind `json:"metric"`
	Total        float64          `json:"total"`
	Min          float64          `json:"min"`
	Max          float64          `json:"max"`
	MinThreshold float64          `json:"min_threshold"`
	MaxThreshold float64          `json:"max_threshold"`
	Target       float64          `json:"target"`
	Achieved     float64          `json:"total_metric"`
	AvgPerUnit   float64          `json:"avg_per_pu"`
}

// Stat is a named run statistic.
type Stat struct {
	Name  string  `json:"name" yaml:"name"`
	Value float64 `json:"value" yaml:"value"`
}

// Report is the read-only view of a solution.
type Report struct {
	Units     []UnitSelection
	Objective float64
	Gap       float64
	Status    string
	selected  map[int64]bool
}

// NewReport lists every planning unit with its selection flag, in input order.
func NewReport(cons *conservation.Model, sol *model.Solution) *Report {
	r := &Report{
		Objective: sol.Objective,
		Gap:       sol.Gap,
		Status:    sol.Status,
		selected:  make(map[int64]bool),
	}
	for _, u := range cons.Units() {
		on := sol.IsSelected(u.ID)
		r.Units = append(r.Units, UnitSelection{ID: u.ID, Selected: on, X: u.X, Y: u.Y})
		if on {
			r.selected[u.ID] = true
		}
	}
	return r
}

// Selected reports whether unit id is in the reserve.
func (r *Report) Selected(id int64) bool { return r.selected[id] }

// SelectedIDs returns the selected unit ids in input order.
func (r *Report) SelectedIDs() []int64 {
	var ids []int64
	for _, u := range r.Units {
		if u.Selected {
			ids = append(ids, u.ID)
		}
	}
	return ids
}

// FeatureCoverage reports, per targeted feature, the total amount, the
// target and the amount inside the selected units.
func (r *Report) FeatureCoverage(cons *conservation.Model) ([]FeatureSummary, error) {
	var out []FeatureSummary
	for _, fid := range cons.TargetedFeatures() {
		target, err := cons.Target(fid)
		if err != nil {
			return nil, err
		}
		s := FeatureSummary{FeatureID: fid, Total: cons.TotalAmount(fid), Target: target}
		for _, a := range cons.Amounts(fid) {
			if r.Selected(a.UnitID) {
				s.Reached += a.Value
			}
		}
		out = append(out, s)
	}
	return out, nil
}

// ConnectivitySummary reports every metric of every dataset. Total, Min and
// Max describe the values as computed; thresholds and Target the values the
// program used; Achieved sums the metric recomputed over the selection.
func (r *Report) ConnectivitySummary(conn *connectivity.Model) ([]MetricSummary, error) {
	var out []MetricSummary
	for _, d := range conn.Datasets() {
		for _, kind := range d.Kinds() {
			m, err := d.Metric(kind)
			if err != nil {
				return nil, err
			}
			computed := m.Computed().Stats()
			restricted, err := m.Restrict(r.Selected)
			if err != nil {
				return nil, err
			}

			s := MetricSummary{
				Dataset:      d.Name(),
				Metric:       kind,
				Total:        computed.Sum,
				Min:          computed.Min,
				Max:          computed.Max,
				MinThreshold: m.Table().MinThreshold(),
				MaxThreshold: m.Table().MaxThreshold(),
				Target:       m.Target(),
				Achieved:     restricted.Stats().Sum,
			}
			if n := restricted.Len(); n > 0 {
				s.AvgPerUnit = s.Achieved / float64(n)
			}
			out = append(out, s)
		}
	}
	return out, nil
}

// TotalCost sums the cost of the selected units.
func (r *Report) TotalCost(cons *conservation.Model) float64 {
	var total float64
	for _, u := range cons.Units() {
		if r.Selected(u.ID) {
			total += u.Cost
		}
	}
	return total
}

// RunStatistics lists solver time, total time, objective, gap and cost.
func (r *Report) RunStatistics(timer *Timer, cons *conservation.Model) []Stat {
	var solverTime, totalTime float64
	if timer != nil {
		solverTime = timer.SolverTime().Seconds()
		totalTime = timer.TotalTime().Seconds()
	}
	return []Stat{
		{Name: "solver_time", Value: solverTime},
		{Name: "total_time", Value: totalTime},
		{Name: "obj_value", Value: r.Objective},
		{Name: "gap_to_opt", Value: r.Gap},
		{Name: "total_cost", Value: r.TotalCost(cons)},
	}
}
