package metric

import (
	"cmp"
	"slices"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/reserve-cli/internal/model"
)

// Row is one metric value. For node metrics To equals From.
type Row struct {
	From  int64   `json:"pu1"`
	To    int64   `json:"pu2"`
	Value float64 `json:"value"`
}

// Pair identifies an ordered (from, to) unit pair.
type Pair struct {
	From int64
	To   int64
}

// Stats summarizes the values of a table.
type Stats struct {
	Sum    float64 `json:"sum"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Of returns the named statistic.
func (s Stats) Of(kind model.StatKind) (float64, error) {
	switch kind {
	case model.StatMean:
		return s.Mean, nil
	case model.StatMedian:
		return s.Median, nil
	case model.StatMin:
		return s.Min, nil
	case model.StatMax:
		return s.Max, nil
	}
	return 0, model.NewConfigError("statistic %q cannot be used as a threshold", kind)
}

// Summarize computes the summary statistics of values. Empty input yields zeros.
func Summarize(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	n := len(sorted)
	median := sorted[n/2]
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	return Stats{
		Sum:    floats.Sum(sorted),
		Mean:   stat.Mean(sorted, nil),
		Median: median,
		Min:    sorted[0],
		Max:    sorted[n-1],
	}
}

// Table is an immutable set of metric values. Transformations return a new
// table with recomputed statistics.
type Table struct {
	pairwise     bool
	rows         []Row
	stats        Stats
	minThreshold float64
	maxThreshold float64
}

// NewTable builds a table from rows. Rows are ordered by (from, to).
func NewTable(pairwise bool, rows []Row) *Table {
	rows = slices.Clone(rows)
	slices.SortFunc(rows, func(a, b Row) int {
		if c := cmp.Compare(a.From, b.From); c != 0 {
			return c
		}
		return cmp.Compare(a.To, b.To)
	})
	t := &Table{pairwise: pairwise, rows: rows}
	t.stats = Summarize(t.Values())
	t.minThreshold = t.stats.Min
	t.maxThreshold = t.stats.Max
	return t
}

// Pairwise reports whether rows are keyed by unit pairs.
func (t *Table) Pairwise() bool { return t.pairwise }

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Rows returns a copy of the rows.
func (t *Table) Rows() []Row { return slices.Clone(t.rows) }

// Stats returns the summary statistics of the current values.
func (t *Table) Stats() Stats { return t.stats }

// MinThreshold is the lower bound last applied, or the minimum value.
func (t *Table) MinThreshold() float64 { return t.minThreshold }

// MaxThreshold is the upper bound last applied, or the maximum value.
func (t *Table) MaxThreshold() float64 { return t.maxThreshold }

// Values returns the values in row order.
func (t *Table) Values() []float64 {
	out := make([]float64, len(t.rows))
	for i, r := range t.rows {
		out[i] = r.Value
	}
	return out
}

// ByUnit indexes a node table by unit id.
func (t *Table) ByUnit() map[int64]float64 {
	out := make(map[int64]float64, len(t.rows))
	for _, r := range t.rows {
		out[r.From] = r.Value
	}
	return out
}

// ByPair indexes a table by (from, to).
func (t *Table) ByPair() map[Pair]float64 {
	out := make(map[Pair]float64, len(t.rows))
	for _, r := range t.rows {
		out[Pair{From: r.From, To: r.To}] = r.Value
	}
	return out
}

func (t *Table) mapValues(fn func(float64) float64) *Table {
	rows := make([]Row, len(t.rows))
	for i, r := range t.rows {
		rows[i] = Row{From: r.From, To: r.To, Value: fn(r.Value)}
	}
	next := &Table{pairwise: t.pairwise, rows: rows, minThreshold: t.minThreshold, maxThreshold: t.maxThreshold}
	next.stats = Summarize(next.Values())
	return next
}

// DropBelow zeroes every value strictly less than threshold.
func (t *Table) DropBelow(threshold float64) *Table {
	next := t.mapValues(func(v float64) float64 {
		if v < threshold {
			return 0
		}
		return v
	})
	next.minThreshold = threshold
	return next
}

// DropAbove zeroes every value strictly greater than threshold.
func (t *Table) DropAbove(threshold float64) *Table {
	next := t.mapValues(func(v float64) float64 {
		if v > threshold {
			return 0
		}
		return v
	})
	next.maxThreshold = threshold
	return next
}

// Binarize maps every non-zero value to one.
func (t *Table) Binarize() *Table {
	return t.mapValues(func(v float64) float64 {
		if v != 0 {
			return 1
		}
		return 0
	})
}

// Normalize min-max scales the values into [0, 1]. A constant table maps to
// all ones when its value is positive and to all zeros otherwise.
func (t *Table) Normalize() *Table {
	lo, hi := t.stats.Min, t.stats.Max
	if len(t.rows) > 0 && hi == lo {
		fill := 0.0
		if lo > 0 {
			fill = 1
		}
		zap.L().Warn("metric: normalizing constant values",
			zap.Float64("value", lo),
			zap.Float64("fill", fill),
			zap.Int("rows", len(t.rows)),
		)
		return t.mapValues(func(float64) float64 { return fill })
	}
	return t.mapValues(func(v float64) float64 { return (v - lo) / (hi - lo) })
}

// Restrict keeps node rows whose unit is selected and pairwise rows whose
// endpoints are both selected.
func (t *Table) Restrict(selected func(int64) bool) *Table {
	var rows []Row
	for _, r := range t.rows {
		if !selected(r.From) {
			continue
		}
		if t.pairwise && !selected(r.To) {
			continue
		}
		rows = append(rows, r)
	}
	return NewTable(t.pairwise, rows)
}
