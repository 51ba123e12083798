package model

import "strings"

// Strategy selects the optimization formulation.
type Strategy string

const (
	StrategyRSP    Strategy = "rsp"     // Minimum-cost feature coverage.
	StrategyRSPCF  Strategy = "rsp-cf"  // Connectivity as target constraints.
	StrategyRSPCC  Strategy = "rsp-cc"  // Connectivity blended into a cost objective.
	StrategyRSPCon Strategy = "rsp-con" // Maximize connectivity under a cost budget.
	StrategyRSPBLM Strategy = "rsp-blm" // Boundary-length penalized cost.
)

// Strategies lists every supported strategy.
var Strategies = []Strategy{StrategyRSP, StrategyRSPCF, StrategyRSPCC, StrategyRSPCon, StrategyRSPBLM}

// ParseStrategy parses a strategy name, case-insensitively.
func ParseStrategy(s string) (Strategy, error) {
	want := Strategy(strings.ToLower(strings.TrimSpace(s)))
	for _, st := range Strategies {
		if st == want {
			return st, nil
		}
	}
	return "", NewConfigError("unknown strategy %q", s)
}

// UsesConnectivity reports whether the strategy reads connectivity datasets.
func (s Strategy) UsesConnectivity() bool {
	switch s {
	case StrategyRSPCF, StrategyRSPCC, StrategyRSPCon:
		return true
	}
	return false
}

// MetricKind names a connectivity metric.
type MetricKind string

const (
	MetricInDegree    MetricKind = "indegree"
	MetricOutDegree   MetricKind = "outdegree"
	MetricBetweenness MetricKind = "bc"
	MetricEC          MetricKind = "ec"
)

// MetricKinds lists every supported metric.
var MetricKinds = []MetricKind{MetricInDegree, MetricOutDegree, MetricBetweenness, MetricEC}

// ParseMetricKind parses a metric name.
func ParseMetricKind(s string) (MetricKind, error) {
	want := MetricKind(strings.ToLower(strings.TrimSpace(s)))
	for _, k := range MetricKinds {
		if k == want {
			return k, nil
		}
	}
	return "", NewConfigError("unknown connectivity metric %q", s)
}

// IsPairwise reports whether the metric is keyed by (from, to) pairs
// instead of single units.
func (k MetricKind) IsPairwise() bool {
	return k == MetricEC
}

// StatKind names a summary statistic of a metric table.
type StatKind string

const (
	StatNone   StatKind = ""
	StatMean   StatKind = "mean"
	StatMedian StatKind = "median"
	StatMin    StatKind = "min"
	StatMax    StatKind = "max"
)

// ParseStatKind parses a statistic name. An empty string yields StatNone.
func ParseStatKind(s string) (StatKind, error) {
	switch k := StatKind(strings.ToLower(strings.TrimSpace(s))); k {
	case StatNone, StatMean, StatMedian, StatMin, StatMax:
		return k, nil
	}
	return "", NewConfigError("unknown statistic %q", s)
}

// CompleteGraphMode controls sparsification of per-feature edge lists
// before betweenness is computed.
type CompleteGraphMode string

const (
	CompleteGraphNone   CompleteGraphMode = ""
	CompleteGraphMean   CompleteGraphMode = "mean"
	CompleteGraphMedian CompleteGraphMode = "median"
)

// ParseCompleteGraphMode parses a complete-graph mode. An empty string yields CompleteGraphNone.
func ParseCompleteGraphMode(s string) (CompleteGraphMode, error) {
	switch m := CompleteGraphMode(strings.ToLower(strings.TrimSpace(s))); m {
	case CompleteGraphNone, CompleteGraphMean, CompleteGraphMedian:
		return m, nil
	}
	return "", NewConfigError("unknown complete graph mode %q", s)
}
