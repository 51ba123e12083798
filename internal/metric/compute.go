package metric

import (
	"gonum.org/v1/gonum/graph/network"

	"github.com/sells-group/reserve-cli/internal/model"
)

// computeFunc derives metric rows from a graph and optional node attributes.
type computeFunc func(g *Graph, attrs map[int64]float64) ([]Row, error)

var registry = map[model.MetricKind]computeFunc{
	model.MetricInDegree:    inDegree,
	model.MetricOutDegree:   outDegree,
	model.MetricBetweenness: betweenness,
	model.MetricEC:          equivalentConnectivity,
}

func inDegree(g *Graph, _ map[int64]float64) ([]Row, error) {
	nodes := g.Nodes()
	rows := make([]Row, 0, len(nodes))
	for _, id := range nodes {
		rows = append(rows, Row{From: id, To: id, Value: float64(g.InDegree(id))})
	}
	return rows, nil
}

func outDegree(g *Graph, _ map[int64]float64) ([]Row, error) {
	nodes := g.Nodes()
	rows := make([]Row, 0, len(nodes))
	for _, id := range nodes {
		rows = append(rows, Row{From: id, To: id, Value: float64(g.OutDegree(id))})
	}
	return rows, nil
}

// betweenness is the unnormalized, unweighted shortest-path betweenness
// centrality. Nodes that lie on no shortest path score zero.
func betweenness(g *Graph, _ map[int64]float64) ([]Row, error) {
	scores := network.Betweenness(g.g)
	nodes := g.Nodes()
	rows := make([]Row, 0, len(nodes))
	for _, id := range nodes {
		rows = append(rows, Row{From: id, To: id, Value: scores[id]})
	}
	return rows, nil
}

// equivalentConnectivity scores every edge i -> j as a_i * a_j * w_ij, where
// a is the node attribute value and w the edge weight.
func equivalentConnectivity(g *Graph, attrs map[int64]float64) ([]Row, error) {
	if attrs == nil {
		return nil, model.NewConfigError("metric: ec requires node attribute values")
	}

	edges := g.Edges()
	rows := make([]Row, 0, len(edges))
	for _, e := range edges {
		ai, ok := attrs[e.From]
		if !ok {
			return nil, model.NewLookupError("node attribute for planning unit", e.From, 0)
		}
		aj, ok := attrs[e.To]
		if !ok {
			return nil, model.NewLookupError("node attribute for planning unit", e.To, 0)
		}
		rows = append(rows, Row{From: e.From, To: e.To, Value: ai * aj * e.Weight})
	}
	return rows, nil
}
