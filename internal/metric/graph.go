package metric

import (
	"cmp"
	"slices"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/sells-group/reserve-cli/internal/model"
)

// Graph is a directed, weighted connectivity graph keyed by planning-unit id.
// A zero weight means no edge. Self-loops are dropped.
type Graph struct {
	g *simple.WeightedDirectedGraph
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{g: simple.NewWeightedDirectedGraph(0, 0)}
}

// FromEdges builds a graph from an edge list. Extra node ids are added as
// isolated nodes so that every unit of a matrix keeps a metric row.
func FromEdges(edges []model.Edge, nodes ...int64) *Graph {
	g := NewGraph()
	for _, id := range nodes {
		g.AddNode(id)
	}
	var loops int
	for _, e := range edges {
		if e.From == e.To && e.Weight != 0 {
			loops++
		}
		g.AddEdge(e)
	}
	if loops > 0 {
		zap.L().Debug("metric: dropped self-loops", zap.Int("count", loops))
	}
	return g
}

// AddNode adds an isolated node if it is not already present.
func (g *Graph) AddNode(id int64) {
	if g.g.Node(id) == nil {
		g.g.AddNode(simple.Node(id))
	}
}

// AddEdge adds a directed edge and reports whether it was kept. Zero-weight
// edges and self-loops are ignored. A repeated edge replaces the earlier weight.
func (g *Graph) AddEdge(e model.Edge) bool {
	if e.Weight == 0 || e.From == e.To {
		return false
	}
	g.AddNode(e.From)
	g.AddNode(e.To)
	g.g.SetWeightedEdge(simple.WeightedEdge{F: simple.Node(e.From), T: simple.Node(e.To), W: e.Weight})
	return true
}

// HasNode reports whether id is a node of the graph.
func (g *Graph) HasNode(id int64) bool {
	return g.g.Node(id) != nil
}

// Nodes returns the node ids in ascending order.
func (g *Graph) Nodes() []int64 {
	it := g.g.Nodes()
	ids := make([]int64, 0, it.Len())
	for it.Next() {
		ids = append(ids, it.Node().ID())
	}
	slices.Sort(ids)
	return ids
}

// Edges returns the edges ordered by (from, to).
func (g *Graph) Edges() []model.Edge {
	var edges []model.Edge
	it := g.g.WeightedEdges()
	for it.Next() {
		e := it.WeightedEdge()
		edges = append(edges, model.Edge{From: e.From().ID(), To: e.To().ID(), Weight: e.Weight()})
	}
	slices.SortFunc(edges, func(a, b model.Edge) int {
		if a.From != b.From {
			return cmp.Compare(a.From, b.From)
		}
		return cmp.Compare(a.To, b.To)
	})
	return edges
}

// Weight returns the weight of the edge from -> to.
func (g *Graph) Weight(from, to int64) (float64, bool) {
	if !g.g.HasEdgeFromTo(from, to) {
		return 0, false
	}
	w, _ := g.g.Weight(from, to)
	return w, true
}

// InDegree returns the number of edges entering id.
func (g *Graph) InDegree(id int64) int {
	return g.g.To(id).Len()
}

// OutDegree returns the number of edges leaving id.
func (g *Graph) OutDegree(id int64) int {
	return g.g.From(id).Len()
}

// Successors returns the ids reachable from id over one edge, in ascending order.
func (g *Graph) Successors(id int64) []int64 {
	it := g.g.From(id)
	ids := make([]int64, 0, it.Len())
	for it.Next() {
		ids = append(ids, it.Node().ID())
	}
	slices.Sort(ids)
	return ids
}
