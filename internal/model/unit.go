package model

// PlanningUnit is an atomic parcel of land eligible for selection into the reserve.
type PlanningUnit struct {
	ID   int64   `json:"pu" yaml:"pu"`
	Cost float64 `json:"cost" yaml:"cost"`
	X    float64 `json:"xloc" yaml:"xloc"`
	Y    float64 `json:"yloc" yaml:"yloc"`
}

// Feature is a conservation feature (species, habitat) with an optional
// absolute target or a proportion of its total amount.
type Feature struct {
	ID     int64    `json:"feature" yaml:"feature"`
	Name   string   `json:"name,omitempty" yaml:"name,omitempty"`
	Target *float64 `json:"target,omitempty" yaml:"target,omitempty"`
	Prop   *float64 `json:"prop,omitempty" yaml:"prop,omitempty"`
}

// HasTarget reports whether the feature carries a target or a proportion.
func (f Feature) HasTarget() bool {
	return f.Target != nil || f.Prop != nil
}

// Amount is the quantity of a feature present in a planning unit.
type Amount struct {
	FeatureID int64   `json:"feature"`
	UnitID    int64   `json:"pu"`
	Value     float64 `json:"value"`
}

// Edge is a directed, weighted link between two planning units.
type Edge struct {
	From   int64   `json:"pu1"`
	To     int64   `json:"pu2"`
	Weight float64 `json:"value"`
}

// FeatureEdge is an edge tagged with the feature whose connectivity it describes.
type FeatureEdge struct {
	FeatureID int64 `json:"feature"`
	Edge
}

// NodeAttribute is a per-unit habitat value, optionally scoped to a feature.
// FeatureID is zero when the attribute table carries no feature column.
type NodeAttribute struct {
	FeatureID int64   `json:"feature"`
	UnitID    int64   `json:"pu"`
	Value     float64 `json:"value"`
}

// Boundary is the shared boundary length between two planning units.
type Boundary struct {
	ID1    int64   `json:"id1"`
	ID2    int64   `json:"id2"`
	Length float64 `json:"boundary"`
}

// Matrix is a square connectivity matrix. Cells[i][j] is the weight of the
// link from IDs[i] to IDs[j]; zero means no link.
type Matrix struct {
	IDs   []int64
	Cells [][]float64
}

// Edges flattens the matrix into its non-zero edges in row-major order.
func (m Matrix) Edges() ([]Edge, error) {
	if len(m.Cells) != len(m.IDs) {
		return nil, NewConfigError("matrix: %d rows for %d planning units", len(m.Cells), len(m.IDs))
	}

	var edges []Edge
	for i, row := range m.Cells {
		if len(row) != len(m.IDs) {
			return nil, NewConfigError("matrix: row %d has %d columns, want %d", i, len(row), len(m.IDs))
		}
		for j, w := range row {
			if w == 0 {
				continue
			}
			edges = append(edges, Edge{From: m.IDs[i], To: m.IDs[j], Weight: w})
		}
	}
	return edges, nil
}

// Solution is the raw outcome of an optimization.
type Solution struct {
	Selected  map[int64]bool `json:"selected"`
	Objective float64        `json:"objective"`
	Gap       float64        `json:"gap"`
	Status    string         `json:"status"`
}

// IsSelected reports whether the unit was chosen.
func (s *Solution) IsSelected(id int64) bool {
	return s != nil && s.Selected[id]
}
