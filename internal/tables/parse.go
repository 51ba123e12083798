package tables

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sells-group/reserve-cli/internal/model"
)

// Column names of the input files.
const (
	ColUnit     = "pu"
	ColCost     = "cost"
	ColX        = "xloc"
	ColY        = "yloc"
	ColFeature  = "feature"
	ColProp     = "prop"
	ColTarget   = "target"
	ColName     = "name"
	ColValue    = "value"
	ColFrom     = "pu1"
	ColTo       = "pu2"
	ColID1      = "id1"
	ColID2      = "id2"
	ColBoundary = "boundary"
)

func newFormatError(name string, row int, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if row > 0 {
		return model.NewConfigError("tables: %s row %d: %s", name, row, msg)
	}
	return model.NewConfigError("tables: %s: %s", name, msg)
}

// float parses a required numeric cell. Row numbers count the header as row 1.
func (t *Table) float(row []string, i int, col string) (float64, error) {
	raw := t.Cell(row, col)
	if raw == "" {
		return 0, newFormatError(t.Name, i+2, "column %s is empty", col)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, newFormatError(t.Name, i+2, "column %s: invalid number %q", col, raw)
	}
	return v, nil
}

// optFloat parses an optional numeric cell; empty and absent cells are nil.
func (t *Table) optFloat(row []string, i int, col string) (*float64, error) {
	if t.Cell(row, col) == "" {
		return nil, nil
	}
	v, err := t.float(row, i, col)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// id parses an integer id cell.
func (t *Table) id(row []string, i int, col string) (int64, error) {
	raw := t.Cell(row, col)
	v, ok := parseID(raw)
	if !ok {
		return 0, newFormatError(t.Name, i+2, "column %s: invalid id %q", col, raw)
	}
	return v, nil
}

// parseID accepts integers and integral floats such as "3.0".
func parseID(raw string) (int64, bool) {
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return v, true
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}

// ParseUnits reads pu, cost and optional xloc, yloc columns.
func ParseUnits(t *Table) ([]model.PlanningUnit, error) {
	if err := t.requireCols(ColUnit, ColCost); err != nil {
		return nil, err
	}
	out := make([]model.PlanningUnit, 0, len(t.Rows))
	for i, row := range t.Rows {
		id, err := t.id(row, i, ColUnit)
		if err != nil {
			return nil, err
		}
		cost, err := t.float(row, i, ColCost)
		if err != nil {
			return nil, err
		}
		if cost < 0 {
			return nil, newFormatError(t.Name, i+2, "column %s: negative cost %g", ColCost, cost)
		}
		u := model.PlanningUnit{ID: id, Cost: cost}
		if x, err := t.optFloat(row, i, ColX); err != nil {
			return nil, err
		} else if x != nil {
			u.X = *x
		}
		if y, err := t.optFloat(row, i, ColY); err != nil {
			return nil, err
		} else if y != nil {
			u.Y = *y
		}
		out = append(out, u)
	}
	return out, nil
}

// ParseFeatures reads feature with optional prop, target and name columns.
func ParseFeatures(t *Table) ([]model.Feature, error) {
	if err := t.requireCols(ColFeature); err != nil {
		return nil, err
	}
	out := make([]model.Feature, 0, len(t.Rows))
	for i, row := range t.Rows {
		id, err := t.id(row, i, ColFeature)
		if err != nil {
			return nil, err
		}
		f := model.Feature{ID: id, Name: t.Cell(row, ColName)}
		if f.Prop, err = t.optFloat(row, i, ColProp); err != nil {
			return nil, err
		}
		if f.Target, err = t.optFloat(row, i, ColTarget); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// ParseAmounts reads feature, pu, value rows.
func ParseAmounts(t *Table) ([]model.Amount, error) {
	if err := t.requireCols(ColFeature, ColUnit, ColValue); err != nil {
		return nil, err
	}
	out := make([]model.Amount, 0, len(t.Rows))
	for i, row := range t.Rows {
		fid, err := t.id(row, i, ColFeature)
		if err != nil {
			return nil, err
		}
		uid, err := t.id(row, i, ColUnit)
		if err != nil {
			return nil, err
		}
		v, err := t.float(row, i, ColValue)
		if err != nil {
			return nil, err
		}
		out = append(out, model.Amount{FeatureID: fid, UnitID: uid, Value: v})
	}
	return out, nil
}

// ParseEdges reads pu1, pu2, value rows. A feature column, if present, is ignored.
func ParseEdges(t *Table) ([]model.Edge, error) {
	if err := t.requireCols(ColFrom, ColTo, ColValue); err != nil {
		return nil, err
	}
	out := make([]model.Edge, 0, len(t.Rows))
	for i, row := range t.Rows {
		e, err := t.edge(row, i)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// ParseFeatureEdges reads feature, pu1, pu2, value rows.
func ParseFeatureEdges(t *Table) ([]model.FeatureEdge, error) {
	if err := t.requireCols(ColFeature, ColFrom, ColTo, ColValue); err != nil {
		return nil, err
	}
	out := make([]model.FeatureEdge, 0, len(t.Rows))
	for i, row := range t.Rows {
		fid, err := t.id(row, i, ColFeature)
		if err != nil {
			return nil, err
		}
		e, err := t.edge(row, i)
		if err != nil {
			return nil, err
		}
		out = append(out, model.FeatureEdge{FeatureID: fid, Edge: e})
	}
	return out, nil
}

func (t *Table) edge(row []string, i int) (model.Edge, error) {
	from, err := t.id(row, i, ColFrom)
	if err != nil {
		return model.Edge{}, err
	}
	to, err := t.id(row, i, ColTo)
	if err != nil {
		return model.Edge{}, err
	}
	w, err := t.float(row, i, ColValue)
	if err != nil {
		return model.Edge{}, err
	}
	return model.Edge{From: from, To: to, Weight: w}, nil
}

// ParseNodeAttributes reads pu, value rows with an optional feature column.
func ParseNodeAttributes(t *Table) ([]model.NodeAttribute, error) {
	if err := t.requireCols(ColUnit, ColValue); err != nil {
		return nil, err
	}
	hasFeature := t.HasCol(ColFeature)
	out := make([]model.NodeAttribute, 0, len(t.Rows))
	for i, row := range t.Rows {
		var a model.NodeAttribute
		var err error
		if hasFeature {
			if a.FeatureID, err = t.id(row, i, ColFeature); err != nil {
				return nil, err
			}
		}
		if a.UnitID, err = t.id(row, i, ColUnit); err != nil {
			return nil, err
		}
		if a.Value, err = t.float(row, i, ColValue); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// ParseBoundaries reads id1, id2 and a boundary (or value) length column.
func ParseBoundaries(t *Table) ([]model.Boundary, error) {
	lengthCol := ColBoundary
	if !t.HasCol(ColBoundary) {
		lengthCol = ColValue
	}
	if err := t.requireCols(ColID1, ColID2, lengthCol); err != nil {
		return nil, err
	}
	out := make([]model.Boundary, 0, len(t.Rows))
	for i, row := range t.Rows {
		var b model.Boundary
		var err error
		if b.ID1, err = t.id(row, i, ColID1); err != nil {
			return nil, err
		}
		if b.ID2, err = t.id(row, i, ColID2); err != nil {
			return nil, err
		}
		if b.Length, err = t.float(row, i, lengthCol); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// ParseMatrix reads a square connectivity matrix whose header holds the unit
// ids. An unnamed first header cell marks a leading row-label column, whose
// labels must repeat the header ids in order.
func ParseMatrix(t *Table) (model.Matrix, error) {
	offset := 0
	if len(t.Header) > 0 && t.Header[0] == "" {
		offset = 1
	}
	var m model.Matrix
	for _, h := range t.Header[offset:] {
		id, ok := parseID(h)
		if !ok {
			return m, newFormatError(t.Name, 1, "invalid unit id %q in header", h)
		}
		m.IDs = append(m.IDs, id)
	}
	if len(t.Rows) != len(m.IDs) {
		return m, newFormatError(t.Name, 0, "%d rows for %d columns", len(t.Rows), len(m.IDs))
	}

	for i, row := range t.Rows {
		if len(row) != len(m.IDs)+offset {
			return m, newFormatError(t.Name, i+2, "%d cells, want %d", len(row), len(m.IDs)+offset)
		}
		if offset == 1 {
			label, ok := parseID(strings.TrimSpace(row[0]))
			if !ok || label != m.IDs[i] {
				return m, newFormatError(t.Name, i+2, "row label %q does not match column id %d", row[0], m.IDs[i])
			}
		}
		cells := make([]float64, len(m.IDs))
		for j, raw := range row[offset:] {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return m, newFormatError(t.Name, i+2, "invalid number %q", raw)
			}
			cells[j] = v
		}
		m.Cells = append(m.Cells, cells)
	}
	return m, nil
}
