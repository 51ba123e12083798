package tables

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/reserve-cli/internal/model"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func parse(t *testing.T, content string) *Table {
	t.Helper()
	tbl, err := ParseCSV(strings.NewReader(content), "test.csv")
	require.NoError(t, err)
	return tbl
}

func TestParseCSV_BOMAndTabs(t *testing.T) {
	t.Parallel()

	tbl := parse(t, "\ufeffid1\tid2\tboundary\n1\t2\t3.5\n\n")
	assert.Equal(t, []string{"id1", "id2", "boundary"}, tbl.Header)
	require.Len(t, tbl.Rows, 1)

	bounds, err := ParseBoundaries(tbl)
	require.NoError(t, err)
	assert.Equal(t, []model.Boundary{{ID1: 1, ID2: 2, Length: 3.5}}, bounds)
}

func TestParseCSV_Empty(t *testing.T) {
	t.Parallel()

	_, err := ParseCSV(strings.NewReader(""), "empty.csv")
	assert.Error(t, err)
}

func TestParseUnits(t *testing.T) {
	t.Parallel()

	units, err := ParseUnits(parse(t, "pu,cost,xloc,yloc\n1,2.5,10,20\n2.0,3,,\n"))
	require.NoError(t, err)
	assert.Equal(t, []model.PlanningUnit{
		{ID: 1, Cost: 2.5, X: 10, Y: 20},
		{ID: 2, Cost: 3},
	}, units)

	_, err = ParseUnits(parse(t, "pu,xloc\n1,2\n"))
	require.Error(t, err)
	assert.True(t, model.IsConfig(err))
	assert.Contains(t, err.Error(), "cost")

	_, err = ParseUnits(parse(t, "pu,cost\n1.5,2\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")

	_, err = ParseUnits(parse(t, "pu,cost\n1,abc\n"))
	assert.True(t, model.IsConfig(err))

	_, err = ParseUnits(parse(t, "pu,cost\n1,2\n2,-0.5\n"))
	require.Error(t, err)
	assert.True(t, model.IsConfig(err))
	assert.Contains(t, err.Error(), "row 3")
	assert.Contains(t, err.Error(), "negative cost")
}

func TestParseFeatures(t *testing.T) {
	t.Parallel()

	features, err := ParseFeatures(parse(t, "feature,prop,name\n1,0.3,owl\n2,,fern\n"))
	require.NoError(t, err)
	require.Len(t, features, 2)
	require.NotNil(t, features[0].Prop)
	assert.InDelta(t, 0.3, *features[0].Prop, 1e-12)
	assert.Equal(t, "owl", features[0].Name)
	assert.Nil(t, features[0].Target)
	assert.False(t, features[1].HasTarget())

	features, err = ParseFeatures(parse(t, "feature,target\n4,12\n"))
	require.NoError(t, err)
	require.NotNil(t, features[0].Target)
	assert.InDelta(t, 12, *features[0].Target, 1e-12)
}

func TestParseAmountsAndEdges(t *testing.T) {
	t.Parallel()

	amounts, err := ParseAmounts(parse(t, "feature,pu,value\n1,2,0.5\n"))
	require.NoError(t, err)
	assert.Equal(t, []model.Amount{{FeatureID: 1, UnitID: 2, Value: 0.5}}, amounts)

	edges, err := ParseEdges(parse(t, "pu1,pu2,value\n1,2,0.4\n2,1,0\n"))
	require.NoError(t, err)
	assert.Equal(t, []model.Edge{{From: 1, To: 2, Weight: 0.4}, {From: 2, To: 1, Weight: 0}}, edges)

	fedges, err := ParseFeatureEdges(parse(t, "feature,pu1,pu2,value\n7,1,2,0.4\n"))
	require.NoError(t, err)
	assert.Equal(t, []model.FeatureEdge{{FeatureID: 7, Edge: model.Edge{From: 1, To: 2, Weight: 0.4}}}, fedges)

	_, err = ParseFeatureEdges(parse(t, "pu1,pu2,value\n1,2,1\n"))
	assert.True(t, model.IsConfig(err))
}

func TestParseNodeAttributes(t *testing.T) {
	t.Parallel()

	attrs, err := ParseNodeAttributes(parse(t, "feature,pu,value\n1,5,2\n"))
	require.NoError(t, err)
	assert.Equal(t, []model.NodeAttribute{{FeatureID: 1, UnitID: 5, Value: 2}}, attrs)

	attrs, err = ParseNodeAttributes(parse(t, "pu,value\n5,3\n"))
	require.NoError(t, err)
	assert.Equal(t, []model.NodeAttribute{{UnitID: 5, Value: 3}}, attrs)
}

func TestParseBoundaries_ValueColumn(t *testing.T) {
	t.Parallel()

	bounds, err := ParseBoundaries(parse(t, "id1,id2,value\n1,1,4\n"))
	require.NoError(t, err)
	assert.Equal(t, []model.Boundary{{ID1: 1, ID2: 1, Length: 4}}, bounds)
}

func TestParseMatrix(t *testing.T) {
	t.Parallel()

	m, err := ParseMatrix(parse(t, "10,20\n0,0.5\n1,0\n"))
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 20}, m.IDs)
	assert.Equal(t, [][]float64{{0, 0.5}, {1, 0}}, m.Cells)

	labeled, err := ParseMatrix(parse(t, ",10,20\n10,0,0.5\n20,1,\n"))
	require.NoError(t, err)
	assert.Equal(t, m, labeled)

	_, err = ParseMatrix(parse(t, ",10,20\n20,0,0.5\n10,1,0\n"))
	assert.True(t, model.IsConfig(err))

	_, err = ParseMatrix(parse(t, "10,20\n0,0.5\n"))
	assert.True(t, model.IsConfig(err))

	_, err = ParseMatrix(parse(t, "a,b\n0,1\n1,0\n"))
	assert.True(t, model.IsConfig(err))
}

func TestReadXLSX(t *testing.T) {
	t.Parallel()

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Sheet1")
	require.NoError(t, err)
	for _, rowData := range [][]string{{"pu", "cost"}, {"1", "4"}, {"2", "5"}} {
		row := sheet.AddRow()
		for _, v := range rowData {
			row.AddCell().SetString(v)
		}
	}
	path := filepath.Join(t.TempDir(), "pu.xlsx")
	require.NoError(t, f.Save(path))

	tbl, err := Read(path)
	require.NoError(t, err)
	units, err := ParseUnits(tbl)
	require.NoError(t, err)
	assert.Equal(t, []model.PlanningUnit{{ID: 1, Cost: 4}, {ID: 2, Cost: 5}}, units)
}

func TestReadUnitShapefile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "units.shp")
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{
		shp.NumberField("PU", 10),
		shp.FloatField("COST", 12, 2),
	}))

	square := shp.Polygon(*shp.NewPolyLine([][]shp.Point{{
		{X: 0, Y: 0}, {X: 0, Y: 2}, {X: 2, Y: 2}, {X: 2, Y: 0}, {X: 0, Y: 0},
	}}))
	n := w.Write(&square)
	require.NoError(t, w.WriteAttribute(int(n), 0, 7))
	require.NoError(t, w.WriteAttribute(int(n), 1, 3.5))
	w.Close()

	units, err := ReadUnitShapefile(path, "pu", "cost")
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, int64(7), units[0].ID)
	assert.InDelta(t, 3.5, units[0].Cost, 1e-9)
	assert.InDelta(t, 1, units[0].X, 1e-9)
	assert.InDelta(t, 1, units[0].Y, 1e-9)

	_, err = ReadUnitShapefile(path, "id", "cost")
	assert.True(t, model.IsConfig(err))
}

func TestLoadInputs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, UnitsFile, "pu,cost\n1,1\n2,2\n")
	writeFile(t, dir, FeaturesFile, "feature,prop\n1,0.5\n")
	writeFile(t, dir, AmountsFile, "feature,pu,value\n1,1,1\n1,2,1\n")
	writeFile(t, dir, BoundariesFile, "id1,id2,boundary\n1,2,1\n")
	writeFile(t, dir, "m0.csv", "1,2\n0,1\n0,0\n")
	writeFile(t, dir, "m1.csv", "1,2\n0,0\n1,0\n")
	writeFile(t, dir, "attrs.csv", "pu,value\n1,1\n2,2\n")

	src := DefaultSources(dir)
	src.Boundaries = BoundariesFile
	src.Matrices = []string{"m0.csv", filepath.Join(dir, "m1.csv")}
	src.NodeAttributes = "attrs.csv"
	assert.True(t, src.HasConnectivity())

	in, err := LoadInputs(context.Background(), src)
	require.NoError(t, err)
	assert.Len(t, in.Units, 2)
	assert.Len(t, in.Features, 1)
	assert.Len(t, in.Amounts, 2)
	assert.Len(t, in.Boundaries, 1)
	require.Len(t, in.Matrices, 2)
	assert.Equal(t, [][]float64{{0, 1}, {0, 0}}, in.Matrices[0].Cells)
	assert.Equal(t, [][]float64{{0, 0}, {1, 0}}, in.Matrices[1].Cells)
	assert.Len(t, in.NodeAttributes, 2)
	assert.Empty(t, in.EdgeLists)
}

func TestLoadInputs_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := DefaultSources(dir)
	src.Matrices = []string{"m.csv"}
	src.EdgeLists = []string{"e.csv"}
	_, err := LoadInputs(context.Background(), src)
	assert.True(t, model.IsConfig(err))

	_, err = LoadInputs(context.Background(), DefaultSources(dir))
	assert.Error(t, err)

	writeFile(t, dir, UnitsFile, "pu,cost\n1,1\n")
	writeFile(t, dir, FeaturesFile, "feature,prop\n1,0.5\n")
	writeFile(t, dir, AmountsFile, "feature,pu\n1,1\n")
	_, err = LoadInputs(context.Background(), DefaultSources(dir))
	require.Error(t, err)
	assert.True(t, model.IsConfig(err))
	assert.Contains(t, err.Error(), "value")
}

func TestLoadConnectivity(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "edges.csv", "pu1,pu2,value\n1,2,1\n2,3,2\n")

	src := Sources{Dir: dir, EdgeLists: []string{"edges.csv"}}
	in, err := LoadConnectivity(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, in.EdgeLists, 1)
	assert.Len(t, in.EdgeLists[0], 2)
	assert.Empty(t, in.Units)
	assert.Empty(t, in.Features)

	_, err = LoadConnectivity(context.Background(), Sources{Dir: dir})
	assert.True(t, model.IsConfig(err))
}
