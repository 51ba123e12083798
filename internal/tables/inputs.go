package tables

import (
	"context"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/reserve-cli/internal/model"
)

// Default file names inside an input directory.
const (
	UnitsFile      = "pu.csv"
	FeaturesFile   = "feature.csv"
	AmountsFile    = "pvf.csv"
	BoundariesFile = "bound.dat"
)

const maxLoadConcurrency = 4

// Sources names the files of one run. Relative paths resolve against Dir.
type Sources struct {
	Dir        string
	Units      string
	Features   string
	Amounts    string
	Boundaries string

	// UnitShapefile, when set, replaces Units.
	UnitShapefile      string
	ShapefileIDField   string
	ShapefileCostField string

	// At most one of the connectivity lists may be set.
	Matrices         []string
	EdgeLists        []string
	FeatureEdgeLists []string
	NodeAttributes   string
}

// DefaultSources returns the standard file layout of dir. Boundaries are
// left empty and must be requested explicitly.
func DefaultSources(dir string) Sources {
	return Sources{
		Dir:                dir,
		Units:              UnitsFile,
		Features:           FeaturesFile,
		Amounts:            AmountsFile,
		ShapefileIDField:   ColUnit,
		ShapefileCostField: ColCost,
	}
}

// HasConnectivity reports whether any connectivity file is named.
func (s Sources) HasConnectivity() bool {
	return len(s.Matrices)+len(s.EdgeLists)+len(s.FeatureEdgeLists) > 0
}

func (s Sources) path(name string) string {
	if filepath.IsAbs(name) || s.Dir == "" {
		return name
	}
	return filepath.Join(s.Dir, name)
}

func (s Sources) validate() error {
	if err := s.validateConnectivity(); err != nil {
		return err
	}
	if s.UnitShapefile == "" && s.Units == "" {
		return model.NewConfigError("tables: no planning unit source")
	}
	if s.Features == "" || s.Amounts == "" {
		return model.NewConfigError("tables: feature and amount files are required")
	}
	return nil
}

func (s Sources) validateConnectivity() error {
	var kinds int
	for _, l := range [][]string{s.Matrices, s.EdgeLists, s.FeatureEdgeLists} {
		if len(l) > 0 {
			kinds++
		}
	}
	if kinds > 1 {
		return model.NewConfigError("tables: connectivity matrices, edge lists and feature edge lists are mutually exclusive")
	}
	return nil
}

// Inputs holds every parsed input of a run.
type Inputs struct {
	Units        []model.PlanningUnit
	Features     []model.Feature
	Amounts      []model.Amount
	Boundaries   []model.Boundary
	Matrices     []model.Matrix
	EdgeLists    [][]model.Edge
	FeatureEdges [][]model.FeatureEdge
	// NodeAttributes is nil when no attribute file was named.
	NodeAttributes []model.NodeAttribute
}

// LoadInputs reads and parses all sources concurrently.
func LoadInputs(ctx context.Context, src Sources) (*Inputs, error) {
	if err := src.validate(); err != nil {
		return nil, err
	}
	return loadSources(ctx, src, true)
}

// LoadConnectivity reads only the connectivity files and node attributes.
func LoadConnectivity(ctx context.Context, src Sources) (*Inputs, error) {
	if err := src.validateConnectivity(); err != nil {
		return nil, err
	}
	if !src.HasConnectivity() {
		return nil, model.NewConfigError("tables: no connectivity source")
	}
	return loadSources(ctx, src, false)
}

func loadSources(ctx context.Context, src Sources, withUnits bool) (*Inputs, error) {
	in := &Inputs{
		Matrices:     make([]model.Matrix, len(src.Matrices)),
		EdgeLists:    make([][]model.Edge, len(src.EdgeLists)),
		FeatureEdges: make([][]model.FeatureEdge, len(src.FeatureEdgeLists)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxLoadConcurrency)

	// load reads one table and hands it to parse; each parse writes a distinct field.
	load := func(name string, parse func(*Table) error) {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			t, err := Read(src.path(name))
			if err != nil {
				return err
			}
			if err := parse(t); err != nil {
				return eris.Wrapf(err, "tables: load %s", name)
			}
			return nil
		})
	}

	switch {
	case !withUnits:
	case src.UnitShapefile != "":
		g.Go(func() error {
			units, err := ReadUnitShapefile(src.path(src.UnitShapefile), src.ShapefileIDField, src.ShapefileCostField)
			in.Units = units
			return err
		})
	default:
		load(src.Units, func(t *Table) (err error) {
			in.Units, err = ParseUnits(t)
			return
		})
	}
	if withUnits {
		load(src.Features, func(t *Table) (err error) {
			in.Features, err = ParseFeatures(t)
			return
		})
		load(src.Amounts, func(t *Table) (err error) {
			in.Amounts, err = ParseAmounts(t)
			return
		})
	}
	if withUnits && src.Boundaries != "" {
		load(src.Boundaries, func(t *Table) (err error) {
			in.Boundaries, err = ParseBoundaries(t)
			return
		})
	}
	for i, name := range src.Matrices {
		load(name, func(t *Table) (err error) {
			in.Matrices[i], err = ParseMatrix(t)
			return
		})
	}
	for i, name := range src.EdgeLists {
		load(name, func(t *Table) (err error) {
			in.EdgeLists[i], err = ParseEdges(t)
			return
		})
	}
	for i, name := range src.FeatureEdgeLists {
		load(name, func(t *Table) (err error) {
			in.FeatureEdges[i], err = ParseFeatureEdges(t)
			return
		})
	}
	if src.NodeAttributes != "" {
		load(src.NodeAttributes, func(t *Table) (err error) {
			in.NodeAttributes, err = ParseNodeAttributes(t)
			return
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	zap.L().Info("tables: inputs loaded",
		zap.String("dir", src.Dir),
		zap.Int("units", len(in.Units)),
		zap.Int("features", len(in.Features)),
		zap.Int("amounts", len(in.Amounts)),
		zap.Int("boundaries", len(in.Boundaries)),
		zap.Int("connectivity_files", len(src.Matrices)+len(src.EdgeLists)+len(src.FeatureEdgeLists)),
	)
	return in, nil
}
