package tables

import (
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"

	"github.com/sells-group/reserve-cli/internal/model"
)

// ReadUnitShapefile reads planning units from a shapefile. The id and cost
// come from the named attribute fields; the location is the shape centroid.
func ReadUnitShapefile(path, idField, costField string) ([]model.PlanningUnit, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "tables: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}
	idIdx, ok := fieldIdx[strings.ToLower(idField)]
	if !ok {
		return nil, model.NewConfigError("tables: shapefile %s has no field %q", path, idField)
	}
	costIdx, ok := fieldIdx[strings.ToLower(costField)]
	if !ok {
		return nil, model.NewConfigError("tables: shapefile %s has no field %q", path, costField)
	}

	var units []model.PlanningUnit
	var fallback int
	for reader.Next() {
		n, shape := reader.Shape()

		rawID := strings.TrimSpace(strings.TrimRight(reader.Attribute(idIdx), "\x00"))
		id, ok := parseID(rawID)
		if !ok {
			return nil, model.NewConfigError("tables: shapefile %s record %d: invalid id %q", path, n, rawID)
		}
		rawCost := strings.TrimSpace(strings.TrimRight(reader.Attribute(costIdx), "\x00"))
		cost, err := strconv.ParseFloat(rawCost, 64)
		if err != nil {
			return nil, model.NewConfigError("tables: shapefile %s record %d: invalid cost %q", path, n, rawCost)
		}
		if cost < 0 {
			return nil, model.NewConfigError("tables: shapefile %s record %d: negative cost %g", path, n, cost)
		}

		c, exact := centroid(shape)
		if !exact {
			fallback++
		}
		units = append(units, model.PlanningUnit{ID: id, Cost: cost, X: c[0], Y: c[1]})
	}

	if fallback > 0 {
		zap.L().Debug("tables: used bounding-box centers for shapefile records",
			zap.String("path", path),
			zap.Int("records", fallback),
		)
	}
	return units, nil
}

// centroid returns the area centroid of polygons, the point itself for
// points, and the bounding-box center otherwise. exact is false for the
// bounding-box fallback.
func centroid(shape shp.Shape) (geom.Coord, bool) {
	switch s := shape.(type) {
	case *shp.Point:
		return geom.Coord{s.X, s.Y}, true
	case *shp.Polygon:
		if mp := polygonToMultiPolygon(s); mp != nil {
			if c, err := xy.Centroid(mp); err == nil {
				return c, true
			}
		}
	}
	if shape == nil {
		return geom.Coord{0, 0}, false
	}
	box := shape.BBox()
	return geom.Coord{(box.MinX + box.MaxX) / 2, (box.MinY + box.MaxY) / 2}, false
}

// polygonToMultiPolygon converts each ring of a shapefile polygon into its own polygon.
func polygonToMultiPolygon(p *shp.Polygon) *geom.MultiPolygon {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY)
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}

		flat := make([]float64, 0, 2*(end-start))
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(geom.NewLinearRingFlat(geom.XY, flat)); err != nil {
			zap.L().Debug("tables: skipping malformed polygon ring", zap.Int32("part", i), zap.Error(err))
			continue
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("tables: skipping malformed polygon part", zap.Int32("part", i), zap.Error(err))
			continue
		}
	}
	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}
