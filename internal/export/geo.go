package export

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkt"

	"github.com/sells-group/reserve-cli/internal/solution"
)

// SRID is attached to selection geometries. Unit coordinates are taken as
// given; no reprojection happens.
const SRID = 4326

// FeatureCollection builds one point feature per planning unit carrying its
// id and selection flag.
func FeatureCollection(r *solution.Report) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{}
	for _, u := range r.Units {
		x := 0
		if u.Selected {
			x = 1
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       itoa(u.ID),
			Geometry: geom.NewPointFlat(geom.XY, []float64{u.X, u.Y}),
			Properties: map[string]any{
				"pu": u.ID,
				"x":  x,
			},
		})
	}
	return fc
}

// WriteGeoJSON writes the unit points as a GeoJSON feature collection.
func WriteGeoJSON(dir string, r *solution.Report) error {
	data, err := FeatureCollection(r).MarshalJSON()
	if err != nil {
		return eris.Wrap(err, "export: marshal geojson")
	}
	path := filepath.Join(dir, GeoJSONFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "export: write %s", path)
	}
	return nil
}

// SelectionEWKB encodes the selected unit locations as an EWKB MultiPoint.
func SelectionEWKB(r *solution.Report) ([]byte, error) {
	mp := geom.NewMultiPoint(geom.XY).SetSRID(SRID)
	for _, u := range r.Units {
		if !u.Selected {
			continue
		}
		if err := mp.Push(geom.NewPointFlat(geom.XY, []float64{u.X, u.Y})); err != nil {
			return nil, eris.Wrapf(err, "export: push unit %d", u.ID)
		}
	}
	data, err := ewkb.Marshal(mp, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "export: marshal selection ewkb")
	}
	return data, nil
}

// SelectionWKT decodes a stored EWKB selection and renders it as WKT.
// An empty payload renders as an empty MULTIPOINT.
func SelectionWKT(data []byte) (string, error) {
	if len(data) == 0 {
		return wkt.Marshal(geom.NewMultiPoint(geom.XY))
	}
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return "", eris.Wrap(err, "export: decode selection ewkb")
	}
	s, err := wkt.Marshal(g)
	if err != nil {
		return "", eris.Wrap(err, "export: encode selection wkt")
	}
	return s, nil
}
