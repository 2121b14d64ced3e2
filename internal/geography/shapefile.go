package geography

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/umbc-cmsc636/rent-analytics/internal/fetcher"
)

// ShapefileOptions maps TIGER/Line attribute fields onto feature fields.
type ShapefileOptions struct {
	// IDField becomes the feature identifier (GEOID).
	IDField string
	// Properties maps a shapefile field to the property key it is stored under.
	Properties map[string]string
}

// CountyShapefileOptions reads a cartographic boundary county file into the
// same shape as the county GeoJSON document.
func CountyShapefileOptions() ShapefileOptions {
	return ShapefileOptions{
		IDField:    "GEOID",
		Properties: map[string]string{"STATEFP": StateRefKey, "COUNTYFP": "COUNTY", "NAME": "NAME", "LSAD": "LSAD"},
	}
}

// StateShapefileOptions reads a cartographic boundary state file into the
// same shape as the state GeoJSON document.
func StateShapefileOptions() ShapefileOptions {
	return ShapefileOptions{
		IDField:    "GEOID",
		Properties: map[string]string{"NAME": StateNameKey, "STUSPS": "abbr"},
	}
}

// ReadShapefile builds a Document from a .shp file or a .zip holding one.
// Records without a polygon geometry or identifier are skipped.
func ReadShapefile(path string, opts ShapefileOptions) (*Document, error) {
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		dir, err := os.MkdirTemp("", "rent-analytics-shp-*")
		if err != nil {
			return nil, eris.Wrap(err, "geography: create temp dir")
		}
		defer os.RemoveAll(dir) //nolint:errcheck

		files, err := fetcher.ExtractZIP(path, dir)
		if err != nil {
			return nil, eris.Wrap(err, "geography: extract shapefile archive")
		}
		if path, err = fetcher.FindByExt(files, ".shp"); err != nil {
			return nil, err
		}
	}

	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geography: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fieldIdx := make(map[string]int)
	for i, f := range reader.Fields() {
		fieldIdx[strings.ToUpper(strings.TrimRight(f.String(), "\x00"))] = i
	}
	idIdx, ok := fieldIdx[strings.ToUpper(opts.IDField)]
	if !ok {
		return nil, eris.Errorf("geography: shapefile has no %s field", opts.IDField)
	}

	doc := &Document{}
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		id := attribute(reader, idIdx)
		g := polygonToMultiPolygon(shape)
		if id == "" || g == nil {
			skipped++
			continue
		}

		props := make(map[string]any, len(opts.Properties))
		for field, key := range opts.Properties {
			if i, ok := fieldIdx[strings.ToUpper(field)]; ok {
				props[key] = attribute(reader, i)
			}
		}

		f, err := NewFeature(id, props, g)
		if err != nil {
			return nil, err
		}
		doc.Features = append(doc.Features, f)
	}

	if skipped > 0 {
		zap.L().Debug("geography: skipped shapefile records", zap.String("path", path), zap.Int("skipped", skipped))
	}
	return doc, nil
}

func attribute(r *shp.Reader, i int) string {
	return strings.TrimSpace(strings.TrimRight(r.Attribute(i), "\x00"))
}

// polygonToMultiPolygon converts each ring of a shapefile polygon into its
// own polygon. Hole rings are drawn as filled parts; at choropleth scale
// this only matters for a handful of enclave counties.
func polygonToMultiPolygon(s shp.Shape) geom.T {
	p, ok := s.(*shp.Polygon)
	if !ok || p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY)
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}

		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(geom.NewLinearRingFlat(geom.XY, flat)); err != nil {
			zap.L().Debug("geography: skipping malformed ring", zap.Int32("part", i), zap.Error(err))
			continue
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("geography: skipping malformed part", zap.Int32("part", i), zap.Error(err))
			continue
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}
