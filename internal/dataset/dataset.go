// Package dataset loads the reference data the dashboard serves: the county
// and state tables, the adjacency list and both geography documents. It is
// loaded once, enriched, and shared read-only afterwards.
package dataset

import (
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/umbc-cmsc636/rent-analytics/internal/census"
	"github.com/umbc-cmsc636/rent-analytics/internal/fetcher"
	"github.com/umbc-cmsc636/rent-analytics/internal/geography"
	"github.com/umbc-cmsc636/rent-analytics/internal/region"
	"github.com/umbc-cmsc636/rent-analytics/internal/transform"
)

// Sources name each resource by URL (http, https, ftp) or local path.
// Geography sources ending in .zip or .shp are read as shapefiles; anything
// else is GeoJSON.
type Sources struct {
	Counties   string `mapstructure:"counties_url"`
	States     string `mapstructure:"states_url"`
	Adjacency  string `mapstructure:"adjacency_url"`
	CountyGeo  string `mapstructure:"county_geo_url"`
	StateGeo   string `mapstructure:"state_geo_url"`
	Dictionary string `mapstructure:"dictionary_url"` // optional
}

// Validate reports the first required source that is empty.
func (s Sources) Validate() error {
	for _, f := range []struct{ name, value string }{
		{"counties", s.Counties},
		{"states", s.States},
		{"adjacency", s.Adjacency},
		{"county geography", s.CountyGeo},
		{"state geography", s.StateGeo},
	} {
		if strings.TrimSpace(f.value) == "" {
			return eris.Errorf("dataset: %s source is required", f.name)
		}
	}
	return nil
}

// Options tunes parsing and the adjacency transform.
type Options struct {
	CountyColumns census.Columns
	StateColumns  census.Columns
	Transform     transform.Options
}

// DefaultOptions uses the published ACS column names.
func DefaultOptions() Options {
	return Options{
		CountyColumns: census.DefaultCountyColumns(),
		StateColumns:  census.DefaultStateColumns(),
	}
}

// Bundle is the loaded reference data. Nothing in it is modified after Load
// returns.
type Bundle struct {
	Counties   []census.CountyRecord
	States     []census.StateRecord
	Edges      []census.AdjacencyEdge
	CountyGeo  *geography.Document
	StateGeo   *geography.Document
	Dictionary census.Dictionary
	// StateNames are the dropdown choices, sorted and de-duplicated.
	StateNames []string
	LoadedAt   time.Time
}

// RegionInput adapts the bundle for region.Filter.
func (b *Bundle) RegionInput(outlines region.OutlineMode) region.Input {
	return region.Input{
		Counties:  b.Counties,
		States:    b.States,
		CountyGeo: b.CountyGeo,
		StateGeo:  b.StateGeo,
		Outlines:  outlines,
	}
}

// HasState reports whether name is one of the dropdown choices.
func (b *Bundle) HasState(name string) bool {
	for _, n := range b.StateNames {
		if n == name {
			return true
		}
	}
	return false
}

// Load fetches every source concurrently, parses it and enriches the county
// table. Any failure aborts the whole load; a partial bundle is never
// returned.
func Load(ctx context.Context, o fetcher.Opener, src Sources, opts Options) (*Bundle, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	log := zap.L().With(zap.String("component", "dataset"))

	var (
		counties   []census.CountyRecord
		states     []census.StateRecord
		edges      []census.AdjacencyEdge
		countyGeo  *geography.Document
		stateGeo   *geography.Document
		dictionary census.Dictionary
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return withSource(gctx, o, src.Counties, func(r io.Reader) (err error) {
			counties, err = census.ReadCounties(gctx, r, opts.CountyColumns)
			return err
		})
	})
	g.Go(func() error {
		return withSource(gctx, o, src.States, func(r io.Reader) (err error) {
			states, err = census.ReadStates(gctx, r, opts.StateColumns)
			return err
		})
	})
	g.Go(func() error {
		return withSource(gctx, o, src.Adjacency, func(r io.Reader) (err error) {
			edges, err = census.ReadAdjacency(gctx, r)
			return err
		})
	})
	g.Go(func() (err error) {
		countyGeo, err = loadGeography(gctx, o, src.CountyGeo, geography.CountyShapefileOptions())
		return err
	})
	g.Go(func() (err error) {
		stateGeo, err = loadGeography(gctx, o, src.StateGeo, geography.StateShapefileOptions())
		return err
	})
	if src.Dictionary != "" {
		g.Go(func() error {
			return withSource(gctx, o, src.Dictionary, func(r io.Reader) (err error) {
				dictionary, err = census.ReadDictionary(gctx, r)
				return err
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "dataset: load")
	}

	if len(counties) == 0 {
		return nil, eris.New("dataset: county table has no rows")
	}
	if stateGeo.Len() == 0 {
		return nil, eris.New("dataset: state geography has no features")
	}
	if dictionary == nil {
		dictionary = census.Dictionary{}
	}

	b := &Bundle{
		Counties:   transform.Enrich(counties, edges, opts.Transform),
		States:     states,
		Edges:      edges,
		CountyGeo:  countyGeo,
		StateGeo:   stateGeo,
		Dictionary: dictionary,
		LoadedAt:   time.Now(),
	}
	b.StateNames = census.StateNames(b.Counties)

	log.Info("dataset: loaded",
		zap.Int("counties", len(b.Counties)),
		zap.Int("states", len(b.States)),
		zap.Int("edges", len(b.Edges)),
		zap.Int("county_features", b.CountyGeo.Len()),
		zap.Int("state_features", b.StateGeo.Len()),
		zap.Int("state_names", len(b.StateNames)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return b, nil
}

// withSource opens source and hands the stream to parse.
func withSource(ctx context.Context, o fetcher.Opener, source string, parse func(io.Reader) error) error {
	rc, err := o.Open(ctx, source)
	if err != nil {
		return eris.Wrapf(err, "dataset: open %s", source)
	}
	defer rc.Close() //nolint:errcheck

	if err := parse(rc); err != nil {
		return eris.Wrapf(err, "dataset: parse %s", source)
	}
	return nil
}

// loadGeography reads a GeoJSON document or a (zipped) shapefile.
func loadGeography(ctx context.Context, o fetcher.Opener, source string, shpOpts geography.ShapefileOptions) (*geography.Document, error) {
	ext := strings.ToLower(sourceExt(source))
	if ext != ".zip" && ext != ".shp" {
		var doc *geography.Document
		err := withSource(ctx, o, source, func(r io.Reader) (err error) {
			doc, err = geography.ReadGeoJSON(r)
			return err
		})
		return doc, err
	}

	// A local .shp is read in place so its .dbf and .shx siblings are found.
	local := fetcher.Scheme(source) == "" || fetcher.Scheme(source) == "file"
	if ext == ".shp" && local {
		doc, err := geography.ReadShapefile(strings.TrimPrefix(source, "file://"), shpOpts)
		if err != nil {
			return nil, eris.Wrapf(err, "dataset: read shapefile %s", source)
		}
		return doc, nil
	}
	if ext == ".shp" {
		return nil, eris.Errorf("dataset: remote shapefile %s must be zipped", source)
	}

	dir, err := os.MkdirTemp("", "rent-geo-*")
	if err != nil {
		return nil, eris.Wrap(err, "dataset: create temp dir")
	}
	defer os.RemoveAll(dir) //nolint:errcheck

	archive := filepath.Join(dir, "geography.zip")
	n, err := fetcher.ToFile(ctx, o, source, archive)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: download %s", source)
	}
	zap.L().Debug("dataset: downloaded shapefile archive", zap.String("source", source), zap.Int64("bytes", n))

	doc, err := geography.ReadShapefile(archive, shpOpts)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: read shapefile %s", source)
	}
	return doc, nil
}

// sourceExt returns the file extension of a URL path or local path.
func sourceExt(source string) string {
	if fetcher.Scheme(source) != "" {
		if u, err := url.Parse(source); err == nil {
			return path.Ext(u.Path)
		}
	}
	return filepath.Ext(source)
}
