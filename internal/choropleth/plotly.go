// Package choropleth turns a filtered county table and its geography into
// a Plotly.js figure. The browser does the drawing; this package only shapes
// the data: one location per row, a numeric z value, hover text, styling.
package choropleth

import (
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/umbc-cmsc636/rent-analytics/internal/census"
	"github.com/umbc-cmsc636/rent-analytics/internal/geography"
)

// Request is one render call.
type Request struct {
	Rows []census.CountyRecord
	// States are drawn as whole-state shapes under the county detail.
	States    []census.StateRecord
	Geography *geography.Document
	Metric    string
	Style     Style
}

// Renderer produces a figure for a request.
type Renderer interface {
	Render(Request) (*Figure, error)
}

// Figure is a Plotly.js figure: traces plus layout.
type Figure struct {
	Data   []Trace `json:"data"`
	Layout Layout  `json:"layout"`
}

// Trace is a choropleth trace.
type Trace struct {
	Type          string              `json:"type"`
	Name          string              `json:"name"`
	GeoJSON       *geography.Document `json:"geojson"`
	Locations     []string            `json:"locations"`
	Z             []*float64          `json:"z"`
	Text          []string            `json:"text"`
	HoverTemplate string              `json:"hovertemplate"`
	Colorscale    Colorscale          `json:"colorscale"`
	ZMin          float64             `json:"zmin"`
	ZMax          float64             `json:"zmax"`
	ShowScale     bool                `json:"showscale"`
	ColorBar      *ColorBar           `json:"colorbar,omitempty"`
	Marker        Marker              `json:"marker"`
}

// ColorBar is the legend of a trace.
type ColorBar struct {
	Title     Title `json:"title"`
	TickFont  Font  `json:"tickfont"`
	Thickness int   `json:"thickness"`
}

// Marker styles feature borders.
type Marker struct {
	Line Line `json:"line"`
}

// Line is a border stroke.
type Line struct {
	Color string  `json:"color"`
	Width float64 `json:"width"`
}

// Title is a text label.
type Title struct {
	Text string `json:"text"`
	Font Font   `json:"font"`
}

// Font is a text color.
type Font struct {
	Color string `json:"color"`
}

// Layout is the figure layout.
type Layout struct {
	Margin       Margin `json:"margin"`
	PaperBGColor string `json:"paper_bgcolor"`
	PlotBGColor  string `json:"plot_bgcolor"`
	Font         Font   `json:"font"`
	Geo          Geo    `json:"geo"`
	UIRevision   string `json:"uirevision,omitempty"`
}

// Margin is the plot margin in pixels.
type Margin struct {
	R int `json:"r"`
	T int `json:"t"`
	L int `json:"l"`
	B int `json:"b"`
}

// Geo is the map projection area.
type Geo struct {
	Scope     string `json:"scope"`
	BGColor   string `json:"bgcolor"`
	LakeColor string `json:"lakecolor"`
	ShowLakes bool   `json:"showlakes"`
}

// PlotlyRenderer renders figures for Plotly.js.
type PlotlyRenderer struct {
	catalog *Catalog
}

// NewPlotlyRenderer creates a renderer over the given metric catalog.
func NewPlotlyRenderer(catalog *Catalog) *PlotlyRenderer {
	return &PlotlyRenderer{catalog: catalog}
}

// Render builds the figure. County features come first in the request
// geography; any feature whose id is a state row becomes an outline trace.
// Each trace is colored over [0, max] of its own values, so state totals
// never flatten the county detail; only the county trace shows a colorbar.
func (p *PlotlyRenderer) Render(req Request) (*Figure, error) {
	metric, err := p.catalog.Lookup(req.Metric)
	if err != nil {
		return nil, err
	}
	if req.Geography == nil {
		return nil, eris.New("choropleth: request has no geography")
	}
	style := req.Style.WithDefaults()
	log := zap.L().With(zap.String("component", "choropleth"), zap.String("metric", metric.Key))

	counties, stateShapes := splitFeatures(req.Geography, req.States)

	countyTrace := newTrace("counties", counties, style, p.catalog)
	featureIDs := make(map[string]bool, counties.Len())
	for _, id := range counties.IDs() {
		featureIDs[id] = true
	}
	var dropped, unmatched int
	for _, r := range req.Rows {
		if r.GEOID == "" {
			dropped++
			continue
		}
		if !featureIDs[r.GEOID] {
			unmatched++
		}
		v := metric.Value(r)
		countyTrace.add(r.GEOID, v, fmt.Sprintf("<b>%s</b>, %s<br>%s: %s", r.Name, r.StateName, metric.Label, metric.FormatValue(v)))
	}
	if dropped > 0 {
		log.Warn("choropleth: dropped rows without GEOID", zap.Int("dropped", dropped))
	}
	if unmatched > 0 {
		log.Warn("choropleth: rows have no matching feature and will not be drawn", zap.Int("unmatched", unmatched))
	}
	countyTrace.ShowScale = true
	countyTrace.ColorBar = &ColorBar{
		Title:     Title{Text: metric.Label, Font: Font{Color: style.Text}},
		TickFont:  Font{Color: style.Text},
		Thickness: 15,
	}

	fig := &Figure{Layout: layout(style)}
	fig.Data = append(fig.Data, *countyTrace)

	if len(req.States) > 0 {
		stateTrace := newTrace("states", stateShapes, style, p.catalog)
		for _, s := range req.States {
			v := metric.StateValue(s)
			stateTrace.add(s.GEOID, v, fmt.Sprintf("<b>%s</b><br>%s: %s", s.Name, metric.Label, metric.FormatValue(v)))
		}
		fig.Data = append(fig.Data, *stateTrace)
	}

	for i := range fig.Data {
		fig.Data[i].ZMax = fig.Data[i].maxZ()
	}

	log.Debug("choropleth: rendered",
		zap.Int("county_locations", len(countyTrace.Locations)),
		zap.Int("state_locations", len(req.States)),
		zap.Float64("zmax", fig.Data[0].ZMax),
	)
	return fig, nil
}

func newTrace(name string, features *geography.Document, style Style, catalog *Catalog) *Trace {
	return &Trace{
		Type:          "choropleth",
		Name:          name,
		GeoJSON:       features,
		Locations:     []string{},
		Z:             []*float64{},
		Text:          []string{},
		HoverTemplate: "%{text}<extra></extra>",
		Colorscale:    catalog.Colorscale(style.Colorscale),
		Marker:        Marker{Line: Line{Color: style.BorderColor, Width: 0.5}},
	}
}

func (t *Trace) add(location string, z *float64, text string) {
	t.Locations = append(t.Locations, location)
	t.Z = append(t.Z, z)
	t.Text = append(t.Text, text)
}

func (t *Trace) maxZ() float64 {
	m := 0.0
	for _, v := range t.Z {
		if v != nil && *v > m {
			m = *v
		}
	}
	return m
}

func layout(style Style) Layout {
	return Layout{
		PaperBGColor: style.Background,
		PlotBGColor:  style.Background,
		Font:         Font{Color: style.Text},
		Geo: Geo{
			Scope:     style.Scope,
			BGColor:   style.Background,
			LakeColor: style.Background,
			ShowLakes: true,
		},
		UIRevision: "map",
	}
}

// splitFeatures separates state outline features (ids of state rows) from
// the county features.
func splitFeatures(doc *geography.Document, states []census.StateRecord) (counties, outlines *geography.Document) {
	stateIDs := make(map[string]bool, len(states))
	for _, s := range states {
		stateIDs[s.GEOID] = true
	}
	counties = geography.NewDocument(doc.Select(func(f *geography.Feature) bool { return !stateIDs[f.ID] }))
	outlines = geography.NewDocument(doc.Select(func(f *geography.Feature) bool { return stateIDs[f.ID] }))
	return counties, outlines
}
