package choropleth

import "encoding/json"

// Style is the presentation handed to every render call.
type Style struct {
	Background string `mapstructure:"background" json:"background"`
	Text       string `mapstructure:"text" json:"text"`
	Colorscale string `mapstructure:"colorscale" json:"colorscale"`
	Scope      string `mapstructure:"scope" json:"scope"`
	// BorderColor outlines every feature.
	BorderColor string `mapstructure:"border_color" json:"border_color"`
}

// DefaultStyle is the dark dashboard theme.
func DefaultStyle() Style {
	return Style{
		Background:  "#000000",
		Text:        "#FFFFFF",
		Colorscale:  "BuPu",
		Scope:       "usa",
		BorderColor: "#444444",
	}
}

// WithDefaults fills blank fields from DefaultStyle.
func (s Style) WithDefaults() Style {
	d := DefaultStyle()
	if s.Background == "" {
		s.Background = d.Background
	}
	if s.Text == "" {
		s.Text = d.Text
	}
	if s.Colorscale == "" {
		s.Colorscale = d.Colorscale
	}
	if s.Scope == "" {
		s.Scope = d.Scope
	}
	if s.BorderColor == "" {
		s.BorderColor = d.BorderColor
	}
	return s
}

// Colorscale is a named Plotly scale, expanded to evenly spaced stops when
// the catalog knows them.
type Colorscale struct {
	Name  string
	Stops []string
}

// MarshalJSON emits the stop list, or the bare name for Plotly built-ins.
func (c Colorscale) MarshalJSON() ([]byte, error) {
	if len(c.Stops) == 0 {
		return json.Marshal(c.Name)
	}
	if len(c.Stops) == 1 {
		return json.Marshal([][2]any{{0, c.Stops[0]}, {1, c.Stops[0]}})
	}
	out := make([][2]any, len(c.Stops))
	last := float64(len(c.Stops) - 1)
	for i, color := range c.Stops {
		out[i] = [2]any{float64(i) / last, color}
	}
	return json.Marshal(out)
}
