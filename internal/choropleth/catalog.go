package choropleth

import (
	_ "embed"
	"fmt"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/umbc-cmsc636/rent-analytics/internal/census"
)

//go:embed metrics.yaml
var defaultCatalogYAML []byte

// Accessor reads one metric from a county record.
type Accessor func(census.CountyRecord) *float64

// fields are the record fields a catalog entry may name.
var fields = map[string]Accessor{
	"housing_units":                     func(r census.CountyRecord) *float64 { return r.HousingUnits },
	"occupied_units":                    func(r census.CountyRecord) *float64 { return r.OccupiedUnits },
	"median_rent":                       func(r census.CountyRecord) *float64 { return r.MedianRent },
	"median_rooms":                      func(r census.CountyRecord) *float64 { return r.MedianRooms },
	"renter_units":                      func(r census.CountyRecord) *float64 { return r.RenterUnits },
	"pct_renter":                        func(r census.CountyRecord) *float64 { return r.PctRenter },
	"rent_per_room":                     func(r census.CountyRecord) *float64 { return r.RentPerRoom },
	"avg_surrounding_med_rent":          func(r census.CountyRecord) *float64 { return r.AvgSurroundingMedRent },
	"avg_surrounding_med_rooms":         func(r census.CountyRecord) *float64 { return r.AvgSurroundingMedRooms },
	"avg_surrounding_rent_per_room":     func(r census.CountyRecord) *float64 { return r.AvgSurroundingRentPerRoom },
	"rel_surrounding_med_rent":          func(r census.CountyRecord) *float64 { return r.RelSurroundingMedRent },
	"rel_surrounding_med_rent_per_room": func(r census.CountyRecord) *float64 { return r.RelSurroundingMedRentPerRoom },
}

// Metric is one colorable value.
type Metric struct {
	Key    string `yaml:"key" json:"key"`
	Field  string `yaml:"field" json:"-"`
	Column string `yaml:"column" json:"column,omitempty"`
	Label  string `yaml:"label" json:"label"`
	Format string `yaml:"format" json:"-"`
	// Description comes from the ACS data dictionary when one is loaded.
	Description string `yaml:"-" json:"description,omitempty"`

	value Accessor
}

// Value reads the metric from r.
func (m Metric) Value(r census.CountyRecord) *float64 {
	return m.value(r)
}

// StateValue reads the metric from a state row. Neighbor metrics are
// county-only and are always missing here.
func (m Metric) StateValue(s census.StateRecord) *float64 {
	return m.value(census.CountyRecord{GEOID: s.GEOID, Name: s.Name, Measures: s.Measures})
}

// FormatValue renders v for hover text.
func (m Metric) FormatValue(v *float64) string {
	if v == nil {
		return "n/a"
	}
	format := m.Format
	if format == "" {
		format = "%g"
	}
	return fmt.Sprintf(format, *v)
}

// Catalog is the set of metrics and colorscales the renderer knows.
type Catalog struct {
	DefaultMetric string
	metrics       []Metric
	byKey         map[string]int
	colorscales   map[string][]string
}

type catalogFile struct {
	Catalog struct {
		DefaultMetric string   `yaml:"default_metric"`
		Metrics       []Metric `yaml:"metrics"`
	} `yaml:"catalog"`
	Colorscales map[string][]string `yaml:"colorscales"`
}

// DefaultCatalog parses the embedded metric catalog.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalogYAML)
}

// ParseCatalog parses a catalog document. Every entry must name a known
// record field and keys must be unique.
func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, eris.Wrap(err, "choropleth: parse catalog")
	}
	if len(file.Catalog.Metrics) == 0 {
		return nil, eris.New("choropleth: catalog has no metrics")
	}

	c := &Catalog{
		DefaultMetric: file.Catalog.DefaultMetric,
		byKey:         make(map[string]int, len(file.Catalog.Metrics)),
		colorscales:   file.Colorscales,
	}
	for _, m := range file.Catalog.Metrics {
		if m.Key == "" {
			return nil, eris.New("choropleth: catalog metric without key")
		}
		if _, dup := c.byKey[m.Key]; dup {
			return nil, eris.Errorf("choropleth: duplicate metric %q", m.Key)
		}
		if m.Field == "" {
			m.Field = m.Key
		}
		acc, ok := fields[m.Field]
		if !ok {
			return nil, eris.Errorf("choropleth: metric %q names unknown field %q", m.Key, m.Field)
		}
		m.value = acc
		if m.Label == "" {
			m.Label = m.Key
		}
		c.byKey[m.Key] = len(c.metrics)
		c.metrics = append(c.metrics, m)
	}

	if c.DefaultMetric == "" {
		c.DefaultMetric = c.metrics[0].Key
	}
	if _, ok := c.byKey[c.DefaultMetric]; !ok {
		return nil, eris.Errorf("choropleth: default metric %q not in catalog", c.DefaultMetric)
	}
	return c, nil
}

// Lookup returns the metric named key.
func (c *Catalog) Lookup(key string) (Metric, error) {
	i, ok := c.byKey[key]
	if !ok {
		return Metric{}, eris.Errorf("choropleth: unknown metric %q", key)
	}
	return c.metrics[i], nil
}

// Metrics returns the catalog entries in file order.
func (c *Catalog) Metrics() []Metric {
	out := make([]Metric, len(c.metrics))
	copy(out, c.metrics)
	return out
}

// Colorscale resolves a scale name. Names without stops in the catalog are
// passed through for Plotly to resolve.
func (c *Catalog) Colorscale(name string) Colorscale {
	return Colorscale{Name: name, Stops: c.colorscales[name]}
}

// ColorscaleNames lists the scales the catalog expands.
func (c *Catalog) ColorscaleNames() []string {
	names := make([]string, 0, len(c.colorscales))
	for n := range c.colorscales {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ApplyDictionary fills metric descriptions from the ACS data dictionary.
func (c *Catalog) ApplyDictionary(d census.Dictionary) {
	for i := range c.metrics {
		if c.metrics[i].Column == "" {
			continue
		}
		if label, ok := d[c.metrics[i].Column]; ok {
			c.metrics[i].Description = label
		}
	}
}
