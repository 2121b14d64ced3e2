// Package geography reads and writes the GeoJSON feature collections the
// choropleth is drawn from. Features are opaque apart from their identifier
// and properties; geometries are decoded once with go-geom and re-encoded
// only at load time.
package geography

import (
	"bytes"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/umbc-cmsc636/rent-analytics/internal/census"
)

// Property keys used by the county and state documents.
const (
	StateRefKey  = "STATE"
	StateNameKey = "name"
)

// Feature is one named geographic area.
type Feature struct {
	ID         string
	Properties map[string]any
	Geometry   geom.T

	geometryJSON json.RawMessage
}

// NewFeature builds a feature and encodes its geometry.
func NewFeature(id string, props map[string]any, g geom.T) (*Feature, error) {
	f := &Feature{ID: id, Properties: props, Geometry: g}
	if g == nil {
		return f, nil
	}
	data, err := geojson.Marshal(g)
	if err != nil {
		return nil, eris.Wrapf(err, "geography: encode geometry of %s", id)
	}
	f.geometryJSON = data
	return f, nil
}

// Prop returns a property as text. Numeric values are formatted without
// exponent so numeric codes survive.
func (f *Feature) Prop(key string) string {
	v, ok := f.Properties[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

// StateRef returns the 2-digit FIPS code of the state containing f. County
// documents carry it in the STATE property; a county GEOID also starts with it.
func (f *Feature) StateRef() string {
	if ref := census.NormalizeGEOID(f.Prop(StateRefKey), census.StateIDWidth); ref != "" {
		return ref
	}
	if len(f.ID) == census.CountyIDWidth {
		return census.StateOf(f.ID)
	}
	return ""
}

type featureJSON struct {
	Type       string          `json:"type"`
	ID         json.RawMessage `json:"id,omitempty"`
	Properties map[string]any  `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`
}

// MarshalJSON implements json.Marshaler.
func (f *Feature) MarshalJSON() ([]byte, error) {
	out := featureJSON{Type: "Feature", Properties: f.Properties, Geometry: f.geometryJSON}
	if f.ID != "" {
		id, err := json.Marshal(f.ID)
		if err != nil {
			return nil, err
		}
		out.ID = id
	}
	if out.Geometry == nil {
		out.Geometry = json.RawMessage("null")
	}
	if out.Properties == nil {
		out.Properties = map[string]any{}
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler. Numeric ids are kept in their
// textual form.
func (f *Feature) UnmarshalJSON(data []byte) error {
	var raw featureJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return eris.Wrap(err, "geography: decode feature")
	}
	if raw.Type != "" && raw.Type != "Feature" {
		return eris.Errorf("geography: expected Feature, got %q", raw.Type)
	}

	id, err := decodeID(raw.ID)
	if err != nil {
		return err
	}

	var g geom.T
	if len(raw.Geometry) > 0 && !bytes.Equal(bytes.TrimSpace(raw.Geometry), []byte("null")) {
		if err := geojson.Unmarshal(raw.Geometry, &g); err != nil {
			return eris.Wrapf(err, "geography: decode geometry of feature %s", id)
		}
	}

	nf, err := NewFeature(id, raw.Properties, g)
	if err != nil {
		return err
	}
	*f = *nf
	return nil
}

func decodeID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", eris.Wrap(err, "geography: decode feature id")
		}
		return s, nil
	}
	return strings.TrimSpace(string(raw)), nil
}

// Document is a GeoJSON FeatureCollection.
type Document struct {
	Features []*Feature
}

// NewDocument concatenates feature lists into a new collection. The
// features are shared, not copied.
func NewDocument(parts ...[]*Feature) *Document {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	d := &Document{Features: make([]*Feature, 0, n)}
	for _, p := range parts {
		d.Features = append(d.Features, p...)
	}
	return d
}

type documentJSON struct {
	Type     string     `json:"type"`
	Features []*Feature `json:"features"`
}

// MarshalJSON always emits the FeatureCollection marker and a features
// array, empty when there are no features.
func (d *Document) MarshalJSON() ([]byte, error) {
	features := d.Features
	if features == nil {
		features = []*Feature{}
	}
	return json.Marshal(documentJSON{Type: "FeatureCollection", Features: features})
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Document) UnmarshalJSON(data []byte) error {
	var raw documentJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return eris.Wrap(err, "geography: decode feature collection")
	}
	if raw.Type != "FeatureCollection" {
		return eris.Errorf("geography: expected FeatureCollection, got %q", raw.Type)
	}
	d.Features = raw.Features
	return nil
}

// ReadGeoJSON decodes a FeatureCollection document.
func ReadGeoJSON(r io.Reader) (*Document, error) {
	var d Document
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return nil, eris.Wrap(err, "geography: read geojson")
	}
	return &d, nil
}

// Len returns the number of features.
func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Features)
}

// Select returns the features for which keep is true, in document order.
func (d *Document) Select(keep func(*Feature) bool) []*Feature {
	var out []*Feature
	for _, f := range d.Features {
		if keep(f) {
			out = append(out, f)
		}
	}
	return out
}

// IDs returns the feature identifiers in document order.
func (d *Document) IDs() []string {
	ids := make([]string, 0, len(d.Features))
	for _, f := range d.Features {
		ids = append(ids, f.ID)
	}
	return ids
}

// NameIndex maps the nameKey property of every feature to its identifier.
// The first feature wins when two share a name.
func (d *Document) NameIndex(nameKey string) map[string]string {
	idx := make(map[string]string, len(d.Features))
	for _, f := range d.Features {
		name := f.Prop(nameKey)
		if name == "" {
			continue
		}
		if _, dup := idx[name]; !dup {
			idx[name] = f.ID
		}
	}
	return idx
}

// StateNameIndex maps state display names to state feature identifiers.
func (d *Document) StateNameIndex() map[string]string {
	return d.NameIndex(StateNameKey)
}
