package census

import (
	"context"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/umbc-cmsc636/rent-analytics/internal/fetcher"
)

// Columns names the source CSV headers for each record field. An empty name
// disables the field; its values stay missing.
type Columns struct {
	GEOID         string `mapstructure:"geoid"`
	StateID       string `mapstructure:"state_id"`
	StateAbbr     string `mapstructure:"state_abbr"`
	StateName     string `mapstructure:"state_name"`
	Name          string `mapstructure:"name"`
	HousingUnits  string `mapstructure:"housing_units"`
	OccupiedUnits string `mapstructure:"occupied_units"`
	MedianRent    string `mapstructure:"median_rent"`
	MedianRooms   string `mapstructure:"median_rooms"`
	RenterUnits   string `mapstructure:"renter_units"`
}

// DefaultCountyColumns returns the headers of the ACS 5-year housing
// estimate export by county.
func DefaultCountyColumns() Columns {
	return Columns{
		GEOID:         "GEOID",
		StateID:       "STATE",
		StateAbbr:     "STUSAB",
		StateName:     "STATE_NAME",
		Name:          "NAME",
		HousingUnits:  "B25002EST1",
		OccupiedUnits: "B25002EST2",
		MedianRent:    "B25058EST1",
		MedianRooms:   "B25021EST3",
		RenterUnits:   "B25032EST13",
	}
}

// DefaultStateColumns returns the headers of the by-state export. The state
// file has no separate state id or state name column.
func DefaultStateColumns() Columns {
	c := DefaultCountyColumns()
	c.StateID = ""
	c.StateName = ""
	return c
}

// Adjacency file headers.
const (
	AdjacencyCountyColumn   = "County GEOID"
	AdjacencyNeighborColumn = "Neighbor GEOID"
)

// header resolves column names to positions in a header row.
type header map[string]int

func newHeader(row []string) header {
	h := make(header, len(row))
	for i, name := range row {
		h[strings.TrimSpace(name)] = i
	}
	return h
}

// index returns the position of name, -1 for a disabled column, or an error
// when a required column is absent.
func (h header) index(name string, required bool) (int, error) {
	if name == "" {
		return -1, nil
	}
	if i, ok := h[name]; ok {
		return i, nil
	}
	if required {
		return -1, eris.Errorf("census: required column %q not in header", name)
	}
	zap.L().Warn("census: optional column missing, values will be empty", zap.String("column", name))
	return -1, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

type measureIdx struct {
	housing, occupied, rent, rooms, renters int
}

func (h header) measures(cols Columns) (measureIdx, error) {
	var m measureIdx
	var err error
	for _, f := range []struct {
		dst  *int
		name string
	}{
		{&m.housing, cols.HousingUnits},
		{&m.occupied, cols.OccupiedUnits},
		{&m.rent, cols.MedianRent},
		{&m.rooms, cols.MedianRooms},
		{&m.renters, cols.RenterUnits},
	} {
		if *f.dst, err = h.index(f.name, false); err != nil {
			return m, err
		}
	}
	return m, nil
}

func (m measureIdx) parse(row []string) Measures {
	return Measures{
		HousingUnits:  ParseNum(cell(row, m.housing)),
		OccupiedUnits: ParseNum(cell(row, m.occupied)),
		MedianRent:    ParseNum(cell(row, m.rent)),
		MedianRooms:   ParseNum(cell(row, m.rooms)),
		RenterUnits:   ParseNum(cell(row, m.renters)),
	}
}

// ReadCounties parses the county table. GEOIDs are kept as strings and
// re-padded to five digits; a duplicate GEOID is an error.
func ReadCounties(ctx context.Context, r io.Reader, cols Columns) ([]CountyRecord, error) {
	rows, err := fetcher.ReadCSV(ctx, r, fetcher.CSVOptions{LazyQuotes: true})
	if err != nil {
		return nil, eris.Wrap(err, "census: read counties")
	}
	if len(rows) == 0 {
		return nil, eris.New("census: county table is empty")
	}

	h := newHeader(rows[0])
	geoidIdx, err := h.index(cols.GEOID, true)
	if err != nil {
		return nil, err
	}
	stateIdx, err := h.index(cols.StateID, false)
	if err != nil {
		return nil, err
	}
	abbrIdx, _ := h.index(cols.StateAbbr, false)
	stateNameIdx, _ := h.index(cols.StateName, false)
	nameIdx, _ := h.index(cols.Name, false)
	mIdx, err := h.measures(cols)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(rows))
	out := make([]CountyRecord, 0, len(rows)-1)
	var skipped int
	for line, row := range rows[1:] {
		geoid := NormalizeGEOID(cell(row, geoidIdx), CountyIDWidth)
		if geoid == "" {
			skipped++
			continue
		}
		if seen[geoid] {
			return nil, eris.Errorf("census: duplicate county GEOID %q on line %d", geoid, line+2)
		}
		seen[geoid] = true

		stateID := NormalizeGEOID(cell(row, stateIdx), StateIDWidth)
		if stateID == "" {
			stateID = StateOf(geoid)
		}

		out = append(out, CountyRecord{
			GEOID:     geoid,
			StateID:   stateID,
			StateAbbr: cell(row, abbrIdx),
			StateName: cell(row, stateNameIdx),
			Name:      cell(row, nameIdx),
			Measures:  mIdx.parse(row),
		})
	}

	if skipped > 0 {
		zap.L().Warn("census: skipped county rows without GEOID", zap.Int("skipped", skipped))
	}
	return out, nil
}

// ReadStates parses the state table.
func ReadStates(ctx context.Context, r io.Reader, cols Columns) ([]StateRecord, error) {
	rows, err := fetcher.ReadCSV(ctx, r, fetcher.CSVOptions{LazyQuotes: true})
	if err != nil {
		return nil, eris.Wrap(err, "census: read states")
	}
	if len(rows) == 0 {
		return nil, eris.New("census: state table is empty")
	}

	h := newHeader(rows[0])
	geoidIdx, err := h.index(cols.GEOID, true)
	if err != nil {
		return nil, err
	}
	abbrIdx, _ := h.index(cols.StateAbbr, false)
	nameIdx, _ := h.index(cols.Name, false)
	mIdx, err := h.measures(cols)
	if err != nil {
		return nil, err
	}

	out := make([]StateRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		geoid := NormalizeGEOID(cell(row, geoidIdx), StateIDWidth)
		if geoid == "" {
			continue
		}
		out = append(out, StateRecord{
			GEOID:     geoid,
			StateAbbr: cell(row, abbrIdx),
			Name:      cell(row, nameIdx),
			Measures:  mIdx.parse(row),
		})
	}
	return out, nil
}

// ReadAdjacency parses the pipe-delimited county adjacency file. Columns
// other than the two GEOIDs (names, border length) are ignored.
func ReadAdjacency(ctx context.Context, r io.Reader) ([]AdjacencyEdge, error) {
	rows, err := fetcher.ReadCSV(ctx, r, fetcher.CSVOptions{Delimiter: '|', LazyQuotes: true})
	if err != nil {
		return nil, eris.Wrap(err, "census: read adjacency")
	}
	if len(rows) == 0 {
		return nil, eris.New("census: adjacency file is empty")
	}

	h := newHeader(rows[0])
	countyIdx, err := h.index(AdjacencyCountyColumn, true)
	if err != nil {
		return nil, err
	}
	neighborIdx, err := h.index(AdjacencyNeighborColumn, true)
	if err != nil {
		return nil, err
	}

	edges := make([]AdjacencyEdge, 0, len(rows)-1)
	for _, row := range rows[1:] {
		county := NormalizeGEOID(cell(row, countyIdx), CountyIDWidth)
		neighbor := NormalizeGEOID(cell(row, neighborIdx), CountyIDWidth)
		if county == "" || neighbor == "" {
			continue
		}
		edges = append(edges, AdjacencyEdge{CountyGEOID: county, NeighborGEOID: neighbor})
	}
	return edges, nil
}
