// Package census holds the ACS housing tables the dashboard works with and
// reads them from their published CSV and pipe-delimited formats.
package census

// Measures are the ACS 5-year housing estimates shared by county and state rows.
// A nil value is missing in the source (blank cell or ACS annotation code).
type Measures struct {
	HousingUnits  *float64 `json:"housing_units"`
	OccupiedUnits *float64 `json:"occupied_units"`
	MedianRent    *float64 `json:"median_rent"`
	MedianRooms   *float64 `json:"median_rooms"`
	RenterUnits   *float64 `json:"renter_units"`
}

// Derived are the metrics computed from the base table and the adjacency list.
// The surrounding fields stay nil for counties without a matched neighbor.
type Derived struct {
	PctRenter                    *float64 `json:"pct_renter"`
	RentPerRoom                  *float64 `json:"rent_per_room"`
	AvgSurroundingMedRent        *float64 `json:"avg_surrounding_med_rent"`
	AvgSurroundingMedRooms       *float64 `json:"avg_surrounding_med_rooms"`
	AvgSurroundingRentPerRoom    *float64 `json:"avg_surrounding_rent_per_room"`
	RelSurroundingMedRent        *float64 `json:"rel_surrounding_med_rent"`
	RelSurroundingMedRentPerRoom *float64 `json:"rel_surrounding_med_rent_per_room"`
	NeighborCount                int      `json:"neighbor_count"`
}

// CountyRecord is one row of the county table, keyed by its 5-digit GEOID.
type CountyRecord struct {
	GEOID     string `json:"geoid"`
	StateID   string `json:"state_id"`
	StateAbbr string `json:"state_abbr"`
	StateName string `json:"state_name"`
	Name      string `json:"name"`
	Measures
	Derived
}

// StateRecord is one row of the state table, keyed by its 2-digit GEOID.
type StateRecord struct {
	GEOID     string `json:"geoid"`
	StateAbbr string `json:"state_abbr"`
	Name      string `json:"name"`
	Measures
}

// AdjacencyEdge states that County borders Neighbor. Edges are directed.
type AdjacencyEdge struct {
	CountyGEOID   string `json:"county_geoid"`
	NeighborGEOID string `json:"neighbor_geoid"`
}

// IndexCounties maps GEOID to position in rows.
func IndexCounties(rows []CountyRecord) map[string]int {
	idx := make(map[string]int, len(rows))
	for i, r := range rows {
		idx[r.GEOID] = i
	}
	return idx
}
