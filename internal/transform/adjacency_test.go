package transform

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umbc-cmsc636/rent-analytics/internal/census"
)

func county(geoid string, rent, rooms *float64) census.CountyRecord {
	return census.CountyRecord{
		GEOID:    geoid,
		StateID:  census.StateOf(geoid),
		Measures: census.Measures{MedianRent: rent, MedianRooms: rooms},
	}
}

func edge(from, to string) census.AdjacencyEdge {
	return census.AdjacencyEdge{CountyGEOID: from, NeighborGEOID: to}
}

func byGEOID(rows []census.CountyRecord) map[string]census.CountyRecord {
	m := make(map[string]census.CountyRecord, len(rows))
	for _, r := range rows {
		m[r.GEOID] = r
	}
	return m
}

func TestEnrich_BaseRatios(t *testing.T) {
	in := []census.CountyRecord{{
		GEOID: "24001",
		Measures: census.Measures{
			OccupiedUnits: census.Num(200),
			RenterUnits:   census.Num(50),
			MedianRent:    census.Num(1000),
			MedianRooms:   census.Num(5),
		},
	}}
	out := Enrich(in, nil, Options{})
	require.Len(t, out, 1)
	assert.InDelta(t, 25.0, *out[0].PctRenter, 1e-9)
	assert.InDelta(t, 200.0, *out[0].RentPerRoom, 1e-9)
}

func TestEnrich_ZeroOccupiedIsMissing(t *testing.T) {
	in := []census.CountyRecord{{
		GEOID:    "02999",
		Measures: census.Measures{OccupiedUnits: census.Num(0), RenterUnits: census.Num(0), MedianRent: census.Num(800), MedianRooms: census.Num(0)},
	}}
	out := Enrich(in, nil, Options{})
	assert.Nil(t, out[0].PctRenter)
	assert.Nil(t, out[0].RentPerRoom)
}

func TestEnrich_NeighborMean(t *testing.T) {
	in := []census.CountyRecord{
		county("24001", census.Num(1000), census.Num(5)),
		county("24003", census.Num(1200), census.Num(4)),
		county("24005", census.Num(800), census.Num(6)),
	}
	edges := []census.AdjacencyEdge{edge("24001", "24003"), edge("24001", "24005")}

	out := byGEOID(Enrich(in, edges, Options{}))
	c := out["24001"]
	require.NotNil(t, c.AvgSurroundingMedRent)
	assert.InDelta(t, 1000.0, *c.AvgSurroundingMedRent, 1e-9)
	assert.InDelta(t, 5.0, *c.AvgSurroundingMedRooms, 1e-9)
	assert.InDelta(t, 200.0, *c.AvgSurroundingRentPerRoom, 1e-9)
	assert.Equal(t, 100.0, *c.RelSurroundingMedRent, "rent equal to neighbor average is exactly 100")
	assert.InDelta(t, 100.0, *c.RelSurroundingMedRentPerRoom, 1e-9)
	assert.Equal(t, 2, c.NeighborCount)
}

func TestEnrich_NoNeighborsKeepsRow(t *testing.T) {
	in := []census.CountyRecord{
		county("15005", census.Num(900), census.Num(4)),
		county("24001", census.Num(1000), census.Num(5)),
	}
	out := Enrich(in, []census.AdjacencyEdge{edge("24001", "99999")}, Options{})
	require.Len(t, out, 2)

	for _, r := range out {
		assert.Nil(t, r.AvgSurroundingMedRent, r.GEOID)
		assert.Nil(t, r.AvgSurroundingMedRooms, r.GEOID)
		assert.Nil(t, r.AvgSurroundingRentPerRoom, r.GEOID)
		assert.Nil(t, r.RelSurroundingMedRent, r.GEOID)
		assert.Nil(t, r.RelSurroundingMedRentPerRoom, r.GEOID)
		assert.Zero(t, r.NeighborCount, r.GEOID)
		assert.NotNil(t, r.MedianRent, "base attributes retained")
	}
}

func TestEnrich_NeighborsWithoutData(t *testing.T) {
	in := []census.CountyRecord{
		county("24001", census.Num(1000), census.Num(5)),
		county("24003", nil, nil),
	}
	out := byGEOID(Enrich(in, []census.AdjacencyEdge{edge("24001", "24003")}, Options{}))
	c := out["24001"]
	assert.Nil(t, c.AvgSurroundingMedRent)
	assert.Nil(t, c.RelSurroundingMedRent)
	assert.Nil(t, c.RelSurroundingMedRentPerRoom)
	assert.NotNil(t, c.RentPerRoom)
}

func TestEnrich_MeanSkipsMissingPerColumn(t *testing.T) {
	in := []census.CountyRecord{
		county("24001", census.Num(1000), census.Num(5)),
		county("24003", census.Num(1500), nil),
		county("24005", nil, census.Num(6)),
		county("24009", census.Num(500), census.Num(4)),
	}
	edges := []census.AdjacencyEdge{edge("24001", "24003"), edge("24001", "24005"), edge("24001", "24009")}
	c := byGEOID(Enrich(in, edges, Options{}))["24001"]
	assert.InDelta(t, 1000.0, *c.AvgSurroundingMedRent, 1e-9)
	assert.InDelta(t, 5.0, *c.AvgSurroundingMedRooms, 1e-9)
}

func TestEnrich_SelfEdges(t *testing.T) {
	in := []census.CountyRecord{
		county("24001", census.Num(1000), census.Num(5)),
		county("24003", census.Num(2000), census.Num(5)),
	}
	edges := []census.AdjacencyEdge{edge("24001", "24001"), edge("24001", "24003")}

	with := byGEOID(Enrich(in, edges, Options{}))["24001"]
	assert.InDelta(t, 1500.0, *with.AvgSurroundingMedRent, 1e-9)

	without := byGEOID(Enrich(in, edges, Options{ExcludeSelf: true}))["24001"]
	assert.InDelta(t, 2000.0, *without.AvgSurroundingMedRent, 1e-9)
	assert.InDelta(t, 50.0, *without.RelSurroundingMedRent, 1e-9)
}

func TestEnrich_OrderIndependent(t *testing.T) {
	in := []census.CountyRecord{
		county("24001", census.Num(1000), census.Num(5)),
		county("24003", census.Num(1210), census.Num(4.5)),
		county("24005", census.Num(870), census.Num(6)),
		county("24009", census.Num(1333), census.Num(5.2)),
	}
	edges := []census.AdjacencyEdge{
		edge("24001", "24003"), edge("24001", "24005"), edge("24001", "24009"),
		edge("24003", "24001"), edge("24005", "24001"), edge("24009", "24001"),
	}
	want := byGEOID(Enrich(in, edges, Options{}))

	rng := rand.New(rand.NewPCG(1, 2))
	for range 5 {
		shuffledIn := append([]census.CountyRecord(nil), in...)
		shuffledEdges := append([]census.AdjacencyEdge(nil), edges...)
		rng.Shuffle(len(shuffledIn), func(i, j int) { shuffledIn[i], shuffledIn[j] = shuffledIn[j], shuffledIn[i] })
		rng.Shuffle(len(shuffledEdges), func(i, j int) { shuffledEdges[i], shuffledEdges[j] = shuffledEdges[j], shuffledEdges[i] })

		got := byGEOID(Enrich(shuffledIn, shuffledEdges, Options{}))
		for geoid, w := range want {
			assert.InDelta(t, *w.AvgSurroundingMedRent, *got[geoid].AvgSurroundingMedRent, 1e-9, geoid)
		}
	}
}

func TestEnrich_DoesNotMutateInput(t *testing.T) {
	in := []census.CountyRecord{
		county("24001", census.Num(1000), census.Num(5)),
		county("24003", census.Num(1200), census.Num(4)),
	}
	_ = Enrich(in, []census.AdjacencyEdge{edge("24001", "24003")}, Options{})
	assert.Nil(t, in[0].RentPerRoom)
	assert.Nil(t, in[0].AvgSurroundingMedRent)
}
