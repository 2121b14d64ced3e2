// Package transform derives the neighbor-relative rent metrics of the county table.
package transform

import (
	"go.uber.org/zap"

	"github.com/umbc-cmsc636/rent-analytics/internal/census"
)

// Options tunes Enrich.
type Options struct {
	// ExcludeSelf drops edges from a county to itself. The Census adjacency
	// file lists every county as its own neighbor.
	ExcludeSelf bool
}

// neighborStats accumulates the neighbor values of one origin county.
type neighborStats struct {
	rents []*float64
	rooms []*float64
}

// Enrich returns a copy of counties with the Derived metrics filled in.
// Every input row is kept; counties without a matched neighbor keep nil
// surrounding metrics.
func Enrich(counties []census.CountyRecord, edges []census.AdjacencyEdge, opts Options) []census.CountyRecord {
	out := make([]census.CountyRecord, len(counties))
	copy(out, counties)

	for i := range out {
		r := &out[i]
		r.Derived = census.Derived{
			PctRenter:   census.Percent(r.RenterUnits, r.OccupiedUnits),
			RentPerRoom: census.Ratio(r.MedianRent, r.MedianRooms),
		}
	}

	idx := census.IndexCounties(out)
	stats := joinNeighbors(out, idx, edges, opts)

	for geoid, s := range stats {
		r := &out[idx[geoid]]
		avgRent, nRent := census.Mean(s.rents)
		avgRooms, nRooms := census.Mean(s.rooms)

		r.AvgSurroundingMedRent = avgRent
		r.AvgSurroundingMedRooms = avgRooms
		r.NeighborCount = max(nRent, nRooms)
		r.AvgSurroundingRentPerRoom = census.Ratio(avgRent, avgRooms)
		r.RelSurroundingMedRent = census.Percent(r.MedianRent, avgRent)
		r.RelSurroundingMedRentPerRoom = census.Percent(r.RentPerRoom, r.AvgSurroundingRentPerRoom)
	}

	zap.L().Debug("transform: enriched county table",
		zap.Int("counties", len(out)),
		zap.Int("edges", len(edges)),
		zap.Int("with_neighbors", len(stats)),
	)
	return out
}

// joinNeighbors inner-joins the edges to the table on the neighbor GEOID and
// groups the neighbor values by origin county. Origins absent from the
// table are dropped since there is no row to attach them to.
func joinNeighbors(rows []census.CountyRecord, idx map[string]int, edges []census.AdjacencyEdge, opts Options) map[string]*neighborStats {
	stats := make(map[string]*neighborStats)
	for _, e := range edges {
		if opts.ExcludeSelf && e.CountyGEOID == e.NeighborGEOID {
			continue
		}
		ni, ok := idx[e.NeighborGEOID]
		if !ok {
			continue
		}
		if _, ok := idx[e.CountyGEOID]; !ok {
			continue
		}
		s := stats[e.CountyGEOID]
		if s == nil {
			s = &neighborStats{}
			stats[e.CountyGEOID] = s
		}
		n := rows[ni]
		s.rents = append(s.rents, n.MedianRent)
		s.rooms = append(s.rooms, n.MedianRooms)
	}
	return stats
}
