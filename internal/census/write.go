package census

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
)

// Derived column headers used by the exports.
var DerivedHeaders = []string{
	"PCT_RENTER",
	"RENT_PER_ROOM",
	"AVG_SURROUNDING_MED_RENT",
	"AVG_SURROUNDING_MED_ROOMS",
	"AVG_SURROUNDING_RENT_PER_ROOM",
	"REL_SURROUNDING_MED_RENT",
	"REL_SURROUNDING_MED_RENT_PER_ROOM",
	"NEIGHBOR_COUNT",
}

// ExportHeader returns the header row written by WriteCSV. The base columns
// use the names in cols so the output reads back with ReadCounties.
func ExportHeader(cols Columns) []string {
	h := []string{
		cols.GEOID, cols.StateID, cols.StateAbbr, cols.StateName, cols.Name,
		cols.HousingUnits, cols.OccupiedUnits, cols.MedianRent, cols.MedianRooms, cols.RenterUnits,
	}
	return append(h, DerivedHeaders...)
}

// ExportRow renders r in ExportHeader order. Missing values are empty strings.
func ExportRow(r CountyRecord) []string {
	return []string{
		r.GEOID, r.StateID, r.StateAbbr, r.StateName, r.Name,
		FormatNum(r.HousingUnits), FormatNum(r.OccupiedUnits), FormatNum(r.MedianRent),
		FormatNum(r.MedianRooms), FormatNum(r.RenterUnits),
		FormatNum(r.PctRenter), FormatNum(r.RentPerRoom),
		FormatNum(r.AvgSurroundingMedRent), FormatNum(r.AvgSurroundingMedRooms),
		FormatNum(r.AvgSurroundingRentPerRoom), FormatNum(r.RelSurroundingMedRent),
		FormatNum(r.RelSurroundingMedRentPerRoom), strconv.Itoa(r.NeighborCount),
	}
}

// WriteCSV writes the county table, derived columns included.
func WriteCSV(w io.Writer, rows []CountyRecord, cols Columns) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader(cols)); err != nil {
		return eris.Wrap(err, "census: write header")
	}
	for _, r := range rows {
		if err := cw.Write(ExportRow(r)); err != nil {
			return eris.Wrapf(err, "census: write row %s", r.GEOID)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "census: flush csv")
}
