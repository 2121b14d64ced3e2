// Package export writes the enriched county table in the formats the
// export command offers. GEOIDs are always written as text.
package export

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/umbc-cmsc636/rent-analytics/internal/census"
)

// Format is an output format.
type Format string

// Supported formats.
const (
	CSV  Format = "csv"
	JSON Format = "json"
	XLSX Format = "xlsx"
)

// SheetName is the worksheet the XLSX export writes.
const SheetName = "Counties"

// ParseFormat accepts a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case CSV, JSON, XLSX:
		return f, nil
	default:
		return "", eris.Errorf("export: unknown format %q (want csv, json or xlsx)", s)
	}
}

// Write renders rows to w. cols names the base columns for CSV and XLSX.
func Write(w io.Writer, f Format, rows []census.CountyRecord, cols census.Columns) error {
	switch f {
	case CSV:
		return census.WriteCSV(w, rows, cols)
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if rows == nil {
			rows = []census.CountyRecord{}
		}
		return eris.Wrap(enc.Encode(rows), "export: encode json")
	case XLSX:
		return writeXLSX(w, rows, cols)
	default:
		return eris.Errorf("export: unknown format %q", f)
	}
}

// textColumns are the leading ExportRow columns that stay strings.
const textColumns = 5

func writeXLSX(w io.Writer, rows []census.CountyRecord, cols census.Columns) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet(SheetName)
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, name := range census.ExportHeader(cols) {
		header.AddCell().SetString(name)
	}

	for _, r := range rows {
		row := sheet.AddRow()
		for i, v := range census.ExportRow(r) {
			cell := row.AddCell()
			if i < textColumns {
				cell.SetString(v)
				continue
			}
			if num := census.ParseNum(v); num != nil {
				cell.SetFloat(*num)
			}
		}
	}

	if err := file.Write(w); err != nil {
		return eris.Wrap(err, "export: write xlsx")
	}
	return nil
}
