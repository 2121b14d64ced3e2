package census

import (
	"context"
	"io"

	"github.com/rotisserie/eris"

	"github.com/umbc-cmsc636/rent-analytics/internal/fetcher"
)

// Dictionary maps an ACS column code (B25058EST1) to its published label.
type Dictionary map[string]string

var (
	dictCodeHeaders  = []string{"Field Name", "FIELD_NAME", "Field", "Name", "Column"}
	dictLabelHeaders = []string{"Alias", "Field Alias", "FIELD_ALIAS", "Label", "Description"}
)

// ReadDictionary parses a data dictionary CSV. Known header names are tried
// first; otherwise the first two columns are taken as code and label.
func ReadDictionary(ctx context.Context, r io.Reader) (Dictionary, error) {
	rows, err := fetcher.ReadCSV(ctx, r, fetcher.CSVOptions{LazyQuotes: true})
	if err != nil {
		return nil, eris.Wrap(err, "census: read dictionary")
	}
	if len(rows) == 0 {
		return Dictionary{}, nil
	}

	h := newHeader(rows[0])
	codeIdx, labelIdx := firstOf(h, dictCodeHeaders, 0), firstOf(h, dictLabelHeaders, 1)

	dict := make(Dictionary, len(rows)-1)
	for _, row := range rows[1:] {
		code, label := cell(row, codeIdx), cell(row, labelIdx)
		if code == "" || label == "" {
			continue
		}
		dict[code] = label
	}
	return dict, nil
}

// Label returns the label for code, or code itself when unknown.
func (d Dictionary) Label(code string) string {
	if l, ok := d[code]; ok {
		return l
	}
	return code
}

func firstOf(h header, names []string, fallback int) int {
	for _, n := range names {
		if i, ok := h[n]; ok {
			return i
		}
	}
	return fallback
}
