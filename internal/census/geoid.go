package census

import "strings"

// GEOID widths for the geographic levels the dashboard uses.
const (
	StateIDWidth  = 2
	CountyIDWidth = 5
)

// NormalizeGEOID restores the fixed width of a numeric identifier that lost
// its leading zeros ("1001" → "01001"). Non-numeric or already wide values
// are returned trimmed but otherwise unchanged.
func NormalizeGEOID(code string, width int) string {
	code = strings.TrimSpace(code)
	if code == "" || !isDigits(code) {
		return code
	}
	for len(code) < width {
		code = "0" + code
	}
	return code
}

// StateOf returns the 2-digit state prefix of a county GEOID.
func StateOf(countyGEOID string) string {
	if len(countyGEOID) < StateIDWidth {
		return ""
	}
	return countyGEOID[:StateIDWidth]
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
