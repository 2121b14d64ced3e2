package census

import (
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// StateNames returns the distinct, non-empty state display names of the
// county table in American English collation order.
func StateNames(rows []CountyRecord) []string {
	seen := make(map[string]bool)
	var names []string
	for _, r := range rows {
		if r.StateName == "" || seen[r.StateName] {
			continue
		}
		seen[r.StateName] = true
		names = append(names, r.StateName)
	}
	collate.New(language.AmericanEnglish).SortStrings(names)
	return names
}
