// Package region narrows the national tables and geography to a set of
// states the user zoomed into: county detail for the chosen states, state
// outlines for the rest of the map.
package region

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/umbc-cmsc636/rent-analytics/internal/census"
	"github.com/umbc-cmsc636/rent-analytics/internal/geography"
)

// ErrUnknownState is returned when a selected name has no state feature.
var ErrUnknownState = eris.New("region: unknown state")

// OutlineMode picks which state-level features accompany the county detail.
type OutlineMode string

const (
	// OutlineUnselected draws every state that is not selected as a single
	// shape, so no state appears both as counties and as an outline.
	//
	// This is the default, and it changes the earlier dashboard layout, which
	// kept only the selected states' outlines (OutlineSelected). Set
	// dashboard.state_outlines to "selected" to get that layout back.
	OutlineUnselected OutlineMode = "unselected"
	// OutlineSelected keeps the outlines of the selected states underneath
	// their counties and drops all others.
	OutlineSelected OutlineMode = "selected"
)

// ParseOutlineMode maps a config value onto an OutlineMode. Empty selects
// the default.
func ParseOutlineMode(s string) (OutlineMode, error) {
	switch OutlineMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", OutlineUnselected:
		return OutlineUnselected, nil
	case OutlineSelected:
		return OutlineSelected, nil
	default:
		return "", eris.Errorf("region: unknown outline mode %q", s)
	}
}

// Input is the full reference data the filter draws from. It is never
// modified.
type Input struct {
	Counties  []census.CountyRecord
	States    []census.StateRecord
	CountyGeo *geography.Document
	StateGeo  *geography.Document
	Outlines  OutlineMode
}

// Result is one filtered view.
type Result struct {
	// Counties are the county rows of the selected states, in input order.
	Counties []census.CountyRecord
	// States are the state rows whose outlines are drawn.
	States []census.StateRecord
	// Geography holds county features first, then state features.
	Geography *geography.Document
	// StateIDs is the sorted FIPS set the selection resolved to.
	StateIDs []string
}

// Filter resolves selected state names to FIPS codes and returns the
// matching slice of the input. An empty selection yields an empty table and
// an empty feature collection.
func Filter(in Input, selected []string) (Result, error) {
	ids, err := resolve(in.StateGeo, selected)
	if err != nil {
		return Result{}, err
	}
	if len(ids) == 0 {
		return Result{
			Counties:  []census.CountyRecord{},
			States:    []census.StateRecord{},
			Geography: geography.NewDocument(),
			StateIDs:  []string{},
		}, nil
	}

	outline := func(id string) bool { return !ids[id] }
	if in.Outlines == OutlineSelected {
		outline = func(id string) bool { return ids[id] }
	}

	var countyFeatures, stateFeatures []*geography.Feature
	if in.CountyGeo != nil {
		countyFeatures = in.CountyGeo.Select(func(f *geography.Feature) bool {
			return ids[f.StateRef()]
		})
	}
	if in.StateGeo != nil {
		stateFeatures = in.StateGeo.Select(func(f *geography.Feature) bool {
			return outline(f.ID)
		})
	}

	counties := make([]census.CountyRecord, 0)
	for _, r := range in.Counties {
		if ids[r.StateID] {
			counties = append(counties, r)
		}
	}

	states := make([]census.StateRecord, 0)
	for _, s := range in.States {
		if outline(s.GEOID) {
			states = append(states, s)
		}
	}

	res := Result{
		Counties:  counties,
		States:    states,
		Geography: geography.NewDocument(countyFeatures, stateFeatures),
		StateIDs:  sortedKeys(ids),
	}

	zap.L().Debug("region: filtered",
		zap.Strings("states", res.StateIDs),
		zap.Int("county_rows", len(res.Counties)),
		zap.Int("county_features", len(countyFeatures)),
		zap.Int("state_features", len(stateFeatures)),
	)
	return res, nil
}

// resolve translates state names to FIPS codes. Every unknown name is
// reported, not just the first.
func resolve(stateGeo *geography.Document, selected []string) (map[string]bool, error) {
	ids := make(map[string]bool, len(selected))
	if len(selected) == 0 {
		return ids, nil
	}

	var index map[string]string
	if stateGeo != nil {
		index = stateGeo.StateNameIndex()
	}

	var unknown []string
	for _, name := range selected {
		id, ok := index[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		ids[id] = true
	}
	if len(unknown) > 0 {
		return nil, eris.Wrapf(ErrUnknownState, "%s", strings.Join(unknown, ", "))
	}
	return ids, nil
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
