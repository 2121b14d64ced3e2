package dataset

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umbc-cmsc636/rent-analytics/internal/fetcher"
	"github.com/umbc-cmsc636/rent-analytics/internal/region"
)

const countiesCSV = `GEOID,STATE,STUSAB,STATE_NAME,NAME,B25002EST1,B25002EST2,B25058EST1,B25021EST3,B25032EST13
01001,01,AL,Alabama,Autauga County,24000,22000,800,4.5,5500
24001,24,MD,Maryland,Allegany County,33000,28000,600,4.0,8000
24043,24,MD,Maryland,Washington County,62000,57000,900,4.5,18000
`

const statesCSV = `GEOID,STUSAB,NAME,B25002EST1,B25002EST2,B25058EST1,B25021EST3,B25032EST13
01,AL,Alabama,2300000,1900000,850,4.6,590000
24,MD,Maryland,2500000,2300000,1500,4.7,750000
`

const adjacencyTXT = `County Name|County GEOID|Neighbor Name|Neighbor GEOID|Length
Allegany County, MD|24001|Washington County, MD|24043|30.1
Washington County, MD|24043|Allegany County, MD|24001|30.1
`

const countyGeoJSON = `{"type":"FeatureCollection","features":[
 {"type":"Feature","id":"01001","properties":{"STATE":"01"},"geometry":null},
 {"type":"Feature","id":"24001","properties":{"STATE":"24"},"geometry":null},
 {"type":"Feature","id":"24043","properties":{"STATE":"24"},"geometry":null}]}`

const stateGeoJSON = `{"type":"FeatureCollection","features":[
 {"type":"Feature","id":"01","properties":{"name":"Alabama"},"geometry":null},
 {"type":"Feature","id":"24","properties":{"name":"Maryland"},"geometry":null}]}`

const dictionaryCSV = `Field Name,Alias
B25058EST1,Median Contract Rent
`

func writeFixtures(t *testing.T) Sources {
	t.Helper()
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		return p
	}
	return Sources{
		Counties:   write("counties.csv", countiesCSV),
		States:     write("states.csv", statesCSV),
		Adjacency:  write("adjacency.txt", adjacencyTXT),
		CountyGeo:  write("counties.json", countyGeoJSON),
		StateGeo:   write("states.json", stateGeoJSON),
		Dictionary: write("dictionary.csv", dictionaryCSV),
	}
}

func TestLoad_LocalFiles(t *testing.T) {
	src := writeFixtures(t)
	b, err := Load(context.Background(), fetcher.NewMulti(fetcher.HTTPOptions{}, fetcher.FTPOptions{}), src, DefaultOptions())
	require.NoError(t, err)

	require.Len(t, b.Counties, 3)
	assert.Equal(t, "01001", b.Counties[0].GEOID)
	assert.Len(t, b.States, 2)
	assert.Len(t, b.Edges, 2)
	assert.Equal(t, 3, b.CountyGeo.Len())
	assert.Equal(t, 2, b.StateGeo.Len())
	assert.Equal(t, []string{"Alabama", "Maryland"}, b.StateNames)
	assert.Equal(t, "Median Contract Rent", b.Dictionary["B25058EST1"])
	assert.False(t, b.LoadedAt.IsZero())

	// Allegany's only neighbor is Washington.
	allegany := b.Counties[1]
	require.NotNil(t, allegany.AvgSurroundingMedRent)
	assert.Equal(t, 900.0, *allegany.AvgSurroundingMedRent)
	assert.Equal(t, 1, allegany.NeighborCount)

	// Autauga has no edges in the fixture.
	assert.Nil(t, b.Counties[0].AvgSurroundingMedRent)
	require.NotNil(t, b.Counties[0].PctRenter)
	assert.InDelta(t, 25.0, *b.Counties[0].PctRenter, 1e-9)

	assert.True(t, b.HasState("Maryland"))
	assert.False(t, b.HasState("Narnia"))
}

func TestLoad_HTTP(t *testing.T) {
	bodies := map[string]string{
		"/counties.csv":  countiesCSV,
		"/states.csv":    statesCSV,
		"/adjacency.txt": adjacencyTXT,
		"/counties.json": countyGeoJSON,
		"/states.json":   stateGeoJSON,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := bodies[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	src := Sources{
		Counties:  srv.URL + "/counties.csv",
		States:    srv.URL + "/states.csv",
		Adjacency: srv.URL + "/adjacency.txt",
		CountyGeo: srv.URL + "/counties.json",
		StateGeo:  srv.URL + "/states.json",
	}
	b, err := Load(context.Background(), fetcher.NewMulti(fetcher.HTTPOptions{MaxRetries: 1}, fetcher.FTPOptions{}), src, DefaultOptions())
	require.NoError(t, err)
	assert.Len(t, b.Counties, 3)
	assert.Empty(t, b.Dictionary)
}

func TestLoad_FailureIsFatal(t *testing.T) {
	src := writeFixtures(t)
	src.Adjacency = filepath.Join(t.TempDir(), "missing.txt")

	b, err := Load(context.Background(), fetcher.NewMulti(fetcher.HTTPOptions{}, fetcher.FTPOptions{}), src, DefaultOptions())
	require.Error(t, err)
	assert.Nil(t, b)
	assert.Contains(t, err.Error(), "missing.txt")
}

func TestLoad_ParseErrorIsFatal(t *testing.T) {
	src := writeFixtures(t)
	bad := filepath.Join(t.TempDir(), "states.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"type":"Topology"}`), 0o644))
	src.StateGeo = bad

	_, err := Load(context.Background(), fetcher.NewMulti(fetcher.HTTPOptions{}, fetcher.FTPOptions{}), src, DefaultOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FeatureCollection")
}

func TestLoad_MissingSource(t *testing.T) {
	src := writeFixtures(t)
	src.CountyGeo = ""
	_, err := Load(context.Background(), fetcher.NewMulti(fetcher.HTTPOptions{}, fetcher.FTPOptions{}), src, DefaultOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "county geography source is required")
}

func TestLoad_ExcludeSelf(t *testing.T) {
	src := writeFixtures(t)
	selfEdges := adjacencyTXT + "Allegany County, MD|24001|Allegany County, MD|24001|0\n"
	require.NoError(t, os.WriteFile(src.Adjacency, []byte(selfEdges), 0o644))

	opts := DefaultOptions()
	b, err := Load(context.Background(), fetcher.NewMulti(fetcher.HTTPOptions{}, fetcher.FTPOptions{}), src, opts)
	require.NoError(t, err)
	assert.Equal(t, 750.0, *b.Counties[1].AvgSurroundingMedRent)

	opts.Transform.ExcludeSelf = true
	b, err = Load(context.Background(), fetcher.NewMulti(fetcher.HTTPOptions{}, fetcher.FTPOptions{}), src, opts)
	require.NoError(t, err)
	assert.Equal(t, 900.0, *b.Counties[1].AvgSurroundingMedRent)
}

func TestBundle_RegionInput(t *testing.T) {
	src := writeFixtures(t)
	b, err := Load(context.Background(), fetcher.NewMulti(fetcher.HTTPOptions{}, fetcher.FTPOptions{}), src, DefaultOptions())
	require.NoError(t, err)

	res, err := region.Filter(b.RegionInput(region.OutlineUnselected), []string{"Maryland"})
	require.NoError(t, err)
	assert.Len(t, res.Counties, 2)
	assert.Equal(t, []string{"24001", "24043", "01"}, res.Geography.IDs())
}

func TestSourceExt(t *testing.T) {
	assert.Equal(t, ".zip", sourceExt("https://www2.census.gov/geo/tiger/cb_2023_us_state_20m.zip?x=1"))
	assert.Equal(t, ".json", sourceExt("/data/us-states.json"))
	assert.Equal(t, ".shp", sourceExt("file:///data/cb_state.shp"))
}
