package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/umbc-cmsc636/rent-analytics/internal/config"
	"github.com/umbc-cmsc636/rent-analytics/internal/dataset"
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
Allegany County, MD|24001|Allegany County, MD|24001|0
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

// testConfig loads defaults from an empty directory and points every data
// source at local fixtures.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(origDir) })

	c, err := config.Load()
	require.NoError(t, err)

	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		return p
	}
	c.Data = config.DataConfig{
		CountiesURL:  write("counties.csv", countiesCSV),
		StatesURL:    write("states.csv", statesCSV),
		AdjacencyURL: write("adjacency.txt", adjacencyTXT),
		CountyGeoURL: write("counties.json", countyGeoJSON),
		StateGeoURL:  write("states.json", stateGeoJSON),
	}
	return c
}

func testBundle(t *testing.T, c *config.Config) *dataset.Bundle {
	t.Helper()
	b, err := loadBundle(context.Background(), c, newOpener(c))
	require.NoError(t, err)
	return b
}
