package dashboard

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umbc-cmsc636/rent-analytics/internal/census"
	"github.com/umbc-cmsc636/rent-analytics/internal/choropleth"
	"github.com/umbc-cmsc636/rent-analytics/internal/dataset"
	"github.com/umbc-cmsc636/rent-analytics/internal/geography"
)

func rent(v float64) *float64 { return &v }

func testBundle() *dataset.Bundle {
	counties := []census.CountyRecord{
		{GEOID: "01001", StateID: "01", StateName: "Alabama", Name: "Autauga County", Measures: census.Measures{MedianRent: rent(800)}},
		{GEOID: "24001", StateID: "24", StateName: "Maryland", Name: "Allegany County", Measures: census.Measures{MedianRent: rent(600)}},
		{GEOID: "24003", StateID: "24", StateName: "Maryland", Name: "Anne Arundel County", Measures: census.Measures{MedianRent: rent(1800)}},
	}
	return &dataset.Bundle{
		Counties: counties,
		States: []census.StateRecord{
			{GEOID: "01", Name: "Alabama", Measures: census.Measures{MedianRent: rent(850)}},
			{GEOID: "24", Name: "Maryland", Measures: census.Measures{MedianRent: rent(1500)}},
		},
		CountyGeo: geography.NewDocument([]*geography.Feature{
			{ID: "01001", Properties: map[string]any{"STATE": "01"}},
			{ID: "24001", Properties: map[string]any{"STATE": "24"}},
			{ID: "24003", Properties: map[string]any{"STATE": "24"}},
		}),
		StateGeo: geography.NewDocument([]*geography.Feature{
			{ID: "01", Properties: map[string]any{"name": "Alabama"}},
			{ID: "24", Properties: map[string]any{"name": "Maryland"}},
		}),
		Dictionary: census.Dictionary{},
		StateNames: census.StateNames(counties),
		LoadedAt:   time.Now(),
	}
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	cat, err := choropleth.DefaultCatalog()
	require.NoError(t, err)
	s, err := NewServer(testBundle(), cat, choropleth.NewPlotlyRenderer(cat), Config{
		DefaultStates: []string{"Maryland"},
		Style:         choropleth.DefaultStyle(),
		SessionTTL:    time.Hour,
		CacheSize:     16,
		CacheTTL:      time.Hour,
	})
	require.NoError(t, err)
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return s, ts
}

type eventResult struct {
	Output string `json:"output"`
	Value  struct {
		Data []struct {
			Name      string     `json:"name"`
			Locations []string   `json:"locations"`
			Z         []*float64 `json:"z"`
			ZMax      float64    `json:"zmax"`
		} `json:"data"`
		Layout struct {
			PaperBGColor string `json:"paper_bgcolor"`
		} `json:"layout"`
	} `json:"value"`
	Session string   `json:"session"`
	States  []string `json:"states"`
	Metric  string   `json:"metric"`
	Error   string   `json:"error"`
}

func postEvent(t *testing.T, client *http.Client, url, body string) (int, eventResult) {
	t.Helper()
	resp, err := client.Post(url+"/api/events", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	var out eventResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func clientWithJar(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func TestServer_StateEvent(t *testing.T) {
	_, ts := newTestServer(t)
	client := clientWithJar(t)

	status, res := postEvent(t, client, ts.URL, `{"input":"state_dropdown.value","output":"map_fig.figure","value":"Maryland"}`)
	require.Equal(t, http.StatusOK, status, res.Error)
	assert.Equal(t, OutputMapFigure, res.Output)
	assert.Equal(t, []string{"Maryland"}, res.States)
	require.Len(t, res.Value.Data, 2)
	assert.Equal(t, []string{"24001", "24003"}, res.Value.Data[0].Locations)
	assert.Equal(t, []string{"01"}, res.Value.Data[1].Locations)
	assert.Equal(t, 1800.0, res.Value.Data[0].ZMax)
	assert.Equal(t, "#000000", res.Value.Layout.PaperBGColor)
	assert.NotEmpty(t, res.Session)

	// Same session on the next event.
	status, again := postEvent(t, client, ts.URL, `{"input":"state_dropdown.value","output":"map_fig.figure","value":["Alabama","Maryland"]}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, res.Session, again.Session)
	assert.Equal(t, []string{"01001", "24001", "24003"}, again.Value.Data[0].Locations)
	require.Len(t, again.Value.Data, 1, "no outlines left when every state is selected")
}

func TestServer_EmptySelection(t *testing.T) {
	_, ts := newTestServer(t)
	status, res := postEvent(t, clientWithJar(t), ts.URL, `{"input":"state_dropdown.value","output":"map_fig.figure","value":null}`)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, res.States)
	require.Len(t, res.Value.Data, 1)
	assert.Empty(t, res.Value.Data[0].Locations)
}

func TestServer_UnknownStateIs400(t *testing.T) {
	s, ts := newTestServer(t)
	client := clientWithJar(t)

	status, ok := postEvent(t, client, ts.URL, `{"input":"state_dropdown.value","output":"map_fig.figure","value":"Maryland"}`)
	require.Equal(t, http.StatusOK, status)

	status, res := postEvent(t, client, ts.URL, `{"input":"state_dropdown.value","output":"map_fig.figure","value":["Narnia"]}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, res.Error, "Narnia")

	// The failed event leaves the previous view in place.
	sess, found := s.Sessions().Get(ok.Session)
	require.True(t, found)
	assert.Equal(t, []string{"Maryland"}, sess.Selected())
	assert.Equal(t, Idle, sess.State())
}

func TestServer_BadEvents(t *testing.T) {
	_, ts := newTestServer(t)
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"missing input", `{"output":"map_fig.figure","value":"Maryland"}`},
		{"unknown pair", `{"input":"slider.value","output":"map_fig.figure","value":1}`},
		{"bad selection", `{"input":"state_dropdown.value","output":"map_fig.figure","value":{"a":1}}`},
		{"unknown metric", `{"input":"metric_dropdown.value","output":"map_fig.figure","value":"income"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, res := postEvent(t, clientWithJar(t), ts.URL, tt.body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.NotEmpty(t, res.Error)
		})
	}
}

func TestServer_MetricEvent(t *testing.T) {
	_, ts := newTestServer(t)
	client := clientWithJar(t)

	status, res := postEvent(t, client, ts.URL, `{"input":"metric_dropdown.value","output":"map_fig.figure","value":"pct_renter"}`)
	require.Equal(t, http.StatusOK, status, res.Error)
	assert.Equal(t, "pct_renter", res.Metric)
	assert.Equal(t, []string{"Maryland"}, res.States, "selection starts at the default")
	assert.Nil(t, res.Value.Data[0].Z[0])
}

func TestServer_FigureCacheAndMetrics(t *testing.T) {
	s, ts := newTestServer(t)
	body := `{"input":"state_dropdown.value","output":"map_fig.figure","value":"Maryland"}`
	for range 2 {
		status, _ := postEvent(t, clientWithJar(t), ts.URL, body)
		require.Equal(t, http.StatusOK, status)
	}
	assert.Equal(t, int64(1), s.cache.Stats().Hits)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	text, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(text), `rent_recomputes_total{event="state_dropdown.value",outcome="cached"} 1`)
	assert.Contains(t, string(text), `rent_recomputes_total{event="state_dropdown.value",outcome="ok"} 1`)
	assert.Contains(t, string(text), "rent_active_sessions 2")
	assert.Contains(t, string(text), `rent_http_requests_total{method="POST",route="/api/events",status="200"} 2`)
}

func TestServer_Page(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	require.Equal(t, http.StatusOK, resp.StatusCode)

	html, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	page := string(html)
	assert.Contains(t, page, `<option value="Maryland" selected>Maryland</option>`)
	assert.Contains(t, page, `<option value="Alabama">Alabama</option>`)
	assert.Less(t, strings.Index(page, "Alabama"), strings.Index(page, `value="Maryland"`))
	assert.Contains(t, page, "background: #000000")
	assert.Contains(t, page, "cdn.plot.ly")
	assert.Contains(t, page, "Median Rent")
	assert.Contains(t, page, `addEventListener("pageshow"`)
	assert.Less(t, strings.Index(page, `send("metric_dropdown.value", metricDropdown.value)`),
		strings.LastIndex(page, `send("state_dropdown.value", selectedStates())`),
		"a restored page replays the metric before the states")

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == SessionCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
}

func TestServer_States(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/api/states")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	var names []string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&names))
	assert.Equal(t, []string{"Alabama", "Maryland"}, names)
}

func TestServer_Counties(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/counties?states=Maryland")
	require.NoError(t, err)
	var rows []census.CountyRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rows))
	_ = resp.Body.Close()
	require.Len(t, rows, 2)
	assert.Equal(t, "24001", rows[0].GEOID)

	resp, err = http.Get(ts.URL + "/api/counties?format=csv")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "text/csv; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Contains(t, string(body), "01001,")

	resp, err = http.Get(ts.URL + "/api/counties?states=Narnia")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/counties?format=xml")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_ClosedSessionIsReplaced(t *testing.T) {
	_, ts := newTestServer(t)
	client := clientWithJar(t)

	status, first := postEvent(t, client, ts.URL, `{"input":"state_dropdown.value","output":"map_fig.figure","value":"Alabama"}`)
	require.Equal(t, http.StatusOK, status)

	resp, err := client.Post(ts.URL+"/api/session/close", "text/plain", bytes.NewReader(nil))
	require.NoError(t, err)
	_ = resp.Body.Close()

	// Replay in page order: metric first, then the states still shown.
	status, metric := postEvent(t, client, ts.URL, `{"input":"metric_dropdown.value","output":"map_fig.figure","value":"pct_renter"}`)
	require.Equal(t, http.StatusOK, status)
	assert.NotEqual(t, first.Session, metric.Session)
	assert.Equal(t, []string{"Maryland"}, metric.States)

	status, states := postEvent(t, client, ts.URL, `{"input":"state_dropdown.value","output":"map_fig.figure","value":"Alabama"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, metric.Session, states.Session)
	assert.Equal(t, []string{"Alabama"}, states.States)
	assert.Equal(t, "pct_renter", states.Metric)
	assert.Equal(t, []string{"01001"}, states.Value.Data[0].Locations)
}

func TestServer_HealthAndSessionClose(t *testing.T) {
	s, ts := newTestServer(t)
	client := clientWithJar(t)
	status, _ := postEvent(t, client, ts.URL, `{"input":"state_dropdown.value","output":"map_fig.figure","value":"Maryland"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, s.Sessions().Len())

	resp, err := client.Get(ts.URL + "/health")
	require.NoError(t, err)
	var health healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	_ = resp.Body.Close()
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 3, health.Counties)
	assert.Equal(t, 1, health.Sessions)

	resp, err = client.Post(ts.URL+"/api/session/close", "text/plain", bytes.NewReader(nil))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 0, s.Sessions().Len())
}

func TestNewServer_ConfigErrors(t *testing.T) {
	cat, err := choropleth.DefaultCatalog()
	require.NoError(t, err)
	r := choropleth.NewPlotlyRenderer(cat)

	_, err = NewServer(testBundle(), cat, r, Config{DefaultStates: []string{"Narnia"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Narnia")

	_, err = NewServer(testBundle(), cat, r, Config{Metric: "income"})
	require.Error(t, err)

	_, err = NewServer(nil, cat, r, Config{})
	require.Error(t, err)
}
