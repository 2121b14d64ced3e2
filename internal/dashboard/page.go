package dashboard

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"go.uber.org/zap"

	"github.com/umbc-cmsc636/rent-analytics/internal/choropleth"
)

const defaultPlotlyJS = "https://cdn.plot.ly/plotly-2.35.2.min.js"

//go:embed templates/index.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

type stateOption struct {
	Name     string
	Selected bool
}

type pageData struct {
	Title       string
	PlotlyJSURL string
	Style       choropleth.Style
	States      []stateOption
	Metrics     []choropleth.Metric
	Metric      string
	Caption     string
	Output      string
	StateInput  string
	MetricInput string
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)

	selected := make(map[string]bool)
	for _, name := range sess.Selected() {
		selected[name] = true
	}
	states := make([]stateOption, 0, len(s.bundle.StateNames))
	for _, name := range s.bundle.StateNames {
		states = append(states, stateOption{Name: name, Selected: selected[name]})
	}

	metric, err := s.catalog.Lookup(sess.Metric())
	if err != nil {
		metric, _ = s.catalog.Lookup(s.catalog.DefaultMetric)
	}
	caption := "The map shows " + metric.Label + " by county"
	if metric.Column != "" {
		caption += " (" + metric.Column + ")"
	}
	if metric.Description != "" {
		caption += ": " + metric.Description
	}
	caption += "."

	var buf bytes.Buffer
	err = pageTemplate.Execute(&buf, pageData{
		Title:       s.cfg.Title,
		PlotlyJSURL: s.cfg.PlotlyJSURL,
		Style:       s.cfg.Style.WithDefaults(),
		States:      states,
		Metrics:     s.catalog.Metrics(),
		Metric:      metric.Key,
		Caption:     caption,
		Output:      OutputMapFigure,
		StateInput:  InputStateDropdown,
		MetricInput: InputMetricDropdown,
	})
	if err != nil {
		zap.L().Error("dashboard: render page", zap.Error(err))
		http.Error(w, "page rendering failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
