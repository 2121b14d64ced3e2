// Package dashboard serves the rent map: the page, the event endpoint that
// drives map updates, and the small JSON API around it.
package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/umbc-cmsc636/rent-analytics/internal/census"
	"github.com/umbc-cmsc636/rent-analytics/internal/choropleth"
	"github.com/umbc-cmsc636/rent-analytics/internal/dataset"
	"github.com/umbc-cmsc636/rent-analytics/internal/region"
)

// SessionCookie carries the session id.
const SessionCookie = "rent_session"

// Config is the presentation and session configuration of a server.
type Config struct {
	Title          string
	DefaultStates  []string
	Metric         string
	Style          choropleth.Style
	Outlines       region.OutlineMode
	SessionTTL     time.Duration
	CacheSize      int
	CacheTTL       time.Duration
	AllowedOrigins []string
	PlotlyJSURL    string
}

// Server owns the dispatch table and every per-process collaborator.
type Server struct {
	cfg        Config
	bundle     *dataset.Bundle
	catalog    *choropleth.Catalog
	renderer   choropleth.Renderer
	sessions   *SessionStore
	dispatcher *Dispatcher
	metrics    *Metrics
	cache      *FigureCache
	validate   *validator.Validate
}

// NewServer wires a server over a loaded bundle. Default states that are
// not in the bundle and an unknown default metric are configuration errors.
func NewServer(b *dataset.Bundle, catalog *choropleth.Catalog, renderer choropleth.Renderer, cfg Config) (*Server, error) {
	if b == nil {
		return nil, eris.New("dashboard: nil bundle")
	}
	if cfg.Metric == "" {
		cfg.Metric = catalog.DefaultMetric
	}
	if _, err := catalog.Lookup(cfg.Metric); err != nil {
		return nil, eris.Wrap(err, "dashboard: default metric")
	}
	for _, name := range cfg.DefaultStates {
		if !b.HasState(name) {
			return nil, eris.Errorf("dashboard: default state %q is not in the county table", name)
		}
	}
	if cfg.Title == "" {
		cfg.Title = "Rent Analytics"
	}
	if cfg.PlotlyJSURL == "" {
		cfg.PlotlyJSURL = defaultPlotlyJS
	}

	s := &Server{
		cfg:        cfg,
		bundle:     b,
		catalog:    catalog,
		renderer:   renderer,
		sessions:   NewSessionStore(cfg.SessionTTL, cfg.DefaultStates, cfg.Metric),
		dispatcher: NewDispatcher(),
		metrics:    NewMetrics("rent"),
		cache:      NewFigureCache(cfg.CacheSize, cfg.CacheTTL),
		validate:   validator.New(),
	}
	s.sessions.OnChange(func(n int) { s.metrics.ActiveSessions.Set(float64(n)) })

	if err := s.dispatcher.Register(InputStateDropdown, OutputMapFigure, s.onStateChange); err != nil {
		return nil, err
	}
	if err := s.dispatcher.Register(InputMetricDropdown, OutputMapFigure, s.onMetricChange); err != nil {
		return nil, err
	}
	return s, nil
}

// Sessions exposes the session store.
func (s *Server) Sessions() *SessionStore { return s.sessions }

// Metrics exposes the Prometheus collectors.
func (s *Server) Metrics() *Metrics { return s.metrics }

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger)
	r.Use(instrument(s.metrics))

	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/", s.handlePage)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(chimiddleware.NoCache)
		r.Get("/states", s.handleStates)
		r.Get("/metrics", s.handleMetricList)
		r.Get("/counties", s.handleCounties)
		r.Post("/events", s.handleEvent)
		r.Post("/session/close", s.handleSessionClose)
	})
	return r
}

// session returns the request's session, creating one and setting the
// cookie when the request has none or it expired.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *Session {
	var id string
	if c, err := r.Cookie(SessionCookie); err == nil {
		id = c.Value
	}
	sess, created := s.sessions.GetOrCreate(id)
	if created {
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    sess.ID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return sess
}

// figure filters and renders one view, consulting the shared cache first.
func (s *Server) figure(event string, selected []string, metric string) (json.RawMessage, error) {
	start := time.Now()
	defer func() {
		s.metrics.RecomputeDuration.WithLabelValues(event).Observe(time.Since(start).Seconds())
	}()

	if data := s.cache.Get(metric, selected); data != nil {
		s.metrics.Recomputes.WithLabelValues(event, OutcomeCached).Inc()
		return data, nil
	}

	res, err := region.Filter(s.bundle.RegionInput(s.cfg.Outlines), selected)
	if err != nil {
		s.metrics.Recomputes.WithLabelValues(event, OutcomeRejected).Inc()
		return nil, err
	}
	fig, err := s.renderer.Render(choropleth.Request{
		Rows:      res.Counties,
		States:    res.States,
		Geography: res.Geography,
		Metric:    metric,
		Style:     s.cfg.Style,
	})
	if err != nil {
		s.metrics.Recomputes.WithLabelValues(event, OutcomeError).Inc()
		return nil, eris.Wrap(err, "dashboard: render")
	}
	data, err := json.Marshal(fig)
	if err != nil {
		s.metrics.Recomputes.WithLabelValues(event, OutcomeError).Inc()
		return nil, eris.Wrap(err, "dashboard: encode figure")
	}

	s.cache.Put(metric, selected, data)
	s.metrics.Recomputes.WithLabelValues(event, OutcomeOK).Inc()
	return data, nil
}

func (s *Server) onStateChange(_ context.Context, sess *Session, value json.RawMessage) (any, error) {
	selected, err := NormalizeSelection(value)
	if err != nil {
		s.metrics.Recomputes.WithLabelValues(InputStateDropdown, OutcomeRejected).Inc()
		return nil, err
	}
	fig, err := s.figure(InputStateDropdown, selected, sess.Metric())
	if err != nil {
		return nil, err
	}
	sess.SetSelected(selected)
	return fig, nil
}

func (s *Server) onMetricChange(_ context.Context, sess *Session, value json.RawMessage) (any, error) {
	var key string
	if err := json.Unmarshal(value, &key); err != nil || key == "" {
		s.metrics.Recomputes.WithLabelValues(InputMetricDropdown, OutcomeRejected).Inc()
		return nil, eris.Wrap(ErrInvalidSelection, "metric must be a string")
	}
	if _, err := s.catalog.Lookup(key); err != nil {
		s.metrics.Recomputes.WithLabelValues(InputMetricDropdown, OutcomeRejected).Inc()
		return nil, eris.Wrap(ErrInvalidSelection, err.Error())
	}
	fig, err := s.figure(InputMetricDropdown, sess.Selected(), key)
	if err != nil {
		return nil, err
	}
	sess.SetMetric(key)
	return fig, nil
}

type eventResponse struct {
	Output  string   `json:"output"`
	Value   any      `json:"value"`
	Session string   `json:"session"`
	States  []string `json:"states"`
	Metric  string   `json:"metric"`
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var ev Event
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(ev); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess := s.session(w, r)
	out, err := s.dispatcher.Dispatch(r.Context(), sess, ev)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			zap.L().Error("dashboard: event failed",
				zap.String("session", sess.ID),
				zap.String("input", ev.Input),
				zap.Error(err),
			)
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, eventResponse{
		Output:  ev.Output,
		Value:   out,
		Session: sess.ID,
		States:  sess.Selected(),
		Metric:  sess.Metric(),
	})
}

func (s *Server) handleSessionClose(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookie); err == nil {
		s.sessions.Delete(c.Value)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStates(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.bundle.StateNames)
}

func (s *Server) handleMetricList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.Metrics())
}

type countiesQuery struct {
	States []string
	Format string `validate:"omitempty,oneof=json csv"`
}

func (s *Server) handleCounties(w http.ResponseWriter, r *http.Request) {
	q := countiesQuery{Format: r.URL.Query().Get("format")}
	for _, v := range r.URL.Query()["states"] {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				q.States = append(q.States, name)
			}
		}
	}
	if err := s.validate.Struct(q); err != nil {
		writeError(w, http.StatusBadRequest, "format must be json or csv")
		return
	}

	rows := s.bundle.Counties
	if len(q.States) > 0 {
		res, err := region.Filter(s.bundle.RegionInput(s.cfg.Outlines), q.States)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		rows = res.Counties
	}

	if q.Format == "csv" {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="counties.csv"`)
		if err := census.WriteCSV(w, rows, census.DefaultCountyColumns()); err != nil {
			zap.L().Error("dashboard: write counties csv", zap.Error(err))
		}
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

type healthResponse struct {
	Status      string     `json:"status"`
	Counties    int        `json:"counties"`
	States      int        `json:"states"`
	Sessions    int        `json:"sessions"`
	LoadedAt    time.Time  `json:"loaded_at"`
	FigureCache CacheStats `json:"figure_cache"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:      "ok",
		Counties:    len(s.bundle.Counties),
		States:      len(s.bundle.StateNames),
		Sessions:    s.sessions.Len(),
		LoadedAt:    s.bundle.LoadedAt,
		FigureCache: s.cache.Stats(),
	})
}

// statusFor maps handler errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case eris.Is(err, region.ErrUnknownState),
		eris.Is(err, ErrInvalidSelection),
		eris.Is(err, ErrNoHandler):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("dashboard: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
