package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/lazypower/tabpulse/internal/engine"
	"github.com/lazypower/tabpulse/internal/host"
)

// Server is the tabpulse HTTP API server.
type Server struct {
	engine  *engine.Engine
	tabs    *host.Registry
	router  chi.Router
	log     zerolog.Logger
	version string
	started time.Time
}

// New creates a Server over the engine and the live-tab registry the
// browser agent keeps current.
func New(e *engine.Engine, tabs *host.Registry, version string, log zerolog.Logger) *Server {
	s := &Server{
		engine:  e,
		tabs:    tabs,
		log:     log.With().Str("component", "server").Logger(),
		version: version,
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(s.log))
	r.Use(hlog.RequestIDHandler("req_id", "X-Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Debug().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/tabs", s.handleGetTabs)
		r.Put("/tabs", s.handleSyncTabs)
		r.Post("/events/{kind}", s.handleTabEvent)

		r.Get("/predictions", s.handlePredictions)
		r.Post("/predictions/refresh", s.handleRefreshPredictions)
		r.Post("/patterns/import", s.handleImportPatterns)
		r.Get("/domains", s.handleDomains)
		r.Get("/insights", s.handleInsights)

		r.Get("/leaks", s.handleLeaks)
		r.Delete("/leaks/{tabID}", s.handleDismissLeak)
		r.Get("/snapshots", s.handleSnapshots)

		r.Get("/actions", s.handleActions)
		r.Post("/actions/plan", s.handlePlanAction)
		r.Post("/actions/completed", s.handleActionCompleted)

		r.Get("/settings", s.handleGetSettings)
		r.Patch("/settings", s.handlePatchSettings)

		r.Get("/sessions", s.handleListSessions)
		r.Post("/sessions", s.handleSaveSession)
		r.Put("/sessions/{id}", s.handleUpdateSession)
		r.Delete("/sessions/{id}", s.handleDeleteSession)
	})

	r.Handle("/metrics", promhttp.HandlerFor(s.engine.Metrics.Registry, promhttp.HandlerOpts{}))
	r.NotFound(spaHandler())

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	storeOK := true
	if err := s.engine.Store.Ping(r.Context()); err != nil {
		storeOK = false
	}

	var lastTick *time.Time
	if t := s.engine.LastTick(); !t.IsZero() {
		lastTick = &t
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"version":       s.version,
		"uptime":        time.Since(s.started).Seconds(),
		"store":         storeOK,
		"store_backend": s.engine.Store.Backend().Name(),
		"tabs":          s.tabs.Len(),
		"last_tick":     lastTick,
		"host_total_mb": host.TotalMemory(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
