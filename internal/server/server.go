package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/meltforce/mapty/internal/geo"
	"github.com/meltforce/mapty/internal/mapview"
	"github.com/meltforce/mapty/internal/tracker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	store   *tracker.Store
	layer   *mapview.Layer
	browser *geo.Browser
	log     *slog.Logger
	apiKey  string
	whois   WhoIsClient
	router  chi.Router

	// appCtx outlives requests; the location fetch restarted after a reset runs on it.
	appCtx context.Context
}

// New creates a new Server with all routes configured. browser may be nil when
// the location does not come from the page.
func New(appCtx context.Context, store *tracker.Store, layer *mapview.Layer, browser *geo.Browser, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		store:   store,
		layer:   layer,
		browser: browser,
		log:     log,
		apiKey:  apiKey,
		appCtx:  appCtx,
		router:  chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// SetTailscale resolves request identities through the tailnet.
func (s *Server) SetTailscale(c WhoIsClient) {
	s.whois = c
}

// SetMCP mounts a streamable HTTP MCP endpoint at /mcp.
func (s *Server) SetMCP(h http.Handler) {
	s.router.Group(func(r chi.Router) {
		r.Use(s.requireAPIKey)
		r.Handle("/mcp", h)
	})
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)
	s.router.Use(s.identity)

	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/me", s.handleMe)
		r.Get("/state", s.handleState)
		r.Get("/workouts", s.handleListWorkouts)
		r.Get("/workouts/{id}", s.handleGetWorkout)
		r.Get("/map", s.handleMap)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAPIKey)
			r.Post("/workouts", s.handleCreateWorkout)
			r.Patch("/workouts/{id}", s.handleEditWorkout)
			r.Delete("/workouts/{id}", s.handleDeleteWorkout)
			r.Post("/workouts/{id}/focus", s.handleFocusWorkout)
			r.Post("/reset", s.handleReset)
			r.Post("/map/click", s.handleMapClick)
			r.Post("/location", s.handleLocation)
		})
	})
}

// requireAPIKey applies APIKeyAuth only when a key is configured.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	if s.apiKey == "" {
		return next
	}
	return APIKeyAuth(s.apiKey)(next)
}
