package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"tailscale.com/client/tailscale/apitype"

	"github.com/claude/liftlog/internal/config"
	"github.com/claude/liftlog/internal/ingest/alpha"
	"github.com/claude/liftlog/internal/session"
	"github.com/claude/liftlog/internal/storage"
)

// WhoIser resolves a tailnet peer address to its identity.
type WhoIser interface {
	WhoIs(ctx context.Context, remoteAddr string) (*apitype.WhoIsResponse, error)
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	db        *storage.DB
	sessions  *session.Registry
	alpha     *alpha.Provider
	auth      config.AuthConfig
	log       *slog.Logger
	tailscale WhoIser
	router    chi.Router
}

// New creates a new Server with all routes configured.
func New(db *storage.DB, sessions *session.Registry, alphaProvider *alpha.Provider, auth config.AuthConfig, log *slog.Logger) *Server {
	s := &Server{
		db:       db,
		sessions: sessions,
		alpha:    alphaProvider,
		auth:     auth,
		log:      log,
		router:   chi.NewRouter(),
	}
	s.routes()
	return s
}

// SetTailscale enables tailnet identity for requests without a bearer token.
func (s *Server) SetTailscale(lc WhoIser) {
	s.tailscale = lc
}

// SetMCP mounts an MCP handler at /mcp behind the identity middleware.
func (s *Server) SetMCP(h http.Handler) {
	s.router.With(s.Identity).Handle("/mcp", h)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(Metrics)
	s.router.Use(CORS)

	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.Identity)

		r.Get("/me", s.handleMe)
		r.Get("/lookups", s.handleLookups)

		r.Get("/workouts", s.handleListWorkouts)
		r.Post("/workouts", s.handleAddWorkout)
		r.Delete("/workouts/{id}", s.handleDeleteWorkout)
		r.Get("/workouts/{id}/exercises", s.handleListWorkoutExercises)
		r.Post("/workouts/{id}/exercises", s.handleAddWorkoutExercise)
		r.Get("/workouts/{id}/resistance-exercises", s.handleResistanceExercises)
		r.Post("/workouts/{id}/tags", s.handleTagWorkout)

		r.Delete("/exercises/{id}", s.handleDeleteExercise)
		r.Get("/exercises/{id}/sets", s.handleListSets)
		r.Post("/exercises/{id}/sets", s.handleAddSet)
		r.Delete("/sets/{id}", s.handleDeleteSet)

		r.Get("/exercise-classes", s.handleListExerciseClasses)
		r.Post("/exercise-classes", s.handleAddExerciseClass)
		r.Post("/exercise-classes/{id}/archive", s.handleArchiveExerciseClass)

		r.Get("/tags", s.handleListTags)
		r.Post("/tags", s.handleAddTag)
		r.Get("/workout-tags", s.handleWorkoutTags)

		r.Route("/session", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Post("/start", s.handleStartSession)
			r.Post("/end", s.handleEndSession)
			r.Post("/save", s.handleSaveSession)
			r.Post("/exercises", s.handleSessionAddExercise)
			r.Delete("/exercises/{rid}", s.handleSessionRemoveExercise)
			r.Post("/exercises/{rid}/move", s.handleSessionMoveExercise)
			r.Post("/exercises/{rid}/sets", s.handleSessionAddSet)
			r.Patch("/exercises/{rid}/sets/{idx}", s.handleSessionUpdateSet)
			r.Delete("/exercises/{rid}/sets/{idx}", s.handleSessionRemoveSet)
			r.Post("/exercises/{rid}/sets/{idx}/toggle", s.handleSessionToggleSet)
		})

		r.Get("/history", s.handleListHistory)
		r.Get("/history/{id}", s.handleGetHistory)
		r.Get("/stats/volume", s.handleExerciseVolume)

		r.Post("/import/alpha", s.handleAlphaImport)
		r.Get("/import-logs", s.handleImportLogs)
	})
}
