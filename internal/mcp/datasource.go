package mcp

import (
	"context"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/session"
	"github.com/claude/liftlog/internal/storage"
)

// DataSource abstracts the data layer for MCP tools. LocalSource (in-process
// store and session registry) and HTTPClient (remote via REST API) satisfy
// this interface.
type DataSource interface {
	ListWorkouts(ctx context.Context, userID int64) ([]models.WorkoutSummary, error)
	ListWorkoutExercises(ctx context.Context, workoutID int64) ([]models.WorkoutExercise, error)
	ListExerciseClasses(ctx context.Context, userID int64, includeArchived bool) ([]models.ExerciseClass, error)
	ListWorkoutSessions(ctx context.Context, userID int64, limit int) ([]models.WorkoutSession, error)
	GetWorkoutSession(ctx context.Context, sessionID int64) (*models.SessionDetail, bool, error)
	GetExerciseVolume(ctx context.Context, userID int64, since time.Time) ([]storage.ExerciseVolume, error)
	ActiveSession(ctx context.Context, userID int64) (session.State, error)
}

// LocalSource serves MCP tools from the process's own store and sessions.
type LocalSource struct {
	*storage.DB
	sessions *session.Registry
}

// Compile-time check: LocalSource satisfies DataSource.
var _ DataSource = (*LocalSource)(nil)

// NewLocalSource combines the store with the live session registry.
func NewLocalSource(db *storage.DB, sessions *session.Registry) *LocalSource {
	return &LocalSource{DB: db, sessions: sessions}
}

// ActiveSession returns the user's running workout, or an idle state.
func (l *LocalSource) ActiveSession(_ context.Context, userID int64) (session.State, error) {
	m, ok := l.sessions.Lookup(userID)
	if !ok {
		return session.State{Exercises: []session.ActiveExercise{}}, nil
	}
	return m.Snapshot(), nil
}
