package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/store"
)

// startedOnLayout is how workout_session.started_on is stored.
const startedOnLayout = time.RFC3339

// SaveWorkoutSession writes a completed workout as one workout_session row,
// one exercise_session row per exercise and one set_session row per set, all
// in a single transaction. Nothing is left behind if any insert fails.
func (db *DB) SaveWorkoutSession(ctx context.Context, rec models.SessionRecord) (models.SaveResult, error) {
	result := models.SaveResult{ExerciseSessionIDs: make(map[string]int64, len(rec.Exercises))}

	err := db.st.WithTx(ctx, func(q store.Querier) error {
		res, err := q.Exec(ctx,
			`INSERT INTO workout_session (app_user_id, title, started_on, duration) VALUES (?, ?, ?, ?)`,
			rec.UserID, rec.Title, rec.StartedOn.UTC().Format(startedOnLayout), int64(rec.Duration/time.Second))
		if err != nil {
			return fmt.Errorf("inserting workout session: %w", err)
		}
		sessionID := res.LastInsertID

		for _, ex := range rec.Exercises {
			res, err := q.Exec(ctx,
				`INSERT INTO exercise_session (workout_session_id, exercise_class_id) VALUES (?, ?)`,
				sessionID, ex.ExerciseClassID)
			if err != nil {
				return fmt.Errorf("inserting exercise session for class %d: %w", ex.ExerciseClassID, err)
			}
			if _, dup := result.ExerciseSessionIDs[ex.RuntimeID]; dup {
				return fmt.Errorf("duplicate runtime id %q: %w", ex.RuntimeID, models.ErrInvariant)
			}
			result.ExerciseSessionIDs[ex.RuntimeID] = res.LastInsertID
		}

		for _, ex := range rec.Exercises {
			exerciseSessionID, ok := result.ExerciseSessionIDs[ex.RuntimeID]
			if !ok {
				return fmt.Errorf("no exercise session for runtime id %q: %w", ex.RuntimeID, models.ErrInvariant)
			}
			for i, set := range ex.Sets {
				setType := set.Type
				if setType == "" {
					setType = models.SetTypeResistance
				}
				if _, err := q.Exec(ctx,
					`INSERT INTO set_session (exercise_session_id, reps, rest_time, completed, set_type, total_weight)
					 VALUES (?, ?, ?, ?, ?, ?)`,
					exerciseSessionID, set.Reps, set.RestSeconds, set.Completed, string(setType), set.Weight); err != nil {
					return fmt.Errorf("inserting set %d of exercise session %d: %w", i+1, exerciseSessionID, err)
				}
				result.SetCount++
			}
		}

		result.WorkoutSessionID = sessionID
		return nil
	})
	if err != nil {
		return models.SaveResult{}, fmt.Errorf("saving workout session: %w", err)
	}
	return result, nil
}

func scanWorkoutSession(s store.Scanner) (models.WorkoutSession, error) {
	var w models.WorkoutSession
	var startedOn string
	if err := s.Scan(&w.ID, &w.UserID, &w.Title, &startedOn, &w.DurationSec); err != nil {
		return w, err
	}
	t, err := time.Parse(startedOnLayout, startedOn)
	if err != nil {
		return w, fmt.Errorf("parsing started_on %q: %w", startedOn, err)
	}
	w.StartedOn = t
	return w, nil
}

// ListWorkoutSessions returns a user's completed workouts, newest first.
func (db *DB) ListWorkoutSessions(ctx context.Context, userID int64, limit int) ([]models.WorkoutSession, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := store.QueryAll(ctx, db.st, scanWorkoutSession,
		`SELECT id, app_user_id, title, started_on, duration
		 FROM workout_session
		 WHERE app_user_id = ?
		 ORDER BY started_on DESC, id DESC
		 LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing workout sessions: %w", err)
	}
	return rows, nil
}

// WorkoutSessionExists reports whether the user already has a session with
// this title starting at this instant.
func (db *DB) WorkoutSessionExists(ctx context.Context, userID int64, title string, startedOn time.Time) (bool, error) {
	_, found, err := store.QueryFirst(ctx, db.st, func(s store.Scanner) (int64, error) {
		var id int64
		err := s.Scan(&id)
		return id, err
	}, `SELECT id FROM workout_session WHERE app_user_id = ? AND title = ? AND started_on = ? LIMIT 1`,
		userID, title, startedOn.UTC().Format(startedOnLayout))
	if err != nil {
		return false, fmt.Errorf("checking workout session: %w", err)
	}
	return found, nil
}

// GetWorkoutSession retrieves one completed workout with its exercises and
// sets in insertion order. found is false for unknown ids.
func (db *DB) GetWorkoutSession(ctx context.Context, sessionID int64) (*models.SessionDetail, bool, error) {
	ws, found, err := store.QueryFirst(ctx, db.st, scanWorkoutSession,
		`SELECT id, app_user_id, title, started_on, duration FROM workout_session WHERE id = ?`, sessionID)
	if err != nil {
		return nil, false, fmt.Errorf("querying workout session: %w", err)
	}
	if !found {
		return nil, false, nil
	}

	exercises, err := store.QueryAll(ctx, db.st, func(s store.Scanner) (models.ExerciseSession, error) {
		var e models.ExerciseSession
		err := s.Scan(&e.ID, &e.WorkoutSessionID, &e.ExerciseClassID, &e.ClassTitle)
		return e, err
	}, `SELECT es.id, es.workout_session_id, es.exercise_class_id, c.title
		FROM exercise_session es
		JOIN exercise_class c ON c.id = es.exercise_class_id
		WHERE es.workout_session_id = ?
		ORDER BY es.id ASC`, sessionID)
	if err != nil {
		return nil, false, fmt.Errorf("querying exercise sessions: %w", err)
	}

	sets, err := store.QueryAll(ctx, db.st, func(s store.Scanner) (models.SetSession, error) {
		var st models.SetSession
		var setType string
		err := s.Scan(&st.ID, &st.ExerciseSessionID, &st.Reps, &st.RestSeconds, &st.Completed, &setType, &st.Weight)
		st.Type = models.SetType(setType)
		return st, err
	}, `SELECT ss.id, ss.exercise_session_id, ss.reps, ss.rest_time, ss.completed, ss.set_type, ss.total_weight
		FROM set_session ss
		JOIN exercise_session es ON es.id = ss.exercise_session_id
		WHERE es.workout_session_id = ?
		ORDER BY ss.id ASC`, sessionID)
	if err != nil {
		return nil, false, fmt.Errorf("querying set sessions: %w", err)
	}

	index := make(map[int64]int, len(exercises))
	for i := range exercises {
		exercises[i].Sets = make([]models.SetSession, 0)
		index[exercises[i].ID] = i
	}
	for _, st := range sets {
		if i, ok := index[st.ExerciseSessionID]; ok {
			exercises[i].Sets = append(exercises[i].Sets, st)
		}
	}

	return &models.SessionDetail{WorkoutSession: ws, Exercises: exercises}, true, nil
}

// HistoryCounts reports how many history rows of each kind a user owns.
type HistoryCounts struct {
	WorkoutSessions  int `json:"workout_sessions"`
	ExerciseSessions int `json:"exercise_sessions"`
	SetSessions      int `json:"set_sessions"`
}

// CountHistory counts a user's workout, exercise and set sessions.
func (db *DB) CountHistory(ctx context.Context, userID int64) (HistoryCounts, error) {
	c, _, err := store.QueryFirst(ctx, db.st, func(s store.Scanner) (HistoryCounts, error) {
		var c HistoryCounts
		err := s.Scan(&c.WorkoutSessions, &c.ExerciseSessions, &c.SetSessions)
		return c, err
	}, `SELECT
		(SELECT COUNT(*) FROM workout_session WHERE app_user_id = ?),
		(SELECT COUNT(*) FROM exercise_session es
		   JOIN workout_session ws ON ws.id = es.workout_session_id WHERE ws.app_user_id = ?),
		(SELECT COUNT(*) FROM set_session ss
		   JOIN exercise_session es ON es.id = ss.exercise_session_id
		   JOIN workout_session ws ON ws.id = es.workout_session_id WHERE ws.app_user_id = ?)`,
		userID, userID, userID)
	if err != nil {
		return HistoryCounts{}, fmt.Errorf("counting history: %w", err)
	}
	return c, nil
}
