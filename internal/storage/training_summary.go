package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/store"
)

// ExerciseVolume holds aggregated working-set stats for one exercise class.
type ExerciseVolume struct {
	ExerciseClassID int64   `json:"exercise_class_id"`
	Title           string  `json:"title"`
	Sessions        int     `json:"sessions"`
	WorkingSets     int     `json:"working_sets"`
	TotalReps       int     `json:"total_reps"`
	Tonnage         float64 `json:"tonnage"`
	BestWeight      float64 `json:"best_weight"`
}

// GetExerciseVolume aggregates a user's completed working sets per exercise
// class since the given time. Warmup sets and uncompleted sets are excluded.
// Results are ordered by tonnage, largest first.
func (db *DB) GetExerciseVolume(ctx context.Context, userID int64, since time.Time) ([]ExerciseVolume, error) {
	rows, err := store.QueryAll(ctx, db.st, func(s store.Scanner) (ExerciseVolume, error) {
		var v ExerciseVolume
		err := s.Scan(&v.ExerciseClassID, &v.Title, &v.Sessions, &v.WorkingSets, &v.TotalReps, &v.Tonnage, &v.BestWeight)
		return v, err
	}, `SELECT c.id, c.title,
		        COUNT(DISTINCT ws.id),
		        COUNT(ss.id),
		        COALESCE(SUM(ss.reps), 0),
		        COALESCE(SUM(ss.reps * ss.total_weight), 0),
		        COALESCE(MAX(ss.total_weight), 0)
		 FROM set_session ss
		 JOIN exercise_session es ON es.id = ss.exercise_session_id
		 JOIN workout_session ws ON ws.id = es.workout_session_id
		 JOIN exercise_class c ON c.id = es.exercise_class_id
		 WHERE ws.app_user_id = ? AND ws.started_on >= ? AND ss.set_type = ? AND ss.completed = ?
		 GROUP BY c.id, c.title
		 ORDER BY 6 DESC, c.title ASC`,
		userID, since.UTC().Format(startedOnLayout), string(models.SetTypeResistance), true)
	if err != nil {
		return nil, fmt.Errorf("querying exercise volume: %w", err)
	}
	return rows, nil
}
