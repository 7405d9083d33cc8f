package storage

import (
	"context"
	"fmt"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/store"
)

const exerciseSetColumns = `id, exercise_id, list_order, reps, total_weight, rest_time`

func scanExerciseSet(s store.Scanner) (models.ExerciseSet, error) {
	var e models.ExerciseSet
	err := s.Scan(&e.ID, &e.ExerciseID, &e.ListOrder, &e.Reps, &e.Weight, &e.RestSeconds)
	return e, err
}

// ListExerciseSets returns the template sets of an exercise in list order.
func (db *DB) ListExerciseSets(ctx context.Context, exerciseID int64) ([]models.ExerciseSet, error) {
	rows, err := store.QueryAll(ctx, db.st, scanExerciseSet,
		`SELECT `+exerciseSetColumns+` FROM exercise_set WHERE exercise_id = ? ORDER BY list_order ASC`,
		exerciseID)
	if err != nil {
		return nil, fmt.Errorf("listing exercise sets: %w", err)
	}
	return rows, nil
}

// AddSet appends a template set to an exercise.
func (db *DB) AddSet(ctx context.Context, exerciseID int64, target models.SetTarget) (models.ExerciseSet, error) {
	var set models.ExerciseSet
	err := db.st.WithTx(ctx, func(q store.Querier) error {
		if err := requireRow(ctx, q, "exercise", exerciseID); err != nil {
			return err
		}
		res, err := q.Exec(ctx,
			`INSERT INTO exercise_set (exercise_id, list_order, reps, total_weight, rest_time)
			 SELECT CAST(? AS BIGINT), COUNT(*) + 1, CAST(? AS INTEGER), CAST(? AS DOUBLE PRECISION), CAST(? AS INTEGER)
			 FROM exercise_set WHERE exercise_id = ?`,
			exerciseID, target.Reps, target.Weight, target.RestSeconds, exerciseID)
		if err != nil {
			return err
		}
		set, _, err = store.QueryFirst(ctx, q, scanExerciseSet,
			`SELECT `+exerciseSetColumns+` FROM exercise_set WHERE id = ?`, res.LastInsertID)
		return err
	})
	if err != nil {
		return models.ExerciseSet{}, fmt.Errorf("adding set: %w", err)
	}
	return set, nil
}

// DeleteSet removes a template set and shifts its later siblings up by one,
// returning how many were renumbered.
func (db *DB) DeleteSet(ctx context.Context, setID int64) (int64, error) {
	var renumbered int64
	err := db.st.WithTx(ctx, func(q store.Querier) error {
		n, err := deleteAndRenumber(ctx, q, "exercise_set", "exercise_id", setID)
		renumbered = n
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("deleting set: %w", err)
	}
	return renumbered, nil
}
