package storage

import (
	"context"
	"fmt"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/store"
)

func scanWorkout(s store.Scanner) (models.Workout, error) {
	var w models.Workout
	err := s.Scan(&w.ID, &w.UserID, &w.Title, &w.ListOrder)
	return w, err
}

func scanWorkoutExercise(s store.Scanner) (models.WorkoutExercise, error) {
	var e models.WorkoutExercise
	err := s.Scan(&e.ID, &e.WorkoutID, &e.ExerciseClassID, &e.ListOrder, &e.ClassTitle, &e.ClassType)
	return e, err
}

const workoutExerciseColumns = `e.id, e.workout_id, e.exercise_class_id, e.list_order, c.title, c.exercise_type_id`

// ListWorkouts returns a user's workouts in creation order.
func (db *DB) ListWorkouts(ctx context.Context, userID int64) ([]models.WorkoutSummary, error) {
	rows, err := store.QueryAll(ctx, db.st, func(s store.Scanner) (models.WorkoutSummary, error) {
		var w models.WorkoutSummary
		err := s.Scan(&w.ID, &w.Title)
		return w, err
	}, `SELECT id, title FROM workout WHERE app_user_id = ? ORDER BY id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing workouts: %w", err)
	}
	return rows, nil
}

// GetWorkout retrieves a single workout. found is false for unknown ids.
func (db *DB) GetWorkout(ctx context.Context, workoutID int64) (w models.Workout, found bool, err error) {
	w, found, err = store.QueryFirst(ctx, db.st, scanWorkout,
		`SELECT id, app_user_id, title, list_order FROM workout WHERE id = ?`, workoutID)
	if err != nil {
		return models.Workout{}, false, fmt.Errorf("querying workout: %w", err)
	}
	return w, found, nil
}

// AddWorkout creates a workout at the end of the user's list. The position
// is computed in the insert statement itself.
func (db *DB) AddWorkout(ctx context.Context, userID int64, title string) (models.Workout, error) {
	var w models.Workout
	err := db.st.WithTx(ctx, func(q store.Querier) error {
		res, err := q.Exec(ctx,
			`INSERT INTO workout (app_user_id, title, list_order)
			 SELECT CAST(? AS BIGINT), CAST(? AS TEXT), COUNT(*) + 1 FROM workout WHERE app_user_id = ?`,
			userID, title, userID)
		if err != nil {
			return err
		}
		w, _, err = store.QueryFirst(ctx, q, scanWorkout,
			`SELECT id, app_user_id, title, list_order FROM workout WHERE id = ?`, res.LastInsertID)
		return err
	})
	if err != nil {
		return models.Workout{}, fmt.Errorf("adding workout: %w", err)
	}
	return w, nil
}

// DeleteWorkout removes a workout, its exercises and their template sets,
// then renumbers the user's remaining workouts.
func (db *DB) DeleteWorkout(ctx context.Context, workoutID int64) (int64, error) {
	var renumbered int64
	err := db.st.WithTx(ctx, func(q store.Querier) error {
		n, err := deleteAndRenumber(ctx, q, "workout", "app_user_id", workoutID)
		renumbered = n
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("deleting workout: %w", err)
	}
	return renumbered, nil
}

// ListWorkoutExercises returns a workout's exercises in list order.
func (db *DB) ListWorkoutExercises(ctx context.Context, workoutID int64) ([]models.WorkoutExercise, error) {
	rows, err := store.QueryAll(ctx, db.st, scanWorkoutExercise,
		`SELECT `+workoutExerciseColumns+`
		 FROM exercise e
		 JOIN exercise_class c ON c.id = e.exercise_class_id
		 WHERE e.workout_id = ?
		 ORDER BY e.list_order ASC`,
		workoutID)
	if err != nil {
		return nil, fmt.Errorf("listing workout exercises: %w", err)
	}
	return rows, nil
}

// AddExerciseToWorkout appends an exercise class to a workout. The new
// position is COUNT(*)+1 evaluated inside the insert.
func (db *DB) AddExerciseToWorkout(ctx context.Context, workoutID, exerciseClassID int64) (models.WorkoutExercise, error) {
	var e models.WorkoutExercise
	err := db.st.WithTx(ctx, func(q store.Querier) error {
		if err := requireRow(ctx, q, "workout", workoutID); err != nil {
			return err
		}
		if err := requireRow(ctx, q, "exercise_class", exerciseClassID); err != nil {
			return err
		}
		res, err := q.Exec(ctx,
			`INSERT INTO exercise (exercise_class_id, workout_id, list_order)
			 SELECT CAST(? AS BIGINT), CAST(? AS BIGINT), COUNT(*) + 1 FROM exercise WHERE workout_id = ?`,
			exerciseClassID, workoutID, workoutID)
		if err != nil {
			return err
		}
		e, _, err = store.QueryFirst(ctx, q, scanWorkoutExercise,
			`SELECT `+workoutExerciseColumns+`
			 FROM exercise e
			 JOIN exercise_class c ON c.id = e.exercise_class_id
			 WHERE e.id = ?`,
			res.LastInsertID)
		return err
	})
	if err != nil {
		return models.WorkoutExercise{}, fmt.Errorf("adding exercise to workout: %w", err)
	}
	return e, nil
}

// DeleteExercise removes an exercise from its workout and shifts every later
// sibling up by one, returning how many were renumbered.
func (db *DB) DeleteExercise(ctx context.Context, exerciseID int64) (int64, error) {
	var renumbered int64
	err := db.st.WithTx(ctx, func(q store.Querier) error {
		n, err := deleteAndRenumber(ctx, q, "exercise", "workout_id", exerciseID)
		renumbered = n
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("deleting exercise: %w", err)
	}
	return renumbered, nil
}

// ListResistanceExerciseIDs returns the ids of a workout's exercises whose
// class is a resistance exercise, in list order.
func (db *DB) ListResistanceExerciseIDs(ctx context.Context, workoutID int64) ([]int64, error) {
	ids, err := store.QueryAll(ctx, db.st, func(s store.Scanner) (int64, error) {
		var id int64
		err := s.Scan(&id)
		return id, err
	}, `SELECT e.id
		FROM exercise e
		JOIN exercise_class c ON c.id = e.exercise_class_id
		WHERE e.workout_id = ? AND c.exercise_type_id = ?
		ORDER BY e.list_order ASC`,
		workoutID, int64(models.ExerciseTypeResistance))
	if err != nil {
		return nil, fmt.Errorf("listing resistance exercises: %w", err)
	}
	return ids, nil
}

// requireRow fails with ErrNotFound when table has no row with id.
func requireRow(ctx context.Context, q store.Querier, table string, id int64) error {
	_, found, err := store.QueryFirst(ctx, q, func(s store.Scanner) (int64, error) {
		var v int64
		err := s.Scan(&v)
		return v, err
	}, `SELECT id FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%s %d: %w", table, id, models.ErrNotFound)
	}
	return nil
}
