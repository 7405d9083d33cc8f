package storage

import (
	"context"
	"fmt"

	"github.com/claude/liftlog/internal/store"
)

func scanOwner(s store.Scanner) (int64, error) {
	var id int64
	err := s.Scan(&id)
	return id, err
}

// ExerciseOwner returns the user whose workout holds the exercise.
func (db *DB) ExerciseOwner(ctx context.Context, exerciseID int64) (userID int64, found bool, err error) {
	userID, found, err = store.QueryFirst(ctx, db.st, scanOwner,
		`SELECT w.app_user_id FROM exercise e JOIN workout w ON w.id = e.workout_id WHERE e.id = ?`, exerciseID)
	if err != nil {
		return 0, false, fmt.Errorf("querying exercise owner: %w", err)
	}
	return userID, found, nil
}

// SetOwner returns the user whose workout holds the template set.
func (db *DB) SetOwner(ctx context.Context, setID int64) (userID int64, found bool, err error) {
	userID, found, err = store.QueryFirst(ctx, db.st, scanOwner,
		`SELECT w.app_user_id
		 FROM exercise_set s
		 JOIN exercise e ON e.id = s.exercise_id
		 JOIN workout w ON w.id = e.workout_id
		 WHERE s.id = ?`, setID)
	if err != nil {
		return 0, false, fmt.Errorf("querying set owner: %w", err)
	}
	return userID, found, nil
}

// TagOwner returns the user who created the tag.
func (db *DB) TagOwner(ctx context.Context, tagID int64) (userID int64, found bool, err error) {
	userID, found, err = store.QueryFirst(ctx, db.st, scanOwner,
		`SELECT app_user_id FROM tag WHERE id = ?`, tagID)
	if err != nil {
		return 0, false, fmt.Errorf("querying tag owner: %w", err)
	}
	return userID, found, nil
}
