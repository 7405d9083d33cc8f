package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/store"
)

func scanTag(s store.Scanner) (models.Tag, error) {
	var t models.Tag
	err := s.Scan(&t.ID, &t.Title)
	return t, err
}

// ListTags returns a user's tags ordered by title.
func (db *DB) ListTags(ctx context.Context, userID int64) ([]models.Tag, error) {
	rows, err := store.QueryAll(ctx, db.st, scanTag,
		`SELECT id, title FROM tag WHERE app_user_id = ? ORDER BY title ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	return rows, nil
}

// AddTag creates a tag, or returns the existing one with the same title.
func (db *DB) AddTag(ctx context.Context, userID int64, title string) (models.Tag, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.Tag{}, fmt.Errorf("adding tag: empty title")
	}
	var t models.Tag
	err := db.st.WithTx(ctx, func(q store.Querier) error {
		if _, err := q.Exec(ctx,
			`INSERT INTO tag (app_user_id, title) VALUES (?, ?) ON CONFLICT (app_user_id, title) DO NOTHING`,
			userID, title); err != nil {
			return err
		}
		var err error
		t, _, err = store.QueryFirst(ctx, q, scanTag,
			`SELECT id, title FROM tag WHERE app_user_id = ? AND title = ?`, userID, title)
		return err
	})
	if err != nil {
		return models.Tag{}, fmt.Errorf("adding tag: %w", err)
	}
	return t, nil
}

// TagWorkout links a tag to a workout. Linking twice is a no-op.
func (db *DB) TagWorkout(ctx context.Context, workoutID, tagID int64) error {
	err := db.st.WithTx(ctx, func(q store.Querier) error {
		if err := requireRow(ctx, q, "workout", workoutID); err != nil {
			return err
		}
		if err := requireRow(ctx, q, "tag", tagID); err != nil {
			return err
		}
		// workout_tag has no id column; RETURNING keeps the adapter from adding one.
		_, err := q.Exec(ctx,
			`INSERT INTO workout_tag (workout_id, tag_id) VALUES (?, ?)
			 ON CONFLICT (workout_id, tag_id) DO NOTHING RETURNING tag_id`,
			workoutID, tagID)
		return err
	})
	if err != nil {
		return fmt.Errorf("tagging workout: %w", err)
	}
	return nil
}

// ListTagsForWorkouts returns, for every tagged workout of the user, its tag
// labels in alphabetical order, together with the tag id to label mapping.
func (db *DB) ListTagsForWorkouts(ctx context.Context, userID int64) (models.WorkoutTags, error) {
	tags, err := db.ListTags(ctx, userID)
	if err != nil {
		return models.WorkoutTags{}, err
	}
	out := models.WorkoutTags{
		ByWorkout: make(map[int64][]string),
		Labels:    make(map[int64]string, len(tags)),
	}
	for _, t := range tags {
		out.Labels[t.ID] = t.Title
	}

	type link struct{ workoutID, tagID int64 }
	links, err := store.QueryAll(ctx, db.st, func(s store.Scanner) (link, error) {
		var l link
		err := s.Scan(&l.workoutID, &l.tagID)
		return l, err
	}, `SELECT wt.workout_id, wt.tag_id
		FROM workout_tag wt
		JOIN workout w ON w.id = wt.workout_id
		WHERE w.app_user_id = ?`, userID)
	if err != nil {
		return models.WorkoutTags{}, fmt.Errorf("listing workout tags: %w", err)
	}
	for _, l := range links {
		if label, ok := out.Labels[l.tagID]; ok {
			out.ByWorkout[l.workoutID] = append(out.ByWorkout[l.workoutID], label)
		}
	}
	for _, labels := range out.ByWorkout {
		sort.Strings(labels)
	}
	return out, nil
}
