package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/store"
)

const exerciseClassSelect = `SELECT c.id, c.app_user_id, c.exercise_type_id, t.title,
	c.body_part_id, COALESCE(b.title, ''), c.exercise_equipment_id, q.title, c.title, c.is_archived
	FROM exercise_class c
	JOIN exercise_type t ON t.id = c.exercise_type_id
	JOIN exercise_equipment q ON q.id = c.exercise_equipment_id
	LEFT JOIN body_part b ON b.id = c.body_part_id`

func scanExerciseClass(s store.Scanner) (models.ExerciseClass, error) {
	var c models.ExerciseClass
	var bodyPart sql.NullInt64
	err := s.Scan(&c.ID, &c.UserID, &c.Type, &c.TypeName, &bodyPart, &c.BodyPart,
		&c.EquipmentID, &c.Equipment, &c.Title, &c.Archived)
	if bodyPart.Valid {
		c.BodyPartID = &bodyPart.Int64
	}
	return c, err
}

// ListExerciseClasses returns a user's exercise classes ordered by title.
// Archived classes are included only when includeArchived is set.
func (db *DB) ListExerciseClasses(ctx context.Context, userID int64, includeArchived bool) ([]models.ExerciseClass, error) {
	query := exerciseClassSelect + ` WHERE c.app_user_id = ?`
	args := []any{userID}
	if !includeArchived {
		query += ` AND c.is_archived = ?`
		args = append(args, false)
	}
	query += ` ORDER BY c.title ASC, c.id ASC`

	rows, err := store.QueryAll(ctx, db.st, scanExerciseClass, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing exercise classes: %w", err)
	}
	return rows, nil
}

// GetExerciseClass retrieves one exercise class. found is false for unknown ids.
func (db *DB) GetExerciseClass(ctx context.Context, classID int64) (c models.ExerciseClass, found bool, err error) {
	c, found, err = store.QueryFirst(ctx, db.st, scanExerciseClass, exerciseClassSelect+` WHERE c.id = ?`, classID)
	if err != nil {
		return models.ExerciseClass{}, false, fmt.Errorf("querying exercise class: %w", err)
	}
	return c, found, nil
}

// FindExerciseClassByTitle looks up a user's class by case-insensitive title.
func (db *DB) FindExerciseClassByTitle(ctx context.Context, userID int64, title string) (c models.ExerciseClass, found bool, err error) {
	c, found, err = store.QueryFirst(ctx, db.st, scanExerciseClass,
		exerciseClassSelect+` WHERE c.app_user_id = ? AND LOWER(c.title) = ? ORDER BY c.id ASC LIMIT 1`,
		userID, strings.ToLower(strings.TrimSpace(title)))
	if err != nil {
		return models.ExerciseClass{}, false, fmt.Errorf("finding exercise class: %w", err)
	}
	return c, found, nil
}

// AddExerciseClass creates an exercise class for the user behind subject.
// An unknown subject fails with ErrNotFound before anything is written.
func (db *DB) AddExerciseClass(ctx context.Context, subject string, in models.NewExerciseClass) (models.ExerciseClass, error) {
	u, err := db.ResolveUser(ctx, subject)
	if err != nil {
		return models.ExerciseClass{}, fmt.Errorf("adding exercise class: %w", err)
	}
	return db.InsertExerciseClass(ctx, u.ID, in)
}

// InsertExerciseClass creates an exercise class for a known user id.
func (db *DB) InsertExerciseClass(ctx context.Context, userID int64, in models.NewExerciseClass) (models.ExerciseClass, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return models.ExerciseClass{}, fmt.Errorf("adding exercise class: empty title")
	}
	var bodyPart any
	if in.BodyPartID != nil {
		bodyPart = *in.BodyPartID
	}
	equipment := in.EquipmentID
	if equipment == 0 {
		equipment = models.EquipmentOther
	}
	typ := in.Type
	if typ == 0 {
		typ = models.ExerciseTypeResistance
	}

	var c models.ExerciseClass
	err := db.st.WithTx(ctx, func(q store.Querier) error {
		res, err := q.Exec(ctx,
			`INSERT INTO exercise_class (app_user_id, exercise_type_id, exercise_equipment_id, body_part_id, title, is_archived)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			userID, int64(typ), equipment, bodyPart, title, false)
		if err != nil {
			return err
		}
		c, _, err = store.QueryFirst(ctx, q, scanExerciseClass, exerciseClassSelect+` WHERE c.id = ?`, res.LastInsertID)
		return err
	})
	if err != nil {
		return models.ExerciseClass{}, fmt.Errorf("adding exercise class: %w", err)
	}
	return c, nil
}

// ArchiveExerciseClass sets or clears the archived flag. Archived classes stay
// referenced by history but drop out of the default listing.
func (db *DB) ArchiveExerciseClass(ctx context.Context, classID int64, archived bool) error {
	res, err := db.st.Exec(ctx, `UPDATE exercise_class SET is_archived = ? WHERE id = ?`, archived, classID)
	if err != nil {
		return fmt.Errorf("archiving exercise class: %w", err)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("exercise class %d: %w", classID, models.ErrNotFound)
	}
	return nil
}

// ListLookups returns the seeded type, equipment and body part tables.
func (db *DB) ListLookups(ctx context.Context) (models.Lookups, error) {
	var out models.Lookups
	for _, l := range []struct {
		table string
		dst   *[]models.Lookup
	}{
		{"exercise_type", &out.Types},
		{"exercise_equipment", &out.Equipment},
		{"body_part", &out.BodyParts},
	} {
		rows, err := store.QueryAll(ctx, db.st, scanLookup, `SELECT id, title FROM `+l.table+` ORDER BY id ASC`)
		if err != nil {
			return models.Lookups{}, fmt.Errorf("listing %s: %w", l.table, err)
		}
		*l.dst = rows
	}
	return out, nil
}

func scanLookup(s store.Scanner) (models.Lookup, error) {
	var l models.Lookup
	err := s.Scan(&l.ID, &l.Title)
	return l, err
}
