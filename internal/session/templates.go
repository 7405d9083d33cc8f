package session

import (
	"context"
	"fmt"

	"github.com/claude/liftlog/internal/models"
)

// TemplateSource reads a saved workout's exercises and target sets.
type TemplateSource interface {
	ListWorkoutExercises(ctx context.Context, workoutID int64) ([]models.WorkoutExercise, error)
	ListExerciseSets(ctx context.Context, exerciseID int64) ([]models.ExerciseSet, error)
}

// LoadTemplates builds StartFrom input from a saved workout, keeping the
// workout's exercise and set order.
func LoadTemplates(ctx context.Context, src TemplateSource, workoutID int64) ([]Template, error) {
	exercises, err := src.ListWorkoutExercises(ctx, workoutID)
	if err != nil {
		return nil, fmt.Errorf("loading workout %d: %w", workoutID, err)
	}
	templates := make([]Template, 0, len(exercises))
	for _, e := range exercises {
		sets, err := src.ListExerciseSets(ctx, e.ID)
		if err != nil {
			return nil, fmt.Errorf("loading sets of exercise %d: %w", e.ID, err)
		}
		t := Template{
			Class: models.ExerciseClassRef{ID: e.ExerciseClassID, Title: e.ClassTitle, Type: e.ClassType},
			Sets:  make([]models.SetTarget, 0, len(sets)),
		}
		for _, s := range sets {
			t.Sets = append(t.Sets, models.SetTarget{Reps: s.Reps, Weight: s.Weight, RestSeconds: s.RestSeconds})
		}
		templates = append(templates, t)
	}
	return templates, nil
}
