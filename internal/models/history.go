package models

import "time"

// SetType discriminates set_session rows.
type SetType string

const (
	SetTypeResistance SetType = "RESISTANCE"
	SetTypeWarmup     SetType = "WARMUP"
	SetTypeCardio     SetType = "CARDIO"
)

// SetRecord is one performed set, ready for insertion into set_session.
type SetRecord struct {
	Reps        int
	RestSeconds int
	Completed   bool
	Type        SetType
	Weight      float64
}

// ExerciseRecord is one performed exercise with its sets in order.
// RuntimeID keys the exercise until its exercise_session id exists.
type ExerciseRecord struct {
	RuntimeID       string
	ExerciseClassID int64
	Sets            []SetRecord
}

// SessionRecord is a completed workout, ready for the save transaction.
type SessionRecord struct {
	UserID    int64
	Title     string
	StartedOn time.Time
	Duration  time.Duration
	Exercises []ExerciseRecord
}

// SetCount returns the number of sets across all exercises.
func (r SessionRecord) SetCount() int {
	n := 0
	for _, ex := range r.Exercises {
		n += len(ex.Sets)
	}
	return n
}

// SaveResult reports the ids generated by a save.
type SaveResult struct {
	WorkoutSessionID   int64            `json:"workout_session_id"`
	ExerciseSessionIDs map[string]int64 `json:"exercise_session_ids"`
	SetCount           int              `json:"set_count"`
}

// WorkoutSession is a persisted, immutable record of one completed workout.
type WorkoutSession struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Title       string    `json:"title"`
	StartedOn   time.Time `json:"started_on"`
	DurationSec int64     `json:"duration"`
}

// ExerciseSession is one exercise performed in a workout session.
type ExerciseSession struct {
	ID               int64        `json:"id"`
	WorkoutSessionID int64        `json:"workout_session_id"`
	ExerciseClassID  int64        `json:"exercise_class_id"`
	ClassTitle       string       `json:"title"`
	Sets             []SetSession `json:"sets"`
}

// SetSession is one as-performed set.
type SetSession struct {
	ID                int64   `json:"id"`
	ExerciseSessionID int64   `json:"exercise_session_id"`
	Reps              int     `json:"reps"`
	RestSeconds       int     `json:"rest_time"`
	Completed         bool    `json:"completed"`
	Type              SetType `json:"set_type"`
	Weight            float64 `json:"total_weight"`
}

// SessionDetail is a workout session with its exercises and sets.
type SessionDetail struct {
	WorkoutSession
	Exercises []ExerciseSession `json:"exercises"`
}
