package models

// ExerciseType is the category of an exercise class. Values match the
// exercise_type seed rows.
type ExerciseType int64

const (
	ExerciseTypeResistance  ExerciseType = 1
	ExerciseTypeCardio      ExerciseType = 2
	ExerciseTypeFlexibility ExerciseType = 3
)

func (t ExerciseType) String() string {
	switch t {
	case ExerciseTypeResistance:
		return "RESISTANCE"
	case ExerciseTypeCardio:
		return "CARDIO"
	case ExerciseTypeFlexibility:
		return "FLEXIBILITY"
	}
	return "UNKNOWN"
}

// Equipment ids seeded by the initial migration.
const (
	EquipmentBarbell      int64 = 1
	EquipmentDumbbell     int64 = 2
	EquipmentMachine      int64 = 3
	EquipmentCable        int64 = 4
	EquipmentBodyweight   int64 = 5
	EquipmentKettlebell   int64 = 6
	EquipmentBand         int64 = 7
	EquipmentSmithMachine int64 = 8
	EquipmentOther        int64 = 9
)

// User is an app_user row.
type User struct {
	ID          int64  `json:"id"`
	Subject     string `json:"subject"`
	DisplayName string `json:"display_name"`
}

// ExerciseClass is a reusable exercise definition such as "Bench Press".
type ExerciseClass struct {
	ID          int64        `json:"id"`
	UserID      int64        `json:"user_id"`
	Type        ExerciseType `json:"type_id"`
	TypeName    string       `json:"type"`
	BodyPartID  *int64       `json:"body_part_id,omitempty"`
	BodyPart    string       `json:"body_part,omitempty"`
	EquipmentID int64        `json:"equipment_id"`
	Equipment   string       `json:"equipment"`
	Title       string       `json:"title"`
	Archived    bool         `json:"is_archived"`
}

// Ref returns the reference an active session keeps for this class.
func (c ExerciseClass) Ref() ExerciseClassRef {
	return ExerciseClassRef{ID: c.ID, Title: c.Title, Type: c.Type}
}

// NewExerciseClass holds the user-supplied fields of an exercise class.
type NewExerciseClass struct {
	Title       string       `json:"title"`
	Type        ExerciseType `json:"type_id"`
	BodyPartID  *int64       `json:"body_part_id,omitempty"`
	EquipmentID int64        `json:"equipment_id"`
}

// ExerciseClassRef identifies the class an active exercise performs.
type ExerciseClassRef struct {
	ID    int64        `json:"id"`
	Title string       `json:"title"`
	Type  ExerciseType `json:"type_id"`
}

// WorkoutSummary is one entry of a user's workout list.
type WorkoutSummary struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// Workout is a reusable workout template.
type Workout struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"user_id"`
	Title     string `json:"title"`
	ListOrder int    `json:"list_order"`
}

// WorkoutExercise places an exercise class at a position within a workout.
type WorkoutExercise struct {
	ID              int64        `json:"id"`
	WorkoutID       int64        `json:"workout_id"`
	ExerciseClassID int64        `json:"exercise_class_id"`
	ListOrder       int          `json:"list_order"`
	ClassTitle      string       `json:"title"`
	ClassType       ExerciseType `json:"type_id"`
}

// ExerciseSet is a template-level target set.
type ExerciseSet struct {
	ID          int64   `json:"id"`
	ExerciseID  int64   `json:"exercise_id"`
	ListOrder   int     `json:"list_order"`
	Reps        int     `json:"reps"`
	Weight      float64 `json:"total_weight"`
	RestSeconds int     `json:"rest_time"`
}

// SetTarget holds the target values of a template set.
type SetTarget struct {
	Reps        int     `json:"reps"`
	Weight      float64 `json:"total_weight"`
	RestSeconds int     `json:"rest_time"`
}

// Tag is a user-defined workout label.
type Tag struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// WorkoutTags maps workouts to their tag labels, plus the tag id to label index.
type WorkoutTags struct {
	ByWorkout map[int64][]string `json:"by_workout"`
	Labels    map[int64]string   `json:"labels"`
}

// Lookup is an id/title row of a seeded reference table.
type Lookup struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// Lookups bundles the reference tables an exercise class points into.
type Lookups struct {
	Types     []Lookup `json:"exercise_types"`
	Equipment []Lookup `json:"equipment"`
	BodyParts []Lookup `json:"body_parts"`
}
