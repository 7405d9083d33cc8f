package ingest

// Result holds the outcome of an ingest operation.
type Result struct {
	SessionsReceived int `json:"sessions_received"`
	SessionsInserted int `json:"sessions_inserted"`
	SessionsSkipped  int `json:"sessions_skipped"`

	ExerciseClassesCreated int `json:"exercise_classes_created"`

	SetsReceived int `json:"sets_received"`
	SetsInserted int `json:"sets_inserted"`

	DryRun  bool   `json:"dry_run,omitempty"`
	Message string `json:"message,omitempty"`
}
