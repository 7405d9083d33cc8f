package storage

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/store"
)

// postgresDSNEnv names a PostgreSQL URL used to run the dialect tests against
// a real server. Each run gets its own schema, dropped afterwards.
const postgresDSNEnv = "LIFTLOG_TEST_POSTGRES_DSN"

func newPostgresTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv(postgresDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", postgresDSNEnv)
	}
	ctx := context.Background()

	admin, err := store.Open(ctx, store.Options{Driver: store.DriverPostgres, DSN: dsn})
	if err != nil {
		t.Fatalf("open admin: %v", err)
	}
	schema := fmt.Sprintf("liftlog_test_%d", time.Now().UnixNano())
	if _, err := admin.Exec(ctx, "CREATE SCHEMA "+schema); err != nil {
		admin.Close()
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() {
		admin.Exec(context.Background(), "DROP SCHEMA "+schema+" CASCADE") //nolint:errcheck // best effort
		admin.Close()
	})

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	opts := store.Options{Driver: store.DriverPostgres, DSN: dsn + sep + "search_path=" + schema}
	if err := RunMigrations(opts); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	db, err := New(ctx, opts)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestDialects runs the statements that differ between engines (position
// inserts, id columns cast in INSERT ... SELECT, ON CONFLICT DO NOTHING and
// the persistence protocol) against every available store.
func TestDialects(t *testing.T) {
	stores := map[string]func(*testing.T) *DB{
		"sqlite":   newTestDB,
		"postgres": newPostgresTestDB,
	}
	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			checkDialect(t, open(t))
		})
	}
}

func checkDialect(t *testing.T, db *DB) {
	ctx := context.Background()

	u, err := db.EnsureUser(ctx, "dialect", "Dialect")
	if err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	again, err := db.EnsureUser(ctx, "dialect", "")
	if err != nil || again.ID != u.ID || again.DisplayName != "Dialect" {
		t.Fatalf("EnsureUser again = %+v, %v", again, err)
	}

	class := mustClass(t, db, u.ID, "Front Squat", models.ExerciseTypeResistance)
	first, err := db.AddWorkout(ctx, u.ID, "A")
	if err != nil {
		t.Fatalf("AddWorkout: %v", err)
	}
	second, err := db.AddWorkout(ctx, u.ID, "B")
	if err != nil || first.ListOrder != 1 || second.ListOrder != 2 || second.ID == 0 {
		t.Fatalf("workouts = %+v, %+v, %v", first, second, err)
	}

	var exercises []models.WorkoutExercise
	for i := 0; i < 3; i++ {
		ex, err := db.AddExerciseToWorkout(ctx, first.ID, class.ID)
		if err != nil {
			t.Fatalf("AddExerciseToWorkout: %v", err)
		}
		exercises = append(exercises, ex)
	}
	set, err := db.AddSet(ctx, exercises[2].ID, models.SetTarget{Reps: 5, Weight: 82.5, RestSeconds: 120})
	if err != nil || set.ListOrder != 1 || set.Weight != 82.5 {
		t.Fatalf("AddSet = %+v, %v", set, err)
	}
	n, err := db.DeleteExercise(ctx, exercises[0].ID)
	if err != nil || n != 2 {
		t.Fatalf("DeleteExercise renumbered %d, %v, want 2", n, err)
	}
	if got := exerciseOrders(t, db, first.ID); !equalInts(got, []int{1, 2}) {
		t.Errorf("orders = %v, want [1 2]", got)
	}

	tag, err := db.AddTag(ctx, u.ID, "strength")
	if err != nil {
		t.Fatalf("AddTag: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := db.TagWorkout(ctx, first.ID, tag.ID); err != nil {
			t.Fatalf("TagWorkout #%d: %v", i+1, err)
		}
	}
	tags, err := db.ListTagsForWorkouts(ctx, u.ID)
	if err != nil || len(tags.ByWorkout[first.ID]) != 1 {
		t.Errorf("tags = %+v, %v", tags, err)
	}

	rec := models.SessionRecord{
		UserID:    u.ID,
		Title:     "A",
		StartedOn: time.Date(2026, 5, 4, 7, 0, 0, 0, time.UTC),
		Duration:  45 * time.Minute,
		Exercises: []models.ExerciseRecord{
			{RuntimeID: "x", ExerciseClassID: class.ID, Sets: []models.SetRecord{{Reps: 5, Weight: 80}, {Reps: -1}}},
		},
	}
	if _, err := db.SaveWorkoutSession(ctx, rec); err == nil {
		t.Fatal("negative reps saved")
	}
	if counts, _ := db.CountHistory(ctx, u.ID); counts != (HistoryCounts{}) {
		t.Fatalf("failed save left %+v", counts)
	}
	rec.Exercises[0].Sets[1].Reps = 3
	res, err := db.SaveWorkoutSession(ctx, rec)
	if err != nil || res.WorkoutSessionID == 0 || res.SetCount != 2 {
		t.Fatalf("SaveWorkoutSession = %+v, %v", res, err)
	}
	detail, found, err := db.GetWorkoutSession(ctx, res.WorkoutSessionID)
	if err != nil || !found {
		t.Fatalf("GetWorkoutSession: %v %v", found, err)
	}
	if !detail.StartedOn.Equal(rec.StartedOn) || detail.DurationSec != 2700 || len(detail.Exercises[0].Sets) != 2 {
		t.Errorf("detail = %+v", detail)
	}
}
