package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/claude/liftlog/internal/auth"
	"github.com/claude/liftlog/internal/config"
	"github.com/claude/liftlog/internal/ingest/alpha"
	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/session"
	"github.com/claude/liftlog/internal/storage"
	"github.com/claude/liftlog/internal/store"
)

func newTestServer(t *testing.T, authCfg config.AuthConfig) *Server {
	t.Helper()
	ctx := context.Background()
	opts := store.Options{Driver: store.DriverSQLite, Path: filepath.Join(t.TempDir(), "server.db")}
	if err := storage.RunMigrations(opts); err != nil {
		t.Fatal(err)
	}
	db, err := storage.New(ctx, opts)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(db, session.NewRegistry(db, session.WithLogger(log)), alpha.NewProvider(db, log), authCfg, log)
}

// do sends a request through the full router. A non-empty token is sent as a
// bearer credential; string bodies are sent raw, anything else as JSON.
func do(t *testing.T, s *Server, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, want, rec.Body.String())
	}
}

func tokenFor(t *testing.T, subject string) string {
	t.Helper()
	token, err := auth.IssueToken(subject, "", testSecret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func TestHealthAndMe(t *testing.T) {
	s := newTestServer(t, config.AuthConfig{DevSubject: "dev"})

	rec := do(t, s, http.MethodGet, "/healthz", nil, "")
	expectStatus(t, rec, http.StatusOK)

	rec = do(t, s, http.MethodGet, "/api/v1/me", nil, "")
	expectStatus(t, rec, http.StatusOK)
	if u := decode[models.User](t, rec); u.Subject != "dev" {
		t.Errorf("me = %+v", u)
	}

	rec = do(t, s, http.MethodGet, "/api/v1/lookups", nil, "")
	expectStatus(t, rec, http.StatusOK)
	if l := decode[models.Lookups](t, rec); len(l.Equipment) == 0 || len(l.Types) == 0 {
		t.Errorf("lookups = %+v", l)
	}
}

// TestTemplateLifecycle builds a workout template, then deletes from it and
// checks positions stay dense.
func TestTemplateLifecycle(t *testing.T) {
	s := newTestServer(t, config.AuthConfig{DevSubject: "dev"})

	rec := do(t, s, http.MethodPost, "/api/v1/exercise-classes", models.NewExerciseClass{Title: "Bench Press"}, "")
	expectStatus(t, rec, http.StatusCreated)
	bench := decode[models.ExerciseClass](t, rec)

	rec = do(t, s, http.MethodPost, "/api/v1/workouts", map[string]string{"title": "Push"}, "")
	expectStatus(t, rec, http.StatusCreated)
	push := decode[models.Workout](t, rec)
	if push.ListOrder != 1 {
		t.Errorf("workout list_order = %d, want 1", push.ListOrder)
	}

	var exercises []models.WorkoutExercise
	for range 3 {
		rec = do(t, s, http.MethodPost, "/api/v1/workouts/"+itoa(push.ID)+"/exercises", map[string]int64{"exercise_class_id": bench.ID}, "")
		expectStatus(t, rec, http.StatusCreated)
		exercises = append(exercises, decode[models.WorkoutExercise](t, rec))
	}

	rec = do(t, s, http.MethodPost, "/api/v1/exercises/"+itoa(exercises[0].ID)+"/sets", models.SetTarget{Reps: 8, Weight: 60, RestSeconds: 90}, "")
	expectStatus(t, rec, http.StatusCreated)

	rec = do(t, s, http.MethodDelete, "/api/v1/exercises/"+itoa(exercises[0].ID), nil, "")
	expectStatus(t, rec, http.StatusOK)
	if got := decode[map[string]int64](t, rec); got["renumbered"] != 2 {
		t.Errorf("renumbered = %d, want 2", got["renumbered"])
	}

	rec = do(t, s, http.MethodGet, "/api/v1/workouts/"+itoa(push.ID)+"/exercises", nil, "")
	expectStatus(t, rec, http.StatusOK)
	left := decode[[]models.WorkoutExercise](t, rec)
	if len(left) != 2 || left[0].ListOrder != 1 || left[1].ListOrder != 2 {
		t.Errorf("remaining exercises = %+v", left)
	}

	rec = do(t, s, http.MethodGet, "/api/v1/workouts/"+itoa(push.ID)+"/resistance-exercises", nil, "")
	expectStatus(t, rec, http.StatusOK)
	if ids := decode[[]int64](t, rec); len(ids) != 2 {
		t.Errorf("resistance ids = %v", ids)
	}

	rec = do(t, s, http.MethodPost, "/api/v1/tags", map[string]string{"title": "upper"}, "")
	expectStatus(t, rec, http.StatusCreated)
	tag := decode[models.Tag](t, rec)
	rec = do(t, s, http.MethodPost, "/api/v1/workouts/"+itoa(push.ID)+"/tags", map[string]int64{"tag_id": tag.ID}, "")
	expectStatus(t, rec, http.StatusNoContent)
	rec = do(t, s, http.MethodGet, "/api/v1/workout-tags", nil, "")
	expectStatus(t, rec, http.StatusOK)
	if wt := decode[models.WorkoutTags](t, rec); len(wt.ByWorkout[push.ID]) != 1 {
		t.Errorf("workout tags = %+v", wt)
	}

	rec = do(t, s, http.MethodPost, "/api/v1/exercise-classes/"+itoa(bench.ID)+"/archive", nil, "")
	expectStatus(t, rec, http.StatusOK)
	rec = do(t, s, http.MethodGet, "/api/v1/exercise-classes", nil, "")
	if classes := decode[[]models.ExerciseClass](t, rec); len(classes) != 0 {
		t.Errorf("archived class still listed: %+v", classes)
	}
	rec = do(t, s, http.MethodGet, "/api/v1/exercise-classes?archived=true", nil, "")
	if classes := decode[[]models.ExerciseClass](t, rec); len(classes) != 1 {
		t.Errorf("archived listing = %+v", classes)
	}
}

// TestSessionFlow starts a session from a template, performs it and saves
// it as history.
func TestSessionFlow(t *testing.T) {
	s := newTestServer(t, config.AuthConfig{DevSubject: "dev"})

	rec := do(t, s, http.MethodPost, "/api/v1/exercise-classes", models.NewExerciseClass{Title: "Squat"}, "")
	squat := decode[models.ExerciseClass](t, rec)
	rec = do(t, s, http.MethodPost, "/api/v1/workouts", map[string]string{"title": "Legs"}, "")
	legs := decode[models.Workout](t, rec)
	rec = do(t, s, http.MethodPost, "/api/v1/workouts/"+itoa(legs.ID)+"/exercises", map[string]int64{"exercise_class_id": squat.ID}, "")
	ex := decode[models.WorkoutExercise](t, rec)
	do(t, s, http.MethodPost, "/api/v1/exercises/"+itoa(ex.ID)+"/sets", models.SetTarget{Reps: 5, Weight: 100}, "")

	rec = do(t, s, http.MethodPost, "/api/v1/session/save", nil, "")
	expectStatus(t, rec, http.StatusConflict)

	rec = do(t, s, http.MethodPost, "/api/v1/session/start", map[string]int64{"workout_id": legs.ID}, "")
	expectStatus(t, rec, http.StatusCreated)
	st := decode[session.State](t, rec)
	if !st.Active || len(st.Exercises) != 1 || len(st.Exercises[0].Sets) != 1 {
		t.Fatalf("started session = %+v", st)
	}
	rid := st.Exercises[0].RuntimeID

	rec = do(t, s, http.MethodPost, "/api/v1/session/start", nil, "")
	expectStatus(t, rec, http.StatusConflict)

	// Empty body repeats the last set.
	rec = do(t, s, http.MethodPost, "/api/v1/session/exercises/"+rid+"/sets", nil, "")
	expectStatus(t, rec, http.StatusCreated)
	if got := decode[map[string]int](t, rec); got["index"] != 1 {
		t.Errorf("new set index = %d, want 1", got["index"])
	}

	rec = do(t, s, http.MethodPatch, "/api/v1/session/exercises/"+rid+"/sets/1", map[string]any{"reps": 3}, "")
	expectStatus(t, rec, http.StatusOK)
	rec = do(t, s, http.MethodPatch, "/api/v1/session/exercises/"+rid+"/sets/1", map[string]any{"set_type": "BOGUS"}, "")
	expectStatus(t, rec, http.StatusBadRequest)
	rec = do(t, s, http.MethodPost, "/api/v1/session/exercises/"+rid+"/sets/0/toggle", nil, "")
	expectStatus(t, rec, http.StatusOK)
	if got := decode[map[string]bool](t, rec); !got["completed"] {
		t.Error("toggle did not complete the set")
	}
	rec = do(t, s, http.MethodPost, "/api/v1/session/exercises/"+rid+"/sets/7/toggle", nil, "")
	expectStatus(t, rec, http.StatusConflict)
	rec = do(t, s, http.MethodPost, "/api/v1/session/exercises/"+rid+"/sets/x/toggle", nil, "")
	expectStatus(t, rec, http.StatusBadRequest)

	rec = do(t, s, http.MethodPost, "/api/v1/session/exercises", map[string]int64{"exercise_class_id": squat.ID}, "")
	expectStatus(t, rec, http.StatusCreated)
	second := decode[map[string]string](t, rec)["runtime_id"]
	rec = do(t, s, http.MethodPost, "/api/v1/session/exercises/"+second+"/move", map[string]int{"to": 0}, "")
	expectStatus(t, rec, http.StatusOK)
	if st := decode[session.State](t, rec); st.Exercises[0].RuntimeID != second {
		t.Errorf("move left order %+v", st.Exercises)
	}
	rec = do(t, s, http.MethodDelete, "/api/v1/session/exercises/"+second, nil, "")
	expectStatus(t, rec, http.StatusOK)

	rec = do(t, s, http.MethodPost, "/api/v1/session/save", map[string]string{"title": "Leg day"}, "")
	expectStatus(t, rec, http.StatusCreated)
	saved := decode[models.SaveResult](t, rec)
	if saved.SetCount != 2 || saved.ExerciseSessionIDs[rid] == 0 {
		t.Errorf("save result = %+v", saved)
	}

	rec = do(t, s, http.MethodGet, "/api/v1/session", nil, "")
	if st := decode[session.State](t, rec); st.Active {
		t.Error("session still active after save")
	}

	rec = do(t, s, http.MethodGet, "/api/v1/history", nil, "")
	expectStatus(t, rec, http.StatusOK)
	history := decode[[]models.WorkoutSession](t, rec)
	if len(history) != 1 || history[0].Title != "Leg day" {
		t.Fatalf("history = %+v", history)
	}

	rec = do(t, s, http.MethodGet, "/api/v1/history/"+itoa(history[0].ID), nil, "")
	expectStatus(t, rec, http.StatusOK)
	detail := decode[models.SessionDetail](t, rec)
	if len(detail.Exercises) != 1 || len(detail.Exercises[0].Sets) != 2 || detail.Exercises[0].Sets[1].Reps != 3 {
		t.Errorf("detail = %+v", detail)
	}

	rec = do(t, s, http.MethodGet, "/api/v1/stats/volume?since=2000-01-01", nil, "")
	expectStatus(t, rec, http.StatusOK)
	volume := decode[[]storage.ExerciseVolume](t, rec)
	// Only the toggled set is completed.
	if len(volume) != 1 || volume[0].Tonnage != 500 {
		t.Errorf("volume = %+v", volume)
	}
	rec = do(t, s, http.MethodGet, "/api/v1/stats/volume?since=soon", nil, "")
	expectStatus(t, rec, http.StatusBadRequest)
}

// TestOtherUsersDataIsHidden verifies ids owned by another user read as not
// found.
func TestOtherUsersDataIsHidden(t *testing.T) {
	s := newTestServer(t, config.AuthConfig{JWTSecret: testSecret})
	alice, bob := tokenFor(t, "alice"), tokenFor(t, "bob")

	rec := do(t, s, http.MethodPost, "/api/v1/exercise-classes", models.NewExerciseClass{Title: "Curl"}, alice)
	curl := decode[models.ExerciseClass](t, rec)
	rec = do(t, s, http.MethodPost, "/api/v1/workouts", map[string]string{"title": "Arms"}, alice)
	arms := decode[models.Workout](t, rec)
	rec = do(t, s, http.MethodPost, "/api/v1/workouts/"+itoa(arms.ID)+"/exercises", map[string]int64{"exercise_class_id": curl.ID}, alice)
	ex := decode[models.WorkoutExercise](t, rec)

	tests := []struct {
		method, path string
		body         any
	}{
		{http.MethodGet, "/api/v1/workouts/" + itoa(arms.ID) + "/exercises", nil},
		{http.MethodDelete, "/api/v1/workouts/" + itoa(arms.ID), nil},
		{http.MethodDelete, "/api/v1/exercises/" + itoa(ex.ID), nil},
		{http.MethodGet, "/api/v1/exercises/" + itoa(ex.ID) + "/sets", nil},
		{http.MethodPost, "/api/v1/exercise-classes/" + itoa(curl.ID) + "/archive", nil},
		{http.MethodPost, "/api/v1/session/start", map[string]int64{"workout_id": arms.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			expectStatus(t, do(t, s, tt.method, tt.path, tt.body, bob), http.StatusNotFound)
		})
	}

	rec = do(t, s, http.MethodGet, "/api/v1/workouts", nil, bob)
	if workouts := decode[[]models.WorkoutSummary](t, rec); len(workouts) != 0 {
		t.Errorf("bob sees %+v", workouts)
	}
	expectStatus(t, do(t, s, http.MethodGet, "/api/v1/workouts", nil, ""), http.StatusUnauthorized)
}

func TestBadInput(t *testing.T) {
	s := newTestServer(t, config.AuthConfig{DevSubject: "dev"})
	tests := []struct {
		name         string
		method, path string
		body         any
		want         int
	}{
		{"invalid json", http.MethodPost, "/api/v1/workouts", "{", http.StatusBadRequest},
		{"empty title", http.MethodPost, "/api/v1/workouts", map[string]string{"title": " "}, http.StatusBadRequest},
		{"bad id", http.MethodDelete, "/api/v1/workouts/abc", nil, http.StatusBadRequest},
		{"missing workout", http.MethodDelete, "/api/v1/workouts/99", nil, http.StatusNotFound},
		{"missing set", http.MethodDelete, "/api/v1/sets/99", nil, http.StatusNotFound},
		{"missing history", http.MethodGet, "/api/v1/history/99", nil, http.StatusNotFound},
		{"end idle session", http.MethodPost, "/api/v1/session/end", nil, http.StatusConflict},
		{"move without target", http.MethodPost, "/api/v1/session/exercises/x/move", map[string]any{}, http.StatusBadRequest},
		{"negative session set", http.MethodPost, "/api/v1/session/exercises/x/sets", map[string]any{"reps": -3, "weight": -10}, http.StatusBadRequest},
		{"negative session rest", http.MethodPost, "/api/v1/session/exercises/x/sets", map[string]any{"rest_seconds": -1}, http.StatusBadRequest},
		{"negative reps update", http.MethodPatch, "/api/v1/session/exercises/x/sets/0", map[string]any{"reps": -5}, http.StatusBadRequest},
		{"negative weight update", http.MethodPatch, "/api/v1/session/exercises/x/sets/0", map[string]any{"weight": -2.5}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectStatus(t, do(t, s, tt.method, tt.path, tt.body, ""), tt.want)
		})
	}
}

// TestSessionRejectsNegativeSets verifies negative set values never reach the
// active session, so a later save still succeeds.
func TestSessionRejectsNegativeSets(t *testing.T) {
	s := newTestServer(t, config.AuthConfig{DevSubject: "dev"})

	rec := do(t, s, http.MethodPost, "/api/v1/exercise-classes", models.NewExerciseClass{Title: "Row"}, "")
	row := decode[models.ExerciseClass](t, rec)
	expectStatus(t, do(t, s, http.MethodPost, "/api/v1/session/start", nil, ""), http.StatusCreated)
	rec = do(t, s, http.MethodPost, "/api/v1/session/exercises", map[string]int64{"exercise_class_id": row.ID}, "")
	expectStatus(t, rec, http.StatusCreated)
	rid := decode[map[string]string](t, rec)["runtime_id"]
	sets := "/api/v1/session/exercises/" + rid + "/sets"

	expectStatus(t, do(t, s, http.MethodPost, sets, map[string]any{"reps": -3, "weight": -10}, ""), http.StatusBadRequest)
	expectStatus(t, do(t, s, http.MethodPost, sets, map[string]any{"reps": 8, "weight": 60}, ""), http.StatusCreated)
	expectStatus(t, do(t, s, http.MethodPatch, sets+"/0", map[string]any{"reps": -5}, ""), http.StatusBadRequest)

	rec = do(t, s, http.MethodGet, "/api/v1/session", nil, "")
	st := decode[session.State](t, rec)
	if len(st.Exercises) != 1 || len(st.Exercises[0].Sets) != 1 || st.Exercises[0].Sets[0].Reps != 8 {
		t.Fatalf("session = %+v", st)
	}

	rec = do(t, s, http.MethodPost, "/api/v1/session/save", map[string]string{"title": "Pull"}, "")
	expectStatus(t, rec, http.StatusCreated)
	if res := decode[models.SaveResult](t, rec); res.SetCount != 1 {
		t.Errorf("saved sets = %d, want 1", res.SetCount)
	}
}

const importCSV = `"Pull";"2026-03-02 7:15 h";"48 min"
"1. Barbell Rows · Barbell · 8 reps";"WU1 · 40 kg · 8 reps"
#;KG;REPS;RIR
1;70;8;2
2;70;8;1
`

func TestAlphaImport(t *testing.T) {
	s := newTestServer(t, config.AuthConfig{DevSubject: "dev"})

	rec := do(t, s, http.MethodPost, "/api/v1/import/alpha?dry_run=true", importCSV, "")
	expectStatus(t, rec, http.StatusOK)
	if res := decode[map[string]any](t, rec); res["dry_run"] != true {
		t.Errorf("dry run result = %v", res)
	}

	rec = do(t, s, http.MethodPost, "/api/v1/import/alpha", importCSV, "")
	expectStatus(t, rec, http.StatusOK)

	rec = do(t, s, http.MethodGet, "/api/v1/history", nil, "")
	history := decode[[]models.WorkoutSession](t, rec)
	if len(history) != 1 || history[0].DurationSec != 48*60 {
		t.Errorf("history = %+v", history)
	}

	rec = do(t, s, http.MethodGet, "/api/v1/import-logs", nil, "")
	expectStatus(t, rec, http.StatusOK)
	if logs := decode[[]storage.ImportLog](t, rec); len(logs) != 1 || logs[0].Status != "success" {
		t.Errorf("import logs = %+v", logs)
	}

	rec = do(t, s, http.MethodPost, "/api/v1/import/alpha", "\"Broken\";\"2026-03-02 7:15 h\";\"soon\"\n", "")
	expectStatus(t, rec, http.StatusBadRequest)
}

// TestMetricsEndpoint verifies routed requests show up in the Prometheus
// exposition.
func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, config.AuthConfig{DevSubject: "dev"})
	do(t, s, http.MethodGet, "/healthz", nil, "")

	rec := do(t, s, http.MethodGet, "/metrics", nil, "")
	expectStatus(t, rec, http.StatusOK)
	body := rec.Body.String()
	if !strings.Contains(body, `liftlog_http_requests_total{method="GET",route="/healthz",status="200"}`) {
		t.Errorf("metrics missing healthz counter:\n%s", body)
	}
}

func TestSetMCPRequiresIdentity(t *testing.T) {
	s := newTestServer(t, config.AuthConfig{JWTSecret: testSecret})
	var got int64
	s.SetMCP(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = UserID(r)
		w.WriteHeader(http.StatusOK)
	}))

	expectStatus(t, do(t, s, http.MethodPost, "/mcp", "{}", ""), http.StatusUnauthorized)
	expectStatus(t, do(t, s, http.MethodPost, "/mcp", "{}", tokenFor(t, "carol")), http.StatusOK)
	if got == 0 {
		t.Error("MCP handler did not see the resolved user")
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
