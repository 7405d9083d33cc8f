package mcp

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/session"
	"github.com/claude/liftlog/internal/storage"
)

// TestUserIDFromContextDefault verifies zero is returned when no user was
// injected.
func TestUserIDFromContextDefault(t *testing.T) {
	if id := UserIDFromContext(context.Background()); id != 0 {
		t.Errorf("UserIDFromContext(empty) = %d, want 0", id)
	}
}

func TestUserIDFromContextSet(t *testing.T) {
	ctx := WithUserID(context.Background(), 42)
	if id := UserIDFromContext(ctx); id != 42 {
		t.Errorf("UserIDFromContext = %d, want 42", id)
	}
}

func TestSinceOrDefault(t *testing.T) {
	now := time.Date(2026, 3, 29, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		in      string
		want    time.Time
		wantErr bool
	}{
		{"empty", "", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), false},
		{"date", "2026-01-15", time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), false},
		{"rfc3339", "2026-01-15T10:30:00Z", time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC), false},
		{"invalid", "last week", time.Time{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sinceOrDefault(tt.in, defaultVolumeDays, now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !got.Equal(tt.want) {
				t.Errorf("since = %v, want %v", got, tt.want)
			}
		})
	}
}

// fakeSource serves fixed data for user 7.
type fakeSource struct {
	sessions map[int64]*models.SessionDetail
	limit    int
}

func (f *fakeSource) ListWorkouts(_ context.Context, userID int64) ([]models.WorkoutSummary, error) {
	if userID != 7 {
		return []models.WorkoutSummary{}, nil
	}
	return []models.WorkoutSummary{{ID: 1, Title: "Push"}}, nil
}

func (f *fakeSource) ListWorkoutExercises(_ context.Context, workoutID int64) ([]models.WorkoutExercise, error) {
	return []models.WorkoutExercise{{ID: 10, WorkoutID: workoutID, ListOrder: 1, ClassTitle: "Bench Press"}}, nil
}

func (f *fakeSource) ListExerciseClasses(context.Context, int64, bool) ([]models.ExerciseClass, error) {
	return []models.ExerciseClass{}, nil
}

func (f *fakeSource) ListWorkoutSessions(_ context.Context, _ int64, limit int) ([]models.WorkoutSession, error) {
	f.limit = limit
	return []models.WorkoutSession{}, nil
}

func (f *fakeSource) GetWorkoutSession(_ context.Context, id int64) (*models.SessionDetail, bool, error) {
	d, ok := f.sessions[id]
	return d, ok, nil
}

func (f *fakeSource) GetExerciseVolume(context.Context, int64, time.Time) ([]storage.ExerciseVolume, error) {
	return []storage.ExerciseVolume{}, nil
}

func (f *fakeSource) ActiveSession(context.Context, int64) (session.State, error) {
	return session.State{Exercises: []session.ActiveExercise{}}, nil
}

func newTestHandlers() (*handlers, *fakeSource) {
	ds := &fakeSource{sessions: map[int64]*models.SessionDetail{
		3: {WorkoutSession: models.WorkoutSession{ID: 3, UserID: 7, Title: "Legs"}, Exercises: []models.ExerciseSession{}},
	}}
	return &handlers{ds: ds, log: slog.New(slog.NewTextHandler(io.Discard, nil))}, ds
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content = %T, want TextContent", res.Content[0])
	}
	return tc.Text
}

// TestGetWorkoutSessionScopedToUser verifies another user's session reads
// as not found.
func TestGetWorkoutSessionScopedToUser(t *testing.T) {
	h, _ := newTestHandlers()

	res, err := h.getWorkoutSession(WithUserID(context.Background(), 7), callRequest(map[string]any{"session_id": float64(3)}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError || !strings.Contains(resultText(t, res), `"Legs"`) {
		t.Errorf("owner read = %+v", res)
	}

	for _, uid := range []int64{0, 8} {
		res, err = h.getWorkoutSession(WithUserID(context.Background(), uid), callRequest(map[string]any{"session_id": float64(3)}))
		if err != nil {
			t.Fatal(err)
		}
		if !res.IsError {
			t.Errorf("user %d read another user's session", uid)
		}
	}
}

func TestGetWorkoutSessionRequiresID(t *testing.T) {
	h, _ := newTestHandlers()
	res, err := h.getWorkoutSession(WithUserID(context.Background(), 7), callRequest(map[string]any{}))
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Error("missing session_id accepted")
	}
}

func TestGetWorkoutTemplateScopedToUser(t *testing.T) {
	h, _ := newTestHandlers()

	res, _ := h.getWorkoutTemplate(WithUserID(context.Background(), 7), callRequest(map[string]any{"workout_id": float64(1)}))
	if res.IsError || !strings.Contains(resultText(t, res), "Bench Press") {
		t.Errorf("owner read = %+v", res)
	}

	res, _ = h.getWorkoutTemplate(WithUserID(context.Background(), 8), callRequest(map[string]any{"workout_id": float64(1)}))
	if !res.IsError {
		t.Error("user 8 read user 7's template")
	}
}

func TestGetWorkoutHistoryLimit(t *testing.T) {
	h, ds := newTestHandlers()
	ctx := WithUserID(context.Background(), 7)

	if res, _ := h.getWorkoutHistory(ctx, callRequest(nil)); res.IsError {
		t.Fatalf("default limit: %+v", res)
	}
	if ds.limit != defaultHistoryLimit {
		t.Errorf("limit = %d, want %d", ds.limit, defaultHistoryLimit)
	}

	if res, _ := h.getWorkoutHistory(ctx, callRequest(map[string]any{"limit": float64(-1)})); !res.IsError {
		t.Error("negative limit accepted")
	}
}

func TestGetExerciseVolumeRejectsBadDate(t *testing.T) {
	h, _ := newTestHandlers()
	res, _ := h.getExerciseVolume(WithUserID(context.Background(), 7), callRequest(map[string]any{"since": "yesterday"}))
	if !res.IsError {
		t.Error("bad since accepted")
	}
}

// TestLocalSourceActiveSession verifies an unknown user reads as idle and a
// started manager is visible.
func TestLocalSourceActiveSession(t *testing.T) {
	reg := session.NewRegistry(nil)
	src := NewLocalSource(nil, reg)
	ctx := context.Background()

	st, err := src.ActiveSession(ctx, 5)
	if err != nil || st.Active || st.Exercises == nil {
		t.Fatalf("idle state = %+v, %v", st, err)
	}

	m, release := reg.Acquire(5)
	if err := m.Start(); err != nil {
		t.Fatal(err)
	}
	release()
	st, _ = src.ActiveSession(ctx, 5)
	if !st.Active || st.StartTime == nil {
		t.Errorf("active state = %+v", st)
	}
}
