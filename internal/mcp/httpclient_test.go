package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/storage"
)

// newTestServer creates an httptest server that routes requests to handler functions
// keyed by path. Verifies the HTTP client sends correct paths and credentials.
func newTestServer(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q, want bearer token", got)
		}
		h, ok := handlers[r.URL.Path]
		if !ok {
			t.Errorf("unexpected request path: %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
}

func writeTestJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatal(err)
	}
}

func TestHTTPClientListWorkoutSessions(t *testing.T) {
	started := time.Date(2026, 2, 19, 4, 54, 0, 0, time.UTC)
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/history": func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("limit"); got != "5" {
				t.Errorf("limit=%q, want 5", got)
			}
			writeTestJSON(t, w, []models.WorkoutSession{{ID: 9, Title: "Legs", StartedOn: started, DurationSec: 3720}})
		},
	})
	defer ts.Close()

	sessions, err := NewHTTPClient(ts.URL, "tok").ListWorkoutSessions(context.Background(), 0, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 || sessions[0].ID != 9 || !sessions[0].StartedOn.Equal(started) || sessions[0].DurationSec != 3720 {
		t.Errorf("sessions = %+v", sessions)
	}
}

func TestHTTPClientGetWorkoutSession(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/history/3": func(w http.ResponseWriter, r *http.Request) {
			writeTestJSON(t, w, models.SessionDetail{
				WorkoutSession: models.WorkoutSession{ID: 3, UserID: 7},
				Exercises:      []models.ExerciseSession{{ID: 1, ClassTitle: "Squat", Sets: []models.SetSession{{Reps: 5, Weight: 100}}}},
			})
		},
		"/api/v1/history/4": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"workout session not found"}`))
		},
	})
	defer ts.Close()
	c := NewHTTPClient(ts.URL+"/", "tok")

	d, found, err := c.GetWorkoutSession(context.Background(), 3)
	if err != nil || !found {
		t.Fatalf("found=%v err=%v", found, err)
	}
	if d.UserID != 7 || len(d.Exercises) != 1 || d.Exercises[0].Sets[0].Weight != 100 {
		t.Errorf("detail = %+v", d)
	}

	_, found, err = c.GetWorkoutSession(context.Background(), 4)
	if err != nil || found {
		t.Errorf("missing session: found=%v err=%v, want not found without error", found, err)
	}
}

func TestHTTPClientExerciseClassesAndVolume(t *testing.T) {
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/exercise-classes": func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("archived"); got != "true" {
				t.Errorf("archived=%q, want true", got)
			}
			writeTestJSON(t, w, []models.ExerciseClass{{ID: 2, Title: "Row"}})
		},
		"/api/v1/stats/volume": func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("since"); got != "2026-01-01T00:00:00Z" {
				t.Errorf("since=%q", got)
			}
			writeTestJSON(t, w, []storage.ExerciseVolume{{ExerciseClassID: 2, Tonnage: 1050}})
		},
	})
	defer ts.Close()
	c := NewHTTPClient(ts.URL, "tok")

	classes, err := c.ListExerciseClasses(context.Background(), 0, true)
	if err != nil || len(classes) != 1 || classes[0].Title != "Row" {
		t.Errorf("classes = %+v, %v", classes, err)
	}
	volume, err := c.GetExerciseVolume(context.Background(), 0, since)
	if err != nil || len(volume) != 1 || volume[0].Tonnage != 1050 {
		t.Errorf("volume = %+v, %v", volume, err)
	}
}

// TestHTTPClientError verifies non-200 responses surface as errors.
func TestHTTPClientError(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/workouts": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		},
	})
	defer ts.Close()

	if _, err := NewHTTPClient(ts.URL, "tok").ListWorkouts(context.Background(), 0); err == nil {
		t.Error("expected error for 500 response")
	}
}
