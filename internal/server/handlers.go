package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/session"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

func notFound(w http.ResponseWriter, what string) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": what + " not found"})
}

// writeError maps domain errors to status codes. Anything unrecognised is a
// 500 and gets logged.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, session.ErrNotActive),
		errors.Is(err, session.ErrAlreadyActive),
		errors.Is(err, models.ErrInvariant):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

// decodeJSON reads the request body into v. An empty body leaves v unchanged.
func decodeJSON(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

func pathID(r *http.Request, key string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, key), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return id, nil
}

// mustUser returns the caller, writing a 401 when Identity did not run.
func mustUser(w http.ResponseWriter, r *http.Request) (models.User, bool) {
	u, ok := userFromContext(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
	}
	return u, ok
}

// ownedWorkout parses {id} and checks the workout belongs to the caller.
// Another user's workout reads as not found.
func (s *Server) ownedWorkout(w http.ResponseWriter, r *http.Request, u models.User) (models.Workout, bool) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err.Error())
		return models.Workout{}, false
	}
	wk, found, err := s.db.GetWorkout(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return models.Workout{}, false
	}
	if !found || wk.UserID != u.ID {
		notFound(w, "workout")
		return models.Workout{}, false
	}
	return wk, true
}

// owned parses {id} and checks owner(id) is the caller.
func (s *Server) owned(w http.ResponseWriter, r *http.Request, u models.User, what string,
	owner func(r *http.Request, id int64) (int64, bool, error)) (int64, bool) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err.Error())
		return 0, false
	}
	userID, found, err := owner(r, id)
	if err != nil {
		s.writeError(w, r, err)
		return 0, false
	}
	if !found || userID != u.ID {
		notFound(w, what)
		return 0, false
	}
	return id, true
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleLookups(w http.ResponseWriter, r *http.Request) {
	lookups, err := s.db.ListLookups(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lookups)
}

// --- Workout templates ---

func (s *Server) handleListWorkouts(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	workouts, err := s.db.ListWorkouts(r.Context(), u.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, workouts)
}

func (s *Server) handleAddWorkout(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	var body struct {
		Title string `json:"title"`
	}
	if err := decodeJSON(r, &body); err != nil {
		badRequest(w, err.Error())
		return
	}
	if strings.TrimSpace(body.Title) == "" {
		badRequest(w, "title required")
		return
	}
	wk, err := s.db.AddWorkout(r.Context(), u.ID, strings.TrimSpace(body.Title))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, wk)
}

func (s *Server) handleDeleteWorkout(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	wk, ok := s.ownedWorkout(w, r, u)
	if !ok {
		return
	}
	n, err := s.db.DeleteWorkout(r.Context(), wk.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"renumbered": n})
}

func (s *Server) handleListWorkoutExercises(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	wk, ok := s.ownedWorkout(w, r, u)
	if !ok {
		return
	}
	exercises, err := s.db.ListWorkoutExercises(r.Context(), wk.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exercises)
}

func (s *Server) handleAddWorkoutExercise(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	wk, ok := s.ownedWorkout(w, r, u)
	if !ok {
		return
	}
	var body struct {
		ExerciseClassID int64 `json:"exercise_class_id"`
	}
	if err := decodeJSON(r, &body); err != nil {
		badRequest(w, err.Error())
		return
	}
	c, found, err := s.db.GetExerciseClass(r.Context(), body.ExerciseClassID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !found || c.UserID != u.ID {
		notFound(w, "exercise class")
		return
	}
	e, err := s.db.AddExerciseToWorkout(r.Context(), wk.ID, c.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleResistanceExercises(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	wk, ok := s.ownedWorkout(w, r, u)
	if !ok {
		return
	}
	ids, err := s.db.ListResistanceExerciseIDs(r.Context(), wk.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

func (s *Server) exerciseOwner(r *http.Request, id int64) (int64, bool, error) {
	return s.db.ExerciseOwner(r.Context(), id)
}

func (s *Server) setOwner(r *http.Request, id int64) (int64, bool, error) {
	return s.db.SetOwner(r.Context(), id)
}

func (s *Server) handleDeleteExercise(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	id, ok := s.owned(w, r, u, "exercise", s.exerciseOwner)
	if !ok {
		return
	}
	n, err := s.db.DeleteExercise(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"renumbered": n})
}

func (s *Server) handleListSets(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	id, ok := s.owned(w, r, u, "exercise", s.exerciseOwner)
	if !ok {
		return
	}
	sets, err := s.db.ListExerciseSets(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sets)
}

func (s *Server) handleAddSet(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	id, ok := s.owned(w, r, u, "exercise", s.exerciseOwner)
	if !ok {
		return
	}
	var target models.SetTarget
	if err := decodeJSON(r, &target); err != nil {
		badRequest(w, err.Error())
		return
	}
	if target.Reps < 0 || target.Weight < 0 || target.RestSeconds < 0 {
		badRequest(w, "reps, total_weight and rest_time must not be negative")
		return
	}
	set, err := s.db.AddSet(r.Context(), id, target)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, set)
}

func (s *Server) handleDeleteSet(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	id, ok := s.owned(w, r, u, "set", s.setOwner)
	if !ok {
		return
	}
	n, err := s.db.DeleteSet(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"renumbered": n})
}

// --- Exercise classes ---

func (s *Server) handleListExerciseClasses(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	archived, _ := strconv.ParseBool(r.URL.Query().Get("archived"))
	classes, err := s.db.ListExerciseClasses(r.Context(), u.ID, archived)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, classes)
}

func (s *Server) handleAddExerciseClass(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	var in models.NewExerciseClass
	if err := decodeJSON(r, &in); err != nil {
		badRequest(w, err.Error())
		return
	}
	if strings.TrimSpace(in.Title) == "" {
		badRequest(w, "title required")
		return
	}
	c, err := s.db.AddExerciseClass(r.Context(), u.Subject, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleArchiveExerciseClass(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var body struct {
		Archived *bool `json:"archived"`
	}
	if err := decodeJSON(r, &body); err != nil {
		badRequest(w, err.Error())
		return
	}
	archived := body.Archived == nil || *body.Archived

	c, found, err := s.db.GetExerciseClass(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !found || c.UserID != u.ID {
		notFound(w, "exercise class")
		return
	}
	if err := s.db.ArchiveExerciseClass(r.Context(), id, archived); err != nil {
		s.writeError(w, r, err)
		return
	}
	c.Archived = archived
	writeJSON(w, http.StatusOK, c)
}

// --- Tags ---

func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	tags, err := s.db.ListTags(r.Context(), u.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

func (s *Server) handleAddTag(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	var body struct {
		Title string `json:"title"`
	}
	if err := decodeJSON(r, &body); err != nil {
		badRequest(w, err.Error())
		return
	}
	if strings.TrimSpace(body.Title) == "" {
		badRequest(w, "title required")
		return
	}
	tag, err := s.db.AddTag(r.Context(), u.ID, body.Title)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tag)
}

func (s *Server) handleTagWorkout(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	wk, ok := s.ownedWorkout(w, r, u)
	if !ok {
		return
	}
	var body struct {
		TagID int64 `json:"tag_id"`
	}
	if err := decodeJSON(r, &body); err != nil {
		badRequest(w, err.Error())
		return
	}
	owner, found, err := s.db.TagOwner(r.Context(), body.TagID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !found || owner != u.ID {
		notFound(w, "tag")
		return
	}
	if err := s.db.TagWorkout(r.Context(), wk.ID, body.TagID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWorkoutTags(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	tags, err := s.db.ListTagsForWorkouts(r.Context(), u.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}
