package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/session"
)

// manager acquires the caller's session manager. The release func must be
// called when the handler is done with it.
func (s *Server) manager(w http.ResponseWriter, r *http.Request) (*session.Manager, func(), bool) {
	u, ok := mustUser(w, r)
	if !ok {
		return nil, nil, false
	}
	m, release := s.sessions.Acquire(u.ID)
	return m, release, true
}

func writeSession(w http.ResponseWriter, status int, m *session.Manager) {
	writeJSON(w, status, m.Snapshot())
}

func setIndex(r *http.Request) (int, error) {
	idx, err := strconv.Atoi(chi.URLParam(r, "idx"))
	if err != nil {
		return 0, err
	}
	return idx, nil
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	m, release, ok := s.manager(w, r)
	if !ok {
		return
	}
	defer release()
	writeSession(w, http.StatusOK, m)
}

// handleStartSession starts an empty workout, or one seeded from a saved
// workout when workout_id is given.
func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	var body struct {
		WorkoutID int64 `json:"workout_id"`
	}
	if err := decodeJSON(r, &body); err != nil {
		badRequest(w, err.Error())
		return
	}

	var templates []session.Template
	if body.WorkoutID != 0 {
		wk, found, err := s.db.GetWorkout(r.Context(), body.WorkoutID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if !found || wk.UserID != u.ID {
			notFound(w, "workout")
			return
		}
		templates, err = session.LoadTemplates(r.Context(), s.db, wk.ID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	m, release := s.sessions.Acquire(u.ID)
	defer release()
	if err := m.StartFrom(templates); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSession(w, http.StatusCreated, m)
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	m, release, ok := s.manager(w, r)
	if !ok {
		return
	}
	defer release()
	if err := m.End(); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSession(w, http.StatusOK, m)
}

func (s *Server) handleSaveSession(w http.ResponseWriter, r *http.Request) {
	m, release, ok := s.manager(w, r)
	if !ok {
		return
	}
	defer release()
	var body struct {
		Title string `json:"title"`
	}
	if err := decodeJSON(r, &body); err != nil {
		badRequest(w, err.Error())
		return
	}
	res, err := m.Save(r.Context(), body.Title)
	if !errors.Is(err, session.ErrNotActive) {
		recordSave(err, res.SetCount)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleSessionAddExercise(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
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
	m, release := s.sessions.Acquire(u.ID)
	defer release()
	rid, err := m.AddExercise(c.Ref())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"runtime_id": rid})
}

func (s *Server) handleSessionRemoveExercise(w http.ResponseWriter, r *http.Request) {
	m, release, ok := s.manager(w, r)
	if !ok {
		return
	}
	defer release()
	if err := m.RemoveExercise(chi.URLParam(r, "rid")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSession(w, http.StatusOK, m)
}

func (s *Server) handleSessionMoveExercise(w http.ResponseWriter, r *http.Request) {
	m, release, ok := s.manager(w, r)
	if !ok {
		return
	}
	defer release()
	var body struct {
		To *int `json:"to"`
	}
	if err := decodeJSON(r, &body); err != nil {
		badRequest(w, err.Error())
		return
	}
	if body.To == nil {
		badRequest(w, "to required")
		return
	}
	if err := m.MoveExercise(chi.URLParam(r, "rid"), *body.To); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSession(w, http.StatusOK, m)
}

// handleSessionAddSet appends a set. An empty body repeats the previous set.
func (s *Server) handleSessionAddSet(w http.ResponseWriter, r *http.Request) {
	m, release, ok := s.manager(w, r)
	if !ok {
		return
	}
	defer release()
	var body struct {
		*session.SetDefaults
	}
	if err := decodeJSON(r, &body); err != nil {
		badRequest(w, err.Error())
		return
	}
	if d := body.SetDefaults; d != nil {
		if !validSetType(d.Type) {
			badRequest(w, "unknown set_type")
			return
		}
		if d.Reps < 0 || d.Weight < 0 || d.RestSeconds < 0 {
			badRequest(w, errNegativeSet)
			return
		}
	}
	idx, err := m.AddSet(chi.URLParam(r, "rid"), body.SetDefaults)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"index": idx})
}

func (s *Server) handleSessionUpdateSet(w http.ResponseWriter, r *http.Request) {
	m, release, ok := s.manager(w, r)
	if !ok {
		return
	}
	defer release()
	idx, err := setIndex(r)
	if err != nil {
		badRequest(w, "invalid idx")
		return
	}
	var u session.SetUpdate
	if err := decodeJSON(r, &u); err != nil {
		badRequest(w, err.Error())
		return
	}
	if u.Type != nil && (*u.Type == "" || !validSetType(*u.Type)) {
		badRequest(w, "unknown set_type")
		return
	}
	if (u.Reps != nil && *u.Reps < 0) || (u.Weight != nil && *u.Weight < 0) || (u.RestSeconds != nil && *u.RestSeconds < 0) {
		badRequest(w, errNegativeSet)
		return
	}
	if err := m.UpdateSet(chi.URLParam(r, "rid"), idx, u); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSession(w, http.StatusOK, m)
}

func (s *Server) handleSessionRemoveSet(w http.ResponseWriter, r *http.Request) {
	m, release, ok := s.manager(w, r)
	if !ok {
		return
	}
	defer release()
	idx, err := setIndex(r)
	if err != nil {
		badRequest(w, "invalid idx")
		return
	}
	if err := m.RemoveSet(chi.URLParam(r, "rid"), idx); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSession(w, http.StatusOK, m)
}

func (s *Server) handleSessionToggleSet(w http.ResponseWriter, r *http.Request) {
	m, release, ok := s.manager(w, r)
	if !ok {
		return
	}
	defer release()
	idx, err := setIndex(r)
	if err != nil {
		badRequest(w, "invalid idx")
		return
	}
	completed, err := m.ToggleSetCompletion(chi.URLParam(r, "rid"), idx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"completed": completed})
}

const errNegativeSet = "reps, weight and rest_seconds must not be negative"

// validSetType accepts the empty type, which defaults to RESISTANCE.
func validSetType(t models.SetType) bool {
	switch t {
	case "", models.SetTypeResistance, models.SetTypeWarmup, models.SetTypeCardio:
		return true
	}
	return false
}
