package server

import (
	"net/http"
	"strconv"
	"time"
)

const (
	defaultHistoryLimit = 50
	defaultVolumeWindow = 28 * 24 * time.Hour
)

// queryLimit reads ?limit=, falling back to def for missing or bad values.
func queryLimit(r *http.Request, def int) int {
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			return parsed
		}
	}
	return def
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	sessions, err := s.db.ListWorkoutSessions(r.Context(), u.ID, queryLimit(r, defaultHistoryLimit))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	detail, found, err := s.db.GetWorkoutSession(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !found || detail.UserID != u.ID {
		notFound(w, "workout session")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// handleExerciseVolume aggregates working sets since ?since= (RFC 3339 or
// YYYY-MM-DD), defaulting to the last four weeks.
func (s *Server) handleExerciseVolume(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	since := time.Now().Add(-defaultVolumeWindow)
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := parseTime(v)
		if err != nil {
			badRequest(w, "invalid since: "+err.Error())
			return
		}
		since = t
	}
	volume, err := s.db.GetExerciseVolume(r.Context(), u.ID, since)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, volume)
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
