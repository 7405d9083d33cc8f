package server

import (
	"net/http"
	"strconv"

	"github.com/claude/liftlog/internal/ingest/alpha"
	"github.com/claude/liftlog/internal/models"
)

const maxImportBytes = 10 << 20

// handleAlphaImport ingests an Alpha Progression CSV export sent as the
// request body. ?dry_run=true reports counts without writing.
func (s *Server) handleAlphaImport(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	dryRun, _ := strconv.ParseBool(r.URL.Query().Get("dry_run"))

	result, err := s.alpha.Ingest(r.Context(), http.MaxBytesReader(w, r.Body, maxImportBytes), u.ID, dryRun)
	if result != nil && !dryRun {
		recordImport(alpha.Source, result.SessionsInserted, result.SessionsSkipped)
	}
	if err != nil {
		s.log.Error("alpha import error", "user_id", u.ID, "error", err)
		if result == nil && !models.IsStorage(err) {
			badRequest(w, err.Error())
			return
		}
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleImportLogs(w http.ResponseWriter, r *http.Request) {
	u, ok := mustUser(w, r)
	if !ok {
		return
	}
	logs, err := s.db.QueryImportLogs(r.Context(), u.ID, queryLimit(r, 50))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}
