package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/claude/liftlog/internal/store"
)

// ImportLog represents a single import operation's outcome.
type ImportLog struct {
	ID               int64     `json:"id"`
	UserID           int64     `json:"user_id"`
	CreatedAt        time.Time `json:"created_at"`
	Source           string    `json:"source"`
	Status           string    `json:"status"`
	SessionsReceived int       `json:"sessions_received"`
	SessionsInserted int       `json:"sessions_inserted"`
	SessionsSkipped  int       `json:"sessions_skipped"`
	SetsInserted     int       `json:"sets_inserted"`
	DurationMs       *int64    `json:"duration_ms"`
	ErrorMessage     *string   `json:"error_message"`
}

// InsertImportLog creates a new import log entry and returns its ID.
func (db *DB) InsertImportLog(ctx context.Context, log ImportLog) (int64, error) {
	created := log.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	res, err := db.st.Exec(ctx,
		`INSERT INTO import_log (app_user_id, created_on, source, status, sessions_received,
		 sessions_inserted, sessions_skipped, sets_inserted, duration_ms, error_message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.UserID, created.UTC().Format(startedOnLayout), log.Source, log.Status, log.SessionsReceived,
		log.SessionsInserted, log.SessionsSkipped, log.SetsInserted, log.DurationMs, log.ErrorMessage)
	if err != nil {
		return 0, fmt.Errorf("inserting import log: %w", err)
	}
	return res.LastInsertID, nil
}

// UpdateImportLog updates an existing import log entry (typically from "running" to "success" or "error").
func (db *DB) UpdateImportLog(ctx context.Context, id int64, log ImportLog) error {
	_, err := db.st.Exec(ctx,
		`UPDATE import_log SET
		 status = ?, sessions_received = ?, sessions_inserted = ?, sessions_skipped = ?,
		 sets_inserted = ?, duration_ms = ?, error_message = ?
		 WHERE id = ?`,
		log.Status, log.SessionsReceived, log.SessionsInserted, log.SessionsSkipped,
		log.SetsInserted, log.DurationMs, log.ErrorMessage, id)
	if err != nil {
		return fmt.Errorf("updating import log %d: %w", id, err)
	}
	return nil
}

// QueryImportLogs returns the most recent import logs for a user.
func (db *DB) QueryImportLogs(ctx context.Context, userID int64, limit int) ([]ImportLog, error) {
	if limit <= 0 {
		limit = 50
	}
	logs, err := store.QueryAll(ctx, db.st, scanImportLog,
		`SELECT id, app_user_id, created_on, source, status, sessions_received, sessions_inserted,
		 sessions_skipped, sets_inserted, duration_ms, error_message
		 FROM import_log
		 WHERE app_user_id = ?
		 ORDER BY created_on DESC, id DESC
		 LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying import logs: %w", err)
	}
	return logs, nil
}

func scanImportLog(s store.Scanner) (ImportLog, error) {
	var (
		l        ImportLog
		created  string
		duration sql.NullInt64
		message  sql.NullString
	)
	if err := s.Scan(&l.ID, &l.UserID, &created, &l.Source, &l.Status,
		&l.SessionsReceived, &l.SessionsInserted, &l.SessionsSkipped, &l.SetsInserted,
		&duration, &message); err != nil {
		return l, err
	}
	t, err := time.Parse(startedOnLayout, created)
	if err != nil {
		return l, fmt.Errorf("parsing created_on %q: %w", created, err)
	}
	l.CreatedAt = t
	if duration.Valid {
		l.DurationMs = &duration.Int64
	}
	if message.Valid {
		l.ErrorMessage = &message.String
	}
	return l, nil
}
