package storage

import (
	"context"
	"fmt"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/store"
)

// DB wraps the relational store and provides repository methods.
type DB struct {
	st *store.DB
}

// New opens the store described by opts.
func New(ctx context.Context, opts store.Options) (*DB, error) {
	st, err := store.Open(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return &DB{st: st}, nil
}

// Close closes the store.
func (db *DB) Close() error {
	return db.st.Close()
}

// RunMigrations applies all pending migrations for the configured driver.
func RunMigrations(opts store.Options) error {
	return store.Migrate(opts)
}

// deleteAndRenumber deletes the row id from table and closes the gap it
// leaves in its parent's list_order sequence. It returns how many siblings
// moved up. Callers run it inside a transaction.
func deleteAndRenumber(ctx context.Context, q store.Querier, table, parentCol string, id int64) (int64, error) {
	type position struct {
		parent int64
		order  int
	}
	pos, found, err := store.QueryFirst(ctx, q, func(s store.Scanner) (position, error) {
		var p position
		err := s.Scan(&p.parent, &p.order)
		return p, err
	}, `SELECT `+parentCol+`, list_order FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, fmt.Errorf("%s %d: %w", table, id, models.ErrNotFound)
	}

	if _, err := q.Exec(ctx, `DELETE FROM `+table+` WHERE id = ?`, id); err != nil {
		return 0, err
	}
	res, err := q.Exec(ctx,
		`UPDATE `+table+` SET list_order = list_order - 1 WHERE `+parentCol+` = ? AND list_order > ?`,
		pos.parent, pos.order)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected, nil
}
