package storage

import (
	"context"
	"fmt"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/store"
)

func scanUser(s store.Scanner) (models.User, error) {
	var u models.User
	err := s.Scan(&u.ID, &u.Subject, &u.DisplayName)
	return u, err
}

// ResolveUser finds the user row for an external subject claim.
// A subject with no row yields ErrNotFound.
func (db *DB) ResolveUser(ctx context.Context, subject string) (models.User, error) {
	u, found, err := store.QueryFirst(ctx, db.st, scanUser,
		`SELECT id, aws_cognito_sub, display_name FROM app_user WHERE aws_cognito_sub = ?`, subject)
	if err != nil {
		return models.User{}, fmt.Errorf("resolving user: %w", err)
	}
	if !found {
		return models.User{}, fmt.Errorf("user for subject %q: %w", subject, models.ErrNotFound)
	}
	return u, nil
}

// EnsureUser finds or creates the user for a subject claim. An empty
// displayName keeps whatever is stored.
func (db *DB) EnsureUser(ctx context.Context, subject, displayName string) (models.User, error) {
	if subject == "" {
		return models.User{}, fmt.Errorf("ensuring user: empty subject")
	}
	var u models.User
	err := db.st.WithTx(ctx, func(q store.Querier) error {
		if _, err := q.Exec(ctx,
			`INSERT INTO app_user (aws_cognito_sub, display_name) VALUES (?, ?)
			 ON CONFLICT (aws_cognito_sub) DO NOTHING`,
			subject, displayName); err != nil {
			return err
		}
		if displayName != "" {
			if _, err := q.Exec(ctx,
				`UPDATE app_user SET display_name = ? WHERE aws_cognito_sub = ?`,
				displayName, subject); err != nil {
				return err
			}
		}
		var found bool
		var err error
		u, found, err = store.QueryFirst(ctx, q, scanUser,
			`SELECT id, aws_cognito_sub, display_name FROM app_user WHERE aws_cognito_sub = ?`, subject)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("user %q vanished after insert: %w", subject, models.ErrInvariant)
		}
		return nil
	})
	if err != nil {
		return models.User{}, fmt.Errorf("ensuring user: %w", err)
	}
	return u, nil
}
