package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/notebox/internal/apperror"
	"github.com/sakif/notebox/internal/model"
	"github.com/sakif/notebox/internal/repository"
)

var _ repository.UserRepository = (*DB)(nil)

// Upsert creates the account for an OAuth identity, or refreshes the profile
// fields of an existing one. On return user carries the canonical ID and
// timestamps.
//
// The ID of an existing account is never changed: it names the user's
// tenant database.
func (db *DB) Upsert(ctx context.Context, user *model.User) error {
	if user.Provider == "" || user.ProviderID == "" {
		return apperror.ValidationFailed("provider", "provider and provider ID are required")
	}

	now := time.Now().UTC()
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, provider, provider_id, login, email, avatar_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (provider, provider_id) DO UPDATE SET
			login      = excluded.login,
			email      = excluded.email,
			avatar_url = excluded.avatar_url,
			updated_at = excluded.updated_at`,
		xid.New().String(),
		user.Provider,
		user.ProviderID,
		user.Login,
		user.Email,
		user.AvatarURL,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting user %s/%s: %w", user.Provider, user.ProviderID, err)
	}

	stored, err := db.scanUser(db.conn.QueryRowContext(ctx,
		`SELECT id, provider, provider_id, login, email, avatar_url, created_at, updated_at
		 FROM users WHERE provider = ? AND provider_id = ?`,
		user.Provider, user.ProviderID,
	))
	if err != nil {
		return fmt.Errorf("sqlite: reading back user %s/%s: %w", user.Provider, user.ProviderID, err)
	}

	*user = *stored
	return nil
}

// GetUserByID returns apperror.ErrNotFound if no account has that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := db.scanUser(db.conn.QueryRowContext(ctx,
		`SELECT id, provider, provider_id, login, email, avatar_url, created_at, updated_at
		 FROM users WHERE id = ?`,
		id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

func (db *DB) scanUser(row *sql.Row) (*model.User, error) {
	var u model.User
	if err := row.Scan(
		&u.ID,
		&u.Provider,
		&u.ProviderID,
		&u.Login,
		&u.Email,
		&u.AvatarURL,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &u, nil
}
