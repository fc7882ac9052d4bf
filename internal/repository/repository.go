// Package repository declares the storage contracts the service layer
// depends on. Implementations live in sub-packages (see repository/sqlite).
package repository

import (
	"context"

	"github.com/sakif/notebox/internal/model"
)

// NoteRepository stores notes in the tenant database of the given user.
//
// Every method is scoped by userID; implementations must resolve a separate
// store per user rather than filtering a shared table.
type NoteRepository interface {
	// Create persists a new note and returns it with id and timestamps set.
	Create(ctx context.Context, userID, title, content string) (*model.Note, error)
	// List returns the tenant's notes, most recently updated first.
	// An empty tenant yields an empty slice, not an error.
	List(ctx context.Context, userID string) ([]model.Note, error)
	// GetByID returns (nil, nil) when the note does not exist.
	GetByID(ctx context.Context, userID, id string) (*model.Note, error)
	// Update overwrites title and content; a missing id is apperror.ErrNotFound.
	Update(ctx context.Context, userID, id, title, content string) (*model.Note, error)
	// Delete removes the note. Deleting a missing id succeeds.
	Delete(ctx context.Context, userID, id string) error
}

// UserRepository stores accounts in the shared accounts database.
type UserRepository interface {
	Upsert(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}
