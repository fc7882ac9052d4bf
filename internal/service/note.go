// Package service holds the business rules between the HTTP handlers and the
// repositories: input validation, session issuing and the tenant hook.
//
//	Handler (HTTP) → Service (rules) → Repository (storage)
//
// Nothing here knows about HTTP; errors are apperror kinds that the handler
// layer maps to status codes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/notebox/internal/apperror"
	"github.com/sakif/notebox/internal/model"
	"github.com/sakif/notebox/internal/repository"
)

const (
	MaxTitleLength   = 200     // characters
	MaxContentLength = 1 << 20 // bytes of editor markup
)

// NoteService validates note input and scopes every call to one user.
type NoteService struct {
	repo   repository.NoteRepository
	logger *slog.Logger
}

func NewNoteService(repo repository.NoteRepository, logger *slog.Logger) *NoteService {
	return &NoteService{repo: repo, logger: logger}
}

// Create validates and stores a new note. Invalid input never reaches the
// repository.
func (s *NoteService) Create(ctx context.Context, userID, title, content string) (*model.Note, error) {
	title, content, err := validateNote(title, content)
	if err != nil {
		return nil, err
	}

	note, err := s.repo.Create(ctx, userID, title, content)
	if err != nil {
		s.logger.Error("failed to create note",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating note: %w", err)
	}

	s.logger.Info("note created",
		slog.String("userID", userID),
		slog.String("id", note.ID),
	)
	return note, nil
}

// List returns the user's notes, most recently updated first.
//
// A store that cannot be read (typically a tenant whose provisioning failed
// at sign-in) is shown as an empty list; the first write will surface the
// StorageError instead.
func (s *NoteService) List(ctx context.Context, userID string) ([]model.Note, error) {
	notes, err := s.repo.List(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrStorage) {
			s.logger.Warn("tenant store unreadable, returning no notes",
				slog.String("userID", userID),
				slog.String("error", err.Error()),
			)
			return []model.Note{}, nil
		}
		return nil, fmt.Errorf("listing notes: %w", err)
	}
	return notes, nil
}

// Get returns apperror.ErrNotFound when the note does not exist.
func (s *NoteService) Get(ctx context.Context, userID, id string) (*model.Note, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "note ID is required")
	}

	note, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("getting note: %w", err)
	}
	if note == nil {
		return nil, apperror.NotFound("note", id)
	}
	return note, nil
}

// Update overwrites a note. Updating a missing note is apperror.ErrNotFound.
func (s *NoteService) Update(ctx context.Context, userID, id, title, content string) (*model.Note, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "note ID is required")
	}
	title, content, err := validateNote(title, content)
	if err != nil {
		return nil, err
	}

	note, err := s.repo.Update(ctx, userID, id, title, content)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			s.logger.Error("failed to update note",
				slog.String("userID", userID),
				slog.String("id", id),
				slog.String("error", err.Error()),
			)
		}
		return nil, fmt.Errorf("updating note: %w", err)
	}

	s.logger.Info("note updated",
		slog.String("userID", userID),
		slog.String("id", id),
	)
	return note, nil
}

// Delete removes a note. Deleting a missing note succeeds.
func (s *NoteService) Delete(ctx context.Context, userID, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "note ID is required")
	}

	if err := s.repo.Delete(ctx, userID, id); err != nil {
		s.logger.Error("failed to delete note",
			slog.String("userID", userID),
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("deleting note: %w", err)
	}

	s.logger.Info("note deleted",
		slog.String("userID", userID),
		slog.String("id", id),
	)
	return nil
}

// validateNote trims the title and rejects empty or oversized input. Content
// is stored as sent; it is only trimmed for the emptiness check.
func validateNote(title, content string) (string, string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", "", apperror.ValidationFailed("title", "title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", "", apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
	}
	if strings.TrimSpace(content) == "" {
		return "", "", apperror.ValidationFailed("content", "content is required")
	}
	if len(content) > MaxContentLength {
		return "", "", apperror.ValidationFailed("content",
			fmt.Sprintf("content must be %d bytes or less", MaxContentLength))
	}
	return title, content, nil
}
