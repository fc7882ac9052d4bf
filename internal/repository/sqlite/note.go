package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sakif/notebox/internal/apperror"
	"github.com/sakif/notebox/internal/model"
	"github.com/sakif/notebox/internal/repository"
)

// requireContent rejects blank notes before any store is touched. The
// service trims and caps lengths on top of this; the repository only keeps
// empty rows out of the table for every caller.
func requireContent(title, content string) error {
	if strings.TrimSpace(title) == "" {
		return apperror.ValidationFailed("title", "title is required")
	}
	if strings.TrimSpace(content) == "" {
		return apperror.ValidationFailed("content", "content is required")
	}
	return nil
}

// StoreResolver hands out the store of a user. *Router implements it.
type StoreResolver interface {
	HandleFor(userID string) (*Store, error)
}

// NoteRepository keeps each user's notes in that user's own store.
type NoteRepository struct {
	stores StoreResolver
	now    func() time.Time
}

var _ repository.NoteRepository = (*NoteRepository)(nil)

func NewNoteRepository(stores StoreResolver) *NoteRepository {
	return &NoteRepository{stores: stores, now: time.Now}
}

const noteColumns = `id, title, content, created_at, updated_at`

func (r *NoteRepository) Create(ctx context.Context, userID, title, content string) (*model.Note, error) {
	if err := requireContent(title, content); err != nil {
		return nil, err
	}
	s, err := r.stores.HandleFor(userID)
	if err != nil {
		return nil, err
	}

	now := r.now().UnixMilli()
	note := &model.Note{
		ID:        uuid.NewString(),
		Title:     title,
		Content:   content,
		CreatedAt: fromMillis(now),
		UpdatedAt: fromMillis(now),
	}

	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO notes (`+noteColumns+`) VALUES (?, ?, ?, ?, ?)`,
		note.ID, note.Title, note.Content, now, now,
	)
	if err != nil {
		return nil, apperror.Storage(fmt.Sprintf("creating note in %s", s.key), err)
	}
	return note, nil
}

// List returns notes most recently updated first. Rows with equal timestamps
// fall back to insertion order, newest first.
func (r *NoteRepository) List(ctx context.Context, userID string) ([]model.Note, error) {
	s, err := r.stores.HandleFor(userID)
	if err != nil {
		return nil, err
	}

	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+noteColumns+` FROM notes
		 ORDER BY updated_at DESC, created_at DESC, rowid DESC`,
	)
	if err != nil {
		return nil, apperror.Storage(fmt.Sprintf("listing notes in %s", s.key), err)
	}
	defer rows.Close()

	notes := make([]model.Note, 0)
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, apperror.Storage(fmt.Sprintf("scanning note in %s", s.key), err)
		}
		notes = append(notes, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Storage(fmt.Sprintf("listing notes in %s", s.key), err)
	}
	return notes, nil
}

// GetByID returns (nil, nil) when the note does not exist.
func (r *NoteRepository) GetByID(ctx context.Context, userID, id string) (*model.Note, error) {
	s, err := r.stores.HandleFor(userID)
	if err != nil {
		return nil, err
	}

	n, err := scanNote(s.conn.QueryRowContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.Storage(fmt.Sprintf("getting note %s in %s", id, s.key), err)
	}
	return n, nil
}

// Update overwrites title and content. updated_at always moves forward,
// even when the clock has not advanced since the previous write.
func (r *NoteRepository) Update(ctx context.Context, userID, id, title, content string) (*model.Note, error) {
	if err := requireContent(title, content); err != nil {
		return nil, err
	}
	s, err := r.stores.HandleFor(userID)
	if err != nil {
		return nil, err
	}

	n, err := scanNote(s.conn.QueryRowContext(ctx,
		`UPDATE notes
		 SET title = ?, content = ?, updated_at = MAX(?, updated_at + 1)
		 WHERE id = ?
		 RETURNING `+noteColumns,
		title, content, r.now().UnixMilli(), id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("note", id)
	}
	if err != nil {
		return nil, apperror.Storage(fmt.Sprintf("updating note %s in %s", id, s.key), err)
	}
	return n, nil
}

// Delete is idempotent: removing a missing note succeeds.
func (r *NoteRepository) Delete(ctx context.Context, userID, id string) error {
	s, err := r.stores.HandleFor(userID)
	if err != nil {
		return err
	}

	if _, err := s.conn.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id); err != nil {
		return apperror.Storage(fmt.Sprintf("deleting note %s in %s", id, s.key), err)
	}
	return nil
}

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanNote(row scanner) (*model.Note, error) {
	var (
		n                model.Note
		created, updated int64
	)
	if err := row.Scan(&n.ID, &n.Title, &n.Content, &created, &updated); err != nil {
		return nil, err
	}
	n.CreatedAt = fromMillis(created)
	n.UpdatedAt = fromMillis(updated)
	return &n, nil
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
