package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sakif/notebox/internal/apperror"
	"github.com/sakif/notebox/internal/auth"
	"github.com/sakif/notebox/internal/model"
)

// NoteService is the part of service.NoteService the handler uses.
type NoteService interface {
	Create(ctx context.Context, userID, title, content string) (*model.Note, error)
	List(ctx context.Context, userID string) ([]model.Note, error)
	Get(ctx context.Context, userID, id string) (*model.Note, error)
	Update(ctx context.Context, userID, id, title, content string) (*model.Note, error)
	Delete(ctx context.Context, userID, id string) error
}

// noteRequest is the body of POST /api/notes and PUT /api/notes/{id}.
type noteRequest struct {
	Title   string `json:"title" validate:"required"`
	Content string `json:"content" validate:"required"`
}

// maxNoteBody leaves room for JSON escaping on top of the content cap.
const maxNoteBody = 4 << 20

// NoteHandler serves the note CRUD API. Every route runs behind
// auth.RequireAuth and is scoped to the caller's own tenant.
type NoteHandler struct {
	notes    NoteService
	validate *validator.Validate
	logger   *slog.Logger
}

func NewNoteHandler(notes NoteService, logger *slog.Logger) *NoteHandler {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &NoteHandler{notes: notes, validate: v, logger: logger}
}

// HandleList serves GET /api/notes.
func (h *NoteHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	notes, err := h.notes.List(r.Context(), userID)
	if err != nil {
		h.fail(w, r, "listing notes", err)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

// HandleCreate serves POST /api/notes and replies 201 with the stored note.
func (h *NoteHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	note, err := h.notes.Create(r.Context(), userID, req.Title, req.Content)
	if err != nil {
		h.fail(w, r, "creating note", err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// HandleGet serves GET /api/notes/{id}.
func (h *NoteHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	note, err := h.notes.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "getting note", err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// HandleUpdate serves PUT /api/notes/{id}.
func (h *NoteHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	note, err := h.notes.Update(r.Context(), userID, chi.URLParam(r, "id"), req.Title, req.Content)
	if err != nil {
		h.fail(w, r, "updating note", err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// HandleDelete serves DELETE /api/notes/{id}. Deleting a missing note is 204 too.
func (h *NoteHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	if err := h.notes.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, "deleting note", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *NoteHandler) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "valid authentication required",
		})
	}
	return userID, ok
}

// decode reads and validates a noteRequest, replying 400 itself on failure.
func (h *NoteHandler) decode(w http.ResponseWriter, r *http.Request) (*noteRequest, bool) {
	var req noteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxNoteBody)).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return nil, false
	}

	if err := h.validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			field := fieldErrs[0].Field()
			writeError(w, apperror.ValidationFailed(field, field+" is required"))
			return nil, false
		}
		writeError(w, apperror.ValidationFailed("body", err.Error()))
		return nil, false
	}
	return &req, true
}

// fail logs server-side failures and replies with the mapped error.
func (h *NoteHandler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if !errors.Is(err, apperror.ErrValidation) && !errors.Is(err, apperror.ErrNotFound) {
		h.logger.Error(op+" failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	writeError(w, err)
}
