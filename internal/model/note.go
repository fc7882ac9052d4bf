package model

import "time"

// Note is a single note document stored in its owner's tenant database.
//
// There is no owner column: a note belongs to whichever tenant store it was
// read from, so a handle for one user can never see another user's rows.
// Timestamps are stored as Unix milliseconds and rendered as RFC 3339 in JSON.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"` // rich-text markup from the editor
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
