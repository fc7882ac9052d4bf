package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sakif/notebox/internal/apperror"
)

// notesSchema is applied to every tenant store. Timestamps are Unix
// milliseconds.
const notesSchema = `
	CREATE TABLE IF NOT EXISTS notes (
		id         TEXT PRIMARY KEY,
		title      TEXT NOT NULL,
		content    TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_notes_updated_at ON notes(updated_at DESC);
`

// Store is one tenant's database handle.
//
// It is opened lazily: sql.Open does not connect, so a store for a tenant
// that was never provisioned only fails on its first query.
type Store struct {
	key  string
	conn *sql.DB
}

// openStore opens a handle that keeps at most one idle connection and
// closes it after idle, so the handle can stay cached while its user is away.
func openStore(driver, dsn, key string, idle time.Duration) (*Store, error) {
	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, apperror.Storage(fmt.Sprintf("opening store %s", key), err)
	}
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxIdleTime(idle)
	return &Store{key: key, conn: conn}, nil
}

// Stats reports the handle's connection pool usage.
func (s *Store) Stats() sql.DBStats {
	return s.conn.Stats()
}

// Key is the tenant key this store belongs to.
func (s *Store) Key() string {
	return s.key
}

// EnsureSchema creates the notes table and its index if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, notesSchema); err != nil {
		return apperror.Storage(fmt.Sprintf("initializing schema in %s", s.key), err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}
