package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/inkwell/internal/apperr"
)

// Grant is a remembered folder.
type Grant struct {
	Key     string
	Path    string
	SavedAt time.Time
}

// SaveGrant stores path under key, replacing any previous value.
func (db *DB) SaveGrant(key, path string) error {
	_, err := db.conn.Exec(`
		INSERT INTO grants (key, path, saved_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			path     = excluded.path,
			saved_at = excluded.saved_at
	`, key, path, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("index: save grant: %w", err)
	}
	return nil
}

// LoadGrant returns the grant stored under key, or apperr.ErrNotFound.
func (db *DB) LoadGrant(key string) (Grant, error) {
	g := Grant{Key: key}
	err := db.conn.QueryRow(`SELECT path, saved_at FROM grants WHERE key = ?`, key).Scan(&g.Path, &g.SavedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Grant{}, fmt.Errorf("index: grant %q: %w", key, apperr.ErrNotFound)
	}
	if err != nil {
		return Grant{}, fmt.Errorf("index: load grant: %w", err)
	}
	return g, nil
}

// RemoveGrant forgets key. Removing a missing key is not an error.
func (db *DB) RemoveGrant(key string) error {
	if _, err := db.conn.Exec(`DELETE FROM grants WHERE key = ?`, key); err != nil {
		return fmt.Errorf("index: remove grant: %w", err)
	}
	return nil
}
