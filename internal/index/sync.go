package index

import (
	"database/sql"
	"fmt"
)

// SyncStats counts what ReplacePosts changed.
type SyncStats struct {
	Upserted int
	Deleted  int
	Kept     int
}

// ReplacePosts makes the mirror equal to rows in one transaction:
//   - new/changed posts (by checksum) are upserted
//   - posts missing from rows are deleted
func (db *DB) ReplacePosts(rows []PostRow) (SyncStats, error) {
	var st SyncStats
	checksums, err := db.AllChecksums()
	if err != nil {
		return st, err
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return st, fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	seen := make(map[string]struct{}, len(rows))
	for _, p := range rows {
		seen[p.Path] = struct{}{}
		if cs, ok := checksums[p.Path]; ok && cs == p.Checksum && p.Checksum != "" {
			st.Kept++
			continue
		}
		if err := upsertPost(tx, p); err != nil {
			return st, err
		}
		st.Upserted++
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := seen[p]; ok {
			continue
		}
		ftsDelete(tx, p)
		if _, err := tx.Exec(`DELETE FROM posts WHERE path = ?`, p); err != nil {
			return st, fmt.Errorf("index: delete stale: %w", err)
		}
		st.Deleted++
	}

	if err := tx.Commit(); err != nil {
		return st, fmt.Errorf("index: commit: %w", err)
	}
	return st, nil
}

func upsertPost(tx *sql.Tx, p PostRow) error {
	_, err := tx.Exec(`
		INSERT INTO posts (path, title, date, draft, checksum, body)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title    = excluded.title,
			date     = excluded.date,
			draft    = excluded.draft,
			checksum = excluded.checksum,
			body     = excluded.body
	`, p.Path, p.Title, p.Date, p.Draft, p.Checksum, p.Body)
	if err != nil {
		return fmt.Errorf("index: upsert post: %w", err)
	}
	// FTS upsert (no-op when FTS5 tag is absent).
	return ftsUpsert(tx, p.Path, p.Title, p.Body)
}
