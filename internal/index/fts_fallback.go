//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"

	"github.com/starford/uhskit/internal/models"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; search uses LIKE fallback on the entries table.
	return nil
}

func ftsInsert(_ *sql.Tx, _ string, _ []models.Entry) error {
	// Entries are already stored; nothing extra to do.
	return nil
}

func ftsDelete(_ *sql.Tx, _ string) {}

// Search performs a LIKE-based search (fallback when FTS5 is not compiled in).
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.Query(`
		SELECT entries.path, files.title, entries.node_id, entries.type, entries.title, entries.trail, entries.title
		FROM entries
		JOIN files ON files.path = entries.path
		WHERE entries.title LIKE ? OR entries.trail LIKE ?
		ORDER BY entries.path, entries.rowid
		LIMIT ?
	`, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Path, &r.FileTitle, &r.NodeID, &r.Type, &r.Title, &r.Trail, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
