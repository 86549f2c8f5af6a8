//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"

	"github.com/starford/uhskit/internal/models"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS entries_fts USING fts5(
			path UNINDEXED,
			node_id UNINDEXED,
			type UNINDEXED,
			title,
			trail,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsInsert(tx *sql.Tx, path string, entries []models.Entry) error {
	for _, e := range entries {
		_, err := tx.Exec(`INSERT INTO entries_fts (path, node_id, type, title, trail) VALUES (?, ?, ?, ?, ?)`,
			path, e.NodeID, e.Type, e.Title, e.Trail)
		if err != nil {
			return fmt.Errorf("index: insert fts: %w", err)
		}
	}
	return nil
}

func ftsDelete(tx *sql.Tx, path string) {
	_, _ = tx.Exec(`DELETE FROM entries_fts WHERE path = ?`, path)
}

// Search performs an FTS5 full-text search over entry titles and returns
// matching results with snippets.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT entries_fts.path,
		       files.title,
		       entries_fts.node_id,
		       entries_fts.type,
		       entries_fts.title,
		       entries_fts.trail,
		       snippet(entries_fts, 3, '<b>', '</b>', '...', 16)
		FROM entries_fts
		JOIN files ON files.path = entries_fts.path
		WHERE entries_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
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
