package index

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/starford/uhskit/internal/apperr"
	"github.com/starford/uhskit/internal/models"
)

// SearchResult represents one search hit: a titled node of a cataloged file.
type SearchResult struct {
	Path      string `json:"path"`
	FileTitle string `json:"file_title"`
	NodeID    int    `json:"id,omitempty"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Trail     string `json:"trail,omitempty"`
	Snippet   string `json:"snippet"`
}

const fileColumns = `path, title, format, version, legacy, crc, nodes, fingerprint, size, updated_at`

// UpsertFile inserts or replaces a file row, its snapshot and its searchable
// entries within a transaction.
func (db *DB) UpsertFile(f models.HintFile, snapshot []byte, entries []models.Entry) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO files (path, title, format, version, legacy, crc, nodes, fingerprint, size, snapshot, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title       = excluded.title,
			format      = excluded.format,
			version     = excluded.version,
			legacy      = excluded.legacy,
			crc         = excluded.crc,
			nodes       = excluded.nodes,
			fingerprint = excluded.fingerprint,
			size        = excluded.size,
			snapshot    = excluded.snapshot,
			updated_at  = excluded.updated_at
	`, f.Path, f.Title, f.Format, f.Version, f.Legacy, f.CRC, f.Nodes, f.Fingerprint, f.Size, snapshot, f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert file: %w", err)
	}

	// Replace entries: delete old then bulk insert.
	if _, err := tx.Exec(`DELETE FROM entries WHERE path = ?`, f.Path); err != nil {
		return fmt.Errorf("index: clear entries: %w", err)
	}
	ftsDelete(tx, f.Path)
	if len(entries) > 0 {
		stmt, err := tx.Prepare(`INSERT INTO entries (path, node_id, type, title, trail) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare entry insert: %w", err)
		}
		defer stmt.Close()
		for _, e := range entries {
			if _, err := stmt.Exec(f.Path, e.NodeID, e.Type, e.Title, e.Trail); err != nil {
				return fmt.Errorf("index: insert entry: %w", err)
			}
		}
	}
	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsInsert(tx, f.Path, entries); err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteFile removes a file, its snapshot and its entries.
func (db *DB) DeleteFile(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	_, _ = tx.Exec(`DELETE FROM entries WHERE path = ?`, path)
	_, _ = tx.Exec(`DELETE FROM files WHERE path = ?`, path)

	return tx.Commit()
}

// GetFingerprint returns the stored fingerprint for a file, or empty string if not found.
func (db *DB) GetFingerprint(path string) (string, error) {
	var fp string
	err := db.conn.QueryRow(`SELECT fingerprint FROM files WHERE path = ?`, path).Scan(&fp)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil // not found is fine
	}
	if err != nil {
		return "", fmt.Errorf("index: get fingerprint: %w", err)
	}
	return fp, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(s scanner) (models.HintFile, error) {
	var f models.HintFile
	err := s.Scan(&f.Path, &f.Title, &f.Format, &f.Version, &f.Legacy, &f.CRC, &f.Nodes, &f.Fingerprint, &f.Size, &f.UpdatedAt)
	return f, err
}

// GetFile returns the catalog row of path.
func (db *DB) GetFile(path string) (*models.HintFile, error) {
	f, err := scanFile(db.conn.QueryRow(`SELECT `+fileColumns+` FROM files WHERE path = ?`, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: file %s: %w", path, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get file: %w", err)
	}
	return &f, nil
}

// GetSnapshot returns the encoded outline snapshot of path.
func (db *DB) GetSnapshot(path string) ([]byte, error) {
	var blob []byte
	err := db.conn.QueryRow(`SELECT snapshot FROM files WHERE path = ?`, path).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: snapshot %s: %w", path, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get snapshot: %w", err)
	}
	return blob, nil
}

// ErrUnknownSort is returned by ListFiles for a sort order it does not know.
var ErrUnknownSort = errors.New("index: unknown sort")

var sortOrders = map[string]string{
	"":        "path ASC",
	"path":    "path ASC",
	"title":   "title COLLATE NOCASE ASC, path ASC",
	"updated": "updated_at DESC, path ASC",
}

// ListFiles returns one page of cataloged files and the total count. sort is
// one of "path", "title" or "updated".
func (db *DB) ListFiles(limit, offset int, sort string) ([]models.HintFile, int, error) {
	order, ok := sortOrders[sort]
	if !ok {
		return nil, 0, fmt.Errorf("%w %q", ErrUnknownSort, sort)
	}
	if limit <= 0 {
		limit = 50
	}
	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM files`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count files: %w", err)
	}
	rows, err := db.conn.Query(`SELECT `+fileColumns+` FROM files ORDER BY `+order+` LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list files: %w", err)
	}
	defer rows.Close()

	out := []models.HintFile{}
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, f)
	}
	return out, total, rows.Err()
}

// AllFingerprints returns the fingerprint of every cataloged path.
func (db *DB) AllFingerprints() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, fingerprint FROM files`)
	if err != nil {
		return nil, fmt.Errorf("index: all fingerprints: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, fp string
		if err := rows.Scan(&p, &fp); err != nil {
			return nil, err
		}
		out[p] = fp
	}
	return out, rows.Err()
}
