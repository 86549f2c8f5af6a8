// Package index provides the SQLite-backed hint library catalog with optional
// FTS5 full-text search over subject and question titles.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS files (
	path        TEXT PRIMARY KEY,
	title       TEXT NOT NULL DEFAULT '',
	format      TEXT NOT NULL DEFAULT '',
	version     TEXT NOT NULL DEFAULT '',
	legacy      INTEGER NOT NULL DEFAULT 0,
	crc         TEXT NOT NULL DEFAULT 'absent',
	nodes       INTEGER NOT NULL DEFAULT 0,
	fingerprint TEXT NOT NULL DEFAULT '',
	size        INTEGER NOT NULL DEFAULT 0,
	snapshot    BLOB,
	updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS entries (
	path    TEXT NOT NULL,
	node_id INTEGER NOT NULL DEFAULT 0,
	type    TEXT NOT NULL DEFAULT '',
	title   TEXT NOT NULL DEFAULT '',
	trail   TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_entries_path ON entries(path);
`

// DB wraps a sql.DB with catalog operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable.
func (db *DB) Ping() error {
	return db.conn.Ping()
}
