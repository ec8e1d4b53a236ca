// Package catalog is the SQLite-backed catalog collaborator of the index:
// authoritative records, the keyword taxonomy with its reverse example index,
// container sort orders and record locks. Every replica opens the same file.
package catalog

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS records (
	record        INTEGER PRIMARY KEY,
	kind          TEXT    NOT NULL,
	name          TEXT    NOT NULL,
	parent_record INTEGER NOT NULL DEFAULT 0,
	sort_order    INTEGER,
	source_record INTEGER NOT NULL DEFAULT 0,
	updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_records_parent ON records(parent_record);

CREATE TABLE IF NOT EXISTS keyword_groups (
	grp TEXT NOT NULL COLLATE NOCASE PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS keywords (
	grp     TEXT NOT NULL COLLATE NOCASE,
	keyword TEXT NOT NULL COLLATE NOCASE,
	UNIQUE(grp, keyword)
);

CREATE TABLE IF NOT EXISTS keyword_examples (
	grp     TEXT    NOT NULL COLLATE NOCASE,
	keyword TEXT    NOT NULL COLLATE NOCASE,
	record  INTEGER NOT NULL,
	name    TEXT    NOT NULL,
	UNIQUE(grp, keyword, record)
);

CREATE INDEX IF NOT EXISTS idx_keyword_examples_record ON keyword_examples(record);

CREATE TABLE IF NOT EXISTS locks (
	record      INTEGER PRIMARY KEY,
	owner       TEXT NOT NULL,
	acquired_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// DB wraps a sql.DB with catalog operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite catalog and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("catalog: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("catalog: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("catalog: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
