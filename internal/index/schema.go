// Package index provides the SQLite-backed note metadata cache.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	path        TEXT PRIMARY KEY,
	title       TEXT NOT NULL DEFAULT '',
	checksum    TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	body        TEXT NOT NULL DEFAULT '',
	updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS relations (
	source   TEXT NOT NULL,
	target   TEXT NOT NULL,
	type     TEXT NOT NULL DEFAULT 'inline',
	position INTEGER NOT NULL DEFAULT 0,
	UNIQUE(source, type, target)
);

CREATE INDEX IF NOT EXISTS idx_relations_source ON relations(source);
CREATE INDEX IF NOT EXISTS idx_relations_type ON relations(type);
`

// schemaVersion is stored in PRAGMA user_version. A cache written under
// another version is dropped and refilled by the next Sync.
const schemaVersion = 1

const dropSQL = `
DROP TABLE IF EXISTS relations;
DROP TABLE IF EXISTS links;
DROP TABLE IF EXISTS notes;
`

// DB wraps a sql.DB with cache-specific operations.
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
	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return &DB{conn: conn}, nil
}

func migrate(conn *sql.DB) error {
	var version int
	if err := conn.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("index: read schema version: %w", err)
	}
	if version != schemaVersion {
		if _, err := conn.Exec(dropSQL); err != nil {
			return fmt.Errorf("index: drop stale cache: %w", err)
		}
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		return fmt.Errorf("index: apply schema: %w", err)
	}
	if version != schemaVersion {
		if _, err := conn.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, schemaVersion)); err != nil {
			return fmt.Errorf("index: write schema version: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
