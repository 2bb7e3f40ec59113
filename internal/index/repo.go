package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/cardsync/internal/apperr"
	"github.com/starford/cardsync/internal/models"
)

// NoteRow represents a row in the notes table with its relationship fields.
type NoteRow struct {
	Path        string
	Title       string
	Checksum    string
	Description string
	Relations   models.Relations
	UpdatedAt   time.Time
}

// Meta converts the row to the shared metadata type.
func (n *NoteRow) Meta() models.NoteMeta {
	return models.NoteMeta{
		Path:        n.Path,
		Title:       n.Title,
		Description: n.Description,
		Relations:   n.Relations,
	}
}

// Relation is one stored relationship link. Target is the raw, unresolved
// link target as written in the source note.
type Relation struct {
	Source   string
	Target   string
	Type     string
	Position int
}

var relationKinds = []string{models.RelUp, models.RelPrev, models.RelNext, models.RelCanvas}

// UpsertNote inserts or replaces a note and all of its relations within a
// transaction. inline holds the body's wiki-link targets.
func (db *DB) UpsertNote(n NoteRow, body string, inline []string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO notes (path, title, checksum, description, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title       = excluded.title,
			checksum    = excluded.checksum,
			description = excluded.description,
			body        = excluded.body,
			updated_at  = excluded.updated_at
	`, n.Path, n.Title, n.Checksum, n.Description, body, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert note: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM relations WHERE source = ?`, n.Path); err != nil {
		return fmt.Errorf("index: clear relations: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO relations (source, target, type, position) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare relation insert: %w", err)
	}
	defer stmt.Close()

	insert := func(kind string, targets []string) error {
		for i, target := range targets {
			if _, err := stmt.Exec(n.Path, target, kind, i); err != nil {
				return fmt.Errorf("index: insert %s relation: %w", kind, err)
			}
		}
		return nil
	}
	for _, kind := range relationKinds {
		if err := insert(kind, n.Relations.Of(kind)); err != nil {
			return err
		}
	}
	if err := insert(models.RelInline, inline); err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteNote removes a note and its outgoing relations.
func (db *DB) DeleteNote(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM relations WHERE source = ?`, path); err != nil {
		return fmt.Errorf("index: delete relations: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM notes WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete note: %w", err)
	}
	return tx.Commit()
}

// GetNote returns a note row with its relations. It returns
// apperr.ErrNotFound when the path is not cached.
func (db *DB) GetNote(path string) (*NoteRow, error) {
	n := &NoteRow{Path: path}
	err := db.conn.QueryRow(
		`SELECT title, checksum, description, updated_at FROM notes WHERE path = ?`, path,
	).Scan(&n.Title, &n.Checksum, &n.Description, &n.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: note %q: %w", path, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get note: %w", err)
	}

	rows, err := db.conn.Query(
		`SELECT target, type FROM relations WHERE source = ? AND type != ? ORDER BY type, position`,
		path, models.RelInline,
	)
	if err != nil {
		return nil, fmt.Errorf("index: note relations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var target, kind string
		if err := rows.Scan(&target, &kind); err != nil {
			return nil, err
		}
		switch kind {
		case models.RelUp:
			n.Relations.Up = append(n.Relations.Up, target)
		case models.RelPrev:
			n.Relations.Prev = append(n.Relations.Prev, target)
		case models.RelNext:
			n.Relations.Next = append(n.Relations.Next, target)
		case models.RelCanvas:
			n.Relations.Canvas = append(n.Relations.Canvas, target)
		}
	}
	return n, rows.Err()
}

// GetChecksum returns the stored checksum for a note, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM notes WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

// AllChecksums returns path → checksum for every cached note.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// Relations returns every stored relation of the given kind across the
// vault, ordered by source then position.
func (db *DB) Relations(kind string) ([]Relation, error) {
	rows, err := db.conn.Query(
		`SELECT source, target, position FROM relations WHERE type = ? ORDER BY source, position`, kind,
	)
	if err != nil {
		return nil, fmt.Errorf("index: relations: %w", err)
	}
	defer rows.Close()

	var out []Relation
	for rows.Next() {
		r := Relation{Type: kind}
		if err := rows.Scan(&r.Source, &r.Target, &r.Position); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
