package catalog

import (
	"database/sql"
	"fmt"

	"github.com/starford/arbor/internal/index"
)

// AddKeywordGroup creates a keyword group if it does not exist.
func (db *DB) AddKeywordGroup(group string) error {
	if _, err := db.conn.Exec(`INSERT OR IGNORE INTO keyword_groups (grp) VALUES (?)`, group); err != nil {
		return fmt.Errorf("catalog: add keyword group %q: %w", group, err)
	}
	return nil
}

// AddKeyword creates a keyword, and its group when missing.
func (db *DB) AddKeyword(group, keyword string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("catalog: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := addKeyword(tx, group, keyword); err != nil {
		return err
	}
	return tx.Commit()
}

func addKeyword(tx *sql.Tx, group, keyword string) error {
	if _, err := tx.Exec(`INSERT OR IGNORE INTO keyword_groups (grp) VALUES (?)`, group); err != nil {
		return fmt.Errorf("catalog: add keyword group %q: %w", group, err)
	}
	if _, err := tx.Exec(`INSERT OR IGNORE INTO keywords (grp, keyword) VALUES (?, ?)`, group, keyword); err != nil {
		return fmt.Errorf("catalog: add keyword %q: %w", keyword, err)
	}
	return nil
}

// AddKeywordExample tags record with a keyword, creating the keyword when
// missing.
func (db *DB) AddKeywordExample(group, keyword string, record int, name string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("catalog: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := addKeyword(tx, group, keyword); err != nil {
		return err
	}
	_, err = tx.Exec(`
		INSERT INTO keyword_examples (grp, keyword, record, name) VALUES (?, ?, ?, ?)
		ON CONFLICT(grp, keyword, record) DO UPDATE SET name = excluded.name
	`, group, keyword, record, name)
	if err != nil {
		return fmt.Errorf("catalog: add example %d to %q: %w", record, keyword, err)
	}
	return tx.Commit()
}

// DeleteKeywordGroup removes a group with its keywords and examples.
func (db *DB) DeleteKeywordGroup(group string) error {
	return db.execTx(
		stmt{`DELETE FROM keyword_examples WHERE grp = ?`, []any{group}},
		stmt{`DELETE FROM keywords WHERE grp = ?`, []any{group}},
		stmt{`DELETE FROM keyword_groups WHERE grp = ?`, []any{group}},
	)
}

// DeleteKeyword removes a keyword with its examples.
func (db *DB) DeleteKeyword(group, keyword string) error {
	return db.execTx(
		stmt{`DELETE FROM keyword_examples WHERE grp = ? AND keyword = ?`, []any{group, keyword}},
		stmt{`DELETE FROM keywords WHERE grp = ? AND keyword = ?`, []any{group, keyword}},
	)
}

// DeleteKeywordExample untags record. AnyRecord removes every example of the
// keyword with that name.
func (db *DB) DeleteKeywordExample(group, keyword string, record int, name string) error {
	if record == index.AnyRecord {
		return db.execTx(stmt{
			`DELETE FROM keyword_examples WHERE grp = ? AND keyword = ? AND name = ? COLLATE NOCASE`,
			[]any{group, keyword, name},
		})
	}
	return db.execTx(stmt{
		`DELETE FROM keyword_examples WHERE grp = ? AND keyword = ? AND record = ?`,
		[]any{group, keyword, record},
	})
}

// RenameKeywordGroup renames a group everywhere it is referenced.
func (db *DB) RenameKeywordGroup(group, newName string) error {
	return db.execTx(
		stmt{`UPDATE keyword_groups SET grp = ? WHERE grp = ?`, []any{newName, group}},
		stmt{`UPDATE keywords SET grp = ? WHERE grp = ?`, []any{newName, group}},
		stmt{`UPDATE keyword_examples SET grp = ? WHERE grp = ?`, []any{newName, group}},
	)
}

// RenameKeyword renames a keyword inside its group.
func (db *DB) RenameKeyword(group, keyword, newName string) error {
	return db.execTx(
		stmt{`UPDATE keywords SET keyword = ? WHERE grp = ? AND keyword = ?`, []any{newName, group, keyword}},
		stmt{`UPDATE keyword_examples SET keyword = ? WHERE grp = ? AND keyword = ?`, []any{newName, group, keyword}},
	)
}

// MoveKeyword moves a keyword, with its examples, into another group.
func (db *DB) MoveKeyword(group, keyword, newGroup string) error {
	return db.execTx(
		stmt{`INSERT OR IGNORE INTO keyword_groups (grp) VALUES (?)`, []any{newGroup}},
		stmt{`UPDATE keywords SET grp = ? WHERE grp = ? AND keyword = ?`, []any{newGroup, group, keyword}},
		stmt{`UPDATE keyword_examples SET grp = ? WHERE grp = ? AND keyword = ?`, []any{newGroup, group, keyword}},
	)
}

// Keywords lists the taxonomy for index.Load, one row per example plus one
// per keyword without examples and per group without keywords.
func (db *DB) Keywords() ([]index.KeywordEntry, error) {
	rows, err := db.conn.Query(`
		SELECT g.grp, COALESCE(k.keyword, ''), COALESCE(e.name, ''), COALESCE(e.record, 0)
		FROM keyword_groups g
		LEFT JOIN keywords k ON k.grp = g.grp
		LEFT JOIN keyword_examples e ON e.grp = k.grp AND e.keyword = k.keyword
		ORDER BY g.grp, k.keyword, e.record
	`)
	if err != nil {
		return nil, fmt.Errorf("catalog: keywords: %w", err)
	}
	defer rows.Close()

	var out []index.KeywordEntry
	for rows.Next() {
		var k index.KeywordEntry
		if err := rows.Scan(&k.Group, &k.Keyword, &k.Example, &k.Record); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// KeywordExamples returns the keywords holding an example of record.
func (db *DB) KeywordExamples(record int) ([]index.KeywordRef, error) {
	rows, err := db.conn.Query(`
		SELECT grp, keyword FROM keyword_examples WHERE record = ? ORDER BY grp, keyword
	`, record)
	if err != nil {
		return nil, fmt.Errorf("catalog: keyword examples of %d: %w", record, err)
	}
	defer rows.Close()

	var out []index.KeywordRef
	for rows.Next() {
		var ref index.KeywordRef
		if err := rows.Scan(&ref.Group, &ref.Keyword); err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

type stmt struct {
	query string
	args  []any
}

func (db *DB) execTx(stmts ...stmt) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("catalog: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, s := range stmts {
		if _, err := tx.Exec(s.query, s.args...); err != nil {
			return fmt.Errorf("catalog: exec: %w", err)
		}
	}
	return tx.Commit()
}
