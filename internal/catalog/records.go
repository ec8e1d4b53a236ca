package catalog

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/starford/arbor/internal/index"
)

// NextRecord returns an unused record number.
func (db *DB) NextRecord() (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT COALESCE(MAX(record), 0) + 1 FROM records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("catalog: next record: %w", err)
	}
	return n, nil
}

// PutRecord inserts or replaces a record. An ordered item whose sort order is
// already taken inside its container pushes the holder and every later item
// down by one, so the new item lands at the requested position.
func (db *DB) PutRecord(e index.Entry) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("catalog: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	var order sql.NullInt64
	if e.SortOrder != nil {
		order = sql.NullInt64{Int64: int64(*e.SortOrder), Valid: true}
	}
	if order.Valid && e.Kind.IsOrdered() {
		if err := makeRoom(tx, e.Record, e.ParentRecord, *e.SortOrder); err != nil {
			return err
		}
	}

	_, err = tx.Exec(`
		INSERT INTO records (record, kind, name, parent_record, sort_order, source_record)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(record) DO UPDATE SET
			kind          = excluded.kind,
			name          = excluded.name,
			parent_record = excluded.parent_record,
			sort_order    = excluded.sort_order,
			source_record = excluded.source_record,
			updated_at    = CURRENT_TIMESTAMP
	`, e.Record, e.Kind.String(), e.Name, e.ParentRecord, order, e.SourceRecord)
	if err != nil {
		return fmt.Errorf("catalog: put record %d: %w", e.Record, err)
	}
	return tx.Commit()
}

func makeRoom(tx *sql.Tx, record, container, at int) error {
	var taken int
	err := tx.QueryRow(`
		SELECT count(*) FROM records
		WHERE parent_record = ? AND sort_order = ? AND record != ?
	`, container, at, record).Scan(&taken)
	if err != nil {
		return fmt.Errorf("catalog: check sort order: %w", err)
	}
	if taken == 0 {
		return nil
	}
	_, err = tx.Exec(`
		UPDATE records SET sort_order = sort_order + 1
		WHERE parent_record = ? AND sort_order >= ? AND record != ?
	`, container, at, record)
	if err != nil {
		return fmt.Errorf("catalog: shift sort orders: %w", err)
	}
	return nil
}

// Get returns the record, and false when it does not exist.
func (db *DB) Get(record int) (index.Entry, bool, error) {
	row := db.conn.QueryRow(`
		SELECT record, kind, name, parent_record, sort_order, source_record
		FROM records WHERE record = ?
	`, record)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return index.Entry{}, false, nil
	}
	if err != nil {
		return index.Entry{}, false, fmt.Errorf("catalog: get %d: %w", record, err)
	}
	return e, true, nil
}

// DeleteRecords removes records together with their keyword examples.
func (db *DB) DeleteRecords(records []int) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("catalog: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, r := range records {
		if _, err := tx.Exec(`DELETE FROM keyword_examples WHERE record = ?`, r); err != nil {
			return fmt.Errorf("catalog: delete examples of %d: %w", r, err)
		}
		if _, err := tx.Exec(`DELETE FROM records WHERE record = ?`, r); err != nil {
			return fmt.Errorf("catalog: delete record %d: %w", r, err)
		}
	}
	return tx.Commit()
}

// RenameRecord changes a record's name and the name of its keyword examples.
func (db *DB) RenameRecord(record int, name string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("catalog: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`UPDATE records SET name = ?, updated_at = CURRENT_TIMESTAMP WHERE record = ?`, name, record); err != nil {
		return fmt.Errorf("catalog: rename %d: %w", record, err)
	}
	if _, err := tx.Exec(`UPDATE keyword_examples SET name = ? WHERE record = ?`, name, record); err != nil {
		return fmt.Errorf("catalog: rename examples of %d: %w", record, err)
	}
	return tx.Commit()
}

// MoveRecord points a record at a new owner. A nil sortOrder keeps the
// current one.
func (db *DB) MoveRecord(record, parentRecord int, sortOrder *int) error {
	var err error
	if sortOrder == nil {
		_, err = db.conn.Exec(`
			UPDATE records SET parent_record = ?, updated_at = CURRENT_TIMESTAMP
			WHERE record = ?
		`, parentRecord, record)
	} else {
		_, err = db.conn.Exec(`
			UPDATE records SET parent_record = ?, sort_order = ?, updated_at = CURRENT_TIMESTAMP
			WHERE record = ?
		`, parentRecord, *sortOrder, record)
	}
	if err != nil {
		return fmt.Errorf("catalog: move %d: %w", record, err)
	}
	return nil
}

// SetSortOrder changes the position of an ordered item.
func (db *DB) SetSortOrder(record, sortOrder int) error {
	_, err := db.conn.Exec(`
		UPDATE records SET sort_order = ?, updated_at = CURRENT_TIMESTAMP
		WHERE record = ?
	`, sortOrder, record)
	if err != nil {
		return fmt.Errorf("catalog: set sort order of %d: %w", record, err)
	}
	return nil
}

// Entries lists every record for index.Load.
func (db *DB) Entries() ([]index.Entry, error) {
	rows, err := db.conn.Query(`
		SELECT record, kind, name, parent_record, sort_order, source_record
		FROM records ORDER BY record
	`)
	if err != nil {
		return nil, fmt.Errorf("catalog: entries: %w", err)
	}
	defer rows.Close()

	var out []index.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SortOrders returns record -> sort order for the ordered items in container.
func (db *DB) SortOrders(container int) (map[int]int, error) {
	rows, err := db.conn.Query(`
		SELECT record, sort_order FROM records
		WHERE parent_record = ? AND sort_order IS NOT NULL
	`, container)
	if err != nil {
		return nil, fmt.Errorf("catalog: sort orders of %d: %w", container, err)
	}
	defer rows.Close()

	out := make(map[int]int)
	for rows.Next() {
		var rec, so int
		if err := rows.Scan(&rec, &so); err != nil {
			return nil, err
		}
		out[rec] = so
	}
	return out, rows.Err()
}

// MaxSortOrder returns the largest sort order in container, and false when
// the container holds no ordered items.
func (db *DB) MaxSortOrder(container int) (int, bool, error) {
	var top sql.NullInt64
	err := db.conn.QueryRow(`
		SELECT MAX(sort_order) FROM records
		WHERE parent_record = ? AND sort_order IS NOT NULL
	`, container).Scan(&top)
	if err != nil {
		return 0, false, fmt.Errorf("catalog: max sort order of %d: %w", container, err)
	}
	return int(top.Int64), top.Valid, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (index.Entry, error) {
	var (
		e     index.Entry
		kind  string
		order sql.NullInt64
	)
	if err := s.Scan(&e.Record, &kind, &e.Name, &e.ParentRecord, &order, &e.SourceRecord); err != nil {
		return index.Entry{}, err
	}
	k, err := index.ParseKind(kind)
	if err != nil {
		return index.Entry{}, fmt.Errorf("catalog: record %d: %w", e.Record, err)
	}
	e.Kind = k
	if order.Valid {
		so := int(order.Int64)
		e.SortOrder = &so
	}
	return e, nil
}
