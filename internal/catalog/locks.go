package catalog

import (
	"database/sql"
	"fmt"

	"github.com/starford/arbor/internal/apperr"
)

// AcquireLocks takes the write lock of every record for owner. Locks already
// held by owner are kept. If any record is held by another owner nothing is
// taken and the error wraps apperr.ErrRecordLocked.
func (db *DB) AcquireLocks(owner string, records ...int) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("catalog: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, r := range records {
		res, err := tx.Exec(`
			INSERT INTO locks (record, owner) VALUES (?, ?)
			ON CONFLICT(record) DO UPDATE SET acquired_at = CURRENT_TIMESTAMP
			WHERE locks.owner = excluded.owner
		`, r, owner)
		if err != nil {
			return fmt.Errorf("catalog: lock %d: %w", r, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("catalog: lock %d: %w", r, err)
		}
		if n == 0 {
			holder, _ := lockOwner(tx, r)
			return fmt.Errorf("catalog: record %d held by %q: %w", r, holder, apperr.ErrRecordLocked)
		}
	}
	return tx.Commit()
}

// ReleaseLocks drops owner's locks on records. Locks held by others are left
// alone.
func (db *DB) ReleaseLocks(owner string, records ...int) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("catalog: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, r := range records {
		if _, err := tx.Exec(`DELETE FROM locks WHERE record = ? AND owner = ?`, r, owner); err != nil {
			return fmt.Errorf("catalog: unlock %d: %w", r, err)
		}
	}
	return tx.Commit()
}

// ReleaseAll drops every lock held by owner, e.g. after a crash.
func (db *DB) ReleaseAll(owner string) (int, error) {
	res, err := db.conn.Exec(`DELETE FROM locks WHERE owner = ?`, owner)
	if err != nil {
		return 0, fmt.Errorf("catalog: release all: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// LockOwner returns the owner of record's lock, or "" when it is free.
func (db *DB) LockOwner(record int) (string, error) {
	var owner string
	err := db.conn.QueryRow(`SELECT owner FROM locks WHERE record = ?`, record).Scan(&owner)
	if err != nil {
		return "", nil // not locked
	}
	return owner, nil
}

func lockOwner(tx *sql.Tx, record int) (string, error) {
	var owner string
	if err := tx.QueryRow(`SELECT owner FROM locks WHERE record = ?`, record).Scan(&owner); err != nil {
		return "", err
	}
	return owner, nil
}
