package catalog

import "github.com/starford/arbor/internal/index"

// Store defines the catalog operations the index service depends on.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with fakes.
type Store interface {
	index.Source
	index.OrderSource
	index.MirrorSource

	NextRecord() (int, error)
	Get(record int) (index.Entry, bool, error)
	PutRecord(e index.Entry) error
	DeleteRecords(records []int) error
	RenameRecord(record int, name string) error
	MoveRecord(record, parentRecord int, sortOrder *int) error
	SetSortOrder(record, sortOrder int) error

	AddKeywordGroup(group string) error
	AddKeyword(group, keyword string) error
	AddKeywordExample(group, keyword string, record int, name string) error
	DeleteKeywordGroup(group string) error
	DeleteKeyword(group, keyword string) error
	DeleteKeywordExample(group, keyword string, record int, name string) error
	RenameKeywordGroup(group, newName string) error
	RenameKeyword(group, keyword, newName string) error
	MoveKeyword(group, keyword, newGroup string) error

	AcquireLocks(owner string, records ...int) error
	ReleaseLocks(owner string, records ...int) error
	ReleaseAll(owner string) (int, error)

	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)
