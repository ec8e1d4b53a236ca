// Package apperr holds the sentinel errors shared by the index, the
// replication codec and the transports.
package apperr

import "errors"

var (
	// ErrPathNotFound means an intermediate or terminal path segment could not be resolved.
	ErrPathNotFound = errors.New("path not found")
	// ErrDuplicateNode means the insert or rename target already exists.
	ErrDuplicateNode = errors.New("duplicate node")
	// ErrKindMismatch means a node's kind is not compatible with the operation.
	ErrKindMismatch = errors.New("kind mismatch")
	// ErrRecordLocked is surfaced from the catalog when another owner holds the record.
	ErrRecordLocked = errors.New("record locked")
	// ErrReplicationDecode means a delta message is malformed.
	ErrReplicationDecode = errors.New("malformed delta message")
	// ErrInvalidName means a display name is empty or contains the wire separator.
	ErrInvalidName = errors.New("invalid display name")
	// ErrInvalidMove means the move or copy destination lies inside the source.
	ErrInvalidMove = errors.New("invalid move destination")
)
