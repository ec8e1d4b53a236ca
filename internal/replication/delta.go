// Package replication encodes index mutations as single-line delta messages
// and replays them against another replica's forest.
package replication

import (
	"fmt"

	"github.com/starford/arbor/internal/apperr"
	"github.com/starford/arbor/internal/index"
)

// Op is the mutation a delta describes.
type Op uint8

const (
	OpInvalid Op = iota
	OpInsert
	OpDelete
	OpRename
	OpMove
	OpCopy
	OpReorder
)

var opNames = [...]string{
	OpInvalid: "invalid",
	OpInsert:  "insert",
	OpDelete:  "delete",
	OpRename:  "rename",
	OpMove:    "move",
	OpCopy:    "copy",
	OpReorder: "reorder",
}

// String returns a lower-case label suitable for logs and metric labels.
func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return "invalid"
}

// Delta is one replicated mutation. Which fields are meaningful depends on Op:
//
//	insert   Kind, Path, Record, ParentRecord, SortOrder
//	delete   Kind, Path, Record
//	rename   Kind, Path, Record, Name
//	move     Kind, Path, Record, DestKind, Dest, SortOrder
//	copy     Kind, Path, Record, DestKind, Dest, SortOrder
//	reorder  Kind, Path, Record, SortOrder
type Delta struct {
	Op           Op
	Kind         index.Kind
	DestKind     index.Kind
	Record       int
	ParentRecord int
	SortOrder    *int
	Name         string
	Path         index.Path
	Dest         index.Path
}

// Family returns the tree the delta applies to.
func (d Delta) Family() index.Family { return d.Kind.Family() }

// Insert returns the delta for Engine.Insert.
func Insert(path index.Path, kind index.Kind, record, parentRecord int, sortOrder *int) Delta {
	return Delta{Op: OpInsert, Kind: kind, Path: path, Record: record, ParentRecord: parentRecord, SortOrder: sortOrder}
}

// Delete returns the delta for Engine.Delete.
func Delete(path index.Path, kind index.Kind, record int) Delta {
	return Delta{Op: OpDelete, Kind: kind, Path: path, Record: record}
}

// Rename returns the delta for Engine.Rename.
func Rename(path index.Path, kind index.Kind, record int, newName string) Delta {
	return Delta{Op: OpRename, Kind: kind, Path: path, Record: record, Name: newName}
}

// MoveOrCopy returns the delta for Engine.MoveOrCopy.
func MoveOrCopy(src index.Path, srcKind index.Kind, dst index.Path, dstKind index.Kind, deleteSource bool) Delta {
	op := OpCopy
	if deleteSource {
		op = OpMove
	}
	return Delta{Op: op, Kind: srcKind, Path: src, DestKind: dstKind, Dest: dst}
}

// Reorder returns the delta for Engine.Reorder.
func Reorder(path index.Path, kind index.Kind, record, sortOrder int) Delta {
	return Delta{Op: OpReorder, Kind: kind, Path: path, Record: record, SortOrder: &sortOrder}
}

// Validate checks that d can be encoded and replayed.
func (d Delta) Validate() error {
	if !d.Kind.Valid() {
		return fmt.Errorf("replication: %s delta without kind: %w", d.Op, apperr.ErrReplicationDecode)
	}
	if len(d.Path) == 0 {
		return fmt.Errorf("replication: %s delta without path: %w", d.Op, apperr.ErrReplicationDecode)
	}
	for _, seg := range d.Path {
		if err := index.ValidateName(seg); err != nil {
			return err
		}
	}
	switch d.Op {
	case OpInsert, OpDelete:
	case OpRename:
		if err := index.ValidateName(d.Name); err != nil {
			return err
		}
	case OpMove, OpCopy:
		if !d.DestKind.Valid() || d.DestKind.Family() != d.Kind.Family() {
			return fmt.Errorf("replication: %s to %s: %w", d.Kind, d.DestKind, apperr.ErrReplicationDecode)
		}
		if len(d.Dest) == 0 && !d.DestKind.IsRoot() {
			return fmt.Errorf("replication: empty destination for %s: %w", d.DestKind, apperr.ErrReplicationDecode)
		}
		for _, seg := range d.Dest {
			if err := index.ValidateName(seg); err != nil {
				return err
			}
		}
	case OpReorder:
		if d.SortOrder == nil {
			return fmt.Errorf("replication: reorder without sort order: %w", apperr.ErrReplicationDecode)
		}
	default:
		return fmt.Errorf("replication: unknown op %d: %w", d.Op, apperr.ErrReplicationDecode)
	}
	return nil
}
