package replication

import (
	"fmt"

	"github.com/starford/arbor/internal/apperr"
	"github.com/starford/arbor/internal/index"
)

// Apply replays d through e, running the same engine call the originating
// replica ran. It never broadcasts.
func Apply(e *index.Engine, d Delta) error {
	if err := d.Validate(); err != nil {
		return err
	}
	switch d.Op {
	case OpInsert:
		_, err := e.Insert(d.Path, d.Kind, d.Record, d.ParentRecord, d.SortOrder)
		return err
	case OpDelete:
		_, err := e.Delete(d.Path, d.Kind, d.Record)
		return err
	case OpRename:
		return e.Rename(d.Path, d.Kind, d.Record, d.Name)
	case OpMove, OpCopy:
		_, err := e.MoveOrCopyAt(d.Path, d.Kind, d.Record, d.Dest, d.DestKind, d.Op == OpMove, d.SortOrder)
		return err
	case OpReorder:
		return e.Reorder(d.Path, d.Kind, d.Record, *d.SortOrder)
	}
	return fmt.Errorf("replication: apply %s: %w", d.Op, apperr.ErrReplicationDecode)
}

// ApplyLine decodes line and replays it.
func ApplyLine(e *index.Engine, line string) (Delta, error) {
	d, err := Decode(line)
	if err != nil {
		return Delta{}, err
	}
	return d, Apply(e, d)
}
