package indexservice

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/starford/arbor/internal/apperr"
	"github.com/starford/arbor/internal/index"
	"github.com/starford/arbor/internal/metrics"
	"github.com/starford/arbor/internal/replication"
)

// Result is the outcome of a local mutation.
type Result struct {
	// Line is the encoded delta that was broadcast.
	Line    string              `json:"delta"`
	Node    *index.View         `json:"node,omitempty"`
	Removed *index.DeleteReport `json:"removed,omitempty"`
}

// Insert creates a node. A zero record on a library or collection kind is
// allocated from the catalog; a zero parentRecord is taken from the parent
// node.
func (s *Service) Insert(ctx context.Context, path index.Path, kind index.Kind, record, parentRecord int, sortOrder *int) (Result, error) {
	return s.Mutate(ctx, replication.Insert(path, kind, record, parentRecord, sortOrder))
}

// Delete removes a node with its subtree and mirrors.
func (s *Service) Delete(ctx context.Context, path index.Path, kind index.Kind, record int) (Result, error) {
	return s.Mutate(ctx, replication.Delete(path, kind, record))
}

// Rename changes a node's display name.
func (s *Service) Rename(ctx context.Context, path index.Path, kind index.Kind, record int, newName string) (Result, error) {
	return s.Mutate(ctx, replication.Rename(path, kind, record, newName))
}

// Move re-parents the subtree at src under dst.
func (s *Service) Move(ctx context.Context, src index.Path, srcKind index.Kind, dst index.Path, dstKind index.Kind) (Result, error) {
	return s.Mutate(ctx, replication.MoveOrCopy(src, srcKind, dst, dstKind, true))
}

// Copy duplicates the subtree at src under dst.
func (s *Service) Copy(ctx context.Context, src index.Path, srcKind index.Kind, dst index.Path, dstKind index.Kind) (Result, error) {
	return s.Mutate(ctx, replication.MoveOrCopy(src, srcKind, dst, dstKind, false))
}

// Reorder changes the sort order of an ordered item.
func (s *Service) Reorder(ctx context.Context, path index.Path, kind index.Kind, record, sortOrder int) (Result, error) {
	return s.Mutate(ctx, replication.Reorder(path, kind, record, sortOrder))
}

// Mutate runs a local mutation on the owner goroutine: it locks the records
// involved, applies d to the forest, persists it to the catalog, broadcasts
// the resulting delta and releases the locks. Nothing is broadcast when the
// forest rejects the mutation.
func (s *Service) Mutate(ctx context.Context, d replication.Delta) (Result, error) {
	if err := d.Validate(); err != nil {
		return Result{}, err
	}
	start := time.Now()
	var (
		res Result
		err error
	)
	if doErr := s.do(ctx, func() { res, err = s.mutate(ctx, d) }); doErr != nil {
		return Result{}, doErr
	}
	metrics.Mutations.WithLabelValues(d.Op.String(), metrics.Result(err)).Inc()
	metrics.MutationDuration.WithLabelValues(d.Op.String()).Observe(time.Since(start).Seconds())
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

func (s *Service) mutate(ctx context.Context, d replication.Delta) (Result, error) {
	defer s.unlock()

	var (
		res Result
		err error
	)
	switch d.Op {
	case replication.OpInsert:
		res, d, err = s.insert(d)
	case replication.OpDelete:
		res, d, err = s.delete(d)
	case replication.OpRename:
		res, d, err = s.rename(d)
	case replication.OpMove, replication.OpCopy:
		res, d, err = s.moveOrCopy(d)
	case replication.OpReorder:
		res, d, err = s.reorder(d)
	default:
		err = fmt.Errorf("indexservice: unsupported op %s", d.Op)
	}
	if err != nil {
		return Result{}, err
	}

	line, err := replication.Encode(d)
	if err != nil {
		// The forest already changed; the delta was validated up front, so
		// this only happens if an engine-assigned value cannot be encoded.
		s.logger.Error("delta encode failed",
			slog.String("op", d.Op.String()),
			slog.String("path", d.Path.String()),
			slog.String("error", err.Error()),
		)
		return res, err
	}
	res.Line = line
	s.refreshGauges()
	s.broadcast(ctx, d, line)
	return res, nil
}

// lock takes the catalog lock of every non-zero record for this replica.
// The locks are held until unlock, which mutate defers.
func (s *Service) lock(records ...int) error {
	if s.store == nil {
		return nil
	}
	var want []int
	for _, r := range records {
		if r != 0 && !slices.Contains(want, r) {
			want = append(want, r)
		}
	}
	if len(want) == 0 {
		return nil
	}
	if err := s.store.AcquireLocks(s.replica, want...); err != nil {
		return err
	}
	s.held = want
	return nil
}

func (s *Service) unlock() {
	if len(s.held) == 0 {
		return
	}
	if err := s.store.ReleaseLocks(s.replica, s.held...); err != nil {
		s.logger.Error("release locks failed",
			slog.Any("records", s.held),
			slog.String("error", err.Error()),
		)
	}
	s.held = nil
}

func (s *Service) insert(d replication.Delta) (Result, replication.Delta, error) {
	if err := s.engine.CheckInsert(d.Path, d.Kind, d.Record); err != nil {
		return Result{}, d, err
	}
	parent, err := s.forest.ResolveParent(d.Path, d.Kind)
	if err != nil {
		return Result{}, d, err
	}
	if d.ParentRecord == 0 {
		d.ParentRecord = parent.Record()
	}
	if d.Kind == index.KeywordExample {
		if err := s.checkExampleRecord(d.Record); err != nil {
			return Result{}, d, err
		}
	}
	if d.Record == 0 && s.store != nil && d.Kind.OwnsRecord() {
		if d.Record, err = s.store.NextRecord(); err != nil {
			return Result{}, d, err
		}
	}
	// The new record is locked too, so a replica that allocated the same
	// number concurrently fails with ErrRecordLocked.
	if err := s.lock(d.ParentRecord, d.Record); err != nil {
		return Result{}, d, err
	}

	n, err := s.engine.Insert(d.Path, d.Kind, d.Record, d.ParentRecord, d.SortOrder)
	if err != nil {
		return Result{}, d, err
	}
	if so, ok := n.SortOrder(); ok {
		d.SortOrder = &so
	}
	s.persistInsert(d, n)

	v := index.ViewOf(n, 0)
	return Result{Node: &v}, d, nil
}

// checkExampleRecord makes sure a keyword example mirrors a quote, clip or
// snapshot the catalog knows.
func (s *Service) checkExampleRecord(record int) error {
	if s.store == nil {
		return nil
	}
	e, ok, err := s.store.Get(record)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("indexservice: keyword example of record %d: %w", record, apperr.ErrPathNotFound)
	}
	if e.Kind.Family() != index.FamilyCollection || !e.Kind.IsOrdered() {
		return fmt.Errorf("indexservice: keyword example of %s %d: %w", e.Kind, record, apperr.ErrKindMismatch)
	}
	return nil
}

func (s *Service) delete(d replication.Delta) (Result, replication.Delta, error) {
	plan, err := s.engine.PlanDelete(d.Path, d.Kind, d.Record)
	if err != nil {
		return Result{}, d, err
	}
	d.Record = plan.Report.Subtree[0].Record
	d.Path = plan.Report.Subtree[0].Path
	if err := s.lock(plan.Report.Records()...); err != nil {
		return Result{}, d, err
	}

	s.engine.ApplyDelete(plan)
	report := plan.Report
	s.persistDelete(d, report)
	return Result{Removed: &report}, d, nil
}

func (s *Service) rename(d replication.Delta) (Result, replication.Delta, error) {
	n, err := s.forest.Resolve(d.Path, d.Kind, d.Record)
	if err != nil {
		return Result{}, d, err
	}
	d.Record = n.Record()
	d.Path = s.forest.PathOf(n)
	if err := s.lock(n.Record()); err != nil {
		return Result{}, d, err
	}

	if err := s.engine.Rename(d.Path, d.Kind, d.Record, d.Name); err != nil {
		return Result{}, d, err
	}
	s.persistRename(d)

	v := index.ViewOf(n, 0)
	return Result{Node: &v}, d, nil
}

func (s *Service) reorder(d replication.Delta) (Result, replication.Delta, error) {
	n, err := s.forest.Resolve(d.Path, d.Kind, d.Record)
	if err != nil {
		return Result{}, d, err
	}
	d.Record = n.Record()
	d.Path = s.forest.PathOf(n)
	if err := s.lock(n.Record()); err != nil {
		return Result{}, d, err
	}

	if err := s.engine.Reorder(d.Path, d.Kind, d.Record, *d.SortOrder); err != nil {
		return Result{}, d, err
	}
	if s.store != nil && d.Kind.OwnsRecord() && d.Record != 0 {
		s.persist(d, func() error { return s.store.SetSortOrder(d.Record, *d.SortOrder) })
	}

	v := index.ViewOf(n, 0)
	return Result{Node: &v}, d, nil
}

func (s *Service) moveOrCopy(d replication.Delta) (Result, replication.Delta, error) {
	src, err := s.forest.Resolve(d.Path, d.Kind, d.Record)
	if err != nil {
		return Result{}, d, err
	}
	dst := s.forest.Root(d.DestKind.Family())
	if len(d.Dest) > 0 || !d.DestKind.IsRoot() {
		if dst, err = s.forest.Resolve(d.Dest, d.DestKind, index.AnyRecord); err != nil {
			return Result{}, d, err
		}
	}
	d.Record = src.Record()
	d.Path = s.forest.PathOf(src)
	d.Dest = s.forest.PathOf(dst)
	if err := s.lock(src.Record(), dst.Record()); err != nil {
		return Result{}, d, err
	}

	from := src.Parent()
	n, err := s.engine.MoveOrCopyAt(d.Path, d.Kind, d.Record, d.Dest, d.DestKind, d.Op == replication.OpMove, d.SortOrder)
	if err != nil {
		return Result{}, d, err
	}
	if so, ok := n.SortOrder(); ok && n.Kind().IsOrdered() {
		d.SortOrder = &so
	}
	if n.Parent() != from || d.Op == replication.OpCopy {
		s.persistMoveOrCopy(d, n)
	}

	v := index.ViewOf(n, -1)
	return Result{Node: &v}, d, nil
}

func (s *Service) broadcast(ctx context.Context, d replication.Delta, line string) {
	if s.pub != nil {
		m := replication.NewMessage(s.replica, line)
		s.dedup.Seen(m.ID)
		if err := s.pub.Publish(context.WithoutCancel(ctx), m); err != nil {
			s.logger.Warn("delta broadcast incomplete",
				slog.String("id", m.ID),
				slog.String("op", d.Op.String()),
				slog.String("error", err.Error()),
			)
		}
	}
	s.notify(Change{
		Op:     d.Op.String(),
		Family: d.Family().String(),
		Path:   d.Path,
		Line:   line,
		Origin: s.replica,
		Local:  true,
	})
}

func (s *Service) refreshGauges() {
	for _, fam := range index.Families {
		s.updateGauge(fam)
	}
}
