package indexservice

import (
	"log/slog"

	"github.com/starford/arbor/internal/index"
	"github.com/starford/arbor/internal/metrics"
	"github.com/starford/arbor/internal/replication"
)

// persist writes a mutation the forest already accepted. A failed write is
// logged and counted; the mutation stays applied and is still broadcast, and
// the next Load reconciles the forest with whatever the catalog holds.
func (s *Service) persist(d replication.Delta, fn func() error) {
	err := fn()
	metrics.CatalogWrites.WithLabelValues(d.Op.String(), metrics.Result(err)).Inc()
	if err != nil {
		s.logger.Error("catalog write failed",
			slog.String("op", d.Op.String()),
			slog.String("kind", d.Kind.String()),
			slog.String("path", d.Path.String()),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Service) persistInsert(d replication.Delta, n *index.Node) {
	if s.store == nil {
		return
	}
	switch {
	case d.Kind.OwnsRecord():
		if d.Record == 0 {
			return
		}
		s.persist(d, func() error {
			err := s.store.PutRecord(index.Entry{
				Kind:         d.Kind,
				Name:         n.Name(),
				Record:       d.Record,
				ParentRecord: d.ParentRecord,
				SortOrder:    d.SortOrder,
				SourceRecord: n.SourceRecord(),
			})
			if err != nil || !d.Kind.IsOrdered() {
				return err
			}
			// The catalog may have pushed later siblings down to make room.
			return s.engine.ResyncSiblingOrder(n.Parent())
		})
	case d.Kind == index.KeywordGroup:
		s.persist(d, func() error { return s.store.AddKeywordGroup(d.Path[0]) })
	case d.Kind == index.Keyword:
		s.persist(d, func() error { return s.store.AddKeyword(d.Path[0], d.Path[1]) })
	case d.Kind == index.KeywordExample:
		s.persist(d, func() error {
			return s.store.AddKeywordExample(d.Path[0], d.Path[1], d.Record, d.Path[2])
		})
	}
}

func (s *Service) persistDelete(d replication.Delta, report index.DeleteReport) {
	if s.store == nil {
		return
	}
	switch {
	case d.Kind.OwnsRecord():
		s.persist(d, func() error { return s.store.DeleteRecords(report.Records()) })
	case d.Kind == index.KeywordGroup:
		s.persist(d, func() error { return s.store.DeleteKeywordGroup(d.Path[0]) })
	case d.Kind == index.Keyword:
		s.persist(d, func() error { return s.store.DeleteKeyword(d.Path[0], d.Path[1]) })
	case d.Kind == index.KeywordExample:
		s.persist(d, func() error {
			return s.store.DeleteKeywordExample(d.Path[0], d.Path[1], d.Record, d.Path[2])
		})
	}
}

// persistRename writes renames of records and keyword taxonomy. A keyword
// example is named after its record, so renaming one is memory only.
func (s *Service) persistRename(d replication.Delta) {
	if s.store == nil {
		return
	}
	switch {
	case d.Kind.OwnsRecord():
		if d.Record != 0 {
			s.persist(d, func() error { return s.store.RenameRecord(d.Record, d.Name) })
		}
	case d.Kind == index.KeywordGroup:
		s.persist(d, func() error { return s.store.RenameKeywordGroup(d.Path[0], d.Name) })
	case d.Kind == index.Keyword:
		s.persist(d, func() error { return s.store.RenameKeyword(d.Path[0], d.Path[1], d.Name) })
	}
}

// persistMoveOrCopy writes a move, or a copy within the keyword taxonomy.
// Library and collection copies stay in memory: a record has one owner in
// the catalog.
func (s *Service) persistMoveOrCopy(d replication.Delta, n *index.Node) {
	if s.store == nil {
		return
	}
	move := d.Op == replication.OpMove
	switch {
	case d.Kind.OwnsRecord():
		if !move || n.Record() == 0 {
			return
		}
		var order *int
		if so, ok := n.SortOrder(); ok && n.Kind().IsOrdered() {
			order = &so
		}
		s.persist(d, func() error { return s.store.MoveRecord(n.Record(), n.ParentRecord(), order) })
	case d.Kind == index.Keyword:
		group := d.Dest[0]
		if move {
			s.persist(d, func() error { return s.store.MoveKeyword(d.Path[0], d.Path[1], group) })
			return
		}
		s.persist(d, func() error {
			if err := s.store.AddKeyword(group, n.Name()); err != nil {
				return err
			}
			for _, ex := range n.Children() {
				if err := s.store.AddKeywordExample(group, n.Name(), ex.Record(), ex.Name()); err != nil {
					return err
				}
			}
			return nil
		})
	case d.Kind == index.KeywordExample:
		s.persist(d, func() error {
			if move {
				if err := s.store.DeleteKeywordExample(d.Path[0], d.Path[1], n.Record(), n.Name()); err != nil {
					return err
				}
			}
			return s.store.AddKeywordExample(d.Dest[0], d.Dest[1], n.Record(), n.Name())
		})
	}
}
