package seed

import (
	"fmt"
	"os"
	"strings"

	"github.com/starford/arbor/internal/index"
)

// Catalog is the part of the catalog a fixture writes to.
type Catalog interface {
	NextRecord() (int, error)
	PutRecord(e index.Entry) error
	AddKeyword(group, keyword string) error
	AddKeywordExample(group, keyword string, record int, name string) error
}

// Stats summarizes an Apply.
type Stats struct {
	Records  int
	Keywords int
	Examples int
}

// LoadFile parses the fixture at path and writes it to db.
func LoadFile(db Catalog, path string) (Stats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Stats{}, fmt.Errorf("seed: read %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return Stats{}, err
	}
	return Apply(db, f)
}

// Apply writes every record and keyword of f. Records without a number are
// allocated from the catalog; ordered items without a sort order take their
// position among their ordered siblings.
func Apply(db Catalog, f *Fixture) (Stats, error) {
	next, err := db.NextRecord()
	if err != nil {
		return Stats{}, err
	}
	// Allocated records start above every explicit one so they never
	// overwrite a record the fixture names.
	var walk func([]Node)
	walk = func(nodes []Node) {
		for _, n := range nodes {
			if n.Record >= next {
				next = n.Record + 1
			}
			walk(n.Children)
		}
	}
	walk(f.Libraries)
	walk(f.Collections)

	w := &writer{db: db, next: next}
	for _, n := range f.Libraries {
		if err := w.put(n, index.Library, 0, 0); err != nil {
			return w.st, err
		}
	}
	for _, n := range f.Collections {
		if err := w.put(n, index.Collection, 0, 0); err != nil {
			return w.st, err
		}
	}
	st := w.st
	for _, g := range f.Keywords {
		for _, kw := range g.Keywords {
			if err := db.AddKeyword(g.Group, kw); err != nil {
				return st, err
			}
			st.Keywords++
		}
	}
	return st, nil
}

type writer struct {
	db   Catalog
	next int
	st   Stats
}

func (w *writer) put(n Node, def index.Kind, parent, pos int) error {
	kind, err := n.kind(def)
	if err != nil {
		return err
	}
	record := n.Record
	if record == 0 {
		record = w.next
		w.next++
	}
	e := index.Entry{
		Kind:         kind,
		Name:         n.Name,
		Record:       record,
		ParentRecord: parent,
		SortOrder:    n.SortOrder,
	}
	if kind.IsOrdered() && e.SortOrder == nil {
		e.SortOrder = &pos
	}
	if err := w.db.PutRecord(e); err != nil {
		return err
	}
	w.st.Records++

	for _, ref := range n.Keywords {
		group, keyword, _ := splitKeyword(ref)
		if err := w.db.AddKeywordExample(group, keyword, record, n.Name); err != nil {
			return err
		}
		w.st.Examples++
	}

	ordered := 0
	for _, c := range n.Children {
		ck, err := c.kind(index.KindInvalid)
		if err != nil {
			return err
		}
		if err := w.put(c, index.KindInvalid, record, ordered); err != nil {
			return err
		}
		if ck.IsOrdered() {
			ordered++
		}
	}
	return nil
}

// splitKeyword parses a "Group/Keyword" reference.
func splitKeyword(ref string) (group, keyword string, err error) {
	group, keyword, ok := strings.Cut(ref, "/")
	group, keyword = strings.TrimSpace(group), strings.TrimSpace(keyword)
	if !ok || group == "" || keyword == "" {
		return "", "", fmt.Errorf("keyword %q is not Group/Keyword", ref)
	}
	if err := index.ValidateName(group); err != nil {
		return "", "", err
	}
	if err := index.ValidateName(keyword); err != nil {
		return "", "", err
	}
	return group, keyword, nil
}
