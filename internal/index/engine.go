package index

import (
	"fmt"
	"strings"

	"github.com/starford/arbor/internal/apperr"
)

// KeywordRef names a keyword by group and keyword display name.
type KeywordRef struct {
	Group   string
	Keyword string
}

// OrderSource supplies the catalog's authoritative ordering of ordered items
// (quotes, clips, snapshots) inside a container record.
type OrderSource interface {
	// SortOrders returns record number -> sort order for every ordered item
	// held by the container record.
	SortOrders(containerRecord int) (map[int]int, error)
	// MaxSortOrder returns the largest sort order used inside the container,
	// and false when the container is empty.
	MaxSortOrder(containerRecord int) (int, bool, error)
}

// MirrorSource is the catalog's reverse index from a clip, quote or snapshot
// record to the keywords holding an example of it.
type MirrorSource interface {
	KeywordExamples(record int) ([]KeywordRef, error)
}

// Engine applies structural mutations to a Forest. It keeps no state of its
// own between calls.
type Engine struct {
	forest  *Forest
	orders  OrderSource
	mirrors MirrorSource
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithOrderSource lets Insert resynchronise stale sibling sort orders.
func WithOrderSource(src OrderSource) EngineOption {
	return func(e *Engine) { e.orders = src }
}

// WithMirrorSource makes Delete and Rename use the catalog's reverse keyword
// index instead of scanning the keyword tree.
func WithMirrorSource(src MirrorSource) EngineOption {
	return func(e *Engine) { e.mirrors = src }
}

// NewEngine returns an engine mutating f.
func NewEngine(f *Forest, opts ...EngineOption) *Engine {
	e := &Engine{forest: f}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Forest returns the forest the engine mutates.
func (e *Engine) Forest() *Forest { return e.forest }

// ValidateName rejects names that cannot be carried in a delta message.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("index: empty name: %w", apperr.ErrInvalidName)
	}
	if strings.Contains(name, Separator) || strings.ContainsAny(name, "\r\n") {
		return fmt.Errorf("index: name %q: %w", name, apperr.ErrInvalidName)
	}
	return nil
}

// duplicateRecord is the record used when checking for duplicates of kind.
// Keyword examples with the same name are distinct when they mirror
// different clips.
func duplicateRecord(kind Kind, record int) int {
	if kind == KeywordExample {
		return record
	}
	return AnyRecord
}

// Insert creates the node named by path. Every segment but the last must
// already resolve. The node lands at its sorted position among its siblings.
func (e *Engine) Insert(path Path, kind Kind, record, parentRecord int, sortOrder *int) (*Node, error) {
	parent, err := e.insertParent(path, kind, record)
	if err != nil {
		return nil, err
	}

	spec := NodeSpec{
		Name:         path.Last(),
		Kind:         kind,
		Record:       record,
		ParentRecord: parentRecord,
		SortOrder:    sortOrder,
	}
	if kind.IsOrdered() && sortOrder == nil {
		next, err := e.nextSortOrder(parent)
		if err != nil {
			return nil, err
		}
		spec.SortOrder = &next
	}
	n := newNode(spec)

	if kind.IsOrdered() && e.orders != nil && staleOrder(parent, n) {
		if err := e.ResyncSiblingOrder(parent); err != nil {
			return nil, err
		}
	}
	insertAt(parent, insertionIndex(parent, n), n)
	return n, nil
}

// CheckInsert reports the error Insert would return for path, kind and
// record, without changing the forest.
func (e *Engine) CheckInsert(path Path, kind Kind, record int) error {
	_, err := e.insertParent(path, kind, record)
	return err
}

func (e *Engine) insertParent(path Path, kind Kind, record int) (*Node, error) {
	if err := ValidateName(path.Last()); err != nil {
		return nil, err
	}
	parent, err := e.forest.resolveParent(path, kind)
	if err != nil {
		return nil, err
	}
	if kind == KeywordExample && record == AnyRecord {
		return nil, fmt.Errorf("index: keyword example %s without a record: %w", path, apperr.ErrKindMismatch)
	}
	if findChild(parent, path.Last(), kind, duplicateRecord(kind, record)) != nil {
		return nil, fmt.Errorf("index: insert %s as %s: %w", path, kind, apperr.ErrDuplicateNode)
	}
	return parent, nil
}

// staleOrder reports whether n's sort order collides with or precedes an
// existing ordered sibling, which means the catalog has renumbered the
// container since the cached orders were read.
func staleOrder(parent, n *Node) bool {
	for _, c := range parent.children {
		if c.kind.IsOrdered() && c.sortOrder >= n.sortOrder {
			return true
		}
	}
	return false
}

// ResyncSiblingOrder re-reads the authoritative sort order of parent's ordered
// children and re-sorts them. Children the catalog does not know keep their
// cached order.
func (e *Engine) ResyncSiblingOrder(parent *Node) error {
	if e.orders == nil {
		resort(parent)
		return nil
	}
	orders, err := e.orders.SortOrders(parent.record)
	if err != nil {
		return fmt.Errorf("index: resync order of %q: %w", parent.name, err)
	}
	for _, c := range parent.children {
		if !c.kind.IsOrdered() {
			continue
		}
		if so, ok := orders[c.record]; ok {
			c.sortOrder = so
			c.hasSortOrder = true
		}
	}
	resort(parent)
	return nil
}

// nextSortOrder returns one past the largest sort order in parent.
func (e *Engine) nextSortOrder(parent *Node) (int, error) {
	best, found := 0, false
	if e.orders != nil && parent.record != 0 {
		top, ok, err := e.orders.MaxSortOrder(parent.record)
		if err != nil {
			return 0, fmt.Errorf("index: max sort order of %q: %w", parent.name, err)
		}
		best, found = top, ok
	}
	for _, c := range parent.children {
		if c.kind.IsOrdered() && (!found || c.sortOrder > best) {
			best, found = c.sortOrder, true
		}
	}
	if !found {
		return 0, nil
	}
	return best + 1, nil
}

// Rename changes the display name of the node at path and re-sorts it among
// its siblings. Keyword-example and search mirrors of the same record follow.
// Renaming a node to its current name is a no-op.
func (e *Engine) Rename(path Path, kind Kind, record int, newName string) error {
	if err := ValidateName(newName); err != nil {
		return err
	}
	n, err := e.forest.Resolve(path, kind, record)
	if err != nil {
		return err
	}
	if n.name == newName {
		return nil
	}
	if dup := findChild(n.parent, newName, kind, duplicateRecord(kind, n.record)); dup != nil && dup != n {
		return fmt.Errorf("index: rename %s to %q: %w", path, newName, apperr.ErrDuplicateNode)
	}
	n.name = newName
	resort(n.parent)

	if n.record == 0 {
		return nil
	}
	mirrors, err := e.mirrorsOf(n.kind, n.record)
	if err != nil {
		return err
	}
	touched := make(map[*Node]struct{})
	for _, m := range mirrors {
		m.name = newName
		touched[m.parent] = struct{}{}
	}
	for p := range touched {
		resort(p)
	}
	return nil
}

// Reorder sets the sort order of an ordered item and re-sorts its siblings.
func (e *Engine) Reorder(path Path, kind Kind, record, sortOrder int) error {
	if !kind.IsOrdered() {
		return fmt.Errorf("index: reorder %s: %s is not ordered: %w", path, kind, apperr.ErrKindMismatch)
	}
	n, err := e.forest.Resolve(path, kind, record)
	if err != nil {
		return err
	}
	n.sortOrder = sortOrder
	n.hasSortOrder = true
	resort(n.parent)
	return nil
}

// MoveOrCopy duplicates the subtree at src under the node at dst, rewriting
// parent record numbers throughout the copy, and removes the source when
// deleteSource is set. An empty dst with a root dstKind targets the family
// root. Ordered items entering a different container go to its end.
//
// A library or collection copy does not own the records it was copied from:
// every copied node gets record 0 and keeps the original as its source
// record, so deleting or renaming the copy leaves the original's mirrors
// alone.
func (e *Engine) MoveOrCopy(src Path, srcKind Kind, dst Path, dstKind Kind, deleteSource bool) (*Node, error) {
	return e.MoveOrCopyAt(src, srcKind, AnyRecord, dst, dstKind, deleteSource, nil)
}

// MoveOrCopyAt is MoveOrCopy with the source's record, which tells apart
// same-named keyword examples, and an explicit sort order for an ordered item
// entering a container. Replays use it to land on the node and order the
// originating replica chose.
func (e *Engine) MoveOrCopyAt(src Path, srcKind Kind, srcRecord int, dst Path, dstKind Kind, deleteSource bool, sortOrder *int) (*Node, error) {
	source, err := e.forest.Resolve(src, srcKind, srcRecord)
	if err != nil {
		return nil, err
	}
	var dest *Node
	if len(dst) == 0 && dstKind.IsRoot() {
		dest = e.forest.Root(dstKind.Family())
	} else {
		dest, err = e.forest.Resolve(dst, dstKind, AnyRecord)
		if err != nil {
			return nil, err
		}
	}
	if !CanContain(dest.kind, source.kind) {
		return nil, fmt.Errorf("index: %s cannot hold %s: %w", dest.kind, source.kind, apperr.ErrKindMismatch)
	}
	if isAncestor(source, dest) {
		return nil, fmt.Errorf("index: %s into %s: %w", src, dst, apperr.ErrInvalidMove)
	}
	if deleteSource && source.parent == dest {
		return source, nil
	}
	if dup := findChild(dest, source.name, source.kind, duplicateRecord(source.kind, source.record)); dup != nil {
		return nil, fmt.Errorf("index: %s into %s: %w", src, dst, apperr.ErrDuplicateNode)
	}

	cp := clone(source)
	if !deleteSource && cp.kind.OwnsRecord() {
		disown(cp)
	}
	cp.parentRecord = dest.record
	reparent(cp)
	if cp.kind.IsOrdered() && dest.kind.IsContainer() {
		next := 0
		if sortOrder != nil {
			next = *sortOrder
		} else if next, err = e.nextSortOrder(dest); err != nil {
			return nil, err
		}
		cp.sortOrder = next
		cp.hasSortOrder = true
	}

	if deleteSource {
		Remove(source)
	}
	insertAt(dest, insertionIndex(dest, cp), cp)
	return cp, nil
}

// disown clears the records of a copied subtree. Each node remembers the
// record it was copied from.
func disown(n *Node) {
	if n.record != 0 {
		n.sourceRecord = n.record
		n.record = 0
	}
	for _, c := range n.children {
		c.parentRecord = 0
		disown(c)
	}
}

// reparent points every descendant's parent record at its new parent.
// Grouping nodes carry no record, so their children keep theirs.
func reparent(n *Node) {
	for _, c := range n.children {
		if n.record != 0 {
			c.parentRecord = n.record
		}
		reparent(c)
	}
}
