package index

import "slices"

// AnyRecord disables record-number disambiguation in Resolve and friends.
const AnyRecord = 0

// Node is one entry of the forest. Fields are only changed by the Engine;
// readers use the accessor methods and must re-resolve after a mutation.
type Node struct {
	name         string
	kind         Kind
	record       int
	parentRecord int
	sortOrder    int
	hasSortOrder bool
	sourceRecord int

	parent   *Node
	children []*Node
}

// NodeSpec carries the data needed to create a node.
type NodeSpec struct {
	Name         string
	Kind         Kind
	Record       int
	ParentRecord int
	// SortOrder is only meaningful for ordered kinds; nil means unset.
	SortOrder    *int
	SourceRecord int
}

func newNode(spec NodeSpec) *Node {
	n := &Node{
		name:         spec.Name,
		kind:         spec.Kind,
		record:       spec.Record,
		parentRecord: spec.ParentRecord,
		sourceRecord: spec.SourceRecord,
	}
	if spec.SortOrder != nil {
		n.sortOrder = *spec.SortOrder
		n.hasSortOrder = true
	}
	return n
}

// Name returns the display name.
func (n *Node) Name() string { return n.name }

// Kind returns the node kind.
func (n *Node) Kind() Kind { return n.kind }

// Record returns the catalog record number, 0 for grouping nodes.
func (n *Node) Record() int { return n.record }

// ParentRecord returns the catalog record number of the owning record.
func (n *Node) ParentRecord() int { return n.parentRecord }

// SourceRecord returns the record a copy or mirror was derived from.
func (n *Node) SourceRecord() int { return n.sourceRecord }

// SortOrder returns the cached sort order and whether one is set.
func (n *Node) SortOrder() (int, bool) { return n.sortOrder, n.hasSortOrder }

// Parent returns the parent node, nil for a family root.
func (n *Node) Parent() *Node { return n.parent }

// Children returns a copy of the children in store order.
func (n *Node) Children() []*Node { return slices.Clone(n.children) }

// Len returns the number of children.
func (n *Node) Len() int { return len(n.children) }

// Append attaches child as the last child of parent.
func Append(parent, child *Node) {
	detach(child)
	child.parent = parent
	parent.children = append(parent.children, child)
}

// InsertBefore attaches child immediately before the sibling before. A nil
// before appends.
func InsertBefore(parent, before, child *Node) {
	if before == nil {
		Append(parent, child)
		return
	}
	detach(child)
	i := slices.Index(parent.children, before)
	if i < 0 {
		i = len(parent.children)
	}
	insertAt(parent, i, child)
}

// Remove detaches n, together with its whole subtree, from its parent.
func Remove(n *Node) {
	detach(n)
}

func insertAt(parent *Node, i int, child *Node) {
	child.parent = parent
	parent.children = slices.Insert(parent.children, i, child)
}

func detach(n *Node) {
	p := n.parent
	if p == nil {
		return
	}
	if i := slices.Index(p.children, n); i >= 0 {
		p.children = slices.Delete(p.children, i, i+1)
	}
	n.parent = nil
}

// walk visits n and its descendants depth first, parents before children.
func walk(n *Node, fn func(*Node)) {
	fn(n)
	for _, c := range n.children {
		walk(c, fn)
	}
}

// isAncestor reports whether a is n or one of n's ancestors.
func isAncestor(a, n *Node) bool {
	for p := n; p != nil; p = p.parent {
		if p == a {
			return true
		}
	}
	return false
}

// clone deep-copies n's subtree. The copy is detached.
func clone(n *Node) *Node {
	c := &Node{
		name:         n.name,
		kind:         n.kind,
		record:       n.record,
		parentRecord: n.parentRecord,
		sortOrder:    n.sortOrder,
		hasSortOrder: n.hasSortOrder,
		sourceRecord: n.sourceRecord,
	}
	c.children = make([]*Node, 0, len(n.children))
	for _, child := range n.children {
		cc := clone(child)
		cc.parent = c
		c.children = append(c.children, cc)
	}
	return c
}
