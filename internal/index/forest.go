// Package index implements the hierarchical catalog index: four in-memory
// trees mirroring the catalog, addressed by display-name path and kept in a
// deterministic sibling order.
//
// A Forest has a single owner. Nothing in this package locks; callers must
// serialize every call (see indexservice for the owner loop).
package index

import (
	"slices"
	"strings"
)

// Separator is the wire delimiter of delta messages. It is never allowed in
// a display name.
const Separator = ">|<"

// Path is the display-name sequence from a family root (exclusive) to a node.
type Path []string

// String renders p with "/" for logs and error messages.
func (p Path) String() string { return strings.Join(p, "/") }

// Parent returns p without its last segment.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return nil
	}
	return p[:len(p)-1]
}

// Last returns the final segment, or "".
func (p Path) Last() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// Child returns a new path with name appended.
func (p Path) Child(name string) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, name)
}

// Forest owns the four family roots.
type Forest struct {
	roots map[Family]*Node
}

// NewForest returns a forest with four empty family roots.
func NewForest() *Forest {
	f := &Forest{roots: make(map[Family]*Node, len(Families))}
	for _, fam := range Families {
		f.roots[fam] = &Node{name: fam.String(), kind: fam.Root()}
	}
	return f
}

// Root returns the root node of a family, nil for FamilyInvalid.
func (f *Forest) Root(fam Family) *Node { return f.roots[fam] }

// PathOf returns the path of n relative to its family root.
func (f *Forest) PathOf(n *Node) Path {
	var segs []string
	for p := n; p != nil && p.parent != nil; p = p.parent {
		segs = append(segs, p.name)
	}
	slices.Reverse(segs)
	return Path(segs)
}

// Len returns the number of non-root nodes in the family tree.
func (f *Forest) Len(fam Family) int {
	root := f.roots[fam]
	if root == nil {
		return 0
	}
	count := -1
	walk(root, func(*Node) { count++ })
	return count
}

// Reset drops every node of a family tree.
func (f *Forest) Reset(fam Family) {
	if root := f.roots[fam]; root != nil {
		for _, c := range root.children {
			c.parent = nil
		}
		root.children = nil
	}
}

// View is a detached, read-only copy of a subtree for presentation layers.
type View struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Record    int    `json:"record,omitempty"`
	Parent    int    `json:"parent_record,omitempty"`
	SortOrder *int   `json:"sort_order,omitempty"`
	Source    int    `json:"source_record,omitempty"`
	Children  []View `json:"children,omitempty"`
}

// ViewOf copies n's subtree into a View. depth < 0 means unlimited; 0 means
// the node alone.
func ViewOf(n *Node, depth int) View {
	v := View{
		Name:   n.name,
		Kind:   n.kind.String(),
		Record: n.record,
		Parent: n.parentRecord,
		Source: n.sourceRecord,
	}
	if n.hasSortOrder {
		so := n.sortOrder
		v.SortOrder = &so
	}
	if depth == 0 {
		return v
	}
	for _, c := range n.children {
		v.Children = append(v.Children, ViewOf(c, depth-1))
	}
	return v
}
