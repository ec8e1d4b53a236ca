package index

import (
	"cmp"
	"slices"
	"strings"
)

// rank groups siblings before names are compared. Lower ranks sort first.
func rank(parent, n *Node) int {
	switch {
	case n.kind.IsNote():
		return 2
	case parent != nil && parent.kind.IsContainer() && n.kind.IsOrdered():
		return 1
	}
	return 0
}

// compareSiblings is the total order over the children of parent.
//
// Inside collection containers nested collections come first by name, then
// quotes, clips and snapshots by sort order, then notes. Everywhere else notes
// trail and the rest sort case-insensitively by name.
func compareSiblings(parent, a, b *Node) int {
	ra, rb := rank(parent, a), rank(parent, b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	if ra == 1 {
		if c := cmp.Compare(a.sortOrder, b.sortOrder); c != 0 {
			return c
		}
		// Search mirrors order purely by sort order; equal orders keep
		// their current relative position.
		if parent.kind == SearchCollection {
			return 0
		}
	}
	if c := cmp.Compare(strings.ToLower(a.name), strings.ToLower(b.name)); c != 0 {
		return c
	}
	if c := cmp.Compare(a.name, b.name); c != 0 {
		return c
	}
	if c := cmp.Compare(a.kind, b.kind); c != 0 {
		return c
	}
	return cmp.Compare(a.record, b.record)
}

// resort re-applies the sibling order to the full child set of parent.
func resort(parent *Node) {
	slices.SortStableFunc(parent.children, func(a, b *Node) int {
		return compareSiblings(parent, a, b)
	})
}

// insertionIndex returns the position at which n keeps parent's children
// sorted. Appending an ordered item past the current tail is the common case
// when a collection is being filled, so the tail is checked before searching.
func insertionIndex(parent, n *Node) int {
	kids := parent.children
	if len(kids) == 0 {
		return 0
	}
	if rank(parent, n) == 1 {
		last := -1
		for i := len(kids) - 1; i >= 0; i-- {
			if rank(parent, kids[i]) <= 1 {
				last = i
				break
			}
		}
		if last >= 0 && compareSiblings(parent, kids[last], n) <= 0 {
			return last + 1
		}
	}
	i, _ := slices.BinarySearchFunc(kids, n, func(e, t *Node) int {
		if c := compareSiblings(parent, e, t); c != 0 {
			return c
		}
		// Equal keys land after existing siblings, matching a stable sort.
		return -1
	})
	return i
}
