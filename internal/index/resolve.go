package index

import (
	"fmt"
	"strings"

	"github.com/starford/arbor/internal/apperr"
)

// Resolve walks path from the root of terminal's family and returns the node
// it names. Each segment must match a child case-insensitively and have the
// kind the Kind Catalog expects at that position. When record is not
// AnyRecord the terminal node must also carry that record number.
func (f *Forest) Resolve(path Path, terminal Kind, record int) (*Node, error) {
	if !terminal.Valid() || terminal.IsRoot() {
		return nil, fmt.Errorf("index: resolve %s as %s: %w", path, terminal, apperr.ErrKindMismatch)
	}
	if len(path) == 0 {
		return nil, fmt.Errorf("index: resolve empty path: %w", apperr.ErrPathNotFound)
	}
	cur := f.roots[terminal.Family()]
	for pos, seg := range path {
		want := NextExpectedKind(cur.kind, pos, len(path), terminal)
		rec := AnyRecord
		if pos == len(path)-1 {
			rec = record
		}
		next := findChild(cur, seg, want, rec)
		if next == nil {
			return nil, fmt.Errorf("index: resolve %s as %s: segment %q: %w",
				path, terminal, seg, apperr.ErrPathNotFound)
		}
		cur = next
	}
	return cur, nil
}

// ResolveParent returns the node that would hold a terminal of kind terminal
// at path.
func (f *Forest) ResolveParent(path Path, terminal Kind) (*Node, error) {
	return f.resolveParent(path, terminal)
}

// resolveParent resolves every segment but the last, returning the node that
// would hold a terminal of kind terminal.
func (f *Forest) resolveParent(path Path, terminal Kind) (*Node, error) {
	if !terminal.Valid() || terminal.IsRoot() {
		return nil, fmt.Errorf("index: %s is not insertable: %w", terminal, apperr.ErrKindMismatch)
	}
	if len(path) == 0 {
		return nil, fmt.Errorf("index: empty path: %w", apperr.ErrPathNotFound)
	}
	cur := f.roots[terminal.Family()]
	for pos, seg := range path[:len(path)-1] {
		want := NextExpectedKind(cur.kind, pos, len(path), terminal)
		next := findChild(cur, seg, want, AnyRecord)
		if next == nil {
			return nil, fmt.Errorf("index: resolve parent of %s as %s: segment %q: %w",
				path, terminal, seg, apperr.ErrPathNotFound)
		}
		cur = next
	}
	if NextExpectedKind(cur.kind, len(path)-1, len(path), terminal) == KindInvalid {
		return nil, fmt.Errorf("index: %s cannot hold %s: %w", cur.kind, terminal, apperr.ErrKindMismatch)
	}
	return cur, nil
}

// findChild scans parent's children in store order.
func findChild(parent *Node, name string, kind Kind, record int) *Node {
	if kind == KindInvalid {
		return nil
	}
	for _, c := range parent.children {
		if c.kind != kind || !strings.EqualFold(c.name, name) {
			continue
		}
		if record != AnyRecord && c.record != record {
			continue
		}
		return c
	}
	return nil
}

// Children resolves path and returns its children. An empty path lists the
// root of fam.
func (f *Forest) Children(fam Family, path Path, kind Kind, record int) ([]*Node, error) {
	if len(path) == 0 {
		root := f.roots[fam]
		if root == nil {
			return nil, fmt.Errorf("index: family %s: %w", fam, apperr.ErrPathNotFound)
		}
		return root.Children(), nil
	}
	if kind.Family() != fam {
		return nil, fmt.Errorf("index: %s is not in %s: %w", kind, fam, apperr.ErrKindMismatch)
	}
	n, err := f.Resolve(path, kind, record)
	if err != nil {
		return nil, err
	}
	return n.Children(), nil
}
