package index

import (
	"fmt"
	"slices"
	"strings"
)

// Removed describes one node taken out of the forest by a delete.
type Removed struct {
	Family Family `json:"family"`
	Kind   Kind   `json:"kind"`
	Record int    `json:"record,omitempty"`
	Path   Path   `json:"path"`
}

// DeleteReport lists everything a delete removed, so the caller can drive
// side effects such as closing editors or dropping catalog rows.
type DeleteReport struct {
	// Subtree holds the target first, then its descendants parents-first.
	Subtree []Removed `json:"subtree"`
	// Mirrors holds keyword examples and search mirrors swept along.
	Mirrors []Removed `json:"mirrors,omitempty"`
}

// Records returns the distinct non-zero record numbers in the subtree.
func (r DeleteReport) Records() []int {
	var out []int
	for _, n := range r.Subtree {
		if n.Record != 0 && !slices.Contains(out, n.Record) {
			out = append(out, n.Record)
		}
	}
	return out
}

// DeletePlan is the computed, not yet applied, effect of a delete.
type DeletePlan struct {
	Report DeleteReport
	target *Node
	extra  []*Node
}

// PlanDelete resolves the target and computes what a delete would remove
// without changing the forest.
func (e *Engine) PlanDelete(path Path, kind Kind, record int) (*DeletePlan, error) {
	target, err := e.forest.Resolve(path, kind, record)
	if err != nil {
		return nil, err
	}
	plan := &DeletePlan{target: target}
	base := path.Parent()
	var visit func(n *Node, at Path)
	visit = func(n *Node, at Path) {
		p := at.Child(n.name)
		plan.Report.Subtree = append(plan.Report.Subtree, Removed{
			Family: n.kind.Family(), Kind: n.kind, Record: n.record, Path: p,
		})
		for _, c := range n.children {
			visit(c, p)
		}
	}
	visit(target, base)

	fam := kind.Family()
	if fam != FamilyLibrary && fam != FamilyCollection {
		return plan, nil
	}
	seen := make(map[*Node]struct{})
	var sweepErr error
	walk(target, func(n *Node) {
		if sweepErr != nil || n.record == 0 {
			return
		}
		mirrors, err := e.mirrorsOf(n.kind, n.record)
		if err != nil {
			sweepErr = err
			return
		}
		for _, m := range mirrors {
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			plan.extra = append(plan.extra, m)
			plan.Report.Mirrors = append(plan.Report.Mirrors, Removed{
				Family: m.kind.Family(), Kind: m.kind, Record: m.record, Path: e.forest.PathOf(m),
			})
		}
	})
	if sweepErr != nil {
		return nil, sweepErr
	}
	return plan, nil
}

// ApplyDelete removes the nodes of a plan computed against the current forest.
func (e *Engine) ApplyDelete(plan *DeletePlan) {
	for _, m := range plan.extra {
		Remove(m)
	}
	Remove(plan.target)
}

// Delete removes the node at path with its subtree. Deleting a library or
// collection node also removes the keyword examples and search mirrors of
// every record in the subtree.
func (e *Engine) Delete(path Path, kind Kind, record int) (DeleteReport, error) {
	plan, err := e.PlanDelete(path, kind, record)
	if err != nil {
		return DeleteReport{}, err
	}
	e.ApplyDelete(plan)
	return plan.Report, nil
}

// mirrorsOf returns the keyword examples (for quotes, clips and snapshots)
// and search-family mirrors that reference record.
func (e *Engine) mirrorsOf(kind Kind, record int) ([]*Node, error) {
	var out []*Node
	if kind.Family() == FamilyCollection && kind.IsOrdered() {
		examples, err := e.keywordExamples(record)
		if err != nil {
			return nil, err
		}
		out = append(out, examples...)
	}
	if sk := kind.SearchMirror(); sk != KindInvalid {
		walk(e.forest.Root(FamilySearch), func(n *Node) {
			if n.kind == sk && n.record == record {
				out = append(out, n)
			}
		})
	}
	return out, nil
}

func (e *Engine) keywordExamples(record int) ([]*Node, error) {
	var out []*Node
	if e.mirrors == nil {
		walk(e.forest.Root(FamilyKeyword), func(n *Node) {
			if n.kind == KeywordExample && n.record == record {
				out = append(out, n)
			}
		})
		return out, nil
	}
	refs, err := e.mirrors.KeywordExamples(record)
	if err != nil {
		return nil, fmt.Errorf("index: keyword examples of %d: %w", record, err)
	}
	root := e.forest.Root(FamilyKeyword)
	for _, ref := range refs {
		group := findChild(root, ref.Group, KeywordGroup, AnyRecord)
		if group == nil {
			continue
		}
		kw := findChild(group, ref.Keyword, Keyword, AnyRecord)
		if kw == nil {
			continue
		}
		for _, c := range kw.children {
			if c.kind == KeywordExample && c.record == record && !slices.Contains(out, c) {
				out = append(out, c)
			}
		}
	}
	return out, nil
}

// String renders a removed node for logs.
func (r Removed) String() string {
	return r.Family.String() + ":" + r.Kind.String() + ":" + strings.Join(r.Path, "/")
}
