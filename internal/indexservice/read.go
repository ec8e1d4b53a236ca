package indexservice

import (
	"context"
	"fmt"

	"github.com/starford/arbor/internal/apperr"
	"github.com/starford/arbor/internal/index"
)

// NodeInfo is a resolved node with its location.
type NodeInfo struct {
	Family string     `json:"family"`
	Path   index.Path `json:"path"`
	index.View
}

// Stats summarizes the forest.
type Stats struct {
	Replica string         `json:"replica"`
	Nodes   map[string]int `json:"nodes"`
}

// Resolve returns the node at path without its children.
func (s *Service) Resolve(ctx context.Context, path index.Path, kind index.Kind, record int) (NodeInfo, error) {
	var (
		info NodeInfo
		err  error
	)
	if doErr := s.do(ctx, func() {
		var n *index.Node
		if n, err = s.forest.Resolve(path, kind, record); err != nil {
			return
		}
		info = NodeInfo{
			Family: kind.Family().String(),
			Path:   s.forest.PathOf(n),
			View:   index.ViewOf(n, 0),
		}
	}); doErr != nil {
		return NodeInfo{}, doErr
	}
	return info, err
}

// Children lists the direct children of the node at path. An empty path
// lists the family root.
func (s *Service) Children(ctx context.Context, fam index.Family, path index.Path, kind index.Kind, record int) ([]index.View, error) {
	var (
		out []index.View
		err error
	)
	if doErr := s.do(ctx, func() {
		var kids []*index.Node
		if kids, err = s.forest.Children(fam, path, kind, record); err != nil {
			return
		}
		out = make([]index.View, len(kids))
		for i, c := range kids {
			out[i] = index.ViewOf(c, 0)
		}
	}); doErr != nil {
		return nil, doErr
	}
	return out, err
}

// Tree snapshots a family tree down to depth levels below the root; a
// negative depth copies the whole tree.
func (s *Service) Tree(ctx context.Context, fam index.Family, depth int) (index.View, error) {
	root := s.forest.Root(fam)
	if root == nil {
		return index.View{}, fmt.Errorf("indexservice: family %s: %w", fam, apperr.ErrPathNotFound)
	}
	var v index.View
	if err := s.do(ctx, func() { v = index.ViewOf(root, depth) }); err != nil {
		return index.View{}, err
	}
	return v, nil
}

// Stats counts the nodes of each family.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Replica: s.replica, Nodes: make(map[string]int, len(index.Families))}
	if err := s.do(ctx, func() {
		for _, fam := range index.Families {
			st.Nodes[fam.String()] = s.forest.Len(fam)
		}
	}); err != nil {
		return Stats{}, err
	}
	return st, nil
}
