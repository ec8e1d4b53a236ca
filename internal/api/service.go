package api

import (
	"context"

	"github.com/starford/arbor/internal/index"
	"github.com/starford/arbor/internal/indexservice"
	"github.com/starford/arbor/internal/replication"
)

// Index is the replica the API serves.
type Index interface {
	ReplicaID() string
	Resolve(ctx context.Context, path index.Path, kind index.Kind, record int) (indexservice.NodeInfo, error)
	Children(ctx context.Context, fam index.Family, path index.Path, kind index.Kind, record int) ([]index.View, error)
	Tree(ctx context.Context, fam index.Family, depth int) (index.View, error)
	Stats(ctx context.Context) (indexservice.Stats, error)
	Mutate(ctx context.Context, d replication.Delta) (indexservice.Result, error)
	Submit(ctx context.Context, m replication.Message) error
}

var _ Index = (*indexservice.Service)(nil)
