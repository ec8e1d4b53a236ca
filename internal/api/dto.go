package api

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/arbor/internal/index"
	"github.com/starford/arbor/internal/indexservice"
	"github.com/starford/arbor/internal/replication"
)

// mutationRequest is a request body that turns into one delta.
type mutationRequest interface {
	validation.Validatable
	Delta() replication.Delta
}

var kindRule = validation.By(func(v any) error {
	s, _ := v.(string)
	if s == "" {
		return nil
	}
	if _, err := index.ParseKind(s); err != nil {
		return errors.New("unknown kind")
	}
	return nil
})

// parseKind is only called after validation.
func parseKind(s string) index.Kind {
	k, _ := index.ParseKind(s)
	return k
}

// InsertRequest is the request body for inserting a node.
type InsertRequest struct {
	Path         []string `json:"path" example:"Interviews,Ann" validate:"required"`
	Kind         string   `json:"kind" example:"episode" validate:"required"`
	Record       int      `json:"record,omitempty" example:"12"`
	ParentRecord int      `json:"parent_record,omitempty" example:"3"`
	SortOrder    *int     `json:"sort_order,omitempty" example:"0"`
}

// Validate validates the request.
func (r *InsertRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Path, validation.Required, validation.Each(validation.Required)),
		validation.Field(&r.Kind, validation.Required, kindRule),
		validation.Field(&r.Record, validation.Min(0)),
		validation.Field(&r.ParentRecord, validation.Min(0)),
		validation.Field(&r.SortOrder, validation.Min(0)),
	)
}

// Delta returns the insert delta.
func (r *InsertRequest) Delta() replication.Delta {
	return replication.Insert(r.Path, parseKind(r.Kind), r.Record, r.ParentRecord, r.SortOrder)
}

// NodeRequest addresses one node. It is the body for deletes.
type NodeRequest struct {
	Path   []string `json:"path" example:"Interviews,Ann" validate:"required"`
	Kind   string   `json:"kind" example:"episode" validate:"required"`
	Record int      `json:"record,omitempty" example:"12"`
}

// Validate validates the request.
func (r *NodeRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Path, validation.Required, validation.Each(validation.Required)),
		validation.Field(&r.Kind, validation.Required, kindRule),
		validation.Field(&r.Record, validation.Min(0)),
	)
}

// Delta returns the delete delta.
func (r *NodeRequest) Delta() replication.Delta {
	return replication.Delete(r.Path, parseKind(r.Kind), r.Record)
}

// RenameRequest is the request body for renaming a node.
type RenameRequest struct {
	NodeRequest
	NewName string `json:"new_name" example:"Ann Smith" validate:"required"`
}

// Validate validates the request.
func (r *RenameRequest) Validate() error {
	if err := r.NodeRequest.Validate(); err != nil {
		return err
	}
	return validation.ValidateStruct(r,
		validation.Field(&r.NewName, validation.Required),
	)
}

// Delta returns the rename delta.
func (r *RenameRequest) Delta() replication.Delta {
	return replication.Rename(r.Path, parseKind(r.Kind), r.Record, r.NewName)
}

// ReorderRequest is the request body for changing an item's sort order.
type ReorderRequest struct {
	NodeRequest
	SortOrder *int `json:"sort_order" example:"2" validate:"required"`
}

// Validate validates the request.
func (r *ReorderRequest) Validate() error {
	if err := r.NodeRequest.Validate(); err != nil {
		return err
	}
	return validation.ValidateStruct(r,
		validation.Field(&r.SortOrder, validation.NotNil, validation.Min(0)),
	)
}

// Delta returns the reorder delta.
func (r *ReorderRequest) Delta() replication.Delta {
	return replication.Reorder(r.Path, parseKind(r.Kind), r.Record, *r.SortOrder)
}

// MoveRequest is the request body for moving a subtree. An empty dest with
// a root dest_kind targets the family root.
type MoveRequest struct {
	Source     []string `json:"source" example:"Clips,K1" validate:"required"`
	SourceKind string   `json:"source_kind" example:"clip" validate:"required"`

	// SourceRecord picks among same-named keyword examples.
	SourceRecord int      `json:"source_record,omitempty" example:"12"`
	Dest         []string `json:"dest" example:"Best"`
	DestKind     string   `json:"dest_kind" example:"collection" validate:"required"`
}

// Validate validates the request.
func (r *MoveRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Source, validation.Required, validation.Each(validation.Required)),
		validation.Field(&r.SourceKind, validation.Required, kindRule),
		validation.Field(&r.SourceRecord, validation.Min(0)),
		validation.Field(&r.Dest, validation.Each(validation.Required)),
		validation.Field(&r.DestKind, validation.Required, kindRule),
	)
}

// Delta returns the move delta.
func (r *MoveRequest) Delta() replication.Delta {
	d := replication.MoveOrCopy(r.Source, parseKind(r.SourceKind), r.Dest, parseKind(r.DestKind), true)
	d.Record = r.SourceRecord
	return d
}

// CopyRequest is the request body for copying a subtree.
type CopyRequest struct {
	MoveRequest
}

// Delta returns the copy delta.
func (r *CopyRequest) Delta() replication.Delta {
	d := replication.MoveOrCopy(r.Source, parseKind(r.SourceKind), r.Dest, parseKind(r.DestKind), false)
	d.Record = r.SourceRecord
	return d
}

// MutationResponse is the outcome of a mutation (aliased from the domain layer).
type MutationResponse = indexservice.Result

// NodeResponse is a resolved node (aliased from the domain layer).
type NodeResponse = indexservice.NodeInfo

// ChildrenResponse wraps a child listing.
type ChildrenResponse struct {
	Family   string       `json:"family" example:"libraries" validate:"required"`
	Path     index.Path   `json:"path" validate:"required"`
	Children []index.View `json:"children" validate:"required"`
}

// DeltaAccepted is returned when a peer delta is queued for replay.
type DeltaAccepted struct {
	ID     string `json:"id" validate:"required"`
	Status string `json:"status" example:"queued" validate:"required"`
}

func validateMessage(m *replication.Message) error {
	return validation.ValidateStruct(m,
		validation.Field(&m.ID, validation.Required),
		validation.Field(&m.Origin, validation.Required),
		validation.Field(&m.Line, validation.Required),
	)
}
