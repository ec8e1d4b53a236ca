// Package seed loads YAML catalog fixtures into the catalog, so a replica
// can bootstrap a demo or test index without an external catalog server.
package seed

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/starford/arbor/internal/index"
)

// Fixture is a catalog described as nested trees.
//
//	libraries:
//	  - name: Interviews
//	    children:
//	      - {name: Ann, kind: episode}
//	collections:
//	  - name: Best
//	    children:
//	      - {name: K1, kind: clip, keywords: [Cast/Ann]}
//	keywords:
//	  - group: Places
//	    keywords: [Berlin]
type Fixture struct {
	Libraries   []Node  `yaml:"libraries"`
	Collections []Node  `yaml:"collections"`
	Keywords    []Group `yaml:"keywords"`
}

// Node is one catalog record with its children. Kind defaults to library
// or collection at the top level; below it the kind is required.
type Node struct {
	Name      string   `yaml:"name"`
	Kind      string   `yaml:"kind"`
	Record    int      `yaml:"record"`
	SortOrder *int     `yaml:"sort_order"`
	Keywords  []string `yaml:"keywords"`
	Children  []Node   `yaml:"children"`
}

// Group is a keyword group with keywords that have no examples yet.
type Group struct {
	Group    string   `yaml:"group"`
	Keywords []string `yaml:"keywords"`
}

// Parse decodes a fixture. Unknown fields are rejected.
func Parse(data []byte) (*Fixture, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f Fixture
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("seed: parse fixture: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("seed: invalid fixture: %w", err)
	}
	return &f, nil
}

// Validate checks names, kinds and parent/child legality.
func (f *Fixture) Validate() error {
	for _, n := range f.Libraries {
		if err := n.validate(index.LibraryRoot, index.Library); err != nil {
			return err
		}
	}
	for _, n := range f.Collections {
		if err := n.validate(index.CollectionRoot, index.Collection); err != nil {
			return err
		}
	}
	for _, g := range f.Keywords {
		if err := validation.ValidateStruct(&g,
			validation.Field(&g.Group, validation.Required, validation.By(nameRule)),
			validation.Field(&g.Keywords, validation.Each(validation.Required, validation.By(nameRule))),
		); err != nil {
			return fmt.Errorf("keyword group %q: %w", g.Group, err)
		}
	}
	return nil
}

func nameRule(v any) error {
	s, _ := v.(string)
	if s == "" {
		return nil
	}
	return index.ValidateName(s)
}

func keywordRule(v any) error {
	s, _ := v.(string)
	if _, _, err := splitKeyword(s); err != nil {
		return err
	}
	return nil
}

// kind returns the node's kind, falling back to def.
func (n *Node) kind(def index.Kind) (index.Kind, error) {
	if n.Kind == "" {
		return def, nil
	}
	return index.ParseKind(n.Kind)
}

func (n *Node) validate(parent, def index.Kind) error {
	if err := validation.ValidateStruct(n,
		validation.Field(&n.Name, validation.Required, validation.By(nameRule)),
		validation.Field(&n.Record, validation.Min(0)),
		validation.Field(&n.SortOrder, validation.Min(0)),
		validation.Field(&n.Keywords, validation.Each(validation.By(keywordRule))),
	); err != nil {
		return fmt.Errorf("%q: %w", n.Name, err)
	}
	k, err := n.kind(def)
	if err != nil {
		return fmt.Errorf("%q: %w", n.Name, err)
	}
	if k == index.KindInvalid {
		return fmt.Errorf("%q: kind is required", n.Name)
	}
	if !index.CanContain(parent, k) {
		return fmt.Errorf("%q: %s cannot hold %s", n.Name, parent, k)
	}
	if len(n.Keywords) > 0 && !k.IsOrdered() {
		return fmt.Errorf("%q: only quotes, clips and snapshots take keywords", n.Name)
	}
	for i := range n.Children {
		if err := n.Children[i].validate(k, index.KindInvalid); err != nil {
			return fmt.Errorf("%q: %w", n.Name, err)
		}
	}
	return nil
}
