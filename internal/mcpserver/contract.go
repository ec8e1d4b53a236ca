package mcpserver

import (
	"fmt"
	"strings"

	"github.com/starford/arbor/internal/index"
)

const contractIntro = `# Arbor Path Contract

The index is a forest of four trees: libraries, collections, keywords and
search. A node is addressed by the display names on the way down from its
family root, joined with "/" (the root itself is never named), plus the kind
of the last node. Names match case-insensitively.

## Rules

1. Every segment's kind is implied by its position; only the terminal kind is given.
2. Collections nest, so a collection path may have any depth.
3. Pass "record" only to pick between siblings sharing a name; 0 means any.
4. Library and collection nodes get a record from the catalog when inserted without one.
5. Quotes, clips and snapshots are ordered by sort_order inside a collection.
6. Deleting a clip, quote or snapshot also removes its keyword examples and search mirrors.
7. Names must not be empty or contain ">|<" or line breaks.

## Kinds

| kind | family | parents |
|---|---|---|
`

// KindContract renders the path rules and the legal parent of every kind.
func KindContract() string {
	var b strings.Builder
	b.WriteString(contractIntro)
	for k := index.Kind(1); k.Valid(); k++ {
		var parents []string
		for p := index.Kind(1); p.Valid(); p++ {
			if index.CanContain(p, k) {
				parents = append(parents, p.String())
			}
		}
		if len(parents) == 0 {
			parents = []string{"(root)"}
		}
		fmt.Fprintf(&b, "| %s | %s | %s |\n", k, k.Family(), strings.Join(parents, ", "))
	}
	return b.String()
}
