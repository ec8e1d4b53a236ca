package index

import "fmt"

// Family identifies one of the four independently rooted trees.
type Family uint8

const (
	FamilyInvalid Family = iota
	FamilyLibrary
	FamilyCollection
	FamilyKeyword
	FamilySearch
)

// Families lists every valid family in root order.
var Families = []Family{FamilyLibrary, FamilyCollection, FamilyKeyword, FamilySearch}

var familyNames = map[Family]string{
	FamilyLibrary:    "libraries",
	FamilyCollection: "collections",
	FamilyKeyword:    "keywords",
	FamilySearch:     "search",
}

// String returns the untranslated identifier used on the wire.
func (f Family) String() string {
	if s, ok := familyNames[f]; ok {
		return s
	}
	return "invalid"
}

// ParseFamily is the inverse of Family.String.
func ParseFamily(s string) (Family, error) {
	for f, name := range familyNames {
		if name == s {
			return f, nil
		}
	}
	return FamilyInvalid, fmt.Errorf("index: unknown family %q", s)
}

// Root returns the kind of the family's root node.
func (f Family) Root() Kind {
	switch f {
	case FamilyLibrary:
		return LibraryRoot
	case FamilyCollection:
		return CollectionRoot
	case FamilyKeyword:
		return KeywordRoot
	case FamilySearch:
		return SearchRoot
	}
	return KindInvalid
}

// Kind is the closed set of node roles.
type Kind uint8

const (
	KindInvalid Kind = iota

	LibraryRoot
	Library
	LibraryNote
	Document
	DocumentNote
	Episode
	EpisodeNote
	Transcript
	TranscriptNote

	CollectionRoot
	Collection
	CollectionNote
	Quote
	QuoteNote
	Clip
	ClipNote
	Snapshot
	SnapshotNote

	KeywordRoot
	KeywordGroup
	Keyword
	KeywordExample

	SearchRoot
	SearchResults
	SearchLibrary
	SearchDocument
	SearchEpisode
	SearchTranscript
	SearchCollection
	SearchQuote
	SearchClip
	SearchSnapshot
	SearchKeywordGroup
	SearchKeyword

	kindCount
)

type kindInfo struct {
	code    string
	family  Family
	note    bool
	ordered bool
	// parents lists every kind this kind may be a direct child of.
	parents []Kind
}

var kinds = [kindCount]kindInfo{
	LibraryRoot:    {code: "library-root", family: FamilyLibrary},
	Library:        {code: "library", family: FamilyLibrary, parents: []Kind{LibraryRoot}},
	LibraryNote:    {code: "library-note", family: FamilyLibrary, note: true, parents: []Kind{Library}},
	Document:       {code: "document", family: FamilyLibrary, parents: []Kind{Library}},
	DocumentNote:   {code: "document-note", family: FamilyLibrary, note: true, parents: []Kind{Document}},
	Episode:        {code: "episode", family: FamilyLibrary, parents: []Kind{Library}},
	EpisodeNote:    {code: "episode-note", family: FamilyLibrary, note: true, parents: []Kind{Episode}},
	Transcript:     {code: "transcript", family: FamilyLibrary, parents: []Kind{Episode}},
	TranscriptNote: {code: "transcript-note", family: FamilyLibrary, note: true, parents: []Kind{Transcript}},

	CollectionRoot: {code: "collection-root", family: FamilyCollection},
	Collection:     {code: "collection", family: FamilyCollection, parents: []Kind{Collection, CollectionRoot}},
	CollectionNote: {code: "collection-note", family: FamilyCollection, note: true, parents: []Kind{Collection}},
	Quote:          {code: "quote", family: FamilyCollection, ordered: true, parents: []Kind{Collection}},
	QuoteNote:      {code: "quote-note", family: FamilyCollection, note: true, parents: []Kind{Quote}},
	Clip:           {code: "clip", family: FamilyCollection, ordered: true, parents: []Kind{Collection}},
	ClipNote:       {code: "clip-note", family: FamilyCollection, note: true, parents: []Kind{Clip}},
	Snapshot:       {code: "snapshot", family: FamilyCollection, ordered: true, parents: []Kind{Collection}},
	SnapshotNote:   {code: "snapshot-note", family: FamilyCollection, note: true, parents: []Kind{Snapshot}},

	KeywordRoot:    {code: "keyword-root", family: FamilyKeyword},
	KeywordGroup:   {code: "keyword-group", family: FamilyKeyword, parents: []Kind{KeywordRoot}},
	Keyword:        {code: "keyword", family: FamilyKeyword, parents: []Kind{KeywordGroup}},
	KeywordExample: {code: "keyword-example", family: FamilyKeyword, parents: []Kind{Keyword}},

	SearchRoot:         {code: "search-root", family: FamilySearch},
	SearchResults:      {code: "search-results", family: FamilySearch, parents: []Kind{SearchRoot}},
	SearchLibrary:      {code: "search-library", family: FamilySearch, parents: []Kind{SearchResults}},
	SearchDocument:     {code: "search-document", family: FamilySearch, parents: []Kind{SearchLibrary}},
	SearchEpisode:      {code: "search-episode", family: FamilySearch, parents: []Kind{SearchLibrary}},
	SearchTranscript:   {code: "search-transcript", family: FamilySearch, parents: []Kind{SearchEpisode}},
	SearchCollection:   {code: "search-collection", family: FamilySearch, parents: []Kind{SearchCollection, SearchResults}},
	SearchQuote:        {code: "search-quote", family: FamilySearch, ordered: true, parents: []Kind{SearchCollection}},
	SearchClip:         {code: "search-clip", family: FamilySearch, ordered: true, parents: []Kind{SearchCollection}},
	SearchSnapshot:     {code: "search-snapshot", family: FamilySearch, ordered: true, parents: []Kind{SearchCollection}},
	SearchKeywordGroup: {code: "search-keyword-group", family: FamilySearch, parents: []Kind{SearchResults}},
	SearchKeyword:      {code: "search-keyword", family: FamilySearch, parents: []Kind{SearchKeywordGroup}},
}

// String returns the stable wire code of the kind.
func (k Kind) String() string {
	if k.Valid() {
		return kinds[k].code
	}
	return "invalid"
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for k := Kind(1); k < kindCount; k++ {
		if kinds[k].code == s {
			return k, nil
		}
	}
	return KindInvalid, fmt.Errorf("index: unknown kind %q", s)
}

// Valid reports whether k is a member of the enumeration.
func (k Kind) Valid() bool { return k > KindInvalid && k < kindCount }

// Family returns the tree the kind lives in.
func (k Kind) Family() Family {
	if !k.Valid() {
		return FamilyInvalid
	}
	return kinds[k].family
}

// IsNote reports whether k is one of the note variants.
func (k Kind) IsNote() bool { return k.Valid() && kinds[k].note }

// IsOrdered reports whether siblings of this kind are ordered by sort order
// rather than by name (quotes, clips, snapshots and their search mirrors).
func (k Kind) IsOrdered() bool { return k.Valid() && kinds[k].ordered }

// IsRoot reports whether k is a family root kind.
func (k Kind) IsRoot() bool { return k.Valid() && len(kinds[k].parents) == 0 }

// OwnsRecord reports whether nodes of kind stand for a catalog record of
// their own. Keyword examples and search nodes only mirror one.
func (k Kind) OwnsRecord() bool {
	fam := k.Family()
	return (fam == FamilyLibrary || fam == FamilyCollection) && !k.IsRoot()
}

// IsContainer reports whether k holds a mixture of nested containers and
// ordered items (collections and their search mirrors).
func (k Kind) IsContainer() bool {
	return k == Collection || k == CollectionRoot || k == SearchCollection
}

// SearchMirror returns the search-family kind that mirrors k, or KindInvalid.
func (k Kind) SearchMirror() Kind {
	switch k {
	case Library:
		return SearchLibrary
	case Document:
		return SearchDocument
	case Episode:
		return SearchEpisode
	case Transcript:
		return SearchTranscript
	case Collection:
		return SearchCollection
	case Quote:
		return SearchQuote
	case Clip:
		return SearchClip
	case Snapshot:
		return SearchSnapshot
	case KeywordGroup:
		return SearchKeywordGroup
	case Keyword:
		return SearchKeyword
	}
	return KindInvalid
}

// CanContain reports whether child is a legal direct child of parent.
func CanContain(parent, child Kind) bool {
	if !parent.Valid() || !child.Valid() {
		return false
	}
	for _, p := range kinds[child].parents {
		if p == parent {
			return true
		}
	}
	return false
}

// childKinds[k] lists the legal child kinds of k in enum order.
var childKinds = func() [kindCount][]Kind {
	var out [kindCount][]Kind
	for k := Kind(1); k < kindCount; k++ {
		for _, p := range kinds[k].parents {
			out[p] = append(out[p], k)
		}
	}
	return out
}()

// reaches reports whether a chain of exactly steps legal parent->child
// transitions leads from one kind to another.
func reaches(from, to Kind, steps int) bool {
	if steps == 0 {
		return from == to
	}
	for _, c := range childKinds[from] {
		if reaches(c, to, steps-1) {
			return true
		}
	}
	return false
}

// NextExpectedKind returns the kind the path segment at pos must have, given
// the kind of the node already reached (parent), the path length and the
// kind declared for the terminal segment. It returns KindInvalid when no
// child of parent can lead to terminal in the remaining segments.
//
// Note kinds need no special casing: a TranscriptNote terminal yields
// Transcript one position earlier, Episode before that, and so on.
func NextExpectedKind(parent Kind, pos, total int, terminal Kind) Kind {
	if pos < 0 || pos >= total || !parent.Valid() || !terminal.Valid() {
		return KindInvalid
	}
	steps := total - 1 - pos
	for _, c := range childKinds[parent] {
		if reaches(c, terminal, steps) {
			return c
		}
	}
	return KindInvalid
}
