package index

import "fmt"

// Entry is one catalog record as the loader sees it.
type Entry struct {
	Kind         Kind
	Name         string
	Record       int
	ParentRecord int
	SortOrder    *int
	SourceRecord int
}

// KeywordEntry is one keyword, optionally with one of its examples. An empty
// Example lists the keyword alone; an empty Keyword lists the group alone.
type KeywordEntry struct {
	Group   string
	Keyword string
	Example string
	Record  int
}

// Source lists the catalog content the forest is built from.
type Source interface {
	Entries() ([]Entry, error)
	Keywords() ([]KeywordEntry, error)
}

// LoadStats summarizes a Load.
type LoadStats struct {
	Loaded  int
	Skipped int
}

// Load rebuilds the library, collection and keyword trees from src. The
// search tree is transient and left untouched. Entries whose owner is
// missing, or whose kind cannot sit under the owner, are skipped.
func Load(f *Forest, src Source) (LoadStats, error) {
	var stats LoadStats
	entries, err := src.Entries()
	if err != nil {
		return stats, fmt.Errorf("index: load entries: %w", err)
	}
	keywords, err := src.Keywords()
	if err != nil {
		return stats, fmt.Errorf("index: load keywords: %w", err)
	}

	f.Reset(FamilyLibrary)
	f.Reset(FamilyCollection)
	f.Reset(FamilyKeyword)

	byParent := make(map[Family]map[int][]Entry)
	for _, e := range entries {
		fam := e.Kind.Family()
		if fam != FamilyLibrary && fam != FamilyCollection || ValidateName(e.Name) != nil {
			stats.Skipped++
			continue
		}
		if byParent[fam] == nil {
			byParent[fam] = make(map[int][]Entry)
		}
		byParent[fam][e.ParentRecord] = append(byParent[fam][e.ParentRecord], e)
	}

	for _, fam := range []Family{FamilyLibrary, FamilyCollection} {
		kids := byParent[fam]
		var attach func(parent *Node, record int)
		attach = func(parent *Node, record int) {
			for _, e := range kids[record] {
				if !CanContain(parent.kind, e.Kind) || findChild(parent, e.Name, e.Kind, AnyRecord) != nil {
					continue
				}
				n := newNode(NodeSpec{
					Name:         e.Name,
					Kind:         e.Kind,
					Record:       e.Record,
					ParentRecord: e.ParentRecord,
					SortOrder:    e.SortOrder,
					SourceRecord: e.SourceRecord,
				})
				Append(parent, n)
				stats.Loaded++
				if e.Record != 0 {
					attach(n, e.Record)
				}
			}
			resort(parent)
		}
		attach(f.Root(fam), 0)
		total := 0
		for _, list := range kids {
			total += len(list)
		}
		stats.Skipped += total - f.Len(fam)
	}

	root := f.Root(FamilyKeyword)
	before := stats.Loaded
	for _, k := range keywords {
		if ValidateName(k.Group) != nil || k.Keyword != "" && ValidateName(k.Keyword) != nil {
			stats.Skipped++
			continue
		}
		group := findChild(root, k.Group, KeywordGroup, AnyRecord)
		if group == nil {
			group = newNode(NodeSpec{Name: k.Group, Kind: KeywordGroup})
			Append(root, group)
		}
		if k.Keyword == "" {
			continue
		}
		kw := findChild(group, k.Keyword, Keyword, AnyRecord)
		if kw == nil {
			kw = newNode(NodeSpec{Name: k.Keyword, Kind: Keyword})
			Append(group, kw)
		}
		if k.Example == "" {
			continue
		}
		if ValidateName(k.Example) != nil || findChild(kw, k.Example, KeywordExample, k.Record) != nil {
			stats.Skipped++
			continue
		}
		Append(kw, newNode(NodeSpec{Name: k.Example, Kind: KeywordExample, Record: k.Record}))
	}
	walk(root, resort)
	stats.Loaded = before + f.Len(FamilyKeyword)

	return stats, nil
}
