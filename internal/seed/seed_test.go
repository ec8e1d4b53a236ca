package seed

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/arbor/internal/index"
	"github.com/starford/arbor/internal/testutil"
)

const fixture = `
libraries:
  - name: Interviews
    children:
      - {name: Ann, kind: episode, children: [{name: Ann transcript, kind: transcript}]}
      - {name: Bio, kind: library-note}
collections:
  - name: Best
    record: 10
    children:
      - {name: K1, kind: clip, keywords: [Cast/Ann, Places/Berlin]}
      - {name: Inner, kind: collection}
      - {name: K2, kind: clip}
keywords:
  - group: Places
    keywords: [Paris]
`

func TestParseAndApply(t *testing.T) {
	f, err := Parse([]byte(fixture))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	db := testutil.TestCatalog(t)
	st, err := Apply(db, f)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if st.Records != 8 || st.Examples != 2 || st.Keywords != 1 {
		t.Errorf("stats = %+v", st)
	}

	// Allocation starts above the explicit record 10.
	e, ok, err := db.Get(11)
	if err != nil || !ok || e.Name != "Interviews" || e.Kind != index.Library {
		t.Errorf("record 11 = %+v, %v, %v", e, ok, err)
	}
	e, ok, _ = db.Get(10)
	if !ok || e.Name != "Best" || e.Kind != index.Collection {
		t.Errorf("record 10 = %+v", e)
	}

	forest := index.NewForest()
	if _, err := index.Load(forest, db); err != nil {
		t.Fatalf("Load: %v", err)
	}
	clips, err := forest.Children(index.FamilyCollection, index.Path{"Best"}, index.Collection, index.AnyRecord)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, c := range clips {
		names = append(names, c.Name())
	}
	if strings.Join(names, ",") != "Inner,K1,K2" {
		t.Errorf("Best children = %v", names)
	}
	if so, _ := clips[2].SortOrder(); so != 1 {
		t.Errorf("K2 sort order = %d, want 1", so)
	}

	if _, err := forest.Resolve(index.Path{"Cast", "Ann", "K1"}, index.KeywordExample, index.AnyRecord); err != nil {
		t.Errorf("keyword example missing: %v", err)
	}
	if _, err := forest.Resolve(index.Path{"Places", "Paris"}, index.Keyword, index.AnyRecord); err != nil {
		t.Errorf("bare keyword missing: %v", err)
	}
	if _, err := forest.Resolve(index.Path{"Interviews", "Ann", "Ann transcript"}, index.Transcript, index.AnyRecord); err != nil {
		t.Errorf("transcript missing: %v", err)
	}
}

func TestParseRejectsBadFixtures(t *testing.T) {
	cases := map[string]string{
		"unknown field":   "libraries: [{name: L, colour: red}]",
		"missing kind":    "libraries: [{name: L, children: [{name: X}]}]",
		"illegal child":   "libraries: [{name: L, children: [{name: X, kind: clip}]}]",
		"unknown kind":    "collections: [{name: C, children: [{name: X, kind: reel}]}]",
		"bad keyword":     "collections: [{name: C, children: [{name: X, kind: clip, keywords: [Cast]}]}]",
		"keyword on coll": "collections: [{name: C, keywords: [Cast/Ann]}]",
		"separator":       "libraries: [{name: 'a>|<b'}]",
		"empty name":      "libraries: [{kind: library}]",
	}
	for name, src := range cases {
		if _, err := Parse([]byte(src)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestParseEmpty(t *testing.T) {
	f, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse(nil): %v", err)
	}
	if len(f.Libraries)+len(f.Collections)+len(f.Keywords) != 0 {
		t.Errorf("fixture = %+v", f)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte(fixture), 0o644); err != nil {
		t.Fatal(err)
	}
	db := testutil.TestCatalog(t)
	st, err := LoadFile(db, path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if st.Records != 8 {
		t.Errorf("records = %d", st.Records)
	}

	if _, err := LoadFile(db, filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
