package index

import (
	"errors"
	"slices"
	"testing"
)

type fakeSource struct {
	entries  []Entry
	keywords []KeywordEntry
	err      error
}

func (s fakeSource) Entries() ([]Entry, error)         { return s.entries, s.err }
func (s fakeSource) Keywords() ([]KeywordEntry, error) { return s.keywords, nil }

func TestLoadBuildsTrees(t *testing.T) {
	src := fakeSource{
		entries: []Entry{
			{Kind: Library, Name: "Interviews", Record: 1},
			{Kind: Episode, Name: "Ep 2", Record: 3, ParentRecord: 1},
			{Kind: Episode, Name: "Ep 1", Record: 2, ParentRecord: 1},
			{Kind: Transcript, Name: "Take", Record: 4, ParentRecord: 2},
			{Kind: LibraryNote, Name: "About", Record: 5, ParentRecord: 1},
			{Kind: Collection, Name: "Reel", Record: 10},
			{Kind: Clip, Name: "Second", Record: 12, ParentRecord: 10, SortOrder: intp(2)},
			{Kind: Clip, Name: "First", Record: 11, ParentRecord: 10, SortOrder: intp(1)},
			{Kind: Collection, Name: "Cuts", Record: 13, ParentRecord: 10},
			// owner 99 does not exist
			{Kind: Clip, Name: "Orphan", Record: 14, ParentRecord: 99, SortOrder: intp(1)},
			// transcripts cannot sit directly under a library
			{Kind: Transcript, Name: "Stray", Record: 15, ParentRecord: 1},
		},
		keywords: []KeywordEntry{
			{Group: "People", Keyword: "Ann", Example: "First", Record: 11},
			{Group: "People", Keyword: "Ann", Example: "Second", Record: 12},
			{Group: "People", Keyword: "Bob"},
			{Group: "Places", Keyword: "Home", Example: "First", Record: 11},
		},
	}
	f := NewForest()
	stats, err := Load(f, src)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if stats.Skipped != 2 {
		t.Errorf("skipped = %d, want 2", stats.Skipped)
	}
	if stats.Loaded != 9+8 {
		t.Errorf("loaded = %d, want 17", stats.Loaded)
	}

	if got := mustChildren(t, f, Path{"Interviews"}, Library); !slices.Equal(got, []string{"Ep 1", "Ep 2", "About"}) {
		t.Errorf("library children = %v", got)
	}
	if got := mustChildren(t, f, Path{"Reel"}, Collection); !slices.Equal(got, []string{"Cuts", "First", "Second"}) {
		t.Errorf("collection children = %v", got)
	}
	if _, err := f.Resolve(Path{"Interviews", "Ep 1", "Take"}, Transcript, 4); err != nil {
		t.Errorf("transcript: %v", err)
	}
	if got := mustChildren(t, f, Path{"People", "Ann"}, Keyword); !slices.Equal(got, []string{"First", "Second"}) {
		t.Errorf("Ann examples = %v", got)
	}
	if got := mustChildren(t, f, Path{"People"}, KeywordGroup); !slices.Equal(got, []string{"Ann", "Bob"}) {
		t.Errorf("People keywords = %v", got)
	}
}

func TestLoadReplacesPreviousContent(t *testing.T) {
	f := NewForest()
	e := NewEngine(f)
	mustInsert(t, e, Path{"Old"}, Library, 1, 0, nil)
	mustInsert(t, e, Path{"R"}, SearchResults, 0, 0, nil)

	if _, err := Load(f, fakeSource{entries: []Entry{{Kind: Library, Name: "New", Record: 2}}}); err != nil {
		t.Fatal(err)
	}
	if got := mustChildren(t, f, nil, LibraryRoot); !slices.Equal(got, []string{"New"}) {
		t.Errorf("libraries = %v", got)
	}
	if f.Len(FamilySearch) != 1 {
		t.Errorf("search tree should survive a load")
	}
}

func TestLoadPropagatesSourceErrors(t *testing.T) {
	boom := errors.New("boom")
	if _, err := Load(NewForest(), fakeSource{err: boom}); !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
}
