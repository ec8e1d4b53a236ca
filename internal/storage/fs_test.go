package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/arbor/internal/checksum"
)

func tempSpool(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir, ".delta")
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempSpool(t)
	content := []byte(`{"line":"AL>|<libraries>|<1>|<0>|<>|<L"}`)
	if err := s.Write("one.delta", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("one.delta")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempSpool(t)
	if err := s.Write("a/b/c.delta", []byte("deep")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("a/b/c.delta")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "deep" {
		t.Errorf("content = %q", got)
	}
}

func TestDelete(t *testing.T) {
	s := tempSpool(t)
	_ = s.Write("del.delta", []byte("bye"))
	if err := s.Delete("del.delta"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("del.delta"); err == nil {
		t.Error("expected error reading deleted file")
	}
}

func TestListFiltersAndSorts(t *testing.T) {
	s := tempSpool(t)
	_ = s.Write("b.delta", []byte("b"))
	_ = s.Write("a.delta", []byte("a"))
	_ = s.Write("readme.txt", []byte("not a delta"))
	_ = os.WriteFile(filepath.Join(s.Root(), TempPrefix+"x.delta"), []byte("partial"), 0o644)

	items, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(items), items)
	}
	if items[0].Path != "a.delta" || items[1].Path != "b.delta" {
		t.Errorf("order = %s, %s", items[0].Path, items[1].Path)
	}
	if items[0].Checksum != checksum.Sum([]byte("a")) || items[0].Size != 1 {
		t.Errorf("metadata = %+v", items[0])
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempSpool(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.delta",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteNoCorruption(t *testing.T) {
	s := tempSpool(t)
	_ = s.Write("atomic.delta", []byte("original content"))

	updated := []byte("updated content")
	if err := s.Write("atomic.delta", updated); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.delta")
	if string(got) != string(updated) {
		t.Errorf("expected updated content, got %q", got)
	}

	// Confirm no leftover temp files.
	matches, _ := filepath.Glob(filepath.Join(s.root, TempPrefix+"*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS("/tmp/arbor-does-not-exist-"+t.Name(), ".delta")
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "arbor-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name(), ".delta")
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
