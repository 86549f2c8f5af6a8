package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/uhskit/internal/checksum"
)

func tempLibrary(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempLibrary(t)
	content := []byte("UHS\r\nTitle\r\n")
	if err := s.Write("game.uhs", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("game.uhs")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempLibrary(t)
	if err := s.Write("a/b/c.uhs", []byte("deep")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("a/b/c.uhs")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "deep" {
		t.Errorf("content = %q", got)
	}
}

func TestDelete(t *testing.T) {
	s := tempLibrary(t)
	_ = s.Write("del.uhs", []byte("bye"))
	if err := s.Delete("del.uhs"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("del.uhs"); err == nil {
		t.Error("expected error reading deleted file")
	}
	if err := s.Delete(""); err == nil {
		t.Error("deleting the root should fail")
	}
}

func TestList(t *testing.T) {
	s := tempLibrary(t)
	_ = s.Write("a.uhs", []byte("a"))
	_ = s.Write("sub/B.UHS", []byte("bb"))
	_ = s.Write("readme.txt", []byte("not a hint file"))
	_ = s.Write(".hidden/c.uhs", []byte("c"))

	items, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(items), items)
	}
	byPath := map[string]int64{}
	for _, it := range items {
		byPath[it.Path] = it.Size
		if it.Path == "a.uhs" && it.Fingerprint != checksum.Fingerprint([]byte("a")) {
			t.Errorf("fingerprint = %q", it.Fingerprint)
		}
	}
	if byPath["sub/B.UHS"] != 2 {
		t.Errorf("sizes = %v", byPath)
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempLibrary(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.uhs",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
		if _, err := s.Abs(p); err == nil {
			t.Errorf("expected error for abs of %q", p)
		}
	}
}

func TestAbs(t *testing.T) {
	s := tempLibrary(t)
	abs, err := s.Abs("sub/x.uhs")
	if err != nil {
		t.Fatal(err)
	}
	if abs != filepath.Join(s.Root(), "sub", "x.uhs") {
		t.Errorf("abs = %q", abs)
	}
}

func TestAtomicWriteNoCorruption(t *testing.T) {
	s := tempLibrary(t)
	_ = s.Write("atomic.uhs", []byte("original content"))

	updated := []byte("updated content")
	if err := s.Write("atomic.uhs", updated); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.uhs")
	if string(got) != string(updated) {
		t.Errorf("expected updated content, got %q", got)
	}

	matches, _ := filepath.Glob(filepath.Join(s.root, ".uhskit-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "missing"))
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp(t.TempDir(), "uhskit-test-*")
	_ = f.Close()
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
