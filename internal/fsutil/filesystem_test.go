package fsutil

import (
	"errors"
	"io/fs"
	"path/filepath"
	"testing"
)

func TestMemoryReadWriteFile(t *testing.T) {
	m := NewMemoryFileSystem()
	if err := m.WriteFile("a/b/c.txt", []byte("hello"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	data, err := m.ReadFile("a/b/c.txt")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("read %q, want %q", data, "hello")
	}

	// Mutating the returned slice must not affect the stored copy.
	data[0] = 'H'
	again, _ := m.ReadFile("a/b/c.txt")
	if string(again) != "hello" {
		t.Error("ReadFile returned an aliased buffer")
	}

	if _, err := m.ReadFile("missing.txt"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected fs.ErrNotExist, got %v", err)
	}
}

func TestMemoryWriteCreatesParents(t *testing.T) {
	m := NewMemoryFileSystem()
	if err := m.WriteFile(filepath.Join("saves", "out", "data.bin"), []byte{1}, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !m.Exists("saves") || !m.Exists(filepath.Join("saves", "out")) {
		t.Error("WriteFile should create parent directories")
	}
}

func TestMemoryReadDir(t *testing.T) {
	m := NewMemoryFileSystem()
	m.WriteFile(filepath.Join("root", "b.txt"), []byte("b"), 0644)
	m.WriteFile(filepath.Join("root", "a.txt"), []byte("a"), 0644)
	m.WriteFile(filepath.Join("root", "sub", "c.txt"), []byte("c"), 0644)
	m.MkdirAll(filepath.Join("root", "empty"), 0755)

	entries, err := m.ReadDir("root")
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	var names []string
	dirs := map[string]bool{}
	for _, e := range entries {
		names = append(names, e.Name())
		dirs[e.Name()] = e.IsDir()
	}

	want := []string{"a.txt", "b.txt", "empty", "sub"}
	if len(names) != len(want) {
		t.Fatalf("entries = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("entries = %v, want %v", names, want)
		}
	}
	if dirs["a.txt"] || !dirs["sub"] || !dirs["empty"] {
		t.Errorf("dir flags wrong: %v", dirs)
	}

	if _, err := m.ReadDir("nope"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected fs.ErrNotExist for missing dir, got %v", err)
	}
}

func TestMemoryRemoveAll(t *testing.T) {
	m := NewMemoryFileSystem()
	m.WriteFile(filepath.Join("tree", "a.txt"), []byte("a"), 0644)
	m.WriteFile(filepath.Join("tree", "sub", "b.txt"), []byte("b"), 0644)
	m.WriteFile("treeish.txt", []byte("x"), 0644)

	if err := m.RemoveAll("tree"); err != nil {
		t.Fatalf("removeall: %v", err)
	}
	if m.Exists("tree") || m.Exists(filepath.Join("tree", "sub", "b.txt")) {
		t.Error("RemoveAll left children behind")
	}
	if !m.Exists("treeish.txt") {
		t.Error("RemoveAll removed a sibling with a shared name prefix")
	}
}

func TestMemoryStat(t *testing.T) {
	m := NewMemoryFileSystem()
	m.WriteFile(filepath.Join("d", "f.bin"), []byte{1, 2, 3}, 0644)

	fi, err := m.Stat(filepath.Join("d", "f.bin"))
	if err != nil {
		t.Fatalf("stat file: %v", err)
	}
	if fi.IsDir() || fi.Size() != 3 {
		t.Errorf("file stat: isdir=%v size=%d", fi.IsDir(), fi.Size())
	}

	di, err := m.Stat("d")
	if err != nil {
		t.Fatalf("stat dir: %v", err)
	}
	if !di.IsDir() {
		t.Error("directory stat should report IsDir")
	}
}

func TestOSFileSystem(t *testing.T) {
	var osfs OSFileSystem
	dir := t.TempDir()

	path := filepath.Join(dir, "sub", "x.txt")
	if err := osfs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdirall: %v", err)
	}
	if err := osfs.WriteFile(path, []byte("data"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := osfs.ReadFile(path)
	if err != nil || string(got) != "data" {
		t.Fatalf("read: %q, %v", got, err)
	}

	entries, err := osfs.ReadDir(filepath.Join(dir, "sub"))
	if err != nil || len(entries) != 1 || entries[0].Name() != "x.txt" {
		t.Fatalf("readdir: %v, %v", entries, err)
	}

	if !osfs.Exists(path) {
		t.Error("Exists should see the written file")
	}
	if err := osfs.RemoveAll(filepath.Join(dir, "sub")); err != nil {
		t.Fatalf("removeall: %v", err)
	}
	if osfs.Exists(path) {
		t.Error("RemoveAll should delete the tree")
	}
}
