package savedir

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/circuitreel/circuitreel/internal/fsutil"
)

func testInfo() WorldInfo {
	return WorldInfo{
		Title:       "video screen",
		GameVersion: "0.91.3",
		CreatedAt:   time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}
}

func newTemplate(t *testing.T, fs *fsutil.MemoryFileSystem, dir string) {
	t.Helper()
	if err := fs.WriteFile(filepath.Join(dir, SaveFileName), []byte("savebits"), 0644); err != nil {
		t.Fatalf("seed template: %v", err)
	}
	if err := fs.WriteFile(filepath.Join(dir, "thumbnails", "small.png"), []byte("png"), 0644); err != nil {
		t.Fatalf("seed template: %v", err)
	}
}

func TestStageCopiesTemplate(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	s := &Stager{FS: fs}
	newTemplate(t, fs, "saves/template")

	if err := s.Stage("saves/template", "saves/output", testInfo()); err != nil {
		t.Fatalf("stage: %v", err)
	}

	data, err := fs.ReadFile(SaveFilePath("saves/output"))
	if err != nil {
		t.Fatalf("output save file missing: %v", err)
	}
	if string(data) != "savebits" {
		t.Errorf("save file content %q, want %q", data, "savebits")
	}
	if !fs.Exists(filepath.Join("saves/output", "thumbnails", "small.png")) {
		t.Error("nested template files should be copied")
	}
}

func TestStageWritesWorldInfo(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	s := &Stager{FS: fs}
	newTemplate(t, fs, "saves/template")

	if err := s.Stage("saves/template", "saves/output", testInfo()); err != nil {
		t.Fatalf("stage: %v", err)
	}

	data, err := fs.ReadFile(filepath.Join("saves/output", WorldInfoFileName))
	if err != nil {
		t.Fatalf("world info missing: %v", err)
	}
	got := string(data)
	want := "title=video screen\ngame_version=0.91.3\ncreated=2026-03-14T12:00:00Z\n"
	if got != want {
		t.Errorf("world info = %q, want %q", got, want)
	}
}

func TestStageReplacesPreviousOutput(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	s := &Stager{FS: fs}
	newTemplate(t, fs, "saves/template")
	fs.WriteFile(filepath.Join("saves/output", "stale.txt"), []byte("old run"), 0644)

	if err := s.Stage("saves/template", "saves/output", testInfo()); err != nil {
		t.Fatalf("stage: %v", err)
	}
	if fs.Exists(filepath.Join("saves/output", "stale.txt")) {
		t.Error("previous output save should be deleted before staging")
	}
	if !fs.Exists(SaveFilePath("saves/output")) {
		t.Error("fresh save file should exist after staging")
	}
}

func TestStageRejectsBadTemplate(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	s := &Stager{FS: fs}

	err := s.Stage("saves/empty", "saves/output", testInfo())
	if err == nil || !strings.Contains(err.Error(), SaveFileName) {
		t.Fatalf("expected missing save file error, got %v", err)
	}
}

func TestStageRejectsSelfCopy(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	s := &Stager{FS: fs}
	newTemplate(t, fs, "saves/template")

	err := s.Stage("saves/template", "saves/template", testInfo())
	if err == nil {
		t.Fatal("staging a template onto itself must fail")
	}
}

func TestDefaultRootEnvOverride(t *testing.T) {
	t.Setenv(SavesDirEnv, "/srv/lw/saves")
	root, err := DefaultRoot()
	if err != nil {
		t.Fatalf("default root: %v", err)
	}
	if root != "/srv/lw/saves" {
		t.Errorf("root = %q, want env override", root)
	}
}

func TestDefaultRootUnderHome(t *testing.T) {
	t.Setenv(SavesDirEnv, "")
	t.Setenv("HOME", "/home/reel")
	root, err := DefaultRoot()
	if err != nil {
		t.Fatalf("default root: %v", err)
	}
	want := filepath.Join("/home/reel", ".local", "share", "Logic World", "saves")
	if root != want {
		t.Errorf("root = %q, want %q", root, want)
	}
}
