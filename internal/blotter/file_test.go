package blotter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestReadWriteFile(t *testing.T) {
	want := testFile(SaveVersionFixedPositions, SaveTypeWorld)
	path := filepath.Join(t.TempDir(), "data.logicworld")

	if err := want.WriteFile(path); err != nil {
		t.Fatalf("write file: %v", err)
	}
	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("file round trip mismatch (-want +got):\n%s", diff)
	}

	// No temp files may survive a successful write.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the save file in the directory, found %d entries", len(entries))
	}
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "absent.logicworld"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}
