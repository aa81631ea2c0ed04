// Package savedir stages the game save directory the pipeline writes
// into: it replaces any previous output save with a copy of a template
// save and records world metadata alongside it.
package savedir

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/circuitreel/circuitreel/internal/fsutil"
)

const (
	// SaveFileName is the binary save inside every save directory.
	SaveFileName = "data.logicworld"

	// WorldInfoFileName carries the human-readable world metadata.
	WorldInfoFileName = "worldinfo.txt"

	// SavesDirEnv overrides the default saves root.
	SavesDirEnv = "CIRCUITREEL_SAVES_DIR"
)

// DefaultRoot returns the game saves root: the environment override if
// set, otherwise the game's per-user data directory.
func DefaultRoot() (string, error) {
	if dir := os.Getenv(SavesDirEnv); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "Logic World", "saves"), nil
}

// SaveFilePath returns the binary save file inside a save directory.
func SaveFilePath(saveDir string) string {
	return filepath.Join(saveDir, SaveFileName)
}

// WorldInfo is the metadata written next to the save file.
type WorldInfo struct {
	Title       string
	GameVersion string
	CreatedAt   time.Time
}

func (w WorldInfo) marshal() []byte {
	return []byte(fmt.Sprintf("title=%s\ngame_version=%s\ncreated=%s\n",
		w.Title, w.GameVersion, w.CreatedAt.UTC().Format(time.RFC3339)))
}

// Stager copies template saves into place.
type Stager struct {
	FS fsutil.FileSystem
}

// NewStager returns a Stager backed by the real filesystem.
func NewStager() *Stager {
	return &Stager{FS: fsutil.OSFileSystem{}}
}

// Stage replaces outputDir with a copy of templateDir and writes the
// world metadata. The template must already contain a save file; the
// previous output save, if any, is deleted first (the pipeline always
// regenerates it from scratch).
func (s *Stager) Stage(templateDir, outputDir string, info WorldInfo) error {
	if !s.FS.Exists(SaveFilePath(templateDir)) {
		return fmt.Errorf("template save %s has no %s", templateDir, SaveFileName)
	}
	if templateDir == outputDir {
		return fmt.Errorf("template and output save directories are both %s", templateDir)
	}

	if s.FS.Exists(outputDir) {
		if err := s.FS.RemoveAll(outputDir); err != nil {
			return fmt.Errorf("remove previous save: %w", err)
		}
	}

	if err := s.copyTree(templateDir, outputDir); err != nil {
		return fmt.Errorf("copy template save: %w", err)
	}

	if err := s.FS.WriteFile(filepath.Join(outputDir, WorldInfoFileName), info.marshal(), 0644); err != nil {
		return fmt.Errorf("write world info: %w", err)
	}
	return nil
}

func (s *Stager) copyTree(src, dst string) error {
	if err := s.FS.MkdirAll(dst, 0755); err != nil {
		return err
	}
	entries, err := s.FS.ReadDir(src)
	if err != nil {
		return err
	}
	for _, e := range entries {
		srcPath := filepath.Join(src, e.Name())
		dstPath := filepath.Join(dst, e.Name())
		if e.IsDir() {
			if err := s.copyTree(srcPath, dstPath); err != nil {
				return err
			}
			continue
		}
		data, err := s.FS.ReadFile(srcPath)
		if err != nil {
			return err
		}
		if err := s.FS.WriteFile(dstPath, data, 0644); err != nil {
			return err
		}
	}
	return nil
}
