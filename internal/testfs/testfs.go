// Package testfs provides declarative filesystem fixtures for scanner,
// walker, and project detector tests.
//
// Tests describe the tree they need as a Tree value and sow it into a
// t.TempDir(). Subdirectories are created automatically from file paths
// (mkdir -p semantics); file paths are relative to the tree root.
//
//	root := testfs.Sow(t, testfs.Tree{
//	    Files: []testfs.File{
//	        {Path: "docs/readme.txt", Content: "hello"},
//	        {Path: "photos/img.bin", Pattern: 'A', Size: 4096},
//	    },
//	})
package testfs

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// Tree describes a filesystem state to sow.
type Tree struct {
	Files    []File
	Symlinks []Symlink
}

// File is one file to create. Content wins over Pattern/Size; a zero File
// yields an empty file.
type File struct {
	Path    string
	Content string
	Pattern byte
	Size    int
}

// Symlink is one symlink to create.
type Symlink struct {
	Path   string
	Target string
}

// Sow creates the tree under a fresh t.TempDir() and returns the root.
func Sow(t *testing.T, tree Tree) string {
	t.Helper()
	root := t.TempDir()
	SowAt(t, root, tree)
	return root
}

// SowAt creates the tree under an existing root.
func SowAt(t *testing.T, root string, tree Tree) {
	t.Helper()
	for _, f := range tree.Files {
		path := filepath.Join(root, f.Path)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir for %s: %v", f.Path, err)
		}
		if err := os.WriteFile(path, f.bytes(), 0o644); err != nil {
			t.Fatalf("write %s: %v", f.Path, err)
		}
	}
	for _, s := range tree.Symlinks {
		path := filepath.Join(root, s.Path)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir for %s: %v", s.Path, err)
		}
		if err := os.Symlink(s.Target, path); err != nil {
			t.Fatalf("symlink %s: %v", s.Path, err)
		}
	}
}

func (f File) bytes() []byte {
	if f.Content != "" {
		return []byte(f.Content)
	}
	if f.Size > 0 {
		return bytes.Repeat([]byte{f.Pattern}, f.Size)
	}
	return nil
}
