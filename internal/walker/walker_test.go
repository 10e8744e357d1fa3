package walker

import (
	"path/filepath"
	"testing"

	"github.com/archivum/archivum/internal/testfs"
)

func names(files []File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = filepath.Base(f.Path)
	}
	return out
}

// TestWalkSkipsSystemDirs verifies that trash and recycle-bin trees are
// excluded when skipSystemDirs is on, and included when it is off.
func TestWalkSkipsSystemDirs(t *testing.T) {
	root := testfs.Sow(t, testfs.Tree{
		Files: []testfs.File{
			{Path: ".Trash/x.txt", Content: "x"},
			{Path: "$RECYCLE.BIN/y.txt", Content: "y"},
			{Path: "normal.txt", Content: "n"},
		},
	})

	files, _, err := New(true, false, nil, nil).Walk(root)
	if err != nil {
		t.Fatal(err)
	}
	if got := names(files); len(got) != 1 || got[0] != "normal.txt" {
		t.Errorf("skipSystemDirs=true walked %v, want [normal.txt]", got)
	}

	files, _, err = New(false, false, nil, nil).Walk(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 3 {
		t.Errorf("skipSystemDirs=false walked %d files, want 3", len(files))
	}
}

// TestWalkExcludeGlobs tests basename glob exclusion of files and dirs.
func TestWalkExcludeGlobs(t *testing.T) {
	root := testfs.Sow(t, testfs.Tree{
		Files: []testfs.File{
			{Path: "keep.txt", Content: "k"},
			{Path: "skip.tmp", Content: "s"},
			{Path: "node_modules/dep.js", Content: "d"},
		},
	})

	files, _, err := New(true, false, []string{"*.tmp", "node_modules"}, nil).Walk(root)
	if err != nil {
		t.Fatal(err)
	}
	if got := names(files); len(got) != 1 || got[0] != "keep.txt" {
		t.Errorf("walked %v, want [keep.txt]", got)
	}
}

// TestWalkEncounterOrder tests the deterministic order: files of a directory
// in lexical order, then its subdirectories depth-first.
func TestWalkEncounterOrder(t *testing.T) {
	root := testfs.Sow(t, testfs.Tree{
		Files: []testfs.File{
			{Path: "b.txt", Content: "b"},
			{Path: "a.txt", Content: "a"},
			{Path: "sub/z.txt", Content: "z"},
			{Path: "sub/inner/q.txt", Content: "q"},
		},
	})

	files, total, err := New(true, false, nil, nil).Walk(root)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"a.txt", "b.txt", "z.txt", "q.txt"}
	got := names(files)
	if len(got) != len(want) {
		t.Fatalf("walked %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: got %s, want %s", i, got[i], want[i])
		}
	}
	if total != 4 {
		t.Errorf("totalSize = %d, want 4", total)
	}
}

// TestWalkIgnoresSymlinksByDefault tests that symlinks are skipped unless
// followSymlinks is set.
func TestWalkIgnoresSymlinksByDefault(t *testing.T) {
	root := testfs.Sow(t, testfs.Tree{
		Files:    []testfs.File{{Path: "real.txt", Content: "r"}},
		Symlinks: []testfs.Symlink{{Path: "link.txt", Target: "real.txt"}},
	})

	files, _, err := New(true, false, nil, nil).Walk(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Errorf("walked %d files, want 1 (symlink skipped)", len(files))
	}

	files, _, err = New(true, true, nil, nil).Walk(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Errorf("followSymlinks walked %d files, want 2", len(files))
	}
}
