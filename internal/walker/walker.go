// Package walker provides depth-first filesystem traversal for the scan
// pipeline.
//
// # Overview
//
// The walker is the discovery stage: it visits only regular files, applies
// the system-directory and glob exclusion predicates, and accumulates total
// size during the walk so no second pass is needed. Entries are visited in
// lexical order, which makes the encounter order (and therefore batch
// contents downstream) deterministic.
//
// Exclude globs match basenames of files and directories alike: a directory
// whose basename matches is pruned with its entire subtree, so a pattern
// like "node_modules" cuts the tree off instead of filtering its files one
// by one.
//
// A permission or I/O error on an individual entry is reported to the error
// channel and skipped; traversal continues. Hashing parallelism lives in the
// hashing pool, not here.
package walker

import (
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// systemDirs are directory basenames always skipped when SkipSystemDirs is
// set: OS trash, indexing, and volume bookkeeping trees.
var systemDirs = map[string]bool{
	".Trash":                    true,
	".Trashes":                  true,
	"$RECYCLE.BIN":              true,
	"System Volume Information": true,
	".TemporaryItems":           true,
	".Spotlight-V100":           true,
	".fseventsd":                true,
}

// File is one regular file discovered during a walk.
type File struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Walker traverses a directory tree depth-first.
//
// The walker is designed for single-use: create with New(), call Walk() once.
type Walker struct {
	skipSystemDirs bool
	followSymlinks bool
	excludes       []string   // doublestar patterns matched against file and directory basenames
	errCh          chan error // non-fatal errors (permission denied, etc.)

	files     []File
	totalSize int64
}

// New creates a Walker. Pass nil for errCh to discard non-fatal errors.
func New(skipSystemDirs, followSymlinks bool, excludes []string, errCh chan error) *Walker {
	return &Walker{
		skipSystemDirs: skipSystemDirs,
		followSymlinks: followSymlinks,
		excludes:       excludes,
		errCh:          errCh,
	}
}

// Walk traverses root and returns the discovered files in encounter order
// together with their accumulated size.
func (w *Walker) Walk(root string) ([]File, int64, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, 0, err
	}
	w.files = nil
	w.totalSize = 0
	w.walkDir(abs)
	return w.files, w.totalSize, nil
}

// walkDir processes one directory: files first, then subdirectories,
// both in lexical order.
func (w *Walker) walkDir(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		w.sendError(err)
		return
	}

	var subdirs []string
	for _, entry := range entries {
		full := filepath.Join(dir, entry.Name())

		if entry.IsDir() {
			if w.skipDir(entry.Name()) {
				continue
			}
			subdirs = append(subdirs, full)
			continue
		}

		isRegular := entry.Type().IsRegular()
		if !isRegular && entry.Type()&os.ModeSymlink != 0 && w.followSymlinks {
			target, statErr := os.Stat(full)
			if statErr != nil {
				w.sendError(statErr)
				continue
			}
			if target.IsDir() {
				if !w.skipDir(entry.Name()) {
					subdirs = append(subdirs, full)
				}
				continue
			}
			isRegular = target.Mode().IsRegular()
		}
		if !isRegular {
			continue // devices, sockets, unfollowed symlinks
		}

		if w.excluded(entry.Name()) {
			continue
		}

		info, infoErr := os.Stat(full)
		if infoErr != nil {
			w.sendError(infoErr)
			continue
		}

		w.files = append(w.files, File{Path: full, Size: info.Size(), ModTime: info.ModTime()})
		w.totalSize += info.Size()
	}

	for _, sub := range subdirs {
		w.walkDir(sub)
	}
}

// skipDir reports whether a directory basename is excluded from traversal.
func (w *Walker) skipDir(name string) bool {
	if w.skipSystemDirs && systemDirs[name] {
		return true
	}
	return w.excluded(name)
}

// excluded checks a basename against the configured glob union.
func (w *Walker) excluded(base string) bool {
	for _, pattern := range w.excludes {
		if matched, _ := doublestar.Match(pattern, base); matched {
			return true
		}
	}
	return false
}

func (w *Walker) sendError(err error) {
	if w.errCh != nil {
		w.errCh <- err
	}
}
