package project

import (
	"os"
	"path/filepath"

	"github.com/archivum/archivum/internal/types"
)

// sourceExtensions is the fixed set of source-code extensions used both by
// the generic detector and by source-file counting during project scans.
var sourceExtensions = map[string]bool{
	"go": true, "java": true, "kt": true, "kts": true, "scala": true,
	"py": true, "rb": true, "php": true, "rs": true, "swift": true,
	"c": true, "h": true, "cpp": true, "hpp": true, "cc": true, "cxx": true,
	"cs": true, "js": true, "jsx": true, "ts": true, "tsx": true,
	"vue": true, "dart": true, "groovy": true, "sh": true, "pl": true,
	"sql": true, "lua": true, "ex": true, "exs": true, "erl": true,
	"hs": true, "ml": true, "clj": true, "zig": true,
}

// IsSourceExtension reports whether ext (lowercase, no dot) is in the fixed
// source-code extension set.
func IsSourceExtension(ext string) bool { return sourceExtensions[ext] }

// genericMinSourceFiles is the minimum number of source files for the
// generic detector to consider a folder a project.
const genericMinSourceFiles = 3

type genericDetector struct{}

func (genericDetector) Priority() int { return 0 }

func (d genericDetector) CanDetect(dir string) bool {
	if dirExists(filepath.Join(dir, "src")) || fileExists(filepath.Join(dir, ".gitignore")) {
		return true
	}
	return d.countSourceFiles(dir) >= genericMinSourceFiles
}

// Detect names the project after its folder; nothing more is derivable.
func (genericDetector) Detect(dir string) (Identity, bool) {
	name := filepath.Base(dir)
	return Identity{
		Type:       types.ProjectGeneric,
		Name:       name,
		Identifier: unknownField + ":" + name,
	}, true
}

// countSourceFiles counts source files directly in dir or under dir/src,
// descending at most two levels.
func (genericDetector) countSourceFiles(dir string) int {
	count := countSourcesAt(dir)
	src := filepath.Join(dir, "src")
	if dirExists(src) {
		count += countSourcesAt(src)
		if entries, err := os.ReadDir(src); err == nil {
			for _, e := range entries {
				if e.IsDir() {
					count += countSourcesAt(filepath.Join(src, e.Name()))
				}
			}
		}
	}
	return count
}

func countSourcesAt(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	count := 0
	for _, e := range entries {
		if e.Type().IsRegular() && sourceExtensions[extensionOf(e.Name())] {
			count++
		}
	}
	return count
}

// extensionOf returns the lowercase final extension of name, without the dot.
func extensionOf(name string) string {
	ext := filepath.Ext(name)
	if ext == "" {
		return ""
	}
	out := make([]byte, 0, len(ext)-1)
	for i := 1; i < len(ext); i++ {
		c := ext[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}
