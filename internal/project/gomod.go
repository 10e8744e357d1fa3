package project

import (
	"bufio"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/archivum/archivum/internal/types"
)

type goDetector struct{}

func (goDetector) Priority() int { return 10 }

func (goDetector) CanDetect(dir string) bool {
	return fileExists(filepath.Join(dir, "go.mod"))
}

// Detect reads the module directive of go.mod. The identifier is the module
// path itself; the name is its last segment.
func (goDetector) Detect(dir string) (Identity, bool) {
	f, err := os.Open(filepath.Join(dir, "go.mod"))
	if err != nil {
		return Identity{}, false
	}
	defer func() { _ = f.Close() }()

	scan := bufio.NewScanner(f)
	for scan.Scan() {
		line := strings.TrimSpace(scan.Text())
		if !strings.HasPrefix(line, "module") {
			continue
		}
		module := strings.TrimSpace(strings.TrimPrefix(line, "module"))
		module = strings.Trim(module, `"`)
		if module == "" {
			return Identity{}, false
		}
		return Identity{
			Type:       types.ProjectGo,
			Name:       path.Base(module),
			Identifier: module,
		}, true
	}
	return Identity{}, false
}
