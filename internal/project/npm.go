package project

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/archivum/archivum/internal/types"
)

type packageJSON struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type npmDetector struct{}

func (npmDetector) Priority() int { return 10 }

func (npmDetector) CanDetect(dir string) bool {
	return fileExists(filepath.Join(dir, "package.json"))
}

// Detect parses package.json. The name is required; version defaults to
// "unknown".
func (npmDetector) Detect(dir string) (Identity, bool) {
	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return Identity{}, false
	}

	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil || pkg.Name == "" {
		return Identity{}, false
	}

	version := orUnknown(pkg.Version)
	return Identity{
		Type:       types.ProjectNPM,
		Name:       pkg.Name,
		Version:    version,
		Identifier: pkg.Name + ":" + version,
	}, true
}
