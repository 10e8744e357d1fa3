package project

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/archivum/archivum/internal/types"
)

// cargoManifest mirrors the [package] table of Cargo.toml.
type cargoManifest struct {
	Package struct {
		Name    string `toml:"name"`
		Version string `toml:"version"`
	} `toml:"package"`
}

type rustDetector struct{}

func (rustDetector) Priority() int { return 10 }

func (rustDetector) CanDetect(dir string) bool {
	return fileExists(filepath.Join(dir, "Cargo.toml"))
}

// Detect parses the [package] block of Cargo.toml. Workspace-only manifests
// (no [package] table) are unusable.
func (rustDetector) Detect(dir string) (Identity, bool) {
	data, err := os.ReadFile(filepath.Join(dir, "Cargo.toml"))
	if err != nil {
		return Identity{}, false
	}

	var manifest cargoManifest
	if err := toml.Unmarshal(data, &manifest); err != nil || manifest.Package.Name == "" {
		return Identity{}, false
	}

	version := orUnknown(manifest.Package.Version)
	return Identity{
		Type:       types.ProjectRust,
		Name:       manifest.Package.Name,
		Version:    version,
		Identifier: manifest.Package.Name + ":" + version,
	}, true
}
