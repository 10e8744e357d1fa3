package project

import (
	"os"
	"path/filepath"
	"regexp"

	"github.com/pelletier/go-toml/v2"

	"github.com/archivum/archivum/internal/types"
)

var (
	setupNameRe    = regexp.MustCompile(`name\s*=\s*["']([^"']+)["']`)
	setupVersionRe = regexp.MustCompile(`version\s*=\s*["']([^"']+)["']`)
)

// pyProject mirrors the [project] table of pyproject.toml, with the poetry
// table as fallback for older layouts.
type pyProject struct {
	Project struct {
		Name    string `toml:"name"`
		Version string `toml:"version"`
	} `toml:"project"`
	Tool struct {
		Poetry struct {
			Name    string `toml:"name"`
			Version string `toml:"version"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

type pythonDetector struct{}

func (pythonDetector) Priority() int { return 10 }

func (pythonDetector) CanDetect(dir string) bool {
	return fileExists(filepath.Join(dir, "pyproject.toml")) ||
		fileExists(filepath.Join(dir, "setup.py")) ||
		fileExists(filepath.Join(dir, "requirements.txt"))
}

// Detect prefers pyproject.toml, then setup.py. A folder with only
// requirements.txt uses the folder name and version "unknown".
func (pythonDetector) Detect(dir string) (Identity, bool) {
	if data, err := os.ReadFile(filepath.Join(dir, "pyproject.toml")); err == nil {
		var py pyProject
		if toml.Unmarshal(data, &py) == nil {
			name, version := py.Project.Name, py.Project.Version
			if name == "" {
				name, version = py.Tool.Poetry.Name, py.Tool.Poetry.Version
			}
			if name != "" {
				return pythonIdentity(name, version), true
			}
		}
	}

	if data, err := os.ReadFile(filepath.Join(dir, "setup.py")); err == nil {
		if name := firstMatch(setupNameRe, data); name != "" {
			return pythonIdentity(name, firstMatch(setupVersionRe, data)), true
		}
	}

	if fileExists(filepath.Join(dir, "requirements.txt")) {
		return pythonIdentity(filepath.Base(dir), ""), true
	}

	return Identity{}, false
}

func pythonIdentity(name, version string) Identity {
	version = orUnknown(version)
	return Identity{
		Type:       types.ProjectPython,
		Name:       name,
		Version:    version,
		Identifier: name + ":" + version,
	}
}
