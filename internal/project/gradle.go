package project

import (
	"os"
	"path/filepath"
	"regexp"

	"github.com/archivum/archivum/internal/types"
)

var (
	gradleGroupRe   = regexp.MustCompile(`(?m)^\s*group\s*=?\s*["']([^"']+)["']`)
	gradleVersionRe = regexp.MustCompile(`(?m)^\s*version\s*=?\s*["']([^"']+)["']`)
	gradleNameRe    = regexp.MustCompile(`(?m)rootProject\.name\s*=\s*["']([^"']+)["']`)
)

type gradleDetector struct{}

func (gradleDetector) Priority() int { return 10 }

func (gradleDetector) CanDetect(dir string) bool {
	return fileExists(filepath.Join(dir, "build.gradle")) ||
		fileExists(filepath.Join(dir, "build.gradle.kts"))
}

// Detect extracts group and version from the build script and the project
// name from settings.gradle[.kts], falling back to the folder name.
func (gradleDetector) Detect(dir string) (Identity, bool) {
	build := readFirst(
		filepath.Join(dir, "build.gradle"),
		filepath.Join(dir, "build.gradle.kts"),
	)
	if build == nil {
		return Identity{}, false
	}

	group := firstMatch(gradleGroupRe, build)
	version := firstMatch(gradleVersionRe, build)

	name := ""
	if settings := readFirst(
		filepath.Join(dir, "settings.gradle"),
		filepath.Join(dir, "settings.gradle.kts"),
	); settings != nil {
		name = firstMatch(gradleNameRe, settings)
	}
	if name == "" {
		name = filepath.Base(dir)
	}

	return Identity{
		Type:       types.ProjectGradle,
		Name:       name,
		Version:    version,
		GroupID:    group,
		Identifier: orUnknown(group) + ":" + name + ":" + orUnknown(version),
	}, true
}

// readFirst returns the contents of the first readable path, or nil.
func readFirst(paths ...string) []byte {
	for _, p := range paths {
		if data, err := os.ReadFile(p); err == nil {
			return data
		}
	}
	return nil
}

// firstMatch returns the first capture group of re in data, or "".
func firstMatch(re *regexp.Regexp, data []byte) string {
	if m := re.FindSubmatch(data); m != nil {
		return string(m[1])
	}
	return ""
}
