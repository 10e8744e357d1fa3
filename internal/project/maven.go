package project

import (
	"encoding/xml"
	"os"
	"path/filepath"

	"github.com/archivum/archivum/internal/types"
)

// pomProject mirrors the subset of pom.xml needed for identity derivation.
type pomProject struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
	Parent     struct {
		GroupID    string `xml:"groupId"`
		ArtifactID string `xml:"artifactId"`
		Version    string `xml:"version"`
	} `xml:"parent"`
}

type mavenDetector struct{}

func (mavenDetector) Priority() int { return 10 }

func (mavenDetector) CanDetect(dir string) bool {
	return fileExists(filepath.Join(dir, "pom.xml"))
}

// Detect parses pom.xml. groupId and version fall back to the <parent>
// block; a missing artifactId makes the pom unusable.
func (mavenDetector) Detect(dir string) (Identity, bool) {
	data, err := os.ReadFile(filepath.Join(dir, "pom.xml"))
	if err != nil {
		return Identity{}, false
	}

	var pom pomProject
	if err := xml.Unmarshal(data, &pom); err != nil {
		return Identity{}, false
	}
	if pom.ArtifactID == "" {
		return Identity{}, false
	}

	groupID := pom.GroupID
	if groupID == "" {
		groupID = pom.Parent.GroupID
	}
	version := pom.Version
	if version == "" {
		version = pom.Parent.Version
	}

	return Identity{
		Type:       types.ProjectMaven,
		Name:       pom.ArtifactID,
		Version:    version,
		GroupID:    groupID,
		Identifier: orUnknown(groupID) + ":" + pom.ArtifactID + ":" + orUnknown(version),
	}, true
}

// orUnknown substitutes the literal "unknown" for empty identity fields.
func orUnknown(s string) string {
	if s == "" {
		return unknownField
	}
	return s
}

// fileExists reports whether path exists and is a regular file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// dirExists reports whether path exists and is a directory.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
