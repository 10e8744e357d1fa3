// Package project identifies code-project roots from marker files and
// derives a stable identity for each: a canonical identifier string plus a
// content hash over the project's source files.
//
// # Detector Chain
//
// Detectors are small values implementing the Detector capability set
// (CanDetect, Detect, Priority). The chain is sorted by descending priority;
// the first detector whose CanDetect succeeds AND whose Detect returns a
// non-empty identity wins:
//
//	MAVEN, GRADLE, NPM, GO, PYTHON, RUST   priority 10
//	GIT                                    priority 5
//	GENERIC                                priority 0
//
// Detection failures are ordinary empty results, never errors; only the
// filesystem walk itself can fail.
package project

import (
	"sort"

	"github.com/archivum/archivum/internal/types"
)

// Identity is the type-specific identity of a detected project.
type Identity struct {
	Type       types.ProjectType
	Name       string
	Version    string
	GroupID    string
	GitRemote  string
	GitBranch  string
	GitCommit  string
	Identifier string
}

// Detector recognizes one project flavor in a folder.
type Detector interface {
	// CanDetect cheaply checks for the detector's marker files.
	CanDetect(dir string) bool
	// Detect derives the project identity. ok=false means the marker was
	// present but unusable (e.g. pom.xml without artifactId); the chain
	// moves on to the next detector.
	Detect(dir string) (Identity, bool)
	// Priority orders the chain; higher runs first.
	Priority() int
}

// unknownField is the placeholder for identity fields a marker file does
// not provide.
const unknownField = "unknown"

// Chain is a priority-ordered detector sequence.
type Chain struct {
	detectors []Detector
}

// NewChain builds the default chain with all built-in detectors.
func NewChain() *Chain {
	return newChain(
		mavenDetector{},
		gradleDetector{},
		npmDetector{},
		goDetector{},
		pythonDetector{},
		rustDetector{},
		gitDetector{},
		genericDetector{},
	)
}

func newChain(detectors ...Detector) *Chain {
	c := &Chain{detectors: detectors}
	sort.SliceStable(c.detectors, func(i, j int) bool {
		return c.detectors[i].Priority() > c.detectors[j].Priority()
	})
	return c
}

// Detect runs the chain over dir and returns the winning identity.
func (c *Chain) Detect(dir string) (Identity, bool) {
	for _, d := range c.detectors {
		if !d.CanDetect(dir) {
			continue
		}
		if identity, ok := d.Detect(dir); ok {
			return identity, true
		}
	}
	return Identity{}, false
}
