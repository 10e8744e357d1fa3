package project

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/archivum/archivum/internal/types"
)

// scanExcludes are directory basenames skipped during project discovery and
// project file collection: build output, dependency caches, VCS internals,
// and editor metadata.
var scanExcludes = map[string]bool{
	"target": true, "build": true, "out": true, "dist": true,
	".gradle": true, "node_modules": true, "vendor": true,
	".venv": true, "venv": true, "__pycache__": true,
	".idea": true, ".vscode": true, ".eclipse": true,
	".DS_Store": true, "Thumbs.db": true,
	".git": true, ".svn": true, ".hg": true,
}

// emptyContentHash is the content hash of a project with no known source
// file hashes.
const emptyContentHash = "empty"

// Scanner discovers code projects in a scanned tree. The path→sha256 map is
// populated by the file scan; source files missing from it simply do not
// contribute to the content hash.
type Scanner struct {
	chain  *Chain
	hashes map[string]string
}

// NewScanner creates a project Scanner over the given hash map.
func NewScanner(chain *Chain, hashes map[string]string) *Scanner {
	return &Scanner{chain: chain, hashes: hashes}
}

// Scan walks root and returns all detected projects. A detected project
// subtree is pruned from further search: nested projects are never reported.
func (s *Scanner) Scan(root, sourceID string) []types.CodeProject {
	var projects []types.CodeProject
	s.scanDir(root, sourceID, &projects)
	return projects
}

func (s *Scanner) scanDir(dir, sourceID string, projects *[]types.CodeProject) {
	if identity, ok := s.chain.Detect(dir); ok {
		*projects = append(*projects, s.build(dir, sourceID, identity))
		return // outermost root wins; never descend into a project
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() || scanExcludes[entry.Name()] {
			continue
		}
		s.scanDir(filepath.Join(dir, entry.Name()), sourceID, projects)
	}
}

// build collects the project's files and assembles the catalog record.
func (s *Scanner) build(root, sourceID string, identity Identity) types.CodeProject {
	totalFiles, sourceFiles, totalSize, sourceHashes := s.collect(root)

	return types.CodeProject{
		ID:              uuid.NewString(),
		SourceID:        sourceID,
		RootPath:        root,
		Type:            identity.Type,
		Name:            identity.Name,
		Version:         identity.Version,
		GroupID:         identity.GroupID,
		GitRemote:       identity.GitRemote,
		GitBranch:       identity.GitBranch,
		GitCommit:       identity.GitCommit,
		Identifier:      identity.Identifier,
		ContentHash:     ContentHash(sourceHashes),
		SourceFileCount: sourceFiles,
		TotalFileCount:  totalFiles,
		TotalSizeBytes:  totalSize,
		ScannedAt:       time.Now().UTC(),
	}
}

// collect re-walks the project root with the scan exclusions, counting all
// files, source files, and bytes, and gathering known source-file hashes.
func (s *Scanner) collect(root string) (totalFiles, sourceFiles, totalSize int64, sourceHashes []string) {
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are simply not counted
		}
		if d.IsDir() {
			if path != root && scanExcludes[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		totalFiles++
		if info, infoErr := d.Info(); infoErr == nil {
			totalSize += info.Size()
		}
		if sourceExtensions[extensionOf(d.Name())] {
			sourceFiles++
			if hash, ok := s.hashes[path]; ok {
				sourceHashes = append(sourceHashes, hash)
			}
		}
		return nil
	})
	return totalFiles, sourceFiles, totalSize, sourceHashes
}

// ContentHash derives the project content hash: the SHA-256 of the
// lexicographically sorted source-file hex hashes concatenated as ASCII.
// An empty hash set yields the literal "empty".
func ContentHash(sourceHashes []string) string {
	if len(sourceHashes) == 0 {
		return emptyContentHash
	}
	sorted := make([]string, len(sourceHashes))
	copy(sorted, sourceHashes)
	sort.Strings(sorted)

	hasher := sha256.New()
	for _, h := range sorted {
		hasher.Write([]byte(h))
	}
	return hex.EncodeToString(hasher.Sum(nil))
}
