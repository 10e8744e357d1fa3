package project

import (
	"path/filepath"
	"strings"

	git "github.com/go-git/go-git/v5"

	"github.com/archivum/archivum/internal/types"
)

// shortHashLen matches the conventional abbreviated commit length.
const shortHashLen = 7

type gitDetector struct{}

func (gitDetector) Priority() int { return 5 }

func (gitDetector) CanDetect(dir string) bool {
	return dirExists(filepath.Join(dir, ".git"))
}

// Detect opens the repository and probes the origin remote, the HEAD branch,
// and the abbreviated HEAD commit. Each probe failure yields a safe default
// (remote "unknown", branch "main", no commit) but never fails detection.
func (gitDetector) Detect(dir string) (Identity, bool) {
	remote := unknownField
	branch := "main"
	commit := ""

	if repo, err := git.PlainOpen(dir); err == nil {
		if r, remoteErr := repo.Remote("origin"); remoteErr == nil {
			if urls := r.Config().URLs; len(urls) > 0 && urls[0] != "" {
				remote = urls[0]
			}
		}
		if head, headErr := repo.Head(); headErr == nil {
			if head.Name().IsBranch() {
				branch = head.Name().Short()
			}
			hash := head.Hash().String()
			if len(hash) >= shortHashLen {
				commit = hash[:shortHashLen]
			}
		}
	}

	name := repoName(remote)
	if name == "" {
		name = filepath.Base(dir)
	}

	return Identity{
		Type:       types.ProjectGeneric,
		Name:       name,
		GitRemote:  remote,
		GitBranch:  branch,
		GitCommit:  commit,
		Identifier: remote + "@" + branch,
	}, true
}

// repoName extracts the repository name from a remote URL:
// "git@host:org/repo.git" and "https://host/org/repo.git" both yield "repo".
func repoName(remote string) string {
	if remote == unknownField {
		return ""
	}
	trimmed := strings.TrimSuffix(remote, ".git")
	trimmed = strings.TrimRight(trimmed, "/")
	if i := strings.LastIndexAny(trimmed, "/:"); i >= 0 {
		trimmed = trimmed[i+1:]
	}
	return trimmed
}
