package dedup

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/archivum/archivum/internal/project"
	"github.com/archivum/archivum/internal/types"
)

// ReconcileProjects regroups code projects catalog-wide. Projects sharing an
// identifier form one group, classified as:
//
//	EXACT                     all members share a content hash
//	DIFFERENT_VERSION         members declare different versions
//	SAME_PROJECT_DIFF_CONTENT same declared version, diverging content
//
// Manual projects are excluded upstream. The previous grouping generation is
// replaced wholesale.
func (e *Engine) ReconcileProjects(ctx context.Context) error {
	projects, err := e.store.GroupableProjects(ctx)
	if err != nil {
		return err
	}

	var groups []types.CodeProjectDuplicateGroup
	for start := 0; start < len(projects); {
		end := start
		for end < len(projects) && projects[end].Identifier == projects[start].Identifier {
			end++
		}
		if end-start > 1 {
			g, classifyErr := e.classify(ctx, projects[start:end])
			if classifyErr != nil {
				return classifyErr
			}
			groups = append(groups, g)
		}
		start = end
	}

	if err := e.store.ReplaceProjectGroups(ctx, groups); err != nil {
		return err
	}
	e.log.Info("reconciled project duplicates", "projects", len(projects), "groups", len(groups))
	return nil
}

// classify builds one group from >=2 same-identifier projects. Members arrive
// ordered by scan time; the oldest copy is primary.
func (e *Engine) classify(ctx context.Context, members []types.CodeProject) (types.CodeProjectDuplicateGroup, error) {
	g := types.CodeProjectDuplicateGroup{
		ID:         uuid.NewString(),
		Identifier: members[0].Identifier,
		Status:     types.GroupPending,
		CreatedAt:  time.Now().UTC(),
	}
	for i, p := range members {
		g.Members = append(g.Members, types.CodeProjectDuplicateMember{
			GroupID:   g.ID,
			ProjectID: p.ID,
			IsPrimary: i == 0,
		})
	}

	sameHash := true
	sameVersion := true
	for _, p := range members[1:] {
		if p.ContentHash != members[0].ContentHash {
			sameHash = false
		}
		if p.Version != members[0].Version {
			sameVersion = false
		}
	}

	switch {
	case sameHash:
		g.Type = types.DuplicateExact
		g.SimilarityPercent = 100
	case !sameVersion:
		g.Type = types.DuplicateDiffVersion
	default:
		g.Type = types.DuplicateSameProjectDiff
		sim, err := e.similarity(ctx, members)
		if err != nil {
			return g, err
		}
		g.SimilarityPercent = sim
		g.DiffComplexity = complexityFor(maxFileCountDelta(members))
	}
	return g, nil
}

// similarity is the worst pairwise Jaccard index over the members'
// source-file hash sets, as a percentage. When a member's files are not in
// the catalog (projects can be ingested before their batches), the
// file-count approximation stands in.
func (e *Engine) similarity(ctx context.Context, members []types.CodeProject) (float64, error) {
	sets := make([]map[string]struct{}, len(members))
	for i, p := range members {
		entries, err := e.store.FileHashesUnder(ctx, p.SourceID, p.RootPath)
		if err != nil {
			return 0, err
		}
		set := make(map[string]struct{})
		for _, en := range entries {
			if project.IsSourceExtension(en.Extension) {
				set[en.SHA256] = struct{}{}
			}
		}
		if len(set) == 0 {
			return 100 - maxFileCountDelta(members), nil
		}
		sets[i] = set
	}

	worst := 100.0
	for i := range sets {
		for j := i + 1; j < len(sets); j++ {
			if s := jaccard(sets[i], sets[j]); s < worst {
				worst = s
			}
		}
	}
	return worst, nil
}

// jaccard is |a∩b| / |a∪b| as a percentage.
func jaccard(a, b map[string]struct{}) float64 {
	inter := 0
	for h := range a {
		if _, ok := b[h]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 100
	}
	return float64(inter) / float64(union) * 100
}

// maxFileCountDelta is the worst pairwise total-file-count divergence within
// the group, as a percentage of the larger member.
func maxFileCountDelta(members []types.CodeProject) float64 {
	var worst float64
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			a, b := members[i].TotalFileCount, members[j].TotalFileCount
			if a < b {
				a, b = b, a
			}
			if a == 0 {
				continue
			}
			d := float64(a-b) / float64(a) * 100
			if d > worst {
				worst = d
			}
		}
	}
	return worst
}

func complexityFor(deltaPercent float64) types.DiffComplexity {
	switch {
	case deltaPercent < 5:
		return types.DiffTrivial
	case deltaPercent < 15:
		return types.DiffSimple
	case deltaPercent < 30:
		return types.DiffMedium
	default:
		return types.DiffComplex
	}
}
