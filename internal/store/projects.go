package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/archivum/archivum/internal/types"
)

const projectColumns = `id, source_id, root_path, project_type, name, version,
	group_id, git_remote, git_branch, git_commit, identifier, content_hash,
	source_file_count, total_file_count, total_size_bytes, scanned_at`

// UpsertProject writes one code project, replacing any earlier record at the
// same (source, root path) from a previous scan.
func (s *Store) UpsertProject(ctx context.Context, p types.CodeProject) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return upsertProjectTx(tx, p)
	})
}

// UpsertProjectBatch writes a whole scan's project list atomically.
func (s *Store) UpsertProjectBatch(ctx context.Context, projects []types.CodeProject) error {
	if len(projects) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for i := range projects {
			if err := upsertProjectTx(tx, projects[i]); err != nil {
				return fmt.Errorf("project %s: %w", projects[i].RootPath, err)
			}
		}
		return nil
	})
}

func upsertProjectTx(tx *sql.Tx, p types.CodeProject) error {
	_, err := tx.Exec(`INSERT INTO code_projects (
			id, source_id, root_path, project_type, name, version,
			group_id, git_remote, git_branch, git_commit, identifier, content_hash,
			source_file_count, total_file_count, total_size_bytes, scanned_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(source_id, root_path) DO UPDATE SET
			project_type = excluded.project_type, name = excluded.name,
			version = excluded.version, group_id = excluded.group_id,
			git_remote = excluded.git_remote, git_branch = excluded.git_branch,
			git_commit = excluded.git_commit, identifier = excluded.identifier,
			content_hash = excluded.content_hash,
			source_file_count = excluded.source_file_count,
			total_file_count = excluded.total_file_count,
			total_size_bytes = excluded.total_size_bytes,
			scanned_at = excluded.scanned_at`,
		p.ID, p.SourceID, p.RootPath, p.Type, p.Name, p.Version,
		p.GroupID, p.GitRemote, p.GitBranch, p.GitCommit, p.Identifier, p.ContentHash,
		p.SourceFileCount, p.TotalFileCount, p.TotalSizeBytes, tstr(p.ScannedAt))
	if err != nil {
		return fmt.Errorf("upsert project: %w", err)
	}
	return nil
}

// GetProject fetches one code project by id.
func (s *Store) GetProject(ctx context.Context, id string) (types.CodeProject, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM code_projects WHERE id = ?`, id)
	return scanProject(row)
}

// ListProjects returns one page of projects, optionally narrowed to a source.
func (s *Store) ListProjects(ctx context.Context, sourceID string, page, size int) (types.Page[types.CodeProject], error) {
	out := types.Page[types.CodeProject]{Page: page, Size: size, Items: []types.CodeProject{}}

	where := ""
	var args []any
	if sourceID != "" {
		where = " WHERE source_id = ?"
		args = append(args, sourceID)
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM code_projects`+where, args...).Scan(&out.TotalItems); err != nil {
		return out, fmt.Errorf("count projects: %w", err)
	}

	args = append(args, size, (page-1)*size)
	rows, err := s.db.QueryContext(ctx, `SELECT `+projectColumns+` FROM code_projects`+where+`
		ORDER BY identifier, root_path LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return out, fmt.Errorf("list projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		p, scanErr := scanProject(rows)
		if scanErr != nil {
			return out, scanErr
		}
		out.Items = append(out.Items, p)
	}
	return out, rows.Err()
}

// GroupableProjects returns detected (non-manual) projects across all
// sources, ordered for deterministic grouping. Manual entries never
// participate in duplicate analysis.
func (s *Store) GroupableProjects(ctx context.Context) ([]types.CodeProject, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+projectColumns+` FROM code_projects
		WHERE version != ? ORDER BY identifier, scanned_at, id`, types.ManualVersion)
	if err != nil {
		return nil, fmt.Errorf("groupable projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []types.CodeProject
	for rows.Next() {
		p, scanErr := scanProject(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ReplaceProjectGroups swaps the whole project-duplicate grouping in one
// transaction. Grouping is recomputed from scratch after each ingest, but a
// group whose identifier survives the regrouping keeps its previous id and
// review status, so user resolutions are not lost.
func (s *Store) ReplaceProjectGroups(ctx context.Context, groups []types.CodeProjectDuplicateGroup) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		prev, err := previousProjectGroups(tx)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM project_duplicate_members`); err != nil {
			return fmt.Errorf("clear project members: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM project_duplicate_groups`); err != nil {
			return fmt.Errorf("clear project groups: %w", err)
		}
		for _, g := range groups {
			if p, ok := prev[g.Identifier]; ok {
				g.ID = p.id
				g.Status = p.status
			}
			if _, err := tx.Exec(`INSERT INTO project_duplicate_groups
					(id, identifier, duplicate_type, similarity_percent, diff_complexity, status, created_at)
				VALUES (?,?,?,?,?,?,?)`,
				g.ID, g.Identifier, g.Type, g.SimilarityPercent, g.DiffComplexity,
				g.Status, tstr(g.CreatedAt)); err != nil {
				return fmt.Errorf("insert project group: %w", err)
			}
			for _, m := range g.Members {
				if _, err := tx.Exec(`INSERT INTO project_duplicate_members
						(group_id, project_id, is_primary) VALUES (?,?,?)`,
					g.ID, m.ProjectID, m.IsPrimary); err != nil {
					return fmt.Errorf("insert project member: %w", err)
				}
			}
		}
		return nil
	})
}

type prevProjectGroup struct {
	id     string
	status types.GroupStatus
}

func previousProjectGroups(tx *sql.Tx) (map[string]prevProjectGroup, error) {
	rows, err := tx.Query(`SELECT identifier, id, status FROM project_duplicate_groups`)
	if err != nil {
		return nil, fmt.Errorf("load previous project groups: %w", err)
	}
	defer func() { _ = rows.Close() }()

	prev := make(map[string]prevProjectGroup)
	for rows.Next() {
		var identifier string
		var p prevProjectGroup
		if err := rows.Scan(&identifier, &p.id, &p.status); err != nil {
			return nil, fmt.Errorf("scan previous project group: %w", err)
		}
		prev[identifier] = p
	}
	return prev, rows.Err()
}

// ListProjectGroups returns all project duplicate groups with their members.
func (s *Store) ListProjectGroups(ctx context.Context) ([]types.CodeProjectDuplicateGroup, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, identifier, duplicate_type,
			similarity_percent, diff_complexity, status, created_at
		FROM project_duplicate_groups ORDER BY identifier, id`)
	if err != nil {
		return nil, fmt.Errorf("list project groups: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []types.CodeProjectDuplicateGroup
	for rows.Next() {
		var g types.CodeProjectDuplicateGroup
		var createdAt string
		if err := rows.Scan(&g.ID, &g.Identifier, &g.Type, &g.SimilarityPercent,
			&g.DiffComplexity, &g.Status, &createdAt); err != nil {
			return nil, fmt.Errorf("scan project group: %w", err)
		}
		g.CreatedAt = parseTime(createdAt)
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		members, err := s.projectGroupMembers(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Members = members
	}
	return out, nil
}

// ResolveProjectGroup updates the review status of one project group.
func (s *Store) ResolveProjectGroup(ctx context.Context, id string, status types.GroupStatus) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(`UPDATE project_duplicate_groups SET status = ? WHERE id = ?`, status, id)
		if err != nil {
			return fmt.Errorf("resolve project group: %w", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return fmt.Errorf("project group %s: %w", id, ErrNotFound)
		}
		return nil
	})
}

func (s *Store) projectGroupMembers(ctx context.Context, groupID string) ([]types.CodeProjectDuplicateMember, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT group_id, project_id, is_primary
		FROM project_duplicate_members WHERE group_id = ?
		ORDER BY is_primary DESC, project_id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("project members: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []types.CodeProjectDuplicateMember
	for rows.Next() {
		var m types.CodeProjectDuplicateMember
		if err := rows.Scan(&m.GroupID, &m.ProjectID, &m.IsPrimary); err != nil {
			return nil, fmt.Errorf("scan project member: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanProject(row rowScanner) (types.CodeProject, error) {
	var p types.CodeProject
	var scannedAt string
	err := row.Scan(&p.ID, &p.SourceID, &p.RootPath, &p.Type, &p.Name, &p.Version,
		&p.GroupID, &p.GitRemote, &p.GitBranch, &p.GitCommit, &p.Identifier,
		&p.ContentHash, &p.SourceFileCount, &p.TotalFileCount, &p.TotalSizeBytes,
		&scannedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	if err != nil {
		return p, fmt.Errorf("scan project: %w", err)
	}
	p.ScannedAt = parseTime(scannedAt)
	return p, nil
}
