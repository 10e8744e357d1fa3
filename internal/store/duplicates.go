package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/archivum/archivum/internal/types"
)

// groupColumns joins duplicate_groups with its hash for derived count and
// wasted size.
const groupColumns = `g.id, g.sha256, h.size, h.count, (h.count - 1) * h.size,
	g.status, COALESCE(g.kept_file_id, ''), g.created_at`

// UpsertDuplicateGroup ensures one group exists for the hash, preserving an
// existing group's status and kept file. Returns the group.
func (s *Store) UpsertDuplicateGroup(ctx context.Context, sha256 string) (types.DuplicateGroup, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, execErr := tx.Exec(`INSERT INTO duplicate_groups (id, sha256, status, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(sha256) DO NOTHING`,
			uuid.NewString(), sha256, types.GroupPending, tstr(nowUTC()))
		return execErr
	})
	if err != nil {
		return types.DuplicateGroup{}, fmt.Errorf("upsert duplicate group: %w", err)
	}
	return s.DuplicateGroupByHash(ctx, sha256)
}

// DuplicateGroupByHash fetches the group materializing one hash.
func (s *Store) DuplicateGroupByHash(ctx context.Context, sha256 string) (types.DuplicateGroup, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+groupColumns+`
		FROM duplicate_groups g JOIN file_hashes h ON h.sha256 = g.sha256
		WHERE g.sha256 = ?`, sha256)
	return scanGroup(row)
}

// GetDuplicateGroup fetches one group by id.
func (s *Store) GetDuplicateGroup(ctx context.Context, id string) (types.DuplicateGroup, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+groupColumns+`
		FROM duplicate_groups g JOIN file_hashes h ON h.sha256 = g.sha256
		WHERE g.id = ?`, id)
	return scanGroup(row)
}

// ListDuplicateGroups returns one page of groups, largest waste first.
func (s *Store) ListDuplicateGroups(ctx context.Context, status types.GroupStatus, page, size int) (types.Page[types.DuplicateGroup], error) {
	out := types.Page[types.DuplicateGroup]{Page: page, Size: size, Items: []types.DuplicateGroup{}}

	where := ""
	var args []any
	if status != "" {
		where = " WHERE g.status = ?"
		args = append(args, status)
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM duplicate_groups g`+where, args...).Scan(&out.TotalItems); err != nil {
		return out, fmt.Errorf("count duplicate groups: %w", err)
	}

	args = append(args, size, (page-1)*size)
	rows, err := s.db.QueryContext(ctx, `SELECT `+groupColumns+`
		FROM duplicate_groups g JOIN file_hashes h ON h.sha256 = g.sha256`+where+`
		ORDER BY (h.count - 1) * h.size DESC, g.sha256 LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return out, fmt.Errorf("list duplicate groups: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		g, scanErr := scanGroup(rows)
		if scanErr != nil {
			return out, scanErr
		}
		out.Items = append(out.Items, g)
	}
	return out, rows.Err()
}

// ResolveDuplicateGroup updates a group's review status and kept file.
func (s *Store) ResolveDuplicateGroup(ctx context.Context, id string, status types.GroupStatus, keptFileID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var kept any
		if keptFileID != "" {
			kept = keptFileID
		}
		res, err := tx.Exec(`UPDATE duplicate_groups SET status = ?, kept_file_id = ? WHERE id = ?`,
			status, kept, id)
		if err != nil {
			return fmt.Errorf("resolve group: %w", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return fmt.Errorf("group %s: %w", id, ErrNotFound)
		}
		return nil
	})
}

// DeleteDuplicateGroupByHash removes the group for a hash, if present.
// Used when the zone gate retracts an earlier grouping.
func (s *Store) DeleteDuplicateGroupByHash(ctx context.Context, sha256 string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM duplicate_groups WHERE sha256 = ?`, sha256)
		return err
	})
}

func scanGroup(row rowScanner) (types.DuplicateGroup, error) {
	var g types.DuplicateGroup
	var createdAt string
	err := row.Scan(&g.ID, &g.SHA256, &g.Size, &g.Count, &g.WastedSize,
		&g.Status, &g.KeptFileID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return g, ErrNotFound
	}
	if err != nil {
		return g, fmt.Errorf("scan duplicate group: %w", err)
	}
	g.CreatedAt = parseTime(createdAt)
	return g, nil
}
