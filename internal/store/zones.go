package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/archivum/archivum/internal/types"
)

// UpsertFolderZone assigns a zone to one folder, replacing any previous
// assignment for the same (source, folder).
func (s *Store) UpsertFolderZone(ctx context.Context, fz types.FolderZone) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO folder_zones (source_id, folder_path, zone, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(source_id, folder_path) DO UPDATE SET
				zone = excluded.zone, updated_at = excluded.updated_at`,
			fz.SourceID, fz.FolderPath, fz.Zone, tstr(fz.UpdatedAt))
		if err != nil {
			return fmt.Errorf("upsert folder zone: %w", err)
		}
		return nil
	})
}

// LoadZones returns all explicit zone assignments for a source keyed by
// folder path. Inheritance is resolved by the zone package, not here.
func (s *Store) LoadZones(ctx context.Context, sourceID string) (map[string]types.Zone, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT folder_path, zone FROM folder_zones WHERE source_id = ?`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("load zones: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]types.Zone)
	for rows.Next() {
		var path string
		var zone types.Zone
		if err := rows.Scan(&path, &zone); err != nil {
			return nil, fmt.Errorf("scan zone: %w", err)
		}
		out[path] = zone
	}
	return out, rows.Err()
}

// ListZones returns all explicit zone assignments for a source, stable by
// folder path.
func (s *Store) ListZones(ctx context.Context, sourceID string) ([]types.FolderZone, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_id, folder_path, zone, updated_at
		FROM folder_zones WHERE source_id = ? ORDER BY folder_path`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("list zones: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []types.FolderZone
	for rows.Next() {
		var fz types.FolderZone
		var updatedAt string
		if err := rows.Scan(&fz.SourceID, &fz.FolderPath, &fz.Zone, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan zone: %w", err)
		}
		fz.UpdatedAt = parseTime(updatedAt)
		out = append(out, fz)
	}
	return out, rows.Err()
}
