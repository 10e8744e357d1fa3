package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/archivum/archivum/internal/types"
)

// Sentinel errors shared by the repositories.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	ErrBadState = errors.New("invalid state")
)

const sourceColumns = `id, name, type, root_path, COALESCE(parent_source_id, ''), status,
	total_files, total_size, processed_files, processed_size,
	mount_point, filesystem, capacity_bytes, used_bytes, volume_label,
	disk_uuid, partition_uuid, serial_number, physical_label, notes,
	created_at, updated_at`

// InsertSource persists a new source row.
func (s *Store) InsertSource(ctx context.Context, src types.Source) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return insertSourceTx(tx, src)
	})
}

func insertSourceTx(tx *sql.Tx, src types.Source) error {
	var parent any
	if src.ParentSourceID != "" {
		parent = src.ParentSourceID
	}
	_, err := tx.Exec(`INSERT INTO sources (
			id, name, type, root_path, parent_source_id, status,
			total_files, total_size, processed_files, processed_size,
			mount_point, filesystem, capacity_bytes, used_bytes, volume_label,
			disk_uuid, partition_uuid, serial_number, physical_label, notes,
			created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		src.ID, src.Name, src.Type, src.RootPath, parent, src.Status,
		src.TotalFiles, src.TotalSize, src.ProcessedFiles, src.ProcessedSize,
		src.Physical.MountPoint, src.Physical.Filesystem, src.Physical.CapacityBytes,
		src.Physical.UsedBytes, src.Physical.VolumeLabel, src.Physical.DiskUUID,
		src.Physical.PartitionUUID, src.Physical.SerialNumber,
		src.Physical.PhysicalLabel, src.Physical.Notes,
		tstr(src.CreatedAt), tstr(src.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert source: %w", err)
	}
	return nil
}

// GetSource fetches one source by id.
func (s *Store) GetSource(ctx context.Context, id string) (types.Source, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sourceColumns+` FROM sources WHERE id = ?`, id)
	return scanSource(row)
}

// ListSources returns all sources ordered by creation time.
func (s *Store) ListSources(ctx context.Context) ([]types.Source, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sourceColumns+` FROM sources ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []types.Source
	for rows.Next() {
		src, scanErr := scanSource(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

// UpdateSourceStatus transitions a source and records final counters.
func (s *Store) UpdateSourceStatus(ctx context.Context, id string, status types.SourceStatus, totalFiles, totalSize int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(`UPDATE sources SET status = ?, total_files = ?, total_size = ?,
				processed_files = ?, processed_size = ?, updated_at = ?
			WHERE id = ?`,
			status, totalFiles, totalSize, totalFiles, totalSize, tstr(nowUTC()), id)
		if err != nil {
			return fmt.Errorf("update source: %w", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return fmt.Errorf("source %s: %w", id, ErrNotFound)
		}
		return nil
	})
}

// DeleteSource removes a source and, by cascade, its files, folder zones,
// and code projects. Hash member counts are rebuilt for affected hashes.
func (s *Store) DeleteSource(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(`DELETE FROM sources WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete source: %w", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return fmt.Errorf("source %s: %w", id, ErrNotFound)
		}
		// Recount hash membership and drop groups that fell under 2.
		if _, err := tx.Exec(`UPDATE file_hashes SET count =
				(SELECT COUNT(*) FROM scanned_files WHERE scanned_files.sha256 = file_hashes.sha256)`); err != nil {
			return fmt.Errorf("recount hashes: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM duplicate_groups WHERE sha256 IN
				(SELECT sha256 FROM file_hashes WHERE count < 2)`); err != nil {
			return fmt.Errorf("prune duplicate groups: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM file_hashes WHERE count = 0`); err != nil {
			return fmt.Errorf("prune hashes: %w", err)
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (types.Source, error) {
	var src types.Source
	var createdAt, updatedAt string
	err := row.Scan(
		&src.ID, &src.Name, &src.Type, &src.RootPath, &src.ParentSourceID, &src.Status,
		&src.TotalFiles, &src.TotalSize, &src.ProcessedFiles, &src.ProcessedSize,
		&src.Physical.MountPoint, &src.Physical.Filesystem, &src.Physical.CapacityBytes,
		&src.Physical.UsedBytes, &src.Physical.VolumeLabel, &src.Physical.DiskUUID,
		&src.Physical.PartitionUUID, &src.Physical.SerialNumber,
		&src.Physical.PhysicalLabel, &src.Physical.Notes,
		&createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return src, ErrNotFound
	}
	if err != nil {
		return src, fmt.Errorf("scan source: %w", err)
	}
	src.CreatedAt = parseTime(createdAt)
	src.UpdatedAt = parseTime(updatedAt)
	return src, nil
}
