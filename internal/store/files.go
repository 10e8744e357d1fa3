package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/archivum/archivum/internal/types"
)

const fileColumns = `id, source_id, path, name, extension, size, sha256, mime_type,
	created_at, modified_at, accessed_at, scanned_at, exif_json, status, is_duplicate`

// FileFilter narrows ListFiles. Zero values mean "no constraint".
type FileFilter struct {
	SourceID    string
	Status      types.FileStatus
	Extension   string
	SHA256      string
	IsDuplicate *bool
	NameLike    string
}

// UpsertFileBatch writes one batch atomically: each record is upserted by
// (source_id, path) and its hash is resolved to a file_hashes row via
// find-or-create. Any schema violation rejects the whole batch.
func (s *Store) UpsertFileBatch(ctx context.Context, files []types.ScannedFile) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for i := range files {
			if err := upsertFileTx(tx, &files[i]); err != nil {
				return fmt.Errorf("file %s: %w", files[i].Path, err)
			}
		}
		return nil
	})
}

func upsertFileTx(tx *sql.Tx, f *types.ScannedFile) error {
	if err := findOrCreateHashTx(tx, f.SHA256, f.Size, f.ScannedAt); err != nil {
		return err
	}

	var exifJSON any
	if f.Exif != nil {
		data, err := json.Marshal(f.Exif)
		if err != nil {
			return fmt.Errorf("encode exif: %w", err)
		}
		exifJSON = string(data)
	}

	// An upsert replacing an existing (source_id, path) row must not leak
	// the old hash's membership count.
	var oldHash string
	err := tx.QueryRow(`SELECT sha256 FROM scanned_files WHERE source_id = ? AND path = ?`,
		f.SourceID, f.Path).Scan(&oldHash)
	replaced := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	_, err = tx.Exec(`INSERT INTO scanned_files (
			id, source_id, path, name, extension, size, sha256, mime_type,
			created_at, modified_at, accessed_at, scanned_at, exif_json, status, is_duplicate)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(source_id, path) DO UPDATE SET
			name = excluded.name, extension = excluded.extension,
			size = excluded.size, sha256 = excluded.sha256,
			mime_type = excluded.mime_type, created_at = excluded.created_at,
			modified_at = excluded.modified_at, accessed_at = excluded.accessed_at,
			scanned_at = excluded.scanned_at, exif_json = excluded.exif_json,
			status = excluded.status, is_duplicate = excluded.is_duplicate`,
		f.ID, f.SourceID, f.Path, f.Name, f.Extension, f.Size, f.SHA256, f.MimeType,
		tstr(f.CreatedAt), tstr(f.ModifiedAt), tstr(f.AccessedAt), tstr(f.ScannedAt),
		exifJSON, f.Status, f.IsDuplicate)
	if err != nil {
		return err
	}

	if replaced && oldHash != f.SHA256 {
		if _, err := tx.Exec(`UPDATE file_hashes SET count = count - 1 WHERE sha256 = ?`, oldHash); err != nil {
			return err
		}
	}
	if !replaced || oldHash != f.SHA256 {
		if _, err := tx.Exec(`UPDATE file_hashes SET count = count + 1 WHERE sha256 = ?`, f.SHA256); err != nil {
			return err
		}
	}
	return nil
}

// ListFiles returns one page of files matching the filter, with the total
// match count for pagination.
func (s *Store) ListFiles(ctx context.Context, filter FileFilter, page, size int) (types.Page[types.ScannedFile], error) {
	out := types.Page[types.ScannedFile]{Page: page, Size: size, Items: []types.ScannedFile{}}

	where, args := filter.clauses()
	countQuery := `SELECT COUNT(*) FROM scanned_files` + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&out.TotalItems); err != nil {
		return out, fmt.Errorf("count files: %w", err)
	}

	query := `SELECT ` + fileColumns + ` FROM scanned_files` + where +
		` ORDER BY path LIMIT ? OFFSET ?`
	args = append(args, size, (page-1)*size)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return out, fmt.Errorf("list files: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		f, scanErr := scanFile(rows)
		if scanErr != nil {
			return out, scanErr
		}
		out.Items = append(out.Items, f)
	}
	return out, rows.Err()
}

func (f FileFilter) clauses() (string, []any) {
	var conds []string
	var args []any
	if f.SourceID != "" {
		conds = append(conds, "source_id = ?")
		args = append(args, f.SourceID)
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, f.Status)
	}
	if f.Extension != "" {
		conds = append(conds, "extension = ?")
		args = append(args, f.Extension)
	}
	if f.SHA256 != "" {
		conds = append(conds, "sha256 = ?")
		args = append(args, f.SHA256)
	}
	if f.IsDuplicate != nil {
		conds = append(conds, "is_duplicate = ?")
		args = append(args, *f.IsDuplicate)
	}
	if f.NameLike != "" {
		conds = append(conds, "name LIKE ?")
		args = append(args, "%"+f.NameLike+"%")
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// GetFile fetches one file by id.
func (s *Store) GetFile(ctx context.Context, id string) (types.ScannedFile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM scanned_files WHERE id = ?`, id)
	return scanFile(row)
}

// UpdateFileStatus sets status (and optionally clears or sets the duplicate
// flag) on one file.
func (s *Store) UpdateFileStatus(ctx context.Context, id string, status types.FileStatus, isDuplicate *bool) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var res sql.Result
		var err error
		if isDuplicate != nil {
			res, err = tx.Exec(`UPDATE scanned_files SET status = ?, is_duplicate = ? WHERE id = ?`,
				status, *isDuplicate, id)
		} else {
			res, err = tx.Exec(`UPDATE scanned_files SET status = ? WHERE id = ?`, status, id)
		}
		if err != nil {
			return fmt.Errorf("update file: %w", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return fmt.Errorf("file %s: %w", id, ErrNotFound)
		}
		return nil
	})
}

// FilesByHash returns every file carrying the digest, oldest scan first
// with id as tiebreaker (the kept-member ordering).
func (s *Store) FilesByHash(ctx context.Context, sha256 string) ([]types.ScannedFile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+fileColumns+` FROM scanned_files WHERE sha256 = ? ORDER BY scanned_at, id`, sha256)
	if err != nil {
		return nil, fmt.Errorf("files by hash: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []types.ScannedFile
	for rows.Next() {
		f, scanErr := scanFile(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// HashExt pairs a file's digest with its extension.
type HashExt struct {
	SHA256    string
	Extension string
}

// FileHashesUnder returns (sha256, extension) for every file of one source
// inside folder, the folder itself included. Matching is by path segment, so
// /code/app never captures /code/app2.
func (s *Store) FileHashesUnder(ctx context.Context, sourceID, folder string) ([]HashExt, error) {
	prefix := strings.TrimRight(folder, "/") + "/"
	rows, err := s.db.QueryContext(ctx,
		`SELECT sha256, extension FROM scanned_files
		 WHERE source_id = ? AND (path = ? OR substr(path, 1, ?) = ?)`,
		sourceID, folder, len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("hashes under %s: %w", folder, err)
	}
	defer func() { _ = rows.Close() }()

	var out []HashExt
	for rows.Next() {
		var he HashExt
		if err := rows.Scan(&he.SHA256, &he.Extension); err != nil {
			return nil, err
		}
		out = append(out, he)
	}
	return out, rows.Err()
}

// MarkDuplicates flags the given files as duplicates; every other member of
// the hash keeps its state.
func (s *Store) MarkDuplicates(ctx context.Context, fileIDs []string) error {
	if len(fileIDs) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, id := range fileIDs {
			if _, err := tx.Exec(`UPDATE scanned_files SET is_duplicate = 1, status = ? WHERE id = ?`,
				types.FileDuplicate, id); err != nil {
				return fmt.Errorf("mark duplicate %s: %w", id, err)
			}
		}
		return nil
	})
}

// ClearDuplicateFlags resets the duplicate marking for every file carrying
// the digest (used when a zone change retracts a grouping). Covers both
// server-side DUPLICATE status and scanner-provided intra-scan hints.
func (s *Store) ClearDuplicateFlags(ctx context.Context, sha256 string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE scanned_files SET is_duplicate = 0,
			status = CASE WHEN status = ? THEN ? ELSE status END
			WHERE sha256 = ? AND (is_duplicate = 1 OR status = ?)`,
			types.FileDuplicate, types.FileHashed, sha256, types.FileDuplicate)
		return err
	})
}

func scanFile(row rowScanner) (types.ScannedFile, error) {
	var f types.ScannedFile
	var createdAt, modifiedAt, accessedAt, scannedAt string
	var exifJSON sql.NullString
	err := row.Scan(&f.ID, &f.SourceID, &f.Path, &f.Name, &f.Extension, &f.Size,
		&f.SHA256, &f.MimeType, &createdAt, &modifiedAt, &accessedAt, &scannedAt,
		&exifJSON, &f.Status, &f.IsDuplicate)
	if errors.Is(err, sql.ErrNoRows) {
		return f, ErrNotFound
	}
	if err != nil {
		return f, fmt.Errorf("scan file: %w", err)
	}
	f.CreatedAt = parseTime(createdAt)
	f.ModifiedAt = parseTime(modifiedAt)
	f.AccessedAt = parseTime(accessedAt)
	f.ScannedAt = parseTime(scannedAt)
	if exifJSON.Valid && exifJSON.String != "" {
		var exif types.ExifData
		if json.Unmarshal([]byte(exifJSON.String), &exif) == nil {
			f.Exif = &exif
		}
	}
	return f, nil
}
