package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/archivum/archivum/internal/types"
)

// findOrCreateHashTx lazily creates the content-addressed equivalence class
// for a digest on first observation. Membership counts are maintained by
// the file upserts; serialization per hash is provided by the enclosing
// transaction.
func findOrCreateHashTx(tx *sql.Tx, sha256 string, size int64, seenAt time.Time) error {
	_, err := tx.Exec(`INSERT INTO file_hashes (sha256, size, first_seen_at, count)
		VALUES (?, ?, ?, 0)
		ON CONFLICT(sha256) DO NOTHING`, sha256, size, tstr(seenAt))
	if err != nil {
		return fmt.Errorf("find-or-create hash: %w", err)
	}
	return nil
}

// GetHash fetches one equivalence class.
func (s *Store) GetHash(ctx context.Context, sha256 string) (types.FileHash, error) {
	var h types.FileHash
	var firstSeen string
	err := s.db.QueryRowContext(ctx,
		`SELECT sha256, size, first_seen_at, count FROM file_hashes WHERE sha256 = ?`,
		sha256).Scan(&h.SHA256, &h.Size, &firstSeen, &h.Count)
	if errors.Is(err, sql.ErrNoRows) {
		return h, ErrNotFound
	}
	if err != nil {
		return h, fmt.Errorf("get hash: %w", err)
	}
	h.FirstSeenAt = parseTime(firstSeen)
	return h, nil
}

// DuplicatedHashesForSource returns the hashes observed under sourceID that
// currently have more than one member catalog-wide. This drives post-scan
// reconciliation.
func (s *Store) DuplicatedHashesForSource(ctx context.Context, sourceID string) ([]types.FileHash, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT h.sha256, h.size, h.first_seen_at, h.count
		FROM file_hashes h
		JOIN scanned_files f ON f.sha256 = h.sha256
		WHERE f.source_id = ? AND h.count > 1
		ORDER BY h.sha256`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("duplicated hashes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []types.FileHash
	for rows.Next() {
		var h types.FileHash
		var firstSeen string
		if err := rows.Scan(&h.SHA256, &h.Size, &firstSeen, &h.Count); err != nil {
			return nil, fmt.Errorf("scan hash: %w", err)
		}
		h.FirstSeenAt = parseTime(firstSeen)
		out = append(out, h)
	}
	return out, rows.Err()
}
