// Package store persists the catalog: sources, scanned files, content
// hashes, duplicate groups, folder zones, and code projects.
//
// The store is a thin repository layer over SQLite (modernc driver, pure
// Go). All writes go through explicit transactions; relationships are
// owned-entity foreign keys with cascade deletes from Source, never
// implicit navigation. Timestamps are stored as RFC 3339 text.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // sqlite driver for database/sql
)

// Store is the catalog database handle. Safe for concurrent use; SQLite
// serializes writers internally and busy_timeout absorbs short contention.
type Store struct {
	db *sql.DB
}

// Open opens (and migrates) the catalog database at path. Use ":memory:"
// for an ephemeral store in tests.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection sidesteps table-lock races between writers and
	// keeps :memory: databases coherent.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// withTx runs fn inside a transaction, committing on nil and rolling back
// on error.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS sources (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	type             TEXT NOT NULL,
	root_path        TEXT NOT NULL,
	parent_source_id TEXT REFERENCES sources(id) ON DELETE SET NULL,
	status           TEXT NOT NULL,
	total_files      INTEGER NOT NULL DEFAULT 0,
	total_size       INTEGER NOT NULL DEFAULT 0,
	processed_files  INTEGER NOT NULL DEFAULT 0,
	processed_size   INTEGER NOT NULL DEFAULT 0,
	mount_point      TEXT NOT NULL DEFAULT '',
	filesystem       TEXT NOT NULL DEFAULT '',
	capacity_bytes   INTEGER NOT NULL DEFAULT 0,
	used_bytes       INTEGER NOT NULL DEFAULT 0,
	volume_label     TEXT NOT NULL DEFAULT '',
	disk_uuid        TEXT NOT NULL DEFAULT '',
	partition_uuid   TEXT NOT NULL DEFAULT '',
	serial_number    TEXT NOT NULL DEFAULT '',
	physical_label   TEXT NOT NULL DEFAULT '',
	notes            TEXT NOT NULL DEFAULT '',
	created_at       TEXT NOT NULL,
	updated_at       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sources_parent ON sources(parent_source_id);
CREATE INDEX IF NOT EXISTS idx_sources_status ON sources(status);

CREATE TABLE IF NOT EXISTS file_hashes (
	sha256        TEXT PRIMARY KEY,
	size          INTEGER NOT NULL,
	first_seen_at TEXT NOT NULL,
	count         INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS scanned_files (
	id           TEXT PRIMARY KEY,
	source_id    TEXT NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
	path         TEXT NOT NULL,
	name         TEXT NOT NULL,
	extension    TEXT NOT NULL DEFAULT '',
	size         INTEGER NOT NULL,
	sha256       TEXT NOT NULL REFERENCES file_hashes(sha256),
	mime_type    TEXT NOT NULL DEFAULT '',
	created_at   TEXT NOT NULL,
	modified_at  TEXT NOT NULL,
	accessed_at  TEXT NOT NULL,
	scanned_at   TEXT NOT NULL,
	exif_json    TEXT,
	status       TEXT NOT NULL,
	is_duplicate INTEGER NOT NULL DEFAULT 0,
	UNIQUE(source_id, path)
);
CREATE INDEX IF NOT EXISTS idx_files_source ON scanned_files(source_id);
CREATE INDEX IF NOT EXISTS idx_files_sha256 ON scanned_files(sha256);
CREATE INDEX IF NOT EXISTS idx_files_status ON scanned_files(status);
CREATE INDEX IF NOT EXISTS idx_files_extension ON scanned_files(extension);

CREATE TABLE IF NOT EXISTS duplicate_groups (
	id           TEXT PRIMARY KEY,
	sha256       TEXT NOT NULL UNIQUE REFERENCES file_hashes(sha256),
	status       TEXT NOT NULL,
	kept_file_id TEXT,
	created_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS folder_zones (
	source_id   TEXT NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
	folder_path TEXT NOT NULL,
	zone        TEXT NOT NULL,
	updated_at  TEXT NOT NULL,
	PRIMARY KEY(source_id, folder_path)
);
CREATE INDEX IF NOT EXISTS idx_zones_zone ON folder_zones(zone);

CREATE TABLE IF NOT EXISTS code_projects (
	id                TEXT PRIMARY KEY,
	source_id         TEXT NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
	root_path         TEXT NOT NULL,
	project_type      TEXT NOT NULL,
	name              TEXT NOT NULL,
	version           TEXT NOT NULL DEFAULT '',
	group_id          TEXT NOT NULL DEFAULT '',
	git_remote        TEXT NOT NULL DEFAULT '',
	git_branch        TEXT NOT NULL DEFAULT '',
	git_commit        TEXT NOT NULL DEFAULT '',
	identifier        TEXT NOT NULL,
	content_hash      TEXT NOT NULL,
	source_file_count INTEGER NOT NULL DEFAULT 0,
	total_file_count  INTEGER NOT NULL DEFAULT 0,
	total_size_bytes  INTEGER NOT NULL DEFAULT 0,
	scanned_at        TEXT NOT NULL,
	UNIQUE(source_id, root_path)
);
CREATE INDEX IF NOT EXISTS idx_projects_source ON code_projects(source_id);
CREATE INDEX IF NOT EXISTS idx_projects_identifier ON code_projects(identifier);
CREATE INDEX IF NOT EXISTS idx_projects_name ON code_projects(name);

CREATE TABLE IF NOT EXISTS project_duplicate_groups (
	id                 TEXT PRIMARY KEY,
	identifier         TEXT NOT NULL,
	duplicate_type     TEXT NOT NULL,
	similarity_percent REAL NOT NULL DEFAULT 0,
	diff_complexity    TEXT NOT NULL DEFAULT '',
	status             TEXT NOT NULL,
	created_at         TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS project_duplicate_members (
	group_id   TEXT NOT NULL REFERENCES project_duplicate_groups(id) ON DELETE CASCADE,
	project_id TEXT NOT NULL REFERENCES code_projects(id) ON DELETE CASCADE,
	is_primary INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY(group_id, project_id)
);
`

func (s *Store) migrate() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

func nowUTC() time.Time { return time.Now().UTC() }

// tstr renders a timestamp for storage.
func tstr(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

// parseTime reads a stored timestamp; zero time on empty or malformed input.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
