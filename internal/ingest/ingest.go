// Package ingest is the server-side write path: it accepts scanner output
// (sources, file batches, code projects, completion) and keeps the catalog
// consistent under re-uploads of the same tree.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/archivum/archivum/internal/dedup"
	"github.com/archivum/archivum/internal/store"
	"github.com/archivum/archivum/internal/types"
)

// Service coordinates catalog writes. Concurrent requests touching the same
// source are serialized by a per-source lock so that batch upserts and the
// completion transition never interleave.
type Service struct {
	store *store.Store
	dedup *dedup.Engine
	log   *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New returns an ingest Service.
func New(s *store.Store, d *dedup.Engine, log *slog.Logger) *Service {
	return &Service{
		store: s,
		dedup: d,
		log:   log,
		locks: make(map[string]*sync.Mutex),
	}
}

func (s *Service) lock(sourceID string) func() {
	s.mu.Lock()
	m, ok := s.locks[sourceID]
	if !ok {
		m = &sync.Mutex{}
		s.locks[sourceID] = m
	}
	s.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// CreateSource registers a source. The call is idempotent: re-posting a
// source whose id already exists with matching identity returns the stored
// row, while an id collision with different identity is a conflict. A
// missing id is assigned server-side.
func (s *Service) CreateSource(ctx context.Context, src types.Source) (types.Source, bool, error) {
	if src.ID == "" {
		src.ID = uuid.NewString()
	}
	defer s.lock(src.ID)()

	existing, err := s.store.GetSource(ctx, src.ID)
	if err == nil {
		if existing.Name != src.Name || existing.Type != src.Type || existing.RootPath != src.RootPath {
			return types.Source{}, false, fmt.Errorf(
				"source %s already registered as %q (%s): %w",
				src.ID, existing.Name, existing.RootPath, store.ErrConflict)
		}
		return existing, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return types.Source{}, false, err
	}

	if src.Status == "" {
		src.Status = types.SourceScanning
	}
	now := time.Now().UTC()
	if src.CreatedAt.IsZero() {
		src.CreatedAt = now
	}
	src.UpdatedAt = now
	if err := s.store.InsertSource(ctx, src); err != nil {
		return types.Source{}, false, err
	}
	s.log.Info("source registered", "sourceId", src.ID, "name", src.Name, "type", src.Type)
	return src, true, nil
}

// IngestBatch upserts one file batch. The source must exist and still be
// SCANNING; batches replayed after completion are rejected rather than
// silently mutating a finished catalog entry.
func (s *Service) IngestBatch(ctx context.Context, batch types.FileBatch) error {
	defer s.lock(batch.SourceID)()

	src, err := s.store.GetSource(ctx, batch.SourceID)
	if err != nil {
		return err
	}
	if src.Status != types.SourceScanning {
		return fmt.Errorf("source %s is %s, not SCANNING: %w", src.ID, src.Status, store.ErrBadState)
	}

	for i := range batch.Files {
		f := &batch.Files[i]
		f.SourceID = batch.SourceID
		if f.ID == "" {
			f.ID = uuid.NewString()
		}
		if f.Status == "" {
			f.Status = types.FileHashed
		}
	}
	if err := s.store.UpsertFileBatch(ctx, batch.Files); err != nil {
		return err
	}
	s.log.Info("batch ingested", "sourceId", batch.SourceID,
		"batch", batch.BatchNumber, "files", len(batch.Files))
	return nil
}

// IngestCodeProjects upserts a scan's detected projects. An empty list is a
// no-op, not an error.
func (s *Service) IngestCodeProjects(ctx context.Context, sourceID string, projects []types.CodeProject) error {
	if len(projects) == 0 {
		return nil
	}
	defer s.lock(sourceID)()

	if _, err := s.store.GetSource(ctx, sourceID); err != nil {
		return err
	}
	for i := range projects {
		projects[i].SourceID = sourceID
		if projects[i].ID == "" {
			projects[i].ID = uuid.NewString()
		}
	}
	if err := s.store.UpsertProjectBatch(ctx, projects); err != nil {
		return err
	}
	s.log.Info("projects ingested", "sourceId", sourceID, "count", len(projects))
	return nil
}

// CompleteScan transitions a SCANNING source to COMPLETED or FAILED and, on
// success, runs duplicate reconciliation for the source and regroups code
// projects. The source lock is held through reconciliation so that a replayed
// batch or a second completion cannot interleave with it.
func (s *Service) CompleteScan(ctx context.Context, sourceID string, req types.CompleteScanRequest) (types.Source, error) {
	defer s.lock(sourceID)()

	src, err := s.store.GetSource(ctx, sourceID)
	if err != nil {
		return types.Source{}, err
	}
	if src.Status != types.SourceScanning {
		return types.Source{}, fmt.Errorf("source %s is %s, not SCANNING: %w",
			src.ID, src.Status, store.ErrBadState)
	}

	status := types.SourceCompleted
	if !req.Success {
		status = types.SourceFailed
	}
	if err := s.store.UpdateSourceStatus(ctx, sourceID, status, req.TotalFiles, req.TotalSize); err != nil {
		return types.Source{}, err
	}

	if req.Success {
		if err := s.dedup.ReconcileSource(ctx, sourceID); err != nil {
			return types.Source{}, fmt.Errorf("reconcile duplicates: %w", err)
		}
		if err := s.dedup.ReconcileProjects(ctx); err != nil {
			return types.Source{}, fmt.Errorf("reconcile projects: %w", err)
		}
	}

	s.log.Info("scan completed", "sourceId", sourceID, "status", status,
		"files", req.TotalFiles, "size", req.TotalSize)
	return s.store.GetSource(ctx, sourceID)
}

// CreateManualProject registers a project entry by hand. Manual entries get
// the sentinel version and a synthetic content hash, keeping them out of
// duplicate grouping.
func (s *Service) CreateManualProject(ctx context.Context, p types.CodeProject) (types.CodeProject, error) {
	if p.SourceID == "" || p.RootPath == "" || p.Name == "" {
		return types.CodeProject{}, fmt.Errorf("sourceId, rootPath and name are required: %w", store.ErrBadState)
	}
	if _, err := s.store.GetSource(ctx, p.SourceID); err != nil {
		return types.CodeProject{}, err
	}
	p.ID = uuid.NewString()
	p.Version = types.ManualVersion
	p.ContentHash = uuid.NewString()
	if p.Type == "" {
		p.Type = types.ProjectGeneric
	}
	if p.Identifier == "" {
		p.Identifier = p.Name
	}
	p.ScannedAt = time.Now().UTC()
	if err := s.store.UpsertProject(ctx, p); err != nil {
		return types.CodeProject{}, err
	}
	return p, nil
}
