package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/archivum/archivum/internal/dedup"
	"github.com/archivum/archivum/internal/store"
	"github.com/archivum/archivum/internal/types"
)

func newTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(st, dedup.New(st, log), log), st
}

func scanningSource(name string) types.Source {
	now := time.Now().UTC()
	return types.Source{
		ID:        uuid.NewString(),
		Name:      name,
		Type:      types.SourceDisk,
		RootPath:  "/mnt/" + name,
		Status:    types.SourceScanning,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func batchFile(path, hash string) types.ScannedFile {
	now := time.Now().UTC()
	return types.ScannedFile{
		ID: uuid.NewString(), Path: path, Name: path, Size: 10, SHA256: hash,
		CreatedAt: now, ModifiedAt: now, AccessedAt: now, ScannedAt: now,
		Status: types.FileHashed,
	}
}

// TestCreateSourceIdempotent tests that replaying a createSource returns the
// same row without duplication, and that an id collision with different
// identity conflicts.
func TestCreateSourceIdempotent(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	src := scanningSource("disk-a")
	created, isNew, err := svc.CreateSource(ctx, src)
	if err != nil || !isNew {
		t.Fatalf("first create: %v isNew=%v", err, isNew)
	}

	replayed, isNew, err := svc.CreateSource(ctx, src)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if isNew || replayed.ID != created.ID {
		t.Errorf("replay isNew=%v id=%s, want false/%s", isNew, replayed.ID, created.ID)
	}
	all, _ := st.ListSources(ctx)
	if len(all) != 1 {
		t.Errorf("sources = %d, want 1", len(all))
	}

	divergent := src
	divergent.RootPath = "/elsewhere"
	if _, _, err := svc.CreateSource(ctx, divergent); !errors.Is(err, store.ErrConflict) {
		t.Errorf("divergent replay error = %v, want ErrConflict", err)
	}
}

// TestCreateSourceAssignsID tests server-side id assignment.
func TestCreateSourceAssignsID(t *testing.T) {
	svc, _ := newTestService(t)

	src := scanningSource("disk-a")
	src.ID = ""
	created, _, err := svc.CreateSource(context.Background(), src)
	if err != nil {
		t.Fatal(err)
	}
	if created.ID == "" {
		t.Error("server did not assign an id")
	}
}

// TestIngestBatchRequiresScanning tests the state gate on batch intake.
func TestIngestBatchRequiresScanning(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	src, _, err := svc.CreateSource(ctx, scanningSource("disk-a"))
	if err != nil {
		t.Fatal(err)
	}

	batch := types.FileBatch{SourceID: src.ID, BatchNumber: 1,
		Files: []types.ScannedFile{batchFile("/a", "h1")}}
	if err := svc.IngestBatch(ctx, batch); err != nil {
		t.Fatalf("batch while SCANNING: %v", err)
	}

	if _, err := svc.CompleteScan(ctx, src.ID, types.CompleteScanRequest{
		TotalFiles: 1, TotalSize: 10, Success: true}); err != nil {
		t.Fatal(err)
	}

	batch.BatchNumber = 2
	if err := svc.IngestBatch(ctx, batch); !errors.Is(err, store.ErrBadState) {
		t.Errorf("batch after completion error = %v, want ErrBadState", err)
	}
	if err := svc.IngestBatch(ctx, types.FileBatch{SourceID: "missing"}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("batch for missing source error = %v, want ErrNotFound", err)
	}
}

// TestCompleteScanTransitions tests COMPLETED/FAILED transitions and the
// single-shot rule.
func TestCompleteScanTransitions(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	src, _, err := svc.CreateSource(ctx, scanningSource("disk-a"))
	if err != nil {
		t.Fatal(err)
	}

	done, err := svc.CompleteScan(ctx, src.ID, types.CompleteScanRequest{
		TotalFiles: 7, TotalSize: 70, Success: true})
	if err != nil {
		t.Fatal(err)
	}
	if done.Status != types.SourceCompleted || done.TotalFiles != 7 {
		t.Errorf("completed source = %+v", done)
	}

	if _, err := svc.CompleteScan(ctx, src.ID, types.CompleteScanRequest{Success: true}); !errors.Is(err, store.ErrBadState) {
		t.Errorf("double completion error = %v, want ErrBadState", err)
	}

	failed, _, err := svc.CreateSource(ctx, scanningSource("disk-b"))
	if err != nil {
		t.Fatal(err)
	}
	got, err := svc.CompleteScan(ctx, failed.ID, types.CompleteScanRequest{Success: false})
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != types.SourceFailed {
		t.Errorf("failed scan status = %v", got.Status)
	}
}

// TestCompleteScanGroupsDuplicates tests end-to-end reconciliation: two
// files with one hash become a group, with the older file kept.
func TestCompleteScanGroupsDuplicates(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	src, _, err := svc.CreateSource(ctx, scanningSource("disk-a"))
	if err != nil {
		t.Fatal(err)
	}

	older := batchFile("/docs/a.txt", "dup")
	older.ScannedAt = time.Now().UTC().Add(-time.Hour)
	newer := batchFile("/copies/a.txt", "dup")
	unique := batchFile("/docs/b.txt", "solo")
	if err := svc.IngestBatch(ctx, types.FileBatch{SourceID: src.ID, BatchNumber: 1,
		Files: []types.ScannedFile{older, newer, unique}}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CompleteScan(ctx, src.ID, types.CompleteScanRequest{
		TotalFiles: 3, TotalSize: 30, Success: true}); err != nil {
		t.Fatal(err)
	}

	g, err := st.DuplicateGroupByHash(ctx, "dup")
	if err != nil {
		t.Fatalf("group not created: %v", err)
	}
	if g.Count != 2 || g.WastedSize != 10 {
		t.Errorf("group = %+v", g)
	}

	files, _ := st.FilesByHash(ctx, "dup")
	if len(files) != 2 {
		t.Fatalf("members = %d", len(files))
	}
	if files[0].IsDuplicate || files[0].Path != "/docs/a.txt" {
		t.Errorf("oldest member should be kept: %+v", files[0])
	}
	if !files[1].IsDuplicate || files[1].Status != types.FileDuplicate {
		t.Errorf("newer member should be flagged: %+v", files[1])
	}

	if _, err := st.DuplicateGroupByHash(ctx, "solo"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("solo hash should have no group, got %v", err)
	}
}

// TestReconcileKeepsResolvedFile tests that a user-chosen kept file survives
// re-reconciliation instead of reverting to the oldest member.
func TestReconcileKeepsResolvedFile(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := dedup.New(st, log)

	src, _, err := svc.CreateSource(ctx, scanningSource("disk-a"))
	if err != nil {
		t.Fatal(err)
	}
	older := batchFile("/old/a.txt", "dup")
	older.ScannedAt = time.Now().UTC().Add(-time.Hour)
	newer := batchFile("/new/a.txt", "dup")
	if err := svc.IngestBatch(ctx, types.FileBatch{SourceID: src.ID, BatchNumber: 1,
		Files: []types.ScannedFile{older, newer}}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CompleteScan(ctx, src.ID, types.CompleteScanRequest{
		TotalFiles: 2, TotalSize: 20, Success: true}); err != nil {
		t.Fatal(err)
	}

	g, err := st.DuplicateGroupByHash(ctx, "dup")
	if err != nil {
		t.Fatal(err)
	}
	// The user keeps the newer copy instead.
	if err := st.ResolveDuplicateGroup(ctx, g.ID, types.GroupResolved, newer.ID); err != nil {
		t.Fatal(err)
	}

	if err := engine.ReconcileSource(ctx, src.ID); err != nil {
		t.Fatal(err)
	}

	files, _ := st.FilesByHash(ctx, "dup")
	for _, f := range files {
		switch f.ID {
		case newer.ID:
			if f.IsDuplicate {
				t.Errorf("resolved kept file flagged: %+v", f)
			}
		case older.ID:
			if !f.IsDuplicate {
				t.Errorf("non-kept file not flagged: %+v", f)
			}
		}
	}
}

// TestConcurrentReconcilesStayConsistent tests that zone-change
// reconciliations racing source reconciliations leave one coherent group:
// runs for the same source are serialized, so per-hash clear and mark writes
// never interleave.
func TestConcurrentReconcilesStayConsistent(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := dedup.New(st, log)

	src, _, err := svc.CreateSource(ctx, scanningSource("disk-a"))
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.IngestBatch(ctx, types.FileBatch{SourceID: src.ID, BatchNumber: 1,
		Files: []types.ScannedFile{batchFile("/a/f.txt", "dup"), batchFile("/b/f.txt", "dup")}}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CompleteScan(ctx, src.ID, types.CompleteScanRequest{
		TotalFiles: 2, TotalSize: 20, Success: true}); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := engine.ReconcileSource(ctx, src.ID); err != nil {
				errs <- err
			}
		}()
		go func() {
			defer wg.Done()
			if err := engine.ReconcileZoneChange(ctx, src.ID, "/a"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}

	if _, err := st.DuplicateGroupByHash(ctx, "dup"); err != nil {
		t.Fatalf("group after concurrent reconciles: %v", err)
	}
	files, err := st.FilesByHash(ctx, "dup")
	if err != nil {
		t.Fatal(err)
	}
	flagged := 0
	for _, f := range files {
		if f.IsDuplicate {
			flagged++
		}
	}
	if flagged != 1 {
		t.Errorf("flagged members = %d, want exactly 1", flagged)
	}
}

// TestZoneGateBlocksGrouping tests that files under SOFTWARE zones never
// form duplicate groups, and that a later zone change retracts flags.
func TestZoneGateBlocksGrouping(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := dedup.New(st, log)

	src, _, err := svc.CreateSource(ctx, scanningSource("disk-a"))
	if err != nil {
		t.Fatal(err)
	}
	if err := st.UpsertFolderZone(ctx, types.FolderZone{
		SourceID: src.ID, FolderPath: "/installers", Zone: types.ZoneSoftware,
		UpdatedAt: time.Now().UTC()}); err != nil {
		t.Fatal(err)
	}

	a := batchFile("/installers/setup.exe", "dup")
	b := batchFile("/downloads/setup.exe", "dup")
	if err := svc.IngestBatch(ctx, types.FileBatch{SourceID: src.ID, BatchNumber: 1,
		Files: []types.ScannedFile{a, b}}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CompleteScan(ctx, src.ID, types.CompleteScanRequest{
		TotalFiles: 2, TotalSize: 20, Success: true}); err != nil {
		t.Fatal(err)
	}

	// One copy is gated: fewer than two eligible members, so no group and no
	// flags at all.
	if _, err := st.DuplicateGroupByHash(ctx, "dup"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("gated hash should have no group, got %v", err)
	}
	files, _ := st.FilesByHash(ctx, "dup")
	for _, f := range files {
		if f.IsDuplicate {
			t.Errorf("file %s flagged despite zone gate", f.Path)
		}
	}

	// Re-zoning the folder to DOCUMENTS makes both copies eligible.
	if err := st.UpsertFolderZone(ctx, types.FolderZone{
		SourceID: src.ID, FolderPath: "/installers", Zone: types.ZoneDocuments,
		UpdatedAt: time.Now().UTC()}); err != nil {
		t.Fatal(err)
	}
	if err := engine.ReconcileZoneChange(ctx, src.ID, "/installers"); err != nil {
		t.Fatal(err)
	}
	if _, err := st.DuplicateGroupByHash(ctx, "dup"); err != nil {
		t.Errorf("group should exist after re-zone: %v", err)
	}

	// And zoning it back dissolves the group again.
	if err := st.UpsertFolderZone(ctx, types.FolderZone{
		SourceID: src.ID, FolderPath: "/installers", Zone: types.ZoneSoftware,
		UpdatedAt: time.Now().UTC()}); err != nil {
		t.Fatal(err)
	}
	if err := engine.ReconcileZoneChange(ctx, src.ID, "/installers"); err != nil {
		t.Fatal(err)
	}
	if _, err := st.DuplicateGroupByHash(ctx, "dup"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("group should be dissolved after gating zone returns, got %v", err)
	}
	files, _ = st.FilesByHash(ctx, "dup")
	for _, f := range files {
		if f.IsDuplicate {
			t.Errorf("file %s still flagged after retraction", f.Path)
		}
	}
}

// TestIngestCodeProjects tests project intake, the empty no-op, and manual
// project exclusion from grouping.
func TestIngestCodeProjects(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	if err := svc.IngestCodeProjects(ctx, "whatever", nil); err != nil {
		t.Errorf("empty project list should be a no-op, got %v", err)
	}

	a, _, err := svc.CreateSource(ctx, scanningSource("disk-a"))
	if err != nil {
		t.Fatal(err)
	}
	b, _, err := svc.CreateSource(ctx, scanningSource("disk-b"))
	if err != nil {
		t.Fatal(err)
	}

	project := func(sourceID, root, hash string) types.CodeProject {
		return types.CodeProject{
			ID: uuid.NewString(), SourceID: sourceID, RootPath: root,
			Type: types.ProjectMaven, Name: "app", Version: "1.0",
			Identifier: "com.x:app:1.0", ContentHash: hash,
			TotalFileCount: 100, ScannedAt: time.Now().UTC(),
		}
	}
	if err := svc.IngestCodeProjects(ctx, a.ID, []types.CodeProject{project(a.ID, "/code/app", "c1")}); err != nil {
		t.Fatal(err)
	}
	if err := svc.IngestCodeProjects(ctx, b.ID, []types.CodeProject{project(b.ID, "/backup/app", "c1")}); err != nil {
		t.Fatal(err)
	}

	// A manual entry sharing the identifier must not join the group.
	if _, err := svc.CreateManualProject(ctx, types.CodeProject{
		SourceID: a.ID, RootPath: "/manual/app", Name: "app", Identifier: "com.x:app:1.0",
	}); err != nil {
		t.Fatal(err)
	}

	for _, id := range []string{a.ID, b.ID} {
		if _, err := svc.CompleteScan(ctx, id, types.CompleteScanRequest{Success: true}); err != nil {
			t.Fatal(err)
		}
	}

	groups, err := st.ListProjectGroups(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 1 {
		t.Fatalf("groups = %d, want 1", len(groups))
	}
	g := groups[0]
	if g.Type != types.DuplicateExact {
		t.Errorf("type = %v, want EXACT", g.Type)
	}
	if len(g.Members) != 2 {
		t.Errorf("members = %d, want 2 (manual excluded)", len(g.Members))
	}
	primaries := 0
	for _, m := range g.Members {
		if m.IsPrimary {
			primaries++
		}
	}
	if primaries != 1 {
		t.Errorf("primaries = %d, want exactly 1", primaries)
	}
}

// TestResolvedProjectGroupSurvivesRescan tests that a group resolved by the
// user keeps its id and status when a later scan completion regroups the
// catalog.
func TestResolvedProjectGroupSurvivesRescan(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	a, _, err := svc.CreateSource(ctx, scanningSource("disk-a"))
	if err != nil {
		t.Fatal(err)
	}
	b, _, err := svc.CreateSource(ctx, scanningSource("disk-b"))
	if err != nil {
		t.Fatal(err)
	}

	project := func(sourceID, root string) types.CodeProject {
		return types.CodeProject{
			ID: uuid.NewString(), SourceID: sourceID, RootPath: root,
			Type: types.ProjectMaven, Name: "app", Version: "1.0",
			Identifier: "com.x:app:1.0", ContentHash: "c1",
			TotalFileCount: 100, ScannedAt: time.Now().UTC(),
		}
	}
	if err := svc.IngestCodeProjects(ctx, a.ID, []types.CodeProject{project(a.ID, "/code/app")}); err != nil {
		t.Fatal(err)
	}
	if err := svc.IngestCodeProjects(ctx, b.ID, []types.CodeProject{project(b.ID, "/backup/app")}); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.CompleteScan(ctx, a.ID, types.CompleteScanRequest{Success: true}); err != nil {
		t.Fatal(err)
	}
	groups, err := st.ListProjectGroups(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 1 {
		t.Fatalf("groups = %d, want 1", len(groups))
	}
	if err := st.ResolveProjectGroup(ctx, groups[0].ID, types.GroupResolved); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.CompleteScan(ctx, b.ID, types.CompleteScanRequest{Success: true}); err != nil {
		t.Fatal(err)
	}
	after, err := st.ListProjectGroups(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != 1 {
		t.Fatalf("groups after rescan = %d, want 1", len(after))
	}
	if after[0].ID != groups[0].ID {
		t.Errorf("group id changed across rescan: %s -> %s", groups[0].ID, after[0].ID)
	}
	if after[0].Status != types.GroupResolved {
		t.Errorf("status after rescan = %v, want RESOLVED", after[0].Status)
	}
}
