package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/archivum/archivum/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testSource(name string) types.Source {
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

func testFile(sourceID, path, hash string, size int64) types.ScannedFile {
	now := time.Now().UTC()
	return types.ScannedFile{
		ID:         uuid.NewString(),
		SourceID:   sourceID,
		Path:       path,
		Name:       path[len(path)-1:],
		Size:       size,
		SHA256:     hash,
		MimeType:   "application/octet-stream",
		CreatedAt:  now,
		ModifiedAt: now,
		AccessedAt: now,
		ScannedAt:  now,
		Status:     types.FileHashed,
	}
}

// TestSourceRoundTrip tests insert and fetch of a source with physical
// identity.
func TestSourceRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	src := testSource("disk-a")
	src.Physical = types.PhysicalID{
		Filesystem:  "ext4",
		DiskUUID:    "abcd-1234",
		VolumeLabel: "Archive2019",
	}
	if err := s.InsertSource(ctx, src); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetSource(ctx, src.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "disk-a" || got.Physical.DiskUUID != "abcd-1234" || got.Physical.VolumeLabel != "Archive2019" {
		t.Errorf("round trip lost fields: %+v", got)
	}
	if got.Status != types.SourceScanning {
		t.Errorf("Status = %v", got.Status)
	}

	if _, err := s.GetSource(ctx, "nope"); err != ErrNotFound {
		t.Errorf("missing source error = %v, want ErrNotFound", err)
	}
}

// TestFileUpsertMaintainsHashCounts tests that hash membership counts follow
// inserts, idempotent re-inserts, and content changes.
func TestFileUpsertMaintainsHashCounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	src := testSource("disk-a")
	if err := s.InsertSource(ctx, src); err != nil {
		t.Fatal(err)
	}

	f1 := testFile(src.ID, "/docs/a.txt", "hash1", 10)
	f2 := testFile(src.ID, "/docs/b.txt", "hash1", 10)
	if err := s.UpsertFileBatch(ctx, []types.ScannedFile{f1, f2}); err != nil {
		t.Fatal(err)
	}

	h, err := s.GetHash(ctx, "hash1")
	if err != nil {
		t.Fatal(err)
	}
	if h.Count != 2 {
		t.Errorf("count = %d, want 2", h.Count)
	}

	// Replaying the same batch must not inflate the count.
	if err := s.UpsertFileBatch(ctx, []types.ScannedFile{f1, f2}); err != nil {
		t.Fatal(err)
	}
	h, _ = s.GetHash(ctx, "hash1")
	if h.Count != 2 {
		t.Errorf("count after replay = %d, want 2", h.Count)
	}

	// Rescanning a path with new content moves the membership.
	f1b := testFile(src.ID, "/docs/a.txt", "hash2", 11)
	if err := s.UpsertFileBatch(ctx, []types.ScannedFile{f1b}); err != nil {
		t.Fatal(err)
	}
	h1, _ := s.GetHash(ctx, "hash1")
	h2, _ := s.GetHash(ctx, "hash2")
	if h1.Count != 1 || h2.Count != 1 {
		t.Errorf("counts after rescan = %d/%d, want 1/1", h1.Count, h2.Count)
	}
}

// TestListFilesFilterAndPaging tests the filter clauses and pagination math.
func TestListFilesFilterAndPaging(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	src := testSource("disk-a")
	if err := s.InsertSource(ctx, src); err != nil {
		t.Fatal(err)
	}

	var files []types.ScannedFile
	for _, path := range []string{"/a.txt", "/b.txt", "/c.jpg"} {
		f := testFile(src.ID, path, "h-"+path, 1)
		f.Extension = path[len(path)-3:]
		files = append(files, f)
	}
	if err := s.UpsertFileBatch(ctx, files); err != nil {
		t.Fatal(err)
	}

	page, err := s.ListFiles(ctx, FileFilter{SourceID: src.ID}, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if page.TotalItems != 3 || len(page.Items) != 2 {
		t.Errorf("page 1: total=%d items=%d, want 3/2", page.TotalItems, len(page.Items))
	}

	page, err = s.ListFiles(ctx, FileFilter{SourceID: src.ID, Extension: "jpg"}, 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if page.TotalItems != 1 || page.Items[0].Path != "/c.jpg" {
		t.Errorf("extension filter returned %+v", page.Items)
	}
}

// TestDuplicateGroupLifecycle tests group upsert, derived counters, and
// resolution.
func TestDuplicateGroupLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	src := testSource("disk-a")
	if err := s.InsertSource(ctx, src); err != nil {
		t.Fatal(err)
	}
	f1 := testFile(src.ID, "/x", "dup", 100)
	f2 := testFile(src.ID, "/y", "dup", 100)
	if err := s.UpsertFileBatch(ctx, []types.ScannedFile{f1, f2}); err != nil {
		t.Fatal(err)
	}

	g, err := s.UpsertDuplicateGroup(ctx, "dup")
	if err != nil {
		t.Fatal(err)
	}
	if g.Count != 2 || g.WastedSize != 100 || g.Status != types.GroupPending {
		t.Errorf("group = %+v", g)
	}

	// Upsert again: same group, not a second row.
	g2, err := s.UpsertDuplicateGroup(ctx, "dup")
	if err != nil {
		t.Fatal(err)
	}
	if g2.ID != g.ID {
		t.Errorf("second upsert created new group %s", g2.ID)
	}

	if err := s.ResolveDuplicateGroup(ctx, g.ID, types.GroupResolved, f1.ID); err != nil {
		t.Fatal(err)
	}
	g, _ = s.GetDuplicateGroup(ctx, g.ID)
	if g.Status != types.GroupResolved || g.KeptFileID != f1.ID {
		t.Errorf("resolved group = %+v", g)
	}

	if err := s.ResolveDuplicateGroup(ctx, "missing", types.GroupIgnored, ""); err == nil {
		t.Error("resolving missing group should fail")
	}
}

// TestDeleteSourceCascades tests cascade deletion with hash recount and
// group pruning.
func TestDeleteSourceCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, b := testSource("a"), testSource("b")
	if err := s.InsertSource(ctx, a); err != nil {
		t.Fatal(err)
	}
	if err := s.InsertSource(ctx, b); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertFileBatch(ctx, []types.ScannedFile{
		testFile(a.ID, "/1", "shared", 5),
		testFile(b.ID, "/2", "shared", 5),
		testFile(a.ID, "/3", "only-a", 5),
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.UpsertDuplicateGroup(ctx, "shared"); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteSource(ctx, a.ID); err != nil {
		t.Fatal(err)
	}

	if _, err := s.GetSource(ctx, a.ID); err != ErrNotFound {
		t.Errorf("source a error = %v, want ErrNotFound", err)
	}
	page, _ := s.ListFiles(ctx, FileFilter{SourceID: a.ID}, 1, 10)
	if page.TotalItems != 0 {
		t.Errorf("files of deleted source remain: %d", page.TotalItems)
	}
	// shared now has one member: group pruned, hash kept with count 1.
	if h, err := s.GetHash(ctx, "shared"); err != nil || h.Count != 1 {
		t.Errorf("shared hash = %+v, %v", h, err)
	}
	if _, err := s.DuplicateGroupByHash(ctx, "shared"); err != ErrNotFound {
		t.Errorf("group for shared should be pruned, got %v", err)
	}
	// only-a lost its sole member: hash pruned entirely.
	if _, err := s.GetHash(ctx, "only-a"); err != ErrNotFound {
		t.Errorf("only-a hash should be pruned, got %v", err)
	}
}

// TestFolderZones tests explicit zone rows.
func TestFolderZones(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	src := testSource("a")
	if err := s.InsertSource(ctx, src); err != nil {
		t.Fatal(err)
	}

	fz := types.FolderZone{SourceID: src.ID, FolderPath: "/photos", Zone: types.ZoneMedia, UpdatedAt: time.Now().UTC()}
	if err := s.UpsertFolderZone(ctx, fz); err != nil {
		t.Fatal(err)
	}
	fz.Zone = types.ZoneBackup
	if err := s.UpsertFolderZone(ctx, fz); err != nil {
		t.Fatal(err)
	}

	zones, err := s.LoadZones(ctx, src.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(zones) != 1 || zones["/photos"] != types.ZoneBackup {
		t.Errorf("zones = %v", zones)
	}
}

// TestProjectUpsertByRootPath tests that a rescan replaces the project row
// at the same root.
func TestProjectUpsertByRootPath(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	src := testSource("a")
	if err := s.InsertSource(ctx, src); err != nil {
		t.Fatal(err)
	}

	p := types.CodeProject{
		ID: uuid.NewString(), SourceID: src.ID, RootPath: "/code/app",
		Type: types.ProjectMaven, Name: "app", Version: "1.0",
		Identifier: "com.x:app:1.0", ContentHash: "c1", ScannedAt: time.Now().UTC(),
	}
	if err := s.UpsertProject(ctx, p); err != nil {
		t.Fatal(err)
	}
	p.Version = "1.1"
	p.Identifier = "com.x:app:1.1"
	if err := s.UpsertProject(ctx, p); err != nil {
		t.Fatal(err)
	}

	page, err := s.ListProjects(ctx, src.ID, 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if page.TotalItems != 1 || page.Items[0].Version != "1.1" {
		t.Errorf("projects = %+v", page.Items)
	}
}
