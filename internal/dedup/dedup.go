// Package dedup reconciles duplicate state after ingest. File-level
// reconciliation materializes duplicate groups per content hash, honoring
// the zone gate; project-level reconciliation regroups code projects by
// identifier.
package dedup

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/archivum/archivum/internal/store"
	"github.com/archivum/archivum/internal/types"
	"github.com/archivum/archivum/internal/zone"
)

// Zones that never yield file-level duplicates: installers, backup images,
// and code trees duplicate by nature, so flagging their files is noise.
var gatedZones = map[types.Zone]bool{
	types.ZoneSoftware: true,
	types.ZoneBackup:   true,
	types.ZoneCode:     true,
}

const reconcileWorkers = 4

// Engine runs duplicate reconciliation against the catalog store. Runs for
// the same source are serialized by a per-source lock, so a zone change and a
// scan completion reconciling concurrently cannot interleave their per-hash
// clear and mark writes.
type Engine struct {
	store *store.Store
	log   *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New returns an Engine.
func New(s *store.Store, log *slog.Logger) *Engine {
	return &Engine{store: s, log: log, locks: make(map[string]*sync.Mutex)}
}

func (e *Engine) lock(sourceID string) func() {
	e.mu.Lock()
	m, ok := e.locks[sourceID]
	if !ok {
		m = &sync.Mutex{}
		e.locks[sourceID] = m
	}
	e.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// ReconcileSource recomputes file-level duplicate state for every hash the
// source contributed to that currently has more than one member. Safe to run
// repeatedly; each hash is recomputed from scratch, so earlier flags that no
// longer hold (zone changes, deleted sources) are retracted.
func (e *Engine) ReconcileSource(ctx context.Context, sourceID string) error {
	defer e.lock(sourceID)()

	hashes, err := e.store.DuplicatedHashesForSource(ctx, sourceID)
	if err != nil {
		return err
	}

	zoneCache := newZoneCache(e.store)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reconcileWorkers)
	for _, h := range hashes {
		g.Go(func() error {
			return e.reconcileHash(gctx, h.SHA256, zoneCache)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	e.log.Info("reconciled duplicates", "sourceId", sourceID, "hashes", len(hashes))
	return nil
}

// ReconcileZoneChange re-evaluates every multi-member hash with a file under
// the re-zoned folder. Groups that the gate now forbids are dissolved and
// their member flags cleared; newly eligible hashes are grouped.
func (e *Engine) ReconcileZoneChange(ctx context.Context, sourceID, folderPath string) error {
	return e.ReconcileSource(ctx, sourceID)
}

// reconcileHash recomputes one hash's group. Members whose effective zone is
// gated do not count; among the rest, the oldest scan wins and every other
// member is flagged.
func (e *Engine) reconcileHash(ctx context.Context, sha256 string, zones *zoneCache) error {
	files, err := e.store.FilesByHash(ctx, sha256)
	if err != nil {
		return err
	}

	var eligible []types.ScannedFile
	for _, f := range files {
		z, ok, err := zones.effective(ctx, f.SourceID, parentDir(f.Path))
		if err != nil {
			return err
		}
		if !ok || !gatedZones[z.Zone] {
			eligible = append(eligible, f)
		}
	}

	if len(eligible) < 2 {
		if err := e.store.ClearDuplicateFlags(ctx, sha256); err != nil {
			return err
		}
		return e.store.DeleteDuplicateGroupByHash(ctx, sha256)
	}

	// FilesByHash orders by scanned_at then id; the first eligible member is
	// the keeper, unless the group already records a kept file that is still
	// eligible (user resolutions survive re-reconciliation).
	keeper := 0
	if g, groupErr := e.store.DuplicateGroupByHash(ctx, sha256); groupErr == nil {
		for i, f := range eligible {
			if f.ID == g.KeptFileID {
				keeper = i
				break
			}
		}
	} else if !errors.Is(groupErr, store.ErrNotFound) {
		return groupErr
	}

	dupes := make([]string, 0, len(eligible)-1)
	for i, f := range eligible {
		if i != keeper {
			dupes = append(dupes, f.ID)
		}
	}
	if err := e.store.ClearDuplicateFlags(ctx, sha256); err != nil {
		return err
	}
	if err := e.store.MarkDuplicates(ctx, dupes); err != nil {
		return err
	}
	_, err = e.store.UpsertDuplicateGroup(ctx, sha256)
	return err
}

func parentDir(p string) string {
	p = zone.Normalize(p)
	i := lastSlash(p)
	if i <= 0 {
		return "/"
	}
	return p[:i]
}

func lastSlash(p string) int {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return i
		}
	}
	return -1
}

// zoneCache memoizes per-source zone maps for the duration of one
// reconciliation run.
type zoneCache struct {
	store *store.Store
	mu    sync.Mutex
	byID  map[string]map[string]types.Zone
}

func newZoneCache(s *store.Store) *zoneCache {
	return &zoneCache{store: s, byID: make(map[string]map[string]types.Zone)}
}

func (c *zoneCache) effective(ctx context.Context, sourceID, folderPath string) (types.ZoneResult, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	zones, ok := c.byID[sourceID]
	if !ok {
		loaded, err := c.store.LoadZones(ctx, sourceID)
		if err != nil {
			return types.ZoneResult{}, false, err
		}
		c.byID[sourceID] = loaded
		zones = loaded
	}
	res, assigned := zone.Effective(zones, folderPath)
	return res, assigned, nil
}
