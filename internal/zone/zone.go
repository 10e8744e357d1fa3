// Package zone resolves folder zones. Explicit assignments live in the
// store; every other folder inherits the zone of its nearest assigned
// ancestor. A folder with no assigned ancestor has no effective zone.
package zone

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/archivum/archivum/internal/store"
	"github.com/archivum/archivum/internal/types"
)

// Resolver answers effective-zone queries for folders of a source.
type Resolver struct {
	store *store.Store
}

// NewResolver returns a Resolver backed by the catalog store.
func NewResolver(s *store.Store) *Resolver {
	return &Resolver{store: s}
}

// Normalize canonicalizes a folder path: forward slashes, a single leading
// slash, no trailing slash. The empty path and "/" both mean the source root.
func Normalize(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = "/" + strings.Trim(p, "/")
	return p
}

// Effective resolves the zone for one folder given the source's explicit
// assignment map (folder path -> zone). The folder's own assignment wins;
// otherwise the nearest assigned ancestor is inherited. A folder with no
// assignment anywhere up its chain has no effective zone and reports
// ok=false. Matching is segment-aware: "/foo/bar" is not an ancestor of
// "/foo/barn".
func Effective(zones map[string]types.Zone, folderPath string) (types.ZoneResult, bool) {
	p := Normalize(folderPath)
	if z, ok := zones[p]; ok {
		return types.ZoneResult{Zone: z}, true
	}
	for p != "/" {
		p = parent(p)
		if z, ok := zones[p]; ok {
			return types.ZoneResult{Zone: z, IsInherited: true}, true
		}
	}
	return types.ZoneResult{}, false
}

func parent(p string) string {
	i := strings.LastIndex(p, "/")
	if i <= 0 {
		return "/"
	}
	return p[:i]
}

// ZoneForFolder resolves the effective zone of one folder straight from the
// store. ok is false when no zone is assigned anywhere up the folder's chain.
func (r *Resolver) ZoneForFolder(ctx context.Context, sourceID, folderPath string) (types.ZoneResult, bool, error) {
	zones, err := r.store.LoadZones(ctx, sourceID)
	if err != nil {
		return types.ZoneResult{}, false, err
	}
	res, ok := Effective(zones, folderPath)
	return res, ok, nil
}

// SetFolderZone records an explicit zone assignment. The zone must be one of
// the known values.
func (r *Resolver) SetFolderZone(ctx context.Context, sourceID, folderPath string, z types.Zone) (types.FolderZone, error) {
	if !types.ValidZone(z) {
		return types.FolderZone{}, fmt.Errorf("unknown zone %q: %w", z, store.ErrBadState)
	}
	if _, err := r.store.GetSource(ctx, sourceID); err != nil {
		return types.FolderZone{}, err
	}
	fz := types.FolderZone{
		SourceID:   sourceID,
		FolderPath: Normalize(folderPath),
		Zone:       z,
		UpdatedAt:  time.Now().UTC(),
	}
	if err := r.store.UpsertFolderZone(ctx, fz); err != nil {
		return types.FolderZone{}, err
	}
	return fz, nil
}
