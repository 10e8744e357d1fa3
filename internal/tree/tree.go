// Package tree builds the virtual folder tree of a source from its scanned
// files: one paginated pass over the file table, folder aggregation, and a
// single zone-map load for effective-zone annotation.
package tree

import (
	"context"
	"sort"
	"strings"

	"github.com/archivum/archivum/internal/store"
	"github.com/archivum/archivum/internal/types"
	"github.com/archivum/archivum/internal/zone"
)

const pageSize = 1000

// Builder assembles folder trees from the catalog store.
type Builder struct {
	store *store.Store
}

// New returns a Builder.
func New(s *store.Store) *Builder {
	return &Builder{store: s}
}

// Build returns the folder tree rooted at "/" for one source. Folder nodes
// aggregate file count and size over their subtree and carry their effective
// zone; children are sorted folders first, then files, alphabetically within
// each group.
func (b *Builder) Build(ctx context.Context, sourceID string) (*types.FolderNode, error) {
	if _, err := b.store.GetSource(ctx, sourceID); err != nil {
		return nil, err
	}
	zones, err := b.store.LoadZones(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	root := &types.FolderNode{Name: "/", Path: "/", IsFolder: true}
	index := map[string]*types.FolderNode{"/": root}

	filter := store.FileFilter{SourceID: sourceID}
	for page := 1; ; page++ {
		batch, err := b.store.ListFiles(ctx, filter, page, pageSize)
		if err != nil {
			return nil, err
		}
		for _, f := range batch.Items {
			insert(index, f)
		}
		if int64(page*pageSize) >= batch.TotalItems {
			break
		}
	}

	finalize(root, zones)
	return root, nil
}

// insert hangs one file under its folder chain, creating intermediate folder
// nodes as needed and bumping subtree aggregates along the way.
func insert(index map[string]*types.FolderNode, f types.ScannedFile) {
	dir := parentOf(zone.Normalize(f.Path))
	folder := ensureFolder(index, dir)

	folder.Children = append(folder.Children, &types.FolderNode{
		Name:        f.Name,
		Path:        zone.Normalize(f.Path),
		FileCount:   1,
		TotalSize:   f.Size,
		FileID:      f.ID,
		Extension:   f.Extension,
		IsDuplicate: f.IsDuplicate,
	})

	for p := dir; ; p = parentOf(p) {
		n := index[p]
		n.FileCount++
		n.TotalSize += f.Size
		if p == "/" {
			break
		}
	}
}

func ensureFolder(index map[string]*types.FolderNode, path string) *types.FolderNode {
	if n, ok := index[path]; ok {
		return n
	}
	n := &types.FolderNode{
		Name:     baseOf(path),
		Path:     path,
		IsFolder: true,
	}
	index[path] = n
	parent := ensureFolder(index, parentOf(path))
	parent.Children = append(parent.Children, n)
	return n
}

// finalize sorts children (folders first, then files, each alphabetically)
// and resolves effective zones for folder nodes. Folders with no assigned
// ancestor carry no zone at all, so the field is omitted from serialized
// trees.
func finalize(n *types.FolderNode, zones map[string]types.Zone) {
	if res, ok := zone.Effective(zones, n.Path); ok {
		n.Zone = res.Zone
		n.IsInherited = res.IsInherited
	}

	sort.SliceStable(n.Children, func(i, j int) bool {
		a, b := n.Children[i], n.Children[j]
		if a.IsFolder != b.IsFolder {
			return a.IsFolder
		}
		return a.Name < b.Name
	})
	for _, c := range n.Children {
		if c.IsFolder {
			finalize(c, zones)
		}
	}
}

func parentOf(p string) string {
	i := strings.LastIndex(p, "/")
	if i <= 0 {
		return "/"
	}
	return p[:i]
}

func baseOf(p string) string {
	i := strings.LastIndex(p, "/")
	return p[i+1:]
}
