//go:build unix

package physical

import (
	"syscall"

	"github.com/archivum/archivum/internal/types"
)

// fillStatfs reads capacity and used bytes from the mounted filesystem.
func fillStatfs(id *types.PhysicalID, path string) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return
	}
	blockSize := int64(stat.Bsize)
	id.CapacityBytes = int64(stat.Blocks) * blockSize
	id.UsedBytes = int64(stat.Blocks-stat.Bfree) * blockSize
}
