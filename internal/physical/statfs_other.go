//go:build !unix

package physical

import "github.com/archivum/archivum/internal/types"

// fillStatfs is a no-op on platforms without Statfs; the shell probes still
// populate what they can.
func fillStatfs(_ *types.PhysicalID, _ string) {}
