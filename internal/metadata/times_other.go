//go:build !linux && !darwin

package metadata

import (
	"os"
	"time"
)

// statTimes falls back to the modification time on platforms without a
// portable way to read creation/access times.
func statTimes(info os.FileInfo) (created, accessed time.Time) {
	return info.ModTime(), info.ModTime()
}
