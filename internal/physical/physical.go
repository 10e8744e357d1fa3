// Package physical captures the identifier bundle of the volume a scan root
// lives on: mount point, filesystem, capacity, and the disk/partition
// identifiers obtainable from OS-specific tooling.
//
// Every external command runs under a hard 5-second timeout and its failure
// is non-fatal; the corresponding field simply stays empty. The probe never
// blocks the scan pipeline longer than the sum of the timeouts.
package physical

import (
	"context"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/archivum/archivum/internal/types"
)

// commandTimeout is the hard wall-clock limit per external probe command.
const commandTimeout = 5 * time.Second

// Probe collects the physical identifier bundle for the volume containing
// path. It always returns a usable bundle; probe failures leave fields empty.
func Probe(ctx context.Context, path string) types.PhysicalID {
	id := types.PhysicalID{MountPoint: path}
	fillStatfs(&id, path)

	switch runtime.GOOS {
	case "linux":
		probeLinux(ctx, &id, path)
	case "darwin":
		probeDarwin(ctx, &id, path)
	case "windows":
		probeWindows(ctx, &id)
	}
	return id
}

// run executes one probe command under the hard timeout, returning trimmed
// stdout. ok=false covers missing binaries, non-zero exits, and timeouts
// alike; callers never depend on specific error strings.
func run(ctx context.Context, name string, args ...string) (string, bool) {
	cmdCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	out, err := exec.CommandContext(cmdCtx, name, args...).Output()
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(out)), true
}

// probeLinux resolves the backing device via df, then queries blkid and
// udevadm for UUIDs, label, and serial number.
func probeLinux(ctx context.Context, id *types.PhysicalID, path string) {
	device := ""
	if out, ok := run(ctx, "df", "-PT", path); ok {
		lines := strings.Split(out, "\n")
		if len(lines) >= 2 {
			if fields := strings.Fields(lines[len(lines)-1]); len(fields) >= 2 {
				device = fields[0]
				id.Filesystem = fields[1]
			}
		}
	}
	if device == "" || !strings.HasPrefix(device, "/dev/") {
		return
	}

	if out, ok := run(ctx, "blkid", "-o", "value", "-s", "UUID", device); ok {
		id.DiskUUID = out
	}
	if out, ok := run(ctx, "blkid", "-o", "value", "-s", "PARTUUID", device); ok {
		id.PartitionUUID = out
	}
	if out, ok := run(ctx, "blkid", "-o", "value", "-s", "LABEL", device); ok && id.VolumeLabel == "" {
		id.VolumeLabel = out
	}
	if out, ok := run(ctx, "udevadm", "info", "--query=property", "--name", device); ok {
		for _, line := range strings.Split(out, "\n") {
			if serial, found := strings.CutPrefix(line, "ID_SERIAL_SHORT="); found {
				id.SerialNumber = serial
				break
			}
		}
	}
}

// probeDarwin queries diskutil for the volume identity.
func probeDarwin(ctx context.Context, id *types.PhysicalID, path string) {
	out, ok := run(ctx, "diskutil", "info", path)
	if !ok {
		return
	}
	for _, line := range strings.Split(out, "\n") {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch key {
		case "Volume UUID":
			id.PartitionUUID = value
		case "Disk / Partition UUID":
			id.DiskUUID = value
		case "Volume Name":
			if id.VolumeLabel == "" {
				id.VolumeLabel = value
			}
		case "File System Personality":
			if id.Filesystem == "" {
				id.Filesystem = value
			}
		}
	}
}

// probeWindows queries wmic for the system drive serial number.
func probeWindows(ctx context.Context, id *types.PhysicalID) {
	out, ok := run(ctx, "wmic", "diskdrive", "get", "SerialNumber")
	if !ok {
		return
	}
	lines := strings.Split(out, "\n")
	if len(lines) >= 2 {
		id.SerialNumber = strings.TrimSpace(lines[1])
	}
}
