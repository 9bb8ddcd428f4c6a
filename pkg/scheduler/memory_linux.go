//go:build linux

package scheduler

import (
	"golang.org/x/sys/unix"
)

// SystemMemory returns the free plus buffer memory reported by the kernel, in bytes.
func SystemMemory() (uint64, error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0, err
	}

	unit := uint64(info.Unit)
	if unit == 0 {
		unit = 1
	}

	return (uint64(info.Freeram) + uint64(info.Bufferram)) * unit, nil
}
