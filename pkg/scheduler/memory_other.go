//go:build !linux

package scheduler

import "errors"

// SystemMemory is not available on this platform.
func SystemMemory() (uint64, error) {
	return 0, errors.New("memory probe not supported on this platform")
}
