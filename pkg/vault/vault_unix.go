//go:build !windows

package vault

import (
	"fmt"
	"syscall"
)

// CheckDiskSpace returns disk space information for the vault directory.
func (s *Store) CheckDiskSpace() (*DiskSpaceInfo, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(s.Dir(), &stat); err != nil {
		// the vault directory may not exist yet
		if err := syscall.Statfs(nearestExistingDir(s.Dir()), &stat); err != nil {
			return nil, fmt.Errorf("vault: failed to get disk stats: %w", err)
		}
	}

	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bfree * uint64(stat.Bsize)
	available := stat.Bavail * uint64(stat.Bsize)

	return newDiskSpaceInfo(total, free, available), nil
}
