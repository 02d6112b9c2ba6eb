//go:build windows

package vault

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// CheckDiskSpace returns disk space information for the vault directory.
func (s *Store) CheckDiskSpace() (*DiskSpaceInfo, error) {
	pathPtr, err := windows.UTF16PtrFromString(nearestExistingDir(s.Dir()))
	if err != nil {
		return nil, fmt.Errorf("vault: failed to convert path: %w", err)
	}

	var freeBytesAvailable, totalBytes, totalFreeBytes uint64
	err = windows.GetDiskFreeSpaceEx(pathPtr, &freeBytesAvailable, &totalBytes, &totalFreeBytes)
	if err != nil {
		return nil, fmt.Errorf("vault: failed to get disk stats: %w", err)
	}

	return newDiskSpaceInfo(totalBytes, totalFreeBytes, freeBytesAvailable), nil
}
