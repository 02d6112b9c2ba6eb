package vault

import (
	"fmt"
	"os"
	"path/filepath"
)

// DiskSpaceInfo contains disk usage information
type DiskSpaceInfo struct {
	Total     uint64 `json:"total"`     // Total disk space in bytes
	Free      uint64 `json:"free"`      // Free disk space in bytes
	Available uint64 `json:"available"` // Available to non-root users
	UsedPct   int    `json:"used_pct"`  // Percentage of disk used
}

func newDiskSpaceInfo(total, free, available uint64) *DiskSpaceInfo {
	usedPct := 0
	if total > 0 {
		usedPct = int(100 * (total - free) / total)
	}
	return &DiskSpaceInfo{
		Total:     total,
		Free:      free,
		Available: available,
		UsedPct:   usedPct,
	}
}

// nearestExistingDir walks up from dir until it finds a directory that exists.
func nearestExistingDir(dir string) string {
	for {
		if _, err := os.Stat(dir); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}

// IsDiskSpaceLow returns true if disk usage is above the warning threshold.
func (s *Store) IsDiskSpaceLow() (bool, error) {
	info, err := s.CheckDiskSpace()
	if err != nil {
		return false, err
	}
	return info.UsedPct >= DiskWarningPercent, nil
}

// checkDiskSpaceForWrite verifies sufficient disk space before a write.
// A failure to query the disk is logged and does not block the write.
func (s *Store) checkDiskSpaceForWrite(dataSize int) error {
	info, err := s.CheckDiskSpace()
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to check disk space")
		return nil
	}

	// the temp file and the old vault coexist until the rename
	required := uint64(MinDiskSpaceBytes)
	if need := uint64(dataSize) * 2; need > required {
		required = need
	}

	if info.Available < required {
		return fmt.Errorf("%w: only %d MB available, need at least %d MB",
			ErrInsufficientDisk,
			info.Available/(1024*1024),
			required/(1024*1024))
	}

	if info.UsedPct >= DiskWarningPercent {
		s.log.Warn().Int("used_pct", info.UsedPct).Msg("disk is almost full, consider freeing space")
	}
	return nil
}
