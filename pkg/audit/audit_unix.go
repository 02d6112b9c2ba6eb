//go:build !windows

package audit

import (
	"fmt"
	"path/filepath"
	"syscall"
)

// checkDiskSpace verifies sufficient disk space for audit log writes.
func (l *Logger) checkDiskSpace() error {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(l.path, &stat); err != nil {
		if err := syscall.Statfs(filepath.Dir(l.path), &stat); err != nil {
			// cannot tell, do not block auditing
			return nil
		}
	}

	available := stat.Bavail * uint64(stat.Bsize)
	if available < MinAuditDiskSpace {
		return fmt.Errorf("audit: insufficient disk space: only %d bytes available, need at least %d",
			available, MinAuditDiskSpace)
	}
	return nil
}
