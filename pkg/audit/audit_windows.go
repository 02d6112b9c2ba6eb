//go:build windows

package audit

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/windows"
)

// checkDiskSpace verifies sufficient disk space for audit log writes.
func (l *Logger) checkDiskSpace() error {
	path := l.path
	if _, err := os.Stat(path); os.IsNotExist(err) {
		path = filepath.Dir(path)
	}

	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil
	}

	var available, total, free uint64
	if err := windows.GetDiskFreeSpaceEx(p, &available, &total, &free); err != nil {
		// cannot tell, do not block auditing
		return nil
	}
	if available < MinAuditDiskSpace {
		return fmt.Errorf("audit: insufficient disk space: only %d bytes available, need at least %d",
			available, MinAuditDiskSpace)
	}
	return nil
}
