//go:build unix

package fs

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// ApplyTimes sets the access and modification times of path with nanosecond
// resolution. os.Chtimes truncates to the syscall's microsecond granularity
// on some platforms, so the utimensat syscall is used directly.
func (m *OSFilesystemManager) ApplyTimes(path string, atime, mtime time.Time) error {
	ts := []unix.Timespec{
		unix.NsecToTimespec(atime.UnixNano()),
		unix.NsecToTimespec(mtime.UnixNano()),
	}
	if err := unix.UtimesNanoAt(unix.AT_FDCWD, path, ts, unix.AT_SYMLINK_NOFOLLOW); err != nil {
		return fmt.Errorf("setting file times: %w", err)
	}
	return nil
}
