//go:build unix

package fs

import (
	"fmt"
	"io/fs"
	"syscall"
	"time"

	"hsync-go/internal/hsync"
)

// metaFromInfo extracts Unix-specific stat data from a FileInfo.
func metaFromInfo(info fs.FileInfo) (*hsync.FileMeta, error) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return nil, fmt.Errorf("cannot extract stat data: expected *syscall.Stat_t, got %T", info.Sys())
	}

	return &hsync.FileMeta{
		Size:        info.Size(),
		Mtime:       info.ModTime(),
		Atime:       time.Unix(stat.Atim.Sec, stat.Atim.Nsec),
		Ctime:       time.Unix(stat.Ctim.Sec, stat.Ctim.Nsec),
		Permissions: uint32(info.Mode().Perm()),
		Regular:     info.Mode().IsRegular(),
	}, nil
}
