package hsync

import (
	"context"
	"io"
	"time"
)

// FileMeta is the metadata captured for a filesystem entry.
type FileMeta struct {
	Size        int64
	Mtime       time.Time
	Atime       time.Time
	Ctime       time.Time
	Permissions uint32
	Regular     bool
}

// BlockWriter writes transfer blocks at explicit offsets.
type BlockWriter interface {
	io.WriterAt
	io.Closer
}

// FilesystemManager abstracts the filesystem operations the engine needs so
// the pipeline can be tested against a fake.
type FilesystemManager interface {
	// WalkFiles calls fn for every entry under root, passing paths relative
	// to root. Non-regular entries are reported with meta.Regular false and
	// are not descended into. Walk order is deterministic (lexical).
	WalkFiles(ctx context.Context, root string, fn func(relPath string, meta *FileMeta) error) error

	// Stat returns metadata for path, without following symlinks.
	Stat(path string) (*FileMeta, error)

	// Open opens path for sequential reading.
	Open(path string) (io.ReadCloser, error)

	// CreateTruncate creates path (and any missing parent directories) and
	// truncates it to zero length.
	CreateTruncate(path string) (BlockWriter, error)

	// ApplyTimes sets the access and modification times of path with
	// nanosecond resolution.
	ApplyTimes(path string, atime, mtime time.Time) error

	// Remove deletes the file at path.
	Remove(path string) error
}
