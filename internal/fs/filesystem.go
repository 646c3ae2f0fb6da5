package fs

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"hsync-go/internal/hsync"
)

// OSFilesystemManager is the real filesystem implementation of
// hsync.FilesystemManager. It performs actual filesystem operations using
// the os package.
type OSFilesystemManager struct{}

// NewOSFilesystemManager creates a new filesystem manager that operates on
// the real filesystem.
func NewOSFilesystemManager() *OSFilesystemManager {
	return &OSFilesystemManager{}
}

// WalkFiles walks the tree under root in lexical order, reporting every
// non-directory entry with a path relative to root. Symlinks are not
// followed.
func (m *OSFilesystemManager) WalkFiles(ctx context.Context, root string, fn func(relPath string, meta *hsync.FileMeta) error) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return fmt.Errorf("relativizing %s: %w", p, err)
		}
		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", p, err)
		}
		meta, err := metaFromInfo(info)
		if err != nil {
			return fmt.Errorf("extracting metadata for %s: %w", p, err)
		}
		return fn(rel, meta)
	})
}

// Stat returns fresh metadata for path without following symlinks.
func (m *OSFilesystemManager) Stat(path string) (*hsync.FileMeta, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return nil, err
	}
	return metaFromInfo(info)
}

// Open opens a file for sequential reading.
func (m *OSFilesystemManager) Open(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

// CreateTruncate creates path, making any missing parent directories, and
// truncates it to zero length.
func (m *OSFilesystemManager) CreateTruncate(path string) (hsync.BlockWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating parent directories: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("creating destination file: %w", err)
	}
	return f, nil
}

// Remove deletes the file at path.
func (m *OSFilesystemManager) Remove(path string) error {
	return os.Remove(path)
}

// Compile-time check that OSFilesystemManager implements hsync.FilesystemManager
var _ hsync.FilesystemManager = (*OSFilesystemManager)(nil)
