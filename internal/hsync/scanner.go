package hsync

import (
	"context"
	"fmt"
	"path/filepath"
)

// Scanner populates the catalog from the source tree and can enumerate the
// destination tree. The two walks are independent and may run concurrently.
type Scanner struct {
	fs      FilesystemManager
	catalog Catalog
	log     Logger
	audit   Auditor
	tracker *Tracker

	sourceRoot string
	destRoot   string
	exclude    func(relPath string) bool
}

// NewScanner creates a Scanner. exclude may be nil; when set, source paths
// it reports true for are left out of the catalog entirely.
func NewScanner(fs FilesystemManager, catalog Catalog, log Logger, audit Auditor, tracker *Tracker, sourceRoot, destRoot string, exclude func(relPath string) bool) *Scanner {
	return &Scanner{
		fs:         fs,
		catalog:    catalog,
		log:        log,
		audit:      audit,
		tracker:    tracker,
		sourceRoot: sourceRoot,
		destRoot:   destRoot,
		exclude:    exclude,
	}
}

// ScanSource walks the source tree and upserts one catalog row per regular
// file. A file whose destination already exists with identical size and
// mtime is recorded as synced and audited as a skip; everything else becomes
// pending. Symlinks and special files are skipped with a warning.
func (s *Scanner) ScanSource(ctx context.Context) error {
	err := s.fs.WalkFiles(ctx, s.sourceRoot, func(relPath string, meta *FileMeta) error {
		if s.exclude != nil && s.exclude(relPath) {
			s.log.Debug("excluded by pattern", "path", relPath)
			return nil
		}
		if !meta.Regular {
			s.log.Warn("skipping non-regular file", "path", relPath)
			return nil
		}
		sourcePath := filepath.Join(s.sourceRoot, relPath)
		destPath := filepath.Join(s.destRoot, relPath)

		needsTransfer := s.needsTransfer(destPath, meta)
		rec := FileRecord{
			SourcePath:  sourcePath,
			DestPath:    destPath,
			Ctime:       meta.Ctime,
			Mtime:       meta.Mtime,
			Atime:       meta.Atime,
			Permissions: meta.Permissions,
			Size:        meta.Size,
		}
		if err := s.catalog.UpsertScanned(ctx, rec, needsTransfer); err != nil {
			return fmt.Errorf("recording scanned file %s: %w", sourcePath, err)
		}
		if !needsTransfer {
			s.audit.Record(AuditSkip, sourcePath, destPath, "")
		}
		s.tracker.Scanned(meta.Size)
		return nil
	})
	if err != nil {
		return fmt.Errorf("scanning source %s: %w", s.sourceRoot, err)
	}
	return nil
}

// needsTransfer reports whether the destination is missing or differs from
// the source metadata. Size and mtime equality is the only skip criterion;
// content is never read during the scan.
func (s *Scanner) needsTransfer(destPath string, src *FileMeta) bool {
	dst, err := s.fs.Stat(destPath)
	if err != nil {
		return true
	}
	return !dst.Regular || dst.Size != src.Size || !dst.Mtime.Equal(src.Mtime)
}

// ScanDest walks the destination tree and returns the relative paths of all
// regular files found. The Sweeper does not use this list; it walks the
// destination itself at sweep time.
func (s *Scanner) ScanDest(ctx context.Context) ([]string, error) {
	var paths []string
	err := s.fs.WalkFiles(ctx, s.destRoot, func(relPath string, meta *FileMeta) error {
		if !meta.Regular {
			return nil
		}
		paths = append(paths, relPath)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning destination %s: %w", s.destRoot, err)
	}
	return paths, nil
}
