package hsync

import (
	"context"
	"errors"
	"fmt"
	iofs "io/fs"
	"path/filepath"
)

// Sweeper removes destination files whose source has disappeared, turning
// the destination into a true mirror. It walks the destination at sweep
// time, after the writer has drained, so freshly transferred files are
// already visible.
type Sweeper struct {
	fs      FilesystemManager
	catalog Catalog
	log     Logger
	audit   Auditor

	sourceRoot string
	destRoot   string
}

func NewSweeper(fs FilesystemManager, catalog Catalog, log Logger, audit Auditor, sourceRoot, destRoot string) *Sweeper {
	return &Sweeper{
		fs:         fs,
		catalog:    catalog,
		log:        log,
		audit:      audit,
		sourceRoot: sourceRoot,
		destRoot:   destRoot,
	}
}

// Run deletes destination files with no catalog row and no live source. The
// catalog alone is not trusted for deletion: every candidate is confirmed
// against the source filesystem, and any stat error other than not-exist
// means the file is kept.
func (s *Sweeper) Run(ctx context.Context) (deleted int64, err error) {
	known, err := s.catalog.DestEntriesIn(ctx, s.destRoot)
	if err != nil {
		return 0, fmt.Errorf("loading destination entries: %w", err)
	}

	err = s.fs.WalkFiles(ctx, s.destRoot, func(relPath string, meta *FileMeta) error {
		if !meta.Regular {
			return nil
		}
		destPath := filepath.Join(s.destRoot, relPath)
		if _, ok := known[destPath]; ok {
			return nil
		}

		sourcePath := filepath.Join(s.sourceRoot, relPath)
		_, statErr := s.fs.Stat(sourcePath)
		switch {
		case statErr == nil:
			// Source exists but was never catalogued, likely created after
			// the scan. Leave it for the next run.
			s.log.Debug("keeping uncatalogued file with live source", "dest", destPath)
		case errors.Is(statErr, iofs.ErrNotExist):
			if err := s.fs.Remove(destPath); err != nil {
				s.log.Error("deleting extra file", "dest", destPath, "error", err)
				return nil
			}
			s.audit.Record(AuditDelete, sourcePath, destPath, "")
			deleted++
		default:
			s.log.Warn("keeping extra file, source unverifiable", "dest", destPath, "error", statErr)
		}
		return nil
	})
	if err != nil {
		return deleted, fmt.Errorf("sweeping destination %s: %w", s.destRoot, err)
	}
	return deleted, nil
}
