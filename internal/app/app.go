package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"hsync-go/internal/catalog"
	"hsync-go/internal/config"
	"hsync-go/internal/fs"
	"hsync-go/internal/hsync"
)

// App is the application layer between the CLI and the sync engine. It
// constructs all dependencies from config, runs the engine and manages the
// catalog lifecycle on Close.
type App struct {
	catalog   *catalog.SQLiteCatalog
	service   *hsync.Service
	op        *SyncOperation
	log       hsync.Logger
	auditFile *os.File
	logCloser io.Closer
}

// BuildOptions translates the merged config into engine options, parsing
// the human-readable sizes and validating the sync roots. Validation errors
// are fatal before any catalog or transfer work starts.
func BuildOptions(cfg *config.Config) (hsync.Options, error) {
	var opts hsync.Options

	for _, root := range []struct {
		flag, path string
	}{
		{"source", cfg.Source},
		{"dest", cfg.Dest},
	} {
		if root.path == "" {
			return opts, fmt.Errorf("--%s is required", root.flag)
		}
		info, err := os.Stat(root.path)
		if err != nil {
			return opts, fmt.Errorf("invalid --%s: %w", root.flag, err)
		}
		if !info.IsDir() {
			return opts, fmt.Errorf("invalid --%s: %s is not a directory", root.flag, root.path)
		}
	}

	var bwlimit int64
	if cfg.Bwlimit != "" {
		v, err := hsync.ParseByteSize(cfg.Bwlimit)
		if err != nil {
			return opts, fmt.Errorf("invalid --bwlimit: %w", err)
		}
		bwlimit = v
	}

	blockSize, err := hsync.ParseByteSize(cfg.BlockSize)
	if err != nil {
		return opts, fmt.Errorf("invalid --block-size: %w", err)
	}

	algo, err := hsync.ParseAlgorithm(cfg.Checksum)
	if err != nil {
		return opts, fmt.Errorf("invalid --checksum: %w", err)
	}

	exclude, err := buildExclude(cfg)
	if err != nil {
		return opts, err
	}

	opts = hsync.Options{
		SourceRoot:    cfg.Source,
		DestRoot:      cfg.Dest,
		Bwlimit:       bwlimit,
		Algo:          algo,
		DeleteExtras:  cfg.DeleteExtras,
		Rescan:        cfg.Rescan,
		BlockSize:     blockSize,
		QueueCapacity: cfg.QueueCap,
		Exclude:       exclude,
	}
	if err := opts.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}

// buildExclude combines the configured exclude patterns with the source
// tree's optional .hsyncignore file. The exclude file itself is always left
// out of the sync.
func buildExclude(cfg *config.Config) (func(relPath string) bool, error) {
	patterns := []string{fs.ExcludeFileName}
	patterns = append(patterns, cfg.Exclude...)

	filePatterns, err := fs.ParseExcludeFile(filepath.Join(cfg.Source, fs.ExcludeFileName))
	if err != nil {
		return nil, fmt.Errorf("reading exclude file: %w", err)
	}
	patterns = append(patterns, filePatterns...)

	return fs.NewExcludeMatcher(patterns).Match, nil
}

// NewApp creates a fully wired App from the given config. The caller must
// call Close when done.
func NewApp(cfg *config.Config) (*App, error) {
	opts, err := BuildOptions(cfg)
	if err != nil {
		return nil, err
	}

	cat, err := catalog.NewSQLiteCatalog(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}

	opID := time.Now().UTC().Format("20060102T150405Z")
	slogger, logCloser := newLogger(runLogPath(cfg.Log), opID)
	logger := &slogAdapter{l: slogger}

	auditFile, err := os.OpenFile(cfg.Log, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		cat.Close()
		logCloser.Close()
		return nil, fmt.Errorf("opening audit log: %w", err)
	}

	clock := hsync.RealClock{}
	audit := hsync.NewAuditLog(auditFile, clock)
	tracker := hsync.NewTracker(os.Stdout, clock, cfg.Quiet)
	fsmgr := fs.NewOSFilesystemManager()
	svc := hsync.NewService(fsmgr, cat, logger, audit, tracker, clock, os.Stdout, opts)

	op := NewSyncOperation("sync", fmt.Sprintf("%s -> %s", cfg.Source, cfg.Dest))

	return &App{
		catalog:   cat,
		service:   svc,
		op:        op,
		log:       logger,
		auditFile: auditFile,
		logCloser: logCloser,
	}, nil
}

// runLogPath places the rotated diagnostic log next to the audit log,
// e.g. hsync.log -> hsync-run.log.
func runLogPath(auditPath string) string {
	ext := filepath.Ext(auditPath)
	return strings.TrimSuffix(auditPath, ext) + "-run" + ext
}

// Run records the operation in the catalog and executes one sync run.
func (a *App) Run(ctx context.Context) error {
	id, err := a.catalog.CreateOperation(ctx, a.op.Operation, a.op.Parameters)
	if err != nil {
		return fmt.Errorf("recording operation: %w", err)
	}
	a.op.ID = id

	err = a.service.Run(ctx)
	switch {
	case err == nil:
		a.op.Status = "success"
	case errors.Is(err, context.Canceled):
		a.op.Status = "interrupted"
	default:
		a.op.Status = "error"
	}
	return err
}

// Close finalizes the operation record and closes all resources.
func (a *App) Close() error {
	var firstErr error

	if a.op.Persisted() {
		if err := a.catalog.FinishOperation(context.Background(), a.op.ID, a.op.Status); err != nil {
			firstErr = fmt.Errorf("finishing operation: %w", err)
		}
	}

	if err := a.catalog.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing catalog: %w", err)
	}

	if err := a.auditFile.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing audit log: %w", err)
	}

	if a.logCloser != nil {
		a.logCloser.Close()
	}

	return firstErr
}
