package hsync

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
)

// Options configures a sync run.
type Options struct {
	SourceRoot    string
	DestRoot      string
	Bwlimit       int64 // bytes per second, 0 = unlimited
	Algo          Algorithm
	DeleteExtras  bool
	Rescan        bool
	BlockSize     int64
	QueueCapacity int

	// Exclude, when non-nil, reports source-relative paths to leave out of
	// the sync.
	Exclude func(relPath string) bool
}

// Validate rejects option combinations that would corrupt a run. Called
// before any filesystem or catalog work.
func (o Options) Validate() error {
	if o.SourceRoot == "" {
		return errors.New("source root is required")
	}
	if o.DestRoot == "" {
		return errors.New("destination root is required")
	}
	if o.BlockSize <= 0 {
		return fmt.Errorf("block size must be positive, got %d", o.BlockSize)
	}
	if o.QueueCapacity <= 0 {
		return fmt.Errorf("queue capacity must be positive, got %d", o.QueueCapacity)
	}
	if o.Bwlimit < 0 {
		return fmt.Errorf("bandwidth limit must not be negative, got %d", o.Bwlimit)
	}
	if _, err := ParseAlgorithm(string(o.Algo)); err != nil {
		return err
	}
	return nil
}

// Service orchestrates a full run: the scan-or-resume decision, the
// producer-consumer transfer pipeline and the optional mirror sweep.
type Service struct {
	fs      FilesystemManager
	catalog Catalog
	log     Logger
	audit   Auditor
	tracker *Tracker
	clock   Clock
	console io.Writer
	opts    Options
}

func NewService(fs FilesystemManager, catalog Catalog, log Logger, audit Auditor, tracker *Tracker, clock Clock, console io.Writer, opts Options) *Service {
	if clock == nil {
		clock = RealClock{}
	}
	return &Service{
		fs:      fs,
		catalog: catalog,
		log:     log,
		audit:   audit,
		tracker: tracker,
		clock:   clock,
		console: console,
		opts:    opts,
	}
}

// Run executes one sync run to completion or cancellation. The caller maps
// a context cancellation to the interrupted exit status.
func (s *Service) Run(ctx context.Context) error {
	if err := s.opts.Validate(); err != nil {
		return err
	}

	pending, err := s.catalog.CountPending(ctx)
	if err != nil {
		return fmt.Errorf("counting backlog: %w", err)
	}

	if pending > 0 && !s.opts.Rescan {
		fmt.Fprintf(s.console, "resuming: %d files pending\n", pending)
		s.log.Info("resuming from catalog", "pending", pending)
	} else {
		fmt.Fprintln(s.console, "scanning source tree")
		s.log.Info("starting scan", "source", s.opts.SourceRoot, "rescan", s.opts.Rescan)
		scanner := NewScanner(s.fs, s.catalog, s.log, s.audit, s.tracker, s.opts.SourceRoot, s.opts.DestRoot, s.opts.Exclude)
		if err := scanner.ScanSource(ctx); err != nil {
			return err
		}
	}

	if err := s.transfer(ctx); err != nil {
		return err
	}

	if s.opts.DeleteExtras {
		sweeper := NewSweeper(s.fs, s.catalog, s.log, s.audit, s.opts.SourceRoot, s.opts.DestRoot)
		deleted, err := sweeper.Run(ctx)
		if err != nil {
			return err
		}
		s.log.Info("sweep complete", "deleted", deleted)
		if deleted > 0 {
			fmt.Fprintf(s.console, "deleted %d extra files\n", deleted)
		}
	}

	fmt.Fprintln(s.console, s.tracker.Summary())
	return nil
}

func (s *Service) transfer(ctx context.Context) error {
	count, err := s.catalog.CountPending(ctx)
	if err != nil {
		return fmt.Errorf("counting backlog: %w", err)
	}
	bytes, err := s.catalog.BytesPending(ctx)
	if err != nil {
		return fmt.Errorf("sizing backlog: %w", err)
	}
	lifetime, err := s.catalog.LifetimeBytesSynced(ctx)
	if err != nil {
		return fmt.Errorf("reading lifetime total: %w", err)
	}
	s.tracker.SetBaseline(bytes, lifetime)

	if count == 0 {
		fmt.Fprintln(s.console, "nothing to transfer")
		s.log.Info("backlog empty")
		return nil
	}
	fmt.Fprintf(s.console, "transferring %d files, %s\n", count, humanize.IBytes(uint64(bytes)))
	s.log.Info("starting transfer", "files", count, "bytes", bytes)

	governor, err := NewGovernor(s.opts.Bwlimit, s.clock)
	if err != nil {
		return err
	}
	queue := NewBlockQueue(s.opts.QueueCapacity)
	pool := NewBufferPool(int(s.opts.BlockSize))
	reader := NewReader(s.fs, s.catalog, queue, governor, pool, s.log, s.audit, s.tracker, s.opts.Algo, s.opts.BlockSize)
	writer := NewWriter(s.fs, s.catalog, queue, governor, pool, s.log, s.audit, s.tracker)

	// The writer drains queued blocks after a cancellation, so files whose
	// last block is already queued still finalize. A second signal kills
	// the process outright via the caller's signal handling.
	drainCtx := context.WithoutCancel(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer queue.Close()
		return reader.Run(gctx)
	})
	g.Go(func() error {
		return writer.Run(drainCtx)
	})
	if err := g.Wait(); err != nil {
		return err
	}
	s.log.Info("transfer complete", "session_bytes", s.tracker.SessionBytes())
	return nil
}
