package hsync

import (
	"context"
	"fmt"
)

// Writer is the consuming half of the transfer pipeline. It replays blocks
// into destination files, applies source timestamps and commits the catalog
// transition to synced once the last block of a file is flushed.
type Writer struct {
	fs       FilesystemManager
	catalog  Catalog
	queue    *BlockQueue
	governor *Governor
	pool     *BufferPool
	log      Logger
	audit    Auditor
	tracker  *Tracker

	// current file state
	out        BlockWriter
	sourcePath string
	destPath   string

	// source whose remaining blocks are dropped after a mid-file failure
	skipSource string
}

func NewWriter(fs FilesystemManager, catalog Catalog, queue *BlockQueue, governor *Governor, pool *BufferPool, log Logger, audit Auditor, tracker *Tracker) *Writer {
	return &Writer{
		fs:       fs,
		catalog:  catalog,
		queue:    queue,
		governor: governor,
		pool:     pool,
		log:      log,
		audit:    audit,
		tracker:  tracker,
	}
}

// Run consumes blocks until the queue reports end-of-stream or ctx is
// cancelled. A block at a nonzero offset with no file open is a protocol
// violation and aborts the writer.
func (w *Writer) Run(ctx context.Context) error {
	defer w.abandon()
	for {
		blk, ok, err := w.queue.Consume(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := w.handle(ctx, blk); err != nil {
			return err
		}
	}
}

func (w *Writer) handle(ctx context.Context, blk *Block) error {
	defer w.pool.Put(blk.Data)

	if blk.SourcePath == w.skipSource && blk.Offset != 0 {
		return nil
	}
	w.skipSource = ""

	if blk.Offset == 0 {
		// A new file while one is still open means the producer gave up on
		// the previous file mid-stream.
		w.abandon()
		out, err := w.fs.CreateTruncate(blk.DestPath)
		if err != nil {
			w.log.Error("creating destination", "dest", blk.DestPath, "error", err)
			w.audit.Record(AuditFailure, blk.SourcePath, blk.DestPath, "")
			w.skipSource = blk.SourcePath
			return nil
		}
		w.out = out
		w.sourcePath = blk.SourcePath
		w.destPath = blk.DestPath
	} else if w.out == nil {
		return fmt.Errorf("block at offset %d for %s with no open file", blk.Offset, blk.SourcePath)
	}

	if len(blk.Data) > 0 {
		if err := w.governor.Acquire(ctx, int64(len(blk.Data))); err != nil {
			return err
		}
		if _, err := w.out.WriteAt(blk.Data, blk.Offset); err != nil {
			w.log.Error("writing destination", "dest", w.destPath, "offset", blk.Offset, "error", err)
			w.audit.Record(AuditFailure, w.sourcePath, w.destPath, "")
			w.skipSource = w.sourcePath
			w.abandon()
			return nil
		}
		w.tracker.Transferred(int64(len(blk.Data)))
	}

	if blk.IsLast {
		return w.finalize(ctx, blk)
	}
	return nil
}

// finalize closes the destination, applies timestamps and commits the
// catalog row. A timestamp failure is logged but does not fail the file; a
// catalog failure is fatal.
func (w *Writer) finalize(ctx context.Context, blk *Block) error {
	out := w.out
	w.out = nil
	if err := out.Close(); err != nil {
		w.log.Error("closing destination", "dest", w.destPath, "error", err)
		w.audit.Record(AuditFailure, w.sourcePath, w.destPath, "")
		return nil
	}

	if err := w.fs.ApplyTimes(w.destPath, blk.Atime, blk.Mtime); err != nil {
		w.log.Warn("applying timestamps", "dest", w.destPath, "error", err)
	}
	// ctime is owned by the kernel and cannot be replicated from userspace.
	w.log.Debug("ctime not applied", "dest", w.destPath)

	if err := w.catalog.MarkSynced(ctx, w.sourcePath, blk.Hash); err != nil {
		return fmt.Errorf("marking %s synced: %w", w.sourcePath, err)
	}
	w.audit.Record(AuditSuccess, w.sourcePath, w.destPath, blk.Hash)
	w.tracker.FileDone()
	return nil
}

// abandon closes any open destination without finalizing it. The catalog
// row stays pending, so the file is retransferred from offset zero on the
// next run.
func (w *Writer) abandon() {
	if w.out == nil {
		return
	}
	w.log.Warn("abandoning unfinalized file", "dest", w.destPath)
	w.out.Close()
	w.out = nil
}
