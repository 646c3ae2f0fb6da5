package hsync

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// Reader is the producing half of the transfer pipeline. It drains the
// catalog's pending backlog, splitting each file into blocks and hashing the
// content as it streams.
type Reader struct {
	fs       FilesystemManager
	catalog  Catalog
	queue    *BlockQueue
	governor *Governor
	pool     *BufferPool
	log      Logger
	audit    Auditor
	tracker  *Tracker

	algo      Algorithm
	blockSize int64
}

func NewReader(fs FilesystemManager, catalog Catalog, queue *BlockQueue, governor *Governor, pool *BufferPool, log Logger, audit Auditor, tracker *Tracker, algo Algorithm, blockSize int64) *Reader {
	return &Reader{
		fs:        fs,
		catalog:   catalog,
		queue:     queue,
		governor:  governor,
		pool:      pool,
		log:       log,
		audit:     audit,
		tracker:   tracker,
		algo:      algo,
		blockSize: blockSize,
	}
}

// Run transfers the pending backlog. A failure on one file is audited and
// logged and the next file is attempted; only queue closure, context
// cancellation or a backlog query error stops the run early.
func (r *Reader) Run(ctx context.Context) error {
	backlog, err := r.catalog.PendingFiles(ctx)
	if err != nil {
		return fmt.Errorf("loading pending backlog: %w", err)
	}
	for _, rec := range backlog {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.transferFile(ctx, rec); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, ErrQueueClosed) {
				return err
			}
			r.log.Error("transfer failed", "source", rec.SourcePath, "error", err)
			r.audit.Record(AuditFailure, rec.SourcePath, rec.DestPath, "")
		}
	}
	return nil
}

func (r *Reader) transferFile(ctx context.Context, rec FileRecord) error {
	// Fresh metadata at transfer time: the file may have changed since the
	// scan, and the destination must mirror what is actually read.
	meta, err := r.fs.Stat(rec.SourcePath)
	if err != nil {
		return fmt.Errorf("stating source: %w", err)
	}
	if !meta.Regular {
		return fmt.Errorf("source is no longer a regular file")
	}

	f, err := r.fs.Open(rec.SourcePath)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer f.Close()

	hasher, err := NewHasher(r.algo)
	if err != nil {
		return err
	}

	r.tracker.StartFile(rec.SourcePath, meta.Size)
	r.log.Debug("transferring", "source", rec.SourcePath, "size", meta.Size)

	remaining := meta.Size
	var offset int64
	for {
		n := r.blockSize
		if n > remaining {
			n = remaining
		}

		if err := r.governor.Acquire(ctx, n); err != nil {
			return err
		}

		buf := r.pool.Get()
		if _, err := io.ReadFull(f, buf[:n]); err != nil {
			r.pool.Put(buf)
			return fmt.Errorf("reading at offset %d: %w", offset, err)
		}
		hasher.Write(buf[:n])

		last := remaining-n == 0
		blk := &Block{
			SourcePath: rec.SourcePath,
			DestPath:   rec.DestPath,
			Offset:     offset,
			Data:       buf[:n],
			IsLast:     last,
		}
		if last {
			blk.Hash = hex.EncodeToString(hasher.Sum(nil))
			blk.Mtime = meta.Mtime
			blk.Atime = meta.Atime
		}
		if err := r.queue.Publish(ctx, blk); err != nil {
			r.pool.Put(buf)
			return err
		}
		if last {
			return nil
		}
		offset += n
		remaining -= n
	}
}
