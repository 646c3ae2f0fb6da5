package hsync

import (
	"context"
	"time"
)

// Status is the sync state of a catalog row.
type Status string

const (
	// StatusPending marks a file that still needs transfer.
	StatusPending Status = "pending"
	// StatusSynced marks a file whose destination matches the source.
	StatusSynced Status = "synced"
)

// FileRecord is a single row in the catalog, keyed by SourcePath.
type FileRecord struct {
	SourcePath  string
	DestPath    string
	Ctime       time.Time
	Mtime       time.Time
	Atime       time.Time
	Permissions uint32 // captured for audit only, never applied
	Size        int64
	Hash        string // lowercase hex digest; empty until a transfer completes
	Status      Status
}

// Catalog provides durable per-file state keyed by source path.
// Every state transition must be committed before it is considered
// observable, so that a restart sees exactly the unacknowledged backlog.
type Catalog interface {
	// UpsertScanned inserts or refreshes a scanned record. When needsTransfer
	// is true the row becomes pending, otherwise synced. A stored hash is
	// retained only if the existing row's (size, mtime) equal the incoming
	// values; otherwise it is cleared.
	UpsertScanned(ctx context.Context, rec FileRecord, needsTransfer bool) error

	// MarkSynced atomically sets status=synced and stores the transfer hash.
	MarkSynced(ctx context.Context, sourcePath, hash string) error

	// PendingFiles returns a snapshot of the backlog in stable order
	// (by source path). Rows marked synced after the snapshot was taken are
	// simply transferred again with the same result.
	PendingFiles(ctx context.Context) ([]FileRecord, error)

	// CountPending returns the number of rows in the backlog.
	CountPending(ctx context.Context) (int64, error)

	// BytesPending returns the total size of the backlog in bytes.
	BytesPending(ctx context.Context) (int64, error)

	// DestEntriesIn returns the destination paths of all catalog rows under
	// the given prefix. The sweeper uses this to classify destination files
	// with no corresponding source record.
	DestEntriesIn(ctx context.Context, prefix string) (map[string]struct{}, error)

	// LifetimeBytesSynced returns the total size of all synced rows,
	// across every run recorded in this catalog.
	LifetimeBytesSynced(ctx context.Context) (int64, error)

	// CreateOperation records the start of a run and returns its ID.
	CreateOperation(ctx context.Context, operation, parameters string) (int64, error)

	// FinishOperation records the terminal status of a run.
	FinishOperation(ctx context.Context, id int64, status string) error

	// Close closes the underlying store.
	Close() error
}
