package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"hsync-go/internal/catalog/migrations"
	"hsync-go/internal/hsync"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteCatalog implements the hsync.Catalog interface using SQLite.
// Timestamps are stored as unix nanoseconds so comparisons survive the
// round-trip at full filesystem resolution.
type SQLiteCatalog struct {
	db   *sql.DB
	path string
}

// NewSQLiteCatalog opens (or creates) the catalog at path and migrates its
// schema to the latest version. path can be a file path or ":memory:".
func NewSQLiteCatalog(path string) (*SQLiteCatalog, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating catalog: %w", err)
	}
	return &SQLiteCatalog{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite connection with appropriate
// PRAGMAs. Exported for tools and tests that need a raw configured handle.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	// busy_timeout makes a connection wait up to 5s for a lock held by
	// another connection instead of failing at once.
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	// Each pooled connection to ":memory:" would otherwise see its own
	// empty database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	return db, nil
}

// UpsertScanned inserts or refreshes a scanned row. The stored hash is kept
// only when the existing row's size and mtime match the incoming values,
// since an equal (size, mtime) pair is the same signal the scanner uses to
// trust the destination copy.
func (c *SQLiteCatalog) UpsertScanned(ctx context.Context, rec hsync.FileRecord, needsTransfer bool) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		prevHash  sql.NullString
		prevMtime int64
		prevSize  int64
	)
	keepHash := sql.NullString{}
	err = tx.QueryRowContext(ctx,
		`SELECT hash, mtime_ns, size FROM files WHERE source_path = ?`,
		rec.SourcePath).Scan(&prevHash, &prevMtime, &prevSize)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// First sighting of this file.
	case err != nil:
		return fmt.Errorf("loading existing row: %w", err)
	default:
		if prevHash.Valid && prevMtime == rec.Mtime.UnixNano() && prevSize == rec.Size {
			keepHash = prevHash
		}
	}

	status := hsync.StatusSynced
	if needsTransfer {
		status = hsync.StatusPending
	}

	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO files
		   (source_path, dest_path, ctime_ns, mtime_ns, atime_ns, permissions, size, hash, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SourcePath, rec.DestPath,
		rec.Ctime.UnixNano(), rec.Mtime.UnixNano(), rec.Atime.UnixNano(),
		rec.Permissions, rec.Size, keepHash, string(status))
	if err != nil {
		return fmt.Errorf("upserting scanned file: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// MarkSynced records a completed transfer. The status flip and the hash are
// committed together so a crash never leaves a synced row without its digest.
func (c *SQLiteCatalog) MarkSynced(ctx context.Context, sourcePath, hash string) error {
	res, err := c.db.ExecContext(ctx,
		`UPDATE files SET status = ?, hash = ? WHERE source_path = ?`,
		string(hsync.StatusSynced), hash, sourcePath)
	if err != nil {
		return fmt.Errorf("marking file synced: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("no catalog row for %s", sourcePath)
	}
	return nil
}

// PendingFiles returns a snapshot of the backlog ordered by source path.
func (c *SQLiteCatalog) PendingFiles(ctx context.Context) ([]hsync.FileRecord, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT source_path, dest_path, ctime_ns, mtime_ns, atime_ns, permissions, size, hash, status
		   FROM files WHERE status = ? ORDER BY source_path`,
		string(hsync.StatusPending))
	if err != nil {
		return nil, fmt.Errorf("querying pending files: %w", err)
	}
	defer rows.Close()

	var recs []hsync.FileRecord
	for rows.Next() {
		rec, err := scanFileRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pending files: %w", err)
	}
	return recs, nil
}

func scanFileRecord(rows *sql.Rows) (hsync.FileRecord, error) {
	var (
		rec        hsync.FileRecord
		ctimeNs    int64
		mtimeNs    int64
		atimeNs    int64
		hash       sql.NullString
		status     string
	)
	err := rows.Scan(&rec.SourcePath, &rec.DestPath, &ctimeNs, &mtimeNs, &atimeNs,
		&rec.Permissions, &rec.Size, &hash, &status)
	if err != nil {
		return hsync.FileRecord{}, fmt.Errorf("scanning file row: %w", err)
	}
	rec.Ctime = time.Unix(0, ctimeNs)
	rec.Mtime = time.Unix(0, mtimeNs)
	rec.Atime = time.Unix(0, atimeNs)
	rec.Hash = hash.String
	rec.Status = hsync.Status(status)
	return rec, nil
}

// CountPending returns the number of rows in the backlog.
func (c *SQLiteCatalog) CountPending(ctx context.Context) (int64, error) {
	var n int64
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM files WHERE status = ?`,
		string(hsync.StatusPending)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting pending files: %w", err)
	}
	return n, nil
}

// BytesPending returns the total size of the backlog in bytes.
func (c *SQLiteCatalog) BytesPending(ctx context.Context) (int64, error) {
	var n int64
	err := c.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(size), 0) FROM files WHERE status = ?`,
		string(hsync.StatusPending)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sizing pending files: %w", err)
	}
	return n, nil
}

// DestEntriesIn returns the destination paths of all rows under prefix.
func (c *SQLiteCatalog) DestEntriesIn(ctx context.Context, prefix string) (map[string]struct{}, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT dest_path FROM files WHERE dest_path LIKE ?`,
		prefix+"/%")
	if err != nil {
		return nil, fmt.Errorf("querying destination entries: %w", err)
	}
	defer rows.Close()

	entries := make(map[string]struct{})
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scanning destination entry: %w", err)
		}
		entries[p] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating destination entries: %w", err)
	}
	return entries, nil
}

// LifetimeBytesSynced returns the total size of all synced rows, across
// every run recorded in this catalog.
func (c *SQLiteCatalog) LifetimeBytesSynced(ctx context.Context) (int64, error) {
	var n int64
	err := c.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(size), 0) FROM files WHERE status = ?`,
		string(hsync.StatusSynced)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sizing synced files: %w", err)
	}
	return n, nil
}

// CreateOperation records the start of a run and returns its ID.
func (c *SQLiteCatalog) CreateOperation(ctx context.Context, operation, parameters string) (int64, error) {
	res, err := c.db.ExecContext(ctx,
		`INSERT INTO operations (uuid, operation, parameters, started_at, status)
		 VALUES (?, ?, ?, ?, 'running')`,
		uuid.New().String(), operation, parameters, time.Now())
	if err != nil {
		return 0, fmt.Errorf("creating operation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading operation id: %w", err)
	}
	return id, nil
}

// Operation is one recorded run from the operations table.
type Operation struct {
	ID         int64
	UUID       string
	Operation  string
	Parameters string
	StartedAt  time.Time
	FinishedAt sql.NullTime
	Status     string
}

// ListOperations returns the most recent runs, newest first.
func (c *SQLiteCatalog) ListOperations(ctx context.Context, limit int) ([]Operation, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, uuid, operation, parameters, started_at, finished_at, status
		   FROM operations ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	var ops []Operation
	for rows.Next() {
		var op Operation
		err := rows.Scan(&op.ID, &op.UUID, &op.Operation, &op.Parameters,
			&op.StartedAt, &op.FinishedAt, &op.Status)
		if err != nil {
			return nil, fmt.Errorf("scanning operation row: %w", err)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating operations: %w", err)
	}
	return ops, nil
}

// FinishOperation records the terminal status of a run.
func (c *SQLiteCatalog) FinishOperation(ctx context.Context, id int64, status string) error {
	_, err := c.db.ExecContext(ctx,
		`UPDATE operations SET finished_at = ?, status = ? WHERE id = ?`,
		time.Now(), status, id)
	if err != nil {
		return fmt.Errorf("finishing operation: %w", err)
	}
	return nil
}

// Path returns the catalog file path (or ":memory:").
func (c *SQLiteCatalog) Path() string {
	return c.path
}

// Close closes the database connection.
func (c *SQLiteCatalog) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteCatalog implements hsync.Catalog
var _ hsync.Catalog = (*SQLiteCatalog)(nil)
