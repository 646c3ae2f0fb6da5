package hsync

import (
	"bytes"
	"context"
	"io"
	iofs "io/fs"
	"sort"
	"strings"
	"sync"
	"time"
)

// fakeFile is one entry in the fake filesystem.
type fakeFile struct {
	data []byte
	meta FileMeta
}

// fakeFS is an in-memory FilesystemManager keyed by absolute path. Error
// injection maps let tests simulate unreadable or unwritable paths.
type fakeFS struct {
	mu    sync.Mutex
	files map[string]*fakeFile

	statErr   map[string]error
	openErr   map[string]error
	createErr map[string]error
	removeErr map[string]error
}

func newFakeFS() *fakeFS {
	return &fakeFS{
		files:     make(map[string]*fakeFile),
		statErr:   make(map[string]error),
		openErr:   make(map[string]error),
		createErr: make(map[string]error),
		removeErr: make(map[string]error),
	}
}

func (f *fakeFS) addFile(path string, data []byte, mtime time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[path] = &fakeFile{
		data: data,
		meta: FileMeta{
			Size:        int64(len(data)),
			Mtime:       mtime,
			Atime:       mtime.Add(time.Minute),
			Ctime:       mtime.Add(2 * time.Minute),
			Permissions: 0o644,
			Regular:     true,
		},
	}
}

func (f *fakeFS) addSpecial(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[path] = &fakeFile{meta: FileMeta{Regular: false}}
}

func (f *fakeFS) contents(path string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[path]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), file.data...), true
}

func notExist(path string) error {
	return &iofs.PathError{Op: "stat", Path: path, Err: iofs.ErrNotExist}
}

func (f *fakeFS) WalkFiles(_ context.Context, root string, fn func(relPath string, meta *FileMeta) error) error {
	f.mu.Lock()
	var paths []string
	for p := range f.files {
		if strings.HasPrefix(p, root+"/") {
			paths = append(paths, p)
		}
	}
	f.mu.Unlock()
	sort.Strings(paths)

	for _, p := range paths {
		f.mu.Lock()
		file, ok := f.files[p]
		f.mu.Unlock()
		if !ok {
			continue
		}
		meta := file.meta
		if err := fn(strings.TrimPrefix(p, root+"/"), &meta); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeFS) Stat(path string) (*FileMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.statErr[path]; ok {
		return nil, err
	}
	file, ok := f.files[path]
	if !ok {
		return nil, notExist(path)
	}
	meta := file.meta
	return &meta, nil
}

func (f *fakeFS) Open(path string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.openErr[path]; ok {
		return nil, err
	}
	file, ok := f.files[path]
	if !ok {
		return nil, notExist(path)
	}
	return io.NopCloser(bytes.NewReader(file.data)), nil
}

func (f *fakeFS) CreateTruncate(path string) (BlockWriter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.createErr[path]; ok {
		return nil, err
	}
	f.files[path] = &fakeFile{meta: FileMeta{Regular: true}}
	return &fakeWriter{fs: f, path: path}, nil
}

func (f *fakeFS) ApplyTimes(path string, atime, mtime time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[path]
	if !ok {
		return notExist(path)
	}
	file.meta.Atime = atime
	file.meta.Mtime = mtime
	return nil
}

func (f *fakeFS) Remove(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.removeErr[path]; ok {
		return err
	}
	if _, ok := f.files[path]; !ok {
		return notExist(path)
	}
	delete(f.files, path)
	return nil
}

var _ FilesystemManager = (*fakeFS)(nil)

// fakeWriter appends WriteAt data into the fake file.
type fakeWriter struct {
	fs     *fakeFS
	path   string
	closed bool
}

func (w *fakeWriter) WriteAt(p []byte, off int64) (int, error) {
	w.fs.mu.Lock()
	defer w.fs.mu.Unlock()
	file := w.fs.files[w.path]
	end := off + int64(len(p))
	if int64(len(file.data)) < end {
		grown := make([]byte, end)
		copy(grown, file.data)
		file.data = grown
	}
	copy(file.data[off:], p)
	file.meta.Size = int64(len(file.data))
	return len(p), nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

// fakeCatalog is an in-memory Catalog for pipeline tests.
type fakeCatalog struct {
	mu     sync.Mutex
	rows   map[string]*FileRecord
	synced []string // MarkSynced call order
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{rows: make(map[string]*FileRecord)}
}

func (c *fakeCatalog) addPending(rec FileRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec.Status = StatusPending
	c.rows[rec.SourcePath] = &rec
}

func (c *fakeCatalog) row(sourcePath string) (FileRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.rows[sourcePath]
	if !ok {
		return FileRecord{}, false
	}
	return *rec, true
}

func (c *fakeCatalog) UpsertScanned(_ context.Context, rec FileRecord, needsTransfer bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.rows[rec.SourcePath]; ok {
		if prev.Hash != "" && prev.Mtime.Equal(rec.Mtime) && prev.Size == rec.Size {
			rec.Hash = prev.Hash
		}
	}
	if needsTransfer {
		rec.Status = StatusPending
	} else {
		rec.Status = StatusSynced
	}
	c.rows[rec.SourcePath] = &rec
	return nil
}

func (c *fakeCatalog) MarkSynced(_ context.Context, sourcePath, hash string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.rows[sourcePath]
	if !ok {
		return notExist(sourcePath)
	}
	rec.Status = StatusSynced
	rec.Hash = hash
	c.synced = append(c.synced, sourcePath)
	return nil
}

func (c *fakeCatalog) PendingFiles(_ context.Context) ([]FileRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var recs []FileRecord
	for _, rec := range c.rows {
		if rec.Status == StatusPending {
			recs = append(recs, *rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].SourcePath < recs[j].SourcePath })
	return recs, nil
}

func (c *fakeCatalog) CountPending(ctx context.Context) (int64, error) {
	recs, _ := c.PendingFiles(ctx)
	return int64(len(recs)), nil
}

func (c *fakeCatalog) BytesPending(ctx context.Context) (int64, error) {
	recs, _ := c.PendingFiles(ctx)
	var total int64
	for _, rec := range recs {
		total += rec.Size
	}
	return total, nil
}

func (c *fakeCatalog) DestEntriesIn(_ context.Context, prefix string) (map[string]struct{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := make(map[string]struct{})
	for _, rec := range c.rows {
		if strings.HasPrefix(rec.DestPath, prefix+"/") {
			entries[rec.DestPath] = struct{}{}
		}
	}
	return entries, nil
}

func (c *fakeCatalog) LifetimeBytesSynced(_ context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total int64
	for _, rec := range c.rows {
		if rec.Status == StatusSynced {
			total += rec.Size
		}
	}
	return total, nil
}

func (c *fakeCatalog) CreateOperation(context.Context, string, string) (int64, error) {
	return 1, nil
}

func (c *fakeCatalog) FinishOperation(context.Context, int64, string) error { return nil }

func (c *fakeCatalog) Close() error { return nil }

var _ Catalog = (*fakeCatalog)(nil)

// auditEntry is one recorded audit event.
type auditEntry struct {
	status     string
	sourcePath string
	destPath   string
	hash       string
}

// recordingAuditor captures audit events in call order.
type recordingAuditor struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (a *recordingAuditor) Record(status, sourcePath, destPath, hash string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, auditEntry{status, sourcePath, destPath, hash})
}

func (a *recordingAuditor) byStatus(status string) []auditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []auditEntry
	for _, e := range a.entries {
		if e.status == status {
			out = append(out, e)
		}
	}
	return out
}

var _ Auditor = (*recordingAuditor)(nil)

// testClock is a manually advanced Clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(start time.Time) *testClock {
	return &testClock{now: start}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
