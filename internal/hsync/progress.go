package hsync

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// Tracker reports console progress for the scan and transfer phases. All
// methods are safe for concurrent use; rendering is throttled so per-block
// updates never flood the console.
type Tracker struct {
	mu    sync.Mutex
	w     io.Writer
	clock Clock
	quiet bool

	scanFiles int64
	scanBytes int64

	currentFile  string
	currentSize  int64
	currentBytes int64

	sessionBytes  int64
	lifetimeBytes int64
	backlogBytes  int64

	bandwidth  float64 // bytes/sec, exponentially weighted
	lastSample time.Time
	lastRender time.Time
}

const (
	// Weight of the newest sample in the bandwidth average.
	bandwidthAlpha = 0.3

	renderInterval = time.Second
)

// NewTracker returns a Tracker writing to w. When quiet is true nothing is
// rendered but counters are still maintained.
func NewTracker(w io.Writer, clock Clock, quiet bool) *Tracker {
	if clock == nil {
		clock = RealClock{}
	}
	return &Tracker{w: w, clock: clock, quiet: quiet}
}

// SetBaseline seeds the backlog and lifetime counters from the catalog
// before the transfer phase starts.
func (t *Tracker) SetBaseline(backlogBytes, lifetimeBytes int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.backlogBytes = backlogBytes
	t.lifetimeBytes = lifetimeBytes
}

// Scanned accounts one scanned file during the scan phase.
func (t *Tracker) Scanned(size int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.scanFiles++
	t.scanBytes += size
	if t.shouldRender() {
		fmt.Fprintf(t.w, "scanned %d files, %s\n",
			t.scanFiles, humanize.IBytes(uint64(t.scanBytes)))
	}
}

// StartFile marks the beginning of a file transfer.
func (t *Tracker) StartFile(sourcePath string, size int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.currentFile = sourcePath
	t.currentSize = size
	t.currentBytes = 0
}

// Transferred accounts n transferred bytes and refreshes the bandwidth
// estimate.
func (t *Tracker) Transferred(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.currentBytes += n
	t.sessionBytes += n
	t.lifetimeBytes += n
	if t.backlogBytes > n {
		t.backlogBytes -= n
	} else {
		t.backlogBytes = 0
	}

	now := t.clock.Now()
	if !t.lastSample.IsZero() {
		dt := now.Sub(t.lastSample).Seconds()
		if dt > 0 {
			sample := float64(n) / dt
			if t.bandwidth == 0 {
				t.bandwidth = sample
			} else {
				t.bandwidth = bandwidthAlpha*sample + (1-bandwidthAlpha)*t.bandwidth
			}
		}
	}
	t.lastSample = now

	if t.shouldRender() {
		t.renderTransfer()
	}
}

// FileDone clears the current-file state after a terminal event.
func (t *Tracker) FileDone() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.currentFile = ""
	t.currentSize = 0
	t.currentBytes = 0
}

// Summary renders the end-of-run totals regardless of quiet throttling.
func (t *Tracker) Summary() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fmt.Sprintf("session %s, lifetime %s",
		humanize.IBytes(uint64(t.sessionBytes)),
		humanize.IBytes(uint64(t.lifetimeBytes)))
}

// SessionBytes returns the bytes transferred during this run.
func (t *Tracker) SessionBytes() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionBytes
}

// shouldRender is called with the lock held.
func (t *Tracker) shouldRender() bool {
	if t.quiet {
		return false
	}
	now := t.clock.Now()
	if now.Sub(t.lastRender) < renderInterval {
		return false
	}
	t.lastRender = now
	return true
}

// renderTransfer is called with the lock held.
func (t *Tracker) renderTransfer() {
	line := fmt.Sprintf("%s  %s/%s  %s/s",
		t.currentFile,
		humanize.IBytes(uint64(t.currentBytes)),
		humanize.IBytes(uint64(t.currentSize)),
		humanize.IBytes(uint64(t.bandwidth)))
	if t.bandwidth > 0 {
		fileETA := time.Duration(float64(t.currentSize-t.currentBytes) / t.bandwidth * float64(time.Second))
		totalETA := time.Duration(float64(t.backlogBytes) / t.bandwidth * float64(time.Second))
		line += fmt.Sprintf("  file %s  total %s",
			fileETA.Round(time.Second), totalETA.Round(time.Second))
	}
	line += fmt.Sprintf("  session %s  lifetime %s",
		humanize.IBytes(uint64(t.sessionBytes)),
		humanize.IBytes(uint64(t.lifetimeBytes)))
	fmt.Fprintln(t.w, line)
}
