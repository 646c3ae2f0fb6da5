package hsync

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"
)

func TestTracker_counters(t *testing.T) {
	clock := newTestClock(time.Unix(1700000000, 0))
	tr := NewTracker(io.Discard, clock, true)
	tr.SetBaseline(100, 1000)

	tr.StartFile("/src/a", 60)
	tr.Transferred(40)
	clock.Advance(time.Second)
	tr.Transferred(20)
	tr.FileDone()

	if got := tr.SessionBytes(); got != 60 {
		t.Errorf("SessionBytes() = %d, want 60", got)
	}
	sum := tr.Summary()
	if !strings.Contains(sum, "session 60 B") {
		t.Errorf("Summary() = %q, want session 60 B", sum)
	}
	if !strings.Contains(sum, "lifetime 1.0 KiB") {
		t.Errorf("Summary() = %q, want lifetime 1.0 KiB", sum)
	}
}

func TestTracker_quietSuppressesRendering(t *testing.T) {
	var buf bytes.Buffer
	clock := newTestClock(time.Unix(1700000000, 0))
	tr := NewTracker(&buf, clock, true)

	for i := 0; i < 10; i++ {
		clock.Advance(2 * time.Second)
		tr.Scanned(1024)
	}
	if buf.Len() != 0 {
		t.Errorf("quiet tracker wrote output: %q", buf.String())
	}
}

func TestTracker_renderThrottled(t *testing.T) {
	var buf bytes.Buffer
	clock := newTestClock(time.Unix(1700000000, 0))
	tr := NewTracker(&buf, clock, false)

	// Ten updates inside the same second must collapse to at most one
	// rendered line.
	clock.Advance(2 * time.Second)
	for i := 0; i < 10; i++ {
		tr.Scanned(1024)
		clock.Advance(10 * time.Millisecond)
	}

	lines := strings.Count(buf.String(), "\n")
	if lines > 1 {
		t.Errorf("got %d rendered lines, want at most 1", lines)
	}
}
