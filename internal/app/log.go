package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// hsyncHandler is a custom slog.Handler that formats log records as:
//
//	<timestamp>\t<level>\t<opID>\t<message>\t<key=value ...>
type hsyncHandler struct {
	w     io.Writer
	opID  string
	attrs []slog.Attr
}

func (h *hsyncHandler) Enabled(_ context.Context, _ slog.Level) bool { return true }

func (h *hsyncHandler) Handle(_ context.Context, r slog.Record) error {
	ts := r.Time.UTC().Format("2006-01-02T15:04:05Z")
	level := r.Level.String()

	_, err := fmt.Fprintf(h.w, "%s\t%s\t%s\t%s", ts, level, h.opID, r.Message)
	if err != nil {
		return err
	}

	// Write pre-set attrs.
	for _, a := range h.attrs {
		fmt.Fprintf(h.w, "\t%s=%v", a.Key, a.Value)
	}

	// Write per-record attrs.
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(h.w, "\t%s=%v", a.Key, a.Value)
		return true
	})

	_, err = fmt.Fprintln(h.w)
	return err
}

func (h *hsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &hsyncHandler{
		w:     h.w,
		opID:  h.opID,
		attrs: append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

func (h *hsyncHandler) WithGroup(string) slog.Handler { return h }

// newLogger creates a structured logger writing to both the rotated run log
// and stderr. Rotation keeps multi-week runs from growing the diagnostic
// log without bound; the audit log is append-only and never rotated.
func newLogger(runLogPath string, opID string) (*slog.Logger, io.Closer) {
	rotated := &lumberjack.Logger{
		Filename:   runLogPath,
		MaxSize:    100, // megabytes
		MaxBackups: 10,
	}
	w := io.MultiWriter(rotated, os.Stderr)
	handler := &hsyncHandler{w: w, opID: opID}
	return slog.New(handler), rotated
}

// slogAdapter wraps *slog.Logger to satisfy the hsync.Logger interface.
type slogAdapter struct {
	l *slog.Logger
}

func (a *slogAdapter) Debug(msg string, args ...any) { a.l.Debug(msg, args...) }
func (a *slogAdapter) Info(msg string, args ...any)  { a.l.Info(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.l.Warn(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }
