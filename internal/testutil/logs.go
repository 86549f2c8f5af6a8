package testutil

import (
	"context"
	"log/slog"
	"sync"
	"testing"
)

// LogEntry is one captured log record with its attributes flattened.
type LogEntry struct {
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// LogRecorder collects records written through the logger from NewLogger.
type LogRecorder struct {
	mu      sync.Mutex
	entries []LogEntry
}

// NewLogger returns a logger that records every entry at DEBUG and above.
func NewLogger(t *testing.T) (*slog.Logger, *LogRecorder) {
	t.Helper()
	rec := &LogRecorder{}
	return slog.New(&recordHandler{rec: rec}), rec
}

// Entries returns the records at exactly level.
func (r *LogRecorder) Entries(level slog.Level) []LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []LogEntry
	for _, e := range r.entries {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

// Count returns how many records were logged at level.
func (r *LogRecorder) Count(level slog.Level) int {
	return len(r.Entries(level))
}

type recordHandler struct {
	rec   *LogRecorder
	attrs []slog.Attr
}

func (h *recordHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordHandler) Handle(_ context.Context, r slog.Record) error {
	e := LogEntry{Level: r.Level, Message: r.Message, Attrs: make(map[string]any)}
	for _, a := range h.attrs {
		e.Attrs[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		e.Attrs[a.Key] = a.Value.Any()
		return true
	})
	h.rec.mu.Lock()
	h.rec.entries = append(h.rec.entries, e)
	h.rec.mu.Unlock()
	return nil
}

func (h *recordHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &recordHandler{rec: h.rec, attrs: append(append([]slog.Attr(nil), h.attrs...), attrs...)}
}

func (h *recordHandler) WithGroup(string) slog.Handler { return h }
