package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// LogEntry is one line of a run's chronological log.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// RunLog is the append-only log buffer threaded through a deployment run and
// returned alongside the structured result. It also implements slog.Handler
// so component logging lands in the buffer without any global interception.
type RunLog struct {
	mu      sync.Mutex
	entries []LogEntry
	subs    []chan LogEntry
}

// NewRunLog returns an empty run log.
func NewRunLog() *RunLog {
	return &RunLog{}
}

// Logger returns a slog.Logger writing into this buffer.
func (l *RunLog) Logger() *slog.Logger {
	return slog.New(l)
}

// Infof appends an info-level entry.
func (l *RunLog) Infof(format string, args ...any) {
	l.append("INFO", fmt.Sprintf(format, args...))
}

// Warnf appends a warning-level entry.
func (l *RunLog) Warnf(format string, args ...any) {
	l.append("WARN", fmt.Sprintf(format, args...))
}

// Errorf appends an error-level entry.
func (l *RunLog) Errorf(format string, args ...any) {
	l.append("ERROR", fmt.Sprintf(format, args...))
}

// Entries returns a snapshot of the log in append order.
func (l *RunLog) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Subscribe registers a channel that receives every subsequent entry.
// Slow subscribers drop entries instead of blocking the run.
func (l *RunLog) Subscribe() <-chan LogEntry {
	ch := make(chan LogEntry, 64)
	l.mu.Lock()
	l.subs = append(l.subs, ch)
	l.mu.Unlock()
	return ch
}

// Tail atomically snapshots the entries so far and subscribes to the rest,
// so a late reader sees every entry exactly once.
func (l *RunLog) Tail() ([]LogEntry, <-chan LogEntry) {
	ch := make(chan LogEntry, 64)
	l.mu.Lock()
	defer l.mu.Unlock()
	past := make([]LogEntry, len(l.entries))
	copy(past, l.entries)
	l.subs = append(l.subs, ch)
	return past, ch
}

// Close closes all subscriber channels. Call once, after the run finishes.
func (l *RunLog) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ch := range l.subs {
		close(ch)
	}
	l.subs = nil
}

func (l *RunLog) append(level, msg string) {
	entry := LogEntry{Time: time.Now(), Level: level, Message: msg}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	for _, ch := range l.subs {
		select {
		case ch <- entry:
		default:
		}
	}
}

// Enabled implements slog.Handler.
func (l *RunLog) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo
}

// Handle implements slog.Handler.
func (l *RunLog) Handle(_ context.Context, rec slog.Record) error {
	msg := rec.Message
	rec.Attrs(func(a slog.Attr) bool {
		msg += fmt.Sprintf(" %s=%v", a.Key, a.Value)
		return true
	})
	l.append(rec.Level.String(), msg)
	return nil
}

// WithAttrs implements slog.Handler. Attrs are flattened into messages, so
// the buffer itself is returned unchanged.
func (l *RunLog) WithAttrs(_ []slog.Attr) slog.Handler { return l }

// WithGroup implements slog.Handler.
func (l *RunLog) WithGroup(_ string) slog.Handler { return l }
