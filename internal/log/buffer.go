package log

import (
	"sync"
	"time"
)

// LogEntry is a single buffered log line.
type LogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Caller    string         `json:"caller,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// LogBuffer is a fixed-capacity ring of the most recent entries. It is safe
// for concurrent use.
type LogBuffer struct {
	mu      sync.RWMutex
	entries []LogEntry
	next    int
	full    bool
}

// NewLogBuffer returns a buffer holding at most capacity entries. A capacity
// below 1 is raised to 1.
func NewLogBuffer(capacity int) *LogBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &LogBuffer{entries: make([]LogEntry, capacity)}
}

// AddEntry appends e, overwriting the oldest entry when the buffer is full.
func (b *LogBuffer) AddEntry(e LogEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[b.next] = e
	b.next = (b.next + 1) % len(b.entries)
	if b.next == 0 {
		b.full = true
	}
}

// Len returns the number of entries currently held.
func (b *LogBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.full {
		return len(b.entries)
	}
	return b.next
}

// Recent returns up to n entries, newest first. n <= 0 returns everything.
func (b *LogBuffer) Recent(n int) []LogEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	size := b.next
	if b.full {
		size = len(b.entries)
	}
	if n <= 0 || n > size {
		n = size
	}

	out := make([]LogEntry, 0, n)
	for i := 1; i <= n; i++ {
		idx := (b.next - i + len(b.entries)) % len(b.entries)
		out = append(out, b.entries[idx])
	}
	return out
}

// Clear drops all entries.
func (b *LogBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.entries)
	b.next = 0
	b.full = false
}

var appLogBuffer *LogBuffer
var appLogBufferOnce sync.Once

// GetAppLogBuffer returns the buffer mirroring the application logger.
func GetAppLogBuffer() *LogBuffer {
	appLogBufferOnce.Do(func() {
		appLogBuffer = NewLogBuffer(500)
	})
	return appLogBuffer
}
