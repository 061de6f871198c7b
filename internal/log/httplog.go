package log

import (
	"fmt"
	"sync"
	"time"
)

// HTTP requests are buffered apart from application logs so a busy client
// cannot push startup messages out of the ring.
var httpLogBuffer *LogBuffer
var httpLogBufferOnce sync.Once

// HTTPRequest describes one served request.
type HTTPRequest struct {
	Method     string
	Path       string
	Route      string
	Status     int
	Duration   time.Duration
	Size       int
	RemoteAddr string
	UserAgent  string
	Err        error
}

// GetHTTPLogBuffer returns the HTTP log buffer instance, creating it if necessary
func GetHTTPLogBuffer() *LogBuffer {
	httpLogBufferOnce.Do(func() {
		httpLogBuffer = NewLogBuffer(1000)
	})
	return httpLogBuffer
}

// LogHTTPRequest records req in the HTTP log buffer. Server errors are
// tagged at error level, client errors at warn.
func LogHTTPRequest(req HTTPRequest) {
	entry := LogEntry{
		Timestamp: time.Now(),
		Level:     "info",
		Message:   fmt.Sprintf("%s %s %d %v %d bytes", req.Method, req.Path, req.Status, req.Duration, req.Size),
		Fields: map[string]any{
			"method":      req.Method,
			"path":        req.Path,
			"status":      req.Status,
			"duration_ms": req.Duration.Milliseconds(),
			"size":        req.Size,
			"remote_addr": req.RemoteAddr,
			"user_agent":  req.UserAgent,
		},
	}
	if req.Route != "" {
		entry.Fields["route"] = req.Route
	}

	switch {
	case req.Err != nil || req.Status >= 500:
		entry.Level = "error"
	case req.Status >= 400:
		entry.Level = "warn"
	}
	if req.Err != nil {
		entry.Fields["error"] = req.Err.Error()
	}

	GetHTTPLogBuffer().AddEntry(entry)
}
