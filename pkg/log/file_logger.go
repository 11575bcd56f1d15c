package log

import (
	"bufio"
	"os"
	"path/filepath"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// DefaultExtension is the conventional suffix for protocol log files.
const DefaultExtension = ".ulog"

// FileLogger appends CBOR-encoded events to a log file. Writes are
// buffered and flushed on Close. Safe for concurrent use; encoding errors
// are dropped so logging never disturbs the control point.
type FileLogger struct {
	mu      sync.Mutex
	file    *os.File
	buf     *bufio.Writer
	encoder *cbor.Encoder
	closed  bool
}

// NewFileLogger opens path for appending, creating it with 0644 when
// absent. A path without an extension gets DefaultExtension, so log files
// stay recognizable to the upnp-log tool.
func NewFileLogger(path string) (*FileLogger, error) {
	if filepath.Ext(path) == "" {
		path += DefaultExtension
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	buf := bufio.NewWriter(f)
	return &FileLogger{file: f, buf: buf, encoder: NewEncoder(buf)}, nil
}

// Path returns the path the logger writes to, including any appended
// extension.
func (l *FileLogger) Path() string {
	return l.file.Name()
}

func (l *FileLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	_ = l.encoder.Encode(event)
}

// Close flushes buffered events and closes the file. Closing twice is a
// no-op; events logged after Close are dropped.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true

	flushErr := l.buf.Flush()
	if err := l.file.Close(); err != nil {
		return err
	}
	return flushErr
}
