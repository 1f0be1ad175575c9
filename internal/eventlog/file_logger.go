package eventlog

import (
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"github.com/srg/blelink/pkg/lifecycle"
)

// FileLogger appends records to a file. It is safe for concurrent use.
type FileLogger struct {
	file    *os.File
	encoder *cbor.Encoder
	mu      sync.Mutex
	closed  bool
}

// NewFileLogger opens path for appending, creating it with 0644 if needed.
func NewFileLogger(path string) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileLogger{
		file:    f,
		encoder: newEncoder(f),
	}, nil
}

// Log writes rec. Records logged after Close are dropped.
func (l *FileLogger) Log(rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	return l.encoder.Encode(rec)
}

// Follow logs every transition read from feed until it is closed. Encoding
// errors are passed to onError when it is not nil.
func (l *FileLogger) Follow(feed <-chan lifecycle.Transition, session, connection string, onError func(error)) {
	for tr := range feed {
		err := l.Log(Record{Session: session, Connection: connection, Transition: tr})
		if err != nil && onError != nil {
			onError(err)
		}
	}
}

// Close closes the file. It is safe to call Close multiple times.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return l.file.Close()
}
