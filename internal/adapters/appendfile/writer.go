package appendfile

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/ghalamif/TailFlow/internal/adapters/codec"
	"github.com/ghalamif/TailFlow/internal/domain"
	"github.com/ghalamif/TailFlow/internal/ports"
)

var (
	// ErrWriterClosed is returned by Write after Close.
	ErrWriterClosed = errors.New("tailflow: append writer closed")
	// ErrInvalidValue rejects NaN and infinite readings, which the line
	// format cannot represent.
	ErrInvalidValue = errors.New("tailflow: reading is not a finite number")
)

// Stats counts what the writer appended during its lifetime.
type Stats struct {
	Records int64
	Bytes   int64
}

// Writer owns the append handle on the data file. Every Write hands the
// whole line to the OS in a single write call before returning, so a
// concurrent reader sees either nothing or the complete line.
type Writer struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	codec  *codec.LineCodec
	sync   bool
	stats  Stats
	closed bool
}

type Option func(*Writer)

// WithSync forces an fsync after every record.
func WithSync(enabled bool) Option {
	return func(w *Writer) { w.sync = enabled }
}

// WithCodec overrides the default line codec.
func WithCodec(c *codec.LineCodec) Option {
	return func(w *Writer) {
		if c != nil {
			w.codec = c
		}
	}
}

// Open acquires an append handle on path, creating the file (and parent
// directories) when missing. An existing file is never truncated.
func Open(path string, opts ...Option) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s for append: %w", path, err)
	}

	w := &Writer{
		path:  path,
		file:  f,
		codec: codec.New(codec.DefaultUnit),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w, nil
}

// Write appends one formatted record. OS errors are returned as-is (wrapped);
// there is no retry.
func (w *Writer) Write(r domain.Record) error {
	if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
		return ErrInvalidValue
	}
	line := w.codec.Format(r)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}

	n, err := w.file.WriteString(line)
	w.stats.Bytes += int64(n)
	if err != nil {
		return fmt.Errorf("append %s: %w", w.path, err)
	}
	if w.sync {
		if err := w.file.Sync(); err != nil {
			return fmt.Errorf("sync %s: %w", w.path, err)
		}
	}
	w.stats.Records++
	return nil
}

func (w *Writer) Path() string { return w.path }

// BytesWritten reports the total bytes appended through this handle.
func (w *Writer) BytesWritten() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats.Bytes
}

func (w *Writer) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// Close releases the handle. Calling it twice is harmless.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.file.Close()
}

var (
	_ ports.RecordWriter = (*Writer)(nil)
	_ ports.ByteCounter  = (*Writer)(nil)
)
