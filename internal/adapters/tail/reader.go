// Package tail follows a growing line-oriented file.
//
// A Reader keeps a byte cursor into the file and hands out only complete,
// newline-terminated lines. Bytes of a line the writer has not finished yet
// are left in place and read again on the next Poll. When the file shrinks
// below the cursor (truncation), when the bytes just before the cursor no
// longer match the ones it consumed (truncated and refilled between polls),
// or when the path starts naming a different file (rotation by rename), the
// reader moves to StateRecovering and restarts at offset 0 of the current
// file so the new content is processed from its beginning.
//
// A Reader is owned by a single goroutine; it has no internal locking.
package tail

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ghalamif/TailFlow/internal/ports"
)

// ErrReaderClosed is returned by Poll after Close.
var ErrReaderClosed = errors.New("tailflow: tail reader closed")

const (
	defaultChunkSize = 4096
	// markSize bounds the consumed tail remembered to spot in-place rewrites.
	markSize = 32
)

var newline = []byte{'\n'}

type State int

const (
	StateSeekingEnd State = iota
	StateTailing
	StateRecovering
)

func (s State) String() string {
	switch s {
	case StateSeekingEnd:
		return "seeking_end"
	case StateTailing:
		return "tailing"
	case StateRecovering:
		return "recovering"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type EventKind string

const (
	EventTruncated EventKind = "truncated"
	EventReplaced  EventKind = "replaced"
)

// Event describes a recovery the reader went through.
type Event struct {
	Kind      EventKind
	OldCursor int64
	Size      int64
}

type Stats struct {
	Lines       int64
	Truncations int64
	Reopens     int64
}

type openOptions struct {
	fromStart bool
	offset    int64
	hasOffset bool
	chunk     int
	observer  func(Event)
}

type Option func(*openOptions)

// FromStart makes the reader begin at offset 0 instead of end-of-file.
func FromStart() Option {
	return func(o *openOptions) { o.fromStart = true }
}

// WithStartOffset resumes at a known offset, typically the end of a replay
// of the same file. An offset past the current size counts as a truncation.
func WithStartOffset(offset int64) Option {
	return func(o *openOptions) {
		o.offset = offset
		o.hasOffset = true
	}
}

// WithChunkSize sets the read size used while looking for a newline.
func WithChunkSize(n int) Option {
	return func(o *openOptions) {
		if n > 0 {
			o.chunk = n
		}
	}
}

// WithObserver registers a callback for truncation and replacement events.
func WithObserver(fn func(Event)) Option {
	return func(o *openOptions) { o.observer = fn }
}

type Reader struct {
	path     string
	file     *os.File
	cursor   int64
	state    State
	buf      []byte
	line     []byte
	observer func(Event)
	stats    Stats
	closed   bool

	// mark holds the last bytes before cursor; idle is set once Poll ran
	// out of lines.
	mark    []byte
	scratch []byte
	idle    bool
}

// Open acquires a read handle on path. A missing file is created empty so
// callers never observe a not-found error.
func Open(path string, opts ...Option) (*Reader, error) {
	o := openOptions{chunk: defaultChunkSize}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s for tailing: %w", path, err)
	}

	r := &Reader{
		path:     path,
		file:     f,
		state:    StateSeekingEnd,
		buf:      make([]byte, o.chunk),
		observer: o.observer,
	}

	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	switch {
	case o.fromStart:
		r.cursor = 0
	case o.hasOffset && o.offset > st.Size():
		r.stats.Truncations++
		r.recover(EventTruncated, o.offset, st.Size())
		return r, nil
	case o.hasOffset:
		r.cursor = o.offset
	default:
		r.cursor = st.Size()
	}
	if err := r.loadMark(); err != nil {
		_ = f.Close()
		return nil, err
	}
	r.state = StateTailing
	r.idle = true
	return r, nil
}

// loadMark reads the bytes just before the cursor.
func (r *Reader) loadMark() error {
	n := min(r.cursor, markSize)
	r.mark = r.mark[:0]
	if n == 0 {
		return nil
	}
	buf := make([]byte, n)
	if got, err := r.file.ReadAt(buf, r.cursor-n); err != nil && (got < len(buf) || !errors.Is(err, io.EOF)) {
		return fmt.Errorf("read %s at %d: %w", r.path, r.cursor-n, err)
	}
	r.mark = append(r.mark, buf...)
	return nil
}

func (r *Reader) advanceMark(consumed []byte) {
	if len(consumed) >= markSize {
		r.mark = append(r.mark[:0], consumed[len(consumed)-markSize:]...)
		return
	}
	r.mark = append(r.mark, consumed...)
	if extra := len(r.mark) - markSize; extra > 0 {
		r.mark = append(r.mark[:0], r.mark[extra:]...)
	}
}

// markMatches reports whether the file still holds the consumed bytes right
// before the cursor.
func (r *Reader) markMatches() (bool, error) {
	if len(r.mark) == 0 {
		return true, nil
	}
	if cap(r.scratch) < len(r.mark) {
		r.scratch = make([]byte, markSize)
	}
	buf := r.scratch[:len(r.mark)]
	n, err := r.file.ReadAt(buf, r.cursor-int64(len(r.mark)))
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read %s at %d: %w", r.path, r.cursor-int64(len(r.mark)), err)
	}
	return n == len(buf) && bytes.Equal(buf, r.mark), nil
}

// Poll returns the next complete line without its terminator. ok is false
// when no complete line is available; the cursor then stays where it was.
func (r *Reader) Poll() (string, bool, error) {
	if r.closed {
		return "", false, ErrReaderClosed
	}

	// the file may have been rewritten while nobody was reading
	checked := r.idle
	if checked {
		if _, err := r.checkFile(); err != nil {
			return "", false, err
		}
	}

	line, ok, err := r.readLine()
	if err != nil || ok {
		return line, ok, err
	}
	r.idle = true
	if checked {
		return "", false, nil
	}

	recovered, err := r.checkFile()
	if err != nil || !recovered {
		return "", false, err
	}
	return r.readLine()
}

func (r *Reader) readLine() (string, bool, error) {
	r.line = r.line[:0]
	off := r.cursor
	for {
		n, err := r.file.ReadAt(r.buf, off)
		if n > 0 {
			if i := bytes.IndexByte(r.buf[:n], '\n'); i >= 0 {
				r.line = append(r.line, r.buf[:i]...)
				r.cursor = off + int64(i) + 1
				r.state = StateTailing
				r.idle = false
				r.stats.Lines++
				r.advanceMark(r.line)
				r.advanceMark(newline)
				return string(bytes.TrimSuffix(r.line, []byte{'\r'})), true, nil
			}
			r.line = append(r.line, r.buf[:n]...)
			off += int64(n)
		}
		if errors.Is(err, io.EOF) {
			return "", false, nil
		}
		if err != nil {
			return "", false, fmt.Errorf("read %s at %d: %w", r.path, off, err)
		}
	}
}

// checkFile detects truncation of the open file and replacement of the
// path. It runs when the current handle has no complete line left and on
// the first Poll after that.
func (r *Reader) checkFile() (bool, error) {
	st, err := r.file.Stat()
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", r.path, err)
	}

	if pst, perr := os.Stat(r.path); perr == nil && !os.SameFile(st, pst) {
		nf, err := os.Open(r.path)
		if err != nil {
			return false, fmt.Errorf("reopen %s: %w", r.path, err)
		}
		_ = r.file.Close()
		r.file = nf
		r.stats.Reopens++
		r.recover(EventReplaced, r.cursor, pst.Size())
		return true, nil
	}

	if r.cursor > st.Size() {
		r.stats.Truncations++
		r.recover(EventTruncated, r.cursor, st.Size())
		return true, nil
	}

	same, err := r.markMatches()
	if err != nil {
		return false, err
	}
	if !same {
		r.stats.Truncations++
		r.recover(EventTruncated, r.cursor, st.Size())
		return true, nil
	}
	return false, nil
}

func (r *Reader) recover(kind EventKind, oldCursor, size int64) {
	r.state = StateRecovering
	r.cursor = 0
	r.mark = r.mark[:0]
	if r.observer != nil {
		r.observer(Event{Kind: kind, OldCursor: oldCursor, Size: size})
	}
}

func (r *Reader) Cursor() int64 { return r.cursor }
func (r *Reader) State() State  { return r.state }
func (r *Reader) Stats() Stats  { return r.stats }
func (r *Reader) Path() string  { return r.path }

func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.file.Close()
}

var _ ports.LineSource = (*Reader)(nil)
