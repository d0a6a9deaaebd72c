package tailflow

import (
	"time"

	"github.com/ghalamif/TailFlow/internal/adapters/appendfile"
	"github.com/ghalamif/TailFlow/internal/adapters/codec"
)

var (
	// ErrPublisherClosed is returned by Publish after Close.
	ErrPublisherClosed = appendfile.ErrWriterClosed
	// ErrInvalidValue rejects NaN and infinite readings.
	ErrInvalidValue = appendfile.ErrInvalidValue
	// ErrInvalidUnit rejects units that would make written lines unreadable.
	ErrInvalidUnit = codec.ErrInvalidUnit
)

// Publisher lets external producers append readings to a data file that a
// TailFlow runtime (in this or another process) is tailing. Every Publish
// is one append; a reader never sees half a line.
type Publisher struct {
	w     *appendfile.Writer
	clock func() time.Time
}

// PublisherOption tunes a Publisher.
type PublisherOption func(*publisherOptions)

type publisherOptions struct {
	sync  bool
	clock func() time.Time
}

// WithPublisherSync fsyncs the file after every record.
func WithPublisherSync(enabled bool) PublisherOption {
	return func(o *publisherOptions) { o.sync = enabled }
}

// WithPublisherClock stamps PublishValue readings with now instead of time.Now.
func WithPublisherClock(now func() time.Time) PublisherOption {
	return func(o *publisherOptions) { o.clock = now }
}

// NewPublisher opens path for appending, creating it (and its directory)
// when missing. unit is written after each value, e.g. " °C"; it may be
// empty. Units the line format cannot read back are rejected with
// ErrInvalidUnit.
func NewPublisher(path, unit string, opts ...PublisherOption) (*Publisher, error) {
	o := publisherOptions{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	c, err := codec.NewChecked(unit)
	if err != nil {
		return nil, err
	}
	w, err := appendfile.Open(path,
		appendfile.WithCodec(c),
		appendfile.WithSync(o.sync))
	if err != nil {
		return nil, err
	}
	return &Publisher{w: w, clock: o.clock}, nil
}

// Publish appends one record. Timestamps are written with second precision.
func (p *Publisher) Publish(r Record) error {
	return p.w.Write(r)
}

// PublishValue appends v stamped with the current time.
func (p *Publisher) PublishValue(v float64) error {
	return p.w.Write(Record{Timestamp: p.clock().Truncate(time.Second), Value: v})
}

// Path returns the data file the publisher appends to.
func (p *Publisher) Path() string { return p.w.Path() }

// Close releases the file handle. It is safe to call more than once.
func (p *Publisher) Close() error {
	return p.w.Close()
}
