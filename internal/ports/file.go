package ports

import "github.com/ghalamif/TailFlow/internal/domain"

// RecordWriter appends records to the shared data file.
type RecordWriter interface {
	Write(r domain.Record) error
	Close() error
}

// ByteCounter is implemented by writers that track how much they appended.
type ByteCounter interface {
	BytesWritten() int64
}

// LineSource yields complete lines appended to the shared data file.
// Poll never blocks; ok is false when no complete line is available yet.
type LineSource interface {
	Poll() (line string, ok bool, err error)
	Cursor() int64
	Close() error
}
