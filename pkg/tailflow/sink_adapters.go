package tailflow

import (
	"errors"
	"fmt"
	"sync"
)

// ErrChannelSinkClosed is returned when a channel sink is written to after being closed.
var ErrChannelSinkClosed = errors.New("tailflow: channel sink closed")

// SnapshotBatchFunc is invoked with ordered batches of snapshots.
type SnapshotBatchFunc func([]Snapshot) error

// NewCallbackSink adapts a SnapshotBatchFunc into a SnapshotSink so callers
// can plug arbitrary functions without defining structs.
func NewCallbackSink(name string, fn SnapshotBatchFunc) SnapshotSink {
	if name == "" {
		name = "callback"
	}
	return &callbackSink{name: name, fn: fn}
}

// NewChannelSink exposes batches via a channel; it returns the sink, the read-only channel,
// and a close function that the caller should invoke during shutdown.
func NewChannelSink(name string, buffer int) (SnapshotSink, <-chan []Snapshot, func()) {
	if name == "" {
		name = "channel"
	}
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan []Snapshot, buffer)
	s := &channelSink{
		name:   name,
		ch:     ch,
		closed: make(chan struct{}),
	}
	return s, ch, func() { s.close() }
}

type callbackSink struct {
	name string
	fn   SnapshotBatchFunc
}

func (s *callbackSink) WriteBatch(snapshots []Snapshot) error {
	if s.fn == nil {
		return fmt.Errorf("callback sink %q: nil handler", s.name)
	}
	if len(snapshots) == 0 {
		return nil
	}
	return s.fn(copyBatch(snapshots))
}

func (s *callbackSink) Name() string { return s.name }

type channelSink struct {
	name   string
	ch     chan []Snapshot
	closed chan struct{}
	// sending is held for reading while a send is in flight so close never
	// races a send on ch.
	sending sync.RWMutex
	once    sync.Once
}

func (s *channelSink) WriteBatch(snapshots []Snapshot) error {
	s.sending.RLock()
	defer s.sending.RUnlock()

	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	default:
	}

	if len(snapshots) == 0 {
		return nil
	}

	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	case s.ch <- copyBatch(snapshots):
		return nil
	}
}

func (s *channelSink) Name() string { return s.name }

func (s *channelSink) close() {
	s.once.Do(func() {
		close(s.closed)
		s.sending.Lock()
		close(s.ch)
		s.sending.Unlock()
	})
}

func copyBatch(in []Snapshot) []Snapshot {
	out := make([]Snapshot, len(in))
	copy(out, in)
	return out
}
