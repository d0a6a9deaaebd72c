package tailflow

import (
	"errors"
	"testing"
	"time"
)

func TestNewCallbackSink(t *testing.T) {
	var received []Snapshot
	sink := NewCallbackSink("cb", func(batch []Snapshot) error {
		received = append(received, batch...)
		return nil
	})

	input := Snapshot{
		Source: "temp.dat",
		AsOf:   time.Unix(1, 0),
		H1:     WindowAverage{Hours: 1, Mean: 3.14, Count: 2, OK: true},
	}

	if err := sink.WriteBatch([]Snapshot{input}); err != nil {
		t.Fatalf("WriteBatch returned error: %v", err)
	}
	if len(received) != 1 {
		t.Fatalf("expected 1 batch entry, got %d", len(received))
	}
	if received[0] != input {
		t.Fatalf("mismatched snapshot payload: %+v vs %+v", received[0], input)
	}
	if sink.Name() != "cb" {
		t.Fatalf("unexpected name %s", sink.Name())
	}
}

func TestNewCallbackSinkNilHandler(t *testing.T) {
	sink := NewCallbackSink("", nil)
	if err := sink.WriteBatch([]Snapshot{{}}); err == nil {
		t.Fatalf("expected error when callback is nil")
	}
	if sink.Name() != "callback" {
		t.Fatalf("expected default name, got %s", sink.Name())
	}
}

func TestNewChannelSink(t *testing.T) {
	sink, ch, closeFn := NewChannelSink("chan", 1)
	defer closeFn()

	input := Snapshot{Source: "sensor-2"}
	errCh := make(chan error, 1)

	go func() {
		errCh <- sink.WriteBatch([]Snapshot{input})
	}()

	var batch []Snapshot
	select {
	case batch = <-ch:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel batch")
	}

	if err := <-errCh; err != nil {
		t.Fatalf("WriteBatch returned error: %v", err)
	}
	if len(batch) != 1 || batch[0].Source != input.Source {
		t.Fatalf("unexpected batch data: %+v", batch)
	}

	closeFn()
	if err := sink.WriteBatch([]Snapshot{input}); !errors.Is(err, ErrChannelSinkClosed) {
		t.Fatalf("expected ErrChannelSinkClosed, got %v", err)
	}
}

func TestChannelSinkCloseUnblocksWriter(t *testing.T) {
	sink, _, closeFn := NewChannelSink("chan", 0)

	errCh := make(chan error, 1)
	go func() { errCh <- sink.WriteBatch([]Snapshot{{}}) }()

	time.Sleep(10 * time.Millisecond)
	closeFn()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrChannelSinkClosed) {
			t.Fatalf("expected ErrChannelSinkClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("blocked writer was not released by close")
	}
}
