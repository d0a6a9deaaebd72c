package appendfile

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ghalamif/TailFlow/internal/adapters/codec"
	"github.com/ghalamif/TailFlow/internal/domain"
)

func TestOpenCreatesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "temp.dat")

	w, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer w.Close()

	st, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if st.Size() != 0 {
		t.Fatalf("expected empty file, got %d bytes", st.Size())
	}
}

func TestOpenDoesNotTruncate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "temp.dat")
	existing := "2025-01-01, 10:00:00, 5\n"
	if err := os.WriteFile(path, []byte(existing), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	w, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, _ := os.ReadFile(path)
	if string(data) != existing {
		t.Fatalf("existing content changed: %q", data)
	}
}

func TestWriteIsVisibleImmediately(t *testing.T) {
	path := filepath.Join(t.TempDir(), "temp.dat")
	c := &codec.LineCodec{Unit: " °C", Location: time.UTC, Now: time.Now}
	w, err := Open(path, WithCodec(c), WithSync(true))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer w.Close()

	ts := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	if err := w.Write(domain.Record{Timestamp: ts, Value: 21.5}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Write(domain.Record{Timestamp: ts.Add(time.Minute), Value: 22}); err != nil {
		t.Fatalf("write: %v", err)
	}

	// Read through an independent handle without closing the writer.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := "2025-01-01, 10:00:00, 21.5 °C\n2025-01-01, 10:01:00, 22 °C\n"
	if string(data) != want {
		t.Fatalf("file = %q, want %q", data, want)
	}

	st := w.Stats()
	if st.Records != 2 || st.Bytes != int64(len(want)) {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestWriteRejectsNonFinite(t *testing.T) {
	w, err := Open(filepath.Join(t.TempDir(), "temp.dat"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer w.Close()

	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if err := w.Write(domain.Record{Timestamp: time.Now(), Value: v}); !errors.Is(err, ErrInvalidValue) {
			t.Fatalf("value %v: expected ErrInvalidValue, got %v", v, err)
		}
	}
	if w.Stats().Records != 0 {
		t.Fatalf("nothing should have been written")
	}
}

func TestWriteAfterClose(t *testing.T) {
	w, err := Open(filepath.Join(t.TempDir(), "temp.dat"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second close should be a no-op, got %v", err)
	}
	if err := w.Write(domain.Record{Timestamp: time.Now(), Value: 1}); !errors.Is(err, ErrWriterClosed) {
		t.Fatalf("expected ErrWriterClosed, got %v", err)
	}
}
