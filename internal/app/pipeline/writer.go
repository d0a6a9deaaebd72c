package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/thejerf/suture/v4"
	"golang.org/x/time/rate"

	"github.com/ghalamif/TailFlow/internal/adapters/appendfile"
	"github.com/ghalamif/TailFlow/internal/domain"
	"github.com/ghalamif/TailFlow/internal/ports"
)

// WriterService copies readings from a Source into the data file. The file
// is opened on every (re)start so a failed handle is never reused.
type WriterService struct {
	source   ports.Source
	open     func() (ports.RecordWriter, error)
	obs      ports.Observability
	counters *Counters
	onDone   func()
	skipLog  *rate.Limiter

	echo   io.Writer
	format func(domain.Record) string
}

func NewWriterService(src ports.Source, open func() (ports.RecordWriter, error), obs ports.Observability, counters *Counters) *WriterService {
	if counters == nil {
		counters = &Counters{}
	}
	return &WriterService{
		source:   src,
		open:     open,
		obs:      obs,
		counters: counters,
		skipLog:  rate.NewLimiter(rate.Every(time.Second), 5),
	}
}

func (w *WriterService) String() string { return "writer" }

// EchoTo prints every appended line to out as "[writer] <line>".
func (w *WriterService) EchoTo(out io.Writer, format func(domain.Record) string) {
	w.echo, w.format = out, format
}

// OnExhausted registers fn to run once the source has no more readings.
func (w *WriterService) OnExhausted(fn func()) { w.onDone = fn }

func (w *WriterService) Serve(ctx context.Context) error {
	rw, err := w.open()
	if err != nil {
		w.obs.LogError("writer_open_failed", err)
		return fmt.Errorf("open writer: %w", err)
	}
	defer func() {
		if err := rw.Close(); err != nil {
			w.obs.LogError("writer_close_failed", err)
		}
	}()

	bc, _ := rw.(ports.ByteCounter)
	var lastBytes int64
	if bc != nil {
		lastBytes = bc.BytesWritten()
	}

	w.obs.LogInfo("writer_started", ports.Field{Key: "source", Value: w.source.Name()})

	err = w.source.Run(ctx, func(r domain.Record) error {
		if err := rw.Write(r); err != nil {
			w.obs.IncCounter(ports.MetricWriteErrors, 1)
			if errors.Is(err, appendfile.ErrInvalidValue) {
				// one bad reading must not end the session
				w.counters.Skipped.Add(1)
				if w.skipLog.Allow() {
					w.obs.LogWarn("reading_skipped",
						ports.Field{Key: "source", Value: w.source.Name()},
						ports.Field{Key: "value", Value: fmt.Sprint(r.Value)},
						ports.Field{Key: "timestamp", Value: r.Timestamp})
				}
				return nil
			}
			return err
		}
		w.counters.Written.Add(1)
		w.obs.IncCounter(ports.MetricRecordsWritten, 1)
		if w.echo != nil && w.format != nil {
			fmt.Fprintf(w.echo, "[writer] %s\n", strings.TrimSpace(w.format(r)))
		}
		if bc != nil {
			n := bc.BytesWritten()
			w.obs.IncCounter(ports.MetricBytesWritten, float64(n-lastBytes))
			lastBytes = n
		}
		return nil
	})

	switch {
	case err == nil:
		w.obs.LogInfo("writer_source_exhausted",
			ports.Field{Key: "source", Value: w.source.Name()},
			ports.Field{Key: "written", Value: w.counters.Written.Load()})
		if w.onDone != nil {
			w.onDone()
		}
		return suture.ErrDoNotRestart
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		w.obs.LogError("writer_failed", err)
		return err
	}
}
