package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ghalamif/TailFlow/internal/adapters/codec"
	"github.com/ghalamif/TailFlow/internal/adapters/tail"
	"github.com/ghalamif/TailFlow/internal/app/rolling"
	"github.com/ghalamif/TailFlow/internal/domain"
	"github.com/ghalamif/TailFlow/internal/ports"
)

// RejectStale labels records older than the window when they arrive.
const RejectStale = "stale"

type ConsumerConfig struct {
	Path            string
	Codec           *codec.LineCodec
	PollInterval    time.Duration
	RefreshInterval time.Duration
	Window          time.Duration
	// Now stamps snapshots. Defaults to time.Now.
	Now func() time.Time
}

// ConsumerService replays the data file into a rolling window, then tails
// it. Snapshots go out once right after a load that found recent data,
// otherwise after the first ingested record, then every RefreshInterval.
type ConsumerService struct {
	cfg      ConsumerConfig
	queue    ports.SnapshotQueue
	policy   ports.Policy
	obs      ports.Observability
	counters *Counters
}

func NewConsumerService(cfg ConsumerConfig, q ports.SnapshotQueue, pol ports.Policy, obs ports.Observability, counters *Counters) *ConsumerService {
	if cfg.Codec == nil {
		cfg.Codec = codec.New(codec.DefaultUnit)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 30 * time.Second
	}
	if counters == nil {
		counters = &Counters{}
	}
	return &ConsumerService{cfg: cfg, queue: q, policy: pol, obs: obs, counters: counters}
}

func (c *ConsumerService) String() string { return "consumer" }

// consumerState is rebuilt on every (re)start of the service.
type consumerState struct {
	agg      *rolling.Aggregator
	reader   *tail.Reader
	emitted  bool
	dirty    bool
	lastEmit time.Time
}

func (c *ConsumerService) Serve(ctx context.Context) error {
	st, err := c.start(ctx)
	if err != nil {
		return err
	}
	defer st.reader.Close()

	for {
		if ctx.Err() != nil {
			c.flush(st)
			return ctx.Err()
		}

		n, err := c.drain(ctx, st)
		if err != nil {
			if errors.Is(err, tail.ErrReaderClosed) {
				return err
			}
			// keep tailing; the next poll retries
			c.obs.LogError("tail_poll_failed", err, ports.Field{Key: "path", Value: c.cfg.Path})
		}

		if st.emitted && c.cfg.Now().Sub(st.lastEmit) >= c.cfg.RefreshInterval {
			c.emit(ctx, st)
		}

		if n == 0 && !sleep(ctx, c.cfg.PollInterval) {
			c.flush(st)
			return ctx.Err()
		}
	}
}

func (c *ConsumerService) start(ctx context.Context) (*consumerState, error) {
	agg := rolling.New(c.cfg.Codec, rolling.WithWindow(c.cfg.Window), rolling.WithSource(c.cfg.Path))
	res, err := agg.Load(c.cfg.Path)
	if err != nil {
		c.obs.LogError("load_failed", err, ports.Field{Key: "path", Value: c.cfg.Path})
		return nil, err
	}
	for reason, n := range res.Rejected {
		c.obs.LogWarn("load_lines_rejected",
			ports.Field{Key: "reason", Value: string(reason)},
			ports.Field{Key: "count", Value: n})
	}

	now := c.cfg.Now()
	recent := agg.WindowAverage(rolling.ReportHours[len(rolling.ReportHours)-1], now).Count
	c.obs.LogInfo(fmt.Sprintf("init: loaded=%d, recent(<=12h)=%d", res.Accepted, recent),
		ports.Field{Key: "path", Value: c.cfg.Path},
		ports.Field{Key: "offset", Value: res.Offset})

	r, err := tail.Open(c.cfg.Path,
		tail.WithStartOffset(res.Offset),
		tail.WithObserver(c.onReaderEvent))
	if err != nil {
		c.obs.LogError("tail_open_failed", err, ports.Field{Key: "path", Value: c.cfg.Path})
		return nil, err
	}

	st := &consumerState{agg: agg, reader: r}
	c.obs.SetGauge(ports.MetricWindowRecords, float64(agg.Len()))
	c.obs.SetGauge(ports.MetricReaderCursorBytes, float64(r.Cursor()))

	if recent > 0 {
		c.emit(ctx, st)
	} else {
		c.obs.LogInfo("no recent data; first snapshot follows the first reading")
	}
	return st, nil
}

// drain reads every complete line available right now.
func (c *ConsumerService) drain(ctx context.Context, st *consumerState) (int, error) {
	var n int
	for ctx.Err() == nil {
		line, ok, err := st.reader.Poll()
		if err != nil {
			return n, err
		}
		if !ok {
			break
		}
		n++
		c.counters.Tailed.Add(1)
		c.obs.IncCounter(ports.MetricLinesTailed, 1)
		c.handleLine(ctx, st, line)
	}
	if n > 0 {
		c.obs.SetGauge(ports.MetricWindowRecords, float64(st.agg.Len()))
		c.obs.SetGauge(ports.MetricReaderCursorBytes, float64(st.reader.Cursor()))
	}
	return n, nil
}

func (c *ConsumerService) handleLine(ctx context.Context, st *consumerState, line string) {
	rec, reason := c.cfg.Codec.ParseDetailed(line)
	if reason != codec.RejectNone {
		c.counters.Rejected.Add(1)
		c.obs.RecordRejected(string(reason), line)
		return
	}
	if !st.agg.Ingest(rec) {
		c.counters.Rejected.Add(1)
		c.obs.RecordRejected(RejectStale, line)
		return
	}
	c.counters.Accepted.Add(1)
	c.obs.IncCounter(ports.MetricRecordsIngested, 1)
	st.dirty = true

	if !st.emitted {
		c.emit(ctx, st)
	}
}

func (c *ConsumerService) emit(ctx context.Context, st *consumerState) {
	now := c.cfg.Now()
	snap := st.agg.Report(now)
	st.emitted = true
	st.dirty = false
	st.lastEmit = now

	if enqueueWithPolicy(ctx, c.queue, snap, c.policy, c.obs) {
		c.counters.Emitted.Add(1)
	} else {
		c.counters.Dropped.Add(1)
		c.obs.IncCounter(ports.MetricSnapshotsDropped, 1)
	}
	c.obs.SetGauge(ports.MetricQueueLength, float64(c.queue.Len()))
}

// flush publishes a last snapshot when records arrived after the previous
// one. It never blocks.
func (c *ConsumerService) flush(st *consumerState) {
	if !st.dirty {
		return
	}
	now := c.cfg.Now()
	st.dirty = false
	if c.queue.Enqueue(st.agg.Report(now)) {
		c.counters.Emitted.Add(1)
	} else {
		c.counters.Dropped.Add(1)
		c.obs.IncCounter(ports.MetricSnapshotsDropped, 1)
	}
}

func (c *ConsumerService) onReaderEvent(ev tail.Event) {
	fields := []ports.Field{
		{Key: "path", Value: c.cfg.Path},
		{Key: "old_cursor", Value: ev.OldCursor},
		{Key: "size", Value: ev.Size},
	}
	switch ev.Kind {
	case tail.EventTruncated:
		c.obs.IncCounter(ports.MetricTruncations, 1)
		c.obs.LogWarn("file_truncated", fields...)
	case tail.EventReplaced:
		c.obs.IncCounter(ports.MetricReopens, 1)
		c.obs.LogWarn("file_replaced", fields...)
	}
}

func enqueueWithPolicy(ctx context.Context, q ports.SnapshotQueue, s domain.Snapshot, pol ports.Policy, obs ports.Observability) bool {
	idle := pol.IdleSleep
	if idle <= 0 {
		idle = 5 * time.Millisecond
	}

	for {
		if q.Enqueue(s) {
			return true
		}

		switch pol.OnQueueFull {
		case "block":
			if !sleep(ctx, idle) {
				return false
			}
		case "drop", "reject":
			obs.LogError("queue_full_drop", fmt.Errorf("queue length exceeded capacity %d", pol.MaxQueueLen))
			return false
		default:
			obs.LogError("queue_policy_invalid", fmt.Errorf("policy=%s", pol.OnQueueFull))
			return false
		}
	}
}
