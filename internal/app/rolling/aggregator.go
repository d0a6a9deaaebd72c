// Package rolling keeps the trailing window of readings and computes the
// 1h/6h/12h averages reported by the analyzer.
package rolling

import (
	"fmt"
	"sort"
	"time"

	"github.com/ghalamif/TailFlow/internal/adapters/codec"
	"github.com/ghalamif/TailFlow/internal/adapters/tail"
	"github.com/ghalamif/TailFlow/internal/domain"
)

// DefaultWindow is how much history the aggregator retains.
const DefaultWindow = 12 * time.Hour

// ReportHours are the trailing windows included in every snapshot.
var ReportHours = [3]int{1, 6, 12}

// RejectCounts tallies rejected lines per reason. A reason that never
// occurred reads as zero.
type RejectCounts map[codec.RejectReason]int64

func (c RejectCounts) Get(reason codec.RejectReason) int64 {
	if c == nil {
		return 0
	}
	return c[reason]
}

func (c RejectCounts) Add(reason codec.RejectReason) {
	c[reason]++
}

func (c RejectCounts) Total() int64 {
	var n int64
	for _, v := range c {
		n += v
	}
	return n
}

// LoadResult summarizes a replay of the data file.
type LoadResult struct {
	Accepted int
	Total    int
	// Recent is the number of records still inside the window afterwards.
	Recent int
	// Offset is the byte offset just past the last complete line replayed.
	Offset   int64
	Rejected RejectCounts
}

// Aggregator holds readings ordered by timestamp, never older than the
// configured window relative to the latest reading it has seen.
// It is not safe for concurrent use.
type Aggregator struct {
	window  time.Duration
	codec   *codec.LineCodec
	source  string
	records []domain.Record
}

type Option func(*Aggregator)

func WithWindow(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.window = d
		}
	}
}

// WithSource names the data file in emitted snapshots.
func WithSource(name string) Option {
	return func(a *Aggregator) { a.source = name }
}

func New(c *codec.LineCodec, opts ...Option) *Aggregator {
	if c == nil {
		c = codec.New(codec.DefaultUnit)
	}
	a := &Aggregator{window: DefaultWindow, codec: c}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Load discards the current window and replays path from offset 0. Lines
// that do not parse are skipped. A trailing line without terminator is left
// for the tail reader; Offset points at its first byte.
func (a *Aggregator) Load(path string) (LoadResult, error) {
	res := LoadResult{Rejected: RejectCounts{}}

	r, err := tail.Open(path, tail.FromStart())
	if err != nil {
		return res, fmt.Errorf("load %s: %w", path, err)
	}
	defer r.Close()

	a.records = a.records[:0]
	for {
		line, ok, err := r.Poll()
		if err != nil {
			return res, fmt.Errorf("load %s: %w", path, err)
		}
		if !ok {
			break
		}
		res.Total++
		rec, reason := a.codec.ParseDetailed(line)
		if reason != codec.RejectNone {
			res.Rejected.Add(reason)
			continue
		}
		a.insert(rec)
		res.Accepted++
	}

	a.evict()
	res.Recent = len(a.records)
	res.Offset = r.Cursor()
	return res, nil
}

// Ingest adds one record and evicts everything that fell out of the window
// relative to the latest known timestamp. It reports false for a record that
// is already too old to be kept.
func (a *Aggregator) Ingest(rec domain.Record) bool {
	if n := len(a.records); n > 0 && !rec.Timestamp.After(a.records[n-1].Timestamp.Add(-a.window)) {
		return false
	}
	a.insert(rec)
	a.evict()
	return true
}

func (a *Aggregator) insert(rec domain.Record) {
	n := len(a.records)
	if n == 0 || !rec.Timestamp.Before(a.records[n-1].Timestamp) {
		a.records = append(a.records, rec)
		return
	}
	// Late arrival: keep the slice ordered.
	i := sort.Search(n, func(i int) bool { return a.records[i].Timestamp.After(rec.Timestamp) })
	a.records = append(a.records, domain.Record{})
	copy(a.records[i+1:], a.records[i:])
	a.records[i] = rec
}

func (a *Aggregator) evict() {
	n := len(a.records)
	if n == 0 {
		return
	}
	cutoff := a.records[n-1].Timestamp.Add(-a.window)
	i := sort.Search(n, func(i int) bool { return a.records[i].Timestamp.After(cutoff) })
	if i == 0 {
		return
	}
	kept := copy(a.records, a.records[i:])
	a.records = a.records[:kept]
}

// WindowAverage averages the readings with asOf-hours < ts <= asOf. The scan
// starts from the newest reading and stops at the first one past the cutoff.
func (a *Aggregator) WindowAverage(hours int, asOf time.Time) domain.WindowAverage {
	out := domain.WindowAverage{Hours: hours}
	cutoff := asOf.Add(-time.Duration(hours) * time.Hour)

	var sum float64
	for i := len(a.records) - 1; i >= 0; i-- {
		ts := a.records[i].Timestamp
		if ts.After(asOf) {
			continue
		}
		if !ts.After(cutoff) {
			break
		}
		sum += a.records[i].Value
		out.Count++
	}
	if out.Count == 0 {
		return out
	}
	out.Mean = sum / float64(out.Count)
	out.OK = true
	return out
}

// Report computes the 1h/6h/12h snapshot as of asOf without touching the
// window.
func (a *Aggregator) Report(asOf time.Time) domain.Snapshot {
	return domain.Snapshot{
		Source: a.source,
		AsOf:   asOf,
		H1:     a.WindowAverage(ReportHours[0], asOf),
		H6:     a.WindowAverage(ReportHours[1], asOf),
		H12:    a.WindowAverage(ReportHours[2], asOf),
	}
}

func (a *Aggregator) Len() int { return len(a.records) }

// Latest returns the newest reading, if any.
func (a *Aggregator) Latest() (domain.Record, bool) {
	if len(a.records) == 0 {
		return domain.Record{}, false
	}
	return a.records[len(a.records)-1], true
}

// Records returns a copy of the window, oldest first.
func (a *Aggregator) Records() []domain.Record {
	out := make([]domain.Record, len(a.records))
	copy(out, a.records)
	return out
}
