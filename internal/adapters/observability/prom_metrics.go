package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ghalamif/TailFlow/internal/logging"
	"github.com/ghalamif/TailFlow/internal/ports"
)

// PromObs logs through zerolog and records metrics in a Prometheus registry.
type PromObs struct {
	log      zerolog.Logger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
	rejected *prometheus.CounterVec

	// rejectLog keeps a file full of garbage from flooding the log.
	rejectLog *rate.Limiter
}

// NewPromObs registers the TailFlow collectors with reg. Pass a fresh
// prometheus.NewRegistry() per runtime; registering twice on the same
// registry panics.
func NewPromObs(reg prometheus.Registerer) *PromObs {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	}

	counters := map[string]prometheus.Counter{
		ports.MetricRecordsWritten:   counter(ports.MetricRecordsWritten, "Records appended to the data file."),
		ports.MetricBytesWritten:     counter(ports.MetricBytesWritten, "Bytes appended to the data file."),
		ports.MetricWriteErrors:      counter(ports.MetricWriteErrors, "Failed appends to the data file."),
		ports.MetricLinesTailed:      counter(ports.MetricLinesTailed, "Complete lines read by the tail reader."),
		ports.MetricRecordsIngested:  counter(ports.MetricRecordsIngested, "Parsed records added to the rolling window."),
		ports.MetricTruncations:      counter(ports.MetricTruncations, "Times the data file shrank below the reader cursor."),
		ports.MetricReopens:          counter(ports.MetricReopens, "Times the data file path was replaced and reopened."),
		ports.MetricSnapshotsEmitted: counter(ports.MetricSnapshotsEmitted, "Rolling average snapshots delivered to sinks."),
		ports.MetricSnapshotsDropped: counter(ports.MetricSnapshotsDropped, "Snapshots lost to queue backpressure."),
		ports.MetricSinkErrors:       counter(ports.MetricSinkErrors, "Failed snapshot sink writes."),
	}
	gauges := map[string]prometheus.Gauge{
		ports.MetricWindowRecords:     gauge(ports.MetricWindowRecords, "Records currently held in the rolling window."),
		ports.MetricReaderCursorBytes: gauge(ports.MetricReaderCursorBytes, "Byte offset of the tail reader."),
		ports.MetricQueueLength:       gauge(ports.MetricQueueLength, "Snapshots waiting for delivery."),
	}
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    ports.MetricSinkLatency,
		Help:    "Time spent writing a snapshot batch to a sink.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: ports.MetricLinesRejected,
		Help: "Lines skipped because they did not parse, by reason.",
	}, []string{"reason"})

	if reg != nil {
		for _, c := range counters {
			reg.MustRegister(c)
		}
		for _, g := range gauges {
			reg.MustRegister(g)
		}
		reg.MustRegister(latency, rejected)
	}

	return &PromObs{
		log:       logging.Component("tailflow"),
		counters:  counters,
		gauges:    gauges,
		histos:    map[string]prometheus.Observer{ports.MetricSinkLatency: latency},
		rejected:  rejected,
		rejectLog: rate.NewLimiter(rate.Every(time.Second), 5),
	}
}

func withFields(e *zerolog.Event, fields []ports.Field) *zerolog.Event {
	for _, f := range fields {
		e = e.Interface(f.Key, f.Value)
	}
	return e
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	withFields(p.log.Info(), fields).Msg(msg)
}

func (p *PromObs) LogWarn(msg string, fields ...ports.Field) {
	withFields(p.log.Warn(), fields).Msg(msg)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	withFields(p.log.Error().Err(err), fields).Msg(msg)
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	withFields(p.log.WithLevel(zerolog.FatalLevel).Err(err), fields).Msg(msg)
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func (p *PromObs) RecordRejected(reason string, line string) {
	p.rejected.WithLabelValues(reason).Inc()
	if p.rejectLog.Allow() {
		p.log.Debug().Str("reason", reason).Str("line", line).Msg("line_rejected")
	}
}

var _ ports.Observability = (*PromObs)(nil)
