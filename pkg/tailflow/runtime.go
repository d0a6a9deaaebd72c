package tailflow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ghalamif/TailFlow/internal/adapters/appendfile"
	"github.com/ghalamif/TailFlow/internal/adapters/codec"
	"github.com/ghalamif/TailFlow/internal/adapters/observability"
	"github.com/ghalamif/TailFlow/internal/adapters/opcua"
	"github.com/ghalamif/TailFlow/internal/adapters/queue"
	"github.com/ghalamif/TailFlow/internal/adapters/sink"
	"github.com/ghalamif/TailFlow/internal/adapters/source"
	"github.com/ghalamif/TailFlow/internal/app/config"
	"github.com/ghalamif/TailFlow/internal/app/pipeline"
	"github.com/ghalamif/TailFlow/internal/app/supervisor"
	"github.com/ghalamif/TailFlow/internal/logging"
	"github.com/ghalamif/TailFlow/internal/ports"
)

// Mode selects which services a Runtime starts.
type Mode string

const (
	// ModeRun writes, tails and reports.
	ModeRun Mode = "run"
	// ModeWrite only appends readings; it stops once a finite source is done.
	ModeWrite Mode = "write"
	// ModeRead only echoes new lines.
	ModeRead Mode = "read"
	// ModeAnalyze tails and reports without writing.
	ModeAnalyze Mode = "analyze"
)

func (m Mode) writes() bool  { return m == ModeRun || m == ModeWrite }
func (m Mode) analyzes() bool { return m == ModeRun || m == ModeAnalyze }

// RuntimeOption customizes the dependencies used by Runtime.
type RuntimeOption func(*runtimeOverrides)

type runtimeOverrides struct {
	source        Source
	sinks         []SnapshotSink
	observability Observability
	clock         func() time.Time
	mode          Mode
	out           io.Writer
}

// WithSource replaces the configured source (simulator or OPC UA).
func WithSource(src Source) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.source = src
	}
}

// WithSnapshotSink adds a sink. Any sink given this way replaces the
// default console and Timescale sinks.
func WithSnapshotSink(s SnapshotSink) RuntimeOption {
	return func(o *runtimeOverrides) {
		if s != nil {
			o.sinks = append(o.sinks, s)
		}
	}
}

// WithObservability plugs in a custom observability backend.
func WithObservability(obs Observability) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.observability = obs
	}
}

// WithClock replaces time.Now for snapshot stamps, the future-skew check and
// the simulator.
func WithClock(now func() time.Time) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.clock = now
	}
}

// WithMode selects the services to run. The default is ModeRun.
func WithMode(m Mode) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.mode = m
	}
}

// WithOutput redirects the console sink and echo output (stdout by default).
func WithOutput(w io.Writer) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.out = w
	}
}

// Runtime wires the writer, consumer and reporter services for one data
// file under a supervisor tree.
type Runtime struct {
	cfg      *Config
	mode     Mode
	obs      ports.Observability
	registry *prometheus.Registry
	source   ports.Source
	sinks    []ports.SnapshotSink
	queue    ports.SnapshotQueue
	codec    *codec.LineCodec
	clock    func() time.Time
	out      io.Writer
	db       *sql.DB
	counters *pipeline.Counters
}

// NewRuntime validates cfg and bootstraps the default adapters. Callers can
// use RuntimeOption values to override any of them.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var overrides runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	mode := overrides.mode
	if mode == "" {
		mode = ModeRun
	}
	switch mode {
	case ModeRun, ModeWrite, ModeRead, ModeAnalyze:
	default:
		return nil, fmt.Errorf("unknown mode %q", mode)
	}

	// a custom source makes the configured one irrelevant
	if overrides.source != nil && cfg.Writer.Source == config.SourceOPCUA {
		copied := *cfg
		copied.Writer.Source = config.SourceSimulator
		cfg = &copied
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clock := overrides.clock
	if clock == nil {
		clock = time.Now
	}
	out := overrides.out
	if out == nil {
		out = os.Stdout
	}

	rt := &Runtime{
		cfg:      cfg,
		mode:     mode,
		clock:    clock,
		out:      out,
		codec:    &codec.LineCodec{Unit: cfg.File.LineUnit(), Now: clock},
		queue:    queue.NewMemQueue(cfg.Policy.MaxQueueLen),
		counters: &pipeline.Counters{},
	}

	rt.registry = prometheus.NewRegistry()
	rt.obs = overrides.observability
	if rt.obs == nil {
		rt.obs = observability.NewPromObs(rt.registry)
	}

	if mode.writes() {
		src, err := rt.buildSource(overrides.source)
		if err != nil {
			return nil, err
		}
		rt.source = src
	}

	if mode.analyzes() {
		if len(overrides.sinks) > 0 {
			rt.sinks = overrides.sinks
		} else if err := rt.buildDefaultSinks(); err != nil {
			return nil, err
		}
	}

	return rt, nil
}

func (r *Runtime) buildSource(override ports.Source) (ports.Source, error) {
	if override != nil {
		return override, nil
	}
	switch r.cfg.Writer.Source {
	case config.SourceOPCUA:
		return opcua.NewSource(r.cfg.OPCUA)
	default:
		return source.NewSimulator(r.cfg.SimulatorSettings(), source.WithClock(r.clock))
	}
}

func (r *Runtime) buildDefaultSinks() error {
	r.sinks = []ports.SnapshotSink{sink.NewConsoleSink(r.out, r.cfg.File.LineUnit())}
	if r.cfg.Timescale.ConnString == "" {
		return nil
	}
	db, err := sql.Open("postgres", r.cfg.Timescale.ConnString)
	if err != nil {
		return fmt.Errorf("open timescale: %w", err)
	}
	r.db = db
	r.sinks = append(r.sinks, sink.NewTimescaleSink(db, r.cfg.Timescale.Table))
	return nil
}

// Config returns the effective configuration.
func (r *Runtime) Config() *Config { return r.cfg }

// Summary reports the counts processed so far.
func (r *Runtime) Summary() Summary { return r.counters.Summary() }

// Run starts the services and blocks until ctx is cancelled (or, in
// ModeWrite, until a finite source is exhausted). It then waits up to the
// configured shutdown timeout, delivers queued snapshots and returns the
// counts processed. Cancellation is not an error.
func (r *Runtime) Run(ctx context.Context) (Summary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: r.cfg.Supervisor.ShutdownTimeout,
	})

	if r.mode.writes() {
		writer := pipeline.NewWriterService(r.source, r.openWriter, r.obs, r.counters)
		if r.mode == ModeWrite {
			writer.OnExhausted(cancel)
		}
		if r.cfg.Writer.Echo {
			writer.EchoTo(r.out, r.codec.Format)
		}
		tree.AddProducer(writer)
	}

	var reporter *pipeline.ReporterService
	if r.mode.analyzes() {
		tree.AddAnalysis(pipeline.NewConsumerService(pipeline.ConsumerConfig{
			Path:            r.cfg.File.Path,
			Codec:           r.codec,
			PollInterval:    r.cfg.Reader.PollInterval,
			RefreshInterval: r.cfg.Analyzer.RefreshInterval,
			Window:          r.cfg.Analyzer.Window,
			Now:             r.clock,
		}, r.queue, r.cfg.Policy, r.obs, r.counters))

		reporter = pipeline.NewReporterService(r.queue, r.sinks, r.cfg.Policy, pipeline.DefaultBreakerSettings(), r.obs)
		tree.AddAnalysis(reporter)
	}

	if r.mode == ModeRead || r.cfg.Reader.Echo {
		echo := pipeline.NewEchoService(r.cfg.File.Path, r.out, r.cfg.Reader.PollInterval, r.obs)
		if r.mode != ModeRead {
			echo.WithPrefix("[reader] ")
		}
		tree.AddAnalysis(echo)
	}

	metricsSrv := r.startMetrics()

	r.obs.LogInfo("runtime_started",
		ports.Field{Key: "mode", Value: string(r.mode)},
		ports.Field{Key: "path", Value: r.cfg.File.Path})

	unstopped, err := tree.Run(ctx)
	if reporter != nil {
		reporter.Drain()
	}

	var errs []error
	if err != nil {
		errs = append(errs, err)
	}
	if metricsSrv != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), r.cfg.Supervisor.ShutdownTimeout)
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
		stop()
	}
	if r.db != nil {
		if err := r.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	summary := r.counters.Summary()
	r.obs.LogInfo("runtime_stopped",
		ports.Field{Key: "summary", Value: summary.String()},
		ports.Field{Key: "unstopped", Value: len(unstopped)})
	return summary, errors.Join(errs...)
}

func (r *Runtime) openWriter() (ports.RecordWriter, error) {
	return appendfile.Open(r.cfg.File.Path,
		appendfile.WithCodec(r.codec),
		appendfile.WithSync(r.cfg.Writer.SyncEveryWrite))
}

// startMetrics serves /metrics and /healthz when metrics.addr is set.
func (r *Runtime) startMetrics() *http.Server {
	if r.cfg.Metrics.Addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              r.cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error().Err(err).Str("addr", srv.Addr).Msg("metrics server exited")
		}
	}()
	return srv
}
