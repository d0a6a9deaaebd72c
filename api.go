package tailflow

import (
	"io"
	"time"

	base "github.com/ghalamif/TailFlow/pkg/tailflow"
)

// Re-exported errors for convenience.
var (
	ErrChannelSinkClosed = base.ErrChannelSinkClosed
	ErrPublisherClosed   = base.ErrPublisherClosed
	ErrInvalidValue      = base.ErrInvalidValue
	ErrInvalidUnit       = base.ErrInvalidUnit
)

// Type aliases so consumers can import github.com/ghalamif/TailFlow directly.
type (
	Config            = base.Config
	FileConfig        = base.FileConfig
	WriterConfig      = base.WriterConfig
	SimulatorConfig   = base.SimulatorConfig
	OPCUAConfig       = base.OPCUAConfig
	ReaderConfig      = base.ReaderConfig
	AnalyzerConfig    = base.AnalyzerConfig
	Policy            = base.Policy
	TimescaleConfig   = base.TimescaleConfig
	MetricsConfig     = base.MetricsConfig
	LoggingConfig     = base.LoggingConfig
	SupervisorConfig  = base.SupervisorConfig
	Flow              = base.Flow
	FlowOption        = base.FlowOption
	StreamInOption    = base.StreamInOption
	StreamOutOption   = base.StreamOutOption
	Runtime           = base.Runtime
	RuntimeOption     = base.RuntimeOption
	Mode              = base.Mode
	Record            = base.Record
	Snapshot          = base.Snapshot
	WindowAverage     = base.WindowAverage
	SnapshotBatchFunc = base.SnapshotBatchFunc
	Source            = base.Source
	SnapshotSink      = base.SnapshotSink
	SnapshotQueue     = base.SnapshotQueue
	Observability     = base.Observability
	Field             = base.Field
	Summary           = base.Summary
	Publisher         = base.Publisher
	PublisherOption   = base.PublisherOption
)

// Runtime modes.
const (
	ModeRun     = base.ModeRun
	ModeWrite   = base.ModeWrite
	ModeRead    = base.ModeRead
	ModeAnalyze = base.ModeAnalyze
)

// ConfigPathEnvVar names the variable the CLI reads the config path from.
const ConfigPathEnvVar = base.ConfigPathEnvVar

const UnitNone = base.UnitNone

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

func DefaultConfig() *Config {
	return base.DefaultConfig()
}

// Flow builder helpers.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	return base.Conf(path, opts...)
}

func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	return base.ConfFromConfig(cfg, opts...)
}

func WithFlowOptions(opts ...RuntimeOption) FlowOption {
	return base.WithFlowOptions(opts...)
}

func WithFlowMode(m Mode) FlowOption {
	return base.WithFlowMode(m)
}

func StreamInSource(src Source) StreamInOption {
	return base.StreamInSource(src)
}

func StreamInValues(interval time.Duration, values ...float64) StreamInOption {
	return base.StreamInValues(interval, values...)
}

func StreamOutSink(s SnapshotSink) StreamOutOption {
	return base.StreamOutSink(s)
}

func StreamOutObservability(obs Observability) StreamOutOption {
	return base.StreamOutObservability(obs)
}

func StreamOutCallback(name string, fn SnapshotBatchFunc) StreamOutOption {
	return base.StreamOutCallback(name, fn)
}

// Runtime and options.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	return base.NewRuntime(cfg, opts...)
}

func WithSource(src Source) RuntimeOption {
	return base.WithSource(src)
}

func WithSnapshotSink(s SnapshotSink) RuntimeOption {
	return base.WithSnapshotSink(s)
}

func WithObservability(obs Observability) RuntimeOption {
	return base.WithObservability(obs)
}

func WithClock(now func() time.Time) RuntimeOption {
	return base.WithClock(now)
}

func WithMode(m Mode) RuntimeOption {
	return base.WithMode(m)
}

func WithOutput(w io.Writer) RuntimeOption {
	return base.WithOutput(w)
}

// Sink adapters.
func NewCallbackSink(name string, fn SnapshotBatchFunc) SnapshotSink {
	return base.NewCallbackSink(name, fn)
}

func NewChannelSink(name string, buffer int) (SnapshotSink, <-chan []Snapshot, func()) {
	return base.NewChannelSink(name, buffer)
}

// Publisher.
func NewPublisher(path, unit string, opts ...PublisherOption) (*Publisher, error) {
	return base.NewPublisher(path, unit, opts...)
}

func WithPublisherSync(enabled bool) PublisherOption {
	return base.WithPublisherSync(enabled)
}

func WithPublisherClock(now func() time.Time) PublisherOption {
	return base.WithPublisherClock(now)
}
