package tailflow

import (
	"github.com/ghalamif/TailFlow/internal/adapters/opcua"
	"github.com/ghalamif/TailFlow/internal/adapters/source"
	"github.com/ghalamif/TailFlow/internal/app/config"
	"github.com/ghalamif/TailFlow/internal/logging"
	"github.com/ghalamif/TailFlow/internal/ports"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// FileConfig names the data file and the unit written after each value.
	FileConfig = config.FileConfig
	// WriterConfig controls the producing side.
	WriterConfig = config.WriterConfig
	// SimulatorConfig bounds the simulated readings.
	SimulatorConfig = source.SimulatorConfig
	// OPCUAConfig holds connection + node details.
	OPCUAConfig = opcua.Config
	// ReaderConfig controls the tail poll cadence.
	ReaderConfig = config.ReaderConfig
	// AnalyzerConfig controls snapshot cadence and window length.
	AnalyzerConfig = config.AnalyzerConfig
	// Policy controls snapshot queue thresholds.
	Policy = ports.Policy
	// TimescaleConfig configures the database sink.
	TimescaleConfig = config.TimescaleConfig
	// MetricsConfig configures the metrics HTTP server.
	MetricsConfig = config.MetricsConfig
	// LoggingConfig configures the process logger.
	LoggingConfig = logging.Config
	// SupervisorConfig bounds shutdown.
	SupervisorConfig = config.SupervisorConfig
)

// UnitNone as file.unit writes bare values.
const UnitNone = config.UnitNone

// ConfigPathEnvVar names the variable the CLI reads the config path from.
const ConfigPathEnvVar = config.PathEnvVar

// LoadConfig layers defaults, the YAML file at path (skipped when empty)
// and TAILFLOW_* environment variables.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return config.Default()
}
