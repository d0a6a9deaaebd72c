// Package config loads TailFlow configuration: struct defaults, then an
// optional YAML file, then TAILFLOW_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"

	"github.com/ghalamif/TailFlow/internal/adapters/codec"
	"github.com/ghalamif/TailFlow/internal/adapters/opcua"
	"github.com/ghalamif/TailFlow/internal/adapters/source"
	"github.com/ghalamif/TailFlow/internal/app/rolling"
	"github.com/ghalamif/TailFlow/internal/logging"
	"github.com/ghalamif/TailFlow/internal/ports"
)

const (
	// PathEnvVar names the variable holding the config file path.
	PathEnvVar = "TAILFLOW_CONFIG"
	envPrefix  = "TAILFLOW_"

	SourceSimulator = "simulator"
	SourceOPCUA     = "opcua"

	// UnitNone writes values without a unit. An unset unit means " °C".
	UnitNone = "none"
)

type Config struct {
	File       FileConfig             `koanf:"file" yaml:"file"`
	Writer     WriterConfig           `koanf:"writer" yaml:"writer"`
	Simulator  source.SimulatorConfig `koanf:"simulator" yaml:"simulator"`
	OPCUA      opcua.Config           `koanf:"opcua" yaml:"opcua"`
	Reader     ReaderConfig           `koanf:"reader" yaml:"reader"`
	Analyzer   AnalyzerConfig         `koanf:"analyzer" yaml:"analyzer"`
	Policy     ports.Policy           `koanf:"policy" yaml:"policy"`
	Timescale  TimescaleConfig        `koanf:"timescale" yaml:"timescale"`
	Metrics    MetricsConfig          `koanf:"metrics" yaml:"metrics"`
	Logging    logging.Config         `koanf:"logging" yaml:"logging"`
	Supervisor SupervisorConfig       `koanf:"supervisor" yaml:"supervisor"`
}

type FileConfig struct {
	Path string `koanf:"path" yaml:"path" validate:"required"`
	// Unit is appended to every written value, e.g. " °C". Use "none" for
	// bare values.
	Unit string `koanf:"unit" yaml:"unit"`
}

// LineUnit is the suffix actually written after each value.
func (f FileConfig) LineUnit() string {
	if strings.EqualFold(strings.TrimSpace(f.Unit), UnitNone) {
		return ""
	}
	return f.Unit
}

type WriterConfig struct {
	Interval       time.Duration `koanf:"interval" yaml:"interval" validate:"gt=0"`
	Iterations     int           `koanf:"iterations" yaml:"iterations" validate:"gte=0"`
	SyncEveryWrite bool          `koanf:"sync_every_write" yaml:"sync_every_write"`
	Source         string        `koanf:"source" yaml:"source" validate:"oneof=simulator opcua"`
	// Echo prints every appended line to stdout.
	Echo bool `koanf:"echo" yaml:"echo"`
}

type ReaderConfig struct {
	PollInterval time.Duration `koanf:"poll_interval" yaml:"poll_interval" validate:"gt=0"`
	// Echo prints every tailed line to stdout.
	Echo bool `koanf:"echo" yaml:"echo"`
}

type AnalyzerConfig struct {
	RefreshInterval time.Duration `koanf:"refresh_interval" yaml:"refresh_interval" validate:"gt=0"`
	Window          time.Duration `koanf:"window" yaml:"window" validate:"gte=12h"`
}

type TimescaleConfig struct {
	// ConnString usually embeds a password; it is never rendered.
	ConnString string `koanf:"conn_string" yaml:"-"`
	Table      string `koanf:"table" yaml:"table"`
}

// MetricsConfig controls the Prometheus endpoint. An empty Addr opens no
// listener.
type MetricsConfig struct {
	Addr string `koanf:"addr" yaml:"addr"`
}

type SupervisorConfig struct {
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" yaml:"shutdown_timeout" validate:"gt=0"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero values. It is safe to call on a partially built
// Config.
func (c *Config) ApplyDefaults() {
	if c.File.Path == "" {
		c.File.Path = "temp.dat"
	}
	if c.File.Unit == "" {
		c.File.Unit = codec.DefaultUnit
	}

	sim := source.DefaultSimulatorConfig()
	if c.Writer.Interval <= 0 {
		c.Writer.Interval = sim.Interval
	}
	if c.Writer.Source == "" {
		c.Writer.Source = SourceSimulator
	}
	if c.Simulator.Min == 0 && c.Simulator.Max == 0 {
		c.Simulator.Min, c.Simulator.Max = sim.Min, sim.Max
	}
	if c.Simulator.Precision == 0 {
		c.Simulator.Precision = sim.Precision
	}

	if c.Reader.PollInterval <= 0 {
		c.Reader.PollInterval = time.Second
	}
	if c.Analyzer.RefreshInterval <= 0 {
		c.Analyzer.RefreshInterval = 30 * time.Second
	}
	if c.Analyzer.Window <= 0 {
		c.Analyzer.Window = rolling.DefaultWindow
	}

	if c.Policy.MaxQueueLen == 0 {
		c.Policy.MaxQueueLen = 1_000
	}
	if c.Policy.MaxBatchSize == 0 {
		c.Policy.MaxBatchSize = 100
	}
	if c.Policy.IdleSleep == 0 {
		c.Policy.IdleSleep = 50 * time.Millisecond
	}
	if c.Policy.OnQueueFull == "" {
		c.Policy.OnQueueFull = "drop"
	}

	if c.Timescale.Table == "" {
		c.Timescale.Table = "rolling_averages"
	}

	def := logging.DefaultConfig()
	if c.Logging.Level == "" {
		c.Logging.Level = def.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = def.Format
	}

	if c.Supervisor.ShutdownTimeout <= 0 {
		c.Supervisor.ShutdownTimeout = 2 * time.Second
	}

	if c.Writer.Source == SourceOPCUA {
		c.OPCUA.ApplyDefaults()
	}
}

var validate = validator.New()

// Validate checks field constraints and the cross-field rules the struct
// tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := codec.ValidateUnit(c.File.LineUnit()); err != nil {
		return fmt.Errorf("file.unit: %w", err)
	}
	if c.Simulator.Max < c.Simulator.Min {
		return fmt.Errorf("simulator.max (%v) must be >= simulator.min (%v)", c.Simulator.Max, c.Simulator.Min)
	}
	if c.Writer.Source == SourceOPCUA {
		if err := c.OPCUA.Validate(); err != nil {
			return fmt.Errorf("opcua config: %w", err)
		}
	}
	return nil
}

// SimulatorSettings merges the writer cadence into the simulator config.
func (c *Config) SimulatorSettings() source.SimulatorConfig {
	sim := c.Simulator
	sim.Interval = c.Writer.Interval
	sim.Iterations = c.Writer.Iterations
	return sim
}

// Load reads configuration. An empty path skips the file layer.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), kyaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv loads the file named by TAILFLOW_CONFIG, if set.
func LoadFromEnv() (*Config, error) {
	return Load(os.Getenv(PathEnvVar))
}

// envTransform maps TAILFLOW_READER__POLL_INTERVAL to reader.poll_interval.
func envTransform(key string) string {
	if key == PathEnvVar {
		return ""
	}
	key = strings.TrimPrefix(key, envPrefix)
	return strings.ReplaceAll(strings.ToLower(key), "__", ".")
}

// YAML renders the effective configuration. Secrets are tagged out.
func (c *Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("render config: %w", err)
	}
	return out, nil
}
