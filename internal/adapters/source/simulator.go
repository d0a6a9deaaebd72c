// Package source provides built-in reading producers for the writer.
package source

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/ghalamif/TailFlow/internal/domain"
	"github.com/ghalamif/TailFlow/internal/ports"
)

// SimulatorConfig describes the simulated sensor.
type SimulatorConfig struct {
	Min       float64       `koanf:"min" yaml:"min"`
	Max       float64       `koanf:"max" yaml:"max" validate:"gtefield=Min"`
	Precision int           `koanf:"precision" yaml:"precision" validate:"gte=0,lte=9"`
	Interval  time.Duration `koanf:"-" yaml:"-"`
	// Iterations stops the simulator after that many readings; 0 runs forever.
	Iterations int `koanf:"-" yaml:"-"`
}

func DefaultSimulatorConfig() SimulatorConfig {
	return SimulatorConfig{Min: 20, Max: 35, Precision: 2, Interval: 2 * time.Second}
}

func (c SimulatorConfig) Validate() error {
	if c.Max < c.Min {
		return fmt.Errorf("simulator: max %v below min %v", c.Max, c.Min)
	}
	if c.Precision < 0 {
		return errors.New("simulator: precision must not be negative")
	}
	if c.Interval <= 0 {
		return errors.New("simulator: interval must be positive")
	}
	return nil
}

// Simulator emits uniformly distributed readings at a fixed interval.
type Simulator struct {
	cfg  SimulatorConfig
	rng  *rand.Rand
	now  func() time.Time
	name string
}

type SimulatorOption func(*Simulator)

// WithRand makes the value stream reproducible.
func WithRand(r *rand.Rand) SimulatorOption {
	return func(s *Simulator) { s.rng = r }
}

func WithClock(now func() time.Time) SimulatorOption {
	return func(s *Simulator) { s.now = now }
}

func NewSimulator(cfg SimulatorConfig, opts ...SimulatorOption) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Simulator{
		cfg:  cfg,
		rng:  rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x7461696c)),
		now:  time.Now,
		name: "simulator",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Simulator) Name() string { return s.name }

func (s *Simulator) Run(ctx context.Context, emit func(domain.Record) error) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for n := 0; s.cfg.Iterations == 0 || n < s.cfg.Iterations; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec := domain.Record{
			Timestamp: s.now().Truncate(time.Second),
			Value:     s.next(),
		}
		if err := emit(rec); err != nil {
			return err
		}
		if s.cfg.Iterations != 0 && n+1 == s.cfg.Iterations {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

func (s *Simulator) next() float64 {
	v := s.cfg.Min + s.rng.Float64()*(s.cfg.Max-s.cfg.Min)
	return round(v, s.cfg.Precision)
}

func round(v float64, precision int) float64 {
	scale := math.Pow10(precision)
	return math.Round(v*scale) / scale
}

var _ ports.Source = (*Simulator)(nil)
