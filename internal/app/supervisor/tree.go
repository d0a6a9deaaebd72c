// Package supervisor runs TailFlow services under a suture tree: a
// producer layer (the file writer) and an analysis layer (tailing,
// reporting, echo). Supervisor events are logged through zerolog.
package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/ghalamif/TailFlow/internal/logging"
)

type TreeConfig struct {
	// FailureThreshold is the number of failures before entering backoff.
	FailureThreshold float64
	// FailureDecay is the rate at which failures decay in seconds.
	FailureDecay float64
	// FailureBackoff is the pause once the threshold is exceeded.
	FailureBackoff time.Duration
	// ShutdownTimeout bounds how long a service may take to stop.
	ShutdownTimeout time.Duration
}

func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   5 * time.Second,
		ShutdownTimeout:  2 * time.Second,
	}
}

type Tree struct {
	root     *suture.Supervisor
	producer *suture.Supervisor
	analysis *suture.Supervisor
	config   TreeConfig
}

// NewTree builds the tree. A nil logger routes supervisor events to the
// global zerolog logger.
func NewTree(logger *slog.Logger, config TreeConfig) *Tree {
	def := DefaultTreeConfig()
	if config.FailureThreshold == 0 {
		config.FailureThreshold = def.FailureThreshold
	}
	if config.FailureDecay == 0 {
		config.FailureDecay = def.FailureDecay
	}
	if config.FailureBackoff == 0 {
		config.FailureBackoff = def.FailureBackoff
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = def.ShutdownTimeout
	}
	if logger == nil {
		logger = logging.NewSlogLogger()
	}

	spec := suture.Spec{
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}
	rootSpec := spec
	rootSpec.EventHook = (&sutureslog.Handler{Logger: logger}).MustHook()

	root := suture.New("tailflow", rootSpec)
	producer := suture.New("producer", spec)
	analysis := suture.New("analysis", spec)
	root.Add(producer)
	root.Add(analysis)

	return &Tree{root: root, producer: producer, analysis: analysis, config: config}
}

func (t *Tree) AddProducer(svc suture.Service) suture.ServiceToken {
	return t.producer.Add(svc)
}

func (t *Tree) AddAnalysis(svc suture.Service) suture.ServiceToken {
	return t.analysis.Add(svc)
}

func (t *Tree) Config() TreeConfig { return t.config }

// Run serves the tree until ctx is done. Cancellation is a clean exit.
// Services that outlive the shutdown timeout are logged and returned; they
// are abandoned rather than treated as a failure.
func (t *Tree) Run(ctx context.Context) ([]string, error) {
	err := t.root.Serve(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, suture.ErrTerminateSupervisorTree) {
		err = nil
	}

	report, rerr := t.root.UnstoppedServiceReport()
	if rerr != nil {
		logging.Warn().Err(rerr).Msg("unstopped service report unavailable")
	}
	names := make([]string, 0, len(report))
	for _, svc := range report {
		names = append(names, svc.Name)
		logging.Warn().Str("service", svc.Name).Dur("timeout", t.config.ShutdownTimeout).Msg("service failed to stop within timeout")
	}
	return names, err
}
