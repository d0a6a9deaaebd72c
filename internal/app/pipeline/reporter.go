package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/ghalamif/TailFlow/internal/domain"
	"github.com/ghalamif/TailFlow/internal/ports"
)

// BreakerSettings tunes the circuit breaker placed in front of every sink.
type BreakerSettings struct {
	// ConsecutiveFailures opens the breaker.
	ConsecutiveFailures uint32
	// OpenTimeout is how long an open breaker rejects writes before probing.
	OpenTimeout time.Duration
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{ConsecutiveFailures: 5, OpenTimeout: 30 * time.Second}
}

type guardedSink struct {
	sink ports.SnapshotSink
	cb   *gobreaker.CircuitBreaker[struct{}]
}

// ReporterService drains the snapshot queue into every sink.
type ReporterService struct {
	queue  ports.SnapshotQueue
	sinks  []guardedSink
	policy ports.Policy
	obs    ports.Observability
}

func NewReporterService(q ports.SnapshotQueue, sinks []ports.SnapshotSink, pol ports.Policy, bs BreakerSettings, obs ports.Observability) *ReporterService {
	if bs.ConsecutiveFailures == 0 {
		bs.ConsecutiveFailures = DefaultBreakerSettings().ConsecutiveFailures
	}
	if bs.OpenTimeout <= 0 {
		bs.OpenTimeout = DefaultBreakerSettings().OpenTimeout
	}

	guarded := make([]guardedSink, 0, len(sinks))
	for _, s := range sinks {
		if s == nil {
			continue
		}
		name := s.Name()
		cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Timeout:     bs.OpenTimeout,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= bs.ConsecutiveFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				obs.LogWarn("sink_breaker_state",
					ports.Field{Key: "sink", Value: name},
					ports.Field{Key: "from", Value: from.String()},
					ports.Field{Key: "to", Value: to.String()})
			},
		})
		guarded = append(guarded, guardedSink{sink: s, cb: cb})
	}

	return &ReporterService{queue: q, sinks: guarded, policy: pol, obs: obs}
}

func (r *ReporterService) String() string { return "reporter" }

func (r *ReporterService) Serve(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch := r.queue.DequeueBatch(r.batchSize())
		if len(batch) == 0 {
			if !sleep(ctx, r.policy.IdleSleep) {
				return ctx.Err()
			}
			continue
		}
		r.deliver(batch)
	}
}

// Drain delivers everything still queued. It is meant for shutdown, after
// the producers have stopped.
func (r *ReporterService) Drain() int {
	var n int
	for {
		batch := r.queue.DequeueBatch(r.batchSize())
		if len(batch) == 0 {
			return n
		}
		r.deliver(batch)
		n += len(batch)
	}
}

func (r *ReporterService) batchSize() int {
	if r.policy.MaxBatchSize <= 0 {
		return 1
	}
	return r.policy.MaxBatchSize
}

func (r *ReporterService) deliver(batch []domain.Snapshot) {
	var delivered bool
	for _, g := range r.sinks {
		start := time.Now()
		_, err := g.cb.Execute(func() (struct{}, error) {
			return struct{}{}, g.sink.WriteBatch(batch)
		})
		if err != nil {
			r.obs.IncCounter(ports.MetricSinkErrors, 1)
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				continue
			}
			r.obs.LogError("sink_write_failed", err,
				ports.Field{Key: "sink", Value: g.sink.Name()},
				ports.Field{Key: "snapshots", Value: len(batch)})
			continue
		}
		delivered = true
		r.obs.ObserveLatency(ports.MetricSinkLatency, time.Since(start).Seconds())
	}
	if delivered {
		r.obs.IncCounter(ports.MetricSnapshotsEmitted, float64(len(batch)))
	}
	r.obs.SetGauge(ports.MetricQueueLength, float64(r.queue.Len()))
}
