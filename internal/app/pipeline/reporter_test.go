package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ghalamif/TailFlow/internal/adapters/queue"
	"github.com/ghalamif/TailFlow/internal/domain"
	"github.com/ghalamif/TailFlow/internal/ports"
)

func TestReporterDeliversToEverySink(t *testing.T) {
	q := queue.NewMemQueue(10)
	a := &recordingSink{name: "a"}
	b := &recordingSink{name: "b"}
	obs := newMockObs()
	rep := NewReporterService(q, []ports.SnapshotSink{a, b}, testPolicy, DefaultBreakerSettings(), obs)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rep.Serve(ctx) }()

	q.Enqueue(domain.Snapshot{Source: "one"})
	q.Enqueue(domain.Snapshot{Source: "two"})

	waitFor(t, "delivery", func() bool { return len(a.snapshots()) == 2 && len(b.snapshots()) == 2 })
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if got := a.snapshots()[1].Source; got != "two" {
		t.Fatalf("expected FIFO order, got %s last", got)
	}
	if obs.counter(ports.MetricSnapshotsEmitted) != 2 {
		t.Fatalf("expected 2 emitted snapshots, got %v", obs.counter(ports.MetricSnapshotsEmitted))
	}
}

func TestReporterBreakerStopsCallingFailingSink(t *testing.T) {
	q := queue.NewMemQueue(10)
	bad := &recordingSink{name: "bad", fail: errors.New("db down")}
	good := &recordingSink{name: "good"}
	obs := newMockObs()
	rep := NewReporterService(q, []ports.SnapshotSink{bad, good},
		ports.Policy{MaxBatchSize: 1, IdleSleep: time.Millisecond},
		BreakerSettings{ConsecutiveFailures: 2, OpenTimeout: time.Hour}, obs)

	for i := 0; i < 5; i++ {
		q.Enqueue(domain.Snapshot{})
	}
	if n := rep.Drain(); n != 5 {
		t.Fatalf("expected to drain 5, got %d", n)
	}

	if bad.calls != 2 {
		t.Fatalf("expected breaker to open after 2 calls, got %d", bad.calls)
	}
	if len(good.snapshots()) != 5 {
		t.Fatalf("healthy sink must keep receiving, got %d", len(good.snapshots()))
	}
	if obs.counter(ports.MetricSinkErrors) != 5 {
		t.Fatalf("expected 5 sink errors, got %v", obs.counter(ports.MetricSinkErrors))
	}
	obs.mu.Lock()
	defer obs.mu.Unlock()
	var sawOpen bool
	for _, w := range obs.warns {
		if strings.HasPrefix(w, "sink_breaker_state") {
			sawOpen = true
		}
	}
	if !sawOpen {
		t.Fatalf("expected breaker state change to be logged")
	}
}

func TestReporterDrainEmptyQueue(t *testing.T) {
	rep := NewReporterService(queue.NewMemQueue(1), nil, testPolicy, DefaultBreakerSettings(), newMockObs())
	if n := rep.Drain(); n != 0 {
		t.Fatalf("expected nothing drained, got %d", n)
	}
}
