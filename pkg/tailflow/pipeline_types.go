package tailflow

import (
	"github.com/ghalamif/TailFlow/internal/app/pipeline"
	"github.com/ghalamif/TailFlow/internal/domain"
	"github.com/ghalamif/TailFlow/internal/ports"
)

// Record is one timestamped reading, one line of the data file.
type Record = domain.Record

// Snapshot carries the 1h/6h/12h rolling averages at a point in time.
type Snapshot = domain.Snapshot

// WindowAverage is one mean of a Snapshot; OK is false when the window was empty.
type WindowAverage = domain.WindowAverage

// Source produces readings for the writer (simulators, OPC UA, custom feeds).
type Source = ports.Source

// SnapshotSink receives batches of snapshots from the reporter.
type SnapshotSink = ports.SnapshotSink

// SnapshotQueue buffers snapshots between the consumer and the sinks.
type SnapshotQueue = ports.SnapshotQueue

// Observability emits metrics/logs about throughput, truncations and rejects.
type Observability = ports.Observability

// Field is a structured log/metric field used by Observability implementations.
type Field = ports.Field

// Summary counts what a Runtime processed.
type Summary = pipeline.Summary
