package ports

// Metric names understood by Observability implementations.
const (
	MetricRecordsWritten    = "tailflow_records_written_total"
	MetricBytesWritten      = "tailflow_bytes_written_total"
	MetricWriteErrors       = "tailflow_write_errors_total"
	MetricLinesTailed       = "tailflow_lines_tailed_total"
	MetricRecordsIngested   = "tailflow_records_ingested_total"
	MetricTruncations       = "tailflow_truncations_total"
	MetricReopens           = "tailflow_reopens_total"
	MetricSnapshotsEmitted  = "tailflow_snapshots_emitted_total"
	MetricSnapshotsDropped  = "tailflow_snapshots_dropped_total"
	MetricSinkErrors        = "tailflow_sink_errors_total"
	MetricWindowRecords     = "tailflow_window_records"
	MetricReaderCursorBytes = "tailflow_reader_cursor_bytes"
	MetricQueueLength       = "tailflow_queue_length"
	MetricSinkLatency       = "tailflow_sink_latency_seconds"
	MetricLinesRejected     = "tailflow_lines_rejected_total"
)
