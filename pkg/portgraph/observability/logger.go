// Package observability provides logging helpers, metrics and tracing for
// portgraph nodes.
//
//   - Structured logging via slog
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// Metrics and tracing are opt-in and have no-op implementations.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger returns logger with graph_id and node fields attached.
func EnrichLogger(logger *slog.Logger, graphID, path string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("graph_id", graphID),
		slog.String("node", path),
	)
}

// LogNodeStart logs the start of a node run.
func LogNodeStart(logger *slog.Logger, path, mode string) {
	if logger == nil {
		return
	}
	logger.Debug("node starting",
		slog.String("path", path),
		slog.String("mode", mode),
	)
}

// LogNodeComplete logs a successful node run.
func LogNodeComplete(logger *slog.Logger, path, mode string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("node completed",
		slog.String("path", path),
		slog.String("mode", mode),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogNodeError logs a failed node run.
func LogNodeError(logger *slog.Logger, path string, err error) {
	if logger == nil {
		return
	}
	logger.Error("node failed",
		slog.String("path", path),
		slog.String("error", err.Error()),
	)
}

// LogNotReady logs a refused run together with the readiness report.
func LogNotReady(logger *slog.Logger, path, report string) {
	if logger == nil {
		return
	}
	logger.Warn("node not ready",
		slog.String("path", path),
		slog.String("report", report),
	)
}

// LogSignal logs a control signal crossing a connection.
func LogSignal(logger *slog.Logger, from, label, to string) {
	if logger == nil {
		return
	}
	logger.Debug("signal fired",
		slog.String("from", from),
		slog.String("signal", label),
		slog.String("to", to),
	)
}

// LogSnapshot logs a saved snapshot.
func LogSnapshot(logger *slog.Logger, path string, sizeBytes int) {
	if logger == nil {
		return
	}
	logger.Debug("snapshot saved",
		slog.String("path", path),
		slog.Int("size_bytes", sizeBytes),
	)
}

// LogSnapshotError logs a snapshot failure. Snapshot failures do not fail runs.
func LogSnapshotError(logger *slog.Logger, path, op string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("snapshot failed",
		slog.String("path", path),
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

// TimedOperation returns a function reporting milliseconds elapsed since the
// call to TimedOperation.
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
