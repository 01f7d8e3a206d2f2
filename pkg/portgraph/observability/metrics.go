package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records node metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordNodeRun records one node run with its duration and outcome.
	RecordNodeRun(ctx context.Context, path, mode string, duration time.Duration, err error)

	// RecordPull records how many upstream nodes a pull resolved.
	RecordPull(ctx context.Context, path string, resolved int)

	// RecordSnapshot records a saved snapshot.
	RecordSnapshot(ctx context.Context, path string, sizeBytes int64)
}

type otelMetrics struct {
	nodeRuns      metric.Int64Counter
	nodeErrors    metric.Int64Counter
	nodeLatency   metric.Float64Histogram
	pullResolved  metric.Int64Counter
	snapshotBytes metric.Int64Histogram
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("portgraph")

	nodeRuns, err := meter.Int64Counter("portgraph.node.runs",
		metric.WithDescription("Number of node runs"),
	)
	if err != nil {
		return nil, err
	}

	nodeErrors, err := meter.Int64Counter("portgraph.node.errors",
		metric.WithDescription("Number of failed node runs"),
	)
	if err != nil {
		return nil, err
	}

	nodeLatency, err := meter.Float64Histogram("portgraph.node.latency_ms",
		metric.WithDescription("Node run latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	pullResolved, err := meter.Int64Counter("portgraph.pull.resolved",
		metric.WithDescription("Upstream nodes resolved by pulls"),
	)
	if err != nil {
		return nil, err
	}

	snapshotBytes, err := meter.Int64Histogram("portgraph.snapshot.size_bytes",
		metric.WithDescription("Saved snapshot size in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		nodeRuns:      nodeRuns,
		nodeErrors:    nodeErrors,
		nodeLatency:   nodeLatency,
		pullResolved:  pullResolved,
		snapshotBytes: snapshotBytes,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder backed by the global OTel
// meter provider, or a no-op recorder if the instruments cannot be created.
// Configure the provider first:
//
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

func (m *otelMetrics) RecordNodeRun(ctx context.Context, path, mode string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("node", path),
		attribute.String("mode", mode),
	)
	m.nodeRuns.Add(ctx, 1, attrs)
	m.nodeLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
	if err != nil {
		m.nodeErrors.Add(ctx, 1, attrs)
	}
}

func (m *otelMetrics) RecordPull(ctx context.Context, path string, resolved int) {
	m.pullResolved.Add(ctx, int64(resolved), metric.WithAttributes(attribute.String("node", path)))
}

func (m *otelMetrics) RecordSnapshot(ctx context.Context, path string, sizeBytes int64) {
	m.snapshotBytes.Record(ctx, sizeBytes, metric.WithAttributes(attribute.String("node", path)))
}
