package engine

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metric names recorded per top-level operation.
const (
	MetricQueriesTotal    = "qgraph_client_queries_total"
	MetricQueriesActive   = "qgraph_client_queries_active"
	MetricQueriesDuration = "qgraph_client_queries_duration_histogram_ms"
)

// DurationBuckets are the histogram bounds for operation timings, in
// milliseconds.
var DurationBuckets = []float64{0, 1, 5, 10, 50, 100, 500, 1000, 5000, 50000}

type instruments struct {
	total    metric.Int64Counter
	active   metric.Int64UpDownCounter
	duration metric.Float64Histogram
}

// newInstruments registers the engine's instruments on m. An instrument
// the meter rejects is replaced by a no-op one.
func newInstruments(m metric.Meter, logger *slog.Logger) *instruments {
	fallback := noop.Meter{}
	in := &instruments{}
	var err error

	in.total, err = m.Int64Counter(MetricQueriesTotal,
		metric.WithDescription("Total number of operations executed"))
	if err != nil {
		logger.Warn("metric disabled", "metric", MetricQueriesTotal, "error", err)
		in.total, _ = fallback.Int64Counter(MetricQueriesTotal)
	}
	in.active, err = m.Int64UpDownCounter(MetricQueriesActive,
		metric.WithDescription("Number of operations currently executing"))
	if err != nil {
		logger.Warn("metric disabled", "metric", MetricQueriesActive, "error", err)
		in.active, _ = fallback.Int64UpDownCounter(MetricQueriesActive)
	}
	in.duration, err = m.Float64Histogram(MetricQueriesDuration,
		metric.WithDescription("Duration of operations"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(DurationBuckets...))
	if err != nil {
		logger.Warn("metric disabled", "metric", MetricQueriesDuration, "error", err)
		in.duration, _ = fallback.Float64Histogram(MetricQueriesDuration)
	}
	return in
}

// track marks one operation as active. The returned func ends it and
// records its count and duration.
func (in *instruments) track(ctx context.Context, operation string) func(failed bool) {
	start := time.Now()
	in.active.Add(ctx, 1)
	return func(failed bool) {
		in.active.Add(ctx, -1)
		status := "ok"
		if failed {
			status = "error"
		}
		attrs := metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("status", status))
		in.total.Add(ctx, 1, attrs)
		in.duration.Record(ctx, float64(time.Since(start).Microseconds())/1000, attrs)
	}
}
