package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/checkpoint"
)

// meterName is the instrumentation scope name for checkpoint metrics.
const meterName = "github.com/xraph/checkpoint"

// Metrics returns a wrapper that records per-operation backend metrics
// using the global OTel MeterProvider. If no MeterProvider is
// configured, noop instruments are used and this wrapper becomes a
// pass-through.
//
// Instruments:
//   - checkpoint.backend.duration (Float64Histogram): operation time in
//     seconds, with attributes: op, collection, status ("ok" or "error")
//   - checkpoint.backend.operations (Int64Counter): total operations,
//     with attributes: op, collection, status ("ok" or "error")
func Metrics() Wrapper {
	meter := otel.Meter(meterName)
	return MetricsWithMeter(meter)
}

// MetricsWithMeter returns metrics middleware using the provided meter.
// This variant allows injecting a specific MeterProvider for testing.
func MetricsWithMeter(meter metric.Meter) Wrapper {
	// Create instruments once at wrapper construction time. OTel
	// instruments are safe for concurrent use. On error, the API
	// returns noop instruments so the wrapper degrades gracefully.
	duration, dErr := meter.Float64Histogram(
		"checkpoint.backend.duration",
		metric.WithDescription("Duration of backend operations in seconds"),
		metric.WithUnit("s"),
	)
	_ = dErr // noop fallback guaranteed by OTel API contract

	operations, oErr := meter.Int64Counter(
		"checkpoint.backend.operations",
		metric.WithDescription("Total number of backend operations"),
		metric.WithUnit("{operation}"),
	)
	_ = oErr // noop fallback guaranteed by OTel API contract

	return func(next checkpoint.Backend) checkpoint.Backend {
		return &metricsBackend{next: next, duration: duration, operations: operations}
	}
}

type metricsBackend struct {
	next       checkpoint.Backend
	duration   metric.Float64Histogram
	operations metric.Int64Counter
}

func (m *metricsBackend) record(ctx context.Context, op, collection string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("collection", collection),
		attribute.String("status", status),
	)
	m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
	m.operations.Add(ctx, 1, attrs)
}

func (m *metricsBackend) EnsureIndex(ctx context.Context, collection string) error {
	start := time.Now()
	err := m.next.EnsureIndex(ctx, collection)
	m.record(ctx, "ensure_index", collection, start, err)
	return err
}

func (m *metricsBackend) Get(ctx context.Context, collection, identity string) (*checkpoint.Document, error) {
	start := time.Now()
	doc, err := m.next.Get(ctx, collection, identity)
	m.record(ctx, "get", collection, start, err)
	return doc, err
}

func (m *metricsBackend) Search(ctx context.Context, collection string, q checkpoint.Query) ([]*checkpoint.Document, error) {
	start := time.Now()
	docs, err := m.next.Search(ctx, collection, q)
	m.record(ctx, "search", collection, start, err)
	return docs, err
}

func (m *metricsBackend) Save(ctx context.Context, collection, identity string, doc *checkpoint.Document) error {
	start := time.Now()
	err := m.next.Save(ctx, collection, identity, doc)
	m.record(ctx, "save", collection, start, err)
	return err
}

func (m *metricsBackend) Ping(ctx context.Context) error {
	start := time.Now()
	err := m.next.Ping(ctx)
	m.record(ctx, "ping", "", start, err)
	return err
}

func (m *metricsBackend) Close() error {
	return m.next.Close()
}
