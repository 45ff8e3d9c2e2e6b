package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/checkpoint"
)

// tracerName is the instrumentation scope name for checkpoint tracing.
const tracerName = "github.com/xraph/checkpoint"

// Tracing returns a wrapper that records an OpenTelemetry span for every
// backend operation. If no TracerProvider is configured globally, the
// default noop tracer is used and this wrapper becomes a pass-through
// with zero overhead.
//
// Span attributes include: checkpoint.collection and, where applicable,
// checkpoint.identity. On error, the span status is set to codes.Error
// with the error message.
func Tracing() Wrapper {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided tracer.
// This variant allows injecting a specific TracerProvider for testing or
// when multiple providers are in use.
func TracingWithTracer(tracer trace.Tracer) Wrapper {
	return func(next checkpoint.Backend) checkpoint.Backend {
		return &tracingBackend{next: next, tracer: tracer}
	}
}

type tracingBackend struct {
	next   checkpoint.Backend
	tracer trace.Tracer
}

func (t *tracingBackend) span(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "checkpoint.backend."+op,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func (t *tracingBackend) EnsureIndex(ctx context.Context, collection string) error {
	ctx, span := t.span(ctx, "ensure_index",
		attribute.String("checkpoint.collection", collection),
	)
	err := t.next.EnsureIndex(ctx, collection)
	finish(span, err)
	return err
}

func (t *tracingBackend) Get(ctx context.Context, collection, identity string) (*checkpoint.Document, error) {
	ctx, span := t.span(ctx, "get",
		attribute.String("checkpoint.collection", collection),
		attribute.String("checkpoint.identity", identity),
	)
	doc, err := t.next.Get(ctx, collection, identity)
	finish(span, err)
	return doc, err
}

func (t *tracingBackend) Search(ctx context.Context, collection string, q checkpoint.Query) ([]*checkpoint.Document, error) {
	ctx, span := t.span(ctx, "search",
		attribute.String("checkpoint.collection", collection),
		attribute.Int("checkpoint.query.terms", len(q.Terms)),
	)
	docs, err := t.next.Search(ctx, collection, q)
	finish(span, err)
	return docs, err
}

func (t *tracingBackend) Save(ctx context.Context, collection, identity string, doc *checkpoint.Document) error {
	ctx, span := t.span(ctx, "save",
		attribute.String("checkpoint.collection", collection),
		attribute.String("checkpoint.identity", identity),
	)
	err := t.next.Save(ctx, collection, identity, doc)
	finish(span, err)
	return err
}

func (t *tracingBackend) Ping(ctx context.Context) error {
	ctx, span := t.span(ctx, "ping")
	err := t.next.Ping(ctx)
	finish(span, err)
	return err
}

func (t *tracingBackend) Close() error {
	return t.next.Close()
}
