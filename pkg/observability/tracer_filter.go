package observability

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/embedded"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/LetzteFee/1brc/pkg/ingest"
)

// filteringTracerProvider wraps a real TracerProvider and replaces
// per-worker spans with no-op spans, keeping one span per run.
type filteringTracerProvider struct {
	embedded.TracerProvider

	delegate        trace.TracerProvider
	noop            trace.TracerProvider
	suppressedSpans map[string]bool
}

// NewFilteringTracerProvider wraps delegate so that per-worker spans are dropped.
func NewFilteringTracerProvider(delegate trace.TracerProvider) trace.TracerProvider {
	return &filteringTracerProvider{
		delegate: delegate,
		noop:     nooptrace.NewTracerProvider(),
		suppressedSpans: map[string]bool{
			ingest.SpanWorker: true,
		},
	}
}

// Tracer implements trace.TracerProvider.
func (f *filteringTracerProvider) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	return &filteringTracer{
		delegate:   f.delegate.Tracer(name, opts...),
		noop:       f.noop.Tracer(name),
		suppressed: f.suppressedSpans,
	}
}

type filteringTracer struct {
	embedded.Tracer

	delegate   trace.Tracer
	noop       trace.Tracer
	suppressed map[string]bool
}

// Start implements trace.Tracer. A suppressed span still carries the parent's
// span context, so logs inside it keep the run's trace_id.
func (f *filteringTracer) Start(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if f.suppressed[spanName] {
		return f.noop.Start(ctx, spanName, opts...)
	}

	return f.delegate.Start(ctx, spanName, opts...)
}
