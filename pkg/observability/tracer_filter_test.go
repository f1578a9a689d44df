package observability_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/LetzteFee/1brc/pkg/ingest"
	"github.com/LetzteFee/1brc/pkg/observability"
)

func newTestProvider() (*tracetest.InMemoryExporter, trace.TracerProvider) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	return exporter, tp
}

func TestFilteringProvider_DropsWorkerSpans(t *testing.T) {
	t.Parallel()

	exporter, base := newTestProvider()
	tracer := observability.NewFilteringTracerProvider(base).Tracer("brc")

	ctx, run := tracer.Start(context.Background(), ingest.SpanProcess)

	workerCtx, worker := tracer.Start(ctx, ingest.SpanWorker)
	assert.Equal(t, trace.SpanContextFromContext(ctx).TraceID(), trace.SpanContextFromContext(workerCtx).TraceID(),
		"suppressed spans keep the run's trace")

	worker.End()
	run.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, ingest.SpanProcess, spans[0].Name)
}

func TestFilteringProvider_CoordinatorRun(t *testing.T) {
	t.Parallel()

	exporter, base := newTestProvider()
	coord := ingest.NewCoordinator(
		ingest.Config{Workers: 3, BlockSize: 16},
		ingest.WithTracer(observability.NewFilteringTracerProvider(base).Tracer("brc")),
	)

	_, _, err := coord.Process(context.Background(), bytesReader("a;1.0\nb;2.0\nc;3.0\nd;4.0\n"))
	require.NoError(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, ingest.SpanProcess, spans[0].Name)
}

func TestUnfilteredProvider_KeepsWorkerSpans(t *testing.T) {
	t.Parallel()

	exporter, base := newTestProvider()
	coord := ingest.NewCoordinator(ingest.Config{Workers: 3, BlockSize: 16}, ingest.WithTracer(base.Tracer("brc")))

	_, _, err := coord.Process(context.Background(), bytesReader("a;1.0\nb;2.0\n"))
	require.NoError(t, err)

	var workers int

	for _, span := range exporter.GetSpans() {
		if span.Name == ingest.SpanWorker {
			workers++
		}
	}

	assert.Equal(t, 3, workers)
}
