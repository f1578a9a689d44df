package observability_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/LetzteFee/1brc/pkg/ingest"
	"github.com/LetzteFee/1brc/pkg/observability"
)

func sampleStats() ingest.Stats {
	return ingest.Stats{
		Duration:      1500 * time.Millisecond,
		Bytes:         4096,
		Records:       300,
		Chunks:        4,
		Grows:         1,
		BuffersReused: 2,
		Names:         12,
		Workers:       4,
		Partials:      4,
	}
}

func setupTestMeter(t *testing.T) (*observability.IngestMetrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	im, err := observability.NewIngestMetrics(mp.Meter("test"))
	require.NoError(t, err)

	return im, reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for idx := range rm.ScopeMetrics {
		for midx := range rm.ScopeMetrics[idx].Metrics {
			if rm.ScopeMetrics[idx].Metrics[midx].Name == name {
				return &rm.ScopeMetrics[idx].Metrics[midx]
			}
		}
	}

	return nil
}

func sumValue(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()

	m := findMetric(rm, name)
	require.NotNil(t, m, "%s not found", name)

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "%s is not an int64 sum", name)

	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}

	return total
}

func TestIngestMetrics_RecordRun(t *testing.T) {
	t.Parallel()

	im, reader := setupTestMeter(t)

	im.RecordRun(context.Background(), sampleStats(), nil)

	rm := collectMetrics(t, reader)

	assert.Equal(t, int64(1), sumValue(t, rm, "brc.ingest.runs.total"))
	assert.Equal(t, int64(4096), sumValue(t, rm, "brc.ingest.bytes.total"))
	assert.Equal(t, int64(300), sumValue(t, rm, "brc.ingest.records.total"))
	assert.Equal(t, int64(4), sumValue(t, rm, "brc.ingest.chunks.total"))
	assert.Equal(t, int64(1), sumValue(t, rm, "brc.ingest.window.grows.total"))
	assert.Equal(t, int64(2), sumValue(t, rm, "brc.ingest.buffers.reused.total"))

	require.NotNil(t, findMetric(rm, "brc.ingest.run.duration.seconds"))

	names := findMetric(rm, "brc.ingest.names")
	require.NotNil(t, names)

	gauge, ok := names.Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, int64(12), gauge.DataPoints[0].Value)
}

func TestIngestMetrics_FailedRunSkipsNames(t *testing.T) {
	t.Parallel()

	im, reader := setupTestMeter(t)

	im.RecordRun(context.Background(), ingest.Stats{Bytes: 10}, errors.New("malformed"))

	rm := collectMetrics(t, reader)

	runs := findMetric(rm, "brc.ingest.runs.total")
	require.NotNil(t, runs)

	sum, ok := runs.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)

	status, found := sum.DataPoints[0].Attributes.Value("status")
	require.True(t, found)
	assert.Equal(t, "error", status.AsString())

	assert.Nil(t, findMetric(rm, "brc.ingest.names"))
}

func TestIngestMetrics_WithNoopMeter(t *testing.T) {
	t.Parallel()

	providers, err := observability.Init(observability.DefaultConfig())
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, providers.Shutdown(context.Background())) })

	im, err := observability.NewIngestMetrics(providers.Meter)
	require.NoError(t, err)
	assert.NotNil(t, im)

	im.RecordRun(context.Background(), sampleStats(), nil)
}
