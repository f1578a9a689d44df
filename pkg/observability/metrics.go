package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/LetzteFee/1brc/pkg/ingest"
)

const (
	metricRunsTotal      = "brc.ingest.runs.total"
	metricRunDuration    = "brc.ingest.run.duration.seconds"
	metricBytesTotal     = "brc.ingest.bytes.total"
	metricRecordsTotal   = "brc.ingest.records.total"
	metricChunksTotal    = "brc.ingest.chunks.total"
	metricWindowGrows    = "brc.ingest.window.grows.total"
	metricBuffersReused  = "brc.ingest.buffers.reused.total"
	metricStationsLatest = "brc.ingest.names"

	attrStatus = "status"

	statusOK    = "ok"
	statusError = "error"
)

// durationBucketBoundaries covers 10ms to 10 minutes: small test files up to
// multi-gigabyte inputs on a slow disk.
var durationBucketBoundaries = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600}

// IngestMetrics records ingestion runs as OTel instruments.
// It implements ingest.Recorder.
type IngestMetrics struct {
	runsTotal     metric.Int64Counter
	runDuration   metric.Float64Histogram
	bytesTotal    metric.Int64Counter
	recordsTotal  metric.Int64Counter
	chunksTotal   metric.Int64Counter
	windowGrows   metric.Int64Counter
	buffersReused metric.Int64Counter
	names         metric.Int64Gauge
}

var _ ingest.Recorder = (*IngestMetrics)(nil)

// NewIngestMetrics creates the ingestion instruments from mt.
func NewIngestMetrics(mt metric.Meter) (*IngestMetrics, error) {
	var (
		im  IngestMetrics
		err error
	)

	im.runsTotal, err = mt.Int64Counter(metricRunsTotal,
		metric.WithDescription("Completed ingestion runs by status"),
		metric.WithUnit("{run}"))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRunsTotal, err)
	}

	im.runDuration, err = mt.Float64Histogram(metricRunDuration,
		metric.WithDescription("Ingestion run duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRunDuration, err)
	}

	im.bytesTotal, err = mt.Int64Counter(metricBytesTotal,
		metric.WithDescription("Bytes handed out as chunks"),
		metric.WithUnit("By"))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricBytesTotal, err)
	}

	im.recordsTotal, err = mt.Int64Counter(metricRecordsTotal,
		metric.WithDescription("Records folded into tables"),
		metric.WithUnit("{record}"))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRecordsTotal, err)
	}

	im.chunksTotal, err = mt.Int64Counter(metricChunksTotal,
		metric.WithDescription("Line-aligned chunks served"),
		metric.WithUnit("{chunk}"))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricChunksTotal, err)
	}

	im.windowGrows, err = mt.Int64Counter(metricWindowGrows,
		metric.WithDescription("Read window doublings caused by overlong lines"),
		metric.WithUnit("{grow}"))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricWindowGrows, err)
	}

	im.buffersReused, err = mt.Int64Counter(metricBuffersReused,
		metric.WithDescription("Chunk buffers served from the recycler"),
		metric.WithUnit("{buffer}"))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricBuffersReused, err)
	}

	im.names, err = mt.Int64Gauge(metricStationsLatest,
		metric.WithDescription("Distinct names in the last successful run"),
		metric.WithUnit("{name}"))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricStationsLatest, err)
	}

	return &im, nil
}

// RecordRun implements ingest.Recorder.
func (im *IngestMetrics) RecordRun(ctx context.Context, stats ingest.Stats, err error) {
	status := statusOK
	if err != nil {
		status = statusError
	}

	attrs := metric.WithAttributes(attribute.String(attrStatus, status))

	im.runsTotal.Add(ctx, 1, attrs)
	im.runDuration.Record(ctx, stats.Duration.Seconds(), attrs)
	im.bytesTotal.Add(ctx, stats.Bytes)
	im.recordsTotal.Add(ctx, stats.Records)
	im.chunksTotal.Add(ctx, int64(stats.Chunks))
	im.windowGrows.Add(ctx, int64(stats.Grows))
	im.buffersReused.Add(ctx, stats.BuffersReused)

	if err == nil {
		im.names.Record(ctx, int64(stats.Names))
	}
}
