// Package ingest runs the parallel chunked ingestion: a fixed pool of workers
// pulls line-aligned chunks from a shared distributor, folds records into
// private tables, and an aggregator merges those tables as workers finish.
package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/LetzteFee/1brc/pkg/chunk"
	"github.com/LetzteFee/1brc/pkg/safeconv"
	"github.com/LetzteFee/1brc/pkg/station"
)

// fallbackWorkers is used when hardware parallelism cannot be determined.
const fallbackWorkers = 8

const tracerName = "github.com/LetzteFee/1brc/pkg/ingest"

// Span names. SpanWorker is emitted once per worker and run.
const (
	SpanProcess = "ingest.Process"
	SpanWorker  = "ingest.worker"
)

// Config configures a Coordinator.
type Config struct {
	// Workers is the size of the worker pool. Zero uses DefaultWorkers.
	Workers int

	// BlockSize is the base chunk read size in bytes.
	BlockSize int

	// MaxWindow caps the read window while a line boundary is searched.
	MaxWindow int

	// TailGrowth enlarges late chunks once every worker has had one.
	TailGrowth float64

	// Recycle enables chunk buffer reuse.
	Recycle bool
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Workers:    DefaultWorkers(),
		BlockSize:  chunk.DefaultBlockSize,
		MaxWindow:  chunk.DefaultMaxWindow,
		TailGrowth: chunk.DefaultTailGrowth,
		Recycle:    true,
	}
}

// DefaultWorkers returns the detected hardware parallelism, or 8 if unknown.
func DefaultWorkers() int {
	n := runtime.NumCPU()
	if n < 1 {
		return fallbackWorkers
	}

	return n
}

// Stats summarizes one run.
type Stats struct {
	Duration         time.Duration
	Bytes            int64
	Records          int64
	BuffersReused    int64
	BuffersAllocated int64
	Workers          int
	Chunks           int
	Grows            int
	Names            int
	Partials         int
}

// Recorder receives the outcome of every run (e.g. a metrics sink).
type Recorder interface {
	RecordRun(ctx context.Context, stats Stats, err error)
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger. The default discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithTracer sets the tracer. The default is the global OTel tracer provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Coordinator) {
		c.tracer = tracer
	}
}

// WithRecorder registers a run recorder.
func WithRecorder(recorder Recorder) Option {
	return func(c *Coordinator) {
		c.recorder = recorder
	}
}

// Coordinator owns the worker pool for one or more runs.
type Coordinator struct {
	logger   *slog.Logger
	tracer   trace.Tracer
	recorder Recorder
	cfg      Config
}

// NewCoordinator creates a coordinator. Non-positive workers fall back to DefaultWorkers.
func NewCoordinator(cfg Config, opts ...Option) *Coordinator {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers()
	}

	c := &Coordinator{cfg: cfg}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}

	if c.tracer == nil {
		c.tracer = otel.Tracer(tracerName)
	}

	return c
}

// Workers returns the pool size.
func (c *Coordinator) Workers() int {
	return c.cfg.Workers
}

// Process aggregates every record of src. The result is complete or absent:
// any worker failure aborts the run and no table is returned.
func (c *Coordinator) Process(ctx context.Context, src io.Reader) (station.Table, Stats, error) {
	ctx, span := c.tracer.Start(ctx, SpanProcess,
		trace.WithAttributes(attribute.Int("ingest.workers", c.cfg.Workers)))
	defer span.End()

	var recycler *chunk.Recycler
	if c.cfg.Recycle {
		recycler = chunk.NewRecycler(c.cfg.Workers + 1)
	}

	cursor := chunk.NewCursor(src, chunk.Options{
		Recycler:   recycler,
		Logger:     c.logger,
		BlockSize:  c.cfg.BlockSize,
		MaxWindow:  c.cfg.MaxWindow,
		Workers:    c.cfg.Workers,
		TailGrowth: c.cfg.TailGrowth,
	})

	start := time.Now()
	table, workers, partials, err := c.run(ctx, cursor)

	cursorStats := cursor.Stats()
	recyclerStats := recycler.Stats()
	stats := Stats{
		Duration:         time.Since(start),
		Bytes:            cursorStats.Bytes,
		Chunks:           cursorStats.Chunks,
		Grows:            cursorStats.Grows,
		BuffersReused:    recyclerStats.Reused,
		BuffersAllocated: recyclerStats.Allocated,
		Workers:          c.cfg.Workers,
		Names:            len(table),
		Partials:         partials,
	}

	for _, ws := range workers {
		stats.Records += ws.Records
	}

	span.SetAttributes(
		attribute.Int64("ingest.bytes", stats.Bytes),
		attribute.Int("ingest.chunks", stats.Chunks),
		attribute.Int64("ingest.records", stats.Records),
	)

	if c.recorder != nil {
		c.recorder.RecordRun(ctx, stats, err)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.ErrorContext(ctx, "ingestion failed", "error", err, "bytes", humanize.Bytes(safeconv.NonNegative(stats.Bytes)))

		return nil, stats, err
	}

	c.logger.InfoContext(ctx, "ingestion complete",
		"bytes", humanize.Bytes(safeconv.NonNegative(stats.Bytes)),
		"chunks", stats.Chunks,
		"records", stats.Records,
		"names", stats.Names,
		"workers", stats.Workers,
		"duration", stats.Duration)

	return table, stats, nil
}

// run drains dist with the worker pool and merges the partial tables as
// workers finish. Any worker error cancels the others and yields no table.
func (c *Coordinator) run(ctx context.Context, dist Distributor) (station.Table, []WorkerStats, int, error) {
	group, groupCtx := errgroup.WithContext(ctx)

	// Buffered so a finishing worker never waits on the merge loop.
	partials := make(chan station.Table, c.cfg.Workers)
	workers := make([]*Worker, c.cfg.Workers)

	for i := range workers {
		workers[i] = NewWorker(i, dist, c.logger)

		group.Go(func() error {
			workerCtx, span := c.tracer.Start(groupCtx, SpanWorker,
				trace.WithAttributes(attribute.Int("ingest.worker", i)))
			defer span.End()

			table, err := workers[i].Run(workerCtx)
			if err != nil {
				span.SetStatus(codes.Error, err.Error())

				return err
			}

			span.SetAttributes(attribute.Int("ingest.chunks", workers[i].Stats().Chunks))

			partials <- table

			return nil
		})
	}

	var waitErr error

	go func() {
		waitErr = group.Wait()
		close(partials)
	}()

	agg := NewAggregator()
	for partial := range partials {
		agg.MergeIn(partial)
	}

	// partials is closed only after Wait returned, so waitErr is visible here.
	if waitErr != nil {
		return nil, nil, agg.Partials(), fmt.Errorf("ingest: %w", waitErr)
	}

	stats := make([]WorkerStats, len(workers))
	for i, w := range workers {
		stats[i] = w.Stats()
	}

	return agg.Result(), stats, agg.Partials(), nil
}
