package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/LetzteFee/1brc/pkg/chunk"
	"github.com/LetzteFee/1brc/pkg/station"
)

// defaultTableSizeHint pre-sizes worker tables; the classic data set has ~10k names.
const defaultTableSizeHint = 10_000

// Distributor hands out line-aligned chunks to workers.
// Next returns io.EOF once the stream is exhausted; concurrent calls are serialized.
type Distributor interface {
	Next() (chunk.Chunk, error)
	Release(ch chunk.Chunk)
}

// WorkerStats describes the work done by one worker.
type WorkerStats struct {
	Chunks  int
	Records int64
	Bytes   int64
	Busy    time.Duration
}

// Worker drains a Distributor into a private table.
type Worker struct {
	dist   Distributor
	logger *slog.Logger
	stats  WorkerStats
	id     int
}

// NewWorker creates a worker pulling from dist. A nil logger discards output.
func NewWorker(id int, dist Distributor, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Worker{
		dist:   dist,
		logger: logger.With("worker", id),
		id:     id,
	}
}

// Run pulls chunks until the distributor is exhausted and returns the
// worker's table. The table is returned only on full success: any error
// yields a nil table so an incomplete result can never be merged.
// Cancellation is checked between chunks, never while holding one.
func (w *Worker) Run(ctx context.Context) (station.Table, error) {
	table := station.NewTable(defaultTableSizeHint)

	for {
		err := ctx.Err()
		if err != nil {
			return nil, fmt.Errorf("worker %d: %w", w.id, err)
		}

		ch, err := w.dist.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("worker %d: %w", w.id, err)
		}

		start := time.Now()
		records, err := ParseChunk(ch.Data, table)
		size := len(ch.Data)
		w.dist.Release(ch)

		if err != nil {
			return nil, fmt.Errorf("worker %d: chunk %d: %w", w.id, ch.Seq, err)
		}

		w.stats.Chunks++
		w.stats.Records += int64(records)
		w.stats.Bytes += int64(size)
		w.stats.Busy += time.Since(start)
	}

	w.logger.DebugContext(ctx, "worker drained",
		"chunks", w.stats.Chunks,
		"records", w.stats.Records,
		"names", len(table),
		"busy", w.stats.Busy)

	return table, nil
}

// Stats returns the worker's counters. Valid after Run returns.
func (w *Worker) Stats() WorkerStats {
	return w.stats
}
