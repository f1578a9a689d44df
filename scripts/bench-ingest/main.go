// bench-ingest measures throughput and heap use of the ingestion engine
// across repeated runs over one input file.
//
// Usage:
//
//	go run ./scripts/bench-ingest --rows 50000000 --workers 8 --runs 3 \
//	  --profile-dir docs/profiles/ingest
//
// Without --input a synthetic measurements file is generated into a
// temporary directory and removed afterwards.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/LetzteFee/1brc/pkg/config"
	"github.com/LetzteFee/1brc/pkg/ingest"
	"github.com/LetzteFee/1brc/pkg/safeconv"
	"github.com/LetzteFee/1brc/pkg/source"
)

const (
	// valueRange bounds generated values to [-99.9, 99.9] in tenths.
	valueRange = 999
	writeBuf   = 1 << 20
)

type options struct {
	input      string
	chunkSize  string
	profileDir string
	seed       uint64
	rows       int
	names      int
	workers    int
	runs       int
	noRecycle  bool
	cpuProfile bool
}

func main() {
	var opts options

	flag.StringVar(&opts.input, "input", "", "Input file (default: generate one)")
	flag.IntVar(&opts.rows, "rows", 10_000_000, "Rows to generate when --input is empty")
	flag.IntVar(&opts.names, "names", 413, "Distinct names to generate")
	flag.Uint64Var(&opts.seed, "seed", 1, "Generator seed")
	flag.IntVar(&opts.workers, "workers", 0, "Worker count (0 = CPU count)")
	flag.StringVar(&opts.chunkSize, "chunk-size", config.DefaultChunkSize, "Base chunk read size")
	flag.IntVar(&opts.runs, "runs", 3, "Number of timed runs")
	flag.BoolVar(&opts.noRecycle, "no-recycle", false, "Disable buffer recycling")
	flag.StringVar(&opts.profileDir, "profile-dir", "", "Directory to write heap and CPU profiles")
	flag.BoolVar(&opts.cpuProfile, "cpu-profile", false, "Write CPU profile to profile-dir/cpu.prof")

	flag.Parse()

	if err := run(opts); err != nil {
		log.Fatal(err)
	}
}

// run returns instead of exiting so that deferred cleanup (temporary input,
// CPU profile) always happens.
func run(opts options) error {
	blockSize, err := config.ParseSize(opts.chunkSize)
	if err != nil {
		return fmt.Errorf("chunk-size: %w", err)
	}

	if opts.cpuProfile && opts.profileDir == "" {
		return errors.New("--cpu-profile requires --profile-dir")
	}

	path := opts.input
	if path == "" {
		dir, dirErr := os.MkdirTemp("", "bench-ingest-*")
		if dirErr != nil {
			return fmt.Errorf("mkdir temp: %w", dirErr)
		}
		defer os.RemoveAll(dir)

		path = filepath.Join(dir, "measurements.txt")

		start := time.Now()
		if genErr := generate(path, opts.rows, opts.names, opts.seed); genErr != nil {
			return fmt.Errorf("generate: %w", genErr)
		}

		log.Printf("generated %s rows in %s", humanize.Comma(int64(opts.rows)), time.Since(start).Round(time.Millisecond))
	}

	if opts.profileDir != "" {
		if mkErr := os.MkdirAll(opts.profileDir, 0o755); mkErr != nil {
			return fmt.Errorf("mkdir profile-dir: %w", mkErr)
		}
	}

	if opts.cpuProfile {
		cpuPath := filepath.Join(opts.profileDir, "cpu.prof")

		cpuFile, cpuErr := os.Create(cpuPath)
		if cpuErr != nil {
			return fmt.Errorf("create cpu profile: %w", cpuErr)
		}
		defer cpuFile.Close()

		if startErr := pprof.StartCPUProfile(cpuFile); startErr != nil {
			return fmt.Errorf("start cpu profile: %w", startErr)
		}
		defer pprof.StopCPUProfile()

		log.Printf("CPU profiling enabled -> %s", cpuPath)
	}

	cfg := ingest.DefaultConfig()
	cfg.BlockSize = blockSize
	cfg.Recycle = !opts.noRecycle

	if opts.workers > 0 {
		cfg.Workers = opts.workers
	}

	coord := ingest.NewCoordinator(cfg)

	out := table.NewWriter()
	out.SetOutputMirror(os.Stdout)
	out.SetStyle(table.StyleLight)
	out.AppendHeader(table.Row{"Run", "Duration", "Throughput", "Chunks", "Reused", "Allocated", "Grows", "Heap in use"})

	for i := 1; i <= opts.runs; i++ {
		stats, runErr := runOnce(coord, path)
		if runErr != nil {
			return fmt.Errorf("run %d: %w", i, runErr)
		}

		inUse := heapInUse()
		writeHeapProfile(opts.profileDir, fmt.Sprintf("heap_run_%d.prof", i))

		out.AppendRow(table.Row{
			i,
			stats.Duration.Round(time.Millisecond),
			throughput(stats),
			stats.Chunks,
			stats.BuffersReused,
			stats.BuffersAllocated,
			stats.Grows,
			humanize.Bytes(inUse),
		})
	}

	fmt.Println()
	fmt.Printf("=== %s, %d workers, %s blocks ===\n", path, coord.Workers(), humanize.Bytes(safeconv.NonNegative(int64(blockSize))))
	out.Render()

	return nil
}

func runOnce(coord *ingest.Coordinator, path string) (ingest.Stats, error) {
	src, err := source.Open(path)
	if err != nil {
		return ingest.Stats{}, err
	}
	defer src.Close()

	_, stats, err := coord.Process(context.Background(), src)

	return stats, err
}

// generate writes rows records over a fixed pool of names.
func generate(path string, rows, names int, seed uint64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := bufio.NewWriterSize(f, writeBuf)
	rng := rand.New(rand.NewPCG(seed, seed))

	pool := make([]string, names)
	for i := range pool {
		pool[i] = fmt.Sprintf("station-%04d", i)
	}

	line := make([]byte, 0, 64)

	for range rows {
		tenths := rng.IntN(2*valueRange+1) - valueRange

		line = append(line[:0], pool[rng.IntN(names)]...)
		line = append(line, ';')
		line = appendTenths(line, tenths)
		line = append(line, '\n')

		if _, err = w.Write(line); err != nil {
			f.Close()

			return err
		}
	}

	if err = w.Flush(); err != nil {
		f.Close()

		return err
	}

	return f.Close()
}

func appendTenths(dst []byte, tenths int) []byte {
	if tenths < 0 {
		dst = append(dst, '-')
		tenths = -tenths
	}

	dst = strconv.AppendInt(dst, int64(tenths/10), 10)
	dst = append(dst, '.')

	return strconv.AppendInt(dst, int64(tenths%10), 10)
}

func throughput(stats ingest.Stats) string {
	secs := stats.Duration.Seconds()
	if secs <= 0 {
		return "-"
	}

	return humanize.Bytes(uint64(float64(safeconv.NonNegative(stats.Bytes))/secs)) + "/s"
}

func heapInUse() uint64 {
	runtime.GC()
	runtime.GC()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return m.HeapInuse
}

func writeHeapProfile(dir, name string) {
	if dir == "" {
		return
	}

	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		log.Printf("warning: create heap profile %s: %v", path, err)

		return
	}
	defer f.Close()

	if err = pprof.WriteHeapProfile(f); err != nil {
		log.Printf("warning: write heap profile %s: %v", path, err)
	}
}
