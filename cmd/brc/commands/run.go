// Package commands implements CLI command handlers for brc.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/LetzteFee/1brc/pkg/config"
	"github.com/LetzteFee/1brc/pkg/ingest"
	"github.com/LetzteFee/1brc/pkg/observability"
	"github.com/LetzteFee/1brc/pkg/report"
	"github.com/LetzteFee/1brc/pkg/safeconv"
	"github.com/LetzteFee/1brc/pkg/source"
	"github.com/LetzteFee/1brc/pkg/version"
)

// envOTLPHeaders is the standard OTel env var for exporter headers.
const envOTLPHeaders = "OTEL_EXPORTER_OTLP_HEADERS"

// shutdownTimeout bounds the metrics server drain on exit.
const shutdownTimeout = 5 * time.Second

type observabilityInit func(cfg observability.Config) (observability.Providers, error)

// RunCommand holds flags and dependencies for the run command.
type RunCommand struct {
	configPath   string
	format       string
	chunkSize    string
	maxWindow    string
	logLevel     string
	metricsAddr  string
	otlpEndpoint string
	workers      int
	logJSON      bool
	silent       bool
	noColor      bool
	noRecycle    bool
	traceVerbose bool

	initFn observabilityInit
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	return newRunCommandWithDeps(observability.Init)
}

func newRunCommandWithDeps(initFn observabilityInit) *cobra.Command {
	rc := &RunCommand{initFn: initFn}

	cmd := &cobra.Command{
		Use:   "run [path]",
		Short: "Aggregate min/mean/max per name from a name;value file",
		Long: `Read a file of "name;value" records and print, per name, the minimum,
mean and maximum value as { name=min/mean/max, ... } sorted by name.

The path defaults to measurements.txt. "-" reads standard input and a
.lz4 suffix is decoded on the fly.`,
		Args: cobra.MaximumNArgs(1),
		RunE: rc.run,
	}

	cmd.Flags().StringVarP(&rc.configPath, "config", "c", "", "Config file (default: brc.yaml in ., ./config, ~/.config/brc)")
	cmd.Flags().StringVarP(&rc.format, "format", "f", config.DefaultOutputFormat, "Output format: text, table, json, yaml")
	cmd.Flags().StringVar(&rc.chunkSize, "chunk-size", config.DefaultChunkSize, "Base chunk read size (e.g. '64MiB', '100MB')")
	cmd.Flags().StringVar(&rc.maxWindow, "max-window", config.DefaultMaxWindow, "Largest read window for a single line")
	cmd.Flags().IntVarP(&rc.workers, "workers", "w", config.DefaultWorkers, "Number of parallel workers (0 = use CPU count)")
	cmd.Flags().BoolVar(&rc.noRecycle, "no-recycle", false, "Allocate a fresh buffer for every chunk")
	cmd.Flags().StringVar(&rc.logLevel, "log-level", config.DefaultLogLevel, "Log level: debug, info, warn, error")
	cmd.Flags().BoolVar(&rc.logJSON, "log-json", false, "Write logs as JSON")
	cmd.Flags().StringVar(&rc.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address during the run")
	cmd.Flags().StringVar(&rc.otlpEndpoint, "otlp-endpoint", "", "OTLP gRPC collector address")
	cmd.Flags().BoolVar(&rc.traceVerbose, "trace-verbose", false, "Export one span per worker")
	cmd.Flags().BoolVar(&rc.silent, "silent", false, "Suppress the status line")
	cmd.Flags().BoolVar(&rc.noColor, "no-color", false, "Disable colored status output")

	return cmd
}

func (rc *RunCommand) run(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(rc.configPath)
	if err != nil {
		return err
	}

	rc.applyFlags(cmd, args, cfg)

	err = cfg.Validate()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	format, err := report.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}

	obsCfg, err := rc.observabilityConfig(cfg)
	if err != nil {
		return err
	}

	providers, err := rc.initFn(obsCfg)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	defer func() {
		if providers.Shutdown == nil {
			return
		}

		shutdownErr := providers.Shutdown(context.Background())
		if shutdownErr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: telemetry shutdown: %v\n", shutdownErr)
		}
	}()

	logger := providers.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if cfg.Telemetry.MetricsAddr != "" && providers.MetricsHandler != nil {
		srv, srvErr := observability.NewMetricsServer(cfg.Telemetry.MetricsAddr, providers.MetricsHandler, logger)
		if srvErr != nil {
			return fmt.Errorf("start metrics server: %w", srvErr)
		}

		logger.Info("serving metrics", "addr", srv.Addr())

		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			closeErr := srv.Close(ctx)
			if closeErr != nil {
				logger.Warn("metrics server shutdown", "error", closeErr)
			}
		}()
	}

	coord, err := rc.coordinator(cfg, providers, logger)
	if err != nil {
		return err
	}

	src, err := source.Open(cfg.Input.Path)
	if err != nil {
		return err
	}

	defer src.Close()

	ctx := observability.WithRunAttrs(cmd.Context(),
		slog.String("input", src.Name),
		slog.String("format", string(format)))

	logger.DebugContext(ctx, "starting run",
		"size", sizeLabel(src.Size),
		"compressed", src.Compressed,
		"workers", coord.Workers(),
		"chunk_size", cfg.Ingest.ChunkSize)

	table, stats, err := coord.Process(ctx, src)
	if err != nil {
		return err
	}

	err = report.Write(cmd.OutOrStdout(), table, format)
	if err != nil {
		return err
	}

	if !rc.silent {
		rc.printStatus(cmd.ErrOrStderr(), stats)
	}

	return nil
}

// applyFlags overrides file and environment values with explicitly set flags.
func (rc *RunCommand) applyFlags(cmd *cobra.Command, args []string, cfg *config.Config) {
	if len(args) == 1 {
		cfg.Input.Path = args[0]
	}

	flags := cmd.Flags()

	if flags.Changed("format") {
		cfg.Output.Format = rc.format
	}

	if flags.Changed("chunk-size") {
		cfg.Ingest.ChunkSize = rc.chunkSize
	}

	if flags.Changed("max-window") {
		cfg.Ingest.MaxWindow = rc.maxWindow
	}

	if flags.Changed("workers") {
		cfg.Ingest.Workers = rc.workers
	}

	if flags.Changed("no-recycle") {
		cfg.Ingest.Recycle = !rc.noRecycle
	}

	if flags.Changed("log-level") {
		cfg.Logging.Level = rc.logLevel
	}

	if flags.Changed("log-json") {
		cfg.Logging.JSON = rc.logJSON
	}

	if flags.Changed("metrics-addr") {
		cfg.Telemetry.MetricsAddr = rc.metricsAddr
	}

	if flags.Changed("otlp-endpoint") {
		cfg.Telemetry.OTLPEndpoint = rc.otlpEndpoint
	}
}

func (rc *RunCommand) observabilityConfig(cfg *config.Config) (observability.Config, error) {
	level, err := observability.ParseLogLevel(cfg.Logging.Level)
	if err != nil {
		return observability.Config{}, err
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Get().Version
	obsCfg.LogLevel = level
	obsCfg.LogJSON = cfg.Logging.JSON
	obsCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	obsCfg.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(os.Getenv(envOTLPHeaders))
	obsCfg.Prometheus = cfg.Telemetry.MetricsAddr != ""
	obsCfg.TraceVerbose = rc.traceVerbose

	return obsCfg, nil
}

func (rc *RunCommand) coordinator(
	cfg *config.Config, providers observability.Providers, logger *slog.Logger,
) (*ingest.Coordinator, error) {
	chunkSize, err := cfg.Ingest.ChunkSizeBytes()
	if err != nil {
		return nil, err
	}

	maxWindow, err := cfg.Ingest.MaxWindowBytes()
	if err != nil {
		return nil, err
	}

	opts := []ingest.Option{ingest.WithLogger(logger)}

	if providers.Tracer != nil {
		opts = append(opts, ingest.WithTracer(providers.Tracer))
	}

	if providers.Meter != nil {
		metrics, metricsErr := observability.NewIngestMetrics(providers.Meter)
		if metricsErr != nil {
			return nil, fmt.Errorf("create ingest metrics: %w", metricsErr)
		}

		opts = append(opts, ingest.WithRecorder(metrics))
	}

	return ingest.NewCoordinator(ingest.Config{
		Workers:    cfg.Ingest.Workers,
		BlockSize:  chunkSize,
		MaxWindow:  maxWindow,
		TailGrowth: cfg.Ingest.TailGrowth,
		Recycle:    cfg.Ingest.Recycle,
	}, opts...), nil
}

func (rc *RunCommand) printStatus(w io.Writer, stats ingest.Stats) {
	ok := color.New(color.FgGreen)
	muted := color.New(color.FgHiBlack)

	if rc.noColor {
		ok.DisableColor()
		muted.DisableColor()
	}

	ok.Fprintf(w, "%s names from %s records",
		humanize.Comma(int64(stats.Names)), humanize.Comma(stats.Records))
	muted.Fprintf(w, " (%s in %s, %d workers, %d chunks)\n",
		humanize.Bytes(safeconv.NonNegative(stats.Bytes)),
		stats.Duration.Round(time.Millisecond), stats.Workers, stats.Chunks)
}

func sizeLabel(size int64) string {
	if size < 0 {
		return "unknown"
	}

	return humanize.Bytes(safeconv.NonNegative(size))
}

