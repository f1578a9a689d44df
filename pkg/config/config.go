// Package config provides configuration loading and validation for brc.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"github.com/LetzteFee/1brc/pkg/safeconv"
)

// Sentinel validation errors.
var (
	ErrInvalidChunkSize = errors.New("chunk size must be a positive byte size")
	ErrInvalidWindow    = errors.New("max window must be a byte size no smaller than the chunk size")
	ErrInvalidWorkers   = errors.New("workers must not be negative")
	ErrInvalidGrowth    = errors.New("tail growth must be at least 1")
	ErrInvalidFormat    = errors.New("unknown output format")
	ErrInvalidLogLevel  = errors.New("unknown log level")
	ErrEmptySize        = errors.New("empty size")
)

// EnvPrefix prefixes every environment override, e.g. BRC_INGEST_WORKERS.
const EnvPrefix = "BRC"

// configName is the file name searched for when no explicit path is given.
const configName = "brc"

var (
	validFormats   = []string{"text", "table", "json", "yaml"}
	validLogLevels = []string{"debug", "info", "warn", "error"}
)

// Config holds all configuration for a brc run.
type Config struct {
	Input     InputConfig     `mapstructure:"input"`
	Output    OutputConfig    `mapstructure:"output"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
}

// InputConfig selects the record source.
type InputConfig struct {
	// Path of the input file. "-" reads stdin; a ".lz4" suffix is decoded.
	Path string `mapstructure:"path"`
}

// IngestConfig tunes the chunked ingestion engine.
type IngestConfig struct {
	// ChunkSize is the base read block, in humanize format.
	ChunkSize string `mapstructure:"chunk_size"`

	// MaxWindow caps the read window for a single overlong line.
	MaxWindow string `mapstructure:"max_window"`

	// Workers is the pool size. Zero detects hardware parallelism.
	Workers int `mapstructure:"workers"`

	// TailGrowth multiplies the block size once every worker has had a chunk.
	TailGrowth float64 `mapstructure:"tail_growth"`

	// Recycle enables chunk buffer reuse.
	Recycle bool `mapstructure:"recycle"`
}

// OutputConfig selects the summary rendering.
type OutputConfig struct {
	Format string `mapstructure:"format"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// TelemetryConfig holds OpenTelemetry and Prometheus settings.
type TelemetryConfig struct {
	// OTLPEndpoint is the gRPC collector address. Empty disables export.
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`

	// MetricsAddr serves Prometheus metrics on this address when set.
	MetricsAddr string `mapstructure:"metrics_addr"`

	OTLPInsecure bool `mapstructure:"otlp_insecure"`
}

// ChunkSizeBytes returns the parsed chunk size.
func (c IngestConfig) ChunkSizeBytes() (int, error) {
	size, err := ParseSize(c.ChunkSize)
	if err != nil || size <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidChunkSize, c.ChunkSize)
	}

	return size, nil
}

// MaxWindowBytes returns the parsed max window.
func (c IngestConfig) MaxWindowBytes() (int, error) {
	size, err := ParseSize(c.MaxWindow)
	if err != nil || size <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidWindow, c.MaxWindow)
	}

	return size, nil
}

// ParseSize parses a human-readable byte size such as "100MB" or "64KiB".
// A bare number is taken as bytes.
func ParseSize(value string) (int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, ErrEmptySize
	}

	parsed, err := humanize.ParseBytes(trimmed)
	if err != nil {
		return 0, fmt.Errorf("parse size %q: %w", value, err)
	}

	return safeconv.ClampToInt(parsed), nil
}

// LoadConfig loads configuration from file and environment variables.
// An empty path searches brc.yaml in the working directory, ./config and
// $HOME/.config/brc; a missing file there is not an error.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("$HOME/.config/brc")
	}

	viperCfg.SetEnvPrefix(EnvPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := config.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// Default returns the configuration used when no file or environment is present.
func Default() *Config {
	return &Config{
		Input: InputConfig{Path: DefaultInputPath},
		Ingest: IngestConfig{
			ChunkSize:  DefaultChunkSize,
			MaxWindow:  DefaultMaxWindow,
			Workers:    DefaultWorkers,
			TailGrowth: DefaultTailGrowth,
			Recycle:    DefaultRecycle,
		},
		Output:  OutputConfig{Format: DefaultOutputFormat},
		Logging: LoggingConfig{Level: DefaultLogLevel, JSON: DefaultLogJSON},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: DefaultOTLPEndpoint,
			OTLPInsecure: DefaultOTLPInsecure,
			MetricsAddr:  DefaultMetricsAddr,
		},
	}
}

// setDefaults registers Default as the lowest-precedence layer.
func setDefaults(viperCfg *viper.Viper) {
	d := Default()

	viperCfg.SetDefault("input.path", d.Input.Path)

	viperCfg.SetDefault("ingest.chunk_size", d.Ingest.ChunkSize)
	viperCfg.SetDefault("ingest.max_window", d.Ingest.MaxWindow)
	viperCfg.SetDefault("ingest.workers", d.Ingest.Workers)
	viperCfg.SetDefault("ingest.tail_growth", d.Ingest.TailGrowth)
	viperCfg.SetDefault("ingest.recycle", d.Ingest.Recycle)

	viperCfg.SetDefault("output.format", d.Output.Format)

	viperCfg.SetDefault("logging.level", d.Logging.Level)
	viperCfg.SetDefault("logging.json", d.Logging.JSON)

	viperCfg.SetDefault("telemetry.otlp_endpoint", d.Telemetry.OTLPEndpoint)
	viperCfg.SetDefault("telemetry.otlp_insecure", d.Telemetry.OTLPInsecure)
	viperCfg.SetDefault("telemetry.metrics_addr", d.Telemetry.MetricsAddr)
}

// Validate checks the configuration. It is applied again after CLI overrides.
func (c *Config) Validate() error {
	chunkSize, err := c.Ingest.ChunkSizeBytes()
	if err != nil {
		return err
	}

	maxWindow, err := c.Ingest.MaxWindowBytes()
	if err != nil {
		return err
	}

	if maxWindow < chunkSize {
		return fmt.Errorf("%w: %s < %s", ErrInvalidWindow, c.Ingest.MaxWindow, c.Ingest.ChunkSize)
	}

	if c.Ingest.Workers < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Ingest.Workers)
	}

	if c.Ingest.TailGrowth < 1 {
		return fmt.Errorf("%w: %g", ErrInvalidGrowth, c.Ingest.TailGrowth)
	}

	if !oneOf(c.Output.Format, validFormats) {
		return fmt.Errorf("%w: %q (want one of %s)", ErrInvalidFormat, c.Output.Format, strings.Join(validFormats, ", "))
	}

	if !oneOf(c.Logging.Level, validLogLevels) {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Logging.Level)
	}

	return nil
}

func oneOf(value string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(value, a) {
			return true
		}
	}

	return false
}
