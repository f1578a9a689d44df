package config

// Input defaults.
const (
	DefaultInputPath = "measurements.txt"
)

// Ingest defaults. Sizes use humanize format (e.g. "100MB", "1GiB").
const (
	DefaultChunkSize  = "100MB"
	DefaultMaxWindow  = "1GiB"
	DefaultWorkers    = 0
	DefaultTailGrowth = 1.5
	DefaultRecycle    = true
)

// Output defaults.
const (
	DefaultOutputFormat = "text"
)

// Logging defaults.
const (
	DefaultLogLevel = "info"
	DefaultLogJSON  = false
)

// Telemetry defaults.
const (
	DefaultOTLPEndpoint = ""
	DefaultOTLPInsecure = false
	DefaultMetricsAddr  = ""
)
