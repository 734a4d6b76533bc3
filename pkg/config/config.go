package config

import (
	"time"

	"mercator-hq/ruleflow/pkg/ruleengine"
)

// Config is the root configuration structure for ruleflow.
type Config struct {
	// Engine contains orchestrator settings.
	Engine EngineConfig `yaml:"engine"`

	// RuleSets configures where rule-set files are loaded from.
	RuleSets RuleSetsConfig `yaml:"rulesets"`

	// History configures verdict history storage.
	History HistoryConfig `yaml:"history"`

	// Server contains HTTP server configuration.
	Server ServerConfig `yaml:"server"`

	// Telemetry contains logging, metrics and tracing configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// EngineConfig mirrors ruleengine.Config. Boolean fields are pointers so
// an omitted key keeps its default instead of becoming false.
type EngineConfig struct {
	// MaxParallelRules caps concurrent rules per chunk.
	// Default: 10
	MaxParallelRules int `yaml:"max_parallel_rules"`

	// DefaultTimeout applies to rules without their own timeout.
	// Default: 5s
	DefaultTimeout time.Duration `yaml:"default_timeout"`

	// EnableParallelization runs the rules of a group concurrently.
	// Default: true
	EnableParallelization *bool `yaml:"enable_parallelization"`

	// SkipDependentOnFailure skips rules whose dependencies failed.
	// Default: true
	SkipDependentOnFailure *bool `yaml:"skip_dependent_on_failure"`

	// CollectDetailedMetrics enables per-orchestrator statistics.
	// Default: true
	CollectDetailedMetrics *bool `yaml:"collect_detailed_metrics"`
}

// Options converts the section into a partial engine override.
// Zero numeric fields and nil booleans are left unset.
func (e EngineConfig) Options() ruleengine.Options {
	var opts ruleengine.Options
	if e.MaxParallelRules != 0 {
		n := e.MaxParallelRules
		opts.MaxParallelRules = &n
	}
	if e.DefaultTimeout != 0 {
		d := e.DefaultTimeout
		opts.DefaultTimeout = &d
	}
	opts.EnableParallelization = copyBool(e.EnableParallelization)
	opts.SkipDependentOnFailure = copyBool(e.SkipDependentOnFailure)
	opts.CollectDetailedMetrics = copyBool(e.CollectDetailedMetrics)
	return opts
}

// EngineConfig returns the fully resolved engine configuration.
func (e EngineConfig) EngineConfig() *ruleengine.Config {
	return e.Options().Merge(ruleengine.DefaultConfig())
}

func copyBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}

// RuleSetsConfig configures rule-set loading.
type RuleSetsConfig struct {
	// Path is a rule-set file or a directory of files.
	// Default: "./rules"
	Path string `yaml:"path"`

	// Watch reloads rule sets when files under Path change.
	// Default: false
	Watch bool `yaml:"watch"`

	// DebounceInterval coalesces bursts of file events.
	// Default: 100ms
	DebounceInterval time.Duration `yaml:"debounce_interval"`

	// SkipHidden ignores dot files.
	// Default: true
	SkipHidden *bool `yaml:"skip_hidden"`
}

// HistoryConfig configures verdict history.
type HistoryConfig struct {
	// Enabled records a history entry for every pass.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Backend selects the storage backend.
	// Options: "memory", "sqlite"
	// Default: "memory"
	Backend string `yaml:"backend"`

	// SQLite contains SQLite backend settings.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Recorder configures the asynchronous recorder.
	Recorder RecorderConfig `yaml:"recorder"`

	// Retention configures pruning of old records.
	Retention RetentionConfig `yaml:"retention"`

	// Query configures query limits.
	Query QueryConfig `yaml:"query"`
}

// SQLiteConfig contains SQLite-specific configuration.
type SQLiteConfig struct {
	// Path is the database file path.
	// Default: "data/history.db"
	Path string `yaml:"path"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// WALMode enables write-ahead logging.
	// Default: true
	WALMode *bool `yaml:"wal_mode"`

	// BusyTimeout is how long a writer waits on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RecorderConfig configures the asynchronous history recorder.
type RecorderConfig struct {
	// AsyncBuffer is the number of pending records held in memory.
	// Records are dropped when the buffer is full.
	// Default: 1000
	AsyncBuffer int `yaml:"async_buffer"`

	// WriteTimeout bounds each storage write.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// RetentionConfig configures history pruning.
type RetentionConfig struct {
	// Days keeps records younger than this many days. A negative value
	// disables age-based pruning.
	// Default: 30
	Days int `yaml:"days"`

	// MaxRecords caps the number of stored records. 0 is unlimited.
	// Default: 0
	MaxRecords int64 `yaml:"max_records"`

	// PruneSchedule is a cron expression for automatic pruning.
	// Empty disables the scheduler.
	// Default: "0 3 * * *"
	PruneSchedule string `yaml:"prune_schedule"`

	// ArchivePath is a directory that receives a JSON export of every
	// batch of records before it is pruned. Empty disables archiving.
	ArchivePath string `yaml:"archive_path"`
}

// QueryConfig configures history query limits.
type QueryConfig struct {
	// DefaultLimit applies when a query sets no limit.
	// Default: 100
	DefaultLimit int `yaml:"default_limit"`

	// MaxLimit caps any query limit.
	// Default: 1000
	MaxLimit int `yaml:"max_limit"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	// ListenAddress is the address to bind to.
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request.
	// Default: 15s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is how long keep-alive connections stay open.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxBodyBytes caps validate request bodies.
	// Default: 1MB
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text", "console"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactPII masks sensitive values in log attributes.
	// Default: true
	RedactPII *bool `yaml:"redact_pii"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "ruleflow"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: ""
	Subsystem string `yaml:"subsystem"`

	// PassDurationBuckets are histogram buckets for pass duration (seconds).
	PassDurationBuckets []float64 `yaml:"pass_duration_buckets"`

	// RuleDurationBuckets are histogram buckets for rule duration (seconds).
	RuleDurationBuckets []float64 `yaml:"rule_duration_buckets"`

	// MaxRuleIDs caps distinct rule_id label values. Extra ids are
	// reported as "other".
	// Default: 500
	MaxRuleIDs int `yaml:"max_rule_ids"`
}

// IsEnabled reports whether metrics are enabled, treating unset as true.
func (m MetricsConfig) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Exporter selects the trace exporter.
	// Options: "otlp"
	// Default: "otlp"
	Exporter string `yaml:"exporter"`

	// Endpoint is the collector endpoint, e.g. "localhost:4317".
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "ruleflow"
	ServiceName string `yaml:"service_name"`

	// OTLP contains OTLP exporter configuration.
	OTLP OTLPConfig `yaml:"otlp"`
}

// OTLPConfig contains OTLP exporter configuration.
type OTLPConfig struct {
	// Insecure disables TLS.
	// Default: true
	Insecure *bool `yaml:"insecure"`

	// Timeout bounds exporter connection and export calls.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// boolValue dereferences b, returning def when b is nil.
func boolValue(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool {
	return &b
}

// SkipHiddenFiles reports whether dot files are ignored. Unset means true.
func (r RuleSetsConfig) SkipHiddenFiles() bool {
	return boolValue(r.SkipHidden, DefaultRuleSetsSkipHidden)
}

// WAL reports whether write-ahead logging is enabled. Unset means true.
func (s SQLiteConfig) WAL() bool {
	return boolValue(s.WALMode, DefaultHistorySQLiteWALMode)
}

// Redact reports whether PII redaction is enabled. Unset means true.
func (l LoggingConfig) Redact() bool {
	return boolValue(l.RedactPII, DefaultLoggingRedactPII)
}

// IsInsecure reports whether TLS is disabled. Unset means true.
func (o OTLPConfig) IsInsecure() bool {
	return boolValue(o.Insecure, DefaultTracingOTLPInsecure)
}
