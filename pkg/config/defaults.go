package config

import (
	"time"

	"mercator-hq/ruleflow/pkg/ruleengine"
)

// History storage backends.
const (
	HistoryBackendMemory = "memory"
	HistoryBackendSQLite = "sqlite"
)

// Default values for configuration fields.
const (
	// Engine defaults
	DefaultEngineMaxParallelRules       = ruleengine.DefaultMaxParallelRules
	DefaultEngineDefaultTimeout         = ruleengine.DefaultRuleTimeout
	DefaultEngineEnableParallelization  = true
	DefaultEngineSkipDependentOnFailure = true
	DefaultEngineCollectDetailedMetrics = true

	// Rule set defaults
	DefaultRuleSetsPath             = "./rules"
	DefaultRuleSetsDebounceInterval = 100 * time.Millisecond
	DefaultRuleSetsSkipHidden       = true

	// History defaults
	DefaultHistoryBackend              = HistoryBackendMemory
	DefaultHistorySQLitePath           = "data/history.db"
	DefaultHistorySQLiteMaxOpenConns   = 10
	DefaultHistorySQLiteMaxIdleConns   = 5
	DefaultHistorySQLiteWALMode        = true
	DefaultHistorySQLiteBusyTimeout    = 5 * time.Second
	DefaultHistoryRecorderAsyncBuffer  = 1000
	DefaultHistoryRecorderWriteTimeout = 5 * time.Second
	DefaultHistoryRetentionDays        = 30
	DefaultHistoryRetentionSchedule    = "0 3 * * *"
	DefaultHistoryQueryDefaultLimit    = 100
	DefaultHistoryQueryMaxLimit        = 1000

	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxBodyBytes    = int64(1 << 20)

	// Logging defaults
	DefaultLoggingLevel     = "info"
	DefaultLoggingFormat    = "json"
	DefaultLoggingRedactPII = true

	// Metrics defaults
	DefaultMetricsEnabled    = true
	DefaultMetricsPath       = "/metrics"
	DefaultMetricsNamespace  = "ruleflow"
	DefaultMetricsMaxRuleIDs = 500

	// Tracing defaults
	DefaultTracingEnabled      = false
	DefaultTracingSampler      = "ratio"
	DefaultTracingSampleRatio  = 0.1
	DefaultTracingExporter     = "otlp"
	DefaultTracingServiceName  = "ruleflow"
	DefaultTracingOTLPInsecure = true
	DefaultTracingOTLPTimeout  = 10 * time.Second
)

// DefaultPassDurationBuckets are histogram buckets for pass duration in seconds.
var DefaultPassDurationBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10}

// DefaultRuleDurationBuckets are histogram buckets for rule duration in seconds.
var DefaultRuleDurationBuckets = []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 1, 5}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields of cfg with their defaults.
// Fields already set are left untouched.
func ApplyDefaults(cfg *Config) {
	// Engine defaults
	if cfg.Engine.MaxParallelRules == 0 {
		cfg.Engine.MaxParallelRules = DefaultEngineMaxParallelRules
	}
	if cfg.Engine.DefaultTimeout == 0 {
		cfg.Engine.DefaultTimeout = DefaultEngineDefaultTimeout
	}
	if cfg.Engine.EnableParallelization == nil {
		cfg.Engine.EnableParallelization = BoolPtr(DefaultEngineEnableParallelization)
	}
	if cfg.Engine.SkipDependentOnFailure == nil {
		cfg.Engine.SkipDependentOnFailure = BoolPtr(DefaultEngineSkipDependentOnFailure)
	}
	if cfg.Engine.CollectDetailedMetrics == nil {
		cfg.Engine.CollectDetailedMetrics = BoolPtr(DefaultEngineCollectDetailedMetrics)
	}

	// Rule set defaults
	if cfg.RuleSets.Path == "" {
		cfg.RuleSets.Path = DefaultRuleSetsPath
	}
	if cfg.RuleSets.DebounceInterval == 0 {
		cfg.RuleSets.DebounceInterval = DefaultRuleSetsDebounceInterval
	}
	if cfg.RuleSets.SkipHidden == nil {
		cfg.RuleSets.SkipHidden = BoolPtr(DefaultRuleSetsSkipHidden)
	}

	// History defaults
	if cfg.History.Backend == "" {
		cfg.History.Backend = DefaultHistoryBackend
	}
	if cfg.History.SQLite.Path == "" {
		cfg.History.SQLite.Path = DefaultHistorySQLitePath
	}
	if cfg.History.SQLite.MaxOpenConns == 0 {
		cfg.History.SQLite.MaxOpenConns = DefaultHistorySQLiteMaxOpenConns
	}
	if cfg.History.SQLite.MaxIdleConns == 0 {
		cfg.History.SQLite.MaxIdleConns = DefaultHistorySQLiteMaxIdleConns
	}
	if cfg.History.SQLite.WALMode == nil {
		cfg.History.SQLite.WALMode = BoolPtr(DefaultHistorySQLiteWALMode)
	}
	if cfg.History.SQLite.BusyTimeout == 0 {
		cfg.History.SQLite.BusyTimeout = DefaultHistorySQLiteBusyTimeout
	}
	if cfg.History.Recorder.AsyncBuffer == 0 {
		cfg.History.Recorder.AsyncBuffer = DefaultHistoryRecorderAsyncBuffer
	}
	if cfg.History.Recorder.WriteTimeout == 0 {
		cfg.History.Recorder.WriteTimeout = DefaultHistoryRecorderWriteTimeout
	}
	if cfg.History.Retention.Days == 0 {
		cfg.History.Retention.Days = DefaultHistoryRetentionDays
	}
	if cfg.History.Retention.PruneSchedule == "" {
		cfg.History.Retention.PruneSchedule = DefaultHistoryRetentionSchedule
	}
	if cfg.History.Query.DefaultLimit == 0 {
		cfg.History.Query.DefaultLimit = DefaultHistoryQueryDefaultLimit
	}
	if cfg.History.Query.MaxLimit == 0 {
		cfg.History.Query.MaxLimit = DefaultHistoryQueryMaxLimit
	}

	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}

	// Logging defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Logging.RedactPII == nil {
		cfg.Telemetry.Logging.RedactPII = BoolPtr(DefaultLoggingRedactPII)
	}

	// Metrics defaults
	if cfg.Telemetry.Metrics.Enabled == nil {
		cfg.Telemetry.Metrics.Enabled = BoolPtr(DefaultMetricsEnabled)
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if len(cfg.Telemetry.Metrics.PassDurationBuckets) == 0 {
		cfg.Telemetry.Metrics.PassDurationBuckets = append([]float64(nil), DefaultPassDurationBuckets...)
	}
	if len(cfg.Telemetry.Metrics.RuleDurationBuckets) == 0 {
		cfg.Telemetry.Metrics.RuleDurationBuckets = append([]float64(nil), DefaultRuleDurationBuckets...)
	}
	if cfg.Telemetry.Metrics.MaxRuleIDs == 0 {
		cfg.Telemetry.Metrics.MaxRuleIDs = DefaultMetricsMaxRuleIDs
	}

	// Tracing defaults
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Telemetry.Tracing.Exporter == "" {
		cfg.Telemetry.Tracing.Exporter = DefaultTracingExporter
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Telemetry.Tracing.OTLP.Insecure == nil {
		cfg.Telemetry.Tracing.OTLP.Insecure = BoolPtr(DefaultTracingOTLPInsecure)
	}
	if cfg.Telemetry.Tracing.OTLP.Timeout == 0 {
		cfg.Telemetry.Tracing.OTLP.Timeout = DefaultTracingOTLPTimeout
	}
}
