package ruleengine

import (
	"fmt"
	"time"
)

// Default values for Config.
const (
	DefaultMaxParallelRules = 10
	DefaultRuleTimeout      = 5 * time.Second
)

// Config contains configuration for the Orchestrator.
type Config struct {
	// MaxParallelRules caps how many rules of one group run at once.
	// Larger groups are split into chunks that run one after another.
	// Default: 10.
	MaxParallelRules int

	// DefaultTimeout applies to rules without their own timeout.
	// Default: 5s.
	DefaultTimeout time.Duration

	// EnableParallelization runs the rules of a group concurrently.
	// When false, every rule runs sequentially in plan order.
	// Default: true.
	EnableParallelization bool

	// SkipDependentOnFailure skips rules whose dependencies failed.
	// Default: true.
	SkipDependentOnFailure bool

	// CollectDetailedMetrics updates the MetricsCollector after each pass.
	// Default: true.
	CollectDetailedMetrics bool
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxParallelRules:       DefaultMaxParallelRules,
		DefaultTimeout:         DefaultRuleTimeout,
		EnableParallelization:  true,
		SkipDependentOnFailure: true,
		CollectDetailedMetrics: true,
	}
}

// Validate validates the engine configuration.
func (c *Config) Validate() error {
	if c.MaxParallelRules <= 0 {
		return fmt.Errorf("%w: max parallel rules must be positive", ErrInvalidConfig)
	}
	if c.DefaultTimeout <= 0 {
		return fmt.Errorf("%w: default timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

// WithMaxParallelRules sets the per-chunk concurrency cap.
func (c *Config) WithMaxParallelRules(n int) *Config {
	c.MaxParallelRules = n
	return c
}

// WithDefaultTimeout sets the fallback rule timeout.
func (c *Config) WithDefaultTimeout(timeout time.Duration) *Config {
	c.DefaultTimeout = timeout
	return c
}

// WithParallelization enables or disables concurrent group execution.
func (c *Config) WithParallelization(enabled bool) *Config {
	c.EnableParallelization = enabled
	return c
}

// WithSkipDependentOnFailure enables or disables dependency skipping.
func (c *Config) WithSkipDependentOnFailure(enabled bool) *Config {
	c.SkipDependentOnFailure = enabled
	return c
}

// WithDetailedMetrics enables or disables metrics collection.
func (c *Config) WithDetailedMetrics(enabled bool) *Config {
	c.CollectDetailedMetrics = enabled
	return c
}

// Options is a partial override of Config. nil fields keep the base value.
type Options struct {
	MaxParallelRules       *int
	DefaultTimeout         *time.Duration
	EnableParallelization  *bool
	SkipDependentOnFailure *bool
	CollectDetailedMetrics *bool
}

// Merge returns a copy of base with every non-nil field of o applied.
// A nil base starts from DefaultConfig.
func (o Options) Merge(base *Config) *Config {
	out := DefaultConfig()
	if base != nil {
		*out = *base
	}
	if o.MaxParallelRules != nil {
		out.MaxParallelRules = *o.MaxParallelRules
	}
	if o.DefaultTimeout != nil {
		out.DefaultTimeout = *o.DefaultTimeout
	}
	if o.EnableParallelization != nil {
		out.EnableParallelization = *o.EnableParallelization
	}
	if o.SkipDependentOnFailure != nil {
		out.SkipDependentOnFailure = *o.SkipDependentOnFailure
	}
	if o.CollectDetailedMetrics != nil {
		out.CollectDetailedMetrics = *o.CollectDetailedMetrics
	}
	return out
}
