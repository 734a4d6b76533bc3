package metrics

import (
	"context"
	"sync"

	"mercator-hq/ruleflow/pkg/config"
	"mercator-hq/ruleflow/pkg/ruleengine"

	"github.com/prometheus/client_golang/prometheus"
)

// OtherRuleID replaces rule ids beyond the cardinality limit.
const OtherRuleID = "other"

// Collector owns every Prometheus metric exported by ruleflow.
// It implements ruleengine.PassObserver, so registering it with
// ruleengine.WithObserver is enough to populate pass and rule metrics.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	passMetrics    *PassMetrics
	ruleMetrics    *RuleMetrics
	ruleSetMetrics *RuleSetMetrics

	// Cardinality tracking for the rule_id label
	cardinalityLimiter *CardinalityLimiter
}

// NewCollector creates a metrics collector registered on registry.
// A nil registry creates a private one. Unset config fields get defaults.
//
// Example:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	orch, _ := ruleengine.NewOrchestrator(nil, logger, ruleengine.WithObserver(collector))
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg == nil {
		cfg = &config.MetricsConfig{}
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if len(cfg.PassDurationBuckets) == 0 {
		cfg.PassDurationBuckets = config.DefaultPassDurationBuckets
	}
	if len(cfg.RuleDurationBuckets) == 0 {
		cfg.RuleDurationBuckets = config.DefaultRuleDurationBuckets
	}
	if cfg.MaxRuleIDs <= 0 {
		cfg.MaxRuleIDs = config.DefaultMetricsMaxRuleIDs
	}

	return &Collector{
		config:             cfg,
		registry:           registry,
		passMetrics:        NewPassMetrics(cfg, registry),
		ruleMetrics:        NewRuleMetrics(cfg, registry),
		ruleSetMetrics:     NewRuleSetMetrics(cfg, registry),
		cardinalityLimiter: NewCardinalityLimiter(cfg.MaxRuleIDs),
	}
}

// ObservePass records pass and per-rule metrics for one report.
func (c *Collector) ObservePass(_ context.Context, report *ruleengine.PassReport) {
	if !c.config.IsEnabled() || report == nil || report.Result == nil {
		return
	}

	c.passMetrics.RecordPass(report.Result, report.Duration, report.GroupsExecuted)

	for _, r := range report.Results {
		ruleID := r.RuleID
		if !c.cardinalityLimiter.Allow(ruleID) {
			ruleID = OtherRuleID
		}
		c.ruleMetrics.RecordResult(ruleID, r)
	}
}

// RecordReload records a rule-set reload attempt and the resulting count.
func (c *Collector) RecordReload(err error, loaded int) {
	if !c.config.IsEnabled() {
		return
	}
	c.ruleSetMetrics.RecordReload(err, loaded)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label values.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether value may be used as a label. Values already seen
// are always allowed; new values are allowed until the limit is reached.
func (cl *CardinalityLimiter) Allow(value string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[value]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	// Double-check after acquiring write lock
	if _, exists := cl.current[value]; exists {
		return true
	}

	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[value] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
