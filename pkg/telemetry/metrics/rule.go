package metrics

import (
	"mercator-hq/ruleflow/pkg/config"
	"mercator-hq/ruleflow/pkg/ruleengine"

	"github.com/prometheus/client_golang/prometheus"
)

// Rule execution status label values.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusTimeout = "timeout"
	StatusSkipped = "skipped"
)

// RuleMetrics tracks individual rule executions.
//
// Metrics:
//   - ruleflow_rule_executions_total: Executions by rule and status
//   - ruleflow_rule_duration_seconds: Execution time of invoked rules
//   - ruleflow_rule_violations_total: Outcomes that reported the data invalid
type RuleMetrics struct {
	executionsTotal *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	violationsTotal *prometheus.CounterVec
}

// NewRuleMetrics creates and registers rule metrics with the provided registry.
func NewRuleMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RuleMetrics {
	rm := &RuleMetrics{
		executionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rule_executions_total",
				Help:      "Total number of rule executions by status",
			},
			[]string{"rule_id", "status"},
		),

		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rule_duration_seconds",
				Help:      "Duration of rule executions in seconds",
				Buckets:   cfg.RuleDurationBuckets,
			},
			[]string{"rule_id"},
		),

		violationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rule_violations_total",
				Help:      "Total number of rule outcomes that reported invalid data",
			},
			[]string{"rule_id"},
		),
	}

	registry.MustRegister(
		rm.executionsTotal,
		rm.duration,
		rm.violationsTotal,
	)

	return rm
}

// RecordResult records one rule result under ruleID.
// Skipped rules are counted but add no duration sample.
func (rm *RuleMetrics) RecordResult(ruleID string, r ruleengine.RuleExecutionResult) {
	status := resultStatus(r)
	rm.executionsTotal.WithLabelValues(ruleID, status).Inc()
	if status == StatusSkipped {
		return
	}
	rm.duration.WithLabelValues(ruleID).Observe(r.ExecutionTime.Seconds())
	if r.Success && r.Outcome != nil && !r.Outcome.IsValid {
		rm.violationsTotal.WithLabelValues(ruleID).Inc()
	}
}

func resultStatus(r ruleengine.RuleExecutionResult) string {
	switch {
	case r.Skipped:
		return StatusSkipped
	case r.Success:
		return StatusSuccess
	case r.TimedOut():
		return StatusTimeout
	default:
		return StatusFailed
	}
}
