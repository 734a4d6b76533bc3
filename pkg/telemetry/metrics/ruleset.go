package metrics

import (
	"mercator-hq/ruleflow/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// RuleSetMetrics tracks rule-set reloads.
//
// Metrics:
//   - ruleflow_ruleset_reloads_total: Reload attempts by status
//   - ruleflow_rulesets_loaded: Rule sets currently registered
type RuleSetMetrics struct {
	reloadsTotal *prometheus.CounterVec
	loaded       prometheus.Gauge
}

// NewRuleSetMetrics creates and registers rule-set metrics with the provided registry.
func NewRuleSetMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RuleSetMetrics {
	rm := &RuleSetMetrics{
		reloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "ruleset_reloads_total",
				Help:      "Total number of rule-set reload attempts",
			},
			[]string{"status"},
		),

		loaded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rulesets_loaded",
				Help:      "Number of rule sets currently registered",
			},
		),
	}

	registry.MustRegister(rm.reloadsTotal, rm.loaded)

	return rm
}

// RecordReload counts a reload. The loaded gauge only moves on success,
// since a failed reload keeps the previous rule sets.
func (rm *RuleSetMetrics) RecordReload(err error, loaded int) {
	if err != nil {
		rm.reloadsTotal.WithLabelValues("error").Inc()
		return
	}
	rm.reloadsTotal.WithLabelValues("success").Inc()
	rm.loaded.Set(float64(loaded))
}
