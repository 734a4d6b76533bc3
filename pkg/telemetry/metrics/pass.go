package metrics

import (
	"time"

	"mercator-hq/ruleflow/pkg/config"
	"mercator-hq/ruleflow/pkg/ruleengine"

	"github.com/prometheus/client_golang/prometheus"
)

// Verdict label values.
const (
	VerdictValid   = "valid"
	VerdictInvalid = "invalid"
)

// PassMetrics tracks validation passes.
//
// Metrics:
//   - ruleflow_passes_total: Passes by verdict
//   - ruleflow_pass_duration_seconds: Wall-clock pass duration
//   - ruleflow_pass_score: Distribution of pass scores
//   - ruleflow_pass_groups: Plan groups walked per pass
type PassMetrics struct {
	passesTotal  *prometheus.CounterVec
	passDuration prometheus.Histogram
	passScore    prometheus.Histogram
	passGroups   prometheus.Histogram
}

// NewPassMetrics creates and registers pass metrics with the provided registry.
func NewPassMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *PassMetrics {
	pm := &PassMetrics{
		passesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "passes_total",
				Help:      "Total number of validation passes",
			},
			[]string{"verdict"},
		),

		passDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "pass_duration_seconds",
				Help:      "Duration of validation passes in seconds",
				Buckets:   cfg.PassDurationBuckets,
			},
		),

		passScore: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "pass_score",
				Help:      "Verdict score of validation passes",
				Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10), // 0.1 to 1.0
			},
		),

		passGroups: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "pass_groups",
				Help:      "Number of plan groups walked per pass",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 8), // 1 to 128
			},
		),
	}

	registry.MustRegister(
		pm.passesTotal,
		pm.passDuration,
		pm.passScore,
		pm.passGroups,
	)

	return pm
}

// RecordPass records one verdict.
func (pm *PassMetrics) RecordPass(result *ruleengine.ValidationResult, duration time.Duration, groups int) {
	verdict := VerdictInvalid
	if result.IsValid {
		verdict = VerdictValid
	}
	pm.passesTotal.WithLabelValues(verdict).Inc()
	pm.passDuration.Observe(duration.Seconds())
	pm.passScore.Observe(result.Score)
	pm.passGroups.Observe(float64(groups))
}
