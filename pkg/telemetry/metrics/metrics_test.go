package metrics

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mercator-hq/ruleflow/pkg/config"
	"mercator-hq/ruleflow/pkg/ruleengine"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func testConfig() *config.MetricsConfig {
	return &config.MetricsConfig{
		Namespace:           "test",
		PassDurationBuckets: []float64{0.01, 0.1, 1},
		RuleDurationBuckets: []float64{0.001, 0.01, 0.1},
		MaxRuleIDs:          10,
	}
}

func report(valid bool, score float64, results ...ruleengine.RuleExecutionResult) *ruleengine.PassReport {
	return &ruleengine.PassReport{
		PassID:         "p",
		Result:         &ruleengine.ValidationResult{IsValid: valid, Score: score},
		Results:        results,
		GroupsExecuted: 2,
		Duration:       20 * time.Millisecond,
	}
}

func TestCollector_NewCollector(t *testing.T) {
	cfg := &config.MetricsConfig{}
	registry := prometheus.NewRegistry()

	collector := NewCollector(cfg, registry)

	if collector.Registry() != registry {
		t.Error("Collector registry not set correctly")
	}
	if cfg.Namespace != config.DefaultMetricsNamespace {
		t.Errorf("Namespace = %q, want default", cfg.Namespace)
	}
	if cfg.MaxRuleIDs != config.DefaultMetricsMaxRuleIDs {
		t.Errorf("MaxRuleIDs = %d, want default", cfg.MaxRuleIDs)
	}
}

func TestCollector_ObservePass(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	timeout := &ruleengine.TimeoutError{RuleID: "slow", Timeout: time.Millisecond}
	collector.ObservePass(context.Background(), report(false, 0.5,
		ruleengine.RuleExecutionResult{RuleID: "ok", Success: true, Outcome: &ruleengine.ValidationOutcome{IsValid: true, Score: 1}, ExecutionTime: time.Millisecond},
		ruleengine.RuleExecutionResult{RuleID: "bad", Success: true, Outcome: &ruleengine.ValidationOutcome{IsValid: false}, ExecutionTime: time.Millisecond},
		ruleengine.RuleExecutionResult{RuleID: "slow", Err: timeout, ExecutionTime: 2 * time.Millisecond},
		ruleengine.RuleExecutionResult{RuleID: "boom", Err: errors.New("boom")},
		ruleengine.RuleExecutionResult{RuleID: "after", Skipped: true, SkipReason: ruleengine.SkipReasonDependencyFailed},
	))
	collector.ObservePass(context.Background(), report(true, 1))

	pm := collector.passMetrics
	if got := testutil.ToFloat64(pm.passesTotal.WithLabelValues(VerdictInvalid)); got != 1 {
		t.Errorf("invalid passes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(pm.passesTotal.WithLabelValues(VerdictValid)); got != 1 {
		t.Errorf("valid passes = %v, want 1", got)
	}

	rm := collector.ruleMetrics
	tests := []struct {
		ruleID string
		status string
	}{
		{"ok", StatusSuccess},
		{"bad", StatusSuccess},
		{"slow", StatusTimeout},
		{"boom", StatusFailed},
		{"after", StatusSkipped},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(rm.executionsTotal.WithLabelValues(tt.ruleID, tt.status)); got != 1 {
			t.Errorf("rule_executions_total{%s,%s} = %v, want 1", tt.ruleID, tt.status, got)
		}
	}

	if got := testutil.ToFloat64(rm.violationsTotal.WithLabelValues("bad")); got != 1 {
		t.Errorf("violations for bad = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(rm.violationsTotal); got != 1 {
		t.Errorf("violation series = %d, want 1", got)
	}

	// Skipped rules add no duration series.
	if got := testutil.CollectAndCount(rm.duration); got != 4 {
		t.Errorf("duration series = %d, want 4", got)
	}
}

func TestCollector_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = config.BoolPtr(false)
	collector := NewCollector(cfg, prometheus.NewRegistry())

	collector.ObservePass(context.Background(), report(true, 1,
		ruleengine.RuleExecutionResult{RuleID: "a", Success: true, Outcome: &ruleengine.ValidationOutcome{IsValid: true}},
	))
	collector.RecordReload(nil, 3)

	if got := testutil.CollectAndCount(collector.passMetrics.passesTotal); got != 0 {
		t.Errorf("passes series = %d, want 0 when disabled", got)
	}
	if got := testutil.ToFloat64(collector.ruleSetMetrics.loaded); got != 0 {
		t.Errorf("rulesets_loaded = %v, want 0 when disabled", got)
	}
}

func TestCollector_ObservePassNilReport(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.ObservePass(context.Background(), nil)
	collector.ObservePass(context.Background(), &ruleengine.PassReport{})

	if got := testutil.CollectAndCount(collector.passMetrics.passesTotal); got != 0 {
		t.Errorf("passes series = %d, want 0", got)
	}
}

func TestCollector_CardinalityLimit(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRuleIDs = 2
	collector := NewCollector(cfg, prometheus.NewRegistry())

	var results []ruleengine.RuleExecutionResult
	for _, id := range []string{"r1", "r2", "r3", "r4"} {
		results = append(results, ruleengine.RuleExecutionResult{RuleID: id, Skipped: true})
	}
	collector.ObservePass(context.Background(), report(true, 1, results...))

	rm := collector.ruleMetrics
	if got := testutil.ToFloat64(rm.executionsTotal.WithLabelValues(OtherRuleID, StatusSkipped)); got != 2 {
		t.Errorf("other = %v, want 2", got)
	}
	if got := testutil.ToFloat64(rm.executionsTotal.WithLabelValues("r1", StatusSkipped)); got != 1 {
		t.Errorf("r1 = %v, want 1", got)
	}
	if got := collector.cardinalityLimiter.Count(); got != 2 {
		t.Errorf("Count() = %d, want 2", got)
	}
}

func TestCollector_RecordReload(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RecordReload(nil, 3)
	collector.RecordReload(errors.New("bad yaml"), 0)

	rm := collector.ruleSetMetrics
	if got := testutil.ToFloat64(rm.reloadsTotal.WithLabelValues("success")); got != 1 {
		t.Errorf("success reloads = %v, want 1", got)
	}
	if got := testutil.ToFloat64(rm.reloadsTotal.WithLabelValues("error")); got != 1 {
		t.Errorf("error reloads = %v, want 1", got)
	}
	if got := testutil.ToFloat64(rm.loaded); got != 3 {
		t.Errorf("rulesets_loaded = %v, want 3 (failed reload keeps previous)", got)
	}
}

func TestCollector_Handler(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())
	collector.ObservePass(context.Background(), report(true, 1))

	rec := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(string(body), `test_passes_total{verdict="valid"} 1`) {
		t.Errorf("metrics output missing passes_total:\n%s", body)
	}
}

func TestCardinalityLimiter(t *testing.T) {
	cl := NewCardinalityLimiter(2)

	if !cl.Allow("a") || !cl.Allow("b") {
		t.Fatal("first two values should be allowed")
	}
	if cl.Allow("c") {
		t.Error("third value should be rejected")
	}
	if !cl.Allow("a") {
		t.Error("known value should stay allowed")
	}
	if cl.Count() != 2 {
		t.Errorf("Count() = %d, want 2", cl.Count())
	}
}
