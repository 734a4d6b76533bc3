package ruleengine

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestOrchestrator(t *testing.T, cfg *Config, opts ...Option) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(cfg, testLogger(), opts...)
	if err != nil {
		t.Fatalf("NewOrchestrator() error = %v", err)
	}
	return o
}

func TestOrchestrator_NilRules(t *testing.T) {
	o := newTestOrchestrator(t, nil)

	result := o.ProcessRules(context.Background(), nil, map[string]any{}, nil)

	if result.IsValid {
		t.Error("IsValid = true, want false")
	}
	if result.Score != 0 {
		t.Errorf("Score = %v, want 0", result.Score)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("len(Errors) = %d, want 1", len(result.Errors))
	}
	if result.Errors[0].ID != "critical-invalid-rules" {
		t.Errorf("Errors[0].ID = %q, want critical-invalid-rules", result.Errors[0].ID)
	}
	if result.Metadata.RulesExecuted != 0 {
		t.Errorf("RulesExecuted = %d, want 0", result.Metadata.RulesExecuted)
	}
	if m := o.Metrics(); m.PassesProcessed != 0 {
		t.Errorf("PassesProcessed = %d, want 0 for malformed input", m.PassesProcessed)
	}
}

func TestOrchestrator_EmptyRules(t *testing.T) {
	o := newTestOrchestrator(t, nil)

	result := o.ProcessRules(context.Background(), []Rule{}, nil, nil)

	if !result.IsValid {
		t.Error("IsValid = false, want true")
	}
	if result.Score != 0 {
		t.Errorf("Score = %v, want 0", result.Score)
	}
	if result.Metadata.RulesExecuted+result.Metadata.RulesSkipped != 0 {
		t.Errorf("counts = %+v, want zero", result.Metadata)
	}
}

func TestOrchestrator_LinearChainOrdering(t *testing.T) {
	log := newCallLog()
	rules := []Rule{
		{ID: "c", Dependencies: []string{"b"}, Validator: log.wrap("c", sleeping(20*time.Millisecond, 1))},
		{ID: "b", Dependencies: []string{"a"}, Validator: log.wrap("b", sleeping(20*time.Millisecond, 1))},
		{ID: "a", Validator: log.wrap("a", sleeping(20*time.Millisecond, 1))},
	}

	o := newTestOrchestrator(t, nil)
	result := o.ProcessRules(context.Background(), rules, nil, nil)

	if !result.IsValid {
		t.Fatalf("IsValid = false, errors = %v", result.Errors)
	}
	if log.ends["a"].After(log.starts["b"]) {
		t.Error("b started before a completed")
	}
	if log.ends["b"].After(log.starts["c"]) {
		t.Error("c started before b completed")
	}
	if got := o.Metrics().ParallelGroupsExecuted; got != 3 {
		t.Errorf("ParallelGroupsExecuted = %d, want 3", got)
	}
}

func TestOrchestrator_SkipDependentOnFailure(t *testing.T) {
	tests := []struct {
		name        string
		skip        bool
		wantSkipped int
		wantBCalls  int
	}{
		{name: "skip enabled", skip: true, wantSkipped: 1, wantBCalls: 0},
		{name: "skip disabled", skip: false, wantSkipped: 0, wantBCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := newCallLog()
			rules := []Rule{
				{ID: "a", Validator: log.wrap("a", failing("a broke"))},
				{ID: "b", Dependencies: []string{"a"}, Validator: log.wrap("b", passing(1))},
				// c depends on a skipped rule, which is not a failure.
				{ID: "c", Dependencies: []string{"b"}, Validator: log.wrap("c", passing(1))},
				{ID: "d", Validator: log.wrap("d", passing(1))},
			}

			cfg := DefaultConfig().WithSkipDependentOnFailure(tt.skip)
			o := newTestOrchestrator(t, cfg)

			var report *PassReport
			o.observers = append(o.observers, PassObserverFunc(func(_ context.Context, r *PassReport) {
				report = r
			}))

			result := o.ProcessRules(context.Background(), rules, nil, nil)

			if result.Metadata.RulesSkipped != tt.wantSkipped {
				t.Errorf("RulesSkipped = %d, want %d", result.Metadata.RulesSkipped, tt.wantSkipped)
			}
			if got := log.count("b"); got != tt.wantBCalls {
				t.Errorf("b invoked %d times, want %d", got, tt.wantBCalls)
			}
			if result.IsValid {
				t.Error("IsValid = true, want false")
			}
			if result.Metadata.RulesExecuted+result.Metadata.RulesSkipped != len(rules) {
				t.Errorf("executed + skipped = %d, want %d",
					result.Metadata.RulesExecuted+result.Metadata.RulesSkipped, len(rules))
			}

			if report == nil {
				t.Fatal("observer was not notified")
			}
			for _, r := range report.Results {
				if r.RuleID == "b" && tt.skip {
					if !r.Skipped || r.SkipReason != SkipReasonDependencyFailed {
						t.Errorf("b result = %+v, want skipped with reason %q", r, SkipReasonDependencyFailed)
					}
				}
			}
		})
	}
}

func TestOrchestrator_SkipIsNotFailure(t *testing.T) {
	rules := []Rule{
		{ID: "a", Validator: failing("nope")},
		{ID: "b", Dependencies: []string{"a"}, Validator: passing(1)},
		{ID: "c", Dependencies: []string{"b"}, Validator: passing(1)},
	}

	var report *PassReport
	o := newTestOrchestrator(t, nil, WithObserver(PassObserverFunc(func(_ context.Context, r *PassReport) {
		report = r
	})))
	o.ProcessRules(context.Background(), rules, nil, nil)

	byID := make(map[string]RuleExecutionResult)
	for _, r := range report.Results {
		byID[r.RuleID] = r
	}
	if !byID["b"].Skipped {
		t.Error("b should be skipped")
	}
	// b was skipped, not failed, so c still runs.
	if c := byID["c"]; c.Skipped || !c.Success {
		t.Errorf("c = %+v, want executed successfully", c)
	}
}

func TestOrchestrator_Chunking(t *testing.T) {
	rules := make([]Rule, 5)
	for i := range rules {
		rules[i] = Rule{ID: string(rune('a' + i)), Validator: sleeping(50*time.Millisecond, 1)}
	}

	cfg := DefaultConfig().WithMaxParallelRules(2)
	o := newTestOrchestrator(t, cfg)

	start := time.Now()
	result := o.ProcessRules(context.Background(), rules, nil, nil)
	elapsed := time.Since(start)

	if !result.IsValid {
		t.Fatalf("IsValid = false, errors = %v", result.Errors)
	}
	// Three chunks of at most two rules each.
	if elapsed < 140*time.Millisecond {
		t.Errorf("elapsed = %v, want at least three sequential chunks", elapsed)
	}
	if elapsed >= 240*time.Millisecond {
		t.Errorf("elapsed = %v, want well under fully serial time", elapsed)
	}
}

func TestOrchestrator_ConcurrencyCap(t *testing.T) {
	var inFlight, peak int32
	v := ValidatorFunc(func(context.Context, any, *ValidationContext) (*ValidationOutcome, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return &ValidationOutcome{IsValid: true, Score: 1}, nil
	})

	rules := make([]Rule, 12)
	for i := range rules {
		rules[i] = Rule{ID: string(rune('a' + i)), Validator: v}
	}

	o := newTestOrchestrator(t, DefaultConfig().WithMaxParallelRules(3))
	o.ProcessRules(context.Background(), rules, nil, nil)

	if peak > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", peak)
	}
}

func TestOrchestrator_Sequential(t *testing.T) {
	var inFlight, peak int32
	v := ValidatorFunc(func(context.Context, any, *ValidationContext) (*ValidationOutcome, error) {
		n := atomic.AddInt32(&inFlight, 1)
		if n > atomic.LoadInt32(&peak) {
			atomic.StoreInt32(&peak, n)
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return &ValidationOutcome{IsValid: true, Score: 1}, nil
	})

	rules := []Rule{{ID: "a", Validator: v}, {ID: "b", Validator: v}, {ID: "c", Validator: v}}
	o := newTestOrchestrator(t, DefaultConfig().WithParallelization(false))
	o.ProcessRules(context.Background(), rules, nil, nil)

	if peak != 1 {
		t.Errorf("peak concurrency = %d, want 1", peak)
	}
}

func TestOrchestrator_ScoreAndValidity(t *testing.T) {
	rules := []Rule{
		{ID: "a", Validator: passing(1.0)},
		{ID: "b", Validator: passing(0.8)},
	}

	result := newTestOrchestrator(t, nil).ProcessRules(context.Background(), rules, nil, nil)

	if !result.IsValid {
		t.Errorf("IsValid = false, errors = %v", result.Errors)
	}
	if math.Abs(result.Score-0.9) > 1e-9 {
		t.Errorf("Score = %v, want 0.9", result.Score)
	}
}

func TestOrchestrator_TimeoutBecomesError(t *testing.T) {
	rules := []Rule{
		{ID: "slow", Timeout: 50 * time.Millisecond, Validator: sleeping(500*time.Millisecond, 1)},
		{ID: "fast", Validator: passing(1)},
	}

	result := newTestOrchestrator(t, nil).ProcessRules(context.Background(), rules, nil, nil)

	if result.IsValid {
		t.Fatal("IsValid = true, want false")
	}
	if len(result.Errors) != 1 || result.Errors[0].ID != "rule-execution-slow" {
		t.Fatalf("Errors = %+v, want one rule-execution-slow error", result.Errors)
	}
	if result.Errors[0].Code != "RULE_TIMEOUT" {
		t.Errorf("Code = %q, want RULE_TIMEOUT", result.Errors[0].Code)
	}
	// Only the successful rule is scored.
	if result.Score != 1 {
		t.Errorf("Score = %v, want 1", result.Score)
	}
}

func TestOrchestrator_Metadata(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	o := newTestOrchestrator(t, nil, WithClock(func() time.Time { return fixed }))

	vctx := NewValidationContext(ContextOptions{TemplateID: "persona", TemplateVersion: "v2"})
	result := o.ProcessRules(context.Background(), []Rule{{ID: "a", Validator: passing(1)}}, nil, vctx)

	if result.Metadata.TemplateID != "persona" || result.Metadata.TemplateVersion != "v2" {
		t.Errorf("template = %q/%q, want persona/v2", result.Metadata.TemplateID, result.Metadata.TemplateVersion)
	}
	if !result.Metadata.Timestamp.Equal(fixed) {
		t.Errorf("Timestamp = %v, want %v", result.Metadata.Timestamp, fixed)
	}
	if result.Metadata.PassID == "" {
		t.Error("PassID is empty")
	}
}

func TestOrchestrator_UpdateConfig(t *testing.T) {
	o := newTestOrchestrator(t, nil)

	n := 3
	if err := o.UpdateConfig(Options{MaxParallelRules: &n}); err != nil {
		t.Fatalf("UpdateConfig() error = %v", err)
	}
	cfg := o.Config()
	if cfg.MaxParallelRules != 3 {
		t.Errorf("MaxParallelRules = %d, want 3", cfg.MaxParallelRules)
	}
	if cfg.DefaultTimeout != DefaultRuleTimeout || !cfg.EnableParallelization {
		t.Errorf("unrelated fields changed: %+v", cfg)
	}

	bad := 0
	err := o.UpdateConfig(Options{MaxParallelRules: &bad})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("UpdateConfig() error = %v, want ErrInvalidConfig", err)
	}
	if o.Config().MaxParallelRules != 3 {
		t.Error("invalid update was applied")
	}

	// Config returns a copy.
	cfg.MaxParallelRules = 99
	if o.Config().MaxParallelRules != 3 {
		t.Error("Config() exposed internal state")
	}
}

func TestOrchestrator_MetricsDisabled(t *testing.T) {
	o := newTestOrchestrator(t, DefaultConfig().WithDetailedMetrics(false))
	o.ProcessRules(context.Background(), []Rule{{ID: "a", Validator: passing(1)}}, nil, nil)

	if m := o.Metrics(); m.TotalRulesExecuted != 0 || m.PassesProcessed != 0 {
		t.Errorf("metrics updated while disabled: %+v", m)
	}
}

func TestOrchestrator_MetricsAcrossPasses(t *testing.T) {
	o := newTestOrchestrator(t, nil)
	rules := []Rule{
		{ID: "a", Validator: failing("x")},
		{ID: "b", Dependencies: []string{"a"}, Validator: passing(1)},
	}

	o.ProcessRules(context.Background(), rules, nil, nil)
	o.ProcessRules(context.Background(), rules, nil, nil)

	m := o.Metrics()
	if m.TotalRulesExecuted != 2 || m.TotalRulesSkipped != 2 {
		t.Errorf("executed/skipped = %d/%d, want 2/2", m.TotalRulesExecuted, m.TotalRulesSkipped)
	}
	if len(m.FailedRules) != 2 || len(m.SkippedRules) != 2 {
		t.Errorf("FailedRules = %v, SkippedRules = %v", m.FailedRules, m.SkippedRules)
	}
	if m.PassesProcessed != 2 {
		t.Errorf("PassesProcessed = %d, want 2", m.PassesProcessed)
	}

	o.ResetMetrics()
	if m := o.Metrics(); m.TotalRulesExecuted != 0 || len(m.FailedRules) != 0 || m.PassesProcessed != 0 {
		t.Errorf("metrics not reset: %+v", m)
	}
}

func TestOrchestrator_ConcurrentPasses(t *testing.T) {
	o := newTestOrchestrator(t, nil)
	rules := []Rule{
		{ID: "a", Validator: sleeping(5*time.Millisecond, 1)},
		{ID: "b", Dependencies: []string{"a"}, Validator: passing(1)},
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.ProcessRules(context.Background(), rules, nil, nil)
		}()
	}
	n := 5
	_ = o.UpdateConfig(Options{MaxParallelRules: &n})
	wg.Wait()

	if got := o.Metrics().PassesProcessed; got != 8 {
		t.Errorf("PassesProcessed = %d, want 8", got)
	}
}

func TestNewOrchestrator_InvalidConfig(t *testing.T) {
	_, err := NewOrchestrator(&Config{MaxParallelRules: 0, DefaultTimeout: time.Second}, nil)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("error = %v, want ErrInvalidConfig", err)
	}
}

func TestOrchestrator_Spans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	o := newTestOrchestrator(t, nil, WithTracer(provider.Tracer("test")))
	o.ProcessRules(context.Background(), []Rule{
		{ID: "a", Validator: passing(1)},
		{ID: "b", Dependencies: []string{"a"}, Validator: failing("x")},
	}, nil, nil)

	counts := make(map[string]int)
	for _, s := range recorder.Ended() {
		counts[s.Name()]++
	}
	want := map[string]int{
		"ruleflow.process_rules": 1,
		"ruleflow.group":         2,
		"ruleflow.rule":          2,
	}
	for name, n := range want {
		if counts[name] != n {
			t.Errorf("%s spans = %d, want %d", name, counts[name], n)
		}
	}
}
