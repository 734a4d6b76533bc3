package ruleengine

import (
	"sync"
	"time"
)

// ProcessorMetrics is a snapshot of cross-pass statistics.
type ProcessorMetrics struct {
	TotalRulesExecuted int64 `json:"total_rules_executed"`
	TotalRulesSkipped  int64 `json:"total_rules_skipped"`

	// TotalExecutionTime is the summed wall-clock time of all passes.
	TotalExecutionTime time.Duration `json:"total_execution_time_ns"`

	// AverageRuleExecutionTime is the mean over the most recent pass's
	// executed rules. It is not a running average across passes.
	AverageRuleExecutionTime time.Duration `json:"average_rule_execution_time_ns"`

	// RuleExecutionTimes holds each rule's most recent execution time.
	RuleExecutionTimes map[string]time.Duration `json:"rule_execution_times_ns"`

	// FailedRules and SkippedRules are append-only until Reset.
	FailedRules  []string `json:"failed_rules"`
	SkippedRules []string `json:"skipped_rules"`

	ParallelGroupsExecuted int64 `json:"parallel_groups_executed"`
	PassesProcessed        int64 `json:"passes_processed"`
}

// MetricsCollector accumulates ProcessorMetrics across passes until reset.
// It is owned by exactly one Orchestrator.
type MetricsCollector struct {
	mu sync.Mutex
	m  ProcessorMetrics
}

// NewMetricsCollector creates an empty collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		m: ProcessorMetrics{RuleExecutionTimes: make(map[string]time.Duration)},
	}
}

// Update folds one pass's results into the collector.
func (c *MetricsCollector) Update(results []RuleExecutionResult, total time.Duration) {
	c.update(results, total, 0)
}

func (c *MetricsCollector) update(results []RuleExecutionResult, total time.Duration, groups int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var executed int
	var executedTime time.Duration

	for _, r := range results {
		if r.Skipped {
			c.m.TotalRulesSkipped++
			c.m.SkippedRules = append(c.m.SkippedRules, r.RuleID)
			continue
		}
		c.m.TotalRulesExecuted++
		executed++
		executedTime += r.ExecutionTime
		c.m.RuleExecutionTimes[r.RuleID] = r.ExecutionTime
		if !r.Success {
			c.m.FailedRules = append(c.m.FailedRules, r.RuleID)
		}
	}

	c.m.TotalExecutionTime += total
	if executed > 0 {
		c.m.AverageRuleExecutionTime = executedTime / time.Duration(executed)
	} else {
		c.m.AverageRuleExecutionTime = 0
	}
	c.m.ParallelGroupsExecuted += int64(groups)
	c.m.PassesProcessed++
}

// Metrics returns a deep copy of the current statistics.
func (c *MetricsCollector) Metrics() ProcessorMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := c.m
	out.RuleExecutionTimes = make(map[string]time.Duration, len(c.m.RuleExecutionTimes))
	for k, v := range c.m.RuleExecutionTimes {
		out.RuleExecutionTimes[k] = v
	}
	out.FailedRules = append([]string{}, c.m.FailedRules...)
	out.SkippedRules = append([]string{}, c.m.SkippedRules...)
	return out
}

// Reset zeroes every statistic.
func (c *MetricsCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m = ProcessorMetrics{RuleExecutionTimes: make(map[string]time.Duration)}
}
