// Package ruleengine runs sets of interdependent validation rules against a
// single data object and folds every outcome into one verdict.
//
// Rules are authored elsewhere (see package ruleset for the YAML/CEL
// registry). The engine only needs each rule's id, priority, dependencies,
// timeout and a Validator.
//
// # Architecture
//
// The engine is split into five parts:
//
//  1. Plan Builder - Orders rules into parallel groups by priority and dependencies
//  2. Rule Executor - Runs one validator under a timeout guard, never fails
//  3. Orchestrator - Walks groups, skips dependents of failed rules, bounds concurrency
//  4. Aggregator - Merges outcomes into one ValidationResult with a mean score
//  5. Metrics Collector - Accumulates statistics across passes until reset
//
// # Evaluation Flow
//
//	ProcessRules(rules, data, vctx)
//	       ↓
//	CreatePlan(rules) → [[A, D], [B], [C]]
//	       ↓
//	For each group in order:
//	  Skip rules whose dependencies failed
//	  Run the rest in chunks of MaxParallelRules
//	  Record failures for later groups
//	       ↓
//	Aggregate → ValidationResult (isValid, score, errors, warnings)
//
// # Basic Usage
//
//	orch, err := ruleengine.NewOrchestrator(ruleengine.DefaultConfig(), logger)
//	if err != nil {
//	    return err
//	}
//
//	vctx := ruleengine.NewValidationContext(ruleengine.ContextOptions{
//	    Request: map[string]any{"persona": "traveler"},
//	    Attempt: 1,
//	})
//
//	result := orch.ProcessRules(ctx, rules, candidate, vctx)
//	if !result.IsValid {
//	    // caller decides: retry, fallback, reject
//	}
//
// # Timeouts
//
// A rule that exceeds its timeout is reported as failed, but its validator
// goroutine is abandoned rather than killed. The validator's context is
// cancelled when the timer fires; validators that ignore ctx keep running
// until they return on their own. Validators must be side-effect free.
//
// # Cycles
//
// Dependency cycles do not fail plan construction. When no rule can be
// admitted, the planner forces progress (rules with no dependencies first,
// otherwise the first remaining rule) and logs a warning.
//
// # Thread Safety
//
// An Orchestrator is safe for concurrent use. Each pass snapshots the
// configuration; the metrics collector is guarded by a mutex. Create one
// Orchestrator per pipeline so statistics are not shared between callers.
package ruleengine
