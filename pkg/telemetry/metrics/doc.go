// Package metrics provides Prometheus metrics collection for ruleflow.
//
// # Overview
//
// Collector implements ruleengine.PassObserver. Registered on an
// Orchestrator, it turns every pass report into pass-level and rule-level
// metrics. The serve command also reports rule-set reloads through it.
//
// # Metrics
//
//   - ruleflow_passes_total{verdict}: passes by "valid" or "invalid"
//   - ruleflow_pass_duration_seconds: pass wall-clock time
//   - ruleflow_pass_score: verdict scores
//   - ruleflow_pass_groups: plan groups walked per pass
//   - ruleflow_rule_executions_total{rule_id,status}: status is one of
//     "success", "failed", "timeout" or "skipped"
//   - ruleflow_rule_duration_seconds{rule_id}: time of invoked rules
//   - ruleflow_rule_violations_total{rule_id}: outcomes reporting invalid data
//   - ruleflow_ruleset_reloads_total{status}, ruleflow_rulesets_loaded
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	orch, err := ruleengine.NewOrchestrator(engineCfg, logger,
//		ruleengine.WithObserver(collector))
//	mux.Handle("/metrics", collector.Handler())
//
// # Cardinality
//
// Rule ids are user-defined, so the number of distinct rule_id label values
// is capped by MetricsConfig.MaxRuleIDs. Ids seen after the cap is reached
// are reported as "other".
package metrics
