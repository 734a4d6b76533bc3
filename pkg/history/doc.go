// Package history keeps a queryable log of validation verdicts.
//
// Every pass the orchestrator completes can be summarized into a Record
// and persisted through a Storage backend:
//
//	store, err := storage.Open(cfg.History, logger)
//	rec := recorder.New(store, recorder.Config{AsyncBuffer: 1000}, logger)
//	orch, err := ruleengine.NewOrchestrator(nil, logger, ruleengine.WithObserver(rec))
//
//	ctx = history.WithRuleSet(ctx, "persona", "v1")
//	orch.ProcessRules(ctx, rules, data, vctx)
//
// Records are written asynchronously so recording never slows a pass.
// The retention subpackage prunes old records on a cron schedule and the
// export subpackage renders query results as JSON or CSV.
package history
