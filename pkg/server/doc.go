// Package server exposes the rule engine over HTTP.
//
// # Routes
//
//	GET    /healthz                                   liveness
//	GET    /readyz                                    readiness (registered health checks)
//	GET    /version                                   build information
//	GET    /metrics                                   Prometheus metrics (path configurable)
//	GET    /v1/rulesets                               loaded rule sets
//	GET    /v1/rulesets/{category}/{version}          one rule set with its rule definitions
//	GET    /v1/rulesets/{category}/{version}/plan     execution plan
//	POST   /v1/rulesets/{category}/{version}/validate run a validation pass
//	GET    /v1/engine/metrics                         cross-pass engine statistics
//	DELETE /v1/engine/metrics                         reset engine statistics
//	GET    /v1/history                                verdict history
//
// # Validate
//
// The validate body carries the data to check and an optional context:
//
//	{
//	    "data": {"name": "Ada", "age": 36},
//	    "context": {"attempt": 2, "user_signals": {"tone": "formal"}}
//	}
//
// The response is the ruleengine.ValidationResult of the pass. A failing
// verdict is still a 200: the status code reports whether the request
// could be processed, not whether the data is valid.
//
// # History
//
// GET /v1/history accepts category, version, pass_id, valid, since and
// until (RFC 3339), limit, offset and order (asc|desc) query parameters.
//
// # Lifecycle
//
//	srv, err := server.New(cfg.Server, server.Deps{Engine: orch, RuleSets: registry})
//	if err := srv.Start(ctx); err != nil { ... }  // blocks until ctx is done
//
// Start shuts the server down gracefully when ctx is cancelled, waiting up
// to the configured shutdown timeout for in-flight requests.
package server
