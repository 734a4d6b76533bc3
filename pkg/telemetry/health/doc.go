// Package health provides liveness and readiness checks for the ruleflow
// server.
//
// Liveness only reports that the process is running. Readiness runs every
// registered check concurrently, each bounded by the checker's timeout:
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("rulesets", health.NonEmptyCheck(registry, "rule sets"))
//	checker.RegisterCheck("history", health.PingCheck(storage))
//
//	r.Get("/healthz", checker.LivenessHandler())
//	r.Get("/readyz", checker.ReadinessHandler())
package health
