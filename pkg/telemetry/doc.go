// Package telemetry groups ruleflow's observability packages.
//
// # Components
//
//   - logging: *slog.Logger construction, context fields and PII redaction
//   - metrics: Prometheus collector fed by validation pass reports
//   - tracing: OpenTelemetry tracer provider and HTTP propagation
//   - health: liveness and readiness checks
//
// Each subpackage is configured from the matching section of
// config.TelemetryConfig and wired together by cmd/ruleflow.
package telemetry
