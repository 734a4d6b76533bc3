// Package tracing provides OpenTelemetry distributed tracing for ruleflow.
//
// # Overview
//
// New builds a Tracer from config.TracingConfig. When tracing is disabled
// the tracer is a noop; when enabled, spans are batched to an OTLP/gRPC
// collector. Tracer.Tracer is handed to ruleengine.WithTracer so every pass
// produces a span tree:
//
//	ruleflow.process_rules
//	└── ruleflow.group (one per plan group)
//	    └── ruleflow.rule (one per executed rule)
//
// HTTPMiddleware extracts W3C trace context from incoming requests, so
// passes started by the HTTP API join the caller's trace.
//
// # Sampling Strategies
//
//   - always: sample all traces
//   - never: sample no traces
//   - ratio: sample a fraction of traces by trace id
//
// All samplers respect the parent span's decision.
//
// # Usage
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, version)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	orch, err := ruleengine.NewOrchestrator(engineCfg, logger,
//	    ruleengine.WithTracer(tracer.Tracer()))
package tracing
