package tracing

import (
	"mercator-hq/ruleflow/pkg/ruleengine"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys shared by the server and the engine spans.
// Engine spans use the same "ruleflow.*" namespace.
const (
	AttrRuleSetCategory = "ruleflow.ruleset.category"
	AttrRuleSetVersion  = "ruleflow.ruleset.version"
	AttrRuleCount       = "ruleflow.rule_count"
	AttrPassID          = "ruleflow.pass_id"
	AttrValid           = "ruleflow.valid"
	AttrScore           = "ruleflow.score"
	AttrErrorCount      = "ruleflow.errors"
	AttrWarningCount    = "ruleflow.warnings"
	AttrErrorMessage    = "error.message"
)

// SetRuleSetAttributes records which rule set a span works on.
func SetRuleSetAttributes(span trace.Span, category, version string, rules int) {
	span.SetAttributes(
		attribute.String(AttrRuleSetCategory, category),
		attribute.String(AttrRuleSetVersion, version),
		attribute.Int(AttrRuleCount, rules),
	)
}

// SetVerdictAttributes records a verdict on a span.
func SetVerdictAttributes(span trace.Span, result *ruleengine.ValidationResult) {
	if result == nil {
		return
	}
	span.SetAttributes(
		attribute.String(AttrPassID, result.Metadata.PassID),
		attribute.Bool(AttrValid, result.IsValid),
		attribute.Float64(AttrScore, result.Score),
		attribute.Int(AttrErrorCount, len(result.Errors)),
		attribute.Int(AttrWarningCount, len(result.Warnings)),
	)
}
