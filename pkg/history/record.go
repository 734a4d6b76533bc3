package history

import (
	"context"
	"time"

	"github.com/google/uuid"

	"mercator-hq/ruleflow/pkg/ruleengine"
)

type ruleSetKey struct{}

type ruleSetRef struct {
	category string
	version  string
}

// WithRuleSet tags ctx with the rule set a pass is validating.
// NewRecord reads it back when the orchestrator reports the pass.
func WithRuleSet(ctx context.Context, category, version string) context.Context {
	return context.WithValue(ctx, ruleSetKey{}, ruleSetRef{category: category, version: version})
}

// RuleSetFrom returns the rule set stored by WithRuleSet.
func RuleSetFrom(ctx context.Context) (category, version string) {
	if ref, ok := ctx.Value(ruleSetKey{}).(ruleSetRef); ok {
		return ref.category, ref.version
	}
	return "", ""
}

// NewRecord builds a record from a pass report. It returns nil when the
// report carries no verdict.
func NewRecord(ctx context.Context, report *ruleengine.PassReport, now time.Time) *Record {
	if report == nil || report.Result == nil {
		return nil
	}
	result := report.Result
	category, version := RuleSetFrom(ctx)

	record := &Record{
		ID:              uuid.NewString(),
		PassID:          report.PassID,
		Category:        category,
		Version:         version,
		TemplateID:      result.Metadata.TemplateID,
		TemplateVersion: result.Metadata.TemplateVersion,
		IsValid:         result.IsValid,
		Score:           result.Score,
		ErrorCount:      len(result.Errors),
		WarningCount:    len(result.Warnings),
		RulesExecuted:   result.Metadata.RulesExecuted,
		RulesSkipped:    result.Metadata.RulesSkipped,
		FailedRules:     []string{},
		ErrorCodes:      []string{},
		Duration:        report.Duration,
		ValidatedAt:     result.Metadata.Timestamp,
		RecordedAt:      now,
	}
	if record.PassID == "" {
		record.PassID = result.Metadata.PassID
	}

	for _, r := range report.Results {
		if r.Skipped {
			continue
		}
		if !r.Success || (r.Outcome != nil && !r.Outcome.IsValid) {
			record.FailedRules = append(record.FailedRules, r.RuleID)
		}
	}

	seen := make(map[string]struct{})
	for _, e := range result.Errors {
		if e.Code == "" {
			continue
		}
		if _, ok := seen[e.Code]; ok {
			continue
		}
		seen[e.Code] = struct{}{}
		record.ErrorCodes = append(record.ErrorCodes, e.Code)
	}

	return record
}
