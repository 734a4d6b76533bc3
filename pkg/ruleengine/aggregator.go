package ruleengine

import (
	"fmt"
	"time"
)

// Aggregate merges per-rule results into a single verdict.
//
// Skipped results only count toward RulesSkipped. Failed results each yield
// one error with id "rule-execution-<ruleID>" and do not contribute to the
// score. The score is the mean over successful results, 0 when there are none.
func Aggregate(results []RuleExecutionResult, start time.Time, vctx *ValidationContext) *ValidationResult {
	return aggregateAt(results, start, time.Now(), vctx)
}

func aggregateAt(results []RuleExecutionResult, start, now time.Time, vctx *ValidationContext) *ValidationResult {
	out := &ValidationResult{
		Errors:   []ValidationError{},
		Warnings: []ValidationWarning{},
	}

	var scoreSum float64
	var scored int

	for _, r := range results {
		if r.Skipped {
			out.Metadata.RulesSkipped++
			continue
		}
		out.Metadata.RulesExecuted++

		if !r.Success || r.Outcome == nil {
			msg := "unknown error"
			if r.Err != nil {
				msg = r.Err.Error()
			}
			out.Errors = append(out.Errors, ValidationError{
				ID:       "rule-execution-" + r.RuleID,
				Message:  fmt.Sprintf("Rule execution failed: %s", msg),
				Severity: SeverityError,
				Code:     failureCode(r),
			})
			continue
		}

		out.Errors = append(out.Errors, r.Outcome.Errors...)
		out.Warnings = append(out.Warnings, r.Outcome.Warnings...)
		scoreSum += r.Outcome.Score
		scored++
	}

	if scored > 0 {
		out.Score = scoreSum / float64(scored)
	}
	out.IsValid = len(out.Errors) == 0

	elapsed := now.Sub(start)
	out.Metadata.ValidationTime = elapsed
	out.Metadata.ValidationTimeMs = elapsed.Milliseconds()
	out.Metadata.Timestamp = now.UTC()
	out.Metadata.TemplateID = vctx.TemplateID()
	out.Metadata.TemplateVersion = vctx.TemplateVersion()

	return out
}

func failureCode(r RuleExecutionResult) string {
	switch r.Err.(type) {
	case *TimeoutError:
		return "RULE_TIMEOUT"
	case *PanicError:
		return "RULE_PANIC"
	default:
		return "RULE_EXECUTION_FAILED"
	}
}

// criticalResult is the verdict for input that cannot be processed at all.
func criticalResult(cause error, start, now time.Time, vctx *ValidationContext) *ValidationResult {
	elapsed := now.Sub(start)
	return &ValidationResult{
		IsValid: false,
		Errors: []ValidationError{{
			ID:       "critical-invalid-rules",
			Message:  fmt.Sprintf("Critical validation failure: %v", cause),
			Severity: SeverityError,
			Code:     "CRITICAL_INVALID_RULES",
		}},
		Warnings: []ValidationWarning{},
		Score:    0,
		Metadata: ResultMetadata{
			ValidationTime:   elapsed,
			ValidationTimeMs: elapsed.Milliseconds(),
			Timestamp:        now.UTC(),
			TemplateID:       vctx.TemplateID(),
			TemplateVersion:  vctx.TemplateVersion(),
		},
	}
}
