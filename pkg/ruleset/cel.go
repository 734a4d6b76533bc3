package ruleset

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"mercator-hq/ruleflow/pkg/ruleengine"
)

const (
	// DefaultCostLimit bounds the evaluation cost of a single expression.
	DefaultCostLimit uint64 = 1000000

	// DefaultPassScore is the minimum numeric result treated as valid.
	DefaultPassScore = 0.5
)

// ErrUnsupportedResult is returned when an expression yields neither a
// bool nor a number.
var ErrUnsupportedResult = errors.New("expression must return bool, int or double")

// Compiler turns rule specs into engine rules backed by CEL programs.
//
// Expressions see three variables:
//
//	data  the whole data object
//	value the value at the rule's field path, or null
//	ctx   a map view of the validation context: request, variables,
//	      constraints, signals, attempt, previous_errors
type Compiler struct {
	env       *cel.Env
	costLimit uint64
}

// NewCompiler creates a compiler with the default cost limit.
func NewCompiler() (*Compiler, error) {
	env, err := cel.NewEnv(
		cel.Variable("data", cel.DynType),
		cel.Variable("value", cel.DynType),
		cel.Variable("ctx", cel.DynType),
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &Compiler{env: env, costLimit: DefaultCostLimit}, nil
}

// Compile compiles spec into an engine rule.
func (c *Compiler) Compile(spec RuleSpec) (ruleengine.Rule, error) {
	ast, issues := c.env.Compile(spec.Expression)
	if issues != nil && issues.Err() != nil {
		return ruleengine.Rule{}, &CompileError{RuleID: spec.ID, Expression: spec.Expression, Cause: issues.Err()}
	}

	prog, err := c.env.Program(ast,
		cel.CostLimit(c.costLimit),
		cel.InterruptCheckFrequency(100),
	)
	if err != nil {
		return ruleengine.Rule{}, &CompileError{RuleID: spec.ID, Expression: spec.Expression, Cause: err}
	}

	severity := ruleengine.SeverityError
	if spec.Severity == string(ruleengine.SeverityWarning) {
		severity = ruleengine.SeverityWarning
	}
	ruleType := ruleengine.RuleTypeCustom
	if spec.Type != "" {
		ruleType = ruleengine.RuleType(spec.Type)
	}
	passScore := DefaultPassScore
	if spec.PassScore != nil {
		passScore = *spec.PassScore
	}

	v := &CELValidator{
		ruleID:     spec.ID,
		field:      spec.Field,
		required:   spec.Required,
		severity:   severity,
		message:    spec.Message,
		code:       spec.Code,
		suggestion: spec.Suggestion,
		passScore:  passScore,
		program:    prog,
	}

	return ruleengine.Rule{
		ID:           spec.ID,
		Type:         ruleType,
		Field:        spec.Field,
		Validator:    v,
		Severity:     severity,
		Message:      spec.Message,
		Required:     spec.Required,
		Priority:     spec.Priority,
		Dependencies: append([]string(nil), spec.Dependencies...),
		Timeout:      spec.Timeout,
	}, nil
}

// CELValidator evaluates one compiled expression. It is safe for concurrent use.
type CELValidator struct {
	ruleID     string
	field      string
	required   bool
	severity   ruleengine.Severity
	message    string
	code       string
	suggestion string
	passScore  float64
	program    cel.Program
}

// Validate implements ruleengine.Validator.
func (v *CELValidator) Validate(ctx context.Context, data any, vctx *ruleengine.ValidationContext) (*ruleengine.ValidationOutcome, error) {
	value, found := lookup(data, v.field)

	if v.field != "" && !found {
		if v.required {
			return &ruleengine.ValidationOutcome{
				IsValid: false,
				Errors: []ruleengine.ValidationError{{
					ID:       v.ruleID,
					Field:    v.field,
					Message:  fmt.Sprintf("required field %q is missing", v.field),
					Severity: ruleengine.SeverityError,
					Code:     "REQUIRED_FIELD_MISSING",
				}},
				Warnings: []ruleengine.ValidationWarning{},
				Score:    0,
			}, nil
		}
		// Optional and absent: nothing to check.
		return v.outcome(true, 1), nil
	}

	out, _, err := v.program.ContextEval(ctx, map[string]any{
		"data":  data,
		"value": value,
		"ctx":   contextView(vctx),
	})
	if err != nil {
		return nil, fmt.Errorf("evaluation failed: %w", err)
	}

	switch out.Type() {
	case types.BoolType:
		ok := out.Value().(bool)
		score := 0.0
		if ok {
			score = 1
		}
		return v.outcome(ok, score), nil

	case types.DoubleType, types.IntType, types.UintType:
		var score float64
		switch n := out.Value().(type) {
		case float64:
			score = n
		case int64:
			score = float64(n)
		case uint64:
			score = float64(n)
		}
		score = clamp(score)
		return v.outcome(score >= v.passScore, score), nil

	default:
		return nil, fmt.Errorf("%w, got %s", ErrUnsupportedResult, out.Type().TypeName())
	}
}

func (v *CELValidator) outcome(ok bool, score float64) *ruleengine.ValidationOutcome {
	o := &ruleengine.ValidationOutcome{
		IsValid:  true,
		Errors:   []ruleengine.ValidationError{},
		Warnings: []ruleengine.ValidationWarning{},
		Score:    score,
	}
	if ok {
		return o
	}

	msg := v.message
	if msg == "" {
		msg = fmt.Sprintf("rule %s failed", v.ruleID)
	}

	if v.severity == ruleengine.SeverityWarning {
		o.Warnings = append(o.Warnings, ruleengine.ValidationWarning{
			ID:         v.ruleID,
			Field:      v.field,
			Message:    msg,
			Suggestion: v.suggestion,
		})
		return o
	}

	o.IsValid = false
	o.Errors = append(o.Errors, ruleengine.ValidationError{
		ID:       v.ruleID,
		Field:    v.field,
		Message:  msg,
		Severity: ruleengine.SeverityError,
		Code:     v.code,
	})
	return o
}

// lookup resolves a dotted path through nested maps. An empty path
// resolves to nil and reports not found.
func lookup(data any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	cur := data
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func contextView(vctx *ruleengine.ValidationContext) map[string]any {
	prev := vctx.PreviousErrors()
	errs := make([]any, len(prev))
	for i, e := range prev {
		errs[i] = map[string]any{
			"id":       e.ID,
			"field":    e.Field,
			"message":  e.Message,
			"severity": string(e.Severity),
			"code":     e.Code,
		}
	}
	return map[string]any{
		"request":         vctx.Request(),
		"variables":       vctx.TemplateVariables(),
		"constraints":     vctx.CulturalConstraints(),
		"signals":         vctx.UserSignals(),
		"attempt":         int64(vctx.Attempt()),
		"previous_errors": errs,
		"template_id":     vctx.TemplateID(),
	}
}

func clamp(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
