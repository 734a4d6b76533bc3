package ruleset

import (
	"context"
	"errors"
	"testing"
	"time"

	"mercator-hq/ruleflow/pkg/ruleengine"
)

func mustCompiler(t *testing.T) *Compiler {
	t.Helper()
	c, err := NewCompiler()
	if err != nil {
		t.Fatalf("NewCompiler() error = %v", err)
	}
	return c
}

func ptrFloat(f float64) *float64 { return &f }

func TestCELValidator_Validate(t *testing.T) {
	data := map[string]any{
		"name":  "Ada",
		"age":   float64(36),
		"score": 0.72,
		"tags":  []any{"math", "engines"},
		"address": map[string]any{
			"city": "London",
		},
	}

	tests := []struct {
		name         string
		spec         RuleSpec
		data         any
		wantValid    bool
		wantScore    float64
		wantErrors   int
		wantWarnings int
		wantCode     string
		wantErr      bool
	}{
		{
			name:      "bool true",
			spec:      RuleSpec{ID: "r", Field: "name", Expression: `value == "Ada"`},
			wantValid: true,
			wantScore: 1,
		},
		{
			name:       "bool false is an error finding",
			spec:       RuleSpec{ID: "r", Field: "age", Expression: `value > 40`, Code: "TOO_YOUNG"},
			wantScore:  0,
			wantErrors: 1,
			wantCode:   "TOO_YOUNG",
		},
		{
			name:      "nested field path",
			spec:      RuleSpec{ID: "r", Field: "address.city", Expression: `value.startsWith("Lon")`},
			wantValid: true,
			wantScore: 1,
		},
		{
			name:      "numeric result above pass score",
			spec:      RuleSpec{ID: "r", Expression: `data.score`},
			wantValid: true,
			wantScore: 0.72,
		},
		{
			name:       "numeric result below custom pass score",
			spec:       RuleSpec{ID: "r", Expression: `data.score`, PassScore: ptrFloat(0.9)},
			wantScore:  0.72,
			wantErrors: 1,
		},
		{
			name:      "int result is clamped",
			spec:      RuleSpec{ID: "r", Expression: `size(data.tags) * 10`},
			wantValid: true,
			wantScore: 1,
		},
		{
			name:         "warning severity stays valid",
			spec:         RuleSpec{ID: "r", Field: "age", Expression: `value > 40`, Severity: "warning"},
			wantValid:    true,
			wantScore:    0,
			wantWarnings: 1,
		},
		{
			name:       "required field missing",
			spec:       RuleSpec{ID: "r", Field: "email", Required: true, Expression: `value != ""`},
			wantScore:  0,
			wantErrors: 1,
			wantCode:   "REQUIRED_FIELD_MISSING",
		},
		{
			name:      "optional field missing passes",
			spec:      RuleSpec{ID: "r", Field: "email", Expression: `value.contains("@")`},
			wantValid: true,
			wantScore: 1,
		},
		{
			name:    "string result is unsupported",
			spec:    RuleSpec{ID: "r", Expression: `data.name`},
			wantErr: true,
		},
		{
			name:    "runtime error",
			spec:    RuleSpec{ID: "r", Expression: `data.missing.deeper == 1`},
			wantErr: true,
		},
	}

	c := mustCompiler(t)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, err := c.Compile(tt.spec)
			if err != nil {
				t.Fatalf("Compile() error = %v", err)
			}

			in := tt.data
			if in == nil {
				in = data
			}
			out, err := rule.Validator.Validate(context.Background(), in, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			if out.IsValid != tt.wantValid {
				t.Errorf("IsValid = %v, want %v", out.IsValid, tt.wantValid)
			}
			if out.Score != tt.wantScore {
				t.Errorf("Score = %v, want %v", out.Score, tt.wantScore)
			}
			if len(out.Errors) != tt.wantErrors {
				t.Errorf("len(Errors) = %d, want %d", len(out.Errors), tt.wantErrors)
			}
			if len(out.Warnings) != tt.wantWarnings {
				t.Errorf("len(Warnings) = %d, want %d", len(out.Warnings), tt.wantWarnings)
			}
			if tt.wantCode != "" && (len(out.Errors) == 0 || out.Errors[0].Code != tt.wantCode) {
				t.Errorf("Errors = %+v, want code %q", out.Errors, tt.wantCode)
			}
		})
	}
}

func TestCELValidator_Context(t *testing.T) {
	c := mustCompiler(t)
	rule, err := c.Compile(RuleSpec{
		ID:         "locale",
		Field:      "locale",
		Expression: `!(value in ctx.constraints.blocked_locales) && ctx.attempt < 3`,
	})
	if err != nil {
		t.Fatal(err)
	}

	vctx := ruleengine.NewValidationContext(ruleengine.ContextOptions{
		CulturalConstraints: map[string]any{"blocked_locales": []any{"xx-XX"}},
		Attempt:             1,
	})

	tests := []struct {
		locale string
		want   bool
	}{
		{locale: "en-GB", want: true},
		{locale: "xx-XX", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.locale, func(t *testing.T) {
			out, err := rule.Validator.Validate(context.Background(), map[string]any{"locale": tt.locale}, vctx)
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if out.IsValid != tt.want {
				t.Errorf("IsValid = %v, want %v", out.IsValid, tt.want)
			}
		})
	}
}

func TestCompiler_Compile(t *testing.T) {
	c := mustCompiler(t)

	rule, err := c.Compile(RuleSpec{
		ID:           "age",
		Type:         "range",
		Field:        "age",
		Expression:   "value > 0",
		Priority:     ruleengine.PriorityOf(5),
		Dependencies: []string{"name"},
		Timeout:      250 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if rule.Type != ruleengine.RuleTypeRange || rule.EffectivePriority() != 5 || rule.Timeout != 250*time.Millisecond {
		t.Errorf("rule = %+v", rule)
	}
	if rule.Severity != ruleengine.SeverityError {
		t.Errorf("Severity = %q, want error", rule.Severity)
	}

	_, err = c.Compile(RuleSpec{ID: "bad", Expression: "value >"})
	var ce *CompileError
	if !errors.As(err, &ce) || ce.RuleID != "bad" {
		t.Errorf("Compile() error = %v, want *CompileError for bad", err)
	}
}

func TestCELValidator_WithEngine(t *testing.T) {
	sets, err := (&FileSource{Path: "testdata/persona.yaml", Compiler: mustCompiler(t)}).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	rs := sets[0]

	orch, err := ruleengine.NewOrchestrator(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	vctx := ruleengine.NewValidationContext(ruleengine.ContextOptions{
		CulturalConstraints: map[string]any{"blocked_locales": []any{"xx-XX"}},
		TemplateID:          rs.TemplateID,
		TemplateVersion:     rs.Version,
	})

	good := map[string]any{"name": "Ada", "age": float64(36), "locale": "en-GB", "bio": "short"}
	result := orch.ProcessRules(context.Background(), rs.Rules, good, vctx)
	if !result.IsValid {
		t.Fatalf("IsValid = false, errors = %+v", result.Errors)
	}
	if len(result.Warnings) != 1 || result.Warnings[0].ID != "bio-quality" {
		t.Errorf("Warnings = %+v, want bio-quality warning", result.Warnings)
	}
	if result.Metadata.TemplateID != "persona-card" {
		t.Errorf("TemplateID = %q", result.Metadata.TemplateID)
	}

	// An invalid outcome is not an execution failure, so nothing is skipped.
	bad := map[string]any{"age": float64(36), "locale": "xx-XX"}
	result = orch.ProcessRules(context.Background(), rs.Rules, bad, vctx)
	if result.IsValid {
		t.Fatal("IsValid = true, want false")
	}
	if result.Metadata.RulesSkipped != 0 {
		t.Errorf("RulesSkipped = %d, want 0", result.Metadata.RulesSkipped)
	}
	ids := map[string]bool{}
	for _, e := range result.Errors {
		ids[e.ID] = true
	}
	if !ids["name-present"] || !ids["locale-allowed"] {
		t.Errorf("errors = %+v, want name-present and locale-allowed", result.Errors)
	}
}
