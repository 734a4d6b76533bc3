package cli

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"mercator-hq/ruleflow/pkg/history"
	"mercator-hq/ruleflow/pkg/ruleengine"
	"mercator-hq/ruleflow/pkg/ruleset"
)

func TestErrors(t *testing.T) {
	cfgErr := NewConfigError("engine.max_parallel_rules", "must be at least 1")
	if cfgErr.Error() != "config error in engine.max_parallel_rules: must be at least 1" {
		t.Errorf("ConfigError.Error() = %q", cfgErr.Error())
	}

	cause := errors.New("boom")
	cmdErr := NewCommandError("validate", cause)
	if cmdErr.Error() != "command validate failed: boom" || !errors.Is(cmdErr, cause) {
		t.Errorf("CommandError = %q", cmdErr.Error())
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"invalid", fmt.Errorf("persona: %w", ErrValidationFailed), ExitInvalid},
		{"config", NewCommandError("serve", NewConfigError("f", "m")), ExitUsage},
		{"other", errors.New("disk full"), ExitFailure},
	}
	for _, tt := range tests {
		if got := ExitCode(tt.err); got != tt.want {
			t.Errorf("%s: ExitCode() = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]OutputFormat{"": FormatText, "TEXT": FormatText, "json": FormatJSON, "csv": FormatCSV} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v, want %q", in, got, err, want)
		}
	}
	var cfgErr *ConfigError
	if _, err := ParseFormat("yaml"); !errors.As(err, &cfgErr) {
		t.Errorf("ParseFormat(yaml) error = %v, want ConfigError", err)
	}
}

func TestTextFormatter_Verdict(t *testing.T) {
	result := &ruleengine.ValidationResult{
		IsValid: false,
		Score:   0.5,
		Errors: []ruleengine.ValidationError{
			{ID: "adult", Field: "age", Code: "TOO_YOUNG", Message: "must be 18"},
		},
		Warnings: []ruleengine.ValidationWarning{
			{ID: "tone", Message: "too casual", Suggestion: "use formal register"},
		},
		Metadata: ruleengine.ResultMetadata{RulesExecuted: 2, RulesSkipped: 1},
	}

	var buf bytes.Buffer
	if err := (&TextFormatter{}).FormatTo(&buf, result); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"INVALID", "score=0.50", "skipped=1", "adult [age] (TOO_YOUNG): must be 18", "suggestion: use formal register"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTextFormatter_Plan(t *testing.T) {
	var buf bytes.Buffer
	err := (&TextFormatter{}).FormatTo(&buf, ruleengine.PlanSummary{
		Groups:    [][]string{{"a", "b"}, {"c"}},
		RuleCount: 3,
		Forced:    1,
	})
	if err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "3 rules in 2 groups") || !strings.Contains(out, "group 1: a, b") || !strings.Contains(out, "forced progress") {
		t.Errorf("plan output:\n%s", out)
	}
}

func TestTextFormatter_Tables(t *testing.T) {
	var buf bytes.Buffer
	f := &TextFormatter{}
	_ = f.FormatTo(&buf, []ruleset.Summary{{Category: "persona", Version: "v1", RuleCount: 4}})
	_ = f.FormatTo(&buf, []*history.Record{{Category: "persona", Version: "v1", IsValid: true, FailedRules: []string{"x", "y"}}})
	_ = f.FormatTo(&buf, 42)

	out := buf.String()
	for _, want := range []string{"CATEGORY", "persona", "FAILED RULES", "persona@v1", "x,y", "42"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := NewFormatter(FormatJSON).FormatTo(&buf, map[string]int{"n": 1}); err != nil {
		t.Fatal(err)
	}
	var got map[string]int
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil || got["n"] != 1 {
		t.Errorf("JSON output = %q", buf.String())
	}
}

func TestCSVFormatter(t *testing.T) {
	var buf bytes.Buffer
	records := []*history.Record{{ID: "1", Category: "persona", RecordedAt: time.Now()}}
	if err := NewFormatter(FormatCSV).FormatTo(&buf, records); err != nil {
		t.Fatal(err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil || len(rows) != 2 {
		t.Errorf("rows = %v, %v", rows, err)
	}

	if err := NewFormatter(FormatCSV).FormatTo(&buf, "text"); err == nil {
		t.Error("CSV of non-records expected error")
	}
}

func TestSimpleProgress(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewProgressReporter(buf, "files")
	p.Start(4)
	p.Update(2)
	p.Finish()
	p.Error(errors.New("bad file"))

	out := buf.String()
	if !strings.Contains(out, "(4/4 files)") || !strings.Contains(out, "50.0%") || !strings.Contains(out, "bad file") {
		t.Errorf("progress output = %q", out)
	}

	empty := &bytes.Buffer{}
	z := NewProgressReporter(empty, "")
	z.Start(0)
	z.Update(0)
	if empty.Len() != 0 {
		t.Errorf("zero total rendered %q", empty.String())
	}

	var np ProgressReporter = NoProgress{}
	np.Start(1)
	np.Finish()
}

func TestSetupSignalHandler(t *testing.T) {
	ctx, stop := SetupSignalHandler(context.Background())
	select {
	case <-ctx.Done():
		t.Fatal("context cancelled before any signal")
	default:
	}
	stop()
	<-ctx.Done()
}
