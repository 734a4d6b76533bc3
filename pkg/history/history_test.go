package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"mercator-hq/ruleflow/pkg/ruleengine"
)

func TestQuery_Validate(t *testing.T) {
	early := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)

	tests := []struct {
		name    string
		query   Query
		max     int
		wantErr bool
	}{
		{name: "zero", query: Query{}},
		{name: "within max", query: Query{Limit: 50}, max: 50},
		{name: "over max", query: Query{Limit: 51}, max: 50, wantErr: true},
		{name: "default max", query: Query{Limit: MaxLimit + 1}, wantErr: true},
		{name: "negative limit", query: Query{Limit: -1}, wantErr: true},
		{name: "negative offset", query: Query{Offset: -1}, wantErr: true},
		{name: "bad sort", query: Query{SortOrder: "up"}, wantErr: true},
		{name: "range", query: Query{Since: &early, Until: &late}},
		{name: "inverted range", query: Query{Since: &late, Until: &early}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate(tt.max)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			var qe *QueryError
			if err != nil && !errors.As(err, &qe) {
				t.Errorf("Validate() error type = %T, want *QueryError", err)
			}
		})
	}
}

func TestQuery_ApplyDefaults(t *testing.T) {
	q := Query{}
	q.ApplyDefaults(25)
	if q.Limit != 25 || q.SortOrder != SortDesc {
		t.Errorf("ApplyDefaults(25) = %+v", q)
	}

	q = Query{Limit: 5, SortOrder: SortAsc}
	q.ApplyDefaults(0)
	if q.Limit != 5 || q.SortOrder != SortAsc {
		t.Errorf("ApplyDefaults kept = %+v", q)
	}

	q = Query{}
	q.ApplyDefaults(0)
	if q.Limit != DefaultLimit {
		t.Errorf("Limit = %d, want %d", q.Limit, DefaultLimit)
	}
}

func TestQuery_Matches(t *testing.T) {
	at := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r := &Record{Category: "persona", Version: "v1", PassID: "p", IsValid: true, RecordedAt: at}
	no := false

	tests := []struct {
		name  string
		query Query
		want  bool
	}{
		{name: "empty", query: Query{}, want: true},
		{name: "category", query: Query{Category: "persona", Version: "v1"}, want: true},
		{name: "other version", query: Query{Version: "v2"}, want: false},
		{name: "validity", query: Query{Valid: &no}, want: false},
		{name: "since equal", query: Query{Since: TimePtr(at)}, want: true},
		{name: "until equal", query: Query{Until: TimePtr(at)}, want: false},
		{name: "pass id", query: Query{PassID: "q"}, want: false},
	}
	for _, tt := range tests {
		if got := tt.query.Matches(r); got != tt.want {
			t.Errorf("%s: Matches() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestNewRecord(t *testing.T) {
	if NewRecord(context.Background(), nil, time.Now()) != nil {
		t.Error("NewRecord(nil) != nil")
	}
	if NewRecord(context.Background(), &ruleengine.PassReport{PassID: "p"}, time.Now()) != nil {
		t.Error("NewRecord(no result) != nil")
	}

	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	report := &ruleengine.PassReport{
		Result: &ruleengine.ValidationResult{
			IsValid:  true,
			Score:    0.9,
			Warnings: []ruleengine.ValidationWarning{{ID: "w"}},
			Metadata: ruleengine.ResultMetadata{
				PassID:          "from-metadata",
				TemplateID:      "tpl",
				TemplateVersion: "3",
				RulesExecuted:   1,
				RulesSkipped:    2,
			},
		},
		Results: []ruleengine.RuleExecutionResult{
			{RuleID: "s", Skipped: true},
			{RuleID: "ok", Success: true, Outcome: &ruleengine.ValidationOutcome{IsValid: true}},
		},
		Duration: time.Second,
	}

	ctx := WithRuleSet(context.Background(), "tone", "v9")
	r := NewRecord(ctx, report, now)

	if r.ID == "" || r.PassID != "from-metadata" {
		t.Errorf("identity = %q %q", r.ID, r.PassID)
	}
	if r.Category != "tone" || r.Version != "v9" || r.TemplateID != "tpl" || r.TemplateVersion != "3" {
		t.Errorf("rule set = %+v", r)
	}
	if r.WarningCount != 1 || r.RulesSkipped != 2 || r.Duration != time.Second || !r.RecordedAt.Equal(now) {
		t.Errorf("counters = %+v", r)
	}
	if len(r.FailedRules) != 0 || r.FailedRules == nil {
		t.Errorf("FailedRules = %#v, want empty", r.FailedRules)
	}
}

func TestRuleSetFrom(t *testing.T) {
	if c, v := RuleSetFrom(context.Background()); c != "" || v != "" {
		t.Errorf("RuleSetFrom(empty) = %q %q", c, v)
	}
}

func TestErrors(t *testing.T) {
	cause := errors.New("boom")
	for _, err := range []error{
		NewStorageError("sqlite", "store", cause),
		NewQueryError(&Query{}, cause),
		NewRetentionError(7, cause),
		NewExportError("csv", 3, cause),
	} {
		if !errors.Is(err, cause) {
			t.Errorf("%T does not unwrap to cause", err)
		}
		if err.Error() == "" {
			t.Errorf("%T has empty message", err)
		}
	}
}
