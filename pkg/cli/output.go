package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"mercator-hq/ruleflow/pkg/history"
	"mercator-hq/ruleflow/pkg/history/export"
	"mercator-hq/ruleflow/pkg/ruleengine"
	"mercator-hq/ruleflow/pkg/ruleset"
)

// OutputFormat represents the output format for command results.
type OutputFormat string

const (
	// FormatText is human-readable output (default).
	FormatText OutputFormat = "text"
	// FormatJSON is indented JSON output.
	FormatJSON OutputFormat = "json"
	// FormatCSV is CSV output. Only history records support it.
	FormatCSV OutputFormat = "csv"
)

// ParseFormat validates a --format flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON, FormatCSV:
		return f, nil
	default:
		return "", NewConfigError("format", fmt.Sprintf("unsupported output format %q (text, json, csv)", s))
	}
}

// Formatter writes command results.
type Formatter interface {
	FormatTo(w io.Writer, data any) error
}

// NewFormatter creates the formatter for format.
func NewFormatter(format OutputFormat) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatCSV:
		return &CSVFormatter{}
	default:
		return &TextFormatter{}
	}
}

// JSONFormatter formats output as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatTo writes data to w as JSON.
func (f *JSONFormatter) FormatTo(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	if f.Indent {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(data)
}

// CSVFormatter writes history records as CSV.
type CSVFormatter struct{}

// FormatTo writes data to w. data must be []*history.Record.
func (f *CSVFormatter) FormatTo(w io.Writer, data any) error {
	records, ok := data.([]*history.Record)
	if !ok {
		return fmt.Errorf("csv output is not supported for %T", data)
	}
	return export.NewCSVExporter(true).Export(context.Background(), records, w)
}

// TextFormatter writes a human-readable rendering of ruleflow results.
// Unknown types are printed with %v.
type TextFormatter struct{}

// FormatTo writes data to w as text.
func (f *TextFormatter) FormatTo(w io.Writer, data any) error {
	switch v := data.(type) {
	case *ruleengine.ValidationResult:
		return writeVerdict(w, v)
	case ruleengine.PlanSummary:
		return writePlan(w, v)
	case []ruleset.Summary:
		return writeRuleSets(w, v)
	case []*history.Record:
		return writeRecords(w, v)
	default:
		_, err := fmt.Fprintf(w, "%v\n", data)
		return err
	}
}

func writeVerdict(w io.Writer, r *ruleengine.ValidationResult) error {
	verdict := "✓ VALID"
	if !r.IsValid {
		verdict = "✗ INVALID"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s  score=%.2f  rules=%d  skipped=%d  time=%dms\n",
		verdict, r.Score, r.Metadata.RulesExecuted, r.Metadata.RulesSkipped, r.Metadata.ValidationTimeMs)

	for _, e := range r.Errors {
		fmt.Fprintf(&b, "  error   %s", e.ID)
		if e.Field != "" {
			fmt.Fprintf(&b, " [%s]", e.Field)
		}
		if e.Code != "" {
			fmt.Fprintf(&b, " (%s)", e.Code)
		}
		fmt.Fprintf(&b, ": %s\n", e.Message)
	}
	for _, warn := range r.Warnings {
		fmt.Fprintf(&b, "  warning %s", warn.ID)
		if warn.Field != "" {
			fmt.Fprintf(&b, " [%s]", warn.Field)
		}
		fmt.Fprintf(&b, ": %s\n", warn.Message)
		if warn.Suggestion != "" {
			fmt.Fprintf(&b, "          suggestion: %s\n", warn.Suggestion)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writePlan(w io.Writer, p ruleengine.PlanSummary) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%d rules in %d groups\n", p.RuleCount, len(p.Groups))
	for i, g := range p.Groups {
		fmt.Fprintf(&b, "  group %d: %s\n", i+1, strings.Join(g, ", "))
	}
	if p.Forced > 0 {
		fmt.Fprintf(&b, "warning: %d dependency cycle(s) broken by forced progress\n", p.Forced)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeRuleSets(w io.Writer, sets []ruleset.Summary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tVERSION\tRULES\tSOURCE")
	for _, s := range sets {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", s.Category, s.Version, s.RuleCount, s.Source)
	}
	return tw.Flush()
}

func writeRecords(w io.Writer, records []*history.Record) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RECORDED\tRULESET\tVALID\tSCORE\tERRORS\tFAILED RULES")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s@%s\t%t\t%.2f\t%d\t%s\n",
			r.RecordedAt.Format("2006-01-02 15:04:05"),
			r.Category, r.Version, r.IsValid, r.Score, r.ErrorCount,
			strings.Join(r.FailedRules, ","))
	}
	return tw.Flush()
}
