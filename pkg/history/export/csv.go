package export

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"mercator-hq/ruleflow/pkg/history"
)

// CSVExporter writes records as CSV, one row per record. List fields are
// joined with ";".
type CSVExporter struct {
	// IncludeHeader writes a header row first.
	IncludeHeader bool
}

// NewCSVExporter creates a CSV exporter.
func NewCSVExporter(includeHeader bool) *CSVExporter {
	return &CSVExporter{IncludeHeader: includeHeader}
}

// Header returns the column names in row order.
func Header() []string {
	return []string{
		"id", "pass_id",
		"category", "version", "template_id", "template_version",
		"is_valid", "score", "error_count", "warning_count",
		"rules_executed", "rules_skipped", "failed_rules", "error_codes",
		"duration_ms", "validated_at", "recorded_at",
	}
}

// Export writes records to w.
func (e *CSVExporter) Export(ctx context.Context, records []*history.Record, w io.Writer) error {
	writer := csv.NewWriter(w)

	if e.IncludeHeader {
		if err := writer.Write(Header()); err != nil {
			return history.NewExportError(FormatCSV, len(records), err)
		}
	}

	for i, record := range records {
		if i%100 == 0 {
			if err := ctx.Err(); err != nil {
				return history.NewExportError(FormatCSV, len(records), err)
			}
		}
		if err := writer.Write(row(record)); err != nil {
			return history.NewExportError(FormatCSV, len(records), err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return history.NewExportError(FormatCSV, len(records), err)
	}
	return nil
}

func row(r *history.Record) []string {
	return []string{
		r.ID, r.PassID,
		r.Category, r.Version, r.TemplateID, r.TemplateVersion,
		strconv.FormatBool(r.IsValid),
		strconv.FormatFloat(r.Score, 'f', -1, 64),
		strconv.Itoa(r.ErrorCount),
		strconv.Itoa(r.WarningCount),
		strconv.Itoa(r.RulesExecuted),
		strconv.Itoa(r.RulesSkipped),
		strings.Join(r.FailedRules, ";"),
		strings.Join(r.ErrorCodes, ";"),
		strconv.FormatInt(r.Duration.Milliseconds(), 10),
		formatTime(r.ValidatedAt),
		formatTime(r.RecordedAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
