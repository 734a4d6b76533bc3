package export

import (
	"context"
	"encoding/json"
	"io"

	"mercator-hq/ruleflow/pkg/history"
)

// JSONExporter writes records as a JSON array.
type JSONExporter struct {
	// Pretty enables indentation.
	Pretty bool
}

// NewJSONExporter creates a JSON exporter.
func NewJSONExporter(pretty bool) *JSONExporter {
	return &JSONExporter{Pretty: pretty}
}

// Export writes records to w. An empty slice is written as "[]".
func (e *JSONExporter) Export(ctx context.Context, records []*history.Record, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return history.NewExportError(FormatJSON, len(records), err)
	}
	if records == nil {
		records = []*history.Record{}
	}

	enc := json.NewEncoder(w)
	if e.Pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(records); err != nil {
		return history.NewExportError(FormatJSON, len(records), err)
	}
	return nil
}
