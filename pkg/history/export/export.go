package export

import (
	"fmt"

	"mercator-hq/ruleflow/pkg/history"
)

// Supported formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// New returns the exporter for format.
func New(format string) (history.Exporter, error) {
	switch format {
	case "", FormatJSON:
		return NewJSONExporter(true), nil
	case FormatCSV:
		return NewCSVExporter(true), nil
	default:
		return nil, fmt.Errorf("unsupported export format: %s (must be 'json' or 'csv')", format)
	}
}
