package history

import (
	"context"
	"io"
	"time"
)

// Record is the stored summary of one validation pass.
type Record struct {
	// Identity
	ID     string `json:"id"`      // UUID v4
	PassID string `json:"pass_id"` // From the orchestrator

	// Rule set
	Category        string `json:"category"`
	Version         string `json:"version"`
	TemplateID      string `json:"template_id,omitempty"`
	TemplateVersion string `json:"template_version,omitempty"`

	// Verdict
	IsValid      bool    `json:"is_valid"`
	Score        float64 `json:"score"`
	ErrorCount   int     `json:"error_count"`
	WarningCount int     `json:"warning_count"`

	// Execution
	RulesExecuted int           `json:"rules_executed"`
	RulesSkipped  int           `json:"rules_skipped"`
	FailedRules   []string      `json:"failed_rules"` // Rules that errored or reported invalid data
	ErrorCodes    []string      `json:"error_codes"`  // Distinct error codes, in first-seen order
	Duration      time.Duration `json:"duration"`

	// Timestamps
	ValidatedAt time.Time `json:"validated_at"` // Verdict timestamp
	RecordedAt  time.Time `json:"recorded_at"`  // When the record was built
}

// Sort orders.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// Query defines filter parameters for querying history records.
// Records are ordered by RecordedAt.
type Query struct {
	// Filters
	Category string `json:"category,omitempty"`
	Version  string `json:"version,omitempty"`
	PassID   string `json:"pass_id,omitempty"`
	Valid    *bool  `json:"valid,omitempty"`

	// Time range
	Since *time.Time `json:"since,omitempty"` // Inclusive
	Until *time.Time `json:"until,omitempty"` // Exclusive

	// Pagination
	Limit  int `json:"limit,omitempty"`  // 0 means no limit
	Offset int `json:"offset,omitempty"` // Skip N records

	// Sorting
	SortOrder string `json:"sort_order,omitempty"` // "asc" or "desc" (default)
}

// Storage defines the interface for history storage backends.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Store persists a record.
	Store(ctx context.Context, record *Record) error

	// Query retrieves records matching the query. Returns an empty slice
	// if no records match.
	Query(ctx context.Context, query *Query) ([]*Record, error)

	// Count returns the number of records matching the query filters.
	// Pagination fields are ignored.
	Count(ctx context.Context, query *Query) (int64, error)

	// DeleteOlderThan removes records recorded strictly before cutoff
	// and returns how many were deleted.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the backend.
	Close() error
}

// Exporter writes records in some format.
type Exporter interface {
	Export(ctx context.Context, records []*Record, w io.Writer) error
}
