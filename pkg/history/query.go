package history

import (
	"fmt"
	"time"
)

// Query limits used when the caller configures none.
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// Validate checks q against maxLimit. A non-positive maxLimit uses MaxLimit.
func (q *Query) Validate(maxLimit int) error {
	if maxLimit <= 0 {
		maxLimit = MaxLimit
	}
	if q.Limit < 0 {
		return NewQueryError(q, fmt.Errorf("limit must be >= 0, got %d", q.Limit))
	}
	if q.Limit > maxLimit {
		return NewQueryError(q, fmt.Errorf("limit must be <= %d, got %d", maxLimit, q.Limit))
	}
	if q.Offset < 0 {
		return NewQueryError(q, fmt.Errorf("offset must be >= 0, got %d", q.Offset))
	}
	if q.SortOrder != "" && q.SortOrder != SortAsc && q.SortOrder != SortDesc {
		return NewQueryError(q, fmt.Errorf("invalid sort order: %s (must be 'asc' or 'desc')", q.SortOrder))
	}
	if q.Since != nil && q.Until != nil && q.Since.After(*q.Until) {
		return NewQueryError(q, fmt.Errorf("since must be before until"))
	}
	return nil
}

// ApplyDefaults fills the limit and sort order. A non-positive
// defaultLimit uses DefaultLimit.
func (q *Query) ApplyDefaults(defaultLimit int) {
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}
	if q.Limit == 0 {
		q.Limit = defaultLimit
	}
	if q.SortOrder == "" {
		q.SortOrder = SortDesc
	}
}

// Matches reports whether r passes q's filters. Pagination is ignored.
func (q *Query) Matches(r *Record) bool {
	if q.Category != "" && r.Category != q.Category {
		return false
	}
	if q.Version != "" && r.Version != q.Version {
		return false
	}
	if q.PassID != "" && r.PassID != q.PassID {
		return false
	}
	if q.Valid != nil && r.IsValid != *q.Valid {
		return false
	}
	if q.Since != nil && r.RecordedAt.Before(*q.Since) {
		return false
	}
	if q.Until != nil && !r.RecordedAt.Before(*q.Until) {
		return false
	}
	return true
}

// TimePtr returns a pointer to t, convenient for building queries.
func TimePtr(t time.Time) *time.Time {
	return &t
}
