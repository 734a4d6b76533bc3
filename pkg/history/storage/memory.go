package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"mercator-hq/ruleflow/pkg/history"
)

// MemoryStorage implements history.Storage with an in-memory map.
// Records are lost on restart.
type MemoryStorage struct {
	records map[string]*history.Record
	mu      sync.RWMutex
}

// NewMemoryStorage creates an empty in-memory backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		records: make(map[string]*history.Record),
	}
}

// Store persists a copy of record.
func (s *MemoryStorage) Store(ctx context.Context, record *history.Record) error {
	if err := ctx.Err(); err != nil {
		return history.NewStorageError("memory", "store", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[record.ID] = cloneRecord(record)
	return nil
}

// Query retrieves copies of the matching records.
func (s *MemoryStorage) Query(ctx context.Context, query *history.Query) ([]*history.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, history.NewStorageError("memory", "query", err)
	}

	s.mu.RLock()
	results := make([]*history.Record, 0, len(s.records))
	for _, record := range s.records {
		if query.Matches(record) {
			results = append(results, cloneRecord(record))
		}
	}
	s.mu.RUnlock()

	asc := query.SortOrder == history.SortAsc
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if !a.RecordedAt.Equal(b.RecordedAt) {
			if asc {
				return a.RecordedAt.Before(b.RecordedAt)
			}
			return a.RecordedAt.After(b.RecordedAt)
		}
		if asc {
			return a.ID < b.ID
		}
		return a.ID > b.ID
	})

	start := query.Offset
	if start > len(results) {
		return []*history.Record{}, nil
	}
	end := len(results)
	if query.Limit > 0 && start+query.Limit < end {
		end = start + query.Limit
	}
	return results[start:end], nil
}

// Count returns the number of matching records.
func (s *MemoryStorage) Count(ctx context.Context, query *history.Query) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, record := range s.records {
		if query.Matches(record) {
			count++
		}
	}
	return count, nil
}

// DeleteOlderThan removes records recorded before cutoff.
func (s *MemoryStorage) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for id, record := range s.records {
		if record.RecordedAt.Before(cutoff) {
			delete(s.records, id)
			count++
		}
	}
	return count, nil
}

// Ping always succeeds.
func (s *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}

// Close drops all records.
func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]*history.Record)
	return nil
}

// Len returns the number of stored records.
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func cloneRecord(r *history.Record) *history.Record {
	c := *r
	c.FailedRules = append([]string{}, r.FailedRules...)
	c.ErrorCodes = append([]string{}, r.ErrorCodes...)
	return &c
}
