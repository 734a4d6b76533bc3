package ruleengine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func passing(score float64) Validator {
	return ValidatorFunc(func(ctx context.Context, data any, vctx *ValidationContext) (*ValidationOutcome, error) {
		return &ValidationOutcome{IsValid: true, Score: score}, nil
	})
}

func failing(msg string) Validator {
	return ValidatorFunc(func(ctx context.Context, data any, vctx *ValidationContext) (*ValidationOutcome, error) {
		return nil, errors.New(msg)
	})
}

func sleeping(d time.Duration, score float64) Validator {
	return ValidatorFunc(func(ctx context.Context, data any, vctx *ValidationContext) (*ValidationOutcome, error) {
		time.Sleep(d)
		return &ValidationOutcome{IsValid: true, Score: score}, nil
	})
}

// callLog records validator start and end times by rule id.
type callLog struct {
	mu     sync.Mutex
	starts map[string]time.Time
	ends   map[string]time.Time
	calls  map[string]int
}

func newCallLog() *callLog {
	return &callLog{
		starts: make(map[string]time.Time),
		ends:   make(map[string]time.Time),
		calls:  make(map[string]int),
	}
}

func (l *callLog) wrap(id string, v Validator) Validator {
	return ValidatorFunc(func(ctx context.Context, data any, vctx *ValidationContext) (*ValidationOutcome, error) {
		l.mu.Lock()
		l.starts[id] = time.Now()
		l.calls[id]++
		l.mu.Unlock()

		out, err := v.Validate(ctx, data, vctx)

		l.mu.Lock()
		l.ends[id] = time.Now()
		l.mu.Unlock()
		return out, err
	})
}

func (l *callLog) count(id string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[id]
}

func ids(rules []Rule) []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.ID
	}
	return out
}

func groupIDs(plan *ExecutionPlan) [][]string {
	out := make([][]string, len(plan.ParallelGroups))
	for i, g := range plan.ParallelGroups {
		out[i] = ids(g)
	}
	return out
}
