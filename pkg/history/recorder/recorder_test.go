package recorder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mercator-hq/ruleflow/pkg/history"
	"mercator-hq/ruleflow/pkg/history/storage"
	"mercator-hq/ruleflow/pkg/ruleengine"
)

func report(passID string, valid bool) *ruleengine.PassReport {
	return &ruleengine.PassReport{
		PassID: passID,
		Result: &ruleengine.ValidationResult{
			IsValid: valid,
			Score:   1,
			Errors: []ruleengine.ValidationError{
				{ID: "e1", Code: "REQUIRED"},
				{ID: "e2", Code: "REQUIRED"},
				{ID: "e3", Code: "FORMAT"},
			},
			Metadata: ruleengine.ResultMetadata{
				RulesExecuted: 2,
				Timestamp:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
				PassID:        passID,
			},
		},
		Results: []ruleengine.RuleExecutionResult{
			{RuleID: "ok", Success: true, Outcome: &ruleengine.ValidationOutcome{IsValid: true}},
			{RuleID: "bad", Success: true, Outcome: &ruleengine.ValidationOutcome{IsValid: false}},
			{RuleID: "err", Success: false},
			{RuleID: "skip", Skipped: true},
		},
		Duration: 3 * time.Millisecond,
	}
}

func TestRecorder_ObservePass(t *testing.T) {
	store := storage.NewMemoryStorage()
	rec := New(store, Config{}, nil)

	ctx := history.WithRuleSet(context.Background(), "persona", "v2")
	rec.ObservePass(ctx, report("p1", false))
	rec.ObservePass(ctx, nil)
	rec.ObservePass(ctx, &ruleengine.PassReport{PassID: "empty"})

	if err := rec.Close(); err != nil {
		t.Fatal(err)
	}

	records, err := store.Query(context.Background(), &history.Query{})
	if err != nil || len(records) != 1 {
		t.Fatalf("Query() = %d records, %v, want 1", len(records), err)
	}
	r := records[0]
	if r.PassID != "p1" || r.Category != "persona" || r.Version != "v2" {
		t.Errorf("record identity = %s %s@%s", r.PassID, r.Category, r.Version)
	}
	if r.ErrorCount != 3 || r.IsValid {
		t.Errorf("verdict = valid %v errors %d", r.IsValid, r.ErrorCount)
	}
	if len(r.FailedRules) != 2 || r.FailedRules[0] != "bad" || r.FailedRules[1] != "err" {
		t.Errorf("FailedRules = %v, want [bad err]", r.FailedRules)
	}
	if len(r.ErrorCodes) != 2 || r.ErrorCodes[0] != "REQUIRED" || r.ErrorCodes[1] != "FORMAT" {
		t.Errorf("ErrorCodes = %v, want [REQUIRED FORMAT]", r.ErrorCodes)
	}
	if rec.Recorded() != 1 {
		t.Errorf("Recorded() = %d, want 1", rec.Recorded())
	}
}

// blockingStorage blocks every Store until release is closed.
type blockingStorage struct {
	*storage.MemoryStorage
	release chan struct{}
	once    sync.Once
	started chan struct{}
}

func (b *blockingStorage) Store(ctx context.Context, r *history.Record) error {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return b.MemoryStorage.Store(ctx, r)
}

func TestRecorder_QueueFull(t *testing.T) {
	store := &blockingStorage{
		MemoryStorage: storage.NewMemoryStorage(),
		release:       make(chan struct{}),
		started:       make(chan struct{}),
	}
	rec := New(store, Config{AsyncBuffer: 1, WriteTimeout: time.Minute}, nil)

	// First record is picked up by the worker and blocks in Store.
	if err := rec.Record(&history.Record{ID: "1"}); err != nil {
		t.Fatal(err)
	}
	<-store.started

	// Second fills the queue, third overflows.
	if err := rec.Record(&history.Record{ID: "2"}); err != nil {
		t.Fatal(err)
	}
	if err := rec.Record(&history.Record{ID: "3"}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Record() error = %v, want ErrQueueFull", err)
	}

	close(store.release)
	_ = rec.Close()

	if rec.Dropped() != 1 || rec.Recorded() != 2 {
		t.Errorf("Dropped() = %d, Recorded() = %d, want 1 and 2", rec.Dropped(), rec.Recorded())
	}
	if store.Len() != 2 {
		t.Errorf("stored %d records, want 2", store.Len())
	}
}

func TestRecorder_Closed(t *testing.T) {
	rec := New(storage.NewMemoryStorage(), Config{}, nil)
	_ = rec.Close()
	_ = rec.Close()

	if err := rec.Record(&history.Record{ID: "late"}); !errors.Is(err, history.ErrRecorderClosed) {
		t.Errorf("Record() after Close error = %v, want ErrRecorderClosed", err)
	}
}

type failingStorage struct{ *storage.MemoryStorage }

func (failingStorage) Store(context.Context, *history.Record) error {
	return history.NewStorageError("test", "store", errors.New("disk full"))
}

func TestRecorder_StoreFailure(t *testing.T) {
	rec := New(failingStorage{storage.NewMemoryStorage()}, Config{}, nil)
	_ = rec.Record(&history.Record{ID: "x"})
	_ = rec.Close()

	if rec.Failed() != 1 || rec.Recorded() != 0 {
		t.Errorf("Failed() = %d, Recorded() = %d", rec.Failed(), rec.Recorded())
	}
}

func TestRecorder_Orchestrator(t *testing.T) {
	store := storage.NewMemoryStorage()
	rec := New(store, Config{}, nil)

	orch, err := ruleengine.NewOrchestrator(nil, nil, ruleengine.WithObserver(rec))
	if err != nil {
		t.Fatal(err)
	}

	rules := []ruleengine.Rule{{
		ID: "always",
		Validator: ruleengine.ValidatorFunc(func(context.Context, any, *ruleengine.ValidationContext) (*ruleengine.ValidationOutcome, error) {
			return &ruleengine.ValidationOutcome{IsValid: true, Score: 1}, nil
		}),
	}}
	ctx := history.WithRuleSet(context.Background(), "tone", "v1")
	result := orch.ProcessRules(ctx, rules, map[string]any{}, nil)
	_ = rec.Close()

	records, _ := store.Query(context.Background(), &history.Query{Category: "tone"})
	if len(records) != 1 || records[0].PassID != result.Metadata.PassID {
		t.Fatalf("records = %+v, want one for pass %s", records, result.Metadata.PassID)
	}
}
