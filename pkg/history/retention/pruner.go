package retention

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"mercator-hq/ruleflow/pkg/config"
	"mercator-hq/ruleflow/pkg/history"
	"mercator-hq/ruleflow/pkg/history/export"
)

// Result reports what one pruning cycle removed.
type Result struct {
	ByAge    int64 `json:"by_age"`
	ByCount  int64 `json:"by_count"`
	Archived int   `json:"archived"`
}

// Total returns the number of deleted records.
func (r Result) Total() int64 {
	return r.ByAge + r.ByCount
}

// Pruner enforces retention on history records.
type Pruner struct {
	storage history.Storage
	config  config.RetentionConfig
	logger  *slog.Logger
	now     func() time.Time
}

// NewPruner creates a pruner for storage.
func NewPruner(storage history.Storage, cfg config.RetentionConfig, logger *slog.Logger) *Pruner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{
		storage: storage,
		config:  cfg,
		logger:  logger.With("component", "history.retention"),
		now:     time.Now,
	}
}

// Prune runs one cycle: records older than the retention period are
// deleted first, then the oldest records beyond MaxRecords.
func (p *Pruner) Prune(ctx context.Context) (Result, error) {
	var res Result

	if p.config.Days > 0 {
		deleted, archived, err := p.pruneByAge(ctx)
		res.ByAge, res.Archived = deleted, res.Archived+archived
		if err != nil {
			return res, history.NewRetentionError(p.config.Days, fmt.Errorf("prune by age: %w", err))
		}
	}

	if p.config.MaxRecords > 0 {
		deleted, archived, err := p.pruneByCount(ctx)
		res.ByCount, res.Archived = deleted, res.Archived+archived
		if err != nil {
			return res, history.NewRetentionError(p.config.Days, fmt.Errorf("prune by count: %w", err))
		}
	}

	if res.Total() == 0 {
		p.logger.Debug("no history records pruned",
			"retention_days", p.config.Days,
			"max_records", p.config.MaxRecords,
		)
	} else {
		p.logger.Info("history pruning completed",
			"deleted_by_age", res.ByAge,
			"deleted_by_count", res.ByCount,
			"archived", res.Archived,
			"retention_days", p.config.Days,
			"max_records", p.config.MaxRecords,
		)
	}
	return res, nil
}

func (p *Pruner) pruneByAge(ctx context.Context) (int64, int, error) {
	cutoff := p.now().AddDate(0, 0, -p.config.Days)

	archived, err := p.archive(ctx, &history.Query{Until: &cutoff, SortOrder: history.SortAsc})
	if err != nil {
		return 0, 0, err
	}
	deleted, err := p.storage.DeleteOlderThan(ctx, cutoff)
	return deleted, archived, err
}

// pruneByCount deletes the oldest records until at most MaxRecords remain.
// Records sharing the boundary timestamp are removed together.
func (p *Pruner) pruneByCount(ctx context.Context) (int64, int, error) {
	total, err := p.storage.Count(ctx, &history.Query{})
	if err != nil {
		return 0, 0, err
	}
	excess := total - p.config.MaxRecords
	if excess <= 0 {
		return 0, 0, nil
	}

	oldest, err := p.storage.Query(ctx, &history.Query{
		Limit:     int(excess),
		SortOrder: history.SortAsc,
	})
	if err != nil {
		return 0, 0, err
	}
	if len(oldest) == 0 {
		return 0, 0, nil
	}

	cutoff := oldest[len(oldest)-1].RecordedAt.Add(time.Nanosecond)

	archived := 0
	if p.config.ArchivePath != "" {
		if err := p.writeArchive(ctx, oldest); err != nil {
			return 0, 0, err
		}
		archived = len(oldest)
	}

	deleted, err := p.storage.DeleteOlderThan(ctx, cutoff)
	return deleted, archived, err
}

func (p *Pruner) archive(ctx context.Context, q *history.Query) (int, error) {
	if p.config.ArchivePath == "" {
		return 0, nil
	}
	records, err := p.storage.Query(ctx, q)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}
	if err := p.writeArchive(ctx, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

func (p *Pruner) writeArchive(ctx context.Context, records []*history.Record) error {
	if err := os.MkdirAll(p.config.ArchivePath, 0o755); err != nil {
		return fmt.Errorf("create archive directory: %w", err)
	}

	name := fmt.Sprintf("history-%s.json", p.now().UTC().Format("20060102T150405.000000000"))
	path := filepath.Join(p.config.ArchivePath, name)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create archive file: %w", err)
	}
	if err := export.NewJSONExporter(false).Export(ctx, records, f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close archive file: %w", err)
	}

	p.logger.Info("history records archived", "path", path, "count", len(records))
	return nil
}
