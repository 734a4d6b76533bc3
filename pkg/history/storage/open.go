package storage

import (
	"fmt"
	"log/slog"

	"mercator-hq/ruleflow/pkg/config"
	"mercator-hq/ruleflow/pkg/history"
)

// Open creates the backend selected by cfg.Backend.
func Open(cfg config.HistoryConfig, logger *slog.Logger) (history.Storage, error) {
	switch cfg.Backend {
	case "", config.HistoryBackendMemory:
		return NewMemoryStorage(), nil
	case config.HistoryBackendSQLite:
		return NewSQLiteStorage(cfg.SQLite, logger)
	default:
		return nil, fmt.Errorf("unsupported history backend: %s", cfg.Backend)
	}
}
