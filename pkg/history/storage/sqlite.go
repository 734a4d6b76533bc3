package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"mercator-hq/ruleflow/pkg/config"
	"mercator-hq/ruleflow/pkg/history"
)

const backendSQLite = "sqlite"

// SQLiteStorage implements history.Storage on SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	config config.SQLiteConfig
	insert *sql.Stmt
	logger *slog.Logger
}

// NewSQLiteStorage opens (creating if needed) the database at cfg.Path
// and initializes the schema.
func NewSQLiteStorage(cfg config.SQLiteConfig, logger *slog.Logger) (*SQLiteStorage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "history.storage.sqlite")

	if cfg.Path == "" {
		cfg.Path = config.DefaultHistorySQLitePath
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = config.DefaultHistorySQLiteMaxOpenConns
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = config.DefaultHistorySQLiteMaxIdleConns
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = config.DefaultHistorySQLiteBusyTimeout
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, history.NewStorageError(backendSQLite, "open", err)
		}
	}

	// Pragmas go in the DSN so every pooled connection gets them.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		cfg.Path, cfg.BusyTimeout.Milliseconds())
	if cfg.WAL() {
		dsn += "&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, history.NewStorageError(backendSQLite, "open", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	s := &SQLiteStorage{
		db:     db,
		config: cfg,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("SQLite history storage initialized",
		"path", cfg.Path,
		"wal_mode", cfg.WAL(),
		"max_open_conns", cfg.MaxOpenConns,
	)

	return s, nil
}

// initialize creates the schema and checks its version.
func (s *SQLiteStorage) initialize() error {
	if _, err := s.db.Exec(Schema); err != nil {
		return history.NewStorageError(backendSQLite, "create_schema", err)
	}

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return history.NewStorageError(backendSQLite, "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return history.NewStorageError(backendSQLite, "get_schema_version", err)
	}
	if version != SchemaVersion {
		return history.NewStorageError(backendSQLite, "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	stmt, err := s.db.Prepare(insertRecord)
	if err != nil {
		return history.NewStorageError(backendSQLite, "prepare", err)
	}
	s.insert = stmt

	s.logger.Debug("schema version verified", "version", version)
	return nil
}

// Store persists a record.
func (s *SQLiteStorage) Store(ctx context.Context, record *history.Record) error {
	failedRules, err := json.Marshal(nonNil(record.FailedRules))
	if err != nil {
		return history.NewStorageError(backendSQLite, "store", err)
	}
	errorCodes, err := json.Marshal(nonNil(record.ErrorCodes))
	if err != nil {
		return history.NewStorageError(backendSQLite, "store", err)
	}

	_, err = s.insert.ExecContext(ctx,
		record.ID, record.PassID,
		record.Category, record.Version, nullString(record.TemplateID), nullString(record.TemplateVersion),
		record.IsValid, record.Score, record.ErrorCount, record.WarningCount,
		record.RulesExecuted, record.RulesSkipped, string(failedRules), string(errorCodes), int64(record.Duration),
		record.ValidatedAt.UnixNano(), record.RecordedAt.UnixNano(),
	)
	if err != nil {
		return history.NewStorageError(backendSQLite, "store", err)
	}
	return nil
}

// Query retrieves records matching the query filters.
func (s *SQLiteStorage) Query(ctx context.Context, query *history.Query) ([]*history.Record, error) {
	whereClause, args := buildWhereClause(query)

	sqlQuery := "SELECT " + selectColumns + " FROM pass_history"
	if whereClause != "" {
		sqlQuery += " WHERE " + whereClause
	}

	sortOrder := "DESC"
	if strings.EqualFold(query.SortOrder, history.SortAsc) {
		sortOrder = "ASC"
	}
	sqlQuery += fmt.Sprintf(" ORDER BY recorded_at %s, id %s", sortOrder, sortOrder)

	if query.Limit > 0 {
		sqlQuery += fmt.Sprintf(" LIMIT %d", query.Limit)
	} else if query.Offset > 0 {
		sqlQuery += " LIMIT -1"
	}
	if query.Offset > 0 {
		sqlQuery += fmt.Sprintf(" OFFSET %d", query.Offset)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, history.NewStorageError(backendSQLite, "query", err)
	}
	defer rows.Close()

	records := []*history.Record{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, history.NewStorageError(backendSQLite, "scan", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, history.NewStorageError(backendSQLite, "query", err)
	}

	return records, nil
}

// Count returns the number of records matching the query filters.
func (s *SQLiteStorage) Count(ctx context.Context, query *history.Query) (int64, error) {
	whereClause, args := buildWhereClause(query)

	sqlQuery := "SELECT COUNT(*) FROM pass_history"
	if whereClause != "" {
		sqlQuery += " WHERE " + whereClause
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, sqlQuery, args...).Scan(&count); err != nil {
		return 0, history.NewStorageError(backendSQLite, "count", err)
	}
	return count, nil
}

// DeleteOlderThan removes records recorded before cutoff.
func (s *SQLiteStorage) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM pass_history WHERE recorded_at < ?", cutoff.UnixNano())
	if err != nil {
		return 0, history.NewStorageError(backendSQLite, "delete", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, history.NewStorageError(backendSQLite, "delete", err)
	}
	return count, nil
}

// Ping verifies the database is reachable.
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return history.NewStorageError(backendSQLite, "ping", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	if s.insert != nil {
		_ = s.insert.Close()
	}
	if err := s.db.Close(); err != nil {
		return history.NewStorageError(backendSQLite, "close", err)
	}
	s.logger.Info("SQLite history storage closed")
	return nil
}

// buildWhereClause builds the filter for q. Pagination is not included.
func buildWhereClause(q *history.Query) (string, []any) {
	var conditions []string
	var args []any

	if q.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, q.Category)
	}
	if q.Version != "" {
		conditions = append(conditions, "version = ?")
		args = append(args, q.Version)
	}
	if q.PassID != "" {
		conditions = append(conditions, "pass_id = ?")
		args = append(args, q.PassID)
	}
	if q.Valid != nil {
		conditions = append(conditions, "is_valid = ?")
		args = append(args, *q.Valid)
	}
	if q.Since != nil {
		conditions = append(conditions, "recorded_at >= ?")
		args = append(args, q.Since.UnixNano())
	}
	if q.Until != nil {
		conditions = append(conditions, "recorded_at < ?")
		args = append(args, q.Until.UnixNano())
	}

	return strings.Join(conditions, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*history.Record, error) {
	var (
		r                           history.Record
		templateID, templateVersion sql.NullString
		failedRules, errorCodes     sql.NullString
		durationNs                  int64
		validatedAt, recordedAt     int64
	)

	err := row.Scan(
		&r.ID, &r.PassID,
		&r.Category, &r.Version, &templateID, &templateVersion,
		&r.IsValid, &r.Score, &r.ErrorCount, &r.WarningCount,
		&r.RulesExecuted, &r.RulesSkipped, &failedRules, &errorCodes, &durationNs,
		&validatedAt, &recordedAt,
	)
	if err != nil {
		return nil, err
	}

	r.TemplateID = templateID.String
	r.TemplateVersion = templateVersion.String
	r.Duration = time.Duration(durationNs)
	r.ValidatedAt = time.Unix(0, validatedAt).UTC()
	r.RecordedAt = time.Unix(0, recordedAt).UTC()

	r.FailedRules = []string{}
	if failedRules.Valid && failedRules.String != "" {
		if err := json.Unmarshal([]byte(failedRules.String), &r.FailedRules); err != nil {
			return nil, fmt.Errorf("decode failed_rules: %w", err)
		}
	}
	r.ErrorCodes = []string{}
	if errorCodes.Valid && errorCodes.String != "" {
		if err := json.Unmarshal([]byte(errorCodes.String), &r.ErrorCodes); err != nil {
			return nil, fmt.Errorf("decode error_codes: %w", err)
		}
	}

	return &r, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
