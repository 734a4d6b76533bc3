package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the history schema.
// Timestamps are stored as Unix nanoseconds.
const Schema = `
-- Verdict history table
CREATE TABLE IF NOT EXISTS pass_history (
    id TEXT PRIMARY KEY,
    pass_id TEXT NOT NULL,

    -- Rule set
    category TEXT NOT NULL,
    version TEXT NOT NULL,
    template_id TEXT,
    template_version TEXT,

    -- Verdict
    is_valid BOOLEAN NOT NULL,
    score REAL NOT NULL,
    error_count INTEGER NOT NULL,
    warning_count INTEGER NOT NULL,

    -- Execution
    rules_executed INTEGER NOT NULL,
    rules_skipped INTEGER NOT NULL,
    failed_rules TEXT,
    error_codes TEXT,
    duration_ns INTEGER NOT NULL,

    -- Timestamps
    validated_at INTEGER NOT NULL,
    recorded_at INTEGER NOT NULL
);

-- Schema version table
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_pass_history_recorded_at ON pass_history(recorded_at);
CREATE INDEX IF NOT EXISTS idx_pass_history_ruleset ON pass_history(category, version);
CREATE INDEX IF NOT EXISTS idx_pass_history_pass_id ON pass_history(pass_id);
CREATE INDEX IF NOT EXISTS idx_pass_history_is_valid ON pass_history(is_valid);
`

// InsertSchemaVersion records the schema version.
const InsertSchemaVersion = `
INSERT INTO schema_version (version) VALUES (?)
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion retrieves the current schema version.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`

const insertRecord = `
INSERT INTO pass_history (
    id, pass_id,
    category, version, template_id, template_version,
    is_valid, score, error_count, warning_count,
    rules_executed, rules_skipped, failed_rules, error_codes, duration_ns,
    validated_at, recorded_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const selectColumns = `
    id, pass_id,
    category, version, template_id, template_version,
    is_valid, score, error_count, warning_count,
    rules_executed, rules_skipped, failed_rules, error_codes, duration_ns,
    validated_at, recorded_at
`
