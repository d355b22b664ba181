// Package history keeps a local journal of lifecycle actions.
//
// Every orchestrator run is recorded with its invocation id, outcome and
// duration so that operators can see what was done to a NameNode host and
// when, without digging through provisioning logs.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS actions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    invocation_id TEXT NOT NULL UNIQUE,
    hostname TEXT NOT NULL,
    action TEXT NOT NULL,
    upgrade_type TEXT NOT NULL DEFAULT 'none',
    result TEXT NOT NULL CHECK(result IN ('success','failure')),
    error TEXT NOT NULL DEFAULT '',
    started_at INTEGER NOT NULL,
    duration_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_actions_started_at ON actions(started_at);
`

// Result values stored in the journal.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Entry is one recorded action.
type Entry struct {
	ID           int64         `json:"id"`
	InvocationID string        `json:"invocation_id"`
	Hostname     string        `json:"hostname"`
	Action       string        `json:"action"`
	UpgradeType  string        `json:"upgrade_type"`
	Result       string        `json:"result"`
	Error        string        `json:"error,omitempty"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
}

// Journal stores entries in SQLite.
type Journal struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (creating if needed) the journal database at path.
//
// Parameters:
//   - path: SQLite file path, or ":memory:" for a throwaway journal
//   - logger: Zap logger for structured logging
//
// Returns:
//   - Ready Journal with its schema applied
//   - error: Any error opening the database or applying the schema
func Open(path string, logger *zap.Logger) (*Journal, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	if path == ":memory:" {
		dsn = "file::memory:"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps :memory: coherent.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply history schema: %w", err)
	}

	return &Journal{db: db, logger: logger}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record appends an entry.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	if e.UpgradeType == "" {
		e.UpgradeType = "none"
	}
	res, err := j.db.ExecContext(ctx, `
		INSERT INTO actions (invocation_id, hostname, action, upgrade_type, result, error, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.InvocationID, e.Hostname, e.Action, e.UpgradeType, e.Result, e.Error,
		e.StartedAt.UnixNano(), e.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to record action: %w", err)
	}

	id, _ := res.LastInsertId()
	j.logger.Debug("action recorded",
		zap.Int64("id", id),
		zap.String("invocation_id", e.InvocationID),
		zap.String("action", e.Action),
		zap.String("result", e.Result))
	return nil
}

// List returns the most recent entries, newest first.
//
// Parameters:
//   - action: Only entries for this action; empty means all actions
//   - limit: Maximum number of entries; values below 1 mean 50
//
// Returns:
//   - Entries ordered by start time descending
//   - error: Any query error
func (j *Journal) List(ctx context.Context, action string, limit int) ([]Entry, error) {
	if limit < 1 {
		limit = 50
	}

	query := `
		SELECT id, invocation_id, hostname, action, upgrade_type, result, error, started_at, duration_ms
		FROM actions
	`
	args := []any{}
	if action != "" {
		query += ` WHERE action = ?`
		args = append(args, action)
	}
	query += ` ORDER BY started_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			startedAt  int64
			durationMS int64
		)
		if err := rows.Scan(&e.ID, &e.InvocationID, &e.Hostname, &e.Action, &e.UpgradeType,
			&e.Result, &e.Error, &startedAt, &durationMS); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		e.StartedAt = time.Unix(0, startedAt).UTC()
		e.Duration = time.Duration(durationMS) * time.Millisecond
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history rows: %w", err)
	}

	return entries, nil
}

// Prune deletes entries that started before cutoff and returns how many were removed.
func (j *Journal) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := j.db.ExecContext(ctx, `DELETE FROM actions WHERE started_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		j.logger.Info("pruned action history", zap.Int64("removed", n))
	}
	return n, nil
}
