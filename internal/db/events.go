// Package db keeps a DuckDB event log of per-file download and
// extraction history. Resume decisions never depend on it (those come
// from files on disk); it exists for inspection and run summaries.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb" // driver

	"github.com/chairdump/chairdump/internal/catalog"
	"github.com/chairdump/chairdump/internal/engine"
)

const schemaSequenceSQL = `CREATE SEQUENCE IF NOT EXISTS dump_event_log_id_seq;`
const schemaTableSQL = `
CREATE TABLE IF NOT EXISTS dump_event_log (
    log_id          BIGINT PRIMARY KEY DEFAULT nextval('dump_event_log_id_seq'),
    table_name      VARCHAR NOT NULL,
    dump_date       DATE NOT NULL,
    event           VARCHAR NOT NULL,
    event_timestamp TIMESTAMP NOT NULL,
    message         VARCHAR,
    bytes           BIGINT,
    duration_ms     BIGINT
);
CREATE INDEX IF NOT EXISTS idx_dump_event_log_item ON dump_event_log (table_name, dump_date);
CREATE INDEX IF NOT EXISTS idx_dump_event_log_event_time ON dump_event_log (event, event_timestamp);
`

// InitializeSchema creates the sequence and table in the correct order.
func InitializeSchema(db *sql.DB) error {
	_, err := db.Exec(schemaSequenceSQL)
	if err != nil && !strings.Contains(strings.ToLower(err.Error()), "already exists") {
		return fmt.Errorf("failed to execute sequence setup: %w", err)
	}
	_, err = db.Exec(schemaTableSQL)
	if err != nil && !strings.Contains(strings.ToLower(err.Error()), "already exists") {
		return fmt.Errorf("failed to execute table/index setup: %w", err)
	}
	return nil
}

// Recorder writes engine item events into the log. It satisfies
// engine.Recorder.
type Recorder struct {
	db *sql.DB
}

// NewRecorder wraps an open DuckDB connection.
func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{db: db}
}

// Record inserts one lifecycle event. Logging failures are swallowed;
// the event log must never break a run.
func (r *Recorder) Record(ctx context.Context, item catalog.WorkItem, event, message string, bytes int64, duration time.Duration) {
	query := `
        INSERT INTO dump_event_log (table_name, dump_date, event, event_timestamp, message, bytes, duration_ms)
        VALUES (?, ?, ?, ?, ?, ?, ?);
    `
	var durationMs sql.NullInt64
	if duration > 0 {
		durationMs = sql.NullInt64{Int64: duration.Milliseconds(), Valid: true}
	}
	var byteCount sql.NullInt64
	if bytes > 0 {
		byteCount = sql.NullInt64{Int64: bytes, Valid: true}
	}

	_, _ = r.db.ExecContext(ctx, query,
		item.Table,
		item.Date,
		event,
		time.Now().UTC(),
		sql.NullString{String: message, Valid: message != ""},
		byteCount,
		durationMs,
	)
}

var _ engine.Recorder = (*Recorder)(nil)

// DisplayHistory queries and prints the event log, newest first,
// optionally filtered by table and event type.
func DisplayHistory(ctx context.Context, db *sql.DB, tableFilter, eventFilter string, limit int) error {
	query := `
        SELECT table_name, dump_date, event, event_timestamp, message, bytes, duration_ms
        FROM dump_event_log
    `
	conditions := []string{}
	args := []any{}
	argCounter := 1

	if tableFilter != "" {
		conditions = append(conditions, fmt.Sprintf("table_name = $%d", argCounter))
		args = append(args, tableFilter)
		argCounter++
	}
	if eventFilter != "" {
		conditions = append(conditions, fmt.Sprintf("event = $%d", argCounter))
		args = append(args, eventFilter)
		argCounter++
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY event_timestamp DESC, log_id DESC LIMIT $%d", argCounter)
	args = append(args, limit)

	fmt.Printf("--- Event Log History (Limit %d) ---\n", limit)
	fmt.Printf("%-14s | %-12s | %-15s | %-25s | %-12s | %-10s | %s\n",
		"Table", "Date", "Event", "Timestamp (UTC)", "Bytes", "DurationMS", "Message")
	fmt.Println(strings.Repeat("-", 120))

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query event log: %w", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var tableName, event string
		var dumpDate, timestamp time.Time
		var message sql.NullString
		var bytes, durationMs sql.NullInt64
		if err := rows.Scan(&tableName, &dumpDate, &event, &timestamp, &message, &bytes, &durationMs); err != nil {
			return fmt.Errorf("failed to scan event log row: %w", err)
		}

		bytesStr := ""
		if bytes.Valid {
			bytesStr = fmt.Sprintf("%d", bytes.Int64)
		}
		durationStr := ""
		if durationMs.Valid {
			durationStr = fmt.Sprintf("%d", durationMs.Int64)
		}

		fmt.Printf("%-14s | %-12s | %-15s | %-25s | %-12s | %-10s | %s\n",
			tableName, dumpDate.Format("2006-01-02"), event,
			timestamp.Format(time.RFC3339), bytesStr, durationStr, message.String)
		count++
	}
	if err = rows.Err(); err != nil {
		return fmt.Errorf("error iterating event log rows: %w", err)
	}
	fmt.Printf("Displayed %d records.\n", count)
	return nil
}

// RunSummary aggregates the most recent activity per event type.
func RunSummary(ctx context.Context, db *sql.DB) (map[string]int64, error) {
	query := `SELECT event, COUNT(*) FROM dump_event_log GROUP BY event;`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query event summary: %w", err)
	}
	defer rows.Close()

	summary := make(map[string]int64)
	for rows.Next() {
		var event string
		var n int64
		if err := rows.Scan(&event, &n); err != nil {
			return nil, fmt.Errorf("failed to scan summary row: %w", err)
		}
		summary[event] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating summary rows: %w", err)
	}
	return summary, nil
}
