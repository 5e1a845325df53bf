package server

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// AuditEntry is one recorded dispatch.
type AuditEntry struct {
	ID       int64         `json:"id"`
	Time     time.Time     `json:"time"`
	Invoker  int32         `json:"invoker"`
	Name     string        `json:"name"`
	Command  string        `json:"command"`
	Raw      string        `json:"raw"`
	Result   int           `json:"result"`
	ErrCode  int           `json:"err_code"`
	Duration time.Duration `json:"duration"`
}

// AuditLog records every dispatch in a SQLite database.
type AuditLog struct {
	db      *sql.DB
	mu      sync.Mutex
	path    string
	limit   int
	timeout time.Duration
}

// OpenAuditLog opens a SQLite database, sets WAL mode and busy timeout, and
// creates the dispatch table.
func OpenAuditLog(path string, queryLimit, timeoutSec int) (*AuditLog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit: opening sqlite %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: setting WAL mode: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d", timeoutSec*1000)); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: setting busy timeout: %w", err)
	}
	const schema = `CREATE TABLE IF NOT EXISTS dispatches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts INTEGER NOT NULL,
		invoker INTEGER NOT NULL,
		name TEXT NOT NULL,
		command TEXT NOT NULL,
		raw TEXT NOT NULL,
		result INTEGER NOT NULL,
		err_code INTEGER NOT NULL,
		duration_us INTEGER NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: create schema: %w", err)
	}
	return &AuditLog{
		db:      db,
		path:    path,
		limit:   queryLimit,
		timeout: time.Duration(timeoutSec) * time.Second,
	}, nil
}

// Close closes the database connection.
func (a *AuditLog) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// Checkpoint forces a WAL checkpoint to flush all writes to the main file.
func (a *AuditLog) Checkpoint() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, err := a.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return err
}

// Record appends one dispatch to the log.
func (a *AuditLog) Record(e AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	_, err := a.db.ExecContext(ctx,
		`INSERT INTO dispatches (ts, invoker, name, command, raw, result, err_code, duration_us)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Time.UnixMicro(), e.Invoker, e.Name, e.Command, e.Raw, e.Result, e.ErrCode,
		e.Duration.Microseconds())
	if err != nil {
		return fmt.Errorf("audit: record: %w", err)
	}
	return nil
}

// Recent returns the newest n entries, newest first. n is clamped to the
// configured query limit.
func (a *AuditLog) Recent(n int) ([]AuditEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if n <= 0 || n > a.limit {
		n = a.limit
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	rows, err := a.db.QueryContext(ctx,
		`SELECT id, ts, invoker, name, command, raw, result, err_code, duration_us
		 FROM dispatches ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("audit: query: %w", err)
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var ts, durUS int64
		if err := rows.Scan(&e.ID, &ts, &e.Invoker, &e.Name, &e.Command, &e.Raw,
			&e.Result, &e.ErrCode, &durUS); err != nil {
			return nil, err
		}
		e.Time = time.UnixMicro(ts)
		e.Duration = time.Duration(durUS) * time.Microsecond
		out = append(out, e)
	}
	return out, rows.Err()
}
