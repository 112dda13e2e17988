// Package store keeps the history of permission reconciliation runs in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/doublev/bff-gateway/internal/reconcile"
)

// ErrNoRuns is returned by Latest when the ledger is empty.
var ErrNoRuns = errors.New("no reconciliation runs recorded")

// Run is one ledger row.
type Run struct {
	ID        int64            `json:"id"`
	StartedAt time.Time        `json:"started_at"`
	Duration  time.Duration    `json:"duration_ns"`
	Created   int              `json:"created"`
	Enabled   int              `json:"enabled"`
	Unchanged int              `json:"unchanged"`
	Failed    int              `json:"failed"`
	Report    reconcile.Report `json:"report"`
}

// Ledger is a SQLite-backed reconcile.Recorder.
type Ledger struct {
	db *sql.DB
}

// OpenLedger opens (and creates if needed) the ledger at path.
// ":memory:" opens a private in-memory database.
func OpenLedger(path string) (*Ledger, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create ledger dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	// A single connection keeps :memory: databases shared and serializes writes.
	db.SetMaxOpenConns(1)

	l := &Ledger{db: db}
	if err := l.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Ledger) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS reconcile_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			created INTEGER NOT NULL,
			enabled INTEGER NOT NULL,
			unchanged INTEGER NOT NULL,
			failed INTEGER NOT NULL,
			report TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_reconcile_runs_started ON reconcile_runs(started_at);
	`
	if _, err := l.db.Exec(schema); err != nil {
		return fmt.Errorf("migrate ledger: %w", err)
	}
	return nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record stores a report. It implements reconcile.Recorder.
func (l *Ledger) Record(ctx context.Context, report reconcile.Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	created, enabled, unchanged, failed := report.Totals()

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO reconcile_runs (started_at, finished_at, created, enabled, unchanged, failed, report)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		report.StartedAt.UTC().Format(time.RFC3339Nano),
		report.FinishedAt.UTC().Format(time.RFC3339Nano),
		created, enabled, unchanged, failed,
		string(data),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Latest returns the most recent run.
func (l *Ledger) Latest(ctx context.Context) (*Run, error) {
	runs, err := l.List(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrNoRuns
	}
	return &runs[0], nil
}

// List returns up to limit runs, newest first.
func (l *Ledger) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, created, enabled, unchanged, failed, report
		FROM reconcile_runs
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run               Run
			started, finished string
			report            string
		)
		if err := rows.Scan(&run.ID, &started, &finished, &run.Created, &run.Enabled, &run.Unchanged, &run.Failed, &report); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		if end, err := time.Parse(time.RFC3339Nano, finished); err == nil {
			run.Duration = end.Sub(run.StartedAt)
		}
		if err := json.Unmarshal([]byte(report), &run.Report); err != nil {
			return nil, fmt.Errorf("decode report %d: %w", run.ID, err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
