// Package store keeps a journal of poll runs in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

// Run is one journal entry.
type Run struct {
	RunID           string
	Trigger         string
	Keyword         string
	Provider        string
	LowerBound      int64
	Matches         int
	Sent            int
	Failed          int
	FetchFailures   int
	SummaryFailures int
	DryRun          bool
	Error           string // set when the run was cut short
	StartedAt       time.Time
	FinishedAt      time.Time
}

// Totals aggregates runs over a period.
type Totals struct {
	Runs            int
	Matches         int
	Sent            int
	Failed          int
	FetchFailures   int
	SummaryFailures int
	Aborted         int
}

func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("path is required")
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := ensureSchema(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordRun stores r. Recording the same run id twice replaces the entry.
func (s *Store) RecordRun(ctx context.Context, r Run) error {
	if s == nil || s.db == nil {
		return errors.New("store is not initialized")
	}
	if strings.TrimSpace(r.RunID) == "" {
		return errors.New("run_id is required")
	}
	if r.StartedAt.IsZero() {
		return errors.New("started_at is required")
	}
	if r.FinishedAt.IsZero() {
		r.FinishedAt = r.StartedAt
	}

	var errVal sql.NullString
	if r.Error != "" {
		errVal = sql.NullString{String: r.Error, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
INSERT OR REPLACE INTO runs(
    run_id, trigger, keyword, provider, lower_bound,
    matches, sent, failed, fetch_failures, summary_failures,
    dry_run, error, started_at, finished_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Trigger, r.Keyword, r.Provider, r.LowerBound,
		r.Matches, r.Sent, r.Failed, r.FetchFailures, r.SummaryFailures,
		boolToInt(r.DryRun), errVal, formatTime(r.StartedAt), formatTime(r.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Runs returns up to limit runs started at or after since, newest first.
// A non-positive limit returns all of them.
func (s *Store) Runs(ctx context.Context, since time.Time, limit int) ([]Run, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store is not initialized")
	}

	query := `
SELECT run_id, trigger, keyword, provider, lower_bound,
       matches, sent, failed, fetch_failures, summary_failures,
       dry_run, error, started_at, finished_at
FROM runs
WHERE started_at >= ?
ORDER BY started_at DESC`
	args := []any{formatTime(since)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// LastRun returns the most recent run, or false when the journal is empty.
func (s *Store) LastRun(ctx context.Context) (Run, bool, error) {
	runs, err := s.Runs(ctx, time.Time{}, 1)
	if err != nil {
		return Run{}, false, err
	}
	if len(runs) == 0 {
		return Run{}, false, nil
	}
	return runs[0], true, nil
}

// Totals sums the counters of runs started at or after since.
func (s *Store) Totals(ctx context.Context, since time.Time) (Totals, error) {
	if s == nil || s.db == nil {
		return Totals{}, errors.New("store is not initialized")
	}

	var t Totals
	err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*),
       COALESCE(SUM(matches), 0),
       COALESCE(SUM(sent), 0),
       COALESCE(SUM(failed), 0),
       COALESCE(SUM(fetch_failures), 0),
       COALESCE(SUM(summary_failures), 0),
       COALESCE(SUM(CASE WHEN error IS NOT NULL THEN 1 ELSE 0 END), 0)
FROM runs
WHERE started_at >= ?`, formatTime(since)).Scan(
		&t.Runs, &t.Matches, &t.Sent, &t.Failed, &t.FetchFailures, &t.SummaryFailures, &t.Aborted,
	)
	if err != nil {
		return Totals{}, fmt.Errorf("query totals: %w", err)
	}
	return t, nil
}

// PruneOld deletes runs older than retainDays. Returns the number of runs removed.
func (s *Store) PruneOld(ctx context.Context, retainDays int) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("store is not initialized")
	}
	if retainDays <= 0 {
		return 0, nil
	}

	cutoff := formatTime(time.Now().AddDate(0, 0, -retainDays))
	res, err := s.db.ExecContext(ctx, "DELETE FROM runs WHERE started_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune old runs: %w", err)
	}

	n, _ := res.RowsAffected()
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(scanner rowScanner) (Run, error) {
	var (
		r                 Run
		dryRun            int
		errVal            sql.NullString
		started, finished string
	)
	if err := scanner.Scan(
		&r.RunID, &r.Trigger, &r.Keyword, &r.Provider, &r.LowerBound,
		&r.Matches, &r.Sent, &r.Failed, &r.FetchFailures, &r.SummaryFailures,
		&dryRun, &errVal, &started, &finished,
	); err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}

	var err error
	if r.StartedAt, err = parseTime(started); err != nil {
		return Run{}, fmt.Errorf("parse started_at: %w", err)
	}
	if r.FinishedAt, err = parseTime(finished); err != nil {
		return Run{}, fmt.Errorf("parse finished_at: %w", err)
	}
	r.DryRun = dryRun != 0
	r.Error = errVal.String
	return r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return time.Time{}.UTC().Format(time.RFC3339Nano)
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339, value)
}
