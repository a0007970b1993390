package store

import (
	"database/sql"
	"fmt"
	"time"
)

// StartRun inserts a new run record in the running state and returns
// its ID.
func (s *Store) StartRun(periodLabel string, startedAt time.Time) (int64, error) {
	result, err := s.conn.Exec(
		`INSERT INTO run_records (period_label, status, started_at) VALUES (?, ?, ?)`,
		periodLabel, StatusRunning, startedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("starting run record: %w", err)
	}
	return result.LastInsertId()
}

// FinishRun records the final state and counters of a run.
func (s *Store) FinishRun(rec RunRecord) error {
	finished := time.Now().UTC()
	if rec.FinishedAt != nil {
		finished = rec.FinishedAt.UTC()
	}
	_, err := s.conn.Exec(
		`UPDATE run_records SET status = ?, finished_at = ?, sources_attempted = ?,
		sources_succeeded = ?, fetched = ?, malformed = ?, deduplicated = ?, matched = ?,
		summarized = ?, summary_failed = ?, delivered = ?, error = ?
		WHERE id = ?`,
		rec.Status, finished.Format(time.RFC3339), rec.SourcesAttempted, rec.SourcesSucceeded,
		rec.Fetched, rec.Malformed, rec.Deduplicated, rec.Matched,
		rec.Summarized, rec.SummaryFailed, rec.Delivered,
		nullable(rec.Error), rec.ID,
	)
	if err != nil {
		return fmt.Errorf("finishing run record: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(limit int) ([]RunRecord, error) {
	rows, err := s.conn.Query(
		`SELECT id, period_label, status, started_at, finished_at, sources_attempted,
		sources_succeeded, fetched, malformed, deduplicated, matched, summarized,
		summary_failed, delivered, error
		FROM run_records ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// LastRun returns the most recent run, or nil when none exist.
func (s *Store) LastRun() (*RunRecord, error) {
	runs, err := s.RecentRuns(1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

// RunTotals returns cumulative counters over the retained history:
// completed runs and total articles fetched.
func (s *Store) RunTotals() (runs, articles int, err error) {
	err = s.conn.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(fetched), 0) FROM run_records WHERE status != ?`,
		StatusRunning,
	).Scan(&runs, &articles)
	if err != nil {
		return 0, 0, fmt.Errorf("reading run totals: %w", err)
	}
	return runs, articles, nil
}

// TrimRunHistory keeps only the newest limit run records.
func (s *Store) TrimRunHistory(limit int) error {
	_, err := s.conn.Exec(
		`DELETE FROM run_records WHERE id NOT IN
		(SELECT id FROM run_records ORDER BY id DESC LIMIT ?)`, limit,
	)
	if err != nil {
		return fmt.Errorf("trimming run history: %w", err)
	}
	return nil
}

func scanRun(rows *sql.Rows) (RunRecord, error) {
	var (
		rec                 RunRecord
		started             string
		finished, errColumn sql.NullString
	)
	if err := rows.Scan(&rec.ID, &rec.PeriodLabel, &rec.Status, &started, &finished,
		&rec.SourcesAttempted, &rec.SourcesSucceeded, &rec.Fetched, &rec.Malformed,
		&rec.Deduplicated, &rec.Matched, &rec.Summarized, &rec.SummaryFailed,
		&rec.Delivered, &errColumn); err != nil {
		return rec, fmt.Errorf("scanning run record: %w", err)
	}

	rec.StartedAt, _ = time.Parse(time.RFC3339, started)
	if finished.Valid {
		t, err := time.Parse(time.RFC3339, finished.String)
		if err == nil {
			rec.FinishedAt = &t
		}
	}
	if errColumn.Valid {
		rec.Error = errColumn.String
	}
	return rec, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
