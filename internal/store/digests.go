package store

import (
	"database/sql"
	"fmt"
	"time"
)

// SaveDigest persists a generated digest body and returns its ID. The
// digest starts undelivered; MarkDigestDelivered flips it after the
// email goes out.
func (s *Store) SaveDigest(periodLabel, subject, bodyMarkdown string, articleCount int, generatedAt time.Time) (int64, error) {
	result, err := s.conn.Exec(
		`INSERT INTO digests (period_label, subject, body_markdown, article_count, generated_at)
		VALUES (?, ?, ?, ?, ?)`,
		periodLabel, subject, bodyMarkdown, articleCount, generatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("saving digest: %w", err)
	}
	return result.LastInsertId()
}

// MarkDigestDelivered flags a digest as delivered.
func (s *Store) MarkDigestDelivered(id int64) error {
	if _, err := s.conn.Exec("UPDATE digests SET delivered = 1 WHERE id = ?", id); err != nil {
		return fmt.Errorf("marking digest delivered: %w", err)
	}
	return nil
}

// GetDigest returns one digest by ID, or nil when it does not exist.
func (s *Store) GetDigest(id int64) (*DigestRecord, error) {
	row := s.conn.QueryRow(
		`SELECT id, period_label, subject, body_markdown, article_count, generated_at, delivered
		FROM digests WHERE id = ?`, id,
	)
	rec, err := scanDigest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// RecentDigests returns up to limit digests, newest first.
func (s *Store) RecentDigests(limit int) ([]DigestRecord, error) {
	rows, err := s.conn.Query(
		`SELECT id, period_label, subject, body_markdown, article_count, generated_at, delivered
		FROM digests ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing digests: %w", err)
	}
	defer rows.Close()

	var records []DigestRecord
	for rows.Next() {
		rec, err := scanDigest(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDigest(row scanner) (DigestRecord, error) {
	var (
		rec       DigestRecord
		generated string
		delivered int
	)
	err := row.Scan(&rec.ID, &rec.PeriodLabel, &rec.Subject, &rec.BodyMarkdown,
		&rec.ArticleCount, &generated, &delivered)
	if err == sql.ErrNoRows {
		return rec, err
	}
	if err != nil {
		return rec, fmt.Errorf("scanning digest: %w", err)
	}
	rec.GeneratedAt, _ = time.Parse(time.RFC3339, generated)
	rec.Delivered = delivered != 0
	return rec, nil
}
