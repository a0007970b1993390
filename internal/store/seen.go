package store

import (
	"fmt"
	"time"
)

// Contains reports whether an identity key is in the seen registry.
// Satisfies dedup.SeenSet.
func (s *Store) Contains(key string) (bool, error) {
	var n int
	err := s.conn.QueryRow(
		"SELECT COUNT(*) FROM seen_articles WHERE identity_key = ?", key,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking seen registry: %w", err)
	}
	return n > 0, nil
}

// MarkSeen records delivered articles in the seen registry. Existing
// keys keep their original delivered_at.
func (s *Store) MarkSeen(entries []SeenEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin mark seen: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT OR IGNORE INTO seen_articles (identity_key, title, source, delivered_at)
		VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("preparing mark seen: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.Exec(e.IdentityKey, e.Title, e.Source, e.DeliveredAt.UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("marking %s seen: %w", e.IdentityKey, err)
		}
	}
	return tx.Commit()
}

// EvictSeenBefore removes registry entries delivered before the cutoff
// and returns how many were removed.
func (s *Store) EvictSeenBefore(cutoff time.Time) (int64, error) {
	result, err := s.conn.Exec(
		"DELETE FROM seen_articles WHERE delivered_at < ?",
		cutoff.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("evicting seen registry: %w", err)
	}
	return result.RowsAffected()
}

// SeenCount returns the number of entries in the seen registry.
func (s *Store) SeenCount() (int, error) {
	var n int
	if err := s.conn.QueryRow("SELECT COUNT(*) FROM seen_articles").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting seen registry: %w", err)
	}
	return n, nil
}
