package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// The content ledger is the durable source of truth for "has this content
// ever been seen". The in-memory existence cache in front of it is only an
// optimization.

// LedgerContains reports whether a content hash has been observed before.
func (d *Database) LedgerContains(ctx context.Context, contentHash string) (bool, error) {
	var count int
	err := d.db.QueryRowContext(ctx,
		`SELECT occurrence_count FROM content_ledger WHERE content_hash = ?`,
		contentHash).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query content ledger: %w", err)
	}
	return true, nil
}

// RecordObservation durably records one sighting of a content hash. The
// upsert makes concurrent first-writers safe: whoever loses the insert race
// increments the occurrence count instead.
func (d *Database) RecordObservation(ctx context.Context, contentHash string) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO content_ledger (content_hash)
		 VALUES (?)
		 ON DUPLICATE KEY UPDATE occurrence_count = occurrence_count + 1`,
		contentHash)
	if err != nil {
		return fmt.Errorf("failed to record content observation: %w", err)
	}
	return nil
}

// GetOccurrenceCount returns how many times a hash has been observed, zero
// if never.
func (d *Database) GetOccurrenceCount(ctx context.Context, contentHash string) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx,
		`SELECT occurrence_count FROM content_ledger WHERE content_hash = ?`,
		contentHash).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get occurrence count: %w", err)
	}
	return count, nil
}
