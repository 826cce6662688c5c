// Package downloads persists the backup attachment download queue: one
// row per attachment pending backup-driven download, plus a small
// cached-progress store consumed by the download banner UI.
package downloads

import (
	"database/sql"
	"errors"
	"fmt"

	"courier/internal/core"
	"courier/internal/database"
)

// Store persists queued backup attachment downloads. At most one row
// exists per attachment row ID at any time; re-enqueueing the same
// attachment merges priority timestamps (smallest wins, absent counts
// as +infinity).
//
// All methods run inside a caller-supplied transaction and commit
// atomically with it.
type Store struct{}

// NewStore creates a download queue store.
func NewStore() *Store {
	return &Store{}
}

// Enqueue records ref as a candidate for backup-driven download.
//
// The priority timestamp is derived from the reference's owner: the
// message received-at time for message-owned attachments, absent for
// story- and thread-owned ones. If a row already exists for the same
// attachment with a strictly smaller timestamp it is kept untouched;
// otherwise the existing row is replaced by a fresh insert carrying the
// new timestamp (and a fresh insertion order). Enqueue is therefore
// idempotent under repeated discovery and converges to the smallest
// known timestamp.
//
// Returns true iff a row for this attachment already existed.
func (s *Store) Enqueue(tx *database.WriteTx, ref core.AttachmentReference) (bool, error) {
	newTS := ref.ReceivedAtTimestamp()

	var existingTS sql.NullInt64
	err := tx.QueryRow(
		`SELECT received_at_timestamp FROM backup_attachment_downloads
		 WHERE attachment_row_id = ?`,
		ref.AttachmentRowID,
	).Scan(&existingTS)

	existed := true
	switch {
	case errors.Is(err, sql.ErrNoRows):
		existed = false
	case err != nil:
		return false, fmt.Errorf("looking up queued download: %w", err)
	default:
		if timestampLess(nullableTimestamp(existingTS), newTS) {
			// Existing row already has higher priority; keep it.
			return true, nil
		}
		if err := s.Remove(tx, ref.AttachmentRowID); err != nil {
			return false, err
		}
	}

	var tsArg any
	if newTS != nil {
		tsArg = int64(*newTS)
	}
	_, err = tx.Exec(
		`INSERT INTO backup_attachment_downloads (attachment_row_id, received_at_timestamp)
		 VALUES (?, ?)`,
		ref.AttachmentRowID, tsArg,
	)
	if err != nil {
		return false, fmt.Errorf("inserting queued download: %w", err)
	}
	return existed, nil
}

// HasEnqueued reports whether a download is queued for the attachment.
func (s *Store) HasEnqueued(tx *database.ReadTx, attachmentRowID int64) (bool, error) {
	var one int
	err := tx.QueryRow(
		`SELECT 1 FROM backup_attachment_downloads WHERE attachment_row_id = ?`,
		attachmentRowID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking queued download: %w", err)
	}
	return true, nil
}

// Peek returns up to count queued downloads in descending insertion
// order: the most recently inserted (or replaced) rows come first.
// Service order is intentionally newest-first, not FIFO; the newest
// enqueues belong to whatever restore is in flight right now.
func (s *Store) Peek(tx *database.ReadTx, count int) ([]core.QueuedAttachmentDownload, error) {
	rows, err := tx.Query(
		`SELECT insertion_order_id, attachment_row_id, received_at_timestamp
		 FROM backup_attachment_downloads
		 ORDER BY insertion_order_id DESC LIMIT ?`,
		count,
	)
	if err != nil {
		return nil, fmt.Errorf("peeking download queue: %w", err)
	}
	defer rows.Close()

	var records []core.QueuedAttachmentDownload
	for rows.Next() {
		var rec core.QueuedAttachmentDownload
		var ts sql.NullInt64
		if err := rows.Scan(&rec.InsertionOrderID, &rec.AttachmentRowID, &ts); err != nil {
			return nil, fmt.Errorf("peeking download queue: %w", err)
		}
		rec.ReceivedAtMs = nullableTimestamp(ts)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("peeking download queue: %w", err)
	}
	return records, nil
}

// Count returns the number of queued downloads.
func (s *Store) Count(tx *database.ReadTx) (int64, error) {
	var n int64
	if err := tx.QueryRow(`SELECT COUNT(*) FROM backup_attachment_downloads`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting queued downloads: %w", err)
	}
	return n, nil
}

// Remove deletes the queued download for the attachment, if present.
func (s *Store) Remove(tx *database.WriteTx, attachmentRowID int64) error {
	_, err := tx.Exec(
		`DELETE FROM backup_attachment_downloads WHERE attachment_row_id = ?`,
		attachmentRowID,
	)
	if err != nil {
		return fmt.Errorf("removing queued download: %w", err)
	}
	return nil
}

// RemoveAll clears the entire queue.
func (s *Store) RemoveAll(tx *database.WriteTx) error {
	if _, err := tx.Exec(`DELETE FROM backup_attachment_downloads`); err != nil {
		return fmt.Errorf("clearing download queue: %w", err)
	}
	return nil
}

// RemoveAllOlderThan deletes rows whose timestamp is present and
// strictly below cutoff. Rows without a timestamp are untimed
// high-priority items and are never pruned by age.
func (s *Store) RemoveAllOlderThan(tx *database.WriteTx, cutoff uint64) (int64, error) {
	res, err := tx.Exec(
		`DELETE FROM backup_attachment_downloads
		 WHERE received_at_timestamp IS NOT NULL AND received_at_timestamp < ?`,
		int64(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning download queue: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning download queue: %w", err)
	}
	return n, nil
}

// timestampLess compares priority timestamps where nil sorts as
// +infinity: an untimed row never beats a timed one. Keeping this in a
// helper avoids the reversed-order bug a bare nil comparison invites.
func timestampLess(a, b *uint64) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return *a < *b
	}
}

func nullableTimestamp(v sql.NullInt64) *uint64 {
	if !v.Valid {
		return nil
	}
	ts := uint64(v.Int64)
	return &ts
}
