package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"mailflow/internal/models"
)

// claimLockKey is the advisory lock serializing claims across all worker
// processes. It guards the processing-row existence check below; without it
// two concurrent claimers could each pass the check and claim a different
// row.
const claimLockKey = 0x6d666c6f77 // "mflow"

// ClaimNextEntry atomically claims the oldest eligible queue entry: PENDING,
// not deferred (or past its resume time), campaign not paused, FIFO by
// queued_at. At most one entry is PROCESSING system-wide: claimers serialize
// on an advisory lock and claim nothing while any PROCESSING row exists.
// FOR UPDATE SKIP LOCKED additionally keeps two claimers off the same row.
//
// The claim clears defer_reason and deferred_until together (paired-fields
// invariant) and promotes the campaign to SENDING in the same transaction.
// Returns (nil, nil) when no work is eligible.
func (s *Store) ClaimNextEntry(ctx context.Context, now time.Time) (*models.QueueEntry, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin claim: %w", err)
	}
	defer tx.Rollback(ctx)

	var locked bool
	if err := tx.QueryRow(ctx,
		`SELECT pg_try_advisory_xact_lock($1)`,
		int64(claimLockKey),
	).Scan(&locked); err != nil {
		return nil, fmt.Errorf("claim lock: %w", err)
	}
	if !locked {
		// Another worker is mid-claim; let it have this tick.
		return nil, nil
	}

	var busy bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM queue_entries WHERE status = 'processing')`,
	).Scan(&busy); err != nil {
		return nil, fmt.Errorf("check in-flight entries: %w", err)
	}
	if busy {
		return nil, nil
	}

	var entry models.QueueEntry
	err = tx.QueryRow(ctx,
		`UPDATE queue_entries q
		 SET status = 'processing',
		     defer_reason = NULL,
		     deferred_until = NULL,
		     started_at = $1
		 FROM (
		     SELECT q2.id
		     FROM queue_entries q2
		     JOIN campaigns c ON c.id = q2.campaign_id
		     WHERE q2.status = 'pending'
		       AND (q2.deferred_until IS NULL OR q2.deferred_until <= $1)
		       AND c.status IN ('ready', 'sending')
		     ORDER BY q2.queued_at ASC
		     LIMIT 1
		     FOR UPDATE OF q2 SKIP LOCKED
		 ) next
		 WHERE q.id = next.id
		 RETURNING q.id, q.campaign_id, q.status, q.consecutive_transient_errors, q.started_at, q.queued_at`,
		now,
	).Scan(&entry.ID, &entry.CampaignID, &entry.Status, &entry.ConsecutiveTransientErrors, &entry.StartedAt, &entry.QueuedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim next entry: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE campaigns
		 SET status = 'sending', updated_at = NOW()
		 WHERE id = $1 AND status = 'ready'`,
		entry.CampaignID,
	)
	if err != nil {
		return nil, fmt.Errorf("promote campaign %d: %w", entry.CampaignID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}
	return &entry, nil
}

// DeferEntry writes reason and resume time in one statement and releases the
// row back to PENDING.
func (s *Store) DeferEntry(ctx context.Context, entryID int64, reason models.DeferReason, until time.Time) error {
	_, err := s.Pool.Exec(ctx,
		`UPDATE queue_entries
		 SET status = 'pending',
		     defer_reason = $1,
		     deferred_until = $2,
		     started_at = NULL
		 WHERE id = $3`,
		reason,
		until,
		entryID,
	)
	return err
}

// ReleaseEntry returns a PROCESSING row to PENDING without a defer reason,
// e.g. when transient failures leave recipients to retry on the next tick.
func (s *Store) ReleaseEntry(ctx context.Context, entryID int64) error {
	_, err := s.Pool.Exec(ctx,
		`UPDATE queue_entries
		 SET status = 'pending',
		     started_at = NULL
		 WHERE id = $1`,
		entryID,
	)
	return err
}

func (s *Store) SetEntryTransientErrors(ctx context.Context, entryID int64, n int) error {
	_, err := s.Pool.Exec(ctx,
		`UPDATE queue_entries
		 SET consecutive_transient_errors = $1
		 WHERE id = $2`,
		n,
		entryID,
	)
	return err
}

func (s *Store) ProcessingEntries(ctx context.Context) ([]models.QueueEntry, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT id, campaign_id, status, defer_reason, deferred_until,
		        consecutive_transient_errors, started_at, queued_at
		 FROM queue_entries
		 WHERE status = 'processing'
		 ORDER BY started_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list processing entries: %w", err)
	}
	defer rows.Close()

	var entries []models.QueueEntry
	for rows.Next() {
		var e models.QueueEntry
		if err := rows.Scan(&e.ID, &e.CampaignID, &e.Status, &e.DeferReason, &e.DeferredUntil,
			&e.ConsecutiveTransientErrors, &e.StartedAt, &e.QueuedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RequeueStaleProcessing releases entries abandoned mid-tick (worker crash,
// kill) back to PENDING. Returns how many rows were repaired.
func (s *Store) RequeueStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.Pool.Exec(ctx,
		`UPDATE queue_entries
		 SET status = 'pending',
		     started_at = NULL
		 WHERE status = 'processing'
		   AND started_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("requeue stale processing: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DemoteDuplicateProcessing enforces the at-most-one-PROCESSING invariant by
// releasing every processing row except the oldest claim.
func (s *Store) DemoteDuplicateProcessing(ctx context.Context) (int64, error) {
	tag, err := s.Pool.Exec(ctx,
		`UPDATE queue_entries
		 SET status = 'pending',
		     started_at = NULL
		 WHERE status = 'processing'
		   AND id <> (
		       SELECT id FROM queue_entries
		       WHERE status = 'processing'
		       ORDER BY started_at ASC NULLS LAST, id ASC
		       LIMIT 1
		   )`,
	)
	if err != nil {
		return 0, fmt.Errorf("demote duplicate processing: %w", err)
	}
	return tag.RowsAffected(), nil
}

// FinalizeCampaign clears the queue entry and marks the campaign SENT in one
// transaction. A terminal campaign keeps no scheduling row.
func (s *Store) FinalizeCampaign(ctx context.Context, campaignID int64) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin finalize: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM queue_entries WHERE campaign_id = $1`,
		campaignID,
	); err != nil {
		return fmt.Errorf("clear queue entry: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE campaigns
		 SET status = 'sent', updated_at = NOW()
		 WHERE id = $1`,
		campaignID,
	); err != nil {
		return fmt.Errorf("mark campaign sent: %w", err)
	}

	return tx.Commit(ctx)
}

// MarkNotified records that a (campaign, reason) pair has been notified.
// Returns true only for the first insert, which is the dedupe decision.
func (s *Store) MarkNotified(ctx context.Context, campaignID int64, reason models.DeferReason) (bool, error) {
	tag, err := s.Pool.Exec(ctx,
		`INSERT INTO defer_notifications (campaign_id, reason, notified_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (campaign_id, reason) DO NOTHING`,
		campaignID,
		reason,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) ClearNotified(ctx context.Context, campaignID int64) error {
	_, err := s.Pool.Exec(ctx,
		`DELETE FROM defer_notifications WHERE campaign_id = $1`,
		campaignID,
	)
	return err
}
