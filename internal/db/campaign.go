package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"mailflow/internal/models"
)

func (s *Store) Campaign(ctx context.Context, id int64) (*models.Campaign, error) {
	var c models.Campaign
	err := s.Pool.QueryRow(ctx,
		`SELECT id, owner_id, name, subject, template, status, created_at, updated_at
		 FROM campaigns
		 WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.OwnerID, &c.Name, &c.Subject, &c.Template, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("campaign %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("read campaign %d: %w", id, err)
	}
	return &c, nil
}

// PendingRecipients returns the campaign's unsent recipients in stable id
// order. Terminal rows never reappear here, which is what lets a resumed
// campaign continue where it left off without skipping anyone.
func (s *Store) PendingRecipients(ctx context.Context, campaignID int64) ([]models.CampaignRecipient, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT id, campaign_id, address, fields, status, created_at, updated_at
		 FROM campaign_recipients
		 WHERE campaign_id = $1
		   AND status = 'pending'
		 ORDER BY id ASC`,
		campaignID,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending recipients: %w", err)
	}
	defer rows.Close()

	var recipients []models.CampaignRecipient
	for rows.Next() {
		var r models.CampaignRecipient
		var fields []byte
		if err := rows.Scan(&r.ID, &r.CampaignID, &r.Address, &fields, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		if len(fields) > 0 {
			if err := json.Unmarshal(fields, &r.Fields); err != nil {
				return nil, fmt.Errorf("decode recipient %d fields: %w", r.ID, err)
			}
		}
		recipients = append(recipients, r)
	}
	return recipients, rows.Err()
}

// MarkRecipient writes a terminal status once. The WHERE guard makes the
// transition write-once: re-processing an already-terminal recipient
// updates nothing and the caller skips the ledger append.
func (s *Store) MarkRecipient(ctx context.Context, recipientID int64, status models.RecipientStatus) (bool, error) {
	tag, err := s.Pool.Exec(ctx,
		`UPDATE campaign_recipients
		 SET status = $1, updated_at = NOW()
		 WHERE id = $2 AND status = 'pending'`,
		status,
		recipientID,
	)
	if err != nil {
		return false, fmt.Errorf("mark recipient %d %s: %w", recipientID, status, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) PendingRecipientCount(ctx context.Context, campaignID int64) (int, error) {
	var count int
	err := s.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM campaign_recipients
		 WHERE campaign_id = $1 AND status = 'pending'`,
		campaignID,
	).Scan(&count)
	return count, err
}

// CreateCampaign inserts a campaign with its recipients and queues it for
// sending, all in one transaction.
func (s *Store) CreateCampaign(ctx context.Context, c *models.Campaign, recipients []models.CampaignRecipient) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create campaign: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO campaigns (owner_id, name, subject, template, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, 'ready', NOW(), NOW())
		 RETURNING id, created_at, updated_at`,
		c.OwnerID, c.Name, c.Subject, c.Template,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert campaign: %w", err)
	}
	c.Status = models.CampaignReady

	for i := range recipients {
		fields, err := json.Marshal(recipients[i].Fields)
		if err != nil {
			return fmt.Errorf("encode recipient fields: %w", err)
		}
		err = tx.QueryRow(ctx,
			`INSERT INTO campaign_recipients (campaign_id, address, fields, status, created_at, updated_at)
			 VALUES ($1, $2, $3, 'pending', NOW(), NOW())
			 RETURNING id`,
			c.ID, recipients[i].Address, fields,
		).Scan(&recipients[i].ID)
		if err != nil {
			return fmt.Errorf("insert recipient %s: %w", recipients[i].Address, err)
		}
		recipients[i].CampaignID = c.ID
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO queue_entries (campaign_id, status, queued_at)
		 VALUES ($1, 'pending', NOW())`,
		c.ID,
	); err != nil {
		return fmt.Errorf("queue campaign: %w", err)
	}

	return tx.Commit(ctx)
}

// SentCampaignsWithFailures lists campaigns finalized as SENT that still
// carry failed recipients; the reconciler flags these for operator review.
func (s *Store) SentCampaignsWithFailures(ctx context.Context) ([]int64, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT DISTINCT c.id
		 FROM campaigns c
		 JOIN campaign_recipients r ON r.campaign_id = c.id
		 WHERE c.status = 'sent'
		   AND r.status = 'failed'
		 ORDER BY c.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list sent campaigns with failures: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Overview projects the queue-wide poll read-model.
func (s *Store) Overview(ctx context.Context) (models.QueueOverview, error) {
	var o models.QueueOverview
	err := s.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FILTER (WHERE status = 'processing') > 0,
		        COUNT(*) FILTER (WHERE status = 'pending'),
		        MIN(deferred_until) FILTER (WHERE status = 'pending')
		 FROM queue_entries`,
	).Scan(&o.Active, &o.QueuedCount, &o.NextCampaignETA)
	if err != nil {
		return o, fmt.Errorf("queue overview: %w", err)
	}
	return o, nil
}

// CampaignStatus projects one campaign's poll read-model straight from the
// campaign row, its queue entry and its recipient counts.
func (s *Store) CampaignStatus(ctx context.Context, campaignID int64) (models.CampaignStatusDetail, error) {
	var d models.CampaignStatusDetail
	err := s.Pool.QueryRow(ctx,
		`SELECT c.id, c.status,
		        q.defer_reason, q.deferred_until,
		        COALESCE(q.consecutive_transient_errors, 0),
		        COUNT(r.id) FILTER (WHERE r.status = 'pending'),
		        COUNT(r.id) FILTER (WHERE r.status = 'sent'),
		        COUNT(r.id) FILTER (WHERE r.status = 'failed')
		 FROM campaigns c
		 LEFT JOIN queue_entries q ON q.campaign_id = c.id
		 LEFT JOIN campaign_recipients r ON r.campaign_id = c.id
		 WHERE c.id = $1
		 GROUP BY c.id, c.status, q.defer_reason, q.deferred_until, q.consecutive_transient_errors`,
		campaignID,
	).Scan(&d.CampaignID, &d.Status, &d.ReasonCode, &d.NextRunAt, &d.ConsecutiveTransientErrors,
		&d.PendingRecipients, &d.SentRecipients, &d.FailedRecipients)
	if errors.Is(err, pgx.ErrNoRows) {
		return d, fmt.Errorf("campaign %d not found", campaignID)
	}
	if err != nil {
		return d, fmt.Errorf("campaign %d status: %w", campaignID, err)
	}
	return d, nil
}
