package models

import "time"

// QueueOverview is the poll read-model for the whole queue, projected
// directly from queue entries.
type QueueOverview struct {
	Active          bool       `json:"active"`
	QueuedCount     int        `json:"queued_count"`
	NextCampaignETA *time.Time `json:"next_campaign_eta,omitempty"`
}

// CampaignStatusDetail is the poll read-model for one campaign. ReasonCode
// and NextRunAt come from the queue entry the defer ledger writes; there is
// no separately maintained summary.
type CampaignStatusDetail struct {
	CampaignID int64          `json:"campaign_id"`
	Status     CampaignStatus `json:"status"`

	ReasonCode                 *DeferReason `json:"reason_code,omitempty"`
	NextRunAt                  *time.Time   `json:"next_run_at,omitempty"`
	ConsecutiveTransientErrors int          `json:"consecutive_transient_errors"`

	PendingRecipients int `json:"pending_recipients"`
	SentRecipients    int `json:"sent_recipients"`
	FailedRecipients  int `json:"failed_recipients"`
}
