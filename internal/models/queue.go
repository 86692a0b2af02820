package models

import "time"

type QueueStatus string

const (
	QueuePending    QueueStatus = "pending"
	QueueProcessing QueueStatus = "processing"
)

// DeferReason is the closed set of causes a campaign can be paused for.
type DeferReason string

const (
	DeferDailyLimit        DeferReason = "daily_limit"
	DeferQuotaExhausted    DeferReason = "quota_exhausted"
	DeferRatePerHour       DeferReason = "rate_per_hour"
	DeferOutsideHours      DeferReason = "outside_hours"
	DeferTransientError    DeferReason = "transient_error"
	DeferTransportDisabled DeferReason = "transport_disabled"
)

// QueueEntry is the per-campaign scheduling row, 1:1 with its campaign.
// Invariant: DeferReason and DeferredUntil are set or cleared together.
type QueueEntry struct {
	ID         int64       `json:"id"`
	CampaignID int64       `json:"campaign_id"`
	Status     QueueStatus `json:"status"`

	DeferReason   *DeferReason `json:"defer_reason,omitempty"`
	DeferredUntil *time.Time   `json:"deferred_until,omitempty"`

	ConsecutiveTransientErrors int `json:"consecutive_transient_errors"`

	StartedAt *time.Time `json:"started_at,omitempty"`
	QueuedAt  time.Time  `json:"queued_at"`
}

type SendOutcome string

const (
	OutcomeSent   SendOutcome = "sent"
	OutcomeFailed SendOutcome = "failed"
)

// SendLedgerRecord is append-only. Daily-limit and quota-lag counts are
// derived by aggregating these rows on demand, never from a cached counter.
type SendLedgerRecord struct {
	ID          int64       `json:"id"`
	CampaignID  int64       `json:"campaign_id"`
	RecipientID int64       `json:"recipient_id"`
	Outcome     SendOutcome `json:"outcome"`
	CreatedAt   time.Time   `json:"created_at"`
}

// ProviderQuotaSnapshot mirrors the delivery provider's last known view of
// the monthly quota. Refreshed by an external sync job; read-only here.
type ProviderQuotaSnapshot struct {
	EmailsAvailable int64     `json:"emails_available"`
	EmailsLimit     int64     `json:"emails_limit"`
	LastSyncedAt    time.Time `json:"last_synced_at"`
	SyncError       string    `json:"sync_error,omitempty"`
}

// AccountLimits holds the per-user daily ceiling and an opaque handle to the
// transport credentials; decryption happens outside this core.
type AccountLimits struct {
	DailySendLimit       int    `json:"daily_send_limit"`
	TransportCredentials string `json:"transport_credentials"`
}
