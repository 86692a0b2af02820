package models

import "time"

type CampaignStatus string

const (
	CampaignReady   CampaignStatus = "ready"
	CampaignSending CampaignStatus = "sending"
	CampaignSent    CampaignStatus = "sent"
	CampaignPaused  CampaignStatus = "paused"
)

type RecipientStatus string

const (
	RecipientPending RecipientStatus = "pending"
	RecipientSent    RecipientStatus = "sent"
	RecipientFailed  RecipientStatus = "failed"
)

type Campaign struct {
	ID       int64          `json:"id"`
	OwnerID  int64          `json:"owner_id"`
	Name     string         `json:"name"`
	Subject  string         `json:"subject"`
	Template string         `json:"template"`
	Status   CampaignStatus `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CampaignRecipient is written exactly once per terminal outcome: the
// pending -> sent/failed transition is guarded in the store, so replaying
// a send on an already-terminal recipient is a no-op.
type CampaignRecipient struct {
	ID         int64             `json:"id"`
	CampaignID int64             `json:"campaign_id"`
	Address    string            `json:"address"`
	Fields     map[string]string `json:"fields"`
	Status     RecipientStatus   `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
