// Package deferral is the single source of truth for why a campaign is
// paused and when it should resume. Every read surface projects from the
// queue entry this ledger writes; nothing keeps a parallel copy.
package deferral

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"mailflow/internal/metrics"
	"mailflow/internal/models"
)

// Store persists defer state. DeferEntry must write reason and resume time
// in one statement so the paired-fields invariant cannot be broken halfway.
type Store interface {
	DeferEntry(ctx context.Context, entryID int64, reason models.DeferReason, until time.Time) error
	MarkNotified(ctx context.Context, campaignID int64, reason models.DeferReason) (bool, error)
	ClearNotified(ctx context.Context, campaignID int64) error
}

// Notice describes one deferral for external consumers.
type Notice struct {
	CampaignID int64              `json:"campaign_id"`
	Reason     models.DeferReason `json:"reason"`
	ResumeAt   time.Time          `json:"resume_at"`
}

// Notifier delivers defer notices best-effort; failures are logged, never
// propagated into the send path.
type Notifier interface {
	NotifyDeferred(ctx context.Context, n Notice) error
}

type Ledger struct {
	store    Store
	notifier Notifier
	log      *zap.Logger
}

func NewLedger(store Store, notifier Notifier, log *zap.Logger) *Ledger {
	return &Ledger{store: store, notifier: notifier, log: log}
}

// Defer pauses the entry's campaign with a typed reason and resume time.
// When notify is set, the external notification is de-duplicated per
// (campaign, reason) so repeated deferrals for the same cause do not spam.
func (l *Ledger) Defer(ctx context.Context, entry *models.QueueEntry, reason models.DeferReason, until time.Time, notify bool) error {
	if err := l.store.DeferEntry(ctx, entry.ID, reason, until); err != nil {
		return fmt.Errorf("defer campaign %d (%s): %w", entry.CampaignID, reason, err)
	}

	entry.Status = models.QueuePending
	entry.DeferReason = &reason
	entry.DeferredUntil = &until

	metrics.Deferrals.WithLabelValues(string(reason)).Inc()
	l.log.Info("campaign deferred",
		zap.Int64("campaign_id", entry.CampaignID),
		zap.String("reason", string(reason)),
		zap.Time("deferred_until", until),
	)

	if !notify {
		return nil
	}

	first, err := l.store.MarkNotified(ctx, entry.CampaignID, reason)
	if err != nil {
		l.log.Error("defer notification dedupe failed",
			zap.Int64("campaign_id", entry.CampaignID),
			zap.Error(err),
		)
		return nil
	}
	if !first {
		return nil
	}

	notice := Notice{CampaignID: entry.CampaignID, Reason: reason, ResumeAt: until}
	if err := l.notifier.NotifyDeferred(ctx, notice); err != nil {
		l.log.Error("defer notification failed",
			zap.Int64("campaign_id", entry.CampaignID),
			zap.String("reason", string(reason)),
			zap.Error(err),
		)
	}
	return nil
}

// Clear drops the ledger's notification memory for a campaign, typically at
// finalization, so a future campaign pause for the same reason notifies
// again. The defer fields themselves are cleared atomically by the claim.
func (l *Ledger) Clear(ctx context.Context, campaignID int64) error {
	if err := l.store.ClearNotified(ctx, campaignID); err != nil {
		return fmt.Errorf("clear defer notifications for campaign %d: %w", campaignID, err)
	}
	return nil
}
