// Package orchestrator drives campaign sending: each tick claims one
// eligible campaign, walks its pending recipients under the admission
// checks, classifies transport outcomes and defers or finalizes the
// campaign. It never schedules itself; an external scheduler calls Tick.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mailflow/internal/breaker"
	"mailflow/internal/deferral"
	"mailflow/internal/metrics"
	"mailflow/internal/models"
	"mailflow/internal/quota"
	"mailflow/internal/ratelimit"
	"mailflow/internal/sendwindow"
	"mailflow/internal/transport"
)

// Store is the slice of persistence the tick loop needs. ClaimNextEntry must
// be an exclusive claim (skip rows another worker holds), never a
// read-then-write; MarkRecipient must be write-once for terminal statuses.
type Store interface {
	ProcessingEntries(ctx context.Context) ([]models.QueueEntry, error)
	RequeueStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error)
	ClaimNextEntry(ctx context.Context, now time.Time) (*models.QueueEntry, error)
	ReleaseEntry(ctx context.Context, entryID int64) error
	SetEntryTransientErrors(ctx context.Context, entryID int64, n int) error

	Campaign(ctx context.Context, id int64) (*models.Campaign, error)
	PendingRecipients(ctx context.Context, campaignID int64) ([]models.CampaignRecipient, error)
	PendingRecipientCount(ctx context.Context, campaignID int64) (int, error)
	MarkRecipient(ctx context.Context, recipientID int64, status models.RecipientStatus) (bool, error)
	FinalizeCampaign(ctx context.Context, campaignID int64) error

	AppendLedger(ctx context.Context, campaignID, recipientID int64, outcome models.SendOutcome) error
	SendsSince(ctx context.Context, ownerID int64, since time.Time) (int64, error)
	AccountLimits(ctx context.Context) (models.AccountLimits, error)
}

type Config struct {
	SendTimeout            time.Duration
	StaleProcessingAfter   time.Duration
	QuotaSyncInterval      time.Duration
	BreakerResumeDelay     time.Duration
	TransportDisabledRetry time.Duration
}

type Orchestrator struct {
	store     Store
	ledger    *deferral.Ledger
	limiter   *ratelimit.Limiter
	quota     *quota.Tracker
	breaker   *breaker.Breaker
	transport transport.Transport
	window    *sendwindow.Window
	cfg       Config
	log       *zap.Logger

	// now is swappable for tests.
	now func() time.Time
}

func New(
	store Store,
	ledger *deferral.Ledger,
	limiter *ratelimit.Limiter,
	tracker *quota.Tracker,
	brk *breaker.Breaker,
	tr transport.Transport,
	window *sendwindow.Window,
	cfg Config,
	log *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		store:     store,
		ledger:    ledger,
		limiter:   limiter,
		quota:     tracker,
		breaker:   brk,
		transport: tr,
		window:    window,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// Tick runs one scheduling round. Capacity deferrals and transient transport
// errors are absorbed here; only persistence failures propagate to the
// scheduler.
func (o *Orchestrator) Tick(ctx context.Context) error {
	started := time.Now()
	defer func() {
		metrics.TickDuration.Observe(time.Since(started).Seconds())
	}()

	now := o.now()
	log := o.log.With(zap.String("tick_id", uuid.NewString()))

	// An entry stuck in PROCESSING past the stale threshold was abandoned
	// by a dead worker; release it so it can be claimed again.
	requeued, err := o.store.RequeueStaleProcessing(ctx, now.Add(-o.cfg.StaleProcessingAfter))
	if err != nil {
		return fmt.Errorf("stale guard: %w", err)
	}
	if requeued > 0 {
		metrics.ReconcilerRepairs.WithLabelValues("stale_processing").Add(float64(requeued))
		log.Warn("requeued stale processing entries", zap.Int64("count", requeued))
	}

	if !o.window.Contains(now) {
		return o.deferOutsideHours(ctx, log, now)
	}

	entry, err := o.store.ClaimNextEntry(ctx, now)
	if err != nil {
		return fmt.Errorf("claim entry: %w", err)
	}
	if entry == nil {
		return nil
	}

	return o.drain(ctx, log, entry)
}

// deferOutsideHours parks every in-flight entry until the window reopens and
// selects no new work.
func (o *Orchestrator) deferOutsideHours(ctx context.Context, log *zap.Logger, now time.Time) error {
	entries, err := o.store.ProcessingEntries(ctx)
	if err != nil {
		return fmt.Errorf("hours guard: %w", err)
	}

	resume := o.window.NextOpen(now)
	for i := range entries {
		if err := o.ledger.Defer(ctx, &entries[i], models.DeferOutsideHours, resume, true); err != nil {
			return err
		}
	}
	if len(entries) > 0 {
		log.Info("outside business hours, deferred in-flight campaigns",
			zap.Int("count", len(entries)),
			zap.Time("resume", resume),
		)
	}
	return nil
}

// drain walks the claimed campaign's pending recipients in stable id order.
func (o *Orchestrator) drain(ctx context.Context, log *zap.Logger, entry *models.QueueEntry) error {
	campaign, err := o.store.Campaign(ctx, entry.CampaignID)
	if err != nil {
		return err
	}
	log = log.With(zap.Int64("campaign_id", campaign.ID))

	limits, err := o.store.AccountLimits(ctx)
	if err != nil {
		return err
	}

	recipients, err := o.store.PendingRecipients(ctx, campaign.ID)
	if err != nil {
		return err
	}

	for i := range recipients {
		// Operators can pause out-of-band; honor it at every iteration
		// boundary instead of requiring the worker to be killed.
		current, err := o.store.Campaign(ctx, campaign.ID)
		if err != nil {
			return err
		}
		if current.Status == models.CampaignPaused {
			log.Info("campaign paused by operator, releasing entry")
			return o.store.ReleaseEntry(ctx, entry.ID)
		}

		stop, err := o.sendOne(ctx, log, entry, campaign, &recipients[i], limits)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}

	return o.finalize(ctx, log, entry, campaign)
}

// sendOne applies the admission checks and dispatches one recipient.
// stop=true means the loop ended early (deferral or breaker trip) and the
// entry has already been parked.
func (o *Orchestrator) sendOne(
	ctx context.Context,
	log *zap.Logger,
	entry *models.QueueEntry,
	campaign *models.Campaign,
	recipient *models.CampaignRecipient,
	limits models.AccountLimits,
) (stop bool, err error) {
	now := o.now()

	// Per-user daily ceiling, counted from the ledger since local business
	// midnight. On-demand aggregation, never a cached counter.
	sentToday, err := o.store.SendsSince(ctx, campaign.OwnerID, o.window.DayStart(now))
	if err != nil {
		return false, fmt.Errorf("daily limit check: %w", err)
	}
	if sentToday >= int64(limits.DailySendLimit) {
		return true, o.ledger.Defer(ctx, entry, models.DeferDailyLimit, o.window.NextDayStart(now), true)
	}

	avail, err := o.quota.EffectiveAvailable(ctx)
	if err != nil {
		return false, fmt.Errorf("quota check: %w", err)
	}
	if avail <= 0 {
		resume, err := o.quota.NextSync(ctx, o.cfg.QuotaSyncInterval, now)
		if err != nil {
			resume = now.Add(o.cfg.QuotaSyncInterval)
		}
		return true, o.ledger.Defer(ctx, entry, models.DeferQuotaExhausted, resume, true)
	}

	// Reserve strictly before the transport call. A crash between send and
	// counting would let sends escape the hourly ceiling; a reservation
	// wasted on a crash merely under-uses it.
	decision := o.limiter.Reserve(ctx, sendwindow.HourBucket(now))
	if !decision.Allowed {
		return true, o.ledger.Defer(ctx, entry, models.DeferRatePerHour, sendwindow.NextHour(now), true)
	}

	msg, renderErr := buildMessage(campaign, recipient)

	var outcome transport.Outcome
	if renderErr != nil {
		// A template that cannot render will never succeed for this
		// recipient; treat as a permanent, recipient-level failure.
		outcome = transport.Permanent(renderErr)
	} else {
		sendCtx, cancel := context.WithTimeout(ctx, o.cfg.SendTimeout)
		outcome = o.transport.Send(sendCtx, msg)
		cancel()
	}

	switch outcome.Kind {
	case transport.Success:
		if err := o.recordTerminal(ctx, campaign.ID, recipient, models.RecipientSent, models.OutcomeSent); err != nil {
			return false, err
		}
		metrics.EmailsSent.Inc()
		return false, o.decayBreaker(ctx, entry)

	case transport.PermanentError:
		log.Warn("permanent send failure",
			zap.Int64("recipient_id", recipient.ID),
			zap.Error(outcome.Err),
		)
		if err := o.recordTerminal(ctx, campaign.ID, recipient, models.RecipientFailed, models.OutcomeFailed); err != nil {
			return false, err
		}
		metrics.EmailsFailed.Inc()
		return false, o.decayBreaker(ctx, entry)

	case transport.TransientError:
		metrics.TransientErrors.Inc()
		log.Warn("transient send failure, recipient kept pending",
			zap.Int64("recipient_id", recipient.ID),
			zap.Error(outcome.Err),
		)
		count, tripped := o.breaker.Next(entry.ConsecutiveTransientErrors, true)
		entry.ConsecutiveTransientErrors = count
		if err := o.store.SetEntryTransientErrors(ctx, entry.ID, count); err != nil {
			return false, err
		}
		if tripped {
			metrics.BreakerTrips.Inc()
			log.Warn("circuit breaker tripped")
			return true, o.ledger.Defer(ctx, entry, models.DeferTransientError, now.Add(o.cfg.BreakerResumeDelay), true)
		}
		return false, nil

	case transport.ConfigurationError:
		log.Error("transport configuration error, campaign disabled",
			zap.Error(outcome.Err),
		)
		return true, o.ledger.Defer(ctx, entry, models.DeferTransportDisabled, now.Add(o.cfg.TransportDisabledRetry), true)
	}

	return false, fmt.Errorf("unhandled transport outcome %v", outcome.Kind)
}

// recordTerminal writes the recipient's terminal status and appends the
// ledger record only when the status actually transitioned, keeping retries
// idempotent: no terminal rewrite, no duplicate ledger row.
func (o *Orchestrator) recordTerminal(
	ctx context.Context,
	campaignID int64,
	recipient *models.CampaignRecipient,
	status models.RecipientStatus,
	outcome models.SendOutcome,
) error {
	updated, err := o.store.MarkRecipient(ctx, recipient.ID, status)
	if err != nil {
		return err
	}
	if !updated {
		return nil
	}
	recipient.Status = status
	if err := o.store.AppendLedger(ctx, campaignID, recipient.ID, outcome); err != nil {
		return fmt.Errorf("append ledger for recipient %d: %w", recipient.ID, err)
	}
	return nil
}

func (o *Orchestrator) decayBreaker(ctx context.Context, entry *models.QueueEntry) error {
	count, _ := o.breaker.Next(entry.ConsecutiveTransientErrors, false)
	if count == entry.ConsecutiveTransientErrors {
		return nil
	}
	entry.ConsecutiveTransientErrors = count
	return o.store.SetEntryTransientErrors(ctx, entry.ID, count)
}

// finalize clears the entry and marks the campaign SENT when nothing is left
// to send. Recipients still pending (transient failures below the trip
// threshold) release the entry for the next tick instead.
func (o *Orchestrator) finalize(ctx context.Context, log *zap.Logger, entry *models.QueueEntry, campaign *models.Campaign) error {
	pending, err := o.store.PendingRecipientCount(ctx, campaign.ID)
	if err != nil {
		return err
	}
	if pending > 0 {
		log.Info("recipients still pending after pass, releasing entry",
			zap.Int("pending", pending),
		)
		return o.store.ReleaseEntry(ctx, entry.ID)
	}

	if err := o.store.FinalizeCampaign(ctx, campaign.ID); err != nil {
		return fmt.Errorf("finalize campaign %d: %w", campaign.ID, err)
	}
	if err := o.ledger.Clear(ctx, campaign.ID); err != nil {
		log.Error("clearing defer notifications failed", zap.Error(err))
	}
	log.Info("campaign finalized")
	return nil
}
