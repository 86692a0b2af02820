// Package reconcile sweeps persisted state for anomalies the tick loop may
// have left behind (crashes, duplicate claims) and repairs them. The sweep
// is idempotent: on healthy state it writes nothing.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"mailflow/internal/metrics"
)

type Store interface {
	DemoteDuplicateProcessing(ctx context.Context) (int64, error)
	RequeueStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error)
	SentCampaignsWithFailures(ctx context.Context) ([]int64, error)
}

type Reconciler struct {
	store      Store
	staleAfter time.Duration
	log        *zap.Logger

	now func() time.Time
}

func New(store Store, staleAfter time.Duration, log *zap.Logger) *Reconciler {
	return &Reconciler{
		store:      store,
		staleAfter: staleAfter,
		log:        log,
		now:        time.Now,
	}
}

// Run executes one sweep. Safe to run on any cadence, concurrently with
// ticks.
func (r *Reconciler) Run(ctx context.Context) error {
	demoted, err := r.store.DemoteDuplicateProcessing(ctx)
	if err != nil {
		return fmt.Errorf("demote duplicates: %w", err)
	}
	if demoted > 0 {
		metrics.ReconcilerRepairs.WithLabelValues("duplicate_processing").Add(float64(demoted))
		r.log.Warn("demoted duplicate processing entries", zap.Int64("count", demoted))
	}

	requeued, err := r.store.RequeueStaleProcessing(ctx, r.now().Add(-r.staleAfter))
	if err != nil {
		return fmt.Errorf("requeue stale: %w", err)
	}
	if requeued > 0 {
		metrics.ReconcilerRepairs.WithLabelValues("stale_processing").Add(float64(requeued))
		r.log.Warn("requeued stale processing entries", zap.Int64("count", requeued))
	}

	flagged, err := r.store.SentCampaignsWithFailures(ctx)
	if err != nil {
		return fmt.Errorf("scan sent campaigns: %w", err)
	}
	for _, id := range flagged {
		// Surfaced for operator review only; a SENT campaign is never
		// reopened automatically.
		r.log.Warn("sent campaign has failed recipients",
			zap.Int64("campaign_id", id),
		)
	}

	return nil
}
