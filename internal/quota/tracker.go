// Package quota computes how much of the delivery provider's monthly quota
// is really left, compensating for sync lag: the remote snapshot may be
// minutes stale, so local sends issued since the last sync are subtracted.
package quota

import (
	"context"
	"fmt"
	"time"

	"mailflow/internal/models"
)

type Store interface {
	QuotaSnapshot(ctx context.Context) (models.ProviderQuotaSnapshot, error)
	LedgerCountAfter(ctx context.Context, t time.Time) (int64, error)
}

type Tracker struct {
	store Store
}

func New(store Store) *Tracker {
	return &Tracker{store: store}
}

// EffectiveAvailable is a pure read: snapshot availability minus ledger
// appends since the snapshot was taken, clamped at zero.
func (t *Tracker) EffectiveAvailable(ctx context.Context) (int64, error) {
	snap, err := t.store.QuotaSnapshot(ctx)
	if err != nil {
		return 0, fmt.Errorf("read quota snapshot: %w", err)
	}

	sent, err := t.store.LedgerCountAfter(ctx, snap.LastSyncedAt)
	if err != nil {
		return 0, fmt.Errorf("count sends since sync: %w", err)
	}

	avail := snap.EmailsAvailable - sent
	if avail < 0 {
		avail = 0
	}
	return avail, nil
}

// NextSync estimates when the external sync job will refresh the snapshot
// again; used as the resume time for quota_exhausted deferrals.
func (t *Tracker) NextSync(ctx context.Context, interval time.Duration, now time.Time) (time.Time, error) {
	snap, err := t.store.QuotaSnapshot(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("read quota snapshot: %w", err)
	}
	next := snap.LastSyncedAt.Add(interval)
	if !next.After(now) {
		next = now.Add(interval)
	}
	return next, nil
}
