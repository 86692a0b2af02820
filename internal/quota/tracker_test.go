package quota

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailflow/internal/models"
)

type fakeStore struct {
	snap  models.ProviderQuotaSnapshot
	sends []time.Time
}

func (f *fakeStore) QuotaSnapshot(context.Context) (models.ProviderQuotaSnapshot, error) {
	return f.snap, nil
}

func (f *fakeStore) LedgerCountAfter(_ context.Context, t time.Time) (int64, error) {
	var n int64
	for _, s := range f.sends {
		if s.After(t) {
			n++
		}
	}
	return n, nil
}

func TestEffectiveAvailableSubtractsSyncLag(t *testing.T) {
	t.Parallel()

	synced := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	store := &fakeStore{
		snap: models.ProviderQuotaSnapshot{EmailsAvailable: 50, EmailsLimit: 1000, LastSyncedAt: synced},
	}
	tracker := New(store)

	avail, err := tracker.EffectiveAvailable(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(50), avail)

	// Each ledger append since the sync reduces availability by exactly one.
	for i := 1; i <= 5; i++ {
		store.sends = append(store.sends, synced.Add(time.Duration(i)*time.Minute))
		avail, err = tracker.EffectiveAvailable(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(50-i), avail)
	}

	// Sends before the sync are already reflected in the snapshot.
	store.sends = append(store.sends, synced.Add(-time.Hour))
	avail, err = tracker.EffectiveAvailable(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(45), avail)
}

func TestEffectiveAvailableClampsAtZero(t *testing.T) {
	t.Parallel()

	synced := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	store := &fakeStore{
		snap: models.ProviderQuotaSnapshot{EmailsAvailable: 2, LastSyncedAt: synced},
		sends: []time.Time{
			synced.Add(time.Minute),
			synced.Add(2 * time.Minute),
			synced.Add(3 * time.Minute),
		},
	}

	avail, err := New(store).EffectiveAvailable(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), avail)
}

func TestNextSync(t *testing.T) {
	t.Parallel()

	synced := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	store := &fakeStore{snap: models.ProviderQuotaSnapshot{LastSyncedAt: synced}}
	tracker := New(store)

	now := synced.Add(5 * time.Minute)
	next, err := tracker.NextSync(context.Background(), 15*time.Minute, now)
	require.NoError(t, err)
	assert.Equal(t, synced.Add(15*time.Minute), next)

	// Sync job is overdue: fall forward instead of returning a past time.
	now = synced.Add(20 * time.Minute)
	next, err = tracker.NextSync(context.Background(), 15*time.Minute, now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(15*time.Minute), next)
}
