package deferral

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailflow/internal/models"
)

type deferWrite struct {
	entryID int64
	reason  models.DeferReason
	until   time.Time
}

type fakeStore struct {
	writes   []deferWrite
	notified map[int64]map[models.DeferReason]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{notified: make(map[int64]map[models.DeferReason]bool)}
}

func (f *fakeStore) DeferEntry(_ context.Context, entryID int64, reason models.DeferReason, until time.Time) error {
	f.writes = append(f.writes, deferWrite{entryID: entryID, reason: reason, until: until})
	return nil
}

func (f *fakeStore) MarkNotified(_ context.Context, campaignID int64, reason models.DeferReason) (bool, error) {
	if f.notified[campaignID] == nil {
		f.notified[campaignID] = make(map[models.DeferReason]bool)
	}
	if f.notified[campaignID][reason] {
		return false, nil
	}
	f.notified[campaignID][reason] = true
	return true, nil
}

func (f *fakeStore) ClearNotified(_ context.Context, campaignID int64) error {
	delete(f.notified, campaignID)
	return nil
}

type recordingNotifier struct {
	notices []Notice
}

func (r *recordingNotifier) NotifyDeferred(_ context.Context, n Notice) error {
	r.notices = append(r.notices, n)
	return nil
}

func TestDeferWritesReasonAndUntilTogether(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	ledger := NewLedger(store, &recordingNotifier{}, zap.NewNop())

	entry := &models.QueueEntry{ID: 7, CampaignID: 3, Status: models.QueueProcessing}
	until := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)

	require.NoError(t, ledger.Defer(context.Background(), entry, models.DeferDailyLimit, until, false))

	require.Len(t, store.writes, 1)
	assert.Equal(t, models.DeferDailyLimit, store.writes[0].reason)
	assert.Equal(t, until, store.writes[0].until)

	// The in-memory entry mirrors the persisted row: paired fields set,
	// status back to pending.
	assert.Equal(t, models.QueuePending, entry.Status)
	require.NotNil(t, entry.DeferReason)
	require.NotNil(t, entry.DeferredUntil)
	assert.Equal(t, models.DeferDailyLimit, *entry.DeferReason)
	assert.True(t, until.Equal(*entry.DeferredUntil))
}

func TestNotificationsDedupedPerCampaignAndReason(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	notifier := &recordingNotifier{}
	ledger := NewLedger(store, notifier, zap.NewNop())

	entry := &models.QueueEntry{ID: 1, CampaignID: 42}
	until := time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)

	require.NoError(t, ledger.Defer(context.Background(), entry, models.DeferRatePerHour, until, true))
	require.NoError(t, ledger.Defer(context.Background(), entry, models.DeferRatePerHour, until.Add(time.Hour), true))
	require.Len(t, notifier.notices, 1, "same cause must not notify twice")

	// A different cause on the same campaign notifies again.
	require.NoError(t, ledger.Defer(context.Background(), entry, models.DeferQuotaExhausted, until, true))
	require.Len(t, notifier.notices, 2)

	// After the memory is cleared, a fresh pause notifies once more.
	require.NoError(t, ledger.Clear(context.Background(), entry.CampaignID))
	require.NoError(t, ledger.Defer(context.Background(), entry, models.DeferRatePerHour, until, true))
	assert.Len(t, notifier.notices, 3)
}

func TestNotifyFlagSkipsNotification(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	notifier := &recordingNotifier{}
	ledger := NewLedger(store, notifier, zap.NewNop())

	entry := &models.QueueEntry{ID: 1, CampaignID: 9}
	require.NoError(t, ledger.Defer(context.Background(), entry, models.DeferOutsideHours, time.Now(), false))
	assert.Empty(t, notifier.notices)
}
