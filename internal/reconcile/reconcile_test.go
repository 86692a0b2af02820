package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeStore struct {
	demoted  int64
	requeued int64
	flagged  []int64

	demoteCalls  int
	requeueCalls int
	cutoffs      []time.Time
}

func (f *fakeStore) DemoteDuplicateProcessing(context.Context) (int64, error) {
	f.demoteCalls++
	return f.demoted, nil
}

func (f *fakeStore) RequeueStaleProcessing(_ context.Context, cutoff time.Time) (int64, error) {
	f.requeueCalls++
	f.cutoffs = append(f.cutoffs, cutoff)
	return f.requeued, nil
}

func (f *fakeStore) SentCampaignsWithFailures(context.Context) ([]int64, error) {
	return f.flagged, nil
}

func TestHealthyStateIsNoOp(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	r := New(store, 30*time.Minute, zap.NewNop())

	require.NoError(t, r.Run(context.Background()))

	// Both sweeps ran and found nothing to repair; running again changes
	// nothing either.
	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, 2, store.demoteCalls)
	assert.Equal(t, 2, store.requeueCalls)
}

func TestStaleCutoffUsesThreshold(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	r := New(store, 30*time.Minute, zap.NewNop())

	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	require.NoError(t, r.Run(context.Background()))
	require.Len(t, store.cutoffs, 1)
	assert.True(t, now.Add(-30*time.Minute).Equal(store.cutoffs[0]))
}

func TestRepairsAreReported(t *testing.T) {
	t.Parallel()

	store := &fakeStore{demoted: 2, requeued: 1, flagged: []int64{5, 9}}
	r := New(store, 30*time.Minute, zap.NewNop())

	// Repairs and flags must not abort the sweep.
	require.NoError(t, r.Run(context.Background()))
}
