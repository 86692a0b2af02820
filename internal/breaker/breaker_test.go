package breaker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTripsAtThreshold(t *testing.T) {
	t.Parallel()

	b := New(10)
	count := 0
	for i := 0; i < 9; i++ {
		var tripped bool
		count, tripped = b.Next(count, true)
		assert.False(t, tripped)
		assert.Equal(t, i+1, count)
	}

	count, tripped := b.Next(count, true)
	assert.True(t, tripped)
	assert.Equal(t, 0, count, "counter restarts at zero on trip")
}

func TestSuccessDecaysInsteadOfResetting(t *testing.T) {
	t.Parallel()

	b := New(10)

	count := 0
	for i := 0; i < 8; i++ {
		count, _ = b.Next(count, true)
	}
	assert.Equal(t, 8, count)

	// One lucky send must not wipe out the history of a degrading
	// transport: the counter steps down, it does not reset.
	count, tripped := b.Next(count, false)
	assert.False(t, tripped)
	assert.Equal(t, 7, count)

	// Two more transients still reach the threshold.
	count, tripped = b.Next(count, true)
	assert.False(t, tripped)
	assert.Equal(t, 8, count)
	count, tripped = b.Next(count, true)
	assert.False(t, tripped)
	count, tripped = b.Next(count, true)
	assert.True(t, tripped)
	assert.Equal(t, 0, count)
}

func TestCounterFloorsAtZero(t *testing.T) {
	t.Parallel()

	b := New(10)
	count, tripped := b.Next(0, false)
	assert.False(t, tripped)
	assert.Equal(t, 0, count)
}

func TestZeroThresholdDefaults(t *testing.T) {
	t.Parallel()

	b := New(0)
	count := 0
	tripped := false
	for i := 0; i < 10; i++ {
		count, tripped = b.Next(count, true)
	}
	assert.True(t, tripped)
}
