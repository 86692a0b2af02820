package sendwindow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContains(t *testing.T) {
	t.Parallel()

	w, err := New("UTC", 9, 17)
	require.NoError(t, err)

	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	assert.False(t, w.Contains(day.Add(8*time.Hour+59*time.Minute)))
	assert.True(t, w.Contains(day.Add(9*time.Hour)))
	assert.True(t, w.Contains(day.Add(16*time.Hour+59*time.Minute)))
	assert.False(t, w.Contains(day.Add(17*time.Hour)))
	assert.False(t, w.Contains(day.Add(20*time.Hour)))
}

func TestNextOpen(t *testing.T) {
	t.Parallel()

	w, err := New("UTC", 9, 17)
	require.NoError(t, err)

	tests := []struct {
		name string
		at   time.Time
		want time.Time
	}{
		{
			name: "before window opens today",
			at:   time.Date(2026, 3, 2, 7, 30, 0, 0, time.UTC),
			want: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "inside window rolls to tomorrow",
			at:   time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
			want: time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "evening rolls to tomorrow",
			at:   time.Date(2026, 3, 2, 20, 0, 0, 0, time.UTC),
			want: time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.want.Equal(w.NextOpen(tt.at)))
		})
	}
}

func TestDayBoundariesInBusinessTimezone(t *testing.T) {
	t.Parallel()

	w, err := New("America/New_York", 9, 17)
	require.NoError(t, err)

	// 02:00 UTC is 21:00 the previous day in New York.
	at := time.Date(2026, 3, 2, 2, 0, 0, 0, time.UTC)
	loc := w.Location()

	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, loc), w.DayStart(at).In(loc))
	assert.Equal(t, time.Date(2026, 3, 2, 9, 0, 0, 0, loc), w.NextDayStart(at).In(loc))
}

func TestHourBucket(t *testing.T) {
	t.Parallel()

	a := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	b := time.Date(2026, 3, 2, 10, 59, 59, 0, time.UTC)
	c := time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)

	assert.Equal(t, HourBucket(a), HourBucket(b))
	assert.NotEqual(t, HourBucket(a), HourBucket(c))
	assert.Equal(t, "send-hour:2026-03-02T10", HourBucket(a))
}

func TestNextHour(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 2, 10, 42, 13, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC), NextHour(at))
}

func TestInvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := New("UTC", 17, 9)
	assert.Error(t, err)

	_, err = New("Not/AZone", 9, 17)
	assert.Error(t, err)
}
