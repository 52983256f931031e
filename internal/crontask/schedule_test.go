package crontask

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScheduleUnits(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw    string
		unit   Unit
		count  int64
		millis int64
	}{
		{raw: "every 12 hours", unit: UnitHours, count: 12, millis: 43_200_000},
		{raw: "every 10 minutes", unit: UnitMinutes, count: 10, millis: 600_000},
		{raw: "every 30 seconds", unit: UnitSeconds, count: 30, millis: 30_000},
		{raw: "every 1 hours", unit: UnitHours, count: 1, millis: 3_600_000},
		{raw: "every 007 seconds", unit: UnitSeconds, count: 7, millis: 7_000},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			iv, err := ParseSchedule(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.unit, iv.Unit)
			assert.Equal(t, tt.count, iv.Count)
			assert.Equal(t, tt.millis, iv.Millis())
			assert.Equal(t, time.Duration(tt.millis)*time.Millisecond, iv.Period())
		})
	}
}

func TestParseScheduleMultiplierProperty(t *testing.T) {
	t.Parallel()

	for _, unit := range []Unit{UnitHours, UnitMinutes, UnitSeconds} {
		for _, n := range []int64{1, 2, 5, 59, 60, 999, 100_000} {
			raw := Interval{Count: n, Unit: unit}.String()
			iv, err := ParseSchedule(raw)
			require.NoError(t, err, raw)
			assert.Equal(t, n*unit.Millis(), iv.Millis(), raw)
			assert.Positive(t, iv.Millis(), raw)
		}
	}
}

func TestParseScheduleUnsupportedUnit(t *testing.T) {
	t.Parallel()

	iv, err := ParseSchedule("every 5 days")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedUnit)
	assert.NotErrorIs(t, err, ErrInvalidSchedule)
	assert.Equal(t, int64(5), iv.Count)
	assert.Equal(t, UnitUnknown, iv.Unit)
	assert.Zero(t, iv.Millis())

	var se *ScheduleError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "every 5 days", se.Expr)
}

func TestParseScheduleMalformed(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{
		"",
		"every abc hours",
		"every 10minutes",
		"every  10 minutes",
		"every 10  minutes",
		" every 10 minutes",
		"every 10 minutes ",
		"every 10 minutes please",
		"10 minutes every",
		"Every 10 minutes",
		"each 10 minutes",
		"every 0 seconds",
		"every -5 seconds",
		"every 1.5 hours",
		"every 9223372036854775807 hours",
		"every 99999999999999999999 seconds",
	} {
		_, err := ParseSchedule(raw)
		assert.ErrorIs(t, err, ErrInvalidSchedule, "%q", raw)
	}
}

func TestUnitString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "hours", UnitHours.String())
	assert.Equal(t, "minutes", UnitMinutes.String())
	assert.Equal(t, "seconds", UnitSeconds.String())
	assert.Equal(t, "unknown", UnitUnknown.String())

	u, ok := ParseUnit("minutes")
	assert.True(t, ok)
	assert.Equal(t, UnitMinutes, u)
	_, ok = ParseUnit("Minutes")
	assert.False(t, ok)
}
