package siteconfig

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWorkingDays(t *testing.T) {
	days, err := ParseWorkingDays("2,3,4,5,6")
	require.NoError(t, err)
	assert.Equal(t, map[int]bool{2: true, 3: true, 4: true, 5: true, 6: true}, days)

	days, err = ParseWorkingDays(" 1 , 7 ")
	require.NoError(t, err)
	assert.Equal(t, map[int]bool{1: true, 7: true}, days)

	for _, raw := range []string{"0", "8", "mon", "2;3"} {
		_, err := ParseWorkingDays(raw)
		assert.ErrorIs(t, err, ErrBadWorkingDays, raw)
	}
}

func TestConfigurationCalendar(t *testing.T) {
	cfg := Configuration{WorkingDays: "2,3,4,5,6", EndingHour: "18:30"}
	cal, err := cfg.Calendar(time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 18, cal.ClosingHour)
	assert.Equal(t, 30, cal.ClosingMinute)

	// 1=Sunday through 7=Saturday.
	assert.True(t, cal.IsOpen(time.Monday))
	assert.True(t, cal.IsOpen(time.Friday))
	assert.False(t, cal.IsOpen(time.Saturday))
	assert.False(t, cal.IsOpen(time.Sunday))
	assert.True(t, cal.HasOpenDay())

	_, err = cfg.Calendar(nil)
	assert.NoError(t, err, "nil location falls back to time.Local")

	for _, raw := range []string{"18", "25:00", "12:61", "noon"} {
		bad := Configuration{WorkingDays: "2", EndingHour: raw}
		_, err := bad.Calendar(time.UTC)
		assert.ErrorIs(t, err, ErrBadEndingHour, raw)
	}
}

func TestCalendarClosingOn(t *testing.T) {
	sp, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)
	cal := Calendar{
		WorkingWeekdays: map[int]bool{2: true},
		ClosingHour:     18,
		Location:        sp,
	}

	// 23:30 UTC is 20:30 in São Paulo, still the same local day.
	at := time.Date(2026, 3, 2, 23, 30, 0, 0, time.UTC)
	closing := cal.ClosingOn(at)
	assert.Equal(t, time.Date(2026, 3, 2, 18, 0, 0, 0, sp), closing)
}

func TestCalendarWithoutOpenDays(t *testing.T) {
	cal := Calendar{WorkingWeekdays: map[int]bool{}, Location: time.UTC}
	assert.False(t, cal.HasOpenDay())
}
