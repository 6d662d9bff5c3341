package loans

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librarium/librarium/internal/siteconfig"
)

// weekdaysMonFri is the default open-days configuration, 1=Sunday through
// 7=Saturday.
func weekdaysMonFri() map[int]bool {
	return map[int]bool{2: true, 3: true, 4: true, 5: true, 6: true}
}

func testCalendar() siteconfig.Calendar {
	return siteconfig.Calendar{
		WorkingWeekdays: weekdaysMonFri(),
		ClosingHour:     18,
		ClosingMinute:   0,
		Location:        time.UTC,
	}
}

func TestComputeDue(t *testing.T) {
	cal := testCalendar()

	// 2026-03-02 is a Monday.
	tests := []struct {
		name  string
		exact time.Time
		want  time.Time
	}{
		{
			"open day before closing lands same day",
			time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
			time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC),
		},
		{
			"exactly at closing still lands same day",
			time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC),
			time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC),
		},
		{
			"after closing rolls to next open day",
			time.Date(2026, 3, 2, 19, 30, 0, 0, time.UTC),
			time.Date(2026, 3, 3, 18, 0, 0, 0, time.UTC),
		},
		{
			"saturday rolls to monday",
			time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC),
			time.Date(2026, 3, 9, 18, 0, 0, 0, time.UTC),
		},
		{
			"friday after closing skips the weekend",
			time.Date(2026, 3, 6, 18, 0, 1, 0, time.UTC),
			time.Date(2026, 3, 9, 18, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			due, err := ComputeDue(tt.exact, cal)
			require.NoError(t, err)
			assert.True(t, due.Equal(tt.want), "got %v want %v", due, tt.want)
		})
	}
}

func TestComputeDueSingleOpenDay(t *testing.T) {
	cal := testCalendar()
	cal.WorkingWeekdays = map[int]bool{4: true} // Wednesdays only

	// Thursday exact due waits almost a week.
	due, err := ComputeDue(time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC), cal)
	require.NoError(t, err)
	assert.True(t, due.Equal(time.Date(2026, 3, 11, 18, 0, 0, 0, time.UTC)), "got %v", due)
}

func TestComputeDueNoOpenDay(t *testing.T) {
	cal := testCalendar()
	cal.WorkingWeekdays = map[int]bool{}

	_, err := ComputeDue(time.Now(), cal)
	require.ErrorIs(t, err, ErrNoOpenDay)
}

func TestComputeDueRespectsTimezone(t *testing.T) {
	cal := testCalendar()
	cal.Location = time.FixedZone("UTC-3", -3*60*60)

	// 2026-03-02 22:00 UTC is Monday 19:00 in UTC-3, past closing, so the
	// due rolls to Tuesday closing in that zone.
	due, err := ComputeDue(time.Date(2026, 3, 2, 22, 0, 0, 0, time.UTC), cal)
	require.NoError(t, err)
	want := time.Date(2026, 3, 3, 18, 0, 0, 0, cal.Location)
	assert.True(t, due.Equal(want), "got %v want %v", due, want)
}

func TestLoanExactDue(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	l := Loan{
		Date:   start,
		Policy: Policy{Days: 7},
		Renewals: []RenewalStep{
			{Days: 7, Order: 0},
			{Days: 3, Order: 1},
		},
	}
	assert.True(t, l.ExactDue().Equal(start.AddDate(0, 0, 17)))
}

func TestLate(t *testing.T) {
	cal := testCalendar()
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	l := Loan{Date: start, Policy: Policy{Days: 0}}

	late, err := Late(l, cal, time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, late, "not late before closing")

	late, err = Late(l, cal, time.Date(2026, 3, 2, 18, 0, 1, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, late, "late after closing")

	returned := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	l.ReturnDate = &returned
	late, err = Late(l, cal, time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, late, "returned loans are never late")
}
