package loans

import (
	"time"

	"github.com/librarium/librarium/internal/siteconfig"
)

// ComputeDue adjusts the exact due instant to library hours: the result is
// always the closing time of an open weekday. When the exact due falls at or
// before closing on its own day, that day is the first candidate; otherwise
// scanning starts on the next day. Seven consecutive days are tried, which
// covers every weekday once.
func ComputeDue(exactDue time.Time, cal siteconfig.Calendar) (time.Time, error) {
	if !cal.HasOpenDay() {
		return time.Time{}, ErrNoOpenDay
	}
	local := exactDue.In(cal.Location)
	start := 0
	if local.After(cal.ClosingOn(local)) {
		start = 1
	}
	for offset := start; offset < start+7; offset++ {
		day := local.AddDate(0, 0, offset)
		if cal.IsOpen(day.Weekday()) {
			return time.Date(day.Year(), day.Month(), day.Day(), cal.ClosingHour, cal.ClosingMinute, 0, 0, cal.Location), nil
		}
	}
	return time.Time{}, ErrNoOpenDay
}

// Due computes the calendar-adjusted due instant of the loan.
func Due(l Loan, cal siteconfig.Calendar) (time.Time, error) {
	return ComputeDue(l.ExactDue(), cal)
}

// Late reports whether the loan is still open past its adjusted due instant.
func Late(l Loan, cal siteconfig.Calendar, now time.Time) (bool, error) {
	if l.Returned() {
		return false, nil
	}
	due, err := Due(l, cal)
	if err != nil {
		return false, err
	}
	return now.After(due), nil
}
