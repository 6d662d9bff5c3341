package notifications

import (
	"time"

	"github.com/librarium/librarium/internal/loans"
)

// The evaluator is pure: it classifies already-fetched loans against an
// already-fetched log and returns the loans to notify, in input order.

func usersEverNotified(log []LogEntry) map[int64]bool {
	users := make(map[int64]bool, len(log))
	for _, entry := range log {
		users[entry.UserID] = true
	}
	return users
}

// DueSoon returns open, not-yet-late loans whose due instant falls within
// nDays from now. Users with any prior log entry for this notification are
// excluded, so each user hears about an upcoming due date once.
func DueSoon(open []loans.LoanView, nDays int, log []LogEntry, now time.Time) []loans.LoanView {
	notified := usersEverNotified(log)
	horizon := now.AddDate(0, 0, nDays)
	var out []loans.LoanView
	for _, l := range open {
		if l.Late || l.Returned() {
			continue
		}
		if !l.Due.Before(horizon) {
			continue
		}
		if notified[l.UserID] {
			continue
		}
		out = append(out, l)
	}
	return out
}

// NewlyLate returns loans late by more than nDays whose user was never
// notified for this notification.
func NewlyLate(late []loans.LoanView, nDays int, log []LogEntry, now time.Time) []loans.LoanView {
	notified := usersEverNotified(log)
	cutoff := now.AddDate(0, 0, -nDays)
	var out []loans.LoanView
	for _, l := range late {
		if !l.Late {
			continue
		}
		if !l.Due.Before(cutoff) {
			continue
		}
		if notified[l.UserID] {
			continue
		}
		out = append(out, l)
	}
	return out
}

// RecurrentlyLate returns loans late by more than nDays, excluding users
// whose most recent log entry for this notification is younger than nDays.
// The effect is a reminder every nDays of continued lateness.
func RecurrentlyLate(late []loans.LoanView, nDays int, log []LogEntry, now time.Time) []loans.LoanView {
	recent := make(map[int64]bool)
	cutoffLog := now.AddDate(0, 0, -nDays)
	for _, entry := range log {
		if entry.CreatedAt.After(cutoffLog) {
			recent[entry.UserID] = true
		}
	}
	cutoff := now.AddDate(0, 0, -nDays)
	var out []loans.LoanView
	for _, l := range late {
		if !l.Late {
			continue
		}
		if !l.Due.Before(cutoff) {
			continue
		}
		if recent[l.UserID] {
			continue
		}
		out = append(out, l)
	}
	return out
}

// Evaluate dispatches to the scan trigger matching the notification.
func Evaluate(n Notification, open, late []loans.LoanView, log []LogEntry, now time.Time) []loans.LoanView {
	switch n.Trigger {
	case TriggerDueSoon:
		return DueSoon(open, n.NParameter, log, now)
	case TriggerNewlyLate:
		return NewlyLate(late, n.NParameter, log, now)
	case TriggerRecurrentlyLate:
		return RecurrentlyLate(late, n.NParameter, log, now)
	}
	return nil
}
