package loans

import "time"

// ApplyRenewal appends the next renewal step of the policy to the loan.
// After the first renewal, another one is allowed only once the period
// covered by the most recent renewal has started. Steps are consumed in
// ascending order and never repeat.
func (l *Loan) ApplyRenewal(now time.Time) Rejection {
	n := len(l.Renewals)
	if n > 0 {
		days := l.Policy.Days
		for _, r := range l.Renewals[:n-1] {
			days += r.Days
		}
		if now.Before(l.Date.AddDate(0, 0, days)) {
			return RejectionRenewalNotStarted
		}
	}
	lastOrder := -1
	if n > 0 {
		lastOrder = l.Renewals[n-1].Order
	}
	for _, step := range l.Policy.Steps {
		if step.Order > lastOrder {
			l.Renewals = append(l.Renewals, step)
			return RejectionNone
		}
	}
	return RejectionNoMoreRenewals
}

// RemoveRenewal drops the most recently applied renewal. There is no time
// gate on removal.
func (l *Loan) RemoveRenewal() Rejection {
	n := len(l.Renewals)
	if n == 0 {
		return RejectionNothingToUnrenew
	}
	l.Renewals = l.Renewals[:n-1]
	return RejectionNone
}

// Close stamps the return date on an open loan.
func (l *Loan) Close(now time.Time) Rejection {
	if l.Returned() {
		return RejectionAlreadyReturned
	}
	l.ReturnDate = &now
	return RejectionNone
}
