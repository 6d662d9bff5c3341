package notifications

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/librarium/librarium/internal/loans"
)

var evalNow = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func openLoan(id, userID int64, due time.Time) loans.LoanView {
	return loans.LoanView{
		Loan: loans.Loan{ID: id, UserID: userID, Date: due.AddDate(0, 0, -7)},
		Due:  due,
	}
}

func lateLoan(id, userID int64, due time.Time) loans.LoanView {
	l := openLoan(id, userID, due)
	l.Late = true
	return l
}

func loanIDs(views []loans.LoanView) []int64 {
	var ids []int64
	for _, v := range views {
		ids = append(ids, v.ID)
	}
	return ids
}

func TestDueSoon(t *testing.T) {
	open := []loans.LoanView{
		openLoan(1, 10, evalNow.AddDate(0, 0, 1)),  // within horizon
		openLoan(2, 11, evalNow.AddDate(0, 0, 10)), // too far out
		openLoan(3, 12, evalNow.AddDate(0, 0, 2)),  // within horizon, user already notified
	}
	log := []LogEntry{{LoanID: 99, UserID: 12, CreatedAt: evalNow.AddDate(0, 0, -30)}}

	got := DueSoon(open, 3, log, evalNow)
	assert.Equal(t, []int64{1}, loanIDs(got))
}

func TestDueSoonSkipsLateLoans(t *testing.T) {
	mixed := []loans.LoanView{
		lateLoan(1, 10, evalNow.AddDate(0, 0, -1)),
		openLoan(2, 11, evalNow.AddDate(0, 0, 1)),
	}
	got := DueSoon(mixed, 3, nil, evalNow)
	assert.Equal(t, []int64{2}, loanIDs(got))
}

func TestDueSoonIdempotentWithoutLogAppend(t *testing.T) {
	open := []loans.LoanView{openLoan(1, 10, evalNow.AddDate(0, 0, 1))}

	first := DueSoon(open, 3, nil, evalNow)
	second := DueSoon(open, 3, nil, evalNow)
	assert.Equal(t, loanIDs(first), loanIDs(second))

	// After a log append for that user, the loan drops out.
	log := []LogEntry{{LoanID: 1, UserID: 10, CreatedAt: evalNow}}
	assert.Empty(t, DueSoon(open, 3, log, evalNow))
}

func TestNewlyLate(t *testing.T) {
	late := []loans.LoanView{
		lateLoan(1, 10, evalNow.AddDate(0, 0, -5)), // late beyond threshold
		lateLoan(2, 11, evalNow.AddDate(0, 0, -1)), // not late enough
		lateLoan(3, 12, evalNow.AddDate(0, 0, -9)), // user already notified
	}
	log := []LogEntry{{LoanID: 3, UserID: 12, CreatedAt: evalNow.AddDate(0, 0, -60)}}

	got := NewlyLate(late, 3, log, evalNow)
	assert.Equal(t, []int64{1}, loanIDs(got))
}

func TestRecurrentlyLateRenotifiesAfterInterval(t *testing.T) {
	late := []loans.LoanView{
		lateLoan(1, 10, evalNow.AddDate(0, 0, -20)),
		lateLoan(2, 11, evalNow.AddDate(0, 0, -20)),
	}
	log := []LogEntry{
		{LoanID: 1, UserID: 10, CreatedAt: evalNow.AddDate(0, 0, -2)}, // fresh, suppresses
		{LoanID: 2, UserID: 11, CreatedAt: evalNow.AddDate(0, 0, -8)}, // stale, re-notify
	}

	got := RecurrentlyLate(late, 7, log, evalNow)
	assert.Equal(t, []int64{2}, loanIDs(got))
}

func TestEvaluateDispatchesByTrigger(t *testing.T) {
	open := []loans.LoanView{openLoan(1, 10, evalNow.AddDate(0, 0, 1))}
	late := []loans.LoanView{lateLoan(2, 11, evalNow.AddDate(0, 0, -10))}

	dueSoon := Notification{Trigger: TriggerDueSoon, NParameter: 3}
	assert.Equal(t, []int64{1}, loanIDs(Evaluate(dueSoon, open, late, nil, evalNow)))

	newlyLate := Notification{Trigger: TriggerNewlyLate, NParameter: 3}
	assert.Equal(t, []int64{2}, loanIDs(Evaluate(newlyLate, open, late, nil, evalNow)))

	receipt := Notification{Trigger: TriggerLoanReceipt}
	assert.Empty(t, Evaluate(receipt, open, late, nil, evalNow))
}
