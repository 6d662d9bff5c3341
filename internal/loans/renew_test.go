package loans

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func renewablePolicy() Policy {
	return Policy{
		ID:   1,
		Days: 7,
		Steps: []RenewalStep{
			{ID: 10, PolicyID: 1, Days: 7, Order: 0},
			{ID: 11, PolicyID: 1, Days: 5, Order: 1},
		},
	}
}

func TestApplyRenewalFirstIsImmediate(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	l := Loan{Date: start, Policy: renewablePolicy()}

	rej := l.ApplyRenewal(start.Add(time.Minute))
	require.True(t, rej.OK())
	require.Len(t, l.Renewals, 1)
	assert.Equal(t, int64(10), l.Renewals[0].ID)
}

func TestApplyRenewalGate(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	l := Loan{Date: start, Policy: renewablePolicy()}
	require.True(t, l.ApplyRenewal(start).OK())

	// The second renewal opens once the first renewal's period has started,
	// i.e. after the base policy days.
	rej := l.ApplyRenewal(start.AddDate(0, 0, 6))
	assert.Equal(t, RejectionRenewalNotStarted, rej)
	assert.Len(t, l.Renewals, 1)

	rej = l.ApplyRenewal(start.AddDate(0, 0, 7))
	require.True(t, rej.OK())
	require.Len(t, l.Renewals, 2)
	assert.Equal(t, int64(11), l.Renewals[1].ID)
}

func TestApplyRenewalExhaustion(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	l := Loan{Date: start, Policy: renewablePolicy()}
	require.True(t, l.ApplyRenewal(start).OK())
	require.True(t, l.ApplyRenewal(start.AddDate(0, 0, 7)).OK())

	// Both steps consumed. The gate for a third has passed but no step is
	// left.
	rej := l.ApplyRenewal(start.AddDate(0, 0, 30))
	assert.Equal(t, RejectionNoMoreRenewals, rej)
	assert.Len(t, l.Renewals, 2)
}

func TestApplyRenewalNoSteps(t *testing.T) {
	l := Loan{Date: time.Now(), Policy: Policy{ID: 1, Days: 7}}
	assert.Equal(t, RejectionNoMoreRenewals, l.ApplyRenewal(time.Now()))
}

func TestRemoveRenewal(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	l := Loan{Date: start, Policy: renewablePolicy()}
	require.True(t, l.ApplyRenewal(start).OK())

	// Removal has no time gate.
	require.True(t, l.RemoveRenewal().OK())
	assert.Empty(t, l.Renewals)

	assert.Equal(t, RejectionNothingToUnrenew, l.RemoveRenewal())
}

func TestRemoveThenReapplySameStep(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	l := Loan{Date: start, Policy: renewablePolicy()}
	require.True(t, l.ApplyRenewal(start).OK())
	require.True(t, l.RemoveRenewal().OK())

	rej := l.ApplyRenewal(start.Add(time.Hour))
	require.True(t, rej.OK())
	assert.Equal(t, int64(10), l.Renewals[0].ID, "removed step becomes available again")
}

func TestClose(t *testing.T) {
	l := Loan{Date: time.Now()}
	now := time.Now()

	require.True(t, l.Close(now).OK())
	require.NotNil(t, l.ReturnDate)
	assert.True(t, l.ReturnDate.Equal(now))

	assert.Equal(t, RejectionAlreadyReturned, l.Close(now.Add(time.Hour)))
}
