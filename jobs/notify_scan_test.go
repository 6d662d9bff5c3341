package jobs

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librarium/librarium/internal/notifications"
)

type fakeScanner struct {
	report notifications.DispatchReport
	err    error
}

func (f fakeScanner) Scan(ctx context.Context) (notifications.DispatchReport, error) {
	return f.report, f.err
}

type fakeReceiptSender struct {
	report  notifications.DispatchReport
	err     error
	trigger notifications.Trigger
	loanID  int64
}

func (f *fakeReceiptSender) SendReceipt(ctx context.Context, trigger notifications.Trigger, loanID int64) (notifications.DispatchReport, error) {
	f.trigger = trigger
	f.loanID = loanID
	return f.report, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestNotifyScanJobReportsSkippedPass(t *testing.T) {
	scanner := fakeScanner{report: notifications.DispatchReport{Skipped: true}}
	job := NewNotifyScanJob(scanner, testLogger(), nil)

	err := job.Handle(context.Background(), NewNotifyScanTask())
	require.NoError(t, err)
}

func TestNotifyScanJobPropagatesScanError(t *testing.T) {
	boom := errors.New("scan broke")
	job := NewNotifyScanJob(fakeScanner{err: boom}, testLogger(), nil)

	err := job.Handle(context.Background(), NewNotifyScanTask())
	assert.ErrorIs(t, err, boom)
}

func TestReceiptJobMapsEventToTrigger(t *testing.T) {
	sender := &fakeReceiptSender{}
	job := NewReceiptJob(sender, testLogger())

	task, err := NewReceiptTask(ReceiptPayload{Event: "renewal", LoanID: 7})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	assert.Equal(t, notifications.Trigger("renewal_receipt"), sender.trigger)
	assert.Equal(t, int64(7), sender.loanID)
}

func TestReceiptJobSkipsUnknownEvent(t *testing.T) {
	sender := &fakeReceiptSender{err: notifications.ErrUnknownTrigger}
	job := NewReceiptJob(sender, testLogger())

	task, err := NewReceiptTask(ReceiptPayload{Event: "nonsense", LoanID: 1})
	require.NoError(t, err)

	err = job.Handle(context.Background(), task)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestReceiptJobSkipsMalformedPayload(t *testing.T) {
	job := NewReceiptJob(&fakeReceiptSender{}, testLogger())

	err := job.Handle(context.Background(), asynq.NewTask(TaskNotifyReceipt, []byte("not json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}
