package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/librarium/librarium/internal/jobs"
	"github.com/librarium/librarium/internal/notifications"
)

// NotificationScanner runs one notification pass.
type NotificationScanner interface {
	Scan(ctx context.Context) (notifications.DispatchReport, error)
}

// ReceiptSender delivers the receipt notifications for one loan event.
type ReceiptSender interface {
	SendReceipt(ctx context.Context, trigger notifications.Trigger, loanID int64) (notifications.DispatchReport, error)
}

// NotifyScanJob runs the notification pass over open and late loans.
type NotifyScanJob struct {
	service NotificationScanner
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewNotifyScanJob constructs the job. Metrics may be nil.
func NewNotifyScanJob(service NotificationScanner, logger *slog.Logger, metrics *jobmetrics.Metrics) *NotifyScanJob {
	return &NotifyScanJob{service: service, logger: logger, metrics: metrics}
}

// Handle processes TaskNotifyScan tasks.
func (j *NotifyScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track("notify_scan")
	report, err := j.service.Scan(ctx)
	if err != nil {
		j.logger.Error("notification scan failed", slog.Any("error", err))
		return tracker.End(err)
	}
	j.logger.Info("notification scan finished",
		slog.Int("sent", report.Sent),
		slog.Bool("skipped", report.Skipped),
		slog.Int("failures", len(report.Failures)))
	return tracker.End(nil)
}

// ReceiptJob delivers receipt emails for loan events.
type ReceiptJob struct {
	service ReceiptSender
	logger  *slog.Logger
}

// NewReceiptJob constructs the job.
func NewReceiptJob(service ReceiptSender, logger *slog.Logger) *ReceiptJob {
	return &ReceiptJob{service: service, logger: logger}
}

// Handle processes TaskNotifyReceipt tasks.
func (j *ReceiptJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload ReceiptPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	trigger := notifications.Trigger(payload.Event + "_receipt")
	report, err := j.service.SendReceipt(ctx, trigger, payload.LoanID)
	if errors.Is(err, notifications.ErrUnknownTrigger) {
		j.logger.Warn("receipt task with unknown event", slog.String("event", payload.Event))
		return asynq.SkipRetry
	}
	if err != nil {
		return err
	}
	if len(report.Failures) > 0 {
		j.logger.Warn("receipt delivery failed",
			slog.Int64("loan_id", payload.LoanID),
			slog.String("event", payload.Event),
			slog.String("reason", report.Failures[0].Reason))
	}
	return nil
}
