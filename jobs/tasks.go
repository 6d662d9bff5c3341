package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskNotifyScan runs the due-soon and late notification pass.
	TaskNotifyScan = "notify:scan"
	// TaskNotifyReceipt sends one receipt email for a loan event.
	TaskNotifyReceipt = "notify:receipt"
	// TaskBackupRun creates a database and media backup.
	TaskBackupRun = "backup:run"
)

// ReceiptPayload identifies the loan event a receipt should cover.
type ReceiptPayload struct {
	Event  string `json:"event"`
	LoanID int64  `json:"loan_id"`
}

// BackupPayload selects which dumps the backup run performs.
type BackupPayload struct {
	IncludeDB    bool `json:"include_db"`
	IncludeMedia bool `json:"include_media"`
}

// NewNotifyScanTask constructs the scheduled notification scan task.
func NewNotifyScanTask() *asynq.Task {
	return asynq.NewTask(TaskNotifyScan, nil)
}

// NewReceiptTask constructs a receipt task for one loan event.
func NewReceiptTask(payload ReceiptPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotifyReceipt, data), nil
}

// NewBackupTask constructs a backup task.
func NewBackupTask(payload BackupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBackupRun, data), nil
}
