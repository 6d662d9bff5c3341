package notifications

import (
	"errors"
	"time"
)

// Trigger names the condition under which a notification fires. The first
// three are evaluated by the periodic scan; the receipts fire on loan events.
type Trigger string

const (
	TriggerDueSoon         Trigger = "due_soon"
	TriggerNewlyLate       Trigger = "newly_late"
	TriggerRecurrentlyLate Trigger = "recurrently_late"
	TriggerLoanReceipt     Trigger = "loan_receipt"
	TriggerReturnReceipt   Trigger = "return_receipt"
	TriggerRenewalReceipt  Trigger = "renewal_receipt"
)

// Scanned reports whether the trigger is evaluated by the periodic scan.
func (t Trigger) Scanned() bool {
	switch t {
	case TriggerDueSoon, TriggerNewlyLate, TriggerRecurrentlyLate:
		return true
	}
	return false
}

// Valid reports whether the trigger is known.
func (t Trigger) Valid() bool {
	switch t {
	case TriggerDueSoon, TriggerNewlyLate, TriggerRecurrentlyLate,
		TriggerLoanReceipt, TriggerReturnReceipt, TriggerRenewalReceipt:
		return true
	}
	return false
}

// Notification is an administrator-configured email template bound to a
// trigger. NParameter is the <n> in "due in <n> days" style triggers and is
// ignored by the receipts.
type Notification struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name" validate:"required,max=100"`
	Subject    string  `json:"subject" validate:"required,max=100"`
	Message    string  `json:"message" validate:"required"`
	NParameter int     `json:"n_parameter" validate:"gte=0"`
	Trigger    Trigger `json:"trigger" validate:"required"`
}

// LogEntry records one confirmed send. The log is append-only; entries are
// unique per loan, notification and calendar day so a retried scan cannot
// double-send, while recurrent triggers can still fire again later.
type LogEntry struct {
	ID             int64     `json:"id"`
	LoanID         int64     `json:"loan_id"`
	NotificationID int64     `json:"notification_id"`
	UserID         int64     `json:"user_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// DispatchFailure describes one send that failed during a pass.
type DispatchFailure struct {
	LoanID         int64  `json:"loan_id"`
	NotificationID int64  `json:"notification_id"`
	Reason         string `json:"reason"`
}

// DispatchReport aggregates the outcome of a full notification pass. A
// failed send never aborts the pass.
type DispatchReport struct {
	Sent     int               `json:"sent"`
	Skipped  bool              `json:"skipped,omitempty"`
	Failures []DispatchFailure `json:"failures,omitempty"`
}

var (
	// ErrNotificationNotFound indicates the notification does not exist.
	ErrNotificationNotFound = errors.New("notifications: notification not found")
	// ErrAlreadyLogged indicates a send already confirmed for the loan,
	// notification and day.
	ErrAlreadyLogged = errors.New("notifications: already logged")
	// ErrUnknownTrigger indicates an unrecognised trigger name.
	ErrUnknownTrigger = errors.New("notifications: unknown trigger")
)
