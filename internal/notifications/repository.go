package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists notifications and the send log in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const notificationColumns = `id, name, subject, message, COALESCE(n_parameter, 0), trigger`

func scanNotification(row pgx.Row) (Notification, error) {
	var n Notification
	err := row.Scan(&n.ID, &n.Name, &n.Subject, &n.Message, &n.NParameter, &n.Trigger)
	return n, err
}

// List returns every configured notification.
func (r *Repository) List(ctx context.Context) ([]Notification, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+notificationColumns+` FROM notifications ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("notifications: list: %w", err)
	}
	defer rows.Close()
	var out []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("notifications: scan: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// Get fetches one notification.
func (r *Repository) Get(ctx context.Context, id int64) (Notification, error) {
	n, err := scanNotification(r.pool.QueryRow(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Notification{}, ErrNotificationNotFound
	}
	if err != nil {
		return Notification{}, fmt.Errorf("notifications: get: %w", err)
	}
	return n, nil
}

// ListByTrigger fetches the notifications bound to one trigger.
func (r *Repository) ListByTrigger(ctx context.Context, trigger Trigger) ([]Notification, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE trigger = $1 ORDER BY id`, string(trigger))
	if err != nil {
		return nil, fmt.Errorf("notifications: list by trigger: %w", err)
	}
	defer rows.Close()
	var out []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("notifications: scan: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// Create inserts a notification.
func (r *Repository) Create(ctx context.Context, n Notification) (Notification, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO notifications (name, subject, message, n_parameter, trigger)
VALUES ($1, $2, $3, NULLIF($4, 0), $5) RETURNING id`,
		n.Name, n.Subject, n.Message, n.NParameter, string(n.Trigger)).Scan(&n.ID)
	if err != nil {
		return Notification{}, fmt.Errorf("notifications: insert: %w", err)
	}
	return n, nil
}

// Update rewrites a notification.
func (r *Repository) Update(ctx context.Context, n Notification) error {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET name = $2, subject = $3, message = $4, n_parameter = NULLIF($5, 0), trigger = $6 WHERE id = $1`,
		n.ID, n.Name, n.Subject, n.Message, n.NParameter, string(n.Trigger))
	if err != nil {
		return fmt.Errorf("notifications: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// Delete removes a notification and cascades its log.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM notifications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("notifications: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// Log returns the full send log for one notification, newest first.
func (r *Repository) Log(ctx context.Context, notificationID int64) ([]LogEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, loan_id, notification_id, user_id, created_at FROM notification_log WHERE notification_id = $1 ORDER BY created_at DESC, id DESC`, notificationID)
	if err != nil {
		return nil, fmt.Errorf("notifications: log: %w", err)
	}
	defer rows.Close()
	var out []LogEntry
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.ID, &e.LoanID, &e.NotificationID, &e.UserID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("notifications: scan log: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// AppendLog records a confirmed send. The (loan, notification, day) unique
// index turns a retried append into ErrAlreadyLogged.
func (r *Repository) AppendLog(ctx context.Context, loanID, notificationID, userID int64, at time.Time) (LogEntry, error) {
	e := LogEntry{LoanID: loanID, NotificationID: notificationID, UserID: userID, CreatedAt: at}
	err := r.pool.QueryRow(ctx, `INSERT INTO notification_log (loan_id, notification_id, user_id, created_at, sent_on)
VALUES ($1, $2, $3, $4, $4::date) RETURNING id`,
		loanID, notificationID, userID, at).Scan(&e.ID)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return LogEntry{}, ErrAlreadyLogged
	}
	if err != nil {
		return LogEntry{}, fmt.Errorf("notifications: append log: %w", err)
	}
	return e, nil
}
