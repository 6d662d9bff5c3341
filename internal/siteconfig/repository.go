package siteconfig

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists the single-row site and email configuration.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetConfiguration reads the configuration row, falling back to defaults
// when none was saved yet.
func (r *Repository) GetConfiguration(ctx context.Context) (Configuration, error) {
	c := Configuration{
		SiteTitle:   "Librarium",
		WorkingDays: "2,3,4,5,6",
		EndingHour:  "18:00",
	}
	err := r.pool.QueryRow(ctx, `SELECT site_title, working_days, to_char(ending_hour, 'HH24:MI'), COALESCE(welcome_msg, ''), COALESCE(goodbye_msg, '') FROM site_configuration WHERE id = 1`).
		Scan(&c.SiteTitle, &c.WorkingDays, &c.EndingHour, &c.WelcomeMsg, &c.GoodbyeMsg)
	if errors.Is(err, pgx.ErrNoRows) {
		return c, nil
	}
	if err != nil {
		return Configuration{}, err
	}
	return c, nil
}

// SaveConfiguration upserts the configuration row.
func (r *Repository) SaveConfiguration(ctx context.Context, c Configuration) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO site_configuration (id, site_title, working_days, ending_hour, welcome_msg, goodbye_msg)
VALUES (1, $1, $2, $3::time, NULLIF($4, ''), NULLIF($5, ''))
ON CONFLICT (id) DO UPDATE SET site_title = EXCLUDED.site_title, working_days = EXCLUDED.working_days, ending_hour = EXCLUDED.ending_hour, welcome_msg = EXCLUDED.welcome_msg, goodbye_msg = EXCLUDED.goodbye_msg`,
		c.SiteTitle, c.WorkingDays, c.EndingHour, c.WelcomeMsg, c.GoodbyeMsg)
	return err
}

// GetEmailSettings reads the email configuration row.
func (r *Repository) GetEmailSettings(ctx context.Context) (EmailSettings, error) {
	s := EmailSettings{Host: "127.0.0.1", Port: 1025, FromEmail: "no-reply@librarium.local"}
	err := r.pool.QueryRow(ctx, `SELECT activated, host, port, COALESCE(username, ''), COALESCE(password, ''), use_tls, COALESCE(from_name, ''), from_email, COALESCE(signature, '') FROM email_configuration WHERE id = 1`).
		Scan(&s.Activated, &s.Host, &s.Port, &s.Username, &s.Password, &s.UseTLS, &s.FromName, &s.FromEmail, &s.Signature)
	if errors.Is(err, pgx.ErrNoRows) {
		return s, nil
	}
	if err != nil {
		return EmailSettings{}, err
	}
	return s, nil
}

// SaveEmailSettings upserts the email configuration row.
func (r *Repository) SaveEmailSettings(ctx context.Context, s EmailSettings) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO email_configuration (id, activated, host, port, username, password, use_tls, from_name, from_email, signature)
VALUES (1, $1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, NULLIF($7, ''), $8, NULLIF($9, ''))
ON CONFLICT (id) DO UPDATE SET activated = EXCLUDED.activated, host = EXCLUDED.host, port = EXCLUDED.port, username = EXCLUDED.username, password = EXCLUDED.password, use_tls = EXCLUDED.use_tls, from_name = EXCLUDED.from_name, from_email = EXCLUDED.from_email, signature = EXCLUDED.signature`,
		s.Activated, s.Host, s.Port, s.Username, s.Password, s.UseTLS, s.FromName, s.FromEmail, s.Signature)
	return err
}
