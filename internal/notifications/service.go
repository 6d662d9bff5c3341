package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/librarium/librarium/internal/catalog"
	"github.com/librarium/librarium/internal/loans"
	"github.com/librarium/librarium/internal/profiles"
	"github.com/librarium/librarium/internal/siteconfig"
)

// RepositoryPort abstracts notification persistence for the service.
type RepositoryPort interface {
	List(ctx context.Context) ([]Notification, error)
	Get(ctx context.Context, id int64) (Notification, error)
	ListByTrigger(ctx context.Context, trigger Trigger) ([]Notification, error)
	Create(ctx context.Context, n Notification) (Notification, error)
	Update(ctx context.Context, n Notification) error
	Delete(ctx context.Context, id int64) error
	Log(ctx context.Context, notificationID int64) ([]LogEntry, error)
	AppendLog(ctx context.Context, loanID, notificationID, userID int64, at time.Time) (LogEntry, error)
}

// LoansPort reads loans with their computed due state.
type LoansPort interface {
	ListLoans(ctx context.Context, filter loans.ListFilter) ([]loans.LoanView, error)
	GetLoan(ctx context.Context, id int64) (loans.LoanView, error)
}

// CatalogPort resolves the book behind a loaned specimen.
type CatalogPort interface {
	GetSpecimenDetail(ctx context.Context, id int64) (catalog.SpecimenDetail, error)
}

// ProfilesPort resolves recipients.
type ProfilesPort interface {
	GetUser(ctx context.Context, id int64) (profiles.User, error)
	RecipientEmails(ctx context.Context, userID int64) ([]string, error)
}

// ConfigPort reads the site and SMTP configuration.
type ConfigPort interface {
	Configuration(ctx context.Context) (siteconfig.Configuration, error)
	EmailSettings(ctx context.Context) (siteconfig.EmailSettings, error)
}

// MetricsPort counts notification outcomes.
type MetricsPort interface {
	CountNotification(trigger, result string)
}

// Service evaluates triggers, renders templates and dispatches email.
type Service struct {
	logger   *slog.Logger
	repo     RepositoryPort
	loans    LoansPort
	catalog  CatalogPort
	profiles ProfilesPort
	config   ConfigPort
	mailer   MailerPort
	metrics  MetricsPort
	now      func() time.Time
}

// NewService builds a Service. Metrics may be nil.
func NewService(logger *slog.Logger, repo RepositoryPort, loansPort LoansPort, cat CatalogPort, prof ProfilesPort, config ConfigPort, mailer MailerPort, metrics MetricsPort) *Service {
	return &Service{
		logger:   logger,
		repo:     repo,
		loans:    loansPort,
		catalog:  cat,
		profiles: prof,
		config:   config,
		mailer:   mailer,
		metrics:  metrics,
		now:      time.Now,
	}
}

// List returns every configured notification.
func (s *Service) List(ctx context.Context) ([]Notification, error) {
	return s.repo.List(ctx)
}

// Get fetches one notification.
func (s *Service) Get(ctx context.Context, id int64) (Notification, error) {
	return s.repo.Get(ctx, id)
}

// Create validates and stores a notification.
func (s *Service) Create(ctx context.Context, n Notification) (Notification, error) {
	if !n.Trigger.Valid() {
		return Notification{}, ErrUnknownTrigger
	}
	return s.repo.Create(ctx, n)
}

// Update validates and rewrites a notification.
func (s *Service) Update(ctx context.Context, n Notification) error {
	if !n.Trigger.Valid() {
		return ErrUnknownTrigger
	}
	return s.repo.Update(ctx, n)
}

// Delete removes a notification.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// Log returns the send log of a notification.
func (s *Service) Log(ctx context.Context, notificationID int64) ([]LogEntry, error) {
	if _, err := s.repo.Get(ctx, notificationID); err != nil {
		return nil, err
	}
	return s.repo.Log(ctx, notificationID)
}

// Scan runs one full pass over the scan triggers. Send failures are
// collected into the report; only configuration and storage errors abort the
// pass. When email is deactivated the pass is skipped entirely.
func (s *Service) Scan(ctx context.Context) (DispatchReport, error) {
	settings, err := s.config.EmailSettings(ctx)
	if err != nil {
		return DispatchReport{}, err
	}
	if !settings.Activated {
		s.logger.Info("email deactivated, skipping notification pass")
		return DispatchReport{Skipped: true}, nil
	}

	all, err := s.repo.List(ctx)
	if err != nil {
		return DispatchReport{}, err
	}
	views, err := s.loans.ListLoans(ctx, loans.ListFilter{OnlyOpen: true})
	if err != nil {
		return DispatchReport{}, err
	}
	var running, late []loans.LoanView
	for _, v := range views {
		if v.Late {
			late = append(late, v)
		} else {
			running = append(running, v)
		}
	}

	runID := uuid.NewString()
	s.logger.Info("notification pass started",
		slog.String("run_id", runID),
		slog.Int("open_loans", len(views)))

	now := s.now()
	var report DispatchReport
	for _, n := range all {
		if !n.Trigger.Scanned() {
			continue
		}
		log, err := s.repo.Log(ctx, n.ID)
		if err != nil {
			return report, err
		}
		for _, l := range Evaluate(n, running, late, log, now) {
			s.deliver(ctx, settings, n, l, now, &report)
		}
	}
	s.logger.Info("notification pass finished",
		slog.String("run_id", runID),
		slog.Int("sent", report.Sent),
		slog.Int("failed", len(report.Failures)))
	return report, nil
}

// SendReceipt dispatches the receipt notifications bound to a loan event.
func (s *Service) SendReceipt(ctx context.Context, trigger Trigger, loanID int64) (DispatchReport, error) {
	if !trigger.Valid() || trigger.Scanned() {
		return DispatchReport{}, ErrUnknownTrigger
	}
	settings, err := s.config.EmailSettings(ctx)
	if err != nil {
		return DispatchReport{}, err
	}
	if !settings.Activated {
		return DispatchReport{Skipped: true}, nil
	}
	configured, err := s.repo.ListByTrigger(ctx, trigger)
	if err != nil {
		return DispatchReport{}, err
	}
	if len(configured) == 0 {
		return DispatchReport{}, nil
	}
	loan, err := s.loans.GetLoan(ctx, loanID)
	if err != nil {
		return DispatchReport{}, err
	}

	now := s.now()
	var report DispatchReport
	for _, n := range configured {
		s.deliver(ctx, settings, n, loan, now, &report)
	}
	return report, nil
}

// deliver renders, sends and logs one notification for one loan. The log
// append happens only after a confirmed send; a duplicate append means a
// concurrent pass already handled this pair today and is not a failure.
func (s *Service) deliver(ctx context.Context, settings siteconfig.EmailSettings, n Notification, l loans.LoanView, now time.Time, report *DispatchReport) {
	err := s.dispatch(ctx, settings, n, l, now)
	switch {
	case errors.Is(err, ErrAlreadyLogged):
		return
	case err != nil:
		s.count(n.Trigger, "error")
		s.logger.Warn("notification send failed",
			slog.Int64("loan_id", l.ID),
			slog.Int64("notification_id", n.ID),
			slog.Any("error", err))
		report.Failures = append(report.Failures, DispatchFailure{
			LoanID:         l.ID,
			NotificationID: n.ID,
			Reason:         err.Error(),
		})
	default:
		s.count(n.Trigger, "sent")
		report.Sent++
	}
}

func (s *Service) dispatch(ctx context.Context, settings siteconfig.EmailSettings, n Notification, l loans.LoanView, now time.Time) error {
	user, err := s.profiles.GetUser(ctx, l.UserID)
	if err != nil {
		return err
	}
	recipients, err := s.profiles.RecipientEmails(ctx, l.UserID)
	if err != nil {
		return err
	}

	tc, err := s.templateContext(ctx, l, user, settings, now)
	if err != nil {
		return err
	}
	subject, message, err := Render(n, tc)
	if err != nil {
		return err
	}

	if err := s.mailer.Send(ctx, settings, recipients, subject, message); err != nil {
		return err
	}
	if _, err := s.repo.AppendLog(ctx, l.ID, n.ID, l.UserID, now); err != nil {
		return err
	}
	return nil
}

func (s *Service) templateContext(ctx context.Context, l loans.LoanView, user profiles.User, settings siteconfig.EmailSettings, now time.Time) (TemplateContext, error) {
	tc := TemplateContext{
		Name:       strings.TrimSpace(user.FirstName + " " + user.LastName),
		Signature:  settings.Signature,
		Due:        l.Due.Format(dateFormat),
		LoanDate:   l.Date.Format(dateFormat),
		ReturnDate: FormatDate(l.ReturnDate),
		LateDays:   int(now.Sub(l.Due).Hours() / 24),
	}
	if conf, err := s.config.Configuration(ctx); err == nil {
		tc.SiteTitle = conf.SiteTitle
	}
	if l.SpecimenID != nil {
		detail, err := s.catalog.GetSpecimenDetail(ctx, *l.SpecimenID)
		if err != nil {
			return TemplateContext{}, fmt.Errorf("notifications: resolve specimen: %w", err)
		}
		tc.Book = detail.Book.Title
		tc.Author = strings.TrimSpace(detail.Book.AuthorFirstNames + " " + detail.Book.AuthorLastName)
	}
	return tc, nil
}

func (s *Service) count(trigger Trigger, result string) {
	if s.metrics != nil {
		s.metrics.CountNotification(string(trigger), result)
	}
}
