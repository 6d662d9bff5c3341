package notifications

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librarium/librarium/internal/catalog"
	"github.com/librarium/librarium/internal/loans"
	"github.com/librarium/librarium/internal/profiles"
	"github.com/librarium/librarium/internal/siteconfig"
)

type memoryNotifRepo struct {
	notifications []Notification
	log           []LogEntry
	nextID        int64
}

func newMemoryNotifRepo(ns ...Notification) *memoryNotifRepo {
	return &memoryNotifRepo{notifications: ns, nextID: 100}
}

func (m *memoryNotifRepo) List(ctx context.Context) ([]Notification, error) {
	return append([]Notification(nil), m.notifications...), nil
}

func (m *memoryNotifRepo) Get(ctx context.Context, id int64) (Notification, error) {
	for _, n := range m.notifications {
		if n.ID == id {
			return n, nil
		}
	}
	return Notification{}, ErrNotificationNotFound
}

func (m *memoryNotifRepo) ListByTrigger(ctx context.Context, trigger Trigger) ([]Notification, error) {
	var out []Notification
	for _, n := range m.notifications {
		if n.Trigger == trigger {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *memoryNotifRepo) Create(ctx context.Context, n Notification) (Notification, error) {
	n.ID = m.nextID
	m.nextID++
	m.notifications = append(m.notifications, n)
	return n, nil
}

func (m *memoryNotifRepo) Update(ctx context.Context, n Notification) error {
	for i := range m.notifications {
		if m.notifications[i].ID == n.ID {
			m.notifications[i] = n
			return nil
		}
	}
	return ErrNotificationNotFound
}

func (m *memoryNotifRepo) Delete(ctx context.Context, id int64) error {
	for i := range m.notifications {
		if m.notifications[i].ID == id {
			m.notifications = append(m.notifications[:i], m.notifications[i+1:]...)
			return nil
		}
	}
	return ErrNotificationNotFound
}

func (m *memoryNotifRepo) Log(ctx context.Context, notificationID int64) ([]LogEntry, error) {
	var out []LogEntry
	for _, e := range m.log {
		if e.NotificationID == notificationID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memoryNotifRepo) AppendLog(ctx context.Context, loanID, notificationID, userID int64, at time.Time) (LogEntry, error) {
	for _, e := range m.log {
		if e.LoanID == loanID && e.NotificationID == notificationID &&
			e.CreatedAt.Truncate(24*time.Hour).Equal(at.Truncate(24*time.Hour)) {
			return LogEntry{}, ErrAlreadyLogged
		}
	}
	e := LogEntry{ID: int64(len(m.log) + 1), LoanID: loanID, NotificationID: notificationID, UserID: userID, CreatedAt: at}
	m.log = append(m.log, e)
	return e, nil
}

type fakeLoans struct {
	views []loans.LoanView
}

func (f *fakeLoans) ListLoans(ctx context.Context, filter loans.ListFilter) ([]loans.LoanView, error) {
	return f.views, nil
}

func (f *fakeLoans) GetLoan(ctx context.Context, id int64) (loans.LoanView, error) {
	for _, v := range f.views {
		if v.ID == id {
			return v, nil
		}
	}
	return loans.LoanView{}, loans.ErrLoanNotFound
}

type fakeNotifCatalog struct{}

func (fakeNotifCatalog) GetSpecimenDetail(ctx context.Context, id int64) (catalog.SpecimenDetail, error) {
	return catalog.SpecimenDetail{
		Specimen: catalog.Specimen{ID: id, BookID: 1},
		Book:     catalog.Book{ID: 1, Title: "Dom Casmurro", AuthorFirstNames: "Machado de", AuthorLastName: "Assis"},
	}, nil
}

type fakeNotifProfiles struct{}

func (fakeNotifProfiles) GetUser(ctx context.Context, id int64) (profiles.User, error) {
	return profiles.User{ID: id, FirstName: "Capitu", LastName: "Santiago", Email: "capitu@example.org"}, nil
}

func (fakeNotifProfiles) RecipientEmails(ctx context.Context, userID int64) ([]string, error) {
	return []string{"capitu@example.org"}, nil
}

type fakeNotifConfig struct {
	activated bool
}

func (f fakeNotifConfig) Configuration(ctx context.Context) (siteconfig.Configuration, error) {
	return siteconfig.Configuration{SiteTitle: "Librarium"}, nil
}

func (f fakeNotifConfig) EmailSettings(ctx context.Context) (siteconfig.EmailSettings, error) {
	return siteconfig.EmailSettings{
		Activated: f.activated,
		Host:      "localhost",
		Port:      1025,
		FromEmail: "no-reply@librarium.local",
		Signature: "The library",
	}, nil
}

type sentMail struct {
	to      []string
	subject string
	body    string
}

type fakeMailer struct {
	sent    []sentMail
	failFor map[string]bool // subjects that should fail
}

func (f *fakeMailer) Send(ctx context.Context, settings siteconfig.EmailSettings, to []string, subject, htmlBody string) error {
	if f.failFor[subject] {
		return errors.New("smtp: connection refused")
	}
	f.sent = append(f.sent, sentMail{to: to, subject: subject, body: htmlBody})
	return nil
}

func dueSoonNotification() Notification {
	return Notification{
		ID:         1,
		Name:       "due soon",
		Subject:    "{{.Book}} is due {{.Due}}",
		Message:    "<p>Hi {{.Name}},</p><p>{{.Book}} by {{.Author}} is due on {{.Due}}.</p>",
		NParameter: 3,
		Trigger:    TriggerDueSoon,
	}
}

func notifFixture(activated bool, views []loans.LoanView, ns ...Notification) (*Service, *memoryNotifRepo, *fakeMailer) {
	repo := newMemoryNotifRepo(ns...)
	mailer := &fakeMailer{failFor: map[string]bool{}}
	svc := NewService(slog.New(slog.DiscardHandler), repo, &fakeLoans{views: views}, fakeNotifCatalog{}, fakeNotifProfiles{}, fakeNotifConfig{activated: activated}, mailer, nil)
	svc.now = func() time.Time { return evalNow }
	return svc, repo, mailer
}

func specimenRef(id int64) *int64 { return &id }

func TestScanSkipsWhenEmailDeactivated(t *testing.T) {
	svc, _, mailer := notifFixture(false, nil, dueSoonNotification())

	report, err := svc.Scan(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Skipped)
	assert.Empty(t, mailer.sent)
}

func TestScanSendsAndDeduplicates(t *testing.T) {
	view := loans.LoanView{
		Loan: loans.Loan{ID: 1, UserID: 10, SpecimenID: specimenRef(5), Date: evalNow.AddDate(0, 0, -6)},
		Due:  evalNow.AddDate(0, 0, 1),
	}
	svc, repo, mailer := notifFixture(true, []loans.LoanView{view}, dueSoonNotification())

	report, err := svc.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Sent)
	assert.Empty(t, report.Failures)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, []string{"capitu@example.org"}, mailer.sent[0].to)
	assert.Contains(t, mailer.sent[0].subject, "Dom Casmurro")
	assert.Contains(t, mailer.sent[0].body, "Capitu Santiago")
	require.Len(t, repo.log, 1)

	// Second pass: the user is already in the log, nothing goes out.
	report, err = svc.Scan(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Sent)
	assert.Len(t, mailer.sent, 1)
}

func TestScanCollectsFailuresAndContinues(t *testing.T) {
	views := []loans.LoanView{
		{Loan: loans.Loan{ID: 1, UserID: 10, SpecimenID: specimenRef(5), Date: evalNow.AddDate(0, 0, -6)}, Due: evalNow.AddDate(0, 0, 1)},
		{Loan: loans.Loan{ID: 2, UserID: 11, SpecimenID: specimenRef(6), Date: evalNow.AddDate(0, 0, -6)}, Due: evalNow.AddDate(0, 0, 2)},
	}
	failing := dueSoonNotification()
	second := Notification{
		ID: 2, Name: "reminder", Subject: "reminder", Message: "{{.Name}}",
		NParameter: 3, Trigger: TriggerDueSoon,
	}
	svc, repo, mailer := notifFixture(true, views, failing, second)
	mailer.failFor["Dom Casmurro is due "+evalNow.AddDate(0, 0, 1).Format("02/01/06")] = true

	report, err := svc.Scan(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, report.Failures, "failed send is reported")
	assert.Greater(t, report.Sent, 0, "other notifications still go out")

	// Failed sends are not logged, so the next pass retries them.
	for _, e := range repo.log {
		assert.False(t, e.LoanID == 1 && e.NotificationID == failing.ID)
	}
}

func TestSendReceipt(t *testing.T) {
	view := loans.LoanView{
		Loan: loans.Loan{ID: 1, UserID: 10, SpecimenID: specimenRef(5), Date: evalNow},
		Due:  evalNow.AddDate(0, 0, 7),
	}
	receipt := Notification{
		ID: 3, Name: "loan receipt", Subject: "Receipt: {{.Book}}",
		Message: "<p>{{.Book}} until {{.Due}}</p>", Trigger: TriggerLoanReceipt,
	}
	svc, repo, mailer := notifFixture(true, []loans.LoanView{view}, receipt)

	report, err := svc.SendReceipt(context.Background(), TriggerLoanReceipt, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Sent)
	require.Len(t, mailer.sent, 1)
	assert.Contains(t, mailer.sent[0].subject, "Receipt")
	assert.Len(t, repo.log, 1)

	_, err = svc.SendReceipt(context.Background(), TriggerDueSoon, 1)
	require.ErrorIs(t, err, ErrUnknownTrigger, "scan triggers are not receipts")
}

func TestRenderTemplateContext(t *testing.T) {
	n := dueSoonNotification()
	subject, message, err := Render(n, TemplateContext{
		Book:   "Dom Casmurro",
		Author: "Machado de Assis",
		Name:   "Capitu",
		Due:    "09/03/26",
	})
	require.NoError(t, err)
	assert.Equal(t, "Dom Casmurro is due 09/03/26", subject)
	assert.Contains(t, message, "Machado de Assis")
}

func TestHTMLToText(t *testing.T) {
	text := HTMLToText("<p>Hello <b>Capitu</b>,</p><p>your book is due.</p>")
	assert.Equal(t, "Hello Capitu,\nyour book is due.", text)
}
