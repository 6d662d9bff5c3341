package loans

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/librarium/librarium/internal/catalog"
	"github.com/librarium/librarium/internal/siteconfig"
)

// errSpecimenOnLoan is raised by the repository when the locked specimen
// already has an open loan. The service maps it to a rejection.
var errSpecimenOnLoan = errors.New("loans: specimen already on loan")

// RepositoryPort abstracts loan persistence for the service. CreateLoan and
// UpdateLoan run inside a transaction holding a row lock, so concurrent
// checkouts and renewals of the same loan serialize.
type RepositoryPort interface {
	ListPolicies(ctx context.Context) ([]Policy, error)
	GetPolicy(ctx context.Context, id int64) (Policy, error)
	CreatePolicy(ctx context.Context, p Policy) (Policy, error)
	UpdatePolicy(ctx context.Context, p Policy) error
	DeletePolicy(ctx context.Context, id int64) error

	GetLoan(ctx context.Context, id int64) (Loan, error)
	ListLoans(ctx context.Context, filter ListFilter) ([]Loan, error)
	CreateLoan(ctx context.Context, l Loan) (Loan, error)
	UpdateLoan(ctx context.Context, id int64, fn func(l *Loan) error) (Loan, error)
	SpecimenAvailable(ctx context.Context, specimenID int64) (bool, error)
}

// CatalogPort resolves the specimen side of the match context.
type CatalogPort interface {
	GetSpecimenDetail(ctx context.Context, id int64) (catalog.SpecimenDetail, error)
}

// ProfilesPort resolves the borrower side of the match context.
type ProfilesPort interface {
	UserGroupIDs(ctx context.Context, userID int64) ([]int64, error)
}

// CalendarPort supplies the library calendar for due-date adjustment.
type CalendarPort interface {
	Calendar(ctx context.Context) (siteconfig.Calendar, error)
}

// ReceiptPort is told about successful checkouts, renewals and returns so
// receipt notifications can go out. Implementations must not block.
type ReceiptPort interface {
	LoanEvent(ctx context.Context, event string, loanID int64)
}

// Loan lifecycle events forwarded to the ReceiptPort.
const (
	EventLoan    = "loan"
	EventRenewal = "renewal"
	EventReturn  = "return"
)

// BoardCachePort caches the due board between reads.
type BoardCachePort interface {
	Get(ctx context.Context) ([]LoanView, bool)
	Set(ctx context.Context, views []LoanView)
	Invalidate(ctx context.Context)
}

// ListFilter narrows loan listings.
type ListFilter struct {
	UserID     *int64
	SpecimenID *int64
	OnlyOpen   bool
	Limit      int
	Offset     int
}

// CreateLoanInput is the checkout request.
type CreateLoanInput struct {
	SpecimenID int64      `json:"specimen_id" validate:"required"`
	UserID     int64      `json:"user_id" validate:"required"`
	Date       *time.Time `json:"date,omitempty"`
}

// LoanView is a loan with its computed due instants. The computed fields
// shadow the Loan methods of the same name.
type LoanView struct {
	Loan
	ExactDue time.Time `json:"exact_due"`
	Due      time.Time `json:"due"`
	Late     bool      `json:"late"`
}

// Service coordinates checkouts, renewals and returns.
type Service struct {
	logger    *slog.Logger
	repo      RepositoryPort
	catalog   CatalogPort
	profiles  ProfilesPort
	calendars CalendarPort
	board     BoardCachePort
	receipts  ReceiptPort
	now       func() time.Time
}

// NewService builds a Service. The board cache may be nil.
func NewService(logger *slog.Logger, repo RepositoryPort, cat CatalogPort, profiles ProfilesPort, calendars CalendarPort, board BoardCachePort) *Service {
	return &Service{
		logger:    logger,
		repo:      repo,
		catalog:   cat,
		profiles:  profiles,
		calendars: calendars,
		board:     board,
		now:       time.Now,
	}
}

// SetReceipts installs the receipt notifier. Optional.
func (s *Service) SetReceipts(r ReceiptPort) {
	s.receipts = r
}

func (s *Service) emit(ctx context.Context, event string, loanID int64) {
	if s.receipts != nil {
		s.receipts.LoanEvent(ctx, event, loanID)
	}
}

// CreateLoan checks a specimen out to a user. The policy is selected at
// creation time from the prioritized rules and fixed on the loan.
func (s *Service) CreateLoan(ctx context.Context, input CreateLoanInput) (LoanView, Rejection, error) {
	detail, err := s.catalog.GetSpecimenDetail(ctx, input.SpecimenID)
	if err != nil {
		return LoanView{}, RejectionNone, err
	}
	groupIDs, err := s.profiles.UserGroupIDs(ctx, input.UserID)
	if err != nil {
		return LoanView{}, RejectionNone, err
	}

	policies, err := s.repo.ListPolicies(ctx)
	if err != nil {
		return LoanView{}, RejectionNone, err
	}
	policy, err := SelectPolicy(policies, buildMatchContext(detail, input.UserID, groupIDs))
	if err != nil {
		return LoanView{}, RejectionNone, err
	}

	date := s.now().UTC()
	if input.Date != nil {
		date = input.Date.UTC()
	}
	specimenID := input.SpecimenID
	loan := Loan{
		SpecimenID: &specimenID,
		UserID:     input.UserID,
		Policy:     policy,
		Date:       date,
	}

	created, err := s.repo.CreateLoan(ctx, loan)
	if errors.Is(err, errSpecimenOnLoan) {
		return LoanView{}, RejectionSpecimenUnavailable, nil
	}
	if err != nil {
		return LoanView{}, RejectionNone, err
	}

	s.invalidateBoard(ctx)
	s.logger.Info("loan created",
		slog.Int64("loan_id", created.ID),
		slog.Int64("specimen_id", specimenID),
		slog.Int64("user_id", created.UserID),
		slog.Int64("policy_id", policy.ID))
	s.emit(ctx, EventLoan, created.ID)
	return s.view(ctx, created)
}

// Renew applies the next renewal step to the loan.
func (s *Service) Renew(ctx context.Context, loanID int64) (LoanView, Rejection, error) {
	view, rej, err := s.mutate(ctx, loanID, func(l *Loan) Rejection {
		return l.ApplyRenewal(s.now())
	})
	if err == nil && rej.OK() {
		s.emit(ctx, EventRenewal, loanID)
	}
	return view, rej, err
}

// Unrenew removes the most recent renewal from the loan.
func (s *Service) Unrenew(ctx context.Context, loanID int64) (LoanView, Rejection, error) {
	return s.mutate(ctx, loanID, func(l *Loan) Rejection {
		return l.RemoveRenewal()
	})
}

// Return closes the loan, freeing the specimen.
func (s *Service) Return(ctx context.Context, loanID int64) (LoanView, Rejection, error) {
	view, rej, err := s.mutate(ctx, loanID, func(l *Loan) Rejection {
		return l.Close(s.now().UTC())
	})
	if err == nil && rej.OK() {
		s.emit(ctx, EventReturn, loanID)
	}
	return view, rej, err
}

// rejected carries a Rejection across the repository callback boundary.
type rejected struct{ r Rejection }

func (e rejected) Error() string { return string(e.r) }

func (s *Service) mutate(ctx context.Context, loanID int64, op func(*Loan) Rejection) (LoanView, Rejection, error) {
	updated, err := s.repo.UpdateLoan(ctx, loanID, func(l *Loan) error {
		if r := op(l); !r.OK() {
			return rejected{r}
		}
		return nil
	})
	var rej rejected
	if errors.As(err, &rej) {
		return LoanView{}, rej.r, nil
	}
	if err != nil {
		return LoanView{}, RejectionNone, err
	}
	s.invalidateBoard(ctx)
	return s.view(ctx, updated)
}

// GetLoan fetches one loan with computed due instants.
func (s *Service) GetLoan(ctx context.Context, id int64) (LoanView, error) {
	loan, err := s.repo.GetLoan(ctx, id)
	if err != nil {
		return LoanView{}, err
	}
	view, _, err := s.view(ctx, loan)
	return view, err
}

// ListLoans lists loans with computed due instants.
func (s *Service) ListLoans(ctx context.Context, filter ListFilter) ([]LoanView, error) {
	loans, err := s.repo.ListLoans(ctx, filter)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, loans)
}

// DueBoard lists open loans ordered by due instant, soonest first. Reads are
// served from the cache when fresh.
func (s *Service) DueBoard(ctx context.Context) ([]LoanView, error) {
	if s.board != nil {
		if views, ok := s.board.Get(ctx); ok {
			return views, nil
		}
	}
	loans, err := s.repo.ListLoans(ctx, ListFilter{OnlyOpen: true})
	if err != nil {
		return nil, err
	}
	views, err := s.views(ctx, loans)
	if err != nil {
		return nil, err
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Due.Before(views[j].Due) })
	if s.board != nil {
		s.board.Set(ctx, views)
	}
	return views, nil
}

// Policies lists all policies ordered by priority.
func (s *Service) Policies(ctx context.Context) ([]Policy, error) {
	return s.repo.ListPolicies(ctx)
}

// Policy fetches one policy.
func (s *Service) Policy(ctx context.Context, id int64) (Policy, error) {
	return s.repo.GetPolicy(ctx, id)
}

// CreatePolicy validates and stores a new policy.
func (s *Service) CreatePolicy(ctx context.Context, p Policy) (Policy, error) {
	if err := validatePolicy(p); err != nil {
		return Policy{}, err
	}
	return s.repo.CreatePolicy(ctx, p)
}

// UpdatePolicy validates and rewrites a policy.
func (s *Service) UpdatePolicy(ctx context.Context, p Policy) error {
	if err := validatePolicy(p); err != nil {
		return err
	}
	return s.repo.UpdatePolicy(ctx, p)
}

// DeletePolicy removes a policy not referenced by any loan.
func (s *Service) DeletePolicy(ctx context.Context, id int64) error {
	return s.repo.DeletePolicy(ctx, id)
}

func validatePolicy(p Policy) error {
	if p.Days < 0 {
		return errors.New("loans: policy days must not be negative")
	}
	if p.LogicalOperator != OperatorOr && p.LogicalOperator != OperatorAnd {
		return errors.New("loans: logical operator must be OR or AND")
	}
	for dim := range p.Conditions {
		known := false
		for _, d := range Dimensions {
			if dim == d {
				known = true
				break
			}
		}
		if !known {
			return errors.New("loans: unknown condition dimension " + string(dim))
		}
	}
	for _, step := range p.Steps {
		if step.Days < 0 {
			return errors.New("loans: renewal step days must not be negative")
		}
	}
	return nil
}

func buildMatchContext(detail catalog.SpecimenDetail, userID int64, groupIDs []int64) MatchContext {
	mc := NewMatchContext()
	mc.Add(DimSpecimens, strconv.FormatInt(detail.Specimen.ID, 10))
	mc.Add(DimBooks, strconv.FormatInt(detail.Book.ID, 10))
	if detail.Book.CollectionID != nil {
		mc.Add(DimCollections, strconv.FormatInt(*detail.Book.CollectionID, 10))
	}
	if detail.Classification.Abbreviation != "" {
		mc.Add(DimClassifications, detail.Classification.Abbreviation)
	}
	if detail.Classification.LocationName != "" {
		mc.Add(DimLocations, detail.Classification.LocationName)
	}
	mc.Add(DimUsers, strconv.FormatInt(userID, 10))
	for _, g := range groupIDs {
		mc.Add(DimGroups, strconv.FormatInt(g, 10))
	}
	return mc
}

func (s *Service) view(ctx context.Context, l Loan) (LoanView, Rejection, error) {
	cal, err := s.calendars.Calendar(ctx)
	if err != nil {
		return LoanView{}, RejectionNone, err
	}
	view, err := buildView(l, cal, s.now())
	return view, RejectionNone, err
}

func (s *Service) views(ctx context.Context, loans []Loan) ([]LoanView, error) {
	cal, err := s.calendars.Calendar(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	views := make([]LoanView, 0, len(loans))
	for _, l := range loans {
		view, err := buildView(l, cal, now)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

func buildView(l Loan, cal siteconfig.Calendar, now time.Time) (LoanView, error) {
	exact := l.ExactDue()
	due, err := ComputeDue(exact, cal)
	if err != nil {
		return LoanView{}, err
	}
	return LoanView{
		Loan:     l,
		ExactDue: exact,
		Due:      due,
		Late:     !l.Returned() && now.After(due),
	}, nil
}

func (s *Service) invalidateBoard(ctx context.Context) {
	if s.board != nil {
		s.board.Invalidate(ctx)
	}
}
