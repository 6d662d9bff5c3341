package loans

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librarium/librarium/internal/catalog"
	"github.com/librarium/librarium/internal/siteconfig"
)

type memoryRepo struct {
	policies []Policy
	loans    map[int64]*Loan
	nextID   int64
}

func newMemoryRepo(policies ...Policy) *memoryRepo {
	return &memoryRepo{policies: policies, loans: make(map[int64]*Loan), nextID: 1}
}

func (m *memoryRepo) ListPolicies(ctx context.Context) ([]Policy, error) {
	return append([]Policy(nil), m.policies...), nil
}

func (m *memoryRepo) GetPolicy(ctx context.Context, id int64) (Policy, error) {
	for _, p := range m.policies {
		if p.ID == id {
			return p, nil
		}
	}
	return Policy{}, ErrPolicyNotFound
}

func (m *memoryRepo) CreatePolicy(ctx context.Context, p Policy) (Policy, error) {
	p.ID = int64(len(m.policies) + 1)
	m.policies = append(m.policies, p)
	return p, nil
}

func (m *memoryRepo) UpdatePolicy(ctx context.Context, p Policy) error {
	for i := range m.policies {
		if m.policies[i].ID == p.ID {
			m.policies[i] = p
			return nil
		}
	}
	return ErrPolicyNotFound
}

func (m *memoryRepo) DeletePolicy(ctx context.Context, id int64) error {
	for _, l := range m.loans {
		if l.Policy.ID == id {
			return ErrPolicyInUse
		}
	}
	for i := range m.policies {
		if m.policies[i].ID == id {
			m.policies = append(m.policies[:i], m.policies[i+1:]...)
			return nil
		}
	}
	return ErrPolicyNotFound
}

func (m *memoryRepo) GetLoan(ctx context.Context, id int64) (Loan, error) {
	l, ok := m.loans[id]
	if !ok {
		return Loan{}, ErrLoanNotFound
	}
	return *l, nil
}

func (m *memoryRepo) ListLoans(ctx context.Context, filter ListFilter) ([]Loan, error) {
	var out []Loan
	for _, l := range m.loans {
		if filter.OnlyOpen && l.Returned() {
			continue
		}
		if filter.UserID != nil && l.UserID != *filter.UserID {
			continue
		}
		out = append(out, *l)
	}
	return out, nil
}

func (m *memoryRepo) CreateLoan(ctx context.Context, l Loan) (Loan, error) {
	if l.SpecimenID != nil {
		for _, existing := range m.loans {
			if existing.SpecimenID != nil && *existing.SpecimenID == *l.SpecimenID && !existing.Returned() {
				return Loan{}, errSpecimenOnLoan
			}
		}
	}
	l.ID = m.nextID
	m.nextID++
	stored := l
	m.loans[l.ID] = &stored
	return l, nil
}

func (m *memoryRepo) UpdateLoan(ctx context.Context, id int64, fn func(l *Loan) error) (Loan, error) {
	stored, ok := m.loans[id]
	if !ok {
		return Loan{}, ErrLoanNotFound
	}
	work := *stored
	work.Renewals = append([]RenewalStep(nil), stored.Renewals...)
	if err := fn(&work); err != nil {
		return Loan{}, err
	}
	*stored = work
	return work, nil
}

func (m *memoryRepo) SpecimenAvailable(ctx context.Context, specimenID int64) (bool, error) {
	for _, l := range m.loans {
		if l.SpecimenID != nil && *l.SpecimenID == specimenID && !l.Returned() {
			return false, nil
		}
	}
	return true, nil
}

type fakeCatalog struct {
	specimens map[int64]catalog.SpecimenDetail
}

func (f *fakeCatalog) GetSpecimenDetail(ctx context.Context, id int64) (catalog.SpecimenDetail, error) {
	d, ok := f.specimens[id]
	if !ok {
		return catalog.SpecimenDetail{}, catalog.ErrSpecimenNotFound
	}
	return d, nil
}

type fakeProfiles struct {
	groups map[int64][]int64
}

func (f *fakeProfiles) UserGroupIDs(ctx context.Context, userID int64) ([]int64, error) {
	return f.groups[userID], nil
}

type fakeCalendar struct {
	cal siteconfig.Calendar
}

func (f *fakeCalendar) Calendar(ctx context.Context) (siteconfig.Calendar, error) {
	return f.cal, nil
}

type serviceFixture struct {
	repo    *memoryRepo
	service *Service
	now     time.Time
}

func newServiceFixture(t *testing.T, board BoardCachePort, policies ...Policy) *serviceFixture {
	t.Helper()
	collectionID := int64(4)
	cat := &fakeCatalog{specimens: map[int64]catalog.SpecimenDetail{
		1: {
			Specimen:       catalog.Specimen{ID: 1, BookID: 11, Number: 1},
			Book:           catalog.Book{ID: 11, Title: "Dom Casmurro", CollectionID: &collectionID},
			Classification: catalog.Classification{Abbreviation: "LIT", LocationName: "Ground floor"},
		},
		2: {
			Specimen: catalog.Specimen{ID: 2, BookID: 12, Number: 1},
			Book:     catalog.Book{ID: 12, Title: "Quincas Borba"},
		},
	}}
	profiles := &fakeProfiles{groups: map[int64][]int64{7: {3}}}
	repo := newMemoryRepo(policies...)

	f := &serviceFixture{
		repo: repo,
		now:  time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), // a Monday
	}
	f.service = NewService(slog.New(slog.DiscardHandler), repo, cat, profiles, &fakeCalendar{cal: testCalendar()}, board)
	f.service.now = func() time.Time { return f.now }
	return f
}

func defaultPolicy() Policy {
	return Policy{ID: 1, Days: 7, IsDefault: true, LogicalOperator: OperatorOr,
		Steps: []RenewalStep{{ID: 10, PolicyID: 1, Days: 7, Order: 0}}}
}

func TestServiceCreateLoan(t *testing.T) {
	groupPolicy := Policy{ID: 2, Days: 14, Priority: 1, LogicalOperator: OperatorOr,
		Conditions: map[Dimension][]string{DimGroups: {"3"}}}
	f := newServiceFixture(t, nil, defaultPolicy(), groupPolicy)

	view, rej, err := f.service.CreateLoan(context.Background(), CreateLoanInput{SpecimenID: 1, UserID: 7})
	require.NoError(t, err)
	require.True(t, rej.OK())
	assert.Equal(t, int64(2), view.Policy.ID, "group condition outranks the default")
	assert.True(t, view.Due.Equal(time.Date(2026, 3, 16, 18, 0, 0, 0, time.UTC)), "got %v", view.Due)
	assert.False(t, view.Late)
}

func TestServiceCreateLoanFallsBackToDefault(t *testing.T) {
	f := newServiceFixture(t, nil, defaultPolicy())

	// User 8 belongs to no group, specimen 2 has no collection or
	// classification.
	view, rej, err := f.service.CreateLoan(context.Background(), CreateLoanInput{SpecimenID: 2, UserID: 8})
	require.NoError(t, err)
	require.True(t, rej.OK())
	assert.Equal(t, int64(1), view.Policy.ID)
}

func TestServiceCreateLoanNoDefaultPolicy(t *testing.T) {
	f := newServiceFixture(t, nil)

	_, _, err := f.service.CreateLoan(context.Background(), CreateLoanInput{SpecimenID: 2, UserID: 8})
	require.ErrorIs(t, err, ErrNoDefaultPolicy)
}

func TestServiceCreateLoanSpecimenUnavailable(t *testing.T) {
	f := newServiceFixture(t, nil, defaultPolicy())

	_, rej, err := f.service.CreateLoan(context.Background(), CreateLoanInput{SpecimenID: 1, UserID: 7})
	require.NoError(t, err)
	require.True(t, rej.OK())

	_, rej, err = f.service.CreateLoan(context.Background(), CreateLoanInput{SpecimenID: 1, UserID: 8})
	require.NoError(t, err)
	assert.Equal(t, RejectionSpecimenUnavailable, rej)
}

func TestServiceRenewAndReturnCycle(t *testing.T) {
	f := newServiceFixture(t, nil, defaultPolicy())

	view, rej, err := f.service.CreateLoan(context.Background(), CreateLoanInput{SpecimenID: 1, UserID: 7})
	require.NoError(t, err)
	require.True(t, rej.OK())

	renewed, rej, err := f.service.Renew(context.Background(), view.ID)
	require.NoError(t, err)
	require.True(t, rej.OK())
	assert.Len(t, renewed.Renewals, 1)
	assert.True(t, renewed.Due.After(view.Due))

	_, rej, err = f.service.Renew(context.Background(), view.ID)
	require.NoError(t, err)
	assert.Equal(t, RejectionRenewalNotStarted, rej, "renewal period has not begun")

	f.now = f.now.AddDate(0, 0, 7)
	_, rej, err = f.service.Renew(context.Background(), view.ID)
	require.NoError(t, err)
	assert.Equal(t, RejectionNoMoreRenewals, rej, "single-step policy exhausts after one renewal")

	unrenewed, rej, err := f.service.Unrenew(context.Background(), view.ID)
	require.NoError(t, err)
	require.True(t, rej.OK())
	assert.Empty(t, unrenewed.Renewals)

	returned, rej, err := f.service.Return(context.Background(), view.ID)
	require.NoError(t, err)
	require.True(t, rej.OK())
	require.NotNil(t, returned.ReturnDate)

	_, rej, err = f.service.Return(context.Background(), view.ID)
	require.NoError(t, err)
	assert.Equal(t, RejectionAlreadyReturned, rej)

	// The specimen frees up once the loan is closed.
	_, rej, err = f.service.CreateLoan(context.Background(), CreateLoanInput{SpecimenID: 1, UserID: 8})
	require.NoError(t, err)
	assert.True(t, rej.OK())
}

func TestServiceDueBoard(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	board := NewBoardCache(client, 30*time.Second)

	longPolicy := Policy{ID: 2, Days: 14, Priority: 1, LogicalOperator: OperatorOr,
		Conditions: map[Dimension][]string{DimUsers: {"8"}}}
	f := newServiceFixture(t, board, defaultPolicy(), longPolicy)

	_, rej, err := f.service.CreateLoan(context.Background(), CreateLoanInput{SpecimenID: 1, UserID: 8})
	require.NoError(t, err)
	require.True(t, rej.OK())
	second, rej, err := f.service.CreateLoan(context.Background(), CreateLoanInput{SpecimenID: 2, UserID: 7})
	require.NoError(t, err)
	require.True(t, rej.OK())

	views, err := f.service.DueBoard(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, second.ID, views[0].ID, "soonest due first")

	// Cached: a direct repository change is not visible until invalidation.
	now := f.now
	f.repo.loans[second.ID].ReturnDate = &now
	cached, err := f.service.DueBoard(context.Background())
	require.NoError(t, err)
	assert.Len(t, cached, 2)

	// Any mutation through the service invalidates the board.
	_, rej, err = f.service.Return(context.Background(), views[1].ID)
	require.NoError(t, err)
	require.True(t, rej.OK())
	fresh, err := f.service.DueBoard(context.Background())
	require.NoError(t, err)
	assert.Empty(t, fresh)
}
