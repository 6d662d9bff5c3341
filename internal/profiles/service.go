package profiles

import "context"

// RepositoryPort abstracts profile persistence for the service.
type RepositoryPort interface {
	GetUser(ctx context.Context, id int64) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	CreateUser(ctx context.Context, input UserInput) (User, error)
	UserGroupIDs(ctx context.Context, userID int64) ([]int64, error)
	ListGroups(ctx context.Context) ([]Group, error)
	CreateGroup(ctx context.Context, name string) (Group, error)
	RecipientEmails(ctx context.Context, userID int64) ([]string, error)
	AddEmail(ctx context.Context, e AdditionalEmail) (AdditionalEmail, error)
}

// Service coordinates profile operations.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// GetUser fetches a user by id.
func (s *Service) GetUser(ctx context.Context, id int64) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// CreateUser registers a user with group memberships.
func (s *Service) CreateUser(ctx context.Context, input UserInput) (User, error) {
	return s.repo.CreateUser(ctx, input)
}

// UserGroupIDs returns the group ids of a user, consumed by the loan policy
// matcher.
func (s *Service) UserGroupIDs(ctx context.Context, userID int64) ([]int64, error) {
	return s.repo.UserGroupIDs(ctx, userID)
}

// ListGroups returns all groups.
func (s *Service) ListGroups(ctx context.Context) ([]Group, error) {
	return s.repo.ListGroups(ctx)
}

// CreateGroup registers a group.
func (s *Service) CreateGroup(ctx context.Context, name string) (Group, error) {
	return s.repo.CreateGroup(ctx, name)
}

// RecipientEmails resolves every address a notification should reach.
func (s *Service) RecipientEmails(ctx context.Context, userID int64) ([]string, error) {
	return s.repo.RecipientEmails(ctx, userID)
}

// AddEmail attaches an additional notification address to a user.
func (s *Service) AddEmail(ctx context.Context, e AdditionalEmail) (AdditionalEmail, error) {
	return s.repo.AddEmail(ctx, e)
}
