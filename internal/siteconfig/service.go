package siteconfig

import (
	"context"
	"time"
)

// RepositoryPort abstracts configuration persistence for the service.
type RepositoryPort interface {
	GetConfiguration(ctx context.Context) (Configuration, error)
	SaveConfiguration(ctx context.Context, c Configuration) error
	GetEmailSettings(ctx context.Context) (EmailSettings, error)
	SaveEmailSettings(ctx context.Context, s EmailSettings) error
}

// Service exposes the site configuration with a resolved timezone.
type Service struct {
	repo     RepositoryPort
	location *time.Location
}

// NewService builds a Service bound to the configured library timezone.
func NewService(repo RepositoryPort, location *time.Location) *Service {
	if location == nil {
		location = time.Local
	}
	return &Service{repo: repo, location: location}
}

// Configuration reads the stored configuration.
func (s *Service) Configuration(ctx context.Context) (Configuration, error) {
	return s.repo.GetConfiguration(ctx)
}

// Save validates and stores the configuration.
func (s *Service) Save(ctx context.Context, c Configuration) error {
	if _, err := c.Calendar(s.location); err != nil {
		return err
	}
	return s.repo.SaveConfiguration(ctx, c)
}

// Calendar resolves the stored configuration into a Calendar value object.
func (s *Service) Calendar(ctx context.Context) (Calendar, error) {
	c, err := s.repo.GetConfiguration(ctx)
	if err != nil {
		return Calendar{}, err
	}
	return c.Calendar(s.location)
}

// EmailSettings reads the SMTP configuration.
func (s *Service) EmailSettings(ctx context.Context) (EmailSettings, error) {
	return s.repo.GetEmailSettings(ctx)
}

// SaveEmailSettings stores the SMTP configuration.
func (s *Service) SaveEmailSettings(ctx context.Context, settings EmailSettings) error {
	return s.repo.SaveEmailSettings(ctx, settings)
}
