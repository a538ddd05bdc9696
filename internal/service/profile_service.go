package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/m3undle/m3undle/internal/models"
	"github.com/m3undle/m3undle/internal/repository"
)

// ProfileService provides business logic for output profile management.
type ProfileService struct {
	repos  *repository.Repositories
	logger *slog.Logger
}

// NewProfileService creates a profile service.
func NewProfileService(repos *repository.Repositories) *ProfileService {
	return &ProfileService{
		repos:  repos,
		logger: slog.Default(),
	}
}

// WithLogger sets the logger for the service.
func (s *ProfileService) WithLogger(logger *slog.Logger) *ProfileService {
	s.logger = logger
	return s
}

// Create creates a new profile.
func (s *ProfileService) Create(ctx context.Context, profile *models.Profile) error {
	existing, err := s.repos.Profiles.GetByOutputName(ctx, profile.OutputName)
	if err != nil {
		return fmt.Errorf("checking output name: %w", err)
	}
	if existing != nil {
		return fmt.Errorf("%w: output name %q already in use", ErrConflict, profile.OutputName)
	}

	if err := s.repos.Profiles.Create(ctx, profile); err != nil {
		return fmt.Errorf("creating profile: %w", err)
	}
	s.logger.Info("created profile",
		"id", profile.ID.String(),
		"name", profile.Name,
		"output_name", profile.OutputName,
	)
	return nil
}

// Update updates an existing profile.
func (s *ProfileService) Update(ctx context.Context, profile *models.Profile) error {
	current, err := s.repos.Profiles.GetByID(ctx, profile.ID)
	if err != nil {
		return fmt.Errorf("getting profile: %w", err)
	}
	if current == nil {
		return fmt.Errorf("%w: profile %s", ErrNotFound, profile.ID)
	}

	if profile.OutputName != current.OutputName {
		other, err := s.repos.Profiles.GetByOutputName(ctx, profile.OutputName)
		if err != nil {
			return fmt.Errorf("checking output name: %w", err)
		}
		if other != nil && other.ID != profile.ID {
			return fmt.Errorf("%w: output name %q already in use", ErrConflict, profile.OutputName)
		}
	}

	if err := s.repos.Profiles.Update(ctx, profile); err != nil {
		return fmt.Errorf("updating profile: %w", err)
	}
	s.logger.Info("updated profile", "id", profile.ID.String(), "name", profile.Name)
	return nil
}

// Delete removes a profile, its filters, links and snapshot rows. Snapshot
// artifact directories are left for the retention sweep.
func (s *ProfileService) Delete(ctx context.Context, id models.ULID) error {
	profile, err := s.repos.Profiles.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("getting profile: %w", err)
	}
	if profile == nil {
		return fmt.Errorf("%w: profile %s", ErrNotFound, id)
	}

	if err := s.repos.Profiles.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting profile: %w", err)
	}
	s.logger.Info("deleted profile", "id", id.String(), "name", profile.Name)
	return nil
}

// GetByID retrieves a profile by ID.
func (s *ProfileService) GetByID(ctx context.Context, id models.ULID) (*models.Profile, error) {
	profile, err := s.repos.Profiles.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting profile: %w", err)
	}
	if profile == nil {
		return nil, fmt.Errorf("%w: profile %s", ErrNotFound, id)
	}
	return profile, nil
}

// List returns all profiles.
func (s *ProfileService) List(ctx context.Context) ([]*models.Profile, error) {
	profiles, err := s.repos.Profiles.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	return profiles, nil
}

// Link attaches a provider to a profile at the given priority.
func (s *ProfileService) Link(ctx context.Context, link *models.ProfileProvider) error {
	profile, err := s.repos.Profiles.GetByID(ctx, link.ProfileID)
	if err != nil {
		return fmt.Errorf("getting profile: %w", err)
	}
	if profile == nil {
		return fmt.Errorf("%w: profile %s", ErrNotFound, link.ProfileID)
	}
	provider, err := s.repos.Providers.GetByID(ctx, link.ProviderID)
	if err != nil {
		return fmt.Errorf("getting provider: %w", err)
	}
	if provider == nil {
		return fmt.Errorf("%w: provider %s", ErrNotFound, link.ProviderID)
	}

	if err := s.repos.Profiles.CreateLink(ctx, link); err != nil {
		return fmt.Errorf("linking profile: %w", err)
	}
	s.logger.Info("linked profile to provider",
		"profile_id", link.ProfileID.String(),
		"provider_id", link.ProviderID.String(),
		"priority", link.Priority,
	)
	return nil
}
