// Package service provides the business logic layer for m3undle operations.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/m3undle/m3undle/internal/events"
	"github.com/m3undle/m3undle/internal/models"
	"github.com/m3undle/m3undle/internal/repository"
)

// ProviderService provides business logic for provider management.
type ProviderService struct {
	repos             *repository.Repositories
	bus               *events.Bus
	defaultOutputName string
	logger            *slog.Logger
}

// NewProviderService creates a provider service. defaultOutputName is the
// output name of the profile auto-created alongside the first provider.
func NewProviderService(repos *repository.Repositories, bus *events.Bus, defaultOutputName string) *ProviderService {
	return &ProviderService{
		repos:             repos,
		bus:               bus,
		defaultOutputName: defaultOutputName,
		logger:            slog.Default(),
	}
}

// WithLogger sets the logger for the service.
func (s *ProviderService) WithLogger(logger *slog.Logger) *ProviderService {
	s.logger = logger
	return s
}

// Create registers a new provider. The first provider ever created also gets
// a default profile and a priority-0 link, so a fresh install serves a lineup
// after one API call and one refresh.
func (s *ProviderService) Create(ctx context.Context, provider *models.Provider) error {
	existing, err := s.repos.Providers.GetByName(ctx, provider.Name)
	if err != nil {
		return fmt.Errorf("checking provider name: %w", err)
	}
	if existing != nil {
		return fmt.Errorf("%w: provider %q already exists", ErrConflict, provider.Name)
	}

	count, err := s.repos.Providers.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting providers: %w", err)
	}

	if err := s.repos.Providers.Create(ctx, provider); err != nil {
		return fmt.Errorf("creating provider: %w", err)
	}

	s.logger.Info("created provider",
		"id", provider.ID.String(),
		"name", provider.Name,
	)

	if count == 0 {
		if err := s.bootstrapDefaultProfile(ctx, provider); err != nil {
			return err
		}
	}
	return nil
}

// bootstrapDefaultProfile creates (or reuses) the default profile and links
// the provider to it at priority 0.
func (s *ProviderService) bootstrapDefaultProfile(ctx context.Context, provider *models.Provider) error {
	profile, err := s.repos.Profiles.GetByOutputName(ctx, s.defaultOutputName)
	if err != nil {
		return fmt.Errorf("looking up default profile: %w", err)
	}
	if profile == nil {
		profile = &models.Profile{
			Name:       "Default",
			OutputName: s.defaultOutputName,
		}
		if err := s.repos.Profiles.Create(ctx, profile); err != nil {
			return fmt.Errorf("creating default profile: %w", err)
		}
		s.logger.Info("created default profile",
			"id", profile.ID.String(),
			"output_name", profile.OutputName,
		)
	}

	link := &models.ProfileProvider{
		ProfileID:  profile.ID,
		ProviderID: provider.ID,
		Priority:   0,
	}
	if err := s.repos.Profiles.CreateLink(ctx, link); err != nil {
		return fmt.Errorf("linking default profile: %w", err)
	}
	return nil
}

// Update updates an existing provider.
func (s *ProviderService) Update(ctx context.Context, provider *models.Provider) error {
	current, err := s.repos.Providers.GetByID(ctx, provider.ID)
	if err != nil {
		return fmt.Errorf("getting provider: %w", err)
	}
	if current == nil {
		return fmt.Errorf("%w: provider %s", ErrNotFound, provider.ID)
	}

	if provider.Name != current.Name {
		other, err := s.repos.Providers.GetByName(ctx, provider.Name)
		if err != nil {
			return fmt.Errorf("checking provider name: %w", err)
		}
		if other != nil && other.ID != provider.ID {
			return fmt.Errorf("%w: provider %q already exists", ErrConflict, provider.Name)
		}
	}

	if err := s.repos.Providers.Update(ctx, provider); err != nil {
		return fmt.Errorf("updating provider: %w", err)
	}
	s.logger.Info("updated provider", "id", provider.ID.String(), "name", provider.Name)
	return nil
}

// Activate makes the given provider the single active one. Activation is
// explicit: creating a provider never activates it.
func (s *ProviderService) Activate(ctx context.Context, id models.ULID) error {
	provider, err := s.repos.Providers.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("getting provider: %w", err)
	}
	if provider == nil {
		return fmt.Errorf("%w: provider %s", ErrNotFound, id)
	}

	if err := s.repos.Providers.Activate(ctx, id); err != nil {
		return fmt.Errorf("activating provider: %w", err)
	}

	s.logger.Info("activated provider", "id", id.String(), "name", provider.Name)
	if s.bus != nil {
		s.bus.Publish(events.Event{
			Type: events.TypeProviderActivated,
			Data: map[string]any{
				"provider_id": id.String(),
				"name":        provider.Name,
			},
		})
	}
	return nil
}

// Delete removes a provider and everything hanging off it: groups, channels,
// fetch runs, filters and links. Snapshots survive; they reference only the
// profile.
func (s *ProviderService) Delete(ctx context.Context, id models.ULID) error {
	provider, err := s.repos.Providers.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("getting provider: %w", err)
	}
	if provider == nil {
		return fmt.Errorf("%w: provider %s", ErrNotFound, id)
	}

	if err := s.repos.Providers.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting provider: %w", err)
	}
	s.logger.Info("deleted provider", "id", id.String(), "name", provider.Name)
	return nil
}

// GetByID retrieves a provider by ID.
func (s *ProviderService) GetByID(ctx context.Context, id models.ULID) (*models.Provider, error) {
	provider, err := s.repos.Providers.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting provider: %w", err)
	}
	if provider == nil {
		return nil, fmt.Errorf("%w: provider %s", ErrNotFound, id)
	}
	return provider, nil
}

// List returns all providers.
func (s *ProviderService) List(ctx context.Context) ([]*models.Provider, error) {
	providers, err := s.repos.Providers.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing providers: %w", err)
	}
	return providers, nil
}
