package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/m3undle/m3undle/internal/models"
	"github.com/m3undle/m3undle/internal/repository"
)

// FilterPatch carries the fields of a group filter an operator may change.
// Nil means "leave unchanged"; ClearAutoNum drops both numbering bounds.
type FilterPatch struct {
	Decision         *models.FilterDecision
	ChannelMode      *models.ChannelMode
	OutputName       *string
	AutoNumStart     *int
	AutoNumEnd       *int
	ClearAutoNum     bool
	TrackNewChannels *bool
}

// FilterService provides business logic for group filter management.
type FilterService struct {
	repos  *repository.Repositories
	logger *slog.Logger
}

// NewFilterService creates a filter service.
func NewFilterService(repos *repository.Repositories) *FilterService {
	return &FilterService{
		repos:  repos,
		logger: slog.Default(),
	}
}

// WithLogger sets the logger for the service.
func (s *FilterService) WithLogger(logger *slog.Logger) *FilterService {
	s.logger = logger
	return s
}

// ListByProfile returns the profile's filters with their groups preloaded.
func (s *FilterService) ListByProfile(ctx context.Context, profileID models.ULID) ([]*models.ProfileGroupFilter, error) {
	profile, err := s.repos.Profiles.GetByID(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("getting profile: %w", err)
	}
	if profile == nil {
		return nil, fmt.Errorf("%w: profile %s", ErrNotFound, profileID)
	}

	filters, err := s.repos.GroupFilters.GetByProfile(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("listing filters: %w", err)
	}
	return filters, nil
}

// Patch applies the operator's changes to a filter. The change takes effect
// in the published lineup on the next build; callers trigger one.
func (s *FilterService) Patch(ctx context.Context, filterID models.ULID, patch FilterPatch) (*models.ProfileGroupFilter, error) {
	filter, err := s.repos.GroupFilters.GetByID(ctx, filterID)
	if err != nil {
		return nil, fmt.Errorf("getting filter: %w", err)
	}
	if filter == nil {
		return nil, fmt.Errorf("%w: filter %s", ErrNotFound, filterID)
	}

	if patch.Decision != nil {
		filter.Decision = *patch.Decision
	}
	if patch.ChannelMode != nil {
		filter.ChannelMode = *patch.ChannelMode
	}
	if patch.OutputName != nil {
		filter.OutputName = *patch.OutputName
	}
	if patch.ClearAutoNum {
		filter.AutoNumStart = nil
		filter.AutoNumEnd = nil
	}
	if patch.AutoNumStart != nil {
		filter.AutoNumStart = patch.AutoNumStart
	}
	if patch.AutoNumEnd != nil {
		filter.AutoNumEnd = patch.AutoNumEnd
	}
	if patch.TrackNewChannels != nil {
		filter.TrackNewChannels = *patch.TrackNewChannels
	}

	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if err := s.repos.GroupFilters.Update(ctx, filter); err != nil {
		return nil, fmt.Errorf("updating filter: %w", err)
	}

	s.logger.Info("updated group filter",
		"id", filter.ID.String(),
		"decision", string(filter.Decision),
		"channel_mode", string(filter.ChannelMode),
	)
	return filter, nil
}

// ListOverrides returns the per-channel overrides under a filter.
func (s *FilterService) ListOverrides(ctx context.Context, filterID models.ULID) ([]*models.ProfileGroupChannelFilter, error) {
	filter, err := s.repos.GroupFilters.GetByID(ctx, filterID)
	if err != nil {
		return nil, fmt.Errorf("getting filter: %w", err)
	}
	if filter == nil {
		return nil, fmt.Errorf("%w: filter %s", ErrNotFound, filterID)
	}

	overrides, err := s.repos.GroupFilters.GetChannelFilters(ctx, filterID)
	if err != nil {
		return nil, fmt.Errorf("listing channel overrides: %w", err)
	}
	return overrides, nil
}

// SetOverride creates or updates a per-channel override. The channel must
// belong to the filter's group.
func (s *FilterService) SetOverride(ctx context.Context, filterID, channelID models.ULID, outputGroupName string, channelNumber *int) (*models.ProfileGroupChannelFilter, error) {
	filter, err := s.repos.GroupFilters.GetByID(ctx, filterID)
	if err != nil {
		return nil, fmt.Errorf("getting filter: %w", err)
	}
	if filter == nil {
		return nil, fmt.Errorf("%w: filter %s", ErrNotFound, filterID)
	}

	channel, err := s.repos.ProviderChannels.GetByID(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("getting channel: %w", err)
	}
	if channel == nil {
		return nil, fmt.Errorf("%w: channel %s", ErrNotFound, channelID)
	}
	if channel.GroupID != filter.ProviderGroupID {
		return nil, fmt.Errorf("%w: channel %s is not in the filter's group", ErrConflict, channelID)
	}

	existing, err := s.repos.GroupFilters.GetChannelFilters(ctx, filterID)
	if err != nil {
		return nil, fmt.Errorf("listing channel overrides: %w", err)
	}
	for _, override := range existing {
		if override.ProviderChannelID == channelID {
			override.OutputGroupName = outputGroupName
			override.ChannelNumber = channelNumber
			if err := s.repos.GroupFilters.UpdateChannelFilter(ctx, override); err != nil {
				return nil, fmt.Errorf("updating channel override: %w", err)
			}
			return override, nil
		}
	}

	override := &models.ProfileGroupChannelFilter{
		FilterID:          filterID,
		ProviderChannelID: channelID,
		OutputGroupName:   outputGroupName,
		ChannelNumber:     channelNumber,
	}
	if err := s.repos.GroupFilters.CreateChannelFilter(ctx, override); err != nil {
		return nil, fmt.Errorf("creating channel override: %w", err)
	}
	return override, nil
}

// DeleteOverride removes a per-channel override.
func (s *FilterService) DeleteOverride(ctx context.Context, filterID, overrideID models.ULID) error {
	overrides, err := s.repos.GroupFilters.GetChannelFilters(ctx, filterID)
	if err != nil {
		return fmt.Errorf("listing channel overrides: %w", err)
	}
	for _, override := range overrides {
		if override.ID == overrideID {
			if err := s.repos.GroupFilters.DeleteChannelFilter(ctx, overrideID); err != nil {
				return fmt.Errorf("deleting channel override: %w", err)
			}
			return nil
		}
	}
	return fmt.Errorf("%w: override %s", ErrNotFound, overrideID)
}
