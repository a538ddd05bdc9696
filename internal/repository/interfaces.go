// Package repository defines data access interfaces for m3undle entities.
// All database access goes through these interfaces, enabling easy testing
// and database backend switching.
package repository

import (
	"context"

	"github.com/m3undle/m3undle/internal/models"
)

// GroupPreview summarizes one playlist group for preview responses.
type GroupPreview struct {
	Name         string             `json:"name"`
	ChannelCount int                `json:"channelCount"`
	ContentType  models.ContentType `json:"contentType"`
}

// ProviderRepository defines operations for provider persistence.
type ProviderRepository interface {
	// Create creates a new provider.
	Create(ctx context.Context, provider *models.Provider) error
	// GetByID retrieves a provider by ID; (nil, nil) when absent.
	GetByID(ctx context.Context, id models.ULID) (*models.Provider, error)
	// GetByName retrieves a provider by name; (nil, nil) when absent.
	GetByName(ctx context.Context, name string) (*models.Provider, error)
	// GetAll retrieves all providers ordered by name.
	GetAll(ctx context.Context) ([]*models.Provider, error)
	// GetActive retrieves the single provider with is_active=true; (nil, nil) when none.
	GetActive(ctx context.Context) (*models.Provider, error)
	// Update updates an existing provider.
	Update(ctx context.Context, provider *models.Provider) error
	// Delete deletes a provider and all rows hanging off it
	// (channel overrides, filters, channels, groups, fetch runs, links).
	Delete(ctx context.Context, id models.ULID) error
	// Activate makes the given provider the single active one. The write
	// is two separate statements (clear others, set target) because the
	// partial unique index is evaluated per statement.
	Activate(ctx context.Context, id models.ULID) error
	// Count returns the total number of providers.
	Count(ctx context.Context) (int64, error)
}

// ProfileRepository defines operations for profile persistence and the
// ordered profile-provider association.
type ProfileRepository interface {
	// Create creates a new profile.
	Create(ctx context.Context, profile *models.Profile) error
	// GetByID retrieves a profile by ID; (nil, nil) when absent.
	GetByID(ctx context.Context, id models.ULID) (*models.Profile, error)
	// GetByOutputName retrieves a profile by its output name; (nil, nil) when absent.
	GetByOutputName(ctx context.Context, outputName string) (*models.Profile, error)
	// GetAll retrieves all profiles ordered by name.
	GetAll(ctx context.Context) ([]*models.Profile, error)
	// Update updates an existing profile.
	Update(ctx context.Context, profile *models.Profile) error
	// Delete deletes a profile.
	Delete(ctx context.Context, id models.ULID) error

	// CreateLink associates a profile with a provider.
	CreateLink(ctx context.Context, link *models.ProfileProvider) error
	// GetLinksByProvider retrieves all links for a provider ordered by priority.
	GetLinksByProvider(ctx context.Context, providerID models.ULID) ([]*models.ProfileProvider, error)
	// GetBestProfileForProvider returns the enabled profile with the
	// lowest-priority enabled link to the provider; (nil, nil) when none.
	GetBestProfileForProvider(ctx context.Context, providerID models.ULID) (*models.Profile, error)
}

// ProviderGroupRepository defines operations for reconciler-owned group rows.
type ProviderGroupRepository interface {
	// Create creates a new group row.
	Create(ctx context.Context, group *models.ProviderGroup) error
	// GetByID retrieves a group by ID; (nil, nil) when absent.
	GetByID(ctx context.Context, id models.ULID) (*models.ProviderGroup, error)
	// GetByProviderAndName retrieves a group by its raw name; (nil, nil) when absent.
	GetByProviderAndName(ctx context.Context, providerID models.ULID, name string) (*models.ProviderGroup, error)
	// GetByProvider retrieves all groups of a provider ordered by name.
	GetByProvider(ctx context.Context, providerID models.ULID) ([]*models.ProviderGroup, error)
	// Update updates an existing group row.
	Update(ctx context.Context, group *models.ProviderGroup) error
	// DeactivateMissing marks groups of the provider whose raw name is not
	// in seen as inactive with a zero channel count. Returns rows affected.
	DeactivateMissing(ctx context.Context, providerID models.ULID, seen []string) (int64, error)
}

// ProviderChannelRepository defines operations for reconciler-owned channel rows.
type ProviderChannelRepository interface {
	// GetByID retrieves a channel by ID; (nil, nil) when absent.
	GetByID(ctx context.Context, id models.ULID) (*models.ProviderChannel, error)
	// GetByStableKey retrieves a channel by provider and stable key; (nil, nil) when absent.
	GetByStableKey(ctx context.Context, providerID models.ULID, key string) (*models.ProviderChannel, error)
	// Upsert creates or updates a channel keyed on (provider_id, stable_key),
	// refreshing metadata while preserving id and first_seen_at.
	Upsert(ctx context.Context, channel *models.ProviderChannel) error
	// GetActiveByProvider retrieves active channels filtered by content
	// type: live always, vod/series only when the corresponding flag is set.
	GetActiveByProvider(ctx context.Context, providerID models.ULID, includeVOD, includeSeries bool) ([]*models.ProviderChannel, error)
	// GetByGroup retrieves all channels of a provider group.
	GetByGroup(ctx context.Context, groupID models.ULID) ([]*models.ProviderChannel, error)
	// DeactivateMissing marks channels of the provider whose stable key is
	// not in seen as inactive. Returns rows affected.
	DeactivateMissing(ctx context.Context, providerID models.ULID, seen []string) (int64, error)
	// CountActive returns the number of active channels for a provider.
	CountActive(ctx context.Context, providerID models.ULID) (int64, error)
}

// GroupFilterRepository defines operations for the per-profile group
// decision state and its per-channel overrides.
type GroupFilterRepository interface {
	// Create creates a new group filter.
	Create(ctx context.Context, filter *models.ProfileGroupFilter) error
	// GetByID retrieves a filter by ID; (nil, nil) when absent.
	GetByID(ctx context.Context, id models.ULID) (*models.ProfileGroupFilter, error)
	// GetByProfile retrieves all filters of a profile with their groups preloaded.
	GetByProfile(ctx context.Context, profileID models.ULID) ([]*models.ProfileGroupFilter, error)
	// GetByProfileAndGroup retrieves the filter for one group; (nil, nil) when absent.
	GetByProfileAndGroup(ctx context.Context, profileID, groupID models.ULID) (*models.ProfileGroupFilter, error)
	// Update updates an existing filter.
	Update(ctx context.Context, filter *models.ProfileGroupFilter) error
	// GroupIDsWithFilter returns the provider-group IDs that already have a
	// filter row under the profile.
	GroupIDsWithFilter(ctx context.Context, profileID models.ULID) (map[models.ULID]bool, error)
	// CountByDecision returns how many filters of the profile carry the decision.
	CountByDecision(ctx context.Context, profileID models.ULID, decision models.FilterDecision) (int64, error)

	// CreateChannelFilter creates a per-channel override.
	CreateChannelFilter(ctx context.Context, override *models.ProfileGroupChannelFilter) error
	// GetChannelFilters retrieves the overrides under a filter.
	GetChannelFilters(ctx context.Context, filterID models.ULID) ([]*models.ProfileGroupChannelFilter, error)
	// UpdateChannelFilter updates a per-channel override.
	UpdateChannelFilter(ctx context.Context, override *models.ProfileGroupChannelFilter) error
	// DeleteChannelFilter deletes a per-channel override.
	DeleteChannelFilter(ctx context.Context, id models.ULID) error
}

// FetchRunRepository defines operations for fetch run bookkeeping.
type FetchRunRepository interface {
	// Create creates a new fetch run.
	Create(ctx context.Context, run *models.FetchRun) error
	// GetByID retrieves a run by ID; (nil, nil) when absent.
	GetByID(ctx context.Context, id models.ULID) (*models.FetchRun, error)
	// Update updates an existing run.
	Update(ctx context.Context, run *models.FetchRun) error
	// GetLatestByProvider retrieves the most recently started run of the
	// given type for a provider; (nil, nil) when none.
	GetLatestByProvider(ctx context.Context, providerID models.ULID, runType models.FetchRunType) (*models.FetchRun, error)
	// List retrieves runs ordered by started_at descending, optionally
	// filtered by provider. limit <= 0 means no limit.
	List(ctx context.Context, providerID *models.ULID, limit int) ([]*models.FetchRun, error)
}

// SnapshotRepository defines operations for snapshot metadata rows.
type SnapshotRepository interface {
	// Create creates a new snapshot row (normally staged).
	Create(ctx context.Context, snapshot *models.Snapshot) error
	// GetByID retrieves a snapshot by ID; (nil, nil) when absent.
	GetByID(ctx context.Context, id models.ULID) (*models.Snapshot, error)
	// GetActiveByProfile retrieves the profile's active snapshot; (nil, nil) when none.
	GetActiveByProfile(ctx context.Context, profileID models.ULID) (*models.Snapshot, error)
	// ListByProfile retrieves the profile's snapshots, newest first.
	ListByProfile(ctx context.Context, profileID models.ULID) ([]*models.Snapshot, error)
	// Promote atomically archives every active snapshot of the profile and
	// activates the given one. No reader observes zero or two actives.
	Promote(ctx context.Context, profileID, snapshotID models.ULID) error
	// Delete deletes a snapshot row. Callers remove the artifact directory first.
	Delete(ctx context.Context, id models.ULID) error
}
